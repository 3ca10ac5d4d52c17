// Package assets supplies card faces for new boards.
//
// The PokeAPI provider fetches first-generation Pokémon concurrently and
// replaces every face it cannot fetch with a placeholder, so a board can
// always be dealt. The offline provider returns placeholders only.
package assets

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/wricardo/pokemon-memory-game/game/engine"
)

// MaxPokemonID is the last first-generation Pokémon
const MaxPokemonID = 151

// ErrInvalidCount is returned when a provider cannot supply the requested
// number of distinct faces
var ErrInvalidCount = errors.New("invalid face count")

// Provider supplies distinct card faces
type Provider interface {
	// FetchFaces returns count faces with distinct IDs, none of them in
	// excludeIDs. Individual fetch failures are replaced by placeholders.
	FetchFaces(ctx context.Context, count int, excludeIDs []string) ([]engine.CardFace, error)
}

// FailureRecorder is notified when a face falls back to a placeholder
type FailureRecorder interface {
	RecordAssetFailure(reason string)
}

// lockedRand guards a *rand.Rand shared by concurrent callers
type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newLockedRand(rng *rand.Rand) *lockedRand {
	if rng == nil {
		now := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(now, now>>1|1))
	}
	return &lockedRand{rng: rng}
}

// pickIDs draws count distinct IDs from 1..maxID, skipping excluded ones
func (r *lockedRand) pickIDs(count, maxID int, excludeIDs []string) ([]int, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCount, count)
	}

	excluded := make(map[string]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}
	pool := make([]int, 0, maxID)
	for id := 1; id <= maxID; id++ {
		if !excluded[strconv.Itoa(id)] {
			pool = append(pool, id)
		}
	}
	if count > len(pool) {
		return nil, fmt.Errorf("%w: %d requested, %d available", ErrInvalidCount, count, len(pool))
	}

	r.mu.Lock()
	r.rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	r.mu.Unlock()

	return pool[:count], nil
}

// OfflineProvider deals placeholder faces without touching the network
type OfflineProvider struct {
	rng   *lockedRand
	maxID int
}

// NewOfflineProvider creates an OfflineProvider. A nil rng is seeded from the clock.
func NewOfflineProvider(rng *rand.Rand) *OfflineProvider {
	return &OfflineProvider{rng: newLockedRand(rng), maxID: MaxPokemonID}
}

// FetchFaces returns placeholder faces for count random IDs
func (p *OfflineProvider) FetchFaces(_ context.Context, count int, excludeIDs []string) ([]engine.CardFace, error) {
	ids, err := p.rng.pickIDs(count, p.maxID, excludeIDs)
	if err != nil {
		return nil, err
	}
	faces := make([]engine.CardFace, len(ids))
	for i, id := range ids {
		faces[i] = engine.PlaceholderFace(strconv.Itoa(id))
	}
	return faces, nil
}
