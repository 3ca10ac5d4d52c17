package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/pokemon-memory-game/game/engine"
)

const (
	// DefaultBaseURL is the PokeAPI endpoint for a single Pokémon
	DefaultBaseURL = "https://pokeapi.co/api/v2/pokemon"

	defaultConcurrency = 8
	userAgent          = "pokemon-memory-game/1.0"
)

// PokeAPIProvider fetches faces from PokeAPI
type PokeAPIProvider struct {
	httpClient  *http.Client
	logger      *slog.Logger
	baseURL     string
	maxID       int
	concurrency int
	rng         *lockedRand
	failures    FailureRecorder
}

// Option configures a PokeAPIProvider
type Option func(*PokeAPIProvider)

// WithBaseURL points the provider at another API root
func WithBaseURL(baseURL string) Option {
	return func(p *PokeAPIProvider) {
		p.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithConcurrency limits the number of requests in flight
func WithConcurrency(n int) Option {
	return func(p *PokeAPIProvider) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithRand sets the random source used to pick IDs
func WithRand(rng *rand.Rand) Option {
	return func(p *PokeAPIProvider) {
		p.rng = newLockedRand(rng)
	}
}

// WithFailureRecorder reports placeholder fallbacks, typically to metrics
func WithFailureRecorder(r FailureRecorder) Option {
	return func(p *PokeAPIProvider) {
		p.failures = r
	}
}

// NewPokeAPIProvider creates a provider using httpClient for every request
func NewPokeAPIProvider(httpClient *http.Client, logger *slog.Logger, opts ...Option) *PokeAPIProvider {
	p := &PokeAPIProvider{
		httpClient:  httpClient,
		logger:      logger,
		baseURL:     DefaultBaseURL,
		maxID:       MaxPokemonID,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.rng == nil {
		p.rng = newLockedRand(nil)
	}
	return p
}

// NewSafeHTTPClient returns an HTTP client that refuses private, loopback
// and metadata addresses, for talking to the public API
func NewSafeHTTPClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(config).Client
}

// FetchFaces fetches count random first-generation Pokémon concurrently.
// Faces that fail to load are replaced by placeholders; the call itself
// only fails when count cannot be satisfied.
func (p *PokeAPIProvider) FetchFaces(ctx context.Context, count int, excludeIDs []string) ([]engine.CardFace, error) {
	ids, err := p.rng.pickIDs(count, p.maxID, excludeIDs)
	if err != nil {
		return nil, err
	}

	faces := make([]engine.CardFace, len(ids))
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			faces[i] = p.fetchFace(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	return faces, nil
}

func (p *PokeAPIProvider) fetchFace(ctx context.Context, id int) engine.CardFace {
	face, reason, err := p.fetchPokemon(ctx, id)
	if err != nil {
		p.logger.Warn("falling back to placeholder face",
			slog.Int("pokemon_id", id),
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
		if p.failures != nil {
			p.failures.RecordAssetFailure(reason)
		}
		return engine.PlaceholderFace(strconv.Itoa(id))
	}
	return face
}

type pokemonResponse struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Sprites struct {
		FrontDefault string `json:"front_default"`
		Other        struct {
			OfficialArtwork struct {
				FrontDefault string `json:"front_default"`
			} `json:"official-artwork"`
		} `json:"other"`
	} `json:"sprites"`
	Types []struct {
		Type struct {
			Name string `json:"name"`
		} `json:"type"`
	} `json:"types"`
}

// fetchPokemon returns the face for id, or an error and a short reason label
func (p *PokeAPIProvider) fetchPokemon(ctx context.Context, id int) (engine.CardFace, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%d", p.baseURL, id), nil)
	if err != nil {
		return engine.CardFace{}, "request", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return engine.CardFace{}, "request", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return engine.CardFace{}, "status", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body pokemonResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return engine.CardFace{}, "decode", fmt.Errorf("failed to decode response: %w", err)
	}

	return toFace(id, body), "", nil
}

func toFace(id int, body pokemonResponse) engine.CardFace {
	// The requested ID is the face ID so picks stay distinct.
	key := strconv.Itoa(id)
	placeholder := engine.PlaceholderFace(key)

	sprite := body.Sprites.FrontDefault
	if sprite == "" {
		sprite = placeholder.Images.Fallback
	}
	artwork := body.Sprites.Other.OfficialArtwork.FrontDefault
	if artwork == "" {
		artwork = body.Sprites.FrontDefault
	}
	if artwork == "" {
		artwork = placeholder.Images.Primary
	}

	name := body.Name
	if name == "" {
		name = placeholder.DisplayName
	}
	category := engine.PlaceholderCategory
	if len(body.Types) > 0 && body.Types[0].Type.Name != "" {
		category = body.Types[0].Type.Name
	}

	return engine.CardFace{
		ID:          key,
		DisplayName: name,
		Images:      engine.ImageRefs{Primary: artwork, Fallback: sprite},
		Category:    category,
	}
}
