package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// StorageKey is the blob key the leaderboard is stored under
	StorageKey = "pokemonMemoryLeaderboard"

	MaxEntriesPerTier = 10
	MaxEntriesOverall = 20

	AnonymousName = "Anonymous"
)

// Entry is one finished game on the leaderboard
type Entry struct {
	ID             string    `json:"id"`
	PlayerName     string    `json:"name"`
	ElapsedSeconds int       `json:"time"`
	MoveCount      int       `json:"moves"`
	Score          int       `json:"score"`
	GridSize       int       `json:"gridSize"`
	DifficultyTier string    `json:"difficulty"`
	RecordedDate   time.Time `json:"date"`
}

// legacyDateLayouts are the date formats accepted when loading stored entries.
// Older boards stored a locale date string.
var legacyDateLayouts = []string{time.RFC3339Nano, "1/2/2006", "2006-01-02"}

// UnmarshalJSON accepts any string date. Dates in an unknown format load as
// the zero time instead of failing the whole blob.
func (e *Entry) UnmarshalJSON(data []byte) error {
	type plain Entry
	aux := struct {
		*plain
		Date json.RawMessage `json:"date"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	e.RecordedDate = time.Time{}
	var raw string
	if len(aux.Date) == 0 || json.Unmarshal(aux.Date, &raw) != nil {
		return nil
	}
	for _, layout := range legacyDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			e.RecordedDate = t
			break
		}
	}
	return nil
}

// DifficultyTier returns the label for a grid size
func DifficultyTier(gridSize int) string {
	switch gridSize {
	case 4:
		return "Easy"
	case 6:
		return "Medium"
	case 8:
		return "Hard"
	default:
		return "Custom"
	}
}

// Less reports whether a ranks ahead of b
func Less(a, b Entry) bool {
	if a.GridSize != b.GridSize {
		return a.GridSize < b.GridSize
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.ElapsedSeconds != b.ElapsedSeconds {
		return a.ElapsedSeconds < b.ElapsedSeconds
	}
	return a.MoveCount < b.MoveCount
}

// Insert returns a new list holding existing plus entry, sorted and trimmed
// to MaxEntriesPerTier entries per grid size. existing is not modified.
func Insert(existing []Entry, entry Entry) []Entry {
	entries := make([]Entry, 0, len(existing)+1)
	entries = append(entries, existing...)
	entries = append(entries, entry)
	return normalize(entries)
}

// normalize sorts entries in place and drops everything past the per-tier limit
func normalize(entries []Entry) []Entry {
	sort.SliceStable(entries, func(i, j int) bool {
		return Less(entries[i], entries[j])
	})

	perTier := make(map[int]int)
	kept := entries[:0]
	for _, e := range entries {
		perTier[e.GridSize]++
		if perTier[e.GridSize] > MaxEntriesPerTier {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

// Leaderboard is the persisted ranking. It is safe for concurrent use.
type Leaderboard struct {
	mu      sync.Mutex
	store   BlobStore
	key     string
	entries []Entry
	now     func() time.Time
	newID   func() string
	logger  *slog.Logger
}

// Option configures a Leaderboard
type Option func(*Leaderboard)

// WithKey stores the leaderboard under a key other than StorageKey
func WithKey(key string) Option {
	return func(lb *Leaderboard) {
		lb.key = key
	}
}

// WithClock sets the time source used for entry dates
func WithClock(now func() time.Time) Option {
	return func(lb *Leaderboard) {
		lb.now = now
	}
}

// WithIDGenerator sets the entry ID generator
func WithIDGenerator(newID func() string) Option {
	return func(lb *Leaderboard) {
		lb.newID = newID
	}
}

// WithLogger sets the leaderboard logger
func WithLogger(logger *slog.Logger) Option {
	return func(lb *Leaderboard) {
		lb.logger = logger
	}
}

// New loads the leaderboard from store. A missing, unreadable or corrupt
// blob yields an empty leaderboard.
func New(ctx context.Context, store BlobStore, opts ...Option) *Leaderboard {
	lb := &Leaderboard{
		store:  store,
		key:    StorageKey,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(lb)
	}
	lb.entries = lb.load(ctx)
	return lb
}

func (lb *Leaderboard) load(ctx context.Context) []Entry {
	blob, err := lb.store.LoadBlob(ctx, lb.key)
	if errors.Is(err, ErrBlobNotFound) {
		return nil
	}
	if err != nil {
		lb.logger.Warn("failed to load leaderboard, starting empty",
			slog.String("key", lb.key), slog.Any("error", err))
		return nil
	}

	var entries []Entry
	if err := json.Unmarshal([]byte(blob), &entries); err != nil {
		lb.logger.Warn("corrupt leaderboard blob, starting empty",
			slog.String("key", lb.key), slog.Any("error", err))
		return nil
	}
	for i := range entries {
		entries[i].DifficultyTier = DifficultyTier(entries[i].GridSize)
	}
	return normalize(entries)
}

// Record adds a finished game and persists the list. The returned slice is
// the updated leaderboard; it is returned even when saving fails.
func (lb *Leaderboard) Record(ctx context.Context, name string, score, elapsedSeconds, moveCount, gridSize int) ([]Entry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = AnonymousName
	}
	entry := Entry{
		ID:             lb.newID(),
		PlayerName:     name,
		ElapsedSeconds: elapsedSeconds,
		MoveCount:      moveCount,
		Score:          score,
		GridSize:       gridSize,
		DifficultyTier: DifficultyTier(gridSize),
		RecordedDate:   lb.now().UTC(),
	}

	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.entries = Insert(lb.entries, entry)
	out := cloneEntries(lb.entries)
	if err := lb.saveLocked(ctx); err != nil {
		return out, err
	}
	return out, nil
}

// Query returns the entries for one grid size in rank order
func (lb *Leaderboard) Query(gridSize int) []Entry {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	var out []Entry
	for _, e := range lb.entries {
		if e.GridSize == gridSize {
			out = append(out, e)
		}
	}
	return out
}

// QueryAll returns the first MaxEntriesOverall entries across all grid sizes
func (lb *Leaderboard) QueryAll() []Entry {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	n := len(lb.entries)
	if n > MaxEntriesOverall {
		n = MaxEntriesOverall
	}
	return cloneEntries(lb.entries[:n])
}

// Entries returns the complete list in rank order
func (lb *Leaderboard) Entries() []Entry {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return cloneEntries(lb.entries)
}

// Clear removes every entry and persists the empty list
func (lb *Leaderboard) Clear(ctx context.Context) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.entries = nil
	return lb.saveLocked(ctx)
}

func (lb *Leaderboard) saveLocked(ctx context.Context) error {
	entries := lb.entries
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal leaderboard: %w", err)
	}
	if err := lb.store.SaveBlob(ctx, lb.key, string(data)); err != nil {
		lb.logger.Error("failed to save leaderboard",
			slog.String("key", lb.key), slog.Any("error", err))
		return fmt.Errorf("failed to save leaderboard: %w", err)
	}
	return nil
}

func cloneEntries(entries []Entry) []Entry {
	if len(entries) == 0 {
		return []Entry{}
	}
	return append([]Entry(nil), entries...)
}
