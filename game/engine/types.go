package engine

import "time"

// Phase represents the lifecycle stage of a game
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseLoading   Phase = "loading"
	PhasePlaying   Phase = "playing"
	PhaseResolving Phase = "resolving"
	PhaseWon       Phase = "won"

	// Validation constants
	MinGridSize = 2
	MaxGridSize = 12
	MinPlayers  = 1
	MaxPlayers  = 2

	// Scoring constants
	PerfectGameBonus  = 5
	SpeedBonus        = 3
	SpeedBonusSeconds = 60
	StreakThreshold   = 3
	LegendaryStreak   = 5

	// A board needs more than PowerUpMinCards cards to carry a power-up.
	PowerUpMinCards      = 4
	DefaultPowerUpChance = 0.1
)

const (
	DefaultResolveDelay  = 800 * time.Millisecond
	DefaultMismatchDelay = 1200 * time.Millisecond
	DefaultPowerUpReveal = 1000 * time.Millisecond
)

// ImageRefs holds the primary and fallback image locations of a face
type ImageRefs struct {
	Primary  string `json:"primary"`
	Fallback string `json:"fallback"`
}

// CardFace is the picture shown on a card
type CardFace struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Images      ImageRefs `json:"images"`
	Category    string    `json:"category"`
}

// Card is one slot on the board. Exactly two cards share each FaceID.
type Card struct {
	SlotID     int       `json:"slot_id"`
	FaceID     string    `json:"face_id,omitempty"`
	Face       *CardFace `json:"face,omitempty"`
	IsRevealed bool      `json:"is_revealed"`
	IsResolved bool      `json:"is_resolved"`
	IsPowerUp  bool      `json:"is_power_up"`
	IsPeeking  bool      `json:"is_peeking"`
}

// Player holds per-player scoring
type Player struct {
	DisplayName       string `json:"display_name"`
	Score             int    `json:"score"`
	CurrentStreak     int    `json:"current_streak"`
	PowerUpsCollected int    `json:"power_ups_collected"`
}

// Winner describes the outcome of a finished game
type Winner struct {
	Name        string `json:"name"`
	Score       int    `json:"score"`
	PlayerIndex int    `json:"player_index"`
	Tie         bool   `json:"tie"`
}

// Layout is a cosmetic board arrangement picked at random on each new game
type Layout string

const (
	LayoutClassic  Layout = "classic"
	LayoutCompact  Layout = "compact"
	LayoutSpacious Layout = "spacious"
	LayoutTilted   Layout = "tilted"
)

var layouts = []Layout{LayoutClassic, LayoutCompact, LayoutSpacious, LayoutTilted}

// GameState is an immutable snapshot of a game. Snapshots are never shared
// with the engine, so callers may keep or modify them freely.
type GameState struct {
	Phase             Phase     `json:"phase"`
	GridSize          int       `json:"grid_size"`
	DifficultyTier    string    `json:"difficulty_tier"`
	Cards             []Card    `json:"cards"`
	Players           []Player  `json:"players"`
	ActivePlayerIndex int       `json:"active_player_index"`
	PendingReveal     []int     `json:"pending_reveal"`
	MoveCount         int       `json:"move_count"`
	ElapsedSeconds    int       `json:"elapsed_seconds"`
	FormattedTime     string    `json:"formatted_time"`
	ComboCount        int       `json:"combo_count"`
	StreakCount       int       `json:"streak_count"`
	MatchedPairs      int       `json:"matched_pairs"`
	TotalPairs        int       `json:"total_pairs"`
	IsWon             bool      `json:"is_won"`
	PerfectGameBonus  bool      `json:"perfect_game_bonus"`
	SpeedBonus        bool      `json:"speed_bonus"`
	Winner            *Winner   `json:"winner,omitempty"`
	LastMatched       string    `json:"last_matched,omitempty"`
	Message           string    `json:"message,omitempty"`
	Signals           []Signal  `json:"signals"`
	Layout            Layout    `json:"layout"`
	Generation        uint64    `json:"generation"`
	StartedAt         time.Time `json:"started_at"`
}

// Redacted returns a copy of the snapshot with the faces of hidden cards
// removed, suitable for sending to players.
func (s *GameState) Redacted() *GameState {
	if s == nil {
		return nil
	}
	out := *s
	out.Cards = make([]Card, len(s.Cards))
	for i, c := range s.Cards {
		if !c.IsRevealed && !c.IsResolved && !c.IsPeeking {
			c.FaceID = ""
			c.Face = nil
		}
		out.Cards[i] = c
	}
	return &out
}

// EventType names something that happened during a transition
type EventType string

const (
	EventStart    EventType = "start"
	EventReset    EventType = "reset"
	EventFlip     EventType = "flip"
	EventPowerUp  EventType = "power_up"
	EventPeekEnd  EventType = "peek_end"
	EventMatch    EventType = "match"
	EventMismatch EventType = "mismatch"
	EventStreak   EventType = "streak"
	EventRevert   EventType = "revert"
	EventWon      EventType = "won"
)

// Event is emitted alongside the snapshot after every transition
type Event struct {
	Type        EventType `json:"type"`
	Slots       []int     `json:"slots,omitempty"`
	PlayerIndex int       `json:"player_index"`
	Count       int       `json:"count,omitempty"`
	Message     string    `json:"message,omitempty"`
}

// GameConfig represents the rules of a single game, loadable from JSON presets
type GameConfig struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	GridSize      int      `json:"grid_size"`
	PlayerCount   int      `json:"player_count"`
	PlayerNames   []string `json:"player_names,omitempty"`
	PowerUpChance float64  `json:"power_up_chance"`
	Timings       Timings  `json:"timings,omitempty"`
}

// Timings overrides the default transition delays. Zero means default.
type Timings struct {
	ResolveDelayMs  int `json:"resolve_delay_ms,omitempty"`
	MismatchDelayMs int `json:"mismatch_delay_ms,omitempty"`
	PowerUpRevealMs int `json:"power_up_reveal_ms,omitempty"`
}

// ResolveDelay is the wait between the second flip and pair resolution
func (t Timings) ResolveDelay() time.Duration {
	return orDefault(t.ResolveDelayMs, DefaultResolveDelay)
}

// MismatchDelay is how long a mismatched pair stays visible
func (t Timings) MismatchDelay() time.Duration {
	return orDefault(t.MismatchDelayMs, DefaultMismatchDelay)
}

// PowerUpReveal is how long a power-up keeps the board visible
func (t Timings) PowerUpReveal() time.Duration {
	return orDefault(t.PowerUpRevealMs, DefaultPowerUpReveal)
}

func orDefault(ms int, def time.Duration) time.Duration {
	if ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}
