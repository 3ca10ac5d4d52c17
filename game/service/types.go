package service

import (
	"time"

	"github.com/wricardo/pokemon-memory-game/game/engine"
)

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string             `json:"id"`
	ConfigName     string             `json:"config_name"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at"`
	GameState      *engine.GameState  `json:"game_state"`
	GameConfig     *engine.GameConfig `json:"game_config"`
}

// CreateOptions selects the board for a new session. ConfigID names a
// preset; GridSize and PlayerCount override it when set.
type CreateOptions struct {
	ConfigID    string   `json:"config_id,omitempty"`
	GridSize    int      `json:"grid_size,omitempty"`
	PlayerCount int      `json:"player_count,omitempty"`
	PlayerNames []string `json:"player_names,omitempty"`
}

// FlipResult contains the result of a flip
type FlipResult struct {
	Accepted  bool              `json:"accepted"`
	GameState *engine.GameState `json:"game_state"`
	Message   string            `json:"message"`
	Events    []GameEvent       `json:"events,omitempty"`
}

// GameEvent represents an event that occurred during gameplay
type GameEvent struct {
	Type        string    `json:"type"` // "start", "reset", "flip", "power_up", "peek_end", "match", "mismatch", "streak", "revert", "won"
	Message     string    `json:"message,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Slots       []int     `json:"slots,omitempty"`
	PlayerIndex int       `json:"player_index"`
	Count       int       `json:"count,omitempty"`
}

// ConfigInfo provides information about a difficulty preset
type ConfigInfo struct {
	Filename    string `json:"filename"`
	ConfigID    string `json:"config_id"` // The identifier to use for session creation
	Name        string `json:"name"`      // Display name
	Description string `json:"description"`
	GridSize    int    `json:"grid_size"`
	PlayerCount int    `json:"player_count"`
	Difficulty  string `json:"difficulty"`
}

// toGameEvents converts engine events, stamping them with now
func toGameEvents(events []engine.Event, now time.Time) []GameEvent {
	out := make([]GameEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, GameEvent{
			Type:        string(ev.Type),
			Message:     ev.Message,
			Timestamp:   now,
			Slots:       append([]int(nil), ev.Slots...),
			PlayerIndex: ev.PlayerIndex,
			Count:       ev.Count,
		})
	}
	return out
}
