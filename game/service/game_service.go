package service

import (
	"context"
	"errors"
	"time"

	"github.com/wricardo/pokemon-memory-game/game/engine"
	"github.com/wricardo/pokemon-memory-game/game/leaderboard"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrConfigNotFound  = errors.New("configuration not found")
)

// GameService defines all game-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, opts CreateOptions) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Game Operations
	Flip(ctx context.Context, sessionID string, slot int) (*FlipResult, error)
	Reset(ctx context.Context, sessionID string) (*engine.GameState, error)
	SetPlayerNames(ctx context.Context, sessionID string, names []string) (*engine.GameState, error)

	// Game State
	GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error)

	// Leaderboard
	GetLeaderboard(ctx context.Context, gridSize int) ([]leaderboard.Entry, error)
	GetAllLeaderboard(ctx context.Context) ([]leaderboard.Entry, error)
	ClearLeaderboard(ctx context.Context) error

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.GameConfig, error)
	SaveConfig(ctx context.Context, configName string, config *engine.GameConfig) (*ConfigInfo, error)
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id string, config *engine.GameConfig, opts ...engine.Option) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
}

// ConfigManager handles difficulty preset loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.GameConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.GameConfig
	SaveConfig(name string, config *engine.GameConfig) error
}

// LeaderboardStore ranks won games
type LeaderboardStore interface {
	Record(ctx context.Context, name string, score, elapsedSeconds, moveCount, gridSize int) ([]leaderboard.Entry, error)
	Query(gridSize int) []leaderboard.Entry
	QueryAll() []leaderboard.Entry
	Clear(ctx context.Context) error
}

// Broadcaster pushes session updates to connected clients
type Broadcaster interface {
	BroadcastState(sessionID string, state *engine.GameState, events []GameEvent)
}

// Session represents an active game session
type Session struct {
	ID             string
	ConfigID       string
	Engine         *engine.GameEngine
	Config         *engine.GameConfig
	CreatedAt      time.Time
	LastAccessedAt time.Time
}
