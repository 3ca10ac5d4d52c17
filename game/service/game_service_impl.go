package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/wricardo/pokemon-memory-game/game/assets"
	"github.com/wricardo/pokemon-memory-game/game/engine"
	"github.com/wricardo/pokemon-memory-game/game/leaderboard"
	"github.com/wricardo/pokemon-memory-game/metrics"
)

const (
	// MaxNameLength is the longest display name kept, in runes
	MaxNameLength = 20

	customConfigID     = "custom"
	leaderboardTimeout = 5 * time.Second
)

// Option configures the game service
type Option func(*gameServiceImpl)

// WithLeaderboard sets where won games are ranked
func WithLeaderboard(lb LeaderboardStore) Option {
	return func(s *gameServiceImpl) {
		s.leaderboard = lb
	}
}

// WithFaceProvider sets the source of card faces
func WithFaceProvider(p assets.Provider) Option {
	return func(s *gameServiceImpl) {
		s.faces = p
	}
}

// WithBroadcaster sets the fan-out for state updates
func WithBroadcaster(b Broadcaster) Option {
	return func(s *gameServiceImpl) {
		s.broadcaster = b
	}
}

// WithMetrics sets the metrics collector
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(s *gameServiceImpl) {
		s.metrics = m
	}
}

// WithLogger sets the service logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *gameServiceImpl) {
		s.logger = logger
	}
}

// WithEngineOptions adds options to every engine the service creates
func WithEngineOptions(opts ...engine.Option) Option {
	return func(s *gameServiceImpl) {
		s.engineOpts = append(s.engineOpts, opts...)
	}
}

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions    SessionManager
	configs     ConfigManager
	leaderboard LeaderboardStore
	faces       assets.Provider
	broadcaster Broadcaster
	metrics     metrics.MetricsCollector
	logger      *slog.Logger
	engineOpts  []engine.Option
	names       *bluemonday.Policy
	mu          sync.RWMutex
}

// NewGameService creates a new game service instance. Without options it
// keeps the leaderboard in memory and deals placeholder faces.
func NewGameService(sessions SessionManager, configs ConfigManager, opts ...Option) GameService {
	s := &gameServiceImpl{
		sessions: sessions,
		configs:  configs,
		metrics:  metrics.NopCollector{},
		logger:   slog.Default(),
		names:    bluemonday.StrictPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.leaderboard == nil {
		s.leaderboard = leaderboard.New(context.Background(), leaderboard.NewMemoryBlobStore(), leaderboard.WithLogger(s.logger))
	}
	if s.faces == nil {
		s.faces = assets.NewOfflineProvider(nil)
	}
	return s
}

// getConfigID returns the config_id for a given config name, used for consistent API responses
func (s *gameServiceImpl) getConfigID(configName string) string {
	availableConfigs, err := s.configs.ListConfigs()
	if err == nil {
		for _, cfg := range availableConfigs {
			if cfg.Name == configName {
				return cfg.ConfigID
			}
		}
	}
	if configName == "" {
		return "default"
	}
	return configName
}

// resolveConfig picks the preset or custom board for a new session and
// returns a private copy with the overrides applied
func (s *gameServiceImpl) resolveConfig(opts CreateOptions) (*engine.GameConfig, string, error) {
	var (
		config   *engine.GameConfig
		configID string
	)

	switch {
	case opts.ConfigID != "":
		loaded, err := s.configs.LoadConfig(opts.ConfigID)
		if err != nil {
			if errors.Is(err, ErrConfigNotFound) {
				availableConfigs, listErr := s.configs.ListConfigs()
				if listErr == nil && len(availableConfigs) > 0 {
					var configIDs []string
					for _, cfg := range availableConfigs {
						configIDs = append(configIDs, cfg.ConfigID)
					}
					return nil, "", fmt.Errorf("%w: '%s'. Available configs: %v", ErrConfigNotFound, opts.ConfigID, configIDs)
				}
				return nil, "", fmt.Errorf("%w: '%s'. Use /api/configs to list available configurations", ErrConfigNotFound, opts.ConfigID)
			}
			return nil, "", fmt.Errorf("failed to load config %s: %w", opts.ConfigID, err)
		}
		config, configID = loaded.Clone(), opts.ConfigID
	case opts.GridSize != 0:
		players := opts.PlayerCount
		if players == 0 {
			players = engine.MinPlayers
		}
		config, configID = engine.NewConfig(opts.GridSize, players), customConfigID
	default:
		config = s.configs.GetDefault().Clone()
		configID = s.getConfigID(config.Name)
	}

	if opts.GridSize != 0 && opts.GridSize != config.GridSize {
		config.GridSize = opts.GridSize
		config.Name = customConfigID
		configID = customConfigID
	}
	if opts.PlayerCount != 0 {
		config.PlayerCount = opts.PlayerCount
	}
	if opts.PlayerNames != nil {
		if len(opts.PlayerNames) > config.PlayerCount {
			return nil, "", fmt.Errorf("%w: %d player names given for %d players", engine.ErrInvalidConfig, len(opts.PlayerNames), config.PlayerCount)
		}
		config.PlayerNames = s.sanitizeNames(opts.PlayerNames)
	} else if config.PlayerCount > 0 && len(config.PlayerNames) > config.PlayerCount {
		config.PlayerNames = config.PlayerNames[:config.PlayerCount]
	}

	if err := engine.ValidateGameConfig(config); err != nil {
		return nil, "", err
	}
	return config, configID, nil
}

// CreateSession creates a new game session and deals its first board
func (s *gameServiceImpl) CreateSession(ctx context.Context, opts CreateOptions) (*SessionInfo, error) {
	config, configID, err := s.resolveConfig(opts)
	if err != nil {
		return nil, err
	}

	// Fetch before locking; the provider may be slow.
	faces, err := s.faces.FetchFaces(ctx, engine.TotalPairs(config.GridSize), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch card faces: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	engineOpts := append([]engine.Option{engine.WithLogger(s.logger)}, s.engineOpts...)
	engineOpts = append(engineOpts, engine.WithRecorder(s.recordWin))

	// Let session manager generate a proper 4-character ID
	session, err := s.sessions.Create("", config, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	session.ConfigID = configID
	session.Engine.OnChange(s.publish(session.ID))

	if err := session.Engine.Start(faces); err != nil {
		_ = s.sessions.Delete(session.ID)
		return nil, fmt.Errorf("failed to start game: %w", err)
	}
	s.metrics.RecordGameStarted(engine.DifficultyTier(config.GridSize))

	s.logger.Info("session created",
		slog.String("session_id", session.ID),
		slog.String("config_id", configID),
		slog.Int("grid_size", config.GridSize),
		slog.Int("players", config.PlayerCount),
	)

	return s.sessionInfo(session), nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	s.sessions.UpdateLastAccessed(sessionID)

	return s.sessionInfo(session), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.sessionInfo(sess))
	}

	return result, nil
}

// DeleteSession removes a session and stops its timers
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sessions.Delete(sessionID)
}

// Flip reveals a card. A rejected flip is not an error; the result says
// why it was ignored.
func (s *gameServiceImpl) Flip(ctx context.Context, sessionID string, slot int) (*FlipResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	s.sessions.UpdateLastAccessed(sessionID)

	state, events, accepted := sess.Engine.FlipWithEvents(slot)
	s.metrics.RecordFlip(accepted)

	result := &FlipResult{
		Accepted:  accepted,
		GameState: state.Redacted(),
		Message:   state.Message,
	}
	if accepted {
		result.Events = flipEvents(events, state, time.Now())
	} else {
		result.Message = rejectReason(state, slot)
	}

	return result, nil
}

// Reset deals a new board for the session
func (s *gameServiceImpl) Reset(ctx context.Context, sessionID string) (*engine.GameState, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	return s.redeal(ctx, sess)
}

// SetPlayerNames renames the players and starts a new game
func (s *gameServiceImpl) SetPlayerNames(ctx context.Context, sessionID string, names []string) (*engine.GameState, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	if err := sess.Engine.SetPlayerNames(s.sanitizeNames(names)); err != nil {
		return nil, err
	}
	return s.redeal(ctx, sess)
}

// GetGameState returns the client view of the current game
func (s *gameServiceImpl) GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Engine.GetState().Redacted(), nil
}

// GetLeaderboard returns the ranking for one grid size
func (s *gameServiceImpl) GetLeaderboard(ctx context.Context, gridSize int) ([]leaderboard.Entry, error) {
	if gridSize <= 0 {
		return nil, fmt.Errorf("%w: grid_size must be positive, got %d", engine.ErrInvalidConfig, gridSize)
	}
	return s.leaderboard.Query(gridSize), nil
}

// GetAllLeaderboard returns the best entries across every tier
func (s *gameServiceImpl) GetAllLeaderboard(ctx context.Context) ([]leaderboard.Entry, error) {
	return s.leaderboard.QueryAll(), nil
}

// ClearLeaderboard removes every leaderboard entry
func (s *gameServiceImpl) ClearLeaderboard(ctx context.Context) error {
	err := s.leaderboard.Clear(ctx)
	s.metrics.RecordLeaderboardWrite(err == nil)
	return err
}

// ListConfigs returns available difficulty presets
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a difficulty preset
func (s *gameServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.GameConfig, error) {
	config, err := s.configs.LoadConfig(configName)
	if err != nil {
		return nil, err
	}
	return config.Clone(), nil
}

// SaveConfig stores a custom preset. Display text is sanitized the same
// way player names are.
func (s *gameServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.GameConfig) (*ConfigInfo, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: config is required", engine.ErrInvalidConfig)
	}
	clean := config.Clone()
	clean.Name = strings.TrimSpace(html.UnescapeString(s.names.Sanitize(clean.Name)))
	clean.Description = strings.TrimSpace(html.UnescapeString(s.names.Sanitize(clean.Description)))
	clean.PlayerNames = s.sanitizeNames(clean.PlayerNames)
	if clean.Name == "" {
		clean.Name = configName
	}

	if err := s.configs.SaveConfig(configName, clean); err != nil {
		return nil, err
	}
	s.logger.Info("preset saved", slog.String("config", configName), slog.Int("grid_size", clean.GridSize))

	return &ConfigInfo{
		Filename:    configName + ".json",
		ConfigID:    configName,
		Name:        clean.Name,
		Description: clean.Description,
		GridSize:    clean.GridSize,
		PlayerCount: clean.PlayerCount,
		Difficulty:  engine.DifficultyTier(clean.GridSize),
	}, nil
}

func (s *gameServiceImpl) getSession(sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	s.sessions.UpdateLastAccessed(sessionID)
	return sess, nil
}

func (s *gameServiceImpl) redeal(ctx context.Context, sess *Session) (*engine.GameState, error) {
	config := sess.Engine.GetConfig()
	faces, err := s.faces.FetchFaces(ctx, engine.TotalPairs(config.GridSize), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch card faces: %w", err)
	}
	if err := sess.Engine.Reset(faces); err != nil {
		return nil, fmt.Errorf("failed to reset game: %w", err)
	}
	s.metrics.RecordGameStarted(engine.DifficultyTier(config.GridSize))
	return sess.Engine.GetState().Redacted(), nil
}

func (s *gameServiceImpl) sessionInfo(sess *Session) *SessionInfo {
	configID := sess.ConfigID
	if configID == "" {
		configID = s.getConfigID(sess.Config.Name)
	}
	return &SessionInfo{
		ID:             sess.ID,
		ConfigName:     configID,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		GameState:      sess.Engine.GetState().Redacted(),
		GameConfig:     sess.Engine.GetConfig(),
	}
}

// recordWin is the engine recorder; it runs after the engine lock is released
func (s *gameServiceImpl) recordWin(name string, score, elapsedSeconds, moveCount, gridSize int) {
	ctx, cancel := context.WithTimeout(context.Background(), leaderboardTimeout)
	defer cancel()

	_, err := s.leaderboard.Record(ctx, name, score, elapsedSeconds, moveCount, gridSize)
	s.metrics.RecordLeaderboardWrite(err == nil)
	if err != nil {
		s.logger.Error("failed to save leaderboard entry",
			slog.String("name", name),
			slog.Int("grid_size", gridSize),
			slog.String("error", err.Error()),
		)
	}
}

// publish returns the engine listener for a session: it counts events and
// pushes the client view to subscribers
func (s *gameServiceImpl) publish(sessionID string) engine.Listener {
	return func(state *engine.GameState, events []engine.Event) {
		for _, ev := range events {
			switch ev.Type {
			case engine.EventMatch:
				s.metrics.RecordMatch()
			case engine.EventMismatch:
				s.metrics.RecordMismatch()
			case engine.EventPowerUp:
				s.metrics.RecordPowerUp()
			case engine.EventWon:
				s.metrics.RecordGameWon(state.DifficultyTier, state.ElapsedSeconds)
			}
		}
		if s.broadcaster != nil {
			s.broadcaster.BroadcastState(sessionID, state.Redacted(), toGameEvents(events, time.Now()))
		}
	}
}

// sanitizeNames strips markup from display names and caps their length
func (s *gameServiceImpl) sanitizeNames(names []string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		clean := strings.TrimSpace(html.UnescapeString(s.names.Sanitize(name)))
		if utf8.RuneCountInString(clean) > MaxNameLength {
			clean = strings.TrimSpace(string([]rune(clean)[:MaxNameLength]))
		}
		out[i] = clean
	}
	return out
}

// flipEvents converts the engine events of an accepted flip and adds a
// pair_pending event when the flip completed a pair. state is the snapshot
// taken with the flip.
func flipEvents(events []engine.Event, state *engine.GameState, now time.Time) []GameEvent {
	out := toGameEvents(events, now)
	for i := range out {
		if out[i].Type == string(engine.EventFlip) && out[i].Message == "" && len(out[i].Slots) == 1 {
			out[i].Message = fmt.Sprintf("Card %d revealed", out[i].Slots[0])
		}
	}

	for _, ev := range events {
		if ev.Type == engine.EventFlip && len(state.PendingReveal) == 2 {
			out = append(out, GameEvent{
				Type:        "pair_pending",
				Message:     fmt.Sprintf("Move %d: cards %d and %d will be compared", state.MoveCount, state.PendingReveal[0], state.PendingReveal[1]),
				Timestamp:   now,
				Slots:       append([]int(nil), state.PendingReveal...),
				PlayerIndex: ev.PlayerIndex,
			})
			break
		}
	}
	return out
}

// rejectReason explains why a flip against state was ignored
func rejectReason(state *engine.GameState, slot int) string {
	switch {
	case state.Phase == engine.PhaseWon:
		return "Game is over. Reset to play again"
	case state.Phase == engine.PhaseResolving || len(state.PendingReveal) >= 2:
		return "Wait for the revealed pair to resolve"
	case state.Phase != engine.PhasePlaying:
		return fmt.Sprintf("Game is not in play (phase %s)", state.Phase)
	case slot < 0 || slot >= len(state.Cards):
		return fmt.Sprintf("Slot %d is out of range (0-%d)", slot, len(state.Cards)-1)
	case state.Cards[slot].IsResolved:
		return fmt.Sprintf("Card %d is already matched", slot)
	case state.Cards[slot].IsRevealed || state.Cards[slot].IsPeeking:
		return fmt.Sprintf("Card %d is already face up", slot)
	default:
		return "Flip ignored"
	}
}
