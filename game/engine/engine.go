package engine

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

// Engine provides the main interface for game operations
type Engine interface {
	// Lifecycle
	Start(faces []CardFace) error
	Reset(faces []CardFace) error
	Close()

	// Player actions
	Flip(slot int) (*GameState, bool)
	FlipWithEvents(slot int) (*GameState, []Event, bool)
	SetPlayerNames(names []string) error

	// Observation
	GetState() *GameState
	OnChange(listener Listener)
	IsWon() bool
	GetPhase() Phase
	GetConfig() *GameConfig
}

// Listener receives a fresh snapshot after every transition. It is called
// without the engine lock held, so it may call back into the engine.
type Listener func(state *GameState, events []Event)

// RecordFunc receives the result of a won game that has a single winner
type RecordFunc func(name string, score, elapsedSeconds, moveCount, gridSize int)

// Option configures a GameEngine
type Option func(*GameEngine)

// WithClock sets the clock used for elapsed time and delays
func WithClock(clock Clock) Option {
	return func(e *GameEngine) {
		e.clock = clock
	}
}

// WithRand sets the random source used for shuffling, power-ups and messages
func WithRand(rng *rand.Rand) Option {
	return func(e *GameEngine) {
		e.rng = rng
	}
}

// WithRecorder sets the callback invoked when a game is won
func WithRecorder(record RecordFunc) Option {
	return func(e *GameEngine) {
		e.recorder = record
	}
}

// WithLogger sets the engine logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *GameEngine) {
		e.logger = logger
	}
}

// GameEngine implements the Engine interface
type GameEngine struct {
	mu       sync.Mutex
	config   *GameConfig
	clock    Clock
	rng      *rand.Rand
	recorder RecordFunc
	listener Listener
	logger   *slog.Logger

	// Callbacks scheduled under an older generation are dropped when they fire.
	generation uint64
	timers     map[uint64]Timer
	timerSeq   uint64

	phase       Phase
	faces       map[string]CardFace
	cards       []Card
	playerNames []string
	players     []Player
	active      int
	pending     []int
	moveCount   int
	comboCount  int
	streakCount int
	startedAt   time.Time
	elapsed     int
	perfect     bool
	speed       bool
	winner      *Winner
	winMessage  string
	lastMatched string
	layout      Layout
	signals     []Signal
}

// NewEngine creates a new game engine with the provided configuration. The
// engine starts idle; call Start with a list of faces to deal a board.
func NewEngine(config *GameConfig, opts ...Option) (*GameEngine, error) {
	if err := ValidateGameConfig(config); err != nil {
		return nil, err
	}

	e := &GameEngine{
		config: config.Clone(),
		clock:  RealClock(),
		logger: slog.Default(),
		timers: make(map[uint64]Timer),
		phase:  PhaseIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		now := uint64(time.Now().UnixNano())
		e.rng = rand.New(rand.NewPCG(now, now>>1|1))
	}
	e.playerNames = e.resolveNames(config.PlayerNames)
	e.players = e.newPlayers()

	return e, nil
}

// OnChange registers the listener notified after every transition
func (e *GameEngine) OnChange(listener Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listener = listener
}

// Start deals the first board. It fails unless the engine is idle.
func (e *GameEngine) Start(faces []CardFace) error {
	e.mu.Lock()
	if e.phase != PhaseIdle {
		phase := e.phase
		e.mu.Unlock()
		return fmt.Errorf("game already started (phase %s)", phase)
	}
	e.dealLocked(faces)
	e.unlockAndPublish([]Event{{Type: EventStart, PlayerIndex: e.active}})
	return nil
}

// Reset abandons the current game, cancels every pending delayed transition
// and deals a new board from faces. Scores, moves and timers start over.
func (e *GameEngine) Reset(faces []CardFace) error {
	e.mu.Lock()
	e.cancelTimersLocked()
	e.generation++
	e.dealLocked(faces)
	e.unlockAndPublish([]Event{{Type: EventReset, PlayerIndex: e.active}})
	return nil
}

// Close cancels pending delayed transitions. The engine stays readable.
func (e *GameEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelTimersLocked()
	e.generation++
}

// Flip reveals the card in slot. It reports false, without changing
// anything, when the flip is not allowed: the game is not in play, the
// slot is out of range, the card is already showing or a pair is pending.
func (e *GameEngine) Flip(slot int) (*GameState, bool) {
	state, _, ok := e.FlipWithEvents(slot)
	return state, ok
}

// FlipWithEvents is Flip that also returns the events of the transition.
// The snapshot is taken under the same lock as the flip, so on a rejected
// flip it shows the state that caused the rejection.
func (e *GameEngine) FlipWithEvents(slot int) (*GameState, []Event, bool) {
	e.mu.Lock()
	events, ok := e.flipLocked(slot)
	if !ok {
		state := e.snapshotLocked()
		e.mu.Unlock()
		return state, nil, false
	}
	return e.unlockAndPublish(events), cloneEvents(events), true
}

// SetPlayerNames replaces the display names. Blank names fall back to
// "Player N". Scores are kept; callers usually reset afterwards.
func (e *GameEngine) SetPlayerNames(names []string) error {
	e.mu.Lock()
	if len(names) > len(e.players) {
		e.mu.Unlock()
		return fmt.Errorf("%w: %d player names given for %d players", ErrInvalidConfig, len(names), len(e.players))
	}
	e.playerNames = e.resolveNames(names)
	e.config.PlayerNames = append([]string(nil), names...)
	for i := range e.players {
		e.players[i].DisplayName = e.playerNames[i]
	}
	e.unlockAndPublish(nil)
	return nil
}

// GetState returns a snapshot of the current game
func (e *GameEngine) GetState() *GameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// IsWon reports whether every pair has been matched
func (e *GameEngine) IsWon() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase == PhaseWon
}

// GetPhase returns the current lifecycle phase
func (e *GameEngine) GetPhase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// GetConfig returns a copy of the engine configuration
func (e *GameEngine) GetConfig() *GameConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config.Clone()
}

func (e *GameEngine) resolveNames(names []string) []string {
	out := make([]string, e.config.PlayerCount)
	for i := range out {
		if i < len(names) && strings.TrimSpace(names[i]) != "" {
			out[i] = strings.TrimSpace(names[i])
		} else {
			out[i] = DefaultPlayerName(i)
		}
	}
	return out
}

func (e *GameEngine) newPlayers() []Player {
	players := make([]Player, len(e.playerNames))
	for i, name := range e.playerNames {
		players[i] = Player{DisplayName: name}
	}
	return players
}

func (e *GameEngine) dealLocked(faces []CardFace) {
	e.phase = PhaseLoading

	pairs := TotalPairs(e.config.GridSize)
	dealt := normalizeFaces(faces, pairs)
	e.faces = make(map[string]CardFace, len(dealt))
	for _, f := range dealt {
		e.faces[f.ID] = f
	}
	e.cards = buildBoard(dealt, e.rng)
	if slot := tagPowerUp(e.cards, e.config.PowerUpChance, e.rng); slot >= 0 {
		e.logger.Debug("power-up placed", slog.Int("slot", slot))
	}

	e.players = e.newPlayers()
	e.active = 0
	e.pending = nil
	e.moveCount = 0
	e.comboCount = 0
	e.streakCount = 0
	e.elapsed = 0
	e.perfect = false
	e.speed = false
	e.winner = nil
	e.winMessage = ""
	e.lastMatched = ""
	e.signals = nil
	e.layout = layouts[e.rng.IntN(len(layouts))]
	e.startedAt = e.clock.Now()

	e.phase = PhasePlaying
	e.addMessageLocked(pickMessage(e.rng, messageStart))
}

func (e *GameEngine) flipLocked(slot int) ([]Event, bool) {
	if e.phase != PhasePlaying {
		return nil, false
	}
	if slot < 0 || slot >= len(e.cards) {
		return nil, false
	}
	if len(e.pending) >= 2 {
		return nil, false
	}
	card := &e.cards[slot]
	if card.IsRevealed || card.IsResolved || card.IsPeeking {
		return nil, false
	}

	if card.IsPowerUp {
		return e.activatePowerUpLocked(slot), true
	}

	card.IsRevealed = true
	e.pending = append(e.pending, slot)
	events := []Event{{Type: EventFlip, Slots: []int{slot}, PlayerIndex: e.active}}

	if len(e.pending) == 2 {
		e.moveCount++
		e.phase = PhaseResolving
		e.scheduleLocked(e.config.Timings.ResolveDelay(), e.resolveLocked)
	}
	return events, true
}

// activatePowerUpLocked consumes the power-up and shows every hidden card
// for a short while. It does not count as a move.
func (e *GameEngine) activatePowerUpLocked(slot int) []Event {
	e.cards[slot].IsPowerUp = false
	e.players[e.active].PowerUpsCollected++

	for i := range e.cards {
		c := &e.cards[i]
		if !c.IsResolved && !c.IsRevealed {
			c.IsPeeking = true
		}
	}

	now := e.clock.Now()
	e.signals = append(e.signals, newSignal(SignalPowerUp, now, []int{slot}, 0, ""))
	msg := pickMessage(e.rng, messagePowerUp)
	e.addMessageLocked(msg)
	e.scheduleLocked(e.config.Timings.PowerUpReveal(), e.endPeekLocked)

	return []Event{{Type: EventPowerUp, Slots: []int{slot}, PlayerIndex: e.active, Message: msg}}
}

func (e *GameEngine) endPeekLocked() []Event {
	var slots []int
	for i := range e.cards {
		if e.cards[i].IsPeeking {
			e.cards[i].IsPeeking = false
			slots = append(slots, i)
		}
	}
	return []Event{{Type: EventPeekEnd, Slots: slots, PlayerIndex: e.active}}
}

func (e *GameEngine) resolveLocked() []Event {
	if len(e.pending) != 2 {
		return nil
	}
	slots := []int{e.pending[0], e.pending[1]}
	e.pending = nil
	first, second := &e.cards[slots[0]], &e.cards[slots[1]]
	player := &e.players[e.active]
	now := e.clock.Now()

	if first.FaceID != second.FaceID {
		player.CurrentStreak = 0
		e.comboCount = 0
		e.streakCount = 0
		e.signals = append(e.signals, newSignal(SignalShake, now, slots, 0, ""))
		e.addMessageLocked(mismatchMessage(e.rng, e.faces[first.FaceID].DisplayName, e.faces[second.FaceID].DisplayName))

		// The pair stays visible until the revert fires; the phase stays
		// resolving so nothing else can be flipped meanwhile.
		e.scheduleLocked(e.config.Timings.MismatchDelay(), func() []Event {
			return e.revertLocked(slots)
		})
		return []Event{{Type: EventMismatch, Slots: slots, PlayerIndex: e.active}}
	}

	first.IsResolved = true
	second.IsResolved = true
	player.Score++
	player.CurrentStreak++
	e.comboCount++
	e.streakCount++
	name := e.faces[first.FaceID].DisplayName
	e.lastMatched = name

	events := []Event{{Type: EventMatch, Slots: slots, PlayerIndex: e.active, Message: name, Count: player.Score}}
	e.signals = append(e.signals, newSignal(SignalMatchPulse, now, slots, 0, ""))
	if e.streakCount >= StreakThreshold {
		label := StreakLabel(e.streakCount)
		e.signals = append(e.signals, newSignal(SignalStreak, now, nil, e.streakCount, label))
		events = append(events, Event{Type: EventStreak, PlayerIndex: e.active, Count: e.streakCount, Message: label})
	}
	if e.comboCount > 1 {
		e.signals = append(e.signals, newSignal(SignalCombo, now, nil, e.comboCount, ""))
	}
	e.addMessageLocked(matchMessage(e.rng, e.streakCount, name))

	if CountResolved(e.cards) == len(e.cards) {
		return append(events, e.winLocked())
	}
	e.phase = PhasePlaying
	return events
}

func (e *GameEngine) revertLocked(slots []int) []Event {
	for _, slot := range slots {
		if !e.cards[slot].IsResolved {
			e.cards[slot].IsRevealed = false
		}
	}
	if len(e.players) > 1 {
		e.active = (e.active + 1) % len(e.players)
	}
	e.phase = PhasePlaying
	return []Event{{Type: EventRevert, Slots: slots, PlayerIndex: e.active}}
}

func (e *GameEngine) winLocked() Event {
	e.elapsed = e.elapsedLocked()
	e.phase = PhaseWon

	e.perfect = e.moveCount <= TotalPairs(e.config.GridSize)
	e.speed = e.elapsed < SpeedBonusSeconds
	if e.perfect {
		e.players[e.active].Score += PerfectGameBonus
	}
	if e.speed {
		e.players[e.active].Score += SpeedBonus
	}
	e.winner = e.pickWinnerLocked()

	// Clear the banners left over from the last match.
	kept := e.signals[:0]
	for _, s := range e.signals {
		switch s.Kind {
		case SignalMessage, SignalCombo, SignalStreak:
			continue
		}
		kept = append(kept, s)
	}
	e.signals = append(kept, newSignal(SignalFireworks, e.clock.Now(), nil, 0, ""))
	e.winMessage = pickMessage(e.rng, messageWon) + bonusSuffix(e.perfect, e.speed)

	e.logger.Info("game won",
		slog.Int("grid_size", e.config.GridSize),
		slog.Int("moves", e.moveCount),
		slog.Int("elapsed_seconds", e.elapsed),
		slog.Bool("tie", e.winner.Tie))

	return Event{Type: EventWon, PlayerIndex: e.winner.PlayerIndex, Count: e.winner.Score, Message: e.winMessage}
}

func (e *GameEngine) pickWinnerLocked() *Winner {
	best := 0
	for i, p := range e.players {
		if p.Score > e.players[best].Score {
			best = i
		}
	}
	w := &Winner{Name: e.players[best].DisplayName, Score: e.players[best].Score, PlayerIndex: best}
	for i, p := range e.players {
		if i != best && p.Score == w.Score {
			w.Tie = true
		}
	}
	return w
}

func (e *GameEngine) addMessageLocked(msg string) {
	kept := e.signals[:0]
	for _, s := range e.signals {
		if s.Kind != SignalMessage {
			kept = append(kept, s)
		}
	}
	e.signals = append(kept, newSignal(SignalMessage, e.clock.Now(), nil, 0, msg))
}

func (e *GameEngine) elapsedLocked() int {
	if e.phase == PhaseWon {
		return e.elapsed
	}
	if e.phase == PhaseIdle || e.startedAt.IsZero() {
		return 0
	}
	d := e.clock.Now().Sub(e.startedAt)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

// scheduleLocked runs fn under the engine lock after d, unless the game has
// been reset or closed in the meantime.
func (e *GameEngine) scheduleLocked(d time.Duration, fn func() []Event) {
	gen := e.generation
	e.timerSeq++
	id := e.timerSeq
	e.timers[id] = e.clock.AfterFunc(d, func() {
		e.fire(gen, id, fn)
	})
}

func (e *GameEngine) fire(gen, id uint64, fn func() []Event) {
	e.mu.Lock()
	if gen != e.generation {
		e.mu.Unlock()
		return
	}
	delete(e.timers, id)
	events := fn()
	e.unlockAndPublish(events)
}

func (e *GameEngine) cancelTimersLocked() {
	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
	}
}

// unlockAndPublish snapshots the state, releases the lock and then hands
// the snapshot to the recorder and listener.
func (e *GameEngine) unlockAndPublish(events []Event) *GameState {
	state := e.snapshotLocked()
	listener, recorder := e.listener, e.recorder
	e.mu.Unlock()

	if recorder != nil && state.Winner != nil && !state.Winner.Tie {
		for _, ev := range events {
			if ev.Type == EventWon {
				recorder(state.Winner.Name, state.Winner.Score, state.ElapsedSeconds, state.MoveCount, state.GridSize)
			}
		}
	}
	if listener != nil {
		listener(state, events)
	}
	return state
}

func (e *GameEngine) snapshotLocked() *GameState {
	now := e.clock.Now()

	cards := make([]Card, len(e.cards))
	for i, c := range e.cards {
		if f, ok := e.faces[c.FaceID]; ok {
			face := f
			c.Face = &face
		}
		cards[i] = c
	}

	live := e.signals[:0]
	signals := make([]Signal, 0, len(e.signals))
	message := ""
	for _, s := range e.signals {
		if !s.ExpiresAt.After(now) {
			continue
		}
		live = append(live, s)
		cp := s
		cp.Slots = append([]int(nil), s.Slots...)
		signals = append(signals, cp)
		if s.Kind == SignalMessage {
			message = s.Message
		}
	}
	e.signals = live
	if message == "" && e.phase == PhaseWon {
		message = e.winMessage
	}

	var winner *Winner
	if e.winner != nil {
		w := *e.winner
		winner = &w
	}

	elapsed := e.elapsedLocked()
	return &GameState{
		Phase:             e.phase,
		GridSize:          e.config.GridSize,
		DifficultyTier:    DifficultyTier(e.config.GridSize),
		Cards:             cards,
		Players:           append([]Player(nil), e.players...),
		ActivePlayerIndex: e.active,
		PendingReveal:     append([]int{}, e.pending...),
		MoveCount:         e.moveCount,
		ElapsedSeconds:    elapsed,
		FormattedTime:     FormatTime(elapsed),
		ComboCount:        e.comboCount,
		StreakCount:       e.streakCount,
		MatchedPairs:      CountResolved(e.cards) / 2,
		TotalPairs:        TotalPairs(e.config.GridSize),
		IsWon:             e.phase == PhaseWon,
		PerfectGameBonus:  e.perfect,
		SpeedBonus:        e.speed,
		Winner:            winner,
		LastMatched:       e.lastMatched,
		Message:           message,
		Signals:           signals,
		Layout:            e.layout,
		Generation:        e.generation,
		StartedAt:         e.startedAt,
	}
}

var _ Engine = (*GameEngine)(nil)
