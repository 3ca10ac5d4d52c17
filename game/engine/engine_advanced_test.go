package engine

import (
	"strings"
	"testing"
	"time"
)

func findPowerUp(t *testing.T, state *GameState) int {
	t.Helper()
	for _, c := range state.Cards {
		if c.IsPowerUp {
			return c.SlotID
		}
	}
	t.Fatal("Expected a power-up card on the board")
	return -1
}

func hasSignal(state *GameState, kind SignalKind) (Signal, bool) {
	for _, s := range state.Signals {
		if s.Kind == kind {
			return s, true
		}
	}
	return Signal{}, false
}

func TestEngine_PowerUpPeek(t *testing.T) {
	config := createTestConfig(4, 1)
	config.PowerUpChance = 1
	e, clock := newTestEngine(t, config)

	powerUp := findPowerUp(t, e.GetState())
	state, ok := e.Flip(powerUp)
	if !ok {
		t.Fatal("Expected power-up flip to be accepted")
	}
	if state.MoveCount != 0 {
		t.Errorf("Expected power-up not to count as a move, got %d", state.MoveCount)
	}
	if state.Players[0].PowerUpsCollected != 1 {
		t.Errorf("Expected 1 power-up collected, got %d", state.Players[0].PowerUpsCollected)
	}
	if state.Cards[powerUp].IsPowerUp {
		t.Error("Expected power-up tag to be consumed")
	}
	if len(state.PendingReveal) != 0 {
		t.Errorf("Expected no pending cards, got %v", state.PendingReveal)
	}
	for _, c := range state.Cards {
		if !c.IsPeeking {
			t.Errorf("Expected slot %d to peek", c.SlotID)
		}
		if c.IsRevealed {
			t.Errorf("Expected slot %d not to count as revealed", c.SlotID)
		}
	}
	if _, ok := hasSignal(state, SignalPowerUp); !ok {
		t.Error("Expected a power-up signal")
	}

	other := (powerUp + 1) % len(state.Cards)
	if _, ok := e.Flip(other); ok {
		t.Error("Expected flips to be rejected while cards are peeking")
	}

	clock.Advance(DefaultPowerUpReveal)
	state = e.GetState()
	for _, c := range state.Cards {
		if c.IsPeeking {
			t.Errorf("Expected slot %d to stop peeking", c.SlotID)
		}
	}

	state, ok = e.Flip(powerUp)
	if !ok {
		t.Fatal("Expected the former power-up card to flip normally")
	}
	if !state.Cards[powerUp].IsRevealed || len(state.PendingReveal) != 1 {
		t.Errorf("Expected slot %d to be pending", powerUp)
	}
}

func TestEngine_PowerUpKeepsPendingCard(t *testing.T) {
	config := createTestConfig(4, 1)
	config.PowerUpChance = 1
	e, clock := newTestEngine(t, config)

	powerUp := findPowerUp(t, e.GetState())
	first := (powerUp + 1) % 16
	if _, ok := e.Flip(first); !ok {
		t.Fatal("Expected first flip to be accepted")
	}
	state, ok := e.Flip(powerUp)
	if !ok {
		t.Fatal("Expected power-up flip to be accepted")
	}
	if len(state.PendingReveal) != 1 || state.PendingReveal[0] != first {
		t.Errorf("Expected pending list [%d], got %v", first, state.PendingReveal)
	}
	if state.Cards[first].IsPeeking || !state.Cards[first].IsRevealed {
		t.Error("Expected the pending card to stay revealed, not peeking")
	}
	assertRevealInvariant(t, state)

	clock.Advance(DefaultPowerUpReveal)
	if got := e.GetState(); !got.Cards[first].IsRevealed {
		t.Error("Expected the pending card to survive the end of the peek")
	}
}

func TestEngine_NoPowerUpOnSmallBoards(t *testing.T) {
	config := createTestConfig(2, 1)
	config.PowerUpChance = 1
	e, _ := newTestEngine(t, config)
	for _, c := range e.GetState().Cards {
		if c.IsPowerUp {
			t.Errorf("Expected no power-up on a 4 card board, found one at %d", c.SlotID)
		}
	}
}

func TestEngine_StreaksAndCombos(t *testing.T) {
	e, clock := newTestEngine(t, createTestConfig(4, 1))
	pairs := sortedPairs(e.GetState())

	flipPair(t, e, clock, pairs[0][0], pairs[0][1])
	state := e.GetState()
	if _, ok := hasSignal(state, SignalCombo); ok {
		t.Error("Expected no combo signal after a single match")
	}
	if _, ok := hasSignal(state, SignalMatchPulse); !ok {
		t.Error("Expected a match pulse signal")
	}
	if !strings.Contains(state.Message, "MON") {
		t.Errorf("Expected match message to name the face, got %q", state.Message)
	}

	flipPair(t, e, clock, pairs[1][0], pairs[1][1])
	if s, ok := hasSignal(e.GetState(), SignalCombo); !ok || s.Count != 2 {
		t.Errorf("Expected combo signal with count 2, got %+v", s)
	}

	flipPair(t, e, clock, pairs[2][0], pairs[2][1])
	state = e.GetState()
	if state.StreakCount != 3 || state.ComboCount != 3 || state.Players[0].CurrentStreak != 3 {
		t.Errorf("Expected streak 3, got streak=%d combo=%d player=%d",
			state.StreakCount, state.ComboCount, state.Players[0].CurrentStreak)
	}
	s, ok := hasSignal(state, SignalStreak)
	if !ok || s.Count != 3 || s.Message != StreakLabel(3) {
		t.Errorf("Expected streak signal for 3, got %+v", s)
	}
	if s.DurationMs != 2500 {
		t.Errorf("Expected streak signal to last 2500ms, got %d", s.DurationMs)
	}
	if state.LastMatched == "" {
		t.Error("Expected last matched name to be set")
	}

	e.Flip(pairs[3][0])
	e.Flip(pairs[4][0])
	clock.Advance(DefaultResolveDelay)
	state = e.GetState()
	if state.StreakCount != 0 || state.ComboCount != 0 || state.Players[0].CurrentStreak != 0 {
		t.Errorf("Expected mismatch to reset streaks, got streak=%d combo=%d", state.StreakCount, state.ComboCount)
	}
	if s, ok := hasSignal(state, SignalShake); !ok || len(s.Slots) != 2 {
		t.Errorf("Expected a shake signal on both cards, got %+v", s)
	}
	if !strings.Contains(state.Message, "≠") {
		t.Errorf("Expected mismatch message, got %q", state.Message)
	}
	if state.Players[0].Score != 3 {
		t.Errorf("Expected score to stay 3, got %d", state.Players[0].Score)
	}

	clock.Advance(DefaultMismatchDelay)
	if state = e.GetState(); state.ActivePlayerIndex != 0 {
		t.Errorf("Expected a solo player to keep the turn, got %d", state.ActivePlayerIndex)
	}
}

func TestEngine_SignalsExpire(t *testing.T) {
	e, clock := newTestEngine(t, createTestConfig(4, 1))
	pairs := sortedPairs(e.GetState())
	flipPair(t, e, clock, pairs[0][0], pairs[0][1])

	clock.Advance(SignalDuration(SignalMessage))
	state := e.GetState()
	if len(state.Signals) != 0 {
		t.Errorf("Expected all signals to expire, got %+v", state.Signals)
	}
	if state.Message != "" {
		t.Errorf("Expected message to clear, got %q", state.Message)
	}
}

func TestEngine_ListenerReceivesEvents(t *testing.T) {
	e, clock := newTestEngine(t, createTestConfig(2, 1))

	var states []*GameState
	var events []EventType
	e.OnChange(func(state *GameState, evs []Event) {
		// Calling back into the engine must not deadlock.
		_ = e.GetPhase()
		states = append(states, state)
		for _, ev := range evs {
			events = append(events, ev.Type)
		}
	})

	pairs := sortedPairs(e.GetState())
	flipPair(t, e, clock, pairs[0][0], pairs[0][1])
	flipPair(t, e, clock, pairs[1][0], pairs[1][1])

	want := []EventType{EventFlip, EventFlip, EventMatch, EventFlip, EventFlip, EventMatch, EventWon}
	if len(events) != len(want) {
		t.Fatalf("Expected events %v, got %v", want, events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("Event %d: expected %s, got %s", i, want[i], events[i])
		}
	}
	if last := states[len(states)-1]; !last.IsWon {
		t.Error("Expected the last published snapshot to be won")
	}
	if _, ok := hasSignal(states[len(states)-1], SignalFireworks); !ok {
		t.Error("Expected fireworks on win")
	}
}

func TestEngine_StreakEvent(t *testing.T) {
	e, clock := newTestEngine(t, createTestConfig(4, 1))
	var streaks []int
	e.OnChange(func(_ *GameState, evs []Event) {
		for _, ev := range evs {
			if ev.Type == EventStreak {
				streaks = append(streaks, ev.Count)
			}
		}
	})

	for _, p := range sortedPairs(e.GetState())[:5] {
		flipPair(t, e, clock, p[0], p[1])
	}
	if len(streaks) != 3 || streaks[0] != 3 || streaks[2] != 5 {
		t.Errorf("Expected streak events 3,4,5, got %v", streaks)
	}
	if !strings.Contains(StreakLabel(5), "LEGENDARY") {
		t.Errorf("Expected legendary label at 5, got %q", StreakLabel(5))
	}
}

func TestEngine_CloseStopsTimers(t *testing.T) {
	e, clock := newTestEngine(t, createTestConfig(4, 1))
	pairs := sortedPairs(e.GetState())
	e.Flip(pairs[0][0])
	e.Flip(pairs[0][1])

	e.Close()
	clock.Advance(time.Second)
	state := e.GetState()
	if state.MatchedPairs != 0 {
		t.Errorf("Expected no resolution after Close, got %d matched", state.MatchedPairs)
	}
	if state.Phase != PhaseResolving {
		t.Errorf("Expected phase to stay %s, got %s", PhaseResolving, state.Phase)
	}
}

func TestEngine_FlipWithEventsReportsTransition(t *testing.T) {
	config := createTestConfig(4, 1)
	config.PowerUpChance = 1
	e, clock := newTestEngine(t, config)

	powerUp := findPowerUp(t, e.GetState())
	state, events, ok := e.FlipWithEvents(powerUp)
	if !ok {
		t.Fatal("Expected power-up flip to be accepted")
	}
	if len(events) != 1 || events[0].Type != EventPowerUp {
		t.Fatalf("Expected one power_up event, got %+v", events)
	}
	if state.Players[0].PowerUpsCollected != 1 {
		t.Errorf("Expected snapshot taken with the flip, got %d power-ups", state.Players[0].PowerUpsCollected)
	}

	_, events, ok = e.FlipWithEvents((powerUp + 1) % len(state.Cards))
	if ok || events != nil {
		t.Errorf("Expected rejected flip without events, got %+v", events)
	}

	clock.Advance(DefaultPowerUpReveal)
	state, events, ok = e.FlipWithEvents(powerUp)
	if !ok {
		t.Fatal("Expected the former power-up card to flip normally")
	}
	if len(events) != 1 || events[0].Type != EventFlip || events[0].Slots[0] != powerUp {
		t.Errorf("Expected one flip event for slot %d, got %+v", powerUp, events)
	}
	events[0].Slots[0] = -1
	if state.PendingReveal[0] != powerUp {
		t.Error("Expected returned events not to alias engine state")
	}
}
