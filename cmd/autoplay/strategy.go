package main

import (
	"github.com/wricardo/pokemon-memory-game/game/engine"
)

// Memory is a perfect-recall player. It remembers every face it has seen,
// including faces shown by mismatches and power-up peeks, and never spends
// a move on a pair it could have matched.
type Memory struct {
	known map[int]string // slot -> face ID
}

// NewMemory creates an empty Memory
func NewMemory() *Memory {
	return &Memory{known: make(map[int]string)}
}

// Reset forgets every face, for a new board
func (m *Memory) Reset() {
	m.known = make(map[int]string)
}

// Known returns the number of slots whose face is remembered
func (m *Memory) Known() int {
	return len(m.known)
}

// Observe records every face visible in a redacted snapshot
func (m *Memory) Observe(state *engine.GameState) {
	if state == nil {
		return
	}
	for _, c := range state.Cards {
		if c.FaceID != "" {
			m.known[c.SlotID] = c.FaceID
		}
	}
}

func flippable(c engine.Card) bool {
	return !c.IsResolved && !c.IsRevealed && !c.IsPeeking
}

// NextSlot picks the slot to flip next. It returns false when the board
// does not accept flips.
func (m *Memory) NextSlot(state *engine.GameState) (int, bool) {
	if state == nil || state.Phase != engine.PhasePlaying {
		return 0, false
	}

	// Second card of a turn: take the partner if we know it
	if len(state.PendingReveal) == 1 {
		first := state.PendingReveal[0]
		if face, ok := m.known[first]; ok {
			if slot, ok := m.partner(state, first, face); ok {
				return slot, true
			}
		}
		if slot, ok := m.firstUnknown(state); ok {
			return slot, true
		}
		return firstFlippable(state)
	}

	if slot, ok := m.knownPair(state); ok {
		return slot, true
	}
	if slot, ok := m.firstUnknown(state); ok {
		return slot, true
	}
	return firstFlippable(state)
}

// partner finds a flippable slot other than first showing face
func (m *Memory) partner(state *engine.GameState, first int, face string) (int, bool) {
	for i, c := range state.Cards {
		if i != first && flippable(c) && m.known[i] == face {
			return i, true
		}
	}
	return 0, false
}

// knownPair returns the lower slot of the first face known in two flippable slots
func (m *Memory) knownPair(state *engine.GameState) (int, bool) {
	seen := make(map[string]int)
	for i, c := range state.Cards {
		if !flippable(c) {
			continue
		}
		face, ok := m.known[i]
		if !ok {
			continue
		}
		if first, ok := seen[face]; ok {
			return first, true
		}
		seen[face] = i
	}
	return 0, false
}

func (m *Memory) firstUnknown(state *engine.GameState) (int, bool) {
	for i, c := range state.Cards {
		if _, ok := m.known[i]; !ok && flippable(c) {
			return i, true
		}
	}
	return 0, false
}

func firstFlippable(state *engine.GameState) (int, bool) {
	for i, c := range state.Cards {
		if flippable(c) {
			return i, true
		}
	}
	return 0, false
}
