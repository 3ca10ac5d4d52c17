package engine

import "fmt"

// FormatTime renders whole seconds as m:ss
func FormatTime(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// CountResolved counts the resolved cards on a board
func CountResolved(cards []Card) int {
	count := 0
	for _, c := range cards {
		if c.IsResolved {
			count++
		}
	}
	return count
}

// DefaultPlayerName is the name used when a player has not chosen one
func DefaultPlayerName(index int) string {
	return fmt.Sprintf("Player %d", index+1)
}

// PairSlots groups the slots of a board by face. It needs an unredacted
// snapshot.
func PairSlots(cards []Card) map[string][]int {
	pairs := make(map[string][]int)
	for _, c := range cards {
		if c.FaceID == "" {
			continue
		}
		pairs[c.FaceID] = append(pairs[c.FaceID], c.SlotID)
	}
	return pairs
}

func cloneEvents(events []Event) []Event {
	out := make([]Event, len(events))
	for i, ev := range events {
		ev.Slots = append([]int(nil), ev.Slots...)
		out[i] = ev
	}
	return out
}
