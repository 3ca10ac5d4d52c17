package engine

import (
	"fmt"
	"math/rand/v2"
)

// Image locations used for placeholder faces
const (
	SpriteURLFormat  = "https://raw.githubusercontent.com/PokeAPI/sprites/master/sprites/pokemon/%s.png"
	ArtworkURLFormat = "https://raw.githubusercontent.com/PokeAPI/sprites/master/sprites/pokemon/other/official-artwork/%s.png"

	PlaceholderCategory = "normal"
)

// PlaceholderFace builds a face from its identifier alone. It is used when
// a face cannot be fetched or a face list is too short.
func PlaceholderFace(id string) CardFace {
	return CardFace{
		ID:          id,
		DisplayName: "Pokemon " + id,
		Images: ImageRefs{
			Primary:  fmt.Sprintf(ArtworkURLFormat, id),
			Fallback: fmt.Sprintf(SpriteURLFormat, id),
		},
		Category: PlaceholderCategory,
	}
}

// normalizeFaces returns exactly n faces with distinct IDs. Blank and
// duplicate IDs are skipped and missing faces are filled with placeholders.
func normalizeFaces(faces []CardFace, n int) []CardFace {
	seen := make(map[string]bool, n)
	out := make([]CardFace, 0, n)
	for _, f := range faces {
		if len(out) == n {
			break
		}
		if f.ID == "" || seen[f.ID] {
			continue
		}
		if f.DisplayName == "" {
			f.DisplayName = "Pokemon " + f.ID
		}
		seen[f.ID] = true
		out = append(out, f)
	}
	for i := 1; len(out) < n; i++ {
		id := fmt.Sprintf("placeholder-%d", i)
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, PlaceholderFace(id))
	}
	return out
}

// buildBoard lays out two cards per face in random order. Slot IDs match
// board positions.
func buildBoard(faces []CardFace, rng *rand.Rand) []Card {
	cards := make([]Card, 0, len(faces)*2)
	for _, f := range faces {
		cards = append(cards, Card{FaceID: f.ID}, Card{FaceID: f.ID})
	}
	rng.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
	for i := range cards {
		cards[i].SlotID = i
	}
	return cards
}

// tagPowerUp marks at most one card as a power-up and returns its slot, or -1
func tagPowerUp(cards []Card, chance float64, rng *rand.Rand) int {
	if len(cards) <= PowerUpMinCards || chance <= 0 {
		return -1
	}
	if rng.Float64() >= chance {
		return -1
	}
	slot := rng.IntN(len(cards))
	cards[slot].IsPowerUp = true
	return slot
}
