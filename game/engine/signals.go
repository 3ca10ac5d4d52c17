package engine

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

// SignalKind names a transient presentation cue
type SignalKind string

const (
	SignalMatchPulse SignalKind = "match_pulse"
	SignalShake      SignalKind = "shake"
	SignalCombo      SignalKind = "combo"
	SignalStreak     SignalKind = "streak"
	SignalFireworks  SignalKind = "fireworks"
	SignalPowerUp    SignalKind = "power_up"
	SignalMessage    SignalKind = "message"
)

var signalDurations = map[SignalKind]time.Duration{
	SignalMatchPulse: 1500 * time.Millisecond,
	SignalShake:      600 * time.Millisecond,
	SignalCombo:      2000 * time.Millisecond,
	SignalStreak:     2500 * time.Millisecond,
	SignalFireworks:  5000 * time.Millisecond,
	SignalPowerUp:    DefaultPowerUpReveal,
	SignalMessage:    3000 * time.Millisecond,
}

// SignalDuration returns how long a signal of the given kind stays active
func SignalDuration(kind SignalKind) time.Duration {
	return signalDurations[kind]
}

// Signal is a cue a presentation layer may animate. Signals are not game
// state; they expire on their own and nothing reads them back.
type Signal struct {
	Kind       SignalKind `json:"kind"`
	Slots      []int      `json:"slots,omitempty"`
	Count      int        `json:"count,omitempty"`
	Message    string     `json:"message,omitempty"`
	DurationMs int64      `json:"duration_ms"`
	ExpiresAt  time.Time  `json:"expires_at"`
}

func newSignal(kind SignalKind, now time.Time, slots []int, count int, message string) Signal {
	d := SignalDuration(kind)
	return Signal{
		Kind:       kind,
		Slots:      append([]int(nil), slots...),
		Count:      count,
		Message:    message,
		DurationMs: d.Milliseconds(),
		ExpiresAt:  now.Add(d),
	}
}

type messageKind int

const (
	messageMatch messageKind = iota
	messageNoMatch
	messageStreak
	messageWon
	messagePowerUp
	messageStart
)

var messageCatalog = map[messageKind][]string{
	messageMatch: {
		"🎉 Gotcha! A perfect match!",
		"⚡ Electric connection!",
		"🔥 Blazing fast!",
		"💫 Two peas in a Pokeball!",
		"🌟 You're becoming a legend!",
		"🎯 Bullseye! Trainer skills activated!",
		"🚀 Blast off! Another match!",
		"💎 Diamond tier memory!",
	},
	messageNoMatch: {
		"💭 Not quite, trainer!",
		"🤔 No Pokeball this time!",
		"😅 Even masters miss sometimes!",
		"🎲 Nope! Roll again!",
		"🌪️ Whiff! Better luck next flip!",
		"🧩 That piece doesn't fit yet!",
	},
	messageStreak: {
		"🔥 ON FIRE! %d matches in a row!",
		"⚡ LIGHTNING STREAK! %d straight!",
		"🌟 UNSTOPPABLE! %d match run!",
		"👑 ROYAL! %d majestic matches!",
	},
	messageWon: {
		"🏆 CHAMPION! You caught 'em all!",
		"👑 LEGENDARY! The very best, like no one ever was!",
		"🎊 Pokemon Master status achieved!",
		"🎉 Professor Oak would be proud!",
		"💎 FLAWLESS! Straight to the Hall of Fame!",
	},
	messagePowerUp: {
		"💥 POWER-UP! Double vision mode!",
		"⚡ ELECTRIC BOOST! Cards revealed briefly!",
		"🔮 MYSTIC SIGHT! Peek at the board!",
	},
	messageStart: {
		"Find all the matching pairs!",
		"Gotta match 'em all!",
	},
}

func pickMessage(rng *rand.Rand, kind messageKind) string {
	msgs := messageCatalog[kind]
	return msgs[rng.IntN(len(msgs))]
}

// StreakLabel returns the banner text for a streak, or "" below the threshold
func StreakLabel(count int) string {
	switch {
	case count >= LegendaryStreak:
		return fmt.Sprintf("🔥 LEGENDARY %dx STREAK! 🔥", count)
	case count >= StreakThreshold:
		return fmt.Sprintf("⚡ %dx STREAK! ⚡", count)
	}
	return ""
}

// bonusSuffix describes the bonuses awarded at the end of a game
func bonusSuffix(perfect, speed bool) string {
	switch {
	case perfect && speed:
		return " 🌟 PERFECT + SPEED BONUS! 🌟"
	case perfect:
		return " 💎 PERFECT GAME BONUS! 💎"
	case speed:
		return " ⚡ SPEED BONUS! ⚡"
	}
	return ""
}

func matchMessage(rng *rand.Rand, streak int, name string) string {
	msg := pickMessage(rng, messageMatch)
	if streak >= StreakThreshold {
		msg = fmt.Sprintf(pickMessage(rng, messageStreak), streak)
	}
	return fmt.Sprintf("%s - %s matched!", msg, strings.ToUpper(name))
}

func mismatchMessage(rng *rand.Rand, first, second string) string {
	return fmt.Sprintf("%s - %s ≠ %s", pickMessage(rng, messageNoMatch), first, second)
}
