// Command autoplay plays memory games against a running server through the
// REST API with a perfect-memory strategy. It is a smoke and load tool: a
// healthy server lets it clear every board within two moves per pair.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/pokemon-memory-game/game/engine"
	"github.com/wricardo/pokemon-memory-game/game/service"
)

// ErrFlipBudget is returned when a game is not won within the flip budget
var ErrFlipBudget = errors.New("flip budget exhausted before the board was cleared")

// playOptions tunes a single game
type playOptions struct {
	MaxFlips     int
	Delay        time.Duration
	PollInterval time.Duration
}

// gameSummary describes one finished game
type gameSummary struct {
	Flips int
	State *engine.GameState
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "autoplay: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "autoplay",
		Usage: "play memory games through the REST API with perfect recall",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "game server URL", Sources: cli.EnvVars("MEMORY_URL")},
			&cli.StringFlag{Name: "config", Usage: "preset to play (easy, medium, hard, duel)"},
			&cli.IntFlag{Name: "grid-size", Usage: "custom board side length"},
			&cli.IntFlag{Name: "players", Usage: "number of players (1 or 2)"},
			&cli.StringSliceFlag{Name: "name", Usage: "player display name, repeat for two players"},
			&cli.IntFlag{Name: "games", Value: 1, Usage: "number of games to play on the session"},
			&cli.IntFlag{Name: "max-flips", Value: 1000, Usage: "give up on a game after this many flips"},
			&cli.DurationFlag{Name: "delay", Usage: "pause between flips"},
			&cli.DurationFlag{Name: "poll", Value: 200 * time.Millisecond, Usage: "state poll interval while a pair resolves"},
			&cli.BoolFlag{Name: "v", Usage: "log every flip"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			level := slog.LevelInfo
			if cmd.Bool("v") {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			client := NewClient(cmd.String("url"))
			opts := playOptions{
				MaxFlips:     cmd.Int("max-flips"),
				Delay:        cmd.Duration("delay"),
				PollInterval: cmd.Duration("poll"),
			}
			create := service.CreateOptions{
				ConfigID:    cmd.String("config"),
				GridSize:    cmd.Int("grid-size"),
				PlayerCount: cmd.Int("players"),
				PlayerNames: cmd.StringSlice("name"),
			}

			summaries, err := playGames(ctx, client, create, cmd.Int("games"), opts, logger)
			for i, s := range summaries {
				logSummary(logger, i+1, s)
			}
			return err
		},
	}
}

// playGames creates one session and plays games on it, resetting between them
func playGames(ctx context.Context, client *Client, create service.CreateOptions, games int, opts playOptions, logger *slog.Logger) ([]gameSummary, error) {
	state, err := client.CreateSession(ctx, create)
	if err != nil {
		return nil, err
	}
	logger.Info("session created", "session", client.SessionID(),
		"grid", state.GridSize, "pairs", state.TotalPairs, "players", len(state.Players))

	mem := NewMemory()
	summaries := make([]gameSummary, 0, games)
	for g := 0; g < games; g++ {
		if g > 0 {
			if state, err = client.Reset(ctx); err != nil {
				return summaries, err
			}
		}
		mem.Reset()

		summary, err := playGame(ctx, client, mem, state, opts, logger)
		if err != nil {
			return summaries, fmt.Errorf("game %d: %w", g+1, err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// playGame flips cards until the board is won
func playGame(ctx context.Context, client *Client, mem *Memory, state *engine.GameState, opts playOptions, logger *slog.Logger) (gameSummary, error) {
	flips := 0
	mem.Observe(state)

	for !state.IsWon {
		if flips >= opts.MaxFlips {
			return gameSummary{Flips: flips, State: state}, ErrFlipBudget
		}

		slot, ok := mem.NextSlot(state)
		if !ok {
			// Resolving, revealing or loading: wait for the board to settle
			if err := sleep(ctx, opts.PollInterval); err != nil {
				return gameSummary{Flips: flips, State: state}, err
			}
			next, err := client.GetState(ctx)
			if err != nil {
				return gameSummary{Flips: flips, State: state}, err
			}
			state = next
			mem.Observe(state)
			continue
		}

		result, err := client.Flip(ctx, slot)
		var limited *RateLimitedError
		if errors.As(err, &limited) {
			logger.Warn("rate limited", "retry_after", limited.RetryAfter)
			if err := sleep(ctx, limited.RetryAfter); err != nil {
				return gameSummary{Flips: flips, State: state}, err
			}
			continue
		}
		if err != nil {
			return gameSummary{Flips: flips, State: state}, err
		}

		flips++
		logger.Debug("flip", "slot", slot, "accepted", result.Accepted, "message", result.Message)
		state = result.GameState
		mem.Observe(state)

		if opts.Delay > 0 {
			if err := sleep(ctx, opts.Delay); err != nil {
				return gameSummary{Flips: flips, State: state}, err
			}
		}
	}

	return gameSummary{Flips: flips, State: state}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func logSummary(logger *slog.Logger, game int, s gameSummary) {
	attrs := []any{
		"game", game,
		"flips", s.Flips,
		"moves", s.State.MoveCount,
		"time", s.State.FormattedTime,
		"perfect", s.State.PerfectGameBonus,
	}
	if w := s.State.Winner; w != nil {
		if w.Tie {
			attrs = append(attrs, "winner", "tie")
		} else {
			attrs = append(attrs, "winner", w.Name, "score", w.Score)
		}
	}
	logger.Info("game won", attrs...)
}
