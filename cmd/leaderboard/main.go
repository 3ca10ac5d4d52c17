// Command leaderboard inspects and maintains the persisted leaderboard
// outside the running server. It reads the same blob the server writes,
// from a data directory or from Postgres when -database-url is set.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/pokemon-memory-game/game/engine"
	"github.com/wricardo/pokemon-memory-game/game/leaderboard"
)

var (
	// ErrNotConfirmed is returned by clear and purge without --yes
	ErrNotConfirmed = errors.New("refusing to clear the leaderboard without --yes")

	// ErrFileStoreOnly is returned by commands that manage blob files
	// when --database-url is set
	ErrFileStoreOnly = errors.New("command only works with the file store")
)

func main() {
	if err := newCommand(os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "leaderboard: %v\n", err)
		os.Exit(1)
	}
}

// newCommand builds the CLI; all output goes to out
func newCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "leaderboard",
		Usage: "show, export or clear the memory game leaderboard",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Value:   "data",
				Usage:   "leaderboard data directory",
				Sources: cli.EnvVars("MEMORY_LEADERBOARD_DIR"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "read the leaderboard from Postgres instead of --dir",
				Sources: cli.EnvVars("MEMORY_LEADERBOARD_DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:  "key",
				Value: leaderboard.StorageKey,
				Usage: "blob key the leaderboard is stored under",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "print the ranking",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "grid-size",
						Usage: "only show one grid size",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withLeaderboard(ctx, cmd, func(lb *leaderboard.Leaderboard) error {
						gridSize := cmd.Int("grid-size")
						if gridSize > 0 {
							fmt.Fprintf(out, "%dx%d (%s)\n", gridSize, gridSize, leaderboard.DifficultyTier(gridSize))
							return printEntries(out, lb.Query(gridSize))
						}
						return printEntries(out, lb.Entries())
					})
				},
			},
			{
				Name:  "export",
				Usage: "write every entry as JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "out",
						Usage: "output file (default stdout)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withLeaderboard(ctx, cmd, func(lb *leaderboard.Leaderboard) error {
						w := out
						if path := cmd.String("out"); path != "" {
							f, err := os.Create(path)
							if err != nil {
								return fmt.Errorf("failed to create %s: %w", path, err)
							}
							defer f.Close()
							w = f
						}
						enc := json.NewEncoder(w)
						enc.SetIndent("", "  ")
						entries := lb.Entries()
						if entries == nil {
							entries = []leaderboard.Entry{}
						}
						return enc.Encode(entries)
					})
				},
			},
			{
				Name:  "clear",
				Usage: "remove every entry",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "confirm the deletion",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if !cmd.Bool("yes") {
						return ErrNotConfirmed
					}
					return withLeaderboard(ctx, cmd, func(lb *leaderboard.Leaderboard) error {
						n := len(lb.Entries())
						if err := lb.Clear(ctx); err != nil {
							return err
						}
						fmt.Fprintf(out, "Removed %d entries\n", n)
						return nil
					})
				},
			},
			{
				Name:  "keys",
				Usage: "list the leaderboard blobs in --dir",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fs, err := openFileStore(cmd)
					if err != nil {
						return err
					}
					keys, err := fs.ListKeys()
					if err != nil {
						return err
					}
					if len(keys) == 0 {
						fmt.Fprintln(out, "No leaderboards stored.")
						return nil
					}
					for _, key := range keys {
						marker := " "
						if key == cmd.String("key") {
							marker = "*"
						}
						fmt.Fprintf(out, "%s %s\n", marker, key)
					}
					return nil
				},
			},
			{
				Name:  "purge",
				Usage: "delete the blob stored under --key",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "confirm the deletion",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if !cmd.Bool("yes") {
						return ErrNotConfirmed
					}
					fs, err := openFileStore(cmd)
					if err != nil {
						return err
					}
					key := cmd.String("key")
					if !fs.Exists(key) {
						fmt.Fprintf(out, "Nothing stored under %s\n", key)
						return nil
					}
					if err := fs.Delete(key); err != nil {
						return err
					}
					fmt.Fprintf(out, "Deleted %s\n", key)
					return nil
				},
			},
		},
	}
}

func openFileStore(cmd *cli.Command) (*leaderboard.FileBlobStore, error) {
	if cmd.String("database-url") != "" {
		return nil, ErrFileStoreOnly
	}
	return leaderboard.NewFileBlobStore(cmd.String("dir"))
}

// withLeaderboard opens the store selected by the root flags, loads the
// leaderboard and hands it to fn
func withLeaderboard(ctx context.Context, cmd *cli.Command, fn func(*leaderboard.Leaderboard) error) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	var store leaderboard.BlobStore
	if url := cmd.String("database-url"); url != "" {
		pg, err := leaderboard.OpenPostgresBlobStore(ctx, url, logger)
		if err != nil {
			return err
		}
		defer pg.Close()
		store = pg
	} else {
		fs, err := openFileStore(cmd)
		if err != nil {
			return err
		}
		store = fs
	}

	lb := leaderboard.New(ctx, store,
		leaderboard.WithKey(cmd.String("key")),
		leaderboard.WithLogger(logger),
	)
	return fn(lb)
}

func printEntries(out io.Writer, entries []leaderboard.Entry) error {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No entries yet.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tPLAYER\tSCORE\tTIME\tMOVES\tTIER\tDATE")
	for i, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%d\t%s\t%s\n",
			i+1, e.PlayerName, e.Score, engine.FormatTime(e.ElapsedSeconds), e.MoveCount,
			e.DifficultyTier, e.RecordedDate.Format("2006-01-02"))
	}
	return tw.Flush()
}
