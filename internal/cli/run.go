package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tickhost/internal/host"
	"github.com/roach88/tickhost/internal/script"
	"github.com/roach88/tickhost/internal/store"
	"github.com/roach88/tickhost/internal/tui"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Ticks    int
	TUI      bool
}

// ScriptSummary is one script's line in a bounded run report.
type ScriptSummary struct {
	Name   string `json:"name"`
	ID     string `json:"id"`
	State  string `json:"state"`
	Ticks  int64  `json:"ticks"`
	Faults int    `json:"faults"`
}

// RunSummary is printed after a bounded run.
type RunSummary struct {
	Frames  int64           `json:"frames"`
	Scripts []ScriptSummary `json:"scripts"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <config.cue>",
		Short: "Host the scripts of a configuration",
		Long: `Load every script named in the configuration and drive them at the
configured tick rate until interrupted.

With --ticks the host runs exactly N frames as fast as possible, prints a
summary and exits; a fatal script fault then exits 1. With --tui the
scripts are shown in a terminal UI that also delivers key presses.

Faults and lifecycle transitions are journaled to the SQLite database
given by --db, the configuration, or $TICKHOST_DB.

Examples:
  tickhost run host.cue
  tickhost run host.cue --tui --db ./tickhost.db
  tickhost run host.cue --ticks 100 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (overrides config)")
	cmd.Flags().IntVar(&opts.Ticks, "ticks", 0, "run exactly N frames, then print a summary")
	cmd.Flags().BoolVar(&opts.TUI, "tui", false, "show scripts in a terminal UI")
	cmd.MarkFlagsMutuallyExclusive("ticks", "tui")

	return cmd
}

func runHost(opts *RunOptions, path string, cmd *cobra.Command) error {
	if opts.Ticks < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--ticks must not be negative, got %d", opts.Ticks))
	}

	loaded, issues, err := LoadHost(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read configuration", err)
	}
	if len(issues) > 0 {
		for _, issue := range issues {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", issue)
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("configuration has %d error(s)", len(issues)))
	}
	cfg := loaded.Config

	dbPath := cfg.Database
	if opts.Database != "" {
		dbPath = opts.Database
	}
	if dbPath == "" {
		dbPath = store.MemoryPath
	}

	slog.Info("opening journal", "path", dbPath)
	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	journal := store.NewJournal(st, time.Now)
	d := host.New(
		host.WithReporter(script.Reporters{script.LogReporter{}, journal}),
		host.WithStateObserver(journal.Observe),
		host.WithKeyBindings(cfg.Keys),
		host.WithJoinTimeout(cfg.JoinTimeout),
	)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, def := range loaded.Definitions {
		if _, err := d.Launch(ctx, def); err != nil {
			stopDomain(d, cfg.JoinTimeout)
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to launch %s", def.Name), err)
		}
	}
	slog.Info("scripts launched", "count", len(loaded.Definitions), "rate", cfg.TickRate)

	switch {
	case opts.Ticks > 0:
		return runBounded(ctx, opts, d, st, cfg.JoinTimeout, cmd)

	case opts.TUI:
		if err := tui.Run(ctx, d, cfg.TickRate); err != nil {
			return WrapExitError(ExitCommandError, "terminal UI failed", err)
		}
		return nil

	default:
		err := d.Run(ctx, cfg.TickRate)
		if err != nil && !errors.Is(err, context.Canceled) {
			return WrapExitError(ExitCommandError, "host stopped", err)
		}
		return nil
	}
}

// runBounded drives exactly opts.Ticks frames, then tears down and reports.
func runBounded(ctx context.Context, opts *RunOptions, d *host.Domain, st *store.Store, joinTimeout time.Duration, cmd *cobra.Command) error {
	for i := 0; i < opts.Ticks; i++ {
		if err := d.Tick(ctx); err != nil {
			stopDomain(d, joinTimeout)
			return WrapExitError(ExitCommandError, fmt.Sprintf("frame %d failed", i+1), err)
		}
		if d.Running() == 0 {
			slog.Info("no running scripts left", "frame", i+1)
			break
		}
	}

	frames := d.Snapshot()
	if err := stopDomain(d, joinTimeout); err != nil {
		return WrapExitError(ExitCommandError, "failed to stop host", err)
	}

	// A persistent journal holds earlier runs too; only this run's
	// identities count.
	ids := make([]string, len(frames))
	for i, f := range frames {
		ids[i] = f.ID
	}
	var faults []store.FaultRecord
	if len(ids) > 0 {
		var err error
		faults, err = st.ReadFaults(ctx, store.FaultFilter{ScriptIDs: ids})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read faults", err)
		}
	}
	perScript := make(map[string]int, len(frames))
	fatal := 0
	for _, f := range faults {
		perScript[f.ScriptID]++
		if f.Fatal {
			fatal++
		}
	}

	summary := RunSummary{Frames: d.Frames(), Scripts: make([]ScriptSummary, 0, len(frames))}
	for _, f := range frames {
		summary.Scripts = append(summary.Scripts, ScriptSummary{
			Name:   f.Name,
			ID:     f.ID,
			State:  f.State.String(),
			Ticks:  f.Ticks,
			Faults: perScript[f.ID],
		})
	}

	if fatal > 0 {
		msg := fmt.Sprintf("%d fatal fault(s)", fatal)
		if opts.Format == "json" {
			if err := encodeJSON(cmd, CLIResponse{
				Status: "error",
				Data:   summary,
				Error:  &CLIError{Code: ErrCodeScriptFault, Message: msg},
			}); err != nil {
				return err
			}
		} else {
			printSummary(cmd, summary)
		}
		return NewExitError(ExitFailure, msg)
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(summary)
	}
	printSummary(cmd, summary)
	return nil
}

func printSummary(cmd *cobra.Command, summary RunSummary) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%d frame(s)\n", summary.Frames)
	for _, s := range summary.Scripts {
		fmt.Fprintf(w, "  %-16s %-10s ticks=%d faults=%d\n", s.Name, s.State, s.Ticks, s.Faults)
	}
}

func encodeJSON(cmd *cobra.Command, resp CLIResponse) error {
	return json.NewEncoder(cmd.OutOrStdout()).Encode(resp)
}

func stopDomain(d *host.Domain, joinTimeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), joinTimeout+time.Second)
	defer cancel()
	return d.Stop(ctx)
}
