package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/roach88/tickhost/internal/store"
)

// FaultsOptions holds flags for the faults command.
type FaultsOptions struct {
	*RootOptions
	Database  string
	Script    string
	FatalOnly bool
	Limit     int
}

// FaultEntry is one journaled fault as printed by the faults command.
type FaultEntry struct {
	Seq      int64  `json:"seq"`
	Script   string `json:"script"`
	ScriptID string `json:"script_id"`
	Kind     string `json:"kind"`
	Code     string `json:"code,omitempty"`
	Fatal    bool   `json:"fatal"`
	Tick     int64  `json:"tick"`
	Message  string `json:"message"`
	At       string `json:"at"`
}

// FaultsResult holds the faults command output.
type FaultsResult struct {
	Faults []FaultEntry `json:"faults"`
	Total  int          `json:"total"`
}

// NewFaultsCommand creates the faults command.
func NewFaultsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FaultsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "faults",
		Short: "List journaled script faults",
		Long: `List the faults recorded in a journal database, oldest first.

Examples:
  tickhost faults --db ./tickhost.db
  tickhost faults --db ./tickhost.db --script clock --fatal
  tickhost faults --db ./tickhost.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFaults(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Script, "script", "", "only faults of this script")
	cmd.Flags().BoolVar(&opts.FatalOnly, "fatal", false, "only fatal faults")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "show at most N faults")

	return cmd
}

func runFaults(opts *FaultsOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	storeError := func(message string, err error) error {
		if opts.Format == "json" {
			_ = formatter.Error(ErrCodeStore, message, err.Error())
		}
		return WrapExitError(ExitCommandError, message, err)
	}

	// Opening creates a missing file, so check first.
	if _, err := os.Stat(opts.Database); err != nil {
		return storeError("database not found", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return storeError("failed to open database", err)
	}
	defer st.Close()

	records, err := st.ReadFaults(ctx, store.FaultFilter{
		Script:    opts.Script,
		FatalOnly: opts.FatalOnly,
		Limit:     opts.Limit,
	})
	if err != nil {
		return storeError("failed to read faults", err)
	}

	result := FaultsResult{Faults: make([]FaultEntry, 0, len(records)), Total: len(records)}
	for _, r := range records {
		result.Faults = append(result.Faults, FaultEntry{
			Seq:      r.Seq,
			Script:   r.Script,
			ScriptID: r.ScriptID,
			Kind:     r.Kind,
			Code:     r.Code,
			Fatal:    r.Fatal,
			Tick:     r.Tick,
			Message:  r.Message,
			At:       r.At.UTC().Format(time.RFC3339Nano),
		})
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	return outputFaultsText(cmd, result)
}

func outputFaultsText(cmd *cobra.Command, result FaultsResult) error {
	w := cmd.OutOrStdout()
	if result.Total == 0 {
		fmt.Fprintln(w, "No faults recorded.")
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("SEQ", "SCRIPT", "KIND", "TICK", "FATAL", "MESSAGE")
	for _, f := range result.Faults {
		fatal := ""
		if f.Fatal {
			fatal = "yes"
		}
		t.Row(strconv.FormatInt(f.Seq, 10), f.Script, f.Kind, strconv.FormatInt(f.Tick, 10), fatal, f.Message)
	}

	fmt.Fprintln(w, t.String())
	fmt.Fprintf(w, "%d fault(s)\n", result.Total)
	return nil
}
