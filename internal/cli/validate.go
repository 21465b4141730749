package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool     `json:"valid"`
	Scripts []string `json:"scripts,omitempty"`
	Errors  []Issue  `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config.cue>",
		Short: "Check a host configuration without running it",
		Long: `Validate a host configuration against its CUE schema and compile
every script it names.

Nothing is executed: script top levels and init() only run at load time.

Exit codes:
  0 - configuration valid
  1 - configuration or script errors
  2 - configuration file unreadable`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	formatter.VerboseLog("Validating %s", path)

	loaded, issues, err := LoadHost(path)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, "cannot read configuration", err.Error())
		return WrapExitError(ExitCommandError, "cannot read configuration", err)
	}

	if len(issues) > 0 {
		return outputValidationIssues(formatter, issues)
	}

	result := ValidationResult{Valid: true}
	for _, def := range loaded.Definitions {
		formatter.VerboseLog("  script %s (%s, every %s)", def.Name, def.Source, def.Interval)
		result.Scripts = append(result.Scripts, def.Name)
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	return formatter.Success(fmt.Sprintf("✓ %s valid (%d script(s))", path, len(result.Scripts)))
}

func outputValidationIssues(formatter *OutputFormatter, issues []Issue) error {
	if formatter.Format == "json" {
		encoder := json.NewEncoder(formatter.Writer)
		if err := encoder.Encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: issues},
			Error: &CLIError{
				Code:    ErrCodeInvalid,
				Message: fmt.Sprintf("%d validation error(s)", len(issues)),
			},
		}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "✗ %d validation error(s)\n", len(issues))
		for _, issue := range issues {
			fmt.Fprintf(formatter.Writer, "  %s\n", issue)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d validation error(s)", len(issues)))
}
