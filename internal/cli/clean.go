package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ferricite/rustjit/internal/workspace"
)

// CleanReport is the output of the clean command.
type CleanReport struct {
	Removed []string `json:"removed"`
}

func (r CleanReport) String() string {
	if len(r.Removed) == 0 {
		return "nothing to clean"
	}
	return "removed " + strings.Join(r.Removed, ", ")
}

// NewCleanCommand creates the clean command.
func NewCleanCommand(rootOpts *RootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clean [crate...]",
		Short: "Remove cached workspaces and their ledger rows",
		Long: `Remove the named crates' workspaces (source, manifest, build output)
and forget them in the ledger. With --all, the whole cache is cleared.

Artifacts already loaded into a running process stay mapped; clean only
affects what future requests can reuse.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return WrapExitError(ExitCommandError,
					"name crates to clean or pass --all, not both or neither", nil)
			}
			return runClean(rootOpts, args, all, cmd)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "remove every cached workspace")
	return cmd
}

func runClean(opts *RootOptions, crates []string, all bool, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	ws := workspace.NewManager(opts.CacheDir)
	if all {
		names, err := ws.List()
		if err != nil {
			return WrapExitError(ExitFailure, "list workspaces", err)
		}
		crates = names
	}

	ledger, err := openLedger(opts.CacheDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "open ledger", err)
	}
	defer ledger.Close()

	report := CleanReport{Removed: []string{}}
	for _, crate := range crates {
		if err := ws.Remove(crate); err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("remove %s", crate), err)
		}
		if err := ledger.Forget(cmd.Context(), crate); err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("forget %s", crate), err)
		}
		report.Removed = append(report.Removed, crate)
	}
	return formatter.Success(report)
}
