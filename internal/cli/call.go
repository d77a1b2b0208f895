package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ferricite/rustjit/internal/bindspec"
)

// CallReport is the output of the call command.
type CallReport struct {
	Symbol  string `json:"symbol"`
	Results []any  `json:"results"`
}

func (r CallReport) String() string {
	lines := make([]string, len(r.Results))
	for i, res := range r.Results {
		if res == nil {
			lines[i] = fmt.Sprintf("%s() -> ()", r.Symbol)
			continue
		}
		lines[i] = fmt.Sprintf("%s() -> %v", r.Symbol, res)
	}
	return strings.Join(lines, "\n")
}

// NewCallCommand creates the call command.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "call <bind-spec.yaml>",
		Short: "Build, bind, and invoke a bind spec's exported symbol",
		Long: `Build (or reuse) the spec's source unit, bind the exported symbol,
and invoke it once per argument list in the spec's calls section.

Arguments are positional and must match the declared signature in order
and count. The declared signature is trusted, not verified against the
artifact: a wrong signature is undefined behavior.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(rootOpts, args[0], cmd)
		},
	}
}

func runCall(opts *RootOptions, specPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	spec, err := bindspec.Load(specPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "load bind spec", err)
	}
	if len(spec.Calls) == 0 {
		return WrapExitError(ExitCommandError, "bind spec has no calls section", nil)
	}
	req, err := requestFromSpec(spec)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid bind spec", err)
	}

	ledger, err := openLedger(opts.CacheDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "open ledger", err)
	}
	defer ledger.Close()

	pipe := newPipeline(opts, ledger, nil)
	fn, err := pipe.Bind(cmd.Context(), req)
	if err != nil {
		formatter.Failure(failureCode(err), err.Error())
		return WrapExitError(ExitFailure, "bind failed", err)
	}

	report := CallReport{Symbol: spec.Symbol}
	for i, callArgs := range spec.Calls {
		res, err := fn.Call(callArgs...)
		if err != nil {
			formatter.Failure(failureCode(err), err.Error())
			return WrapExitError(ExitFailure, fmt.Sprintf("call %d failed", i), err)
		}
		report.Results = append(report.Results, res)
	}

	return formatter.Success(report)
}
