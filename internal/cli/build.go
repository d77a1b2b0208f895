package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ferricite/rustjit/internal/bindspec"
	"github.com/ferricite/rustjit/internal/fingerprint"
)

// BuildReport is the output of the build command.
type BuildReport struct {
	Crate    string `json:"crate"`
	Artifact string `json:"artifact"`
	Reused   bool   `json:"reused"`
}

func (r BuildReport) String() string {
	verb := "built"
	if r.Reused {
		verb = "cached"
	}
	return fmt.Sprintf("%s %s -> %s", verb, r.Crate, r.Artifact)
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "build <bind-spec.yaml>",
		Short: "Compile a bind spec's source unit without binding it",
		Long: `Compile the Rust source unit described by a bind spec into its
cached dynamic library. The cache is checked first: an unchanged source
with an existing artifact does not invoke cargo.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(rootOpts, args[0], cmd)
		},
	}
}

func runBuild(opts *RootOptions, specPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	spec, err := bindspec.Load(specPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "load bind spec", err)
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

	crate := req.CrateName
	if crate == "" {
		crate = fingerprint.CrateName(req.Source)
	}

	// The ledger row tells reuse apart from a fresh build: a reuse
	// bumps the counter, a build resets it.
	before, _ := ledger.Get(cmd.Context(), crate)

	binder := &captureBinder{}
	pipe := newPipeline(opts, ledger, binder)
	if _, err := pipe.Bind(cmd.Context(), req); err != nil {
		formatter.Failure(failureCode(err), err.Error())
		return WrapExitError(ExitFailure, "build failed", err)
	}

	after, _ := ledger.Get(cmd.Context(), crate)
	reused := before != nil && after != nil && after.ReuseCount > before.ReuseCount

	return formatter.Success(BuildReport{
		Crate:    crate,
		Artifact: binder.artifactPath,
		Reused:   reused,
	})
}
