package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// ListReport is the output of the list command.
type ListReport struct {
	CacheDir string        `json:"cache_dir"`
	Builds   []ListedBuild `json:"builds"`
}

// ListedBuild is one ledger row in list output.
type ListedBuild struct {
	Crate      string    `json:"crate"`
	Digest     string    `json:"digest"`
	Artifact   string    `json:"artifact"`
	Toolchain  string    `json:"toolchain,omitempty"`
	BuiltAt    time.Time `json:"built_at"`
	ReuseCount int64     `json:"reuse_count"`
}

func (r ListReport) String() string {
	if len(r.Builds) == 0 {
		return fmt.Sprintf("cache %s is empty", r.CacheDir)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-24s %-14s %-8s %s", "CRATE", "DIGEST", "REUSES", "BUILT")
	for _, row := range r.Builds {
		fmt.Fprintf(&b, "\n%-24s %-14s %-8d %s",
			row.Crate, row.Digest, row.ReuseCount,
			row.BuiltAt.Local().Format(time.DateTime))
	}
	return b.String()
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List cached builds from the ledger",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, cmd)
		},
	}
}

func runList(opts *RootOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	ledger, err := openLedger(opts.CacheDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "open ledger", err)
	}
	defer ledger.Close()

	records, err := ledger.List(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "list builds", err)
	}

	report := ListReport{CacheDir: opts.CacheDir, Builds: []ListedBuild{}}
	for _, rec := range records {
		report.Builds = append(report.Builds, ListedBuild{
			Crate:      rec.CrateName,
			Digest:     rec.SourceDigest,
			Artifact:   rec.ArtifactPath,
			Toolchain:  rec.ToolchainVersion,
			BuiltAt:    rec.BuiltAt,
			ReuseCount: rec.ReuseCount,
		})
	}
	return formatter.Success(report)
}
