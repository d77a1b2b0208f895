// Package cli implements the rustjit command-line interface.
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ferricite/rustjit"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	CacheDir string
	Format   string // "json" | "text"
	Verbose  bool

	// Logger is configured in the persistent pre-run.
	Logger *log.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the rustjit CLI.
//
// Configuration precedence: flags, then RUSTJIT_* environment
// variables, then the optional config file at
// ~/.config/rustjit/config.yaml.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "rustjit",
		Short: "Content-addressed Rust build cache with symbol binding",
		Long: `rustjit compiles Rust source units into cached native dynamic
libraries and binds exported extern "C" symbols as typed callables.

Workspaces persist under the cache directory across runs; an unchanged
source reuses its artifact without invoking cargo.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, opts); err != nil {
				return err
			}
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			level := log.WarnLevel
			if opts.Verbose {
				level = log.DebugLevel
			}
			opts.Logger = log.NewWithOptions(cmd.ErrOrStderr(), log.Options{
				Level:           level,
				ReportTimestamp: false,
			})
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.CacheDir, "cache-dir", rustjit.DefaultCacheDir(), "workspace cache root")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewBuildCommand(opts))
	cmd.AddCommand(NewCallCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewCleanCommand(opts))

	return cmd
}

// loadConfig layers the config file and environment under explicit
// flags.
func loadConfig(cmd *cobra.Command, opts *RootOptions) error {
	v := viper.New()
	v.SetEnvPrefix("RUSTJIT")
	v.AutomaticEnv()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "rustjit"))
	}
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is the common case, not an error.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config file: %w", err)
		}
	}

	if !cmd.Flags().Changed("cache-dir") && v.IsSet("cache_dir") {
		opts.CacheDir = v.GetString("cache_dir")
	}
	if !cmd.Flags().Changed("format") && v.IsSet("format") {
		opts.Format = v.GetString("format")
	}
	if !cmd.Flags().Changed("verbose") && v.IsSet("verbose") {
		opts.Verbose = v.GetBool("verbose")
	}
	return nil
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
