// Package app wires the pipeline together and exposes it as cobra commands.
package app

import (
	"fmt"
	"os"

	"github.com/go-pkgz/lgr"
	"github.com/spf13/cobra"

	"github.com/ytget/yt-link-bot/internal/config"
)

type rootOptions struct {
	configFile string
	debug      bool
	settings   *config.Settings
}

// NewRootCommand builds the command tree
func NewRootCommand(version string) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "yt-link-bot",
		Short:         "YouTube to download link Telegram bot",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(opts.configFile)
			if err != nil {
				return err
			}
			if opts.debug {
				settings.SetDebug(true)
			}
			setupLogging(settings.GetDebug())
			opts.settings = settings
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (yaml, json or toml)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(newServeCommand(opts), newSweepCommand(opts), newStatsCommand(opts))
	return root
}

// Execute runs the root command and exits non-zero on failure
func Execute(version string) {
	if err := NewRootCommand(version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging(debug bool) {
	opts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if debug {
		opts = append(opts, lgr.Debug, lgr.CallerFile, lgr.CallerFunc)
	}
	lgr.Setup(opts...)
	lgr.SetupStdLogger(opts...)
}
