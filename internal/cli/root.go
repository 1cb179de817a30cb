package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rpggio/feedsync/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the feedsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "feedsync",
		Short: "feedsync - timeline synchronization engine",
		Long: "feedsync merges a remote activity feed with the device call log and " +
			"SMS/MMS log into one local timeline.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config (default $FEEDSYNC_CONFIG_PATH)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// openApp loads config and wires an App with logs going to logOut.
func openApp(opts *RootOptions, logOut io.Writer) (*App, io.Closer, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "config error", err)
	}
	logger, logCloser, err := newLogger(cfg.Log, opts.Verbose, logOut)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "log file error", err)
	}
	app, err := NewApp(cfg, logger)
	if err != nil {
		_ = logCloser.Close()
		return nil, nil, WrapExitError(ExitCommandError, "startup failed", err)
	}
	return app, logCloser, nil
}
