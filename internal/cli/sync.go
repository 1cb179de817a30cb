package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rpggio/feedsync/internal/domain/watermark"
	"github.com/rpggio/feedsync/internal/engine"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Older   bool
	Device  string
	Timeout time.Duration
}

type syncReport struct {
	Op         string                                 `json:"op"`
	Status     string                                 `json:"status"`
	Error      string                                 `json:"error,omitempty"`
	Watermarks map[watermark.Kind]watermark.Watermark `json:"watermarks"`
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync operation to completion",
		Long: `Run one sync operation to completion and print its status.

Without flags a refresh is run. The first refresh of a new database also
imports the recent call log and message log.

Example:
  feedsync sync
  feedsync sync --older
  feedsync sync --device calllog`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().BoolVar(&opts.Older, "older", false, "load older activities and device log pages")
	cmd.Flags().StringVar(&opts.Device, "device", "", "pull one changed device log (calllog|messagelog)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 5*time.Minute, "give up after this long")
	cmd.MarkFlagsMutuallyExclusive("older", "device")

	return cmd
}

func runSync(ctx context.Context, opts *SyncOptions, out, errOut io.Writer) error {
	var kind engine.DeviceKind
	if opts.Device != "" {
		k, err := engine.ParseDeviceKind(opts.Device)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --device", err)
		}
		kind = k
	}

	app, logCloser, err := openApp(opts.RootOptions, errOut)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	defer app.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var ch <-chan engine.Result
	switch {
	case opts.Older:
		ch = app.Controller.RequestOlder()
	case opts.Device != "":
		ch = app.Controller.RequestDeviceChanged(kind)
	default:
		ch = app.Controller.RequestRefresh()
	}

	res, err := engine.Drive(ctx, app.Controller, ch)
	if err != nil {
		app.Controller.Cancel()
		return WrapExitError(ExitFailure, "sync interrupted", err)
	}

	report := syncReport{
		Op:         res.Op.String(),
		Status:     res.Status.String(),
		Error:      res.Message(),
		Watermarks: make(map[watermark.Kind]watermark.Watermark),
	}
	for _, k := range watermark.Kinds {
		w, err := app.Watermarks.Get(ctx, k)
		if err != nil {
			return WrapExitError(ExitFailure, "reading watermarks", err)
		}
		report.Watermarks[k] = w
	}

	if err := writeOutput(out, opts.Format, report, func(w io.Writer) error {
		if report.Error != "" {
			_, err := fmt.Fprintf(w, "%s: %s (%s)\n", report.Op, report.Status, report.Error)
			return err
		}
		_, err := fmt.Fprintf(w, "%s: %s\n", report.Op, report.Status)
		return err
	}); err != nil {
		return err
	}

	if !res.Status.OK() {
		return NewExitError(ExitFailure, fmt.Sprintf("sync finished with status %s", res.Status))
	}
	return nil
}
