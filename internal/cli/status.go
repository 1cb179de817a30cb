package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rpggio/feedsync/internal/domain/timeline"
	"github.com/rpggio/feedsync/internal/domain/watermark"
)

type statusReport struct {
	Records    int64          `json:"records"`
	Watermarks []watermarkRow `json:"watermarks"`
}

type watermarkRow struct {
	Kind   watermark.Kind `json:"kind"`
	Oldest int64          `json:"oldest"`
	Newest int64          `json:"newest"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Print watermarks and the timeline size",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, logCloser, err := openApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer logCloser.Close()
			defer app.Close()

			ctx := cmd.Context()
			count, err := app.Timeline.Count(ctx)
			if err != nil {
				return WrapExitError(ExitFailure, "counting timeline", err)
			}
			report := statusReport{Records: count}
			for _, k := range watermark.Kinds {
				w, err := app.Watermarks.Get(ctx, k)
				if err != nil {
					return WrapExitError(ExitFailure, "reading watermarks", err)
				}
				report.Watermarks = append(report.Watermarks, watermarkRow{Kind: k, Oldest: w.Oldest, Newest: w.Newest})
			}

			return writeOutput(cmd.OutOrStdout(), rootOpts.Format, report, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "records\t%d\n", report.Records)
				fmt.Fprintln(tw, "kind\toldest\tnewest")
				for _, row := range report.Watermarks {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", row.Kind, formatMark(row.Oldest), formatMark(row.Newest))
				}
				return tw.Flush()
			})
		},
	}
}

func formatMark(ms int64) string {
	if ms == watermark.Unset {
		return "-"
	}
	return fmt.Sprintf("%d (%s)", ms, timeline.FormatTitle(ms, nil))
}
