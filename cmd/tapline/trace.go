package main

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/tapline/internal/hooktrace"
)

func newTraceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trace <file>",
		Short: "Summarize a recorded hook trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			summary, err := hooktrace.Summarize(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d events, %d sessions\n\n", summary.Lines, len(summary.Sessions))

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "HOOK\tCALLS\tTAPS\tERRORS")
			for _, h := range summary.Hooks {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", h.Hook, h.Events[hooktrace.EventCall], h.Events[hooktrace.EventTap], len(h.Errors))
				for _, tap := range slices.Sorted(maps.Keys(h.Taps)) {
					fmt.Fprintf(tw, "  %s\t\t%d\t\n", tap, h.Taps[tap])
				}
			}
			return tw.Flush()
		},
	}
}
