package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	var showStats bool

	cmd := &cobra.Command{
		Use:   "run [inputs...]",
		Short: "Run one build over the input files and print the emitted assets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := flags.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			inputs, err := readInputs(args)
			if err != nil {
				return err
			}
			if err := s.pipeline.Start(cmd.Context()); err != nil {
				return fmt.Errorf("loading plugins: %w", err)
			}

			stats, err := s.pipeline.Run(cmd.Context(), inputs)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !showStats {
				for _, name := range stats.Assets {
					fmt.Fprintln(out, name)
				}
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ASSET\tSIZE\tHASH")
			for _, name := range stats.Assets {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", name, stats.Sizes[name], stats.Hashes[name])
			}
			fmt.Fprintf(tw, "\n%d assets from %d inputs in %dms\n", len(stats.Assets), stats.Inputs, stats.ElapsedMS)
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&showStats, "stats", false, "print sizes and hashes")
	return cmd
}
