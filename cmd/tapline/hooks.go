package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newHooksCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "hooks",
		Short: "List the hooks and the plugin taps on them in call order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := flags.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.pipeline.Start(cmd.Context()); err != nil {
				s.logger.Warn("loading plugins", "error", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, d := range s.pipeline.Hooks().Describe() {
				name := d.Name
				if d.Keyed {
					name = fmt.Sprintf("%s[%s]", d.Name, d.Key)
				}
				used := "unused"
				if d.Used {
					used = "used"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", name, d.Kind, used)
				for _, t := range d.Taps {
					before := ""
					if len(t.Before) > 0 {
						before = "before " + strings.Join(t.Before, ",")
					}
					fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\n", t.Stage, t.Name, t.Kind, before)
				}
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			for _, h := range s.pipeline.Plugins().List() {
				st := h.Stats()
				fmt.Fprintf(cmd.OutOrStdout(), "plugin %s %s (%s)\n", st.Name, st.Version, st.State)
			}
			return nil
		},
	}
}
