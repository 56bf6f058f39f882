package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newFragmentsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fragments [name]",
		Short: "List the fragment library",
		Long: `List every fragment in declaration order with its dependencies.
With a name, print that fragment's source.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := a.library()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				f, ok := lib.Get(args[0])
				if !ok {
					return fmt.Errorf("unknown fragment %q", args[0])
				}
				fmt.Fprintln(out, f.Source)
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDEPENDS ON")
			for _, f := range lib.List() {
				deps := "-"
				if len(f.DependsOn) > 0 {
					deps = strings.Join(f.DependsOn, ", ")
				}
				fmt.Fprintf(w, "%s\t%s\n", f.Name, deps)
			}
			return w.Flush()
		},
	}
	return cmd
}
