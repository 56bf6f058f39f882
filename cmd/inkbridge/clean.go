package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/inkbridge/inkbridge/executor"
)

func newCleanCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove staged artifacts and cached modules",
		Long: `Remove the program and control-script artifacts from the working
directory, and the compiled QuickJS module cache when one is configured.
The working directory itself is kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			for _, name := range []string{executor.ProgramFile, executor.ControlFile} {
				path := filepath.Join(a.cfg.WorkDir, name)
				if err := os.Remove(path); err != nil {
					if os.IsNotExist(err) {
						continue
					}
					return fmt.Errorf("remove %s: %w", path, err)
				}
				fmt.Fprintf(out, "Removed %s\n", path)
			}

			if dir := a.cfg.QuickJS.CacheDir; dir != "" {
				if err := os.RemoveAll(dir); err != nil {
					return fmt.Errorf("clear cache: %w", err)
				}
				fmt.Fprintln(out, "Cache cleared.")
			}
			return nil
		},
	}
	return cmd
}
