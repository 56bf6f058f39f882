package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inkbridge/inkbridge/executor"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Compose a program and run it once",
		Long: `Compose a program from fragments and a body, then run it in the host.

The body can be provided via:
  - File argument: inkbridge run body.jsx
  - Inline flag: inkbridge run -f getDocument -c 'getDocument().name'
  - Stdin: echo 'app.name' | inkbridge run

The host's result is printed as text.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, _ := cmd.Flags().GetString("code")
			body, ok, err := readSource(cmd, code, args)
			if err != nil {
				return err
			}
			if !ok {
				return cmd.Help()
			}

			rt, err := a.runtime()
			if err != nil {
				return err
			}
			defer rt.Close()

			var opts []executor.Option
			if cmd.Flags().Changed("timeout") {
				timeout, _ := cmd.Flags().GetDuration("timeout")
				opts = append(opts, executor.WithTimeout(timeout))
			}
			return run(cmd, rt, fragmentFlag(cmd), body, opts...)
		},
	}

	cmd.Flags().StringP("code", "c", "", "Body to execute")
	cmd.Flags().Duration("timeout", executor.DefaultTimeout, "Execution timeout, 0 disables (default from config)")
	addFragmentFlag(cmd)
	return cmd
}

func newComposeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compose [file]",
		Short: "Print the composed program without running it",
		Long: `Print the program that run would send to the host: the encoding marker,
the required fragments in dependency order, then the body. Nothing is
written to the working directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, _ := cmd.Flags().GetString("code")
			body, _, err := readSource(cmd, code, args)
			if err != nil {
				return err
			}

			lib, err := a.library()
			if err != nil {
				return err
			}
			prog, err := lib.Compose(fragmentFlag(cmd), body)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), prog.String())
			return nil
		},
	}

	cmd.Flags().StringP("code", "c", "", "Body to compose")
	addFragmentFlag(cmd)
	return cmd
}
