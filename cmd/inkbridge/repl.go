package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/inkbridge/inkbridge/executor"
)

func newReplCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive loop sending each entry to the host",
		Long: `Start an interactive session. Each entry is composed as a body with the
--fragment fragments and run in the host.

Features:
  - Command history (up/down arrows)
  - Line editing (left/right, backspace, delete)
  - History search (Ctrl+R)
  - Multi-line input (end line with \)

Type 'exit' or 'quit' to end the session, or press Ctrl+D.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			historyFile, _ := cmd.Flags().GetString("history")
			if historyFile == "" {
				home, _ := os.UserHomeDir()
				historyFile = filepath.Join(home, ".inkbridge_history")
			}
			fragments := fragmentFlag(cmd)

			rt, err := a.runtime()
			if err != nil {
				return err
			}
			defer rt.Close()

			rl, err := readline.NewEx(&readline.Config{
				Prompt:            ">>> ",
				HistoryFile:       historyFile,
				HistoryLimit:      1000,
				InterruptPrompt:   "^C",
				EOFPrompt:         "exit",
				HistorySearchFold: true,
				Stdin:             io.NopCloser(cmd.InOrStdin()),
				Stdout:            cmd.OutOrStdout(),
				Stderr:            cmd.ErrOrStderr(),
			})
			if err != nil {
				return fmt.Errorf("initializing readline: %w", err)
			}
			defer rl.Close()

			stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
			fmt.Fprintf(stderr, "inkbridge %s REPL via %s (type 'exit' to quit, Ctrl+D to exit)\n",
				a.cfg.Application, rt.Executor.Transport().Name())

			var multiLine strings.Builder
			inMultiLine := false

			for {
				line, err := rl.Readline()
				if err != nil {
					if errors.Is(err, readline.ErrInterrupt) {
						if inMultiLine {
							multiLine.Reset()
							inMultiLine = false
							rl.SetPrompt(">>> ")
						}
						continue
					}
					if errors.Is(err, io.EOF) {
						fmt.Fprintln(stdout)
						return nil
					}
					return fmt.Errorf("reading input: %w", err)
				}

				if strings.HasSuffix(line, "\\") {
					multiLine.WriteString(strings.TrimSuffix(line, "\\"))
					multiLine.WriteString("\n")
					inMultiLine = true
					rl.SetPrompt("... ")
					continue
				}

				if inMultiLine {
					multiLine.WriteString(line)
					line = multiLine.String()
					multiLine.Reset()
					inMultiLine = false
					rl.SetPrompt(">>> ")
				}

				line = strings.TrimSpace(line)
				if line == "" {
					continue
				}
				if line == "exit" || line == "quit" {
					return nil
				}

				prog, err := rt.Library.Compose(fragments, line)
				if err != nil {
					fmt.Fprintf(stderr, "Error: %v\n", err)
					continue
				}
				result := rt.Queue.Run(cmd.Context(), prog)
				output := strings.TrimRight(result.Output, "\r\n")
				if output != "" {
					fmt.Fprintln(stdout, output)
				}
				if result.Error != nil {
					fmt.Fprintf(stderr, "Error: %v\n", executor.ClassifyHostFailure(result.Error))
				}
			}
		},
	}

	cmd.Flags().String("history", "", "History file path (default: ~/.inkbridge_history)")
	addFragmentFlag(cmd)
	return cmd
}
