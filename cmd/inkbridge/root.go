package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inkbridge/inkbridge/config"
	"github.com/inkbridge/inkbridge/executor"
	"github.com/inkbridge/inkbridge/fragment"
)

// app carries the state shared by every command.
type app struct {
	configPath string
	transport  string
	workDir    string
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "inkbridge",
		Short: "Drive Adobe Illustrator with composed ExtendScript programs",
		Long: `inkbridge - Compose ExtendScript programs from a fragment library and run
them in Adobe Illustrator through osascript.

Serve the operation catalog to MCP clients over stdio, run one-off programs,
or inspect what would be sent. Use --transport sim to run against the
in-process document simulator instead of a real host.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default: $"+config.EnvVar+")")
	root.PersistentFlags().StringVar(&a.transport, "transport", "", "Override transport: osascript, sim, quickjs, canned")
	root.PersistentFlags().StringVar(&a.workDir, "work-dir", "", "Override the working directory")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newServeCmd(a),
		newRunCmd(a),
		newComposeCmd(a),
		newFragmentsCmd(a),
		newCallCmd(a),
		newReplCmd(a),
		newCleanCmd(a),
	)
	root.Version = version
	return root
}

// load reads the configuration, applies flag overrides and installs the
// logger. Logs always go to stderr; stdout carries results and MCP traffic.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.transport != "" {
		cfg.Transport = a.transport
	}
	if a.workDir != "" {
		cfg.WorkDir = a.workDir
	}
	if a.verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: cfg.Level(),
	}))
	return nil
}

func (a *app) runtime() (*config.Runtime, error) {
	return a.cfg.Build(a.logger)
}

// readSource returns code, the named file, or piped stdin, in that order.
// ok is false when there is nothing to read.
func readSource(cmd *cobra.Command, code string, args []string) (source string, ok bool, err error) {
	switch {
	case code != "":
		return code, true, nil
	case len(args) > 0:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", false, err
		}
		return string(data), true, nil
	}

	in := cmd.InOrStdin()
	if f, isFile := in.(*os.File); isFile {
		stat, err := f.Stat()
		if err != nil || stat.Mode()&os.ModeCharDevice != 0 {
			return "", false, nil
		}
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", false, err
	}
	if len(data) == 0 {
		return "", false, nil
	}
	return string(data), true, nil
}

// run composes body with fragments and runs it through the admission queue.
func run(cmd *cobra.Command, rt *config.Runtime, fragments []string, body string, opts ...executor.Option) error {
	prog, err := rt.Library.Compose(fragments, body)
	if err != nil {
		return err
	}
	result := rt.Queue.Run(cmd.Context(), prog, opts...)
	if output := strings.TrimRight(result.Output, "\r\n"); output != "" {
		fmt.Fprintln(cmd.OutOrStdout(), output)
	}
	if result.Error != nil {
		return executor.ClassifyHostFailure(result.Error)
	}
	return nil
}

func addFragmentFlag(cmd *cobra.Command) {
	cmd.Flags().StringSliceP("fragment", "f", nil, "Fragment to include (repeatable)")
}

func fragmentFlag(cmd *cobra.Command) []string {
	names, _ := cmd.Flags().GetStringSlice("fragment")
	return names
}

// library is the configured library, for commands that never dispatch.
func (a *app) library() (*fragment.Library, error) {
	return a.cfg.Library()
}
