package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"github.com/tidwall/jsonc"

	"github.com/inkbridge/inkbridge/tools"
)

func newCallCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call [tool]",
		Short: "Invoke one catalog operation",
		Long: `Invoke a catalog operation the way an MCP client would.

Arguments are a JSON object given inline with --json or read from a file
with --args. Files may contain comments and trailing commas:

  inkbridge call create_rects --args rects.jsonc
  inkbridge call count_characters --json '{"texts": ["abc"]}'

Without a tool name, list the catalog.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.runtime()
			if err != nil {
				return err
			}
			defer rt.Close()

			catalog := tools.New(rt.Library, rt.Queue, tools.WithLogger(a.logger))
			server := catalog.NewServer(version)
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "TOOL\tWHERE\tFRAGMENTS")
				for _, t := range catalog.Tools() {
					where := "host"
					if t.Local {
						where = "local"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name, where, strings.Join(t.Fragments, ", "))
				}
				return w.Flush()
			}

			arguments, err := callArguments(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			serverTransport, clientTransport := mcp.NewInMemoryTransports()
			serverSession, err := server.Connect(ctx, serverTransport, nil)
			if err != nil {
				return err
			}
			defer serverSession.Close()

			client := mcp.NewClient(&mcp.Implementation{Name: "inkbridge-call", Version: version}, nil)
			session, err := client.Connect(ctx, clientTransport, nil)
			if err != nil {
				return err
			}
			defer session.Close()

			res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: args[0], Arguments: arguments})
			if err != nil {
				return err
			}

			var parts []string
			for _, c := range res.Content {
				if tc, ok := c.(*mcp.TextContent); ok {
					parts = append(parts, tc.Text)
				}
			}
			text := strings.Join(parts, "\n")
			if res.IsError {
				return errors.New(text)
			}
			fmt.Fprintln(out, text)
			return nil
		},
	}

	cmd.Flags().String("args", "", "JSON or JSONC file with tool arguments")
	cmd.Flags().String("json", "", "Tool arguments as a JSON object")
	cmd.MarkFlagsMutuallyExclusive("args", "json")
	return cmd
}

func callArguments(cmd *cobra.Command) (map[string]any, error) {
	path, _ := cmd.Flags().GetString("args")
	inline, _ := cmd.Flags().GetString("json")

	var data []byte
	switch {
	case path != "":
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		data = jsonc.ToJSON(raw)
	case inline != "":
		data = []byte(inline)
	default:
		return map[string]any{}, nil
	}

	arguments := map[string]any{}
	if err := json.Unmarshal(data, &arguments); err != nil {
		return nil, fmt.Errorf("parse tool arguments: %w", err)
	}
	return arguments, nil
}
