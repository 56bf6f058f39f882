// Package tools is the operation catalog: every remote-callable operation,
// its input schema and the program body it sends to the host.
//
// Handlers never splice caller data into fragment sources. Caller values
// enter a body only as codec literals, and unit strings are converted by
// the toPt fragment inside the host.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/inkbridge/inkbridge/codec"
	"github.com/inkbridge/inkbridge/executor"
	"github.com/inkbridge/inkbridge/fragment"
)

// ServerName is reported to MCP clients.
const ServerName = "illustrator"

// Info describes one catalog operation.
type Info struct {
	Name        string
	Description string

	// Fragments the body needs. Empty for operations that run locally.
	Fragments []string

	// Local operations never reach the host.
	Local bool
}

// Catalog binds operations to a fragment library and a runner.
type Catalog struct {
	lib    *fragment.Library
	runner executor.Runner
	logger *slog.Logger
	tools  []Info
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) {
		c.logger = l
	}
}

// New returns a catalog composing programs from lib and running them on
// runner. Callers that serve concurrent requests should pass an
// executor.Queue.
func New(lib *fragment.Library, runner executor.Runner, opts ...Option) *Catalog {
	c := &Catalog{lib: lib, runner: runner}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Catalog) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}

// NewServer returns an MCP server with every operation registered.
func (c *Catalog) NewServer(version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version}, nil)
	c.tools = c.tools[:0]
	c.registerDocument(server)
	c.registerItems(server)
	c.registerPaths(server)
	c.registerText(server)
	c.registerLocal(server)
	return server
}

// Tools lists the registered operations in registration order. It is empty
// until NewServer has run.
func (c *Catalog) Tools() []Info {
	out := make([]Info, len(c.tools))
	for i, t := range c.tools {
		t.Fragments = slices.Clone(t.Fragments)
		out[i] = t
	}
	return out
}

// handler produces the text of a successful call.
type handler[In any] func(ctx context.Context, in In) (string, error)

// addHost registers an operation that runs a body on the host.
func addHost[In any](c *Catalog, s *mcp.Server, name, description string, fragments []string, h handler[In]) {
	c.tools = append(c.tools, Info{Name: name, Description: description, Fragments: fragments})
	add(c, s, name, description, h)
}

// addLocal registers an operation computed in-process.
func addLocal[In any](c *Catalog, s *mcp.Server, name, description string, h handler[In]) {
	c.tools = append(c.tools, Info{Name: name, Description: description, Local: true})
	add(c, s, name, description, h)
}

func add[In any](c *Catalog, s *mcp.Server, name, description string, h handler[In]) {
	mcp.AddTool(s, &mcp.Tool{Name: name, Description: description},
		func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
			text, err := h(ctx, in)
			if err != nil {
				c.log().Warn("tool failed", "tool", name, "error", err)
				return &mcp.CallToolResult{
					IsError: true,
					Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
				}, nil, nil
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: text}},
			}, nil, nil
		})
}

// execute composes body with fragments, runs it and returns the host's
// text without the dispatcher's trailing newline.
func (c *Catalog) execute(ctx context.Context, fragments []string, body string) (string, error) {
	prog, err := c.lib.Compose(fragments, body)
	if err != nil {
		return "", err
	}
	result := c.runner.Run(ctx, prog)
	if result.Error != nil {
		return "", executor.ClassifyHostFailure(result.Error)
	}
	return strings.TrimRight(result.Output, "\r\n"), nil
}

// withOutput formats a listing or creating operation's reply.
func withOutput(message, output string) string {
	return message + "\n\n" + output
}

// body renders a program body, substituting each argument as a codec
// literal for the matching %s verb.
func body(format string, args ...any) (string, error) {
	literals := make([]any, len(args))
	for i, a := range args {
		lit, err := codec.Literal(a)
		if err != nil {
			return "", fmt.Errorf("encode argument %d: %w", i, err)
		}
		literals[i] = lit
	}
	return fmt.Sprintf(format, literals...), nil
}

// ErrInvalidInput reports arguments the schema cannot express constraints
// for, such as fixed-length pairs.
var ErrInvalidInput = errors.New("invalid input")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func checkPair(field string, v []string) error {
	if len(v) != 2 {
		return invalid("%s needs exactly 2 values, got %d", field, len(v))
	}
	return nil
}

func checkCMYK(field string, v []float64) error {
	if v == nil {
		return nil
	}
	if len(v) != 4 {
		return invalid("%s needs exactly 4 values, got %d", field, len(v))
	}
	for _, x := range v {
		if x < 0 || x > 100 {
			return invalid("%s values must be between 0 and 100, got %v", field, x)
		}
	}
	return nil
}
