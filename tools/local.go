package tools

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf16"

	"github.com/dop251/goja"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/inkbridge/inkbridge/codec"
)

// CalcExpressionsInput is the argument of calc_expressions.
type CalcExpressionsInput struct {
	Expressions []string `json:"expressions" jsonschema:"expressions"`
}

// CountCharactersInput is the argument of count_characters.
type CountCharactersInput struct {
	Lines []string `json:"lines" jsonschema:"Lines"`
}

func (c *Catalog) registerLocal(s *mcp.Server) {
	addLocal(c, s, "calc_expressions", "Calculates the results of the expressions.", c.calcExpressions)
	addLocal(c, s, "count_characters", "Counts the number of characters in each line.", c.countCharacters)
}

const calcScript = `
JSON.stringify(expressions.map(function (expression) {
  return { expression: expression, result: (new Function("return " + expression))() };
}));
`

// calcExpressions evaluates each expression in a fresh goja runtime.
func (c *Catalog) calcExpressions(ctx context.Context, in CalcExpressionsInput) (string, error) {
	expressions := make([]any, len(in.Expressions))
	for i, e := range in.Expressions {
		expressions[i] = e
	}
	vm := goja.New()
	if err := vm.Set("expressions", expressions); err != nil {
		return "", err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	val, err := vm.RunString(calcScript)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			if cause := interrupted.Unwrap(); cause != nil {
				return "", cause
			}
			return "", context.Canceled
		}
		return "", fmt.Errorf("evaluate: %w", err)
	}
	return withOutput("Calculated successfully.", val.String()), nil
}

type lineCount struct {
	Line  string `json:"line"`
	Count int    `json:"count"`
}

// countCharacters counts UTF-16 code units, the unit the host's string
// length uses.
func (c *Catalog) countCharacters(_ context.Context, in CountCharactersInput) (string, error) {
	counts := make([]lineCount, len(in.Lines))
	for i, line := range in.Lines {
		counts[i] = lineCount{Line: line, Count: len(utf16.Encode([]rune(line)))}
	}
	out, err := codec.Literal(counts)
	if err != nil {
		return "", err
	}
	return withOutput("Counted successfully.", out), nil
}
