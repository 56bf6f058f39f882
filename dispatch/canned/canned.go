// Package canned provides a fake transport that answers every dispatch with
// preset text and records what it was asked to run.
package canned

import (
	"context"
	"os"
	"sync"

	"github.com/inkbridge/inkbridge/executor"
)

// Response is one preset answer.
type Response struct {
	Output string
	Err    error
}

// Call records one dispatch: the request and the artifact contents read at
// dispatch time.
type Call struct {
	Request executor.Request
	Program string
	Control string
}

// Transport is an executor.Transport returning preset responses in order,
// then Default once they run out.
type Transport struct {
	// Default is returned when no queued response is left.
	Default Response

	// Gate, if set, is called before the artifacts are read. n is the
	// 1-based call number. A non-nil error fails the dispatch.
	Gate func(ctx context.Context, n int, req executor.Request) error

	mu        sync.Mutex
	responses []Response
	calls     []Call
	count     int
}

// New returns a transport whose default response is output.
func New(output string) *Transport {
	return &Transport{Default: Response{Output: output}}
}

// Push queues responses ahead of Default.
func (t *Transport) Push(rs ...Response) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.responses = append(t.responses, rs...)
}

// Name implements executor.Transport.
func (t *Transport) Name() string { return "canned" }

// Dispatch implements executor.Transport.
func (t *Transport) Dispatch(ctx context.Context, req executor.Request) ([]byte, error) {
	t.mu.Lock()
	t.count++
	n := t.count
	t.mu.Unlock()

	if t.Gate != nil {
		if err := t.Gate(ctx, n, req); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	program, err := os.ReadFile(req.ProgramPath)
	if err != nil {
		return nil, err
	}
	control, err := os.ReadFile(req.ControlPath)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, Call{
		Request: req,
		Program: executor.DecodeOutput(program),
		Control: string(control),
	})

	resp := t.Default
	if len(t.responses) > 0 {
		resp = t.responses[0]
		t.responses = t.responses[1:]
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return []byte(resp.Output), nil
}

// Calls returns the recorded dispatches in completion order.
func (t *Transport) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Call(nil), t.calls...)
}

// Last returns the most recent dispatch.
func (t *Transport) Last() (Call, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.calls) == 0 {
		return Call{}, false
	}
	return t.calls[len(t.calls)-1], true
}
