package executor_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/inkbridge/inkbridge/dispatch/canned"
	"github.com/inkbridge/inkbridge/executor"
	"github.com/inkbridge/inkbridge/fragment"
)

func program(t *testing.T, body string, required ...string) *fragment.Program {
	t.Helper()
	prog, err := fragment.Builtins().Compose(required, body)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	return prog
}

func newExecutor(t *testing.T, tr executor.Transport, opts ...executor.ExecutorOption) (*executor.Executor, *executor.WorkingArea) {
	t.Helper()
	area := executor.NewWorkingArea(filepath.Join(t.TempDir(), "work"))
	return executor.New(area, tr, opts...), area
}

// =============================================================================
// STAGING
// =============================================================================

func TestRunCreatesWorkingDirectory(t *testing.T) {
	exec, area := newExecutor(t, canned.New("ok"))

	if _, err := os.Stat(area.Root()); !os.IsNotExist(err) {
		t.Fatalf("working directory should not exist yet: %v", err)
	}
	result := exec.Run(context.Background(), program(t, "1;"))
	if result.Error != nil {
		t.Fatalf("unexpected error: %v", result.Error)
	}
	if info, err := os.Stat(area.Root()); err != nil || !info.IsDir() {
		t.Fatalf("working directory not created: %v", err)
	}

	// Second run reuses the directory.
	if result := exec.Run(context.Background(), program(t, "2;")); result.Error != nil {
		t.Fatalf("second run: %v", result.Error)
	}
}

func TestProgramArtifactHasBOM(t *testing.T) {
	exec, area := newExecutor(t, canned.New(""))
	prog := program(t, `"日本語";`, fragment.GetDocument)

	if result := exec.Run(context.Background(), prog); result.Error != nil {
		t.Fatalf("unexpected error: %v", result.Error)
	}
	raw, err := os.ReadFile(area.ProgramPath())
	if err != nil {
		t.Fatalf("read program: %v", err)
	}
	if !strings.HasPrefix(string(raw), "\xef\xbb\xbf") {
		t.Fatalf("program artifact missing BOM: %q", raw[:8])
	}
	if got := string(raw[3:]); got != prog.String() {
		t.Errorf("program artifact mismatch:\n%s", got)
	}
}

func TestControlArtifact(t *testing.T) {
	tr := canned.New("")
	exec, area := newExecutor(t, tr, executor.WithApplication("Adobe Illustrator 2025"))

	if result := exec.Run(context.Background(), program(t, "1;")); result.Error != nil {
		t.Fatalf("unexpected error: %v", result.Error)
	}
	call, _ := tr.Last()
	want := "tell application \"Adobe Illustrator 2025\"\n" +
		"return do javascript (POSIX file \"" + area.ProgramPath() + "\")\n" +
		"end tell\n"
	if call.Control != want {
		t.Errorf("expected control script:\n%s\ngot:\n%s", want, call.Control)
	}
	if call.Request.Application != "Adobe Illustrator 2025" {
		t.Errorf("unexpected application %q", call.Request.Application)
	}
	if call.Request.ControlPath != area.ControlPath() {
		t.Errorf("unexpected control path %q", call.Request.ControlPath)
	}
}

func TestControlScriptEscaping(t *testing.T) {
	got := executor.ControlScript(`My "Host"`, `/tmp/a\b/message.jsx`)
	want := "tell application \"My \\\"Host\\\"\"\n" +
		"return do javascript (POSIX file \"/tmp/a\\\\b/message.jsx\")\n" +
		"end tell\n"
	if got != want {
		t.Errorf("expected:\n%s\ngot:\n%s", want, got)
	}
	if n := strings.Count(strings.TrimSuffix(got, "\n"), "\n"); n != 2 {
		t.Errorf("control script should be 3 lines, got %d", n+1)
	}
}

func TestOutputReturnedVerbatim(t *testing.T) {
	exec, _ := newExecutor(t, canned.New("  {\"a\":1}\n"))

	result := exec.Run(context.Background(), program(t, "x;"))
	if result.Error != nil {
		t.Fatalf("unexpected error: %v", result.Error)
	}
	if result.Output != "  {\"a\":1}\n" {
		t.Errorf("output changed: %q", result.Output)
	}
	if result.Duration <= 0 {
		t.Error("duration not recorded")
	}
}

func TestDecodeOutput(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want string
	}{
		{"plain", []byte("hello"), "hello"},
		{"bom stripped", []byte("\xef\xbb\xbfhello"), "hello"},
		{"multibyte", []byte("テキスト"), "テキスト"},
		{"invalid replaced", []byte("a\xffb"), "a�b"},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := executor.DecodeOutput(tt.raw); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

// =============================================================================
// FAILURES
// =============================================================================

func TestWorkingDirectoryUnavailable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	tr := canned.New("")
	exec := executor.New(executor.NewWorkingArea(blocker), tr)

	result := exec.Run(context.Background(), program(t, "1;"))
	if !errors.Is(result.Error, executor.ErrWorkingDirectoryUnavailable) {
		t.Fatalf("expected ErrWorkingDirectoryUnavailable, got %v", result.Error)
	}
	if len(tr.Calls()) != 0 {
		t.Error("transport should not be called")
	}
}

func TestArtifactWriteFailed(t *testing.T) {
	exec, area := newExecutor(t, canned.New(""))
	if err := area.Ensure(); err != nil {
		t.Fatal(err)
	}
	// A directory in place of the program file makes the write fail.
	if err := os.Mkdir(area.ProgramPath(), 0o755); err != nil {
		t.Fatal(err)
	}

	result := exec.Run(context.Background(), program(t, "1;"))
	if !errors.Is(result.Error, executor.ErrArtifactWriteFailed) {
		t.Fatalf("expected ErrArtifactWriteFailed, got %v", result.Error)
	}
	var xerr *executor.Error
	if !errors.As(result.Error, &xerr) || xerr.Path != area.ProgramPath() {
		t.Errorf("expected path %q in error, got %v", area.ProgramPath(), result.Error)
	}
}

func TestTransportErrorWrapped(t *testing.T) {
	tr := canned.New("")
	cause := errors.New("exec: not found")
	tr.Push(canned.Response{Err: cause})
	exec, _ := newExecutor(t, tr)

	result := exec.Run(context.Background(), program(t, "1;"))
	if !errors.Is(result.Error, executor.ErrDispatchFailed) {
		t.Fatalf("expected ErrDispatchFailed, got %v", result.Error)
	}
	if !errors.Is(result.Error, cause) {
		t.Errorf("cause lost: %v", result.Error)
	}
	if result.Output != "" {
		t.Errorf("no partial output expected, got %q", result.Output)
	}
}

func TestTransportTypedErrorPassesThrough(t *testing.T) {
	tr := canned.New("")
	typed := &executor.Error{Kind: executor.ErrDispatchFailed, Stderr: "boom", ExitCode: 1}
	tr.Push(canned.Response{Err: typed})
	exec, _ := newExecutor(t, tr)

	result := exec.Run(context.Background(), program(t, "1;"))
	var xerr *executor.Error
	if !errors.As(result.Error, &xerr) || xerr != typed {
		t.Fatalf("expected the transport's error unchanged, got %v", result.Error)
	}
}

func TestTimeout(t *testing.T) {
	tr := canned.New("late")
	tr.Gate = func(ctx context.Context, n int, req executor.Request) error {
		<-ctx.Done()
		return ctx.Err()
	}
	exec, _ := newExecutor(t, tr)

	result := exec.Run(context.Background(), program(t, "1;"), executor.WithTimeout(20*time.Millisecond))
	if !errors.Is(result.Error, executor.ErrDispatchFailed) {
		t.Fatalf("expected ErrDispatchFailed, got %v", result.Error)
	}
	if !errors.Is(result.Error, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded in chain, got %v", result.Error)
	}
	if !strings.Contains(result.Error.Error(), "timeout after 20ms") {
		t.Errorf("unexpected message %q", result.Error.Error())
	}
}

// =============================================================================
// CONCURRENCY
// =============================================================================

// Two unserialized runs share the artifact paths: the second run's write
// lands while the first run's dispatcher has yet to read, so the first run
// executes the second run's program.
func TestUnserializedRunsRaceOnArtifacts(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	tr := canned.New("")
	tr.Gate = func(ctx context.Context, n int, req executor.Request) error {
		if n == 1 {
			close(entered)
			<-release
		}
		return nil
	}
	exec, _ := newExecutor(t, tr)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		exec.Run(context.Background(), program(t, "first();"))
	}()

	<-entered
	if result := exec.Run(context.Background(), program(t, "second();")); result.Error != nil {
		t.Fatalf("second run: %v", result.Error)
	}
	close(release)
	wg.Wait()

	calls := tr.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	for i, call := range calls {
		if !strings.HasSuffix(call.Program, "second();") {
			t.Errorf("call %d: expected the second program, got %q", i, call.Program)
		}
	}
}

func TestQueueSerializesRuns(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	tr := canned.New("")
	tr.Gate = func(ctx context.Context, n int, req executor.Request) error {
		if n == 1 {
			close(entered)
			<-release
		}
		return nil
	}
	exec, area := newExecutor(t, tr)
	queue := executor.NewQueue(exec)

	done := make(chan executor.Result, 1)
	go func() {
		done <- queue.Run(context.Background(), program(t, "first();"))
	}()
	<-entered

	// The slot is held, so this caller gives up without touching the artifacts.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	result := queue.Run(ctx, program(t, "second();"))
	if !errors.Is(result.Error, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded while waiting, got %v", result.Error)
	}
	if !errors.Is(result.Error, executor.ErrDispatchFailed) {
		t.Errorf("expected ErrDispatchFailed kind while waiting, got %v", result.Error)
	}
	var xerr *executor.Error
	if !errors.As(result.Error, &xerr) || xerr.ExitCode != -1 {
		t.Errorf("expected *executor.Error with exit code -1, got %#v", result.Error)
	}
	raw, _ := os.ReadFile(area.ProgramPath())
	if !strings.HasSuffix(string(raw), "first();") {
		t.Fatalf("waiting caller overwrote the program: %q", raw)
	}

	close(release)
	if r := <-done; r.Error != nil {
		t.Fatalf("first run: %v", r.Error)
	}

	third := queue.Run(context.Background(), program(t, "third();"))
	if third.Error != nil {
		t.Fatalf("third run: %v", third.Error)
	}
	calls := tr.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 dispatches, got %d", len(calls))
	}
	if !strings.HasSuffix(calls[0].Program, "first();") || !strings.HasSuffix(calls[1].Program, "third();") {
		t.Errorf("unexpected programs: %q, %q", calls[0].Program, calls[1].Program)
	}
}

func TestQueueConcurrentCallersEachSeeOwnProgram(t *testing.T) {
	tr := canned.New("")
	exec, _ := newExecutor(t, tr)
	queue := executor.NewQueue(exec)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := "call" + string(rune('a'+i)) + "();"
			if r := queue.Run(context.Background(), program(t, body)); r.Error != nil {
				t.Errorf("run %d: %v", i, r.Error)
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, call := range tr.Calls() {
		lines := strings.Split(call.Program, "\n")
		seen[lines[len(lines)-1]] = true
	}
	if len(seen) != 16 {
		t.Errorf("expected 16 distinct programs dispatched, got %d", len(seen))
	}
}

func TestParseControlScript(t *testing.T) {
	tests := []struct{ app, path string }{
		{"Adobe Illustrator", "/Users/me/illustrator-mcp-tmp/message.jsx"},
		{`Quote "App"`, `/tmp/back\slash/message.jsx`},
		{"日本語", "/tmp/スペース 入り/message.jsx"},
	}
	for _, tt := range tests {
		app, path, err := executor.ParseControlScript(executor.ControlScript(tt.app, tt.path))
		if err != nil {
			t.Fatalf("parse %q: %v", tt.app, err)
		}
		if app != tt.app || path != tt.path {
			t.Errorf("round trip: got (%q, %q), want (%q, %q)", app, path, tt.app, tt.path)
		}
	}

	if _, _, err := executor.ParseControlScript("display dialog \"hi\""); !errors.Is(err, executor.ErrMalformedControl) {
		t.Errorf("expected ErrMalformedControl, got %v", err)
	}
}

func TestDefaultWorkingAreaUnderHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	area, err := executor.DefaultWorkingArea()
	if err != nil {
		t.Fatalf("default area: %v", err)
	}
	if want := filepath.Join(home, "illustrator-mcp-tmp"); area.Root() != want {
		t.Errorf("root = %q, want %q", area.Root(), want)
	}
	if area.ProgramPath() != filepath.Join(area.Root(), "message.jsx") {
		t.Errorf("program path = %q", area.ProgramPath())
	}
	if area.ControlPath() != filepath.Join(area.Root(), "message.scpt") {
		t.Errorf("control path = %q", area.ControlPath())
	}
}
