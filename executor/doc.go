// Package executor stages composed programs on disk and dispatches them to
// the host application.
//
// # Overview
//
// Every run writes two artifacts into a fixed [WorkingArea]: the composed
// program, prefixed with a UTF-8 byte-order mark, and a three-line control
// script that tells the host to run it. A [Transport] then carries the
// control script to the host and returns whatever the host printed.
//
// # Basic Usage
//
//	area, err := executor.DefaultWorkingArea()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	exec := executor.New(area, osascript.New())
//
//	prog, _ := fragment.Builtins().Compose([]string{fragment.GetDocument}, "getDocument().name;")
//	result := exec.Run(ctx, prog)
//	fmt.Println(result.Output)
//
// # Concurrency
//
// An [Executor] does not serialize callers. Two concurrent runs write the
// same artifact paths and drive the same host instance, so one run may
// dispatch the other's program. Put a [Queue] in front of the executor
// when calls can arrive concurrently:
//
//	runner := executor.NewQueue(exec)
//
// # Errors
//
// Failures are reported as [*Error] values whose Kind is one of
// [ErrWorkingDirectoryUnavailable], [ErrArtifactWriteFailed] or
// [ErrDispatchFailed]. Errors raised by the program inside the host only
// appear as dispatcher text; [ClassifyHostFailure] recognizes them and
// reports [ErrHostScriptFailed].
package executor
