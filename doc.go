// Package inkbridge drives Adobe Illustrator by composing ExtendScript
// programs from a library of named fragments and running them through the
// operating system's script dispatcher.
//
// # Overview
//
// Each call builds a program from the fragments it needs, in dependency
// order, followed by a body. The program is written to a working directory
// together with a one-shot control script, and the dispatcher runs the
// control script, which tells the host to execute the program. Whatever the
// program's last expression evaluates to comes back as text.
//
// # Basic Usage
//
//	lib := fragment.Builtins()
//	prog, _ := lib.Compose([]string{fragment.GetDocument}, `getDocument().name;`)
//
//	area, _ := executor.DefaultWorkingArea()
//	exec := executor.New(area, osascript.New())
//	result := exec.Run(ctx, prog)
//	fmt.Println(result.Output)
//
// The working directory holds one program at a time. Wrap the executor in
// an [executor.Queue] when calls may overlap:
//
//	queue := executor.NewQueue(exec)
//	result := queue.Run(ctx, prog)
//
// # Without a Host
//
// The [dispatch/sim] transport runs programs against an in-process document
// model with goja, and [dispatch/quickjs] runs them in a QuickJS WASI module
// under wazero. Both answer with the same diagnostic text the real
// dispatcher produces, so [executor.ClassifyHostFailure] works unchanged.
//
// See the [fragment], [executor], [tools] and [config] packages for detailed
// API documentation.
package inkbridge
