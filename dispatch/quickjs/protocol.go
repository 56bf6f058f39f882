package quickjs

import (
	"bytes"
	"strings"
	"sync"
)

// The wrapper prints the program's result framed as \x00INKBRIDGE:<text>\x00
// so stray output from the program cannot be mistaken for it.
const (
	resultPrefix = "\x00INKBRIDGE:"
	resultSuffix = "\x00"
)

// resultWriter captures module stdout, separating the result frame from
// everything else the program printed.
type resultWriter struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	other  bytes.Buffer
	result string
	found  bool
}

func (w *resultWriter) Write(data []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(data)

	for {
		content := w.buf.String()
		startIdx := strings.Index(content, resultPrefix)
		if startIdx == -1 {
			// Keep a possible partial prefix for the next write.
			keep := partialPrefix(content)
			w.other.WriteString(content[:len(content)-keep])
			w.buf.Reset()
			w.buf.WriteString(content[len(content)-keep:])
			break
		}

		w.other.WriteString(content[:startIdx])

		rest := content[startIdx+len(resultPrefix):]
		endIdx := strings.Index(rest, resultSuffix)
		if endIdx == -1 {
			w.buf.Reset()
			w.buf.WriteString(content[startIdx:])
			break
		}

		w.result = rest[:endIdx]
		w.found = true
		w.buf.Reset()
		w.buf.WriteString(rest[endIdx+len(resultSuffix):])
	}

	return len(data), nil
}

// Result returns the framed result, if the program got far enough to print
// one.
func (w *resultWriter) Result() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.result, w.found
}

// Other returns everything printed outside the result frame.
func (w *resultWriter) Other() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.other.String() + w.buf.String()
}

// partialPrefix returns how many trailing bytes of s could start a result
// frame.
func partialPrefix(s string) int {
	for n := min(len(resultPrefix)-1, len(s)); n > 0; n-- {
		if strings.HasSuffix(s, resultPrefix[:n]) {
			return n
		}
	}
	return 0
}
