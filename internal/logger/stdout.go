package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// StdoutLogger writes to a stream, stdout unless W is set. Weaving workers
// share one logger, so writes are serialized.
type StdoutLogger struct {
	W io.Writer

	mu sync.Mutex
}

func (l *StdoutLogger) out() io.Writer {
	if l.W == nil {
		return os.Stdout
	}
	return l.W
}

func (l *StdoutLogger) Logf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out(), format, args...)
}

func (l *StdoutLogger) Log(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out(), msg)
}
