package logger

import (
	"bytes"
	"sync"
	"testing"
)

func TestStdoutLoggerWritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	l := &StdoutLogger{W: &buf}

	l.Logf("wove %s: %d\n", "a.c", 2)
	l.Log("done")

	if got, want := buf.String(), "wove a.c: 2\ndone\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestStdoutLoggerConcurrent(t *testing.T) {
	var buf bytes.Buffer
	l := &StdoutLogger{W: &buf}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Log("x")
		}()
	}
	wg.Wait()

	if got := buf.Len(); got != 16 {
		t.Errorf("wrote %d bytes, want 16", got)
	}
}

func TestNopLogger(t *testing.T) {
	var l Logger = Nop{}
	l.Logf("%s", "ignored")
	l.Log("ignored")
}
