package ui

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

type logEntry struct {
	level   string
	message string
}

var (
	activeLogMu sync.RWMutex
	activeLogCh chan logEntry
)

// setActiveLogChannel sets the channel used by the spinner to receive log updates.
func setActiveLogChannel(ch chan logEntry) {
	activeLogMu.Lock()
	activeLogCh = ch
	activeLogMu.Unlock()
}

func clearActiveLogChannel() {
	setActiveLogChannel(nil)
}

// Logger forwards to Logf so weaver progress shows up under a running spinner.
type Logger struct{}

func (Logger) Logf(format string, args ...interface{}) { Logf(format, args...) }

func (Logger) Log(msg string) { Log(msg) }

// Logf logs a formatted message. Under an active spinner the message replaces
// the spinner's status line; otherwise it goes to stdout.
func Logf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	activeLogMu.RLock()
	ch := activeLogCh
	activeLogMu.RUnlock()
	if ch != nil {
		select {
		case ch <- logEntry{level: "info", message: strings.TrimSpace(msg)}:
		default:
			// drop if channel is full to avoid blocking
		}
		return
	}
	fmt.Fprint(os.Stdout, msg)
}

// Log writes a plain message with newline semantics when not under a spinner.
func Log(msg string) {
	Logf("%s\n", msg)
}
