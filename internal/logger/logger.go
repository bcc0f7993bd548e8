package logger

type Logger interface {
	Logf(format string, args ...interface{})
	Log(msg string)
}

// Nop discards everything. Used by library callers that pass no logger.
type Nop struct{}

func (Nop) Logf(format string, args ...interface{}) {}
func (Nop) Log(msg string)                          {}
