package logger

// Logger is a minimal structured logging interface used by the tenancy
// engine. Implementations accept alternating key/value pairs as variadic
// arguments, which keeps the interface small and easy to mock in tests.
type Logger interface {
	Error(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Debug(msg string, keyvals ...any)
}
