package port

// Fields is a set of structured key/value pairs attached to a log record.
type Fields map[string]interface{}

// LoggerPort abstracts the application core from a concrete logger.
type LoggerPort interface {
	Info(msg string, fields Fields)
	Warn(msg string, fields Fields)
	// Error records a failure, usually together with the error value.
	Error(msg string, err error, fields Fields)
	Debug(msg string, fields Fields)

	// WithFields returns a child logger that carries the given fields
	// (request id, component, device id).
	WithFields(fields Fields) LoggerPort
}
