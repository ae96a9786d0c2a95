package logkey

// Shared keys for structured log attributes so log lines stay greppable
// across packages.
const (
	TraceID = "Trace ID"
	ERROR   = "Error"
)
