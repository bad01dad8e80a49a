package logging

import "log/slog"

// Common field names for consistent logging across the relay.
const (
	FieldService   = "service"
	FieldEndpoint  = "endpoint"
	FieldShape     = "shape"
	FieldOutcome   = "outcome"
	FieldAttempts  = "attempts"
	FieldRemoteID  = "remote_id"
	FieldFallbacks = "fallbacks"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldIP        = "ip"
	FieldResource  = "resource"
	FieldPage      = "page"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// Endpoint returns a slog attribute for the intake endpoint name.
func Endpoint(name string) slog.Attr {
	return slog.String(FieldEndpoint, name)
}

// Shape returns a slog attribute for the classified payload shape.
func Shape(shape string) slog.Attr {
	return slog.String(FieldShape, shape)
}

// Outcome returns a slog attribute for the dispatch outcome tag.
func Outcome(tag string) slog.Attr {
	return slog.String(FieldOutcome, tag)
}

// Attempts returns a slog attribute for the dispatch attempt count.
func Attempts(n int) slog.Attr {
	return slog.Int(FieldAttempts, n)
}

// RemoteID returns a slog attribute for the downstream lead ID.
func RemoteID(id string) slog.Attr {
	return slog.String(FieldRemoteID, id)
}

// Fallbacks returns a slog attribute listing synthesized fields.
func Fallbacks(fields []string) slog.Attr {
	return slog.Any(FieldFallbacks, fields)
}

// Status returns a slog attribute for an HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}

// IP returns a slog attribute for the client IP address.
func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

// Resource returns a slog attribute for a bulk sync resource type.
func Resource(name string) slog.Attr {
	return slog.String(FieldResource, name)
}

// Page returns a slog attribute for a pagination cursor position.
func Page(n int) slog.Attr {
	return slog.Int(FieldPage, n)
}
