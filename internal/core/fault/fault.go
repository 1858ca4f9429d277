// Package fault defines the error kinds shared by the sync engine.
//
// Errors are wrapped with fmt.Errorf and the %w verb, so callers test for a
// kind with errors.Is:
//
//	if errors.Is(err, fault.ErrTransport) { ... }
package fault

import "errors"

// Sentinel error kinds.
var (
	// ErrValidation reports bad local input. It is returned before any I/O.
	ErrValidation = errors.New("invalid argument")
	// ErrTransport reports a failure of the backing service.
	ErrTransport = errors.New("transport error")
	// ErrChannel reports a failure of the real-time channel.
	ErrChannel = errors.New("channel error")
	// ErrState reports an operation invoked against a violated precondition.
	ErrState = errors.New("invalid state")
)

// Kind returns a short label for the kind of err, suitable for log fields
// and metric labels.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrChannel):
		return "channel"
	case errors.Is(err, ErrState):
		return "state"
	default:
		return "unknown"
	}
}
