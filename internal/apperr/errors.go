// Package apperr classifies the error surfaces the bridge's adapters
// and gateway raise, so callers can decide propagation policy (swallow
// and reflect in the liveness map, log and continue, or report to the
// MQTT error topic) without string-matching error text.
package apperr

import "fmt"

// Kind is the category of a bridge error.
type Kind string

const (
	ConfigMissing        Kind = "config_missing"
	EndpointDown         Kind = "endpoint_down"
	TransientIO          Kind = "transient_io"
	ProtocolError        Kind = "protocol_error"
	UnsupportedOperation Kind = "unsupported_operation"
	TypeCoercion         Kind = "type_coercion"
	CommandMalformed     Kind = "command_malformed"
	PermissionDenied     Kind = "permission_denied"
	Fatal                Kind = "fatal"
)

// Error wraps an underlying cause with a Kind so callers can switch on
// propagation policy per spec.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with kind and the operation name that raised it. If
// err is nil, New returns nil so it composes with ordinary early
// returns.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind from err, defaulting to Fatal for errors
// that were never classified.
func KindOf(err error) Kind {
	var e *Error
	if as(err, &e) {
		return e.Kind
	}
	return Fatal
}

func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
