package errors

import "fmt"

// Kind classifies failures from the remote feature service.
type Kind string

const (
	// KindNetwork covers connection failures and timeouts.
	KindNetwork Kind = "network"
	// KindServer covers non-2xx HTTP responses.
	KindServer Kind = "server"
	// KindRemote covers application errors embedded in a 200 OK body.
	KindRemote Kind = "remote"
	// KindShape covers responses whose JSON does not match the expected shape.
	KindShape   Kind = "shape"
	KindUnknown Kind = "unknown"
)

// Error represents a failure talking to the feature service, tagged with a
// kind so callers can decide to retry, skip, or abort.
type Error struct {
	Kind    Kind
	Message string
	Code    int
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// New creates a tagged error. Code is the HTTP status when one applies,
// zero otherwise.
func New(kind Kind, code int, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	}
}

// IsRetryable reports whether an error kind is worth retrying. Shape errors
// are never retried: repeating a request that came back in an unexpected
// shape will not change the outcome.
func IsRetryable(kind Kind) bool {
	switch kind {
	case KindNetwork, KindServer, KindRemote:
		return true
	default:
		return false
	}
}
