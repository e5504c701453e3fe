package callback

import (
	"github.com/pkg/errors"
)

// Failure classes of a callback. Every error returned in a Result matches
// exactly one of them with errors.Is.
var (
	ErrAuthentication = errors.New("authentication failure")
	ErrResolution     = errors.New("resolution failure")
	ErrReconciliation = errors.New("reconciliation failure")
	ErrHandler        = errors.New("handler failure")
)

type failure struct {
	class error
	cause error
}

func newFailure(class, cause error) error {
	return &failure{
		class: class,
		cause: cause,
	}
}

func (f *failure) Error() string {
	return f.class.Error() + ": " + f.cause.Error()
}

func (f *failure) Unwrap() []error {
	return []error{f.class, f.cause}
}

func failureClass(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrAuthentication):
		return "authentication"
	case errors.Is(err, ErrResolution):
		return "resolution"
	case errors.Is(err, ErrReconciliation):
		return "reconciliation"
	case errors.Is(err, ErrHandler):
		return "handler"
	}
	return "unknown"
}
