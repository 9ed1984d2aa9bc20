package fault

import "errors"

// Kinds of failure surfaced by the booking engine. Every error returned by a
// domain or application package wraps exactly one of them.
var (
	NotFound          = errors.New("not found")
	Unavailable       = errors.New("unavailable")
	InvalidRequest    = errors.New("invalid request")
	IllegalTransition = errors.New("illegal transition")
	Conflict          = errors.New("conflict")
	DependencyFailure = errors.New("dependency failure")

	// Access kinds are raised by the application layer only.
	Unauthenticated = errors.New("unauthenticated")
	Forbidden       = errors.New("forbidden")
)

var codes = map[error]string{
	NotFound:          "not_found",
	Unavailable:       "unavailable",
	InvalidRequest:    "invalid_request",
	IllegalTransition: "illegal_transition",
	Conflict:          "conflict",
	DependencyFailure: "dependency_failure",
	Unauthenticated:   "unauthenticated",
	Forbidden:         "forbidden",
}

var kinds = []error{NotFound, Unavailable, InvalidRequest, IllegalTransition, Conflict, DependencyFailure, Unauthenticated, Forbidden}

// Error is a classified failure with a precise, user-facing reason.
type Error struct {
	Kind   error
	Reason string
	Cause  error
}

// New builds a classified error. Sentinels are declared with New so that both
// errors.Is(err, sentinel) and errors.Is(err, kind) hold.
func New(kind error, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap classifies an underlying cause.
func Wrap(kind error, reason string, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil && e.Reason == "" {
		return e.Cause.Error()
	}
	return e.Reason
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// KindOf returns the failure kind wrapped by err, or nil when unclassified.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Code returns a stable snake_case code for err, "internal" when unclassified.
func Code(err error) string {
	if kind := KindOf(err); kind != nil {
		return codes[kind]
	}
	return "internal"
}

// FromCode returns the kind registered under code, or nil.
func FromCode(code string) error {
	for kind, c := range codes {
		if c == code {
			return kind
		}
	}
	return nil
}
