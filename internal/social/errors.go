package social

import "fmt"

// ErrorKind classifies publish failures so callers and the audit log can
// tell validation problems apart from provider-side ones.
type ErrorKind string

const (
	KindValidation         ErrorKind = "validation"
	KindCredentialsMissing ErrorKind = "credentials_missing"
	KindProvider           ErrorKind = "provider"
	KindUnsupported        ErrorKind = "unsupported"
)

// Error is the error type raised by publishers and the dispatcher.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Errorf builds an *Error with a formatted message.
func Errorf(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err when it is an *Error, KindProvider otherwise.
// Transport failures and anything a publisher did not classify count as
// provider errors.
func KindOf(err error) ErrorKind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindProvider
}
