package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies gateway errors so callers can branch without string matching.
type Kind int

const (
	// KindCrypto covers unrecoverable key and signature-primitive failures:
	// unreadable key file, malformed key material, undecodable signature text.
	// A broken key makes every subsequent operation meaningless, so these
	// always propagate.
	KindCrypto Kind = iota + 1

	// KindProtocolMisuse marks programmer errors in the extension protocol,
	// such as setting request input twice or verifying before response data
	// is set. Never retried.
	KindProtocolMisuse

	// KindVerification marks a signature that did not match when the caller
	// required it to (strict extensions, top-level gateway responses).
	KindVerification

	// KindTransport covers HTTP-level failures talking to the gateway.
	KindTransport

	// KindConfig covers invalid or incomplete configuration.
	KindConfig

	// KindValidation covers request data that violates the gateway contract
	// before it is ever sent (bad order number, inconsistent cart).
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindCrypto:
		return "crypto"
	case KindProtocolMisuse:
		return "protocol_misuse"
	case KindVerification:
		return "verification"
	case KindTransport:
		return "transport"
	case KindConfig:
		return "config"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind    Kind
	Message string
	Details string
	Cause   error
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(kind Kind, message, details string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Details: details,
	}
}

func Wrap(err error, kind Kind, message, details string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Details: details,
		Cause:   err,
	}
}

// HasKind reports whether err or anything it wraps is an *Error of the given kind.
func HasKind(err error, kind Kind) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

func IsCrypto(err error) bool {
	return HasKind(err, KindCrypto)
}

func IsProtocolMisuse(err error) bool {
	return HasKind(err, KindProtocolMisuse)
}

func IsVerification(err error) bool {
	return HasKind(err, KindVerification)
}
