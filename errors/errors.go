package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind is the closed set of failure classes a payment operation can raise.
type Kind string

const (
	KindAuthentication  Kind = "authentication"
	KindInvalidRequest  Kind = "invalid_request"
	KindInvalidResponse Kind = "invalid_response"
	KindHardDecline     Kind = "hard_decline"
	KindSoftDecline     Kind = "soft_decline"
)

// Machine-readable codes attached to locally raised errors.
const (
	CodeInvalidState           = "invalid_state"
	CodeMissingPaymentMethod   = "missing_payment_method"
	CodeExpiredPaymentMethod   = "expired_payment_method"
	CodeMissingField           = "missing_field"
	CodeRefundExceedsBalance   = "refund_exceeds_balance"
	CodeCaptureExceedsAmount   = "capture_exceeds_amount"
	CodeInvalidAmount          = "invalid_amount"
	CodeUnsupportedCardType    = "unsupported_card_type"
	CodeConcurrentModification = "concurrent_modification"
	CodeNotFound               = "resource_not_found"
	CodeRateLimited            = "rate_limited"
	CodeUpgradeRequired        = "upgrade_required"
	CodeAuthenticationFailed   = "authentication_failed"
	CodePermissionDenied       = "permission_denied"
	CodeServerError            = "server_error"
	CodeTimeout                = "timeout"
	CodeUnexpectedResponse     = "unexpected_response"
)

// Error is the payment domain error. Callers match on Kind; Code narrows the
// reason and Message is safe to show to whoever the Kind is aimed at.
type Error struct {
	Kind    Kind   `json:"kind"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind. A target with a
// non-empty Code must also match the code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// JSON returns the error as a JSON string
func (e *Error) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// Retryable reports whether retrying the same operation later may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindSoftDecline || e.Kind == KindInvalidResponse
}

// CustomerFacing reports whether Message may be shown to the paying customer.
// Authentication and InvalidResponse are operator problems.
func (e *Error) CustomerFacing() bool {
	switch e.Kind {
	case KindHardDecline, KindSoftDecline, KindInvalidRequest:
		return true
	}
	return false
}

// HTTPStatus maps the kind onto the status code the HTTP layer responds with.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidRequest:
		if e.Code == CodeNotFound {
			return http.StatusNotFound
		}
		if e.Code == CodeConcurrentModification {
			return http.StatusConflict
		}
		return http.StatusBadRequest
	case KindHardDecline, KindSoftDecline:
		return http.StatusPaymentRequired
	case KindAuthentication:
		return http.StatusBadGateway
	default:
		return http.StatusServiceUnavailable
	}
}

// New creates a new Error
func New(kind Kind, code, message string, err error) *Error {
	return &Error{
		Kind:    kind,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func InvalidRequest(code, format string, args ...any) *Error {
	return New(KindInvalidRequest, code, fmt.Sprintf(format, args...), nil)
}

func HardDecline(code, format string, args ...any) *Error {
	return New(KindHardDecline, code, fmt.Sprintf(format, args...), nil)
}

// KindOf extracts the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries a domain error of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// Sentinels usable with errors.Is.
var (
	ErrInvalidState         = &Error{Kind: KindInvalidRequest, Code: CodeInvalidState}
	ErrExpiredPaymentMethod = &Error{Kind: KindHardDecline, Code: CodeExpiredPaymentMethod}
	ErrRefundExceedsBalance = &Error{Kind: KindInvalidRequest, Code: CodeRefundExceedsBalance}
	ErrUnsupportedCardType  = &Error{Kind: KindInvalidRequest, Code: CodeUnsupportedCardType}
	ErrNotFound             = &Error{Kind: KindInvalidRequest, Code: CodeNotFound}
	ErrConcurrentUpdate     = &Error{Kind: KindInvalidRequest, Code: CodeConcurrentModification}
)
