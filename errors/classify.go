package errors

import (
	"fmt"
	"strconv"
)

// Category is the coarse failure class reported by the remote client before
// classification.
type Category string

const (
	CategoryNetwork         Category = "network"
	CategoryTimeout         Category = "timeout"
	CategoryAuthentication  Category = "authentication"
	CategoryPermission      Category = "permission"
	CategoryNotFound        Category = "not_found"
	CategoryRateLimit       Category = "rate_limit"
	CategoryUpgradeRequired Category = "upgrade_required"
	CategoryServer          Category = "server"
	CategoryValidation      Category = "validation"
	CategoryDecline         Category = "decline"
	CategoryUnknown         Category = "unknown"
)

// ProviderError is a remote failure normalized just enough to classify.
// Code is the numeric processor response (or validation) code when the
// provider sends one; DeclineCode is the provider's textual decline reason.
type ProviderError struct {
	Category    Category
	Code        int
	DeclineCode string
	Message     string
	Additional  string
	HTTPStatus  int
	Err         error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s error (status %d): %s: %v", e.Category, e.HTTPStatus, e.Message, e.Err)
	}
	return fmt.Sprintf("provider %s error (status %d): %s", e.Category, e.HTTPStatus, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Validation codes that reflect bad card data entered by the customer rather
// than a malformed request.
var hardDeclineValidationCodes = map[int]bool{
	81813: true, 91828: true, 81736: true, 81737: true, 81750: true, 91568: true,
}

var softDeclineProcessorCodes = map[int]bool{
	2000: true, 2001: true, 2002: true, 2003: true, 2009: true, 2016: true,
	2021: true, 2025: true, 2026: true, 2033: true, 2034: true, 2035: true,
	2038: true, 2040: true, 2042: true, 2046: true, 2048: true, 2050: true,
	2054: true, 2057: true, 2062: true,
}

// Processor codes in this range are reserved for transient conditions.
const (
	softDeclineRangeStart = 2092
	softDeclineRangeEnd   = 3000
)

var hardDeclineProcessorCodes = map[int]bool{
	2004: true, 2005: true, 2006: true, 2007: true, 2008: true, 2010: true,
	2011: true, 2012: true, 2013: true, 2014: true, 2015: true, 2017: true,
	2018: true, 2019: true, 2020: true, 2022: true, 2023: true, 2024: true,
	2027: true, 2028: true, 2029: true, 2030: true, 2031: true, 2032: true,
	2036: true, 2037: true, 2039: true, 2041: true, 2043: true, 2044: true,
	2045: true, 2047: true, 2049: true, 2051: true, 2053: true, 2055: true,
	2056: true, 2058: true, 2059: true, 2060: true, 2061: true,
}

var softDeclineReasons = map[string]bool{
	"approve_with_id":                 true,
	"authentication_required":         true,
	"card_velocity_exceeded":          true,
	"insufficient_funds":              true,
	"issuer_not_available":            true,
	"processing_error":                true,
	"reenter_transaction":             true,
	"try_again_later":                 true,
	"withdrawal_count_limit_exceeded": true,
}

var hardDeclineReasons = map[string]bool{
	"call_issuer":                       true,
	"card_not_supported":                true,
	"currency_not_supported":            true,
	"do_not_honor":                      true,
	"do_not_try_again":                  true,
	"expired_card":                      true,
	"fraudulent":                        true,
	"generic_decline":                   true,
	"incorrect_cvc":                     true,
	"incorrect_number":                  true,
	"incorrect_zip":                     true,
	"invalid_account":                   true,
	"invalid_cvc":                       true,
	"invalid_expiry_month":              true,
	"invalid_expiry_year":               true,
	"invalid_number":                    true,
	"lost_card":                         true,
	"merchant_blacklist":                true,
	"new_account_information_available": true,
	"no_action_taken":                   true,
	"not_permitted":                     true,
	"pickup_card":                       true,
	"restricted_card":                   true,
	"revocation_of_all_authorizations":  true,
	"revocation_of_authorization":       true,
	"security_violation":                true,
	"service_not_allowed":               true,
	"stolen_card":                       true,
	"stop_payment_order":                true,
	"transaction_not_allowed":           true,
}

// IsSoftDeclineCode reports whether a numeric processor code is transient.
func IsSoftDeclineCode(code int) bool {
	if softDeclineProcessorCodes[code] {
		return true
	}
	return code >= softDeclineRangeStart && code <= softDeclineRangeEnd
}

// IsHardDeclineCode reports whether a numeric processor code is listed as terminal.
func IsHardDeclineCode(code int) bool {
	return hardDeclineProcessorCodes[code]
}

// IsSoftDeclineReason reports whether a textual decline reason is transient.
func IsSoftDeclineReason(reason string) bool {
	return softDeclineReasons[reason]
}

// IsHardDeclineReason reports whether a textual decline reason is listed as terminal.
func IsHardDeclineReason(reason string) bool {
	return hardDeclineReasons[reason]
}

// Classify maps a provider failure onto the domain taxonomy. Anything it does
// not recognize becomes InvalidResponse.
func Classify(pe *ProviderError) *Error {
	if pe == nil {
		return New(KindInvalidResponse, CodeUnexpectedResponse, "Unrecognized provider error.", nil)
	}

	switch pe.Category {
	case CategoryAuthentication:
		return New(KindAuthentication, CodeAuthenticationFailed, "Provider authentication failed.", pe)
	case CategoryPermission:
		return New(KindAuthentication, CodePermissionDenied, "The API key is not authorized to perform the attempted action.", pe)
	case CategoryNotFound:
		return New(KindInvalidRequest, CodeNotFound, "Provider resource not found.", pe)
	case CategoryUpgradeRequired:
		return New(KindInvalidRequest, CodeUpgradeRequired, "The provider client library needs to be updated.", pe)
	case CategoryRateLimit:
		return New(KindInvalidRequest, CodeRateLimited, "Too many requests.", pe)
	case CategoryServer:
		return New(KindInvalidResponse, CodeServerError, "Server error.", pe)
	case CategoryTimeout, CategoryNetwork:
		return New(KindInvalidResponse, CodeTimeout, "Request timed out.", pe)
	case CategoryValidation:
		return classifyValidation(pe)
	case CategoryDecline:
		return classifyDecline(pe)
	}

	msg := pe.Message
	if msg == "" {
		msg = "Unrecognized provider error."
	}
	return New(KindInvalidResponse, CodeUnexpectedResponse, msg, pe)
}

func classifyValidation(pe *ProviderError) *Error {
	code := pe.DeclineCode
	if pe.Code != 0 {
		code = strconv.Itoa(pe.Code)
	}
	if hardDeclineValidationCodes[pe.Code] {
		return New(KindHardDecline, code, pe.Message, pe)
	}
	return New(KindInvalidRequest, code, pe.Message, pe)
}

func classifyDecline(pe *ProviderError) *Error {
	text := pe.Message
	if pe.Additional != "" {
		text += " (" + pe.Additional + ")"
	}

	if pe.Code != 0 {
		code := strconv.Itoa(pe.Code)
		if IsSoftDeclineCode(pe.Code) {
			return New(KindSoftDecline, code, text, pe)
		}
		return New(KindHardDecline, code, text, pe)
	}

	if IsSoftDeclineReason(pe.DeclineCode) {
		return New(KindSoftDecline, pe.DeclineCode, text, pe)
	}
	// Unknown reasons are terminal, same as the listed ones.
	return New(KindHardDecline, pe.DeclineCode, text, pe)
}
