package provider

import "fmt"

// Error codes carried in PaymentResult.ErrorCode. Expected runtime failures
// (bad signature, unsupported method, invalid amount) travel through these
// tagged results rather than Go errors: the facade boundary never surfaces a
// provider exception to its callers.
const (
	ErrCodeUnsupportedMethod = "UNSUPPORTED_PAYMENT_METHOD"
	ErrCodeDuplicateProvider = "DUPLICATE_PROVIDER"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeInvalidAmount     = "INVALID_AMOUNT"
	ErrCodeInvalidOrderID    = "INVALID_ORDER_ID"
	ErrCodeInvalidSubject    = "INVALID_SUBJECT"
	ErrCodeTransport         = "PROVIDER_TRANSPORT_ERROR"
	ErrCodeSignature         = "SIGNATURE_VERIFICATION_FAILED"
	ErrCodeMalformedCallback = "MALFORMED_CALLBACK"
)

// ProviderCodeKey is the Extra key carrying a provider's own rejection code.
// The ErrorCode field stays within the shared vocabulary; the raw provider
// code is diagnostic detail.
const ProviderCodeKey = "providerCode"

// PaymentError pairs an error code with a human-readable message. It is used
// on the startup/configuration channel (registry population, adapter
// construction) where a Go error is the right shape.
type PaymentError struct {
	Code    string
	Message string
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewPaymentError creates a PaymentError with the given code and message.
func NewPaymentError(code, format string, args ...any) *PaymentError {
	return &PaymentError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Failure builds a failed PaymentResult for the given method.
func Failure(method PaymentMethod, code, format string, args ...any) *PaymentResult {
	return &PaymentResult{
		Success:      false,
		Method:       method,
		ErrorCode:    code,
		ErrorMessage: fmt.Sprintf(format, args...),
	}
}

// FailureFromError converts a PaymentError into a failed result; any other
// error is reported as a transport failure so provider internals never leak.
func FailureFromError(method PaymentMethod, err error) *PaymentResult {
	if pe, ok := err.(*PaymentError); ok {
		return Failure(method, pe.Code, "%s", pe.Message)
	}
	return Failure(method, ErrCodeTransport, "%s", err.Error())
}
