package provider

import "strings"

// ValidateRequest runs the shared payment-request checks every adapter calls
// before touching its transport. Adapters invoke it explicitly rather than
// inheriting it, so each create path shows where validation happens.
func ValidateRequest(request *PaymentRequest, method PaymentMethod) *PaymentError {
	if request == nil {
		return NewPaymentError(ErrCodeInvalidRequest, "payment request must not be nil")
	}

	if request.Method != method {
		return NewPaymentError(ErrCodeUnsupportedMethod, "request method %q does not match adapter method %q", request.Method, method)
	}

	if request.Amount <= 0 {
		return NewPaymentError(ErrCodeInvalidAmount, "payment amount must be greater than 0")
	}

	if strings.TrimSpace(request.OrderID) == "" {
		return NewPaymentError(ErrCodeInvalidOrderID, "merchant order id must not be blank")
	}

	if strings.TrimSpace(request.Subject) == "" {
		return NewPaymentError(ErrCodeInvalidSubject, "payment subject must not be blank")
	}

	return nil
}

// ValidateRefundAmount rejects non-positive refund amounts locally; whether
// the amount exceeds the settled total is enforced by the provider.
func ValidateRefundAmount(amount float64) *PaymentError {
	if amount <= 0 {
		return NewPaymentError(ErrCodeInvalidAmount, "refund amount must be greater than 0")
	}
	return nil
}
