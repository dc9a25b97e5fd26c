package provider

import "context"

// PaymentProvider defines the contract every payment adapter must implement.
// Operations report expected failures (validation, transport, rejected
// callbacks) inside the returned PaymentResult; they do not panic and do not
// return Go errors across this boundary.
type PaymentProvider interface {
	// Method returns the single payment method this adapter serves.
	Method() PaymentMethod

	// CreatePayment validates the request and asks the provider to open a
	// transaction. A successful result carries status pending plus either a
	// scannable code/URL or an opaque client-invocation payload.
	CreatePayment(ctx context.Context, request PaymentRequest) *PaymentResult

	// QueryPayment retrieves the provider-side state of a payment by
	// merchant order id and normalizes it onto the shared status set.
	QueryPayment(ctx context.Context, orderID string) *PaymentResult

	// CancelPayment stops further settlement of a pending payment, using
	// whatever primitive the provider offers (close, revoke). Status is
	// cancelled only if the provider confirmed the action.
	CancelPayment(ctx context.Context, orderID string) *PaymentResult

	// Refund returns amount to the payer, minting a fresh refund operation id
	// so repeated attempts on one order stay distinguishable.
	Refund(ctx context.Context, orderID string, amount float64, reason string) *PaymentResult

	// QueryRefund retrieves the state of a previously requested refund.
	QueryRefund(ctx context.Context, orderID, refundID string) *PaymentResult

	// HandleCallback parses an asynchronous provider notification. The
	// signature argument is the digest the HTTP layer extracted (empty when
	// the provider embeds it in the payload itself). It must be verified
	// before any field is trusted; an unverified payload never yields a
	// success status.
	HandleCallback(ctx context.Context, payload, signature string) *PaymentResult

	// VerifyCallback recomputes the payload signature and compares it with
	// the supplied digest. Malformed input yields false, never a panic.
	VerifyCallback(ctx context.Context, payload, signature string) bool
}
