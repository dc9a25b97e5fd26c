package stripecard

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/tensorpay/unipay/provider"
)

const webhookSecret = "whsec_test"

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	adapter, err := New(Config{
		SecretKey:     "sk_test_123",
		WebhookSecret: webhookSecret,
	}, nil)
	require.NoError(t, err)
	return adapter
}

// signedWebhookPayload builds an event body and its Stripe-Signature header
// the same way Stripe's servers do.
func signedWebhookPayload(t *testing.T, intentJSON string) (payload, header string) {
	t.Helper()

	payload = fmt.Sprintf(`{"id":"evt_1","api_version":%q,"type":"payment_intent.succeeded","data":{"object":%s}}`,
		stripe.APIVersion, intentJSON)

	now := time.Now()
	sig := webhook.ComputeSignature(now, []byte(payload), webhookSecret)
	header = fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(sig))
	return payload, header
}

func TestNewRequiresSecretKey(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.Error(t, err)

	adapter, err := New(Config{SecretKey: "sk_test_123"}, nil)
	require.NoError(t, err)
	assert.Equal(t, provider.MethodCard, adapter.Method())
}

func TestCreatePaymentValidationShortCircuits(t *testing.T) {
	adapter := newTestAdapter(t)

	result := adapter.CreatePayment(context.Background(), provider.PaymentRequest{
		OrderID: "C1",
		Method:  provider.MethodCard,
		Amount:  0,
		Subject: "coffee beans",
	})

	require.False(t, result.Success)
	assert.Equal(t, provider.ErrCodeInvalidAmount, result.ErrorCode)
}

func TestCreatePaymentMethodMismatch(t *testing.T) {
	adapter := newTestAdapter(t)

	result := adapter.CreatePayment(context.Background(), provider.PaymentRequest{
		OrderID: "C1",
		Method:  provider.MethodAlipay,
		Amount:  10,
		Subject: "coffee beans",
	})

	require.False(t, result.Success)
	assert.Equal(t, provider.ErrCodeUnsupportedMethod, result.ErrorCode)
}

func TestIntentResultStatusMapping(t *testing.T) {
	tests := []struct {
		stripeStatus stripe.PaymentIntentStatus
		want         provider.PaymentStatus
	}{
		{stripe.PaymentIntentStatusRequiresPaymentMethod, provider.StatusPending},
		{stripe.PaymentIntentStatusRequiresConfirmation, provider.StatusPending},
		{stripe.PaymentIntentStatusRequiresAction, provider.StatusPending},
		{stripe.PaymentIntentStatusProcessing, provider.StatusProcessing},
		{stripe.PaymentIntentStatusRequiresCapture, provider.StatusProcessing},
		{stripe.PaymentIntentStatusSucceeded, provider.StatusSuccess},
		{stripe.PaymentIntentStatusCanceled, provider.StatusCancelled},
	}

	adapter := newTestAdapter(t)

	for _, tt := range tests {
		t.Run(string(tt.stripeStatus), func(t *testing.T) {
			pi := &stripe.PaymentIntent{
				ID:             "pi_1",
				Amount:         1234,
				AmountReceived: 1234,
				Status:         tt.stripeStatus,
				Created:        1756720200,
			}

			result := adapter.intentResult(pi, "C1")

			require.True(t, result.Success)
			assert.Equal(t, tt.want, result.Status)
			assert.Equal(t, 12.34, result.Amount)
			assert.Equal(t, "pi_1", result.TradeNo)

			if tt.want == provider.StatusSuccess {
				assert.Equal(t, 12.34, result.PaidAmount)
				require.NotNil(t, result.PaidAt)
			}
		})
	}
}

func TestIntentResultUnknownStatus(t *testing.T) {
	adapter := newTestAdapter(t)

	pi := &stripe.PaymentIntent{ID: "pi_1", Status: "entangled"}
	result := adapter.intentResult(pi, "C1")

	assert.Equal(t, provider.StatusFailed, result.Status)
	assert.Equal(t, "entangled", result.Extra[provider.RawStatusKey])
}

func TestRefundResult(t *testing.T) {
	adapter := newTestAdapter(t)

	succeeded := adapter.refundResult(&stripe.Refund{
		Amount: 350,
		Status: stripe.RefundStatusSucceeded,
	}, "C1", "R1")
	require.True(t, succeeded.Success)
	assert.Equal(t, provider.StatusRefunded, succeeded.Status)
	assert.Equal(t, 3.5, succeeded.PaidAmount)
	assert.Equal(t, "R1", succeeded.RefundID)

	pending := adapter.refundResult(&stripe.Refund{
		Amount: 350,
		Status: stripe.RefundStatusPending,
	}, "C1", "R1")
	require.True(t, pending.Success)
	assert.Equal(t, provider.StatusProcessing, pending.Status)

	failed := adapter.refundResult(&stripe.Refund{
		Amount: 350,
		Status: stripe.RefundStatusFailed,
	}, "C1", "R1")
	require.False(t, failed.Success)
	assert.Equal(t, provider.StatusFailed, failed.Status)
	assert.NotEmpty(t, failed.ErrorCode)
}

func TestRefundNonPositiveAmount(t *testing.T) {
	adapter := newTestAdapter(t)

	result := adapter.Refund(context.Background(), "C1", 0, "")

	require.False(t, result.Success)
	assert.Equal(t, provider.ErrCodeInvalidAmount, result.ErrorCode)
}

func TestHandleCallbackValidWebhook(t *testing.T) {
	adapter := newTestAdapter(t)

	payload, header := signedWebhookPayload(t,
		`{"id":"pi_1","amount":1234,"amount_received":1234,"status":"succeeded","created":1756720200,"metadata":{"orderId":"C1"}}`)

	result := adapter.HandleCallback(context.Background(), payload, header)

	require.True(t, result.Success)
	assert.Equal(t, provider.StatusSuccess, result.Status)
	assert.Equal(t, "C1", result.OrderID)
	assert.Equal(t, "pi_1", result.TradeNo)
	assert.Equal(t, 12.34, result.PaidAmount)
}

func TestHandleCallbackForgedSignatureNeverSucceeds(t *testing.T) {
	adapter := newTestAdapter(t)

	payload := `{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","status":"succeeded"}}}`

	result := adapter.HandleCallback(context.Background(), payload, "t=1,v1=deadbeef")

	require.False(t, result.Success)
	assert.Equal(t, provider.ErrCodeSignature, result.ErrorCode)
	assert.NotEqual(t, provider.StatusSuccess, result.Status)
}

func TestHandleCallbackMissingHeader(t *testing.T) {
	adapter := newTestAdapter(t)

	result := adapter.HandleCallback(context.Background(), `{"id":"evt_1"}`, "")

	require.False(t, result.Success)
	assert.Equal(t, provider.ErrCodeSignature, result.ErrorCode)
}

func TestVerifyCallback(t *testing.T) {
	adapter := newTestAdapter(t)

	payload, header := signedWebhookPayload(t, `{"id":"pi_1","status":"succeeded"}`)

	assert.True(t, adapter.VerifyCallback(context.Background(), payload, header))
	assert.False(t, adapter.VerifyCallback(context.Background(), payload, "t=1,v1=deadbeef"))
	assert.False(t, adapter.VerifyCallback(context.Background(), `{"tampered":true}`, header))
}

func TestStripeFailureUnwrapsStripeError(t *testing.T) {
	adapter := newTestAdapter(t)

	result := adapter.stripeFailure(&stripe.Error{
		Code: stripe.ErrorCodeCardDeclined,
		Msg:  "Your card was declined.",
	})
	require.False(t, result.Success)
	assert.Equal(t, provider.ErrCodeTransport, result.ErrorCode)
	assert.Equal(t, "Your card was declined.", result.ErrorMessage)
	assert.Equal(t, string(stripe.ErrorCodeCardDeclined), result.Extra[provider.ProviderCodeKey])

	plain := adapter.stripeFailure(errors.New("dial tcp: connection refused"))
	assert.Equal(t, provider.ErrCodeTransport, plain.ErrorCode)
}

func TestCurrencyDefaultsToUSD(t *testing.T) {
	assert.Equal(t, "usd", currency(provider.PaymentRequest{}))
	assert.Equal(t, "eur", currency(provider.PaymentRequest{
		Extra: map[string]string{"currency": "eur"},
	}))
}

func TestMinorAndMajorUnits(t *testing.T) {
	assert.Equal(t, int64(1234), minorUnits(12.34))
	assert.Equal(t, int64(1), minorUnits(0.01))
	assert.Equal(t, 12.34, majorUnits(1234))
}
