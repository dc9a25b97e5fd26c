package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider is a minimal PaymentProvider for registry and service tests.
type stubProvider struct {
	method PaymentMethod

	createCalls   int
	lastOrderID   string
	lastAmount    float64
	lastPayload   string
	lastSignature string

	result *PaymentResult
	verify bool
}

func (s *stubProvider) Method() PaymentMethod { return s.method }

func (s *stubProvider) CreatePayment(_ context.Context, request PaymentRequest) *PaymentResult {
	s.createCalls++
	s.lastOrderID = request.OrderID
	s.lastAmount = request.Amount
	return s.result
}

func (s *stubProvider) QueryPayment(_ context.Context, orderID string) *PaymentResult {
	s.lastOrderID = orderID
	return s.result
}

func (s *stubProvider) CancelPayment(_ context.Context, orderID string) *PaymentResult {
	s.lastOrderID = orderID
	return s.result
}

func (s *stubProvider) Refund(_ context.Context, orderID string, amount float64, _ string) *PaymentResult {
	s.lastOrderID = orderID
	s.lastAmount = amount
	return s.result
}

func (s *stubProvider) QueryRefund(_ context.Context, orderID, _ string) *PaymentResult {
	s.lastOrderID = orderID
	return s.result
}

func (s *stubProvider) HandleCallback(_ context.Context, payload, signature string) *PaymentResult {
	s.lastPayload = payload
	s.lastSignature = signature
	return s.result
}

func (s *stubProvider) VerifyCallback(_ context.Context, payload, signature string) bool {
	s.lastPayload = payload
	s.lastSignature = signature
	return s.verify
}

func TestRegistryRegisterAndResolve(t *testing.T) {
	registry := NewRegistry()
	stub := &stubProvider{method: MethodAlipay}

	require.NoError(t, registry.Register(stub))

	resolved, err := registry.Resolve(MethodAlipay)
	require.NoError(t, err)
	assert.Same(t, stub, resolved)
}

func TestRegistryRejectsDuplicateMethod(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&stubProvider{method: MethodAlipay}))

	err := registry.Register(&stubProvider{method: MethodAlipay})
	require.Error(t, err)

	var pe *PaymentError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrCodeDuplicateProvider, pe.Code)

	// The original adapter is still the one registered.
	assert.Len(t, registry.Methods(), 1)
}

func TestRegistryResolveUnregisteredMethod(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Resolve(MethodUnionPay)
	require.Error(t, err)

	var pe *PaymentError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrCodeUnsupportedMethod, pe.Code)
}

func TestRegistryMethods(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&stubProvider{method: MethodAlipay}))
	require.NoError(t, registry.Register(&stubProvider{method: MethodWechat}))

	assert.ElementsMatch(t,
		[]PaymentMethod{MethodAlipay, MethodWechat},
		registry.Methods())
}

func TestParseMethod(t *testing.T) {
	for _, code := range []string{"alipay", "wechat", "bank", "card", "unionpay"} {
		method, err := ParseMethod(code)
		require.NoError(t, err)
		assert.Equal(t, PaymentMethod(code), method)
	}

	_, err := ParseMethod("paypal")
	assert.Error(t, err)
}
