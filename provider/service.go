package provider

import (
	"context"

	"go.uber.org/zap"
)

// Service is the unified payment facade. It resolves the adapter for a
// payment method and forwards the operation; all provider-specific behavior
// lives behind the PaymentProvider contract. Resolution failures come back as
// tagged failure results so callers see one response shape for everything.
type Service struct {
	registry *Registry
	logger   *zap.Logger
}

// NewService creates a payment service over an already-populated registry.
func NewService(registry *Registry, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		registry: registry,
		logger:   logger,
	}
}

// CreatePayment opens a payment through the adapter for request.Method.
func (s *Service) CreatePayment(ctx context.Context, request PaymentRequest) *PaymentResult {
	p, err := s.registry.Resolve(request.Method)
	if err != nil {
		return FailureFromError(request.Method, err)
	}

	s.logger.Info("create payment",
		zap.String("method", string(request.Method)),
		zap.String("orderId", request.OrderID),
		zap.Float64("amount", request.Amount))

	return p.CreatePayment(ctx, request)
}

// QueryPayment queries the state of a payment by merchant order id.
func (s *Service) QueryPayment(ctx context.Context, method PaymentMethod, orderID string) *PaymentResult {
	p, err := s.registry.Resolve(method)
	if err != nil {
		return FailureFromError(method, err)
	}

	s.logger.Info("query payment",
		zap.String("method", string(method)),
		zap.String("orderId", orderID))

	return p.QueryPayment(ctx, orderID)
}

// CancelPayment stops further settlement of a pending payment.
func (s *Service) CancelPayment(ctx context.Context, method PaymentMethod, orderID string) *PaymentResult {
	p, err := s.registry.Resolve(method)
	if err != nil {
		return FailureFromError(method, err)
	}

	s.logger.Info("cancel payment",
		zap.String("method", string(method)),
		zap.String("orderId", orderID))

	return p.CancelPayment(ctx, orderID)
}

// Refund requests a refund on a settled payment.
func (s *Service) Refund(ctx context.Context, method PaymentMethod, orderID string, amount float64, reason string) *PaymentResult {
	p, err := s.registry.Resolve(method)
	if err != nil {
		return FailureFromError(method, err)
	}

	s.logger.Info("refund payment",
		zap.String("method", string(method)),
		zap.String("orderId", orderID),
		zap.Float64("amount", amount))

	return p.Refund(ctx, orderID, amount, reason)
}

// QueryRefund queries the state of a previously requested refund.
func (s *Service) QueryRefund(ctx context.Context, method PaymentMethod, orderID, refundID string) *PaymentResult {
	p, err := s.registry.Resolve(method)
	if err != nil {
		return FailureFromError(method, err)
	}

	s.logger.Info("query refund",
		zap.String("method", string(method)),
		zap.String("orderId", orderID),
		zap.String("refundId", refundID))

	return p.QueryRefund(ctx, orderID, refundID)
}

// HandleCallback processes an asynchronous provider notification. The method
// is derived by the caller from the route that received the payload.
func (s *Service) HandleCallback(ctx context.Context, method PaymentMethod, payload, signature string) *PaymentResult {
	p, err := s.registry.Resolve(method)
	if err != nil {
		return FailureFromError(method, err)
	}

	s.logger.Info("handle callback", zap.String("method", string(method)))

	return p.HandleCallback(ctx, payload, signature)
}

// VerifyCallback checks a notification signature without processing the
// payload. An unsupported method verifies as false.
func (s *Service) VerifyCallback(ctx context.Context, method PaymentMethod, payload, signature string) bool {
	p, err := s.registry.Resolve(method)
	if err != nil {
		s.logger.Warn("verify callback for unsupported method", zap.String("method", string(method)))
		return false
	}

	return p.VerifyCallback(ctx, payload, signature)
}

// SupportedMethods lists the payment methods with a registered adapter.
func (s *Service) SupportedMethods() []PaymentMethod {
	return s.registry.Methods()
}
