package stripecard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"

	"github.com/tensorpay/unipay/provider"
)

const (
	defaultCurrency = "usd"

	// Metadata keys on Stripe objects carrying our identifiers
	metaOrderID  = "orderId"
	metaRefundID = "refundId"
)

// statusTable maps Stripe PaymentIntent states onto the shared vocabulary.
var statusTable = map[string]provider.PaymentStatus{
	string(stripe.PaymentIntentStatusRequiresPaymentMethod): provider.StatusPending,
	string(stripe.PaymentIntentStatusRequiresConfirmation):  provider.StatusPending,
	string(stripe.PaymentIntentStatusRequiresAction):        provider.StatusPending,
	string(stripe.PaymentIntentStatusProcessing):            provider.StatusProcessing,
	string(stripe.PaymentIntentStatusRequiresCapture):       provider.StatusProcessing,
	string(stripe.PaymentIntentStatusSucceeded):             provider.StatusSuccess,
	string(stripe.PaymentIntentStatusCanceled):              provider.StatusCancelled,
}

// Config holds the Stripe API credentials.
type Config struct {
	SecretKey     string
	WebhookSecret string
}

// Adapter implements provider.PaymentProvider for card payments through
// Stripe PaymentIntents. Unlike the wallet adapters the transport here is
// the Stripe SDK; the merchant order id travels in intent metadata so query
// and refund still key off it.
type Adapter struct {
	cfg      Config
	sc       *client.API
	statuses *provider.StatusMapper
	logger   *zap.Logger
}

// New creates the card adapter over a Stripe API client.
func New(cfg Config, logger *zap.Logger) (*Adapter, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripecard: secretKey is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sc := &client.API{}
	sc.Init(cfg.SecretKey, nil)

	return &Adapter{
		cfg:      cfg,
		sc:       sc,
		statuses: provider.NewStatusMapper(statusTable),
		logger:   logger,
	}, nil
}

// Method returns the payment method this adapter serves.
func (a *Adapter) Method() provider.PaymentMethod {
	return provider.MethodCard
}

// CreatePayment opens a PaymentIntent and hands back its client secret as
// the opaque client-invocation payload.
func (a *Adapter) CreatePayment(ctx context.Context, request provider.PaymentRequest) *provider.PaymentResult {
	if err := provider.ValidateRequest(&request, a.Method()); err != nil {
		return provider.FailureFromError(a.Method(), err)
	}

	params := &stripe.PaymentIntentParams{
		Params:      stripe.Params{Context: ctx},
		Amount:      stripe.Int64(minorUnits(request.Amount)),
		Currency:    stripe.String(currency(request)),
		Description: stripe.String(request.Subject),
	}
	params.AddMetadata(metaOrderID, request.OrderID)
	if request.PayerID != "" {
		params.Customer = stripe.String(request.PayerID)
	}

	pi, err := a.sc.PaymentIntents.New(params)
	if err != nil {
		return a.stripeFailure(err)
	}

	result := &provider.PaymentResult{
		Success: true,
		Method:  a.Method(),
		Status:  provider.StatusPending,
		OrderID: request.OrderID,
		TradeNo: pi.ID,
		Amount:  request.Amount,
		PayParams: map[string]string{
			"clientSecret": pi.ClientSecret,
		},
	}
	if pi.NextAction != nil && pi.NextAction.RedirectToURL != nil {
		result.PayURL = pi.NextAction.RedirectToURL.URL
	}

	return result
}

// QueryPayment finds the intent by merchant order id and normalizes its
// state.
func (a *Adapter) QueryPayment(ctx context.Context, orderID string) *provider.PaymentResult {
	pi, err := a.findIntent(ctx, orderID)
	if err != nil {
		return provider.FailureFromError(a.Method(), err)
	}

	return a.intentResult(pi, orderID)
}

// CancelPayment cancels the pending intent.
func (a *Adapter) CancelPayment(ctx context.Context, orderID string) *provider.PaymentResult {
	pi, err := a.findIntent(ctx, orderID)
	if err != nil {
		return provider.FailureFromError(a.Method(), err)
	}

	cancelled, err := a.sc.PaymentIntents.Cancel(pi.ID, &stripe.PaymentIntentCancelParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return a.stripeFailure(err)
	}

	result := a.intentResult(cancelled, orderID)
	if result.Status != provider.StatusCancelled {
		result.Success = false
		result.ErrorCode = provider.ErrCodeTransport
		result.ErrorMessage = fmt.Sprintf("stripe intent not cancelled, state is %s", cancelled.Status)
	}

	return result
}

// Refund refunds the charge behind the intent, tagging the refund with a
// fresh operation id.
func (a *Adapter) Refund(ctx context.Context, orderID string, amount float64, reason string) *provider.PaymentResult {
	if err := provider.ValidateRefundAmount(amount); err != nil {
		return provider.FailureFromError(a.Method(), err)
	}

	pi, err := a.findIntent(ctx, orderID)
	if err != nil {
		return provider.FailureFromError(a.Method(), err)
	}

	refundID := uuid.New().String()
	params := &stripe.RefundParams{
		Params:        stripe.Params{Context: ctx},
		PaymentIntent: stripe.String(pi.ID),
		Amount:        stripe.Int64(minorUnits(amount)),
	}
	params.AddMetadata(metaRefundID, refundID)
	params.AddMetadata(metaOrderID, orderID)
	if reason != "" {
		params.AddMetadata("reason", reason)
	}

	ref, err := a.sc.Refunds.New(params)
	if err != nil {
		return a.stripeFailure(err)
	}

	return a.refundResult(ref, orderID, refundID)
}

// QueryRefund lists the intent's refunds and matches the operation id.
func (a *Adapter) QueryRefund(ctx context.Context, orderID, refundID string) *provider.PaymentResult {
	pi, err := a.findIntent(ctx, orderID)
	if err != nil {
		return provider.FailureFromError(a.Method(), err)
	}

	listParams := &stripe.RefundListParams{PaymentIntent: stripe.String(pi.ID)}
	listParams.Context = ctx

	iter := a.sc.Refunds.List(listParams)
	for iter.Next() {
		ref := iter.Refund()
		if ref.Metadata[metaRefundID] == refundID {
			return a.refundResult(ref, orderID, refundID)
		}
	}
	if err := iter.Err(); err != nil {
		return a.stripeFailure(err)
	}

	return provider.Failure(a.Method(), provider.ErrCodeTransport, "no refund %s found for order %s", refundID, orderID)
}

// HandleCallback processes a Stripe webhook event. The signature argument is
// the Stripe-Signature header; verification happens inside event
// construction, so a forged payload never gets as far as status mapping.
func (a *Adapter) HandleCallback(_ context.Context, payload, signature string) *provider.PaymentResult {
	event, err := webhook.ConstructEvent([]byte(payload), signature, a.cfg.WebhookSecret)
	if err != nil {
		a.logger.Warn("stripe webhook rejected", zap.Error(err))
		return provider.Failure(a.Method(), provider.ErrCodeSignature, "stripe webhook signature verification failed")
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return provider.Failure(a.Method(), provider.ErrCodeMalformedCallback, "stripe event payload is not a payment intent")
	}

	return a.intentResult(&pi, pi.Metadata[metaOrderID])
}

// VerifyCallback checks the Stripe-Signature header against the webhook
// secret without acting on the event.
func (a *Adapter) VerifyCallback(_ context.Context, payload, signature string) bool {
	_, err := webhook.ConstructEvent([]byte(payload), signature, a.cfg.WebhookSecret)
	return err == nil
}

// findIntent resolves the merchant order id to its PaymentIntent via
// metadata search.
func (a *Adapter) findIntent(ctx context.Context, orderID string) (*stripe.PaymentIntent, error) {
	searchParams := &stripe.PaymentIntentSearchParams{
		SearchParams: stripe.SearchParams{
			Context: ctx,
			Query:   fmt.Sprintf("metadata['%s']:'%s'", metaOrderID, orderID),
		},
	}

	iter := a.sc.PaymentIntents.Search(searchParams)
	if iter.Next() {
		return iter.PaymentIntent(), nil
	}
	if err := iter.Err(); err != nil {
		return nil, provider.NewPaymentError(provider.ErrCodeTransport, "stripe search failed: %s", err.Error())
	}

	return nil, provider.NewPaymentError(provider.ErrCodeTransport, "no payment intent found for order %s", orderID)
}

func (a *Adapter) intentResult(pi *stripe.PaymentIntent, orderID string) *provider.PaymentResult {
	result := &provider.PaymentResult{
		Success: true,
		Method:  a.Method(),
		OrderID: orderID,
		TradeNo: pi.ID,
		Amount:  majorUnits(pi.Amount),
	}
	a.statuses.Apply(result, string(pi.Status))

	if result.Status == provider.StatusSuccess {
		result.PaidAmount = majorUnits(pi.AmountReceived)
		if pi.Created > 0 {
			paidAt := stripeTime(pi.Created)
			result.PaidAt = &paidAt
		}
	}

	return result
}

func (a *Adapter) refundResult(ref *stripe.Refund, orderID, refundID string) *provider.PaymentResult {
	result := &provider.PaymentResult{
		Success:    true,
		Method:     a.Method(),
		OrderID:    orderID,
		RefundID:   refundID,
		PaidAmount: majorUnits(ref.Amount),
	}

	switch ref.Status {
	case stripe.RefundStatusSucceeded:
		result.Status = provider.StatusRefunded
	case stripe.RefundStatusPending:
		result.Status = provider.StatusProcessing
	default:
		result.Success = false
		result.Status = provider.StatusFailed
		result.ErrorCode = provider.ErrCodeTransport
		result.ErrorMessage = fmt.Sprintf("stripe refund state is %s", ref.Status)
	}

	return result
}

// stripeFailure converts a Stripe SDK error into the shared failure shape so
// no SDK type leaks past the adapter.
func (a *Adapter) stripeFailure(err error) *provider.PaymentResult {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		result := provider.Failure(a.Method(), provider.ErrCodeTransport, "%s", stripeErr.Msg)
		if stripeErr.Code != "" {
			result.WithExtra(provider.ProviderCodeKey, string(stripeErr.Code))
		}
		return result
	}
	return provider.Failure(a.Method(), provider.ErrCodeTransport, "%s", err.Error())
}

func currency(request provider.PaymentRequest) string {
	if c, ok := request.Extra["currency"]; ok && c != "" {
		return c
	}
	return defaultCurrency
}

// minorUnits renders a major-unit amount as cents, round half up.
func minorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func majorUnits(cents int64) float64 {
	return float64(cents) / 100
}

func stripeTime(sec int64) time.Time {
	return time.Unix(sec, 0)
}
