package bankpay

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tensorpay/unipay/provider"
)

const (
	endpointPay         = "/pay"
	endpointQuery       = "/query"
	endpointCancel      = "/cancel"
	endpointRefund      = "/refund"
	endpointRefundQuery = "/refund/query"

	// Gateway reply code for an accepted request
	codeAccepted = "0000"

	payTimeLayout = "2006-01-02 15:04:05"
)

// statusTable covers every status token the bank gateway documents. Unknown
// tokens normalize to failed with the raw value kept for diagnosis.
var statusTable = map[string]provider.PaymentStatus{
	"SUCCESS":          provider.StatusSuccess,
	"PAID":             provider.StatusSuccess,
	"PENDING":          provider.StatusPending,
	"PROCESSING":       provider.StatusProcessing,
	"FAILED":           provider.StatusFailed,
	"ERROR":            provider.StatusFailed,
	"CANCELLED":        provider.StatusCancelled,
	"CLOSED":           provider.StatusCancelled,
	"REFUNDED":         provider.StatusRefunded,
	"PARTIAL_REFUNDED": provider.StatusPartialRefunded,
}

// Config holds the bank gateway merchant credentials and defaults.
type Config struct {
	MerchantID  string
	MerchantKey string
	NotifyURL   string
	ReturnURL   string
}

// Adapter implements provider.PaymentProvider for the direct-debit bank
// gateway. Every request is a signed form post; replies carry a four-digit
// accept code plus a status token.
type Adapter struct {
	cfg      Config
	gateway  provider.GatewayClient
	statuses *provider.StatusMapper
	logger   *zap.Logger
}

// New creates the bank gateway adapter.
func New(cfg Config, gateway provider.GatewayClient, logger *zap.Logger) (*Adapter, error) {
	if cfg.MerchantID == "" || cfg.MerchantKey == "" {
		return nil, errors.New("bankpay: merchantId and merchantKey are required")
	}
	if gateway == nil {
		return nil, errors.New("bankpay: gateway client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Adapter{
		cfg:      cfg,
		gateway:  gateway,
		statuses: provider.NewStatusMapper(statusTable),
		logger:   logger,
	}, nil
}

// Method returns the payment method this adapter serves.
func (a *Adapter) Method() provider.PaymentMethod {
	return provider.MethodBank
}

// CreatePayment submits a signed payment order and returns the gateway's
// hosted pay URL.
func (a *Adapter) CreatePayment(ctx context.Context, request provider.PaymentRequest) *provider.PaymentResult {
	if err := provider.ValidateRequest(&request, a.Method()); err != nil {
		return provider.FailureFromError(a.Method(), err)
	}

	params := map[string]string{
		"merchantId": a.cfg.MerchantID,
		"outTradeNo": request.OrderID,
		"amount":     formatAmount(request.Amount),
		"subject":    request.Subject,
		"body":       request.Body,
		"notifyUrl":  pickURL(request.NotifyURL, a.cfg.NotifyURL),
		"returnUrl":  pickURL(request.ReturnURL, a.cfg.ReturnURL),
		"timestamp":  timestamp(),
	}
	if request.ExpireAt != nil {
		params["expireTime"] = request.ExpireAt.Format(payTimeLayout)
	}
	a.sign(params)

	fields, err := a.gateway.PostForm(ctx, endpointPay, params)
	if err != nil {
		return provider.Failure(a.Method(), provider.ErrCodeTransport, "bank pay request failed: %s", err.Error())
	}

	if fields["code"] != codeAccepted {
		return a.gatewayRejection(fields)
	}

	return &provider.PaymentResult{
		Success: true,
		Method:  a.Method(),
		Status:  provider.StatusPending,
		OrderID: request.OrderID,
		Amount:  request.Amount,
		PayURL:  fields["payUrl"],
	}
}

// QueryPayment queries the order state, branching on the gateway's real
// reply rather than assuming success.
func (a *Adapter) QueryPayment(ctx context.Context, orderID string) *provider.PaymentResult {
	params := map[string]string{
		"merchantId": a.cfg.MerchantID,
		"outTradeNo": orderID,
		"timestamp":  timestamp(),
	}
	a.sign(params)

	fields, err := a.gateway.PostForm(ctx, endpointQuery, params)
	if err != nil {
		return provider.Failure(a.Method(), provider.ErrCodeTransport, "bank query failed: %s", err.Error())
	}

	if fields["code"] != codeAccepted {
		result := a.gatewayRejection(fields)
		result.OrderID = orderID
		return result
	}

	result := &provider.PaymentResult{
		Success: true,
		Method:  a.Method(),
		OrderID: orderID,
		TradeNo: fields["tradeNo"],
	}
	a.statuses.Apply(result, fields["status"])

	if amount, err := strconv.ParseFloat(fields["amount"], 64); err == nil {
		result.Amount = amount
	}
	if result.Status == provider.StatusSuccess {
		result.PaidAmount = result.Amount
		if paidAt, err := time.Parse(payTimeLayout, fields["payTime"]); err == nil {
			result.PaidAt = &paidAt
		}
	}

	return result
}

// CancelPayment asks the gateway to close the pending order and reports
// cancelled only when the gateway confirmed it.
func (a *Adapter) CancelPayment(ctx context.Context, orderID string) *provider.PaymentResult {
	params := map[string]string{
		"merchantId": a.cfg.MerchantID,
		"outTradeNo": orderID,
		"timestamp":  timestamp(),
	}
	a.sign(params)

	fields, err := a.gateway.PostForm(ctx, endpointCancel, params)
	if err != nil {
		return provider.Failure(a.Method(), provider.ErrCodeTransport, "bank cancel failed: %s", err.Error())
	}

	if fields["code"] != codeAccepted {
		result := a.gatewayRejection(fields)
		result.OrderID = orderID
		return result
	}

	return &provider.PaymentResult{
		Success: true,
		Method:  a.Method(),
		Status:  provider.StatusCancelled,
		OrderID: orderID,
		TradeNo: fields["tradeNo"],
	}
}

// Refund submits a signed refund with a fresh outRefundNo and branches on
// the gateway's verdict. The gateway enforces the settled-amount ceiling and
// distinguishes full from partial refunds in its status token.
func (a *Adapter) Refund(ctx context.Context, orderID string, amount float64, reason string) *provider.PaymentResult {
	if err := provider.ValidateRefundAmount(amount); err != nil {
		return provider.FailureFromError(a.Method(), err)
	}

	refundID := uuid.New().String()
	params := map[string]string{
		"merchantId":   a.cfg.MerchantID,
		"outTradeNo":   orderID,
		"outRefundNo":  refundID,
		"refundAmount": formatAmount(amount),
		"refundReason": reason,
		"timestamp":    timestamp(),
	}
	a.sign(params)

	fields, err := a.gateway.PostForm(ctx, endpointRefund, params)
	if err != nil {
		return provider.Failure(a.Method(), provider.ErrCodeTransport, "bank refund failed: %s", err.Error())
	}

	if fields["code"] != codeAccepted {
		result := a.gatewayRejection(fields)
		result.OrderID = orderID
		return result
	}

	result := &provider.PaymentResult{
		Success:  true,
		Method:   a.Method(),
		OrderID:  orderID,
		TradeNo:  fields["tradeNo"],
		RefundID: refundID,
	}
	a.statuses.Apply(result, fields["status"])

	if refunded, err := strconv.ParseFloat(fields["refundAmount"], 64); err == nil {
		result.PaidAmount = refunded
	}

	return result
}

// QueryRefund queries the state of a refund by its outRefundNo.
func (a *Adapter) QueryRefund(ctx context.Context, orderID, refundID string) *provider.PaymentResult {
	params := map[string]string{
		"merchantId":  a.cfg.MerchantID,
		"outTradeNo":  orderID,
		"outRefundNo": refundID,
		"timestamp":   timestamp(),
	}
	a.sign(params)

	fields, err := a.gateway.PostForm(ctx, endpointRefundQuery, params)
	if err != nil {
		return provider.Failure(a.Method(), provider.ErrCodeTransport, "bank refund query failed: %s", err.Error())
	}

	if fields["code"] != codeAccepted {
		result := a.gatewayRejection(fields)
		result.OrderID = orderID
		return result
	}

	result := &provider.PaymentResult{
		Success:  true,
		Method:   a.Method(),
		OrderID:  orderID,
		RefundID: refundID,
	}
	a.statuses.Apply(result, fields["status"])

	if refunded, err := strconv.ParseFloat(fields["refundAmount"], 64); err == nil {
		result.PaidAmount = refunded
	}

	return result
}

// HandleCallback parses an asynchronous settlement notification, verifying
// the digest before trusting any field.
func (a *Adapter) HandleCallback(ctx context.Context, payload, signature string) *provider.PaymentResult {
	params, err := provider.ParseCallbackParams(payload)
	if err != nil {
		return provider.FailureFromError(a.Method(), err)
	}

	if signature == "" {
		signature = params[provider.SignatureField]
	}
	if !a.VerifyCallback(ctx, payload, signature) {
		a.logger.Warn("bank callback rejected: signature mismatch")
		return provider.Failure(a.Method(), provider.ErrCodeSignature, "bank callback signature verification failed")
	}

	result := &provider.PaymentResult{
		Success: true,
		Method:  a.Method(),
		OrderID: params["outTradeNo"],
		TradeNo: params["tradeNo"],
	}
	a.statuses.Apply(result, params["status"])

	if amount, err := strconv.ParseFloat(params["amount"], 64); err == nil {
		result.Amount = amount
	}
	if result.Status == provider.StatusSuccess {
		result.PaidAmount = result.Amount
		if paidAt, err := time.Parse(payTimeLayout, params["payTime"]); err == nil {
			result.PaidAt = &paidAt
		}
	}

	return result
}

// VerifyCallback recomputes the MD5 digest over the notification parameters.
func (a *Adapter) VerifyCallback(_ context.Context, payload, signature string) bool {
	params, err := provider.ParseCallbackParams(payload)
	if err != nil {
		return false
	}
	return provider.VerifySign(params, a.cfg.MerchantKey, signature, provider.SignTypeMD5)
}

func (a *Adapter) sign(params map[string]string) {
	params[provider.SignatureField] = provider.Sign(params, a.cfg.MerchantKey, provider.SignTypeMD5)
}

func (a *Adapter) gatewayRejection(fields map[string]string) *provider.PaymentResult {
	msg := fields["errorMsg"]
	if msg == "" {
		msg = "bank gateway rejected the request"
	}
	result := provider.Failure(a.Method(), provider.ErrCodeTransport, "%s", msg)
	if code := fields["errorCode"]; code != "" {
		result.WithExtra(provider.ProviderCodeKey, code)
	}
	return result
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}

func timestamp() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

func pickURL(requestURL, configured string) string {
	if requestURL != "" {
		return requestURL
	}
	return configured
}
