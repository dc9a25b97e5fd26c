package alipay

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tensorpay/unipay/provider"
)

const (
	// Gateway endpoints
	endpointPrecreate   = "/gateway/trade/precreate"
	endpointQuery       = "/gateway/trade/query"
	endpointClose       = "/gateway/trade/close"
	endpointRefund      = "/gateway/trade/refund"
	endpointRefundQuery = "/gateway/trade/refund/query"

	// Alipay result codes
	codeOK = "10000"

	// Alipay trade states
	statusWaitBuyerPay  = "WAIT_BUYER_PAY"
	statusTradeSuccess  = "TRADE_SUCCESS"
	statusTradeFinished = "TRADE_FINISHED"
	statusTradeClosed   = "TRADE_CLOSED"

	payTimeLayout = "2006-01-02 15:04:05"
)

// statusTable maps Alipay trade states onto the shared vocabulary.
var statusTable = map[string]provider.PaymentStatus{
	statusWaitBuyerPay:  provider.StatusPending,
	statusTradeSuccess:  provider.StatusSuccess,
	statusTradeFinished: provider.StatusSuccess,
	statusTradeClosed:   provider.StatusCancelled,
}

// Config holds the Alipay merchant credentials and defaults.
type Config struct {
	AppID     string
	SecretKey string
	NotifyURL string
	ReturnURL string
}

// Adapter implements provider.PaymentProvider for Alipay QR payments.
type Adapter struct {
	cfg      Config
	gateway  provider.GatewayClient
	statuses *provider.StatusMapper
	logger   *zap.Logger
}

// New creates the Alipay adapter. Credential problems are construction
// errors: they abort startup before any traffic is accepted.
func New(cfg Config, gateway provider.GatewayClient, logger *zap.Logger) (*Adapter, error) {
	if cfg.AppID == "" || cfg.SecretKey == "" {
		return nil, errors.New("alipay: appId and secretKey are required")
	}
	if gateway == nil {
		return nil, errors.New("alipay: gateway client is required")
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
	return provider.MethodAlipay
}

// CreatePayment opens a scan-to-pay transaction via trade precreate and
// returns the QR code content.
func (a *Adapter) CreatePayment(ctx context.Context, request provider.PaymentRequest) *provider.PaymentResult {
	if err := provider.ValidateRequest(&request, a.Method()); err != nil {
		return provider.FailureFromError(a.Method(), err)
	}

	params := map[string]string{
		"app_id":       a.cfg.AppID,
		"out_trade_no": request.OrderID,
		"total_amount": formatAmount(request.Amount),
		"subject":      request.Subject,
		"body":         request.Body,
		"notify_url":   pickURL(request.NotifyURL, a.cfg.NotifyURL),
		"return_url":   pickURL(request.ReturnURL, a.cfg.ReturnURL),
		"timestamp":    strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	if request.ExpireAt != nil {
		params["timeout_express"] = timeoutExpress(*request.ExpireAt)
	}
	a.sign(params)

	fields, err := a.gateway.PostForm(ctx, endpointPrecreate, params)
	if err != nil {
		return provider.Failure(a.Method(), provider.ErrCodeTransport, "alipay precreate failed: %s", err.Error())
	}

	if fields["code"] != codeOK {
		return a.gatewayRejection(fields)
	}

	return &provider.PaymentResult{
		Success: true,
		Method:  a.Method(),
		Status:  provider.StatusPending,
		OrderID: request.OrderID,
		Amount:  request.Amount,
		PayURL:  fields["qr_code"],
	}
}

// QueryPayment retrieves the trade state and normalizes it.
func (a *Adapter) QueryPayment(ctx context.Context, orderID string) *provider.PaymentResult {
	params := map[string]string{
		"app_id":       a.cfg.AppID,
		"out_trade_no": orderID,
		"timestamp":    strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	a.sign(params)

	fields, err := a.gateway.PostForm(ctx, endpointQuery, params)
	if err != nil {
		return provider.Failure(a.Method(), provider.ErrCodeTransport, "alipay trade query failed: %s", err.Error())
	}

	if fields["code"] != codeOK {
		result := a.gatewayRejection(fields)
		result.OrderID = orderID
		return result
	}

	result := &provider.PaymentResult{
		Success: true,
		Method:  a.Method(),
		OrderID: orderID,
		TradeNo: fields["trade_no"],
	}
	a.statuses.Apply(result, fields["trade_status"])

	if amount, err := strconv.ParseFloat(fields["total_amount"], 64); err == nil {
		result.Amount = amount
	}
	if result.Status == provider.StatusSuccess {
		result.PaidAmount = result.Amount
		if paidAt, err := time.Parse(payTimeLayout, fields["send_pay_date"]); err == nil {
			result.PaidAt = &paidAt
		}
	}

	return result
}

// CancelPayment closes the pending trade. Alipay has no dedicated cancel;
// trade close guarantees no further settlement occurs.
func (a *Adapter) CancelPayment(ctx context.Context, orderID string) *provider.PaymentResult {
	params := map[string]string{
		"app_id":       a.cfg.AppID,
		"out_trade_no": orderID,
		"timestamp":    strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	a.sign(params)

	fields, err := a.gateway.PostForm(ctx, endpointClose, params)
	if err != nil {
		return provider.Failure(a.Method(), provider.ErrCodeTransport, "alipay trade close failed: %s", err.Error())
	}

	if fields["code"] != codeOK {
		result := a.gatewayRejection(fields)
		result.OrderID = orderID
		return result
	}

	return &provider.PaymentResult{
		Success: true,
		Method:  a.Method(),
		Status:  provider.StatusCancelled,
		OrderID: orderID,
		TradeNo: fields["trade_no"],
	}
}

// Refund requests a refund with a fresh out_request_no so repeated attempts
// on the same order stay distinguishable to Alipay.
func (a *Adapter) Refund(ctx context.Context, orderID string, amount float64, reason string) *provider.PaymentResult {
	if err := provider.ValidateRefundAmount(amount); err != nil {
		return provider.FailureFromError(a.Method(), err)
	}

	refundID := uuid.New().String()
	params := map[string]string{
		"app_id":         a.cfg.AppID,
		"out_trade_no":   orderID,
		"out_request_no": refundID,
		"refund_amount":  formatAmount(amount),
		"refund_reason":  reason,
		"timestamp":      strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	a.sign(params)

	fields, err := a.gateway.PostForm(ctx, endpointRefund, params)
	if err != nil {
		return provider.Failure(a.Method(), provider.ErrCodeTransport, "alipay refund failed: %s", err.Error())
	}

	if fields["code"] != codeOK {
		result := a.gatewayRejection(fields)
		result.OrderID = orderID
		return result
	}

	result := &provider.PaymentResult{
		Success:  true,
		Method:   a.Method(),
		Status:   provider.StatusRefunded,
		OrderID:  orderID,
		TradeNo:  fields["trade_no"],
		RefundID: refundID,
	}
	if refunded, err := strconv.ParseFloat(fields["refund_fee"], 64); err == nil {
		result.PaidAmount = refunded
	}

	return result
}

// QueryRefund retrieves the state of a refund by its out_request_no.
func (a *Adapter) QueryRefund(ctx context.Context, orderID, refundID string) *provider.PaymentResult {
	params := map[string]string{
		"app_id":         a.cfg.AppID,
		"out_trade_no":   orderID,
		"out_request_no": refundID,
		"timestamp":      strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	a.sign(params)

	fields, err := a.gateway.PostForm(ctx, endpointRefundQuery, params)
	if err != nil {
		return provider.Failure(a.Method(), provider.ErrCodeTransport, "alipay refund query failed: %s", err.Error())
	}

	if fields["code"] != codeOK {
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

	// A refund query only settles once refund_status reports success; any
	// other reply means the refund is still in flight.
	if fields["refund_status"] == "REFUND_SUCCESS" {
		result.Status = provider.StatusRefunded
		if refunded, err := strconv.ParseFloat(fields["refund_amount"], 64); err == nil {
			result.PaidAmount = refunded
		}
	} else {
		result.Status = provider.StatusProcessing
	}

	return result
}

// HandleCallback parses an asynchronous trade notification. The signature is
// verified before any field is trusted; a forged payload never reports
// success.
func (a *Adapter) HandleCallback(ctx context.Context, payload, signature string) *provider.PaymentResult {
	params, err := provider.ParseCallbackParams(payload)
	if err != nil {
		return provider.FailureFromError(a.Method(), err)
	}

	if signature == "" {
		signature = params[provider.SignatureField]
	}
	if !a.VerifyCallback(ctx, payload, signature) {
		a.logger.Warn("alipay callback rejected: signature mismatch")
		return provider.Failure(a.Method(), provider.ErrCodeSignature, "alipay callback signature verification failed")
	}

	result := &provider.PaymentResult{
		Success: true,
		Method:  a.Method(),
		OrderID: params["out_trade_no"],
		TradeNo: params["trade_no"],
	}
	a.statuses.Apply(result, params["trade_status"])

	if amount, err := strconv.ParseFloat(params["total_amount"], 64); err == nil {
		result.Amount = amount
	}
	if result.Status == provider.StatusSuccess {
		result.PaidAmount = result.Amount
		if paidAt, err := time.Parse(payTimeLayout, params["gmt_payment"]); err == nil {
			result.PaidAt = &paidAt
		}
	}

	return result
}

// VerifyCallback recomputes the HMAC digest over the notification parameters.
func (a *Adapter) VerifyCallback(_ context.Context, payload, signature string) bool {
	params, err := provider.ParseCallbackParams(payload)
	if err != nil {
		return false
	}
	return provider.VerifySign(params, a.cfg.SecretKey, signature, provider.SignTypeHMACSHA256)
}

func (a *Adapter) sign(params map[string]string) {
	params[provider.SignatureField] = provider.Sign(params, a.cfg.SecretKey, provider.SignTypeHMACSHA256)
}

func (a *Adapter) gatewayRejection(fields map[string]string) *provider.PaymentResult {
	msg := fields["sub_msg"]
	if msg == "" {
		msg = "alipay gateway rejected the request"
	}
	result := provider.Failure(a.Method(), provider.ErrCodeTransport, "%s", msg)
	if code := fields["sub_code"]; code != "" {
		result.WithExtra(provider.ProviderCodeKey, code)
	}
	return result
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}

func pickURL(requestURL, configured string) string {
	if requestURL != "" {
		return requestURL
	}
	return configured
}

func timeoutExpress(expireAt time.Time) string {
	minutes := int(time.Until(expireAt).Minutes())
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("%dm", minutes)
}
