package wechatpay

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tensorpay/unipay/provider"
)

const (
	endpointUnifiedOrder = "/pay/unifiedorder"
	endpointOrderQuery   = "/pay/orderquery"
	endpointCloseOrder   = "/pay/closeorder"
	endpointRefund       = "/secapi/pay/refund"
	endpointRefundQuery  = "/pay/refundquery"

	// WeChat protocol result codes
	codeSuccess = "SUCCESS"

	// WeChat trade states
	stateNotPay     = "NOTPAY"
	stateUserPaying = "USERPAYING"
	stateSuccess    = "SUCCESS"
	statePayError   = "PAYERROR"
	stateClosed     = "CLOSED"
	stateRevoked    = "REVOKED"
	stateRefund     = "REFUND"

	// Trade types
	tradeTypeNative = "NATIVE"
	tradeTypeJSAPI  = "JSAPI"

	timeExpireLayout = "20060102150405"
	payTimeLayout    = "20060102150405"
)

var statusTable = map[string]provider.PaymentStatus{
	stateNotPay:     provider.StatusPending,
	stateUserPaying: provider.StatusProcessing,
	stateSuccess:    provider.StatusSuccess,
	statePayError:   provider.StatusFailed,
	stateClosed:     provider.StatusCancelled,
	stateRevoked:    provider.StatusCancelled,
	stateRefund:     provider.StatusRefunded,
}

var refundStatusTable = map[string]provider.PaymentStatus{
	"SUCCESS":     provider.StatusRefunded,
	"PROCESSING":  provider.StatusProcessing,
	"REFUNDCLOSE": provider.StatusFailed,
	"CHANGE":      provider.StatusFailed,
}

// Config holds the WeChat Pay merchant credentials and defaults.
type Config struct {
	AppID     string
	MchID     string
	APIKey    string
	NotifyURL string
}

// Adapter implements provider.PaymentProvider for WeChat Pay. A request with
// a payer identity (openid) takes the in-app JSAPI flow; otherwise a Native
// scan order is opened.
type Adapter struct {
	cfg      Config
	gateway  provider.GatewayClient
	statuses *provider.StatusMapper
	refunds  *provider.StatusMapper
	logger   *zap.Logger
}

// New creates the WeChat Pay adapter.
func New(cfg Config, gateway provider.GatewayClient, logger *zap.Logger) (*Adapter, error) {
	if cfg.AppID == "" || cfg.MchID == "" || cfg.APIKey == "" {
		return nil, errors.New("wechatpay: appId, mchId and apiKey are required")
	}
	if gateway == nil {
		return nil, errors.New("wechatpay: gateway client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Adapter{
		cfg:      cfg,
		gateway:  gateway,
		statuses: provider.NewStatusMapper(statusTable),
		refunds:  provider.NewStatusMapper(refundStatusTable),
		logger:   logger,
	}, nil
}

// Method returns the payment method this adapter serves.
func (a *Adapter) Method() provider.PaymentMethod {
	return provider.MethodWechat
}

// CreatePayment opens a unified order. The flow variant is WeChat policy:
// payer identity present means the buyer pays in-app and the result carries
// the opaque client invocation payload instead of a QR code.
func (a *Adapter) CreatePayment(ctx context.Context, request provider.PaymentRequest) *provider.PaymentResult {
	if err := provider.ValidateRequest(&request, a.Method()); err != nil {
		return provider.FailureFromError(a.Method(), err)
	}

	tradeType := tradeTypeNative
	if request.PayerID != "" {
		tradeType = tradeTypeJSAPI
	}

	params := map[string]string{
		"appid":            a.cfg.AppID,
		"mch_id":           a.cfg.MchID,
		"nonce_str":        nonce(),
		"body":             request.Subject,
		"out_trade_no":     request.OrderID,
		"total_fee":        minorUnits(request.Amount),
		"fee_type":         "CNY",
		"trade_type":       tradeType,
		"notify_url":       pickURL(request.NotifyURL, a.cfg.NotifyURL),
		"spbill_create_ip": request.ClientIP,
	}
	if tradeType == tradeTypeJSAPI {
		params["openid"] = request.PayerID
	}
	if request.ExpireAt != nil {
		params["time_expire"] = request.ExpireAt.Format(timeExpireLayout)
	}
	a.sign(params)

	fields, err := a.gateway.PostForm(ctx, endpointUnifiedOrder, params)
	if err != nil {
		return provider.Failure(a.Method(), provider.ErrCodeTransport, "wechat unified order failed: %s", err.Error())
	}

	if fields["return_code"] != codeSuccess || fields["result_code"] != codeSuccess {
		return a.gatewayRejection(fields)
	}

	result := &provider.PaymentResult{
		Success: true,
		Method:  a.Method(),
		Status:  provider.StatusPending,
		OrderID: request.OrderID,
		Amount:  request.Amount,
	}

	if tradeType == tradeTypeJSAPI {
		result.PayParams = a.jsapiPayParams(fields["prepay_id"])
	} else {
		result.PayURL = fields["code_url"]
	}

	return result
}

// jsapiPayParams builds the signed payload the client SDK invokes with.
func (a *Adapter) jsapiPayParams(prepayID string) map[string]string {
	payParams := map[string]string{
		"appId":     a.cfg.AppID,
		"timeStamp": strconv.FormatInt(time.Now().Unix(), 10),
		"nonceStr":  nonce(),
		"package":   "prepay_id=" + prepayID,
		"signType":  string(provider.SignTypeMD5),
	}
	payParams["paySign"] = provider.Sign(payParams, a.cfg.APIKey, provider.SignTypeMD5)
	return payParams
}

// QueryPayment retrieves the trade state. Amounts come back in fen.
func (a *Adapter) QueryPayment(ctx context.Context, orderID string) *provider.PaymentResult {
	params := map[string]string{
		"appid":        a.cfg.AppID,
		"mch_id":       a.cfg.MchID,
		"nonce_str":    nonce(),
		"out_trade_no": orderID,
	}
	a.sign(params)

	fields, err := a.gateway.PostForm(ctx, endpointOrderQuery, params)
	if err != nil {
		return provider.Failure(a.Method(), provider.ErrCodeTransport, "wechat order query failed: %s", err.Error())
	}

	if fields["return_code"] != codeSuccess || fields["result_code"] != codeSuccess {
		result := a.gatewayRejection(fields)
		result.OrderID = orderID
		return result
	}

	result := &provider.PaymentResult{
		Success: true,
		Method:  a.Method(),
		OrderID: orderID,
		TradeNo: fields["transaction_id"],
	}
	a.statuses.Apply(result, fields["trade_state"])

	if fee, err := strconv.ParseInt(fields["total_fee"], 10, 64); err == nil {
		result.Amount = majorUnits(fee)
	}
	if result.Status == provider.StatusSuccess {
		result.PaidAmount = result.Amount
		if paidAt, err := time.Parse(payTimeLayout, fields["time_end"]); err == nil {
			result.PaidAt = &paidAt
		}
	}

	return result
}

// CancelPayment closes the pending order so no further settlement occurs.
func (a *Adapter) CancelPayment(ctx context.Context, orderID string) *provider.PaymentResult {
	params := map[string]string{
		"appid":        a.cfg.AppID,
		"mch_id":       a.cfg.MchID,
		"nonce_str":    nonce(),
		"out_trade_no": orderID,
	}
	a.sign(params)

	fields, err := a.gateway.PostForm(ctx, endpointCloseOrder, params)
	if err != nil {
		return provider.Failure(a.Method(), provider.ErrCodeTransport, "wechat close order failed: %s", err.Error())
	}

	if fields["return_code"] != codeSuccess || fields["result_code"] != codeSuccess {
		result := a.gatewayRejection(fields)
		result.OrderID = orderID
		return result
	}

	return &provider.PaymentResult{
		Success: true,
		Method:  a.Method(),
		Status:  provider.StatusCancelled,
		OrderID: orderID,
	}
}

// Refund requests a refund with a fresh out_refund_no per attempt.
func (a *Adapter) Refund(ctx context.Context, orderID string, amount float64, reason string) *provider.PaymentResult {
	if err := provider.ValidateRefundAmount(amount); err != nil {
		return provider.FailureFromError(a.Method(), err)
	}

	refundID := uuid.New().String()
	params := map[string]string{
		"appid":         a.cfg.AppID,
		"mch_id":        a.cfg.MchID,
		"nonce_str":     nonce(),
		"out_trade_no":  orderID,
		"out_refund_no": refundID,
		"refund_fee":    minorUnits(amount),
		"refund_desc":   reason,
	}
	a.sign(params)

	fields, err := a.gateway.PostForm(ctx, endpointRefund, params)
	if err != nil {
		return provider.Failure(a.Method(), provider.ErrCodeTransport, "wechat refund failed: %s", err.Error())
	}

	if fields["return_code"] != codeSuccess || fields["result_code"] != codeSuccess {
		result := a.gatewayRejection(fields)
		result.OrderID = orderID
		return result
	}

	result := &provider.PaymentResult{
		Success:  true,
		Method:   a.Method(),
		Status:   provider.StatusRefunded,
		OrderID:  orderID,
		TradeNo:  fields["transaction_id"],
		RefundID: refundID,
	}
	if fee, err := strconv.ParseInt(fields["refund_fee"], 10, 64); err == nil {
		result.PaidAmount = majorUnits(fee)
	}

	return result
}

// QueryRefund retrieves the state of a refund by its out_refund_no.
func (a *Adapter) QueryRefund(ctx context.Context, orderID, refundID string) *provider.PaymentResult {
	params := map[string]string{
		"appid":         a.cfg.AppID,
		"mch_id":        a.cfg.MchID,
		"nonce_str":     nonce(),
		"out_trade_no":  orderID,
		"out_refund_no": refundID,
	}
	a.sign(params)

	fields, err := a.gateway.PostForm(ctx, endpointRefundQuery, params)
	if err != nil {
		return provider.Failure(a.Method(), provider.ErrCodeTransport, "wechat refund query failed: %s", err.Error())
	}

	if fields["return_code"] != codeSuccess || fields["result_code"] != codeSuccess {
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
	a.refunds.Apply(result, fields["refund_status_0"])

	if fee, err := strconv.ParseInt(fields["refund_fee_0"], 10, 64); err == nil {
		result.PaidAmount = majorUnits(fee)
	}

	return result
}

// HandleCallback parses an asynchronous payment notification, verifying the
// digest before any field is trusted.
func (a *Adapter) HandleCallback(ctx context.Context, payload, signature string) *provider.PaymentResult {
	params, err := provider.ParseCallbackParams(payload)
	if err != nil {
		return provider.FailureFromError(a.Method(), err)
	}

	if signature == "" {
		signature = params[provider.SignatureField]
	}
	if !a.VerifyCallback(ctx, payload, signature) {
		a.logger.Warn("wechat callback rejected: signature mismatch")
		return provider.Failure(a.Method(), provider.ErrCodeSignature, "wechat callback signature verification failed")
	}

	result := &provider.PaymentResult{
		Success: true,
		Method:  a.Method(),
		OrderID: params["out_trade_no"],
		TradeNo: params["transaction_id"],
	}

	// A pay notification has no trade_state field; result_code carries the
	// outcome. trade_state shows up on state-change notifications.
	raw := params["trade_state"]
	if raw == "" {
		raw = params["result_code"]
	}
	a.statuses.Apply(result, raw)

	if fee, err := strconv.ParseInt(params["total_fee"], 10, 64); err == nil {
		result.Amount = majorUnits(fee)
	}
	if result.Status == provider.StatusSuccess {
		result.PaidAmount = result.Amount
		if paidAt, err := time.Parse(payTimeLayout, params["time_end"]); err == nil {
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
	return provider.VerifySign(params, a.cfg.APIKey, signature, provider.SignTypeMD5)
}

func (a *Adapter) sign(params map[string]string) {
	params[provider.SignatureField] = provider.Sign(params, a.cfg.APIKey, provider.SignTypeMD5)
}

func (a *Adapter) gatewayRejection(fields map[string]string) *provider.PaymentResult {
	msg := fields["err_code_des"]
	if msg == "" {
		msg = fields["return_msg"]
	}
	if msg == "" {
		msg = "wechat gateway rejected the request"
	}
	result := provider.Failure(a.Method(), provider.ErrCodeTransport, "%s", msg)
	if code := fields["err_code"]; code != "" {
		result.WithExtra(provider.ProviderCodeKey, code)
	}
	return result
}

func nonce() string {
	return uuid.New().String()
}

// minorUnits renders a major-unit amount as fen, round half up.
func minorUnits(amount float64) string {
	return strconv.FormatInt(int64(math.Round(amount*100)), 10)
}

func majorUnits(fee int64) float64 {
	return float64(fee) / 100
}

func pickURL(requestURL, configured string) string {
	if requestURL != "" {
		return requestURL
	}
	return configured
}
