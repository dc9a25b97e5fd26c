package provider

import (
	"fmt"
	"time"
)

// PaymentMethod identifies a logical payment channel. It is the registry key:
// every adapter serves exactly one method.
type PaymentMethod string

const (
	MethodAlipay   PaymentMethod = "alipay"
	MethodWechat   PaymentMethod = "wechat"
	MethodBank     PaymentMethod = "bank"
	MethodCard     PaymentMethod = "card"
	MethodUnionPay PaymentMethod = "unionpay"
)

// ParseMethod converts a wire code into a PaymentMethod.
func ParseMethod(code string) (PaymentMethod, error) {
	switch PaymentMethod(code) {
	case MethodAlipay, MethodWechat, MethodBank, MethodCard, MethodUnionPay:
		return PaymentMethod(code), nil
	}
	return "", fmt.Errorf("unknown payment method code: %q", code)
}

// PaymentStatus is the shared transaction state every provider vocabulary
// maps onto.
type PaymentStatus string

const (
	StatusPending         PaymentStatus = "pending"
	StatusProcessing      PaymentStatus = "processing"
	StatusSuccess         PaymentStatus = "success"
	StatusFailed          PaymentStatus = "failed"
	StatusCancelled       PaymentStatus = "cancelled"
	StatusRefunded        PaymentStatus = "refunded"
	StatusPartialRefunded PaymentStatus = "partial_refunded"
)

// PaymentRequest contains all information required to create a payment.
// OrderID is the merchant order id: it keys the transaction across creation,
// query and refund, and must be unique per logical payment on the caller side.
type PaymentRequest struct {
	OrderID   string            `json:"orderId" validate:"required"`
	Method    PaymentMethod     `json:"method" validate:"required"`
	Amount    float64           `json:"amount" validate:"required,gt=0"`
	Subject   string            `json:"subject" validate:"required"`
	Body      string            `json:"body,omitempty"`
	ExpireAt  *time.Time        `json:"expireAt,omitempty"`
	NotifyURL string            `json:"notifyUrl,omitempty"`
	ReturnURL string            `json:"returnUrl,omitempty"`
	PayerID   string            `json:"payerId,omitempty"`
	ClientIP  string            `json:"clientIp,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// PaymentResult is the shared response shape for every lifecycle operation.
// Success=false always carries an ErrorCode. Status=success carries the
// settled amount and pay time once the provider has reported them.
type PaymentResult struct {
	Success      bool              `json:"success"`
	ErrorCode    string            `json:"errorCode,omitempty"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	OrderID      string            `json:"orderId,omitempty"`
	TradeNo      string            `json:"tradeNo,omitempty"`
	RefundID     string            `json:"refundId,omitempty"`
	Method       PaymentMethod     `json:"method,omitempty"`
	Status       PaymentStatus     `json:"status,omitempty"`
	Amount       float64           `json:"amount,omitempty"`
	PaidAmount   float64           `json:"paidAmount,omitempty"`
	PaidAt       *time.Time        `json:"paidAt,omitempty"`
	PayURL       string            `json:"payUrl,omitempty"`
	PayParams    map[string]string `json:"payParams,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// WithExtra records a diagnostic key on the result, allocating the map on
// first use.
func (r *PaymentResult) WithExtra(key, value string) *PaymentResult {
	if r.Extra == nil {
		r.Extra = make(map[string]string)
	}
	r.Extra[key] = value
	return r
}
