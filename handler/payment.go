package handler

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tensorpay/unipay/infra/response"
	"github.com/tensorpay/unipay/provider"
)

const requestTimeout = 30 * time.Second

// PaymentService is the facade surface this handler forwards to.
type PaymentService interface {
	CreatePayment(ctx context.Context, request provider.PaymentRequest) *provider.PaymentResult
	QueryPayment(ctx context.Context, method provider.PaymentMethod, orderID string) *provider.PaymentResult
	CancelPayment(ctx context.Context, method provider.PaymentMethod, orderID string) *provider.PaymentResult
	Refund(ctx context.Context, method provider.PaymentMethod, orderID string, amount float64, reason string) *provider.PaymentResult
	QueryRefund(ctx context.Context, method provider.PaymentMethod, orderID, refundID string) *provider.PaymentResult
	HandleCallback(ctx context.Context, method provider.PaymentMethod, payload, signature string) *provider.PaymentResult
	VerifyCallback(ctx context.Context, method provider.PaymentMethod, payload, signature string) bool
	SupportedMethods() []provider.PaymentMethod
}

// PaymentHandler exposes the payment facade over HTTP.
type PaymentHandler struct {
	service  PaymentService
	validate *validator.Validate
}

// NewPaymentHandler creates a payment handler.
func NewPaymentHandler(service PaymentService, validate *validator.Validate) *PaymentHandler {
	return &PaymentHandler{
		service:  service,
		validate: validate,
	}
}

// refundBody is the request body for refund operations.
type refundBody struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
	Reason string  `json:"reason,omitempty"`
}

// CreatePayment handles POST /v1/payments.
func (h *PaymentHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var req provider.PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if req.ClientIP == "" {
		req.ClientIP = clientIP(r)
	}

	if err := h.validate.Struct(req); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", err)
		return
	}

	h.writeResult(w, h.service.CreatePayment(ctx, req))
}

// QueryPayment handles GET /v1/payments/{method}/{orderId}.
func (h *PaymentHandler) QueryPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	method, ok := h.methodParam(w, r)
	if !ok {
		return
	}

	h.writeResult(w, h.service.QueryPayment(ctx, method, chi.URLParam(r, "orderId")))
}

// CancelPayment handles POST /v1/payments/{method}/{orderId}/cancel.
func (h *PaymentHandler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	method, ok := h.methodParam(w, r)
	if !ok {
		return
	}

	h.writeResult(w, h.service.CancelPayment(ctx, method, chi.URLParam(r, "orderId")))
}

// Refund handles POST /v1/payments/{method}/{orderId}/refund.
func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	method, ok := h.methodParam(w, r)
	if !ok {
		return
	}

	var body refundBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := h.validate.Struct(body); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", err)
		return
	}

	h.writeResult(w, h.service.Refund(ctx, method, chi.URLParam(r, "orderId"), body.Amount, body.Reason))
}

// QueryRefund handles GET /v1/payments/{method}/{orderId}/refunds/{refundId}.
func (h *PaymentHandler) QueryRefund(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	method, ok := h.methodParam(w, r)
	if !ok {
		return
	}

	h.writeResult(w, h.service.QueryRefund(ctx, method, chi.URLParam(r, "orderId"), chi.URLParam(r, "refundId")))
}

// Callback handles POST /v1/callback/{method}. The payload is forwarded
// byte-for-byte: re-encoding it before verification would break the digest.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	method, ok := h.methodParam(w, r)
	if !ok {
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Unreadable callback payload", err)
		return
	}

	result := h.service.HandleCallback(ctx, method, string(payload), callbackSignature(r))
	if !result.Success {
		response.Error(w, http.StatusBadRequest, "Callback rejected", nil)
		return
	}

	response.Success(w, http.StatusOK, "Callback processed", result)
}

// SupportedMethods handles GET /v1/methods.
func (h *PaymentHandler) SupportedMethods(w http.ResponseWriter, r *http.Request) {
	response.Success(w, http.StatusOK, "Supported payment methods", h.service.SupportedMethods())
}

func (h *PaymentHandler) methodParam(w http.ResponseWriter, r *http.Request) (provider.PaymentMethod, bool) {
	method, err := provider.ParseMethod(chi.URLParam(r, "method"))
	if err != nil {
		response.Error(w, http.StatusNotFound, "Unknown payment method", err)
		return "", false
	}
	return method, true
}

// writeResult maps a facade result onto an HTTP reply. Business failures are
// part of the contract and still travel as a 200 envelope.
func (h *PaymentHandler) writeResult(w http.ResponseWriter, result *provider.PaymentResult) {
	if !result.Success && result.ErrorCode == provider.ErrCodeUnsupportedMethod {
		response.Error(w, http.StatusNotFound, result.ErrorMessage, nil)
		return
	}
	response.Success(w, http.StatusOK, "", result)
}

// callbackSignature extracts the digest the HTTP layer is responsible for.
// Stripe carries it in a header; the form gateways embed it in the payload.
func callbackSignature(r *http.Request) string {
	if sig := r.Header.Get("Stripe-Signature"); sig != "" {
		return sig
	}
	return r.URL.Query().Get(provider.SignatureField)
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
