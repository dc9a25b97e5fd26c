// Package unipay provides a unified payment layer that routes payment
// operations to pluggable provider adapters behind one standardized API.
// Callers speak a single request/response contract; each adapter translates
// it to its provider's wire protocol, signs outbound requests, verifies
// asynchronous callbacks, and normalizes proprietary status vocabularies
// onto one shared state machine.
//
// # Supported providers
//
//   - alipay: scan-to-pay QR flow over the open gateway
//   - wechat: Native QR and in-app JSAPI flows
//   - bank: hosted direct-debit bank gateway
//   - card: card payments through Stripe PaymentIntents
//
// # Quick start
//
//	registry := provider.NewRegistry()
//
//	adapter, err := alipay.New(alipay.Config{
//	    AppID:     "your-app-id",
//	    SecretKey: "your-secret-key",
//	}, provider.NewHTTPGateway(provider.HTTPGatewayConfig{
//	    BaseURL: "https://openapi.alipay.com",
//	}), logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := registry.Register(adapter); err != nil {
//	    log.Fatal(err)
//	}
//
//	service := provider.NewService(registry, logger)
//
//	result := service.CreatePayment(ctx, provider.PaymentRequest{
//	    OrderID: "order-1001",
//	    Method:  provider.MethodAlipay,
//	    Amount:  99.50,
//	    Subject: "Annual subscription",
//	})
//
// Every operation returns a PaymentResult. Expected runtime failures (an
// unsupported method, a rejected amount, a forged callback signature) come
// back as Success=false with a stable ErrorCode; Go errors are reserved for
// startup and configuration problems.
//
// cmd/ runs the same core as an HTTP service with a /v1 REST surface.
package unipay
