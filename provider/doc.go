// Package provider contains the unified payment core: the shared
// request/response contract, the adapter interface every payment provider
// implements, the registry that routes a payment method to its adapter, the
// canonical-signature engine for outbound signing and callback verification,
// and the status normalization onto one shared state machine.
//
// Adapters live in subpackages (alipay, wechatpay, bankpay, stripecard) and
// are constructed explicitly at process start, then registered with a
// Registry the Service facade resolves against.
package provider
