package provider

import (
	"sync"
)

// Registry maps payment methods to their adapters. It is populated once at
// process start from the deployment's enabled providers and treated as
// immutable afterwards; the mutex only guards against a misbehaving caller
// registering during traffic.
type Registry struct {
	mu        sync.RWMutex
	providers map[PaymentMethod]PaymentProvider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[PaymentMethod]PaymentProvider),
	}
}

// Register adds an adapter under its own method. A second registration for
// the same method is rejected: one method, one adapter, so a misconfiguration
// cannot silently reroute transactions.
func (r *Registry) Register(p PaymentProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	method := p.Method()
	if _, exists := r.providers[method]; exists {
		return NewPaymentError(ErrCodeDuplicateProvider, "payment method %q is already registered", method)
	}

	r.providers[method] = p
	return nil
}

// Resolve returns the adapter registered for method.
func (r *Registry) Resolve(method PaymentMethod) (PaymentProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.providers[method]
	if !exists {
		return nil, NewPaymentError(ErrCodeUnsupportedMethod, "payment method %q is not registered", method)
	}

	return p, nil
}

// Methods returns the currently registered payment methods. Disabled
// providers are simply absent; there is no fallback entry.
func (r *Registry) Methods() []PaymentMethod {
	r.mu.RLock()
	defer r.mu.RUnlock()

	methods := make([]PaymentMethod, 0, len(r.providers))
	for method := range r.providers {
		methods = append(methods, method)
	}

	return methods
}
