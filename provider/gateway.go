package provider

import "context"

// GatewayClient is the outbound transport boundary the wallet and bank
// adapters talk through. The core only needs flat key/value replies back (raw
// status token, raw amount, trade id, pay code); the wire protocol, retry and
// timeout policy belong to the implementation.
type GatewayClient interface {
	// PostForm sends a signed parameter set to a provider endpoint and
	// returns the reply as a flat parameter map.
	PostForm(ctx context.Context, endpoint string, params map[string]string) (map[string]string, error)
}
