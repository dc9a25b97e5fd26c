package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
)

const defaultGatewayTimeout = 30 * time.Second

// HTTPGatewayConfig configures an HTTPGateway.
type HTTPGatewayConfig struct {
	BaseURL string
	Timeout time.Duration
}

// HTTPGateway is the form-post GatewayClient implementation. A circuit
// breaker sits in front of the provider so a flapping gateway fails fast
// instead of tying up every caller for a full timeout.
type HTTPGateway struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker
}

// NewHTTPGateway creates a gateway client for one provider endpoint.
func NewHTTPGateway(cfg HTTPGatewayConfig) *HTTPGateway {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultGatewayTimeout
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "gateway:" + cfg.BaseURL,
		Timeout: timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &HTTPGateway{
		client:  client,
		breaker: breaker,
	}
}

// PostForm sends params as a form-encoded POST and parses the reply into a
// flat parameter map.
func (g *HTTPGateway) PostForm(ctx context.Context, endpoint string, params map[string]string) (map[string]string, error) {
	result, err := g.breaker.Execute(func() (any, error) {
		resp, err := g.client.R().
			SetContext(ctx).
			SetFormData(params).
			Post(endpoint)
		if err != nil {
			return nil, fmt.Errorf("gateway request failed: %w", err)
		}

		if resp.IsError() {
			return nil, fmt.Errorf("gateway returned HTTP %d: %s", resp.StatusCode(), resp.String())
		}

		return parseGatewayBody(resp.String())
	})
	if err != nil {
		return nil, err
	}

	return result.(map[string]string), nil
}

// parseGatewayBody accepts either a JSON object or a "k=v&k=v" form body and
// flattens it into string fields. Nested JSON objects are re-encoded so no
// reply field is silently dropped.
func parseGatewayBody(body string) (map[string]string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("gateway returned an empty body")
	}

	if strings.HasPrefix(body, "{") {
		var raw map[string]any
		if err := json.Unmarshal([]byte(body), &raw); err != nil {
			return nil, fmt.Errorf("gateway returned invalid JSON: %w", err)
		}

		fields := make(map[string]string, len(raw))
		for k, v := range raw {
			switch val := v.(type) {
			case string:
				fields[k] = val
			case float64:
				fields[k] = strconv.FormatFloat(val, 'f', -1, 64)
			case bool:
				fields[k] = strconv.FormatBool(val)
			case nil:
				// skip
			default:
				encoded, err := json.Marshal(val)
				if err == nil {
					fields[k] = string(encoded)
				}
			}
		}
		return fields, nil
	}

	values, err := url.ParseQuery(body)
	if err != nil {
		return nil, fmt.Errorf("gateway returned an unparsable body: %w", err)
	}

	fields := make(map[string]string, len(values))
	for k := range values {
		fields[k] = values.Get(k)
	}
	return fields, nil
}
