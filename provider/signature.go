package provider

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// SignatureField is the parameter that carries the digest itself. It is
// always excluded from the canonical sign string.
const SignatureField = "sign"

// SignType selects the digest family used by a provider.
type SignType string

const (
	// SignTypeMD5 hashes the canonical string with the shared secret appended
	// as "&key=<secret>" and renders uppercase hex.
	SignTypeMD5 SignType = "MD5"

	// SignTypeHMACSHA256 keys an HMAC-SHA256 over the canonical string with
	// the secret and renders lowercase hex.
	SignTypeHMACSHA256 SignType = "HMAC-SHA256"
)

// CanonicalString builds the deterministic sign input: entries with empty
// values and the signature field are dropped, the rest sorted by key in
// byte-wise ascending order and joined as "k1=v1&k2=v2". The provider
// recomputes the same digest independently, so ordering must not depend on
// locale or map iteration.
func CanonicalString(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if k == SignatureField || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(params[k])
	}

	return sb.String()
}

// Sign produces the digest over params with the given secret and sign type.
func Sign(params map[string]string, secret string, signType SignType) string {
	canonical := CanonicalString(params)

	switch signType {
	case SignTypeHMACSHA256:
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte(canonical))
		return hex.EncodeToString(mac.Sum(nil))
	default:
		sum := md5.Sum([]byte(canonical + "&key=" + secret))
		return strings.ToUpper(hex.EncodeToString(sum[:]))
	}
}

// VerifySign recomputes the digest and compares it with the supplied one.
// A missing or mismatched digest yields false; callback payloads are
// adversarial input, so this is a predicate, not a parser that can fail.
func VerifySign(params map[string]string, secret, digest string, signType SignType) bool {
	if digest == "" {
		return false
	}

	expected := Sign(params, secret, signType)

	// Digest case is normalized per family before the constant-time compare.
	switch signType {
	case SignTypeHMACSHA256:
		digest = strings.ToLower(digest)
	default:
		digest = strings.ToUpper(digest)
	}

	return hmac.Equal([]byte(expected), []byte(digest))
}

// ParseCallbackParams splits a "k=v&k=v" notification body into a parameter
// map. Pairs are split verbatim, without URL re-decoding: verification must
// run over the exact bytes the provider signed.
func ParseCallbackParams(payload string) (map[string]string, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" || !strings.Contains(payload, "=") {
		return nil, NewPaymentError(ErrCodeMalformedCallback, "callback payload is not a parameter set")
	}

	params := make(map[string]string)
	for _, pair := range strings.Split(payload, "&") {
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			return nil, NewPaymentError(ErrCodeMalformedCallback, "malformed callback pair %q", pair)
		}
		params[kv[0]] = kv[1]
	}

	return params, nil
}
