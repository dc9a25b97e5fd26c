package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalString(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]string
		want   string
	}{
		{
			name:   "sorted by key",
			params: map[string]string{"b": "2", "a": "1", "c": "3"},
			want:   "a=1&b=2&c=3",
		},
		{
			name:   "sign field excluded",
			params: map[string]string{"a": "1", "sign": "DEADBEEF"},
			want:   "a=1",
		},
		{
			name:   "empty values excluded",
			params: map[string]string{"a": "1", "b": "", "c": "3"},
			want:   "a=1&c=3",
		},
		{
			name:   "byte-wise ordering not locale ordering",
			params: map[string]string{"Z": "upper", "a": "lower"},
			want:   "Z=upper&a=lower",
		},
		{
			name:   "empty map",
			params: map[string]string{},
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalString(tt.params))
		})
	}
}

func TestSignRoundTrip(t *testing.T) {
	params := map[string]string{
		"orderId": "A1",
		"amount":  "10.00",
		"status":  "SUCCESS",
	}

	for _, signType := range []SignType{SignTypeMD5, SignTypeHMACSHA256} {
		t.Run(string(signType), func(t *testing.T) {
			digest := Sign(params, "secret", signType)
			require.NotEmpty(t, digest)
			assert.True(t, VerifySign(params, "secret", digest, signType))
		})
	}
}

func TestVerifySignRejectsTamperedDigest(t *testing.T) {
	params := map[string]string{"orderId": "A1", "amount": "10.00"}

	for _, signType := range []SignType{SignTypeMD5, SignTypeHMACSHA256} {
		t.Run(string(signType), func(t *testing.T) {
			digest := Sign(params, "secret", signType)

			// Flip one hex digit.
			flipped := []byte(digest)
			if flipped[0] == 'a' || flipped[0] == 'A' {
				flipped[0] = 'b'
			} else {
				flipped[0] = 'a'
			}

			assert.False(t, VerifySign(params, "secret", string(flipped), signType))
		})
	}
}

func TestVerifySignRejectsTamperedParams(t *testing.T) {
	params := map[string]string{"orderId": "A1", "amount": "10.00"}
	digest := Sign(params, "secret", SignTypeHMACSHA256)

	params["amount"] = "9999.00"
	assert.False(t, VerifySign(params, "secret", digest, SignTypeHMACSHA256))
}

func TestVerifySignEmptyDigest(t *testing.T) {
	assert.False(t, VerifySign(map[string]string{"a": "1"}, "secret", "", SignTypeMD5))
}

func TestVerifySignWrongSecret(t *testing.T) {
	params := map[string]string{"orderId": "A1"}
	digest := Sign(params, "secret", SignTypeMD5)
	assert.False(t, VerifySign(params, "other", digest, SignTypeMD5))
}

func TestSignIndependentOfInsertionOrder(t *testing.T) {
	first := map[string]string{}
	first["a"] = "1"
	first["b"] = "2"
	first["c"] = "3"

	second := map[string]string{}
	second["c"] = "3"
	second["a"] = "1"
	second["b"] = "2"

	assert.Equal(t,
		Sign(first, "secret", SignTypeHMACSHA256),
		Sign(second, "secret", SignTypeHMACSHA256))
}

func TestVerifySignDigestCase(t *testing.T) {
	params := map[string]string{"orderId": "A1"}

	// MD5 digests travel uppercase but a lowercase copy must still verify.
	md5Digest := Sign(params, "secret", SignTypeMD5)
	assert.True(t, VerifySign(params, "secret", toLower(md5Digest), SignTypeMD5))

	// HMAC digests travel lowercase but an uppercase copy must still verify.
	hmacDigest := Sign(params, "secret", SignTypeHMACSHA256)
	assert.True(t, VerifySign(params, "secret", toUpper(hmacDigest), SignTypeHMACSHA256))
}

func toLower(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'F' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

func toUpper(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'a' && b[i] <= 'f' {
			b[i] -= 'a' - 'A'
		}
	}
	return string(b)
}

func TestParseCallbackParams(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		want      map[string]string
		expectErr bool
	}{
		{
			name:    "simple pairs",
			payload: "orderId=A1&status=SUCCESS",
			want:    map[string]string{"orderId": "A1", "status": "SUCCESS"},
		},
		{
			name:    "values kept verbatim without url decoding",
			payload: "subject=coffee%20beans&sign=ABC",
			want:    map[string]string{"subject": "coffee%20beans", "sign": "ABC"},
		},
		{
			name:    "empty value kept",
			payload: "orderId=A1&memo=",
			want:    map[string]string{"orderId": "A1", "memo": ""},
		},
		{
			name:      "empty payload",
			payload:   "",
			expectErr: true,
		},
		{
			name:      "not a parameter set",
			payload:   "just some text",
			expectErr: true,
		},
		{
			name:      "pair without separator",
			payload:   "orderId=A1&broken",
			expectErr: true,
		},
		{
			name:      "pair without key",
			payload:   "=value",
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, err := ParseCallbackParams(tt.payload)
			if tt.expectErr {
				require.Error(t, err)
				var pe *PaymentError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, ErrCodeMalformedCallback, pe.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, params)
		})
	}
}
