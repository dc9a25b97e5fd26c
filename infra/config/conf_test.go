package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppReturnsSameInstance(t *testing.T) {
	first := App()
	second := App()

	require.NotNil(t, first)
	assert.Same(t, first, second)
	assert.NotNil(t, first.Validator)
}

func TestGetEnv(t *testing.T) {
	t.Setenv("UNIPAY_TEST_STRING", "value")

	assert.Equal(t, "value", GetEnv("UNIPAY_TEST_STRING", "default"))
	assert.Equal(t, "default", GetEnv("UNIPAY_TEST_MISSING", "default"))
}

func TestGetBoolEnv(t *testing.T) {
	t.Setenv("UNIPAY_TEST_BOOL", "true")
	assert.True(t, GetBoolEnv("UNIPAY_TEST_BOOL", false))

	t.Setenv("UNIPAY_TEST_BOOL", "not-a-bool")
	assert.True(t, GetBoolEnv("UNIPAY_TEST_BOOL", true))

	assert.False(t, GetBoolEnv("UNIPAY_TEST_BOOL_MISSING", false))
}

func TestGetIntEnv(t *testing.T) {
	t.Setenv("UNIPAY_TEST_INT", "42")
	assert.Equal(t, 42, GetIntEnv("UNIPAY_TEST_INT", 7))

	t.Setenv("UNIPAY_TEST_INT", "forty-two")
	assert.Equal(t, 7, GetIntEnv("UNIPAY_TEST_INT", 7))

	assert.Equal(t, 7, GetIntEnv("UNIPAY_TEST_INT_MISSING", 7))
}

func TestEnabledProviders(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"single", "alipay", []string{"alipay"}},
		{"list", "alipay,wechat,card", []string{"alipay", "wechat", "card"}},
		{"spaces and empties trimmed", " alipay , ,wechat,", []string{"alipay", "wechat"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("UNIPAY_PROVIDERS", tt.raw)
			assert.Equal(t, tt.want, EnabledProviders())
		})
	}
}
