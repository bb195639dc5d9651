package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setAPIEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SUPABASE_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("ADMIN_API_KEY_HASH", "$2a$12$hash")
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, EventStorePostgres, cfg.EventStore)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "USD", cfg.Currency)
	assert.Equal(t, 30*time.Second, cfg.PaymentTimeout)
	assert.Equal(t, 30*time.Second, cfg.DiscountTimeout)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.False(t, cfg.DiscountCodesEnabled)
	assert.True(t, cfg.SecureCookies)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("EVENT_STORE", "Dynamo")
	t.Setenv("CURRENCY", "eur")
	t.Setenv("DISCOUNT_CODES_ENABLED", "true")
	t.Setenv("DISCOUNT_TIMEOUT", "5s")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, EventStoreDynamo, cfg.EventStore)
	assert.Equal(t, "EUR", cfg.Currency)
	assert.True(t, cfg.DiscountCodesEnabled)
	assert.Equal(t, 5*time.Second, cfg.DiscountTimeout)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"EVENT_STORE", "cassandra"},
		{"PAYMENT_TIMEOUT", "soon"},
		{"SESSION_TTL", "-1h"},
		{"DISCOUNT_CODES_ENABLED", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()

			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.ErrorContains(t, err, tt.key)
		})
	}
}

func TestValidateAPI(t *testing.T) {
	setAPIEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.NoError(t, cfg.ValidateAPI())

	cfg.SupabaseJWTSecret = "short"
	assert.ErrorContains(t, cfg.ValidateAPI(), "at least 32 characters")

	cfg.SupabaseJWTSecret = ""
	assert.ErrorContains(t, cfg.ValidateAPI(), "SUPABASE_JWT_SECRET is required")
}

func TestValidateAPI_DiscountNeedsEndpoint(t *testing.T) {
	setAPIEnv(t)
	t.Setenv("DISCOUNT_CODES_ENABLED", "true")
	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.ValidateAPI()

	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorContains(t, err, "DISCOUNT_VALIDATION_URL")
}
