package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"tripdesk/internal/domain/account"
)

func TestDefaults(t *testing.T) {
	cfg, err := FromViper(viper.New())
	require.NoError(t, err)
	require.Equal(t, StorageMemory, cfg.Storage)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, 500*time.Millisecond, cfg.OutboxPollInterval)
	require.Equal(t, []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}, cfg.RetryBackoff)
	require.Equal(t, 5, cfg.ReferenceAttempts)
	require.Empty(t, cfg.StaffTokens)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("STORAGE", "Mongo")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017/?replicaSet=rs0")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("STAFF_TOKENS", "tok-1:staff-1,tok-2:boss:admin")
	t.Setenv("REFERENCE_ATTEMPTS", "0")

	cfg, err := FromViper(viper.New())
	require.NoError(t, err)
	require.Equal(t, StorageMongo, cfg.Storage)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, []StaffToken{
		{Token: "tok-1", AccountID: "staff-1", Role: account.RoleStaff},
		{Token: "tok-2", AccountID: "boss", Role: account.RoleAdmin},
	}, cfg.StaffTokens)
	require.Equal(t, 1, cfg.ReferenceAttempts)
}

func TestInvalidValues(t *testing.T) {
	t.Run("mongo without uri", func(t *testing.T) {
		t.Setenv("STORAGE", "mongo")
		_, err := FromViper(viper.New())
		require.ErrorIs(t, err, ErrMongoURIRequired)
	})
	t.Run("unknown storage", func(t *testing.T) {
		t.Setenv("STORAGE", "postgres")
		_, err := FromViper(viper.New())
		require.ErrorIs(t, err, ErrUnknownStorage)
	})
	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("SESSION_TTL", "forever")
		_, err := FromViper(viper.New())
		require.ErrorContains(t, err, "SESSION_TTL")
	})
	t.Run("bad staff role", func(t *testing.T) {
		t.Setenv("STAFF_TOKENS", "tok:acc:owner")
		_, err := FromViper(viper.New())
		require.ErrorIs(t, err, account.ErrInvalidRole)
	})
}
