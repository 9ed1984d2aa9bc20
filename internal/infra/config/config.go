package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"tripdesk/internal/domain/account"
)

const (
	StorageMemory = "memory"
	StorageMongo  = "mongo"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env                string
	HTTPAddr           string
	Storage            string
	MongoURI           string
	MongoDB            string
	KafkaBrokers       []string
	KafkaTopicPrefix   string
	KafkaGroupID       string
	IdempotencyTTL     time.Duration
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration
	StaffTokens        []StaffToken
	SessionTTL         time.Duration
	InventoryFixtures  string
	ReferenceAttempts  int
	CORSOrigins        []string
}

// StaffToken seeds a bearer session for a staff member.
type StaffToken struct {
	Token     string
	AccountID string
	Role      account.Role
}

var (
	ErrMongoURIRequired = errors.New("config: MONGO_URI is required when STORAGE=mongo")
	ErrUnknownStorage   = errors.New("config: STORAGE must be memory or mongo")
)

// Load reads the environment, optionally merged over a .env file in the
// working directory.
func Load() (Config, error) {
	v := viper.New()
	if _, err := os.Stat(".env"); err == nil {
		v.SetConfigFile(".env")
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read .env: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper builds the config from v with environment lookups enabled.
func FromViper(v *viper.Viper) (Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	cfg := Config{
		Env:               v.GetString("APP_ENV"),
		HTTPAddr:          v.GetString("HTTP_ADDR"),
		Storage:           strings.ToLower(strings.TrimSpace(v.GetString("STORAGE"))),
		MongoURI:          v.GetString("MONGO_URI"),
		MongoDB:           v.GetString("MONGO_DB"),
		KafkaBrokers:      splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopicPrefix:  v.GetString("KAFKA_TOPIC_PREFIX"),
		KafkaGroupID:      v.GetString("KAFKA_GROUP_ID"),
		InventoryFixtures: v.GetString("INVENTORY_FIXTURES"),
		ReferenceAttempts: v.GetInt("REFERENCE_ATTEMPTS"),
		CORSOrigins:       splitList(v.GetString("CORS_ORIGINS")),
	}
	var err error
	if cfg.IdempotencyTTL, err = duration(v, "IDEMP_TTL"); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = duration(v, "OUTBOX_POLL_INTERVAL"); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = duration(v, "SESSION_TTL"); err != nil {
		return Config{}, err
	}
	for _, raw := range splitList(v.GetString("RETRY_BACKOFF")) {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}
	if cfg.StaffTokens, err = parseStaffTokens(v.GetString("STAFF_TOKENS")); err != nil {
		return Config{}, err
	}

	switch cfg.Storage {
	case StorageMemory:
	case StorageMongo:
		if cfg.MongoURI == "" {
			return Config{}, ErrMongoURIRequired
		}
	default:
		return Config{}, ErrUnknownStorage
	}
	if cfg.ReferenceAttempts < 1 {
		cfg.ReferenceAttempts = 1
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("STORAGE", StorageMemory)
	v.SetDefault("MONGO_DB", "tripdesk")
	v.SetDefault("KAFKA_GROUP_ID", "tripdesk-notifier")
	v.SetDefault("IDEMP_TTL", "24h")
	v.SetDefault("OUTBOX_POLL_INTERVAL", "500ms")
	v.SetDefault("RETRY_BACKOFF", "1s,5s,30s")
	v.SetDefault("SESSION_TTL", "720h")
	v.SetDefault("REFERENCE_ATTEMPTS", 5)
	v.SetDefault("CORS_ORIGINS", "*")
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

// parseStaffTokens reads "token:account[:role]" entries separated by commas.
// The role defaults to staff.
func parseStaffTokens(raw string) ([]StaffToken, error) {
	var out []StaffToken
	for _, entry := range splitList(raw) {
		parts := strings.Split(entry, ":")
		if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid STAFF_TOKENS entry %q", entry)
		}
		role := account.RoleStaff
		if len(parts) == 3 {
			role = account.ParseRole(parts[2])
			if role == "" {
				return nil, fmt.Errorf("invalid STAFF_TOKENS role in %q: %w", entry, account.ErrInvalidRole)
			}
		}
		out = append(out, StaffToken{Token: parts[0], AccountID: parts[1], Role: role})
	}
	return out, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
