package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Valkey   ValkeyConfig
	Cache    CacheConfig
	Lock     LockConfig
	Webhook  WebhookConfig
	EventBus EventBusConfig
}

type AppConfig struct {
	Version        string
	Port           string
	Debug          bool
	Environment    string
	BasePath       string
	TrustedProxies []string
	ServerID       string
	StateDir       string
}

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Name     string // File path for SQLite, DB Name for Postgres
}

type ValkeyConfig struct {
	Enabled   bool
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

type CacheConfig struct {
	ContactTTL    time.Duration
	ConnectionTTL time.Duration
}

const (
	LockBackendValkey  = "valkey"
	LockBackendRedlock = "redlock"
	LockBackendMemory  = "memory"
)

type LockConfig struct {
	Backend    string
	MessageTTL time.Duration
	// KeyMajority is the Redlock quorum; only used by the redlock backend.
	KeyMajority int
}

type WebhookConfig struct {
	BotSignature        string
	Async               bool
	Workers             int
	QueueSize           int
	MaxBodyBytes        int64
	CloudAPIVerifyToken string
	CloudAPIAppSecret   string
}

type EventBusConfig struct {
	AMQPURL  string
	Exchange string
}

// DefaultBotSignature is the zero-width marker appended to outbound content so
// that echoed webhooks can be recognised.
const DefaultBotSignature = "\u200b\u200d\u200b"

// MinLockTTL is the smallest message lock TTL accepted from configuration.
const MinLockTTL = 100 * time.Millisecond

// SetDefaults registers every key with its default so that AutomaticEnv can
// resolve them (viper only looks up env vars for keys it knows about).
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app_version", "v1.0.0")
	v.SetDefault("app_port", "3000")
	v.SetDefault("app_debug", false)
	v.SetDefault("app_env", "development")
	v.SetDefault("app_base_path", "")
	v.SetDefault("app_trusted_proxies", "")
	v.SetDefault("server_id", "")
	v.SetDefault("app_state_dir", "storages")

	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_password", "")
	v.SetDefault("db_name", "storages/ingest.db")

	v.SetDefault("valkey_enabled", false)
	v.SetDefault("valkey_address", "localhost:6379")
	v.SetDefault("valkey_password", "")
	v.SetDefault("valkey_db", 0)
	v.SetDefault("valkey_key_prefix", "azwap:")

	v.SetDefault("cache_contact_ttl", 5*time.Minute)
	v.SetDefault("cache_connection_ttl", 10*time.Minute)

	v.SetDefault("lock_backend", LockBackendValkey)
	v.SetDefault("lock_message_ttl", 5*time.Second)
	v.SetDefault("lock_key_majority", 1)

	v.SetDefault("webhook_bot_signature", DefaultBotSignature)
	v.SetDefault("webhook_async", false)
	v.SetDefault("webhook_workers", 8)
	v.SetDefault("webhook_queue_size", 500)
	v.SetDefault("webhook_max_body_bytes", int64(5*1024*1024))
	v.SetDefault("webhook_cloudapi_verify_token", "")
	v.SetDefault("webhook_cloudapi_app_secret", "")

	v.SetDefault("eventbus_amqp_url", "")
	v.SetDefault("eventbus_exchange", "whatsapp.webhooks")
}

// LoadConfig builds a Config from the given viper instance. Env vars are
// matched case-insensitively against the keys registered in SetDefaults.
func LoadConfig(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Version:        v.GetString("app_version"),
			Port:           v.GetString("app_port"),
			Debug:          v.GetBool("app_debug"),
			Environment:    v.GetString("app_env"),
			BasePath:       strings.TrimSuffix(v.GetString("app_base_path"), "/"),
			TrustedProxies: splitList(v.GetString("app_trusted_proxies")),
			ServerID:       v.GetString("server_id"),
			StateDir:       v.GetString("app_state_dir"),
		},
		Database: DatabaseConfig{
			Driver:   v.GetString("db_driver"),
			Host:     v.GetString("db_host"),
			Port:     v.GetInt("db_port"),
			User:     v.GetString("db_user"),
			Password: v.GetString("db_password"),
			Name:     v.GetString("db_name"),
		},
		Valkey: ValkeyConfig{
			Enabled:   v.GetBool("valkey_enabled"),
			Address:   v.GetString("valkey_address"),
			Password:  v.GetString("valkey_password"),
			DB:        v.GetInt("valkey_db"),
			KeyPrefix: v.GetString("valkey_key_prefix"),
		},
		Cache: CacheConfig{
			ContactTTL:    v.GetDuration("cache_contact_ttl"),
			ConnectionTTL: v.GetDuration("cache_connection_ttl"),
		},
		Lock: LockConfig{
			Backend:     strings.ToLower(v.GetString("lock_backend")),
			MessageTTL:  v.GetDuration("lock_message_ttl"),
			KeyMajority: v.GetInt("lock_key_majority"),
		},
		Webhook: WebhookConfig{
			BotSignature:        v.GetString("webhook_bot_signature"),
			Async:               v.GetBool("webhook_async"),
			Workers:             v.GetInt("webhook_workers"),
			QueueSize:           v.GetInt("webhook_queue_size"),
			MaxBodyBytes:        v.GetInt64("webhook_max_body_bytes"),
			CloudAPIVerifyToken: v.GetString("webhook_cloudapi_verify_token"),
			CloudAPIAppSecret:   v.GetString("webhook_cloudapi_app_secret"),
		},
		EventBus: EventBusConfig{
			AMQPURL:  v.GetString("eventbus_amqp_url"),
			Exchange: v.GetString("eventbus_exchange"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
