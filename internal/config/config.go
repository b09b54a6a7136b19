package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string
	Env           string
	LogLevel      string
	LedgerBackend string
	CORSOrigins   []string

	Database DatabaseConfig
	Redis    RedisConfig
	HSM      HSMConfig
	Bridge   BridgeConfig
	Rates    RateConfig
	Rewards  RewardConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type HSMConfig struct {
	MasterKey    string
	Salt         string
	KeyStorePath string
}

// BridgeConfig controls the external token bridge. An empty RPCURL disables
// bridge submissions; requests then fail fast with NetworkUnavailable.
type BridgeConfig struct {
	RPCURL         string
	OperatorKeyID  string
	Workers        int
	QueueSize      int
	SubmitTimeout  time.Duration
	ConfirmTimeout time.Duration
	SweepSchedule  string
}

type RateConfig struct {
	CacheTTL        time.Duration
	ProviderURL     string
	RefreshSchedule string
}

type RewardConfig struct {
	WelcomeBonus int64
	MaxAmount    int64
}

var envKeys = map[string]string{
	"port":                    "PORT",
	"env":                     "ENV",
	"log.level":               "LOG_LEVEL",
	"ledger.backend":          "LEDGER_BACKEND",
	"cors.origins":            "CORS_ORIGINS",
	"database.host":           "DATABASE_HOST",
	"database.port":           "DATABASE_PORT",
	"database.user":           "DATABASE_USER",
	"database.password":       "DATABASE_PASSWORD",
	"database.name":           "DATABASE_NAME",
	"database.ssl_mode":       "DATABASE_SSL_MODE",
	"redis.host":              "REDIS_HOST",
	"redis.port":              "REDIS_PORT",
	"redis.password":          "REDIS_PASSWORD",
	"redis.db":                "REDIS_DB",
	"hsm.master_key":          "HSM_MASTER_KEY",
	"hsm.salt":                "HSM_SALT",
	"hsm.key_store_path":      "HSM_KEY_STORE_PATH",
	"jwt.secret_key":          "JWT_SECRET_KEY",
	"jwt.expiry_hours":        "JWT_EXPIRY_HOURS",
	"argon2.time":             "ARGON2_TIME",
	"argon2.memory":           "ARGON2_MEMORY",
	"argon2.threads":          "ARGON2_THREADS",
	"argon2.key_length":       "ARGON2_KEY_LENGTH",
	"argon2.salt_length":      "ARGON2_SALT_LENGTH",
	"bridge.rpc_url":          "BRIDGE_RPC_URL",
	"bridge.operator_key_id":  "BRIDGE_OPERATOR_KEY_ID",
	"bridge.workers":          "BRIDGE_WORKERS",
	"bridge.queue_size":       "BRIDGE_QUEUE_SIZE",
	"bridge.submit_timeout":   "BRIDGE_SUBMIT_TIMEOUT",
	"bridge.confirm_timeout":  "BRIDGE_CONFIRM_TIMEOUT",
	"bridge.sweep_schedule":   "BRIDGE_SWEEP_SCHEDULE",
	"rates.cache_ttl":         "RATE_CACHE_TTL",
	"rates.provider_url":      "RATE_PROVIDER_URL",
	"rates.refresh_schedule":  "RATE_REFRESH_SCHEDULE",
	"rewards.welcome_bonus":   "WELCOME_BONUS",
	"rewards.max_amount":      "REWARD_MAX_AMOUNT",
}

func setDefaults() {
	viper.SetDefault("port", "8080")
	viper.SetDefault("env", "development")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("ledger.backend", "postgres")
	viper.SetDefault("cors.origins", "https://*,http://*")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", "5432")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "password")
	viper.SetDefault("database.name", "carecoins")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("hsm.key_store_path", "./keys")
	viper.SetDefault("jwt.expiry_hours", 24)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)

	viper.SetDefault("bridge.operator_key_id", "bridge_operator")
	viper.SetDefault("bridge.workers", 4)
	viper.SetDefault("bridge.queue_size", 100)
	viper.SetDefault("bridge.submit_timeout", 30*time.Second)
	viper.SetDefault("bridge.confirm_timeout", 5*time.Minute)
	viper.SetDefault("bridge.sweep_schedule", "0 * * * * *")

	viper.SetDefault("rates.cache_ttl", time.Minute)
	viper.SetDefault("rates.refresh_schedule", "0 */5 * * * *")

	viper.SetDefault("rewards.welcome_bonus", 100)
	viper.SetDefault("rewards.max_amount", 10000)
}

// Load reads .env and the process environment into viper and returns the
// typed configuration. Auth helpers keep reading jwt.* and argon2.* straight
// from viper, so Load must run before the HTTP server starts.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()
	setDefaults()

	for key, env := range envKeys {
		if err := viper.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	// A missing .env is fine; the environment alone is enough.
	_ = viper.ReadInConfig()

	cfg := &Config{
		Port:          viper.GetString("port"),
		Env:           viper.GetString("env"),
		LogLevel:      viper.GetString("log.level"),
		LedgerBackend: strings.ToLower(viper.GetString("ledger.backend")),
		CORSOrigins:   splitList(viper.GetString("cors.origins")),
		Database: DatabaseConfig{
			Host:            viper.GetString("database.host"),
			Port:            viper.GetString("database.port"),
			User:            viper.GetString("database.user"),
			Password:        viper.GetString("database.password"),
			Name:            viper.GetString("database.name"),
			SSLMode:         viper.GetString("database.ssl_mode"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: viper.GetDuration("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("redis.host"),
			Port:     viper.GetString("redis.port"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		HSM: HSMConfig{
			MasterKey:    viper.GetString("hsm.master_key"),
			Salt:         viper.GetString("hsm.salt"),
			KeyStorePath: viper.GetString("hsm.key_store_path"),
		},
		Bridge: BridgeConfig{
			RPCURL:         viper.GetString("bridge.rpc_url"),
			OperatorKeyID:  viper.GetString("bridge.operator_key_id"),
			Workers:        viper.GetInt("bridge.workers"),
			QueueSize:      viper.GetInt("bridge.queue_size"),
			SubmitTimeout:  viper.GetDuration("bridge.submit_timeout"),
			ConfirmTimeout: viper.GetDuration("bridge.confirm_timeout"),
			SweepSchedule:  viper.GetString("bridge.sweep_schedule"),
		},
		Rates: RateConfig{
			CacheTTL:        viper.GetDuration("rates.cache_ttl"),
			ProviderURL:     viper.GetString("rates.provider_url"),
			RefreshSchedule: viper.GetString("rates.refresh_schedule"),
		},
		Rewards: RewardConfig{
			WelcomeBonus: viper.GetInt64("rewards.welcome_bonus"),
			MaxAmount:    viper.GetInt64("rewards.max_amount"),
		},
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate rejects configurations that cannot run safely outside development.
func (c *Config) Validate() error {
	if c.LedgerBackend != "postgres" && c.LedgerBackend != "memory" {
		return fmt.Errorf("LEDGER_BACKEND must be \"postgres\" or \"memory\", got %q", c.LedgerBackend)
	}
	if c.Bridge.Workers <= 0 {
		return fmt.Errorf("BRIDGE_WORKERS must be positive, got %d", c.Bridge.Workers)
	}
	if c.Bridge.QueueSize <= 0 {
		return fmt.Errorf("BRIDGE_QUEUE_SIZE must be positive, got %d", c.Bridge.QueueSize)
	}
	if c.Rewards.WelcomeBonus < 0 {
		return fmt.Errorf("WELCOME_BONUS cannot be negative")
	}
	if c.IsDev() {
		return nil
	}
	if viper.GetString("jwt.secret_key") == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required when ENV=%q", c.Env)
	}
	if c.HSM.MasterKey == "" {
		return fmt.Errorf("HSM_MASTER_KEY is required when ENV=%q", c.Env)
	}
	if c.LedgerBackend == "memory" {
		return fmt.Errorf("LEDGER_BACKEND=memory is only allowed in development")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
