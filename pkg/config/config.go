package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "RELAY"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "RELAY_DB_DSN"
	EnvDBHost = "RELAY_DB_HOST"
	EnvDBUser = "RELAY_DB_USER"
	EnvDBName = "RELAY_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Dispatch DispatchConfig
	Webhooks WebhooksConfig
	CORS     CORSConfig
	Features FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"RELAY_APP_ENV" required:"true"`
	Port         string `envconfig:"RELAY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"RELAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RELAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"RELAY_DB_DSN"`
	Driver string `envconfig:"RELAY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"RELAY_DB_HOST"`
	LegacyPort     int    `envconfig:"RELAY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"RELAY_DB_USER"`
	LegacyPassword string `envconfig:"RELAY_DB_PASSWORD"`
	LegacyName     string `envconfig:"RELAY_DB_NAME"`
	LegacySSLMode  string `envconfig:"RELAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RELAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RELAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RELAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RELAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RELAY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"RELAY_REDIS_ADDR"`
	Password     string        `envconfig:"RELAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"RELAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RELAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RELAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RELAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RELAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RELAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// DispatchConfig tunes the order-to-delivery pipeline.
type DispatchConfig struct {
	PartnerTimeout    time.Duration `envconfig:"RELAY_DISPATCH_PARTNER_TIMEOUT" default:"10s"`
	PartnerAttempts   int           `envconfig:"RELAY_DISPATCH_PARTNER_ATTEMPTS" default:"3"`
	LockTTL           time.Duration `envconfig:"RELAY_DISPATCH_LOCK_TTL" default:"30s"`
	IntegrationCacheT time.Duration `envconfig:"RELAY_DISPATCH_INTEGRATION_CACHE_TTL" default:"1m"`
}

type WebhooksConfig struct {
	IdempotencyTTL time.Duration `envconfig:"RELAY_WEBHOOKS_IDEMPOTENCY_TTL" default:"24h"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"RELAY_CORS_ALLOWED_ORIGINS" default:"*"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"RELAY_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
