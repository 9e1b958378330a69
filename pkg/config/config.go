package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix  = ""
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	RateLimit     RateLimitConfig
	Credentials   CredentialsConfig
	Gateway       GatewayConfig
	Shipping      ShippingConfig
	Notifications NotificationsConfig
	FeatureFlags  FeatureFlagsConfig
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
	Env          string `envconfig:"MERAKART_APP_ENV" required:"true"`
	Port         string `envconfig:"MERAKART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MERAKART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MERAKART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"MERAKART_DB_DSN"`
	Driver string `envconfig:"MERAKART_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"MERAKART_DB_HOST"`
	Port     int    `envconfig:"MERAKART_DB_PORT" default:"5432"`
	User     string `envconfig:"MERAKART_DB_USER"`
	Password string `envconfig:"MERAKART_DB_PASSWORD"`
	Name     string `envconfig:"MERAKART_DB_NAME"`
	SSLMode  string `envconfig:"MERAKART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MERAKART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MERAKART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MERAKART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MERAKART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MERAKART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MERAKART_REDIS_ADDR"`
	Password     string        `envconfig:"MERAKART_REDIS_PASSWORD"`
	DB           int           `envconfig:"MERAKART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MERAKART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MERAKART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MERAKART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MERAKART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MERAKART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MERAKART_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MERAKART_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MERAKART_JWT_EXPIRATION_MINUTES" default:"60"`
}

type RateLimitConfig struct {
	QuoteWindow   time.Duration `envconfig:"MERAKART_RATE_LIMIT_QUOTE_WINDOW" default:"1m"`
	QuoteIPLimit  int           `envconfig:"MERAKART_RATE_LIMIT_QUOTE_IP_LIMIT" default:"30"`
	VerifyWindow  time.Duration `envconfig:"MERAKART_RATE_LIMIT_VERIFY_WINDOW" default:"1m"`
	VerifyIPLimit int           `envconfig:"MERAKART_RATE_LIMIT_VERIFY_IP_LIMIT" default:"10"`
}

type CredentialsConfig struct {
	// EncryptionSecret seeds the AES key used for provider credentials at rest.
	EncryptionSecret string `envconfig:"MERAKART_CREDENTIALS_SECRET" required:"true"`
}

type GatewayConfig struct {
	KeyID         string `envconfig:"MERAKART_GATEWAY_KEY_ID" required:"true"`
	KeySecret     string `envconfig:"MERAKART_GATEWAY_KEY_SECRET" required:"true"`
	WebhookSecret string `envconfig:"MERAKART_GATEWAY_WEBHOOK_SECRET" required:"true"`
	BaseURL       string `envconfig:"MERAKART_GATEWAY_BASE_URL" default:"https://api.razorpay.com"`
	// AmountCeiling caps a single payment order, denominated in rupees.
	AmountCeiling int64 `envconfig:"MERAKART_GATEWAY_AMOUNT_CEILING" default:"500000"`
}

type ShippingConfig struct {
	QuoteTimeout       time.Duration `envconfig:"MERAKART_SHIPPING_QUOTE_TIMEOUT" default:"5s"`
	QuoteCacheTTL      time.Duration `envconfig:"MERAKART_SHIPPING_QUOTE_CACHE_TTL" default:"30s"`
	DefaultItemWeightG int           `envconfig:"MERAKART_SHIPPING_DEFAULT_ITEM_WEIGHT_G" default:"500"`
	MaxEdgeCM          int           `envconfig:"MERAKART_SHIPPING_MAX_EDGE_CM" default:"150"`
	MaxGirthCM         int           `envconfig:"MERAKART_SHIPPING_MAX_GIRTH_CM" default:"300"`
	VolumetricDivisor  int           `envconfig:"MERAKART_SHIPPING_VOLUMETRIC_DIVISOR" default:"5000"`
}

type NotificationsConfig struct {
	PollInterval time.Duration `envconfig:"MERAKART_NOTIFY_POLL_INTERVAL" default:"15s"`
	BatchSize    int           `envconfig:"MERAKART_NOTIFY_BATCH_SIZE" default:"25"`
	MaxAttempts  int           `envconfig:"MERAKART_NOTIFY_MAX_ATTEMPTS" default:"5"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MERAKART_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	required := map[string]string{
		"MERAKART_DB_HOST": db.Host,
		"MERAKART_DB_USER": db.User,
		"MERAKART_DB_NAME": db.Name,
	}
	for _, key := range []string{"MERAKART_DB_HOST", "MERAKART_DB_USER", "MERAKART_DB_NAME"} {
		if required[key] == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either MERAKART_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
