package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "MECHA"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvDBDSN  = "MECHA_DB_DSN"
	EnvDBHost = "MECHA_DB_HOST"
	EnvDBUser = "MECHA_DB_USER"
	EnvDBName = "MECHA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	JWT     JWTConfig
	Sepay   SepayConfig
	SMTP    SMTPConfig
	Sweeper SweeperConfig
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
	Env          string   `envconfig:"MECHA_APP_ENV" required:"true"`
	Port         string   `envconfig:"MECHA_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"MECHA_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"MECHA_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"MECHA_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"MECHA_DB_DSN"`

	LegacyHost     string `envconfig:"MECHA_DB_HOST"`
	LegacyPort     int    `envconfig:"MECHA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MECHA_DB_USER"`
	LegacyPassword string `envconfig:"MECHA_DB_PASSWORD"`
	LegacyName     string `envconfig:"MECHA_DB_NAME"`
	LegacySSLMode  string `envconfig:"MECHA_DB_SSLMODE" default:"disable"`

	AutoMigrate bool `envconfig:"MECHA_DB_AUTO_MIGRATE" default:"false"`

	MaxOpenConns    int           `envconfig:"MECHA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MECHA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MECHA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MECHA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MECHA_REDIS_URL"`
	Address      string        `envconfig:"MECHA_REDIS_ADDR"`
	Password     string        `envconfig:"MECHA_REDIS_PASSWORD"`
	DB           int           `envconfig:"MECHA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MECHA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MECHA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MECHA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MECHA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MECHA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MECHA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MECHA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MECHA_JWT_EXPIRATION_MINUTES" default:"60"`
}

// SepayConfig carries the bank-transfer gateway settings. An empty APIKey
// disables webhook authentication entirely; this matches the gateway's
// optional Authorization header and is a documented deployment risk.
type SepayConfig struct {
	APIKey            string `envconfig:"MECHA_SEPAY_API_KEY"`
	BankAccountNumber string `envconfig:"MECHA_SEPAY_BANK_ACCOUNT_NUMBER"`
	BankName          string `envconfig:"MECHA_SEPAY_BANK_NAME"`
	AccountHolderName string `envconfig:"MECHA_SEPAY_ACCOUNT_HOLDER_NAME"`
}

type SMTPConfig struct {
	Host string `envconfig:"MECHA_SMTP_HOST"`
	Port int    `envconfig:"MECHA_SMTP_PORT" default:"587"`
	User string `envconfig:"MECHA_SMTP_USER"`
	Pass string `envconfig:"MECHA_SMTP_PASS"`
	From string `envconfig:"MECHA_SMTP_FROM"`
}

type SweeperConfig struct {
	Interval       time.Duration `envconfig:"MECHA_SWEEPER_INTERVAL" default:"5m"`
	PaymentTimeout time.Duration `envconfig:"MECHA_SWEEPER_PAYMENT_TIMEOUT" default:"30m"`
	MetricsPort    string        `envconfig:"MECHA_SWEEPER_METRICS_PORT" default:"9091"`
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
