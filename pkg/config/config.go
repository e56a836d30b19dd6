package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	Settlement   SettlementConfig
	Cron         CronConfig
	ESewa        ESewaConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Settlement.validate(); err != nil {
		return nil, err
	}
	if cfg.App.IsProd() && !cfg.ESewa.Verify {
		return nil, fmt.Errorf("FOODMART_ESEWA_VERIFY_SIGNATURE cannot be disabled in %s", AppEnvProd)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FOODMART_APP_ENV" required:"true"`
	Port         string `envconfig:"FOODMART_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"FOODMART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FOODMART_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"FOODMART_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind          string `envconfig:"FOODMART_SERVICE_KIND" default:"api"`
	InternalToken string `envconfig:"FOODMART_INTERNAL_TOKEN"`
}

type DBConfig struct {
	DSN    string `envconfig:"FOODMART_DB_DSN"`
	Driver string `envconfig:"FOODMART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FOODMART_DB_HOST"`
	LegacyPort     int    `envconfig:"FOODMART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FOODMART_DB_USER"`
	LegacyPassword string `envconfig:"FOODMART_DB_PASSWORD"`
	LegacyName     string `envconfig:"FOODMART_DB_NAME"`
	LegacySSLMode  string `envconfig:"FOODMART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FOODMART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FOODMART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FOODMART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FOODMART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	LockTimeout     time.Duration `envconfig:"FOODMART_DB_LOCK_TIMEOUT" default:"5s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FOODMART_REDIS_URL"`
	Address      string        `envconfig:"FOODMART_REDIS_ADDR"`
	Password     string        `envconfig:"FOODMART_REDIS_PASSWORD"`
	DB           int           `envconfig:"FOODMART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FOODMART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FOODMART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FOODMART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FOODMART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FOODMART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"FOODMART_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FOODMART_JWT_ISSUER" default:"foodmart"`
	ExpirationMinutes int    `envconfig:"FOODMART_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"FOODMART_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"FOODMART_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"FOODMART_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FOODMART_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"FOODMART_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FOODMART_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	SettlementTopic          string `envconfig:"FOODMART_PUBSUB_SETTLEMENT_TOPIC" default:"fm-settlement-events"`
	NotificationTopic        string `envconfig:"FOODMART_PUBSUB_NOTIFICATION_TOPIC" default:"fm-notification-events"`
	NotificationSubscription string `envconfig:"FOODMART_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"fm-notification-worker"`
	AnalyticsSubscription    string `envconfig:"FOODMART_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"fm-analytics-worker"`
}

type BigQueryConfig struct {
	Dataset         string `envconfig:"FOODMART_BIGQUERY_DATASET" default:"foodmart"`
	SettlementTable string `envconfig:"FOODMART_BIGQUERY_SETTLEMENT_TABLE" default:"settlement_facts"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"FOODMART_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"FOODMART_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"FOODMART_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// SettlementConfig holds the money and time rules shared by the settlement pipeline.
type SettlementConfig struct {
	CommissionRate string        `envconfig:"FOODMART_SETTLEMENT_COMMISSION_RATE" default:"0.15"`
	Timezone       string        `envconfig:"FOODMART_SETTLEMENT_TIMEZONE" default:"Asia/Kathmandu"`
	ItemWindow     time.Duration `envconfig:"FOODMART_SETTLEMENT_ITEM_WINDOW" default:"4m"`
	NearingFrom    time.Duration `envconfig:"FOODMART_SETTLEMENT_NEARING_FROM" default:"2m"`
	// WarningBands is a comma separated list of start offsets; each band ends at the next start
	// or at ItemWindow for the last one.
	WarningBands []time.Duration `envconfig:"FOODMART_SETTLEMENT_WARNING_BANDS" default:"2m,3m"`
}

type CronConfig struct {
	ExpiryInterval   time.Duration `envconfig:"FOODMART_CRON_EXPIRY_INTERVAL" default:"3m"`
	PayoutAt         string        `envconfig:"FOODMART_CRON_PAYOUT_AT" default:"03:30"`
	TickInterval     time.Duration `envconfig:"FOODMART_CRON_TICK_INTERVAL" default:"30s"`
	LockTTL          time.Duration `envconfig:"FOODMART_CRON_LOCK_TTL" default:"10m"`
	RetryMaxAttempts int           `envconfig:"FOODMART_CRON_RETRY_MAX_ATTEMPTS" default:"3"`
	RetryBaseDelay   time.Duration `envconfig:"FOODMART_CRON_RETRY_BASE_DELAY" default:"10m"`
}

type ESewaConfig struct {
	SecretKey   string `envconfig:"FOODMART_ESEWA_SECRET_KEY"`
	ProductCode string `envconfig:"FOODMART_ESEWA_PRODUCT_CODE" default:"EPAYTEST"`
	FormURL     string `envconfig:"FOODMART_ESEWA_FORM_URL" default:"https://rc-epay.esewa.com.np/api/epay/main/v2/form"`
	Verify      bool   `envconfig:"FOODMART_ESEWA_VERIFY_SIGNATURE" default:"true"`
}

func (s SettlementConfig) validate() error {
	if s.ItemWindow <= 0 {
		return fmt.Errorf("%s must be positive", EnvSettlementItemWindow)
	}
	if s.NearingFrom < 0 || s.NearingFrom >= s.ItemWindow {
		return fmt.Errorf("%s must fall inside the item window", EnvSettlementNearingFrom)
	}
	prev := time.Duration(-1)
	for _, start := range s.WarningBands {
		if start <= prev || start >= s.ItemWindow {
			return fmt.Errorf("%s must be ascending and below the item window", EnvSettlementWarningBands)
		}
		prev = start
	}
	return nil
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
