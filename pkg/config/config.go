package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "LPI"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv      = "LPI_APP_ENV"
	EnvPort        = "LPI_APP_PORT"
	EnvDBDSN       = "LPI_DB_DSN"
	EnvDBHost      = "LPI_DB_HOST"
	EnvDBUser      = "LPI_DB_USER"
	EnvDBName      = "LPI_DB_NAME"
	EnvRedisURL    = "LPI_REDIS_URL"
	EnvJWTSecret   = "LPI_JWT_SECRET"
	EnvJWTIssuer   = "LPI_JWT_ISSUER"
	EnvGCPProject  = "LPI_GCP_PROJECT_ID"
	EnvPriceSub    = "LPI_PUBSUB_PRICE_EVENTS_SUBSCRIPTION"
	EnvPricesTopic = "LPI_PUBSUB_LISTING_PRICES_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

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
	Indexer      IndexerConfig
	Cron         CronConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LPI_APP_ENV" required:"true"`
	Port         string `envconfig:"LPI_APP_PORT" default:"8080"`
	MetricsPort  string `envconfig:"LPI_METRICS_PORT" default:"9090"`
	LogLevel     string `envconfig:"LPI_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"LPI_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"LPI_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LPI_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LPI_DB_DSN"`
	Driver string `envconfig:"LPI_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LPI_DB_HOST"`
	LegacyPort     int    `envconfig:"LPI_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LPI_DB_USER"`
	LegacyPassword string `envconfig:"LPI_DB_PASSWORD"`
	LegacyName     string `envconfig:"LPI_DB_NAME"`
	LegacySSLMode  string `envconfig:"LPI_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"LPI_DB_SQLITE_PATH" default:"listing_prices.db"`

	MaxOpenConns    int           `envconfig:"LPI_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LPI_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LPI_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LPI_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"LPI_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LPI_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LPI_REDIS_ADDR"`
	Password     string        `envconfig:"LPI_REDIS_PASSWORD"`
	DB           int           `envconfig:"LPI_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LPI_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LPI_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LPI_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LPI_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LPI_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies the service tokens presented to the admin API.
type JWTConfig struct {
	Secret            string `envconfig:"LPI_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LPI_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"LPI_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LPI_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LPI_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"LPI_EVENTING_IDEMPOTENCY_TTL" default:"72h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"LPI_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"LPI_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"LPI_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	PriceEventsSubscription string `envconfig:"LPI_PUBSUB_PRICE_EVENTS_SUBSCRIPTION"`
	ListingPricesTopic      string `envconfig:"LPI_PUBSUB_LISTING_PRICES_TOPIC" default:"listing-prices-updated"`
	MaxOutstandingMessages  int    `envconfig:"LPI_PUBSUB_MAX_OUTSTANDING" default:"10"`
}

type BigQueryConfig struct {
	Enabled     bool   `envconfig:"LPI_BIGQUERY_ENABLED" default:"false"`
	Dataset     string `envconfig:"LPI_BIGQUERY_DATASET" default:"listing_prices"`
	UpdateTable string `envconfig:"LPI_BIGQUERY_UPDATE_TABLE" default:"listing_price_updates"`
	AutoCreate  bool   `envconfig:"LPI_BIGQUERY_AUTO_CREATE" default:"false"`
}

// IndexerConfig tunes the listing price indexer.
type IndexerConfig struct {
	MaxBatchSize int           `envconfig:"LPI_INDEXER_MAX_BATCH_SIZE" default:"500"`
	ClearEmpty   bool          `envconfig:"LPI_INDEXER_CLEAR_EMPTY" default:"false"`
	CacheTTL     time.Duration `envconfig:"LPI_INDEXER_CACHE_TTL" default:"15m"`
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"LPI_CRON_INTERVAL" default:"6h"`
	LockKey         string        `envconfig:"LPI_CRON_LOCK_KEY" default:"lpi:cron:lock"`
	LockTTL         time.Duration `envconfig:"LPI_CRON_LOCK_TTL" default:"1h"`
	ReindexPageSize int           `envconfig:"LPI_CRON_REINDEX_PAGE_SIZE" default:"200"`
	OutboxRetention time.Duration `envconfig:"LPI_CRON_OUTBOX_RETENTION" default:"168h"`

	// OutboxDeadRetention keeps rows that exhausted their attempts around longer for inspection.
	OutboxDeadRetention time.Duration `envconfig:"LPI_CRON_OUTBOX_DEAD_RETENTION" default:"720h"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"LPI_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"LPI_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"LPI_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// IsSQLite reports whether the embedded sqlite driver is selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), "sqlite")
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = "sqlite"
	}
	if db.IsSQLite() {
		if db.DSN == "" {
			db.DSN = db.SQLitePath
		}
		return nil
	}
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
