package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "development"
	AppEnvProd = "production"
)

type Config struct {
	App            AppConfig
	DB             DBConfig
	Redis          RedisConfig
	GCP            GCPConfig
	PubSub         PubSubConfig
	Outbox         OutboxConfig
	PrimaryLedger  PrimaryLedgerConfig
	Sync           SyncConfig
	Reconciliation ReconciliationConfig
	Drift          DriftConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LEDGERMIRROR_APP_ENV" required:"true"`
	Port         string `envconfig:"LEDGERMIRROR_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"LEDGERMIRROR_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LEDGERMIRROR_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"LEDGERMIRROR_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"LEDGERMIRROR_DB_DSN" required:"true"`

	MaxOpenConns    int           `envconfig:"LEDGERMIRROR_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LEDGERMIRROR_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LEDGERMIRROR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LEDGERMIRROR_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LEDGERMIRROR_REDIS_URL"`
	Address      string        `envconfig:"LEDGERMIRROR_REDIS_ADDR"`
	Password     string        `envconfig:"LEDGERMIRROR_REDIS_PASSWORD"`
	DB           int           `envconfig:"LEDGERMIRROR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LEDGERMIRROR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LEDGERMIRROR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LEDGERMIRROR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LEDGERMIRROR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LEDGERMIRROR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"LEDGERMIRROR_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	JournalTopic        string `envconfig:"LEDGERMIRROR_PUBSUB_JOURNAL_TOPIC" default:"journal-entries"`
	JournalSubscription string `envconfig:"LEDGERMIRROR_PUBSUB_JOURNAL_SUBSCRIPTION" default:"journal-entries-reconciliation"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"LEDGERMIRROR_OUTBOX_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"LEDGERMIRROR_OUTBOX_POLL_INTERVAL_MS" default:"500"`
	MaxAttempts    int `envconfig:"LEDGERMIRROR_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type PrimaryLedgerConfig struct {
	BaseURL        string        `envconfig:"LEDGERMIRROR_PRIMARY_BASE_URL"`
	Brokers        []string      `envconfig:"LEDGERMIRROR_PRIMARY_BROKERS"`
	TransfersTopic string        `envconfig:"LEDGERMIRROR_PRIMARY_TRANSFERS_TOPIC" default:"transfers"`
	RequestTimeout time.Duration `envconfig:"LEDGERMIRROR_PRIMARY_REQUEST_TIMEOUT" default:"10s"`
	MaxRetries     int           `envconfig:"LEDGERMIRROR_PRIMARY_MAX_RETRIES" default:"5"`
	RetryBaseDelay time.Duration `envconfig:"LEDGERMIRROR_PRIMARY_RETRY_BASE_DELAY" default:"250ms"`
	RetryMaxDelay  time.Duration `envconfig:"LEDGERMIRROR_PRIMARY_RETRY_MAX_DELAY" default:"5s"`
}

type SyncConfig struct {
	Partitions     int           `envconfig:"LEDGERMIRROR_SYNC_PARTITIONS" default:"4"`
	RetryBaseDelay time.Duration `envconfig:"LEDGERMIRROR_SYNC_RETRY_BASE_DELAY" default:"500ms"`
	RetryMaxDelay  time.Duration `envconfig:"LEDGERMIRROR_SYNC_RETRY_MAX_DELAY" default:"30s"`
	MaxAttempts    int           `envconfig:"LEDGERMIRROR_SYNC_MAX_ATTEMPTS" default:"10"`
}

type ReconciliationConfig struct {
	RetryBatchSize int           `envconfig:"LEDGERMIRROR_RECON_RETRY_BATCH_SIZE" default:"100"`
	IdempotencyTTL time.Duration `envconfig:"LEDGERMIRROR_RECON_IDEMPOTENCY_TTL" default:"720h"`
	CronInterval   time.Duration `envconfig:"LEDGERMIRROR_RECON_CRON_INTERVAL" default:"5m"`
	CronLockTTL    time.Duration `envconfig:"LEDGERMIRROR_RECON_CRON_LOCK_TTL" default:"10m"`
}

type DriftConfig struct {
	SampleSize int `envconfig:"LEDGERMIRROR_DRIFT_SAMPLE_SIZE" default:"25"`
}
