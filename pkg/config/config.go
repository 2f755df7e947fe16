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
	Crowd        CrowdConfig
	PickTasks    PickTaskConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
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
	Env          string `envconfig:"FRESHROUTE_APP_ENV" required:"true"`
	Port         string `envconfig:"FRESHROUTE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FRESHROUTE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FRESHROUTE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"FRESHROUTE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FRESHROUTE_DB_DSN"`
	Driver string `envconfig:"FRESHROUTE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FRESHROUTE_DB_HOST"`
	LegacyPort     int    `envconfig:"FRESHROUTE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FRESHROUTE_DB_USER"`
	LegacyPassword string `envconfig:"FRESHROUTE_DB_PASSWORD"`
	LegacyName     string `envconfig:"FRESHROUTE_DB_NAME"`
	LegacySSLMode  string `envconfig:"FRESHROUTE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FRESHROUTE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FRESHROUTE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FRESHROUTE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FRESHROUTE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FRESHROUTE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FRESHROUTE_REDIS_ADDR"`
	Password     string        `envconfig:"FRESHROUTE_REDIS_PASSWORD"`
	DB           int           `envconfig:"FRESHROUTE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FRESHROUTE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FRESHROUTE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FRESHROUTE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FRESHROUTE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FRESHROUTE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// CrowdConfig tunes the shelf crowd-scoring heuristics.
type CrowdConfig struct {
	DefaultThreshold float64       `envconfig:"FRESHROUTE_CROWD_DEFAULT_THRESHOLD" default:"2.0"`
	NonCrowdedLimit  int           `envconfig:"FRESHROUTE_CROWD_NON_CROWDED_LIMIT" default:"10"`
	ScoreCacheTTL    time.Duration `envconfig:"FRESHROUTE_CROWD_SCORE_CACHE_TTL" default:"30s"`
}

// PickTaskConfig tunes pick-task lifecycle maintenance.
type PickTaskConfig struct {
	PendingTTL time.Duration `envconfig:"FRESHROUTE_PICK_TASK_PENDING_TTL" default:"48h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FRESHROUTE_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FRESHROUTE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"FRESHROUTE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FRESHROUTE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"FRESHROUTE_PUBSUB_DOMAIN_TOPIC" default:"fr-domain-events"`
	DomainSubscription string `envconfig:"FRESHROUTE_PUBSUB_DOMAIN_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"FRESHROUTE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"FRESHROUTE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"FRESHROUTE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"FRESHROUTE_OUTBOX_RETENTION_DAYS" default:"30"`
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
