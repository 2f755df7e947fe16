package config

// EnvPrefix is passed to envconfig; individual keys carry the full name so
// the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "FRESHROUTE_APP_ENV"
	EnvPort     = "FRESHROUTE_APP_PORT"
	EnvDBDSN    = "FRESHROUTE_DB_DSN"
	EnvDBHost   = "FRESHROUTE_DB_HOST"
	EnvDBUser   = "FRESHROUTE_DB_USER"
	EnvDBName   = "FRESHROUTE_DB_NAME"
	EnvRedisURL = "FRESHROUTE_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
