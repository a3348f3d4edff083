package config

const EnvPrefix = "GUILDSCORE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	DefaultSQLiteDSN = "file:data/guildscore.db?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"
)

const (
	EnvAppEnv   = "GUILDSCORE_APP_ENV"
	EnvPort     = "GUILDSCORE_APP_PORT"
	EnvLogLevel = "GUILDSCORE_LOG_LEVEL"

	EnvDBDSN     = "GUILDSCORE_DB_DSN"
	EnvDBDriver  = "GUILDSCORE_DB_DRIVER"
	EnvDBHost    = "GUILDSCORE_DB_HOST"
	EnvDBUser    = "GUILDSCORE_DB_USER"
	EnvDBName    = "GUILDSCORE_DB_NAME"
	EnvDBTimeout = "GUILDSCORE_DB_OPERATION_TIMEOUT"

	EnvRedisURL = "GUILDSCORE_REDIS_URL"

	EnvMessageAward    = "GUILDSCORE_MESSAGE_AWARD"
	EnvMessageCooldown = "GUILDSCORE_MESSAGE_COOLDOWN"
	EnvEventRateLimit  = "GUILDSCORE_EVENT_RATE_LIMIT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
