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
	DB           DBConfig
	Redis        RedisConfig
	Activity     ActivityConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"GUILDSCORE_APP_ENV" required:"true"`
	Port         string `envconfig:"GUILDSCORE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"GUILDSCORE_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"GUILDSCORE_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"GUILDSCORE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"GUILDSCORE_DB_DSN"`
	Driver string `envconfig:"GUILDSCORE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GUILDSCORE_DB_HOST"`
	LegacyPort     int    `envconfig:"GUILDSCORE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GUILDSCORE_DB_USER"`
	LegacyPassword string `envconfig:"GUILDSCORE_DB_PASSWORD"`
	LegacyName     string `envconfig:"GUILDSCORE_DB_NAME"`
	LegacySSLMode  string `envconfig:"GUILDSCORE_DB_SSLMODE" default:"disable"`

	MaxOpenConns     int           `envconfig:"GUILDSCORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns     int           `envconfig:"GUILDSCORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime  time.Duration `envconfig:"GUILDSCORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime  time.Duration `envconfig:"GUILDSCORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	OperationTimeout time.Duration `envconfig:"GUILDSCORE_DB_OPERATION_TIMEOUT" default:"5s"`
}

// IsSQLite reports whether the configured driver is the embedded SQLite backend.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DriverSQLite)
}

// RedisConfig is optional. Leaving both URL and Address empty disables the
// Redis-backed features (message cooldowns).
type RedisConfig struct {
	URL          string        `envconfig:"GUILDSCORE_REDIS_URL"`
	Address      string        `envconfig:"GUILDSCORE_REDIS_ADDR"`
	Password     string        `envconfig:"GUILDSCORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"GUILDSCORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GUILDSCORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GUILDSCORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GUILDSCORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GUILDSCORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GUILDSCORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type ActivityConfig struct {
	MessageAward    int64         `envconfig:"GUILDSCORE_MESSAGE_AWARD" default:"30"`
	MessageCooldown time.Duration `envconfig:"GUILDSCORE_MESSAGE_COOLDOWN" default:"0s"`
	SyncConcurrency int           `envconfig:"GUILDSCORE_SYNC_CONCURRENCY" default:"8"`

	// Per-guild cap on event ingestion requests. Zero disables it; needs Redis.
	EventRateLimit  int           `envconfig:"GUILDSCORE_EVENT_RATE_LIMIT" default:"0"`
	EventRateWindow time.Duration `envconfig:"GUILDSCORE_EVENT_RATE_WINDOW" default:"1m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"GUILDSCORE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = DefaultSQLiteDSN
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
