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
	Engine       EngineConfig
	Cron         CronConfig
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
	Env          string `envconfig:"CHITCIRCLE_APP_ENV" required:"true"`
	Port         string `envconfig:"CHITCIRCLE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CHITCIRCLE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CHITCIRCLE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CHITCIRCLE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CHITCIRCLE_DB_DSN"`
	Driver string `envconfig:"CHITCIRCLE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CHITCIRCLE_DB_HOST"`
	LegacyPort     int    `envconfig:"CHITCIRCLE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CHITCIRCLE_DB_USER"`
	LegacyPassword string `envconfig:"CHITCIRCLE_DB_PASSWORD"`
	LegacyName     string `envconfig:"CHITCIRCLE_DB_NAME"`
	LegacySSLMode  string `envconfig:"CHITCIRCLE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CHITCIRCLE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CHITCIRCLE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CHITCIRCLE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CHITCIRCLE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CHITCIRCLE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CHITCIRCLE_REDIS_ADDR"`
	Password     string        `envconfig:"CHITCIRCLE_REDIS_PASSWORD"`
	DB           int           `envconfig:"CHITCIRCLE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CHITCIRCLE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CHITCIRCLE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CHITCIRCLE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CHITCIRCLE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CHITCIRCLE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CHITCIRCLE_JWT_SECRET"`
	Issuer            string `envconfig:"CHITCIRCLE_JWT_ISSUER" default:"chitcircle"`
	ExpirationMinutes int    `envconfig:"CHITCIRCLE_JWT_EXPIRATION_MINUTES" default:"60"`
}

// EngineConfig tunes lifecycle-engine defaults not stored per group.
type EngineConfig struct {
	DefaultQuorumPercent int `envconfig:"CHITCIRCLE_ENGINE_DEFAULT_QUORUM_PERCENT" default:"100"`
	// OverdueCycleGraceDays is how long past a cycle's end date the overdue
	// sweep waits before force-completing it.
	OverdueCycleGraceDays int `envconfig:"CHITCIRCLE_ENGINE_OVERDUE_CYCLE_GRACE_DAYS" default:"7"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"CHITCIRCLE_CRON_INTERVAL" default:"24h"`
	LockKey  string        `envconfig:"CHITCIRCLE_CRON_LOCK_KEY" default:"chitcircle:cron:lock"`
	LockTTL  time.Duration `envconfig:"CHITCIRCLE_CRON_LOCK_TTL" default:"25h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CHITCIRCLE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CHITCIRCLE_AUTO_MIGRATE" default:"false"`
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
