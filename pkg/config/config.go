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
	Ledger       LedgerConfig
	Rentals      RentalsConfig
	Cron         CronConfig
	Idempotency  IdempotencyConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Rentals.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"EQUIPLEDGER_APP_ENV" required:"true"`
	Port         string `envconfig:"EQUIPLEDGER_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"EQUIPLEDGER_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"EQUIPLEDGER_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"EQUIPLEDGER_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"EQUIPLEDGER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"EQUIPLEDGER_DB_DSN"`
	Driver string `envconfig:"EQUIPLEDGER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"EQUIPLEDGER_DB_HOST"`
	LegacyPort     int    `envconfig:"EQUIPLEDGER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"EQUIPLEDGER_DB_USER"`
	LegacyPassword string `envconfig:"EQUIPLEDGER_DB_PASSWORD"`
	LegacyName     string `envconfig:"EQUIPLEDGER_DB_NAME"`
	LegacySSLMode  string `envconfig:"EQUIPLEDGER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"EQUIPLEDGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"EQUIPLEDGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"EQUIPLEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"EQUIPLEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"EQUIPLEDGER_REDIS_URL" required:"true"`
	Address      string        `envconfig:"EQUIPLEDGER_REDIS_ADDR"`
	Password     string        `envconfig:"EQUIPLEDGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"EQUIPLEDGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"EQUIPLEDGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"EQUIPLEDGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"EQUIPLEDGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"EQUIPLEDGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"EQUIPLEDGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// LedgerConfig tunes the locked write path shared by custody, rentals and signatures.
type LedgerConfig struct {
	LockTimeout         time.Duration `envconfig:"EQUIPLEDGER_LEDGER_LOCK_TIMEOUT" default:"5s"`
	TxRetries           int           `envconfig:"EQUIPLEDGER_LEDGER_TX_RETRIES" default:"1"`
	EnforceReturnHolder bool          `envconfig:"EQUIPLEDGER_LEDGER_ENFORCE_RETURN_HOLDER" default:"false"`
}

type RentalsConfig struct {
	OccupancyRule string `envconfig:"EQUIPLEDGER_RENTAL_OCCUPANCY_RULE" default:"as_of_start"`
}

func (r RentalsConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(r.OccupancyRule)) {
	case OccupancyRuleAsOfStart, OccupancyRuleInterval:
		return nil
	default:
		return fmt.Errorf("%s must be one of %s, %s", EnvRentalOccupancyRule, OccupancyRuleAsOfStart, OccupancyRuleInterval)
	}
}

// UseInterval reports whether rental creation checks full date-range intersection.
func (r RentalsConfig) UseInterval() bool {
	return strings.EqualFold(strings.TrimSpace(r.OccupancyRule), OccupancyRuleInterval)
}

type CronConfig struct {
	Interval time.Duration `envconfig:"EQUIPLEDGER_CRON_INTERVAL" default:"1h"`
	LockKey  string        `envconfig:"EQUIPLEDGER_CRON_LOCK_KEY" default:"cron:reconcile:lock"`
	LockTTL  time.Duration `envconfig:"EQUIPLEDGER_CRON_LOCK_TTL" default:"10m"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"EQUIPLEDGER_IDEMPOTENCY_TTL" default:"24h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"EQUIPLEDGER_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"EQUIPLEDGER_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"EQUIPLEDGER_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"EQUIPLEDGER_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"EQUIPLEDGER_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"EQUIPLEDGER_PUBSUB_NOTIFICATION_TOPIC"`
	OrderedDelivery   bool   `envconfig:"EQUIPLEDGER_PUBSUB_ORDERED_DELIVERY" default:"true"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DBDriverSQLite
		if db.DSN == "" {
			db.DSN = "file:equipledger.db?cache=shared"
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
