package config

const EnvPrefix = "EQUIPLEDGER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	OccupancyRuleAsOfStart = "as_of_start"
	OccupancyRuleInterval  = "interval"
)

const (
	EnvAppEnv   = "EQUIPLEDGER_APP_ENV"
	EnvPort     = "EQUIPLEDGER_APP_PORT"
	EnvLogLevel = "EQUIPLEDGER_LOG_LEVEL"

	EnvDBDSN  = "EQUIPLEDGER_DB_DSN"
	EnvDBHost = "EQUIPLEDGER_DB_HOST"
	EnvDBUser = "EQUIPLEDGER_DB_USER"
	EnvDBName = "EQUIPLEDGER_DB_NAME"

	EnvRedisURL = "EQUIPLEDGER_REDIS_URL"

	EnvLedgerLockTimeout         = "EQUIPLEDGER_LEDGER_LOCK_TIMEOUT"
	EnvLedgerTxRetries           = "EQUIPLEDGER_LEDGER_TX_RETRIES"
	EnvLedgerEnforceReturnHolder = "EQUIPLEDGER_LEDGER_ENFORCE_RETURN_HOLDER"
	EnvRentalOccupancyRule       = "EQUIPLEDGER_RENTAL_OCCUPANCY_RULE"

	EnvCronInterval = "EQUIPLEDGER_CRON_INTERVAL"

	EnvUseSQLite   = "EQUIPLEDGER_USE_SQLITE"
	EnvAutoMigrate = "EQUIPLEDGER_AUTO_MIGRATE"

	EnvGCPProjectID            = "EQUIPLEDGER_GCP_PROJECT_ID"
	EnvPubSubNotificationTopic = "EQUIPLEDGER_PUBSUB_NOTIFICATION_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
