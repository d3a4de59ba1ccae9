package config

const (
	EnvPrefix = "RENTCHAIN"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "RENTCHAIN_APP_ENV"
	EnvPort     = "RENTCHAIN_APP_PORT"
	EnvLogLevel = "RENTCHAIN_LOG_LEVEL"

	EnvDBDSN  = "RENTCHAIN_DB_DSN"
	EnvDBHost = "RENTCHAIN_DB_HOST"
	EnvDBUser = "RENTCHAIN_DB_USER"
	EnvDBName = "RENTCHAIN_DB_NAME"

	EnvUseSQLite = "RENTCHAIN_USE_SQLITE"
	EnvRedisURL  = "RENTCHAIN_REDIS_URL"
	EnvJWTSecret = "RENTCHAIN_JWT_SECRET"

	EnvLedgerRPCURL     = "RENTCHAIN_LEDGER_RPC_URL"
	EnvLedgerContract   = "RENTCHAIN_LEDGER_CONTRACT_ADDRESS"
	EnvLedgerPrivateKey = "RENTCHAIN_LEDGER_PRIVATE_KEY"
	EnvLedgerChainID    = "RENTCHAIN_LEDGER_CHAIN_ID"
	EnvLedgerTimeout    = "RENTCHAIN_LEDGER_CALL_TIMEOUT"

	EnvGCSBucket  = "RENTCHAIN_GCS_BUCKET_NAME"
	EnvGCSTimeout = "RENTCHAIN_GCS_TIMEOUT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
