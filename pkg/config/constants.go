package config

const (
	EnvPrefix = "FOODMART"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "FOODMART_APP_ENV"
	EnvPort     = "FOODMART_APP_PORT"
	EnvLogLevel = "FOODMART_LOG_LEVEL"

	EnvDBDSN  = "FOODMART_DB_DSN"
	EnvDBHost = "FOODMART_DB_HOST"
	EnvDBUser = "FOODMART_DB_USER"
	EnvDBName = "FOODMART_DB_NAME"

	EnvRedisURL  = "FOODMART_REDIS_URL"
	EnvJWTSecret = "FOODMART_JWT_SECRET"

	EnvSettlementCommissionRate = "FOODMART_SETTLEMENT_COMMISSION_RATE"
	EnvSettlementTimezone       = "FOODMART_SETTLEMENT_TIMEZONE"
	EnvSettlementItemWindow     = "FOODMART_SETTLEMENT_ITEM_WINDOW"
	EnvSettlementNearingFrom    = "FOODMART_SETTLEMENT_NEARING_FROM"
	EnvSettlementWarningBands   = "FOODMART_SETTLEMENT_WARNING_BANDS"

	EnvCronPayoutAt       = "FOODMART_CRON_PAYOUT_AT"
	EnvCronExpiryInterval = "FOODMART_CRON_EXPIRY_INTERVAL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
