package config

// EnvPrefix namespaces every variable read by envconfig.
const EnvPrefix = "TIRESTORE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv              = "TIRESTORE_APP_ENV"
	EnvPort                = "TIRESTORE_APP_PORT"
	EnvDBDSN               = "TIRESTORE_DB_DSN"
	EnvDBHost              = "TIRESTORE_DB_HOST"
	EnvDBUser              = "TIRESTORE_DB_USER"
	EnvDBName              = "TIRESTORE_DB_NAME"
	EnvRedisURL            = "TIRESTORE_REDIS_URL"
	EnvJWTSecret           = "TIRESTORE_JWT_SECRET"
	EnvGCSBucket           = "TIRESTORE_GCS_BUCKET_NAME"
	EnvSheetsSpreadsheetID = "TIRESTORE_SHEETS_SPREADSHEET_ID"
	EnvLedgerEnabled       = "TIRESTORE_FEATURE_LEDGER_ENABLED"
	EnvOrdersPaymentWindow = "TIRESTORE_ORDERS_PAYMENT_WINDOW"
	EnvOrdersSlipMaxBytes  = "TIRESTORE_ORDERS_SLIP_MAX_BYTES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
