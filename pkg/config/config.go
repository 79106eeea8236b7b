package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	GCP           GCPConfig
	GCS           GCSConfig
	Sheets        SheetsConfig
	PubSub        PubSubConfig
	Orders        OrdersConfig
	Cart          CartConfig
	Scheduler     SchedulerConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.FeatureFlags.LedgerEnabled && strings.TrimSpace(c.Sheets.SpreadsheetID) == "" {
		return fmt.Errorf("%s is required when the ledger is enabled", EnvSheetsSpreadsheetID)
	}
	if c.Orders.PaymentWindow <= 0 {
		return fmt.Errorf("%s must be positive", EnvOrdersPaymentWindow)
	}
	if c.Orders.SlipMaxBytes <= 0 {
		return fmt.Errorf("%s must be positive", EnvOrdersSlipMaxBytes)
	}
	return nil
}

type AppConfig struct {
	Env          string   `envconfig:"TIRESTORE_APP_ENV" required:"true"`
	Port         string   `envconfig:"TIRESTORE_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"TIRESTORE_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"TIRESTORE_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"TIRESTORE_CORS_ORIGINS" default:"http://localhost:3000"`
	AdminEmail   string   `envconfig:"TIRESTORE_ADMIN_EMAIL"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"TIRESTORE_DB_DSN"`

	LegacyHost     string `envconfig:"TIRESTORE_DB_HOST"`
	LegacyPort     int    `envconfig:"TIRESTORE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TIRESTORE_DB_USER"`
	LegacyPassword string `envconfig:"TIRESTORE_DB_PASSWORD"`
	LegacyName     string `envconfig:"TIRESTORE_DB_NAME"`
	LegacySSLMode  string `envconfig:"TIRESTORE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TIRESTORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TIRESTORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TIRESTORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TIRESTORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery logs statements slower than this at warn level; 0 disables.
	SlowQuery time.Duration `envconfig:"TIRESTORE_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TIRESTORE_REDIS_URL"`
	Address      string        `envconfig:"TIRESTORE_REDIS_ADDR" default:"localhost:6379"`
	Password     string        `envconfig:"TIRESTORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"TIRESTORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TIRESTORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TIRESTORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TIRESTORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TIRESTORE_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"TIRESTORE_REDIS_WRITE_TIMEOUT" default:"3s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"TIRESTORE_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"TIRESTORE_JWT_ISSUER" default:"tirestore"`
	ExpirationMinutes      int    `envconfig:"TIRESTORE_JWT_EXPIRATION_MINUTES" default:"30"`
	RefreshTokenTTLMinutes int    `envconfig:"TIRESTORE_REFRESH_TOKEN_TTL_MINUTES" default:"20160"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"TIRESTORE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"TIRESTORE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"TIRESTORE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"TIRESTORE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"TIRESTORE_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"TIRESTORE_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"TIRESTORE_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"TIRESTORE_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"TIRESTORE_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"TIRESTORE_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"TIRESTORE_RATE_LIMIT_REGISTER_IP_LIMIT" default:"10"`
	TrackWindow        time.Duration `envconfig:"TIRESTORE_RATE_LIMIT_TRACK_WINDOW" default:"1m"`
	TrackIPLimit       int           `envconfig:"TIRESTORE_RATE_LIMIT_TRACK_IP_LIMIT" default:"30"`
}

type FeatureFlagsConfig struct {
	AutoMigrate   bool `envconfig:"TIRESTORE_AUTO_MIGRATE" default:"false"`
	LedgerEnabled bool `envconfig:"TIRESTORE_FEATURE_LEDGER_ENABLED" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TIRESTORE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"TIRESTORE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TIRESTORE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName string `envconfig:"TIRESTORE_GCS_BUCKET_NAME" required:"true"`
	SlipPrefix string `envconfig:"TIRESTORE_GCS_SLIP_PREFIX" default:"payment-slips"`
}

type SheetsConfig struct {
	SpreadsheetID string `envconfig:"TIRESTORE_SHEETS_SPREADSHEET_ID"`
	LedgerRange   string `envconfig:"TIRESTORE_SHEETS_LEDGER_RANGE" default:"Ledger!A:H"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"TIRESTORE_PUBSUB_ORDERS_TOPIC"`
}

type OrdersConfig struct {
	PaymentWindow time.Duration `envconfig:"TIRESTORE_ORDERS_PAYMENT_WINDOW" default:"24h"`
	SlipMaxBytes  int64         `envconfig:"TIRESTORE_ORDERS_SLIP_MAX_BYTES" default:"5242880"`
	CheckoutLock  time.Duration `envconfig:"TIRESTORE_ORDERS_CHECKOUT_LOCK_TTL" default:"30s"`
}

type CartConfig struct {
	AnonTTL time.Duration `envconfig:"TIRESTORE_CART_ANON_TTL" default:"168h"`
}

// SchedulerConfig drives the background order expiry worker.
type SchedulerConfig struct {
	Interval time.Duration `envconfig:"TIRESTORE_SCHEDULER_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"TIRESTORE_SCHEDULER_LOCK_TTL" default:"4m"`
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
