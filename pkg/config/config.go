package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	HTTP         HTTPConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Ledger       LedgerConfig
	GCP          GCPConfig
	GCS          GCSConfig
	PubSub       PubSubConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if !cfg.FeatureFlags.UseSQLite {
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	if err := cfg.Ledger.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"RENTCHAIN_APP_ENV" required:"true"`
	Port         string `envconfig:"RENTCHAIN_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"RENTCHAIN_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RENTCHAIN_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

// HTTPConfig tunes the API surface.
type HTTPConfig struct {
	CORSOrigins       []string      `envconfig:"RENTCHAIN_CORS_ORIGINS" default:"http://localhost:3000"`
	LedgerWriteLimit  int           `envconfig:"RENTCHAIN_LEDGER_WRITE_LIMIT" default:"20"`
	LedgerWriteWindow time.Duration `envconfig:"RENTCHAIN_LEDGER_WRITE_WINDOW" default:"1m"`
	ReadHeaderTimeout time.Duration `envconfig:"RENTCHAIN_HTTP_READ_HEADER_TIMEOUT" default:"10s"`
	ShutdownTimeout   time.Duration `envconfig:"RENTCHAIN_HTTP_SHUTDOWN_TIMEOUT" default:"30s"`
}

type ServiceConfig struct {
	Kind string `envconfig:"RENTCHAIN_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"RENTCHAIN_DB_DSN"`
	Driver string `envconfig:"RENTCHAIN_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"RENTCHAIN_DB_HOST"`
	LegacyPort     int    `envconfig:"RENTCHAIN_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"RENTCHAIN_DB_USER"`
	LegacyPassword string `envconfig:"RENTCHAIN_DB_PASSWORD"`
	LegacyName     string `envconfig:"RENTCHAIN_DB_NAME"`
	LegacySSLMode  string `envconfig:"RENTCHAIN_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RENTCHAIN_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RENTCHAIN_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RENTCHAIN_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RENTCHAIN_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RENTCHAIN_REDIS_URL"`
	Address      string        `envconfig:"RENTCHAIN_REDIS_ADDR"`
	Password     string        `envconfig:"RENTCHAIN_REDIS_PASSWORD"`
	DB           int           `envconfig:"RENTCHAIN_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RENTCHAIN_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RENTCHAIN_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RENTCHAIN_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RENTCHAIN_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RENTCHAIN_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Configured reports whether a Redis endpoint was supplied. Without one the API runs with
// idempotency and rate limiting disabled.
func (r RedisConfig) Configured() bool {
	return r.URL != "" || r.Address != ""
}

// JWTConfig only carries verification settings; tokens are issued by the auth service.
type JWTConfig struct {
	Secret string `envconfig:"RENTCHAIN_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"RENTCHAIN_JWT_ISSUER"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool   `envconfig:"RENTCHAIN_USE_SQLITE" default:"false"`
	SQLitePath  string `envconfig:"RENTCHAIN_SQLITE_PATH" default:"rentchain.db"`
	AutoMigrate bool   `envconfig:"RENTCHAIN_AUTO_MIGRATE" default:"false"`
}

// LedgerConfig points at the property registry contract.
type LedgerConfig struct {
	RPCURL          string        `envconfig:"RENTCHAIN_LEDGER_RPC_URL" required:"true"`
	ContractAddress string        `envconfig:"RENTCHAIN_LEDGER_CONTRACT_ADDRESS" required:"true"`
	PrivateKey      string        `envconfig:"RENTCHAIN_LEDGER_PRIVATE_KEY" required:"true"`
	ChainID         int64         `envconfig:"RENTCHAIN_LEDGER_CHAIN_ID" default:"1337"`
	GasPriceWei     int64         `envconfig:"RENTCHAIN_LEDGER_GAS_PRICE_WEI" default:"20000000000"`
	GasLimit        uint64        `envconfig:"RENTCHAIN_LEDGER_GAS_LIMIT" default:"6721975"`
	CallTimeout     time.Duration `envconfig:"RENTCHAIN_LEDGER_CALL_TIMEOUT" default:"45s"`
}

var (
	hexAddressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	hexKeyRe     = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{64}$`)
)

func (l LedgerConfig) validate() error {
	if !hexAddressRe.MatchString(l.ContractAddress) {
		return fmt.Errorf("%s must be a 0x-prefixed 20 byte hex address", EnvLedgerContract)
	}
	if !hexKeyRe.MatchString(l.PrivateKey) {
		return fmt.Errorf("%s must be a 32 byte hex key", EnvLedgerPrivateKey)
	}
	if l.ChainID <= 0 {
		return fmt.Errorf("%s must be positive", EnvLedgerChainID)
	}
	return nil
}

type GCPConfig struct {
	ProjectID              string `envconfig:"RENTCHAIN_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"RENTCHAIN_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"RENTCHAIN_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName    string        `envconfig:"RENTCHAIN_GCS_BUCKET_NAME" required:"true"`
	PublicBaseURL string        `envconfig:"RENTCHAIN_GCS_PUBLIC_BASE_URL" default:"https://storage.googleapis.com"`
	Timeout       time.Duration `envconfig:"RENTCHAIN_GCS_TIMEOUT" default:"15s"`
	MaxUploadMB   int           `envconfig:"RENTCHAIN_MAX_UPLOAD_MB" default:"10"`
}

// MaxUploadBytes converts the configured megabyte limit.
func (g GCSConfig) MaxUploadBytes() int64 {
	if g.MaxUploadMB <= 0 {
		return 10 << 20
	}
	return int64(g.MaxUploadMB) << 20
}

type PubSubConfig struct {
	BlobDeletionSubscription string `envconfig:"RENTCHAIN_PUBSUB_BLOB_DELETION_SUBSCRIPTION"`
	PropertyEventsTopic      string `envconfig:"RENTCHAIN_PUBSUB_PROPERTY_EVENTS_TOPIC"`
}

type CronConfig struct {
	Interval         time.Duration `envconfig:"RENTCHAIN_CRON_INTERVAL" default:"10m"`
	LockTTL          time.Duration `envconfig:"RENTCHAIN_CRON_LOCK_TTL" default:"9m"`
	ReconcileBatch   int           `envconfig:"RENTCHAIN_RECONCILE_BATCH_SIZE" default:"100"`
	PendingGrace     time.Duration `envconfig:"RENTCHAIN_RECONCILE_PENDING_GRACE" default:"30m"`
	DisableReconcile bool          `envconfig:"RENTCHAIN_RECONCILE_DISABLED" default:"false"`
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
