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
	Lockout       LockoutConfig
	Tokens        TokensConfig
	RateLimit     RateLimitConfig
	AuthRateLimit AuthRateLimitConfig
	CORS          CORSConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	Storage       StorageConfig
	Media         MediaConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Housekeeping  HousekeepingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDB parses only the app and database settings, for tooling such as the
// migrator that never touches redis, storage or auth.
func LoadDB() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg.App); err != nil {
		return nil, fmt.Errorf("parsing app config: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg.DB); err != nil {
		return nil, fmt.Errorf("parsing db config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SHOP_APP_ENV" required:"true"`
	Port         string `envconfig:"SHOP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SHOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHOP_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"SHOP_LOG_FORMAT" default:"json"`
	ClientURL    string `envconfig:"SHOP_CLIENT_URL" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type DBConfig struct {
	DSN    string `envconfig:"SHOP_DB_DSN"`
	Driver string `envconfig:"SHOP_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SHOP_DB_HOST"`
	LegacyPort     int    `envconfig:"SHOP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SHOP_DB_USER"`
	LegacyPassword string `envconfig:"SHOP_DB_PASSWORD"`
	LegacyName     string `envconfig:"SHOP_DB_NAME"`
	LegacySSLMode  string `envconfig:"SHOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"SHOP_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SHOP_REDIS_ADDR"`
	Password     string        `envconfig:"SHOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
	Namespace    string        `envconfig:"SHOP_REDIS_NAMESPACE" default:"shop"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SHOP_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SHOP_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SHOP_JWT_EXPIRATION_MINUTES" default:"10080"`
	CookieName        string `envconfig:"SHOP_JWT_COOKIE_NAME" default:"jwt"`
	CookieSecure      bool   `envconfig:"SHOP_JWT_COOKIE_SECURE" default:"false"`
}

// Expiration returns the session token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SHOP_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SHOP_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SHOP_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SHOP_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SHOP_ARGON_KEY_LEN" default:"32"`
}

type LockoutConfig struct {
	MaxAttempts  int           `envconfig:"SHOP_LOCKOUT_MAX_ATTEMPTS" default:"5"`
	LockDuration time.Duration `envconfig:"SHOP_LOCKOUT_DURATION" default:"2h"`
}

type TokensConfig struct {
	PasswordResetTTL     time.Duration `envconfig:"SHOP_PASSWORD_RESET_TTL" default:"10m"`
	EmailVerificationTTL time.Duration `envconfig:"SHOP_EMAIL_VERIFICATION_TTL" default:"24h"`
}

type RateLimitConfig struct {
	Enabled  bool          `envconfig:"SHOP_RATE_LIMIT_ENABLED" default:"true"`
	Requests int           `envconfig:"SHOP_RATE_LIMIT_REQUESTS" default:"100"`
	Window   time.Duration `envconfig:"SHOP_RATE_LIMIT_WINDOW" default:"15m"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"SHOP_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"SHOP_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"10"`
	LoginIPLimit       int           `envconfig:"SHOP_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"SHOP_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"SHOP_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"SHOP_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"SHOP_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	MaxAgeSeconds  int      `envconfig:"SHOP_CORS_MAX_AGE_SECONDS" default:"300"`
}

type FeatureFlagsConfig struct {
	AutoMigrate       bool `envconfig:"SHOP_AUTO_MIGRATE" default:"false"`
	StrictTransitions bool `envconfig:"SHOP_STRICT_ORDER_TRANSITIONS" default:"true"`
	CleanupUploads    bool `envconfig:"SHOP_CLEANUP_FAILED_UPLOADS" default:"true"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"SHOP_IDEMPOTENCY_TTL" default:"24h"`

	// Order placement, payment and refunds keep their keys for a week.
	OrderIdempotencyTTL time.Duration `envconfig:"SHOP_ORDER_IDEMPOTENCY_TTL" default:"168h"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"SHOP_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"SHOP_GCP_CREDENTIALS_JSON"`
}

type StorageConfig struct {
	Driver        string `envconfig:"SHOP_STORAGE_DRIVER" default:"gcs"`
	Bucket        string `envconfig:"SHOP_STORAGE_BUCKET" required:"true"`
	Folder        string `envconfig:"SHOP_STORAGE_FOLDER" default:"seramic-shop"`
	PublicBaseURL string `envconfig:"SHOP_STORAGE_PUBLIC_BASE_URL"`
	S3Region      string `envconfig:"SHOP_S3_REGION" default:"us-east-1"`
	S3Endpoint    string `envconfig:"SHOP_S3_ENDPOINT"`
}

func (s StorageConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(s.Driver)) {
	case StorageDriverGCS, StorageDriverS3:
		return nil
	default:
		return fmt.Errorf("unsupported %s %q", EnvStorageDriver, s.Driver)
	}
}

type MediaConfig struct {
	MaxUploadMB     int `envconfig:"SHOP_MAX_UPLOAD_MB" default:"10"`
	MaxGalleryFiles int `envconfig:"SHOP_MEDIA_MAX_GALLERY_FILES" default:"10"`
	ImageMaxSize    int `envconfig:"SHOP_MEDIA_IMAGE_MAX_SIZE" default:"1200"`
	AvatarSize      int `envconfig:"SHOP_MEDIA_AVATAR_SIZE" default:"300"`
	ImageQuality    int `envconfig:"SHOP_MEDIA_IMAGE_QUALITY" default:"90"`
}

// MaxUploadBytes returns the per-file upload ceiling.
func (m MediaConfig) MaxUploadBytes() int64 {
	return int64(m.MaxUploadMB) << 20
}

type PubSubConfig struct {
	OrdersTopic   string `envconfig:"SHOP_PUBSUB_ORDERS_TOPIC" default:"shop-order-events"`
	AccountsTopic string `envconfig:"SHOP_PUBSUB_ACCOUNTS_TOPIC" default:"shop-account-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SHOP_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SHOP_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SHOP_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type HousekeepingConfig struct {
	Interval        time.Duration `envconfig:"SHOP_HOUSEKEEPING_INTERVAL" default:"1h"`
	LockTTL         time.Duration `envconfig:"SHOP_HOUSEKEEPING_LOCK_TTL" default:"50m"`
	OutboxRetention time.Duration `envconfig:"SHOP_OUTBOX_RETENTION" default:"336h"`
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
