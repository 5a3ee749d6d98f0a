package config

const (
	EnvPrefix = "SHOP"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	StorageDriverGCS = "gcs"
	StorageDriverS3  = "s3"
)

const (
	EnvAppEnv        = "SHOP_APP_ENV"
	EnvPort          = "SHOP_APP_PORT"
	EnvLogLevel      = "SHOP_LOG_LEVEL"
	EnvDBDSN         = "SHOP_DB_DSN"
	EnvDBHost        = "SHOP_DB_HOST"
	EnvDBUser        = "SHOP_DB_USER"
	EnvDBName        = "SHOP_DB_NAME"
	EnvRedisURL      = "SHOP_REDIS_URL"
	EnvJWTSecret     = "SHOP_JWT_SECRET"
	EnvJWTIssuer     = "SHOP_JWT_ISSUER"
	EnvJWTExpMins    = "SHOP_JWT_EXPIRATION_MINUTES"
	EnvStorageDriver = "SHOP_STORAGE_DRIVER"
	EnvStorageBucket = "SHOP_STORAGE_BUCKET"
	EnvLockoutMax    = "SHOP_LOCKOUT_MAX_ATTEMPTS"
	EnvRateLimitReqs = "SHOP_RATE_LIMIT_REQUESTS"
	EnvCORSOrigins   = "SHOP_CORS_ALLOWED_ORIGINS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
