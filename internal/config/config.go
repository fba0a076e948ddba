package config

import (
	"os"
	"strconv"
	"time"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the base used to build public object references.
	// When empty it is derived from Endpoint and UseSSL.
	PublicURL string
}

// S3Config holds object storage settings for AWS S3.
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	// Endpoint overrides the AWS endpoint (localstack and friends).
	Endpoint  string
	PathStyle bool
}

// StorageConfig selects and configures the attachment storage backend.
type StorageConfig struct {
	Driver string // "minio" or "s3"
	MinIO  MinIOConfig
	S3     S3Config
}

// Configured reports whether the selected driver has the credentials and bucket it needs.
func (c StorageConfig) Configured() bool {
	switch c.Driver {
	case "s3":
		return c.S3.AccessKeyID != "" && c.S3.SecretAccessKey != "" && c.S3.Bucket != "" && c.S3.Region != ""
	default:
		return c.MinIO.Endpoint != "" && c.MinIO.AccessKey != "" && c.MinIO.SecretKey != "" && c.MinIO.Bucket != ""
	}
}

// AuthConfig holds token issuing settings.
type AuthConfig struct {
	JWTSecret   string
	TokenTTLSec int
}

// TokenTTL returns the access token lifetime.
func (c AuthConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLSec) * time.Second
}

// RedisConfig holds the form cache settings. An empty Addr disables the cache.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	FormTTLSec int
}

// FormsConfig holds knobs of the submission pipeline.
type FormsConfig struct {
	// StrictSchema rejects schemas that declare the same field name twice.
	StrictSchema      bool
	UploadTimeoutSec  int
	UploadConcurrency int
	// BodyLimitMB caps request bodies, multipart uploads included.
	BodyLimitMB int
}

// UploadTimeout bounds the attachment upload step of a single submission.
func (c FormsConfig) UploadTimeout() time.Duration {
	return time.Duration(c.UploadTimeoutSec) * time.Second
}

// BodyLimit returns BodyLimitMB in bytes.
func (c FormsConfig) BodyLimit() int {
	return c.BodyLimitMB << 20
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost  string
	Port     string
	LogLevel string
	Database DatabaseConfig
	Storage  StorageConfig
	Auth     AuthConfig
	Redis    RedisConfig
	Forms    FormsConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:  getEnv("APP_HOST", "localhost:8080"),
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		Storage: StorageConfig{
			Driver: getEnv("STORAGE_DRIVER", "minio"),
			MinIO: MinIOConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", ""),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
				PublicURL: getEnv("MINIO_PUBLIC_URL", ""),
			},
			S3: S3Config{
				Region:          getEnv("AWS_S3_REGION_NAME", "us-east-1"),
				AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
				SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
				Bucket:          getEnv("AWS_STORAGE_BUCKET_NAME", ""),
				Endpoint:        getEnv("AWS_S3_ENDPOINT", ""),
				PathStyle:       getEnvBool("AWS_S3_PATH_STYLE", false),
			},
		},
		Auth: AuthConfig{
			JWTSecret:   getEnv("JWT_SECRET", ""),
			TokenTTLSec: getEnvInt("JWT_TTL_SEC", 86400),
		},
		Redis: RedisConfig{
			Addr:       getEnv("REDIS_ADDR", ""),
			Password:   getEnv("REDIS_PASSWORD", ""),
			DB:         getEnvInt("REDIS_DB", 0),
			FormTTLSec: getEnvInt("REDIS_FORM_TTL_SEC", 60),
		},
		Forms: FormsConfig{
			StrictSchema:      getEnvBool("FORMS_STRICT_SCHEMA", false),
			UploadTimeoutSec:  getEnvInt("FORMS_UPLOAD_TIMEOUT_SEC", 30),
			UploadConcurrency: getEnvInt("FORMS_UPLOAD_CONCURRENCY", 4),
			BodyLimitMB:       getEnvInt("FORMS_BODY_LIMIT_MB", 25),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
