package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort string

	DBDriver       string
	DBDSN          string
	DBMaxOpenConns int
	DBMaxIdleConns int
	ResetDB        bool

	RedisAddr string
	RedisDB   int
	RedisPass string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	StorageDriver    string
	StorageLocalRoot string
	S3Bucket         string
	S3Region         string
	S3Key            string
	S3Secret         string
	S3Endpoint       string

	MaxUploadSize string
	AuthRateLimit float64

	LogLevel    string
	LogFormat   string
	SwaggerHost string
}

// Load builds Config from environment with sensible defaults.
// A .env file in the working directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		DBDriver:         getEnv("DB_DRIVER", "mysql"),
		DBDSN:            getEnv("DB_DSN", "user:password@tcp(localhost:3306)/taskmarket?charset=utf8mb4&parseTime=True&loc=Local"),
		DBMaxOpenConns:   getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:   getEnvInt("DB_MAX_IDLE_CONNS", 10),
		ResetDB:          getEnvBool("RESET_DB", false),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		RedisPass:        os.Getenv("REDIS_PASSWORD"),
		JWTSecret:        getEnv("JWT_SECRET", "change-me"),
		AccessTokenTTL:   getEnvDuration("ACCESS_TOKEN_TTL", 60*time.Minute),
		RefreshTokenTTL:  getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		StorageDriver:    getEnv("STORAGE_DRIVER", "local"),
		StorageLocalRoot: getEnv("STORAGE_LOCAL_ROOT", "uploads"),
		S3Bucket:         os.Getenv("S3_BUCKET"),
		S3Region:         getEnv("S3_REGION", "us-east-1"),
		S3Key:            os.Getenv("S3_KEY"),
		S3Secret:         os.Getenv("S3_SECRET"),
		S3Endpoint:       os.Getenv("S3_ENDPOINT"),
		MaxUploadSize:    getEnv("MAX_UPLOAD_SIZE", "10M"),
		AuthRateLimit:    getEnvFloat("AUTH_RATE_LIMIT", 20),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
		SwaggerHost:      os.Getenv("SWAGGER_HOST"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
