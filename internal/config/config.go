package config

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var AppEnv Config

type Config struct {
	Port            string
	GinMode         string
	MongoURI        string
	DBName          string
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	SessionSecret   string
	CartDir         string
	SiteTimezone    string
	CORSOrigins     []string

	LogLevel  string
	LogFormat string

	RedisURL string
	NATSURL  string

	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	StorageDriver        string
	StorageLocalDir      string
	StoragePublicBaseURL string
	S3Bucket             string
	S3Region             string
	S3Endpoint           string
	AWSAccessKeyID       string
	AWSSecretAccessKey   string

	PostalAPIURL string

	DeliveryLeadDays    int
	DeliveryHorizonDays int

	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads .env (when present) and the process environment into AppEnv.
func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	AppEnv = FromEnv()

	if AppEnv.MongoURI == "" {
		log.Fatal("ENV MONGO_URI is required")
	}
	if AppEnv.JWTSecret == "" {
		log.Fatal("ENV JWT_SECRET is required")
	}
}

// FromEnv builds a Config from the current environment without validation.
func FromEnv() Config {
	jwtSecret := getEnvOrDefault("JWT_SECRET", "")
	return Config{
		Port:            getEnvOrDefault("PORT", "8080"),
		GinMode:         getEnvOrDefault("GIN_MODE", "release"),
		MongoURI:        getEnvOrDefault("MONGO_URI", ""),
		DBName:          getEnvOrDefault("DB_NAME", "ordersite"),
		JWTSecret:       jwtSecret,
		AccessTokenTTL:  getDurationEnv("ACCESS_TOKEN_TTL", 20, time.Minute),
		RefreshTokenTTL: getDurationEnv("REFRESH_TOKEN_TTL", 7, 24*time.Hour),
		SessionSecret:   getEnvOrDefault("SESSION_SECRET", jwtSecret),
		CartDir:         getEnvOrDefault("CART_DIR", filepath.Join(os.TempDir(), "ordersite-carts")),
		SiteTimezone:    getEnvOrDefault("SITE_TIMEZONE", "Asia/Tokyo"),
		CORSOrigins:     getListEnv("CORS_ORIGINS", []string{"http://localhost:3000"}),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),

		RedisURL: getEnvOrDefault("REDIS_URL", ""),
		NATSURL:  getEnvOrDefault("NATS_URL", ""),

		SendGridAPIKey:    getEnvOrDefault("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnvOrDefault("SENDGRID_FROM_EMAIL", "noreply@example.com"),
		SendGridFromName:  getEnvOrDefault("SENDGRID_FROM_NAME", "オーダーサイト"),

		StorageDriver:        strings.ToLower(getEnvOrDefault("STORAGE_DRIVER", "local")),
		StorageLocalDir:      getEnvOrDefault("STORAGE_LOCAL_DIR", "/app/public/uploads"),
		StoragePublicBaseURL: getEnvOrDefault("STORAGE_PUBLIC_BASE_URL", "http://localhost:8080/uploads"),
		S3Bucket:             getEnvOrDefault("S3_BUCKET", "product-images"),
		S3Region:             getEnvOrDefault("S3_REGION", "ap-northeast-1"),
		S3Endpoint:           getEnvOrDefault("S3_ENDPOINT", ""),
		AWSAccessKeyID:       getEnvOrDefault("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:   getEnvOrDefault("AWS_SECRET_ACCESS_KEY", ""),

		PostalAPIURL: getEnvOrDefault("POSTAL_API_URL", "https://zipcloud.ibsnet.co.jp/api/search"),

		DeliveryLeadDays:    getIntEnv("DELIVERY_LEAD_DAYS", 1),
		DeliveryHorizonDays: getIntEnv("DELIVERY_HORIZON_DAYS", 60),

		RateLimitRPS:   getFloatEnv("RATE_LIMIT_RPS", 1),
		RateLimitBurst: getIntEnv("RATE_LIMIT_BURST", 5),
	}
}

func (c Config) IsProduction() bool {
	return c.GinMode == "release"
}

// Location resolves SiteTimezone, falling back to a fixed JST offset when
// tzdata is unavailable.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.SiteTimezone)
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}
