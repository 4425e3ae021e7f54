package config

import (
	"os"
	"strconv"
	"strings"
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
}

// UploadConfig controls the ingest pipeline and the local content directory.
type UploadConfig struct {
	Dir              string
	PublicPrefix     string
	MaxFileSize      int64
	MaxFiles         int
	ThumbnailSize    int
	ThumbnailQuality int
	SniffContent     bool
}

// KafkaConfig holds the upload event publisher settings. An empty broker list disables publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost           string
	Port              string
	Timezone          string
	LogLevel          string
	StorageBackend    string
	DownloadURLExpiry time.Duration
	Upload            UploadConfig
	Database          DatabaseConfig
	MinIO             MinIOConfig
	Kafka             KafkaConfig
}

const (
	StorageLocal = "local"
	StorageMinIO = "minio"

	DefaultMaxFileSize = 10 * 1024 * 1024
)

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
func Load() *AppConfig {
	return &AppConfig{
		AppHost:           getEnv("APP_HOST", "localhost:8080"),
		Port:              getEnv("PORT", "8080"),
		Timezone:          getEnv("APP_TIMEZONE", "UTC"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		StorageBackend:    strings.ToLower(getEnv("STORAGE_BACKEND", StorageLocal)),
		DownloadURLExpiry: time.Duration(getEnvInt("DOWNLOAD_URL_EXPIRY_SEC", 900)) * time.Second,
		Upload: UploadConfig{
			Dir:              getEnv("UPLOAD_DIR", "./public/uploads"),
			PublicPrefix:     strings.TrimRight(getEnv("UPLOAD_PUBLIC_PREFIX", "/uploads"), "/"),
			MaxFileSize:      getEnvInt64("UPLOAD_MAX_FILE_SIZE", DefaultMaxFileSize),
			MaxFiles:         getEnvInt("UPLOAD_MAX_FILES", 10),
			ThumbnailSize:    getEnvInt("UPLOAD_THUMBNAIL_SIZE", 200),
			ThumbnailQuality: getEnvInt("UPLOAD_THUMBNAIL_QUALITY", 80),
			SniffContent:     getEnvBool("UPLOAD_SNIFF_CONTENT", true),
		},
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
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "")),
			Topic:   getEnv("KAFKA_TOPIC", "asset.uploaded"),
		},
	}
}

// Location resolves the configured time zone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// BodyLimit is the largest request body the HTTP server accepts: a full batch plus form overhead.
func (u UploadConfig) BodyLimit() int {
	files := u.MaxFiles
	if files <= 0 {
		files = 1
	}
	return int(u.MaxFileSize)*files + 1<<20
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

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil && i > 0 {
			return i
		}
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
