package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	t.Setenv("DB_HOST", "test-host")
	t.Setenv("DB_MAX_OPEN_CONNS", "20")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("STORAGE_BACKEND", "MinIO")
	t.Setenv("UPLOAD_PUBLIC_PREFIX", "/media/")
	t.Setenv("UPLOAD_MAX_FILE_SIZE", "2048")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")

	cfg := Load()

	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.MinIO.UseSSL)
	assert.Equal(t, StorageMinIO, cfg.StorageBackend)
	assert.Equal(t, "/media", cfg.Upload.PublicPrefix)
	assert.Equal(t, int64(2048), cfg.Upload.MaxFileSize)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "asset.uploaded", cfg.Kafka.Topic)
}

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"UPLOAD_DIR", "UPLOAD_MAX_FILE_SIZE", "UPLOAD_MAX_FILES", "UPLOAD_THUMBNAIL_SIZE", "UPLOAD_THUMBNAIL_QUALITY", "UPLOAD_SNIFF_CONTENT", "STORAGE_BACKEND", "KAFKA_BROKERS"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, "./public/uploads", cfg.Upload.Dir)
	assert.Equal(t, int64(DefaultMaxFileSize), cfg.Upload.MaxFileSize)
	assert.Equal(t, 10, cfg.Upload.MaxFiles)
	assert.Equal(t, 200, cfg.Upload.ThumbnailSize)
	assert.Equal(t, 80, cfg.Upload.ThumbnailQuality)
	assert.True(t, cfg.Upload.SniffContent)
	assert.Equal(t, StorageLocal, cfg.StorageBackend)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 15*time.Minute, cfg.DownloadURLExpiry)
}

func TestLocation(t *testing.T) {
	cfg := &AppConfig{Timezone: "Asia/Jakarta"}
	assert.Equal(t, "Asia/Jakarta", cfg.Location().String())

	cfg.Timezone = "Not/AZone"
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestBodyLimit(t *testing.T) {
	u := UploadConfig{MaxFileSize: 10, MaxFiles: 3}
	assert.Equal(t, 30+1<<20, u.BodyLimit())

	u.MaxFiles = 0
	assert.Equal(t, 10+1<<20, u.BodyLimit())
}

func TestGetEnv(t *testing.T) {
	key := "TEST_ENV_VAR"
	os.Setenv(key, "value")
	defer os.Unsetenv(key)

	assert.Equal(t, "value", getEnv(key, "default"))
	assert.Equal(t, "default", getEnv("NON_EXISTENT", "default"))
}

func TestGetEnvBool(t *testing.T) {
	key := "TEST_BOOL_VAR"

	os.Setenv(key, "true")
	assert.True(t, getEnvBool(key, false))

	os.Setenv(key, "invalid")
	assert.True(t, getEnvBool(key, true))

	os.Unsetenv(key)
	assert.False(t, getEnvBool(key, false))
}

func TestGetEnvInt64(t *testing.T) {
	key := "TEST_INT64_VAR"

	t.Setenv(key, "10485760")
	assert.Equal(t, int64(10485760), getEnvInt64(key, 1))

	t.Setenv(key, "-5")
	assert.Equal(t, int64(1), getEnvInt64(key, 1))

	t.Setenv(key, "nope")
	assert.Equal(t, int64(7), getEnvInt64(key, 7))
}
