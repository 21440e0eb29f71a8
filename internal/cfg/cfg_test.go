package cfg

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/psms-tech/go-backend/internal/domain"
	"github.com/psms-tech/go-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() logger.Logger {
	return logger.NewSlogLoggerWithWriter(&bytes.Buffer{}, slog.LevelError)
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("POSTGRES_USER", "lens")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "inventory")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load(testLogger())
	require.NoError(t, err)

	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, domain.BackendClassifier, cfg.Lens.Backend)
	assert.Equal(t, "mobilenetv2-12.onnx", cfg.Lens.ActiveModel)
	assert.Equal(t, "mobilenetv2-12.onnx", cfg.Lens.DefaultModel)
	assert.Nil(t, cfg.Lens.Threshold)
	assert.Equal(t, int64(10<<20), cfg.Lens.MaxUploadBytes)
	assert.Equal(t, StorePostgres, cfg.Lens.EmbeddingStore)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.False(t, cfg.LLM.Enabled())
	assert.Equal(t, "http://minio:9000/lens-references", cfg.Minio.PublicURL)
	assert.Equal(t, "host=localhost port=5432 user=lens password=secret dbname=inventory sslmode=disable", cfg.Db.DSN())
	assert.Equal(t, int32(10), cfg.Db.MaxConns)
	assert.Equal(t, "db/migrations", cfg.Db.MigrationsPath)
}

func TestLoad_InvalidMaxConns(t *testing.T) {
	setRequired(t)
	t.Setenv("POSTGRES_MAX_CONNS", "0")

	_, err := Load(testLogger())
	require.Error(t, err)
}

func TestLoad_LensOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("LENS_BACKEND", "CLIP")
	t.Setenv("VISUAL_LENS_MODEL", "clip-vit-b32-vision.onnx")
	t.Setenv("LENS_MATCH_THRESHOLD", "0.3")
	t.Setenv("EMBEDDING_STORE", "qdrant")
	t.Setenv("LLM_API_KEY", "sk-test")

	cfg, err := Load(testLogger())
	require.NoError(t, err)

	assert.Equal(t, domain.BackendCLIP, cfg.Lens.Backend)
	assert.Equal(t, "clip-vit-b32-vision.onnx", cfg.Lens.ActiveModel)
	require.NotNil(t, cfg.Lens.Threshold)
	assert.InDelta(t, 0.3, *cfg.Lens.Threshold, 1e-9)
	assert.Equal(t, StoreQdrant, cfg.Lens.EmbeddingStore)
	assert.True(t, cfg.LLM.Enabled())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown backend", "LENS_BACKEND", "tensorflow"},
		{"model without extension", "VISUAL_LENS_MODEL", "mobilenet"},
		{"threshold out of range", "LENS_MATCH_THRESHOLD", "1.5"},
		{"threshold below -1", "LENS_MATCH_THRESHOLD", "-1.5"},
		{"threshold not a number", "LENS_MATCH_THRESHOLD", "high"},
		{"bad duration", "LENS_STATUS_TIMEOUT", "soon"},
		{"unknown store", "EMBEDDING_STORE", "sqlite"},
		{"zero concurrency", "LENS_MAX_CONCURRENT", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load(testLogger())
			require.Error(t, err)
		})
	}
}

func TestLoad_ExplicitThresholdKept(t *testing.T) {
	for _, tt := range []struct {
		value string
		want  float64
	}{
		{"0", 0},
		{"-0.1", -0.1},
	} {
		t.Run(tt.value, func(t *testing.T) {
			setRequired(t)
			t.Setenv("LENS_MATCH_THRESHOLD", tt.value)

			cfg, err := Load(testLogger())
			require.NoError(t, err)
			require.NotNil(t, cfg.Lens.Threshold)
			assert.InDelta(t, tt.want, *cfg.Lens.Threshold, 1e-9)
		})
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("POSTGRES_USER", "")

	_, err := Load(testLogger())
	require.Error(t, err)
}
