package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "order-engine", cfg.ServiceName)
	assert.Empty(t, cfg.CreditURL)
	assert.Equal(t, 3*time.Second, cfg.CreditTimeout)
	assert.Equal(t, 5, cfg.PipelineTopN)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092 ,")
	t.Setenv("CREDIT_EVALUATOR_TIMEOUT", "500ms")
	t.Setenv("NOTIFY_WORKERS", "3")

	cfg := Load()
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 500*time.Millisecond, cfg.CreditTimeout)
	assert.Equal(t, 3, cfg.NotifyWorkers)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("NOTIFY_WORKERS", "many")
	t.Setenv("CREDIT_EVALUATOR_TIMEOUT", "soon")

	cfg := Load()
	assert.Equal(t, 8, cfg.NotifyWorkers)
	assert.Equal(t, 3*time.Second, cfg.CreditTimeout)
}
