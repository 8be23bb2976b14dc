package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Shards)
	assert.Equal(t, 256, cfg.QueueSize)
	assert.Equal(t, 100*time.Millisecond, cfg.EnqueueTimeout)
	assert.Equal(t, 1, cfg.MaxAttempts)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PASTEE_DISPATCH_SHARDS", "8")
	t.Setenv("PASTEE_DISPATCH_QUEUE_SIZE", "32")
	t.Setenv("PASTEE_DISPATCH_ENQUEUE_TIMEOUT", "250ms")
	t.Setenv("PASTEE_DISPATCH_MAX_ATTEMPTS", "5")
	t.Setenv("PASTEE_DISPATCH_BASE_BACKOFF", "200ms")
	t.Setenv("PASTEE_DISPATCH_MAX_INTERVAL", "3s")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Shards)
	assert.Equal(t, 32, cfg.QueueSize)
	assert.Equal(t, 250*time.Millisecond, cfg.EnqueueTimeout)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.BaseBackoff)
	assert.Equal(t, 3*time.Second, cfg.MaxInterval)
}

func TestConfig_WithDefaultsFillsZeroValues(t *testing.T) {
	cfg := Config{Shards: -1}.withDefaults()
	assert.Equal(t, 4, cfg.Shards)
	assert.Equal(t, 256, cfg.QueueSize)
	assert.Equal(t, 5*time.Second, cfg.MaxInterval)
}
