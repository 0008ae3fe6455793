package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OCR_TIMEOUT_MS", "")
	t.Setenv("OCR_LANG", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.OCRTimeout)
	assert.GreaterOrEqual(t, cfg.OCRConcurrency, 1)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OCR_TIMEOUT_MS", "1500")
	t.Setenv("OCR_CONCURRENCY", "0")
	t.Setenv("OCR_TEXT_LAYER", "off")
	t.Setenv("RPA_PREFIX", "CLIENTE")
	t.Setenv("OCR_BREAKER_COOLDOWN_SEC", "abc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1500*time.Millisecond, cfg.OCRTimeout)
	assert.Equal(t, 1, cfg.OCRConcurrency)
	assert.False(t, cfg.OCRTextLayer)
	assert.Equal(t, "CLIENTE", cfg.Prefix)
	assert.Equal(t, 60*time.Second, cfg.OCRBreakerCooldown)
}

func TestRequire(t *testing.T) {
	var cfg Config
	assert.Error(t, cfg.Require("IMAP_HOST", "  "))
	assert.NoError(t, cfg.Require("IMAP_HOST", "mail.example.com"))
}
