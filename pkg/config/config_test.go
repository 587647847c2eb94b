package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 14, cfg.Trial.LengthDays)
	require.Equal(t, int64(5999), cfg.Trial.PriceAmount)
	require.Equal(t, "MYR", cfg.Trial.Currency)
	require.Equal(t, time.Minute, cfg.Trial.CacheTTL)
	require.Equal(t, []int{3, 1}, cfg.Trial.ReminderDays)
	require.Equal(t, "log", cfg.Mail.Provider)
	require.False(t, cfg.AccessControl.Enforce)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
APP_ENV: staging
TRIAL:
  LENGTH_DAYS: 30
  CURRENCY: USD
STRIPE:
  PRICE_ID: price_123
ACCESS_CONTROL:
  ENFORCE: true
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600))

	cfg, err := Load(viper.New(), dir)
	require.NoError(t, err)

	require.Equal(t, "staging", cfg.AppEnv)
	require.Equal(t, 30, cfg.Trial.LengthDays)
	require.Equal(t, "USD", cfg.Trial.Currency)
	require.Equal(t, "price_123", cfg.Stripe.PriceID)
	require.True(t, cfg.AccessControl.Enforce)
	// untouched keys keep their defaults
	require.Equal(t, int64(5999), cfg.Trial.PriceAmount)
}
