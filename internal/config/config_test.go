package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PRX_PER_USD", "100")
	t.Setenv("TOPUP_RATE_WINDOW", "not-a-duration")
	t.Setenv("TOPUP_RATE_MAX", "3")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test,")

	cfg := Load()

	require.Equal(t, int64(100), cfg.PRXPerUSD)
	require.Equal(t, time.Minute, cfg.TopUpRateWindow)
	require.Equal(t, 3, cfg.TopUpRateMax)
	require.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
}

func TestParseStringSliceEmpty(t *testing.T) {
	require.Empty(t, parseStringSlice(""))
}
