package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/relaychat/internal/chat"
)

func TestNewConfig(t *testing.T) {
	req := require.New(t)
	cfg := NewConfig()
	req.Equal(":8080", cfg.Port)
	req.Equal(int64(8192), cfg.MaxFrameSize)
	req.Equal(chat.DefaultLimits(), cfg.Limits())
}

func TestNewConfigFromEnv(t *testing.T) {
	req := require.New(t)
	t.Setenv("SERVER_PORT", ":9000")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com,https://b.example.com")
	t.Setenv("HISTORY_TTL", "2h")
	t.Setenv("PRIVATE_REPLAY", "5")
	t.Setenv("RATE_LIMIT_MAX", "-3")
	t.Setenv("HANDSHAKE_RPS", "0.5")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := NewConfigFromEnv()
	req.NoError(err)
	req.Equal(":9000", cfg.Port)
	req.Equal([]string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
	req.Equal(2*time.Hour, cfg.HistoryTTL)
	req.Equal(5, cfg.PrivateReplay)
	req.Equal(chat.DefaultRateLimitMax, cfg.RateLimitMax, "negative values fall back")
	req.Equal(0.5, cfg.HandshakeRPS)
	req.Equal("text", cfg.LogFormat)
	req.Equal(time.Minute, cfg.HistorySweepInterval)

	limits := cfg.Limits()
	req.Equal(2*time.Hour, limits.HistoryTTL)
	req.Equal(5, limits.PrivateReplay)
}

func TestNewConfigFromEnv_Invalid(t *testing.T) {
	t.Setenv("HISTORY_TTL", "forever")
	_, err := NewConfigFromEnv()
	require.Error(t, err)
}

func TestSanitizeConfig(t *testing.T) {
	req := require.New(t)
	cfg := sanitizeConfig(Config{})
	def := defaultConfig()
	def.AllowedOrigins = nil
	req.Equal(def, cfg)

	origins := []string{"https://a.example.com"}
	cfg = sanitizeConfig(Config{AllowedOrigins: origins})
	origins[0] = "mutated"
	req.Equal("https://a.example.com", cfg.AllowedOrigins[0])
}
