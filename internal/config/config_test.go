package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, defaultPort, cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, 800*time.Millisecond, cfg.Autosave.TypedDebounce)
	assert.Equal(t, 3*time.Second, cfg.Autosave.VoiceDebounce)
	assert.Equal(t, 2*time.Second, cfg.Autosave.MoodDebounce)
	assert.Equal(t, 7*24*time.Hour, cfg.Memories.CacheTTL)
	assert.Equal(t, 7, cfg.Photos.MaxSizeMB)
	assert.Equal(t, 4, cfg.Photos.MaxPerDay)
	assert.Nil(t, cfg.AI.InsightProviderConfig())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	content := `
port: 8080
env: prod
jwt_secret: " s3cret "
timezone: Asia/Kolkata
allowed_origins: [" https://moody.app/ ", ""]
mongo:
  uri: mongodb://db:27017
  database: moody_test
redis_url: cache:6379/2
photos:
  driver: MinIO
  endpoint: minio:9000
  bucket: memories
  access_key_id: key
  secret_access_key: secret
  use_ssl: false
ai:
  insight_provider: claude
  insight_model: claude-haiku-4-5
  providers:
    - id: oa
      type: OpenAI
      api_key: sk-1
      enabled: true
    - id: claude
      type: Anthropic
      api_key: sk-2
      enabled: true
autosave:
  typed_debounce: 500ms
session:
  idle_timeout: 1h
rate_limit:
  insights_per_minute: 0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, "Asia/Kolkata", cfg.Location.String())
	assert.Equal(t, []string{"https://moody.app"}, cfg.AllowedOrigins)
	assert.Equal(t, MongoConfig{URI: "mongodb://db:27017", Database: "moody_test"}, cfg.Mongo)
	assert.Equal(t, "redis://cache:6379/2", cfg.Redis.URL)
	assert.Equal(t, "minio", cfg.Photos.Driver)
	assert.False(t, cfg.Photos.UseSSL)
	assert.Equal(t, 500*time.Millisecond, cfg.Autosave.TypedDebounce)
	assert.Equal(t, 3*time.Second, cfg.Autosave.VoiceDebounce)
	assert.Equal(t, time.Hour, cfg.Session.IdleTimeout)
	assert.Zero(t, cfg.RateLimit.InsightsPerMinute)

	p := cfg.AI.InsightProviderConfig()
	require.NotNil(t, p)
	assert.Equal(t, "claude", p.ID)
	assert.Equal(t, "anthropic", p.Type)
	assert.Equal(t, "claude-haiku-4-5", p.DefaultModel)
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":      "colour: blue\n",
		"port range":       "port: 70000\n",
		"bad duration":     "autosave:\n  voice_debounce: soon\n",
		"negative window":  "session:\n  idle_timeout: -1m\n",
		"driver":           "photos:\n  driver: ftp\n",
		"timezone":         "timezone: Mars/Olympus\n",
		"prod secret":      "env: production\n",
		"provider type":    "ai:\n  providers:\n    - id: x\n      type: gemini\n      enabled: true\n",
		"negative ratelim": "rate_limit:\n  insights_per_minute: -1\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestParseTimezoneOffset(t *testing.T) {
	cfg, err := Parse([]byte("timezone: \"+05:30\"\n"))
	require.NoError(t, err)
	_, offset := time.Date(2025, 1, 1, 0, 0, 0, 0, cfg.Location).Zone()
	assert.Equal(t, 5*3600+30*60, offset)

	_, err = Parse([]byte("timezone: \"+25:00\"\n"))
	assert.Error(t, err)
}
