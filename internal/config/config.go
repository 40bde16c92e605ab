// Package config loads the YAML startup configuration.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	defaultPort          = 2333
	defaultEnv           = "development"
	defaultTimezone      = "UTC"
	defaultMongoURI      = "mongodb://127.0.0.1:27017"
	defaultMongoDatabase = "moody"
	defaultRedisHost     = "localhost"
	defaultRedisPort     = 6379
	defaultPhotoDriver   = "s3"
	defaultPhotoRegion   = "us-east-1"
	defaultPhotoMaxMB    = 7
	defaultPhotoPerDay   = 4
	defaultTypedDebounce = 800 * time.Millisecond
	defaultVoiceDebounce = 3 * time.Second
	defaultMoodDebounce  = 2 * time.Second
	defaultSavedDisplay  = 2 * time.Second
	defaultIdleTimeout   = 30 * time.Minute
	defaultCacheTTL      = 7 * 24 * time.Hour
	defaultTokenTTL      = 7 * 24 * time.Hour
	defaultInsightsLimit = 10
	defaultBeaconTimeout = 10 * time.Second
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int
	Env            string // "development" | "production"
	JWTSecret      string
	TokenTTL       time.Duration
	Timezone       string
	Location       *time.Location
	AllowedOrigins []string
	LogDir         string
	Mongo          MongoConfig
	Redis          RedisConfig
	Photos         PhotoConfig
	AI             AIConfig
	Autosave       AutosaveConfig
	Session        SessionConfig
	Memories       MemoriesConfig
	RateLimit      RateLimitConfig
	Beacon         BeaconConfig
}

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	URL      string
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr is host:port for clients that are not given a URL.
func (c RedisConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

type PhotoConfig struct {
	Driver          string // s3 | minio | memory
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	CustomDomain    string
	UseSSL          bool
	MaxSizeMB       int
	MaxPerDay       int
}

type AIConfig struct {
	Providers       []AIProvider
	InsightProvider string
	InsightModel    string
}

type AIProvider struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Type         string `yaml:"type"` // OpenAI | OpenAI-Compatible | Anthropic
	APIKey       string `yaml:"api_key"`
	Endpoint     string `yaml:"endpoint"`
	DefaultModel string `yaml:"default_model"`
	Enabled      bool   `yaml:"enabled"`
}

// InsightProviderConfig picks the enabled provider for insights: the named
// one when configured, else the first enabled. The model override applies.
func (c AIConfig) InsightProviderConfig() *AIProvider {
	pick := func(p AIProvider) *AIProvider {
		if c.InsightModel != "" {
			p.DefaultModel = c.InsightModel
		}
		return &p
	}
	if c.InsightProvider != "" {
		for _, p := range c.Providers {
			if p.Enabled && p.ID == c.InsightProvider {
				return pick(p)
			}
		}
	}
	for _, p := range c.Providers {
		if p.Enabled {
			return pick(p)
		}
	}
	return nil
}

type AutosaveConfig struct {
	TypedDebounce time.Duration
	VoiceDebounce time.Duration
	MoodDebounce  time.Duration
	SavedDisplay  time.Duration
}

type SessionConfig struct {
	IdleTimeout time.Duration
}

type MemoriesConfig struct {
	CacheTTL time.Duration
}

type RateLimitConfig struct {
	InsightsPerMinute int
}

// BeaconConfig points page-exit writes at a beacon endpoint. Without a URL
// the server delivers them in process.
type BeaconConfig struct {
	URL     string
	Timeout time.Duration
}

type rawAppConfig struct {
	Port               int               `yaml:"port"`
	Env                string            `yaml:"env"`
	GoEnv              string            `yaml:"go_env"`
	JWTSecret          string            `yaml:"jwt_secret"`
	TokenTTL           string            `yaml:"token_ttl"`
	Timezone           string            `yaml:"timezone"`
	TZ                 string            `yaml:"tz"`
	AllowedOrigins     []string          `yaml:"allowed_origins"`
	CORSAllowedOrigins []string          `yaml:"cors_allowed_origins"`
	LogDir             string            `yaml:"log_dir"`
	MongoURI           string            `yaml:"mongo_uri"`
	RedisURL           string            `yaml:"redis_url"`
	Mongo              rawMongoConfig    `yaml:"mongo"`
	Redis              rawRedisConfig    `yaml:"redis"`
	Photos             rawPhotoConfig    `yaml:"photos"`
	AI                 rawAIConfig       `yaml:"ai"`
	Autosave           rawAutosaveConfig `yaml:"autosave"`
	Session            struct {
		IdleTimeout string `yaml:"idle_timeout"`
	} `yaml:"session"`
	Memories struct {
		CacheTTL string `yaml:"cache_ttl"`
	} `yaml:"memories"`
	RateLimit struct {
		InsightsPerMinute *int `yaml:"insights_per_minute"`
	} `yaml:"rate_limit"`
	Beacon struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"beacon"`
}

type rawMongoConfig struct {
	URI      string `yaml:"uri"`
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
}

type rawRedisConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       *int   `yaml:"db"`
}

type rawPhotoConfig struct {
	Driver          string `yaml:"driver"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	CustomDomain    string `yaml:"custom_domain"`
	UseSSL          *bool  `yaml:"use_ssl"`
	MaxSizeMB       int    `yaml:"max_size_mb"`
	MaxPerDay       int    `yaml:"max_per_day"`
}

type rawAIConfig struct {
	Providers       []AIProvider `yaml:"providers"`
	InsightProvider string       `yaml:"insight_provider"`
	InsightModel    string       `yaml:"insight_model"`
}

type rawAutosaveConfig struct {
	TypedDebounce string `yaml:"typed_debounce"`
	VoiceDebounce string `yaml:"voice_debounce"`
	MoodDebounce  string `yaml:"mood_debounce"`
	SavedDisplay  string `yaml:"saved_display"`
}

// Load reads the config file at configPath (DefaultConfigPath when empty).
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}
	cfg, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("config file %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML content over the defaults. Unknown keys are errors.
func Parse(content []byte) (*AppConfig, error) {
	cfg := defaultAppConfig()
	raw := rawAppConfig{}
	if len(bytes.TrimSpace(content)) > 0 {
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		if err := decoder.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parse: %w", err)
		}
	}
	if err := applyRawAppConfig(&cfg, raw); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Port:     defaultPort,
		Env:      defaultEnv,
		TokenTTL: defaultTokenTTL,
		Timezone: defaultTimezone,
		Location: time.UTC,
		Mongo:    MongoConfig{URI: defaultMongoURI, Database: defaultMongoDatabase},
		Redis:    RedisConfig{Host: defaultRedisHost, Port: defaultRedisPort},
		Photos: PhotoConfig{
			Driver:    defaultPhotoDriver,
			Region:    defaultPhotoRegion,
			UseSSL:    true,
			MaxSizeMB: defaultPhotoMaxMB,
			MaxPerDay: defaultPhotoPerDay,
		},
		Autosave: AutosaveConfig{
			TypedDebounce: defaultTypedDebounce,
			VoiceDebounce: defaultVoiceDebounce,
			MoodDebounce:  defaultMoodDebounce,
			SavedDisplay:  defaultSavedDisplay,
		},
		Session:   SessionConfig{IdleTimeout: defaultIdleTimeout},
		Memories:  MemoriesConfig{CacheTTL: defaultCacheTTL},
		RateLimit: RateLimitConfig{InsightsPerMinute: defaultInsightsLimit},
		Beacon:    BeaconConfig{Timeout: defaultBeaconTimeout},
	}
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) error {
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	if v := strings.TrimSpace(raw.Env); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(raw.GoEnv); v != "" {
		cfg.Env = v
	}
	cfg.Env = normalizeEnv(cfg.Env)
	if v := strings.TrimSpace(raw.JWTSecret); v != "" {
		cfg.JWTSecret = v
	}
	if v := strings.TrimSpace(raw.Timezone); v != "" {
		cfg.Timezone = v
	}
	if v := strings.TrimSpace(raw.TZ); v != "" {
		cfg.Timezone = v
	}
	switch {
	case raw.AllowedOrigins != nil:
		cfg.AllowedOrigins = normalizeOrigins(raw.AllowedOrigins)
	case raw.CORSAllowedOrigins != nil:
		cfg.AllowedOrigins = normalizeOrigins(raw.CORSAllowedOrigins)
	}
	cfg.LogDir = strings.TrimSpace(raw.LogDir)

	if v := firstNonEmpty(raw.Mongo.URI, raw.Mongo.URL, raw.MongoURI); v != "" {
		cfg.Mongo.URI = v
	}
	if v := strings.TrimSpace(raw.Mongo.Database); v != "" {
		cfg.Mongo.Database = v
	}

	cfg.Redis = applyRawRedisConfig(cfg.Redis, raw)
	cfg.Photos = applyRawPhotoConfig(cfg.Photos, raw.Photos)

	cfg.AI.Providers = normalizeProviders(raw.AI.Providers)
	cfg.AI.InsightProvider = strings.TrimSpace(raw.AI.InsightProvider)
	cfg.AI.InsightModel = strings.TrimSpace(raw.AI.InsightModel)

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"token_ttl", raw.TokenTTL, &cfg.TokenTTL},
		{"autosave.typed_debounce", raw.Autosave.TypedDebounce, &cfg.Autosave.TypedDebounce},
		{"autosave.voice_debounce", raw.Autosave.VoiceDebounce, &cfg.Autosave.VoiceDebounce},
		{"autosave.mood_debounce", raw.Autosave.MoodDebounce, &cfg.Autosave.MoodDebounce},
		{"autosave.saved_display", raw.Autosave.SavedDisplay, &cfg.Autosave.SavedDisplay},
		{"session.idle_timeout", raw.Session.IdleTimeout, &cfg.Session.IdleTimeout},
		{"memories.cache_ttl", raw.Memories.CacheTTL, &cfg.Memories.CacheTTL},
		{"beacon.timeout", raw.Beacon.Timeout, &cfg.Beacon.Timeout},
	}
	for _, d := range durations {
		if err := parseDuration(d.key, d.raw, d.dst); err != nil {
			return err
		}
	}

	if raw.RateLimit.InsightsPerMinute != nil {
		cfg.RateLimit.InsightsPerMinute = *raw.RateLimit.InsightsPerMinute
	}
	cfg.Beacon.URL = strings.TrimRight(strings.TrimSpace(raw.Beacon.URL), "/")

	loc, err := parseTimezone(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc
	return nil
}

func applyRawRedisConfig(cfg RedisConfig, raw rawAppConfig) RedisConfig {
	if v := firstNonEmpty(raw.Redis.URL, raw.RedisURL); v != "" {
		cfg.URL = normalizeRedisRawURL(v)
	}
	if v := strings.TrimSpace(raw.Redis.Host); v != "" {
		cfg.Host = v
	}
	if raw.Redis.Port != 0 {
		cfg.Port = raw.Redis.Port
	}
	if v := strings.TrimSpace(raw.Redis.Password); v != "" {
		cfg.Password = v
	}
	if raw.Redis.DB != nil {
		cfg.DB = *raw.Redis.DB
	}
	return cfg
}

func applyRawPhotoConfig(cfg PhotoConfig, raw rawPhotoConfig) PhotoConfig {
	if v := strings.ToLower(strings.TrimSpace(raw.Driver)); v != "" {
		cfg.Driver = v
	}
	cfg.Endpoint = strings.TrimSpace(raw.Endpoint)
	if v := strings.TrimSpace(raw.Region); v != "" {
		cfg.Region = v
	}
	cfg.Bucket = strings.TrimSpace(raw.Bucket)
	cfg.AccessKeyID = strings.TrimSpace(raw.AccessKeyID)
	cfg.SecretAccessKey = strings.TrimSpace(raw.SecretAccessKey)
	cfg.CustomDomain = strings.TrimRight(strings.TrimSpace(raw.CustomDomain), "/")
	if raw.UseSSL != nil {
		cfg.UseSSL = *raw.UseSSL
	}
	if raw.MaxSizeMB != 0 {
		cfg.MaxSizeMB = raw.MaxSizeMB
	}
	if raw.MaxPerDay != 0 {
		cfg.MaxPerDay = raw.MaxPerDay
	}
	return cfg
}

func (c *AppConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", c.Port)
	}
	if c.Redis.URL == "" && (c.Redis.Port < 1 || c.Redis.Port > 65535) {
		return fmt.Errorf("invalid redis.port %d, expected 1-65535", c.Redis.Port)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("invalid redis.db %d, expected >= 0", c.Redis.DB)
	}
	switch c.Photos.Driver {
	case "s3", "minio", "memory":
	default:
		return fmt.Errorf("invalid photos.driver %q, expected s3, minio or memory", c.Photos.Driver)
	}
	if c.Photos.MaxSizeMB < 1 || c.Photos.MaxSizeMB > 100 {
		return fmt.Errorf("invalid photos.max_size_mb %d, expected 1-100", c.Photos.MaxSizeMB)
	}
	if c.Photos.MaxPerDay < 1 {
		return fmt.Errorf("invalid photos.max_per_day %d, expected >= 1", c.Photos.MaxPerDay)
	}
	if c.RateLimit.InsightsPerMinute < 0 {
		return fmt.Errorf("invalid rate_limit.insights_per_minute %d, expected >= 0", c.RateLimit.InsightsPerMinute)
	}
	if c.Env == "production" && c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required in production")
	}
	for _, p := range c.AI.Providers {
		if p.Enabled && !isKnownProviderType(p.Type) {
			return fmt.Errorf("ai provider %q: unknown type %q", p.ID, p.Type)
		}
	}
	return nil
}

// IsProduction reports whether Env is "production".
func (c *AppConfig) IsProduction() bool { return c.Env == "production" }

// Addr is the listen address.
func (c *AppConfig) Addr() string { return fmt.Sprintf(":%d", c.Port) }
