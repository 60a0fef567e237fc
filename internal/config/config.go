package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName             string
	AppEnv              string
	AppPort             string
	APIBaseURL          string
	APITimeout          time.Duration
	DatabaseURL         string
	RedisURL            string
	NATSURL             string
	JWTSecret           string
	CORSAllowOrigins    string
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	RecordingFolder     string
	RecordingMaxChunkMB int
	SummaryCacheTTL     time.Duration
	TrackingRateLimit   int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// IsProduction reports whether the service runs in the production environment.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// CloudinaryEnabled reports whether recording storage credentials are present.
func (c Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("PROMORA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Promora API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("api.timeout", "5s")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("recording.folder", "promora/recordings")
	v.SetDefault("recording.max_chunk_mb", 25)
	v.SetDefault("summary.cache_ttl", "24h")
	v.SetDefault("tracking.rate_limit", 600)

	apiTimeout, err := parseDuration(v, "api.timeout", "5s")
	if err != nil {
		return Config{}, err
	}

	summaryTTL, err := parseDuration(v, "summary.cache_ttl", "24h")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:             v.GetString("app.name"),
		AppEnv:              v.GetString("app.env"),
		AppPort:             v.GetString("app.port"),
		APIBaseURL:          strings.TrimRight(strings.TrimSpace(v.GetString("api.base_url")), "/"),
		APITimeout:          apiTimeout,
		DatabaseURL:         v.GetString("database.url"),
		RedisURL:            v.GetString("redis.url"),
		NATSURL:             v.GetString("nats.url"),
		JWTSecret:           v.GetString("jwt.secret"),
		CORSAllowOrigins:    v.GetString("cors.allow_origins"),
		CloudinaryCloudName: v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:    v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret: v.GetString("cloudinary.api_secret"),
		RecordingFolder:     v.GetString("recording.folder"),
		RecordingMaxChunkMB: v.GetInt("recording.max_chunk_mb"),
		SummaryCacheTTL:     summaryTTL,
		TrackingRateLimit:   v.GetInt("tracking.rate_limit"),
	}

	if cfg.IsProduction() && cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided in production")
	}

	if cfg.RecordingMaxChunkMB <= 0 {
		cfg.RecordingMaxChunkMB = 25
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key, fallback string) (time.Duration, error) {
	raw := v.GetString(key)
	if raw == "" {
		raw = fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
