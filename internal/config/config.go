package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server     ServerConfig
	Upstream   UpstreamConfig
	Redis      RedisConfig
	Jobs       JobsConfig
	FFmpeg     FFmpegConfig
	R2         R2Config
	Generation GenerationConfig
	RateLimit  RateLimitConfig
	Placement  PlacementConfig
	Sentry     SentryConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	PublicURL string // prefix for download URLs handed to clients
}

type UpstreamConfig struct {
	BaseURL    string
	Timeout    time.Duration
	PageSize   int
	RatePerSec float64 // 0 disables the client-side limiter
	Burst      int
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// Job driver and processor names.
const (
	DriverTimer = "timer"
	DriverAsynq = "asynq"

	ProcessorSimulated = "simulated"
	ProcessorNative    = "native"
)

type JobsConfig struct {
	InitialDelay time.Duration
	StepInterval time.Duration
	Driver       string
	Processor    string
}

type FFmpegConfig struct {
	FFmpegPath  string
	FFprobePath string
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type GenerationConfig struct {
	BackgroundRemovalURL string
	TextToImageURL       string
	TextToSpeechURL      string
	APIKey               string
	Timeout              time.Duration
}

type RateLimitConfig struct {
	JobsPerHour    int
	UploadPerHour  int
	GeneratePerMin int
}

type PlacementConfig struct {
	LightTagHeight  float64
	PlacementRange  float64
	SaveConcurrency int // 0 means unbounded
}

type SentryConfig struct {
	DSN string
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("GENERATION_API_KEY")
	readSecret("SENTRY_DSN")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()

	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("server.public_url", "PUBLIC_URL")
	_ = v.BindEnv("upstream.base_url", "UPSTREAM_BASE_URL")
	_ = v.BindEnv("upstream.timeout", "UPSTREAM_TIMEOUT")
	_ = v.BindEnv("upstream.page_size", "UPSTREAM_PAGE_SIZE")
	_ = v.BindEnv("upstream.rate_per_sec", "UPSTREAM_RATE_PER_SEC")
	_ = v.BindEnv("upstream.burst", "UPSTREAM_BURST")
	_ = v.BindEnv("redis.enabled", "REDIS_ENABLED")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("jobs.initial_delay", "JOBS_INITIAL_DELAY")
	_ = v.BindEnv("jobs.step_interval", "JOBS_STEP_INTERVAL")
	_ = v.BindEnv("jobs.driver", "JOBS_DRIVER")
	_ = v.BindEnv("jobs.processor", "JOBS_PROCESSOR")
	_ = v.BindEnv("ffmpeg.ffmpeg_path", "FFMPEG_PATH")
	_ = v.BindEnv("ffmpeg.ffprobe_path", "FFPROBE_PATH")
	_ = v.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = v.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = v.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = v.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = v.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = v.BindEnv("generation.background_removal_url", "BACKGROUND_REMOVAL_URL")
	_ = v.BindEnv("generation.text_to_image_url", "TEXT_TO_IMAGE_URL")
	_ = v.BindEnv("generation.text_to_speech_url", "TEXT_TO_SPEECH_URL")
	_ = v.BindEnv("generation.api_key", "GENERATION_API_KEY")
	_ = v.BindEnv("generation.timeout", "GENERATION_TIMEOUT")
	_ = v.BindEnv("placement.light_tag_height", "LIGHT_TAG_HEIGHT")
	_ = v.BindEnv("placement.placement_range", "PLACEMENT_RANGE")
	_ = v.BindEnv("placement.save_concurrency", "SAVE_CONCURRENCY")
	_ = v.BindEnv("sentry.dsn", "SENTRY_DSN")

	// Defaults
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.public_url", "")
	v.SetDefault("upstream.base_url", "http://localhost:8080/api")
	v.SetDefault("upstream.timeout", 30*time.Second)
	v.SetDefault("upstream.page_size", 200)
	v.SetDefault("upstream.rate_per_sec", 0)
	v.SetDefault("upstream.burst", 10)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jobs.initial_delay", time.Second)
	v.SetDefault("jobs.step_interval", 1500*time.Millisecond)
	v.SetDefault("jobs.driver", DriverTimer)
	v.SetDefault("jobs.processor", ProcessorSimulated)
	v.SetDefault("ffmpeg.ffmpeg_path", "ffmpeg")
	v.SetDefault("ffmpeg.ffprobe_path", "ffprobe")
	v.SetDefault("generation.timeout", 120*time.Second)
	v.SetDefault("ratelimit.jobs_per_hour", 120)
	v.SetDefault("ratelimit.upload_per_hour", 60)
	v.SetDefault("ratelimit.generate_per_min", 20)
	v.SetDefault("placement.light_tag_height", 1.6)
	v.SetDefault("placement.placement_range", 20.0)
	v.SetDefault("placement.save_concurrency", 0)

	// Try to read config file (optional)
	_ = v.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      v.GetString("server.port"),
			Env:       v.GetString("server.env"),
			LogLevel:  v.GetString("server.log_level"),
			PublicURL: strings.TrimRight(v.GetString("server.public_url"), "/"),
		},
		Upstream: UpstreamConfig{
			BaseURL:    strings.TrimRight(v.GetString("upstream.base_url"), "/"),
			Timeout:    v.GetDuration("upstream.timeout"),
			PageSize:   v.GetInt("upstream.page_size"),
			RatePerSec: v.GetFloat64("upstream.rate_per_sec"),
			Burst:      v.GetInt("upstream.burst"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Jobs: JobsConfig{
			InitialDelay: v.GetDuration("jobs.initial_delay"),
			StepInterval: v.GetDuration("jobs.step_interval"),
			Driver:       strings.ToLower(v.GetString("jobs.driver")),
			Processor:    strings.ToLower(v.GetString("jobs.processor")),
		},
		FFmpeg: FFmpegConfig{
			FFmpegPath:  v.GetString("ffmpeg.ffmpeg_path"),
			FFprobePath: v.GetString("ffmpeg.ffprobe_path"),
		},
		R2: R2Config{
			AccountID:       v.GetString("r2.account_id"),
			AccessKeyID:     v.GetString("r2.access_key_id"),
			SecretAccessKey: v.GetString("r2.secret_access_key"),
			BucketName:      v.GetString("r2.bucket_name"),
			PublicURL:       v.GetString("r2.public_url"),
		},
		Generation: GenerationConfig{
			BackgroundRemovalURL: v.GetString("generation.background_removal_url"),
			TextToImageURL:       v.GetString("generation.text_to_image_url"),
			TextToSpeechURL:      v.GetString("generation.text_to_speech_url"),
			APIKey:               v.GetString("generation.api_key"),
			Timeout:              v.GetDuration("generation.timeout"),
		},
		RateLimit: RateLimitConfig{
			JobsPerHour:    v.GetInt("ratelimit.jobs_per_hour"),
			UploadPerHour:  v.GetInt("ratelimit.upload_per_hour"),
			GeneratePerMin: v.GetInt("ratelimit.generate_per_min"),
		},
		Placement: PlacementConfig{
			LightTagHeight:  v.GetFloat64("placement.light_tag_height"),
			PlacementRange:  v.GetFloat64("placement.placement_range"),
			SaveConcurrency: v.GetInt("placement.save_concurrency"),
		},
		Sentry: SentryConfig{
			DSN: v.GetString("sentry.dsn"),
		},
	}

	return cfg, nil
}
