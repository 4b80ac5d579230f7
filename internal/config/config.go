package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       App       `mapstructure:"app"`
	Server    Server    `mapstructure:"server"`
	Store     Store     `mapstructure:"store"`
	Blob      Blob      `mapstructure:"blob"`
	News      News      `mapstructure:"news"`
	Community Community `mapstructure:"community"`
	Gemini    Gemini    `mapstructure:"gemini"`
	TTS       TTS       `mapstructure:"tts"`
	Push      Push      `mapstructure:"push"`
	Scheduler Scheduler `mapstructure:"scheduler"`
}

// App holds general application configuration.
type App struct {
	Env      string `mapstructure:"env"` // "development" or "production"
	LogLevel string `mapstructure:"log_level"`
}

// Server holds HTTP server configuration.
type Server struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
}

// Store holds document store (Postgres) configuration.
type Store struct {
	DSN          string        `mapstructure:"dsn"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	ConnLifetime time.Duration `mapstructure:"conn_lifetime"`
}

// Blob holds object store (S3) configuration.
type Blob struct {
	Bucket string `mapstructure:"bucket"`
	Region string `mapstructure:"region"`
}

// News holds news search provider configuration.
type News struct {
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
	Country string        `mapstructure:"country"`
}

// Community holds community forum client configuration.
type Community struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// Gemini holds LLM configuration.
type Gemini struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// TTS holds text-to-speech configuration.
type TTS struct {
	APIKey       string        `mapstructure:"api_key"`
	DefaultVoice string        `mapstructure:"default_voice"`
	ModelID      string        `mapstructure:"model_id"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// Push holds push notification (FCM) configuration.
type Push struct {
	ProjectID       string        `mapstructure:"project_id"`
	CredentialsFile string        `mapstructure:"credentials_file"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// Scheduler holds update scheduler configuration.
type Scheduler struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
	MaxWorkers   int           `mapstructure:"max_workers"`
	Timezone     string        `mapstructure:"timezone"`
}

// Dev fallback keys let the pipeline run locally without a populated
// environment. They are refused when app.env is "production".
const (
	devNewsAPIKey = "dev-serpapi-key"
	devLLMAPIKey  = "dev-gemini-key"
	devTTSAPIKey  = "dev-elevenlabs-key"
)

// Load reads configuration from .env, a config file if present, and the
// environment, applies defaults, and validates the result.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	v := viper.GetViper()
	setDefaults(v)
	bindEnvironment(v)

	v.SetConfigName(".aifeed")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyFallbacks(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 16*time.Minute) // update_endpoint runs the full pipeline inline
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("store.max_open_conns", 25)
	v.SetDefault("store.max_idle_conns", 5)
	v.SetDefault("store.conn_lifetime", 5*time.Minute)

	v.SetDefault("blob.region", "us-east-1")

	v.SetDefault("news.timeout", 30*time.Second)
	v.SetDefault("news.country", "us")
	v.SetDefault("community.timeout", 10*time.Second)

	v.SetDefault("gemini.model", "gemini-flash-lite-latest")
	v.SetDefault("gemini.timeout", 60*time.Second)

	v.SetDefault("tts.default_voice", "21m00Tcm4TlvDq8ikWAM")
	v.SetDefault("tts.model_id", "eleven_multilingual_v2")
	v.SetDefault("tts.timeout", 120*time.Second)

	v.SetDefault("push.timeout", 10*time.Second)

	v.SetDefault("scheduler.tick_interval", 15*time.Minute)
	v.SetDefault("scheduler.max_workers", 4)
	v.SetDefault("scheduler.timezone", "Local")
}

func bindEnvironment(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider keys keep their conventional variable names.
	_ = v.BindEnv("app.env", "AIFEED_ENV")
	_ = v.BindEnv("news.api_key", "SERPAPI_API_KEY")
	_ = v.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	_ = v.BindEnv("tts.api_key", "ELEVENLABS_API_KEY")
	_ = v.BindEnv("store.dsn", "DATABASE_URL")
	_ = v.BindEnv("blob.bucket", "AIFEED_BUCKET")
	_ = v.BindEnv("blob.region", "AWS_REGION")
	_ = v.BindEnv("push.project_id", "FCM_PROJECT_ID")
	_ = v.BindEnv("push.credentials_file", "GOOGLE_APPLICATION_CREDENTIALS")
}

// applyFallbacks fills in dev API keys outside production.
func applyFallbacks(cfg *Config) {
	if cfg.IsProduction() {
		return
	}
	if cfg.News.APIKey == "" {
		cfg.News.APIKey = devNewsAPIKey
	}
	if cfg.Gemini.APIKey == "" {
		cfg.Gemini.APIKey = devLLMAPIKey
	}
	if cfg.TTS.APIKey == "" {
		cfg.TTS.APIKey = devTTSAPIKey
	}
}

// IsProduction reports whether the app runs with production hardening.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production")
}

// Validate checks that required settings are present. In production the dev
// fallback keys are rejected so a misconfigured deploy fails fast.
func (c *Config) Validate() error {
	if c.IsProduction() {
		for name, key := range map[string]string{
			"SERPAPI_API_KEY":    c.News.APIKey,
			"GEMINI_API_KEY":     c.Gemini.APIKey,
			"ELEVENLABS_API_KEY": c.TTS.APIKey,
		} {
			if key == "" || strings.HasPrefix(key, "dev-") {
				return fmt.Errorf("%s must be set in production", name)
			}
		}
		if c.Store.DSN == "" {
			return fmt.Errorf("DATABASE_URL must be set in production")
		}
	}
	if c.Scheduler.TickInterval <= 0 {
		return fmt.Errorf("scheduler tick_interval must be positive")
	}
	if c.Scheduler.MaxWorkers <= 0 {
		return fmt.Errorf("scheduler max_workers must be positive")
	}
	return nil
}
