package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all companion configuration
type Config struct {
	// Remote pet backend
	Gateway struct {
		URL     string
		Timeout time.Duration
		// APIKeyName is the secret key resolved through the secrets manager
		APIKeyName string
	}

	// Loopback control surface
	Server struct {
		ListenAddr     string
		Env            string
		RateLimit      float64
		RateLimitBurst int
		MaxUploadSize  int64
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Observability
	Telemetry struct {
		MetricsAddr   string
		EnableTracing bool
		ServiceName   string
	}

	// Pet behaviour calibration
	Pet struct {
		OverrideDuration  time.Duration
		LowStatThreshold  float64
		HungerThreshold   float64
		ChatHistoryWindow int
	}

	// Proactive reminders
	Reminders struct {
		Enabled     bool
		MinInterval time.Duration
		MaxInterval time.Duration
		MinSpacing  time.Duration
	}

	// Audio output
	Audio struct {
		PlayerCommand []string
		TempDir       string
		// Breaker settings for best-effort speech synthesis
		BreakerFailures uint
		BreakerCooldown time.Duration
	}

	// Shop catalog cache
	Cache struct {
		ShopTTL time.Duration
	}

	// Vault-backed secrets
	Vault struct {
		Enabled     bool
		Address     string
		Token       string
		Namespace   string
		SecretsPath string
		Timeout     time.Duration
	}
}

var (
	instance *Config
	once     sync.Once
)

// New returns the process-wide Config, loading it on first use
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		_ = godotenv.Load()
		instance = Load()
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Load reads a fresh Config from the environment
func Load() *Config {
	cfg := &Config{}

	cfg.Gateway.URL = strings.TrimRight(getEnvString("GATEWAY_URL", "http://localhost:8000"), "/")
	cfg.Gateway.Timeout = getEnvDuration("GATEWAY_TIMEOUT", 60*time.Second)
	cfg.Gateway.APIKeyName = getEnvString("GATEWAY_API_KEY_NAME", "gateway-api-key")

	cfg.Server.ListenAddr = getEnvString("LISTEN_ADDR", "127.0.0.1:8787")
	cfg.Server.Env = getEnvString("APP_ENV", "development")
	cfg.Server.RateLimit = getEnvFloat("RATE_LIMIT", 10)
	cfg.Server.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 20)
	cfg.Server.MaxUploadSize = getEnvInt64("MAX_UPLOAD_SIZE", 10<<20) // 10MB

	cfg.Logging.Level = getEnvString("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnvString("LOG_FORMAT", "text")

	cfg.Telemetry.MetricsAddr = getEnvString("METRICS_ADDR", "")
	cfg.Telemetry.EnableTracing = getEnvBool("ENABLE_TRACING", false)
	cfg.Telemetry.ServiceName = getEnvString("SERVICE_NAME", "talking-pet-companion")

	cfg.Pet.OverrideDuration = getEnvDuration("OVERRIDE_DURATION", 6*time.Second)
	cfg.Pet.LowStatThreshold = getEnvFloat("LOW_STAT_THRESHOLD", 30)
	cfg.Pet.HungerThreshold = getEnvFloat("HUNGER_THRESHOLD", 30)
	cfg.Pet.ChatHistoryWindow = getEnvInt("CHAT_HISTORY_WINDOW", 12)

	cfg.Reminders.Enabled = getEnvBool("ENABLE_REMINDERS", true)
	cfg.Reminders.MinInterval = getEnvDuration("REMINDER_MIN_INTERVAL", 20*time.Second)
	cfg.Reminders.MaxInterval = getEnvDuration("REMINDER_MAX_INTERVAL", 50*time.Second)
	cfg.Reminders.MinSpacing = getEnvDuration("REMINDER_MIN_SPACING", 20*time.Second)
	if cfg.Reminders.MaxInterval < cfg.Reminders.MinInterval {
		cfg.Reminders.MaxInterval = cfg.Reminders.MinInterval
	}

	cfg.Audio.PlayerCommand = strings.Fields(getEnvString("AUDIO_PLAYER_CMD", ""))
	cfg.Audio.TempDir = getEnvString("AUDIO_TEMP_DIR", os.TempDir())
	cfg.Audio.BreakerFailures = uint(getEnvInt("SPEECH_BREAKER_FAILURES", 5))
	cfg.Audio.BreakerCooldown = getEnvDuration("SPEECH_BREAKER_COOLDOWN", 60*time.Second)

	cfg.Cache.ShopTTL = getEnvDuration("SHOP_CACHE_TTL", 5*time.Minute)

	cfg.Vault.Enabled = getEnvBool("VAULT_ENABLED", false)
	cfg.Vault.Address = getEnvString("VAULT_ADDR", "")
	cfg.Vault.Token = getEnvString("VAULT_TOKEN", "")
	cfg.Vault.Namespace = getEnvString("VAULT_NAMESPACE", "")
	cfg.Vault.SecretsPath = getEnvString("VAULT_SECRETS_PATH", "talking-pet")
	cfg.Vault.Timeout = getEnvDuration("VAULT_TIMEOUT", 10*time.Second)

	return cfg
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
