package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURI   string
	TelegramToken string

	AIAPIKey  string
	AIBaseURL string
	AIModel   string

	PollInterval        time.Duration
	DispatchConcurrency int
	MaxDeliveryAttempts int
	TimerHorizon        time.Duration

	RetryAttempts   int
	RetryBaseDelay  time.Duration
	DeliveryTimeout time.Duration

	BreakerThreshold int
	BreakerCooldown  time.Duration
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env file is optional in production
	}

	return &Config{
		DatabaseURI:   os.Getenv("DATABASE_URI"),
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),

		AIAPIKey:  os.Getenv("AI_API_KEY"),
		AIBaseURL: getEnvOrDefault("AI_BASE_URL", "https://openrouter.ai/api/v1"),
		AIModel:   getEnvOrDefault("AI_MODEL", "openai/gpt-4o-mini"),

		PollInterval:        getDuration("POLL_INTERVAL", time.Minute),
		DispatchConcurrency: getInt("DISPATCH_CONCURRENCY", 10),
		MaxDeliveryAttempts: getInt("MAX_DELIVERY_ATTEMPTS", 10),
		TimerHorizon:        getDuration("TIMER_HORIZON", 24*time.Hour),

		RetryAttempts:   getInt("RETRY_ATTEMPTS", 3),
		RetryBaseDelay:  getDuration("RETRY_BASE_DELAY", time.Second),
		DeliveryTimeout: getDuration("DELIVERY_TIMEOUT", 10*time.Second),

		BreakerThreshold: getInt("BREAKER_THRESHOLD", 5),
		BreakerCooldown:  getDuration("BREAKER_COOLDOWN", 30*time.Second),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
