package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Gemini AI
	GeminiAPIKey         string
	GeminiModel          string
	GeminiTemperature    float64
	GeminiRequestsPerMin int
	GeminiConcurrentReqs int
	GeminiTimeoutSeconds int

	// Redis (optional, schema discovery target)
	RedisURL           string
	DiscoveryScanLimit int

	// Sessions
	SessionSecret          string
	SessionTTLMinutes      int
	MaxSessions            int
	SendRateLimit          int
	SessionCreateRateLimit int

	// Turn dispatcher
	WorkerCount     int
	WorkerQueueSize int

	// Examples
	ExamplesFile string

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port: getEnvOrDefault("PORT", "8080"),
		Env:  getEnvOrDefault("ENV", "development"),
		// A missing key is reported per turn by the generation client, not at boot.
		GeminiAPIKey:         getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-3-pro-preview"),
		GeminiTemperature:    getEnvAsFloatOrDefault("GEMINI_TEMPERATURE", 0.2),
		GeminiRequestsPerMin: getEnvAsIntOrDefault("GEMINI_REQUESTS_PER_MINUTE", 60),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		GeminiTimeoutSeconds: getEnvAsIntOrDefault("GEMINI_TIMEOUT_SECONDS", 60),
		RedisURL:             getEnvOrDefault("REDIS_URL", ""),
		DiscoveryScanLimit:   getEnvAsIntOrDefault("DISCOVERY_SCAN_LIMIT", 500),
		SessionSecret:        getEnvOrDefault("SESSION_SECRET", ""),
		SessionTTLMinutes:    getEnvAsIntOrDefault("SESSION_TTL_MINUTES", 120),
		MaxSessions:          getEnvAsIntOrDefault("MAX_SESSIONS", 1000),
		SendRateLimit:        getEnvAsIntOrDefault("SEND_RATE_LIMIT", 20),
		WorkerCount:          getEnvAsIntOrDefault("WORKER_COUNT", 4),
		WorkerQueueSize:      getEnvAsIntOrDefault("WORKER_QUEUE_SIZE", 64),
		ExamplesFile:         getEnvOrDefault("EXAMPLES_FILE", ""),
		FrontendURL:          getEnvOrDefault("FRONTEND_URL", "http://localhost:8080"),

		// Per client address, covers both GET / and POST /api/v1/sessions.
		SessionCreateRateLimit: getEnvAsIntOrDefault("SESSION_CREATE_RATE_LIMIT", 10),
	}

	if cfg.SessionSecret == "" {
		cfg.SessionSecret = randomSecret()
	}

	return cfg
}

// DiscoveryEnabled reports whether a live Redis target was configured.
func (c *Config) DiscoveryEnabled() bool {
	return c.RedisURL != ""
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

// randomSecret is used when SESSION_SECRET is unset. Sessions live in memory,
// so tokens signed with it die with the process anyway.
func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("failed to generate session secret: " + err.Error())
	}
	return hex.EncodeToString(b)
}
