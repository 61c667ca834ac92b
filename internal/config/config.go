// Package config provides environment configuration for the API server.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Database settings
	DatabaseDSN string

	// NATS settings
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// JWT settings
	JWTSecret string

	// Business timezone: fixed offset from UTC in minutes. Never derived
	// from the server's local zone.
	BusinessUTCOffsetMinutes int

	// Conversation memory settings
	MemoryWindow       int // messages loaded per turn
	SummarizeThreshold int // message count that triggers summarization
	MessagesToKeep     int // recent tail preserved by summarization

	// Retrieval settings
	PineconeBaseURL    string
	PineconeAPIVersion string
	RetrievalTopK      int
	RetrievalMinScore  float64
	RetrievalTimeout   time.Duration

	// Calendar provider
	CalendarBaseURL string

	// External call timeouts
	LLMTimeout      time.Duration
	CalendarTimeout time.Duration
	SearchTimeout   time.Duration

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),

		// Database
		DatabaseDSN: getEnv("DATABASE_DSN", "postgres://localhost:5432/solacrm?sslmode=disable"),

		// NATS
		NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "development-secret-change-in-production"),

		// Business timezone, default UTC+05:30
		BusinessUTCOffsetMinutes: getIntEnv("BUSINESS_UTC_OFFSET_MINUTES", 330),

		// Conversation memory
		MemoryWindow:       getIntEnv("AI_MEMORY_WINDOW", 40),
		SummarizeThreshold: getIntEnv("AI_SUMMARIZE_THRESHOLD", 30),
		MessagesToKeep:     getIntEnv("AI_MESSAGES_TO_KEEP", 25),

		// Retrieval
		PineconeBaseURL:    getEnv("PINECONE_BASE_URL", "https://api.pinecone.io"),
		PineconeAPIVersion: getEnv("PINECONE_API_VERSION", "2024-10"),
		RetrievalTopK:      getIntEnv("RETRIEVAL_TOP_K", 5),
		RetrievalMinScore:  getFloatEnv("RETRIEVAL_MIN_SCORE", 0.35),
		RetrievalTimeout:   getDurationEnv("RETRIEVAL_TIMEOUT", 10*time.Second),

		// Calendar
		CalendarBaseURL: getEnv("CALENDAR_BASE_URL", ""),

		// Timeouts
		LLMTimeout:      getDurationEnv("LLM_TIMEOUT", 90*time.Second),
		CalendarTimeout: getDurationEnv("CALENDAR_TIMEOUT", 10*time.Second),
		SearchTimeout:   getDurationEnv("SEARCH_TIMEOUT", 8*time.Second),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// Validate checks invariants between related settings.
func (c *Config) Validate() error {
	if c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required")
	}
	if c.SummarizeThreshold >= c.MemoryWindow {
		return fmt.Errorf("AI_SUMMARIZE_THRESHOLD (%d) must be below AI_MEMORY_WINDOW (%d)",
			c.SummarizeThreshold, c.MemoryWindow)
	}
	if c.MessagesToKeep >= c.SummarizeThreshold {
		return fmt.Errorf("AI_MESSAGES_TO_KEEP (%d) must be below AI_SUMMARIZE_THRESHOLD (%d)",
			c.MessagesToKeep, c.SummarizeThreshold)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
