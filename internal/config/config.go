package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration for the pipeline server
type Config struct {
	// Document store
	MongoURI string
	MongoDB  string

	// Content classification
	GeminiAPIKey      string
	GeminiModel       string
	ClassifierTimeout time.Duration

	// Object store (post photos)
	AWSRegion string
	AWSBucket string

	// Ops HTTP surface
	Port string

	// Logging
	LogLevel string
	LogFile  string

	// Tracing
	OTLPEndpoint   string
	TracingEnabled bool
	Environment    string
}

// Load reads configuration from environment variables.
// REQUIRED environment variables:
// - MONGO_URI: MongoDB connection string
// GEMINI_API_KEY is required by the pipeline server but not by the
// seeding tool, so the server validates it at startup instead.
func Load() (*Config, error) {
	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		return nil, fmt.Errorf("MONGO_URI environment variable not set")
	}

	cfg := &Config{
		MongoURI:          mongoURI,
		MongoDB:           getEnv("MONGO_DB", "plume"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		ClassifierTimeout: getDuration("CLASSIFIER_TIMEOUT", 10*time.Second),
		AWSRegion:         getEnv("AWS_REGION", "us-east-1"),
		AWSBucket:         os.Getenv("AWS_BUCKET"),
		Port:              getEnv("PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFile:           getEnv("LOG_FILE", "pipeline.log"),
		OTLPEndpoint:      getEnv("OTLP_ENDPOINT", "localhost:4318"),
		TracingEnabled:    getBool("TRACING_ENABLED", false),
		Environment:       getEnv("ENVIRONMENT", "development"),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
