package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Corpus and state
	CorpusRoot string
	MongoURI   string
	DBName     string

	// Redis (asynq queue + metadata cache)
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Search cluster
	OpenSearchURL   string
	OpenSearchUser  string
	OpenSearchPass  string
	OpenSearchIndex string
	SearchTimeout   time.Duration

	// OCR service
	OCRServiceURL          string
	OCRTimeout             time.Duration
	OCRConfidenceThreshold float64

	// Embeddings
	GeminiAPIKey    string
	EmbeddingsModel string
	VectorDim       int
	EmbedMaxRetries int

	// Reranker (cross-encoder service); empty disables relevance reranking
	RerankerURL string

	// Workers and scheduling
	WorkerConcurrency int
	ScanInterval      time.Duration

	// HTTP
	Port            string
	GinMode         string
	CORSOrigins     []string
	RateLimitReqs   int
	RateLimitWindow int

	LogLevel string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		CorpusRoot: getEnv("CORPUS_ROOT", "./corpus"),
		MongoURI:   getEnv("MONGO_URI", "mongodb://localhost:27017/discourse_search"),
		DBName:     getEnv("DB_NAME", "discourse_search"),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		OpenSearchURL:   getEnv("OPENSEARCH_URL", "http://localhost:9200"),
		OpenSearchUser:  getEnv("OPENSEARCH_USER", ""),
		OpenSearchPass:  getEnv("OPENSEARCH_PASS", ""),
		OpenSearchIndex: getEnv("OPENSEARCH_INDEX", "discourse_chunks"),
		SearchTimeout:   getEnvDuration("SEARCH_TIMEOUT", 10*time.Second),

		OCRServiceURL:          getEnv("OCR_SERVICE_URL", "http://localhost:8001"),
		OCRTimeout:             getEnvDuration("OCR_TIMEOUT", 5*time.Minute),
		OCRConfidenceThreshold: getEnvFloat64("OCR_CONFIDENCE_THRESHOLD", 0.7),

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		EmbeddingsModel: getEnv("EMBEDDINGS_MODEL", "text-embedding-004"),
		VectorDim:       getEnvInt("VECTOR_DIM", 768),
		EmbedMaxRetries: getEnvInt("EMBED_MAX_RETRIES", 5),

		RerankerURL: getEnv("RERANKER_URL", ""),

		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 4),
		ScanInterval:      getEnvDuration("SCAN_INTERVAL", time.Hour),

		Port:            getEnv("PORT", "8080"),
		GinMode:         getEnv("GIN_MODE", "debug"),
		CORSOrigins:     strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),
		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	// Validate required fields
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	if cfg.VectorDim <= 0 {
		return nil, fmt.Errorf("VECTOR_DIM must be positive, got %d", cfg.VectorDim)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		// Bare integers are seconds
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
