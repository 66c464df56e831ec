package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Ai       AIConfig
	Broker   BrokerConfig
	Research ResearchConfig
	Services ServiceEndpoints
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type AIConfig struct {
	OllamaBaseURL string
	OllamaModel   string
}

type BrokerConfig struct {
	MaxRetries  int
	BatchSize   int
	CallTimeout time.Duration
	CacheTTL    time.Duration
}

type ResearchConfig struct {
	// Sources crawled during the research stage, comma separated in env.
	Sources []string
}

// ServiceEndpoints points at the downstream workers the workflow drives.
type ServiceEndpoints struct {
	CrawlerURL       string
	CodeDeveloperURL string
	DocGeneratorURL  string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Ai: AIConfig{
			OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:   getEnv("OLLAMA_MODEL", "llama3"),
		},
		Broker: BrokerConfig{
			MaxRetries:  getEnvAsInt("BROKER_MAX_RETRIES", 3),
			BatchSize:   getEnvAsInt("BROKER_BATCH_SIZE", 4),
			CallTimeout: getEnvAsDuration("BROKER_CALL_TIMEOUT", 5*time.Minute),
			CacheTTL:    getEnvAsDuration("BROKER_CACHE_TTL", time.Hour),
		},
		Research: ResearchConfig{
			Sources: getEnvAsList("RESEARCH_SOURCES", []string{"arxiv", "scholar", "semantic"}),
		},
		Services: ServiceEndpoints{
			CrawlerURL:       getEnv("CRAWLER_SERVICE_URL", "http://localhost:5001"),
			CodeDeveloperURL: getEnv("CODE_DEVELOPER_SERVICE_URL", "http://localhost:5002"),
			DocGeneratorURL:  getEnv("DOC_GENERATOR_SERVICE_URL", "http://localhost:5003"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	parts := strings.Split(strValue, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
