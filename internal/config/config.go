package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App     AppConfig
	Ai      AIConfig
	Catalog CatalogConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type AIConfig struct {
	Provider        string // "openai" or "ollama"
	Model           string // e.g. "gpt-4o-mini", "llama3"
	BaseURL         string // provider endpoint override
	APIKey          string
	ClassifyTimeout int // seconds; bounded wait on the classification call
}

type CatalogConfig struct {
	FilePath string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
		},
		Ai: AIConfig{
			Provider:        getEnv("LLM_PROVIDER", "ollama"),
			Model:           getEnv("LLM_MODEL", "llama3"),
			BaseURL:         getEnv("LLM_BASE_URL", ""),
			APIKey:          getEnv("LLM_API_KEY", ""),
			ClassifyTimeout: getEnvAsInt("CLASSIFY_TIMEOUT_SECONDS", 20),
		},
		Catalog: CatalogConfig{
			FilePath: getEnv("CONNECTOR_CATALOG_PATH", "config/connectors.json"),
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
