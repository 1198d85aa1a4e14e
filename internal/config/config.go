package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kapu/pizzabot-go/pkg/errors"
)

type Config struct {
	Gateway   GatewayConfig
	NLP       NLPConfig
	Knowledge KnowledgeConfig
	Redis     RedisConfig
	Postgres  PostgresConfig
	Gemini    GeminiConfig
	OpenAI    OpenAIConfig
	Order     OrderConfig
	Logging   LoggingConfig
	Bot       BotConfig
}

type GatewayConfig struct {
	BaseURL string
	WSURL   string
}

type NLPConfig struct {
	BaseURL string
}

type KnowledgeConfig struct {
	BaseURL  string
	Language string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

type GeminiConfig struct {
	APIKey string
}

type OpenAIConfig struct {
	APIKey         string
	EnableFallback bool
}

// OrderConfig carries the ordering-flow policy knobs. The similarity
// threshold and the modifier window are empirical values; they are kept
// configurable rather than hard-coded.
type OrderConfig struct {
	ProductNoun    string
	ProductLemmas  []string
	IntentVerbs    []string
	IntentPhrases  []string
	MatchThreshold float64
	ModifierWindow int
	MinQuantity    int
	MaxQuantity    int
}

type LoggingConfig struct {
	Level string
	File  string
}

type BotConfig struct {
	Prefix  string
	Workers int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Gateway: GatewayConfig{
			BaseURL: getEnv("GATEWAY_BASE_URL", "http://localhost:3000"),
			WSURL:   getEnv("GATEWAY_WS_URL", "ws://localhost:3000/ws"),
		},
		NLP: NLPConfig{
			BaseURL: getEnv("NLP_BASE_URL", "http://localhost:8600"),
		},
		Knowledge: KnowledgeConfig{
			BaseURL:  getEnv("WIKIPEDIA_BASE_URL", "https://en.wikipedia.org"),
			Language: getEnv("WIKIPEDIA_LANG", "en"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Postgres: PostgresConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "pizzabot"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			Database: getEnv("POSTGRES_DB", "pizzabot"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Gemini: GeminiConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
		},
		OpenAI: OpenAIConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			EnableFallback: getEnvBool("OPENAI_ENABLE_FALLBACK", true),
		},
		Order: OrderConfig{
			ProductNoun:    getEnv("ORDER_PRODUCT_NOUN", "pizza"),
			ProductLemmas:  parseCommaSeparated(getEnv("ORDER_PRODUCT_LEMMAS", "pizza,pizzas")),
			IntentVerbs:    parseCommaSeparated(getEnv("ORDER_INTENT_VERBS", "want,would,like,need,order,get")),
			IntentPhrases:  defaultIntentPhrases(getEnv("ORDER_INTENT_PHRASES", "")),
			MatchThreshold: getEnvFloat("ORDER_MATCH_THRESHOLD", 0.88),
			ModifierWindow: getEnvInt("ORDER_MODIFIER_WINDOW", 2),
			MinQuantity:    getEnvInt("ORDER_MIN_QUANTITY", 1),
			MaxQuantity:    getEnvInt("ORDER_MAX_QUANTITY", 10),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
		Bot: BotConfig{
			Prefix:  getEnv("BOT_PREFIX", "/"),
			Workers: getEnvInt("BOT_WORKERS", 8),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Gateway.BaseURL == "" {
		return errors.NewValidationError("GATEWAY_BASE_URL is required", "GATEWAY_BASE_URL", c.Gateway.BaseURL)
	}
	if c.Gateway.WSURL == "" {
		return errors.NewValidationError("GATEWAY_WS_URL is required", "GATEWAY_WS_URL", c.Gateway.WSURL)
	}
	if c.NLP.BaseURL == "" {
		return errors.NewValidationError("NLP_BASE_URL is required", "NLP_BASE_URL", c.NLP.BaseURL)
	}
	if c.Order.ProductNoun == "" {
		return errors.NewValidationError("ORDER_PRODUCT_NOUN is required", "ORDER_PRODUCT_NOUN", c.Order.ProductNoun)
	}
	if c.Order.MatchThreshold <= 0 || c.Order.MatchThreshold > 1 {
		return errors.NewValidationError("ORDER_MATCH_THRESHOLD must be in (0, 1]", "ORDER_MATCH_THRESHOLD", c.Order.MatchThreshold)
	}
	if c.Order.MinQuantity < 1 || c.Order.MaxQuantity < c.Order.MinQuantity {
		return errors.NewValidationError("quantity bounds must satisfy 1 <= min <= max", "ORDER_MIN_QUANTITY", c.Order.MinQuantity)
	}
	return nil
}

func defaultIntentPhrases(override string) []string {
	if override != "" {
		return parseCommaSeparated(override)
	}
	return []string{
		"i want a pizza",
		"i want some pizza",
		"i would like a pizza",
		"i need a pizza",
		"i'd like a pizza",
		"i want pizza",
		"i would like pizza",
		"i need pizza",
		"i'd like pizza",
		"can i get a pizza",
		"can i have a pizza",
		"order pizza",
		"get pizza",
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func parseCommaSeparated(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
