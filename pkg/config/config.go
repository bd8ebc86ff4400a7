package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Qdrant    QdrantConfig
	WebSearch WebSearchConfig
	LLM       LLMConfig
	Embedding EmbeddingConfig
	Retrieval RetrievalConfig
	Synthesis SynthesisConfig
	OTEL      OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host        string
	Port        int
	Environment string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int

	// FactSheetTTL bounds how long a patient fact sheet may be reused.
	FactSheetTTL time.Duration
}

// QdrantConfig holds the vector knowledge index configuration
type QdrantConfig struct {
	Host string
	Port int
}

// WebSearchConfig holds live search gateway configuration. The per-query
// result cap lives in RetrievalConfig with the other retrieval knobs.
type WebSearchConfig struct {
	Enabled bool
	APIKey  string
	BaseURL string
}

// LLMConfig holds LLM provider configuration.
// Provider selects the completion backend at startup: "openai", "anthropic"
// or "mock". Nothing past construction branches on this value.
type LLMConfig struct {
	Provider       string
	OpenAIAPIKey   string
	OpenAIModel    string
	AnthropicKey   string
	AnthropicModel string
	MaxTokens      int
	RateLimitRPM   int
	RateLimitBurst int
}

// EmbeddingConfig holds embedding service configuration. Embedding calls
// authenticate with the OpenAI key from LLMConfig.
type EmbeddingConfig struct {
	Model     string
	Dimension int
}

// RetrievalConfig holds retrieval coordinator configuration
type RetrievalConfig struct {
	// BaseTimeout is the per-source timeout at low urgency; higher urgency
	// tiers scale it down.
	BaseTimeout     time.Duration
	PerNamespaceK   int
	WebMaxResults   int
	TokenBudget     int
	RecentRecordsN  int
	TopConditionsK  int
	TopMedicationsK int
}

// SynthesisConfig holds synthesis engine configuration
type SynthesisConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables.
// A .env file in the working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        getEnvAsInt("SERVER_PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "clinical_support"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvAsInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			FactSheetTTL: getEnvAsDuration("REDIS_FACT_SHEET_TTL", 2*time.Minute),
		},
		Qdrant: QdrantConfig{
			Host: getEnv("QDRANT_HOST", "localhost"),
			Port: getEnvAsInt("QDRANT_PORT", 6334),
		},
		WebSearch: WebSearchConfig{
			Enabled: getEnvAsBool("WEB_SEARCH_ENABLED", true),
			APIKey:  getEnv("TAVILY_API_KEY", ""),
			BaseURL: getEnv("TAVILY_BASE_URL", "https://api.tavily.com"),
		},
		LLM: LLMConfig{
			Provider:       strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
			OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			AnthropicKey:   getEnv("ANTHROPIC_API_KEY", ""),
			AnthropicModel: getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
			MaxTokens:      getEnvAsInt("LLM_MAX_TOKENS", 1024),
			RateLimitRPM:   getEnvAsInt("LLM_RATE_LIMIT_RPM", 60),
			RateLimitBurst: getEnvAsInt("LLM_RATE_LIMIT_BURST", 5),
		},
		Embedding: EmbeddingConfig{
			Model:     getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimension: getEnvAsInt("EMBEDDING_DIMENSION", 1536),
		},
		Retrieval: RetrievalConfig{
			BaseTimeout:     getEnvAsDuration("RETRIEVAL_BASE_TIMEOUT", 10*time.Second),
			PerNamespaceK:   getEnvAsInt("RETRIEVAL_PER_NAMESPACE_K", 5),
			WebMaxResults:   getEnvAsInt("RETRIEVAL_WEB_MAX_RESULTS", 3),
			TokenBudget:     getEnvAsInt("RETRIEVAL_TOKEN_BUDGET", 3000),
			RecentRecordsN:  getEnvAsInt("FACT_SHEET_RECENT_RECORDS", 10),
			TopConditionsK:  getEnvAsInt("FACT_SHEET_TOP_CONDITIONS", 3),
			TopMedicationsK: getEnvAsInt("FACT_SHEET_TOP_MEDICATIONS", 5),
		},
		Synthesis: SynthesisConfig{
			MaxAttempts:  getEnvAsInt("SYNTHESIS_MAX_ATTEMPTS", 3),
			InitialDelay: getEnvAsDuration("SYNTHESIS_RETRY_DELAY", 500*time.Millisecond),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "clinical-decision-support"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LLM.Provider {
	case "openai", "anthropic", "mock":
	default:
		return fmt.Errorf("unsupported LLM provider %q", c.LLM.Provider)
	}
	if c.Retrieval.TokenBudget <= 0 {
		return fmt.Errorf("retrieval token budget must be positive, got %d", c.Retrieval.TokenBudget)
	}
	if c.Synthesis.MaxAttempts <= 0 {
		return fmt.Errorf("synthesis max attempts must be positive, got %d", c.Synthesis.MaxAttempts)
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// QdrantAddr returns the Qdrant gRPC address
func (c *QdrantConfig) QdrantAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
