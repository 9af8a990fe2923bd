package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	OpenAI        OpenAIConfig
	Pinecone      PineconeConfig
	Pipeline      PipelineConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// OpenAIConfig holds OpenAI provider configuration (chat + embeddings)
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	Temperature    float64
	Timeout        time.Duration
}

// PineconeConfig holds Pinecone vector store configuration
type PineconeConfig struct {
	APIKey     string
	IndexHost  string
	Timeout    time.Duration
	MaxRetries int
}

// PipelineConfig holds defaults for the generation pipeline
type PipelineConfig struct {
	// DefaultNamespace is the vector store partition used when a request
	// leaves the namespace empty. Deliberate convention, not an accident;
	// every optional-namespace surface resolves to this same value.
	DefaultNamespace string

	// TopK is the number of nearest neighbors fetched during retrieval
	TopK int

	// StreamTimeout bounds the essay streaming endpoint before the
	// cancellation token fires
	StreamTimeout time.Duration

	// ChunkSize and ChunkOverlap control document splitting at ingestion
	ChunkSize    int
	ChunkOverlap int
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or text
}

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	// Load .env if present
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("PORT", 5000),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		OpenAI: OpenAIConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			BaseURL:        getEnv("OPENAI_BASE_URL", ""),
			Model:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			EmbeddingModel: getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			Temperature:    getEnvAsFloat("OPENAI_TEMPERATURE", 0.7),
			Timeout:        getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
		},
		Pinecone: PineconeConfig{
			APIKey:     getEnv("PINECONE_API_KEY", ""),
			IndexHost:  getEnv("PINECONE_INDEX_HOST", ""),
			Timeout:    getEnvAsDuration("PINECONE_TIMEOUT", 30*time.Second),
			MaxRetries: getEnvAsInt("PINECONE_MAX_RETRIES", 3),
		},
		Pipeline: PipelineConfig{
			DefaultNamespace: getEnv("PIPELINE_DEFAULT_NAMESPACE", "default"),
			TopK:             getEnvAsInt("PIPELINE_TOP_K", 3),
			StreamTimeout:    getEnvAsDuration("PIPELINE_STREAM_TIMEOUT", 2*time.Second),
			ChunkSize:        getEnvAsInt("PIPELINE_CHUNK_SIZE", 200),
			ChunkOverlap:     getEnvAsInt("PIPELINE_CHUNK_OVERLAP", 50),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required in production")
		}
		if c.Pinecone.APIKey == "" {
			return fmt.Errorf("PINECONE_API_KEY is required in production")
		}
		if c.Pinecone.IndexHost == "" {
			return fmt.Errorf("PINECONE_INDEX_HOST is required in production")
		}
	}

	if c.Pipeline.TopK < 0 {
		return fmt.Errorf("PIPELINE_TOP_K must be >= 0")
	}
	if c.Pipeline.DefaultNamespace == "" {
		return fmt.Errorf("PIPELINE_DEFAULT_NAMESPACE must not be empty")
	}
	if c.Pipeline.ChunkOverlap >= c.Pipeline.ChunkSize {
		return fmt.Errorf("PIPELINE_CHUNK_OVERLAP must be smaller than PIPELINE_CHUNK_SIZE")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
