package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ErrInvalid is returned when an environment value cannot be parsed or is out of range
var ErrInvalid = errors.New("invalid configuration")

// Config is the process configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	LLM       LLMConfig
	Embedding EmbeddingConfig
	Analysis  AnalysisConfig
	RAG       RAGConfig
	RulesFile string
	LogMode   string
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Port string
}

// DatabaseConfig holds connection strings for Postgres and Redis
type DatabaseConfig struct {
	URL      string
	RedisURL string
}

// LLMConfig holds the completion model settings
type LLMConfig struct {
	APIKey string
	Model  string
}

// EmbeddingConfig holds the embedding model settings
type EmbeddingConfig struct {
	APIKey   string
	Model    string
	CacheTTL time.Duration
}

// AnalysisConfig holds conflict engine tuning
type AnalysisConfig struct {
	RetrievalThreshold float64
	RetrievalTimeout   time.Duration
	RuleLookupTimeout  time.Duration
	MaxConcurrentPairs int
}

// RAGConfig holds retrieval and ingestion settings
type RAGConfig struct {
	TopK          int
	MinSimilarity float64
	ChunkSize     int
	ChunkOverlap  int
}

// DefaultConfig returns the configuration used when no environment overrides are set
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080"},
		LLM: LLMConfig{
			Model: "claude-3-5-haiku-latest",
		},
		Embedding: EmbeddingConfig{
			Model:    "openai/text-embedding-3-small",
			CacheTTL: 24 * time.Hour,
		},
		Analysis: AnalysisConfig{
			RetrievalThreshold: 0.6,
			RetrievalTimeout:   10 * time.Second,
			RuleLookupTimeout:  2 * time.Second,
			MaxConcurrentPairs: 5,
		},
		RAG: RAGConfig{
			TopK:          5,
			MinSimilarity: 0.7,
			ChunkSize:     1000,
			ChunkOverlap:  200,
		},
		LogMode: "development",
	}
}

// Load reads an optional .env file, then applies environment overrides to the defaults
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	cfg := DefaultConfig()
	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFromEnv() error {
	setString(&c.Server.Port, "PORT")
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Database.RedisURL, "REDIS_URL")
	setString(&c.LLM.APIKey, "ANTHROPIC_API_KEY")
	setString(&c.LLM.Model, "LLM_MODEL")
	setString(&c.Embedding.APIKey, "OPENROUTER_API_KEY")
	setString(&c.Embedding.Model, "EMBEDDING_MODEL")
	setString(&c.RulesFile, "RULES_FILE")
	setString(&c.LogMode, "LOG_MODE")

	if err := setFloat(&c.Analysis.RetrievalThreshold, "RETRIEVAL_CONFIDENCE_THRESHOLD"); err != nil {
		return err
	}
	if err := setDuration(&c.Analysis.RetrievalTimeout, "RETRIEVAL_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&c.Analysis.RuleLookupTimeout, "RULE_LOOKUP_TIMEOUT"); err != nil {
		return err
	}
	if err := setInt(&c.Analysis.MaxConcurrentPairs, "MAX_CONCURRENT_PAIRS"); err != nil {
		return err
	}
	if err := setDuration(&c.Embedding.CacheTTL, "EMBEDDING_CACHE_TTL"); err != nil {
		return err
	}
	if err := setInt(&c.RAG.TopK, "RAG_TOP_K"); err != nil {
		return err
	}
	if err := setFloat(&c.RAG.MinSimilarity, "RAG_MIN_SIMILARITY"); err != nil {
		return err
	}
	if err := setInt(&c.RAG.ChunkSize, "RAG_CHUNK_SIZE"); err != nil {
		return err
	}
	return setInt(&c.RAG.ChunkOverlap, "RAG_CHUNK_OVERLAP")
}

// Validate checks ranges that the environment parser cannot
func (c *Config) Validate() error {
	if t := c.Analysis.RetrievalThreshold; t < 0 || t > 1 {
		return fmt.Errorf("%w: retrieval confidence threshold %v outside [0,1]", ErrInvalid, t)
	}
	if c.Analysis.MaxConcurrentPairs < 1 {
		return fmt.Errorf("%w: max concurrent pairs must be positive", ErrInvalid)
	}
	if c.Analysis.RetrievalTimeout <= 0 || c.Analysis.RuleLookupTimeout <= 0 {
		return fmt.Errorf("%w: collaborator timeouts must be positive", ErrInvalid)
	}
	if c.RAG.TopK < 1 {
		return fmt.Errorf("%w: RAG_TOP_K must be positive", ErrInvalid)
	}
	if c.RAG.ChunkSize < 1 || c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("%w: chunk overlap must be smaller than chunk size", ErrInvalid)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q", ErrInvalid, key, v)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%w: %s=%q", ErrInvalid, key, v)
	}
	*dst = f
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q", ErrInvalid, key, v)
	}
	*dst = d
	return nil
}
