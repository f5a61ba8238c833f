package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lexiguard/lexiguard/internal/llm"
	"github.com/lexiguard/lexiguard/pkg/icron"
	"github.com/lexiguard/lexiguard/pkg/log"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
// Values come from built-in defaults, then an optional YAML file named by
// LEXIGUARD_CONFIG, then environment variables, then Options.
//
// Environment Variables:
// LLM Configuration:
// - LLM_API_KEY: API key for the LLM provider (required)
// - LLM_API_URL: API endpoint URL (default: https://openrouter.ai/api/v1)
// - LLM_MODEL: Generation model (default: openai/gpt-4o)
// - LLM_MAX_TOKENS: Maximum tokens for responses (default: 2000)
// - LLM_TEMPERATURE: Generation temperature (default: 0)
// - LLM_TIMEOUT: Request timeout in seconds (default: 60)
// - LLM_SITE_URL / LLM_APP_NAME: attribution headers (optional)
// - GRADER_MODEL: Grading model (default: same as LLM_MODEL)
//
// Retrieval Configuration:
// - RETRIEVAL_BACKEND: sqlite, weaviate or none (default: sqlite)
// - RETRIEVAL_DB_PATH: SQLite index file (default: $DATA_DIR/lexiguard.db)
// - RETRIEVAL_TOP_K: Passages per search (default: 3)
// - EMBEDDING_MODEL: Embedding model (default: text-embedding-3-small)
// - WEAVIATE_URL / WEAVIATE_CLASS: Weaviate endpoint and class
//
// Legal Search Configuration:
// - INDIAN_KANOON_API_KEY: enables the case-law search tool when set
// - SEARCH_API_URL: API base (default: https://api.indiankanoon.org)
// - SEARCH_ENABLED: register the search tool (default: true)
// - SEARCH_RATE_PER_SECOND: request pacing (default: 2)
// - SEARCH_TIMEOUT: Request timeout in seconds (default: 30)
//
// Agent, Ingestion and HTTP Configuration:
// - AGENT_MAX_STEPS: Model invocations per question (default: 25)
// - AGENT_LANGUAGE_HINT: ask for answers in the question's language (default: false)
// - DOCUMENTS_DIR: Source documents (default: $DATA_DIR/documents)
// - INGEST_CRON_EXPR: Re-ingestion schedule, empty disables (default: 0 0 * * *)
// - INGEST_CHUNK_SIZE / INGEST_CHUNK_OVERLAP: (default: 1000 / 200)
// - INGEST_BATCH_SIZE / INGEST_CONCURRENCY: (default: 64 / 4)
// - HTTP_ADDR: Listen address (default: :8000)
// - DATA_DIR: Data directory (default: data)
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Grader    GraderConfig    `yaml:"grader"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Search    SearchConfig    `yaml:"search"`
	Agent     AgentConfig     `yaml:"agent"`
	Ingest    IngestConfig    `yaml:"ingest"`
	HTTP      HTTPConfig      `yaml:"http"`
	System    SystemConfig    `yaml:"system"`
}

// LLMConfig holds the configuration for the generation model.
// Supports any OpenAI-compatible provider (OpenRouter, OpenAI, vLLM, etc.)
type LLMConfig struct {
	APIKey      string  `yaml:"api_key"`
	APIURL      string  `yaml:"api_url"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	Timeout     int     `yaml:"timeout"`
	SiteURL     string  `yaml:"site_url"`
	AppName     string  `yaml:"app_name"`
}

// ClientConfig converts c for llm.NewClient.
func (c LLMConfig) ClientConfig() *llm.Config {
	return &llm.Config{
		APIKey:      c.APIKey,
		APIURL:      c.APIURL,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		Timeout:     c.Timeout,
		SiteURL:     c.SiteURL,
		AppName:     c.AppName,
	}
}

// GraderConfig overrides the model used for grounding checks.
// Temperature is always 0.
type GraderConfig struct {
	Model string `yaml:"model"`
}

const (
	BackendSQLite   = "sqlite"
	BackendWeaviate = "weaviate"
	BackendNone     = "none"
)

type RetrievalConfig struct {
	Backend        string `yaml:"backend"`
	DBPath         string `yaml:"db_path"`
	TopK           int    `yaml:"top_k"`
	EmbeddingModel string `yaml:"embedding_model"`
	WeaviateURL    string `yaml:"weaviate_url"`
	WeaviateClass  string `yaml:"weaviate_class"`
}

// SearchConfig holds the configuration for the case-law search tool
type SearchConfig struct {
	Enabled       bool    `yaml:"enabled"`
	APIKey        string  `yaml:"api_key"`
	APIURL        string  `yaml:"api_url"`
	RatePerSecond float64 `yaml:"rate_per_second"`
	Timeout       int     `yaml:"timeout"`
}

// Active reports whether the search tool should be registered.
func (c SearchConfig) Active() bool {
	return c.Enabled && c.APIKey != ""
}

// AgentConfig holds the configuration for the agent
type AgentConfig struct {
	MaxSteps     int  `yaml:"max_steps"`
	LanguageHint bool `yaml:"language_hint"`
}

type IngestConfig struct {
	DocumentsDir string `yaml:"documents_dir"`
	CronExpr     string `yaml:"cron_expr"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	BatchSize    int    `yaml:"batch_size"`
	Concurrency  int    `yaml:"concurrency"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// SystemConfig holds the system configuration
type SystemConfig struct {
	DataDir string `yaml:"data_dir"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// WithDataDir overrides the data directory and the paths derived from it
// that were left at their defaults.
func WithDataDir(dir string) Option {
	return func(c *Config) {
		if dir == "" {
			return
		}
		old := c.System.DataDir
		c.System.DataDir = dir
		if c.Retrieval.DBPath == filepath.Join(old, "lexiguard.db") {
			c.Retrieval.DBPath = filepath.Join(dir, "lexiguard.db")
		}
		if c.Ingest.DocumentsDir == filepath.Join(old, "documents") {
			c.Ingest.DocumentsDir = filepath.Join(dir, "documents")
		}
	}
}

func defaults() *Config {
	return &Config{
		LLM: LLMConfig{
			APIURL:    "https://openrouter.ai/api/v1",
			Model:     "openai/gpt-4o",
			MaxTokens: 2000,
			Timeout:   60,
		},
		Retrieval: RetrievalConfig{
			Backend:        BackendSQLite,
			TopK:           3,
			EmbeddingModel: "text-embedding-3-small",
			WeaviateClass:  "LegalPassage",
		},
		Search: SearchConfig{
			Enabled:       true,
			APIURL:        "https://api.indiankanoon.org",
			RatePerSecond: 2,
			Timeout:       30,
		},
		Agent: AgentConfig{
			MaxSteps: 25,
		},
		Ingest: IngestConfig{
			CronExpr:     "0 0 * * *",
			ChunkSize:    1000,
			ChunkOverlap: 200,
			BatchSize:    64,
			Concurrency:  4,
		},
		HTTP: HTTPConfig{
			Addr: ":8000",
		},
		System: SystemConfig{
			DataDir: "data",
		},
	}
}

// NewFromEnv creates a new Config instance with values from the optional
// config file, environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := defaults()

	if path := getEnvString("LEXIGUARD_CONFIG", ""); path != "" {
		if err := config.loadFile(path); err != nil {
			return nil, err
		}
	}

	config.applyEnv()

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Info("Config: model=%s grader=%s backend=%s search=%v addr=%s",
		config.LLM.Model, config.GraderModel(), config.Retrieval.Backend, config.Search.Active(), config.HTTP.Addr)
	return config, nil
}

// loadFile overlays the YAML file at path. ${VAR} references are expanded.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.LLM.APIKey = getEnvString("LLM_API_KEY", c.LLM.APIKey)
	c.LLM.APIURL = getEnvString("LLM_API_URL", c.LLM.APIURL)
	c.LLM.Model = getEnvString("LLM_MODEL", c.LLM.Model)
	c.LLM.MaxTokens = getEnvInt("LLM_MAX_TOKENS", c.LLM.MaxTokens)
	c.LLM.Temperature = getEnvFloat("LLM_TEMPERATURE", c.LLM.Temperature)
	c.LLM.Timeout = getEnvInt("LLM_TIMEOUT", c.LLM.Timeout)
	c.LLM.SiteURL = getEnvString("LLM_SITE_URL", c.LLM.SiteURL)
	c.LLM.AppName = getEnvString("LLM_APP_NAME", c.LLM.AppName)

	c.Grader.Model = getEnvString("GRADER_MODEL", c.Grader.Model)

	c.System.DataDir = getEnvString("DATA_DIR", c.System.DataDir)

	c.Retrieval.Backend = strings.ToLower(getEnvString("RETRIEVAL_BACKEND", c.Retrieval.Backend))
	c.Retrieval.DBPath = getEnvString("RETRIEVAL_DB_PATH", c.Retrieval.DBPath)
	if c.Retrieval.DBPath == "" {
		c.Retrieval.DBPath = filepath.Join(c.System.DataDir, "lexiguard.db")
	}
	c.Retrieval.TopK = getEnvInt("RETRIEVAL_TOP_K", c.Retrieval.TopK)
	c.Retrieval.EmbeddingModel = getEnvString("EMBEDDING_MODEL", c.Retrieval.EmbeddingModel)
	c.Retrieval.WeaviateURL = getEnvString("WEAVIATE_URL", c.Retrieval.WeaviateURL)
	c.Retrieval.WeaviateClass = getEnvString("WEAVIATE_CLASS", c.Retrieval.WeaviateClass)

	c.Search.Enabled = getEnvBool("SEARCH_ENABLED", c.Search.Enabled)
	c.Search.APIKey = getEnvString("INDIAN_KANOON_API_KEY", c.Search.APIKey)
	c.Search.APIURL = getEnvString("SEARCH_API_URL", c.Search.APIURL)
	c.Search.RatePerSecond = getEnvFloat("SEARCH_RATE_PER_SECOND", c.Search.RatePerSecond)
	c.Search.Timeout = getEnvInt("SEARCH_TIMEOUT", c.Search.Timeout)

	c.Agent.MaxSteps = getEnvInt("AGENT_MAX_STEPS", c.Agent.MaxSteps)
	c.Agent.LanguageHint = getEnvBool("AGENT_LANGUAGE_HINT", c.Agent.LanguageHint)

	c.Ingest.DocumentsDir = getEnvString("DOCUMENTS_DIR", c.Ingest.DocumentsDir)
	if c.Ingest.DocumentsDir == "" {
		c.Ingest.DocumentsDir = filepath.Join(c.System.DataDir, "documents")
	}
	if value, ok := os.LookupEnv("INGEST_CRON_EXPR"); ok {
		c.Ingest.CronExpr = strings.TrimSpace(value)
	}
	c.Ingest.ChunkSize = getEnvInt("INGEST_CHUNK_SIZE", c.Ingest.ChunkSize)
	c.Ingest.ChunkOverlap = getEnvInt("INGEST_CHUNK_OVERLAP", c.Ingest.ChunkOverlap)
	c.Ingest.BatchSize = getEnvInt("INGEST_BATCH_SIZE", c.Ingest.BatchSize)
	c.Ingest.Concurrency = getEnvInt("INGEST_CONCURRENCY", c.Ingest.Concurrency)

	c.HTTP.Addr = getEnvString("HTTP_ADDR", c.HTTP.Addr)
}

// GraderModel returns the model used for grading.
func (c *Config) GraderModel() string {
	if c.Grader.Model != "" {
		return c.Grader.Model
	}
	return c.LLM.Model
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	switch c.Retrieval.Backend {
	case BackendSQLite, BackendNone:
	case BackendWeaviate:
		if c.Retrieval.WeaviateURL == "" {
			return fmt.Errorf("WEAVIATE_URL is required for the weaviate backend")
		}
	default:
		return fmt.Errorf("unknown retrieval backend %q", c.Retrieval.Backend)
	}
	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("retrieval top k must be greater than 0")
	}
	if c.Ingest.ChunkSize < 1 {
		return fmt.Errorf("chunk size must be greater than 0")
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("chunk overlap must be in [0, chunk size)")
	}
	if c.Ingest.CronExpr != "" {
		if _, err := icron.Parse(c.Ingest.CronExpr); err != nil {
			return fmt.Errorf("INGEST_CRON_EXPR: %w", err)
		}
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean value from environment variables with default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
