package config

import (
	"fmt"
	"net/url"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"page-rag/internal/models"
)

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	InferLLM LLMConfig      `yaml:"infer_llm"`
	RAG      RAGConfig      `yaml:"rag"`
	Server   ServerConfig   `yaml:"server"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// DatabaseConfig selects the vector storage engine.
// Path is used by chromem and sqlite, DSN and Driver by postgres.
type DatabaseConfig struct {
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"`
	DSN      string `yaml:"dsn"`
	Driver   string `yaml:"driver"`
	Compress bool   `yaml:"compress"`
	Debug    bool   `yaml:"debug"`
}

type LLMConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model"`
}

type RAGConfig struct {
	ChunkSize     int    `yaml:"chunk_size"`
	ChunkOverlap  int    `yaml:"chunk_overlap"`
	Dimension     int    `yaml:"dimension"`
	PassagePrefix string `yaml:"passage_prefix"`
	QueryPrefix   string `yaml:"query_prefix"`
	DisablePrefix bool   `yaml:"disable_prefix"`
	Workers       int    `yaml:"workers"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

const (
	BackendChromem  = "chromem"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"

	DriverPG = "pgdriver"
	DriverPQ = "pq"

	ProviderHTTP   = "http"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	defaultChromemPath = "./data/chromem"
	defaultSQLitePath  = "./data/pages.db"
	defaultEmbedURL    = "http://localhost:8081"
	defaultEmbedModel  = "emb_model.gguf"
	defaultWorkers     = 4
	defaultAddr        = ":8080"
)

// Default returns a configuration that talks to a local embedding server
// and stores tables in an embedded chromem database.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads the YAML file at path, loads .env if present, applies
// environment overrides and defaults, and validates the result.
func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	overrides := []struct {
		env string
		dst *string
	}{
		{"EMBEDDING_API_KEY", &c.EmbedLLM.Key},
		{"EMBEDDING_BASE_URL", &c.EmbedLLM.BaseURL},
		{"LLM_API_KEY", &c.InferLLM.Key},
		{"DATABASE_DSN", &c.Database.DSN},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.env); ok && v != "" {
			*o.dst = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Database.Backend == "" {
		c.Database.Backend = BackendChromem
	}
	if c.Database.Path == "" {
		switch c.Database.Backend {
		case BackendChromem:
			c.Database.Path = defaultChromemPath
		case BackendSQLite:
			c.Database.Path = defaultSQLitePath
		}
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverPG
	}

	if c.EmbedLLM.Provider == "" {
		c.EmbedLLM.Provider = ProviderHTTP
	}
	if c.EmbedLLM.BaseURL == "" {
		c.EmbedLLM.BaseURL = defaultEmbedURL
	}
	if c.EmbedLLM.Model == "" {
		c.EmbedLLM.Model = defaultEmbedModel
	}
	// the local llama.cpp server accepts any token
	if c.EmbedLLM.Key == "" {
		c.EmbedLLM.Key = "Nothing"
	}

	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = models.DefaultChunkSize
		if c.RAG.ChunkOverlap == 0 {
			c.RAG.ChunkOverlap = models.DefaultChunkOverlap
		}
	}
	if c.RAG.Dimension == 0 {
		c.RAG.Dimension = models.DefaultDimension
	}
	if !c.RAG.DisablePrefix && c.RAG.PassagePrefix == "" && c.RAG.QueryPrefix == "" {
		c.RAG.PassagePrefix = models.PassagePrefix
		c.RAG.QueryPrefix = models.QueryPrefix
	}
	if c.RAG.Workers == 0 {
		c.RAG.Workers = defaultWorkers
	}

	if c.Server.Addr == "" {
		c.Server.Addr = defaultAddr
	}
}

const redacted = "xxxxx"

// Redacted returns a copy of c with API keys and the database password
// masked, for logging.
func (c *Config) Redacted() *Config {
	cp := *c
	cp.EmbedLLM.Key = redactSecret(c.EmbedLLM.Key)
	cp.InferLLM.Key = redactSecret(c.InferLLM.Key)
	cp.Database.DSN = redactDSN(c.Database.DSN)
	return &cp
}

func redactSecret(s string) string {
	if s == "" {
		return ""
	}
	return redacted
}

// redactDSN keeps URL DSNs readable without the password. Key/value DSNs
// are masked whole.
func redactDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return redacted
	}
	return u.Redacted()
}

// Validate rejects settings the pipelines cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Backend {
	case BackendChromem, BackendSQLite:
	case BackendPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the %s backend", BackendPostgres)
		}
		if c.Database.Driver != DriverPG && c.Database.Driver != DriverPQ {
			return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unknown database.backend %q", c.Database.Backend)
	}

	switch c.EmbedLLM.Provider {
	case ProviderHTTP, ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("unknown embed_llm.provider %q", c.EmbedLLM.Provider)
	}

	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("rag.chunk_size must be positive, got %d", c.RAG.ChunkSize)
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("rag.chunk_overlap must be in [0, %d), got %d", c.RAG.ChunkSize, c.RAG.ChunkOverlap)
	}
	if c.RAG.Dimension <= 0 {
		return fmt.Errorf("rag.dimension must be positive, got %d", c.RAG.Dimension)
	}
	if c.RAG.Workers <= 0 {
		return fmt.Errorf("rag.workers must be positive, got %d", c.RAG.Workers)
	}
	return nil
}
