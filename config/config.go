package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for docrag.
type Config struct {
	Ingest    IngestConfig    `yaml:"ingest" toml:"ingest"`
	Retrieve  RetrieveConfig  `yaml:"retrieve" toml:"retrieve"`
	Index     IndexConfig     `yaml:"index" toml:"index"`
	Embedding EmbeddingConfig `yaml:"embedding" toml:"embedding"`
	LLM       LLMConfig       `yaml:"llm" toml:"llm"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// IngestConfig holds document loading and chunking configuration.
type IngestConfig struct {
	DataDir      string   `yaml:"data_dir" toml:"data_dir"`
	ChunkSize    int      `yaml:"chunk_size" toml:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap" toml:"chunk_overlap"`
	Includes     []string `yaml:"includes" toml:"includes"`
	Excludes     []string `yaml:"excludes" toml:"excludes"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK             int    `yaml:"top_k" toml:"top_k"`
	MaxContextLength int    `yaml:"max_context_length" toml:"max_context_length"`
	Mode             string `yaml:"mode" toml:"mode"` // "cluster" or "flat"
	CacheSize        int    `yaml:"cache_size" toml:"cache_size"`
	CacheTTLSecs     int    `yaml:"cache_ttl_secs" toml:"cache_ttl_secs"`
}

// IndexConfig selects and configures the vector index.
type IndexConfig struct {
	Backend         string       `yaml:"backend" toml:"backend"` // "bolt", "sqlite", "qdrant", "memory"
	Path            string       `yaml:"path" toml:"path"`       // local file; empty means .docrag/index.db or .docrag/index.sqlite
	OpenTimeoutSecs int          `yaml:"open_timeout_secs" toml:"open_timeout_secs"`
	Qdrant          QdrantConfig `yaml:"qdrant" toml:"qdrant"`
}

// QdrantConfig holds the remote index connection.
type QdrantConfig struct {
	URL         string `yaml:"url" toml:"url"`
	APIKeyEnv   string `yaml:"api_key_env" toml:"api_key_env"`
	Collection  string `yaml:"collection" toml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs" toml:"timeout_secs"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider" toml:"provider"` // "hash", "openai", "ollama", "jina", "deepseek"
	Model             string  `yaml:"model" toml:"model"`
	APIKeyEnv         string  `yaml:"api_key_env" toml:"api_key_env"` // Environment variable for API key
	BaseURL           string  `yaml:"base_url" toml:"base_url"`
	Dimension         int     `yaml:"dimension" toml:"dimension"` // 0 means the provider default
	BatchSize         int     `yaml:"batch_size" toml:"batch_size"`
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second"`
}

// LLMConfig holds the answer model endpoint.
type LLMConfig struct {
	URL         string  `yaml:"url" toml:"url"`
	Model       string  `yaml:"model" toml:"model"`
	Temperature float64 `yaml:"temperature" toml:"temperature"`
	TopP        float64 `yaml:"top_p" toml:"top_p"`
	NumCtx      int     `yaml:"num_ctx" toml:"num_ctx"`
	TimeoutSecs int     `yaml:"timeout_secs" toml:"timeout_secs"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" toml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Ingest: IngestConfig{
			DataDir:      "data",
			ChunkSize:    500,
			ChunkOverlap: 50,
			Includes:     []string{"*.pdf", "*.csv", "*.txt"},
		},
		Retrieve: RetrieveConfig{
			TopK:             3,
			MaxContextLength: 2000,
			Mode:             "cluster",
			CacheSize:        100,
			CacheTTLSecs:     300,
		},
		Index: IndexConfig{
			Backend:         "bolt",
			OpenTimeoutSecs: 5,
			Qdrant: QdrantConfig{
				URL:         "http://localhost:6333",
				APIKeyEnv:   "QDRANT_API_KEY",
				Collection:  "documents",
				TimeoutSecs: 15,
			},
		},
		Embedding: EmbeddingConfig{
			Provider:  "hash",
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			BatchSize: 100,
		},
		LLM: LLMConfig{
			URL:         "http://localhost:11434/api/generate",
			Model:       "gemma3:1b",
			Temperature: 0.7,
			TopP:        0.9,
			NumCtx:      4096,
			TimeoutSecs: 60,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file, or a TOML file when path ends
// in .toml.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	unmarshal := yaml.Unmarshal
	if isTOML(path) {
		unmarshal = toml.Unmarshal
	}
	if err := unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for docrag.yaml,
// then docrag.toml).
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range []string{"docrag.yaml", "docrag.toml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	// Try .docrag/config.yaml
	path := filepath.Join(dir, ".docrag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	// Return defaults
	return DefaultConfig(), nil
}

// LoadDotEnv loads dir/.env into the process environment without
// overriding variables that are already set. A missing file is fine.
func LoadDotEnv(dir string) error {
	err := godotenv.Load(filepath.Join(dir, ".env"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// ApplyEnv overlays the environment knobs on top of the file values.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.Ingest.DataDir = v
	}
	if v := os.Getenv("K_RESULTS"); v != "" {
		k, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("K_RESULTS must be an integer, got %q", v)
		}
		c.Retrieve.TopK = k
	}
	if v := os.Getenv("OLLAMA_URL"); v != "" {
		c.LLM.URL = v
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("MODEL_NAME"); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv("INDEX_PATH"); v != "" {
		c.Index.Path = v
	}
	if v := os.Getenv("QDRANT_URL"); v != "" {
		c.Index.Qdrant.URL = v
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Ingest.ChunkSize <= 0:
		return fmt.Errorf("ingest.chunk_size must be positive, got %d", c.Ingest.ChunkSize)
	case c.Ingest.ChunkOverlap < 0:
		return fmt.Errorf("ingest.chunk_overlap must not be negative, got %d", c.Ingest.ChunkOverlap)
	case c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize:
		return fmt.Errorf("ingest.chunk_overlap (%d) must be smaller than ingest.chunk_size (%d)", c.Ingest.ChunkOverlap, c.Ingest.ChunkSize)
	case c.Retrieve.TopK <= 0:
		return fmt.Errorf("retrieve.top_k must be positive, got %d", c.Retrieve.TopK)
	case c.Retrieve.MaxContextLength <= 0:
		return fmt.Errorf("retrieve.max_context_length must be positive, got %d", c.Retrieve.MaxContextLength)
	}

	switch c.Retrieve.Mode {
	case "cluster", "flat":
	default:
		return fmt.Errorf("retrieve.mode must be cluster or flat, got %q", c.Retrieve.Mode)
	}

	switch c.Index.Backend {
	case "bolt", "sqlite", "memory":
	case "qdrant":
		if c.Index.Qdrant.URL == "" {
			return fmt.Errorf("index.qdrant.url is required for the qdrant backend")
		}
	default:
		return fmt.Errorf("index.backend must be bolt, sqlite, qdrant or memory, got %q", c.Index.Backend)
	}

	switch strings.ToLower(c.Embedding.Provider) {
	case "hash", "openai", "ollama", "jina", "deepseek":
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	return nil
}

// Save writes the configuration as YAML, or TOML for a .toml path.
func (c *Config) Save(path string) error {
	marshal := yaml.Marshal
	if isTOML(path) {
		marshal = toml.Marshal
	}
	data, err := marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// IndexDBPath returns the local index file for a project directory.
func (c *Config) IndexDBPath(dir string) string {
	if c.Index.Path != "" {
		if filepath.IsAbs(c.Index.Path) {
			return c.Index.Path
		}
		return filepath.Join(dir, c.Index.Path)
	}
	if c.Index.Backend == "sqlite" {
		return filepath.Join(dir, ".docrag", "index.sqlite")
	}
	return IndexDBPath(dir)
}

// IndexDBPath returns the default path to the index database.
func IndexDBPath(dir string) string {
	return filepath.Join(dir, ".docrag", "index.db")
}

// DataDirPath resolves the document directory against dir.
func (c *Config) DataDirPath(dir string) string {
	if filepath.IsAbs(c.Ingest.DataDir) {
		return c.Ingest.DataDir
	}
	return filepath.Join(dir, c.Ingest.DataDir)
}

// EnsureStateDir ensures the .docrag directory exists.
func EnsureStateDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".docrag"), 0755)
}
