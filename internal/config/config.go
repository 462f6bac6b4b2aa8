package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
}

type StorageConfig struct {
	DocumentsDir string `mapstructure:"documents_dir"`
	TextDir      string `mapstructure:"text_dir"`
	// KeepSources retains raw documents after extraction instead of
	// the default one-shot delete.
	KeepSources bool `mapstructure:"keep_sources"`
}

type LLMConfig struct {
	Provider   string        `mapstructure:"provider"`
	Model      string        `mapstructure:"model"`
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	EmbedModel string        `mapstructure:"embed_model"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

type VectorConfig struct {
	// Backend selects "memory" (default) or "qdrant".
	Backend    string `mapstructure:"backend"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
}

type RetrievalConfig struct {
	TopK         int `mapstructure:"top_k"`
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
	MaxToolCalls int `mapstructure:"max_tool_calls"`
}

type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Environment  string  `mapstructure:"environment"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if c.LLM.Provider != "" && c.LLM.Provider != "ollama" && c.LLM.APIKey == "" {
		warnings = append(warnings, fmt.Sprintf("LLM provider '%s' is configured but api_key is empty", c.LLM.Provider))
	}
	if c.LLM.Model == "" {
		warnings = append(warnings, "llm.model is empty")
	}
	if c.Retrieval.TopK < 0 {
		warnings = append(warnings, fmt.Sprintf("retrieval top_k %d is negative", c.Retrieval.TopK))
	}
	if c.Retrieval.ChunkOverlap >= c.Retrieval.ChunkSize && c.Retrieval.ChunkSize > 0 {
		warnings = append(warnings, fmt.Sprintf("chunk_overlap %d >= chunk_size %d; overlap will be clamped", c.Retrieval.ChunkOverlap, c.Retrieval.ChunkSize))
	}
	if c.Vector.Backend == "qdrant" && c.Vector.Collection == "" {
		warnings = append(warnings, "vector backend 'qdrant' needs a collection name")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1.0 {
		warnings = append(warnings, fmt.Sprintf("tracing sample_rate %.2f is outside [0.0, 1.0]", c.Tracing.SampleRate))
	}

	return warnings
}

// Load reads configuration from file and environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ASKDOCS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine: defaults + env cover everything.
		if _, ok := err.(*os.PathError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.max_upload_bytes", int64(64<<20))

	v.SetDefault("storage.documents_dir", "Files/documents")
	v.SetDefault("storage.text_dir", "Files/data")
	v.SetDefault("storage.keep_sources", false)

	v.SetDefault("llm.provider", "ollama")
	v.SetDefault("llm.model", "qwen3:latest")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.embed_model", "nomic-embed-text")
	v.SetDefault("llm.timeout", 6*time.Minute)
	v.SetDefault("llm.max_retries", 3)

	v.SetDefault("vector.backend", "memory")
	v.SetDefault("vector.host", "localhost")
	v.SetDefault("vector.port", 6334)
	v.SetDefault("vector.collection", "askdocs")

	v.SetDefault("retrieval.top_k", 30)
	v.SetDefault("retrieval.chunk_size", 1000)
	v.SetDefault("retrieval.chunk_overlap", 200)
	v.SetDefault("retrieval.max_tool_calls", 4)

	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.environment", "development")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}
