package config

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/viper"
)

// RetryPolicy names for AI provider calls.
const (
	RetryNone        = "none"
	RetryExponential = "exponential"
	RetryLinear      = "linear"
	RetryFixed       = "fixed"
)

// AIConfig describes one AI provider endpoint (openai-compatible).
type AIConfig struct {
	Name           string `mapstructure:"name"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	Token          string `mapstructure:"token"`
	BaseURL        string `mapstructure:"base_url"`
	MaxTokens      int    `mapstructure:"max_tokens"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// MappingConfig declares a cross-database column correspondence.
type MappingConfig struct {
	SourceDatabase string `mapstructure:"source_database"`
	SourceTable    string `mapstructure:"source_table"`
	SourceColumn   string `mapstructure:"source_column"`
	TargetDatabase string `mapstructure:"target_database"`
	TargetTable    string `mapstructure:"target_table"`
	TargetColumn   string `mapstructure:"target_column"`
}

// DatabaseConfig describes one configured database connection.
type DatabaseConfig struct {
	Name             string          `mapstructure:"name"`
	ConnectionString string          `mapstructure:"connection_string"`
	Dialect          string          `mapstructure:"dialect"`
	Enabled          bool            `mapstructure:"enabled"`
	IncludedTables   []string        `mapstructure:"included_tables"`
	ExcludedTables   []string        `mapstructure:"excluded_tables"`
	MaxRowsPerQuery  int             `mapstructure:"max_rows_per_query"`
	Description      string          `mapstructure:"description"`
	Mappings         []MappingConfig `mapstructure:"cross_database_mappings"`
}

// Features toggles optional sources.
type Features struct {
	EnableMcpSearch   bool `mapstructure:"enable_mcp_search"`
	EnableAudioSearch bool `mapstructure:"enable_audio_search"`
	EnableImageSearch bool `mapstructure:"enable_image_search"`
	EnableFileWatcher bool `mapstructure:"enable_file_watcher"`
}

// ConversationConfig selects the conversation store backend.
type ConversationConfig struct {
	Backend      string `mapstructure:"backend"` // "memory" | "redis"
	RedisAddr    string `mapstructure:"redis_addr"`
	RedisDB      int    `mapstructure:"redis_db"`
	HistoryTurns int    `mapstructure:"history_turns"`
}

// Config is the full configuration surface, read-only after startup.
type Config struct {
	// Chunker limits
	MaxChunkSize int `mapstructure:"max_chunk_size"`
	MinChunkSize int `mapstructure:"min_chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`

	// Hybrid scoring
	SemanticScoringWeight        float64 `mapstructure:"semantic_scoring_weight"`
	KeywordScoringWeight         float64 `mapstructure:"keyword_scoring_weight"`
	SemanticSearchThreshold      float64 `mapstructure:"semantic_search_threshold"`
	StrongDocumentMatchThreshold float64 `mapstructure:"strong_document_match_threshold"`
	MinSearchResults             int     `mapstructure:"min_search_results"`
	MaxSearchResults             int     `mapstructure:"max_search_results"`

	// AI provider retry and fallback
	MaxRetryAttempts        int        `mapstructure:"max_retry_attempts"`
	RetryDelayMs            int        `mapstructure:"retry_delay_ms"`
	RetryPolicy             string     `mapstructure:"retry_policy"`
	EnableFallbackProviders bool       `mapstructure:"enable_fallback_providers"`
	FallbackProviders       []AIConfig `mapstructure:"fallback_providers"`

	// Timeouts
	QueryTimeoutSeconds int `mapstructure:"query_timeout_seconds"`

	// Misc
	DefaultLanguage          string `mapstructure:"default_language"`
	EnableAutoSchemaAnalysis bool   `mapstructure:"enable_auto_schema_analysis"`
	WatchDirectory           string `mapstructure:"watch_directory"`

	Features     Features           `mapstructure:"features"`
	AI           AIConfig           `mapstructure:"ai"`
	Databases    []DatabaseConfig   `mapstructure:"databases"`
	Conversation ConversationConfig `mapstructure:"conversation"`
}

// Load reads configuration from the given file, applying defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("max_chunk_size", 1000)
	v.SetDefault("min_chunk_size", 100)
	v.SetDefault("chunk_overlap", 200)
	v.SetDefault("semantic_scoring_weight", 0.8)
	v.SetDefault("keyword_scoring_weight", 0.2)
	v.SetDefault("semantic_search_threshold", 0.3)
	v.SetDefault("strong_document_match_threshold", 4.8)
	v.SetDefault("min_search_results", 3)
	v.SetDefault("max_search_results", 10)
	v.SetDefault("max_retry_attempts", 2)
	v.SetDefault("retry_delay_ms", 1000)
	v.SetDefault("retry_policy", RetryExponential)
	v.SetDefault("query_timeout_seconds", 30)
	v.SetDefault("default_language", "en")
	v.SetDefault("enable_auto_schema_analysis", true)
	v.SetDefault("conversation.backend", "memory")
	v.SetDefault("conversation.history_turns", 6)
	v.SetDefault("ai.max_tokens", 4096)
	v.SetDefault("ai.timeout_seconds", 60)
}

// Validate checks configuration consistency. Failures are fatal at startup.
func (c *Config) Validate() error {
	if math.Abs(c.SemanticScoringWeight+c.KeywordScoringWeight-1.0) > 1e-9 {
		return fmt.Errorf("scoring weights must sum to 1, got %.3f + %.3f",
			c.SemanticScoringWeight, c.KeywordScoringWeight)
	}
	if c.MaxChunkSize <= 0 {
		return fmt.Errorf("max_chunk_size must be positive, got %d", c.MaxChunkSize)
	}
	if c.MinChunkSize < 0 || c.MinChunkSize > c.MaxChunkSize {
		return fmt.Errorf("min_chunk_size %d must be within [0, max_chunk_size]", c.MinChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.MaxChunkSize {
		return fmt.Errorf("chunk_overlap %d must be smaller than max_chunk_size %d",
			c.ChunkOverlap, c.MaxChunkSize)
	}
	switch c.RetryPolicy {
	case RetryNone, RetryExponential, RetryLinear, RetryFixed:
	default:
		return fmt.Errorf("unknown retry_policy: %s", c.RetryPolicy)
	}
	for i, db := range c.Databases {
		if db.ConnectionString == "" {
			return fmt.Errorf("databases[%d]: connection_string is required", i)
		}
		if db.Dialect == "" {
			return fmt.Errorf("databases[%d]: dialect is required", i)
		}
	}
	return nil
}

// RetryDelay returns the base retry delay as a duration.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// QueryTimeout returns the per-query timeout as a duration.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}
