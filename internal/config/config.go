package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// OpenAIConfig holds connection settings shared by the OpenAI-compatible
// embedder and answerer.
type OpenAIConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	TimeoutSecs int     `yaml:"timeout_secs"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`
	Temperature float32 `yaml:"temperature,omitempty"`
}

// AnswererConfig selects how questions are answered: simulated, local or openai.
type AnswererConfig struct {
	Type       string        `yaml:"type"`
	DelayMilli int           `yaml:"delay_ms"`
	TopK       int           `yaml:"top_k"`
	OpenAI     *OpenAIConfig `yaml:"openai,omitempty"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string        `yaml:"type"`
	OpenAI *OpenAIConfig `yaml:"openai,omitempty"`
}

// ChunkerConfig configures how document pages are split into chunks.
type ChunkerConfig struct {
	Type              string `yaml:"type"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk"`
	OverlapSentences  int    `yaml:"overlap_sentences"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// SummarizerConfig selects and configures the insights summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
	Highlights   int    `yaml:"highlights"`
	Topics       int    `yaml:"topics"`
}

// IngestConfig tunes upload progress and guardrails.
type IngestConfig struct {
	TickMilli        int    `yaml:"tick_ms"`
	Step             int    `yaml:"step"`
	HoldMilli        int    `yaml:"hold_ms"`
	MaxFileMB        int    `yaml:"max_file_mb"`
	FetchTimeoutSecs int    `yaml:"fetch_timeout_secs"`
	UserAgent        string `yaml:"user_agent"`
}

// SessionConfig holds workspace behaviour.
type SessionConfig struct {
	AutoSelect bool `yaml:"auto_select"`
}

// LogConfig configures the rotating log file.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Answerer    AnswererConfig    `yaml:"answerer"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Session     SessionConfig     `yaml:"session"`
	Log         LogConfig         `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/deepnotes/config.yaml.
// If neither exists, it writes defaults to ~/.config/deepnotes/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	dir, err := userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func userConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "deepnotes"), nil
}

// DefaultLogFile is where logs go when no file is configured.
func DefaultLogFile() string {
	dir, err := userConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "deepnotes.log")
	}
	return filepath.Join(dir, "deepnotes.log")
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Answerer:    AnswererConfig{Type: "local"},
		Embedder:    EmbedderConfig{Type: "tfidf"},
		Chunker:     ChunkerConfig{Type: "sentence", SentencesPerChunk: 5, OverlapSentences: 1},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Summarizer:  SummarizerConfig{Type: "frequency"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Answerer.Type == "" {
		cfg.Answerer.Type = "local"
	}
	if cfg.Answerer.Type == "simulated" && cfg.Answerer.DelayMilli == 0 {
		cfg.Answerer.DelayMilli = 1500
	}
	if cfg.Answerer.TopK == 0 {
		cfg.Answerer.TopK = 4
	}
	if cfg.Answerer.Type == "openai" {
		if cfg.Answerer.OpenAI == nil {
			cfg.Answerer.OpenAI = &OpenAIConfig{}
		}
		applyOpenAIDefaults(cfg.Answerer.OpenAI, "gpt-4o-mini")
		if cfg.Answerer.OpenAI.MaxTokens == 0 {
			cfg.Answerer.OpenAI.MaxTokens = 512
		}
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "tfidf"
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI != nil {
		applyOpenAIDefaults(cfg.Embedder.OpenAI, "text-embedding-3-small")
	}
	if cfg.Chunker.SentencesPerChunk == 0 {
		cfg.Chunker.SentencesPerChunk = 5
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 3
	}
	if cfg.Summarizer.Highlights == 0 {
		cfg.Summarizer.Highlights = 5
	}
	if cfg.Summarizer.Topics == 0 {
		cfg.Summarizer.Topics = 8
	}
	if cfg.Ingest.TickMilli == 0 {
		cfg.Ingest.TickMilli = 200
	}
	if cfg.Ingest.Step == 0 {
		cfg.Ingest.Step = 10
	}
	if cfg.Ingest.HoldMilli == 0 {
		cfg.Ingest.HoldMilli = 1000
	}
	if cfg.Ingest.MaxFileMB == 0 {
		cfg.Ingest.MaxFileMB = 25
	}
	if cfg.Ingest.FetchTimeoutSecs == 0 {
		cfg.Ingest.FetchTimeoutSecs = 30
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 10
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 3
	}
	if cfg.Log.MaxAgeDays == 0 {
		cfg.Log.MaxAgeDays = 28
	}
}

func applyOpenAIDefaults(c *OpenAIConfig, model string) {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = 30
	}
}
