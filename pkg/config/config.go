// Package config loads service configuration from defaults and
// LEXISCOPE_-prefixed environment variables.
package config

import (
	"time"
)

// Config is the full service configuration tree.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	LLM       LLMConfig       `koanf:"llm"`
	Analysis  AnalysisConfig  `koanf:"analysis"`
	Knowledge KnowledgeConfig `koanf:"knowledge"`
	Feedback  FeedbackConfig  `koanf:"feedback"`
	Log       LogConfig       `koanf:"log"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"             validate:"gt=0,lte=65535"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// ConnString enables persistence; empty runs the service on
	// in-memory stores.
	ConnString string `koanf:"conn_string"`
	AutoMigrate bool  `koanf:"auto_migrate"`
}

type LLMConfig struct {
	APIKey          string        `koanf:"api_key"`
	BaseURL         string        `koanf:"base_url"      validate:"required,url"`
	Model           string        `koanf:"model"         validate:"required"`
	Temperature     float64       `koanf:"temperature"   validate:"gte=0,lte=2"`
	TopP            float64       `koanf:"top_p"         validate:"gte=0,lte=1"`
	TopK            int           `koanf:"top_k"         validate:"gte=0"`
	MaxOutputTokens int           `koanf:"max_output_tokens" validate:"gt=0"`
	MaxRetries      int           `koanf:"max_retries"   validate:"gte=0"`
	RetryBackoff    time.Duration `koanf:"retry_backoff"`
	MaxPromptChars  int           `koanf:"max_prompt_chars" validate:"gt=0"`
	MinTimeout      time.Duration `koanf:"min_timeout"`
	MaxTimeout      time.Duration `koanf:"max_timeout"`
}

type AnalysisConfig struct {
	SingleCallThreshold int           `koanf:"single_call_threshold" validate:"gt=0"`
	ChunkSize           int           `koanf:"chunk_size"            validate:"gt=0"`
	BatchSize           int           `koanf:"batch_size"            validate:"gt=0"`
	BatchCooldown       time.Duration `koanf:"batch_cooldown"`
	SynthesisThreshold  int           `koanf:"synthesis_threshold"   validate:"gt=0"`
	SynthesisInputCap   int           `koanf:"synthesis_input_cap"   validate:"gt=0"`
}

type KnowledgeConfig struct {
	ChunkSize       int     `koanf:"chunk_size"        validate:"gt=0"`
	ChunkOverlap    int     `koanf:"chunk_overlap"     validate:"gte=0"`
	TopK            int     `koanf:"top_k"             validate:"gt=0"`
	MinScore        float64 `koanf:"min_score"         validate:"gte=0,lte=1"`
	MaxContextChars int     `koanf:"max_context_chars" validate:"gt=0"`
}

type FeedbackConfig struct {
	Schedule     string        `koanf:"schedule"      validate:"required"`
	Window       time.Duration `koanf:"window"`
	MinFrequency int           `koanf:"min_frequency" validate:"gt=0"`
	Threshold    float64       `koanf:"threshold"     validate:"gt=0,lte=1"`
}

type LogConfig struct {
	Level  string `koanf:"level"  validate:"oneof=debug info warn error"`
	JSON   bool   `koanf:"json"`
	Source bool   `koanf:"source"`
}

// Default returns the baseline configuration before environment overlay.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			AutoMigrate: true,
		},
		LLM: LLMConfig{
			BaseURL:         "https://generativelanguage.googleapis.com/v1beta",
			Model:           "gemini-2.0-flash",
			Temperature:     0.4,
			TopP:            0.8,
			TopK:            40,
			MaxOutputTokens: 512,
			MaxRetries:      2,
			RetryBackoff:    500 * time.Millisecond,
			MaxPromptChars:  32000,
			MinTimeout:      10 * time.Second,
			MaxTimeout:      25 * time.Second,
		},
		Analysis: AnalysisConfig{
			SingleCallThreshold: 50000,
			ChunkSize:           30000,
			BatchSize:           3,
			BatchCooldown:       500 * time.Millisecond,
			SynthesisThreshold:  3,
			SynthesisInputCap:   6000,
		},
		Knowledge: KnowledgeConfig{
			ChunkSize:       512,
			ChunkOverlap:    50,
			TopK:            3,
			MinScore:        0.1,
			MaxContextChars: 2000,
		},
		Feedback: FeedbackConfig{
			Schedule:     "0 */6 * * *",
			Window:       30 * 24 * time.Hour,
			MinFrequency: 5,
			Threshold:    0.7,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
