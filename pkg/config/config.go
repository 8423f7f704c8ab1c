// Package config holds the crxforge server configuration: one yaml file
// merged over defaults, with environment variables for secrets only.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the crxforge server.
type Config struct {
	// Server configures the HTTP surface.
	Server ServerConfig `yaml:"server" json:"server"`

	// Workspace configures per-session extension storage.
	Workspace WorkspaceConfig `yaml:"workspace" json:"workspace"`

	// Engine configures the external code-generation process.
	Engine EngineConfig `yaml:"engine" json:"engine"`

	// Sessions configures transcript persistence.
	Sessions SessionsConfig `yaml:"sessions" json:"sessions"`

	// Browser configures extension verification sessions.
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// LLM configures the provider used for intent fallback and answers.
	LLM LLMConfig `yaml:"llm" json:"llm"`

	// Logging configures component log files.
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// WorkspaceConfig defines where per-session extension files live.
type WorkspaceConfig struct {
	// Root is the directory holding one workspace directory per session id.
	Root string `yaml:"root" json:"root"`

	// IgnorePatterns are glob patterns excluded from workspace snapshots.
	IgnorePatterns []string `yaml:"ignore_patterns" json:"ignore_patterns"`
}

// SessionsConfig defines where session transcripts are persisted.
type SessionsConfig struct {
	// Dir holds one JSON file per session id.
	Dir string `yaml:"dir" json:"dir"`
}

// EngineConfig defines the external generation CLI invocation.
type EngineConfig struct {
	// Binary is the generation CLI executable (e.g. "gemini").
	Binary string `yaml:"binary" json:"binary"`

	// Args are fixed arguments placed before the prompt flag. They must
	// include whatever flag grants the tool unattended write permission
	// inside its working directory.
	Args []string `yaml:"args" json:"args"`

	// PromptFlag is the flag that carries the instruction text.
	PromptFlag string `yaml:"prompt_flag" json:"prompt_flag"`

	// TimeoutSeconds bounds one generation run. Zero means the default.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// Timeout returns the run timeout as a duration.
func (e EngineConfig) Timeout() time.Duration {
	if e.TimeoutSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// BrowserConfig defines verification session behavior.
type BrowserConfig struct {
	// Headless controls whether the persistent context runs without a window.
	Headless bool `yaml:"headless" json:"headless"`

	// TestURL is the page the navigate probe drives the tracked tab to.
	TestURL string `yaml:"test_url" json:"test_url"`

	// Resolve bounds the polling for the loaded extension's runtime id.
	Resolve ResolveConfig `yaml:"resolve" json:"resolve"`
}

// ResolveConfig is the retry budget for extension-id resolution. The bound
// is explicit and testable rather than a magic constant.
type ResolveConfig struct {
	Attempts       int     `yaml:"attempts" json:"attempts"`
	InitialDelayMs int     `yaml:"initial_delay_ms" json:"initial_delay_ms"`
	Multiplier     float64 `yaml:"multiplier" json:"multiplier"`
}

// LLMConfig defines the OpenAI-compatible provider used for conversational
// replies and fallback intent classification.
type LLMConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
	Model   string `yaml:"model" json:"model"`

	// APIKeyEnv names the environment variable holding the key. The key
	// itself never appears in the config file.
	APIKeyEnv string `yaml:"api_key_env" json:"api_key_env"`
}

// APIKey reads the provider key from the configured environment variable.
func (l LLMConfig) APIKey() string {
	return os.Getenv(l.APIKeyEnv)
}

// LoggingConfig defines where component log files are written.
type LoggingConfig struct {
	Dir string `yaml:"dir" json:"dir"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8000",
		},
		Workspace: WorkspaceConfig{
			Root: "extensions",
			IgnorePatterns: []string{
				".git/**",
				"node_modules/**",
				"*.log",
				".DS_Store",
			},
		},
		Sessions: SessionsConfig{
			Dir: "sessions",
		},
		Engine: EngineConfig{
			Binary:         "gemini",
			Args:           []string{"--yolo", "--model", "gemini-2.5-flash"},
			PromptFlag:     "--prompt",
			TimeoutSeconds: 300,
		},
		Browser: BrowserConfig{
			Headless: false,
			TestURL:  "https://example.com",
			Resolve: ResolveConfig{
				Attempts:       10,
				InitialDelayMs: 250,
				Multiplier:     1.5,
			},
		},
		LLM: LLMConfig{
			BaseURL:   "https://api.openai.com/v1",
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
		},
	}
}

// Load reads the yaml config at path and merges it over the defaults.
// A missing file is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints the yaml schema cannot express.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Workspace.Root == "" {
		return fmt.Errorf("workspace.root is required")
	}
	if c.Sessions.Dir == "" {
		return fmt.Errorf("sessions.dir is required")
	}
	if c.Engine.Binary == "" {
		return fmt.Errorf("engine.binary is required")
	}
	if c.Engine.PromptFlag == "" {
		return fmt.Errorf("engine.prompt_flag is required")
	}
	if c.Browser.Resolve.Attempts <= 0 {
		return fmt.Errorf("browser.resolve.attempts must be positive")
	}
	if c.Browser.Resolve.Multiplier < 1 {
		return fmt.Errorf("browser.resolve.multiplier must be >= 1")
	}
	return nil
}

// WorkspaceDir returns the workspace directory for a session id.
func (c *Config) WorkspaceDir(sessionID string) string {
	return filepath.Join(c.Workspace.Root, sessionID)
}
