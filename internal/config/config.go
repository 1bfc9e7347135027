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
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/datalens-cli/internal/ai"
	"github.com/KaramelBytes/datalens-cli/internal/utils"
)

// DefaultSystemPrompt is sent ahead of every question.
const DefaultSystemPrompt = "You are a helpful data analysis assistant."

// Global configuration structure.
type Global struct {
	APIKey          string  `mapstructure:"api_key" yaml:"api_key"`
	DefaultProvider string  `mapstructure:"default_provider" yaml:"default_provider"`
	DefaultModel    string  `mapstructure:"default_model" yaml:"default_model"`
	BaseURL         string  `mapstructure:"base_url" yaml:"base_url,omitempty"`
	SystemPrompt    string  `mapstructure:"system_prompt" yaml:"system_prompt"`
	MaxTokens       int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost       string `mapstructure:"ollama_host" yaml:"ollama_host"`
	OllamaTimeoutSec int    `mapstructure:"ollama_timeout_sec" yaml:"ollama_timeout_sec"`

	// Loading and summarizing
	HeadRows         int    `mapstructure:"head_rows" yaml:"head_rows"`
	MaxRows          int    `mapstructure:"max_rows" yaml:"max_rows"`
	CSVDelimiter     string `mapstructure:"csv_delimiter" yaml:"csv_delimiter"`
	MinConfidence    int    `mapstructure:"min_confidence" yaml:"min_confidence"`
	FallbackEncoding string `mapstructure:"fallback_encoding" yaml:"fallback_encoding"`

	// HTTP surface
	ServeAddr   string `mapstructure:"serve_addr" yaml:"serve_addr"`
	MaxUploadMB int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
}

// Dir returns ~/.datalens.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".datalens"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.datalens/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	return utils.SafeWriteFile(path, b)
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. A .env file in the working
// directory is read first; variables already set in the environment win.
func Load(cfgFile string) (*Global, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("DATALENS")
	v.AutomaticEnv()

	v.SetDefault("api_key", "")
	v.SetDefault("default_provider", ai.ProviderGroq)
	v.SetDefault("default_model", ai.DefaultModel)
	v.SetDefault("base_url", "")
	v.SetDefault("system_prompt", DefaultSystemPrompt)
	v.SetDefault("max_tokens", 1000)
	v.SetDefault("temperature", 0.5)
	// HTTP/retry defaults; a single attempt unless configured otherwise
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 1)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("ollama_host", ai.DefaultOllamaHost)
	v.SetDefault("ollama_timeout_sec", 60)
	v.SetDefault("head_rows", 5)
	v.SetDefault("max_rows", 0)
	v.SetDefault("csv_delimiter", ",")
	v.SetDefault("min_confidence", 0)
	v.SetDefault("fallback_encoding", "")
	v.SetDefault("serve_addr", ":8080")
	v.SetDefault("max_upload_mb", 100)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; config set creates it.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// ResolveAPIKey returns the configured key, or the provider's conventional
// environment variable (GROQ_API_KEY, OPENROUTER_API_KEY) when unset.
func (c *Global) ResolveAPIKey(provider string) string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if env := ai.APIKeyEnv(provider); env != "" {
		return os.Getenv(env)
	}
	return ""
}

// Delimiter returns the first rune of csv_delimiter, with "\t" and "tab"
// accepted for tab.
func (c *Global) Delimiter() rune {
	switch c.CSVDelimiter {
	case "", ",":
		return ','
	case `\t`, "tab", "\t":
		return '\t'
	}
	return []rune(c.CSVDelimiter)[0]
}

// Set assigns one key from its string form.
func (c *Global) Set(key, val string) error {
	atoi := func() (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return 0, fmt.Errorf("invalid non-negative int for %s: %q", key, val)
		}
		return i, nil
	}
	var err error
	switch key {
	case "api_key":
		c.APIKey = val
	case "default_provider":
		p := strings.ToLower(strings.TrimSpace(val))
		if p == "local" {
			p = ai.ProviderOllama
		}
		if _, ok := ai.GetRuntime(p, ai.RuntimeConfig{}); !ok {
			return fmt.Errorf("invalid default_provider: %s (use %s)", val, strings.Join(ai.Providers(), ", "))
		}
		c.DefaultProvider = p
	case "default_model":
		c.DefaultModel = val
	case "base_url":
		c.BaseURL = val
	case "system_prompt":
		c.SystemPrompt = val
	case "max_tokens":
		c.MaxTokens, err = atoi()
	case "temperature":
		f, perr := strconv.ParseFloat(val, 64)
		if perr != nil || f < 0 || f > 2 {
			return fmt.Errorf("invalid float for temperature: %q (0-2)", val)
		}
		c.Temperature = f
	case "http_timeout_sec":
		c.HTTPTimeoutSec, err = atoi()
	case "retry_max_attempts":
		c.RetryMaxAttempts, err = atoi()
	case "retry_base_delay_ms":
		c.RetryBaseDelayMs, err = atoi()
	case "retry_max_delay_ms":
		c.RetryMaxDelayMs, err = atoi()
	case "ollama_host":
		c.OllamaHost = val
	case "ollama_timeout_sec":
		c.OllamaTimeoutSec, err = atoi()
	case "head_rows":
		c.HeadRows, err = atoi()
	case "max_rows":
		c.MaxRows, err = atoi()
	case "csv_delimiter":
		if val == "" {
			return fmt.Errorf("csv_delimiter cannot be empty")
		}
		c.CSVDelimiter = val
	case "min_confidence":
		c.MinConfidence, err = atoi()
		if err == nil && c.MinConfidence > 100 {
			return fmt.Errorf("min_confidence must be 0-100")
		}
	case "fallback_encoding":
		c.FallbackEncoding = val
	case "serve_addr":
		c.ServeAddr = val
	case "max_upload_mb":
		c.MaxUploadMB, err = atoi()
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}
