// Package config loads runtime settings from the environment and an optional
// YAML file. Environment variables win over file values; every knob has a
// working default so a bare process starts (minus the API key).
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Settings is the resolved runtime configuration.
type Settings struct {
	// DeepSeek provider.
	DeepSeekAPIKey  string `mapstructure:"deepseek_api_key"`
	DeepSeekAPIBase string `mapstructure:"deepseek_api_base"`
	DeepSeekModel   string `mapstructure:"deepseek_model"`

	// Generation parameters.
	Temperature    float64       `mapstructure:"temperature"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`

	// Pipeline.
	TopK          int `mapstructure:"rag_top_k"`
	MaxIterations int `mapstructure:"max_iterations"`

	// Storage.
	ReportDirectory string `mapstructure:"report_directory"`
	VectorStorePath string `mapstructure:"vector_store_path"`

	// HTTP server.
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	LogLevel string `mapstructure:"log_level"`
}

// Load resolves settings from the environment and, when configFile is
// non-empty, a YAML file. A missing config file is only an error when it was
// requested explicitly.
func Load(configFile string) (*Settings, error) {
	v := viper.New()

	v.SetDefault("deepseek_api_base", "https://api.deepseek.com/v1")
	v.SetDefault("deepseek_model", "deepseek-chat")
	v.SetDefault("temperature", 0.7)
	v.SetDefault("max_tokens", 4000)
	v.SetDefault("request_timeout", 60*time.Second)
	v.SetDefault("max_retries", 3)
	v.SetDefault("rag_top_k", 4)
	v.SetDefault("max_iterations", 10)
	v.SetDefault("report_directory", "reports")
	v.SetDefault("vector_store_path", "")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8000)
	v.SetDefault("log_level", "info")

	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("config: unmarshal settings: %w", err)
	}

	return settings, nil
}

// Validate checks the settings needed to serve real requests.
func (s *Settings) Validate() error {
	if s.DeepSeekAPIKey == "" {
		return errors.New("config: DEEPSEEK_API_KEY is required")
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", s.Port)
	}
	return nil
}

// Addr is the HTTP listen address.
func (s *Settings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
