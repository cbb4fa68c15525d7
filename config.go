package main

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/agentdesk/server/internal/agent/model"
	"github.com/agentdesk/server/internal/core"
	pkgnats "github.com/agentdesk/server/pkg/nats"
	pkgredis "github.com/agentdesk/server/pkg/redis"
	"github.com/agentdesk/server/pkg/tracer"
)

// AppConfig defines all configurable parameters of the assistant, sourced
// from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Redis   pkgredis.Config
	NATS    pkgnats.Config
	Tracing tracer.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Classifier   model.ClassifierConfig `envconfig:"CLASSIFIER"`
	Agent        model.ChatModelConfig  `envconfig:"AGENT"`
	Response     model.ChatModelConfig  `envconfig:"RESPONSE"`
	Search       model.SearchConfig
	FileQA       model.FileQAConfig
	Conversation model.ConversationConfig
	Debate       model.DebateConfig

	// AskTimeout bounds one question end to end; zero disables it.
	AskTimeout time.Duration `envconfig:"ASK_TIMEOUT" default:"0s"`
}

func (c AppConfig) Env() core.Environment {
	return core.ParseEnvironment(c.Environment)
}

// LoadConfig reads envFile when present, then the process environment.
func LoadConfig(envFile string) (AppConfig, error) {
	var cfg AppConfig
	if envFile != "" {
		// a missing .env is normal outside local development
		_ = godotenv.Load(envFile)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("failed to process environment config: %w", err)
	}
	return cfg, nil
}

// DebateModel is the chat model configuration of debate speakers.
func (c AppConfig) DebateModel() model.ChatModelConfig {
	return model.ChatModelConfig{
		Model:       c.Debate.Model,
		MaxTokens:   c.Debate.MaxTokens,
		Temperature: c.Debate.Temperature,
	}
}
