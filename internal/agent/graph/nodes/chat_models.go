package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/agentdesk/server/internal/agent/model"
	logx "github.com/agentdesk/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey     string
	BaseURL    string
	Classifier model.ChatModelConfig
	Agent      model.ChatModelConfig
	Response   model.ChatModelConfig
}

// ChatModels holds the Gemini models used by the graph and its agents. The
// Response model serves both the merger and the finalizer.
type ChatModels struct {
	Client *genai.Client

	Classifier einomodel.BaseChatModel
	Agent      einomodel.BaseChatModel
	Response   einomodel.BaseChatModel

	ClassifierModelName string
	AgentModelName      string
	ResponseModelName   string
}

// NewGenAIClient creates the Gemini client shared by chat models, the
// embedder and the web searcher.
func NewGenAIClient(ctx context.Context, apiKey, baseURL string) (*genai.Client, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		clientCfg.HTTPOptions.BaseURL = baseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}
	return client, nil
}

// NewChatModels creates the classifier, agent and response chat models.
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	client, err := NewGenAIClient(ctx, config.APIKey, config.BaseURL)
	if err != nil {
		return nil, err
	}

	classifier, err := NewGeminiChatModel(ctx, client, config.Classifier)
	if err != nil {
		return nil, fmt.Errorf("error creating classifier model: %w", err)
	}
	agent, err := NewGeminiChatModel(ctx, client, config.Agent)
	if err != nil {
		return nil, fmt.Errorf("error creating agent model: %w", err)
	}
	response, err := NewGeminiChatModel(ctx, client, config.Response)
	if err != nil {
		return nil, fmt.Errorf("error creating response model: %w", err)
	}

	return &ChatModels{
		Client:              client,
		Classifier:          classifier,
		Agent:               agent,
		Response:            response,
		ClassifierModelName: config.Classifier.Model,
		AgentModelName:      config.Agent.Model,
		ResponseModelName:   config.Response.Model,
	}, nil
}

// NewGeminiChatModel builds one eino Gemini chat model. Thinking is enabled
// only with a positive budget.
func NewGeminiChatModel(ctx context.Context, client *genai.Client, cfg model.ChatModelConfig) (*gemini.ChatModel, error) {
	temperature := cfg.Temperature
	maxTokens := cfg.MaxTokens
	gcfg := &gemini.Config{
		Client:      client,
		Model:       cfg.Model,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}
	if cfg.ThinkingBudget > 0 {
		gcfg.ThinkingConfig = &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(cfg.ThinkingBudget),
		}
	}

	cm, err := gemini.NewChatModel(ctx, gcfg)
	if err != nil {
		logx.Error().Err(err).Str("model", cfg.Model).Msg("Error creating Gemini chat model")
		return nil, err
	}
	return cm, nil
}

// phaseModel tags every error of the wrapped model with the phase it
// belongs to, so callers can tell a merge failure from a finalize failure.
type phaseModel struct {
	einomodel.BaseChatModel
	wrap func(error) error
}

// WithErrorKind wraps chat so that its errors pass through wrap.
func WithErrorKind(chat einomodel.BaseChatModel, wrap func(error) error) einomodel.BaseChatModel {
	return &phaseModel{BaseChatModel: chat, wrap: wrap}
}

func (m *phaseModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	out, err := m.BaseChatModel.Generate(ctx, input, opts...)
	if err != nil {
		return nil, m.wrap(err)
	}
	return out, nil
}

func (m *phaseModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	sr, err := m.BaseChatModel.Stream(ctx, input, opts...)
	if err != nil {
		return nil, m.wrap(err)
	}
	return sr, nil
}

// IsCallbacksEnabled defers to the wrapped model so callbacks fire once.
func (m *phaseModel) IsCallbacksEnabled() bool {
	if c, ok := m.BaseChatModel.(components.Checker); ok {
		return c.IsCallbacksEnabled()
	}
	return false
}

func (m *phaseModel) GetType() string {
	if t, ok := components.GetType(m.BaseChatModel); ok {
		return t
	}
	return "ChatModel"
}
