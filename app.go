package main

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/agentdesk/server/internal/agent/agents"
	"github.com/agentdesk/server/internal/agent/graph"
	"github.com/agentdesk/server/internal/agent/graph/nodes"
	"github.com/agentdesk/server/internal/agent/repo"
	"github.com/agentdesk/server/internal/agent/retrieval"
	"github.com/agentdesk/server/internal/agent/service"
	"github.com/agentdesk/server/internal/debate"
	"github.com/agentdesk/server/pkg/events"
	logx "github.com/agentdesk/server/pkg/logger"
	pkgnats "github.com/agentdesk/server/pkg/nats"
	"github.com/agentdesk/server/pkg/tracer"
)

// App holds the wired components and releases them on Close.
type App struct {
	Config    AppConfig
	Assistant *service.Assistant
	Publisher events.Publisher

	chatModels *nodes.ChatModels
	closers    []func(context.Context) error
}

// NewApp connects to Redis, NATS and Gemini and builds the assistant.
func NewApp(ctx context.Context, cfg AppConfig) (*App, error) {
	app := &App{Config: cfg, Publisher: events.NoopPublisher{}}

	app.closers = append(app.closers, tracer.Init(ctx, cfg.Tracing))

	rdb, err := cfg.Redis.New(ctx)
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("failed to initialise Redis client: %w", err)
	}
	app.closers = append(app.closers, closeRedis(rdb))
	logx.Debug().Msg("Connected to Redis successfully")

	if cfg.NATS.URL != "" {
		pub, err := pkgnats.NewPublisher(ctx, cfg.NATS.URL)
		if err != nil {
			// events are best effort
			logx.Warn().Err(err).Msg("NATS unavailable, events disabled")
		} else {
			app.Publisher = pub
			app.closers = append(app.closers, func(context.Context) error { pub.Close(); return nil })
		}
	}

	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Classifier: cfg.Classifier.ChatModelConfig,
		Agent:      cfg.Agent,
		Response:   cfg.Response,
	})
	if err != nil {
		app.Close(ctx)
		return nil, err
	}
	app.chatModels = cms

	loader, err := retrieval.NewFileLoader(ctx, cfg.FileQA.MaxBytes)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}
	splitter, err := retrieval.NewChunkTransformer(ctx, cfg.FileQA.ChunkSize, cfg.FileQA.ChunkOverlap)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}
	index := retrieval.NewIndexCache(retrieval.IndexCacheConfig{
		Loader:        loader,
		Transformer:   splitter,
		DocEmbedder:   retrieval.NewGenAIEmbedder(cms.Client, cfg.FileQA.EmbeddingModel, retrieval.TaskRetrievalDocument),
		QueryEmbedder: retrieval.NewGenAIEmbedder(cms.Client, cfg.FileQA.EmbeddingModel, retrieval.TaskRetrievalQuery),
		TopK:          cfg.FileQA.TopK,
		TTL:           cfg.FileQA.CacheTTL,
	})

	sessions := repo.NewRedisConversationRepository(rdb, cfg.Conversation.TTL)
	runner, err := graph.BuildResponseGraph(ctx, graph.Config{
		ChatModels:   cms,
		Searcher:     agents.NewGeminiSearcher(cms.Client, cfg.Search.Model),
		Index:        index,
		Classifier:   cfg.Classifier,
		Conversation: cfg.Conversation,
		SessionRepo:  sessions,
	})
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("failed to build graph: %w", err)
	}

	app.Assistant = service.NewAssistant(runner, sessions,
		service.WithIndex(index),
		service.WithPublisher(app.Publisher),
		service.WithAskTimeout(cfg.AskTimeout),
	)
	return app, nil
}

// NewDebateEngine builds a debate engine on the configured debate model.
func (a *App) NewDebateEngine(ctx context.Context) (*debate.Engine, error) {
	chat, err := nodes.NewGeminiChatModel(ctx, a.chatModels.Client, a.Config.DebateModel())
	if err != nil {
		return nil, fmt.Errorf("error creating debate model: %w", err)
	}
	return debate.NewEngine(ctx, chat, a.Config.Debate.Model)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logx.Warn().Err(err).Msg("error during shutdown")
		}
	}
	a.closers = nil
}

func closeRedis(rdb *goredis.Client) func(context.Context) error {
	return func(context.Context) error { return rdb.Close() }
}
