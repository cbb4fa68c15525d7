package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/agentdesk/server/internal/agent/agents"
	"github.com/agentdesk/server/internal/agent/graph/conversations"
	"github.com/agentdesk/server/internal/agent/graph/nodes"
	"github.com/agentdesk/server/internal/agent/graph/observers"
	"github.com/agentdesk/server/internal/agent/model"
	"github.com/agentdesk/server/internal/agent/routing"
	errx "github.com/agentdesk/server/internal/core/error"
	logx "github.com/agentdesk/server/pkg/logger"
)

const maxRunSteps = 20

// Runner answers one question of one session.
type Runner interface {
	Invoke(ctx context.Context, in model.QueryInput) (model.Answer, error)
}

// Config holds everything needed to compose the full response graph end-to-end.
// This is a convenience layer over GraphConfig that also builds the agents,
// the classifier and the MessagesManager.
type Config struct {
	ChatModels   *nodes.ChatModels
	Searcher     agents.Searcher
	Index        agents.DocumentIndex
	MaxSources   int
	Classifier   model.ClassifierConfig
	Conversation model.ConversationConfig
	SessionRepo  model.SessionRepository
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	Classifier         *routing.Classifier
	Executor           *routing.Executor
	Merger             einomodel.BaseChatModel
	MergerModelName    string
	Finalizer          einomodel.BaseChatModel
	FinalizerModelName string
	MessagesManager    *conversations.MessagesManager
}

// GraphBuilder handles the construction of the question answering graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.QueryInput, *schema.Message]
}

type graphRunner struct {
	runnable compose.Runnable[model.QueryInput, *schema.Message]
}

func (r *graphRunner) Invoke(ctx context.Context, in model.QueryInput) (model.Answer, error) {
	in.SessionID = strings.TrimSpace(in.SessionID)
	if in.SessionID == "" {
		return model.Answer{}, errx.InvalidInput("session id is required")
	}
	if strings.TrimSpace(in.Question) == "" {
		return model.Answer{}, errx.InvalidInput("question is empty")
	}

	out, err := r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		return model.Answer{}, err
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return model.Answer{}, errx.WrapFinalize(errors.New("finalizer returned an empty answer"))
	}

	answer := model.Answer{SessionID: in.SessionID, Text: strings.TrimSpace(out.Content)}
	if round, ok := out.Extra[nodes.ExtraRound].(model.Round); ok {
		answer.Agents = round.Decision.Labels
		answer.Strategy = round.Decision.Strategy
		answer.Outcomes = round.Outcomes
	}
	if cost, ok := out.Extra[nodes.ExtraTotalCostUSD].(float64); ok {
		answer.TotalCostUSD = cost
	}
	return answer, nil
}

// BuildResponseGraph builds the agents, the classifier and the graph, and returns a Runner.
func BuildResponseGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.SessionRepo == nil {
		return nil, fmt.Errorf("session repo is nil")
	}
	if cfg.ChatModels == nil {
		return nil, fmt.Errorf("chat models are nil")
	}
	cms := cfg.ChatModels

	registry, err := NewAgentRegistry(cfg)
	if err != nil {
		return nil, err
	}

	classifier := routing.NewClassifier(cms.Classifier, cms.ClassifierModelName,
		routing.WithRetry(cfg.Classifier.MaxAttempts, cfg.Classifier.RetryDelay),
	)

	runner, err := NewRunner(ctx, &GraphConfig{
		Classifier:         classifier,
		Executor:           routing.NewExecutor(registry),
		Merger:             cms.Response,
		MergerModelName:    cms.ResponseModelName,
		Finalizer:          cms.Response,
		FinalizerModelName: cms.ResponseModelName,
		MessagesManager:    conversations.NewMessagesManager(cfg.SessionRepo, cfg.Conversation),
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Strs("agents", labelStrings(registry.Labels())).Msg("Response graph built successfully")
	return runner, nil
}

// NewAgentRegistry registers the five agents on the agent chat model.
func NewAgentRegistry(cfg Config) (*agents.Registry, error) {
	cms := cfg.ChatModels
	var list []agents.Agent
	for _, label := range []model.AgentLabel{model.AgentGeneral, model.AgentMath, model.AgentKnowledge} {
		a, err := agents.NewChatAgent(label, cms.Agent, cms.AgentModelName)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	if cfg.Searcher != nil {
		list = append(list, agents.NewSearchAgent(cfg.Searcher, cms.Agent, cms.AgentModelName))
	}
	if cfg.Index != nil {
		list = append(list, agents.NewFileQAAgent(cfg.Index, cms.Agent, cms.AgentModelName, cfg.MaxSources))
	}
	return agents.NewRegistry(list...), nil
}

// NewRunner compiles the graph and wraps it as a Runner.
func NewRunner(ctx context.Context, config *GraphConfig) (Runner, error) {
	runnable, err := BuildGraph(ctx, config)
	if err != nil {
		return nil, err
	}
	return &graphRunner{runnable: runnable}, nil
}

// BuildGraph constructs and returns the compiled question answering graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.QueryInput, *schema.Message], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.Classifier == nil || config.Executor == nil {
		return nil, fmt.Errorf("classifier and executor are required")
	}
	if config.Merger == nil || config.Finalizer == nil {
		return nil, fmt.Errorf("chat models are not properly initialized")
	}
	if config.MessagesManager == nil {
		return nil, fmt.Errorf("messages manager is nil")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.QueryInput, *schema.Message](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{}
			}),
		),
	}

	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() error {
	c := b.config
	add := []func() error{
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeInputConverter,
				nodes.NewInputConverterNode(c.MessagesManager),
				compose.WithStatePreHandler(nodes.NewInputConverterPreHandler()),
			)
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeClassifier,
				nodes.NewClassifierNode(c.Classifier),
				compose.WithStatePostHandler(nodes.NewClassifierPostHandler()),
			)
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeExecutor,
				nodes.NewExecutorNode(c.Executor),
				compose.WithStatePostHandler(nodes.NewExecutorPostHandler()),
			)
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodePassThrough, nodes.NewPassThroughNode())
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeMergeAssembler, nodes.NewMergeAssemblerNode())
		},
		func() error {
			return b.graph.AddChatModelNode(nodes.NodeMergerChatModel,
				nodes.WithErrorKind(c.Merger, errx.WrapMerge),
				compose.WithStatePostHandler(nodes.NewUsagePostHandler(nodes.NodeMergerChatModel, c.MergerModelName)),
			)
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeFinalizeAssembler, nodes.NewFinalizeAssemblerNode())
		},
		func() error {
			return b.graph.AddChatModelNode(nodes.NodeFinalizerChatModel,
				nodes.WithErrorKind(c.Finalizer, errx.WrapFinalize),
				compose.WithStatePostHandler(nodes.NewFinalizerPostHandler(c.MessagesManager, c.FinalizerModelName)),
			)
		},
	}
	for _, fn := range add {
		if err := fn(); err != nil {
			logx.Error().Err(err).Msg("Error adding graph node")
			return fmt.Errorf("error adding graph node: %w", err)
		}
	}
	return nil
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeInputConverter},
		{nodes.NodeInputConverter, nodes.NodeClassifier},
		{nodes.NodeClassifier, nodes.NodeExecutor},
		{nodes.NodeMergeAssembler, nodes.NodeMergerChatModel},
		{nodes.NodeMergerChatModel, nodes.NodeFinalizeAssembler},
		{nodes.NodePassThrough, nodes.NodeFinalizeAssembler},
		{nodes.NodeFinalizeAssembler, nodes.NodeFinalizerChatModel},
		{nodes.NodeFinalizerChatModel, compose.END},
	}

	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			logx.Error().Err(err).Str("from", edge[0]).Str("to", edge[1]).Msg("Error adding edge")
			return fmt.Errorf("error adding edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	collaborationBranch := compose.NewGraphBranch(
		nodes.NewCollaborationCondition(),
		map[string]bool{
			nodes.NodePassThrough:    true,
			nodes.NodeMergeAssembler: true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeExecutor, collaborationBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding collaboration branch")
		return fmt.Errorf("error adding collaboration branch: %w", err)
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.QueryInput, *schema.Message], error) {
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(maxRunSteps))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}

func labelStrings(labels []model.AgentLabel) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = string(l)
	}
	return out
}
