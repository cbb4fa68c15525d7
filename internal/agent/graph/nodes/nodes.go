package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/agentdesk/server/internal/agent/graph/conversations"
	"github.com/agentdesk/server/internal/agent/graph/prompts"
	"github.com/agentdesk/server/internal/agent/model"
	"github.com/agentdesk/server/internal/agent/routing"
	errx "github.com/agentdesk/server/internal/core/error"
	logx "github.com/agentdesk/server/pkg/logger"
)

// NewInputConverterPreHandler resets the per-question state.
func NewInputConverterPreHandler() func(context.Context, model.QueryInput, *model.AppState) (model.QueryInput, error) {
	return func(ctx context.Context, in model.QueryInput, s *model.AppState) (model.QueryInput, error) {
		s.SessionID = in.SessionID
		s.Question = in.Question
		s.History = nil
		s.Documents = nil
		s.Decision = nil
		s.Round = nil
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewInputConverterNode loads the session memory and prepares the classifier input.
func NewInputConverterNode(mm *conversations.MessagesManager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.QueryInput) (model.ClassifyInput, error) {
		sc, err := mm.LoadContext(ctx, input.SessionID)
		if err != nil {
			return model.ClassifyInput{}, fmt.Errorf("error getting session context: %w", err)
		}

		err = compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			state.History = sc.History
			state.Documents = sc.Documents
			return nil
		})
		if err != nil {
			return model.ClassifyInput{}, fmt.Errorf("failed to access state: %w", err)
		}

		doc, _ := sc.LatestDocument()
		return model.ClassifyInput{
			Question: input.Question,
			History:  sc.History,
			Document: doc,
		}, nil
	})
}

// NewClassifierNode runs the two-phase classifier.
func NewClassifierNode(c *routing.Classifier) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.ClassifyInput) (model.RoutingDecision, error) {
		return c.Classify(ctx, in)
	})
}

// NewClassifierPostHandler stores the decision and its cost.
func NewClassifierPostHandler() func(context.Context, model.RoutingDecision, *model.AppState) (model.RoutingDecision, error) {
	return func(ctx context.Context, out model.RoutingDecision, state *model.AppState) (model.RoutingDecision, error) {
		state.Decision = &out
		recordUsages(state, NodeClassifier, out.Usage)
		logx.Debug().
			Str("conversation_id", state.SessionID).
			Str("strategy", string(out.Strategy)).
			Str("agents", routing.JoinLabels(out.Labels)).
			Msg("Question classified")
		return out, nil
	}
}

// NewExecutorNode runs the selected agents against the question context held in state.
func NewExecutorNode(e *routing.Executor) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, decision model.RoutingDecision) (model.Round, error) {
		var in routing.ExecuteInput
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			in = routing.ExecuteInput{
				SessionID: state.SessionID,
				Question:  state.Question,
				History:   state.History,
				Documents: state.Documents,
			}
			return nil
		})
		if err != nil {
			return model.Round{}, fmt.Errorf("failed to access state: %w", err)
		}
		return e.Execute(ctx, decision, in), nil
	})
}

// NewExecutorPostHandler stores the round and the agents' cost.
func NewExecutorPostHandler() func(context.Context, model.Round, *model.AppState) (model.Round, error) {
	return func(ctx context.Context, out model.Round, state *model.AppState) (model.Round, error) {
		state.Round = &out
		recordUsages(state, NodeExecutor, out.Usage)
		if failed := out.Failed(); len(failed) > 0 {
			logx.Warn().
				Str("conversation_id", state.SessionID).
				Str("failed_agents", routing.JoinLabels(failed)).
				Msg("Some agents failed")
		}
		return out, nil
	}
}

// NewCollaborationCondition sends single-agent rounds around the merger.
func NewCollaborationCondition() func(context.Context, model.Round) (string, error) {
	return func(ctx context.Context, round model.Round) (string, error) {
		if round.PassThrough {
			logx.Debug().Msg("Single agent answer - skipping merger")
			return NodePassThrough, nil
		}
		logx.Debug().Int("agent_count", len(round.Outcomes)).Msg("Routing to merger")
		return NodeMergeAssembler, nil
	}
}

// NewPassThroughNode turns a single agent's output into the draft answer.
func NewPassThroughNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, round model.Round) (*schema.Message, error) {
		return schema.AssistantMessage(round.Answer, nil), nil
	})
}

// NewMergeAssemblerNode builds the merger request from every outcome.
func NewMergeAssemblerNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, round model.Round) ([]*schema.Message, error) {
		msgs, err := prompts.RenderMerge(ctx, round)
		if err != nil {
			return nil, errx.WrapMerge(err)
		}
		return msgs, nil
	})
}

// NewUsagePostHandler records the cost of a chat model node.
func NewUsagePostHandler(node, modelName string) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		recordModelUsage(state, node, modelName, out)
		return out, nil
	}
}

// NewFinalizeAssemblerNode asks for a cleaned-up version of the draft.
func NewFinalizeAssemblerNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, draft *schema.Message) ([]*schema.Message, error) {
		var question string
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			question = state.Question
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}
		content := ""
		if draft != nil {
			content = draft.Content
		}
		msgs, err := prompts.RenderFinalize(ctx, question, content)
		if err != nil {
			return nil, errx.WrapFinalize(err)
		}
		return msgs, nil
	})
}

// NewFinalizerPostHandler records cost, attaches the round and persists the
// exchange. Persistence failures are logged and never surface.
func NewFinalizerPostHandler(
	mm *conversations.MessagesManager,
	modelName string,
) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		if out == nil {
			return nil, errx.WrapFinalize(fmt.Errorf("model %s returned no message", modelName))
		}
		recordModelUsage(state, NodeFinalizerChatModel, modelName, out)

		if out.Extra == nil {
			out.Extra = map[string]any{}
		}
		if state.Round != nil {
			out.Extra[ExtraRound] = *state.Round
		}
		out.Extra[ExtraTotalCostUSD] = state.TotalCostUSD

		if strings.TrimSpace(out.Content) == "" {
			return out, nil
		}
		if err := mm.SaveExchange(ctx, state.SessionID, state.Question, out.Content); err != nil {
			logx.Error().
				Str("conversation_id", state.SessionID).
				Err(err).
				Msg("Error saving exchange in finalizer post handler")
		} else {
			logx.Debug().
				Str("conversation_id", state.SessionID).
				Msg("Successfully saved exchange to Redis")
		}
		return out, nil
	}
}
