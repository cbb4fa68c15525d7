package routing

import (
	"context"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/agentdesk/server/internal/agent/graph/conversations"
	"github.com/agentdesk/server/internal/agent/graph/parsers"
	"github.com/agentdesk/server/internal/agent/graph/prompts"
	"github.com/agentdesk/server/internal/agent/model"
	errx "github.com/agentdesk/server/internal/core/error"
	logx "github.com/agentdesk/server/pkg/logger"
)

var tracer = otel.Tracer("github.com/agentdesk/server/internal/agent/routing")

// Classifier decides which agents handle a question. A "general" label from
// the first call short-circuits; otherwise a JSON collaboration plan is
// requested and, when unusable, the fallback strategy decides.
type Classifier struct {
	chat        einomodel.BaseChatModel
	modelName   string
	maxAttempts int
	retryDelay  time.Duration
	fallback    FallbackStrategy
}

type ClassifierOption func(*Classifier)

// WithRetry sets how many times each model call is attempted.
func WithRetry(maxAttempts int, delay time.Duration) ClassifierOption {
	return func(c *Classifier) {
		c.maxAttempts = maxAttempts
		c.retryDelay = delay
	}
}

func WithFallback(f FallbackStrategy) ClassifierOption {
	return func(c *Classifier) { c.fallback = f }
}

func NewClassifier(chat einomodel.BaseChatModel, modelName string, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		chat:        chat,
		modelName:   modelName,
		maxAttempts: 1,
		fallback:    DefaultKeywordStrategy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxAttempts < 1 {
		c.maxAttempts = 1
	}
	return c
}

// Classify returns a non-empty decision. Model failures are fatal and
// wrapped as errx.ErrClassification.
func (c *Classifier) Classify(ctx context.Context, in model.ClassifyInput) (decision model.RoutingDecision, err error) {
	ctx, span := tracer.Start(ctx, "routing.classify")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.String("routing.strategy", string(decision.Strategy)),
				attribute.StringSlice("routing.agents", labelStrings(decision.Labels)),
			)
		}
		span.End()
	}()

	transcript := conversations.RenderTranscript(in.History)

	labelMsgs, err := prompts.RenderClassifierLabel(ctx, in.Question, transcript)
	if err != nil {
		return model.RoutingDecision{}, errx.WrapClassification(err)
	}
	labelReply, err := c.generate(ctx, labelMsgs)
	if err != nil {
		return model.RoutingDecision{}, errx.WrapClassification(err)
	}
	usage := c.usage(nil, labelReply)

	if label, perr := parsers.ParseLabel(labelReply.Content); perr == nil && label == model.AgentGeneral {
		logx.Debug().Str("strategy", string(model.StrategyFastPath)).Msg("question routed to general agent")
		return model.RoutingDecision{
			Labels:   []model.AgentLabel{model.AgentGeneral},
			Tasks:    map[model.AgentLabel]string{},
			Strategy: model.StrategyFastPath,
			Usage:    usage,
		}, nil
	}

	planMsgs, err := prompts.RenderClassifierPlan(ctx, in.Question, transcript, in.Document)
	if err != nil {
		return model.RoutingDecision{}, errx.WrapClassification(err)
	}
	planReply, err := c.generate(ctx, planMsgs)
	if err != nil {
		return model.RoutingDecision{}, errx.WrapClassification(err)
	}
	usage = c.usage(usage, planReply)

	plan, perr := parsers.ParseRoutingPlan(planReply.Content)
	if perr != nil {
		labels := c.fallback.Select(in.Question)
		logx.Warn().
			Err(perr).
			Str("fallback", c.fallback.Name()).
			Strs("agents", labelStrings(labels)).
			Msg("routing plan unusable, using fallback strategy")
		return model.RoutingDecision{
			Labels:   labels,
			Tasks:    map[model.AgentLabel]string{},
			Strategy: model.StrategyKeyword,
			Usage:    usage,
		}, nil
	}

	logx.Debug().
		Strs("agents", labelStrings(plan.Agents)).
		Str("collaboration", plan.Collaboration).
		Msg("routing plan accepted")
	return model.RoutingDecision{
		Labels:    plan.Agents,
		Tasks:     plan.Tasks,
		Rationale: plan.Collaboration,
		Strategy:  model.StrategyLLM,
		Usage:     usage,
	}, nil
}

// generate calls the model, retrying after a fixed delay.
func (c *Classifier) generate(ctx context.Context, msgs []*schema.Message) (*schema.Message, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		out, err := c.chat.Generate(ctx, msgs)
		if err == nil && out != nil {
			return out, nil
		}
		if err == nil {
			err = fmt.Errorf("model %s returned no message", c.modelName)
		}
		lastErr = err
		if attempt == c.maxAttempts {
			break
		}
		logx.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", c.maxAttempts).Msg("classifier call failed, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
	return nil, lastErr
}

func (c *Classifier) usage(acc []model.Usage, msg *schema.Message) []model.Usage {
	if msg.ResponseMeta == nil || msg.ResponseMeta.Usage == nil {
		return acc
	}
	return append(acc, model.Usage{Model: c.modelName, Tokens: msg.ResponseMeta.Usage})
}

func labelStrings(labels []model.AgentLabel) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = string(l)
	}
	return out
}

// JoinLabels renders labels as "a, b".
func JoinLabels(labels []model.AgentLabel) string {
	return strings.Join(labelStrings(labels), ", ")
}
