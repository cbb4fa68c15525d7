package routing

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/agentdesk/server/internal/agent/agents"
	"github.com/agentdesk/server/internal/agent/graph/prompts"
	"github.com/agentdesk/server/internal/agent/model"
	logx "github.com/agentdesk/server/pkg/logger"
)

// ExecuteInput carries the question context shared by every agent.
type ExecuteInput struct {
	SessionID string
	Question  string
	History   []*schema.Message
	Documents []string
}

// Executor runs the selected agents one after another. A failing agent
// never stops the others.
type Executor struct {
	registry *agents.Registry
}

func NewExecutor(registry *agents.Registry) *Executor {
	return &Executor{registry: registry}
}

// Execute folds every agent result into a round. With exactly one agent the
// round is a pass-through and its answer is that agent's output verbatim,
// failure text included.
func (e *Executor) Execute(ctx context.Context, decision model.RoutingDecision, in ExecuteInput) model.Round {
	round := model.Round{
		Question: in.Question,
		Decision: decision,
		Outcomes: make([]model.AgentOutcome, 0, len(decision.Labels)),
	}

	for _, label := range decision.Labels {
		task, ok := decision.Task(label)
		if !ok {
			task = prompts.TaskFor(label, in.Question)
		}
		res := e.run(ctx, label, agents.Request{
			SessionID: in.SessionID,
			Question:  in.Question,
			Task:      task,
			History:   in.History,
			Documents: in.Documents,
		})
		round.Outcomes = append(round.Outcomes, res.Outcome(label))
		round.Usage = append(round.Usage, res.Usage...)
	}

	if len(round.Outcomes) == 1 {
		round.PassThrough = true
		round.Answer = round.Outcomes[0].Output
	}
	return round
}

func (e *Executor) run(ctx context.Context, label model.AgentLabel, req agents.Request) (res agents.Result) {
	ctx, span := tracer.Start(ctx, "agent."+string(label))
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = agents.Failure(fmt.Errorf("panic: %v", r))
		}
		span.SetAttributes(attribute.Bool("agent.success", res.Succeeded()))
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
			logx.Warn().Err(res.Err).Str("agent", string(label)).Dur("took", time.Since(start)).Msg("agent failed")
		} else {
			logx.Debug().Str("agent", string(label)).Dur("took", time.Since(start)).Int("output_len", len(res.Output)).Msg("agent finished")
		}
		span.End()
	}()

	agent, ok := e.registry.Get(label)
	if !ok {
		return agents.Failure(fmt.Errorf("unknown agent: %s", label))
	}
	if err := ctx.Err(); err != nil {
		return agents.Failure(err)
	}
	return agent.Run(ctx, req)
}
