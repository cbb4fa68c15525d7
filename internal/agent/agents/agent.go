package agents

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/agentdesk/server/internal/agent/model"
)

// Request is what an agent receives for one question.
type Request struct {
	SessionID string
	// Question is the raw user question.
	Question string
	// Task is the instruction for this agent: a planned sub-task or the
	// question framed for the agent's speciality.
	Task      string
	History   []*schema.Message
	Documents []string
}

// Result is either a success carrying output text or a failure carrying the
// error. Agents never return Go errors for expected failures.
type Result struct {
	Output  string
	Err     error
	Sources []string
	Usage   []model.Usage
}

func Success(output string, usage ...model.Usage) Result {
	return Result{Output: output, Usage: usage}
}

func Failure(err error, usage ...model.Usage) Result {
	return Result{Err: err, Usage: usage}
}

func (r Result) Succeeded() bool { return r.Err == nil }

// Outcome converts the result into the outcome recorded for label. Failed
// results become their error text so downstream steps can still use them.
func (r Result) Outcome(label model.AgentLabel) model.AgentOutcome {
	if r.Err != nil {
		return model.AgentOutcome{
			Label:   label,
			Output:  fmt.Sprintf("%s agent failed: %v", label, r.Err),
			Success: false,
		}
	}
	return model.AgentOutcome{Label: label, Output: r.Output, Success: true, Sources: r.Sources}
}

// Agent wraps one capability behind a uniform contract.
type Agent interface {
	Label() model.AgentLabel
	Run(ctx context.Context, req Request) Result
}

// Registry resolves agents by label.
type Registry struct {
	agents map[model.AgentLabel]Agent
}

func NewRegistry(agents ...Agent) *Registry {
	r := &Registry{agents: make(map[model.AgentLabel]Agent, len(agents))}
	for _, a := range agents {
		r.agents[a.Label()] = a
	}
	return r
}

func (r *Registry) Get(label model.AgentLabel) (Agent, bool) {
	a, ok := r.agents[label]
	return a, ok
}

// Labels returns the registered labels in canonical order.
func (r *Registry) Labels() []model.AgentLabel {
	var out []model.AgentLabel
	for _, l := range model.AllAgents {
		if _, ok := r.agents[l]; ok {
			out = append(out, l)
		}
	}
	return out
}

// usageOf extracts token usage from a model reply.
func usageOf(modelName string, msg *schema.Message) []model.Usage {
	if msg == nil || msg.ResponseMeta == nil || msg.ResponseMeta.Usage == nil {
		return nil
	}
	return []model.Usage{{Model: modelName, Tokens: msg.ResponseMeta.Usage}}
}
