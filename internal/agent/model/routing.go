package model

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// AgentLabel names a specialist. The set is closed.
type AgentLabel string

const (
	AgentGeneral   AgentLabel = "general"
	AgentMath      AgentLabel = "math"
	AgentSearch    AgentLabel = "search"
	AgentKnowledge AgentLabel = "knowledge"
	AgentFileQA    AgentLabel = "fileqa"
)

// AllAgents lists every label in canonical order.
var AllAgents = []AgentLabel{AgentGeneral, AgentMath, AgentSearch, AgentKnowledge, AgentFileQA}

// SpecialistAgents are the labels a collaboration plan may select.
var SpecialistAgents = []AgentLabel{AgentMath, AgentSearch, AgentKnowledge, AgentFileQA}

func (l AgentLabel) String() string { return string(l) }

// IsSpecialist reports whether the label may appear in a collaboration plan.
func (l AgentLabel) IsSpecialist() bool {
	for _, s := range SpecialistAgents {
		if s == l {
			return true
		}
	}
	return false
}

// ParseAgentLabel accepts labels case-insensitively, ignoring surrounding
// whitespace, quotes and trailing punctuation.
func ParseAgentLabel(s string) (AgentLabel, error) {
	v := strings.ToLower(strings.Trim(strings.TrimSpace(s), "\"'`.,:;!。，：；！ \t\r\n"))
	if v == "file_qa" || v == "file-qa" {
		v = string(AgentFileQA)
	}
	for _, l := range AllAgents {
		if string(l) == v {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown agent label %q", s)
}

// Strategy records how a routing decision was reached.
type Strategy string

const (
	StrategyFastPath Strategy = "fast_path"
	StrategyLLM      Strategy = "llm"
	StrategyKeyword  Strategy = "keyword"
)

// Usage is the token accounting of one model call.
type Usage struct {
	Model  string
	Tokens *schema.TokenUsage
}

// CostUSD prices the usage with the built-in pricing table.
func (u Usage) CostUSD() float64 {
	_, _, total := ComputeCost(u.Tokens, ResolvePricing(u.Model))
	return total
}

// RoutingDecision is the classifier's choice of agents.
type RoutingDecision struct {
	Labels    []AgentLabel
	Tasks     map[AgentLabel]string
	Rationale string
	Strategy  Strategy
	Usage     []Usage
}

// Task returns the sub-task assigned to label, if any.
func (d RoutingDecision) Task(label AgentLabel) (string, bool) {
	t, ok := d.Tasks[label]
	if !ok || strings.TrimSpace(t) == "" {
		return "", false
	}
	return t, true
}

// IsCollaborative reports whether more than one agent was selected.
func (d RoutingDecision) IsCollaborative() bool {
	return len(d.Labels) > 1
}

// AgentOutcome is the textual result of one agent invocation. Failed
// outcomes carry the error text as Output.
type AgentOutcome struct {
	Label   AgentLabel
	Output  string
	Success bool
	Sources []string
}

// Round is everything the executor produced for one question.
type Round struct {
	Question    string
	Decision    RoutingDecision
	Outcomes    []AgentOutcome
	PassThrough bool
	Answer      string
	Usage       []Usage
}

// ByLabel returns the outcomes keyed by agent.
func (r Round) ByLabel() map[AgentLabel]AgentOutcome {
	m := make(map[AgentLabel]AgentOutcome, len(r.Outcomes))
	for _, o := range r.Outcomes {
		m[o.Label] = o
	}
	return m
}

// Failed returns the labels whose invocation failed.
func (r Round) Failed() []AgentLabel {
	var out []AgentLabel
	for _, o := range r.Outcomes {
		if !o.Success {
			out = append(out, o.Label)
		}
	}
	return out
}
