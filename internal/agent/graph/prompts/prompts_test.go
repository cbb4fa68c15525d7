package prompts

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentdesk/server/internal/agent/model"
)

func TestRenderClassifierLabel(t *testing.T) {
	msgs, err := RenderClassifierLabel(context.Background(), "hello there", "User: hi")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "fileqa")
	assert.Contains(t, msgs[0].Content, "User: hi")
	assert.Equal(t, "hello there", msgs[1].Content)
}

func TestRenderClassifierPlanMentionsDocument(t *testing.T) {
	msgs, err := RenderClassifierPlan(context.Background(), "summarise it", "", "/tmp/report.md")
	require.NoError(t, err)
	assert.Contains(t, msgs[0].Content, `"agents"`)
	assert.Contains(t, msgs[0].Content, "/tmp/report.md")
	assert.NotContains(t, msgs[0].Content, "Conversation so far")
}

func TestRenderMergeIncludesFailedOutcomesVerbatim(t *testing.T) {
	round := model.Round{
		Question: "weather and 15*23",
		Decision: model.RoutingDecision{Rationale: "search then compute"},
		Outcomes: []model.AgentOutcome{
			{Label: model.AgentSearch, Output: "search agent failed: timeout", Success: false},
			{Label: model.AgentMath, Output: "15 × 23 = 345", Success: true},
		},
	}
	msgs, err := RenderMerge(context.Background(), round)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	content := msgs[0].Content
	assert.Contains(t, content, "=== search (failed) ===\nsearch agent failed: timeout")
	assert.Contains(t, content, "=== math (ok) ===\n15 × 23 = 345")
	assert.Contains(t, content, "search then compute")
}

func TestRenderMergeDoesNotEvaluateAgentText(t *testing.T) {
	round := model.Round{Outcomes: []model.AgentOutcome{{Label: model.AgentMath, Output: "{{.Question}}", Success: true}}}
	msgs, err := RenderMerge(context.Background(), round)
	require.NoError(t, err)
	assert.Contains(t, msgs[0].Content, "{{.Question}}")
}

func TestRenderFinalize(t *testing.T) {
	msgs, err := RenderFinalize(context.Background(), "q?", "draft text")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Content, "do not add new information")
	assert.Contains(t, msgs[1].Content, "draft text")
}

func TestRenderFileQASystemNumbersChunks(t *testing.T) {
	sys, err := RenderFileQASystem(context.Background(), "/docs/a.txt", []string{"alpha", "beta"})
	require.NoError(t, err)
	assert.Contains(t, sys, "[1] alpha")
	assert.Contains(t, sys, "[2] beta")
	assert.Contains(t, sys, "/docs/a.txt")
}

func TestTaskFor(t *testing.T) {
	task := TaskFor(model.AgentMath, "帮我计算18乘以3")
	assert.Contains(t, task, "calculations")
	assert.Contains(t, task, "User question: 帮我计算18乘以3")
	assert.Equal(t, "raw", TaskFor(model.AgentLabel("other"), "raw"))
}

func TestAgentSystem(t *testing.T) {
	for _, l := range []model.AgentLabel{model.AgentGeneral, model.AgentMath, model.AgentKnowledge} {
		p, err := AgentSystem(l)
		require.NoError(t, err)
		assert.NotEmpty(t, p)
	}
	_, err := AgentSystem(model.AgentSearch)
	assert.Error(t, err)
}
