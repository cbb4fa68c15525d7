package agents

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentdesk/server/internal/agent/agenttest"
	"github.com/agentdesk/server/internal/agent/model"
)

func TestResultOutcome(t *testing.T) {
	ok := Success("42").Outcome(model.AgentMath)
	assert.True(t, ok.Success)
	assert.Equal(t, "42", ok.Output)

	failed := Failure(errors.New("quota exceeded")).Outcome(model.AgentSearch)
	assert.False(t, failed.Success)
	assert.Equal(t, "search agent failed: quota exceeded", failed.Output)
}

func TestRegistry(t *testing.T) {
	math, err := NewChatAgent(model.AgentMath, agenttest.Reply("x"), "m")
	require.NoError(t, err)
	general, err := NewChatAgent(model.AgentGeneral, agenttest.Reply("x"), "m")
	require.NoError(t, err)

	r := NewRegistry(math, general)
	got, ok := r.Get(model.AgentMath)
	assert.True(t, ok)
	assert.Equal(t, model.AgentMath, got.Label())
	_, ok = r.Get(model.AgentFileQA)
	assert.False(t, ok)
	assert.Equal(t, []model.AgentLabel{model.AgentGeneral, model.AgentMath}, r.Labels())
}

func TestChatAgentSendsHistoryAndTask(t *testing.T) {
	chat := &agenttest.ChatModel{Handle: func(_ context.Context, in []*schema.Message) (*schema.Message, error) {
		msg := schema.AssistantMessage("  54  ", nil)
		msg.ResponseMeta = &schema.ResponseMeta{Usage: &schema.TokenUsage{PromptTokens: 10, CompletionTokens: 2, TotalTokens: 12}}
		return msg, nil
	}}
	a, err := NewChatAgent(model.AgentMath, chat, "gemini-2.5-flash")
	require.NoError(t, err)

	res := a.Run(context.Background(), Request{
		Task:    "compute 18*3",
		History: []*schema.Message{schema.UserMessage("earlier"), schema.AssistantMessage("reply", nil)},
	})
	require.True(t, res.Succeeded())
	assert.Equal(t, "54", res.Output)
	require.Len(t, res.Usage, 1)
	assert.Equal(t, 12, res.Usage[0].Tokens.TotalTokens)

	in := chat.Calls()[0]
	require.Len(t, in, 4)
	assert.Equal(t, schema.System, in[0].Role)
	assert.Contains(t, in[0].Content, "mathematics")
	assert.Equal(t, "earlier", in[1].Content)
	assert.Equal(t, "compute 18*3", in[3].Content)
}

func TestChatAgentFailures(t *testing.T) {
	a, err := NewChatAgent(model.AgentKnowledge, agenttest.Fail(errors.New("boom")), "m")
	require.NoError(t, err)
	res := a.Run(context.Background(), Request{Task: "t"})
	assert.EqualError(t, res.Err, "boom")

	empty, err := NewChatAgent(model.AgentKnowledge, agenttest.Reply("   "), "m")
	require.NoError(t, err)
	assert.False(t, empty.Run(context.Background(), Request{Task: "t"}).Succeeded())

	_, err = NewChatAgent(model.AgentSearch, agenttest.Reply("x"), "m")
	assert.Error(t, err)
}

type stubSearcher struct {
	result string
	err    error
	query  string
}

func (s *stubSearcher) Search(_ context.Context, query string) (string, error) {
	s.query = query
	return s.result, s.err
}

func TestSearchAgentSummarisesFindings(t *testing.T) {
	searcher := &stubSearcher{result: "Beijing today: sunny, 25°C"}
	chat := agenttest.Reply("It is sunny and 25°C in Beijing.")
	a := NewSearchAgent(searcher, chat, "m")

	res := a.Run(context.Background(), Request{Question: "weather?", Task: "today's weather in Beijing"})
	require.True(t, res.Succeeded())
	assert.Equal(t, "It is sunny and 25°C in Beijing.", res.Output)
	assert.Equal(t, "today's weather in Beijing", searcher.query)
	assert.Contains(t, agenttest.System(chat.Calls()[0]), "sunny, 25°C")
}

func TestSearchAgentFailsWhenSearchFails(t *testing.T) {
	chat := agenttest.Reply("unused")
	a := NewSearchAgent(&stubSearcher{err: errors.New("rate limited")}, chat, "m")

	res := a.Run(context.Background(), Request{Task: "weather"})
	assert.ErrorContains(t, res.Err, "rate limited")
	assert.Zero(t, chat.CallCount())

	res = NewSearchAgent(&stubSearcher{result: " "}, chat, "m").Run(context.Background(), Request{Task: "weather"})
	assert.False(t, res.Succeeded())
}

type stubIndex struct {
	docs  []*schema.Document
	err   error
	paths []string
	query string
}

func (s *stubIndex) Retriever(_ context.Context, path string) (retriever.Retriever, error) {
	s.paths = append(s.paths, path)
	if s.err != nil {
		return nil, s.err
	}
	return s, nil
}

func (s *stubIndex) Retrieve(_ context.Context, query string, _ ...retriever.Option) ([]*schema.Document, error) {
	s.query = query
	return s.docs, nil
}

func TestResolveDocument(t *testing.T) {
	p, q := ResolveDocument(Request{Question: "/tmp/a.txt|what is this?"})
	assert.Equal(t, "/tmp/a.txt", p)
	assert.Equal(t, "what is this?", q)

	p, q = ResolveDocument(Request{Question: "summary please", Documents: []string{"/old.md", "/new.md"}})
	assert.Equal(t, "/new.md", p)
	assert.Equal(t, "summary please", q)

	p, _ = ResolveDocument(Request{Question: "a|b without a path"})
	assert.Empty(t, p)

	p, q = ResolveDocument(Request{
		Task:      "Answer from the content of the uploaded document.\n\nUser question: notes.md|who wrote it",
		Question:  "notes.md|who wrote it",
		Documents: []string{"/other.md"},
	})
	assert.Equal(t, "notes.md", p)
	assert.Equal(t, "who wrote it", q)
}

func TestResolveDocumentIgnoresPipesInPlainQuestions(t *testing.T) {
	for _, question := range []string{"what is 3.5|2", "x.y|z", "is a|b true?", "scores 1.0 | 2.0"} {
		p, q := ResolveDocument(Request{Question: question})
		assert.Empty(t, p, question)
		assert.Equal(t, question, q)
	}

	p, q := ResolveDocument(Request{Question: "report.PDF|summarise it"})
	assert.Equal(t, "report.PDF", p)
	assert.Equal(t, "summarise it", q)

	existing := filepath.Join(t.TempDir(), "NOTES")
	require.NoError(t, os.WriteFile(existing, []byte("n"), 0o644))
	p, _ = ResolveDocument(Request{Question: existing + "|what is in it?"})
	assert.Equal(t, existing, p)
}

func TestFileQAAgentAnswersWithSources(t *testing.T) {
	index := &stubIndex{docs: []*schema.Document{
		{ID: "/d/r.md#chunk-2", Content: "Revenue grew 12%."},
		{ID: "/d/r.md#chunk-0", Content: "Annual report."},
		{ID: "/d/r.md#chunk-5", Content: "Costs were flat."},
		{ID: "/d/r.md#chunk-7", Content: "Outlook positive."},
	}}
	chat := agenttest.Reply("Revenue grew 12%.")
	a := NewFileQAAgent(index, chat, "m", 3)

	res := a.Run(context.Background(), Request{Question: "how did revenue change?", Documents: []string{"/d/r.md"}})
	require.True(t, res.Succeeded())
	assert.Equal(t, []string{"/d/r.md"}, index.paths)
	assert.Equal(t, "how did revenue change?", index.query)
	assert.Equal(t, []string{"/d/r.md#chunk-2", "/d/r.md#chunk-0", "/d/r.md#chunk-5"}, res.Sources)
	assert.Equal(t, "Revenue grew 12%.\n\nSources:\n1. /d/r.md#chunk-2\n2. /d/r.md#chunk-0\n3. /d/r.md#chunk-5", res.Output)
	assert.Contains(t, agenttest.System(chat.Calls()[0]), "[1] Revenue grew 12%.")

	outcome := res.Outcome(model.AgentFileQA)
	assert.Equal(t, res.Sources, outcome.Sources)
}

func TestFileQAAgentFailures(t *testing.T) {
	chat := agenttest.Reply("x")

	res := NewFileQAAgent(&stubIndex{}, chat, "m", 3).Run(context.Background(), Request{Question: "what?"})
	assert.ErrorIs(t, res.Err, ErrNoDocument)

	res = NewFileQAAgent(&stubIndex{err: errors.New("document not found")}, chat, "m", 3).
		Run(context.Background(), Request{Question: "/x.txt|what?"})
	assert.ErrorContains(t, res.Err, "document not found")

	res = NewFileQAAgent(&stubIndex{}, chat, "m", 3).
		Run(context.Background(), Request{Question: "/x.txt|what?"})
	assert.False(t, res.Succeeded())
	assert.Zero(t, chat.CallCount())
}
