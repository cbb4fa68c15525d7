package conversations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agentdesk/server/internal/agent/model"

	"github.com/cloudwego/eino/schema"
)

// MessagesManager reads and writes session memory on behalf of the graph.
type MessagesManager struct {
	sessionRepo model.SessionRepository
	maxTurns    int
	now         func() time.Time
}

func NewMessagesManager(sessionRepo model.SessionRepository, config model.ConversationConfig) *MessagesManager {
	return &MessagesManager{
		sessionRepo: sessionRepo,
		maxTurns:    config.History.MaxTurns,
		now:         time.Now,
	}
}

// SessionContext is the memory view used to answer one question.
type SessionContext struct {
	History   []*schema.Message
	Documents []string
}

// LatestDocument returns the most recent upload, if any.
func (c SessionContext) LatestDocument() (string, bool) {
	if len(c.Documents) == 0 {
		return "", false
	}
	return c.Documents[len(c.Documents)-1], true
}

// LoadContext returns the recent turns of the session as chat messages plus
// its uploaded documents. The current question is not part of the history.
func (cm *MessagesManager) LoadContext(ctx context.Context, sessionID string) (SessionContext, error) {
	history, err := cm.sessionRepo.LoadHistory(ctx, sessionID)
	if err != nil {
		return SessionContext{}, fmt.Errorf("load history: %w", err)
	}
	docs, err := cm.sessionRepo.ListDocuments(ctx, sessionID)
	if err != nil {
		return SessionContext{}, fmt.Errorf("list documents: %w", err)
	}

	return SessionContext{
		History:   trimTail(model.Messages(history.Turns), cm.maxTurns),
		Documents: docs,
	}, nil
}

// SaveExchange appends the question and its final answer to the session.
func (cm *MessagesManager) SaveExchange(ctx context.Context, sessionID, question, answer string) error {
	at := cm.now()
	if err := cm.sessionRepo.AddTurn(ctx, sessionID, model.NewUserTurn(question, at)); err != nil {
		return err
	}
	return cm.sessionRepo.AddTurn(ctx, sessionID, model.NewAssistantTurn(answer, at))
}

// RenderTranscript formats messages as a compact transcript for prompts that
// take history as text rather than as chat messages.
func RenderTranscript(messages []*schema.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		if msg == nil || msg.Content == "" {
			continue
		}
		switch msg.Role {
		case schema.User:
			b.WriteString("User: " + msg.Content + "\n")
		case schema.Assistant:
			b.WriteString("Assistant: " + msg.Content + "\n")
		}
	}
	return strings.TrimSpace(b.String())
}

func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	if maxTurns <= 0 || len(messages) <= maxTurns {
		result := make([]*schema.Message, len(messages))
		copy(result, messages)
		return result
	}
	source := messages[len(messages)-maxTurns:]
	result := make([]*schema.Message, len(source))
	copy(result, source)
	return result
}
