package model

import (
	"context"
)

// SessionRepository persists session turns and uploaded-document references.
type SessionRepository interface {
	// AddTurn appends a turn to the session, creating the session if needed.
	AddTurn(ctx context.Context, sessionID string, turn Turn) error

	// LoadHistory returns every turn of the session in arrival order.
	LoadHistory(ctx context.Context, sessionID string) (*ConversationHistory, error)

	// ClearHistory removes the session's turns and document references.
	ClearHistory(ctx context.Context, sessionID string) error

	// RenameSession moves turns and documents from oldID to newID. Any data
	// already under newID is replaced. Not atomic across keys.
	RenameSession(ctx context.Context, oldID, newID string) error

	// GetTurnCount returns the number of turns in the session.
	GetTurnCount(ctx context.Context, sessionID string) (int, error)

	// AddDocument records an uploaded document path for the session.
	AddDocument(ctx context.Context, sessionID, path string) error

	// ListDocuments returns document paths, oldest upload first.
	ListDocuments(ctx context.Context, sessionID string) ([]string, error)
}

// ConversationHistory represents loaded session data.
type ConversationHistory struct {
	SessionID string
	Turns     []Turn
}

// Tail returns at most the last n turns. n <= 0 returns all of them.
func (h *ConversationHistory) Tail(n int) []Turn {
	if h == nil {
		return nil
	}
	if n <= 0 || len(h.Turns) <= n {
		return h.Turns
	}
	return h.Turns[len(h.Turns)-n:]
}
