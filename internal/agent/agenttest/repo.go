package agenttest

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/agentdesk/server/internal/agent/model"
)

// SessionRepo is an in-memory model.SessionRepository.
type SessionRepo struct {
	mu    sync.Mutex
	turns map[string][]model.Turn
	docs  map[string][]string
	// Err, when set, is returned by every call.
	Err error
}

func NewSessionRepo() *SessionRepo {
	return &SessionRepo{turns: map[string][]model.Turn{}, docs: map[string][]string{}}
}

func (r *SessionRepo) AddTurn(_ context.Context, id string, t model.Turn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	r.turns[id] = append(r.turns[id], t)
	return nil
}

func (r *SessionRepo) LoadHistory(_ context.Context, id string) (*model.ConversationHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	return &model.ConversationHistory{SessionID: id, Turns: slices.Clone(r.turns[id])}, nil
}

func (r *SessionRepo) ClearHistory(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	delete(r.turns, id)
	delete(r.docs, id)
	return nil
}

func (r *SessionRepo) RenameSession(_ context.Context, oldID, newID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if oldID == newID {
		return nil
	}
	r.turns[newID] = r.turns[oldID]
	r.docs[newID] = r.docs[oldID]
	delete(r.turns, oldID)
	delete(r.docs, oldID)
	return nil
}

func (r *SessionRepo) GetTurnCount(_ context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.turns[id]), r.Err
}

func (r *SessionRepo) AddDocument(_ context.Context, id, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	docs := slices.DeleteFunc(r.docs[id], func(p string) bool { return p == path })
	r.docs[id] = append(docs, path)
	return nil
}

func (r *SessionRepo) ListDocuments(_ context.Context, id string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	return slices.Clone(r.docs[id]), nil
}

var _ model.SessionRepository = (*SessionRepo)(nil)
