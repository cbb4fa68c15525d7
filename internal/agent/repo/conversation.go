package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agentdesk/server/internal/agent/model"
	errx "github.com/agentdesk/server/internal/core/error"
	logx "github.com/agentdesk/server/pkg/logger"
	"github.com/redis/go-redis/v9"
)

type RedisConversationRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
	now func() time.Time
}

func NewRedisConversationRepository(rdb redis.Cmdable, ttl time.Duration) *RedisConversationRepository {
	return &RedisConversationRepository{rdb: rdb, ttl: ttl, now: time.Now}
}

func (r *RedisConversationRepository) turnsKey(sessionID string) string {
	return fmt.Sprintf("session:%s:turns", sessionID)
}

func (r *RedisConversationRepository) documentsKey(sessionID string) string {
	return fmt.Sprintf("session:%s:documents", sessionID)
}

func (r *RedisConversationRepository) AddTurn(ctx context.Context, sessionID string, turn model.Turn) error {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = r.now()
	}
	b, err := json.Marshal(turn)
	if err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to marshal turn")
		return fmt.Errorf("marshal turn: %w", err)
	}
	key := r.turnsKey(sessionID)

	if err := r.rdb.RPush(ctx, key, b).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to push turn to redis")
		return errx.WrapRedis(err)
	}
	return r.touch(ctx, key)
}

// touch extends the TTL of key when a TTL is configured.
func (r *RedisConversationRepository) touch(ctx context.Context, key string) error {
	if r.ttl <= 0 {
		return nil
	}
	ok, err := r.rdb.Expire(ctx, key, r.ttl).Result()
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to set expire")
		return errx.WrapRedis(err)
	}
	if !ok {
		logx.Warn().Str("key", key).Dur("ttl", r.ttl).Msg("failed to set TTL on session key")
	}
	return nil
}

func (r *RedisConversationRepository) LoadHistory(ctx context.Context, sessionID string) (*model.ConversationHistory, error) {
	rows, err := r.loadRaw(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	turns := make([]model.Turn, 0, len(rows))
	for i, s := range rows {
		var t model.Turn
		if err := json.Unmarshal([]byte(s), &t); err != nil {
			logx.Error().Err(err).Str("session_id", sessionID).Int("index", i).Msg("failed to unmarshal turn")
			return nil, fmt.Errorf("unmarshal turn at index %d: %w", i, err)
		}
		turns = append(turns, t)
	}
	return &model.ConversationHistory{SessionID: sessionID, Turns: turns}, nil
}

func (r *RedisConversationRepository) loadRaw(ctx context.Context, sessionID string) ([]string, error) {
	key := r.turnsKey(sessionID)
	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load session history from redis")
		return nil, errx.WrapRedis(err)
	}
	return rows, nil
}

func (r *RedisConversationRepository) ClearHistory(ctx context.Context, sessionID string) error {
	turns, docs := r.turnsKey(sessionID), r.documentsKey(sessionID)
	if err := r.rdb.Del(ctx, turns, docs).Err(); err != nil {
		logx.Error().Err(err).Str("key", turns).Msg("failed to delete session from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

// RenameSession copies turns and documents to newID, then deletes oldID.
// The reads happen before the write transaction, so concurrent appends to
// oldID during a rename can be lost.
func (r *RedisConversationRepository) RenameSession(ctx context.Context, oldID, newID string) error {
	if oldID == newID {
		return nil
	}

	rows, err := r.loadRaw(ctx, oldID)
	if err != nil {
		return err
	}
	docs, err := r.rdb.ZRangeWithScores(ctx, r.documentsKey(oldID), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		logx.Error().Err(err).Str("session_id", oldID).Msg("failed to load session documents from redis")
		return errx.WrapRedis(err)
	}

	newTurns, newDocs := r.turnsKey(newID), r.documentsKey(newID)
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, newTurns, newDocs)
		if len(rows) > 0 {
			values := make([]any, len(rows))
			for i, row := range rows {
				values[i] = row
			}
			pipe.RPush(ctx, newTurns, values...)
			if r.ttl > 0 {
				pipe.Expire(ctx, newTurns, r.ttl)
			}
		}
		if len(docs) > 0 {
			pipe.ZAdd(ctx, newDocs, docs...)
			if r.ttl > 0 {
				pipe.Expire(ctx, newDocs, r.ttl)
			}
		}
		pipe.Del(ctx, r.turnsKey(oldID), r.documentsKey(oldID))
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("from", oldID).Str("to", newID).Msg("failed to rename session")
		return errx.WrapRedis(err)
	}

	logx.Debug().Str("from", oldID).Str("to", newID).Int("turns", len(rows)).Int("documents", len(docs)).Msg("session renamed")
	return nil
}

func (r *RedisConversationRepository) GetTurnCount(ctx context.Context, sessionID string) (int, error) {
	key := r.turnsKey(sessionID)
	n, err := r.rdb.LLen(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to get turn count from redis")
		return 0, errx.WrapRedis(err)
	}
	return int(n), nil
}

// AddDocument records path as the session's most recent upload. Uploading
// the same path again moves it to the end.
func (r *RedisConversationRepository) AddDocument(ctx context.Context, sessionID, path string) error {
	key := r.documentsKey(sessionID)
	score := float64(r.now().UnixMicro())
	if err := r.rdb.ZAdd(ctx, key, redis.Z{Score: score, Member: path}).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to record session document")
		return errx.WrapRedis(err)
	}
	return r.touch(ctx, key)
}

func (r *RedisConversationRepository) ListDocuments(ctx context.Context, sessionID string) ([]string, error) {
	key := r.documentsKey(sessionID)
	paths, err := r.rdb.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to list session documents")
		return nil, errx.WrapRedis(err)
	}
	return paths, nil
}

var _ model.SessionRepository = (*RedisConversationRepository)(nil)
