package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"vodworks/internal/model"
)

const keyPrefix = "session:"

// Store keeps session records in redis as JSON values under
// "session:<id>", each with a TTL that is re-armed on every write.
// Writes are last-writer-wins per call; there is no cross-field
// transaction. A session is processed by a single worker at a time by
// convention, which keeps the interleavings benign.
type Store struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewStore(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *Store {
	return &Store{rdb: rdb, ttl: ttl, logger: logger}
}

// TTL returns the record lifetime the store arms on each write.
func (s *Store) TTL() time.Duration { return s.ttl }

// Create writes a fresh pending record for id. It fails with
// ErrConflict when a record for id already exists.
func (s *Store) Create(ctx context.Context, id string, kind model.Kind, metadata map[string]string) (*Session, error) {
	now := time.Now().UTC()
	rec := &Session{
		ID:        id,
		Kind:      kind,
		Status:    StatusPending,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  metadata,
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}

	ok, err := s.rdb.SetNX(ctx, keyPrefix+id, data, s.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}

	if s.logger != nil {
		s.logger.Info("session_created", "session_id", id, "kind", string(kind))
	}
	return rec, nil
}

// Update overwrites status, progress, and updatedAt for an existing
// record and re-arms the TTL. A non-nil result is merged in; a nil
// result never clears a previously stored one. Fails with ErrNotFound
// when the record is missing or already expired.
func (s *Store) Update(ctx context.Context, id string, status Status, progress int, result *Result) (*Session, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	rec.Status = status
	rec.Progress = progress
	rec.UpdatedAt = time.Now().UTC()
	if result != nil {
		rec.Result = result
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	if err := s.rdb.Set(ctx, keyPrefix+id, data, s.ttl).Err(); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Debug("session_updated", "session_id", id, "status", string(status), "progress", progress)
	}
	return rec, nil
}

// Get fetches the record for id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.rdb.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var rec Session
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete removes the record for id. Deleting an absent record is not
// an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, keyPrefix+id).Err()
}

// List returns all live session records.
func (s *Store) List(ctx context.Context) ([]*Session, error) {
	var out []*Session

	iter := s.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.rdb.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			// Expired between SCAN and GET; skip.
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		var rec Session
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		out = append(out, &rec)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SweepExpired removes records whose age (since creation) exceeds
// maxAge and returns the number removed. Redis expiry normally gets
// there first; this is the explicit backstop the cleanup endpoint and
// the worker's periodic sweep call.
func (s *Store) SweepExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	now := time.Now().UTC()
	removed := 0

	iter := s.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := s.rdb.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}
		var rec Session
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		if now.Sub(rec.CreatedAt) > maxAge {
			if err := s.rdb.Del(ctx, key).Err(); err == nil {
				removed++
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, err
	}
	return removed, nil
}
