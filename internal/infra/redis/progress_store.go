package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"trivia-engine/internal/domain"
)

// ProgressStore is a Redis implementation of app.ProgressRepository.
// Layout:
//   - progress:{date}:{user}:{quiz}  JSON progress record
//   - progress:day:{date}            set of progress keys played that day
//   - progress:user:{user}           set of progress keys of the user
//   - attempts:{user}                list of JSON attempts, oldest first
//
// SwapProgress runs under WATCH so a concurrent writer aborts the transaction.
type ProgressStore struct {
	client *redis.Client
}

func NewProgressStore(client *redis.Client) *ProgressStore {
	return &ProgressStore{client: client}
}

func (s *ProgressStore) GetProgress(ctx context.Context, key domain.QuizKey) (domain.QuizProgress, error) {
	p, err := s.read(ctx, s.client, progressKey(key))
	if errors.Is(err, redis.Nil) {
		return domain.QuizProgress{QuizKey: key}, nil
	}
	return p, err
}

func (s *ProgressStore) SwapProgress(ctx context.Context, prev, next domain.QuizProgress, attempt *domain.Attempt) error {
	key := progressKey(next.QuizKey)
	data, err := json.Marshal(next)
	if err != nil {
		return err
	}
	var attemptData []byte
	if attempt != nil {
		if attemptData, err = json.Marshal(attempt); err != nil {
			return err
		}
	}

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := s.read(ctx, tx, key)
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current.AttemptCount != prev.AttemptCount || current.Locked != prev.Locked {
			return domain.ErrConcurrencyConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, dayKey(next.Date), key)
			pipe.SAdd(ctx, userKey(next.UserID), key)
			if attemptData != nil {
				pipe.RPush(ctx, attemptsKey(next.UserID), attemptData)
			}
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr), errors.Is(err, domain.ErrConcurrencyConflict):
		return fmt.Errorf("progress %s: %w", key, domain.ErrConcurrencyConflict)
	default:
		return err
	}
}

func (s *ProgressStore) ListUserDay(ctx context.Context, userID string, date domain.PackDate) ([]domain.QuizProgress, error) {
	rows, err := s.list(ctx, userKey(userID))
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, p := range rows {
		if p.Date == date {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *ProgressStore) ListUser(ctx context.Context, userID string) ([]domain.QuizProgress, error) {
	return s.list(ctx, userKey(userID))
}

func (s *ProgressStore) ListDay(ctx context.Context, date domain.PackDate) ([]domain.QuizProgress, error) {
	return s.list(ctx, dayKey(date))
}

func (s *ProgressStore) ListAttempts(ctx context.Context, userID string) ([]domain.Attempt, error) {
	raws, err := s.client.LRange(ctx, attemptsKey(userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Attempt, 0, len(raws))
	for _, raw := range raws {
		var a domain.Attempt
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, fmt.Errorf("decode attempt of %s: %w", userID, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *ProgressStore) LatestAttempt(ctx context.Context, key domain.QuizKey) (domain.Attempt, error) {
	attempts, err := s.ListAttempts(ctx, key.UserID)
	if err != nil {
		return domain.Attempt{}, err
	}
	for i := len(attempts) - 1; i >= 0; i-- {
		if attempts[i].QuizKey == key {
			return attempts[i], nil
		}
	}
	return domain.Attempt{}, fmt.Errorf("attempt for %s: %w", progressKey(key), domain.ErrNotFound)
}

func (s *ProgressStore) list(ctx context.Context, setKey string) ([]domain.QuizProgress, error) {
	keys, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return []domain.QuizProgress{}, nil
	}
	sort.Strings(keys)
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.QuizProgress, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var p domain.QuizProgress
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *ProgressStore) read(ctx context.Context, c getter, key string) (domain.QuizProgress, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if err != nil {
		return domain.QuizProgress{}, err
	}
	var p domain.QuizProgress
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.QuizProgress{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return p, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func progressKey(key domain.QuizKey) string {
	return "progress:" + key.Date.String() + ":" + key.UserID + ":" + strconv.Itoa(key.QuizIndex)
}

func dayKey(date domain.PackDate) string {
	return "progress:day:" + date.String()
}

func userKey(userID string) string {
	return "progress:user:" + userID
}

func attemptsKey(userID string) string {
	return "attempts:" + userID
}
