package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"trivia-engine/internal/domain"
)

// ProgressStore is an in-memory implementation of app.ProgressRepository.
type ProgressStore struct {
	mu       sync.RWMutex
	progress map[domain.QuizKey]domain.QuizProgress
	attempts map[string][]domain.Attempt // by user, in insertion order
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		progress: make(map[domain.QuizKey]domain.QuizProgress),
		attempts: make(map[string][]domain.Attempt),
	}
}

// GetProgress returns the stored progress or a zero record for key.
func (s *ProgressStore) GetProgress(_ context.Context, key domain.QuizKey) (domain.QuizProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.progress[key]; ok {
		return clone(p), nil
	}
	return domain.QuizProgress{QuizKey: key}, nil
}

func (s *ProgressStore) SwapProgress(_ context.Context, prev, next domain.QuizProgress, attempt *domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.progress[next.QuizKey]
	if current.AttemptCount != prev.AttemptCount || current.Locked != prev.Locked {
		return fmt.Errorf("progress %s/%d for %s: %w", next.Date, next.QuizIndex, next.UserID, domain.ErrConcurrencyConflict)
	}
	s.progress[next.QuizKey] = clone(next)
	if attempt != nil {
		s.attempts[attempt.UserID] = append(s.attempts[attempt.UserID], *attempt)
	}
	return nil
}

func (s *ProgressStore) ListUserDay(_ context.Context, userID string, date domain.PackDate) ([]domain.QuizProgress, error) {
	return s.filter(func(p domain.QuizProgress) bool { return p.UserID == userID && p.Date == date }), nil
}

func (s *ProgressStore) ListUser(_ context.Context, userID string) ([]domain.QuizProgress, error) {
	return s.filter(func(p domain.QuizProgress) bool { return p.UserID == userID }), nil
}

func (s *ProgressStore) ListDay(_ context.Context, date domain.PackDate) ([]domain.QuizProgress, error) {
	return s.filter(func(p domain.QuizProgress) bool { return p.Date == date }), nil
}

func (s *ProgressStore) ListAttempts(_ context.Context, userID string) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Attempt(nil), s.attempts[userID]...), nil
}

func (s *ProgressStore) LatestAttempt(_ context.Context, key domain.QuizKey) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *domain.Attempt
	for i, a := range s.attempts[key.UserID] {
		if a.QuizKey != key {
			continue
		}
		if latest == nil || a.AttemptNumber > latest.AttemptNumber {
			latest = &s.attempts[key.UserID][i]
		}
	}
	if latest == nil {
		return domain.Attempt{}, fmt.Errorf("attempt for %s/%d: %w", key.Date, key.QuizIndex, domain.ErrNotFound)
	}
	return *latest, nil
}

func (s *ProgressStore) filter(match func(domain.QuizProgress) bool) []domain.QuizProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.QuizProgress, 0)
	for _, p := range s.progress {
		if match(p) {
			out = append(out, clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].QuizIndex < out[j].QuizIndex
	})
	return out
}

func clone(p domain.QuizProgress) domain.QuizProgress {
	if p.Best != nil {
		best := *p.Best
		p.Best = &best
	}
	return p
}
