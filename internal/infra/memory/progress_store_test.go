package memory

import (
	"context"
	"errors"
	"testing"

	"trivia-engine/internal/domain"
)

func TestProgressStoreSwap(t *testing.T) {
	ctx := context.Background()
	store := NewProgressStore()
	key := domain.QuizKey{UserID: "u1", Date: "2024-01-15", QuizIndex: 2}

	prev, err := store.GetProgress(ctx, key)
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	if prev.AttemptCount != 0 || prev.QuizKey != key {
		t.Fatalf("expected zero progress for key, got %+v", prev)
	}

	next := prev
	next.AttemptCount = 1
	next.Best = &domain.BestScore{Percentage: 66.67, TimeMs: 3000}
	attempt := &domain.Attempt{ID: "a1", QuizKey: key, AttemptNumber: 1}
	if err := store.SwapProgress(ctx, prev, next, attempt); err != nil {
		t.Fatalf("swap: %v", err)
	}

	// stale prev must lose
	if err := store.SwapProgress(ctx, prev, next, attempt); !errors.Is(err, domain.ErrConcurrencyConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	got, _ := store.GetProgress(ctx, key)
	if got.AttemptCount != 1 || got.Best == nil || got.Best.TimeMs != 3000 {
		t.Fatalf("unexpected progress %+v", got)
	}
	got.Best.TimeMs = 1
	again, _ := store.GetProgress(ctx, key)
	if again.Best.TimeMs != 3000 {
		t.Fatalf("stored progress must not alias returned copies")
	}

	attempts, _ := store.ListAttempts(ctx, "u1")
	if len(attempts) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(attempts))
	}
	latest, err := store.LatestAttempt(ctx, key)
	if err != nil || latest.ID != "a1" {
		t.Fatalf("latest attempt: %+v %v", latest, err)
	}
}

func TestProgressStoreListings(t *testing.T) {
	ctx := context.Background()
	store := NewProgressStore()
	for _, key := range []domain.QuizKey{
		{UserID: "u1", Date: "2024-01-15", QuizIndex: 0},
		{UserID: "u1", Date: "2024-01-16", QuizIndex: 0},
		{UserID: "u2", Date: "2024-01-15", QuizIndex: 3},
	} {
		next := domain.QuizProgress{QuizKey: key, AttemptCount: 1}
		if err := store.SwapProgress(ctx, domain.QuizProgress{QuizKey: key}, next, nil); err != nil {
			t.Fatalf("swap %+v: %v", key, err)
		}
	}

	if rows, _ := store.ListDay(ctx, "2024-01-15"); len(rows) != 2 {
		t.Fatalf("expected 2 rows for day, got %d", len(rows))
	}
	if rows, _ := store.ListUser(ctx, "u1"); len(rows) != 2 {
		t.Fatalf("expected 2 rows for user, got %d", len(rows))
	}
	if rows, _ := store.ListUserDay(ctx, "u1", "2024-01-16"); len(rows) != 1 {
		t.Fatalf("expected 1 row for user day, got %d", len(rows))
	}
	if _, err := store.LatestAttempt(ctx, domain.QuizKey{UserID: "u2", Date: "2024-01-15", QuizIndex: 3}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPackStoreCreateOnce(t *testing.T) {
	ctx := context.Background()
	store := NewPackStore()
	pack := domain.DailyPack{Date: "2024-01-15"}

	if err := store.CreatePack(ctx, pack); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.CreatePack(ctx, pack); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
	recent, _ := store.RecentPacks(ctx, "2024-01-12", "2024-01-15")
	if len(recent) != 0 {
		t.Fatalf("window end is exclusive, got %d packs", len(recent))
	}
}

func TestBadgeStoreAwardOnce(t *testing.T) {
	ctx := context.Background()
	store := NewBadgeStore()
	badge := domain.EarnedBadge{UserID: "u1", BadgeID: "first_quiz"}

	created, err := store.Award(ctx, badge)
	if err != nil || !created {
		t.Fatalf("first award: created=%v err=%v", created, err)
	}
	created, _ = store.Award(ctx, badge)
	if created {
		t.Fatalf("badge awarded twice")
	}
	if earned, _ := store.Earned(ctx, "u1"); len(earned) != 1 {
		t.Fatalf("expected 1 badge, got %d", len(earned))
	}
}
