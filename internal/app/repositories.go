package app

import (
	"context"

	"trivia-engine/internal/domain"
)

// ContentPool serves topics and questions (Postgres, in-memory, cached).
type ContentPool interface {
	ActiveTopics(ctx context.Context) ([]domain.Topic, error)
	ActiveQuestions(ctx context.Context, topicID string) ([]domain.Question, error)
	Topic(ctx context.Context, topicID string) (domain.Topic, error)
	Questions(ctx context.Context, ids []string) ([]domain.Question, error)
}

// PackRepository persists daily packs. CreatePack must be atomic per date and
// return domain.ErrAlreadyExists when a pack for the date is already stored.
type PackRepository interface {
	GetPack(ctx context.Context, date domain.PackDate) (domain.DailyPack, error)
	CreatePack(ctx context.Context, pack domain.DailyPack) error
	// RecentPacks returns the stored packs in [from, to), any order.
	RecentPacks(ctx context.Context, from, to domain.PackDate) ([]domain.DailyPack, error)
}

// ProgressRepository stores quiz progress and attempts.
//
// SwapProgress is the serialization point of the attempt state machine: it stores
// next (and attempt, when non-nil) only if the stored progress still has prev's
// AttemptCount and Locked values, otherwise it returns domain.ErrConcurrencyConflict.
// A missing record matches a zero prev.
type ProgressRepository interface {
	GetProgress(ctx context.Context, key domain.QuizKey) (domain.QuizProgress, error)
	SwapProgress(ctx context.Context, prev, next domain.QuizProgress, attempt *domain.Attempt) error
	ListUserDay(ctx context.Context, userID string, date domain.PackDate) ([]domain.QuizProgress, error)
	ListUser(ctx context.Context, userID string) ([]domain.QuizProgress, error)
	ListDay(ctx context.Context, date domain.PackDate) ([]domain.QuizProgress, error)
	ListAttempts(ctx context.Context, userID string) ([]domain.Attempt, error)
	LatestAttempt(ctx context.Context, key domain.QuizKey) (domain.Attempt, error)
}

// BadgeRepository stores earned badges. Award inserts at most once per
// (user, badge) and reports whether this call created the row.
type BadgeRepository interface {
	Earned(ctx context.Context, userID string) ([]domain.EarnedBadge, error)
	Award(ctx context.Context, badge domain.EarnedBadge) (bool, error)
}

// UserDirectory resolves identities from the auth collaborator.
type UserDirectory interface {
	Lookup(ctx context.Context, userID string) (domain.User, error)
}

// GroupDirectory lists the members of a friends group.
type GroupDirectory interface {
	Members(ctx context.Context, groupID string) ([]string, error)
}

// BadgeNotifier is the optional hook fired after a badge award.
type BadgeNotifier interface {
	BadgeAwarded(ctx context.Context, badge domain.EarnedBadge, def Badge) error
}
