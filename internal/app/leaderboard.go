package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"trivia-engine/internal/domain"
)

const unknownNickname = "Unknown"

// LeaderboardEngine ranks best scores per quiz and per day. Rankings are
// recomputed from stored progress on every read so concurrent writers can never
// leave a drifted cache behind; the hub only fans out fresh snapshots.
type LeaderboardEngine struct {
	progress ProgressRepository
	users    UserDirectory
	groups   GroupDirectory
	hub      *Hub
	now      func() time.Time
}

func NewLeaderboardEngine(progress ProgressRepository, users UserDirectory, groups GroupDirectory) *LeaderboardEngine {
	return &LeaderboardEngine{
		progress: progress,
		users:    users,
		groups:   groups,
		hub:      NewHub(),
		now:      time.Now,
	}
}

// Hub exposes live leaderboard subscriptions.
func (e *LeaderboardEngine) Hub() *Hub {
	return e.hub
}

// UpdatePerQuiz publishes the quiz board after userID improved their best and
// returns the user's rank on it.
func (e *LeaderboardEngine) UpdatePerQuiz(ctx context.Context, key domain.QuizKey) (int, error) {
	lb, err := e.GetQuizLeaderboard(ctx, key.Date, key.QuizIndex, "")
	if err != nil {
		return 0, err
	}
	e.hub.Publish(QuizBoard(key.Date, key.QuizIndex), lb)
	return rankOf(lb.Entries, key.UserID), nil
}

// UpdateDaily publishes the daily board and returns the user's daily rank.
func (e *LeaderboardEngine) UpdateDaily(ctx context.Context, userID string, date domain.PackDate) (int, error) {
	lb, err := e.GetDailyLeaderboard(ctx, date, "")
	if err != nil {
		return 0, err
	}
	e.hub.Publish(DailyBoard(date), lb)
	for _, entry := range lb.Daily {
		if entry.UserID == userID {
			return entry.Rank, nil
		}
	}
	return 0, nil
}

// GetQuizLeaderboard ranks by (percentage DESC, time ASC, user ASC).
// A non-empty groupID restricts the board to the group's members.
func (e *LeaderboardEngine) GetQuizLeaderboard(ctx context.Context, date domain.PackDate, quizIndex int, groupID string) (domain.Leaderboard, error) {
	if !domain.ValidQuizIndex(quizIndex) {
		return domain.Leaderboard{}, fmt.Errorf("quiz index %d: %w", quizIndex, domain.ErrNotFound)
	}
	// Stamped before reading so the hub can order snapshots by what they saw.
	updatedAt := e.now().UTC()
	rows, members, err := e.load(ctx, date, groupID)
	if err != nil {
		return domain.Leaderboard{}, err
	}

	entries := make([]domain.LeaderboardEntry, 0)
	for _, p := range rows {
		if p.QuizIndex != quizIndex || p.Best == nil || !allowed(members, p.UserID) {
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{
			UserID:            p.UserID,
			Percentage:        p.Best.Percentage,
			DisplayPercentage: domain.DisplayPercent(p.Best.Percentage),
			TimeMs:            p.Best.TimeMs,
		})
	}
	SortQuizEntries(entries)
	for i := range entries {
		entries[i].Nickname = e.nickname(ctx, entries[i].UserID)
	}

	index := quizIndex
	return domain.Leaderboard{
		Date:      date,
		QuizIndex: &index,
		Entries:   entries,
		UpdatedAt: updatedAt,
	}, nil
}

// GetDailyLeaderboard ranks by (average best percentage over attempted quizzes DESC,
// total best time ASC, user ASC). Unattempted quizzes are not zero-filled.
func (e *LeaderboardEngine) GetDailyLeaderboard(ctx context.Context, date domain.PackDate, groupID string) (domain.Leaderboard, error) {
	updatedAt := e.now().UTC()
	rows, members, err := e.load(ctx, date, groupID)
	if err != nil {
		return domain.Leaderboard{}, err
	}

	type aggregate struct {
		count int
		sum   float64
		time  int64
	}
	byUser := make(map[string]*aggregate)
	for _, p := range rows {
		if p.AttemptCount < 1 || p.Best == nil || !allowed(members, p.UserID) {
			continue
		}
		agg, ok := byUser[p.UserID]
		if !ok {
			agg = &aggregate{}
			byUser[p.UserID] = agg
		}
		agg.count++
		agg.sum += p.Best.Percentage
		agg.time += p.Best.TimeMs
	}

	entries := make([]domain.DailyLeaderboardEntry, 0, len(byUser))
	for userID, agg := range byUser {
		avg := agg.sum / float64(agg.count)
		entries = append(entries, domain.DailyLeaderboardEntry{
			UserID:               userID,
			QuizzesCompleted:     agg.count,
			AvgPercentage:        avg,
			DisplayAvgPercentage: domain.DisplayPercent(avg),
			TotalTimeMs:          agg.time,
		})
	}
	SortDailyEntries(entries)
	for i := range entries {
		entries[i].Nickname = e.nickname(ctx, entries[i].UserID)
	}

	return domain.Leaderboard{
		Date:      date,
		Daily:     entries,
		UpdatedAt: updatedAt,
	}, nil
}

// SortQuizEntries orders per-quiz rows and assigns 1-based ranks.
func SortQuizEntries(entries []domain.LeaderboardEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Percentage != entries[j].Percentage {
			return entries[i].Percentage > entries[j].Percentage
		}
		if entries[i].TimeMs != entries[j].TimeMs {
			return entries[i].TimeMs < entries[j].TimeMs
		}
		return entries[i].UserID < entries[j].UserID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}

// SortDailyEntries orders daily aggregate rows and assigns 1-based ranks.
func SortDailyEntries(entries []domain.DailyLeaderboardEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].AvgPercentage != entries[j].AvgPercentage {
			return entries[i].AvgPercentage > entries[j].AvgPercentage
		}
		if entries[i].TotalTimeMs != entries[j].TotalTimeMs {
			return entries[i].TotalTimeMs < entries[j].TotalTimeMs
		}
		return entries[i].UserID < entries[j].UserID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}

func (e *LeaderboardEngine) load(ctx context.Context, date domain.PackDate, groupID string) ([]domain.QuizProgress, map[string]bool, error) {
	var members map[string]bool
	if groupID != "" {
		if e.groups == nil {
			return nil, nil, fmt.Errorf("group %s: %w", groupID, domain.ErrNotFound)
		}
		ids, err := e.groups.Members(ctx, groupID)
		if err != nil {
			return nil, nil, err
		}
		members = make(map[string]bool, len(ids))
		for _, id := range ids {
			members[id] = true
		}
	}
	rows, err := e.progress.ListDay(ctx, date)
	if err != nil {
		return nil, nil, fmt.Errorf("list progress for %s: %w", date, err)
	}
	return rows, members, nil
}

func (e *LeaderboardEngine) nickname(ctx context.Context, userID string) string {
	if e.users == nil {
		return unknownNickname
	}
	user, err := e.users.Lookup(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Printf("lookup user %s: %v", userID, err)
		}
		return unknownNickname
	}
	return user.Nickname
}

func allowed(members map[string]bool, userID string) bool {
	return members == nil || members[userID]
}

func rankOf(entries []domain.LeaderboardEntry, userID string) int {
	for _, entry := range entries {
		if entry.UserID == userID {
			return entry.Rank
		}
	}
	return 0
}
