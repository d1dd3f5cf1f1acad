package app

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"trivia-engine/internal/domain"
)

// CriterionKind enumerates the closed set of badge rules.
type CriterionKind string

const (
	CriterionFirstQuiz        CriterionKind = "first_quiz"
	CriterionPerfectScore     CriterionKind = "perfect_score"
	CriterionFastFinish       CriterionKind = "fast_finish"        // Threshold: max time in ms
	CriterionCompleteRegular  CriterionKind = "complete_regular"   // all regular quizzes in one day
	CriterionCompleteBonus    CriterionKind = "complete_bonus"
	CriterionCompleteAllInDay CriterionKind = "complete_all_in_day" // regular + bonus in one day
	CriterionStreakDays       CriterionKind = "streak_days"        // Threshold: consecutive days
	CriterionQuizzesCompleted CriterionKind = "quizzes_completed"  // Threshold: distinct quizzes
	CriterionFinishedBefore   CriterionKind = "finished_before"    // Threshold: local hour
	CriterionFinishedFrom     CriterionKind = "finished_from"      // Threshold: local hour
)

// Criterion is a tagged badge rule evaluated by Satisfied.
type Criterion struct {
	Kind      CriterionKind `json:"kind"`
	Threshold int           `json:"threshold,omitempty"`
}

// Badge is a catalog entry.
type Badge struct {
	ID          string           `json:"id"`
	Name        domain.Localized `json:"name"`
	Description domain.Localized `json:"description"`
	Icon        string           `json:"icon"`
	Color       string           `json:"color"`
	Category    string           `json:"category"`
	Criterion   Criterion        `json:"-"`
}

// History is everything a criterion may look at for one user.
type History struct {
	Attempts []domain.Attempt
	Progress []domain.QuizProgress
	// Location is the timezone used by time-of-day criteria.
	Location *time.Location
}

// Satisfied evaluates the criterion against h. It is pure: the same history
// always yields the same answer.
func (c Criterion) Satisfied(h History) (bool, error) {
	switch c.Kind {
	case CriterionFirstQuiz:
		return len(h.Attempts) > 0, nil
	case CriterionPerfectScore:
		for _, a := range h.Attempts {
			if a.Score.Total > 0 && a.Score.CorrectCount == a.Score.Total {
				return true, nil
			}
		}
		return false, nil
	case CriterionFastFinish:
		for _, a := range h.Attempts {
			if a.TimeMs < int64(c.Threshold) {
				return true, nil
			}
		}
		return false, nil
	case CriterionCompleteRegular:
		return anyDay(h.Progress, func(indices map[int]bool) bool {
			return countRegular(indices) >= domain.RegularQuizzes
		}), nil
	case CriterionCompleteBonus:
		for _, p := range h.Progress {
			if p.QuizIndex == domain.BonusQuizIndex && p.AttemptCount > 0 {
				return true, nil
			}
		}
		return false, nil
	case CriterionCompleteAllInDay:
		return anyDay(h.Progress, func(indices map[int]bool) bool {
			return countRegular(indices) >= domain.RegularQuizzes && indices[domain.BonusQuizIndex]
		}), nil
	case CriterionStreakDays:
		return longestStreak(h.Progress) >= c.Threshold, nil
	case CriterionQuizzesCompleted:
		completed := 0
		for _, p := range h.Progress {
			if p.AttemptCount > 0 {
				completed++
			}
		}
		return completed >= c.Threshold, nil
	case CriterionFinishedBefore, CriterionFinishedFrom:
		loc := h.Location
		if loc == nil {
			loc = time.UTC
		}
		for _, a := range h.Attempts {
			hour := a.FinishedAt.In(loc).Hour()
			if c.Kind == CriterionFinishedBefore && hour < c.Threshold {
				return true, nil
			}
			if c.Kind == CriterionFinishedFrom && hour >= c.Threshold {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("unknown badge criterion %q", c.Kind)
	}
}

func anyDay(progress []domain.QuizProgress, match func(map[int]bool) bool) bool {
	days := make(map[domain.PackDate]map[int]bool)
	for _, p := range progress {
		if p.AttemptCount == 0 {
			continue
		}
		if days[p.Date] == nil {
			days[p.Date] = make(map[int]bool)
		}
		days[p.Date][p.QuizIndex] = true
	}
	for _, indices := range days {
		if match(indices) {
			return true
		}
	}
	return false
}

func countRegular(indices map[int]bool) int {
	n := 0
	for i := 0; i < domain.RegularQuizzes; i++ {
		if indices[i] {
			n++
		}
	}
	return n
}

func longestStreak(progress []domain.QuizProgress) int {
	played := make(map[domain.PackDate]bool)
	for _, p := range progress {
		if p.AttemptCount > 0 {
			played[p.Date] = true
		}
	}
	dates := make([]string, 0, len(played))
	for d := range played {
		dates = append(dates, string(d))
	}
	sort.Strings(dates)

	best, run := 0, 0
	for i, d := range dates {
		if i > 0 && domain.PackDate(dates[i-1]).AddDays(1) == domain.PackDate(d) {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
	}
	return best
}

// DefaultBadges is the production badge catalog.
func DefaultBadges() []Badge {
	return []Badge{
		{
			ID:          "first_quiz",
			Name:        domain.Localized{"en": "First Steps", "sk": "Prvé kroky"},
			Description: domain.Localized{"en": "Complete your first quiz", "sk": "Dokončite svoj prvý kvíz"},
			Icon:        "Sparkles", Color: "#10b981", Category: "achievement",
			Criterion: Criterion{Kind: CriterionFirstQuiz},
		},
		{
			ID:          "perfect_score",
			Name:        domain.Localized{"en": "Perfect Score", "sk": "Perfektné skóre"},
			Description: domain.Localized{"en": "Score 100% on any quiz", "sk": "Získajte 100% v ktoromkoľvek kvíze"},
			Icon:        "Trophy", Color: "#f59e0b", Category: "achievement",
			Criterion: Criterion{Kind: CriterionPerfectScore},
		},
		{
			ID:          "speed_demon",
			Name:        domain.Localized{"en": "Speed Demon", "sk": "Rýchly démon"},
			Description: domain.Localized{"en": "Complete a quiz in under 5 minutes", "sk": "Dokončite kvíz za menej ako 5 minút"},
			Icon:        "Zap", Color: "#8b5cf6", Category: "achievement",
			Criterion: Criterion{Kind: CriterionFastFinish, Threshold: 5 * 60 * 1000},
		},
		{
			ID:          "quiz_master",
			Name:        domain.Localized{"en": "Quiz Master", "sk": "Majster kvízov"},
			Description: domain.Localized{"en": "Complete all 10 daily quizzes", "sk": "Dokončite všetkých 10 denných kvízov"},
			Icon:        "Crown", Color: "#eab308", Category: "achievement",
			Criterion: Criterion{Kind: CriterionCompleteRegular},
		},
		{
			ID:          "bonus_hunter",
			Name:        domain.Localized{"en": "Bonus Hunter", "sk": "Lovec bonusov"},
			Description: domain.Localized{"en": "Complete the bonus quiz", "sk": "Dokončite bonusový kvíz"},
			Icon:        "Gift", Color: "#ec4899", Category: "achievement",
			Criterion: Criterion{Kind: CriterionCompleteBonus},
		},
		{
			ID:          "daily_champion",
			Name:        domain.Localized{"en": "Daily Champion", "sk": "Denný šampión"},
			Description: domain.Localized{"en": "Complete all 11 quizzes (10 + bonus) in one day", "sk": "Dokončite všetkých 11 kvízov (10 + bonus) v jeden deň"},
			Icon:        "Star", Color: "#eab308", Category: "achievement",
			Criterion: Criterion{Kind: CriterionCompleteAllInDay},
		},
		streakBadge("streak_3", 3, domain.Localized{"en": "Streak Starter", "sk": "Začiatok série"}, "#f97316"),
		streakBadge("streak_7", 7, domain.Localized{"en": "Dedicated", "sk": "Oddaný"}, "#dc2626"),
		streakBadge("streak_30", 30, domain.Localized{"en": "Champion", "sk": "Šampión"}, "#7c3aed"),
		completionBadge("quizzes_5", 5, domain.Localized{"en": "Beginner", "sk": "Začiatočník"}, "#06b6d4"),
		completionBadge("quizzes_25", 25, domain.Localized{"en": "Intermediate", "sk": "Pokročilý"}, "#3b82f6"),
		completionBadge("quizzes_100", 100, domain.Localized{"en": "Expert", "sk": "Expert"}, "#8b5cf6"),
		{
			ID:          "early_bird",
			Name:        domain.Localized{"en": "Early Bird", "sk": "Ranné vtáča"},
			Description: domain.Localized{"en": "Complete a quiz before 8 AM", "sk": "Dokončite kvíz pred 8:00"},
			Icon:        "Sunrise", Color: "#fbbf24", Category: "special",
			Criterion: Criterion{Kind: CriterionFinishedBefore, Threshold: 8},
		},
		{
			ID:          "night_owl",
			Name:        domain.Localized{"en": "Night Owl", "sk": "Nočná sova"},
			Description: domain.Localized{"en": "Complete a quiz after 10 PM", "sk": "Dokončite kvíz po 22:00"},
			Icon:        "Moon", Color: "#6366f1", Category: "special",
			Criterion: Criterion{Kind: CriterionFinishedFrom, Threshold: 22},
		},
	}
}

func streakBadge(id string, days int, name domain.Localized, color string) Badge {
	return Badge{
		ID:   id,
		Name: name,
		Description: domain.Localized{
			"en": fmt.Sprintf("Play %d days in a row", days),
			"sk": fmt.Sprintf("Hrajte %d dní po sebe", days),
		},
		Icon: "Flame", Color: color, Category: "streak",
		Criterion: Criterion{Kind: CriterionStreakDays, Threshold: days},
	}
}

func completionBadge(id string, count int, name domain.Localized, color string) Badge {
	return Badge{
		ID:   id,
		Name: name,
		Description: domain.Localized{
			"en": fmt.Sprintf("Complete %d quizzes", count),
			"sk": fmt.Sprintf("Dokončite %d kvízov", count),
		},
		Icon: "Award", Color: color, Category: "completion",
		Criterion: Criterion{Kind: CriterionQuizzesCompleted, Threshold: count},
	}
}

// BadgeEvaluator awards catalog badges whose criteria became satisfied.
type BadgeEvaluator struct {
	catalog  []Badge
	progress ProgressRepository
	badges   BadgeRepository
	notifier BadgeNotifier
	location *time.Location
	now      func() time.Time
}

func NewBadgeEvaluator(catalog []Badge, progress ProgressRepository, badges BadgeRepository, notifier BadgeNotifier, loc *time.Location) *BadgeEvaluator {
	if loc == nil {
		loc = time.UTC
	}
	return &BadgeEvaluator{
		catalog:  catalog,
		progress: progress,
		badges:   badges,
		notifier: notifier,
		location: loc,
		now:      time.Now,
	}
}

// Catalog returns the badge definitions.
func (e *BadgeEvaluator) Catalog() []Badge {
	return e.catalog
}

// Evaluate awards every badge newly satisfied by the user's history. A failing
// criterion is logged and skipped; it never blocks the other badges.
func (e *BadgeEvaluator) Evaluate(ctx context.Context, userID string, quizIndex *int) ([]domain.EarnedBadge, error) {
	attempts, err := e.progress.ListAttempts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load attempts: %w", err)
	}
	progress, err := e.progress.ListUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	earned, err := e.badges.Earned(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load earned badges: %w", err)
	}
	have := make(map[string]bool, len(earned))
	for _, b := range earned {
		have[b.BadgeID] = true
	}

	history := History{Attempts: attempts, Progress: progress, Location: e.location}
	var awarded []domain.EarnedBadge
	for _, badge := range e.catalog {
		if have[badge.ID] {
			continue
		}
		ok, err := safeSatisfied(badge.Criterion, history)
		if err != nil {
			log.Printf("badge %s evaluation for user %s failed: %v", badge.ID, userID, err)
			continue
		}
		if !ok {
			continue
		}
		record := domain.EarnedBadge{
			UserID:    userID,
			BadgeID:   badge.ID,
			EarnedAt:  e.now().UTC(),
			QuizIndex: quizIndex,
		}
		created, err := e.badges.Award(ctx, record)
		if err != nil {
			log.Printf("award badge %s to user %s: %v", badge.ID, userID, err)
			continue
		}
		if !created {
			continue
		}
		awarded = append(awarded, record)
		e.notify(record, badge)
	}
	return awarded, nil
}

// Find looks up a catalog badge.
func (e *BadgeEvaluator) Find(id string) (Badge, bool) {
	for _, b := range e.catalog {
		if b.ID == id {
			return b, true
		}
	}
	return Badge{}, false
}

func (e *BadgeEvaluator) notify(record domain.EarnedBadge, badge Badge) {
	if e.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.notifier.BadgeAwarded(ctx, record, badge); err != nil {
			log.Printf("notify badge %s for user %s: %v", record.BadgeID, record.UserID, err)
		}
	}()
}

func safeSatisfied(c Criterion, h History) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("criterion %s panicked: %v", c.Kind, r)
		}
	}()
	return c.Satisfied(h)
}
