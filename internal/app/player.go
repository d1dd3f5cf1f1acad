package app

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"trivia-engine/internal/domain"
)

// QuizSummary is one quiz of the pack overview.
type QuizSummary struct {
	Index        int               `json:"index"`
	Topic        TopicView         `json:"topic"`
	AttemptCount int               `json:"attemptCount"`
	Locked       bool              `json:"locked"`
	Best         *domain.BestScore `json:"best,omitempty"`
	Status       domain.QuizStatus `json:"status"`
	Unlocked     bool              `json:"unlocked"`
}

// PackOverview is the player's view of a day.
type PackOverview struct {
	Date    domain.PackDate `json:"date"`
	Quizzes []QuizSummary   `json:"quizzes"`
	Bonus   QuizSummary     `json:"bonusQuiz"`
}

// Profile aggregates a player's history. Percentages keep full precision; the
// display fields use the same rounding as every other read.
type Profile struct {
	User                domain.User          `json:"user"`
	QuizzesPlayed       int                  `json:"quizzesPlayed"`
	AvgCorrect          float64              `json:"avgCorrect"`
	DisplayAvgCorrect   int                  `json:"displayAvgCorrect"`
	PersonalBest        float64              `json:"personalBest"`
	DisplayPersonalBest int                  `json:"displayPersonalBest"`
	Badges              []domain.EarnedBadge `json:"badges"`
}

// EarnedBadgeView is an earned badge with its catalog metadata.
type EarnedBadgeView struct {
	Badge
	EarnedAt  time.Time `json:"earnedAt"`
	QuizIndex *int      `json:"quizIndex,omitempty"`
}

// AvailableBadgeView is a badge not yet earned.
type AvailableBadgeView struct {
	Badge
	Locked bool `json:"locked"`
}

// BadgeBoard lists earned and available badges.
type BadgeBoard struct {
	Earned         []EarnedBadgeView    `json:"earned"`
	Available      []AvailableBadgeView `json:"available"`
	TotalEarned    int                  `json:"totalEarned"`
	TotalAvailable int                  `json:"totalAvailable"`
}

// PlayerService serves the read side of the inbound API.
type PlayerService struct {
	packs    *PackAssembler
	content  ContentPool
	progress ProgressRepository
	badges   BadgeRepository
	catalog  []Badge
	users    UserDirectory
}

func NewPlayerService(packs *PackAssembler, content ContentPool, progress ProgressRepository, badges BadgeRepository, catalog []Badge, users UserDirectory) *PlayerService {
	return &PlayerService{
		packs:    packs,
		content:  content,
		progress: progress,
		badges:   badges,
		catalog:  catalog,
		users:    users,
	}
}

// GetPack returns the day's pack with the user's per-quiz status. Today's pack
// is generated on first access; past days are served only when stored.
func (s *PlayerService) GetPack(ctx context.Context, userID string, date domain.PackDate, lang string) (PackOverview, error) {
	pack, err := s.packs.OpenPack(ctx, date)
	if err != nil {
		return PackOverview{}, err
	}
	rows, err := s.progress.ListUserDay(ctx, userID, date)
	if err != nil {
		return PackOverview{}, err
	}
	byIndex := make(map[int]domain.QuizProgress, len(rows))
	for _, p := range rows {
		byIndex[p.QuizIndex] = p
	}

	lang = domain.NormalizeLang(lang)
	overview := PackOverview{Date: date}
	attemptedAll := true
	for _, slot := range pack.Slots {
		topic, err := s.content.Topic(ctx, slot.TopicID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return PackOverview{}, err
		}
		p := byIndex[slot.Index]
		summary := QuizSummary{
			Index:        slot.Index,
			Topic:        TopicView{ID: slot.TopicID, Name: topic.Name.Get(lang)},
			AttemptCount: p.AttemptCount,
			Locked:       p.Locked,
			Best:         p.Best,
			Status:       p.Status(),
			Unlocked:     true,
		}
		if slot.Index == domain.BonusQuizIndex {
			overview.Bonus = summary
			continue
		}
		if p.AttemptCount == 0 {
			attemptedAll = false
		}
		overview.Quizzes = append(overview.Quizzes, summary)
	}
	overview.Bonus.Unlocked = attemptedAll
	if !attemptedAll && overview.Bonus.AttemptCount == 0 {
		overview.Bonus.Status = domain.StatusLocked
	}
	return overview, nil
}

// GetProfile returns attempt statistics, personal best and badges of a user.
func (s *PlayerService) GetProfile(ctx context.Context, userID string) (Profile, error) {
	var (
		user     domain.User
		attempts []domain.Attempt
		progress []domain.QuizProgress
		earned   []domain.EarnedBadge
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = s.lookupUser(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		attempts, err = s.progress.ListAttempts(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		progress, err = s.progress.ListUser(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		earned, err = s.badges.Earned(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Profile{}, err
	}

	profile := Profile{User: user, QuizzesPlayed: len(attempts), Badges: earned}
	if len(attempts) > 0 {
		sum := 0.0
		for _, a := range attempts {
			sum += a.Score.Percentage
		}
		profile.AvgCorrect = sum / float64(len(attempts))
	}
	for _, p := range progress {
		if p.Best != nil && p.Best.Percentage > profile.PersonalBest {
			profile.PersonalBest = p.Best.Percentage
		}
	}
	profile.DisplayAvgCorrect = domain.DisplayPercent(profile.AvgCorrect)
	profile.DisplayPersonalBest = domain.DisplayPercent(profile.PersonalBest)
	if profile.Badges == nil {
		profile.Badges = []domain.EarnedBadge{}
	}
	return profile, nil
}

// GetBadges lists the user's earned badges and the ones still available.
func (s *PlayerService) GetBadges(ctx context.Context, userID string) (BadgeBoard, error) {
	earned, err := s.badges.Earned(ctx, userID)
	if err != nil {
		return BadgeBoard{}, err
	}
	byID := make(map[string]Badge, len(s.catalog))
	for _, b := range s.catalog {
		byID[b.ID] = b
	}

	board := BadgeBoard{
		Earned:    []EarnedBadgeView{},
		Available: []AvailableBadgeView{},
	}
	have := make(map[string]bool, len(earned))
	for _, e := range earned {
		def, ok := byID[e.BadgeID]
		if !ok {
			continue
		}
		have[e.BadgeID] = true
		board.Earned = append(board.Earned, EarnedBadgeView{Badge: def, EarnedAt: e.EarnedAt, QuizIndex: e.QuizIndex})
	}
	for _, b := range s.catalog {
		if !have[b.ID] {
			board.Available = append(board.Available, AvailableBadgeView{Badge: b, Locked: true})
		}
	}
	board.TotalEarned = len(board.Earned)
	board.TotalAvailable = len(s.catalog)
	return board, nil
}

func (s *PlayerService) lookupUser(ctx context.Context, userID string) (domain.User, error) {
	if s.users == nil {
		return domain.User{ID: userID, Nickname: unknownNickname}, nil
	}
	user, err := s.users.Lookup(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{ID: userID, Nickname: unknownNickname}, nil
	}
	return user, err
}
