package app

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"trivia-engine/internal/domain"
)

// QuizView is a quiz as served to a player: localized, correct keys withheld.
type QuizView struct {
	QuizIndex         int             `json:"quizIndex"`
	Date              domain.PackDate `json:"date"`
	Topic             TopicView       `json:"topic"`
	Questions         []QuestionView  `json:"questions"`
	AttemptNumber     int             `json:"attemptNumber"`
	AttemptsRemaining int             `json:"attemptsRemaining"`
}

type TopicView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type OptionView struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

type QuestionView struct {
	ID       string       `json:"id"`
	Text     string       `json:"text"`
	Options  []OptionView `json:"options"`
	ImageURL string       `json:"imageUrl,omitempty"`
}

// SubmitResult is returned by SubmitAttempt.
type SubmitResult struct {
	AttemptNumber     int                  `json:"attemptNumber"`
	Score             domain.Score         `json:"score"`
	DisplayPercentage int                  `json:"displayPercentage"`
	IsBest            bool                 `json:"isBest"`
	Best              domain.BestScore     `json:"best"`
	Rank              int                  `json:"rank"`
	AttemptsRemaining int                  `json:"attemptsRemaining"`
	Locked            bool                 `json:"locked"`
	CanViewAnswers    bool                 `json:"canViewAnswers"`
	NewBadges         []domain.EarnedBadge `json:"newBadges,omitempty"`
}

// RevealedQuestion pairs the correct key with the user's latest choice.
type RevealedQuestion struct {
	QuestionView
	CorrectKey string `json:"correctKey"`
	UserAnswer string `json:"userAnswer,omitempty"`
	IsCorrect  bool   `json:"isCorrect"`
}

// Reveal is the answer sheet of a quiz.
type Reveal struct {
	QuizIndex int                `json:"quizIndex"`
	Locked    bool               `json:"locked"`
	Questions []RevealedQuestion `json:"questions"`
}

// Engine is the attempt state machine and the orchestration point of the
// pack assembler, scoring, leaderboards and badges.
type Engine struct {
	packs       *PackAssembler
	content     ContentPool
	progress    ProgressRepository
	leaderboard *LeaderboardEngine
	badges      *BadgeEvaluator
	locks       keyLocks
	now         func() time.Time
}

func NewEngine(packs *PackAssembler, content ContentPool, progress ProgressRepository, leaderboard *LeaderboardEngine, badges *BadgeEvaluator) *Engine {
	return &Engine{
		packs:       packs,
		content:     content,
		progress:    progress,
		leaderboard: leaderboard,
		badges:      badges,
		now:         time.Now,
	}
}

// NewEngineWithClock is test-only for deterministic timestamps. The clock also
// drives the pack assembler's notion of today and badge award times.
func NewEngineWithClock(packs *PackAssembler, content ContentPool, progress ProgressRepository, leaderboard *LeaderboardEngine, badges *BadgeEvaluator, now func() time.Time) *Engine {
	e := NewEngine(packs, content, progress, leaderboard, badges)
	e.now = now
	packs.now = now
	if badges != nil {
		badges.now = now
	}
	return e
}

// StartAttempt returns the next attempt's questions. It never changes state, so
// abandoning an attempt costs nothing. Only today's quizzes can be played.
func (e *Engine) StartAttempt(ctx context.Context, key domain.QuizKey, lang string) (QuizView, error) {
	if !domain.ValidQuizIndex(key.QuizIndex) {
		return QuizView{}, fmt.Errorf("quiz index %d: %w", key.QuizIndex, domain.ErrNotFound)
	}
	if err := e.checkToday(key); err != nil {
		return QuizView{}, err
	}
	progress, err := e.progress.GetProgress(ctx, key)
	if err != nil {
		return QuizView{}, err
	}
	if err := e.checkOpen(ctx, key, progress); err != nil {
		return QuizView{}, err
	}

	slot, questions, err := e.quiz(ctx, key)
	if err != nil {
		return QuizView{}, err
	}
	topic, err := e.content.Topic(ctx, slot.TopicID)
	if err != nil {
		return QuizView{}, err
	}

	next := progress.AttemptCount + 1
	lang = domain.NormalizeLang(lang)
	views := make([]QuestionView, 0, len(questions))
	for _, q := range questions {
		views = append(views, localize(q, lang, next))
	}
	return QuizView{
		QuizIndex:         key.QuizIndex,
		Date:              key.Date,
		Topic:             TopicView{ID: topic.ID, Name: topic.Name.Get(lang)},
		Questions:         views,
		AttemptNumber:     next,
		AttemptsRemaining: domain.MaxAttempts - next,
	}, nil
}

// SubmitAttempt grades answers and advances the quiz state. A lost compare-and-swap
// is retried once; the retry re-validates, so it surfaces exhausted/locked state
// when another submission got there first.
func (e *Engine) SubmitAttempt(ctx context.Context, key domain.QuizKey, answers map[string]string, timeMs int64) (SubmitResult, error) {
	if !domain.ValidQuizIndex(key.QuizIndex) {
		return SubmitResult{}, fmt.Errorf("quiz index %d: %w", key.QuizIndex, domain.ErrInvalidSubmission)
	}
	if timeMs < 0 {
		return SubmitResult{}, fmt.Errorf("negative time: %w", domain.ErrInvalidSubmission)
	}
	if err := e.checkToday(key); err != nil {
		return SubmitResult{}, err
	}

	_, questions, err := e.quiz(ctx, key)
	if err != nil {
		return SubmitResult{}, err
	}
	score, err := Score(questions, answers)
	if err != nil {
		return SubmitResult{}, err
	}

	unlock := e.locks.lock(key)
	var (
		next     domain.QuizProgress
		improved bool
	)
	for try := 0; ; try++ {
		next, improved, err = e.commit(ctx, key, answers, timeMs, score)
		if !errors.Is(err, domain.ErrConcurrencyConflict) || try == 1 {
			break
		}
	}
	unlock()
	if err != nil {
		return SubmitResult{}, err
	}

	result := SubmitResult{
		AttemptNumber:     next.AttemptCount,
		Score:             score,
		DisplayPercentage: score.DisplayPercentage(),
		IsBest:            improved,
		Best:              *next.Best,
		AttemptsRemaining: next.AttemptsRemaining(),
		Locked:            next.Locked,
		CanViewAnswers:    true,
	}

	// Everything below runs outside the attempt lock and degrades instead of failing.
	if improved {
		if _, err := e.leaderboard.UpdateDaily(ctx, key.UserID, key.Date); err != nil {
			log.Printf("daily leaderboard update for %s on %s: %v", key.UserID, key.Date, err)
		}
		rank, err := e.leaderboard.UpdatePerQuiz(ctx, key)
		if err != nil {
			log.Printf("quiz leaderboard update for %s on %s/%d: %v", key.UserID, key.Date, key.QuizIndex, err)
		}
		result.Rank = rank
	} else {
		lb, err := e.leaderboard.GetQuizLeaderboard(ctx, key.Date, key.QuizIndex, "")
		if err != nil {
			log.Printf("quiz leaderboard read for %s on %s/%d: %v", key.UserID, key.Date, key.QuizIndex, err)
		} else {
			result.Rank = rankOf(lb.Entries, key.UserID)
		}
	}

	if e.badges != nil {
		index := key.QuizIndex
		earned, err := e.badges.Evaluate(ctx, key.UserID, &index)
		if err != nil {
			log.Printf("badge evaluation for %s: %v", key.UserID, err)
		}
		result.NewBadges = earned
	}
	return result, nil
}

func (e *Engine) commit(ctx context.Context, key domain.QuizKey, answers map[string]string, timeMs int64, score domain.Score) (domain.QuizProgress, bool, error) {
	prev, err := e.progress.GetProgress(ctx, key)
	if err != nil {
		return prev, false, err
	}
	if err := e.checkOpen(ctx, key, prev); err != nil {
		if errors.Is(err, domain.ErrQuizLocked) || errors.Is(err, domain.ErrAttemptsExhausted) {
			return prev, false, fmt.Errorf("%w: %w", domain.ErrInvalidSubmission, err)
		}
		return prev, false, err
	}

	now := e.now().UTC()
	candidate := domain.BestScore{Percentage: score.Percentage, TimeMs: timeMs}
	next := prev
	next.QuizKey = key
	next.AttemptCount = prev.AttemptCount + 1
	next.UpdatedAt = now
	improved := prev.Best == nil || candidate.Beats(*prev.Best)
	if improved {
		next.Best = &candidate
	}
	if next.AttemptCount >= domain.MaxAttempts {
		next.Locked = true
	}

	stored := score
	stored.Details = nil
	attempt := domain.Attempt{
		ID:            uuid.NewString(),
		QuizKey:       key,
		AttemptNumber: next.AttemptCount,
		Answers:       answers,
		TimeMs:        timeMs,
		Score:         stored,
		FinishedAt:    now,
	}
	if err := e.progress.SwapProgress(ctx, prev, next, &attempt); err != nil {
		return prev, false, err
	}
	return next, improved, nil
}

// RevealAnswers returns the correct keys and the user's latest choices. Revealing
// an unlocked quiz of today locks it for good, so it only proceeds when confirm is
// true; without confirmation it fails with domain.ErrRevealNotConfirmed and changes
// nothing. Quizzes of past days can no longer be played and are revealed as they are.
func (e *Engine) RevealAnswers(ctx context.Context, key domain.QuizKey, lang string, confirm bool) (Reveal, error) {
	if !domain.ValidQuizIndex(key.QuizIndex) {
		return Reveal{}, fmt.Errorf("quiz index %d: %w", key.QuizIndex, domain.ErrNotFound)
	}
	progress, err := e.progress.GetProgress(ctx, key)
	if err != nil {
		return Reveal{}, err
	}
	if progress.AttemptCount == 0 {
		return Reveal{}, domain.ErrNoSubmission
	}
	if !progress.Locked && e.checkToday(key) == nil {
		if !confirm {
			return Reveal{}, domain.ErrRevealNotConfirmed
		}
		if _, err := e.lock(ctx, key, true); err != nil {
			return Reveal{}, err
		}
	}

	_, questions, err := e.quiz(ctx, key)
	if err != nil {
		return Reveal{}, err
	}
	latest, err := e.progress.LatestAttempt(ctx, key)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return Reveal{}, err
	}

	lang = domain.NormalizeLang(lang)
	revealed := make([]RevealedQuestion, 0, len(questions))
	for _, q := range questions {
		choice := latest.Answers[q.ID]
		if choice == domain.Unanswered {
			choice = ""
		}
		revealed = append(revealed, RevealedQuestion{
			QuestionView: localize(q, lang, 0),
			CorrectKey:   q.CorrectKey,
			UserAnswer:   choice,
			IsCorrect:    choice != "" && choice == q.CorrectKey,
		})
	}
	return Reveal{QuizIndex: key.QuizIndex, Locked: true, Questions: revealed}, nil
}

// LockQuiz is the explicit, confirmed lock without reading the answers. Locking an
// already locked quiz is a no-op.
func (e *Engine) LockQuiz(ctx context.Context, key domain.QuizKey) (domain.QuizProgress, error) {
	if !domain.ValidQuizIndex(key.QuizIndex) {
		return domain.QuizProgress{}, fmt.Errorf("quiz index %d: %w", key.QuizIndex, domain.ErrNotFound)
	}
	progress, err := e.progress.GetProgress(ctx, key)
	if err != nil {
		return domain.QuizProgress{}, err
	}
	if progress.AttemptCount == 0 {
		return domain.QuizProgress{}, domain.ErrNoSubmission
	}
	if progress.Locked {
		return progress, nil
	}
	if err := e.checkToday(key); err != nil {
		return domain.QuizProgress{}, err
	}
	return e.lock(ctx, key, false)
}

func (e *Engine) lock(ctx context.Context, key domain.QuizKey, revealed bool) (domain.QuizProgress, error) {
	unlock := e.locks.lock(key)
	defer unlock()

	var (
		next domain.QuizProgress
		err  error
	)
	for try := 0; try < 2; try++ {
		var prev domain.QuizProgress
		prev, err = e.progress.GetProgress(ctx, key)
		if err != nil {
			return domain.QuizProgress{}, err
		}
		next = prev
		next.QuizKey = key
		next.Locked = true
		next.RevealedAnswers = next.RevealedAnswers || revealed
		next.UpdatedAt = e.now().UTC()
		if prev.Locked && prev.RevealedAnswers == next.RevealedAnswers {
			return prev, nil
		}
		if err = e.progress.SwapProgress(ctx, prev, next, nil); !errors.Is(err, domain.ErrConcurrencyConflict) {
			break
		}
	}
	if err != nil {
		return domain.QuizProgress{}, err
	}
	log.Printf("locked quiz %s/%d for user %s (revealed=%v)", key.Date, key.QuizIndex, key.UserID, next.RevealedAnswers)
	return next, nil
}

// checkToday rejects play on any day but the current pack day, so past packs
// cannot be back-filled.
func (e *Engine) checkToday(key domain.QuizKey) error {
	if today := e.packs.Today(); key.Date != today {
		return fmt.Errorf("quiz %s/%d, today is %s: %w", key.Date, key.QuizIndex, today, domain.ErrQuizClosed)
	}
	return nil
}

// checkOpen enforces lock, attempt and bonus-unlock gates.
func (e *Engine) checkOpen(ctx context.Context, key domain.QuizKey, progress domain.QuizProgress) error {
	if progress.Exhausted() {
		return domain.ErrAttemptsExhausted
	}
	if progress.Locked {
		return domain.ErrQuizLocked
	}
	if key.QuizIndex == domain.BonusQuizIndex {
		unlocked, err := e.BonusUnlocked(ctx, key.UserID, key.Date)
		if err != nil {
			return err
		}
		if !unlocked {
			return domain.ErrBonusNotUnlocked
		}
	}
	return nil
}

// BonusUnlocked reports whether every regular quiz of the day has an attempt.
func (e *Engine) BonusUnlocked(ctx context.Context, userID string, date domain.PackDate) (bool, error) {
	rows, err := e.progress.ListUserDay(ctx, userID, date)
	if err != nil {
		return false, err
	}
	attempted := make(map[int]bool, len(rows))
	for _, p := range rows {
		if p.AttemptCount > 0 {
			attempted[p.QuizIndex] = true
		}
	}
	return countRegular(attempted) == domain.RegularQuizzes, nil
}

// quiz loads the pack slot and its questions in slot order.
func (e *Engine) quiz(ctx context.Context, key domain.QuizKey) (domain.QuizSlot, []domain.Question, error) {
	pack, err := e.packs.OpenPack(ctx, key.Date)
	if err != nil {
		return domain.QuizSlot{}, nil, err
	}
	slot, err := pack.Slot(key.QuizIndex)
	if err != nil {
		return domain.QuizSlot{}, nil, err
	}
	questions, err := e.content.Questions(ctx, slot.QuestionIDs)
	if err != nil {
		return domain.QuizSlot{}, nil, err
	}
	byID := make(map[string]domain.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	ordered := make([]domain.Question, 0, len(slot.QuestionIDs))
	for _, id := range slot.QuestionIDs {
		q, ok := byID[id]
		if !ok {
			return domain.QuizSlot{}, nil, fmt.Errorf("question %s: %w", id, domain.ErrNotFound)
		}
		ordered = append(ordered, q)
	}
	return slot, ordered, nil
}

// localize renders q in lang. A positive attempt shuffles the options with a
// seed of (question id, attempt) so each attempt sees a different order.
func localize(q domain.Question, lang string, attempt int) QuestionView {
	options := make([]OptionView, 0, len(q.Options))
	for _, opt := range q.Options {
		options = append(options, OptionView{Key: opt.Key, Label: opt.Label.Get(lang)})
	}
	if attempt > 0 {
		h := fnv.New64a()
		_, _ = fmt.Fprintf(h, "%s:%d", q.ID, attempt)
		rng := rand.New(rand.NewSource(int64(h.Sum64())))
		rng.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })
	}
	return QuestionView{
		ID:       q.ID,
		Text:     q.Text.Get(lang),
		Options:  options,
		ImageURL: q.ImageURL,
	}
}

// keyLocks serializes submissions per (user, date, quiz) inside this process
// using a fixed set of striped mutexes. Cross-process exclusivity comes from
// the repository's compare-and-swap.
type keyLocks struct {
	stripes [64]sync.Mutex
}

func (l *keyLocks) lock(key domain.QuizKey) func() {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s|%s|%d", key.UserID, key.Date, key.QuizIndex)
	m := &l.stripes[h.Sum32()%uint32(len(l.stripes))]
	m.Lock()
	return m.Unlock
}
