package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"trivia-engine/internal/app"
	"trivia-engine/internal/domain"
	"trivia-engine/internal/infra/memory"
)

func TestSubmitAttemptUsesThreeAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := key("u1", 0)

	for i := 1; i <= domain.MaxAttempts; i++ {
		res := f.submit(t, k, 1, 10000)
		if res.AttemptNumber != i {
			t.Fatalf("expected attempt %d, got %d", i, res.AttemptNumber)
		}
		if res.AttemptsRemaining != domain.MaxAttempts-i {
			t.Fatalf("attempt %d: expected %d remaining, got %d", i, domain.MaxAttempts-i, res.AttemptsRemaining)
		}
		if res.Locked != (i == domain.MaxAttempts) {
			t.Fatalf("attempt %d: unexpected locked=%v", i, res.Locked)
		}
	}

	_, err := f.engine.SubmitAttempt(ctx, k, f.answers(t, 0, 3), 1000)
	if !errors.Is(err, domain.ErrAttemptsExhausted) || !errors.Is(err, domain.ErrInvalidSubmission) {
		t.Fatalf("expected exhausted invalid submission, got %v", err)
	}
	if _, err := f.engine.StartAttempt(ctx, k, "en"); !errors.Is(err, domain.ErrAttemptsExhausted) {
		t.Fatalf("expected exhausted on start, got %v", err)
	}

	progress, err := f.progress.GetProgress(ctx, k)
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	if progress.AttemptCount != domain.MaxAttempts || !progress.Locked {
		t.Fatalf("unexpected progress %+v", progress)
	}
	if progress.Status() != domain.StatusCompleted {
		t.Fatalf("expected completed status, got %s", progress.Status())
	}
}

func TestBestScoreNeverDecreases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := key("u1", 2)

	if res := f.submit(t, k, 2, 5000); !res.IsBest {
		t.Fatalf("first attempt must set the best")
	}
	res := f.submit(t, k, 3, 9000)
	if !res.IsBest || res.Best.Percentage != 100 || res.Best.TimeMs != 9000 {
		t.Fatalf("expected improved best 100/9000, got %+v", res)
	}
	res = f.submit(t, k, 3, 12000)
	if res.IsBest {
		t.Fatalf("slower equal score must not replace the best")
	}
	if res.Best.Percentage != 100 || res.Best.TimeMs != 9000 {
		t.Fatalf("best changed: %+v", res.Best)
	}
	if res.DisplayPercentage != 100 {
		t.Fatalf("expected display 100, got %d", res.DisplayPercentage)
	}

	progress, err := f.progress.GetProgress(ctx, k)
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	if progress.Best == nil || progress.Best.TimeMs != 9000 {
		t.Fatalf("stored best %+v", progress.Best)
	}
}

func TestFasterEqualScoreImprovesBest(t *testing.T) {
	f := newFixture(t)
	k := key("u1", 4)

	f.submit(t, k, 2, 8000)
	res := f.submit(t, k, 2, 6000)
	if !res.IsBest || res.Best.TimeMs != 6000 {
		t.Fatalf("expected faster attempt to become best, got %+v", res)
	}
}

func TestStartAttemptHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := key("u1", 1)

	first, err := f.engine.StartAttempt(ctx, k, "sk")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	again, err := f.engine.StartAttempt(ctx, k, "sk")
	if err != nil {
		t.Fatalf("start again: %v", err)
	}
	if first.AttemptNumber != 1 || again.AttemptNumber != 1 {
		t.Fatalf("starting must not consume attempts: %d, %d", first.AttemptNumber, again.AttemptNumber)
	}
	if first.AttemptsRemaining != 2 {
		t.Fatalf("expected 2 remaining after this attempt, got %d", first.AttemptsRemaining)
	}
	if len(first.Questions) != 3 || first.Topic.Name == "" {
		t.Fatalf("unexpected view %+v", first)
	}
	for i := range first.Questions {
		if len(first.Questions[i].Options) != len(domain.OptionKeys) {
			t.Fatalf("question %s has %d options", first.Questions[i].ID, len(first.Questions[i].Options))
		}
		for j := range first.Questions[i].Options {
			if first.Questions[i].Options[j] != again.Questions[i].Options[j] {
				t.Fatalf("option order must be stable within one attempt")
			}
		}
	}

	progress, err := f.progress.GetProgress(ctx, k)
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	if progress.AttemptCount != 0 {
		t.Fatalf("start changed progress: %+v", progress)
	}

	f.submit(t, k, 0, 1000)
	second, err := f.engine.StartAttempt(ctx, k, "sk")
	if err != nil {
		t.Fatalf("start second: %v", err)
	}
	if second.AttemptNumber != 2 {
		t.Fatalf("expected attempt 2, got %d", second.AttemptNumber)
	}
	reshuffled := false
	for i := range first.Questions {
		for j := range first.Questions[i].Options {
			if first.Questions[i].Options[j].Key != second.Questions[i].Options[j].Key {
				reshuffled = true
			}
		}
	}
	if !reshuffled {
		t.Fatalf("expected a different option order for the second attempt")
	}
}

func TestBonusUnlocksAfterRegularQuizzes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bonus := key("u1", domain.BonusQuizIndex)

	if _, err := f.engine.StartAttempt(ctx, bonus, "en"); !errors.Is(err, domain.ErrBonusNotUnlocked) {
		t.Fatalf("expected bonus locked, got %v", err)
	}
	if _, err := f.engine.SubmitAttempt(ctx, bonus, nil, 1000); !errors.Is(err, domain.ErrBonusNotUnlocked) {
		t.Fatalf("expected bonus locked on submit, got %v", err)
	}

	for i := 0; i < domain.RegularQuizzes; i++ {
		f.submit(t, key("u1", i), 0, 1000)
	}
	unlocked, err := f.engine.BonusUnlocked(ctx, "u1", testDate)
	if err != nil || !unlocked {
		t.Fatalf("expected bonus unlocked, got %v %v", unlocked, err)
	}
	if _, err := f.engine.StartAttempt(ctx, bonus, "en"); err != nil {
		t.Fatalf("start bonus: %v", err)
	}
	f.submit(t, bonus, 3, 2000)

	other, err := f.engine.BonusUnlocked(ctx, "u2", testDate)
	if err != nil || other {
		t.Fatalf("bonus must unlock per user, got %v %v", other, err)
	}
}

func TestRevealAnswersRequiresConfirmation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := key("u1", 3)

	if _, err := f.engine.RevealAnswers(ctx, k, "en", true); !errors.Is(err, domain.ErrNoSubmission) {
		t.Fatalf("expected no submission, got %v", err)
	}

	answers := f.answers(t, 3, 2)
	if _, err := f.engine.SubmitAttempt(ctx, k, answers, 4000); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.engine.RevealAnswers(ctx, k, "en", false); !errors.Is(err, domain.ErrRevealNotConfirmed) {
		t.Fatalf("expected confirmation error, got %v", err)
	}
	progress, _ := f.progress.GetProgress(ctx, k)
	if progress.Locked {
		t.Fatalf("unconfirmed reveal must not lock")
	}

	reveal, err := f.engine.RevealAnswers(ctx, k, "en", true)
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if !reveal.Locked || len(reveal.Questions) != 3 {
		t.Fatalf("unexpected reveal %+v", reveal)
	}
	correct := 0
	for _, q := range reveal.Questions {
		if q.UserAnswer != answers[q.ID] {
			t.Fatalf("question %s: user answer %q, submitted %q", q.ID, q.UserAnswer, answers[q.ID])
		}
		if q.IsCorrect != (q.UserAnswer == q.CorrectKey) {
			t.Fatalf("question %s: inconsistent correctness", q.ID)
		}
		if q.IsCorrect {
			correct++
		}
	}
	if correct != 2 {
		t.Fatalf("expected 2 correct, got %d", correct)
	}

	progress, _ = f.progress.GetProgress(ctx, k)
	if !progress.Locked || !progress.RevealedAnswers || progress.Status() != domain.StatusLocked {
		t.Fatalf("reveal must lock: %+v", progress)
	}
	if _, err := f.engine.SubmitAttempt(ctx, k, answers, 1000); !errors.Is(err, domain.ErrQuizLocked) {
		t.Fatalf("expected locked, got %v", err)
	}
	if _, err := f.engine.RevealAnswers(ctx, k, "en", false); err != nil {
		t.Fatalf("locked quiz reveals without confirmation: %v", err)
	}
}

func TestLockQuizIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := key("u1", 5)

	if _, err := f.engine.LockQuiz(ctx, k); !errors.Is(err, domain.ErrNoSubmission) {
		t.Fatalf("expected no submission, got %v", err)
	}
	f.submit(t, k, 1, 3000)

	first, err := f.engine.LockQuiz(ctx, k)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	second, err := f.engine.LockQuiz(ctx, k)
	if err != nil {
		t.Fatalf("lock again: %v", err)
	}
	if !first.Locked || !second.Locked || second.RevealedAnswers {
		t.Fatalf("unexpected lock state %+v %+v", first, second)
	}
	if second.AttemptCount != 1 {
		t.Fatalf("locking must keep attempts, got %d", second.AttemptCount)
	}
	if _, err := f.engine.StartAttempt(ctx, k, "en"); !errors.Is(err, domain.ErrQuizLocked) {
		t.Fatalf("expected locked on start, got %v", err)
	}
}

func TestSubmitAttemptRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.SubmitAttempt(ctx, key("u1", 11), nil, 1000); !errors.Is(err, domain.ErrInvalidSubmission) {
		t.Fatalf("expected invalid index, got %v", err)
	}
	if _, err := f.engine.SubmitAttempt(ctx, key("u1", 0), nil, -1); !errors.Is(err, domain.ErrInvalidSubmission) {
		t.Fatalf("expected invalid time, got %v", err)
	}
	if _, err := f.engine.SubmitAttempt(ctx, key("u1", 0), map[string]string{"nope": "A"}, 1000); !errors.Is(err, domain.ErrInvalidSubmission) {
		t.Fatalf("expected unknown question rejected, got %v", err)
	}
	progress, _ := f.progress.GetProgress(ctx, key("u1", 0))
	if progress.AttemptCount != 0 {
		t.Fatalf("rejected submissions must not count, got %d", progress.AttemptCount)
	}
}

func TestConcurrentSubmitsNeverExceedMaxAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := key("u1", 6)
	answers := f.answers(t, 6, 2)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.SubmitAttempt(ctx, k, answers, 5000)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !errors.Is(err, domain.ErrAttemptsExhausted) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != domain.MaxAttempts {
		t.Fatalf("expected %d accepted submissions, got %d", domain.MaxAttempts, succeeded)
	}
	attempts, err := f.progress.ListAttempts(ctx, "u1")
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	if len(attempts) != domain.MaxAttempts {
		t.Fatalf("expected %d stored attempts, got %d", domain.MaxAttempts, len(attempts))
	}
	seen := make(map[int]bool)
	for _, a := range attempts {
		if seen[a.AttemptNumber] {
			t.Fatalf("attempt number %d stored twice", a.AttemptNumber)
		}
		seen[a.AttemptNumber] = true
	}
}

func TestSubmitReportsRank(t *testing.T) {
	f := newFixture(t)

	if res := f.submit(t, key("u1", 7), 2, 5000); res.Rank != 1 {
		t.Fatalf("expected rank 1, got %d", res.Rank)
	}
	if res := f.submit(t, key("u2", 7), 3, 9000); res.Rank != 1 {
		t.Fatalf("expected rank 1 for the better score, got %d", res.Rank)
	}
	if res := f.submit(t, key("u1", 7), 0, 1000); res.IsBest || res.Rank != 2 {
		t.Fatalf("expected unchanged rank 2, got %+v", res)
	}
}

func TestSubmitResultCarriesDetails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := key("u1", 8)

	res := f.submit(t, k, 2, 4000)
	if len(res.Score.Details) != 3 {
		t.Fatalf("expected 3 details, got %+v", res.Score.Details)
	}
	questions := f.questions(t, 8)
	for i, d := range res.Score.Details {
		if d.QuestionID != questions[i].ID || d.Correct != (i < 2) {
			t.Fatalf("detail %d: unexpected %+v", i, d)
		}
	}

	latest, err := f.progress.LatestAttempt(ctx, k)
	if err != nil {
		t.Fatalf("latest attempt: %v", err)
	}
	if latest.Score.Details != nil || latest.Score.CorrectCount != 2 {
		t.Fatalf("stored attempt must keep counts only: %+v", latest.Score)
	}
}

func TestPastDaysCannotBePlayed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	yesterday := domain.QuizKey{UserID: "u1", Date: testDate.AddDays(-1), QuizIndex: 0}

	if _, err := f.engine.StartAttempt(ctx, yesterday, "en"); !errors.Is(err, domain.ErrQuizClosed) {
		t.Fatalf("expected closed on start, got %v", err)
	}
	if _, err := f.engine.SubmitAttempt(ctx, yesterday, map[string]string{}, 1000); !errors.Is(err, domain.ErrQuizClosed) {
		t.Fatalf("expected closed on submit, got %v", err)
	}
	if _, err := f.packStore.GetPack(ctx, yesterday.Date); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("a past pack must not be generated on demand, got %v", err)
	}
	if _, err := f.player.GetPack(ctx, "u1", yesterday.Date, "en"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected missing past pack, got %v", err)
	}
	rows, err := f.progress.ListUser(ctx, "u1")
	if err != nil || len(rows) != 0 {
		t.Fatalf("no progress may be recorded for a past day: %+v %v", rows, err)
	}
}

func TestDayRolloverClosesQuizzes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := key("u1", 0)
	answers := f.answers(t, 0, 1)
	f.submit(t, k, 1, 3000)

	f.clock.Set(testNow.Add(24 * time.Hour))

	if _, err := f.engine.SubmitAttempt(ctx, k, answers, 3000); !errors.Is(err, domain.ErrQuizClosed) {
		t.Fatalf("expected closed after midnight, got %v", err)
	}
	if _, err := f.engine.LockQuiz(ctx, k); !errors.Is(err, domain.ErrQuizClosed) {
		t.Fatalf("expected closed lock, got %v", err)
	}
	reveal, err := f.engine.RevealAnswers(ctx, k, "en", false)
	if err != nil {
		t.Fatalf("past answers are readable without confirmation: %v", err)
	}
	if len(reveal.Questions) != 3 {
		t.Fatalf("unexpected reveal %+v", reveal)
	}
	progress, _ := f.progress.GetProgress(ctx, k)
	if progress.Locked || progress.AttemptCount != 1 {
		t.Fatalf("reading a past quiz must not change it: %+v", progress)
	}

	overview, err := f.player.GetPack(ctx, "u1", testDate, "en")
	if err != nil {
		t.Fatalf("stored past pack stays readable: %v", err)
	}
	if overview.Quizzes[0].AttemptCount != 1 {
		t.Fatalf("unexpected past overview %+v", overview.Quizzes[0])
	}

	today := domain.QuizKey{UserID: "u1", Date: testDate.AddDays(1), QuizIndex: 0}
	if _, err := f.engine.StartAttempt(ctx, today, "en"); err != nil {
		t.Fatalf("start on the new day: %v", err)
	}
}

// racingProgress stands in for another process sharing the store: the next
// `conflicts` swaps first apply advance to the stored record, if set, and then
// report a lost compare-and-swap.
type racingProgress struct {
	*memory.ProgressStore
	mu        sync.Mutex
	conflicts int
	advance   func(domain.QuizProgress) domain.QuizProgress
}

func (r *racingProgress) SwapProgress(ctx context.Context, prev, next domain.QuizProgress, attempt *domain.Attempt) error {
	r.mu.Lock()
	conflict := r.conflicts > 0
	if conflict {
		r.conflicts--
	}
	r.mu.Unlock()
	if !conflict {
		return r.ProgressStore.SwapProgress(ctx, prev, next, attempt)
	}
	if r.advance != nil {
		current, err := r.ProgressStore.GetProgress(ctx, next.QuizKey)
		if err != nil {
			return err
		}
		if err := r.ProgressStore.SwapProgress(ctx, current, r.advance(current), nil); err != nil {
			return err
		}
	}
	return fmt.Errorf("progress %+v: %w", next.QuizKey, domain.ErrConcurrencyConflict)
}

func (f *fixture) racingEngine(r *racingProgress) *app.Engine {
	board := app.NewLeaderboardEngine(r, f.dir, f.dir)
	return app.NewEngineWithClock(f.packs, f.content, r, board, nil, f.clock.Now)
}

func TestSubmitRetrySurfacesExhausted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := key("u1", 1)
	f.submit(t, k, 1, 3000)
	f.submit(t, k, 1, 3000)

	racing := &racingProgress{ProgressStore: f.progress, conflicts: 1, advance: func(p domain.QuizProgress) domain.QuizProgress {
		p.AttemptCount = domain.MaxAttempts
		p.Locked = true
		return p
	}}
	_, err := f.racingEngine(racing).SubmitAttempt(ctx, k, f.answers(t, 1, 3), 2000)
	if !errors.Is(err, domain.ErrAttemptsExhausted) || errors.Is(err, domain.ErrConcurrencyConflict) {
		t.Fatalf("expected exhausted after the retry, got %v", err)
	}
	attempts, _ := f.progress.ListAttempts(ctx, "u1")
	if len(attempts) != 2 {
		t.Fatalf("the losing submission must not be stored, got %d attempts", len(attempts))
	}
}

func TestSubmitRetryCommitsOnAdvancedState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := key("u1", 2)

	racing := &racingProgress{ProgressStore: f.progress, conflicts: 1, advance: func(p domain.QuizProgress) domain.QuizProgress {
		p.AttemptCount++
		p.Best = &domain.BestScore{Percentage: 0, TimeMs: 9000}
		return p
	}}
	res, err := f.racingEngine(racing).SubmitAttempt(ctx, k, f.answers(t, 2, 3), 2000)
	if err != nil {
		t.Fatalf("retry should commit: %v", err)
	}
	if res.AttemptNumber != 2 || !res.IsBest {
		t.Fatalf("expected attempt 2 as the new best, got %+v", res)
	}
}

func TestSubmitDoubleConflictSurfaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := key("u1", 3)

	racing := &racingProgress{ProgressStore: f.progress, conflicts: 2}
	if _, err := f.racingEngine(racing).SubmitAttempt(ctx, k, f.answers(t, 3, 1), 2000); !errors.Is(err, domain.ErrConcurrencyConflict) {
		t.Fatalf("expected conflict after one retry, got %v", err)
	}
	progress, _ := f.progress.GetProgress(ctx, k)
	if progress.AttemptCount != 0 {
		t.Fatalf("nothing may be stored, got %+v", progress)
	}
}

func TestLockRetryAfterConcurrentLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := key("u1", 4)
	f.submit(t, k, 1, 3000)

	racing := &racingProgress{ProgressStore: f.progress, conflicts: 1, advance: func(p domain.QuizProgress) domain.QuizProgress {
		p.Locked = true
		return p
	}}
	engine := f.racingEngine(racing)
	progress, err := engine.LockQuiz(ctx, k)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if !progress.Locked {
		t.Fatalf("expected locked progress, got %+v", progress)
	}
	if _, err := engine.SubmitAttempt(ctx, k, f.answers(t, 4, 3), 1000); !errors.Is(err, domain.ErrQuizLocked) {
		t.Fatalf("expected locked, got %v", err)
	}

	other := key("u1", 5)
	f.submit(t, other, 1, 3000)
	racing.mu.Lock()
	racing.conflicts, racing.advance = 2, nil
	racing.mu.Unlock()
	if _, err := engine.LockQuiz(ctx, other); !errors.Is(err, domain.ErrConcurrencyConflict) {
		t.Fatalf("expected conflict after one retry, got %v", err)
	}
}
