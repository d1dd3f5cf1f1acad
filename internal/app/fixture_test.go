package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"trivia-engine/internal/app"
	"trivia-engine/internal/domain"
	"trivia-engine/internal/infra/memory"
)

var testNow = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

const testDate domain.PackDate = "2024-01-15"

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type recordingNotifier struct {
	events chan domain.EarnedBadge
}

func (n *recordingNotifier) BadgeAwarded(_ context.Context, badge domain.EarnedBadge, _ app.Badge) error {
	n.events <- badge
	return nil
}

type fixture struct {
	content     *memory.StaticContentPool
	packStore   *memory.PackStore
	progress    *memory.ProgressStore
	badgeStore  *memory.BadgeStore
	dir         *memory.Directory
	notifier    *recordingNotifier
	clock       *clock
	packs       *app.PackAssembler
	leaderboard *app.LeaderboardEngine
	evaluator   *app.BadgeEvaluator
	engine      *app.Engine
	player      *app.PlayerService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		content:    memory.NewSampleContentPool(),
		packStore:  memory.NewPackStore(),
		progress:   memory.NewProgressStore(),
		badgeStore: memory.NewBadgeStore(),
		dir:        memory.NewDirectory(),
		notifier:   &recordingNotifier{events: make(chan domain.EarnedBadge, 64)},
		clock:      &clock{t: testNow},
	}
	f.dir.PutUser(domain.User{ID: "u1", Nickname: "Alice", Role: "player"})
	f.dir.PutUser(domain.User{ID: "u2", Nickname: "Bob", Role: "player"})

	f.packs = app.NewPackAssembler(f.content, f.packStore, app.DefaultPackOptions())
	f.leaderboard = app.NewLeaderboardEngine(f.progress, f.dir, f.dir)
	f.evaluator = app.NewBadgeEvaluator(app.DefaultBadges(), f.progress, f.badgeStore, f.notifier, time.UTC)
	f.engine = app.NewEngineWithClock(f.packs, f.content, f.progress, f.leaderboard, f.evaluator, f.clock.Now)
	f.player = app.NewPlayerService(f.packs, f.content, f.progress, f.badgeStore, app.DefaultBadges(), f.dir)
	return f
}

func key(userID string, quizIndex int) domain.QuizKey {
	return domain.QuizKey{UserID: userID, Date: testDate, QuizIndex: quizIndex}
}

// questions returns the questions of quizIndex in slot order.
func (f *fixture) questions(t *testing.T, quizIndex int) []domain.Question {
	t.Helper()
	pack, err := f.packs.EnsurePack(context.Background(), testDate)
	if err != nil {
		t.Fatalf("ensure pack: %v", err)
	}
	slot, err := pack.Slot(quizIndex)
	if err != nil {
		t.Fatalf("slot %d: %v", quizIndex, err)
	}
	questions, err := f.content.Questions(context.Background(), slot.QuestionIDs)
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	return questions
}

// answers answers the first `correct` questions of quizIndex right and the rest wrong.
func (f *fixture) answers(t *testing.T, quizIndex, correct int) map[string]string {
	t.Helper()
	out := make(map[string]string)
	for i, q := range f.questions(t, quizIndex) {
		if i < correct {
			out[q.ID] = q.CorrectKey
			continue
		}
		for _, k := range domain.OptionKeys {
			if k != q.CorrectKey {
				out[q.ID] = k
				break
			}
		}
	}
	return out
}

func (f *fixture) submit(t *testing.T, k domain.QuizKey, correct int, timeMs int64) app.SubmitResult {
	t.Helper()
	res, err := f.engine.SubmitAttempt(context.Background(), k, f.answers(t, k.QuizIndex, correct), timeMs)
	if err != nil {
		t.Fatalf("submit %+v: %v", k, err)
	}
	return res
}
