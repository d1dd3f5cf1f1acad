package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"time"

	"trivia-engine/internal/domain"
)

// PackOptions tunes pack generation.
type PackOptions struct {
	QuestionsPerQuiz int
	// RecentWindowDays is how many previous days' topics are avoided when the pool allows.
	RecentWindowDays int
	// Location decides when a pack day starts and ends. Nil means UTC.
	Location *time.Location
}

// DefaultPackOptions mirrors the production settings: 3 questions per quiz and a 3-day rotation window.
func DefaultPackOptions() PackOptions {
	return PackOptions{QuestionsPerQuiz: 3, RecentWindowDays: 3}
}

// PackAssembler builds the reproducible daily pack from the content pool.
type PackAssembler struct {
	content ContentPool
	packs   PackRepository
	opts    PackOptions
	now     func() time.Time
}

func NewPackAssembler(content ContentPool, packs PackRepository, opts PackOptions) *PackAssembler {
	if opts.QuestionsPerQuiz <= 0 {
		opts.QuestionsPerQuiz = DefaultPackOptions().QuestionsPerQuiz
	}
	if opts.RecentWindowDays < 0 {
		opts.RecentWindowDays = 0
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &PackAssembler{content: content, packs: packs, opts: opts, now: time.Now}
}

// GeneratePack builds and persists the pack for date. It never overwrites:
// a second call for the same date fails with domain.ErrAlreadyExists.
func (a *PackAssembler) GeneratePack(ctx context.Context, date domain.PackDate) (domain.DailyPack, error) {
	if _, err := a.packs.GetPack(ctx, date); err == nil {
		return domain.DailyPack{}, fmt.Errorf("pack %s: %w", date, domain.ErrAlreadyExists)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.DailyPack{}, err
	}

	pack, err := a.build(ctx, date)
	if err != nil {
		return domain.DailyPack{}, err
	}
	if err := a.packs.CreatePack(ctx, pack); err != nil {
		return domain.DailyPack{}, err
	}
	log.Printf("generated pack for %s", date)
	return pack, nil
}

// EnsurePack returns the stored pack for date, generating it on first use.
func (a *PackAssembler) EnsurePack(ctx context.Context, date domain.PackDate) (domain.DailyPack, error) {
	pack, err := a.packs.GetPack(ctx, date)
	if err == nil {
		return pack, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.DailyPack{}, err
	}
	pack, err = a.GeneratePack(ctx, date)
	if errors.Is(err, domain.ErrAlreadyExists) {
		// Another caller won the race; serve its pack.
		return a.packs.GetPack(ctx, date)
	}
	return pack, err
}

// OpenPack serves the pack players interact with. Today's pack is generated on
// first use; other days are only read, so a missing pack is domain.ErrNotFound.
func (a *PackAssembler) OpenPack(ctx context.Context, date domain.PackDate) (domain.DailyPack, error) {
	if date == a.Today() {
		return a.EnsurePack(ctx, date)
	}
	return a.packs.GetPack(ctx, date)
}

// Today is the current pack date in the configured timezone.
func (a *PackAssembler) Today() domain.PackDate {
	return domain.DateOf(a.now(), a.opts.Location)
}

// GetPack returns the stored pack without generating one.
func (a *PackAssembler) GetPack(ctx context.Context, date domain.PackDate) (domain.DailyPack, error) {
	return a.packs.GetPack(ctx, date)
}

type eligibleTopic struct {
	id        string
	questions []domain.Question
}

func (a *PackAssembler) build(ctx context.Context, date domain.PackDate) (domain.DailyPack, error) {
	eligible, err := a.eligibleTopics(ctx)
	if err != nil {
		return domain.DailyPack{}, err
	}
	if len(eligible) < domain.RegularQuizzes {
		return domain.DailyPack{}, fmt.Errorf("need %d topics with %d+ active questions, found %d: %w",
			domain.RegularQuizzes, a.opts.QuestionsPerQuiz, len(eligible), domain.ErrInsufficientContent)
	}

	recent, err := a.recentTopics(ctx, date)
	if err != nil {
		return domain.DailyPack{}, err
	}

	rng := rand.New(rand.NewSource(date.Seed()))
	rng.Shuffle(len(eligible), func(i, j int) { eligible[i], eligible[j] = eligible[j], eligible[i] })

	// Fresh topics first, then recently used ones, so repeats only happen when the pool is small.
	ordered := make([]eligibleTopic, 0, len(eligible))
	for _, t := range eligible {
		if !recent[t.id] {
			ordered = append(ordered, t)
		}
	}
	for _, t := range eligible {
		if recent[t.id] {
			ordered = append(ordered, t)
		}
	}

	slots := make([]domain.QuizSlot, 0, domain.QuizzesPerPack)
	for i := 0; i < domain.RegularQuizzes; i++ {
		slots = append(slots, a.slotFor(rng, i, ordered[i]))
	}

	// Bonus topic is disjoint from the regular ten when the pool allows.
	var bonus eligibleTopic
	if len(ordered) > domain.RegularQuizzes {
		bonus = ordered[domain.RegularQuizzes]
	} else {
		bonus = ordered[rng.Intn(len(ordered))]
	}
	slots = append(slots, a.slotFor(rng, domain.BonusQuizIndex, bonus))

	return domain.DailyPack{
		Date:        date,
		Slots:       slots,
		GeneratedAt: a.now().UTC(),
	}, nil
}

func (a *PackAssembler) slotFor(rng *rand.Rand, index int, topic eligibleTopic) domain.QuizSlot {
	questions := append([]domain.Question(nil), topic.questions...)
	rng.Shuffle(len(questions), func(i, j int) { questions[i], questions[j] = questions[j], questions[i] })
	ids := make([]string, 0, a.opts.QuestionsPerQuiz)
	for _, q := range questions[:a.opts.QuestionsPerQuiz] {
		ids = append(ids, q.ID)
	}
	return domain.QuizSlot{Index: index, TopicID: topic.id, QuestionIDs: ids}
}

func (a *PackAssembler) eligibleTopics(ctx context.Context) ([]eligibleTopic, error) {
	topics, err := a.content.ActiveTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("load topics: %w", err)
	}
	// Stable input order keeps the seeded shuffle reproducible regardless of storage order.
	sort.Slice(topics, func(i, j int) bool { return topics[i].ID < topics[j].ID })

	eligible := make([]eligibleTopic, 0, len(topics))
	for _, topic := range topics {
		questions, err := a.content.ActiveQuestions(ctx, topic.ID)
		if err != nil {
			return nil, fmt.Errorf("load questions for topic %s: %w", topic.ID, err)
		}
		if len(questions) < a.opts.QuestionsPerQuiz {
			continue
		}
		sort.Slice(questions, func(i, j int) bool { return questions[i].ID < questions[j].ID })
		eligible = append(eligible, eligibleTopic{id: topic.ID, questions: questions})
	}
	return eligible, nil
}

func (a *PackAssembler) recentTopics(ctx context.Context, date domain.PackDate) (map[string]bool, error) {
	recent := make(map[string]bool)
	if a.opts.RecentWindowDays == 0 {
		return recent, nil
	}
	packs, err := a.packs.RecentPacks(ctx, date.AddDays(-a.opts.RecentWindowDays), date)
	if err != nil {
		return nil, fmt.Errorf("load recent packs: %w", err)
	}
	for _, p := range packs {
		for _, id := range p.TopicIDs() {
			recent[id] = true
		}
	}
	return recent, nil
}
