package app_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"trivia-engine/internal/app"
	"trivia-engine/internal/domain"
	"trivia-engine/internal/infra/memory"
)

func TestGeneratePackIsReproducible(t *testing.T) {
	ctx := context.Background()
	first := app.NewPackAssembler(memory.NewSampleContentPool(), memory.NewPackStore(), app.DefaultPackOptions())
	second := app.NewPackAssembler(memory.NewSampleContentPool(), memory.NewPackStore(), app.DefaultPackOptions())

	a, err := first.GeneratePack(ctx, testDate)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := second.GeneratePack(ctx, testDate)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !reflect.DeepEqual(a.Slots, b.Slots) {
		t.Fatalf("same date produced different packs:\n%+v\n%+v", a.Slots, b.Slots)
	}

	if len(a.Slots) != domain.QuizzesPerPack {
		t.Fatalf("expected %d slots, got %d", domain.QuizzesPerPack, len(a.Slots))
	}
	topics := make(map[string]bool)
	for i, slot := range a.Slots {
		if slot.Index != i {
			t.Fatalf("slot %d has index %d", i, slot.Index)
		}
		if len(slot.QuestionIDs) != 3 {
			t.Fatalf("slot %d: expected 3 questions, got %d", i, len(slot.QuestionIDs))
		}
		if topics[slot.TopicID] {
			t.Fatalf("topic %s used twice", slot.TopicID)
		}
		topics[slot.TopicID] = true
	}
}

func TestGeneratePackNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPackStore()
	assembler := app.NewPackAssembler(memory.NewSampleContentPool(), store, app.DefaultPackOptions())

	pack, err := assembler.GeneratePack(ctx, testDate)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := assembler.GeneratePack(ctx, testDate); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}

	ensured, err := assembler.EnsurePack(ctx, testDate)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if !reflect.DeepEqual(pack.Slots, ensured.Slots) {
		t.Fatalf("ensure returned a different pack")
	}
}

func TestGetPackDoesNotGenerate(t *testing.T) {
	assembler := app.NewPackAssembler(memory.NewSampleContentPool(), memory.NewPackStore(), app.DefaultPackOptions())
	if _, err := assembler.GetPack(context.Background(), testDate); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGeneratePackInsufficientContent(t *testing.T) {
	topics, questions := memory.SampleContent()
	topics = topics[:5]
	keep := make(map[string]bool)
	for _, tp := range topics {
		keep[tp.ID] = true
	}
	var filtered []domain.Question
	for _, q := range questions {
		if keep[q.TopicID] {
			filtered = append(filtered, q)
		}
	}
	pool, err := memory.NewStaticContentPool(topics, filtered)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}

	assembler := app.NewPackAssembler(pool, memory.NewPackStore(), app.DefaultPackOptions())
	if _, err := assembler.GeneratePack(context.Background(), testDate); !errors.Is(err, domain.ErrInsufficientContent) {
		t.Fatalf("expected insufficient content, got %v", err)
	}
}

func TestGeneratePackPrefersUnusedTopics(t *testing.T) {
	ctx := context.Background()
	assembler := app.NewPackAssembler(memory.NewSampleContentPool(), memory.NewPackStore(), app.DefaultPackOptions())

	day1, err := assembler.GeneratePack(ctx, testDate)
	if err != nil {
		t.Fatalf("generate day 1: %v", err)
	}
	day2, err := assembler.GeneratePack(ctx, testDate.AddDays(1))
	if err != nil {
		t.Fatalf("generate day 2: %v", err)
	}

	used := make(map[string]bool)
	for _, id := range day1.TopicIDs() {
		used[id] = true
	}
	next := make(map[string]bool)
	for _, id := range day2.TopicIDs() {
		next[id] = true
	}
	topics, _ := memory.SampleContent()
	for _, tp := range topics {
		if !used[tp.ID] && !next[tp.ID] {
			t.Fatalf("topic %s was unused on day 1 but skipped on day 2", tp.ID)
		}
	}
}

func TestGeneratePackSkipsThinTopics(t *testing.T) {
	ctx := context.Background()
	pool := memory.NewSampleContentPool()
	pool.PutTopic(domain.Topic{ID: "tiny", Name: domain.Localized{"en": "Tiny"}, Active: true})

	assembler := app.NewPackAssembler(pool, memory.NewPackStore(), app.DefaultPackOptions())
	for day := 0; day < 5; day++ {
		pack, err := assembler.GeneratePack(ctx, testDate.AddDays(day))
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		for _, id := range pack.TopicIDs() {
			if id == "tiny" {
				t.Fatalf("topic without questions was selected on %s", pack.Date)
			}
		}
	}
}

func TestConcurrentGeneratePackPersistsOnePack(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPackStore()
	assembler := app.NewPackAssembler(memory.NewSampleContentPool(), store, app.DefaultPackOptions())

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		exists  int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := assembler.GeneratePack(ctx, testDate)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, domain.ErrAlreadyExists):
				exists++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if created != 1 || exists != callers-1 {
		t.Fatalf("expected one pack and %d conflicts, got %d and %d", callers-1, created, exists)
	}
	if packs, _ := store.RecentPacks(ctx, testDate, testDate.AddDays(1)); len(packs) != 1 {
		t.Fatalf("expected one stored pack, got %d", len(packs))
	}
}

func TestConcurrentEnsurePackServesOnePack(t *testing.T) {
	ctx := context.Background()
	assembler := app.NewPackAssembler(memory.NewSampleContentPool(), memory.NewPackStore(), app.DefaultPackOptions())

	const callers = 8
	packs := make([]domain.DailyPack, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pack, err := assembler.EnsurePack(ctx, testDate)
			if err != nil {
				t.Errorf("ensure: %v", err)
				return
			}
			packs[i] = pack
		}(i)
	}
	wg.Wait()
	for i := 1; i < callers; i++ {
		if !reflect.DeepEqual(packs[0].Slots, packs[i].Slots) || !packs[0].GeneratedAt.Equal(packs[i].GeneratedAt) {
			t.Fatalf("caller %d received a different pack", i)
		}
	}
}

func TestOpenPackGeneratesOnlyToday(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPackStore()
	assembler := app.NewPackAssembler(memory.NewSampleContentPool(), store, app.DefaultPackOptions())
	today := assembler.Today()

	if _, err := assembler.OpenPack(ctx, today.AddDays(-2)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected past pack to stay missing, got %v", err)
	}
	if _, err := assembler.OpenPack(ctx, today); err != nil {
		t.Fatalf("open today: %v", err)
	}
	if _, err := store.GetPack(ctx, today); err != nil {
		t.Fatalf("today's pack must be stored: %v", err)
	}
}
