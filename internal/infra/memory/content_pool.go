package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"trivia-engine/internal/app"
	"trivia-engine/internal/domain"
)

// StaticContentPool is a content pool backed by in-memory maps (useful for tests/demos).
type StaticContentPool struct {
	mu        sync.RWMutex
	topics    map[string]domain.Topic
	questions map[string]domain.Question
}

func NewStaticContentPool(topics []domain.Topic, questions []domain.Question) (*StaticContentPool, error) {
	p := &StaticContentPool{
		topics:    make(map[string]domain.Topic, len(topics)),
		questions: make(map[string]domain.Question, len(questions)),
	}
	for _, t := range topics {
		p.PutTopic(t)
	}
	for _, q := range questions {
		if err := p.PutQuestion(q); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// PutTopic creates or replaces a topic.
func (p *StaticContentPool) PutTopic(t domain.Topic) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics[t.ID] = t
}

// PutQuestion validates and stores a question; its topic must exist.
func (p *StaticContentPool) PutQuestion(q domain.Question) error {
	if err := q.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.topics[q.TopicID]; !ok {
		return fmt.Errorf("topic %s: %w", q.TopicID, domain.ErrNotFound)
	}
	p.questions[q.ID] = q
	return nil
}

func (p *StaticContentPool) ActiveTopics(_ context.Context) ([]domain.Topic, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.Topic, 0, len(p.topics))
	for _, t := range p.topics {
		if t.Active {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p *StaticContentPool) ActiveQuestions(_ context.Context, topicID string) ([]domain.Question, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.Question, 0)
	for _, q := range p.questions {
		if q.TopicID == topicID && q.Active {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p *StaticContentPool) Topic(_ context.Context, topicID string) (domain.Topic, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if t, ok := p.topics[topicID]; ok {
		return t, nil
	}
	return domain.Topic{}, fmt.Errorf("topic %s: %w", topicID, domain.ErrNotFound)
}

// Questions returns questions by id regardless of their active flag, so packs
// stay playable after an admin deactivates content.
func (p *StaticContentPool) Questions(_ context.Context, ids []string) ([]domain.Question, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := p.questions[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

// CachedContentPool caches content lookups with TTL to avoid repeated DB hits.
type CachedContentPool struct {
	loader app.ContentPool
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedEntry
}

type cachedEntry struct {
	value     interface{}
	expiresAt time.Time
}

func NewCachedContentPool(loader app.ContentPool, ttl time.Duration) *CachedContentPool {
	return &CachedContentPool{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedEntry),
	}
}

func (c *CachedContentPool) ActiveTopics(ctx context.Context) ([]domain.Topic, error) {
	v, err := c.get("topics", func() (interface{}, error) {
		return c.loader.ActiveTopics(ctx)
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.Topic(nil), v.([]domain.Topic)...), nil
}

func (c *CachedContentPool) ActiveQuestions(ctx context.Context, topicID string) ([]domain.Question, error) {
	v, err := c.get("active:"+topicID, func() (interface{}, error) {
		return c.loader.ActiveQuestions(ctx, topicID)
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.Question(nil), v.([]domain.Question)...), nil
}

func (c *CachedContentPool) Topic(ctx context.Context, topicID string) (domain.Topic, error) {
	v, err := c.get("topic:"+topicID, func() (interface{}, error) {
		return c.loader.Topic(ctx, topicID)
	})
	if err != nil {
		return domain.Topic{}, err
	}
	return v.(domain.Topic), nil
}

// Questions caches by the exact id set; pack slots ask for the same set on every attempt.
func (c *CachedContentPool) Questions(ctx context.Context, ids []string) ([]domain.Question, error) {
	v, err := c.get("questions:"+strings.Join(ids, ","), func() (interface{}, error) {
		return c.loader.Questions(ctx, ids)
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.Question(nil), v.([]domain.Question)...), nil
}

// Invalidate drops every cached entry, e.g. after content edits.
func (c *CachedContentPool) Invalidate() {
	c.mu.Lock()
	c.cache = make(map[string]cachedEntry)
	c.mu.Unlock()
}

func (c *CachedContentPool) get(key string, load func() (interface{}, error)) (interface{}, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.value, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.value, nil
		}
		c.mu.RUnlock()

		value, err := load()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[key] = cachedEntry{
			value:     value,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *CachedContentPool) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
