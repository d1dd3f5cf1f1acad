package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"trivia-engine/internal/app"
	"trivia-engine/internal/domain"
)

// ContentCache caches quiz content in Redis and falls back to a loader on cache miss.
// Listings are stored as JSON strings:
//
//	SET content:topics            [topic...]
//	SET content:topic:{id}        topic
//	SET content:active:{topicID}  [question...]
//
// Questions are stored in one hash: HSET content:questions {questionID} question.
type ContentCache struct {
	client *redis.Client
	loader app.ContentPool
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

const questionsKey = "content:questions"

func NewContentCache(client *redis.Client, loader app.ContentPool, ttl time.Duration) *ContentCache {
	return &ContentCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *ContentCache) ActiveTopics(ctx context.Context) ([]domain.Topic, error) {
	var topics []domain.Topic
	err := c.cached(ctx, "content:topics", &topics, func() (interface{}, error) {
		return c.loader.ActiveTopics(ctx)
	})
	return topics, err
}

func (c *ContentCache) ActiveQuestions(ctx context.Context, topicID string) ([]domain.Question, error) {
	var questions []domain.Question
	err := c.cached(ctx, "content:active:"+topicID, &questions, func() (interface{}, error) {
		return c.loader.ActiveQuestions(ctx, topicID)
	})
	return questions, err
}

func (c *ContentCache) Topic(ctx context.Context, topicID string) (domain.Topic, error) {
	var topic domain.Topic
	err := c.cached(ctx, "content:topic:"+topicID, &topic, func() (interface{}, error) {
		return c.loader.Topic(ctx, topicID)
	})
	return topic, err
}

// Questions serves what the hash already holds and loads the rest in one call.
func (c *ContentCache) Questions(ctx context.Context, ids []string) ([]domain.Question, error) {
	if len(ids) == 0 {
		return []domain.Question{}, nil
	}
	found := make(map[string]domain.Question, len(ids))
	missing := make([]string, 0)
	values, err := c.client.HMGet(ctx, questionsKey, ids...).Result()
	if err != nil {
		missing = append(missing, ids...)
	} else {
		for i, v := range values {
			raw, ok := v.(string)
			var q domain.Question
			if !ok || json.Unmarshal([]byte(raw), &q) != nil {
				missing = append(missing, ids[i])
				continue
			}
			found[q.ID] = q
		}
	}

	if len(missing) > 0 {
		result, err, _ := c.sf.Do("questions:"+strings.Join(missing, ","), func() (interface{}, error) {
			loaded, err := c.loader.Questions(ctx, missing)
			if err != nil {
				return nil, err
			}
			pipe := c.client.Pipeline()
			for _, q := range loaded {
				data, err := json.Marshal(q)
				if err != nil {
					return nil, err
				}
				pipe.HSet(ctx, questionsKey, q.ID, data)
			}
			if ttl := c.ttlWithJitter(); ttl > 0 {
				pipe.Expire(ctx, questionsKey, ttl)
			}
			_, _ = pipe.Exec(ctx)
			return loaded, nil
		})
		if err != nil {
			return nil, err
		}
		for _, q := range result.([]domain.Question) {
			found[q.ID] = q
		}
	}

	out := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := found[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

// Invalidate removes every cached content key.
func (c *ContentCache) Invalidate(ctx context.Context) error {
	keys, err := c.client.Keys(ctx, "content:*").Result()
	if err != nil || len(keys) == 0 {
		return err
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *ContentCache) cached(ctx context.Context, key string, dest interface{}, load func() (interface{}, error)) error {
	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		if json.Unmarshal(raw, dest) == nil {
			return nil
		}
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
			return raw, nil
		}
		value, err := load()
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		return raw, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(result.([]byte), dest)
}

func (c *ContentCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
