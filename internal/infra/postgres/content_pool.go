package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-engine/internal/domain"
)

// ContentPool loads topics and questions (JSONB localized columns) from Postgres.
type ContentPool struct {
	pool *pgxpool.Pool
}

func NewContentPool(pool *pgxpool.Pool) *ContentPool {
	return &ContentPool{pool: pool}
}

func (p *ContentPool) ActiveTopics(ctx context.Context) ([]domain.Topic, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, name, active FROM topics WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load topics: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Topic, 0)
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *ContentPool) ActiveQuestions(ctx context.Context, topicID string) ([]domain.Question, error) {
	return p.queryQuestions(ctx, questionColumns+` FROM questions WHERE topic_id=$1 AND active ORDER BY id`, topicID)
}

func (p *ContentPool) Topic(ctx context.Context, topicID string) (domain.Topic, error) {
	row := p.pool.QueryRow(ctx, `SELECT id, name, active FROM topics WHERE id=$1`, topicID)
	t, err := scanTopic(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Topic{}, fmt.Errorf("topic %s: %w", topicID, domain.ErrNotFound)
	}
	return t, err
}

// Questions ignores the active flag so stored packs keep resolving.
func (p *ContentPool) Questions(ctx context.Context, ids []string) ([]domain.Question, error) {
	found, err := p.queryQuestions(ctx, questionColumns+` FROM questions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Question, len(found))
	for _, q := range found {
		byID[q.ID] = q
	}
	out := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

const questionColumns = `SELECT id, topic_id, text, options, correct_key, image_url, active`

func (p *ContentPool) queryQuestions(ctx context.Context, sql string, args ...interface{}) ([]domain.Question, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Question, 0)
	for rows.Next() {
		var (
			q             domain.Question
			text, options []byte
		)
		if err := rows.Scan(&q.ID, &q.TopicID, &text, &options, &q.CorrectKey, &q.ImageURL, &q.Active); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(text, &q.Text); err != nil {
			return nil, fmt.Errorf("unmarshal question %s text: %w", q.ID, err)
		}
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal question %s options: %w", q.ID, err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func scanTopic(row pgx.Row) (domain.Topic, error) {
	var (
		t    domain.Topic
		name []byte
	)
	if err := row.Scan(&t.ID, &name, &t.Active); err != nil {
		return domain.Topic{}, err
	}
	if err := json.Unmarshal(name, &t.Name); err != nil {
		return domain.Topic{}, fmt.Errorf("unmarshal topic %s: %w", t.ID, err)
	}
	return t, nil
}
