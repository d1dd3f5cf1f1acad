package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-engine/internal/domain"
)

// ProgressStore keeps quiz progress and the attempt log in Postgres.
// SwapProgress writes both rows in one transaction, guarded by a conditional
// update on the previous attempt count and lock flag.
type ProgressStore struct {
	pool *pgxpool.Pool
}

func NewProgressStore(pool *pgxpool.Pool) *ProgressStore {
	return &ProgressStore{pool: pool}
}

const progressColumns = `SELECT user_id, pack_date, quiz_index, attempt_count, locked, revealed_answers,
	best_percentage, best_time_ms, updated_at FROM quiz_progress`

func (s *ProgressStore) GetProgress(ctx context.Context, key domain.QuizKey) (domain.QuizProgress, error) {
	row := s.pool.QueryRow(ctx, progressColumns+` WHERE user_id=$1 AND pack_date=$2 AND quiz_index=$3`,
		key.UserID, key.Date.Time(), key.QuizIndex)
	p, err := scanProgress(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizProgress{QuizKey: key}, nil
	}
	return p, err
}

func (s *ProgressStore) SwapProgress(ctx context.Context, prev, next domain.QuizProgress, attempt *domain.Attempt) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var bestPct *float64
	var bestTime *int64
	if next.Best != nil {
		bestPct, bestTime = &next.Best.Percentage, &next.Best.TimeMs
	}
	args := []interface{}{
		next.UserID, next.Date.Time(), next.QuizIndex, next.AttemptCount, next.Locked, next.RevealedAnswers,
		bestPct, bestTime, next.UpdatedAt, prev.AttemptCount, prev.Locked,
	}

	// A zero prev also matches a missing row.
	query := `UPDATE quiz_progress SET attempt_count=$4, locked=$5, revealed_answers=$6,
		best_percentage=$7, best_time_ms=$8, updated_at=$9
		WHERE user_id=$1 AND pack_date=$2 AND quiz_index=$3 AND attempt_count=$10 AND locked=$11`
	if prev.AttemptCount == 0 && !prev.Locked {
		query = `INSERT INTO quiz_progress (user_id, pack_date, quiz_index, attempt_count, locked, revealed_answers,
			best_percentage, best_time_ms, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, pack_date, quiz_index) DO UPDATE SET
			attempt_count=EXCLUDED.attempt_count, locked=EXCLUDED.locked, revealed_answers=EXCLUDED.revealed_answers,
			best_percentage=EXCLUDED.best_percentage, best_time_ms=EXCLUDED.best_time_ms, updated_at=EXCLUDED.updated_at
		WHERE quiz_progress.attempt_count=$10 AND quiz_progress.locked=$11`
	}
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("swap progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("progress %s/%d for %s: %w", next.Date, next.QuizIndex, next.UserID, domain.ErrConcurrencyConflict)
	}

	if attempt != nil {
		answers, err := json.Marshal(attempt.Answers)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO attempts (id, user_id, pack_date, quiz_index, attempt_number, answers,
			time_ms, correct_count, total, percentage, finished_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			attempt.ID, attempt.UserID, attempt.Date.Time(), attempt.QuizIndex, attempt.AttemptNumber, answers,
			attempt.TimeMs, attempt.Score.CorrectCount, attempt.Score.Total, attempt.Score.Percentage, attempt.FinishedAt)
		if err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *ProgressStore) ListUserDay(ctx context.Context, userID string, date domain.PackDate) ([]domain.QuizProgress, error) {
	return s.listProgress(ctx, progressColumns+` WHERE user_id=$1 AND pack_date=$2 ORDER BY quiz_index`, userID, date.Time())
}

func (s *ProgressStore) ListUser(ctx context.Context, userID string) ([]domain.QuizProgress, error) {
	return s.listProgress(ctx, progressColumns+` WHERE user_id=$1 ORDER BY pack_date, quiz_index`, userID)
}

func (s *ProgressStore) ListDay(ctx context.Context, date domain.PackDate) ([]domain.QuizProgress, error) {
	return s.listProgress(ctx, progressColumns+` WHERE pack_date=$1 ORDER BY user_id, quiz_index`, date.Time())
}

const attemptColumns = `SELECT id, user_id, pack_date, quiz_index, attempt_number, answers, time_ms,
	correct_count, total, percentage, finished_at FROM attempts`

func (s *ProgressStore) ListAttempts(ctx context.Context, userID string) ([]domain.Attempt, error) {
	rows, err := s.pool.Query(ctx, attemptColumns+` WHERE user_id=$1 ORDER BY finished_at, attempt_number`, userID)
	if err != nil {
		return nil, fmt.Errorf("load attempts: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Attempt, 0)
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *ProgressStore) LatestAttempt(ctx context.Context, key domain.QuizKey) (domain.Attempt, error) {
	row := s.pool.QueryRow(ctx, attemptColumns+` WHERE user_id=$1 AND pack_date=$2 AND quiz_index=$3
		ORDER BY attempt_number DESC LIMIT 1`, key.UserID, key.Date.Time(), key.QuizIndex)
	a, err := scanAttempt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Attempt{}, fmt.Errorf("attempt for %s/%d: %w", key.Date, key.QuizIndex, domain.ErrNotFound)
	}
	return a, err
}

func (s *ProgressStore) listProgress(ctx context.Context, sql string, args ...interface{}) ([]domain.QuizProgress, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	defer rows.Close()

	out := make([]domain.QuizProgress, 0)
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProgress(row pgx.Row) (domain.QuizProgress, error) {
	var (
		p        domain.QuizProgress
		day      time.Time
		bestPct  *float64
		bestTime *int64
	)
	if err := row.Scan(&p.UserID, &day, &p.QuizIndex, &p.AttemptCount, &p.Locked, &p.RevealedAnswers,
		&bestPct, &bestTime, &p.UpdatedAt); err != nil {
		return domain.QuizProgress{}, err
	}
	p.Date = domain.DateOf(day, time.UTC)
	if bestPct != nil && bestTime != nil {
		p.Best = &domain.BestScore{Percentage: *bestPct, TimeMs: *bestTime}
	}
	return p, nil
}

func scanAttempt(row pgx.Row) (domain.Attempt, error) {
	var (
		a       domain.Attempt
		day     time.Time
		answers []byte
	)
	if err := row.Scan(&a.ID, &a.UserID, &day, &a.QuizIndex, &a.AttemptNumber, &answers, &a.TimeMs,
		&a.Score.CorrectCount, &a.Score.Total, &a.Score.Percentage, &a.FinishedAt); err != nil {
		return domain.Attempt{}, err
	}
	a.Date = domain.DateOf(day, time.UTC)
	if err := json.Unmarshal(answers, &a.Answers); err != nil {
		return domain.Attempt{}, fmt.Errorf("unmarshal attempt %s: %w", a.ID, err)
	}
	return a, nil
}
