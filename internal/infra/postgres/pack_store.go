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

// PackStore persists daily packs; the date primary key makes creation exclusive.
type PackStore struct {
	pool *pgxpool.Pool
}

func NewPackStore(pool *pgxpool.Pool) *PackStore {
	return &PackStore{pool: pool}
}

func (s *PackStore) GetPack(ctx context.Context, date domain.PackDate) (domain.DailyPack, error) {
	var (
		slots       []byte
		generatedAt time.Time
	)
	err := s.pool.QueryRow(ctx, `SELECT slots, generated_at FROM daily_packs WHERE pack_date=$1`, date.Time()).
		Scan(&slots, &generatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DailyPack{}, fmt.Errorf("pack %s: %w", date, domain.ErrNotFound)
	}
	if err != nil {
		return domain.DailyPack{}, fmt.Errorf("load pack: %w", err)
	}
	pack := domain.DailyPack{Date: date, GeneratedAt: generatedAt}
	if err := json.Unmarshal(slots, &pack.Slots); err != nil {
		return domain.DailyPack{}, fmt.Errorf("unmarshal pack %s: %w", date, err)
	}
	return pack, nil
}

func (s *PackStore) CreatePack(ctx context.Context, pack domain.DailyPack) error {
	slots, err := json.Marshal(pack.Slots)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO daily_packs (pack_date, slots, generated_at) VALUES ($1, $2, $3) ON CONFLICT (pack_date) DO NOTHING`,
		pack.Date.Time(), slots, pack.GeneratedAt)
	if err != nil {
		return fmt.Errorf("insert pack: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pack %s: %w", pack.Date, domain.ErrAlreadyExists)
	}
	return nil
}

func (s *PackStore) RecentPacks(ctx context.Context, from, to domain.PackDate) ([]domain.DailyPack, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT pack_date, slots, generated_at FROM daily_packs WHERE pack_date >= $1 AND pack_date < $2`,
		from.Time(), to.Time())
	if err != nil {
		return nil, fmt.Errorf("load recent packs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.DailyPack, 0)
	for rows.Next() {
		var (
			day   time.Time
			slots []byte
			pack  domain.DailyPack
		)
		if err := rows.Scan(&day, &slots, &pack.GeneratedAt); err != nil {
			return nil, fmt.Errorf("scan pack: %w", err)
		}
		pack.Date = domain.DateOf(day, time.UTC)
		if err := json.Unmarshal(slots, &pack.Slots); err != nil {
			return nil, fmt.Errorf("unmarshal pack %s: %w", pack.Date, err)
		}
		out = append(out, pack)
	}
	return out, rows.Err()
}
