package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-engine/internal/domain"
)

// BadgeStore records earned badges; the (user, badge) key enforces award-once.
type BadgeStore struct {
	pool *pgxpool.Pool
}

func NewBadgeStore(pool *pgxpool.Pool) *BadgeStore {
	return &BadgeStore{pool: pool}
}

func (s *BadgeStore) Earned(ctx context.Context, userID string) ([]domain.EarnedBadge, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, badge_id, earned_at, quiz_index FROM earned_badges WHERE user_id=$1 ORDER BY earned_at, badge_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("load badges: %w", err)
	}
	defer rows.Close()

	out := make([]domain.EarnedBadge, 0)
	for rows.Next() {
		var (
			b         domain.EarnedBadge
			quizIndex *int16
		)
		if err := rows.Scan(&b.UserID, &b.BadgeID, &b.EarnedAt, &quizIndex); err != nil {
			return nil, fmt.Errorf("scan badge: %w", err)
		}
		if quizIndex != nil {
			idx := int(*quizIndex)
			b.QuizIndex = &idx
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *BadgeStore) Award(ctx context.Context, badge domain.EarnedBadge) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO earned_badges (user_id, badge_id, earned_at, quiz_index) VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, badge_id) DO NOTHING`,
		badge.UserID, badge.BadgeID, badge.EarnedAt, badge.QuizIndex)
	if err != nil {
		return false, fmt.Errorf("award badge: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Directory resolves users and friend groups.
type Directory struct {
	pool *pgxpool.Pool
}

func NewDirectory(pool *pgxpool.Pool) *Directory {
	return &Directory{pool: pool}
}

func (d *Directory) Lookup(ctx context.Context, userID string) (domain.User, error) {
	var u domain.User
	err := d.pool.QueryRow(ctx, `SELECT id, nickname, role FROM users WHERE id=$1`, userID).Scan(&u.ID, &u.Nickname, &u.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	return u, err
}

// UpsertUser stores the identity seen on an authenticated request.
func (d *Directory) UpsertUser(ctx context.Context, u domain.User) error {
	_, err := d.pool.Exec(ctx, `INSERT INTO users (id, nickname, role) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET nickname=EXCLUDED.nickname, role=EXCLUDED.role`, u.ID, u.Nickname, u.Role)
	return err
}

func (d *Directory) Members(ctx context.Context, groupID string) ([]string, error) {
	var exists bool
	if err := d.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM friend_groups WHERE id=$1)`, groupID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("group %s: %w", groupID, domain.ErrNotFound)
	}
	rows, err := d.pool.Query(ctx, `SELECT user_id FROM friend_group_members WHERE group_id=$1 ORDER BY user_id`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	members := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		members = append(members, id)
	}
	return members, rows.Err()
}
