package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"trivia-engine/internal/domain"
)

type topicModel struct {
	bun.BaseModel `bun:"table:topics"`

	ID     string           `bun:"id,pk"`
	Name   domain.Localized `bun:"name,type:jsonb"`
	Active bool             `bun:"active"`
}

type questionModel struct {
	bun.BaseModel `bun:"table:questions"`

	ID         string           `bun:"id,pk"`
	TopicID    string           `bun:"topic_id"`
	Text       domain.Localized `bun:"text,type:jsonb"`
	Options    []domain.Option  `bun:"options,type:jsonb"`
	CorrectKey string           `bun:"correct_key"`
	ImageURL   string           `bun:"image_url"`
	Active     bool             `bun:"active"`
}

// SeedContent upserts topics and questions. Existing rows are overwritten so
// the command can be re-run after editing the catalog.
func SeedContent(ctx context.Context, db *bun.DB, topics []domain.Topic, questions []domain.Question) error {
	if len(topics) == 0 {
		return nil
	}
	topicRows := make([]topicModel, 0, len(topics))
	for _, t := range topics {
		topicRows = append(topicRows, topicModel{ID: t.ID, Name: t.Name, Active: t.Active})
	}
	questionRows := make([]questionModel, 0, len(questions))
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return err
		}
		questionRows = append(questionRows, questionModel{
			ID:         q.ID,
			TopicID:    q.TopicID,
			Text:       q.Text,
			Options:    q.Options,
			CorrectKey: q.CorrectKey,
			ImageURL:   q.ImageURL,
			Active:     q.Active,
		})
	}

	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&topicRows).
			On("CONFLICT (id) DO UPDATE").
			Set("name = EXCLUDED.name").
			Set("active = EXCLUDED.active").
			Exec(ctx); err != nil {
			return fmt.Errorf("seed topics: %w", err)
		}
		if len(questionRows) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&questionRows).
			On("CONFLICT (id) DO UPDATE").
			Set("topic_id = EXCLUDED.topic_id").
			Set("text = EXCLUDED.text").
			Set("options = EXCLUDED.options").
			Set("correct_key = EXCLUDED.correct_key").
			Set("image_url = EXCLUDED.image_url").
			Set("active = EXCLUDED.active").
			Exec(ctx); err != nil {
			return fmt.Errorf("seed questions: %w", err)
		}
		return nil
	})
}

type userModel struct {
	bun.BaseModel `bun:"table:users"`

	ID       string `bun:"id,pk"`
	Nickname string `bun:"nickname"`
	Role     string `bun:"role"`
}

type groupModel struct {
	bun.BaseModel `bun:"table:friend_groups"`

	ID   string `bun:"id,pk"`
	Name string `bun:"name"`
}

type groupMemberModel struct {
	bun.BaseModel `bun:"table:friend_group_members"`

	GroupID string `bun:"group_id,pk"`
	UserID  string `bun:"user_id,pk"`
}

// SeedGroup stores users and a friends group containing all of them.
func SeedGroup(ctx context.Context, db *bun.DB, groupID string, users []domain.User) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&groupModel{ID: groupID, Name: groupID}).
			On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
			return fmt.Errorf("seed group: %w", err)
		}
		for _, u := range users {
			if _, err := tx.NewInsert().Model(&userModel{ID: u.ID, Nickname: u.Nickname, Role: u.Role}).
				On("CONFLICT (id) DO UPDATE").Set("nickname = EXCLUDED.nickname").Exec(ctx); err != nil {
				return fmt.Errorf("seed user %s: %w", u.ID, err)
			}
			if _, err := tx.NewInsert().Model(&groupMemberModel{GroupID: groupID, UserID: u.ID}).
				On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
				return fmt.Errorf("seed member %s: %w", u.ID, err)
			}
		}
		return nil
	})
}
