package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"trivia-engine/internal/domain"
)

// PackStore is a Redis implementation of app.PackRepository. Every replica
// sharing the server sees the same pack; SETNX makes creation exclusive.
//   - pack:{date}  JSON daily pack
type PackStore struct {
	client *redis.Client
}

func NewPackStore(client *redis.Client) *PackStore {
	return &PackStore{client: client}
}

func (s *PackStore) GetPack(ctx context.Context, date domain.PackDate) (domain.DailyPack, error) {
	raw, err := s.client.Get(ctx, packKey(date)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.DailyPack{}, fmt.Errorf("pack %s: %w", date, domain.ErrNotFound)
	}
	if err != nil {
		return domain.DailyPack{}, err
	}
	return decodePack(date, raw)
}

func (s *PackStore) CreatePack(ctx context.Context, pack domain.DailyPack) error {
	data, err := json.Marshal(pack)
	if err != nil {
		return err
	}
	created, err := s.client.SetNX(ctx, packKey(pack.Date), data, 0).Result()
	if err != nil {
		return err
	}
	if !created {
		return fmt.Errorf("pack %s: %w", pack.Date, domain.ErrAlreadyExists)
	}
	return nil
}

// RecentPacks reads the window day by day; rotation windows span a few days.
func (s *PackStore) RecentPacks(ctx context.Context, from, to domain.PackDate) ([]domain.DailyPack, error) {
	var keys []string
	for d := from; d.Before(to); d = d.AddDays(1) {
		keys = append(keys, packKey(d))
	}
	out := make([]domain.DailyPack, 0, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		pack, err := decodePack(domain.PackDate(keys[i][len("pack:"):]), []byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, pack)
	}
	return out, nil
}

func decodePack(date domain.PackDate, raw []byte) (domain.DailyPack, error) {
	var pack domain.DailyPack
	if err := json.Unmarshal(raw, &pack); err != nil {
		return domain.DailyPack{}, fmt.Errorf("decode pack %s: %w", date, err)
	}
	return pack, nil
}

func packKey(date domain.PackDate) string {
	return "pack:" + date.String()
}

// BadgeStore is a Redis implementation of app.BadgeRepository.
//   - badges:{user}  hash of badge id -> JSON earned badge
//
// HSETNX keeps Award at most once per (user, badge) across replicas.
type BadgeStore struct {
	client *redis.Client
}

func NewBadgeStore(client *redis.Client) *BadgeStore {
	return &BadgeStore{client: client}
}

func (s *BadgeStore) Earned(ctx context.Context, userID string) ([]domain.EarnedBadge, error) {
	raws, err := s.client.HGetAll(ctx, badgesKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.EarnedBadge, 0, len(raws))
	for id, raw := range raws {
		var b domain.EarnedBadge
		if err := json.Unmarshal([]byte(raw), &b); err != nil {
			return nil, fmt.Errorf("decode badge %s of %s: %w", id, userID, err)
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EarnedAt.Equal(out[j].EarnedAt) {
			return out[i].EarnedAt.Before(out[j].EarnedAt)
		}
		return out[i].BadgeID < out[j].BadgeID
	})
	return out, nil
}

func (s *BadgeStore) Award(ctx context.Context, badge domain.EarnedBadge) (bool, error) {
	data, err := json.Marshal(badge)
	if err != nil {
		return false, err
	}
	return s.client.HSetNX(ctx, badgesKey(badge.UserID), badge.BadgeID, data).Result()
}

func badgesKey(userID string) string {
	return "badges:" + userID
}

// Directory keeps users and friends groups in Redis.
//   - user:{id}    JSON user
//   - group:{id}   set of member user ids
type Directory struct {
	client *redis.Client
}

func NewDirectory(client *redis.Client) *Directory {
	return &Directory{client: client}
}

func (d *Directory) Lookup(ctx context.Context, userID string) (domain.User, error) {
	raw, err := d.client.Get(ctx, userRecordKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.User{}, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.User{}, err
	}
	var u domain.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return domain.User{}, fmt.Errorf("decode user %s: %w", userID, err)
	}
	return u, nil
}

// Members fails with domain.ErrNotFound for unknown groups; Redis drops empty sets,
// so a group always has at least one member.
func (d *Directory) Members(ctx context.Context, groupID string) ([]string, error) {
	members, err := d.client.SMembers(ctx, groupKey(groupID)).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("group %s: %w", groupID, domain.ErrNotFound)
	}
	sort.Strings(members)
	return members, nil
}

// UpsertUser records the identity seen on an authenticated request.
func (d *Directory) UpsertUser(ctx context.Context, u domain.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return d.client.Set(ctx, userRecordKey(u.ID), data, 0).Err()
}

// SeedGroup stores users and makes them the members of groupID.
func (d *Directory) SeedGroup(ctx context.Context, groupID string, users []domain.User) error {
	_, err := d.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		members := make([]interface{}, 0, len(users))
		for _, u := range users {
			data, err := json.Marshal(u)
			if err != nil {
				return err
			}
			pipe.Set(ctx, userRecordKey(u.ID), data, 0)
			members = append(members, u.ID)
		}
		if len(members) > 0 {
			pipe.SAdd(ctx, groupKey(groupID), members...)
		}
		return nil
	})
	return err
}

func userRecordKey(userID string) string {
	return "user:" + userID
}

func groupKey(groupID string) string {
	return "group:" + groupID
}
