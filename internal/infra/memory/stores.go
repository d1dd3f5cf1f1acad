package memory

import (
	"context"
	"fmt"
	"sync"

	"trivia-engine/internal/domain"
)

// PackStore keeps daily packs in memory.
type PackStore struct {
	mu    sync.RWMutex
	packs map[domain.PackDate]domain.DailyPack
}

func NewPackStore() *PackStore {
	return &PackStore{packs: make(map[domain.PackDate]domain.DailyPack)}
}

func (s *PackStore) GetPack(_ context.Context, date domain.PackDate) (domain.DailyPack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.packs[date]; ok {
		return p, nil
	}
	return domain.DailyPack{}, fmt.Errorf("pack %s: %w", date, domain.ErrNotFound)
}

func (s *PackStore) CreatePack(_ context.Context, pack domain.DailyPack) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.packs[pack.Date]; ok {
		return fmt.Errorf("pack %s: %w", pack.Date, domain.ErrAlreadyExists)
	}
	s.packs[pack.Date] = pack
	return nil
}

func (s *PackStore) RecentPacks(_ context.Context, from, to domain.PackDate) ([]domain.DailyPack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.DailyPack, 0)
	for date, p := range s.packs {
		if date >= from && date < to {
			out = append(out, p)
		}
	}
	return out, nil
}

// BadgeStore keeps earned badges in memory.
type BadgeStore struct {
	mu     sync.RWMutex
	earned map[string][]domain.EarnedBadge
}

func NewBadgeStore() *BadgeStore {
	return &BadgeStore{earned: make(map[string][]domain.EarnedBadge)}
}

func (s *BadgeStore) Earned(_ context.Context, userID string) ([]domain.EarnedBadge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.EarnedBadge(nil), s.earned[userID]...), nil
}

func (s *BadgeStore) Award(_ context.Context, badge domain.EarnedBadge) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.earned[badge.UserID] {
		if b.BadgeID == badge.BadgeID {
			return false, nil
		}
	}
	s.earned[badge.UserID] = append(s.earned[badge.UserID], badge)
	return true, nil
}

// Directory is a static user and group directory.
type Directory struct {
	mu     sync.RWMutex
	users  map[string]domain.User
	groups map[string][]string
}

func NewDirectory() *Directory {
	return &Directory{
		users:  make(map[string]domain.User),
		groups: make(map[string][]string),
	}
}

func (d *Directory) PutUser(u domain.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

func (d *Directory) PutGroup(groupID string, members ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.groups[groupID] = append([]string(nil), members...)
}

func (d *Directory) Lookup(_ context.Context, userID string) (domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if u, ok := d.users[userID]; ok {
		return u, nil
	}
	return domain.User{}, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
}

func (d *Directory) Members(_ context.Context, groupID string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	members, ok := d.groups[groupID]
	if !ok {
		return nil, fmt.Errorf("group %s: %w", groupID, domain.ErrNotFound)
	}
	return append([]string(nil), members...), nil
}

// UpsertUser records the identity seen on an authenticated request.
func (d *Directory) UpsertUser(_ context.Context, u domain.User) error {
	d.PutUser(u)
	return nil
}
