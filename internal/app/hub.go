package app

import (
	"strconv"
	"sync"
	"time"

	"trivia-engine/internal/domain"
)

// BoardID names a live leaderboard: "2024-01-15/3" or "2024-01-15/daily".
type BoardID string

func QuizBoard(date domain.PackDate, quizIndex int) BoardID {
	return BoardID(string(date) + "/" + strconv.Itoa(quizIndex))
}

func DailyBoard(date domain.PackDate) BoardID {
	return BoardID(string(date) + "/daily")
}

// Hub fans out leaderboard snapshots to subscribers of each board.
type Hub struct {
	mu          sync.Mutex
	subscribers map[BoardID]map[chan domain.Leaderboard]struct{}
	// published is the UpdatedAt of the newest snapshot sent per board.
	published map[BoardID]time.Time
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[BoardID]map[chan domain.Leaderboard]struct{}),
		published:   make(map[BoardID]time.Time),
	}
}

// Subscribe registers for updates of board and sends initial first, if non-nil.
// The caller must invoke the returned cancel function to avoid leaks.
func (h *Hub) Subscribe(board BoardID, initial *domain.Leaderboard) (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)
	if initial != nil {
		ch <- *initial
	}

	h.mu.Lock()
	subs, ok := h.subscribers[board]
	if !ok {
		subs = make(map[chan domain.Leaderboard]struct{})
		h.subscribers[board] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs, ok := h.subscribers[board]
		if !ok {
			return
		}
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(h.subscribers, board)
			delete(h.published, board)
		}
	}
	return ch, cancel
}

// Publish delivers lb to every subscriber of board without blocking. A snapshot
// older than one already published for the board is dropped, so concurrent
// writers finishing out of order never leave subscribers on a stale board.
func (h *Hub) Publish(board BoardID, lb domain.Leaderboard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subscribers[board]
	if len(subs) == 0 {
		return
	}
	if lb.UpdatedAt.Before(h.published[board]) {
		return
	}
	h.published[board] = lb.UpdatedAt
	for ch := range subs {
		select {
		case ch <- lb:
		default:
			// Slow subscriber: drop its oldest snapshot so it always sees the latest board.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}

// Subscribers counts the live subscriptions of board.
func (h *Hub) Subscribers(board BoardID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[board])
}
