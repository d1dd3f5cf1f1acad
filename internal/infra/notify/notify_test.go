package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"trivia-engine/internal/app"
	"trivia-engine/internal/domain"
)

type recordingPublisher struct {
	queue string
	body  []byte
	err   error
}

func (p *recordingPublisher) Publish(_ context.Context, queue string, body []byte) error {
	p.queue, p.body = queue, body
	return p.err
}

func TestQueueNotifierPublishesEvent(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewQueueNotifier(pub, "badge_awarded")
	idx := 3
	earned := domain.EarnedBadge{UserID: "u1", BadgeID: "perfect_score", EarnedAt: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC), QuizIndex: &idx}

	if err := n.BadgeAwarded(context.Background(), earned, app.Badge{ID: "perfect_score", Name: domain.Localized{"en": "Perfect Score"}, Icon: "Trophy"}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if pub.queue != "badge_awarded" {
		t.Fatalf("unexpected queue %q", pub.queue)
	}
	var ev BadgeAwardedEvent
	if err := json.Unmarshal(pub.body, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Type != "badge_awarded" || ev.UserID != "u1" || ev.BadgeName != "Perfect Score" || ev.QuizIndex == nil || *ev.QuizIndex != 3 {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestQueueNotifierWrapsPublishError(t *testing.T) {
	boom := errors.New("channel closed")
	n := NewQueueNotifier(&recordingPublisher{err: boom}, "q")
	err := n.BadgeAwarded(context.Background(), domain.EarnedBadge{UserID: "u1", BadgeID: "first_quiz"}, app.Badge{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
