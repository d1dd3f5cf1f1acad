package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"trivia-engine/internal/app"
	"trivia-engine/internal/domain"
	"trivia-engine/internal/infra/memory"
)

var testNow = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

const testDate domain.PackDate = "2024-01-15"

type testServer struct {
	router  *gin.Engine
	engine  *app.Engine
	packs   *app.PackAssembler
	content *memory.StaticContentPool
	dir     *memory.Directory
}

func newTestServer(t *testing.T, secret string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	content := memory.NewSampleContentPool()
	progress := memory.NewProgressStore()
	dir := memory.NewDirectory()
	badgeStore := memory.NewBadgeStore()
	packs := app.NewPackAssembler(content, memory.NewPackStore(), app.DefaultPackOptions())
	leaderboard := app.NewLeaderboardEngine(progress, dir, dir)
	badges := app.NewBadgeEvaluator(app.DefaultBadges(), progress, badgeStore, nil, time.UTC)
	clock := func() time.Time { return testNow }
	engine := app.NewEngineWithClock(packs, content, progress, leaderboard, badges, clock)
	player := app.NewPlayerService(packs, content, progress, badgeStore, app.DefaultBadges(), dir)

	h := NewHandler(engine, player, leaderboard, time.UTC)
	h.now = clock
	ws := NewWSHandler(leaderboard, time.UTC)
	ws.now = clock

	return &testServer{
		router:  NewRouter(h, ws, secret, dir),
		engine:  engine,
		packs:   packs,
		content: content,
		dir:     dir,
	}
}

// correctAnswers returns the right key for every question of quizIndex.
func (s *testServer) correctAnswers(t *testing.T, quizIndex int) map[string]string {
	t.Helper()
	pack, err := s.packs.EnsurePack(context.Background(), testDate)
	if err != nil {
		t.Fatalf("ensure pack: %v", err)
	}
	slot, err := pack.Slot(quizIndex)
	if err != nil {
		t.Fatalf("slot: %v", err)
	}
	questions, err := s.content.Questions(context.Background(), slot.QuestionIDs)
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	answers := make(map[string]string, len(questions))
	for _, q := range questions {
		answers[q.ID] = q.CorrectKey
	}
	return answers
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestWebSocketLeaderboardFeed(t *testing.T) {
	ts := newTestServer(t, "")
	server := httptest.NewServer(ts.router)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws/leaderboard?board=0&date=2024-01-15"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Expect the initial (empty) snapshot first.
	typ, lb := readNext(conn, t)
	if typ != "leaderboard" {
		t.Fatalf("expected leaderboard, got %s", typ)
	}
	if len(lb.Entries) != 0 {
		t.Fatalf("expected empty board, got %+v", lb.Entries)
	}

	key := domain.QuizKey{UserID: "u1", Date: testDate, QuizIndex: 0}
	if _, err := ts.engine.SubmitAttempt(context.Background(), key, ts.correctAnswers(t, 0), 30000); err != nil {
		t.Fatalf("submit: %v", err)
	}

	typ, lb = readNext(conn, t)
	if typ != "leaderboard" {
		t.Fatalf("expected leaderboard update, got %s", typ)
	}
	if len(lb.Entries) != 1 || lb.Entries[0].UserID != "u1" || lb.Entries[0].Rank != 1 {
		t.Fatalf("expected u1 leading, got %+v", lb.Entries)
	}

	if err := conn.WriteJSON(map[string]any{"type": "ping"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if typ, _ := readNext(conn, t); typ != "pong" {
		t.Fatalf("expected pong, got %s", typ)
	}
}

func TestWebSocketRejectsUnknownBoard(t *testing.T) {
	ts := newTestServer(t, "")
	rec := ts.do(t, http.MethodGet, "/ws/leaderboard?board=42", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func readNext(conn *websocket.Conn, t *testing.T) (string, domain.Leaderboard) {
	t.Helper()
	var msg struct {
		Type    string             `json:"type"`
		Payload domain.Leaderboard `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	return msg.Type, msg.Payload
}
