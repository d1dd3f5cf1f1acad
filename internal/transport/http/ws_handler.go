package http

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"trivia-engine/internal/app"
	"trivia-engine/internal/domain"
)

// writeWait bounds a single websocket write.
const writeWait = 10 * time.Second

// WSHandler streams live leaderboard snapshots over websockets.
type WSHandler struct {
	leaderboard *app.LeaderboardEngine
	loc         *time.Location
	now         func() time.Time
	upgrader    websocket.Upgrader
}

func NewWSHandler(leaderboard *app.LeaderboardEngine, loc *time.Location) *WSHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &WSHandler{
		leaderboard: leaderboard,
		loc:         loc,
		now:         time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and forwards every snapshot of the requested board:
// board=<0-10> for a quiz leaderboard or board=daily for the aggregate.
func (h *WSHandler) ServeWS(c *gin.Context) {
	date := domain.DateOf(h.now(), h.loc)
	if raw := c.Query("date"); raw != "" {
		parsed, err := domain.ParsePackDate(raw)
		if err != nil {
			writeError(c, err)
			return
		}
		date = parsed
	}

	var (
		board   app.BoardID
		initial domain.Leaderboard
		err     error
	)
	ctx := c.Request.Context()
	switch raw := c.Query("board"); raw {
	case "":
		jsonError(c, http.StatusBadRequest, "invalid_submission", "missing board")
		return
	case "daily":
		board = app.DailyBoard(date)
		initial, err = h.leaderboard.GetDailyLeaderboard(ctx, date, "")
	default:
		index, convErr := strconv.Atoi(raw)
		if convErr != nil || !domain.ValidQuizIndex(index) {
			jsonError(c, http.StatusNotFound, "not_found", "unknown board")
			return
		}
		board = app.QuizBoard(date, index)
		initial, err = h.leaderboard.GetQuizLeaderboard(ctx, date, index, "")
	}
	if err != nil {
		writeError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	// The server's read timeout must not end a long-lived feed.
	_ = conn.SetReadDeadline(time.Time{})

	updates, cancel := h.leaderboard.Hub().Subscribe(board, &initial)
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Only the writer goroutine touches the connection for writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "leaderboard", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var reply outboundMessage[any]
		switch inbound.Type {
		case "ping":
			reply = outboundMessage[any]{Type: "pong", Payload: struct{}{}}
		default:
			reply = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
		select {
		case send <- reply:
		case <-writerDone:
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
