package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"trivia-engine/internal/app"
	"trivia-engine/internal/domain"
)

// Handler serves the player REST API.
type Handler struct {
	engine      *app.Engine
	player      *app.PlayerService
	leaderboard *app.LeaderboardEngine
	loc         *time.Location
	now         func() time.Time
}

func NewHandler(engine *app.Engine, player *app.PlayerService, leaderboard *app.LeaderboardEngine, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		engine:      engine,
		player:      player,
		leaderboard: leaderboard,
		loc:         loc,
		now:         time.Now,
	}
}

type submitRequest struct {
	Answers map[string]string `json:"answers" binding:"required"`
	TimeMs  int64             `json:"timeMs"`
}

func (h *Handler) TodayPack(c *gin.Context) {
	date, ok := h.date(c)
	if !ok {
		return
	}
	pack, err := h.player.GetPack(c.Request.Context(), c.GetString(ctxUserID), date, c.Query("lang"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pack)
}

func (h *Handler) StartQuiz(c *gin.Context) {
	key, ok := h.quizKey(c)
	if !ok {
		return
	}
	view, err := h.engine.StartAttempt(c.Request.Context(), key, c.Query("lang"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) Submit(c *gin.Context) {
	key, ok := h.quizKey(c)
	if !ok {
		return
	}
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid_submission", "invalid request body")
		return
	}
	result, err := h.engine.SubmitAttempt(c.Request.Context(), key, req.Answers, req.TimeMs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Answers serves GET as a read that never locks and POST as the confirmed,
// irrevocable reveal.
func (h *Handler) Answers(c *gin.Context) {
	key, ok := h.quizKey(c)
	if !ok {
		return
	}
	confirm := c.Request.Method == http.MethodPost
	reveal, err := h.engine.RevealAnswers(c.Request.Context(), key, c.Query("lang"), confirm)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reveal)
}

func (h *Handler) Lock(c *gin.Context) {
	key, ok := h.quizKey(c)
	if !ok {
		return
	}
	progress, err := h.engine.LockQuiz(c.Request.Context(), key)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"quizIndex": progress.QuizIndex,
		"locked":    progress.Locked,
		"status":    progress.Status(),
	})
}

func (h *Handler) QuizLeaderboard(c *gin.Context) {
	key, ok := h.quizKey(c)
	if !ok {
		return
	}
	lb, err := h.leaderboard.GetQuizLeaderboard(c.Request.Context(), key.Date, key.QuizIndex, c.Query("group_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, lb)
}

func (h *Handler) DailyLeaderboard(c *gin.Context) {
	date, ok := h.date(c)
	if !ok {
		return
	}
	lb, err := h.leaderboard.GetDailyLeaderboard(c.Request.Context(), date, c.Query("group_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, lb)
}

func (h *Handler) Profile(c *gin.Context) {
	profile, err := h.player.GetProfile(c.Request.Context(), c.GetString(ctxUserID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) Badges(c *gin.Context) {
	board, err := h.player.GetBadges(c.Request.Context(), c.GetString(ctxUserID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

// date reads the optional date query; packs of future days are not served.
func (h *Handler) date(c *gin.Context) (domain.PackDate, bool) {
	today := domain.DateOf(h.now(), h.loc)
	raw := c.Query("date")
	if raw == "" {
		return today, true
	}
	date, err := domain.ParsePackDate(raw)
	if err != nil {
		writeError(c, err)
		return "", false
	}
	if today.Before(date) {
		writeError(c, fmt.Errorf("pack %s: %w", date, domain.ErrNotFound))
		return "", false
	}
	return date, true
}

func (h *Handler) quizKey(c *gin.Context) (domain.QuizKey, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || !domain.ValidQuizIndex(index) {
		jsonError(c, http.StatusNotFound, "not_found", fmt.Sprintf("quiz %q does not exist", c.Param("index")))
		return domain.QuizKey{}, false
	}
	date, ok := h.date(c)
	if !ok {
		return domain.QuizKey{}, false
	}
	return domain.QuizKey{UserID: c.GetString(ctxUserID), Date: date, QuizIndex: index}, true
}
