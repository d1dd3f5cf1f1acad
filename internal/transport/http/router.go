package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter wires the REST API, the leaderboard feed and the health probe.
func NewRouter(h *Handler, ws *WSHandler, authSecret string, recorder UserRecorder) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.GET("/ws/leaderboard", ws.ServeWS)

	api := router.Group("/api")
	api.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	player := api.Group("")
	player.Use(Identity(authSecret, recorder))
	{
		player.GET("/packs/today", h.TodayPack)
		player.GET("/quizzes/:index", h.StartQuiz)
		player.POST("/quizzes/:index/submit", h.Submit)
		player.GET("/quizzes/:index/answers", h.Answers)
		player.POST("/quizzes/:index/answers", h.Answers)
		player.POST("/quizzes/:index/lock", h.Lock)
		player.GET("/quizzes/:index/leaderboard", h.QuizLeaderboard)
		player.GET("/leaderboard/daily", h.DailyLeaderboard)
		player.GET("/profile", h.Profile)
		player.GET("/badges", h.Badges)
	}
	return router
}
