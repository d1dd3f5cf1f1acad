package http

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"trivia-engine/internal/domain"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// Specific errors come first: locked and exhausted submissions also wrap ErrInvalidSubmission.
var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrQuizLocked, http.StatusForbidden, "quiz_locked"},
	{domain.ErrAttemptsExhausted, http.StatusForbidden, "attempts_exhausted"},
	{domain.ErrBonusNotUnlocked, http.StatusForbidden, "bonus_not_unlocked"},
	{domain.ErrRevealNotConfirmed, http.StatusForbidden, "reveal_not_confirmed"},
	{domain.ErrNoSubmission, http.StatusForbidden, "no_submission"},
	{domain.ErrQuizClosed, http.StatusForbidden, "quiz_closed"},
	{domain.ErrAlreadyExists, http.StatusConflict, "already_exists"},
	{domain.ErrConcurrencyConflict, http.StatusConflict, "conflict"},
	{domain.ErrInvalidSubmission, http.StatusBadRequest, "invalid_submission"},
}

// statusOf maps an error to its HTTP status and machine code.
func statusOf(err error) (int, string) {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

func jsonError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:   http.StatusText(status),
		Code:    code,
		Message: message,
	})
}

func writeError(c *gin.Context, err error) {
	status, code := statusOf(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("request %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		message = ""
	}
	jsonError(c, status, code, message)
}

// Recovery turns panics into a 500 JSON response.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("panic recovered: %v", r)
				jsonError(c, http.StatusInternalServerError, "internal", "")
			}
		}()
		c.Next()
	}
}
