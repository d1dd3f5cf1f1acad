package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"trivia-engine/internal/domain"
)

const (
	ctxUserID   = "user_id"
	ctxNickname = "nickname"
)

// Claims is the access token payload issued by the auth service.
type Claims struct {
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// UserRecorder stores identities seen on requests so leaderboards can show nicknames.
type UserRecorder interface {
	UpsertUser(ctx context.Context, u domain.User) error
}

// Identity resolves the calling user. With a secret it verifies an HS256 bearer
// token; without one it trusts the X-User-ID header set by the gateway.
func Identity(secret string, recorder UserRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		var user domain.User
		if secret != "" {
			claims, err := parseBearer(c.GetHeader("Authorization"), secret)
			if err != nil {
				jsonError(c, http.StatusUnauthorized, "unauthorized", err.Error())
				return
			}
			user = domain.User{ID: claims.UserID, Nickname: claims.Nickname, Role: claims.Role}
		} else {
			user = domain.User{
				ID:       c.GetHeader("X-User-ID"),
				Nickname: c.GetHeader("X-User-Nickname"),
				Role:     c.GetHeader("X-User-Role"),
			}
		}
		if user.ID == "" {
			jsonError(c, http.StatusUnauthorized, "unauthorized", "user identity is required")
			return
		}

		if recorder != nil && user.Nickname != "" {
			if user.Role == "" {
				user.Role = "player"
			}
			if err := recorder.UpsertUser(c.Request.Context(), user); err != nil {
				log.Printf("record user %s: %v", user.ID, err)
			}
		}
		c.Set(ctxUserID, user.ID)
		c.Set(ctxNickname, user.Nickname)
		c.Next()
	}
}

func parseBearer(header, secret string) (*Claims, error) {
	if header == "" {
		return nil, fmt.Errorf("authorization header is required")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, fmt.Errorf("invalid authorization header format")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("token carries no user")
	}
	return claims, nil
}
