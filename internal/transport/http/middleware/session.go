package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"demand-foresight/internal/model"
	"demand-foresight/internal/session"
	"demand-foresight/internal/transport/http/response"
)

const ContextSessionKey = "session"

// LoadSession reads the caller's document, grant and tag view once per
// request. It must run after AuthJWT.
func LoadSession(src session.Source, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetString(ContextUsernameKey)
		role := model.Role(c.GetString(ContextRoleKey))
		st, err := session.Load(c.Request.Context(), src, username, role)
		if err != nil {
			logger.Error("load session failed", zap.String("username", username), zap.Error(err))
			if errors.Is(err, session.ErrDataUnavailable) {
				response.Error(c, http.StatusServiceUnavailable, response.CodeDataUnavailable, session.ErrDataUnavailable.Error())
			} else {
				response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "load session failed")
			}
			c.Abort()
			return
		}
		c.Set(ContextSessionKey, st)
		c.Next()
	}
}

func SessionFrom(c *gin.Context) (*session.State, bool) {
	v, ok := c.Get(ContextSessionKey)
	if !ok {
		return nil, false
	}
	st, ok := v.(*session.State)
	return st, ok && st != nil
}
