package handler

import (
	"github.com/gin-gonic/gin"

	"demand-foresight/internal/app"
	"demand-foresight/internal/transport/http/response"
)

type UsageHandler struct {
	usageService *app.UsageService
}

func NewUsageHandler(usageService *app.UsageService) *UsageHandler {
	return &UsageHandler{usageService: usageService}
}

// Mine returns the caller's own spend.
func (h *UsageHandler) Mine(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	h.respond(c, actor, actor.Username)
}

// ForUser returns one user's spend, or everyone's when username is empty.
func (h *UsageHandler) ForUser(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	h.respond(c, actor, c.Query("username"))
}

func (h *UsageHandler) respond(c *gin.Context, actor app.Actor, username string) {
	usage, err := h.usageService.GetUserUsage(c.Request.Context(), actor, username)
	if err != nil {
		writeError(c, err, "load usage failed")
		return
	}
	response.OK(c, gin.H{"username": username, "usage": usage})
}

func (h *UsageHandler) Pricing(c *gin.Context) {
	response.OK(c, h.usageService.Prices())
}
