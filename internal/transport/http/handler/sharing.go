package handler

import (
	"github.com/gin-gonic/gin"

	"demand-foresight/internal/access"
	"demand-foresight/internal/app"
	"demand-foresight/internal/transport/http/response"
)

type SharingHandler struct {
	sharingService *app.SharingService
}

// ApplySharingRequest carries the editor snapshot the admin started from and
// the one they submitted.
type ApplySharingRequest struct {
	Username string                 `json:"username" binding:"required"`
	Before   []access.VisibilityRow `json:"before"`
	After    []access.VisibilityRow `json:"after" binding:"required"`
}

func NewSharingHandler(sharingService *app.SharingService) *SharingHandler {
	return &SharingHandler{sharingService: sharingService}
}

func (h *SharingHandler) Get(c *gin.Context) {
	st, ok := requireSession(c)
	if !ok {
		return
	}
	username := c.Query("username")
	if username == "" {
		badRequest(c, "username is required")
		return
	}
	rows, err := h.sharingService.Visibility(c.Request.Context(), st, username)
	if err != nil {
		writeError(c, err, "load sharing failed")
		return
	}
	response.OK(c, rows)
}

func (h *SharingHandler) Apply(c *gin.Context) {
	st, ok := requireSession(c)
	if !ok {
		return
	}
	var req ApplySharingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	plan, err := h.sharingService.ApplyVisibility(c.Request.Context(), st, req.Username, req.Before, req.After)
	if err != nil {
		writeError(c, err, "apply sharing failed")
		return
	}
	response.OK(c, gin.H{
		"granted": len(plan.Create),
		"revoked": len(plan.Delete),
	})
}
