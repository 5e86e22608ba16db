package handler

import (
	"github.com/gin-gonic/gin"

	"demand-foresight/internal/app"
	"demand-foresight/internal/transport/http/response"
)

type TagHandler struct {
	tagService *app.TagService
}

type CreateTagsRequest struct {
	Tags []string `json:"tags" binding:"required,min=1"`
}

type RenameTagRequest struct {
	Tag string `json:"tag" binding:"required,max=64"`
}

func NewTagHandler(tagService *app.TagService) *TagHandler {
	return &TagHandler{tagService: tagService}
}

func (h *TagHandler) List(c *gin.Context) {
	st, ok := requireSession(c)
	if !ok {
		return
	}
	response.OK(c, h.tagService.List(st))
}

func (h *TagHandler) Create(c *gin.Context) {
	st, ok := requireSession(c)
	if !ok {
		return
	}
	var req CreateTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	tags, err := h.tagService.CreateTags(c.Request.Context(), st, req.Tags)
	if err != nil {
		writeError(c, err, "create tags failed")
		return
	}
	response.OK(c, tags)
}

func (h *TagHandler) Rename(c *gin.Context) {
	st, ok := requireSession(c)
	if !ok {
		return
	}
	var req RenameTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	tag, err := h.tagService.RenameTag(c.Request.Context(), st, c.Param("id"), req.Tag)
	if err != nil {
		writeError(c, err, "rename tag failed")
		return
	}
	response.OK(c, tag)
}

func (h *TagHandler) Delete(c *gin.Context) {
	st, ok := requireSession(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if err := h.tagService.DeleteTag(c.Request.Context(), st, id); err != nil {
		writeError(c, err, "delete tag failed")
		return
	}
	response.OK(c, gin.H{"deleted_tag_id": id})
}
