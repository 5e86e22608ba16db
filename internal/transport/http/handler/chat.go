package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"demand-foresight/internal/app"
	"demand-foresight/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
}

type StreamMessageRequest struct {
	ChatID      string   `json:"chat_id"`
	Content     string   `json:"content" binding:"required"`
	Model       string   `json:"model"`
	Tag         string   `json:"tag"`
	Titles      []string `json:"titles"`
	Temperature *float32 `json:"temperature" binding:"omitempty,gte=0,lte=2"`
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

func (h *ChatHandler) Models(c *gin.Context) {
	response.OK(c, h.chatService.Models())
}

func (h *ChatHandler) ListChats(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	chats, err := h.chatService.ListChats(c.Request.Context(), actor.Username)
	if err != nil {
		writeError(c, err, "list chats failed")
		return
	}
	response.OK(c, chats)
}

func (h *ChatHandler) GetChat(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	chat, err := h.chatService.GetChat(c.Request.Context(), actor.Username, c.Param("id"))
	if err != nil {
		writeError(c, err, "get chat failed")
		return
	}
	response.OK(c, chat)
}

// StreamMessage answers over server-sent events: one data frame per chunk,
// then a "done" event carrying the result or an "error" event.
func (h *ChatHandler) StreamMessage(c *gin.Context) {
	st, ok := requireSession(c)
	if !ok {
		return
	}

	var req StreamMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return
	}

	result, err := h.chatService.StreamMessage(c.Request.Context(), st, app.StreamMessageInput{
		ChatID:      req.ChatID,
		Content:     req.Content,
		Model:       req.Model,
		Tag:         req.Tag,
		Titles:      req.Titles,
		Temperature: req.Temperature,
	}, func(chunk string) error {
		if _, writeErr := c.Writer.Write([]byte("data: " + sanitizeSSE(chunk) + "\n\n")); writeErr != nil {
			return writeErr
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		_ = c.Error(err)
		_, code, known := statusFor(err)
		message := err.Error()
		if !known || code >= response.CodeInternalServer {
			message = "send message failed"
		}
		payload, _ := json.Marshal(gin.H{"code": code, "message": message})
		if _, writeErr := c.Writer.Write([]byte(fmt.Sprintf("event: error\ndata: %s\n\n", payload))); writeErr == nil {
			flusher.Flush()
		}
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if _, writeErr := c.Writer.Write([]byte("event: done\ndata: " + string(payload) + "\n\n")); writeErr == nil {
		flusher.Flush()
	}
}
