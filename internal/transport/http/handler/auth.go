package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"demand-foresight/internal/app"
	"demand-foresight/internal/model"
	"demand-foresight/internal/transport/http/response"
)

type AuthHandler struct {
	authService *app.AuthService
}

type LoginRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	Password string `json:"password" binding:"required,max=128"`
}

type CreateUserRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=8,max=128"`
	Role     string `json:"role" binding:"omitempty,oneof=admin member"`
}

func NewAuthHandler(authService *app.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}

	result, err := h.authService.Login(c.Request.Context(), app.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		writeError(c, err, "login failed")
		return
	}
	response.OK(c, result)
}

func (h *AuthHandler) Me(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	user, err := h.authService.Me(c.Request.Context(), actor)
	if err != nil {
		if errors.Is(err, app.ErrUserNotFound) {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "user not found")
			return
		}
		writeError(c, err, "fetch current user failed")
		return
	}
	response.OK(c, user)
}

func (h *AuthHandler) ListUsers(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	users, err := h.authService.ListUsers(c.Request.Context(), actor)
	if err != nil {
		writeError(c, err, "list users failed")
		return
	}
	response.OK(c, users)
}

func (h *AuthHandler) CreateUser(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	user, err := h.authService.CreateUser(c.Request.Context(), actor, app.CreateUserInput{
		Username: req.Username,
		Password: req.Password,
		Role:     model.Role(req.Role),
	})
	if err != nil {
		writeError(c, err, "create user failed")
		return
	}
	response.OK(c, user)
}

func (h *AuthHandler) DeleteUser(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	username := c.Param("username")
	if err := h.authService.DeleteUser(c.Request.Context(), actor, username); err != nil {
		writeError(c, err, "delete user failed")
		return
	}
	response.OK(c, gin.H{"deleted_username": username})
}

func (h *AuthHandler) IssueLoginLink(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	link, err := h.authService.IssueLoginLink(c.Request.Context(), actor, c.Param("username"))
	if err != nil {
		writeError(c, err, "issue login link failed")
		return
	}
	response.OK(c, link)
}
