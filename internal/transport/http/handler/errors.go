package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"demand-foresight/internal/access"
	"demand-foresight/internal/app"
	"demand-foresight/internal/model"
	"demand-foresight/internal/session"
	"demand-foresight/internal/transport/http/middleware"
	"demand-foresight/internal/transport/http/response"
)

type errorMapping struct {
	target error
	status int
	code   int
}

var errorMappings = []errorMapping{
	{app.ErrInvalidInput, http.StatusBadRequest, response.CodeBadRequest},
	{app.ErrMessageEmpty, http.StatusBadRequest, response.CodeBadRequest},
	{app.ErrModelNotOffered, http.StatusBadRequest, response.CodeModelNotOffered},
	{app.ErrNoText, http.StatusBadRequest, response.CodeNoText},
	{access.ErrNoMatchingDocuments, http.StatusBadRequest, response.CodeNoMatchingDocuments},
	{app.ErrInvalidCredential, http.StatusUnauthorized, response.CodeInvalidCredentials},
	{app.ErrForbidden, http.StatusForbidden, response.CodeForbidden},
	{app.ErrDocumentNotFound, http.StatusNotFound, response.CodeDocumentNotFound},
	{app.ErrNoContent, http.StatusNotFound, response.CodeDocumentNotFound},
	{app.ErrChatNotFound, http.StatusNotFound, response.CodeChatNotFound},
	{app.ErrUserNotFound, http.StatusNotFound, response.CodeUserNotFound},
	{app.ErrTagNotFound, http.StatusNotFound, response.CodeTagNotFound},
	{app.ErrUsernameExists, http.StatusConflict, response.CodeUsernameExists},
	{app.ErrDuplicateTitle, http.StatusConflict, response.CodeDuplicateTitle},
	{app.ErrTagExists, http.StatusConflict, response.CodeTagExists},
	{app.ErrTagInUse, http.StatusConflict, response.CodeTagInUse},
	{app.ErrMessageEnqueue, http.StatusServiceUnavailable, response.CodeUnavailable},
	{app.ErrUpstreamUnavailable, http.StatusServiceUnavailable, response.CodeUnavailable},
	{session.ErrDataUnavailable, http.StatusServiceUnavailable, response.CodeDataUnavailable},
}

// statusFor maps a service error to its HTTP status and response code.
func statusFor(err error) (int, int, bool) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code, true
		}
	}
	return http.StatusInternalServerError, response.CodeInternalServer, false
}

// writeError answers with the mapped status. Unmapped and upstream errors
// hide their detail behind fallback.
func writeError(c *gin.Context, err error, fallback string) {
	_ = c.Error(err)
	status, code, known := statusFor(err)
	message := err.Error()
	if !known || status >= http.StatusInternalServerError {
		message = fallback
	}
	response.Error(c, status, code, message)
}

func badRequest(c *gin.Context, message string) {
	response.Error(c, http.StatusBadRequest, response.CodeBadRequest, message)
}

func actorFrom(c *gin.Context) (app.Actor, bool) {
	username := c.GetString(middleware.ContextUsernameKey)
	if username == "" {
		return app.Actor{}, false
	}
	return app.Actor{Username: username, Role: model.Role(c.GetString(middleware.ContextRoleKey))}, true
}

// requireSession aborts with 401 when the session middleware did not run.
func requireSession(c *gin.Context) (*session.State, bool) {
	st, ok := middleware.SessionFrom(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return nil, false
	}
	return st, true
}

func requireActor(c *gin.Context) (app.Actor, bool) {
	actor, ok := actorFrom(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
	}
	return actor, ok
}

func sanitizeSSE(input string) string {
	replaced := strings.ReplaceAll(input, "\r\n", "\\n")
	replaced = strings.ReplaceAll(replaced, "\n", "\\n")
	return replaced
}
