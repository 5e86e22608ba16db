package app

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	// ErrUpstreamUnavailable wraps failures of the store, the vector index or
	// the LLM provider.
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
	ErrForbidden           = errors.New("permission denied")

	ErrInvalidCredential = errors.New("invalid username or password")
	ErrUsernameExists    = errors.New("username already exists")
	ErrUserNotFound      = errors.New("user not found")

	ErrDuplicateTitle   = errors.New("document title already exists")
	ErrDocumentNotFound = errors.New("document not found")
	ErrNoText           = errors.New("no extractable text")
	ErrNoContent        = errors.New("document has no indexed content")

	ErrTagExists   = errors.New("tag already exists")
	ErrTagNotFound = errors.New("tag not found")
	ErrTagInUse    = errors.New("tag is still used by documents")

	ErrChatNotFound    = errors.New("chat not found")
	ErrMessageEmpty    = errors.New("message content is empty")
	ErrModelNotOffered = errors.New("model is not offered")
	ErrMessageEnqueue  = errors.New("message enqueue failed")
)

func upstream(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, op, err)
}
