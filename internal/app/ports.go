package app

import (
	"context"

	"demand-foresight/internal/ai"
	"demand-foresight/internal/model"
	"demand-foresight/internal/pkg/pdfextract"
	"demand-foresight/internal/task"
	"demand-foresight/internal/vectorindex"
)

// Actor is the authenticated caller as resolved from the identity token.
type Actor struct {
	Username string
	Role     model.Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == model.RoleAdmin
}

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	CountByRole(ctx context.Context, role model.Role) (int64, error)
	DeleteByUsername(ctx context.Context, username string) error
}

type DocumentStore interface {
	GetByID(ctx context.Context, documentID string) (*model.Document, error)
	CreateDocument(ctx context.Context, doc *model.Document, owner *model.Grant, vectors []model.Vector) error
	ListVectorIDs(ctx context.Context, documentIDs []string) ([]string, error)
	DeleteDocuments(ctx context.Context, documentIDs []string) error
	UpdateSummary(ctx context.Context, documentID, summary string) error
}

type GrantStore interface {
	ApplyChanges(ctx context.Context, create []model.Grant, deleteIDs []string) ([]model.Grant, error)
}

type TagStore interface {
	CreateTags(ctx context.Context, tags []model.Tag) error
	RenameTag(ctx context.Context, tagID, newName string) error
	DeleteTag(ctx context.Context, tagID string) error
}

type MessageStore interface {
	ListByUsername(ctx context.Context, username string) ([]model.ChatMessage, error)
	ListByChat(ctx context.Context, username, chatID string, limit int) ([]model.ChatMessage, error)
}

type CostStore interface {
	Append(ctx context.Context, record *model.CostRecord) error
	List(ctx context.Context, username string) ([]model.CostRecord, error)
}

type VectorIndex interface {
	Upsert(ctx context.Context, points []vectorindex.Point) error
	Delete(ctx context.Context, ids []string) error
	Query(ctx context.Context, vector []float32, k int, documentIDs []string) ([]vectorindex.Match, error)
	Fetch(ctx context.Context, ids []string) ([]vectorindex.Match, error)
}

type LLM interface {
	Embed(ctx context.Context, model string, texts []string) ([][]float32, ai.Usage, error)
	Complete(ctx context.Context, req ai.CompletionRequest) (ai.Completion, error)
	StreamComplete(ctx context.Context, req ai.CompletionRequest, onChunk func(chunk string) error) (ai.Completion, error)
}

type TaskRegistry interface {
	Submit(ctx context.Context, kind, subject, submitter string) (task.Handle, error)
	Poll(ctx context.Context, handle task.Handle) (task.Result, error)
	Forget(ctx context.Context, handle task.Handle) error
}

type AsyncPublisher interface {
	Publish(ctx context.Context, payload any) error
}

type HistoryCache interface {
	GetHistory(ctx context.Context, username, chatID string) ([]model.ChatMessage, bool, error)
	SetHistory(ctx context.Context, username, chatID string, messages []model.ChatMessage) error
	Invalidate(ctx context.Context, username, chatID string) error
	IsDirty(ctx context.Context, username, chatID string) (bool, error)
}

// PageExtractor splits an uploaded file into text pages.
type PageExtractor func(data []byte) ([]pdfextract.Page, error)
