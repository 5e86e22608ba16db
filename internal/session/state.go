// Package session holds the per-request view of the document store. A State
// is loaded once per request, threaded explicitly through the services, and
// updated after every successful store mutation so it never disagrees with
// what was written.
package session

import (
	"context"
	"errors"
	"fmt"

	"demand-foresight/internal/access"
	"demand-foresight/internal/model"
)

// ErrDataUnavailable means the store could not be read; the caller should
// show a "cannot load data" notice and disable dependent actions.
var ErrDataUnavailable = errors.New("cannot load data")

// Source reads the record sets a session needs.
type Source interface {
	ListDocuments(ctx context.Context) ([]model.Document, error)
	ListGrants(ctx context.Context) ([]model.Grant, error)
	ListTags(ctx context.Context) ([]model.Tag, error)
}

type State struct {
	Username string
	Role     model.Role

	documents []model.Document
	grants    []model.Grant
	tags      []model.Tag
}

// Load reads documents, grants and tags for one request.
func Load(ctx context.Context, src Source, username string, role model.Role) (*State, error) {
	documents, err := src.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: documents: %v", ErrDataUnavailable, err)
	}
	grants, err := src.ListGrants(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: grants: %v", ErrDataUnavailable, err)
	}
	tags, err := src.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: tags: %v", ErrDataUnavailable, err)
	}
	return New(username, role, documents, grants, tags), nil
}

// New builds a State from already loaded record sets.
func New(username string, role model.Role, documents []model.Document, grants []model.Grant, tags []model.Tag) *State {
	return &State{
		Username:  username,
		Role:      role,
		documents: append([]model.Document(nil), documents...),
		grants:    append([]model.Grant(nil), grants...),
		tags:      append([]model.Tag(nil), tags...),
	}
}

func (s *State) IsAdmin() bool {
	return s.Role == model.RoleAdmin
}

func (s *State) Documents() []model.Document {
	return append([]model.Document(nil), s.documents...)
}

func (s *State) Grants() []model.Grant {
	return append([]model.Grant(nil), s.grants...)
}

func (s *State) Tags() []model.Tag {
	return append([]model.Tag(nil), s.tags...)
}

// Owned and Shared are the session user's partitions.
func (s *State) Owned() []model.Document {
	owned, _ := access.DocumentsByPermission(s.documents, s.grants, s.Username)
	return owned
}

func (s *State) Shared() []model.Document {
	_, shared := access.DocumentsByPermission(s.documents, s.grants, s.Username)
	return shared
}

func (s *State) Visible() []model.Document {
	return access.VisibleDocuments(s.documents, s.grants, s.Username)
}

func (s *State) Document(documentID string) (model.Document, bool) {
	for _, d := range s.documents {
		if d.DocumentID == documentID {
			return d, true
		}
	}
	return model.Document{}, false
}

func (s *State) Tag(tagID string) (model.Tag, bool) {
	for _, t := range s.tags {
		if t.TagID == tagID {
			return t, true
		}
	}
	return model.Tag{}, false
}

func (s *State) HasTagName(name string) bool {
	for _, t := range s.tags {
		if t.Tag == name {
			return true
		}
	}
	return false
}

func (s *State) CanWrite(documentID string) bool {
	return access.CanWrite(s.grants, s.Username, documentID)
}

func (s *State) CanRead(documentID string) bool {
	return access.CanRead(s.grants, s.Username, documentID)
}

// CanManage reports whether the user may delete or summarize documentID.
// Admins may also manage documents whose owner account was deleted.
func (s *State) CanManage(documentID string) bool {
	if s.CanWrite(documentID) {
		return true
	}
	return s.IsAdmin() && !access.HasOwner(s.grants, documentID)
}

// Orphaned lists documents nobody holds a write grant on.
func (s *State) Orphaned() []model.Document {
	out := []model.Document{}
	for _, d := range s.documents {
		if !access.HasOwner(s.grants, d.DocumentID) {
			out = append(out, d)
		}
	}
	return out
}

// DocumentsWithTag counts documents carrying the tag name.
func (s *State) DocumentsWithTag(name string) int {
	n := 0
	for _, d := range s.documents {
		if d.Tag == name {
			n++
		}
	}
	return n
}
