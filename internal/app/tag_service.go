package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"demand-foresight/internal/model"
	"demand-foresight/internal/session"
)

type TagService struct {
	store TagStore
}

func NewTagService(store TagStore) *TagService {
	return &TagService{store: store}
}

func (s *TagService) List(st *session.State) []model.Tag {
	return st.Tags()
}

// CreateTags adds every name or none. A name repeated in the request or
// already present is a conflict.
func (s *TagService) CreateTags(ctx context.Context, st *session.State, names []string) ([]model.Tag, error) {
	if !st.IsAdmin() {
		return nil, ErrForbidden
	}
	if len(names) == 0 {
		return nil, ErrInvalidInput
	}

	seen := make(map[string]struct{}, len(names))
	tags := make([]model.Tag, 0, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			return nil, ErrInvalidInput
		}
		if _, dup := seen[name]; dup || st.HasTagName(name) {
			return nil, fmt.Errorf("%w: %s", ErrTagExists, name)
		}
		seen[name] = struct{}{}
		tags = append(tags, model.Tag{TagID: uuid.NewString(), Tag: name})
	}

	if err := s.store.CreateTags(ctx, tags); err != nil {
		return nil, upstream("create tags", err)
	}
	st.AddTags(tags...)
	return tags, nil
}

// RenameTag renames the tag and every document carrying it. The session is
// only updated after the store committed both.
func (s *TagService) RenameTag(ctx context.Context, st *session.State, tagID, newName string) (model.Tag, error) {
	if !st.IsAdmin() {
		return model.Tag{}, ErrForbidden
	}
	tag, ok := st.Tag(tagID)
	if !ok {
		return model.Tag{}, ErrTagNotFound
	}
	name := strings.TrimSpace(newName)
	if name == "" {
		return model.Tag{}, ErrInvalidInput
	}
	if name == tag.Tag {
		return tag, nil
	}
	if st.HasTagName(name) {
		return model.Tag{}, fmt.Errorf("%w: %s", ErrTagExists, name)
	}

	if err := s.store.RenameTag(ctx, tagID, name); err != nil {
		return model.Tag{}, upstream("rename tag", err)
	}
	st.RenameTag(tagID, name)
	tag.Tag = name
	return tag, nil
}

func (s *TagService) DeleteTag(ctx context.Context, st *session.State, tagID string) error {
	if !st.IsAdmin() {
		return ErrForbidden
	}
	tag, ok := st.Tag(tagID)
	if !ok {
		return ErrTagNotFound
	}
	if n := st.DocumentsWithTag(tag.Tag); n > 0 {
		return fmt.Errorf("%w: %d documents", ErrTagInUse, n)
	}
	if err := s.store.DeleteTag(ctx, tagID); err != nil {
		return upstream("delete tag", err)
	}
	st.RemoveTag(tagID)
	return nil
}
