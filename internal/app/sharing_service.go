package app

import (
	"context"
	"strings"

	"demand-foresight/internal/access"
	"demand-foresight/internal/session"
)

// SharingService backs the admin editor that shares admin-owned documents
// with individual users.
type SharingService struct {
	grants GrantStore
	users  UserStore
}

func NewSharingService(grants GrantStore, users UserStore) *SharingService {
	return &SharingService{grants: grants, users: users}
}

// Visibility lists the acting admin's documents with the target's access.
func (s *SharingService) Visibility(ctx context.Context, st *session.State, target string) ([]access.VisibilityRow, error) {
	if !st.IsAdmin() {
		return nil, ErrForbidden
	}
	if err := s.requireUser(ctx, target); err != nil {
		return nil, err
	}
	return access.VisibilityForTargetUser(st.Documents(), st.Grants(), st.Username, target), nil
}

// ApplyVisibility commits the difference between two editor snapshots.
// Replaying the same snapshots changes nothing.
func (s *SharingService) ApplyVisibility(ctx context.Context, st *session.State, target string, before, after []access.VisibilityRow) (access.EditPlan, error) {
	if !st.IsAdmin() {
		return access.EditPlan{}, ErrForbidden
	}
	if err := s.requireUser(ctx, target); err != nil {
		return access.EditPlan{}, err
	}

	owned := make(map[string]struct{})
	for _, row := range access.VisibilityForTargetUser(st.Documents(), st.Grants(), st.Username, target) {
		owned[row.DocumentID] = struct{}{}
	}
	after = onlyRows(after, owned)

	plan := access.PlanVisibilityEdits(st.Grants(), before, after, target)
	if plan.Empty() {
		return plan, nil
	}

	deleteIDs := make([]string, 0, len(plan.Delete))
	for _, g := range plan.Delete {
		deleteIDs = append(deleteIDs, g.ID)
	}
	created, err := s.grants.ApplyChanges(ctx, plan.Create, deleteIDs)
	if err != nil {
		return access.EditPlan{}, upstream("apply grants", err)
	}
	plan.Create = created
	st.ApplyEditPlan(plan)
	return plan, nil
}

func (s *SharingService) requireUser(ctx context.Context, username string) error {
	if strings.TrimSpace(username) == "" {
		return ErrInvalidInput
	}
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return upstream("load user", err)
	}
	if user == nil {
		return ErrUserNotFound
	}
	return nil
}

// onlyRows drops rows for documents outside the admin's own set, so a
// crafted snapshot cannot share someone else's document.
func onlyRows(rows []access.VisibilityRow, allowed map[string]struct{}) []access.VisibilityRow {
	out := make([]access.VisibilityRow, 0, len(rows))
	for _, r := range rows {
		if _, ok := allowed[r.DocumentID]; ok {
			out = append(out, r)
		}
	}
	return out
}
