package access

import (
	"demand-foresight/internal/model"
)

// VisibilityRow is one line of the admin sharing editor.
type VisibilityRow struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Tag        string `json:"tag"`
	IsVisible  bool   `json:"is_visible"`
}

// VisibilityForTargetUser lists every document owned by adminOwner and marks
// whether targetUsername currently holds a read grant for it.
func VisibilityForTargetUser(documents []model.Document, grants []model.Grant, adminOwner, targetUsername string) []VisibilityRow {
	owned, _ := DocumentsByPermission(documents, grants, adminOwner)

	reads := make(map[string]struct{})
	for _, g := range grants {
		if g.Username == targetUsername && g.AccessLevel == model.AccessRead {
			reads[g.DocumentID] = struct{}{}
		}
	}

	rows := make([]VisibilityRow, 0, len(owned))
	for _, doc := range owned {
		_, visible := reads[doc.DocumentID]
		rows = append(rows, VisibilityRow{
			DocumentID: doc.DocumentID,
			Title:      doc.Title,
			Tag:        doc.Tag,
			IsVisible:  visible,
		})
	}
	return rows
}

// EditPlan is the set of grant mutations needed to move from one editor
// snapshot to another.
type EditPlan struct {
	Create []model.Grant
	Delete []model.Grant
}

func (p EditPlan) Empty() bool {
	return len(p.Create) == 0 && len(p.Delete) == 0
}

// PlanVisibilityEdits diffs two editor snapshots against the current grants.
// Rows flipped false→true produce a read grant unless targetUsername already
// holds any grant for that document; rows flipped true→false delete the
// matching read grant if it exists. Write grants are never touched. Created
// grants carry no ID; the caller assigns one.
func PlanVisibilityEdits(grants []model.Grant, before, after []VisibilityRow, targetUsername string) EditPlan {
	prev := make(map[string]bool, len(before))
	for _, row := range before {
		prev[row.DocumentID] = row.IsVisible
	}

	var plan EditPlan
	planned := make(map[string]struct{})
	for _, row := range after {
		was, known := prev[row.DocumentID]
		if !known || was == row.IsVisible {
			continue
		}
		if _, dup := planned[row.DocumentID]; dup {
			continue
		}
		planned[row.DocumentID] = struct{}{}

		existing, has := FindGrant(grants, targetUsername, row.DocumentID)
		if row.IsVisible {
			if has {
				continue
			}
			plan.Create = append(plan.Create, model.Grant{
				Username:    targetUsername,
				DocumentID:  row.DocumentID,
				AccessLevel: model.AccessRead,
			})
			continue
		}
		if has && existing.AccessLevel == model.AccessRead {
			plan.Delete = append(plan.Delete, existing)
		}
	}
	return plan
}

// ApplyEditPlan returns grants with the plan applied. The input slice is not
// modified.
func ApplyEditPlan(grants []model.Grant, plan EditPlan) []model.Grant {
	drop := make(map[string]struct{}, len(plan.Delete))
	for _, g := range plan.Delete {
		drop[g.ID] = struct{}{}
	}

	out := make([]model.Grant, 0, len(grants)+len(plan.Create))
	for _, g := range grants {
		if _, ok := drop[g.ID]; ok {
			continue
		}
		out = append(out, g)
	}
	for _, g := range plan.Create {
		if _, exists := FindGrant(out, g.Username, g.DocumentID); exists {
			continue
		}
		out = append(out, g)
	}
	return out
}
