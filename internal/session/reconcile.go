package session

import (
	"demand-foresight/internal/access"
	"demand-foresight/internal/model"
)

// AddDocument records a committed upload.
func (s *State) AddDocument(doc model.Document, owner model.Grant) {
	s.documents = append(s.documents, doc)
	s.grants = append(s.grants, owner)
}

// RemoveDocuments drops the documents and every grant referencing them.
func (s *State) RemoveDocuments(documentIDs []string) {
	drop := toSet(documentIDs)

	documents := s.documents[:0]
	for _, d := range s.documents {
		if _, ok := drop[d.DocumentID]; !ok {
			documents = append(documents, d)
		}
	}
	s.documents = documents

	grants := s.grants[:0]
	for _, g := range s.grants {
		if _, ok := drop[g.DocumentID]; !ok {
			grants = append(grants, g)
		}
	}
	s.grants = grants
}

func (s *State) SetSummary(documentID, summary string) {
	for i := range s.documents {
		if s.documents[i].DocumentID == documentID {
			s.documents[i].Summary = summary
		}
	}
}

func (s *State) AddTags(tags ...model.Tag) {
	s.tags = append(s.tags, tags...)
}

// RenameTag renames the tag and every document that referenced the old name.
func (s *State) RenameTag(tagID, newName string) {
	var oldName string
	for i := range s.tags {
		if s.tags[i].TagID == tagID {
			oldName = s.tags[i].Tag
			s.tags[i].Tag = newName
		}
	}
	if oldName == "" {
		return
	}
	for i := range s.documents {
		if s.documents[i].Tag == oldName {
			s.documents[i].Tag = newName
		}
	}
}

func (s *State) RemoveTag(tagID string) {
	tags := s.tags[:0]
	for _, t := range s.tags {
		if t.TagID != tagID {
			tags = append(tags, t)
		}
	}
	s.tags = tags
}

// ApplyEditPlan applies committed sharing changes.
func (s *State) ApplyEditPlan(plan access.EditPlan) {
	s.grants = access.ApplyEditPlan(s.grants, plan)
}

// RemoveUserGrants drops every grant held by username.
func (s *State) RemoveUserGrants(username string) {
	grants := s.grants[:0]
	for _, g := range s.grants {
		if g.Username != username {
			grants = append(grants, g)
		}
	}
	s.grants = grants
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
