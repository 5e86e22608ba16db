package access

import (
	"errors"
	"strings"

	"demand-foresight/internal/model"
)

// AllTags selects documents of every tag.
const AllTags = "all"

// ErrNoMatchingDocuments is returned instead of a filter that would allow
// nothing; callers must not fall back to an unfiltered query.
var ErrNoMatchingDocuments = errors.New("no matching documents")

type FilterInput struct {
	// Tag restricts the default selection; empty or AllTags means any tag.
	Tag string
	// Titles is an explicit subset requested by the caller.
	Titles []string
	// Visible is the caller's owned+shared set.
	Visible []model.Document
}

// Filter is the allow-list handed to the vector index. Titles are only
// unique per user, so the index is restricted by DocumentIDs; DocumentNames
// is kept for display.
type Filter struct {
	DocumentIDs   []string
	DocumentNames []string
}

// BuildRetrievalFilter computes the documents a query may see. An explicit
// title subset is intersected with the visible set; otherwise every visible
// document matching the tag is allowed. The result never contains a document
// outside Visible.
func BuildRetrievalFilter(in FilterInput) (Filter, error) {
	var f Filter
	seenIDs := make(map[string]struct{})
	seenNames := make(map[string]struct{})
	add := func(doc model.Document) {
		if _, dup := seenIDs[doc.DocumentID]; dup {
			return
		}
		seenIDs[doc.DocumentID] = struct{}{}
		f.DocumentIDs = append(f.DocumentIDs, doc.DocumentID)
		if _, dup := seenNames[doc.Title]; !dup {
			seenNames[doc.Title] = struct{}{}
			f.DocumentNames = append(f.DocumentNames, doc.Title)
		}
	}

	if len(in.Titles) > 0 {
		for _, title := range in.Titles {
			title = strings.TrimSpace(title)
			for _, doc := range in.Visible {
				if doc.Title == title {
					add(doc)
				}
			}
		}
	} else {
		tag := strings.TrimSpace(in.Tag)
		for _, doc := range in.Visible {
			if tag == "" || tag == AllTags || doc.Tag == tag {
				add(doc)
			}
		}
	}

	if len(f.DocumentIDs) == 0 {
		return Filter{}, ErrNoMatchingDocuments
	}
	return f, nil
}

// Allows reports whether documentID is in the allow-list.
func (f Filter) Allows(documentID string) bool {
	for _, id := range f.DocumentIDs {
		if id == documentID {
			return true
		}
	}
	return false
}
