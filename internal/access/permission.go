// Package access decides which documents a user may see and which document
// ids a retrieval query may touch.
package access

import (
	"demand-foresight/internal/model"
)

// DocumentsByPermission partitions documents by the access level of the
// user's grants. A document that appears in neither result is invisible to
// username. Results are deduplicated by document ID and keep the order of
// documents.
func DocumentsByPermission(documents []model.Document, grants []model.Grant, username string) (owned, shared []model.Document) {
	levels := make(map[string]model.AccessLevel)
	for _, g := range grants {
		if g.Username != username {
			continue
		}
		// write wins if the store ever holds both rows for one pair
		if levels[g.DocumentID] == model.AccessWrite {
			continue
		}
		levels[g.DocumentID] = g.AccessLevel
	}

	owned = []model.Document{}
	shared = []model.Document{}
	seen := make(map[string]struct{}, len(documents))
	for _, doc := range documents {
		if _, dup := seen[doc.DocumentID]; dup {
			continue
		}
		switch levels[doc.DocumentID] {
		case model.AccessWrite:
			owned = append(owned, doc)
		case model.AccessRead:
			shared = append(shared, doc)
		default:
			continue
		}
		seen[doc.DocumentID] = struct{}{}
	}
	return owned, shared
}

// VisibleDocuments is the union of the owned and shared sets.
func VisibleDocuments(documents []model.Document, grants []model.Grant, username string) []model.Document {
	owned, shared := DocumentsByPermission(documents, grants, username)
	return append(owned, shared...)
}

// FindGrant returns the grant for (username, documentID), if any.
func FindGrant(grants []model.Grant, username, documentID string) (model.Grant, bool) {
	for _, g := range grants {
		if g.Username == username && g.DocumentID == documentID {
			return g, true
		}
	}
	return model.Grant{}, false
}

// CanWrite reports whether username owns documentID.
func CanWrite(grants []model.Grant, username, documentID string) bool {
	g, ok := FindGrant(grants, username, documentID)
	return ok && g.AccessLevel == model.AccessWrite
}

// CanRead reports whether documentID is in username's visible set.
func CanRead(grants []model.Grant, username, documentID string) bool {
	_, ok := FindGrant(grants, username, documentID)
	return ok
}

// HasOwner reports whether any user holds a write grant on documentID.
func HasOwner(grants []model.Grant, documentID string) bool {
	for _, g := range grants {
		if g.DocumentID == documentID && g.AccessLevel == model.AccessWrite {
			return true
		}
	}
	return false
}
