package access

import (
	"testing"

	"demand-foresight/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRetrievalFilter(t *testing.T) {
	visible := VisibleDocuments(testDocuments(), testGrants(), "bob")

	tests := []struct {
		name    string
		in      FilterInput
		want    []string
		wantIDs []string
		wantErr error
	}{
		{
			name: "all tags",
			in:   FilterInput{Tag: AllTags, Visible: visible},
			want:    []string{"Budget", "Annual Report"},
			wantIDs: []string{"d3", "d1"},
		},
		{
			name: "empty tag behaves like all",
			in:   FilterInput{Visible: visible},
			want:    []string{"Budget", "Annual Report"},
			wantIDs: []string{"d3", "d1"},
		},
		{
			name:    "tag without visible documents",
			in:      FilterInput{Tag: "Health", Visible: visible},
			wantErr: ErrNoMatchingDocuments,
		},
		{
			name: "explicit subset intersected with visible set",
			in:   FilterInput{Tag: "Health", Titles: []string{"Budget", "Private Notes", "Population Survey"}, Visible: visible},
			want:    []string{"Budget"},
			wantIDs: []string{"d3"},
		},
		{
			name:    "explicit subset entirely outside visible set",
			in:      FilterInput{Titles: []string{"Private Notes"}, Visible: visible},
			wantErr: ErrNoMatchingDocuments,
		},
		{
			name:    "nothing visible",
			in:      FilterInput{Tag: AllTags},
			wantErr: ErrNoMatchingDocuments,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, err := BuildRetrievalFilter(tt.in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, filter.DocumentIDs)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, filter.DocumentNames)
			assert.Equal(t, tt.wantIDs, filter.DocumentIDs)
		})
	}
}

func TestBuildRetrievalFilterNeverLeaks(t *testing.T) {
	docs := testDocuments()
	grants := testGrants()
	requests := [][]string{
		nil,
		{"Private Notes"},
		{"Annual Report", "Private Notes", "Budget", "Budget"},
		{"Population Survey", "does not exist"},
	}

	for _, username := range []string{"alice", "bob", "carol"} {
		visible := VisibleDocuments(docs, grants, username)
		allowed := make(map[string]struct{})
		for _, d := range visible {
			allowed[d.DocumentID] = struct{}{}
		}
		for _, titles := range requests {
			filter, err := BuildRetrievalFilter(FilterInput{Tag: AllTags, Titles: titles, Visible: visible})
			if err != nil {
				require.ErrorIs(t, err, ErrNoMatchingDocuments)
				continue
			}
			for _, id := range filter.DocumentIDs {
				_, ok := allowed[id]
				assert.True(t, ok, "%s leaked to %s", id, username)
			}
		}
	}
}

func TestBuildRetrievalFilterSameTitleAcrossOwners(t *testing.T) {
	docs := []model.Document{
		{DocumentID: "a1", Title: "report.pdf", Tag: "AI"},
		{DocumentID: "c1", Title: "report.pdf", Tag: "AI"},
	}
	grants := []model.Grant{
		{ID: "g1", Username: "alice", DocumentID: "a1", AccessLevel: model.AccessWrite},
		{ID: "g2", Username: "carol", DocumentID: "c1", AccessLevel: model.AccessWrite},
	}
	visible := VisibleDocuments(docs, grants, "alice")

	for _, in := range []FilterInput{
		{Titles: []string{"report.pdf"}, Visible: visible},
		{Tag: "AI", Visible: visible},
	} {
		filter, err := BuildRetrievalFilter(in)
		require.NoError(t, err)
		assert.Equal(t, []string{"a1"}, filter.DocumentIDs)
		assert.True(t, filter.Allows("a1"))
		assert.False(t, filter.Allows("c1"))
	}
}
