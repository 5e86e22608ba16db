package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demand-foresight/internal/model"
)

func tagFixture() (*fakeStore, *TagService) {
	store := newFakeStore()
	store.tags["t1"] = model.Tag{TagID: "t1", Tag: "AI"}
	store.tags["t2"] = model.Tag{TagID: "t2", Tag: "Market"}
	store.addDocument("d1", "a.pdf", "AI", "root")
	store.addDocument("d2", "b.pdf", "AI", "alice")
	store.addDocument("d3", "c.pdf", "Market", "alice")
	return store, NewTagService(store)
}

func TestRenameTagCascades(t *testing.T) {
	store, svc := tagFixture()
	st := store.load("root", model.RoleAdmin)

	tag, err := svc.RenameTag(context.Background(), st, "t1", "人工智慧")
	require.NoError(t, err)
	assert.Equal(t, "人工智慧", tag.Tag)

	for _, docs := range [][]model.Document{st.Documents(), mustDocs(t, store)} {
		for _, d := range docs {
			assert.NotEqual(t, "AI", d.Tag)
		}
	}
	doc, _ := st.Document("d2")
	assert.Equal(t, "人工智慧", doc.Tag)
	doc, _ = st.Document("d3")
	assert.Equal(t, "Market", doc.Tag)
	assert.True(t, st.HasTagName("人工智慧"))
	assert.False(t, st.HasTagName("AI"))
}

func TestRenameTagFailureLeavesSessionUntouched(t *testing.T) {
	store, svc := tagFixture()
	store.failRename = true
	st := store.load("root", model.RoleAdmin)

	_, err := svc.RenameTag(context.Background(), st, "t1", "人工智慧")
	require.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.True(t, st.HasTagName("AI"))
	doc, _ := st.Document("d1")
	assert.Equal(t, "AI", doc.Tag)
}

func TestRenameTagConflictsAndPermissions(t *testing.T) {
	store, svc := tagFixture()
	ctx := context.Background()

	_, err := svc.RenameTag(ctx, store.load("alice", model.RoleMember), "t1", "X")
	assert.ErrorIs(t, err, ErrForbidden)

	admin := store.load("admin-user", model.RoleAdmin)
	_, err = svc.RenameTag(ctx, admin, "t1", "Market")
	assert.ErrorIs(t, err, ErrTagExists)
	_, err = svc.RenameTag(ctx, admin, "missing", "X")
	assert.ErrorIs(t, err, ErrTagNotFound)
	_, err = svc.RenameTag(ctx, admin, "t1", "  ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAdminByRoleNotUsername(t *testing.T) {
	store, svc := tagFixture()
	_, err := svc.CreateTags(context.Background(), store.load("admin", model.RoleMember), []string{"Energy"})
	assert.ErrorIs(t, err, ErrForbidden)

	tags, err := svc.CreateTags(context.Background(), store.load("maria", model.RoleAdmin), []string{"Energy"})
	require.NoError(t, err)
	require.Len(t, tags, 1)
}

func TestCreateTagsDuplicates(t *testing.T) {
	store, svc := tagFixture()
	st := store.load("root", model.RoleAdmin)

	_, err := svc.CreateTags(context.Background(), st, []string{"Energy", "Energy"})
	assert.ErrorIs(t, err, ErrTagExists)
	_, err = svc.CreateTags(context.Background(), st, []string{"AI"})
	assert.ErrorIs(t, err, ErrTagExists)
	assert.Len(t, st.Tags(), 2)

	created, err := svc.CreateTags(context.Background(), st, []string{"Energy", "Retail"})
	require.NoError(t, err)
	assert.Len(t, created, 2)
	assert.Len(t, st.Tags(), 4)
	assert.Len(t, store.tags, 4)
}

func TestDeleteTagInUse(t *testing.T) {
	store, svc := tagFixture()
	st := store.load("root", model.RoleAdmin)

	assert.ErrorIs(t, svc.DeleteTag(context.Background(), st, "t1"), ErrTagInUse)

	created, err := svc.CreateTags(context.Background(), st, []string{"Unused"})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteTag(context.Background(), st, created[0].TagID))
	assert.False(t, st.HasTagName("Unused"))
}

func mustDocs(t *testing.T, store *fakeStore) []model.Document {
	t.Helper()
	docs, err := store.ListDocuments(context.Background())
	require.NoError(t, err)
	return docs
}
