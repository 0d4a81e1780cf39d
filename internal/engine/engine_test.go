package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shirokuma-go/kb/internal/itemstore"
	"github.com/shirokuma-go/kb/internal/kbtypes"
)

func openTestEngine(t *testing.T) *Handle {
	t.Helper()
	ctx := context.Background()
	h, err := Open(ctx, t.TempDir(), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestCreateGetUpdateDeleteRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := openTestEngine(t)

	_, err := h.CreateType(ctx, "tasks", kbtypes.BaseTasks, "Action items")
	require.NoError(t, err)

	item, err := h.CreateItem(ctx, itemstore.CreateParams{
		Type:        "tasks",
		Title:       "Fix login bug",
		Description: "Users can't log in with SSO",
		Content:     "Investigate the SAML callback handler.",
		Priority:    kbtypes.PriorityHigh,
		Tags:        []string{"go", "bug"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, []string{"bug", "go"}, item.Tags)

	got, err := h.GetItem(ctx, "tasks", item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.Title, got.Title)

	newDesc := "Users can't log in with SSO or OAuth"
	updated, err := h.UpdateItem(ctx, "tasks", item.ID, itemstore.UpdatePatch{Description: &newDesc})
	require.NoError(t, err)
	assert.Equal(t, newDesc, updated.Description)

	deleted, err := h.DeleteItem(ctx, "tasks", item.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = h.GetItem(ctx, "tasks", item.ID)
	assert.Error(t, err)
}

func TestListFiltersByType(t *testing.T) {
	ctx := context.Background()
	h := openTestEngine(t)

	_, err := h.CreateType(ctx, "tasks", kbtypes.BaseTasks, "Action items")
	require.NoError(t, err)
	_, err = h.CreateType(ctx, "notes", kbtypes.BaseDocuments, "Freeform notes")
	require.NoError(t, err)

	_, err = h.CreateItem(ctx, itemstore.CreateParams{Type: "tasks", Title: "A task"})
	require.NoError(t, err)
	_, err = h.CreateItem(ctx, itemstore.CreateParams{Type: "notes", Title: "A note"})
	require.NoError(t, err)

	tasks, err := h.ListItems(ctx, itemstore.ListParams{Type: "tasks", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
	assert.Equal(t, "tasks", tasks[0].Type)
}

func TestSearchItemsFindsByContent(t *testing.T) {
	ctx := context.Background()
	h := openTestEngine(t)

	_, err := h.CreateType(ctx, "tasks", kbtypes.BaseTasks, "Action items")
	require.NoError(t, err)

	loginBug, err := h.CreateItem(ctx, itemstore.CreateParams{
		Type:    "tasks",
		Title:   "Fix login bug",
		Content: "The SAML callback handler drops the session cookie.",
	})
	require.NoError(t, err)
	_, err = h.CreateItem(ctx, itemstore.CreateParams{
		Type:    "tasks",
		Title:   "Write onboarding doc",
		Content: "Document the new hire laptop setup steps.",
	})
	require.NoError(t, err)

	hits, err := h.SearchItems(ctx, "SAML", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, loginBug.ID, hits[0].ID)
}

func TestAddRelationsAndGetRelated(t *testing.T) {
	ctx := context.Background()
	h := openTestEngine(t)

	_, err := h.CreateType(ctx, "tasks", kbtypes.BaseTasks, "Action items")
	require.NoError(t, err)

	a, err := h.CreateItem(ctx, itemstore.CreateParams{Type: "tasks", Title: "Parent task"})
	require.NoError(t, err)
	b, err := h.CreateItem(ctx, itemstore.CreateParams{Type: "tasks", Title: "Child task"})
	require.NoError(t, err)

	source := kbtypes.Ref{Type: "tasks", ID: a.ID}
	target := kbtypes.Ref{Type: "tasks", ID: b.ID}
	require.NoError(t, h.AddRelations(ctx, source, []kbtypes.Ref{target}))

	related, err := h.GetRelatedItems(ctx, source, 2)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, b.ID, related[0].Ref.ID)

	// get_item must see the relation too: it comes from the Markdown file,
	// not just the related_items index row.
	gotA, err := h.GetItem(ctx, "tasks", a.ID)
	require.NoError(t, err)
	assert.Contains(t, gotA.Related, target)
	gotB, err := h.GetItem(ctx, "tasks", b.ID)
	require.NoError(t, err)
	assert.Contains(t, gotB.Related, source)

	// A rebuild reconstructs related_items purely from the files' related
	// lists, so the relation only survives if it was actually written to
	// disk rather than inserted into the index directly.
	_, err = h.Rebuild(ctx)
	require.NoError(t, err)

	relatedAfterRebuild, err := h.GetRelatedItems(ctx, source, 2)
	require.NoError(t, err)
	require.Len(t, relatedAfterRebuild, 1)
	assert.Equal(t, b.ID, relatedAfterRebuild[0].Ref.ID)
}

func TestAddRelationsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := openTestEngine(t)

	_, err := h.CreateType(ctx, "tasks", kbtypes.BaseTasks, "Action items")
	require.NoError(t, err)

	a, err := h.CreateItem(ctx, itemstore.CreateParams{Type: "tasks", Title: "Parent task"})
	require.NoError(t, err)
	b, err := h.CreateItem(ctx, itemstore.CreateParams{Type: "tasks", Title: "Child task"})
	require.NoError(t, err)

	source := kbtypes.Ref{Type: "tasks", ID: a.ID}
	target := kbtypes.Ref{Type: "tasks", ID: b.ID}
	require.NoError(t, h.AddRelations(ctx, source, []kbtypes.Ref{target}))
	require.NoError(t, h.AddRelations(ctx, source, []kbtypes.Ref{target}))

	gotA, err := h.GetItem(ctx, "tasks", a.ID)
	require.NoError(t, err)
	assert.Equal(t, []kbtypes.Ref{target}, gotA.Related)
}

func TestCurrentStateGetAfterUpdate(t *testing.T) {
	ctx := context.Background()
	h := openTestEngine(t)

	_, err := h.UpdateCurrentState(ctx, "Working on the search ranking tuning.", []string{"focus"}, map[string]any{"mood": "good"})
	require.NoError(t, err)

	state, err := h.GetCurrentState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Working on the search ranking tuning.", state.Content)
	assert.Equal(t, []string{"focus"}, state.Tags)
}

func TestRebuildIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := openTestEngine(t)

	_, err := h.CreateType(ctx, "tasks", kbtypes.BaseTasks, "Action items")
	require.NoError(t, err)
	_, err = h.CreateItem(ctx, itemstore.CreateParams{Type: "tasks", Title: "Something to rebuild"})
	require.NoError(t, err)

	report, err := h.Rebuild(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, report.ItemsIndexed, 1)

	stats, err := h.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalItems)
}
