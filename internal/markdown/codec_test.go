package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSplitsFrontMatterAndBody(t *testing.T) {
	content := []byte("---\ntitle: Fix login bug\npriority: high\n---\nSome body text.\n")
	doc, err := Parse("tasks-fix-login.md", content)
	require.NoError(t, err)
	assert.Equal(t, "Fix login bug", doc.Meta["title"])
	assert.Equal(t, "high", doc.Meta["priority"])
	assert.Equal(t, "Some body text.\n", doc.Body)
}

func TestParseWithoutFenceTreatsWholeFileAsBody(t *testing.T) {
	content := []byte("just a plain file\nwith no front matter\n")
	doc, err := Parse("plain.md", content)
	require.NoError(t, err)
	assert.Empty(t, doc.Meta)
	assert.Equal(t, string(content), doc.Body)
}

func TestParseMissingClosingFenceErrors(t *testing.T) {
	content := []byte("---\ntitle: unterminated\n")
	_, err := Parse("broken.md", content)
	assert.Error(t, err)
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestRenderOrdersKnownKeysFirst(t *testing.T) {
	doc := &Document{
		Meta: map[string]any{
			"custom_field": "z",
			"title":        "Fix login bug",
			"id":           "fix-login",
			"priority":     "high",
		},
		Body: "Body.\n",
	}
	out, err := Render(doc, nil)
	require.NoError(t, err)
	s := string(out)

	idIdx := strings.Index(s, "id:")
	titleIdx := strings.Index(s, "title:")
	priorityIdx := strings.Index(s, "priority:")
	customIdx := strings.Index(s, "custom_field:")

	require.NotEqual(t, -1, idIdx)
	require.NotEqual(t, -1, titleIdx)
	require.NotEqual(t, -1, priorityIdx)
	require.NotEqual(t, -1, customIdx)
	assert.True(t, idIdx < titleIdx)
	assert.True(t, titleIdx < priorityIdx)
	assert.True(t, priorityIdx < customIdx, "unknown keys should be emitted after known ones")
	assert.True(t, strings.HasSuffix(s, "Body.\n"))
}

func TestParseRenderRoundTrip(t *testing.T) {
	original := []byte("---\nid: fix-login\ntitle: Fix login bug\ntags:\n    - go\n    - bug\n---\nBody text.\n")
	doc, err := Parse("tasks-fix-login.md", original)
	require.NoError(t, err)

	out, err := Render(doc, nil)
	require.NoError(t, err)

	doc2, err := Parse("tasks-fix-login.md", out)
	require.NoError(t, err)
	assert.Equal(t, doc.Meta["title"], doc2.Meta["title"])
	assert.Equal(t, doc.Body, doc2.Body)
}
