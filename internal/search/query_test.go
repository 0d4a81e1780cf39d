package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseToFTS(t *testing.T, query string) string {
	t.Helper()
	n, err := Parse(query)
	require.NoError(t, err)
	out, err := ToFTS5(n)
	require.NoError(t, err)
	return out
}

func TestParseImplicitAnd(t *testing.T) {
	assert.Equal(t, `("sqlite" AND "fts5")`, parseToFTS(t, "sqlite fts5"))
}

func TestParseExplicitOr(t *testing.T) {
	assert.Equal(t, `("sqlite" OR "postgres")`, parseToFTS(t, "sqlite OR postgres"))
}

func TestParseNot(t *testing.T) {
	assert.Equal(t, `NOT "draft"`, parseToFTS(t, "NOT draft"))
}

func TestParseFieldScoped(t *testing.T) {
	assert.Equal(t, `title:"login"`, parseToFTS(t, "title:login"))
}

func TestParsePhrase(t *testing.T) {
	assert.Equal(t, `"login bug"`, parseToFTS(t, `"login bug"`))
}

func TestParsePrefixMatch(t *testing.T) {
	assert.Equal(t, `"sql"*`, parseToFTS(t, "sql*"))
}

func TestParseParenGrouping(t *testing.T) {
	assert.Equal(t, `("bug" AND ("urgent" OR "blocker"))`, parseToFTS(t, "bug AND (urgent OR blocker)"))
}

func TestParseRejectsUnknownField(t *testing.T) {
	_, err := Parse("bogus:value")
	assert.Error(t, err)
}

func TestParseRejectsEmptyQuery(t *testing.T) {
	_, err := Parse("   ")
	assert.Error(t, err)
}

func TestParseRejectsUnterminatedQuote(t *testing.T) {
	_, err := Parse(`"unterminated`)
	assert.Error(t, err)
}

func TestParseRejectsMissingCloseParen(t *testing.T) {
	_, err := Parse("(bug AND urgent")
	assert.Error(t, err)
}
