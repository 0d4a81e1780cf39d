package pathsafe

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateIDRejectsTraversal(t *testing.T) {
	cases := []string{"", ".", "..", "../escape", "a/b", "a\\b", "a%b", "/abs"}
	for _, id := range cases {
		assert.Error(t, ValidateID(id), "id %q should be rejected", id)
	}
}

func TestValidateIDAcceptsSafeIDs(t *testing.T) {
	assert.NoError(t, ValidateID("fix-login-bug"))
	assert.NoError(t, ValidateID("2026-03-05-09.15.00.000"))
}

func TestResolveDefaultType(t *testing.T) {
	p, err := Resolve("/data", "tasks", "fix-login")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data", "tasks", "tasks-fix-login.md"), p)
}

func TestResolveRejectsTraversalInID(t *testing.T) {
	_, err := Resolve("/data", "tasks", "../../etc/passwd")
	assert.Error(t, err)
}

func TestResolveSessionsUsesDatePrefix(t *testing.T) {
	p, err := Resolve("/data", "sessions", "2026-03-05-09.15.00.000")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data", "sessions", "2026-03-05", "sessions-2026-03-05-09.15.00.000.md"), p)
}

func TestResolveSessionsRejectsMalformedID(t *testing.T) {
	_, err := Resolve("/data", "sessions", "not-a-session-id")
	assert.Error(t, err)
}

func TestResolveDailies(t *testing.T) {
	p, err := Resolve("/data", "dailies", "2026-03-05")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data", "sessions", "2026-03-05", "dailies-2026-03-05.md"), p)
}

func TestTypeDirSessionsAndDailiesShareDirectory(t *testing.T) {
	sessionsDir, err := TypeDir("/data", "sessions")
	require.NoError(t, err)
	dailiesDir, err := TypeDir("/data", "dailies")
	require.NoError(t, err)
	assert.Equal(t, sessionsDir, dailiesDir)
}

func TestValidateTypeNameRejectsTraversal(t *testing.T) {
	assert.Error(t, ValidateTypeName("../escape"))
	assert.Error(t, ValidateTypeName(""))
	assert.NoError(t, ValidateTypeName("tasks"))
}
