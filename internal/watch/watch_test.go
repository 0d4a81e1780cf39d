package watch

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeAndIDFromPathStandardType(t *testing.T) {
	itemType, id, ok := typeAndIDFromPath("/data", filepath.Join("/data", "tasks", "tasks-fix-login.md"))
	assert.True(t, ok)
	assert.Equal(t, "tasks", itemType)
	assert.Equal(t, "fix-login", id)
}

func TestTypeAndIDFromPathSessions(t *testing.T) {
	itemType, id, ok := typeAndIDFromPath("/data", filepath.Join("/data", "sessions", "2026-03-05", "sessions-2026-03-05-09.15.00.000.md"))
	assert.True(t, ok)
	assert.Equal(t, "sessions", itemType)
	assert.Equal(t, "2026-03-05-09.15.00.000", id)
}

func TestTypeAndIDFromPathDailies(t *testing.T) {
	itemType, id, ok := typeAndIDFromPath("/data", filepath.Join("/data", "sessions", "2026-03-05", "dailies-2026-03-05.md"))
	assert.True(t, ok)
	assert.Equal(t, "dailies", itemType)
	assert.Equal(t, "2026-03-05", id)
}

func TestTypeAndIDFromPathRejectsMismatchedPrefix(t *testing.T) {
	_, _, ok := typeAndIDFromPath("/data", filepath.Join("/data", "tasks", "notes-something.md"))
	assert.False(t, ok)
}

func TestTypeAndIDFromPathRejectsUnrecognizedSessionsFile(t *testing.T) {
	_, _, ok := typeAndIDFromPath("/data", filepath.Join("/data", "sessions", "2026-03-05", "readme.md"))
	assert.False(t, ok)
}
