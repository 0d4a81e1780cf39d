package kberrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsDispatchWithErrorsAs(t *testing.T) {
	err := NewNotFound("item", "tasks-fix-login")
	var nf *NotFound
	if assert.ErrorAs(t, err, &nf) {
		assert.Equal(t, "item", nf.Kind)
		assert.Equal(t, "tasks-fix-login", nf.Key)
	}

	var ir *InvalidRequest
	assert.False(t, errors.As(err, &ir))
}

func TestWrappingErrorsUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewIoError("/data/tasks/tasks-x.md", cause)
	assert.ErrorIs(t, err, cause)

	idxErr := NewIndexError(cause)
	assert.ErrorIs(t, idxErr, cause)

	internal := NewInternal(cause)
	assert.ErrorIs(t, internal, cause)
}

func TestNewIoErrorNilPassthrough(t *testing.T) {
	assert.NoError(t, NewIoError("/x", nil))
	assert.NoError(t, NewIndexError(nil))
	assert.NoError(t, NewInternal(nil))
}

func TestConflictAndInvalidQueryMessages(t *testing.T) {
	err := NewConflict("daily %q already exists", "2026-03-05")
	assert.Contains(t, err.Error(), "2026-03-05")

	qerr := NewInvalidQuery("bogus:value", "unknown search field")
	assert.Contains(t, qerr.Error(), "bogus:value")
}
