package configstore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Message(t *testing.T) {
	assert.Equal(t, "configstore: update 1234: config is locked",
		NewError(OpUpdate, "1234", ErrLocked).Error())
	assert.Equal(t, "configstore: list: boom",
		NewError(OpList, "", errors.New("boom")).Error())
}

func TestError_Unwrap(t *testing.T) {
	err := fmt.Errorf("handler: %w", NewError(OpRead, "a", ErrNotFound))

	require.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrLocked)

	var storeErr *Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, OpRead, storeErr.Op)
	assert.Equal(t, "a", storeErr.ID)
}

func TestVersionNotFound(t *testing.T) {
	err := VersionNotFound(OpRollback, "a", 7)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "configstore: rollback a: version 7: not found", err.Error())
}
