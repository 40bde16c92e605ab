package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMatching(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(KindRemoteWriteFailed, "entry.update", cause)

	assert.True(t, errors.Is(err, ErrRemoteWriteFailed))
	assert.False(t, errors.Is(err, ErrRemoteReadFailed))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, KindRemoteWriteFailed, KindOf(fmt.Errorf("outer: %w", err)))
	assert.Equal(t, "entry.update: remote_write_failed: connection reset", err.Error())
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(KindNotFound, "op", nil))
	assert.NoError(t, Wrapf(KindNotFound, "op", nil, "x %d", 1))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, KindUnauthenticated, KindOf(Unauthenticated("entry.delete")))
}
