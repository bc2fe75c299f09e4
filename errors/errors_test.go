package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsExistingKind(t *testing.T) {
	inner := Transient(KindTransport, "graph.upload", errors.New("connection reset"))
	wrapped := Wrap(KindInternal, "pipeline.upload", inner)

	assert.Equal(t, KindTransport, KindOf(wrapped))
	assert.True(t, IsRetryable(wrapped))
	assert.Nil(t, Wrap(KindAPI, "noop", nil))
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.False(t, IsRetryable(errors.New("boom")))
}

func TestMessageStripsPrefix(t *testing.T) {
	err := Auth("graph.upload", 401, errors.New("Error validating access token"))
	assert.Equal(t, "[auth] graph.upload: Error validating access token", err.Error())
	assert.Equal(t, "Error validating access token", Message(err))
	assert.Equal(t, "plain", Message(errors.New("plain")))
	assert.Equal(t, "", Message(nil))
}

func TestIsKindThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("run: %w", New(KindArchiveRead, "archive.open", ErrEmptyInput))
	assert.True(t, IsKind(err, KindArchiveRead))
	assert.True(t, errors.Is(err, ErrEmptyInput))
}
