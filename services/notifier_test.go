package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiNotifierForwardsToAll(t *testing.T) {
	first, second := &recordingNotifier{}, &recordingNotifier{}
	multi := MultiNotifier{first, second, LogNotifier{Logger: nopLogger()}}

	require.NoError(t, multi.NotifyUser(context.Background(), "u@x.org", "s", "b"))
	require.NoError(t, multi.NotifyAdmins(context.Background(), "s", "b", []string{"a@x.org"}))

	assert.Len(t, first.sent, 2)
	assert.Len(t, second.sent, 2)
}

func TestMultiNotifierStopsAtFirstError(t *testing.T) {
	boom := errors.New("boom")
	failing, after := &recordingNotifier{err: boom}, &recordingNotifier{}
	multi := MultiNotifier{failing, after}

	assert.ErrorIs(t, multi.NotifyUser(context.Background(), "u@x.org", "s", "b"), boom)
	assert.Empty(t, after.sent)
}
