package repositories

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/tennis-tournament/models"
)

var errPipelineDown = errors.New("pipeline unavailable")

// failingPipelines fails every pipelined call while enabled. Single commands,
// such as the index claims, still go through.
type failingPipelines struct {
	enabled atomic.Bool
}

func (h *failingPipelines) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *failingPipelines) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return next
}

func (h *failingPipelines) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		if h.enabled.Load() {
			return errPipelineDown
		}
		return next(ctx, cmds)
	}
}

func newFailingRedisStore(t *testing.T) (*RedisStore, *failingPipelines) {
	t.Helper()
	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	hook := &failingPipelines{}
	client.AddHook(hook)

	store := NewRedisStoreWithClient(client)
	t.Cleanup(func() { _ = store.Close() })
	return store, hook
}

func TestRedisCreateReleasesIndexKeysWhenWriteFails(t *testing.T) {
	store, hook := newFailingRedisStore(t)
	users := store.Users()
	ctx := context.Background()

	hook.enabled.Store(true)
	err := users.Create(ctx, &models.User{Username: "rafa", Name: "Rafael", Role: models.RolePlayer})
	require.ErrorIs(t, err, errPipelineDown)
	hook.enabled.Store(false)

	_, err = users.GetByUsername(ctx, "rafa")
	assert.ErrorIs(t, err, ErrUserNotFound)

	user := &models.User{Username: "rafa", Name: "Rafael", Role: models.RolePlayer}
	require.NoError(t, users.Create(ctx, user))
}

func TestRedisUpdateReleasesIndexKeysWhenWriteFails(t *testing.T) {
	store, hook := newFailingRedisStore(t)
	users := store.Users()
	ctx := context.Background()

	user := &models.User{Username: "rafa", Name: "Rafael", Role: models.RolePlayer}
	require.NoError(t, users.Create(ctx, user))

	hook.enabled.Store(true)
	renamed := *user
	renamed.Username = "nadal"
	renamed.Name = "Rafa Nadal"
	require.ErrorIs(t, users.Update(ctx, &renamed), errPipelineDown)
	hook.enabled.Store(false)

	got, err := users.GetByUsername(ctx, "rafa")
	require.NoError(t, err)
	assert.Equal(t, "Rafael", got.Name)

	other := &models.User{Username: "nadal", Name: "Rafa Nadal", Role: models.RolePlayer}
	require.NoError(t, users.Create(ctx, other))
}
