package storage

import (
	"context"
	"testing"

	"github.com/cuemby/swarmroll/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStore runs the registry contract against any Store implementation
func testStore(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		svc := &types.ServiceRef{Name: "api", Repository: "registry.local/api", Tag: "1.0"}
		require.NoError(t, store.CreateService(ctx, svc))
		assert.False(t, svc.CreatedAt.IsZero())

		got, err := store.GetService(ctx, "api")
		require.NoError(t, err)
		assert.Equal(t, "registry.local/api", got.Repository)
		assert.Equal(t, "1.0", got.Tag)
		assert.Equal(t, "registry.local/api:1.0", got.Image())
	})

	t.Run("duplicate name", func(t *testing.T) {
		err := store.CreateService(ctx, &types.ServiceRef{Name: "api", Repository: "other", Tag: "x"})
		assert.ErrorIs(t, err, ErrAlreadyExists)

		got, err := store.GetService(ctx, "api")
		require.NoError(t, err)
		assert.Equal(t, "registry.local/api", got.Repository)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := store.GetService(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list ordered by name", func(t *testing.T) {
		require.NoError(t, store.CreateService(ctx, &types.ServiceRef{Name: "worker", Repository: "registry.local/worker", Tag: "2"}))
		require.NoError(t, store.CreateService(ctx, &types.ServiceRef{Name: "cache", Repository: "redis", Tag: "7"}))

		services, err := store.ListServices(ctx)
		require.NoError(t, err)
		require.Len(t, services, 3)
		assert.Equal(t, "api", services[0].Name)
		assert.Equal(t, "cache", services[1].Name)
		assert.Equal(t, "worker", services[2].Name)
	})

	t.Run("update", func(t *testing.T) {
		before, err := store.GetService(ctx, "api")
		require.NoError(t, err)

		require.NoError(t, store.UpdateService(ctx, &types.ServiceRef{Name: "api", Repository: "registry.local/api", Tag: "1.1"}))

		got, err := store.GetService(ctx, "api")
		require.NoError(t, err)
		assert.Equal(t, "1.1", got.Tag)
		assert.True(t, got.CreatedAt.Equal(before.CreatedAt))
		assert.False(t, got.UpdatedAt.Before(before.UpdatedAt))

		err = store.UpdateService(ctx, &types.ServiceRef{Name: "missing", Repository: "x", Tag: "y"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.DeleteService(ctx, "cache"))
		assert.ErrorIs(t, store.DeleteService(ctx, "cache"), ErrNotFound)

		services, err := store.ListServices(ctx)
		require.NoError(t, err)
		assert.Len(t, services, 2)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, store.Ping(ctx))
	})
}
