package user_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questtrack/questtrack/core/user"
	inmemdb "github.com/questtrack/questtrack/storage/database/inmem"
)

func TestService(t *testing.T) {
	ctx := context.Background()
	svc := user.NewService(inmemdb.NewUserRepository(inmemdb.Open()))

	usr, err := svc.AddUser(ctx, user.NewUser{Username: "manager", Password: "S3cure!Pass", Roles: []string{user.RoleUser}})
	require.NoError(t, err)
	assert.Equal(t, 1, usr.ID)
	assert.False(t, usr.IsAdmin())

	t.Run("Authenticate", func(t *testing.T) {
		got, err := svc.Authenticate(ctx, " Manager ", "S3cure!Pass")
		require.NoError(t, err)
		assert.Equal(t, usr.ID, got.ID)

		_, err = svc.Authenticate(ctx, "manager", "wrong")
		assert.Equal(t, user.ErrNotFound, err)

		_, err = svc.Authenticate(ctx, "nobody", "S3cure!Pass")
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("AddExistingUpdates", func(t *testing.T) {
		updated, err := svc.AddUser(ctx, user.NewUser{Username: "manager", Password: "N3w!Secret", Roles: []string{user.RoleAdmin}})
		require.NoError(t, err)
		assert.Equal(t, usr.ID, updated.ID)
		assert.True(t, updated.IsAdmin())

		_, err = svc.Authenticate(ctx, "manager", "S3cure!Pass")
		assert.Equal(t, user.ErrNotFound, err)
		_, err = svc.Authenticate(ctx, "manager", "N3w!Secret")
		assert.NoError(t, err)
	})

	t.Run("ResetPassword", func(t *testing.T) {
		require.NoError(t, svc.ResetPassword(ctx, "MANAGER", "pwd"))
		got, err := svc.Authenticate(ctx, "manager", "pwd")
		require.NoError(t, err)
		assert.True(t, got.IsAdmin())

		assert.Equal(t, user.ErrNotFound, svc.ResetPassword(ctx, "nobody", "pwd"))
	})

	t.Run("GetByID", func(t *testing.T) {
		got, err := svc.GetByID(ctx, usr.ID)
		require.NoError(t, err)
		assert.Equal(t, "manager", got.Username)

		_, err = svc.GetByID(ctx, 42)
		assert.Equal(t, user.ErrNotFound, err)
	})
}
