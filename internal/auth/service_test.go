package auth_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage/sqlite"
)

func newService(t *testing.T) (*auth.Service, *sqlite.Repository) {
	t.Helper()
	repo, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	logger := log.New(log.Config{Level: slog.LevelError})
	return auth.NewService(repo, logger), repo
}

func TestRegisterSeedsDefaultCategories(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, auth.Registration{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "s3cret",
	})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.NotEmpty(t, user.PasswordHash)

	cats, err := repo.CategoriesByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, cats, 13)
	assert.Equal(t, "Food", cats[0].Name)
	assert.Equal(t, "Miscellaneous", cats[12].Name)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		reg  auth.Registration
	}{
		{"missing username", auth.Registration{Email: "a@b.c", Password: "pw"}},
		{"missing email", auth.Registration{Username: "alice", Password: "pw"}},
		{"missing password", auth.Registration{Username: "alice", Email: "a@b.c"}},
		{"blank username", auth.Registration{Username: "   ", Email: "a@b.c", Password: "pw"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.reg)
			assert.ErrorIs(t, err, core.ErrValidation)
		})
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	reg := auth.Registration{Username: "alice", Email: "alice@example.com", Password: "pw"}
	_, err := svc.Register(ctx, reg)
	require.NoError(t, err)

	_, err = svc.Register(ctx, reg)
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, auth.Registration{
		Username: "alice", Email: "alice@example.com", Password: "s3cret",
	})
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	// Wrong password and unknown user fail identically.
	_, wrongPw := svc.Authenticate(ctx, "alice", "nope")
	_, unknown := svc.Authenticate(ctx, "ghost", "s3cret")
	assert.ErrorIs(t, wrongPw, core.ErrAuth)
	assert.ErrorIs(t, unknown, core.ErrAuth)
	assert.Equal(t, wrongPw.Error(), unknown.Error())
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := auth.HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)
	assert.True(t, auth.CheckPassword("hunter2", hash))
	assert.False(t, auth.CheckPassword("hunter3", hash))
}
