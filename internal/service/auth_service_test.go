package service

import (
	"context"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/settleup/pkg/api"
)

func TestRegisterAndLogin(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	reg, err := env.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{
		Email:    " Alice@Example.com ",
		Password: "password123",
	}))
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", reg.Msg.User.Email)
	assert.Equal(t, "alice", reg.Msg.User.DisplayName)
	assert.NotEmpty(t, reg.Msg.Token)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := env.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{
			Email:    "ALICE@example.com",
			Password: "password123",
		}))
		requireCode(t, connect.CodeAlreadyExists, err)
	})

	t.Run("weak password", func(t *testing.T) {
		_, err := env.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{
			Email:    "bob@example.com",
			Password: "short",
		}))
		requireCode(t, connect.CodeInvalidArgument, err)
	})

	t.Run("missing email", func(t *testing.T) {
		_, err := env.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{Password: "password123"}))
		requireCode(t, connect.CodeInvalidArgument, err)
	})

	login, err := env.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{
		Email:    "alice@example.com",
		Password: "password123",
	}))
	require.NoError(t, err)
	assert.Equal(t, reg.Msg.User.ID, login.Msg.User.ID)
	assert.NotEmpty(t, login.Msg.Token)

	t.Run("wrong password", func(t *testing.T) {
		_, err := env.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{
			Email:    "alice@example.com",
			Password: "wrong-password",
		}))
		requireCode(t, connect.CodeUnauthenticated, err)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := env.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{
			Email:    "nobody@example.com",
			Password: "password123",
		}))
		requireCode(t, connect.CodeUnauthenticated, err)
	})
}

func TestCurrentUserAndGetUser(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	me, err := env.auth.GetCurrentUser(ctx, as(alice, &api.GetCurrentUserRequest{}))
	require.NoError(t, err)
	assert.Equal(t, alice.ID, me.Msg.User.ID)
	assert.Equal(t, alice.Email, me.Msg.User.Email)

	other, err := env.auth.GetUser(ctx, as(alice, &api.GetUserRequest{UserID: bob.ID}))
	require.NoError(t, err)
	assert.Equal(t, "bob", other.Msg.User.DisplayName)

	_, err = env.auth.GetUser(ctx, as(alice, &api.GetUserRequest{UserID: "missing"}))
	requireCode(t, connect.CodeNotFound, err)

	_, err = env.auth.GetCurrentUser(ctx, connect.NewRequest(&api.GetCurrentUserRequest{}))
	requireCode(t, connect.CodeUnauthenticated, err)

	garbage := testUser{Token: "not-a-jwt"}
	_, err = env.auth.GetCurrentUser(ctx, as(garbage, &api.GetCurrentUserRequest{}))
	requireCode(t, connect.CodeUnauthenticated, err)
}

func TestLogout(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	alice := env.register(t, "alice")

	// A second session must survive logging out of the first
	login, err := env.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{
		Email:    alice.Email,
		Password: "password123",
	}))
	require.NoError(t, err)
	other := testUser{ID: alice.ID, Email: alice.Email, Token: login.Msg.Token}

	_, err = env.auth.Logout(ctx, as(alice, &api.LogoutRequest{}))
	require.NoError(t, err)

	_, err = env.auth.GetCurrentUser(ctx, as(alice, &api.GetCurrentUserRequest{}))
	requireCode(t, connect.CodeUnauthenticated, err)

	_, err = env.groups.ListGroups(ctx, as(alice, &api.ListGroupsRequest{}))
	requireCode(t, connect.CodeUnauthenticated, err)

	_, err = env.auth.GetCurrentUser(ctx, as(other, &api.GetCurrentUserRequest{}))
	require.NoError(t, err)

	t.Run("denylist unavailable", func(t *testing.T) {
		env.redis.Close()
		_, err := env.auth.GetCurrentUser(ctx, as(other, &api.GetCurrentUserRequest{}))
		requireCode(t, connect.CodeUnavailable, err)
	})
}
