package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/settleup/internal/auth"
	"github.com/mmynk/settleup/internal/metrics"
	"github.com/mmynk/settleup/internal/middleware"
	"github.com/mmynk/settleup/internal/storage/sqlite"
	"github.com/mmynk/settleup/pkg/api"
)

// testEnv is a running server backed by a temp SQLite store, with the same
// interceptor chain as production.
type testEnv struct {
	store     *sqlite.SQLiteStore
	redis     *miniredis.Miniredis
	metrics   *metrics.Metrics
	auth      *api.AuthServiceClient
	groups    *api.GroupServiceClient
	expenses  *api.ExpenseServiceClient
	recurring *api.RecurringServiceClient
}

// testUser is a registered account and its session token.
type testUser struct {
	ID    string
	Email string
	Token string
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	denylist := auth.NewRedisDenylist(client)

	authenticator, err := auth.NewPasswordAuthenticator(store, auth.HashConfig{Algorithm: "bcrypt", Cost: bcrypt.MinCost})
	require.NoError(t, err)
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	m := metrics.New()

	logged := middleware.LoggingInterceptor(m)
	public := []connect.HandlerOption{connect.WithInterceptors(logged)}
	authed := []connect.HandlerOption{connect.WithInterceptors(middleware.RequireAuth(jwtManager, denylist), logged)}

	mux := http.NewServeMux()
	mux.Handle(api.NewAuthServiceHandler(NewAuthService(authenticator, jwtManager, denylist, store, slog.Default()), public, authed))
	mux.Handle(api.NewGroupServiceHandler(NewGroupService(store, m), authed...))
	mux.Handle(api.NewExpenseServiceHandler(NewExpenseService(store), authed...))
	mux.Handle(api.NewRecurringServiceHandler(NewRecurringService(store), authed...))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testEnv{
		store:     store,
		redis:     mr,
		metrics:   m,
		auth:      api.NewAuthServiceClient(server.Client(), server.URL),
		groups:    api.NewGroupServiceClient(server.Client(), server.URL),
		expenses:  api.NewExpenseServiceClient(server.Client(), server.URL),
		recurring: api.NewRecurringServiceClient(server.Client(), server.URL),
	}
}

// register creates an account named name and returns it with a valid token.
func (e *testEnv) register(t *testing.T, name string) testUser {
	t.Helper()
	email := fmt.Sprintf("%s@example.com", name)
	resp, err := e.auth.Register(context.Background(), connect.NewRequest(&api.RegisterRequest{
		Email:       email,
		DisplayName: name,
		Password:    "password123",
	}))
	require.NoError(t, err)
	return testUser{ID: resp.Msg.User.ID, Email: email, Token: resp.Msg.Token}
}

// createGroup creates a group administered by admin containing members.
func (e *testEnv) createGroup(t *testing.T, admin testUser, members ...testUser) *api.Group {
	t.Helper()
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	resp, err := e.groups.CreateGroup(context.Background(), as(admin, &api.CreateGroupRequest{
		Name:    "Roommates",
		Members: ids,
	}))
	require.NoError(t, err)
	return resp.Msg.Group
}

// as builds a request authenticated as u.
func as[T any](u testUser, msg *T) *connect.Request[T] {
	req := connect.NewRequest(msg)
	req.Header().Set("Authorization", "Bearer "+u.Token)
	return req
}

func requireCode(t *testing.T, want connect.Code, err error) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, want, connect.CodeOf(err), "error: %v", err)
}

func balanceOf(resp *api.GetGroupBalancesResponse, userID string) float64 {
	for _, b := range resp.Balances {
		if b.UserID == userID {
			return b.Amount
		}
	}
	return 0
}
