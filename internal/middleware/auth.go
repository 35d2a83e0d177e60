package middleware

import (
	"context"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// UserIDKey is the context key for storing the authenticated user ID.
	UserIDKey contextKey = "user_id"
	// ClaimsKey is the context key for the validated token claims.
	ClaimsKey contextKey = "claims"
)

// GetUserID extracts the user ID from the context.
// Returns empty string if not found.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}

// GetClaims returns the claims of the token that authenticated the request, or nil.
func GetClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(ClaimsKey).(*auth.Claims)
	return claims
}

// WithClaims returns a copy of ctx carrying claims as the authenticated identity.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
	return context.WithValue(ctx, ClaimsKey, claims)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", auth.ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", auth.ErrInvalidToken
	}
	return token, nil
}

// RequireAuth returns an interceptor that validates the bearer token, rejects
// revoked tokens and stores the caller's claims in the request context.
func RequireAuth(jwtManager *auth.JWTManager, denylist auth.TokenDenylist) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			procedure := req.Spec().Procedure
			tokenString, err := BearerToken(req.Header().Get("Authorization"))
			if err != nil {
				slog.Warn("RPC rejected", "procedure", procedure, "error", err)
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}

			claims, err := jwtManager.Validate(tokenString)
			if err != nil {
				slog.Warn("RPC rejected", "procedure", procedure, "error", err)
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}

			revoked, err := denylist.IsRevoked(ctx, claims.ID)
			if err != nil {
				slog.Error("Failed to check token denylist", "error", err, "user_id", claims.UserID)
				return nil, connect.NewError(connect.CodeUnavailable, err)
			}
			if revoked {
				slog.Warn("RPC rejected", "procedure", procedure, "user_id", claims.UserID, "error", auth.ErrRevokedToken)
				return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrRevokedToken)
			}

			return next(WithClaims(ctx, claims), req)
		}
	}
}
