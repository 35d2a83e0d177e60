package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/auth"
	"github.com/mmynk/settleup/internal/calculator"
	"github.com/mmynk/settleup/internal/middleware"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
)

var (
	errNotMember      = errors.New("caller is not a member of this group")
	errNotAdmin       = errors.New("only the group admin can do this")
	errNotPayer       = errors.New("only the payer or the group admin can change this expense")
	errAdminRemoval   = errors.New("the group admin cannot be removed")
	errMissingGroupID = errors.New("group_id is required")

	errNotRecurringPayer = errors.New("only the payer or the group admin can change this recurring expense")
)

// toConnectError maps domain errors to Connect codes. Anything unrecognized is
// an internal error.
func toConnectError(err error) error {
	var connectErr *connect.Error
	switch {
	case errors.As(err, &connectErr):
		return err
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, storage.ErrAlreadyExists):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, calculator.ErrInvalidExpenseData):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

func invalidArgument(format string, args ...any) error {
	return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf(format, args...))
}

// callerID returns the authenticated user, or Unauthenticated when the auth
// interceptor did not run.
func callerID(ctx context.Context) (string, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	return userID, nil
}

// memberGroup loads groupID and checks that userID belongs to it.
func memberGroup(ctx context.Context, store storage.GroupStore, groupID, userID string) (*models.Group, error) {
	if groupID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errMissingGroupID)
	}
	group, err := store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, toConnectError(err)
	}
	if !group.IsMember(userID) {
		slog.Warn("Access denied", "group_id", groupID, "user_id", userID, "reason", errNotMember)
		return nil, connect.NewError(connect.CodePermissionDenied, errNotMember)
	}
	return group, nil
}

// adminGroup loads groupID and checks that userID administers it.
func adminGroup(ctx context.Context, store storage.GroupStore, groupID, userID string) (*models.Group, error) {
	group, err := memberGroup(ctx, store, groupID, userID)
	if err != nil {
		return nil, err
	}
	if !group.IsAdmin(userID) {
		slog.Warn("Access denied", "group_id", groupID, "user_id", userID, "reason", errNotAdmin)
		return nil, connect.NewError(connect.CodePermissionDenied, errNotAdmin)
	}
	return group, nil
}
