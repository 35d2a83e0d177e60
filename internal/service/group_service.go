package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/auth"
	"github.com/mmynk/settleup/internal/calculator"
	"github.com/mmynk/settleup/internal/metrics"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
	"github.com/mmynk/settleup/pkg/api"
)

// GroupService implements the Connect GroupService
type GroupService struct {
	store   storage.Store
	metrics *metrics.Metrics
}

var _ api.GroupServiceHandler = (*GroupService)(nil)

// NewGroupService creates a new GroupService with the given storage backend.
func NewGroupService(store storage.Store, m *metrics.Metrics) *GroupService {
	return &GroupService{store: store, metrics: m}
}

// CreateGroup creates a new group administered by the caller.
func (s *GroupService) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("CreateGroup request received",
		"name", req.Msg.Name,
		"members_count", len(req.Msg.Members),
		"user_id", userID,
	)

	name := strings.TrimSpace(req.Msg.Name)
	if name == "" {
		return nil, invalidArgument("group name is required")
	}
	if err := s.requireUsers(ctx, req.Msg.Members); err != nil {
		return nil, err
	}

	group := &models.Group{
		Name:    name,
		AdminID: userID,
		Members: req.Msg.Members,
	}

	// Save to storage (generates ID and CreatedAt)
	if err := s.store.CreateGroup(ctx, group); err != nil {
		slog.Error("CreateGroup failed", "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Group created", "group_id", group.ID, "admin_id", userID)
	return connect.NewResponse(&api.CreateGroupResponse{Group: toAPIGroup(group)}), nil
}

// requireUsers checks that every id names a registered user.
func (s *GroupService) requireUsers(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	users, err := s.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return toConnectError(err)
	}
	for _, id := range ids {
		if _, ok := users[id]; !ok {
			return invalidArgument("unknown user %q", id)
		}
	}
	return nil
}

// GetGroup retrieves a group by ID.
func (s *GroupService) GetGroup(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("GetGroup request received", "group_id", req.Msg.GroupID)

	group, err := memberGroup(ctx, s.store, req.Msg.GroupID, userID)
	if err != nil {
		return nil, err
	}

	return connect.NewResponse(&api.GetGroupResponse{Group: toAPIGroup(group)}), nil
}

// ListGroups retrieves the groups the caller belongs to.
func (s *GroupService) ListGroups(ctx context.Context, req *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	groups, err := s.store.ListGroupsForUser(ctx, userID)
	if err != nil {
		slog.Error("ListGroups failed", "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}

	out := make([]*api.Group, len(groups))
	for i, group := range groups {
		out[i] = toAPIGroup(group)
	}

	slog.Info("ListGroups successful", "user_id", userID, "count", len(groups))
	return connect.NewResponse(&api.ListGroupsResponse{Groups: out}), nil
}

// UpdateGroup renames a group. Admin only.
func (s *GroupService) UpdateGroup(ctx context.Context, req *connect.Request[api.UpdateGroupRequest]) (*connect.Response[api.UpdateGroupResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("UpdateGroup request received", "group_id", req.Msg.GroupID)

	if _, err := adminGroup(ctx, s.store, req.Msg.GroupID, userID); err != nil {
		return nil, err
	}

	var patch models.GroupPatch
	if req.Msg.Name != nil {
		name := strings.TrimSpace(*req.Msg.Name)
		if name == "" {
			return nil, invalidArgument("group name cannot be empty")
		}
		patch.Name = &name
	}

	group, err := s.store.UpdateGroup(ctx, req.Msg.GroupID, patch)
	if err != nil {
		slog.Error("UpdateGroup failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Group updated", "group_id", group.ID)
	return connect.NewResponse(&api.UpdateGroupResponse{Group: toAPIGroup(group)}), nil
}

// DeleteGroup removes a group with all its expenses. Admin only.
func (s *GroupService) DeleteGroup(ctx context.Context, req *connect.Request[api.DeleteGroupRequest]) (*connect.Response[api.DeleteGroupResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("DeleteGroup request received", "group_id", req.Msg.GroupID)

	if _, err := adminGroup(ctx, s.store, req.Msg.GroupID, userID); err != nil {
		return nil, err
	}

	if err := s.store.DeleteGroup(ctx, req.Msg.GroupID); err != nil {
		slog.Error("DeleteGroup failed", "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Group deleted", "group_id", req.Msg.GroupID)
	return connect.NewResponse(&api.DeleteGroupResponse{}), nil
}

// AddMember adds a registered user to a group. Any member may invite.
func (s *GroupService) AddMember(ctx context.Context, req *connect.Request[api.AddMemberRequest]) (*connect.Response[api.AddMemberResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("AddMember request received", "group_id", req.Msg.GroupID, "member_id", req.Msg.UserID)

	group, err := memberGroup(ctx, s.store, req.Msg.GroupID, userID)
	if err != nil {
		return nil, err
	}

	var user *models.User
	switch {
	case req.Msg.UserID != "":
		user, err = s.store.GetUserByID(ctx, req.Msg.UserID)
	case req.Msg.Email != "":
		user, err = s.store.GetUserByEmail(ctx, auth.NormalizeEmail(req.Msg.Email))
	default:
		return nil, invalidArgument("user_id or email is required")
	}
	if err != nil {
		return nil, toConnectError(err)
	}

	if err := s.store.AddGroupMember(ctx, group.ID, user.ID); err != nil {
		slog.Error("AddMember failed", "group_id", group.ID, "member_id", user.ID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Member added", "group_id", group.ID, "member_id", user.ID)
	return connect.NewResponse(&api.AddMemberResponse{
		Member: &api.Member{
			UserID:      user.ID,
			DisplayName: user.DisplayName,
			Email:       user.Email,
			IsAdmin:     group.IsAdmin(user.ID),
		},
	}), nil
}

// ListMembers returns a group's members with their profiles.
func (s *GroupService) ListMembers(ctx context.Context, req *connect.Request[api.ListMembersRequest]) (*connect.Response[api.ListMembersResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	group, err := memberGroup(ctx, s.store, req.Msg.GroupID, userID)
	if err != nil {
		return nil, err
	}

	users, err := s.store.GetUsersByIDs(ctx, group.Members)
	if err != nil {
		return nil, toConnectError(err)
	}

	members := make([]*api.Member, len(group.Members))
	for i, id := range group.Members {
		member := &api.Member{UserID: id, IsAdmin: group.IsAdmin(id)}
		if u, ok := users[id]; ok {
			member.DisplayName = u.DisplayName
			member.Email = u.Email
		}
		members[i] = member
	}

	return connect.NewResponse(&api.ListMembersResponse{Members: members}), nil
}

// RemoveMember removes a member from a group. Admin only; the admin stays.
func (s *GroupService) RemoveMember(ctx context.Context, req *connect.Request[api.RemoveMemberRequest]) (*connect.Response[api.RemoveMemberResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("RemoveMember request received", "group_id", req.Msg.GroupID, "member_id", req.Msg.UserID)

	group, err := adminGroup(ctx, s.store, req.Msg.GroupID, userID)
	if err != nil {
		return nil, err
	}
	if group.IsAdmin(req.Msg.UserID) {
		return nil, connect.NewError(connect.CodeFailedPrecondition, errAdminRemoval)
	}

	if err := s.store.RemoveGroupMember(ctx, group.ID, req.Msg.UserID); err != nil {
		slog.Error("RemoveMember failed", "group_id", group.ID, "member_id", req.Msg.UserID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Member removed", "group_id", group.ID, "member_id", req.Msg.UserID)
	return connect.NewResponse(&api.RemoveMemberResponse{}), nil
}

// GetGroupBalances computes every member's net balance and the payments that
// settle the group, from one consistent read of members and expenses.
func (s *GroupService) GetGroupBalances(ctx context.Context, req *connect.Request[api.GetGroupBalancesRequest]) (*connect.Response[api.GetGroupBalancesResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	groupID := req.Msg.GroupID
	slog.Info("GetGroupBalances request received", "group_id", groupID)

	if groupID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errMissingGroupID)
	}

	ledger, err := s.store.GetLedger(ctx, groupID)
	if err != nil {
		slog.Error("GetGroupBalances failed - could not read ledger", "group_id", groupID, "error", err)
		return nil, toConnectError(err)
	}
	if !slices.Contains(ledger.Members, userID) {
		return nil, connect.NewError(connect.CodePermissionDenied, errNotMember)
	}

	balances, txns := calculator.Settle(ledger.Members, toCalculatorExpenses(ledger.Expenses))
	s.metrics.ObserveSettlement(len(txns))

	ids := make([]string, 0, len(balances))
	for id := range balances {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]*api.Balance, len(ids))
	for i, id := range ids {
		out[i] = &api.Balance{UserID: id, Amount: balances[id]}
	}

	transactions := make([]*api.Transaction, len(txns))
	for i, txn := range txns {
		transactions[i] = &api.Transaction{PayerID: txn.PayerID, PayeeID: txn.PayeeID, Amount: txn.Amount}
	}

	slog.Info("GetGroupBalances successful",
		"group_id", groupID,
		"expenses_count", len(ledger.Expenses),
		"members_count", len(ledger.Members),
		"transactions_count", len(txns),
	)

	return connect.NewResponse(&api.GetGroupBalancesResponse{
		GroupID:      groupID,
		Balances:     out,
		Transactions: transactions,
	}), nil
}

var errSelfSettlement = errors.New("payer and payee must differ")

// RecordSettlement records a repayment from PayerID to PayeeID as an expense
// paid by the debtor and owed entirely by the creditor, which moves both
// balances toward zero.
func (s *GroupService) RecordSettlement(ctx context.Context, req *connect.Request[api.RecordSettlementRequest]) (*connect.Response[api.RecordSettlementResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("RecordSettlement request received",
		"group_id", req.Msg.GroupID,
		"payer_id", req.Msg.PayerID,
		"payee_id", req.Msg.PayeeID,
		"amount", req.Msg.Amount,
	)

	group, err := memberGroup(ctx, s.store, req.Msg.GroupID, userID)
	if err != nil {
		return nil, err
	}

	payerID := req.Msg.PayerID
	if payerID == "" {
		payerID = userID
	}
	payeeID := req.Msg.PayeeID
	if payeeID == "" {
		return nil, invalidArgument("payee_id is required")
	}
	if payerID == payeeID {
		return nil, connect.NewError(connect.CodeInvalidArgument, errSelfSettlement)
	}
	if userID != payerID && userID != payeeID && !group.IsAdmin(userID) {
		return nil, connect.NewError(connect.CodePermissionDenied,
			errors.New("only the payer, the payee or the group admin can record a settlement"))
	}

	amount := calculator.Round(req.Msg.Amount)
	shares := map[string]float64{payeeID: amount}
	if err := calculator.ValidateExpense(calculator.Expense{PayerID: payerID, Amount: amount, Shares: shares}, group.Members); err != nil {
		return nil, toConnectError(err)
	}

	expense := &models.Expense{
		GroupID:      group.ID,
		PayerID:      payerID,
		Description:  fmt.Sprintf("Settlement: %s paid %s", payerID, payeeID),
		Amount:       amount,
		Shares:       shares,
		IsSettlement: true,
	}
	if err := s.store.CreateExpense(ctx, expense, userID); err != nil {
		slog.Error("RecordSettlement failed", "group_id", group.ID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Settlement recorded", "group_id", group.ID, "expense_id", expense.ID)
	return connect.NewResponse(&api.RecordSettlementResponse{Expense: toAPIExpense(expense)}), nil
}
