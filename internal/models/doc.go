// Package models defines the core domain models for settleup.
//
// # Models
//
//   - User: Registered user account
//   - Group: A set of users who share expenses; the creator is its admin
//   - Expense: One payment made by a member on behalf of the group
//   - RecurringExpense: A template that materializes into expenses on a schedule
//   - AuditEntry: A record of an expense being created, updated or deleted
//   - Ledger: A consistent snapshot of a group's members and expenses
//
// # Design Principles
//
// 1. **IDs not pointers**: relationships are ID strings (UUID format)
// 2. **Derived values are never stored**: balances and settlement transactions are
// computed from a Ledger on every request
// 3. **Typed patches**: partial updates go through Patch structs whose nil fields
// mean "leave unchanged"
package models
