package models

import "slices"

// Group represents a set of users who split expenses.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Roommates", "Ski Trip").
	Name string

	// AdminID is the user who created the group. The admin is always a member
	// and cannot be removed.
	AdminID string

	// Members is the list of user IDs in this group, including the admin.
	Members []string

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64
}

// IsMember reports whether userID belongs to the group.
func (g *Group) IsMember(userID string) bool {
	return userID != "" && slices.Contains(g.Members, userID)
}

// IsAdmin reports whether userID administers the group.
func (g *Group) IsAdmin(userID string) bool {
	return userID != "" && g.AdminID == userID
}

// GroupPatch lists the group fields an update may change.
type GroupPatch struct {
	Name *string
}

// Apply copies the set fields of p onto g.
func (p GroupPatch) Apply(g *Group) {
	if p.Name != nil {
		g.Name = *p.Name
	}
}
