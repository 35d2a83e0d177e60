package storage

// MembersWithAdmin returns members deduplicated, with the admin first.
func MembersWithAdmin(adminID string, members []string) []string {
	seen := make(map[string]bool, len(members)+1)
	out := make([]string, 0, len(members)+1)
	for _, m := range append([]string{adminID}, members...) {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}
