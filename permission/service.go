package permission

// RoleSet is the set of role ids held by a caller.
type RoleSet map[string]struct{}

// NewRoleSet builds a RoleSet from role ids, skipping empty ids.
func NewRoleSet(ids ...string) RoleSet {
	rs := make(RoleSet, len(ids))
	for _, id := range ids {
		if id != "" {
			rs[id] = struct{}{}
		}
	}
	return rs
}

func (rs RoleSet) Has(id string) bool {
	_, ok := rs[id]
	return ok
}

// IntersectsAny reports whether any of ids is in the set.
func (rs RoleSet) IntersectsAny(ids []string) bool {
	for _, id := range ids {
		if rs.Has(id) {
			return true
		}
	}
	return false
}

// IDs returns the members sorted.
func (rs RoleSet) IDs() []string {
	return dedupe(keys(rs))
}

func keys(rs RoleSet) []string {
	out := make([]string, 0, len(rs))
	for id := range rs {
		out = append(out, id)
	}
	return out
}
