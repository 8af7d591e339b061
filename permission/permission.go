package permission

import (
	"sort"

	"github.com/cockroachdb/errors"
)

// Grants is a snapshot of the permission records attached to one resource,
// keyed by action name. A present key means the action is restricted to the
// listed role ids, even when the list is empty. A missing key means no
// records exist and the action's default policy applies.
type Grants map[string][]string

// Restricted reports whether any record exists for the action.
func (g Grants) Restricted(a Action) bool {
	_, ok := g[a.Name]
	return ok
}

// RolesFor returns the role ids granted the action.
func (g Grants) RolesFor(a Action) []string { return g[a.Name] }

// Clone returns a deep copy with sorted, de-duplicated role ids.
func (g Grants) Clone() Grants {
	out := make(Grants, len(g))
	for name, roles := range g {
		out[name] = dedupe(roles)
	}
	return out
}

// Validate rejects grants that name unregistered action kinds.
func (g Grants) Validate() error {
	for name := range g {
		if _, ok := Lookup(name); !ok {
			return errors.Wrapf(ErrUnknownAction, "%q", name)
		}
	}
	return nil
}

// Names returns the restricted action names sorted.
func (g Grants) Names() []string {
	out := make([]string, 0, len(g))
	for name := range g {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Allow decides whether a role set may perform the action given a grant
// snapshot. The action is resolved through the registry, so its name is
// case-insensitive and its registered default applies to unrestricted
// actions. Unregistered actions are denied.
func Allow(roles RoleSet, a Action, g Grants) bool {
	a, ok := Lookup(a.Name)
	if !ok {
		return false
	}
	granted, restricted := g[a.Name]
	if !restricted {
		return a.Default == DefaultAllow
	}
	return roles.IntersectsAny(granted)
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
