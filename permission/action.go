package permission

import (
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
)

// Policy decides the outcome for an action kind that carries no permission
// records on a resource.
type Policy uint8

const (
	DefaultDeny Policy = iota
	DefaultAllow
)

func (p Policy) String() string {
	switch p {
	case DefaultAllow:
		return "DEFAULT_ALLOW"
	case DefaultDeny:
		return "DEFAULT_DENY"
	default:
		return "UNKNOWN"
	}
}

// Action is an action kind governed by authorization.
type Action struct {
	Name        string
	Description string
	Default     Policy
}

func (a Action) String() string { return a.Name }

// Built-in dataset action kinds.
var (
	DatasetAccess = Action{
		Name:        "access",
		Description: "Users having all roles associated with this action are allowed to read the dataset",
		Default:     DefaultAllow,
	}
	DatasetManagePermissions = Action{
		Name:        "manage permissions",
		Description: "Role members can manage the roles associated with permissions on this dataset",
		Default:     DefaultDeny,
	}
)

var (
	ErrUnknownAction   = errors.New("unknown action kind")
	ErrDuplicateAction = errors.New("action kind already registered")
)

var (
	registryMu sync.RWMutex
	registry   = map[string]Action{
		DatasetAccess.Name:            DatasetAccess,
		DatasetManagePermissions.Name: DatasetManagePermissions,
	}
)

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds an action kind to the registry. Names are case-insensitive.
func Register(a Action) error {
	name := normalizeName(a.Name)
	if name == "" {
		return errors.Wrap(ErrUnknownAction, "empty action name")
	}
	a.Name = name
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[name]; ok {
		return errors.Wrapf(ErrDuplicateAction, "%q", name)
	}
	registry[name] = a
	return nil
}

// Lookup returns the registered action kind for name.
func Lookup(name string) (Action, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	a, ok := registry[normalizeName(name)]
	return a, ok
}

// ParseAction is Lookup with an error for unknown names.
func ParseAction(name string) (Action, error) {
	a, ok := Lookup(name)
	if !ok {
		return Action{}, errors.Wrapf(ErrUnknownAction, "%q", name)
	}
	return a, nil
}

// Actions lists registered action kinds sorted by name.
func Actions() []Action {
	registryMu.RLock()
	out := make([]Action, 0, len(registry))
	for _, a := range registry {
		out = append(out, a)
	}
	registryMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
