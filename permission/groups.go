package permission

import (
	"errors"
	"sort"
	"sync"
)

// Groups maps user group names to permission masks built from a [Registry].
type Groups struct {
	registry *Registry

	mu     sync.RWMutex
	groups map[string]*Mask
	frozen bool
}

// NewGroups creates an empty group table bound to registry.
func NewGroups(registry *Registry) *Groups {
	return &Groups{
		registry: registry,
		groups:   make(map[string]*Mask),
	}
}

// Define registers a group granting the named permissions. Every name must be
// registered already. When root is true the group also carries the grant-all bit;
// that requires a registry with root reservation.
func (g *Groups) Define(group string, permissionNames []string, root bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.frozen {
		return errors.New("group table frozen")
	}
	if group == "" {
		return errors.New("group name empty")
	}
	if _, exists := g.groups[group]; exists {
		return errors.New("group already defined: " + group)
	}

	mask, err := NewMask(g.registry.Width())
	if err != nil {
		return err
	}

	for _, perm := range permissionNames {
		bit, ok := g.registry.Bit(perm)
		if !ok {
			return errors.New("permission not registered: " + perm)
		}
		mask.Set(bit)
	}

	if root {
		bit, ok := g.registry.RootBit()
		if !ok {
			return errors.New("root group requires a root-reserved registry")
		}
		mask.Set(bit)
	}

	g.groups[group] = mask
	return nil
}

// Mask returns the union of the masks of the given groups. Unknown groups are
// reported through the second return value.
func (g *Groups) Mask(groups ...string) (*Mask, []string) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out, _ := NewMask(g.registry.Width())
	var unknown []string
	for _, name := range groups {
		m, ok := g.groups[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		out.Union(m)
	}
	return out, unknown
}

// Granting returns the sorted names of the groups among candidates whose mask
// has bit set.
func (g *Groups) Granting(bit int, candidates []string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []string
	for _, name := range candidates {
		if m, ok := g.groups[name]; ok && m.Has(bit, g.registry.RootReserved()) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Freeze prevents further group definitions.
func (g *Groups) Freeze() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.frozen = true
}

// Count returns the number of defined groups.
func (g *Groups) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.groups)
}
