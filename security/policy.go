package security

import (
	"errors"
	"fmt"
	"sort"

	"github.com/MrEthical07/netapi/permission"
)

// RootGrant is the group permission entry that grants every operation.
const RootGrant = "*"

var (
	// ErrUnknownGroup is returned when a profile references an undefined group.
	ErrUnknownGroup = errors.New("unknown user group")
	// ErrEmptyPolicy is returned when a policy is built without groups.
	ErrEmptyPolicy = errors.New("policy defines no groups")
)

// Policy maps user groups to the operations they may invoke. A Policy is frozen
// once built and safe for concurrent reads.
type Policy struct {
	registry *permission.Registry
	groups   *permission.Groups
}

// NewPolicy builds a frozen [Policy] from group definitions. Each group lists
// qualified operation names ("Owner.operation"); the entry [RootGrant] grants
// every operation. width selects the permission mask width (64/128/256/512).
func NewPolicy(width int, groups map[string][]string) (*Policy, error) {
	if len(groups) == 0 {
		return nil, ErrEmptyPolicy
	}

	registry, err := permission.NewRegistry(width, true)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, perm := range groups[name] {
			if perm == RootGrant {
				continue
			}
			if _, err := registry.Ensure(perm); err != nil {
				return nil, fmt.Errorf("group %q: %w", name, err)
			}
		}
	}
	registry.Freeze()

	table := permission.NewGroups(registry)
	for _, name := range names {
		var perms []string
		root := false
		for _, perm := range groups[name] {
			if perm == RootGrant {
				root = true
				continue
			}
			perms = append(perms, perm)
		}
		if err := table.Define(name, perms, root); err != nil {
			return nil, err
		}
	}
	table.Freeze()

	return &Policy{registry: registry, groups: table}, nil
}

// Allows reports whether the union of groups grants owner.method, and which of
// the groups grant it.
func (p *Policy) Allows(groups []string, owner, method string) ([]string, bool) {
	if p == nil {
		return nil, false
	}

	mask, _ := p.groups.Mask(groups...)
	if mask.Empty() {
		return nil, false
	}

	bit, known := p.registry.Bit(owner + "." + method)
	if !known {
		// Unregistered operations are reachable only through the root grant.
		root, _ := p.registry.RootBit()
		if !mask.Has(root, false) {
			return nil, false
		}
		return p.groups.Granting(root, groups), true
	}

	if !mask.Has(bit, p.registry.RootReserved()) {
		return nil, false
	}
	return p.groups.Granting(bit, groups), true
}

// Profile returns a [BasicProfile] for the given groups. Every group must be
// defined by the policy.
func (p *Policy) Profile(groups ...string) (*BasicProfile, error) {
	if _, unknown := p.groups.Mask(groups...); len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrUnknownGroup, unknown)
	}

	out := make([]string, len(groups))
	copy(out, groups)
	return &BasicProfile{policy: p, groups: out}, nil
}

// Permissions returns the number of distinct operation permissions the policy knows.
func (p *Policy) Permissions() int {
	return p.registry.Count()
}
