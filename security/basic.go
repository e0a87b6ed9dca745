package security

// BasicProfile is a [Profile] backed by a [Policy] and a fixed set of user groups.
type BasicProfile struct {
	policy *Policy
	groups []string
	data   any
}

// IsAllowed returns a descriptor when one of the profile groups grants owner.method.
func (b *BasicProfile) IsAllowed(owner, method string) *MethodDescriptor {
	granting, ok := b.policy.Allows(b.groups, owner, method)
	if !ok {
		return nil
	}
	return &MethodDescriptor{Owner: owner, Method: method, Groups: granting}
}

// UserGroups returns a copy of the profile groups.
func (b *BasicProfile) UserGroups() []string {
	out := make([]string, len(b.groups))
	copy(out, b.groups)
	return out
}

func (b *BasicProfile) SessionData() any { return b.data }

func (b *BasicProfile) SetSessionData(data any) { b.data = data }
