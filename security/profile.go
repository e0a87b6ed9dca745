package security

// MethodDescriptor describes a granted operation. It is returned by
// [Profile.IsAllowed] when the caller may invoke the operation.
type MethodDescriptor struct {
	Owner  string
	Method string
	// Groups lists the profile groups that grant the operation.
	Groups []string
}

// Profile is the capability object attached to a session after a successful login.
//
// Implementations must be safe to use from the request goroutine that owns the
// session; netapi never shares a profile across concurrent dispatches of different
// sessions.
type Profile interface {
	// IsAllowed returns a descriptor when owner.method may be invoked, or nil.
	IsAllowed(owner, method string) *MethodDescriptor
	UserGroups() []string
	SessionData() any
	SetSessionData(data any)
}

// ProfileCodec converts profiles to and from bytes for session persistence.
type ProfileCodec interface {
	EncodeProfile(p Profile) ([]byte, error)
	DecodeProfile(data []byte) (Profile, error)
}
