package registry

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/MrEthical07/netapi/security"
	"github.com/MrEthical07/netapi/session"
)

// Flags are the declarative markers carried by an operation.
type Flags uint8

const (
	FlagExposed Flags = 1 << iota
	FlagSecured
	FlagLogin
	FlagLogout
	FlagValidated
)

// Has reports whether every bit of x is set.
func (f Flags) Has(x Flags) bool { return f&x == x }

func (f Flags) String() string {
	var parts []string
	for _, entry := range []struct {
		flag Flags
		name string
	}{
		{FlagExposed, "exposed"},
		{FlagSecured, "secured"},
		{FlagLogin, "login"},
		{FlagLogout, "logout"},
		{FlagValidated, "validated"},
	} {
		if f.Has(entry.flag) {
			parts = append(parts, entry.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// CallContext is passed to a service constructor for every dispatch. It carries
// the request context, the client session, and the attached security profile,
// which may be nil. Policy is the engine's permission policy; login handlers use
// it to mint profiles. It is nil when no groups are configured.
type CallContext struct {
	Context context.Context
	Session *session.Session
	Profile security.Profile
	Policy  *security.Policy
}

type invoker func(handler any, args []any) (any, error)

// Operation describes one dispatchable operation. It is immutable once its
// registry is frozen.
type Operation struct {
	Owner       string
	Name        string
	Params      []reflect.Type
	Result      reflect.Type
	Flags       Flags
	Description string

	invoke invoker
}

// Is reports whether the operation carries flag.
func (o *Operation) Is(flag Flags) bool { return o.Flags.Has(flag) }

// QualifiedName returns "Owner.Name".
func (o *Operation) QualifiedName() string { return o.Owner + "." + o.Name }

// Invoke calls the operation on handler with args. The handler must have been
// produced by the owning service and args must match Params positionally.
func (o *Operation) Invoke(handler any, args []any) (any, error) {
	if len(args) != len(o.Params) {
		return nil, fmt.Errorf("%s: expected %d arguments, got %d", o.QualifiedName(), len(o.Params), len(args))
	}
	return o.invoke(handler, args)
}

// Option sets a marker on an operation during registration.
type Option func(*Operation)

// Exposed makes the operation reachable through dispatch.
func Exposed() Option { return func(o *Operation) { o.Flags |= FlagExposed } }

// Secured requires an attached profile that allows the operation.
func Secured() Option { return func(o *Operation) { o.Flags |= FlagSecured } }

// Login marks an operation whose result is attached to the session as its profile.
func Login() Option { return func(o *Operation) { o.Flags |= FlagLogin } }

// Logout marks an operation after which the session profile is cleared.
func Logout() Option { return func(o *Operation) { o.Flags |= FlagLogout } }

// Validated runs the configured validator over every bound argument.
func Validated() Option { return func(o *Operation) { o.Flags |= FlagValidated } }

// Describe attaches a human-readable description.
func Describe(text string) Option { return func(o *Operation) { o.Description = text } }
