package registry

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

var (
	// ErrDuplicateOperation is returned when a service declares an operation name twice.
	ErrDuplicateOperation = errors.New("duplicate operation")
	// ErrDuplicateService is returned when a qualified service name is registered twice.
	ErrDuplicateService = errors.New("duplicate service")
	// ErrInvalidName is returned for empty or malformed service and operation names.
	ErrInvalidName = errors.New("invalid name")
	// ErrRegistryFrozen is returned when registering after Freeze.
	ErrRegistryFrozen = errors.New("operation registry frozen")
	// ErrHandlerType is returned when the constructor yields a nil handler.
	ErrHandlerType = errors.New("invalid handler")
)

// Service is a registered owner type: a constructor plus its declared operations.
type Service struct {
	Name        string
	Description string
	HandlerType reflect.Type

	construct func(CallContext) (any, error)
	ops       map[string]*Operation
	order     []string
}

// ShortName returns the last dot-separated segment of the qualified name.
func (s *Service) ShortName() string {
	if i := strings.LastIndexByte(s.Name, '.'); i >= 0 {
		return s.Name[i+1:]
	}
	return s.Name
}

// New constructs a fresh handler for one dispatch.
func (s *Service) New(cc CallContext) (any, error) {
	h, err := s.construct(cc)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, ErrHandlerType
	}
	if v := reflect.ValueOf(h); v.Kind() == reflect.Pointer && v.IsNil() {
		return nil, ErrHandlerType
	}
	return h, nil
}

// Operation returns the operation declared under name, exposed or not.
func (s *Service) Operation(name string) (*Operation, bool) {
	op, ok := s.ops[name]
	return op, ok
}

// Exposed returns the operation declared under name only when it carries the
// exposed marker.
func (s *Service) Exposed(name string) (*Operation, bool) {
	op, ok := s.ops[name]
	if !ok || !op.Is(FlagExposed) {
		return nil, false
	}
	return op, true
}

// Operations returns the declared operations in declaration order.
func (s *Service) Operations() []*Operation {
	out := make([]*Operation, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.ops[name])
	}
	return out
}

// Definition is a service under construction, ready to be added to a [Registry].
type Definition interface {
	Service() (*Service, error)
}

// Def declares a service whose handler type is H.
type Def[H any] struct {
	svc  *Service
	errs []error
}

// NewService declares a service under a qualified name such as "shop.Cart".
// construct builds one handler per dispatch; when nil, pointer-to-struct handlers
// are allocated with new and other handler types use their zero value.
func NewService[H any](name string, construct func(CallContext) (H, error)) *Def[H] {
	d := &Def[H]{svc: &Service{
		Name:        name,
		HandlerType: reflect.TypeOf((*H)(nil)).Elem(),
		ops:         make(map[string]*Operation),
	}}

	if !validQualifiedName(name) {
		d.errs = append(d.errs, fmt.Errorf("%w: service %q", ErrInvalidName, name))
	}

	if construct == nil {
		construct = defaultConstructor[H]()
	}
	d.svc.construct = func(cc CallContext) (any, error) {
		return construct(cc)
	}
	return d
}

// Describe sets the service description.
func (d *Def[H]) Describe(text string) *Def[H] {
	d.svc.Description = text
	return d
}

// Service implements [Definition]. It reports every registration error collected
// while declaring operations.
func (d *Def[H]) Service() (*Service, error) {
	if len(d.errs) > 0 {
		return nil, errors.Join(d.errs...)
	}
	return d.svc, nil
}

func (d *Def[H]) add(name string, params []reflect.Type, result reflect.Type, inv invoker, opts []Option) {
	if !validOperationName(name) {
		d.errs = append(d.errs, fmt.Errorf("%w: operation %q on %s", ErrInvalidName, name, d.svc.Name))
		return
	}
	if _, exists := d.svc.ops[name]; exists {
		d.errs = append(d.errs, fmt.Errorf("%w: %s.%s", ErrDuplicateOperation, d.svc.Name, name))
		return
	}

	op := &Operation{
		Owner:  d.svc.Name,
		Name:   name,
		Params: params,
		Result: result,
		invoke: inv,
	}
	for _, opt := range opts {
		opt(op)
	}

	d.svc.ops[name] = op
	d.svc.order = append(d.svc.order, name)
}

func defaultConstructor[H any]() func(CallContext) (H, error) {
	t := reflect.TypeOf((*H)(nil)).Elem()
	if t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct {
		return func(CallContext) (H, error) {
			return reflect.New(t.Elem()).Interface().(H), nil
		}
	}
	return func(CallContext) (H, error) {
		var zero H
		return zero, nil
	}
}

func validQualifiedName(name string) bool {
	if name == "" || strings.ContainsAny(name, "/ ") {
		return false
	}
	for _, seg := range strings.Split(name, ".") {
		if seg == "" {
			return false
		}
	}
	return true
}

func validOperationName(name string) bool {
	return name != "" && !strings.ContainsAny(name, "/. ")
}

// Registry maps qualified service names to services.
type Registry struct {
	services map[string]*Service
	frozen   bool
}

// New returns an empty [Registry].
func New() *Registry {
	return &Registry{services: make(map[string]*Service)}
}

// Register adds service definitions. Nothing is added when any definition fails.
func (r *Registry) Register(defs ...Definition) error {
	if r.frozen {
		return ErrRegistryFrozen
	}

	pending := make(map[string]*Service, len(defs))
	var errs []error
	for _, def := range defs {
		svc, err := def.Service()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, exists := r.services[svc.Name]; exists {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateService, svc.Name))
			continue
		}
		if _, exists := pending[svc.Name]; exists {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateService, svc.Name))
			continue
		}
		pending[svc.Name] = svc
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	for name, svc := range pending {
		r.services[name] = svc
	}
	return nil
}

// Lookup returns the service registered under a qualified name.
func (r *Registry) Lookup(qualified string) (*Service, bool) {
	svc, ok := r.services[qualified]
	return svc, ok
}

// Services returns the registered services sorted by name.
func (r *Registry) Services() []*Service {
	out := make([]*Service, 0, len(r.services))
	for _, svc := range r.services {
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered services.
func (r *Registry) Len() int { return len(r.services) }

// Freeze makes the registry read-only. Lookups on a frozen registry are safe for
// concurrent use.
func (r *Registry) Freeze() { r.frozen = true }
