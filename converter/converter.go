package converter

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"sync"

	"github.com/MrEthical07/netapi/params"
)

var (
	// ErrRegistryFrozen is returned when registering after Freeze.
	ErrRegistryFrozen = errors.New("converter registry frozen")
	// ErrInvalidConverter is returned for nil converters or empty names.
	ErrInvalidConverter = errors.New("invalid converter")
	// ErrUnknownDefault is returned when a default names an unregistered converter.
	ErrUnknownDefault = errors.New("default converter not registered")
)

// RequestConverter deserializes raw request data into a value of a target type.
type RequestConverter interface {
	Name() string
	// Deserialize returns a value whose dynamic type is exactly target.
	Deserialize(p *params.Params, target reflect.Type) (any, error)
}

// ResponseConverter serializes a response envelope onto the response body.
type ResponseConverter interface {
	Name() string
	ContentType() string
	Serialize(w io.Writer, v any) error
}

// Registry is a name-keyed store of request and response converters.
type Registry struct {
	mu              sync.RWMutex
	requests        map[string]RequestConverter
	responses       map[string]ResponseConverter
	defaultRequest  string
	defaultResponse string
	frozen          bool
}

// NewRegistry returns an empty registry whose defaults are "properties" for
// requests and "json" for responses.
func NewRegistry() *Registry {
	return &Registry{
		requests:        make(map[string]RequestConverter),
		responses:       make(map[string]ResponseConverter),
		defaultRequest:  PropertiesName,
		defaultResponse: JSONName,
	}
}

// RegisterRequest adds c under c.Name(), replacing any previous converter with
// the same name.
func (r *Registry) RegisterRequest(c RequestConverter) error {
	if c == nil || c.Name() == "" {
		return ErrInvalidConverter
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrRegistryFrozen
	}
	r.requests[c.Name()] = c
	return nil
}

// RegisterResponse adds c under c.Name(), replacing any previous converter with
// the same name.
func (r *Registry) RegisterResponse(c ResponseConverter) error {
	if c == nil || c.Name() == "" {
		return ErrInvalidConverter
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrRegistryFrozen
	}
	r.responses[c.Name()] = c
	return nil
}

// SetDefaults changes the default request and response format names. Empty names
// keep the current default.
func (r *Registry) SetDefaults(request, response string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrRegistryFrozen
	}
	if request != "" {
		r.defaultRequest = request
	}
	if response != "" {
		r.defaultResponse = response
	}
	return nil
}

// Freeze validates the defaults and makes the registry read-only.
func (r *Registry) Freeze() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.responses[r.defaultResponse]; !ok {
		return fmt.Errorf("%w: response %q", ErrUnknownDefault, r.defaultResponse)
	}
	if _, ok := r.requests[r.defaultRequest]; !ok {
		return fmt.Errorf("%w: request %q", ErrUnknownDefault, r.defaultRequest)
	}
	r.frozen = true
	return nil
}

// Frozen reports whether Freeze has succeeded.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Request returns the request converter registered under name.
func (r *Registry) Request(name string) (RequestConverter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.requests[name]
	return c, ok
}

// Response returns the response converter registered under name, or the default
// response converter when name is unknown.
func (r *Registry) Response(name string) ResponseConverter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.responses[name]; ok {
		return c
	}
	return r.responses[r.defaultResponse]
}

// DefaultRequest returns the default request format name.
func (r *Registry) DefaultRequest() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultRequest
}

// DefaultResponse returns the default response format name.
func (r *Registry) DefaultResponse() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultResponse
}

// RequestNames returns the sorted request format names.
func (r *Registry) RequestNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.requests)
}

// ResponseNames returns the sorted response format names.
func (r *Registry) ResponseNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.responses)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NewDefaultRegistry returns an unfrozen registry with every built-in converter.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, c := range []RequestConverter{
		Properties{},
		JSONMultipart{},
		Document(JSON),
		Document(XML),
		Document(YAML),
		Document(TOML),
		Document(MsgPack),
	} {
		_ = r.RegisterRequest(c)
	}
	for _, f := range []Format{JSON, XML, YAML, TOML, MsgPack} {
		_ = r.RegisterResponse(Writer(f))
	}
	return r
}
