package permission

import (
	"errors"
	"sync"
)

var (
	// ErrRegistryFrozen is returned when registering after Freeze.
	ErrRegistryFrozen = errors.New("permission registry frozen")
	// ErrInvalidWidth is returned for mask widths other than 64/128/256/512.
	ErrInvalidWidth = errors.New("invalid mask width")
	// ErrPermissionExists is returned when a name is registered twice.
	ErrPermissionExists = errors.New("permission already registered")
	// ErrPermissionLimit is returned when the registry has no free bits left.
	ErrPermissionLimit = errors.New("permission limit exceeded")
)

// Registry maps operation permission names to bit positions within a mask.
type Registry struct {
	maxBits      int
	rootReserved bool
	rootBit      int

	mu        sync.RWMutex
	nameToBit map[string]int
	bitToName map[int]string
	frozen    bool
}

// NewRegistry creates a permission [Registry]. maxBits selects the mask width
// (64/128/256/512); rootReserved reserves the highest bit as a grant-all bit.
func NewRegistry(maxBits int, rootReserved bool) (*Registry, error) {
	if !validWidth(maxBits) {
		return nil, ErrInvalidWidth
	}

	r := &Registry{
		maxBits:      maxBits,
		rootReserved: rootReserved,
		nameToBit:    make(map[string]int),
		bitToName:    make(map[int]string),
	}

	if rootReserved {
		r.rootBit = maxBits - 1
	}

	return r, nil
}

// Register assigns the next available bit to the named permission and returns it.
// Registering a name that already exists is an error; callers that merge sets of
// names should use [Registry.Ensure].
func (r *Registry) Register(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nameToBit[name]; exists {
		return -1, ErrPermissionExists
	}
	return r.registerLocked(name)
}

// Ensure returns the bit of name, registering it first when it is unknown.
func (r *Registry) Ensure(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if bit, ok := r.nameToBit[name]; ok {
		return bit, nil
	}
	return r.registerLocked(name)
}

func (r *Registry) registerLocked(name string) (int, error) {
	if r.frozen {
		return -1, ErrRegistryFrozen
	}
	if name == "" {
		return -1, errors.New("permission name cannot be empty")
	}

	nextBit := len(r.nameToBit)
	if r.rootReserved && nextBit >= r.rootBit {
		return -1, ErrPermissionLimit
	}
	if !r.rootReserved && nextBit >= r.maxBits {
		return -1, ErrPermissionLimit
	}

	r.nameToBit[name] = nextBit
	r.bitToName[nextBit] = name

	return nextBit, nil
}

// Bit returns the bit index for the named permission, or false if not registered.
func (r *Registry) Bit(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[name]
	return bit, ok
}

// Name returns the permission name for the given bit index, or false if unassigned.
func (r *Registry) Name(bit int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.bitToName[bit]
	return name, ok
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered permissions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToBit)
}

// Width returns the mask width in bits.
func (r *Registry) Width() int { return r.maxBits }

// RootReserved reports whether the highest bit is the grant-all bit.
func (r *Registry) RootReserved() bool { return r.rootReserved }

// RootBit returns the reserved root permission bit, or false if root-bit
// reservation is disabled.
func (r *Registry) RootBit() (int, bool) {
	if !r.rootReserved {
		return -1, false
	}
	return r.rootBit, true
}

func validWidth(bits int) bool {
	return bits == 64 || bits == 128 || bits == 256 || bits == 512
}
