package permission

import (
	"errors"
	"reflect"
	"testing"
)

func TestRegistryAssignsSequentialBits(t *testing.T) {
	r, err := NewRegistry(64, false)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	for i, name := range []string{"shop.Cart.add", "shop.Cart.checkout", "shop.Admin.purge"} {
		bit, err := r.Register(name)
		if err != nil {
			t.Fatalf("Register(%q) failed: %v", name, err)
		}
		if bit != i {
			t.Fatalf("expected bit %d for %q, got %d", i, name, bit)
		}
	}

	if _, err := r.Register("shop.Cart.add"); !errors.Is(err, ErrPermissionExists) {
		t.Fatalf("expected ErrPermissionExists, got %v", err)
	}

	bit, err := r.Ensure("shop.Cart.add")
	if err != nil || bit != 0 {
		t.Fatalf("Ensure existing = (%d, %v), want (0, nil)", bit, err)
	}
}

func TestRegistryFrozenRejectsNewNames(t *testing.T) {
	r, _ := NewRegistry(128, true)
	if _, err := r.Register("a.B.c"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	r.Freeze()

	if _, err := r.Ensure("a.B.d"); !errors.Is(err, ErrRegistryFrozen) {
		t.Fatalf("expected ErrRegistryFrozen, got %v", err)
	}
	if bit, err := r.Ensure("a.B.c"); err != nil || bit != 0 {
		t.Fatalf("Ensure of known name after freeze = (%d, %v)", bit, err)
	}
}

func TestRegistryRootReservationLimitsCapacity(t *testing.T) {
	r, _ := NewRegistry(64, true)
	for i := 0; i < 63; i++ {
		if _, err := r.Register(string(rune('A'+i%26)) + string(rune('a'+i/26))); err != nil {
			t.Fatalf("Register #%d failed: %v", i, err)
		}
	}
	if _, err := r.Register("overflow"); !errors.Is(err, ErrPermissionLimit) {
		t.Fatalf("expected ErrPermissionLimit, got %v", err)
	}
}

func TestInvalidWidth(t *testing.T) {
	if _, err := NewRegistry(100, false); !errors.Is(err, ErrInvalidWidth) {
		t.Fatalf("expected ErrInvalidWidth, got %v", err)
	}
	if _, err := NewMask(32); !errors.Is(err, ErrInvalidWidth) {
		t.Fatalf("expected ErrInvalidWidth, got %v", err)
	}
}

func TestMaskWideBitsAndRoot(t *testing.T) {
	m, _ := NewMask(512)
	m.Set(0)
	m.Set(300)

	if !m.Has(300, false) || !m.Has(0, false) {
		t.Fatal("expected set bits to be reported")
	}
	if m.Has(301, false) {
		t.Fatal("unexpected bit 301")
	}

	m.Clear(300)
	if m.Has(300, false) {
		t.Fatal("expected bit 300 cleared")
	}

	m.Set(511)
	if !m.Has(42, true) {
		t.Fatal("root bit must grant every bit when reserved")
	}
	if m.Has(42, false) {
		t.Fatal("root bit must not grant when reservation disabled")
	}
	if m.Has(512, true) {
		t.Fatal("out of range bit must be false")
	}
}

func TestGroupsUnionAndGranting(t *testing.T) {
	r, _ := NewRegistry(64, true)
	for _, name := range []string{"shop.Cart.add", "shop.Cart.checkout", "shop.Admin.purge"} {
		if _, err := r.Register(name); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}

	g := NewGroups(r)
	if err := g.Define("customer", []string{"shop.Cart.add", "shop.Cart.checkout"}, false); err != nil {
		t.Fatalf("Define customer failed: %v", err)
	}
	if err := g.Define("admin", nil, true); err != nil {
		t.Fatalf("Define admin failed: %v", err)
	}
	if err := g.Define("broken", []string{"missing"}, false); err == nil {
		t.Fatal("expected error for unregistered permission")
	}

	mask, unknown := g.Mask("customer", "ghost")
	if !reflect.DeepEqual(unknown, []string{"ghost"}) {
		t.Fatalf("unexpected unknown groups: %v", unknown)
	}
	purge, _ := r.Bit("shop.Admin.purge")
	add, _ := r.Bit("shop.Cart.add")
	if mask.Has(purge, true) {
		t.Fatal("customer must not be granted purge")
	}
	if !mask.Has(add, true) {
		t.Fatal("customer must be granted add")
	}

	if got := g.Granting(add, []string{"customer", "admin"}); !reflect.DeepEqual(got, []string{"admin", "customer"}) {
		t.Fatalf("unexpected granting groups: %v", got)
	}

	g.Freeze()
	if err := g.Define("late", nil, false); err == nil {
		t.Fatal("expected frozen error")
	}
	if g.Count() != 2 {
		t.Fatalf("expected 2 groups, got %d", g.Count())
	}
}
