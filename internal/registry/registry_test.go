package registry

import (
	"errors"
	"testing"

	"relay/internal/domain"
)

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	cap := domain.Capability{
		Name:     "open_browser",
		Version:  "1.0.0",
		Triggers: []string{"open the browser"},
	}
	if err := r.Register(cap); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	got, err := r.Lookup("open_browser")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if got.Name != cap.Name || got.Version != cap.Version {
		t.Fatalf("lookup = %+v, want %+v", got, cap)
	}
}

func TestRegisterDuplicateFails(t *testing.T) {
	r := New()
	cap := domain.Capability{Name: "set_volume", Triggers: []string{"set volume"}}
	if err := r.Register(cap); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	err := r.Register(cap)
	if !errors.Is(err, ErrDuplicateCapability) {
		t.Fatalf("duplicate register error = %v, want ErrDuplicateCapability", err)
	}
}

func TestLookupMissing(t *testing.T) {
	r := New()
	_, err := r.Lookup("nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("lookup error = %v, want ErrNotFound", err)
	}
}

func TestRegisterRejectsInvalidVersion(t *testing.T) {
	r := New()
	err := r.Register(domain.Capability{Name: "bad", Version: "not-a-version"})
	if err == nil {
		t.Fatalf("expected error for invalid version")
	}
}

func TestRegisterRejectsEmptyName(t *testing.T) {
	r := New()
	if err := r.Register(domain.Capability{Name: "   "}); err == nil {
		t.Fatalf("expected error for empty name")
	}
}

func TestAllPreservesRegistrationOrder(t *testing.T) {
	r := New()
	names := []string{"charlie", "alpha", "bravo"}
	for _, name := range names {
		if err := r.Register(domain.Capability{Name: name}); err != nil {
			t.Fatalf("register %s failed: %v", name, err)
		}
	}

	all := r.All()
	if len(all) != len(names) {
		t.Fatalf("len(All()) = %d, want %d", len(all), len(names))
	}
	for i, name := range names {
		if all[i].Name != name {
			t.Fatalf("All()[%d] = %s, want %s", i, all[i].Name, name)
		}
	}
}
