package catalog

import "testing"

func TestResolve(t *testing.T) {
	c := Default()

	plan, err := c.Resolve(KindSubscriptionPlan, "basic")
	if err != nil {
		t.Fatalf("expected basic plan to resolve, got %v", err)
	}
	if plan.Credits != 250 {
		t.Fatalf("basic plan credits = %d, want 250", plan.Credits)
	}

	if _, err := c.Resolve(KindSubscriptionPlan, "enterprise"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for unknown plan, got %v", err)
	}
	if _, err := c.Resolve(KindCreditPackage, "basic"); err != ErrNotFound {
		t.Fatalf("expected kind to scope lookups, got %v", err)
	}
}

func TestIsFree(t *testing.T) {
	c := Default()

	free, err := c.Resolve(KindSubscriptionPlan, "free")
	if err != nil {
		t.Fatalf("resolve free: %v", err)
	}
	if !free.IsFree() {
		t.Fatalf("expected free plan to be free")
	}

	pro, err := c.Resolve(KindSubscriptionPlan, "pro")
	if err != nil {
		t.Fatalf("resolve pro: %v", err)
	}
	if pro.IsFree() {
		t.Fatalf("expected pro plan to be paid")
	}
}

func TestPriceForCycle(t *testing.T) {
	c := Default()

	plan, err := c.Resolve(KindSubscriptionPlan, "pro")
	if err != nil {
		t.Fatalf("resolve pro: %v", err)
	}
	if got := plan.PriceForCycle("monthly"); got != 2900 {
		t.Fatalf("monthly price = %d, want 2900", got)
	}
	if got := plan.PriceForCycle("annual"); got != 29000 {
		t.Fatalf("annual price = %d, want 29000", got)
	}
	if got := plan.PriceForCycle(""); got != 2900 {
		t.Fatalf("default cycle price = %d, want monthly 2900", got)
	}

	pack, err := c.Resolve(KindCreditPackage, "starter")
	if err != nil {
		t.Fatalf("resolve starter: %v", err)
	}
	if got := pack.PriceForCycle("annual"); got != 500 {
		t.Fatalf("package price = %d, want flat 500", got)
	}
}
