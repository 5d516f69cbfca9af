package catalog

import (
	"errors"
	"strings"
)

type Kind string

const (
	KindSubscriptionPlan Kind = "subscription-plan"
	KindCreditPackage    Kind = "credit-package"
	KindService          Kind = "service"
)

var ErrNotFound = errors.New("catalog entry not found")

// Entry is one immutable catalog row. Plans carry per-cycle prices, credit
// packages and services a flat price. All prices are in minor units.
type Entry struct {
	ID                string
	Kind              Kind
	Name              string
	Description       string
	MonthlyPriceMinor int64
	AnnualPriceMinor  int64
	PriceMinor        int64
	Currency          string
	Credits           int64
}

// IsFree reports whether a plan bypasses the payment gateway entirely.
func (e *Entry) IsFree() bool {
	return e.Kind == KindSubscriptionPlan && e.MonthlyPriceMinor == 0 && e.AnnualPriceMinor == 0
}

// PriceForCycle returns the plan price for a billing cycle ("monthly" or
// "annual"); non-plan entries always price at PriceMinor.
func (e *Entry) PriceForCycle(cycle string) int64 {
	if e.Kind != KindSubscriptionPlan {
		return e.PriceMinor
	}
	if strings.EqualFold(strings.TrimSpace(cycle), "annual") {
		return e.AnnualPriceMinor
	}
	return e.MonthlyPriceMinor
}

type Catalog struct {
	entries map[Kind]map[string]Entry
}

// New builds a catalog from the given entries. Entries are copied; the
// catalog is read-only afterwards and safe for concurrent use.
func New(entries ...Entry) *Catalog {
	c := &Catalog{entries: make(map[Kind]map[string]Entry)}
	for _, e := range entries {
		byID, ok := c.entries[e.Kind]
		if !ok {
			byID = make(map[string]Entry)
			c.entries[e.Kind] = byID
		}
		byID[e.ID] = e
	}
	return c
}

// Resolve looks up an entry by kind and id.
func (c *Catalog) Resolve(kind Kind, id string) (*Entry, error) {
	byID, ok := c.entries[kind]
	if !ok {
		return nil, ErrNotFound
	}
	e, ok := byID[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

// Plans returns all subscription plans.
func (c *Catalog) Plans() []Entry {
	return c.list(KindSubscriptionPlan)
}

// Packages returns all credit packages.
func (c *Catalog) Packages() []Entry {
	return c.list(KindCreditPackage)
}

func (c *Catalog) list(kind Kind) []Entry {
	byID := c.entries[kind]
	out := make([]Entry, 0, len(byID))
	for _, e := range byID {
		out = append(out, e)
	}
	return out
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return New(
		Entry{ID: "free", Kind: KindSubscriptionPlan, Name: "Free", Currency: "USD", Credits: 25},
		Entry{ID: "basic", Kind: KindSubscriptionPlan, Name: "Basic", Currency: "USD", Credits: 250, MonthlyPriceMinor: 900, AnnualPriceMinor: 9000},
		Entry{ID: "pro", Kind: KindSubscriptionPlan, Name: "Pro", Currency: "USD", Credits: 1200, MonthlyPriceMinor: 2900, AnnualPriceMinor: 29000},
		Entry{ID: "starter", Kind: KindCreditPackage, Name: "Starter Pack", Currency: "USD", Credits: 100, PriceMinor: 500, Description: "100 credits"},
		Entry{ID: "plus", Kind: KindCreditPackage, Name: "Plus Pack", Currency: "USD", Credits: 550, PriceMinor: 2500, Description: "500 credits + 50 bonus"},
		Entry{ID: "mega", Kind: KindCreditPackage, Name: "Mega Pack", Currency: "USD", Credits: 2400, PriceMinor: 10000, Description: "2000 credits + 400 bonus"},
		Entry{ID: "priority-support", Kind: KindService, Name: "Priority Support", Currency: "USD", PriceMinor: 4900, Description: "Priority support, 30 days"},
		Entry{ID: "onboarding", Kind: KindService, Name: "Guided Onboarding", Currency: "USD", PriceMinor: 19900, Description: "Guided onboarding session"},
	)
}
