package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Eliot-Huo/Iridium-IWS/internal/blob"
)

func newBlobStore(t *testing.T) blob.Store {
	t.Helper()
	s, err := blob.NewDirStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirStore: %v", err)
	}
	return s
}

// testProfile builds a valid profile pricing the full catalog, with SBD12 at
// the given monthly rate so tests can tell versions apart.
func testProfile(id string, family Family, effective string, sbd12Rate string) PriceProfile {
	plans := make(map[string]PlanPricing)
	catalog := map[string]int64{
		"SBD0":   0,
		"SBD12":  12000,
		"SBD17":  17000,
		"SBD30":  30000,
		"SBD12P": 12000,
		"SBD17P": 17000,
		"SBD30P": 30000,
	}
	for name, included := range catalog {
		rate := decimal.NewFromInt(10)
		if name == "SBD12" {
			rate = decimal.RequireFromString(sbd12Rate)
		}
		plans[name] = PlanPricing{
			PlanName:        name,
			MonthlyRate:     rate,
			IncludedBytes:   included,
			OveragePer1000:  decimal.NewFromInt(2),
			MinMessageSize:  10,
			SuspendedFee:    decimal.NewFromInt(4),
			MailboxCheckFee: decimal.RequireFromString("0.02"),
			RegistrationFee: decimal.RequireFromString("0.02"),
		}
	}
	return PriceProfile{
		ProfileID:     id,
		ProfileName:   id,
		Family:        family,
		EffectiveDate: effective,
		CreatedAt:     time.Now(),
		Plans:         plans,
	}
}

func futureDate() string {
	return time.Now().AddDate(1, 0, 0).Format("2006-01-02")
}

func TestOverageCost(t *testing.T) {
	plan := PlanPricing{
		IncludedBytes:  12000,
		OveragePer1000: decimal.NewFromInt(2),
	}

	tests := []struct {
		name  string
		bytes int64
		want  string
	}{
		{"under allowance", 11000, "0"},
		{"exactly at allowance is free", 12000, "0"},
		{"one byte over starts a unit", 12001, "2"},
		{"partial unit rounds up", 13500, "4"},
		{"thirteen full units", 25000, "26"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := plan.OverageCost(tt.bytes)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("OverageCost(%d) = %s, want %s", tt.bytes, got, tt.want)
			}
		})
	}
}

func TestApplyMinimumMessageSize(t *testing.T) {
	plan := PlanPricing{MinMessageSize: 10}
	if got := plan.ApplyMinimumMessageSize(3); got != 10 {
		t.Errorf("round-up: got %d, want 10", got)
	}
	if got := plan.ApplyMinimumMessageSize(10); got != 10 {
		t.Errorf("at minimum: got %d, want 10", got)
	}
	if got := plan.ApplyMinimumMessageSize(250); got != 250 {
		t.Errorf("above minimum: got %d, want 250", got)
	}
}

func TestResolverPicksClosestNotAfter(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(newBlobStore(t))

	if err := h.Append(ctx, testProfile("v1", FamilyCustomer, "2025-07-01", "28.00")); err != nil {
		t.Fatalf("append v1: %v", err)
	}
	if err := h.Append(ctx, testProfile("v2", FamilyCustomer, "2026-02-01", "30.00")); err != nil {
		t.Fatalf("append v2: %v", err)
	}

	r := NewResolver(h)

	jan, err := r.Profile(FamilyCustomer, 2026, 1)
	if err != nil {
		t.Fatalf("resolve 2026-01: %v", err)
	}
	if jan.ProfileID != "v1" {
		t.Errorf("2026-01 resolved %s, want v1", jan.ProfileID)
	}

	feb, err := r.Profile(FamilyCustomer, 2026, 2)
	if err != nil {
		t.Fatalf("resolve 2026-02: %v", err)
	}
	if feb.ProfileID != "v2" {
		t.Errorf("2026-02 resolved %s, want v2", feb.ProfileID)
	}

	// A later profile must not rewrite history: January still bills at v1.
	plan, err := r.Plan("SBD12", FamilyCustomer, 2026, 1)
	if err != nil {
		t.Fatalf("plan 2026-01: %v", err)
	}
	if !plan.MonthlyRate.Equal(decimal.RequireFromString("28.00")) {
		t.Errorf("2026-01 SBD12 rate = %s, want 28.00", plan.MonthlyRate)
	}
}

func TestResolverNoApplicableProfile(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(newBlobStore(t))
	if err := h.Append(ctx, testProfile("v1", FamilyCustomer, "2025-07-01", "28.00")); err != nil {
		t.Fatalf("append: %v", err)
	}

	r := NewResolver(h)
	if _, err := r.Profile(FamilyCustomer, 2025, 6); !errors.Is(err, ErrNoApplicableProfile) {
		t.Errorf("err = %v, want ErrNoApplicableProfile", err)
	}
	if _, err := r.Profile(FamilyCost, 2026, 1); !errors.Is(err, ErrNoApplicableProfile) {
		t.Errorf("empty family err = %v, want ErrNoApplicableProfile", err)
	}
}

func TestAppendDuplicateID(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(newBlobStore(t))
	if err := h.Append(ctx, testProfile("v1", FamilyCustomer, "2025-07-01", "28.00")); err != nil {
		t.Fatalf("append: %v", err)
	}
	err := h.Append(ctx, testProfile("v1", FamilyCustomer, "2025-08-01", "29.00"))
	if !errors.Is(err, ErrDuplicateProfile) {
		t.Errorf("err = %v, want ErrDuplicateProfile", err)
	}
}

func TestAmendLockedProfileRejected(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(newBlobStore(t))

	// Effective date already passed, so the append locks it immediately.
	if err := h.Append(ctx, testProfile("v1", FamilyCustomer, "2025-07-01", "28.00")); err != nil {
		t.Fatalf("append: %v", err)
	}

	err := h.Amend(ctx, testProfile("v1", FamilyCustomer, "2025-07-01", "99.00"))
	if !errors.Is(err, ErrProfileLocked) {
		t.Errorf("err = %v, want ErrProfileLocked", err)
	}
}

func TestAmendFutureProfile(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(newBlobStore(t))

	effective := futureDate()
	if err := h.Append(ctx, testProfile("v2", FamilyCustomer, effective, "30.00")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := h.Amend(ctx, testProfile("v2", FamilyCustomer, effective, "31.00")); err != nil {
		t.Fatalf("amend future profile: %v", err)
	}

	profiles := h.List(FamilyCustomer)
	if len(profiles) != 1 {
		t.Fatalf("got %d profiles, want 1", len(profiles))
	}
	if !profiles[0].Plans["SBD12"].MonthlyRate.Equal(decimal.RequireFromString("31.00")) {
		t.Errorf("rate = %s, want 31.00", profiles[0].Plans["SBD12"].MonthlyRate)
	}
}

// flakyStore passes through to a real store until failPuts is set.
type flakyStore struct {
	blob.Store
	failPuts bool
}

func (s *flakyStore) Put(ctx context.Context, key string, data []byte) error {
	if s.failPuts {
		return errors.New("backend down")
	}
	return s.Store.Put(ctx, key, data)
}

func TestAmendSaveFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: newBlobStore(t)}
	h := NewHistory(store)

	d1 := time.Now().AddDate(1, 0, 0).Format("2006-01-02")
	d2 := time.Now().AddDate(1, 1, 0).Format("2006-01-02")
	d3 := time.Now().AddDate(1, 2, 0).Format("2006-01-02")

	if err := h.Append(ctx, testProfile("a", FamilyCustomer, d1, "28.00")); err != nil {
		t.Fatalf("append a: %v", err)
	}
	if err := h.Append(ctx, testProfile("b", FamilyCustomer, d2, "29.00")); err != nil {
		t.Fatalf("append b: %v", err)
	}

	// The amend moves a past b in sort order, then the save fails.
	store.failPuts = true
	if err := h.Amend(ctx, testProfile("a", FamilyCustomer, d3, "31.00")); err == nil {
		t.Fatal("amend with broken store should fail")
	}

	got := make(map[string]string)
	for _, p := range h.List(FamilyCustomer) {
		got[p.ProfileID] = p.EffectiveDate
	}
	if len(got) != 2 {
		t.Fatalf("history holds %v, want both a and b", got)
	}
	if got["a"] != d1 {
		t.Errorf("profile a effective %s after failed amend, want %s", got["a"], d1)
	}
	if got["b"] != d2 {
		t.Errorf("profile b effective %s after failed amend, want %s", got["b"], d2)
	}
}

func TestAppendInvalidProfile(t *testing.T) {
	h := NewHistory(newBlobStore(t))
	p := testProfile("v1", FamilyCustomer, "2025-07-01", "28.00")
	delete(p.Plans, "SBD17")
	err := h.Append(context.Background(), p)
	if !errors.Is(err, ErrInvalidProfile) {
		t.Errorf("err = %v, want ErrInvalidProfile", err)
	}
}

func TestValidateDSGMirror(t *testing.T) {
	p := testProfile("v1", FamilyCustomer, "2025-07-01", "28.00")
	plan := p.Plans["SBD12P"]
	plan.IncludedBytes = 5000
	p.Plans["SBD12P"] = plan

	problems := p.Validate()
	if len(problems) == 0 {
		t.Fatal("expected a DSG mirror problem")
	}
}

func TestHistorySurvivesReload(t *testing.T) {
	ctx := context.Background()
	store := newBlobStore(t)

	h := NewHistory(store)
	if err := h.Append(ctx, testProfile("v1", FamilyCustomer, "2025-07-01", "28.00")); err != nil {
		t.Fatalf("append: %v", err)
	}

	reloaded := NewHistory(store)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	profiles := reloaded.List(FamilyCustomer)
	if len(profiles) != 1 || profiles[0].ProfileID != "v1" {
		t.Fatalf("reloaded profiles = %+v", profiles)
	}
	if !profiles[0].IsLocked {
		t.Error("past-effective profile not locked on reload")
	}
}

func TestSeedDefaults(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(newBlobStore(t))

	if err := SeedDefaults(ctx, h); err != nil {
		t.Fatalf("SeedDefaults: %v", err)
	}

	for _, family := range []Family{FamilyCustomer, FamilyCost} {
		if h.Empty(family) {
			t.Errorf("family %s still empty after seeding", family)
		}
	}

	plan, err := NewResolver(h).Plan("SBD12", FamilyCustomer, 2026, 1)
	if err != nil {
		t.Fatalf("resolve seeded plan: %v", err)
	}
	if !plan.MonthlyRate.Equal(decimal.RequireFromString("28.00")) {
		t.Errorf("seeded SBD12 rate = %s, want 28.00", plan.MonthlyRate)
	}
	if plan.IncludedBytes != 12000 {
		t.Errorf("seeded SBD12 allowance = %d, want 12000", plan.IncludedBytes)
	}

	// Seeding again must not duplicate anything.
	if err := SeedDefaults(ctx, h); err != nil {
		t.Fatalf("second SeedDefaults: %v", err)
	}
	if n := len(h.List(FamilyCustomer)); n != 1 {
		t.Errorf("customer history has %d profiles after double seed, want 1", n)
	}
}
