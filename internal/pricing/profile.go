// Package pricing manages the versioned, time-effective price schedules.
// Two parallel profile families exist: the customer-facing price list and the
// Iridium wholesale cost list; bills resolve against one, profit against both.
// Profiles are append-only history: once a profile's effective date passes it
// locks, and price changes are expressed as a new profile with a later
// effective date. That is what makes a bill computed for a past month
// reproducible forever.
package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Family distinguishes the two parallel profile histories.
type Family string

const (
	FamilyCustomer Family = "customer"
	FamilyCost     Family = "iridium_cost"
)

func (f Family) Valid() bool {
	return f == FamilyCustomer || f == FamilyCost
}

// PlanPricing is one plan's rate schedule inside a profile.
type PlanPricing struct {
	PlanName        string          `json:"plan_name"`
	MonthlyRate     decimal.Decimal `json:"monthly_rate"`
	IncludedBytes   int64           `json:"included_bytes"`
	OveragePer1000  decimal.Decimal `json:"overage_per_1000"`
	MinMessageSize  int64           `json:"min_message_size"`
	ActivationFee   decimal.Decimal `json:"activation_fee"`
	SuspendedFee    decimal.Decimal `json:"suspended_fee"`
	MailboxCheckFee decimal.Decimal `json:"mailbox_check_fee"`
	RegistrationFee decimal.Decimal `json:"registration_fee"`

	// DSG (shared-pool) plans only.
	IsDSG   bool `json:"is_dsg"`
	MinISUs int  `json:"min_isus,omitempty"`
	MaxISUs int  `json:"max_isus,omitempty"`
	MaxDSGs int  `json:"max_dsgs,omitempty"`
}

// ApplyMinimumMessageSize rounds one message up to the plan's minimum
// billable size. Applied per record before summing.
func (p PlanPricing) ApplyMinimumMessageSize(messageBytes int64) int64 {
	if messageBytes < p.MinMessageSize {
		return p.MinMessageSize
	}
	return messageBytes
}

// OverageCost prices usage beyond the included allowance. The allowance
// boundary is inclusive; overage is billed per started 1000-byte unit.
func (p PlanPricing) OverageCost(totalBytes int64) decimal.Decimal {
	if totalBytes <= p.IncludedBytes {
		return decimal.Zero
	}
	overage := totalBytes - p.IncludedBytes
	units := (overage + 999) / 1000
	return p.OveragePer1000.Mul(decimal.NewFromInt(units))
}

// PriceProfile is one versioned rate schedule for a whole plan catalog.
type PriceProfile struct {
	ProfileID     string                 `json:"profile_id"`
	ProfileName   string                 `json:"profile_name"`
	Family        Family                 `json:"profile_type"`
	EffectiveDate string                 `json:"effective_date"` // YYYY-MM-DD
	IsLocked      bool                   `json:"is_locked"`
	CreatedAt     time.Time              `json:"created_at"`
	CreatedBy     string                 `json:"created_by"`
	Notes         string                 `json:"notes"`
	Plans         map[string]PlanPricing `json:"plans"`
}

// EffectiveFrom parses the profile's effective date.
func (p PriceProfile) EffectiveFrom() (time.Time, error) {
	t, err := time.Parse("2006-01-02", p.EffectiveDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("pricing: profile %s: bad effective_date %q", p.ProfileID, p.EffectiveDate)
	}
	return t, nil
}

// EffectiveAt reports whether the profile is in force on the given date.
func (p PriceProfile) EffectiveAt(d time.Time) bool {
	from, err := p.EffectiveFrom()
	if err != nil {
		return false
	}
	return !d.Before(from)
}

// ShouldBeLocked reports whether the effective date has already passed.
func (p PriceProfile) ShouldBeLocked(now time.Time) bool {
	return p.EffectiveAt(now)
}

// requiredPlans is the catalog every profile must price: the standard SBD
// plans and their DSG (pooled) variants.
var requiredPlans = []string{"SBD0", "SBD12", "SBD17", "SBD30", "SBD12P", "SBD17P", "SBD30P"}

// dsgMirrors maps each DSG plan to the standard plan whose included bytes it
// must mirror.
var dsgMirrors = map[string]string{
	"SBD12P": "SBD12",
	"SBD17P": "SBD17",
	"SBD30P": "SBD30",
}

// Validate checks profile completeness. Returns human-readable problems;
// empty means valid.
func (p PriceProfile) Validate() []string {
	var problems []string

	if !p.Family.Valid() {
		problems = append(problems, fmt.Sprintf("unknown profile family %q", p.Family))
	}
	if _, err := p.EffectiveFrom(); err != nil {
		problems = append(problems, err.Error())
	}

	for _, name := range requiredPlans {
		if _, ok := p.Plans[name]; !ok {
			problems = append(problems, fmt.Sprintf("missing plan definition: %s", name))
		}
	}

	for dsg, std := range dsgMirrors {
		dp, ok1 := p.Plans[dsg]
		sp, ok2 := p.Plans[std]
		if ok1 && ok2 && dp.IncludedBytes != sp.IncludedBytes {
			problems = append(problems, fmt.Sprintf(
				"%s included bytes (%d) differ from %s (%d)",
				dsg, dp.IncludedBytes, std, sp.IncludedBytes))
		}
	}

	return problems
}
