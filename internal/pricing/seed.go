package pricing

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed seed_profiles.yaml
var seedProfilesYAML []byte

// Seed file shapes. Money fields are strings so the YAML stays exact-decimal.
type seedFile struct {
	Profiles []seedProfile `yaml:"profiles"`
}

type seedProfile struct {
	ProfileID     string     `yaml:"profile_id"`
	ProfileName   string     `yaml:"profile_name"`
	Family        string     `yaml:"family"`
	EffectiveDate string     `yaml:"effective_date"`
	CreatedBy     string     `yaml:"created_by"`
	Notes         string     `yaml:"notes"`
	Plans         []seedPlan `yaml:"plans"`
}

type seedPlan struct {
	PlanName        string `yaml:"plan_name"`
	MonthlyRate     string `yaml:"monthly_rate"`
	IncludedBytes   int64  `yaml:"included_bytes"`
	OveragePer1000  string `yaml:"overage_per_1000"`
	MinMessageSize  int64  `yaml:"min_message_size"`
	ActivationFee   string `yaml:"activation_fee"`
	SuspendedFee    string `yaml:"suspended_fee"`
	MailboxCheckFee string `yaml:"mailbox_check_fee"`
	RegistrationFee string `yaml:"registration_fee"`
	IsDSG           bool   `yaml:"is_dsg"`
	MinISUs         int    `yaml:"min_isus"`
	MaxISUs         int    `yaml:"max_isus"`
	MaxDSGs         int    `yaml:"max_dsgs"`
}

// SeedDefaults installs the embedded default profiles into any family whose
// history is empty. Families that already have profiles are left untouched.
func SeedDefaults(ctx context.Context, h *History) error {
	profiles, err := parseSeed(seedProfilesYAML)
	if err != nil {
		return err
	}

	for _, p := range profiles {
		if !h.Empty(p.Family) {
			continue
		}
		if err := h.Append(ctx, p); err != nil {
			return fmt.Errorf("pricing: seed %s: %w", p.ProfileID, err)
		}
		log.Printf("[Pricing] Seeded default profile %s for empty %s family", p.ProfileID, p.Family)
	}
	return nil
}

func parseSeed(data []byte) ([]PriceProfile, error) {
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("pricing: parse seed profiles: %w", err)
	}

	out := make([]PriceProfile, 0, len(file.Profiles))
	for _, sp := range file.Profiles {
		profile := PriceProfile{
			ProfileID:     sp.ProfileID,
			ProfileName:   sp.ProfileName,
			Family:        Family(sp.Family),
			EffectiveDate: sp.EffectiveDate,
			CreatedAt:     time.Now(),
			CreatedBy:     sp.CreatedBy,
			Notes:         sp.Notes,
			Plans:         make(map[string]PlanPricing, len(sp.Plans)),
		}
		for _, plan := range sp.Plans {
			pp, err := plan.toPricing()
			if err != nil {
				return nil, fmt.Errorf("pricing: seed plan %s/%s: %w", sp.ProfileID, plan.PlanName, err)
			}
			profile.Plans[plan.PlanName] = pp
		}
		out = append(out, profile)
	}
	return out, nil
}

func (s seedPlan) toPricing() (PlanPricing, error) {
	money := func(field, v string) (decimal.Decimal, error) {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("bad %s %q", field, v)
		}
		return d, nil
	}

	monthly, err := money("monthly_rate", s.MonthlyRate)
	if err != nil {
		return PlanPricing{}, err
	}
	overage, err := money("overage_per_1000", s.OveragePer1000)
	if err != nil {
		return PlanPricing{}, err
	}
	activation, err := money("activation_fee", s.ActivationFee)
	if err != nil {
		return PlanPricing{}, err
	}
	suspended, err := money("suspended_fee", s.SuspendedFee)
	if err != nil {
		return PlanPricing{}, err
	}
	mailbox, err := money("mailbox_check_fee", s.MailboxCheckFee)
	if err != nil {
		return PlanPricing{}, err
	}
	registration, err := money("registration_fee", s.RegistrationFee)
	if err != nil {
		return PlanPricing{}, err
	}

	return PlanPricing{
		PlanName:        s.PlanName,
		MonthlyRate:     monthly,
		IncludedBytes:   s.IncludedBytes,
		OveragePer1000:  overage,
		MinMessageSize:  s.MinMessageSize,
		ActivationFee:   activation,
		SuspendedFee:    suspended,
		MailboxCheckFee: mailbox,
		RegistrationFee: registration,
		IsDSG:           s.IsDSG,
		MinISUs:         s.MinISUs,
		MaxISUs:         s.MaxISUs,
		MaxDSGs:         s.MaxDSGs,
	}, nil
}
