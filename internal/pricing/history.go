package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/Eliot-Huo/Iridium-IWS/internal/blob"
)

var (
	// ErrNoApplicableProfile means no profile of the requested family was
	// effective at the requested billing month. A bill cannot be computed
	// without a price basis.
	ErrNoApplicableProfile = errors.New("pricing: no applicable profile")

	// ErrProfileLocked rejects edits to a profile whose effective date has
	// passed. Create a new profile with a later effective date instead.
	ErrProfileLocked = errors.New("pricing: profile is locked")

	// ErrDuplicateProfile rejects appends reusing an existing profile ID.
	ErrDuplicateProfile = errors.New("pricing: duplicate profile id")

	// ErrInvalidProfile rejects a profile that fails validation.
	ErrInvalidProfile = errors.New("pricing: invalid profile")

	errProfileNotFound = errors.New("pricing: profile not found")
)

func historyKey(f Family) string {
	return fmt.Sprintf("price_profiles/%s.json", f)
}

// History is the append-only profile collection for both families, persisted
// as one blob object per family.
type History struct {
	blob blob.Store

	mu       sync.RWMutex
	profiles map[Family][]PriceProfile
}

func NewHistory(b blob.Store) *History {
	return &History{
		blob:     b,
		profiles: make(map[Family][]PriceProfile),
	}
}

// Load reads both family histories from the blob store. An absent object is
// an empty family, not an error. Profiles whose effective date has passed are
// locked on load and the lock is persisted, mirroring the original system's
// auto-lock on startup.
func (h *History) Load(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, family := range []Family{FamilyCustomer, FamilyCost} {
		data, err := h.blob.Get(ctx, historyKey(family))
		if errors.Is(err, blob.ErrNotFound) {
			h.profiles[family] = nil
			continue
		}
		if err != nil {
			return fmt.Errorf("pricing: load %s history: %w", family, err)
		}

		var profiles []PriceProfile
		if err := json.Unmarshal(data, &profiles); err != nil {
			return fmt.Errorf("pricing: decode %s history: %w", family, err)
		}
		sortProfiles(profiles)
		h.profiles[family] = profiles

		if h.autoLockLocked(family) {
			if err := h.saveLocked(ctx, family); err != nil {
				return err
			}
		}
		log.Printf("[Pricing] Loaded %d %s profiles", len(profiles), family)
	}
	return nil
}

// autoLockLocked flags past-effective profiles as locked. Caller holds mu.
func (h *History) autoLockLocked(family Family) bool {
	changed := false
	now := time.Now()
	profiles := h.profiles[family]
	for i := range profiles {
		if !profiles[i].IsLocked && profiles[i].ShouldBeLocked(now) {
			profiles[i].IsLocked = true
			changed = true
			log.Printf("[Pricing] Auto-locked profile %s (effective %s)",
				profiles[i].ProfileID, profiles[i].EffectiveDate)
		}
	}
	return changed
}

func (h *History) saveLocked(ctx context.Context, family Family) error {
	data, err := json.MarshalIndent(h.profiles[family], "", "  ")
	if err != nil {
		return fmt.Errorf("pricing: encode %s history: %w", family, err)
	}
	if err := h.blob.Put(ctx, historyKey(family), data); err != nil {
		return fmt.Errorf("pricing: save %s history: %w", family, err)
	}
	return nil
}

// Append adds a new profile to its family history and persists the family.
// Existing profiles are never touched.
func (h *History) Append(ctx context.Context, p PriceProfile) error {
	if problems := p.Validate(); len(problems) > 0 {
		return fmt.Errorf("%w %s: %v", ErrInvalidProfile, p.ProfileID, problems)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, existing := range h.profiles[p.Family] {
		if existing.ProfileID == p.ProfileID {
			return fmt.Errorf("%w: %s", ErrDuplicateProfile, p.ProfileID)
		}
	}

	if p.ShouldBeLocked(time.Now()) {
		p.IsLocked = true
	}
	h.profiles[p.Family] = append(h.profiles[p.Family], p)
	sortProfiles(h.profiles[p.Family])

	if err := h.saveLocked(ctx, p.Family); err != nil {
		// Keep memory and store consistent: drop the failed append.
		h.removeLocked(p.Family, p.ProfileID)
		return err
	}
	log.Printf("[Pricing] Appended profile %s (%s, effective %s)", p.ProfileID, p.Family, p.EffectiveDate)
	return nil
}

// Amend replaces a not-yet-effective profile in place. A locked profile
// cannot be altered; prices change by appending a newer profile.
func (h *History) Amend(ctx context.Context, p PriceProfile) error {
	if problems := p.Validate(); len(problems) > 0 {
		return fmt.Errorf("%w %s: %v", ErrInvalidProfile, p.ProfileID, problems)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	profiles := h.profiles[p.Family]
	for i := range profiles {
		if profiles[i].ProfileID != p.ProfileID {
			continue
		}
		if profiles[i].IsLocked || profiles[i].ShouldBeLocked(time.Now()) {
			return fmt.Errorf("%w: %s (effective %s)", ErrProfileLocked,
				profiles[i].ProfileID, profiles[i].EffectiveDate)
		}
		// Mutate a copy: sorting can move the amended profile, so an
		// in-place rollback by index would restore the wrong entry.
		amended := make([]PriceProfile, len(profiles))
		copy(amended, profiles)
		amended[i] = p
		sortProfiles(amended)
		h.profiles[p.Family] = amended
		if err := h.saveLocked(ctx, p.Family); err != nil {
			h.profiles[p.Family] = profiles
			return err
		}
		return nil
	}
	return fmt.Errorf("%w: %s", errProfileNotFound, p.ProfileID)
}

// List returns the family's profiles, newest effective date first.
func (h *History) List(family Family) []PriceProfile {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]PriceProfile, len(h.profiles[family]))
	copy(out, h.profiles[family])
	return out
}

// Empty reports whether the family has no profiles at all.
func (h *History) Empty(family Family) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.profiles[family]) == 0
}

// ProfileAt returns the profile in force on a date: the one with the latest
// effective date that is not after it.
func (h *History) ProfileAt(family Family, d time.Time) (PriceProfile, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	// Sorted newest-first; first match wins.
	for _, p := range h.profiles[family] {
		if p.EffectiveAt(d) {
			return p, nil
		}
	}
	return PriceProfile{}, fmt.Errorf("%w: family %s at %s", ErrNoApplicableProfile, family, d.Format("2006-01-02"))
}

func (h *History) removeLocked(family Family, id string) {
	profiles := h.profiles[family]
	for i := range profiles {
		if profiles[i].ProfileID == id {
			h.profiles[family] = append(profiles[:i], profiles[i+1:]...)
			return
		}
	}
}

// sortProfiles orders newest effective date first. Effective dates are
// ISO-formatted, so string order is date order.
func sortProfiles(profiles []PriceProfile) {
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].EffectiveDate > profiles[j].EffectiveDate
	})
}

// Resolver answers "which prices apply to this plan for this billing month".
type Resolver struct {
	history *History
}

func NewResolver(h *History) *Resolver {
	return &Resolver{history: h}
}

// Profile resolves the family profile effective at the first day of the
// billing month (closest effective date not after it).
func (r *Resolver) Profile(family Family, year, month int) (PriceProfile, error) {
	monthStart := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return r.history.ProfileAt(family, monthStart)
}

// Plan resolves one plan's pricing for a billing month.
func (r *Resolver) Plan(planName string, family Family, year, month int) (PlanPricing, error) {
	profile, err := r.Profile(family, year, month)
	if err != nil {
		return PlanPricing{}, err
	}
	pricing, ok := profile.Plans[planName]
	if !ok {
		return PlanPricing{}, fmt.Errorf("%w: plan %s not in profile %s",
			ErrNoApplicableProfile, planName, profile.ProfileID)
	}
	return pricing, nil
}
