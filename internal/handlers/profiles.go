package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Eliot-Huo/Iridium-IWS/internal/pricing"
)

func parseFamily(c *fiber.Ctx) (pricing.Family, error) {
	family := pricing.Family(c.Params("family"))
	if !family.Valid() {
		return "", errors.New("unknown pricing family")
	}
	return family, nil
}

// ListProfiles returns the full history of one pricing family, newest first.
// GET /api/v1/profiles/:family
func ListProfiles(c *fiber.Ctx) error {
	family, err := parseFamily(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{
		"family":   family,
		"profiles": priceHistory.List(family),
	})
}

// GetEffectiveProfile resolves the profile governing one billing month.
// GET /api/v1/profiles/:family/effective/:year/:month
func GetEffectiveProfile(c *fiber.Ctx) error {
	family, err := parseFamily(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	year, err := c.ParamsInt("year")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "year must be numeric"})
	}
	month, err := c.ParamsInt("month")
	if err != nil || month < 1 || month > 12 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "month must be 1-12"})
	}

	at := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	profile, err := priceHistory.ProfileAt(family, at)
	if err != nil {
		if errors.Is(err, pricing.ErrNoApplicableProfile) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(profile)
}

// CreateProfile appends a new profile version to a family's history.
// POST /api/v1/profiles/:family
func CreateProfile(c *fiber.Ctx) error {
	family, err := parseFamily(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var profile pricing.PriceProfile
	if err := c.BodyParser(&profile); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid profile body"})
	}
	profile.Family = family
	if profile.ProfileID == "" {
		profile.ProfileID = uuid.NewString()
	}
	profile.CreatedAt = time.Now().UTC()

	if err := priceHistory.Append(c.Context(), profile); err != nil {
		status := fiber.StatusInternalServerError
		switch {
		case errors.Is(err, pricing.ErrDuplicateProfile):
			status = fiber.StatusConflict
		case errors.Is(err, pricing.ErrInvalidProfile):
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(profile)
}

// AmendProfile replaces a not-yet-effective profile version. Profiles whose
// effective date has passed are locked and cannot be rewritten.
// PUT /api/v1/profiles/:family/:id
func AmendProfile(c *fiber.Ctx) error {
	family, err := parseFamily(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var profile pricing.PriceProfile
	if err := c.BodyParser(&profile); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid profile body"})
	}
	profile.Family = family
	profile.ProfileID = c.Params("id")

	if err := priceHistory.Amend(c.Context(), profile); err != nil {
		status := fiber.StatusInternalServerError
		switch {
		case errors.Is(err, pricing.ErrProfileLocked):
			status = fiber.StatusConflict
		case errors.Is(err, pricing.ErrInvalidProfile):
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(profile)
}
