package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/Eliot-Huo/Iridium-IWS/internal/pricing"
)

// parseBillingPeriod pulls imei/year/month out of the route params.
func parseBillingPeriod(c *fiber.Ctx) (imei string, year, month int, err error) {
	imei = c.Params("imei")
	year, err = c.ParamsInt("year")
	if err != nil {
		return "", 0, 0, errors.New("year must be numeric")
	}
	month, err = c.ParamsInt("month")
	if err != nil {
		return "", 0, 0, errors.New("month must be numeric")
	}
	if month < 1 || month > 12 {
		return "", 0, 0, errors.New("month must be 1-12")
	}
	return imei, year, month, nil
}

// billingError maps the pricing error taxonomy onto HTTP statuses.
func billingError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	if errors.Is(err, pricing.ErrNoApplicableProfile) {
		status = fiber.StatusUnprocessableEntity
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// GetBill computes the monthly bill for one device.
// GET /api/v1/billing/:imei/:year/:month?plan=SBD12&family=customer&suspended=false
func GetBill(c *fiber.Ctx) error {
	imei, year, month, err := parseBillingPeriod(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	plan := c.Query("plan", "SBD12")
	family := pricing.Family(c.Query("family", string(pricing.FamilyCustomer)))
	if !family.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown pricing family"})
	}

	if c.QueryBool("suspended", false) {
		bill, err := billingService.SuspendedBill(imei, year, month, plan, family)
		if err != nil {
			return billingError(c, err)
		}
		return c.JSON(bill)
	}

	bill, err := billingService.Bill(imei, year, month, plan, family)
	if err != nil {
		return billingError(c, err)
	}
	return c.JSON(bill)
}

// GetProfit computes the customer-versus-cost spread for one device-month.
// GET /api/v1/billing/:imei/:year/:month/profit?customer_plan=SBD12&cost_plan=SBD12
func GetProfit(c *fiber.Ctx) error {
	imei, year, month, err := parseBillingPeriod(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	customerPlan := c.Query("customer_plan", "SBD12")
	costPlan := c.Query("cost_plan", "SBD12")

	report, err := billingService.Profit(imei, year, month, customerPlan, costPlan)
	if err != nil {
		return billingError(c, err)
	}
	return c.JSON(report)
}

// GetMonthDevices lists devices with indexed traffic in a period.
// GET /api/v1/billing/:year/:month/devices
func GetMonthDevices(c *fiber.Ctx) error {
	year, err := c.ParamsInt("year")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "year must be numeric"})
	}
	month, err := c.ParamsInt("month")
	if err != nil || month < 1 || month > 12 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "month must be 1-12"})
	}

	imeis, err := billingService.MonthDevices(year, month)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{
		"year":    year,
		"month":   month,
		"devices": imeis,
		"count":   len(imeis),
	})
}
