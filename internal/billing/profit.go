package billing

import (
	"github.com/shopspring/decimal"

	"github.com/Eliot-Huo/Iridium-IWS/internal/models"
	"github.com/Eliot-Huo/Iridium-IWS/internal/pricing"
)

// ProfitReport is the customer-versus-wholesale view of one device-month.
type ProfitReport struct {
	IMEI  string `json:"imei"`
	Year  int    `json:"year"`
	Month int    `json:"month"`

	CustomerPlan string `json:"customer_plan"`
	CostPlan     string `json:"cost_plan"`

	Revenue       decimal.Decimal `json:"revenue"`
	Cost          decimal.Decimal `json:"cost"`
	Profit        decimal.Decimal `json:"profit"`
	MarginPercent decimal.Decimal `json:"margin_percent"`

	CustomerBill MonthlyBill `json:"customer_bill"`
	CostBill     MonthlyBill `json:"cost_bill"`
}

// ComputeProfit bills the same traffic under both pricing families and
// reports the spread. Margin is profit over revenue; zero revenue yields a
// zero margin rather than a division error.
func (c *Calculator) ComputeProfit(imei string, year, month int, records []models.CDRRecord, customerPlan, costPlan string) (ProfitReport, error) {
	customer, err := c.ComputeBill(imei, year, month, records, customerPlan, pricing.FamilyCustomer)
	if err != nil {
		return ProfitReport{}, err
	}
	cost, err := c.ComputeBill(imei, year, month, records, costPlan, pricing.FamilyCost)
	if err != nil {
		return ProfitReport{}, err
	}

	profit := customer.TotalCost.Sub(cost.TotalCost)
	margin := decimal.Zero
	if !customer.TotalCost.IsZero() {
		margin = profit.Div(customer.TotalCost).Mul(decimal.NewFromInt(100)).Round(2)
	}

	return ProfitReport{
		IMEI:          imei,
		Year:          year,
		Month:         month,
		CustomerPlan:  customerPlan,
		CostPlan:      costPlan,
		Revenue:       customer.TotalCost,
		Cost:          cost.TotalCost,
		Profit:        profit,
		MarginPercent: margin,
		CustomerBill:  customer,
		CostBill:      cost,
	}, nil
}
