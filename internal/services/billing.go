// Package services holds the read-side query services behind the HTTP
// handlers.
package services

import (
	"fmt"

	"github.com/Eliot-Huo/Iridium-IWS/internal/billing"
	"github.com/Eliot-Huo/Iridium-IWS/internal/database"
	"github.com/Eliot-Huo/Iridium-IWS/internal/models"
	"github.com/Eliot-Huo/Iridium-IWS/internal/pricing"
)

// BillingService answers bill and profit queries by pulling one device-month
// of CDR rows from the index and running them through the calculator.
type BillingService struct {
	calc *billing.Calculator
}

func NewBillingService(calc *billing.Calculator) *BillingService {
	return &BillingService{calc: calc}
}

// loadMonth fetches the indexed records for one device and billing period.
func (s *BillingService) loadMonth(imei string, year, month int) ([]models.CDRRecord, error) {
	key := models.Period{Year: year, Month: month}.Key()

	var rows []models.CDRRow
	err := database.DB.
		Where("imei = ? AND period_key = ?", imei, key).
		Order("timestamp").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query cdr index: %w", err)
	}

	records := make([]models.CDRRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.ToRecord())
	}
	return records, nil
}

// Bill computes the monthly bill for one device under the given plan and
// pricing family.
func (s *BillingService) Bill(imei string, year, month int, plan string, family pricing.Family) (billing.MonthlyBill, error) {
	records, err := s.loadMonth(imei, year, month)
	if err != nil {
		return billing.MonthlyBill{}, err
	}
	return s.calc.ComputeBill(imei, year, month, records, plan, family)
}

// SuspendedBill computes the bill for a suspended device.
func (s *BillingService) SuspendedBill(imei string, year, month int, plan string, family pricing.Family) (billing.MonthlyBill, error) {
	return s.calc.ComputeSuspendedBill(imei, year, month, plan, family)
}

// Profit computes the customer-versus-cost spread for one device-month.
func (s *BillingService) Profit(imei string, year, month int, customerPlan, costPlan string) (billing.ProfitReport, error) {
	records, err := s.loadMonth(imei, year, month)
	if err != nil {
		return billing.ProfitReport{}, err
	}
	return s.calc.ComputeProfit(imei, year, month, records, customerPlan, costPlan)
}

// MonthDevices lists the devices that have any indexed traffic in a period.
func (s *BillingService) MonthDevices(year, month int) ([]string, error) {
	key := models.Period{Year: year, Month: month}.Key()

	var imeis []string
	err := database.DB.
		Model(&models.CDRRow{}).
		Where("period_key = ?", key).
		Distinct().
		Order("imei").
		Pluck("imei", &imeis).Error
	if err != nil {
		return nil, fmt.Errorf("query cdr index: %w", err)
	}
	return imeis, nil
}
