// Package billing turns one device-month of parsed CDR records into a bill,
// and diffs customer against wholesale pricing for profit.
package billing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Eliot-Huo/Iridium-IWS/internal/models"
	"github.com/Eliot-Huo/Iridium-IWS/internal/pricing"
)

// AccountStatus controls bill shape: a suspended device owes only the
// suspended monthly fee regardless of traffic.
type AccountStatus string

const (
	StatusActive    AccountStatus = "ACTIVE"
	StatusSuspended AccountStatus = "SUSPENDED"
)

// UsageDetail is one calendar day's usage inside a bill.
type UsageDetail struct {
	Date          string `json:"date"` // YYYY-MM-DD
	MessageCount  int    `json:"message_count"`
	TotalBytes    int64  `json:"total_bytes"`
	BillableBytes int64  `json:"billable_bytes"`
	MailboxChecks int    `json:"mailbox_checks"`
	Registrations int    `json:"registrations"`
}

// MonthlyBill is the computed bill for one device and calendar month.
type MonthlyBill struct {
	IMEI     string         `json:"imei"`
	PlanName string         `json:"plan_name"`
	Family   pricing.Family `json:"family"`
	Year     int            `json:"year"`
	Month    int            `json:"month"`

	MonthlyRate   decimal.Decimal `json:"monthly_rate"`
	IncludedBytes int64           `json:"included_bytes"`

	TotalBytes    int64 `json:"total_bytes"`
	BillableBytes int64 `json:"billable_bytes"`
	MessageCount  int   `json:"message_count"`
	MailboxChecks int   `json:"mailbox_checks"`
	Registrations int   `json:"registrations"`

	BaseFee          decimal.Decimal `json:"base_fee"`
	OverageCost      decimal.Decimal `json:"overage_cost"`
	MailboxCost      decimal.Decimal `json:"mailbox_cost"`
	RegistrationCost decimal.Decimal `json:"registration_cost"`
	TotalCost        decimal.Decimal `json:"total_cost"`

	DailyUsage  []UsageDetail `json:"daily_usage"`
	RecordCount int           `json:"record_count"`
}

// Calculator computes bills against price profiles resolved per billing
// month. Pure and read-only: safe to call concurrently across devices.
type Calculator struct {
	resolver *pricing.Resolver
}

func NewCalculator(r *pricing.Resolver) *Calculator {
	return &Calculator{resolver: r}
}

// ComputeBill bills one device for one calendar month from its CDR records.
// Records outside the device/month are filtered out, so callers may pass a
// whole bucket. Zero matching records still produce a bill: the base rate is
// owed with or without traffic.
func (c *Calculator) ComputeBill(imei string, year, month int, records []models.CDRRecord, planName string, family pricing.Family) (MonthlyBill, error) {
	plan, err := c.resolver.Plan(planName, family, year, month)
	if err != nil {
		return MonthlyBill{}, fmt.Errorf("billing: %s %d-%02d: %w", imei, year, month, err)
	}

	filtered := filterDeviceMonth(records, imei, year, month)
	stats := tallyUsage(filtered, plan)

	overage := plan.OverageCost(stats.billableBytes)
	mailboxCost := plan.MailboxCheckFee.Mul(decimal.NewFromInt(int64(stats.mailboxChecks)))
	registrationCost := plan.RegistrationFee.Mul(decimal.NewFromInt(int64(stats.registrations)))
	total := plan.MonthlyRate.Add(overage).Add(mailboxCost).Add(registrationCost)

	return MonthlyBill{
		IMEI:     imei,
		PlanName: planName,
		Family:   family,
		Year:     year,
		Month:    month,

		MonthlyRate:   plan.MonthlyRate,
		IncludedBytes: plan.IncludedBytes,

		TotalBytes:    stats.totalBytes,
		BillableBytes: stats.billableBytes,
		MessageCount:  stats.messages,
		MailboxChecks: stats.mailboxChecks,
		Registrations: stats.registrations,

		BaseFee:          plan.MonthlyRate,
		OverageCost:      overage,
		MailboxCost:      mailboxCost,
		RegistrationCost: registrationCost,
		TotalCost:        total,

		DailyUsage:  dailyUsage(filtered, plan),
		RecordCount: len(filtered),
	}, nil
}

// ComputeSuspendedBill bills a suspended device: the suspended monthly fee
// only, no usage accounting.
func (c *Calculator) ComputeSuspendedBill(imei string, year, month int, planName string, family pricing.Family) (MonthlyBill, error) {
	plan, err := c.resolver.Plan(planName, family, year, month)
	if err != nil {
		return MonthlyBill{}, fmt.Errorf("billing: %s %d-%02d: %w", imei, year, month, err)
	}

	return MonthlyBill{
		IMEI:             imei,
		PlanName:         planName,
		Family:           family,
		Year:             year,
		Month:            month,
		MonthlyRate:      plan.SuspendedFee,
		BaseFee:          plan.SuspendedFee,
		OverageCost:      decimal.Zero,
		MailboxCost:      decimal.Zero,
		RegistrationCost: decimal.Zero,
		TotalCost:        plan.SuspendedFee,
	}, nil
}

type usageStats struct {
	totalBytes    int64
	billableBytes int64
	messages      int
	mailboxChecks int
	registrations int
}

// tallyUsage partitions records by service class. Data records contribute
// bytes (rounded up to the plan minimum per record, then summed); mailbox
// checks and registrations only bump their event counters.
func tallyUsage(records []models.CDRRecord, plan pricing.PlanPricing) usageStats {
	var s usageStats
	for _, r := range records {
		switch r.Service {
		case models.ServiceMailboxCheck:
			s.mailboxChecks++
		case models.ServiceRegistration:
			s.registrations++
		default:
			s.messages++
			s.totalBytes += r.DataBytes
			s.billableBytes += plan.ApplyMinimumMessageSize(r.DataBytes)
		}
	}
	return s
}

func filterDeviceMonth(records []models.CDRRecord, imei string, year, month int) []models.CDRRecord {
	var out []models.CDRRecord
	for _, r := range records {
		if r.IMEI != imei {
			continue
		}
		if r.Timestamp.Year() != year || int(r.Timestamp.Month()) != month {
			continue
		}
		out = append(out, r)
	}
	return out
}

// dailyUsage produces one UsageDetail per distinct calendar day present.
func dailyUsage(records []models.CDRRecord, plan pricing.PlanPricing) []UsageDetail {
	byDay := make(map[string][]models.CDRRecord)
	for _, r := range records {
		key := r.Timestamp.Format("2006-01-02")
		byDay[key] = append(byDay[key], r)
	}

	days := make([]string, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Strings(days)

	details := make([]UsageDetail, 0, len(days))
	for _, d := range days {
		stats := tallyUsage(byDay[d], plan)
		details = append(details, UsageDetail{
			Date:          d,
			MessageCount:  stats.messages,
			TotalBytes:    stats.totalBytes,
			BillableBytes: stats.billableBytes,
			MailboxChecks: stats.mailboxChecks,
			Registrations: stats.registrations,
		})
	}
	return details
}
