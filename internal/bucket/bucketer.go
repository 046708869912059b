// Package bucket assigns parsed CDR records to billing-period buckets.
// A single CDR file can straddle a month boundary; the file then belongs to
// every period its records touch and its persisted artifact is replicated
// into each period's bucket so monthly queries never scan the whole corpus.
package bucket

import (
	"sort"

	"github.com/Eliot-Huo/Iridium-IWS/internal/models"
)

// Periods returns the distinct billing periods present across records,
// in chronological order.
func Periods(records []models.CDRRecord) []models.Period {
	seen := make(map[models.Period]bool)
	for _, r := range records {
		seen[models.PeriodOf(r.Timestamp)] = true
	}

	periods := make([]models.Period, 0, len(seen))
	for p := range seen {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })
	return periods
}

// Days returns the distinct calendar days ("YYYY-MM-DD") present across
// records, sorted ascending.
func Days(records []models.CDRRecord) []string {
	seen := make(map[string]bool)
	for _, r := range records {
		seen[r.Timestamp.Format("2006-01-02")] = true
	}

	days := make([]string, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	sort.Strings(days)
	return days
}

// ByPeriod groups records by billing period. Each record lands in exactly
// one group, so a per-device-per-month query over any one bucket sees its
// records exactly once even when the source file was replicated.
func ByPeriod(records []models.CDRRecord) map[models.Period][]models.CDRRecord {
	grouped := make(map[models.Period][]models.CDRRecord)
	for _, r := range records {
		p := models.PeriodOf(r.Timestamp)
		grouped[p] = append(grouped[p], r)
	}
	return grouped
}
