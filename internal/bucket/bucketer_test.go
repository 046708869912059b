package bucket

import (
	"testing"
	"time"

	"github.com/Eliot-Huo/Iridium-IWS/internal/models"
)

func rec(ts time.Time) models.CDRRecord {
	return models.CDRRecord{
		IMEI:      "300534066711380",
		Timestamp: ts,
		DataBytes: 100,
		Service:   models.ServiceData,
	}
}

func TestPeriodsCrossMonthBoundary(t *testing.T) {
	records := []models.CDRRecord{
		rec(time.Date(2026, 1, 31, 23, 59, 58, 0, time.UTC)),
		rec(time.Date(2026, 2, 1, 0, 0, 1, 0, time.UTC)),
		rec(time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)),
	}

	periods := Periods(records)
	if len(periods) != 2 {
		t.Fatalf("got %d periods, want 2", len(periods))
	}
	if periods[0].Key() != "2026-01" || periods[1].Key() != "2026-02" {
		t.Errorf("periods = %v, %v; want 2026-01, 2026-02", periods[0], periods[1])
	}
}

func TestByPeriodEachRecordLandsOnce(t *testing.T) {
	records := []models.CDRRecord{
		rec(time.Date(2026, 1, 31, 23, 0, 0, 0, time.UTC)),
		rec(time.Date(2026, 2, 1, 1, 0, 0, 0, time.UTC)),
		rec(time.Date(2026, 2, 2, 2, 0, 0, 0, time.UTC)),
	}

	grouped := ByPeriod(records)
	total := 0
	for _, group := range grouped {
		total += len(group)
	}
	if total != len(records) {
		t.Errorf("grouped %d records, want %d", total, len(records))
	}
	if n := len(grouped[models.Period{Year: 2026, Month: 2}]); n != 2 {
		t.Errorf("2026-02 bucket has %d records, want 2", n)
	}
}

func TestDaysSortedDistinct(t *testing.T) {
	records := []models.CDRRecord{
		rec(time.Date(2026, 1, 15, 23, 0, 0, 0, time.UTC)),
		rec(time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)),
		rec(time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC)),
	}

	days := Days(records)
	if len(days) != 2 {
		t.Fatalf("got %d days, want 2", len(days))
	}
	if days[0] != "2026-01-02" || days[1] != "2026-01-15" {
		t.Errorf("days = %v", days)
	}
}

func TestEmptyInput(t *testing.T) {
	if got := Periods(nil); len(got) != 0 {
		t.Errorf("Periods(nil) = %v", got)
	}
	if got := Days(nil); len(got) != 0 {
		t.Errorf("Days(nil) = %v", got)
	}
	if got := ByPeriod(nil); len(got) != 0 {
		t.Errorf("ByPeriod(nil) = %v", got)
	}
}
