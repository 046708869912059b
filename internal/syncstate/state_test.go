package syncstate

import (
	"testing"
	"time"

	"github.com/Eliot-Huo/Iridium-IWS/internal/models"
)

func TestDiffSkipsProcessed(t *testing.T) {
	state := NewState().
		WithProcessed("a.dat", 160, 1, time.Now()).
		WithProcessed("c.dat", 320, 2, time.Now())

	remote := []models.RemoteFile{
		{Name: "c.dat", Size: 320},
		{Name: "b.dat", Size: 160},
		{Name: "a.dat", Size: 160},
		{Name: "d.dat", Size: 480},
	}

	fresh := Diff(remote, state)
	if len(fresh) != 2 {
		t.Fatalf("got %d fresh files, want 2", len(fresh))
	}
	// Sorted by name for reproducible processing order.
	if fresh[0].Name != "b.dat" || fresh[1].Name != "d.dat" {
		t.Errorf("fresh = %v", fresh)
	}
}

func TestDiffAgainstEmptyStateReturnsEverything(t *testing.T) {
	remote := []models.RemoteFile{{Name: "a.dat"}, {Name: "b.dat"}}
	fresh := Diff(remote, NewState())
	if len(fresh) != len(remote) {
		t.Errorf("got %d fresh files, want %d", len(fresh), len(remote))
	}
}

func TestWithProcessedIdempotent(t *testing.T) {
	now := time.Now()
	state := NewState().
		WithProcessed("a.dat", 160, 1, now).
		WithProcessed("a.dat", 160, 1, now)

	if state.TotalFilesProcessed != 1 {
		t.Errorf("TotalFilesProcessed = %d, want 1", state.TotalFilesProcessed)
	}
	if !state.IsProcessed("a.dat") {
		t.Error("a.dat not marked processed")
	}
}

func TestWithProcessedClearsPriorError(t *testing.T) {
	now := time.Now()
	state := NewState().
		WithFileError("a.dat", "fetch failed").
		WithProcessed("a.dat", 160, 1, now)

	if _, ok := state.Errors["a.dat"]; ok {
		t.Error("error entry survived successful processing")
	}
}

func TestUpdatesDoNotAliasOriginal(t *testing.T) {
	base := NewState()
	updated := base.WithProcessed("a.dat", 160, 1, time.Now())

	if base.IsProcessed("a.dat") {
		t.Error("update leaked into the original state")
	}
	if !updated.IsProcessed("a.dat") {
		t.Error("update missing from the returned state")
	}
}

func TestWithMonthlyStatsAccumulates(t *testing.T) {
	period := models.Period{Year: 2026, Month: 1}
	now := time.Now()
	state := NewState().
		WithMonthlyStats(period, 1, 100, now).
		WithMonthlyStats(period, 1, 50, now)

	stat := state.MonthlyStats["2026-01"]
	if stat.FileCount != 2 || stat.RecordCount != 150 {
		t.Errorf("stat = %+v, want 2 files / 150 records", stat)
	}
}
