package syncer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Eliot-Huo/Iridium-IWS/internal/blob"
	"github.com/Eliot-Huo/Iridium-IWS/internal/ingest"
	"github.com/Eliot-Huo/Iridium-IWS/internal/models"
	"github.com/Eliot-Huo/Iridium-IWS/internal/syncstate"
	"github.com/Eliot-Huo/Iridium-IWS/internal/tapii"
)

type emptySource struct {
	lists int
}

func (s *emptySource) List(ctx context.Context) ([]models.RemoteFile, error) {
	s.lists++
	return nil, nil
}

func (s *emptySource) Fetch(ctx context.Context, name string) ([]byte, error) {
	return nil, nil
}

func newSyncer(t *testing.T, source *emptySource, interval time.Duration) *Syncer {
	t.Helper()
	store, err := blob.NewDirStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirStore: %v", err)
	}
	states := syncstate.NewStore(store, filepath.Join(t.TempDir(), "mirror.json"))
	c := ingest.NewCoordinator(source, states, store, tapii.NewParser(tapii.DefaultFormat))
	return New(c, interval)
}

func TestPauseFlag(t *testing.T) {
	s := newSyncer(t, &emptySource{}, time.Minute)
	if s.IsPaused() {
		t.Error("new syncer starts paused")
	}
	s.SetPaused(true)
	if !s.IsPaused() {
		t.Error("SetPaused(true) did not stick")
	}
	s.SetPaused(false)
	if s.IsPaused() {
		t.Error("SetPaused(false) did not stick")
	}
}

func TestTriggerSyncRunsWhilePaused(t *testing.T) {
	source := &emptySource{}
	s := newSyncer(t, source, time.Minute)
	s.SetPaused(true)

	report, err := s.TriggerSync(context.Background())
	if err != nil {
		t.Fatalf("TriggerSync: %v", err)
	}
	if source.lists != 1 {
		t.Errorf("source listed %d times, want 1", source.lists)
	}
	if report.Stage != ingest.StageDone {
		t.Errorf("stage = %s, want DONE", report.Stage)
	}
}

func TestLastReport(t *testing.T) {
	s := newSyncer(t, &emptySource{}, time.Minute)

	if _, ok := s.LastReport(); ok {
		t.Error("LastReport before any pass should report none")
	}

	want, err := s.TriggerSync(context.Background())
	if err != nil {
		t.Fatalf("TriggerSync: %v", err)
	}
	got, ok := s.LastReport()
	if !ok {
		t.Fatal("LastReport missing after a pass")
	}
	if got.PassID != want.PassID {
		t.Errorf("LastReport pass id = %s, want %s", got.PassID, want.PassID)
	}
}
