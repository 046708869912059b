// Package syncer schedules background ingestion passes at a fixed interval
// and exposes pause/resume and manual triggering for the HTTP surface.
package syncer

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Eliot-Huo/Iridium-IWS/internal/ingest"
)

type Syncer struct {
	coordinator *ingest.Coordinator
	interval    time.Duration
	paused      int32

	mu         sync.Mutex
	lastReport *ingest.PassReport
}

func New(c *ingest.Coordinator, interval time.Duration) *Syncer {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Syncer{
		coordinator: c,
		interval:    interval,
	}
}

func (s *Syncer) SetPaused(paused bool) {
	var val int32 = 0
	if paused {
		val = 1
	}
	atomic.StoreInt32(&s.paused, val)
	status := "RESUMED"
	if paused {
		status = "PAUSED"
	}
	log.Printf("[Syncer] Status changed to %s", status)
}

func (s *Syncer) IsPaused() bool {
	return atomic.LoadInt32(&s.paused) == 1
}

// LastReport returns the most recent pass report, if any pass has run.
func (s *Syncer) LastReport() (ingest.PassReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastReport == nil {
		return ingest.PassReport{}, false
	}
	return *s.lastReport, true
}

// Start launches the background loop: one pass immediately, then one per
// interval. The loop exits when ctx is cancelled.
func (s *Syncer) Start(ctx context.Context) {
	log.Printf("[Syncer] Starting background ingestion service (every %s)...", s.interval)
	go func() {
		if s.IsPaused() {
			log.Println("[Syncer] Skipping initial pass - syncer is paused")
		} else {
			s.runOnce(ctx)
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Println("[Syncer] Stopping background ingestion service")
				return
			case <-ticker.C:
				if s.IsPaused() {
					log.Println("[Syncer] Skipping scheduled pass - syncer is paused")
					continue
				}
				s.runOnce(ctx)
			}
		}
	}()
}

// TriggerSync runs a pass now, regardless of the schedule. Pause only gates
// the scheduled passes; an explicit trigger is an operator override. If a
// pass is already in flight the trigger joins it.
func (s *Syncer) TriggerSync(ctx context.Context) (ingest.PassReport, error) {
	report, err := s.coordinator.RunPass(ctx)
	s.keep(report)
	return report, err
}

func (s *Syncer) runOnce(ctx context.Context) {
	report, err := s.coordinator.RunPass(ctx)
	s.keep(report)
	if err != nil {
		log.Printf("[Syncer] Pass finished with error: %v", err)
	}
}

func (s *Syncer) keep(report ingest.PassReport) {
	s.mu.Lock()
	s.lastReport = &report
	s.mu.Unlock()
}
