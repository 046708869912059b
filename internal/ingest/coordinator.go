// Package ingest runs the incremental CDR ingestion pass: list the remote
// directory, diff against the sync ledger, fetch and parse the fresh files in
// parallel, persist artifacts, and advance the ledger.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/Eliot-Huo/Iridium-IWS/internal/blob"
	"github.com/Eliot-Huo/Iridium-IWS/internal/bucket"
	"github.com/Eliot-Huo/Iridium-IWS/internal/events"
	"github.com/Eliot-Huo/Iridium-IWS/internal/filesource"
	"github.com/Eliot-Huo/Iridium-IWS/internal/models"
	"github.com/Eliot-Huo/Iridium-IWS/internal/reactive"
	"github.com/Eliot-Huo/Iridium-IWS/internal/syncstate"
	"github.com/Eliot-Huo/Iridium-IWS/internal/tapii"
)

// Stage is the coarse progress indicator of a pass.
type Stage string

const (
	StageListing     Stage = "LISTING"
	StageDiffing     Stage = "DIFFING"
	StageFetching    Stage = "FETCHING"
	StageParsing     Stage = "PARSING"
	StageBucketing   Stage = "BUCKETING"
	StagePersisting  Stage = "PERSISTING"
	StageSavingState Stage = "SAVING_STATE"
	StageDone        Stage = "DONE"
	StageFailed      Stage = "FAILED"
)

// defaultCheckpointEvery is how many processed files between intermediate
// ledger saves. A crash mid-pass then re-does at most this many files.
const defaultCheckpointEvery = 10

// Broadcaster pushes pass progress to interested listeners. Nil is allowed.
type Broadcaster interface {
	BroadcastEvent(eventType string, payload interface{})
}

// PassReport is the outcome of one ingestion pass.
type PassReport struct {
	PassID     string    `json:"pass_id"`
	Stage      Stage     `json:"stage"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	StateSource     string `json:"state_source"`
	RemoteFiles     int    `json:"remote_files"`
	FilesSkipped    int    `json:"files_skipped"`
	FilesProcessed  int    `json:"files_processed"`
	FilesFailed     int    `json:"files_failed"`
	RecordsParsed   int    `json:"records_parsed"`
	RecordsRejected int    `json:"records_rejected"`

	Periods    []string          `json:"periods,omitempty"`
	FileErrors map[string]string `json:"file_errors,omitempty"`
	Warnings   []string          `json:"warnings,omitempty"`

	// StateSaved is false when the terminal ledger save failed. The work is
	// done but will be redone next pass, so callers must not treat the pass
	// as cleanly finished.
	StateSaved bool   `json:"state_saved"`
	Error      string `json:"error,omitempty"`
}

// Coordinator drives ingestion passes. All passes are serialized: concurrent
// triggers collapse onto the in-flight pass and share its report.
type Coordinator struct {
	source  filesource.Source
	states  *syncstate.Store
	blob    blob.Store
	db      *gorm.DB
	parser  *tapii.Parser
	hub     Broadcaster
	stream  reactive.StreamConfig
	every   int

	group singleflight.Group
}

// Option mutates a Coordinator at construction time.
type Option func(*Coordinator)

// WithDB enables the queryable CDR index. Without it records still land in
// blob artifacts, just not in SQLite.
func WithDB(db *gorm.DB) Option { return func(c *Coordinator) { c.db = db } }

// WithBroadcaster wires pass progress events to an SSE hub.
func WithBroadcaster(b Broadcaster) Option { return func(c *Coordinator) { c.hub = b } }

// WithCheckpointEvery overrides the intermediate-save interval.
func WithCheckpointEvery(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.every = n
		}
	}
}

// WithStreamConfig overrides fetch parallelism.
func WithStreamConfig(cfg reactive.StreamConfig) Option {
	return func(c *Coordinator) { c.stream = cfg }
}

func NewCoordinator(source filesource.Source, states *syncstate.Store, store blob.Store, parser *tapii.Parser, opts ...Option) *Coordinator {
	c := &Coordinator{
		source: source,
		states: states,
		blob:   store,
		parser: parser,
		stream: reactive.DefaultStreamConfig(),
		every:  defaultCheckpointEvery,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunPass executes one full ingestion pass. If a pass is already running the
// call joins it and returns the same report instead of starting a second one.
func (c *Coordinator) RunPass(ctx context.Context) (PassReport, error) {
	v, err, _ := c.group.Do("pass", func() (interface{}, error) {
		return c.runPass(ctx)
	})
	report, _ := v.(PassReport)
	return report, err
}

// fileResult is the unit flowing out of the parallel fetch+parse stage.
type fileResult struct {
	file      models.RemoteFile
	records   []models.CDRRecord
	malformed []*tapii.MalformedRecordError
	err       error
}

func (c *Coordinator) runPass(ctx context.Context) (PassReport, error) {
	report := PassReport{
		PassID:     uuid.NewString(),
		Stage:      StageListing,
		StartedAt:  time.Now().UTC(),
		FileErrors: make(map[string]string),
	}
	log.Printf("[Ingest] Pass %s starting", report.PassID)
	c.emit(events.TypePassStarted, report)

	state, source := c.states.Load(ctx)
	report.StateSource = string(source)

	remote, err := c.source.List(ctx)
	if err != nil {
		return c.fail(report, fmt.Errorf("list remote files: %w", err))
	}
	report.RemoteFiles = len(remote)

	report.Stage = StageDiffing
	c.emit(events.TypePassStage, report)
	fresh := syncstate.Diff(remote, state)
	report.FilesSkipped = len(remote) - len(fresh)
	log.Printf("[Ingest] Pass %s: %d remote, %d already processed, %d to ingest",
		report.PassID, len(remote), report.FilesSkipped, len(fresh))

	report.Stage = StageFetching
	c.emit(events.TypePassStage, report)

	periods := make(map[string]bool)
	sinceCheckpoint := 0

	// Fetch and parse in parallel, then commit results one at a time on this
	// goroutine so the ledger only ever advances sequentially.
	results := reactive.FromSlice(ctx, fresh, c.stream).
		MapWithPool(func(ctx context.Context, item interface{}) (interface{}, error) {
			f := item.(models.RemoteFile)
			return c.fetchAndParse(ctx, f), nil
		}).
		ToChannel()

	for item := range results {
		if item.Error() {
			return c.fail(report, fmt.Errorf("pipeline: %w", item.E))
		}
		res := item.V.(fileResult)
		report.Stage = StageParsing

		if res.err != nil {
			report.FilesFailed++
			report.FileErrors[res.file.Name] = res.err.Error()
			state = state.WithFileError(res.file.Name, res.err.Error())
			log.Printf("[Ingest] Pass %s: file %s failed: %v", report.PassID, res.file.Name, res.err)
			c.emit(events.TypeFileFailed, map[string]string{"file": res.file.Name, "error": res.err.Error()})
			continue
		}

		report.Stage = StageBucketing
		buckets := bucket.ByPeriod(res.records)

		report.Stage = StagePersisting
		if err := c.commitFile(ctx, res.file, buckets, res.records); err != nil {
			report.FilesFailed++
			report.FileErrors[res.file.Name] = err.Error()
			state = state.WithFileError(res.file.Name, err.Error())
			log.Printf("[Ingest] Pass %s: persist %s failed: %v", report.PassID, res.file.Name, err)
			continue
		}

		now := time.Now().UTC()
		state = state.WithProcessed(res.file.Name, res.file.Size, len(res.records), now)
		for p, recs := range buckets {
			periods[p.Key()] = true
			state = state.WithMonthlyStats(p, 1, len(recs), now)
		}
		for _, m := range res.malformed {
			report.Warnings = append(report.Warnings, m.Error())
		}

		report.FilesProcessed++
		report.RecordsParsed += len(res.records)
		report.RecordsRejected += len(res.malformed)
		c.emit(events.TypeFileProcessed, map[string]interface{}{
			"file": res.file.Name, "records": len(res.records),
		})

		sinceCheckpoint++
		if sinceCheckpoint >= c.every {
			if err := c.states.Save(ctx, state); err != nil {
				log.Printf("[Ingest] Pass %s: WARNING checkpoint save failed: %v", report.PassID, err)
			}
			sinceCheckpoint = 0
		}
	}

	report.Stage = StageSavingState
	c.emit(events.TypePassStage, report)
	state.InitialSyncCompleted = true
	now := time.Now().UTC()
	state.LastSyncTime = &now

	saveErr := c.states.Save(ctx, state)
	report.StateSaved = saveErr == nil
	if saveErr != nil {
		report.Error = saveErr.Error()
		log.Printf("[Ingest] Pass %s: terminal ledger save failed: %v", report.PassID, saveErr)
	}

	for p := range periods {
		report.Periods = append(report.Periods, p)
	}
	sort.Strings(report.Periods)

	report.Stage = StageDone
	report.FinishedAt = time.Now().UTC()
	c.logPass(report)
	c.emit(events.TypePassFinished, report)
	log.Printf("[Ingest] Pass %s done: %d processed, %d failed, %d records (%d rejected) in %s",
		report.PassID, report.FilesProcessed, report.FilesFailed,
		report.RecordsParsed, report.RecordsRejected, report.FinishedAt.Sub(report.StartedAt))
	return report, saveErr
}

// fetchAndParse runs inside the worker pool; it touches no shared state.
func (c *Coordinator) fetchAndParse(ctx context.Context, f models.RemoteFile) fileResult {
	data, err := c.source.Fetch(ctx, f.Name)
	if err != nil {
		return fileResult{file: f, err: err}
	}
	records, malformed := c.parser.ParseFile(data, f.Name)
	return fileResult{file: f, records: records, malformed: malformed}
}

// commitFile persists one file's records: period-bucketed blob artifacts
// first, then the DB index rows in a transaction. Only after both succeed
// does the caller mark the file processed, so a crash in between re-ingests
// the file instead of losing it.
func (c *Coordinator) commitFile(ctx context.Context, file models.RemoteFile, buckets map[models.Period][]models.CDRRecord, records []models.CDRRecord) error {
	for period, recs := range buckets {
		data, err := json.MarshalIndent(recs, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal artifact: %w", err)
		}
		key := artifactKey(period, file.Name)
		if err := c.blob.Put(ctx, key, data); err != nil {
			return fmt.Errorf("put artifact %s: %w", key, err)
		}
	}

	if c.db == nil || len(records) == 0 {
		return nil
	}
	rows := make([]models.CDRRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, models.RowFromRecord(rec))
	}
	return c.db.Transaction(func(tx *gorm.DB) error {
		// Idempotent on re-ingest after ledger loss.
		if err := tx.Where("source_file = ?", file.Name).Delete(&models.CDRRow{}).Error; err != nil {
			return err
		}
		return tx.CreateInBatches(rows, 500).Error
	})
}

// artifactKey names the per-period blob artifact for one source file.
func artifactKey(period models.Period, file string) string {
	return "cdr/" + period.Key() + "/" + file + ".json"
}

func (c *Coordinator) fail(report PassReport, err error) (PassReport, error) {
	report.Stage = StageFailed
	report.Error = err.Error()
	report.FinishedAt = time.Now().UTC()
	log.Printf("[Ingest] Pass %s FAILED: %v", report.PassID, err)
	c.logPass(report)
	c.emit(events.TypePassFinished, report)
	return report, err
}

// logPass writes the pass outcome to the diagnostics table.
func (c *Coordinator) logPass(report PassReport) {
	if c.db == nil {
		return
	}
	row := models.PassLog{
		PassID:          report.PassID,
		Stage:           string(report.Stage),
		StartedAt:       report.StartedAt,
		DurationMs:      report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
		FilesListed:     report.RemoteFiles,
		FilesSkipped:    report.FilesSkipped,
		FilesProcessed:  report.FilesProcessed,
		FilesFailed:     report.FilesFailed,
		RecordsParsed:   report.RecordsParsed,
		RecordsRejected: report.RecordsRejected,
		StateSaved:      report.StateSaved,
		Error:           report.Error,
	}
	if err := c.db.Create(&row).Error; err != nil {
		log.Printf("[Ingest] WARNING: pass log write failed: %v", err)
	}
}

func (c *Coordinator) emit(eventType string, payload interface{}) {
	if c.hub == nil {
		return
	}
	c.hub.BroadcastEvent(eventType, payload)
}
