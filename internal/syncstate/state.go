// Package syncstate is the idempotency ledger for incremental CDR ingestion:
// which remote files have been processed, when, and the per-period aggregate
// counters. The ledger is the single source of truth for what gets skipped;
// losing it degrades to "process everything again" (wasteful but safe), never
// to "skip everything".
package syncstate

import (
	"sort"
	"time"

	"github.com/Eliot-Huo/Iridium-IWS/internal/models"
)

const stateVersion = "1.0"

// ProcessedFile is the ledger entry for one ingested source file.
type ProcessedFile struct {
	ProcessedAt time.Time `json:"processed_at"`
	Size        int64     `json:"file_size"`
	RecordCount int       `json:"record_count"`
}

// MonthlyStat aggregates ingestion volume per billing period.
type MonthlyStat struct {
	FileCount   int       `json:"file_count"`
	RecordCount int       `json:"total_records"`
	LastUpdated time.Time `json:"last_updated"`
}

// SyncState is the full ledger. Field names are stable across versions; the
// persisted JSON is the contract with every past and future deployment.
type SyncState struct {
	Version              string                   `json:"version"`
	InitialSyncCompleted bool                     `json:"initial_sync_completed"`
	LastSyncTime         *time.Time               `json:"last_sync_time"`
	TotalFilesProcessed  int                      `json:"total_files_processed"`
	ProcessedFiles       map[string]ProcessedFile `json:"processed_files"`
	MonthlyStats         map[string]MonthlyStat   `json:"monthly_stats"`
	Errors               map[string]string        `json:"errors"`
}

// NewState returns an empty first-run ledger.
func NewState() SyncState {
	return SyncState{
		Version:        stateVersion,
		ProcessedFiles: make(map[string]ProcessedFile),
		MonthlyStats:   make(map[string]MonthlyStat),
		Errors:         make(map[string]string),
	}
}

// IsProcessed reports whether the file name is already in the ledger.
func (s SyncState) IsProcessed(name string) bool {
	_, ok := s.ProcessedFiles[name]
	return ok
}

// Clone deep-copies the state so updates never alias a caller's maps.
func (s SyncState) Clone() SyncState {
	out := s
	out.ProcessedFiles = make(map[string]ProcessedFile, len(s.ProcessedFiles))
	for k, v := range s.ProcessedFiles {
		out.ProcessedFiles[k] = v
	}
	out.MonthlyStats = make(map[string]MonthlyStat, len(s.MonthlyStats))
	for k, v := range s.MonthlyStats {
		out.MonthlyStats[k] = v
	}
	out.Errors = make(map[string]string, len(s.Errors))
	for k, v := range s.Errors {
		out.Errors[k] = v
	}
	if s.LastSyncTime != nil {
		t := *s.LastSyncTime
		out.LastSyncTime = &t
	}
	return out
}

// WithProcessed returns a copy of the state with the file recorded as
// processed. The total counter tracks the set size, so re-marking an already
// processed file cannot inflate it.
func (s SyncState) WithProcessed(name string, size int64, records int, at time.Time) SyncState {
	out := s.Clone()
	out.ProcessedFiles[name] = ProcessedFile{
		ProcessedAt: at,
		Size:        size,
		RecordCount: records,
	}
	out.TotalFilesProcessed = len(out.ProcessedFiles)
	delete(out.Errors, name)
	return out
}

// WithMonthlyStats returns a copy with the period counters bumped.
func (s SyncState) WithMonthlyStats(period models.Period, files, records int, at time.Time) SyncState {
	out := s.Clone()
	key := period.Key()
	stat := out.MonthlyStats[key]
	stat.FileCount += files
	stat.RecordCount += records
	stat.LastUpdated = at
	out.MonthlyStats[key] = stat
	return out
}

// WithFileError returns a copy with a per-file failure note retained for the
// diagnostics view. The file stays unprocessed.
func (s SyncState) WithFileError(name, reason string) SyncState {
	out := s.Clone()
	out.Errors[name] = reason
	return out
}

// Diff returns the remote files not yet in the ledger, sorted by name so
// processing order is reproducible across passes.
func Diff(remote []models.RemoteFile, s SyncState) []models.RemoteFile {
	var fresh []models.RemoteFile
	for _, f := range remote {
		if !s.IsProcessed(f.Name) {
			fresh = append(fresh, f)
		}
	}
	sort.Slice(fresh, func(i, j int) bool { return fresh[i].Name < fresh[j].Name })
	return fresh
}
