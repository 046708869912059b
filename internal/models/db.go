package models

import (
	"time"
)

// CDRRow is the local DB index of one parsed CDR record. The blob store keeps
// the durable per-period artifacts; this table exists so billing queries for
// one device+month hit an indexed local table instead of scanning blobs.
type CDRRow struct {
	ID           uint   `gorm:"primaryKey"`
	IMEI         string `gorm:"index:idx_cdr_imei_period;size:15"`
	PeriodKey    string `gorm:"index:idx_cdr_imei_period;size:7"`
	Timestamp    time.Time
	DataBytes    int64
	Service      string `gorm:"size:16"`
	ServiceCode  string `gorm:"size:2"`
	SourceFile   string `gorm:"index;size:64"`
	SourceOffset int64
	CreatedAt    time.Time
}

// ToRecord converts an index row back to the domain record.
func (r CDRRow) ToRecord() CDRRecord {
	return CDRRecord{
		IMEI:         r.IMEI,
		Timestamp:    r.Timestamp,
		DataBytes:    r.DataBytes,
		Service:      ServiceClass(r.Service),
		ServiceCode:  r.ServiceCode,
		SourceFile:   r.SourceFile,
		SourceOffset: r.SourceOffset,
	}
}

// RowFromRecord builds the index row for a parsed record.
func RowFromRecord(rec CDRRecord) CDRRow {
	return CDRRow{
		IMEI:         rec.IMEI,
		PeriodKey:    PeriodOf(rec.Timestamp).Key(),
		Timestamp:    rec.Timestamp,
		DataBytes:    rec.DataBytes,
		Service:      string(rec.Service),
		ServiceCode:  rec.ServiceCode,
		SourceFile:   rec.SourceFile,
		SourceOffset: rec.SourceOffset,
	}
}

// PassLog records the outcome of one ingestion pass for diagnostics.
type PassLog struct {
	ID              uint   `gorm:"primaryKey"`
	PassID          string `gorm:"index;size:36"`
	Stage           string `gorm:"size:16"`
	StartedAt       time.Time
	DurationMs      int64
	FilesListed     int
	FilesSkipped    int
	FilesProcessed  int
	FilesFailed     int
	RecordsParsed   int
	RecordsRejected int
	StateSaved      bool
	Error           string
	CreatedAt       time.Time
}
