package models

import (
	"fmt"
	"time"
)

// ServiceClass is the billing category a CDR record falls into.
type ServiceClass string

const (
	ServiceData         ServiceClass = "data"
	ServiceMailboxCheck ServiceClass = "mailbox_check"
	ServiceRegistration ServiceClass = "registration"
)

// CDRRecord is one parsed usage event for a device. Derived from the raw
// 160-byte TAP II frame and never mutated after parse.
type CDRRecord struct {
	IMEI        string       `json:"imei"`
	Timestamp   time.Time    `json:"timestamp"`
	DataBytes   int64        `json:"data_bytes"`
	Service     ServiceClass `json:"service"`
	ServiceCode string       `json:"service_code"`

	// UnknownService marks records whose 2-character service code is not in
	// the known vocabulary; they are billed as data but flagged so operators
	// can spot new codes.
	UnknownService bool `json:"unknown_service,omitempty"`

	// Source traceability for debugging malformed or surprising records.
	SourceFile   string `json:"source_file"`
	SourceOffset int64  `json:"source_offset"`
}

// RemoteFile is one listable file at the remote CDR source.
type RemoteFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Period is one billing period (calendar month).
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// PeriodOf returns the billing period a timestamp falls into.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

// Key renders the period as the "YYYY-MM" form used for blob keys and the
// monthly_stats map in the sync ledger.
func (p Period) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

func (p Period) String() string { return p.Key() }

// Before reports whether p precedes q chronologically.
func (p Period) Before(q Period) bool {
	if p.Year != q.Year {
		return p.Year < q.Year
	}
	return p.Month < q.Month
}
