// Package tapii decodes the fixed-length TAP II v9.2 call-detail records
// delivered by the Iridium clearing house. Every record is a 160-byte frame;
// field positions are carried in a FormatSpec so the layout stays a single
// point of configuration that tests can validate against the protocol table.
package tapii

// FieldRange is a half-open [Start, End) byte range inside one record frame.
type FieldRange struct {
	Start int
	End   int
}

func (f FieldRange) slice(frame []byte) string {
	return string(frame[f.Start:f.End])
}

// FormatSpec describes the byte layout of one TAP II record frame.
type FormatSpec struct {
	RecordLength int

	RecordType   FieldRange // "10" header, "12" exchange rate, "14" UTC offsets, "20" call, "90" trailer
	IMEI         FieldRange // IMSI field; carries the IMEI for SBD service codes
	CalledNumber FieldRange
	ServiceCode  FieldRange
	MSCID        FieldRange
	LocationArea FieldRange // E.212 country code
	CellID       FieldRange
	ChargeDate   FieldRange // YYMMDD
	ChargeTime   FieldRange // HHMMSS
	DataBytes    FieldRange
	Charge       FieldRange // integer with 3 implied decimals

	// Single-byte position of the UTC offset code ('A'-'O') in a call record.
	UTCOffsetCode int

	// Type 14 records carry a table of (code, ±HHMM) entries.
	UTCTableStart     int
	UTCTableEntrySize int
	UTCTableMaxSize   int
}

// DefaultFormat is the layout observed in production CDR files
// (TAP II v9.2, SBD MOC records).
var DefaultFormat = FormatSpec{
	RecordLength: 160,

	RecordType:   FieldRange{0, 2},
	IMEI:         FieldRange{9, 24},
	CalledNumber: FieldRange{43, 64},
	ServiceCode:  FieldRange{65, 67},
	MSCID:        FieldRange{88, 103},
	LocationArea: FieldRange{103, 108},
	CellID:       FieldRange{108, 113},
	ChargeDate:   FieldRange{114, 120},
	ChargeTime:   FieldRange{120, 126},
	DataBytes:    FieldRange{133, 139},
	Charge:       FieldRange{139, 148},

	UTCOffsetCode: 126,

	UTCTableStart:     2,
	UTCTableEntrySize: 6,
	UTCTableMaxSize:   15,
}

// Record type discriminators at RecordType offset.
const (
	recordTypeHeader       = "10"
	recordTypeExchangeRate = "12"
	recordTypeUTCOffset    = "14"
	recordTypeCall         = "20"
	recordTypeTrailer      = "90"
)

// Service codes relevant to SBD billing. Codes outside this vocabulary are
// billed as data transfer but flagged, since the vocabulary may grow.
const (
	ServiceCodeSBD          = "36"
	ServiceCodeM2MSBD       = "38"
	ServiceCodeMailboxCheck = "81"
	ServiceCodeRegistration = "82"
)
