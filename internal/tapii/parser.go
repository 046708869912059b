package tapii

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Eliot-Huo/Iridium-IWS/internal/models"
)

// MalformedRecordError reports one rejected record with enough context to
// find it again in the source file. Rejection is local: parsing continues
// from the next record boundary.
type MalformedRecordError struct {
	File   string
	Offset int64
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("tapii: malformed record at %s+%d: %s", e.File, e.Offset, e.Reason)
}

// UTCOffsetTable maps TAP II offset codes ('A'-'O') to fixed timezones.
type UTCOffsetTable map[byte]*time.Location

// Parser decodes CDR files. It holds only the immutable format spec, so one
// Parser is safe for concurrent ParseFile calls; the UTC offset table
// announced by a file's type-14 records is scoped to that file and never
// leaks into another file's timestamps.
type Parser struct {
	spec FormatSpec
}

func NewParser(spec FormatSpec) *Parser {
	return &Parser{spec: spec}
}

// ParseFile splits content into fixed-length frames and decodes every call
// record, skipping malformed ones. A trailing partial frame is discarded.
// Returns the parsed records and the per-record rejections.
func (p *Parser) ParseFile(content []byte, filename string) ([]models.CDRRecord, []*MalformedRecordError) {
	var (
		records []models.CDRRecord
		rejects []*MalformedRecordError
	)

	offsets := make(UTCOffsetTable)

	rl := p.spec.RecordLength
	for off := 0; off+rl <= len(content); off += rl {
		frame := content[off : off+rl]

		switch p.spec.RecordType.slice(frame) {
		case recordTypeUTCOffset:
			parseUTCOffsets(p.spec, offsets, frame)
		case recordTypeCall:
			rec, err := ParseRecord(p.spec, offsets, frame, filename, int64(off))
			if err != nil {
				rejects = append(rejects, err)
				continue
			}
			records = append(records, rec)
		case recordTypeHeader, recordTypeExchangeRate, recordTypeTrailer:
			// Structural records; nothing billable in them.
		default:
			rejects = append(rejects, &MalformedRecordError{
				File:   filename,
				Offset: int64(off),
				Reason: fmt.Sprintf("unknown record type %q", p.spec.RecordType.slice(frame)),
			})
		}
	}

	return records, rejects
}

// parseUTCOffsets reads one type-14 record's (code, ±HHMM) entries into the
// table.
func parseUTCOffsets(spec FormatSpec, offsets UTCOffsetTable, frame []byte) {
	for i := 0; i < spec.UTCTableMaxSize; i++ {
		pos := spec.UTCTableStart + i*spec.UTCTableEntrySize
		if pos+spec.UTCTableEntrySize > len(frame) {
			return
		}
		code := frame[pos]
		if code == ' ' {
			return
		}
		loc, err := parseOffsetLocation(string(frame[pos+1 : pos+spec.UTCTableEntrySize]))
		if err != nil {
			continue
		}
		offsets[code] = loc
	}
}

// parseOffsetLocation converts "±HHMM" to a fixed-offset location.
func parseOffsetLocation(s string) (*time.Location, error) {
	if len(s) != 5 || (s[0] != '+' && s[0] != '-') {
		return nil, fmt.Errorf("tapii: bad utc offset %q", s)
	}
	hours, err := strconv.Atoi(s[1:3])
	if err != nil {
		return nil, fmt.Errorf("tapii: bad utc offset %q", s)
	}
	minutes, err := strconv.Atoi(s[3:5])
	if err != nil {
		return nil, fmt.Errorf("tapii: bad utc offset %q", s)
	}
	seconds := hours*3600 + minutes*60
	if s[0] == '-' {
		seconds = -seconds
	}
	return time.FixedZone("UTC"+s, seconds), nil
}

// ParseRecord decodes one call record frame. Pure: identical inputs always
// produce the identical result. The frame must be exactly spec.RecordLength
// bytes; a short buffer (truncated file tail) is a malformed record, not a
// panic.
func ParseRecord(spec FormatSpec, offsets UTCOffsetTable, frame []byte, file string, offset int64) (models.CDRRecord, *MalformedRecordError) {
	reject := func(reason string) (models.CDRRecord, *MalformedRecordError) {
		return models.CDRRecord{}, &MalformedRecordError{File: file, Offset: offset, Reason: reason}
	}

	if len(frame) != spec.RecordLength {
		return reject(fmt.Sprintf("truncated record: %d of %d bytes", len(frame), spec.RecordLength))
	}

	imei := strings.TrimSpace(spec.IMEI.slice(frame))
	if len(imei) != 15 || !allDigits(imei) {
		return reject(fmt.Sprintf("implausible IMEI %q", imei))
	}

	ts, err := parseTimestamp(spec, offsets, frame)
	if err != nil {
		return reject(err.Error())
	}

	rawBytes := strings.TrimSpace(spec.DataBytes.slice(frame))
	dataBytes, err := strconv.ParseInt(rawBytes, 10, 64)
	if err != nil || dataBytes < 0 {
		return reject(fmt.Sprintf("bad byte count %q", rawBytes))
	}

	code := spec.ServiceCode.slice(frame)
	class, known := classifyService(code)

	return models.CDRRecord{
		IMEI:           imei,
		Timestamp:      ts,
		DataBytes:      dataBytes,
		Service:        class,
		ServiceCode:    code,
		UnknownService: !known,
		SourceFile:     file,
		SourceOffset:   offset,
	}, nil
}

// classifyService maps a 2-character service code to a billing category.
// Unrecognized codes fall back to data transfer with known=false.
func classifyService(code string) (models.ServiceClass, bool) {
	switch code {
	case ServiceCodeSBD, ServiceCodeM2MSBD:
		return models.ServiceData, true
	case ServiceCodeMailboxCheck:
		return models.ServiceMailboxCheck, true
	case ServiceCodeRegistration:
		return models.ServiceRegistration, true
	default:
		return models.ServiceData, false
	}
}

// parseTimestamp combines the YYMMDD and HHMMSS fields. TAP II timestamps are
// already local time; the UTC offset code only attaches the zone. An unknown
// code falls back to UTC rather than rejecting the record.
func parseTimestamp(spec FormatSpec, offsets UTCOffsetTable, frame []byte) (time.Time, error) {
	d := spec.ChargeDate.slice(frame)
	t := spec.ChargeTime.slice(frame)
	if !allDigits(d) || !allDigits(t) {
		return time.Time{}, fmt.Errorf("bad date/time %q %q", d, t)
	}

	year := 2000 + atoi2(d[0:2])
	month := atoi2(d[2:4])
	day := atoi2(d[4:6])
	hour := atoi2(t[0:2])
	minute := atoi2(t[2:4])
	sec := atoi2(t[4:6])

	if month < 1 || month > 12 || day < 1 || day > 31 ||
		hour > 23 || minute > 59 || sec > 59 {
		return time.Time{}, fmt.Errorf("date/time out of range %q %q", d, t)
	}

	loc := time.UTC
	if l, ok := offsets[frame[spec.UTCOffsetCode]]; ok {
		loc = l
	}

	ts := time.Date(year, time.Month(month), day, hour, minute, sec, 0, loc)
	// Reject normalized rollovers such as Feb 30.
	if ts.Day() != day || int(ts.Month()) != month {
		return time.Time{}, fmt.Errorf("impossible calendar date %q", d)
	}
	return ts, nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func atoi2(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
