package attendance

import (
	"strings"
	"time"
)

// Policy carries the deployment-tunable attendance rules. The defaults match
// the latest rule set the devices in the field were calibrated against.
type Policy struct {
	GraceMinutes           int // minutes after start still counted present
	EarlyCheckInMinutes    int // minutes before start still within the window
	DeviceClockOffsetHours int // RFID reader clocks run ahead by this much
	Location               *time.Location
}

// DefaultPolicy returns the canonical rule set: 30 minute grace, 10 minute
// early lead, 2 hour device clock skew, local wall-clock time.
func DefaultPolicy() Policy {
	return Policy{
		GraceMinutes:           30,
		EarlyCheckInMinutes:    10,
		DeviceClockOffsetHours: 2,
		Location:               time.Local,
	}
}

func (p Policy) loc() *time.Location {
	if p.Location != nil {
		return p.Location
	}
	return time.Local
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

var clockLayouts = []string{
	"15:04:05",
	"15:04",
}

// ParseLocalDateTime parses a date-time string as local wall-clock time with
// no implicit zone conversion. Strings that already carry zone information
// (RFC 3339) are honored as written. Returns nil when unparseable.
func (p Policy) ParseLocalDateTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, p.loc()); err == nil {
			return &t
		}
	}
	return nil
}

// parseClockOnTime interprets a bare HH:MM[:SS] clock string on the given
// calendar date.
func (p Policy) parseClockOnDate(date, clock string) *time.Time {
	for _, layout := range clockLayouts {
		if t, err := time.ParseInLocation("2006-01-02T"+layout, date+"T"+clock, p.loc()); err == nil {
			return &t
		}
	}
	return nil
}

// normalizeInstant turns one dual-representation event into an absolute
// instant. An epoch value is authoritative device time and gets the fixed
// clock-skew correction subtracted; a string is parsed as local wall-clock,
// borrowing the exam's calendar date when it has no date component of its
// own. Pure and deterministic; nil when no usable data exists.
func (p Policy) normalizeInstant(exam *Exam, epoch int64, value string) *time.Time {
	if epoch != 0 {
		t := time.Unix(epoch-int64(p.DeviceClockOffsetHours)*3600, 0).In(p.loc())
		return &t
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if !strings.ContainsAny(value, "T-") && exam != nil {
		return p.parseClockOnDate(exam.ExamDate, value)
	}
	return p.ParseLocalDateTime(value)
}

// CheckInInstant derives the comparable check-in instant for a record, or
// nil when absent or unparseable.
func (p Policy) CheckInInstant(exam *Exam, rec *Record) *time.Time {
	if rec == nil {
		return nil
	}
	return p.normalizeInstant(exam, rec.CheckInEpoch, rec.CheckInTime)
}

// CheckOutInstant derives the comparable check-out instant for a record.
func (p Policy) CheckOutInstant(exam *Exam, rec *Record) *time.Time {
	if rec == nil {
		return nil
	}
	return p.normalizeInstant(exam, rec.CheckOutEpoch, rec.CheckOutTime)
}
