package attendance

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError is a manual-path rejection whose reason is surfaced to the
// user verbatim. The write never reaches storage.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func failf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err is a manual-path rejection.
func IsValidationError(err error) bool {
	_, ok := err.(*ValidationError)
	return ok
}

// ManualEntry is the candidate payload for a manual attendance write.
type ManualEntry struct {
	ExamID       string
	StudentID    string
	RFIDTag      string
	CheckInTime  string
	CheckOutTime string
	Status       string
	EmailSent    bool
	DeviceID     string
	DeviceName   string
}

func dateComponent(s string) string {
	return strings.SplitN(s, "T", 2)[0]
}

// ValidateManual enforces the referential and temporal constraints on a
// manual attendance mutation, fail-fast with the first violation. On success
// the entry may have been augmented: device fields are forced to the manual
// sentinels, and a missing check-in is auto-populated with now when the exam
// is currently in its active window. prior is the stored record for edits,
// nil for new entries.
func (p Policy) ValidateManual(entry *ManualEntry, exam *Exam, student *Student, prior *Record, now time.Time) error {
	// Manual entries are never attributed to a physical device.
	entry.DeviceID = ManualDeviceID
	entry.DeviceName = ManualDeviceName

	if student != nil && entry.RFIDTag != student.RFIDTag {
		return failf("RFID tag does not match selected student.")
	}
	if exam == nil {
		return failf("Selected exam not found.")
	}

	window, werr := p.ExamWindow(exam)

	if entry.CheckInTime != "" {
		checkIn := p.ParseLocalDateTime(entry.CheckInTime)
		if checkIn == nil || !strings.Contains(entry.CheckInTime, "T") {
			return failf("Invalid check-in date and time format.")
		}
		if werr != nil {
			return failf("Exam date or start time is invalid.")
		}
		if dateComponent(entry.CheckInTime) != exam.ExamDate {
			return failf("Check-in date must match exam date (%s).", exam.ExamDate)
		}
		if checkIn.Before(window.Start) {
			return failf("Cannot check in before exam starts (%s).", exam.StartTime)
		}
		if checkIn.After(window.End) {
			return failf("Cannot check in after exam ends.")
		}
	} else if werr == nil && !now.Before(window.Start) && !now.After(window.End) {
		entry.CheckInTime = now.In(p.loc()).Format("2006-01-02T15:04:05")
	}

	if entry.CheckOutTime != "" {
		checkOut := p.ParseLocalDateTime(entry.CheckOutTime)
		if checkOut == nil || !strings.Contains(entry.CheckOutTime, "T") {
			return failf("Invalid check-out date and time format.")
		}
		if dateComponent(entry.CheckOutTime) != exam.ExamDate {
			return failf("Check-out date must match exam date (%s).", exam.ExamDate)
		}
		checkInRef := p.ParseLocalDateTime(entry.CheckInTime)
		if checkInRef == nil && prior != nil {
			checkInRef = p.CheckInInstant(exam, prior)
		}
		if checkInRef != nil && checkOut.Before(*checkInRef) {
			return failf("Check-out time cannot be before check-in time.")
		}
	}

	return nil
}
