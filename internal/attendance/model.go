package attendance

import "time"

// Attendance statuses. Present/late/absent are the stored enum values; the
// derived-only sentinels keep the original capitalization used for display.
const (
	StatusPresent = "present"
	StatusLate    = "late"
	StatusAbsent  = "absent"
	StatusInvalid = "Invalid"
	StatusUnknown = "Unknown"
)

// Derived exam statuses. An explicit exam.Status (active/completed/
// cancelled/postponed) always wins over these.
const (
	ExamAwaiting   = "Awaiting"
	ExamInProgress = "In Progress"
	ExamEnded      = "Ended"
)

// Sentinels stamped on every manually entered record.
const (
	ManualDeviceID   = "Manual"
	ManualDeviceName = "-- Manual --"
)

// Exam is a scheduled exam sitting. Date and time fields are stored the way
// the admin enters them: a calendar date, a wall-clock start time and a
// duration in decimal hours. EndTime is optional; when empty it is derived.
type Exam struct {
	ID        string
	CourseID  string
	ExamType  string
	ExamDate  string  // YYYY-MM-DD
	StartTime string  // HH:MM
	EndTime   string  // HH:MM, optional
	Duration  float64 // hours, 0.5-8
	Room      string
	Status    string // explicit override: active/completed/cancelled/postponed
	CreatedAt time.Time
}

// Student is an enrolled student with a globally unique RFID tag.
type Student struct {
	ID        string
	Name      string
	Email     string
	RFIDTag   string
	CreatedAt time.Time
}

// Course links students to exams.
type Course struct {
	ID         string
	CourseName string
	CreatedAt  time.Time
}

// Device is a registered RFID reader.
type Device struct {
	ID         string
	DeviceName string
	Status     string
	CreatedAt  time.Time
}

// Settings is the exam-policy singleton governing the device check-in path.
type Settings struct {
	AllowLateEntry       bool
	LateEntryGracePeriod int // minutes
}

// Record is the canonical attendance record. Check-in and check-out each
// have a dual representation: a local wall-clock string for manual entries
// and an epoch-seconds value for device scans (which marks the instant as
// device time needing clock-skew correction). StudentID holds a student
// document id, or the raw RFID tag for device-originated rows. A record with
// an empty RFIDTag is device-authoritative and cannot be edited or deleted
// through the manual path.
type Record struct {
	ID            string
	ExamID        string
	StudentID     string
	RFIDTag       string
	CheckInTime   string // local ISO string, "" when absent
	CheckInEpoch  int64  // device epoch seconds, 0 when absent
	CheckOutTime  string
	CheckOutEpoch int64
	Status        string // explicit override; authoritative when set
	DeviceID      string
	DeviceName    string
	ExamRoom      string
	EmailSent     bool
	EmailSentAt   *time.Time
	EmailError    string
	EmailErrorAt  *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasCheckIn reports whether the record carries any check-in data at all,
// parseable or not.
func (r *Record) HasCheckIn() bool {
	return r.CheckInEpoch != 0 || r.CheckInTime != ""
}

// HasCheckOut reports whether the record carries any check-out data.
func (r *Record) HasCheckOut() bool {
	return r.CheckOutEpoch != 0 || r.CheckOutTime != ""
}

// DeviceRecorded reports whether the row came straight from an RFID reader
// and is therefore immutable via the manual path.
func (r *Record) DeviceRecorded() bool {
	return r.RFIDTag == ""
}

// Summary aggregates derived statuses for one exam.
type Summary struct {
	Present int `json:"present"`
	Late    int `json:"late"`
	Absent  int `json:"absent"`
	Invalid int `json:"invalid"`
}
