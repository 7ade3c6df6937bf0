package attendance

import (
	"context"
	"log"
	"time"

	"github.com/Ishimwe-William/attendance-system-rfid-125khz-based/internal/queue"
)

// Store is the persistence surface the service needs.
type Store interface {
	UpsertDevice(ctx context.Context, deviceID, name string) error
	GetStudent(ctx context.Context, id string) (*Student, error)
	GetStudentByTag(ctx context.Context, tag string) (*Student, error)
	GetExam(ctx context.Context, id string) (*Exam, error)
	GetCourse(ctx context.Context, id string) (*Course, error)
	IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error)
	GetSettings(ctx context.Context) (Settings, error)
	GetRecord(ctx context.Context, id string) (*Record, error)
	FindRecord(ctx context.Context, examID, studentID string) (*Record, error)
	ListRecordsByExam(ctx context.Context, examID string) ([]Record, error)
	InsertRecord(ctx context.Context, rec Record) (Record, error)
	UpdateManualFields(ctx context.Context, id string, entry ManualEntry) error
	SetCheckOut(ctx context.Context, id, checkOutTime string, checkOutEpoch int64) error
	DeleteRecord(ctx context.Context, id string) error
}

// Publisher enqueues checkout notification work.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Service coordinates scan ingestion and validator-gated manual writes.
type Service struct {
	store  Store
	pub    Publisher
	policy Policy
	now    func() time.Time
}

// NewService creates a service backed by a store and a notification queue.
func NewService(store Store, pub Publisher, policy Policy) *Service {
	return &Service{store: store, pub: pub, policy: policy, now: time.Now}
}

// ScanRequest is one RFID reader event.
type ScanRequest struct {
	ExamID    string
	DeviceID  string
	RFIDTag   string
	Checkout  bool
	EpochTime int64 // reader-reported epoch seconds, 0 when the reader has no clock
}

// RegisterDevice validates and persists reader metadata.
func (s *Service) RegisterDevice(ctx context.Context, deviceID, name string) error {
	if deviceID == "" {
		return &ValidationError{Reason: "device id required"}
	}
	return s.store.UpsertDevice(ctx, deviceID, name)
}

// RecordScan handles the device ingestion path: enrollment, exam-status and
// duplicate checks before the write, then check-in or check-out. A checkout
// that flips the record from no-checkout to checkout publishes exactly one
// notification event; the publish is fire-and-forget relative to the write.
func (s *Service) RecordScan(ctx context.Context, req ScanRequest) (*Record, error) {
	student, err := s.store.GetStudentByTag(ctx, req.RFIDTag)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, &ValidationError{Reason: "No student found with this RFID tag"}
	}

	exam, err := s.store.GetExam(ctx, req.ExamID)
	if err != nil {
		return nil, err
	}
	if exam == nil {
		return nil, &ValidationError{Reason: "Exam not found"}
	}

	course, err := s.store.GetCourse(ctx, exam.CourseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, &ValidationError{Reason: "Course not found"}
	}
	enrolled, err := s.store.IsEnrolled(ctx, course.ID, student.ID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, &ValidationError{Reason: "Student not enrolled in course"}
	}

	if exam.Status != "active" {
		return nil, &ValidationError{Reason: "Exam is not active"}
	}

	prior, err := s.store.FindRecord(ctx, req.ExamID, student.ID)
	if err != nil {
		return nil, err
	}

	if req.Checkout {
		return s.recordCheckOut(ctx, req, prior)
	}
	return s.recordCheckIn(ctx, req, exam, student, prior)
}

func (s *Service) recordCheckIn(ctx context.Context, req ScanRequest, exam *Exam, student *Student, prior *Record) (*Record, error) {
	if prior != nil {
		return nil, &ValidationError{Reason: "Student already checked in"}
	}

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	// No rfid_tag on device rows: that absence is what marks them
	// device-authoritative and blocks manual edits.
	now := s.now()
	rec := Record{
		ExamID:    req.ExamID,
		StudentID: student.ID,
		DeviceID:  req.DeviceID,
		ExamRoom:  exam.Room,
		Status:    s.checkInStatus(exam, settings, now),
	}
	if req.EpochTime != 0 {
		rec.CheckInEpoch = req.EpochTime
	} else {
		rec.CheckInTime = now.In(s.policy.loc()).Format("2006-01-02T15:04:05")
	}

	inserted, err := s.store.InsertRecord(ctx, rec)
	if err != nil {
		return nil, err
	}
	return &inserted, nil
}

// checkInStatus applies the late-entry settings to a device check-in. With
// late entry disabled every accepted scan is stamped present; otherwise the
// grace threshold decides present vs late.
func (s *Service) checkInStatus(exam *Exam, settings Settings, now time.Time) string {
	if !settings.AllowLateEntry {
		return StatusPresent
	}
	window, err := s.policy.ExamWindow(exam)
	if err != nil {
		return ""
	}
	threshold := window.Start.Add(time.Duration(settings.LateEntryGracePeriod) * time.Minute)
	if !now.After(threshold) {
		return StatusPresent
	}
	return StatusLate
}

func (s *Service) recordCheckOut(ctx context.Context, req ScanRequest, prior *Record) (*Record, error) {
	if prior == nil {
		return nil, &ValidationError{Reason: "No check-in record found"}
	}

	hadCheckout := prior.HasCheckOut()

	var checkOutTime string
	var checkOutEpoch int64
	if req.EpochTime != 0 {
		checkOutEpoch = req.EpochTime
	} else {
		checkOutTime = s.now().In(s.policy.loc()).Format("2006-01-02T15:04:05")
	}

	if err := s.store.SetCheckOut(ctx, prior.ID, checkOutTime, checkOutEpoch); err != nil {
		return nil, err
	}

	if !hadCheckout {
		s.publishCheckout(ctx, prior.ID)
	}

	return s.store.GetRecord(ctx, prior.ID)
}

// publishCheckout enqueues one notification event. The checkout write is
// already committed; a lost publish only loses the email, never the record.
func (s *Service) publishCheckout(ctx context.Context, recordID string) {
	if s.pub == nil {
		return
	}
	msg := queue.Message{Type: queue.TypeCheckout, Body: []byte(recordID)}
	if err := s.pub.Publish(ctx, msg); err != nil {
		log.Printf("queue publish failed for record %s: %v", recordID, err)
	}
}

// CreateManual inserts a validator-gated manual attendance record.
func (s *Service) CreateManual(ctx context.Context, entry ManualEntry) (*Record, error) {
	exam, err := s.store.GetExam(ctx, entry.ExamID)
	if err != nil {
		return nil, err
	}
	var student *Student
	if entry.StudentID != "" {
		if student, err = s.store.GetStudent(ctx, entry.StudentID); err != nil {
			return nil, err
		}
	}
	if err := s.policy.ValidateManual(&entry, exam, student, nil, s.now()); err != nil {
		return nil, err
	}

	rec := Record{
		ExamID:       entry.ExamID,
		StudentID:    entry.StudentID,
		RFIDTag:      entry.RFIDTag,
		CheckInTime:  entry.CheckInTime,
		CheckOutTime: entry.CheckOutTime,
		Status:       entry.Status,
		DeviceID:     entry.DeviceID,
		DeviceName:   entry.DeviceName,
		EmailSent:    entry.EmailSent,
	}
	if exam != nil {
		rec.ExamRoom = exam.Room
	}
	inserted, err := s.store.InsertRecord(ctx, rec)
	if err != nil {
		return nil, err
	}
	return &inserted, nil
}

// UpdateManual applies a validator-gated edit to an existing record. The
// no-checkout to checkout transition publishes exactly one notification
// event; edits to a record that already had a checkout never re-fire.
func (s *Service) UpdateManual(ctx context.Context, id string, entry ManualEntry) (*Record, error) {
	prior, err := s.store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		return nil, &ValidationError{Reason: "Attendance record not found."}
	}
	if prior.DeviceRecorded() {
		return nil, &ValidationError{Reason: "Cannot edit RFID recorded attendance."}
	}

	if entry.ExamID == "" {
		entry.ExamID = prior.ExamID
	}
	exam, err := s.store.GetExam(ctx, entry.ExamID)
	if err != nil {
		return nil, err
	}
	var student *Student
	if entry.StudentID != "" {
		if student, err = s.store.GetStudent(ctx, entry.StudentID); err != nil {
			return nil, err
		}
	}
	if err := s.policy.ValidateManual(&entry, exam, student, prior, s.now()); err != nil {
		return nil, err
	}

	if err := s.store.UpdateManualFields(ctx, id, entry); err != nil {
		return nil, err
	}

	if !prior.HasCheckOut() && entry.CheckOutTime != "" {
		s.publishCheckout(ctx, id)
	}

	return s.store.GetRecord(ctx, id)
}

// DeleteManual removes a manual record; device rows stay immutable.
func (s *Service) DeleteManual(ctx context.Context, id string) error {
	rec, err := s.store.GetRecord(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return &ValidationError{Reason: "Attendance record not found."}
	}
	if rec.DeviceRecorded() {
		return &ValidationError{Reason: "Cannot delete RFID recorded attendance."}
	}
	return s.store.DeleteRecord(ctx, id)
}

// ExamLedger returns an exam with its records and derived status summary.
func (s *Service) ExamLedger(ctx context.Context, examID string) (*Exam, []Record, Summary, error) {
	exam, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return nil, nil, Summary{}, err
	}
	records, err := s.store.ListRecordsByExam(ctx, examID)
	if err != nil {
		return nil, nil, Summary{}, err
	}
	return exam, records, s.policy.Summarize(exam, records), nil
}
