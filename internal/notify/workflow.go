package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Ishimwe-William/attendance-system-rfid-125khz-based/internal/attendance"
)

// State is the notification status of one attendance record.
type State string

const (
	StateNoCheckout  State = "NO_CHECKOUT"
	StatePending     State = "CHECKOUT_PENDING_EMAIL"
	StateEmailSent   State = "EMAIL_SENT"
	StateEmailFailed State = "EMAIL_FAILED"
)

// Store is the persistence surface the workflow needs.
type Store interface {
	GetRecord(ctx context.Context, id string) (*attendance.Record, error)
	GetStudent(ctx context.Context, id string) (*attendance.Student, error)
	GetStudentByTag(ctx context.Context, tag string) (*attendance.Student, error)
	GetExam(ctx context.Context, id string) (*attendance.Exam, error)
	GetCourse(ctx context.Context, id string) (*attendance.Course, error)
	SetEmailResult(ctx context.Context, id string, sent bool, errMsg string, at time.Time) error
}

// Mailer sends one rendered checkout confirmation.
type Mailer interface {
	Send(ctx context.Context, msg CheckoutEmail) error
}

// Workflow runs the checkout notification state machine: resolve the
// student, exam and course behind a record, send the confirmation email,
// and persist the outcome on the record. Sent and failed are both terminal
// for the triggering event; there is no automatic retry.
type Workflow struct {
	store      Store
	mailer     Mailer
	policy     attendance.Policy
	displayLoc *time.Location
	now        func() time.Time
}

// NewWorkflow wires the workflow. displayLoc is the fixed zone check-in and
// check-out instants are formatted in for the email body.
func NewWorkflow(store Store, mailer Mailer, policy attendance.Policy, displayLoc *time.Location) *Workflow {
	if displayLoc == nil {
		displayLoc = time.Local
	}
	return &Workflow{store: store, mailer: mailer, policy: policy, displayLoc: displayLoc, now: time.Now}
}

// Process handles one queued checkout event and returns the terminal state
// reached. An error return means the event could not be evaluated at all
// (record unreadable); outcome bookkeeping failures are logged, not
// propagated, so a bookkeeping race never crashes the consumer.
func (w *Workflow) Process(ctx context.Context, recordID string) (State, error) {
	rec, err := w.store.GetRecord(ctx, recordID)
	if err != nil {
		return StateNoCheckout, fmt.Errorf("load record %s: %w", recordID, err)
	}
	if rec == nil {
		return StateNoCheckout, fmt.Errorf("record %s not found", recordID)
	}
	if !rec.HasCheckOut() {
		return StateNoCheckout, nil
	}
	// Already-sent marker makes redelivery idempotent.
	if rec.EmailSent || rec.EmailSentAt != nil {
		return StateEmailSent, nil
	}

	student := w.resolveStudent(ctx, rec)
	if student == nil || student.Email == "" {
		w.recordFailure(ctx, rec.ID, "student email not found")
		return StateEmailFailed, nil
	}

	msg := w.compose(ctx, rec, student)
	if err := w.mailer.Send(ctx, msg); err != nil {
		w.recordFailure(ctx, rec.ID, err.Error())
		return StateEmailFailed, nil
	}

	if err := w.store.SetEmailResult(ctx, rec.ID, true, "", w.now()); err != nil {
		log.Printf("email sent but bookkeeping failed for %s: %v", rec.ID, err)
	}
	return StateEmailSent, nil
}

// resolveStudent looks the student up by document id, falling back to an
// RFID-tag lookup: device-originated rows carry the raw tag in the student
// id field.
func (w *Workflow) resolveStudent(ctx context.Context, rec *attendance.Record) *attendance.Student {
	if student, err := w.store.GetStudent(ctx, rec.StudentID); err == nil && student != nil {
		return student
	}
	student, err := w.store.GetStudentByTag(ctx, rec.StudentID)
	if err != nil {
		return nil
	}
	return student
}

func (w *Workflow) compose(ctx context.Context, rec *attendance.Record, student *attendance.Student) CheckoutEmail {
	examName := "Unknown Exam"
	courseName := "Unknown Course"

	exam, err := w.store.GetExam(ctx, rec.ExamID)
	if err == nil && exam != nil {
		examName = fmt.Sprintf("%s exam on %s", exam.ExamType, exam.ExamDate)
		if course, cerr := w.store.GetCourse(ctx, exam.CourseID); cerr == nil && course != nil {
			courseName = course.CourseName
		}
	}

	return CheckoutEmail{
		Email:        student.Email,
		StudentName:  student.Name,
		ExamName:     examName,
		CourseName:   courseName,
		CheckInTime:  w.formatInstant(w.policy.CheckInInstant(exam, rec), "Not checked in"),
		CheckOutTime: w.formatInstant(w.policy.CheckOutInstant(exam, rec), "Not checked out"),
		ExamRoom:     orNA(rec.ExamRoom),
		DeviceName:   orNA(rec.DeviceName),
	}
}

func (w *Workflow) formatInstant(t *time.Time, fallback string) string {
	if t == nil {
		return fallback
	}
	return t.In(w.displayLoc).Format("02 Jan 2006, 15:04:05")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func (w *Workflow) recordFailure(ctx context.Context, id, reason string) {
	log.Printf("checkout email failed for %s: %s", id, reason)
	if err := w.store.SetEmailResult(ctx, id, false, reason, w.now()); err != nil {
		log.Printf("recording email failure for %s failed: %v", id, err)
	}
}
