package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ishimwe-William/attendance-system-rfid-125khz-based/internal/attendance"
)

type emailResult struct {
	sent   bool
	errMsg string
	at     time.Time
}

type fakeStore struct {
	records  map[string]*attendance.Record
	students map[string]*attendance.Student
	byTag    map[string]*attendance.Student
	exams    map[string]*attendance.Exam
	courses  map[string]*attendance.Course

	recordErr error
	results   map[string]emailResult
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: map[string]*attendance.Record{},
		students: map[string]*attendance.Student{
			"stu-1": {ID: "stu-1", Name: "Alice Uwase", Email: "alice@example.com", RFIDTag: "TAG-001"},
		},
		byTag: map[string]*attendance.Student{
			"TAG-001": {ID: "stu-1", Name: "Alice Uwase", Email: "alice@example.com", RFIDTag: "TAG-001"},
		},
		exams: map[string]*attendance.Exam{
			"exam-1": {ID: "exam-1", CourseID: "course-1", ExamType: "final", ExamDate: "2025-03-10", StartTime: "09:00", Duration: 2, Room: "A-101"},
		},
		courses: map[string]*attendance.Course{
			"course-1": {ID: "course-1", CourseName: "Distributed Systems"},
		},
		results: map[string]emailResult{},
	}
}

func (f *fakeStore) GetRecord(ctx context.Context, id string) (*attendance.Record, error) {
	if f.recordErr != nil {
		return nil, f.recordErr
	}
	return f.records[id], nil
}

func (f *fakeStore) GetStudent(ctx context.Context, id string) (*attendance.Student, error) {
	return f.students[id], nil
}

func (f *fakeStore) GetStudentByTag(ctx context.Context, tag string) (*attendance.Student, error) {
	return f.byTag[tag], nil
}

func (f *fakeStore) GetExam(ctx context.Context, id string) (*attendance.Exam, error) {
	return f.exams[id], nil
}

func (f *fakeStore) GetCourse(ctx context.Context, id string) (*attendance.Course, error) {
	return f.courses[id], nil
}

func (f *fakeStore) SetEmailResult(ctx context.Context, id string, sent bool, errMsg string, at time.Time) error {
	f.results[id] = emailResult{sent: sent, errMsg: errMsg, at: at}
	return nil
}

type fakeMailer struct {
	err  error
	sent []CheckoutEmail
}

func (f *fakeMailer) Send(ctx context.Context, msg CheckoutEmail) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func testPolicy() attendance.Policy {
	return attendance.Policy{
		GraceMinutes:           30,
		EarlyCheckInMinutes:    10,
		DeviceClockOffsetHours: 2,
		Location:               time.UTC,
	}
}

func checkedOutRecord() *attendance.Record {
	return &attendance.Record{
		ID:           "rec-1",
		ExamID:       "exam-1",
		StudentID:    "stu-1",
		RFIDTag:      "TAG-001",
		CheckInTime:  "2025-03-10T09:05",
		CheckOutTime: "2025-03-10T10:45",
		Status:       attendance.StatusPresent,
		ExamRoom:     "A-101",
		DeviceName:   "Gate Reader",
	}
}

func newTestWorkflow(fs *fakeStore, m *fakeMailer) *Workflow {
	wf := NewWorkflow(fs, m, testPolicy(), time.UTC)
	wf.now = func() time.Time { return time.Date(2025, 3, 10, 10, 46, 0, 0, time.UTC) }
	return wf
}

func TestProcessSendsAndMarks(t *testing.T) {
	fs := newFakeStore()
	fs.records["rec-1"] = checkedOutRecord()
	mailer := &fakeMailer{}
	wf := newTestWorkflow(fs, mailer)

	state, err := wf.Process(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, StateEmailSent, state)

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "alice@example.com", msg.Email)
	assert.Equal(t, "Alice Uwase", msg.StudentName)
	assert.Equal(t, "final exam on 2025-03-10", msg.ExamName)
	assert.Equal(t, "Distributed Systems", msg.CourseName)
	assert.Equal(t, "10 Mar 2025, 09:05:00", msg.CheckInTime)
	assert.Equal(t, "10 Mar 2025, 10:45:00", msg.CheckOutTime)
	assert.Equal(t, "A-101", msg.ExamRoom)
	assert.Equal(t, "Gate Reader", msg.DeviceName)

	res, ok := fs.results["rec-1"]
	require.True(t, ok)
	assert.True(t, res.sent)
	assert.Empty(t, res.errMsg)
}

func TestProcessNoCheckout(t *testing.T) {
	fs := newFakeStore()
	rec := checkedOutRecord()
	rec.CheckOutTime = ""
	fs.records["rec-1"] = rec
	mailer := &fakeMailer{}
	wf := newTestWorkflow(fs, mailer)

	state, err := wf.Process(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, StateNoCheckout, state)
	assert.Empty(t, mailer.sent)
	assert.Empty(t, fs.results, "nothing to record for a no-op")
}

func TestProcessIdempotentOnRedelivery(t *testing.T) {
	fs := newFakeStore()
	rec := checkedOutRecord()
	rec.EmailSent = true
	fs.records["rec-1"] = rec
	mailer := &fakeMailer{}
	wf := newTestWorkflow(fs, mailer)

	state, err := wf.Process(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, StateEmailSent, state)
	assert.Empty(t, mailer.sent, "already-sent marker suppresses a second send")

	// A populated sent-at timestamp alone is enough.
	rec.EmailSent = false
	at := time.Date(2025, 3, 10, 10, 46, 0, 0, time.UTC)
	rec.EmailSentAt = &at
	state, err = wf.Process(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, StateEmailSent, state)
	assert.Empty(t, mailer.sent)
}

func TestProcessTransportFailure(t *testing.T) {
	fs := newFakeStore()
	fs.records["rec-1"] = checkedOutRecord()
	mailer := &fakeMailer{err: errors.New("dial tcp: connection refused")}
	wf := newTestWorkflow(fs, mailer)

	state, err := wf.Process(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, StateEmailFailed, state)

	res, ok := fs.results["rec-1"]
	require.True(t, ok)
	assert.False(t, res.sent)
	assert.Equal(t, "dial tcp: connection refused", res.errMsg)
}

func TestProcessMissingEmail(t *testing.T) {
	fs := newFakeStore()
	fs.records["rec-1"] = checkedOutRecord()
	fs.students["stu-1"].Email = ""
	fs.byTag["TAG-001"].Email = ""
	mailer := &fakeMailer{}
	wf := newTestWorkflow(fs, mailer)

	state, err := wf.Process(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, StateEmailFailed, state)
	assert.Empty(t, mailer.sent)
	assert.Equal(t, "student email not found", fs.results["rec-1"].errMsg)
}

func TestProcessResolvesStudentByTag(t *testing.T) {
	fs := newFakeStore()
	// Device-originated row: the student id field carries the raw tag.
	rec := checkedOutRecord()
	rec.StudentID = "TAG-001"
	rec.RFIDTag = ""
	fs.records["rec-1"] = rec
	mailer := &fakeMailer{}
	wf := newTestWorkflow(fs, mailer)

	state, err := wf.Process(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, StateEmailSent, state)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "alice@example.com", mailer.sent[0].Email)
}

func TestProcessRecordUnreadable(t *testing.T) {
	fs := newFakeStore()
	fs.recordErr = errors.New("connection reset")
	wf := newTestWorkflow(fs, &fakeMailer{})

	_, err := wf.Process(context.Background(), "rec-1")
	assert.Error(t, err)

	fs.recordErr = nil
	_, err = wf.Process(context.Background(), "missing")
	assert.Error(t, err, "unknown record id is an evaluation failure")
}

func TestComposeFallbacks(t *testing.T) {
	fs := newFakeStore()
	rec := checkedOutRecord()
	rec.ExamID = "exam-404"
	rec.ExamRoom = ""
	rec.DeviceName = ""
	fs.records["rec-1"] = rec
	mailer := &fakeMailer{}
	wf := newTestWorkflow(fs, mailer)

	state, err := wf.Process(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, StateEmailSent, state)
	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "Unknown Exam", msg.ExamName)
	assert.Equal(t, "Unknown Course", msg.CourseName)
	assert.Equal(t, "N/A", msg.ExamRoom)
	assert.Equal(t, "N/A", msg.DeviceName)
}
