package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// 09:00 start, 2h duration, 30min grace, 10min lead:
// early=08:50, graceEnd=09:30, end=11:00.
func TestClassify(t *testing.T) {
	p := testPolicy()
	exam := testExam()

	cases := []struct {
		name    string
		checkIn string
		want    string
	}{
		{"within grace", "2025-03-10T09:05", StatusPresent},
		{"exactly at start", "2025-03-10T09:00", StatusPresent},
		{"early lead window", "2025-03-10T08:55", StatusPresent},
		{"at early boundary", "2025-03-10T08:50", StatusPresent},
		{"at grace end", "2025-03-10T09:30", StatusPresent},
		{"just past grace", "2025-03-10T09:31", StatusLate},
		{"late mid-exam", "2025-03-10T09:45", StatusLate},
		{"at exam end", "2025-03-10T11:00", StatusLate},
		{"too early", "2025-03-10T08:40", StatusInvalid},
		{"after exam end", "2025-03-10T11:30", StatusInvalid},
		{"day after", "2025-03-11T09:05", StatusInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &Record{CheckInTime: tc.checkIn}
			assert.Equal(t, tc.want, p.Classify(exam, rec))
		})
	}
}

func TestClassifyEdgeCases(t *testing.T) {
	p := testPolicy()
	exam := testExam()

	t.Run("no exam", func(t *testing.T) {
		assert.Equal(t, StatusUnknown, p.Classify(nil, &Record{CheckInTime: "2025-03-10T09:05"}))
	})

	t.Run("explicit status overrides everything", func(t *testing.T) {
		rec := &Record{Status: StatusAbsent, CheckInTime: "2025-03-10T09:05"}
		assert.Equal(t, StatusAbsent, p.Classify(exam, rec))
		// Idempotent: re-classifying returns the same value.
		assert.Equal(t, StatusAbsent, p.Classify(exam, rec))

		rec = &Record{Status: "excused"}
		assert.Equal(t, "excused", p.Classify(exam, rec), "override is verbatim")
	})

	t.Run("no check-in data", func(t *testing.T) {
		assert.Equal(t, StatusAbsent, p.Classify(exam, &Record{}))
	})

	t.Run("unparseable check-in", func(t *testing.T) {
		assert.Equal(t, StatusInvalid, p.Classify(exam, &Record{CheckInTime: "garbage"}))
	})

	t.Run("undefined window", func(t *testing.T) {
		broken := &Exam{ID: "x", ExamDate: "2025-03-10"}
		assert.Equal(t, StatusUnknown, p.Classify(broken, &Record{CheckInTime: "2025-03-10T09:05"}))
	})
}

func TestClassifyDeviceEpoch(t *testing.T) {
	p := testPolicy()
	exam := testExam()

	// Device clock runs 2h ahead: a scan the reader stamps 11:05 happened
	// at 09:05 wall time.
	wall := time.Date(2025, 3, 10, 9, 5, 0, 0, time.UTC)
	rec := &Record{CheckInEpoch: wall.Unix() + 2*3600}
	assert.Equal(t, StatusPresent, p.Classify(exam, rec))

	// Two records with the same epoch classify identically.
	other := &Record{CheckInEpoch: rec.CheckInEpoch}
	assert.Equal(t, p.Classify(exam, rec), p.Classify(exam, other))

	// Without the correction this would be past grace; with it the scan at
	// device-time 11:40 (wall 09:40) is late, not invalid.
	lateWall := time.Date(2025, 3, 10, 9, 40, 0, 0, time.UTC)
	assert.Equal(t, StatusLate, p.Classify(exam, &Record{CheckInEpoch: lateWall.Unix() + 2*3600}))
}

func TestExamStatusAt(t *testing.T) {
	p := testPolicy()
	exam := testExam()

	assert.Equal(t, ExamAwaiting, p.ExamStatusAt(exam, time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)))
	assert.Equal(t, ExamInProgress, p.ExamStatusAt(exam, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)))
	assert.Equal(t, ExamInProgress, p.ExamStatusAt(exam, time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC)))
	assert.Equal(t, ExamEnded, p.ExamStatusAt(exam, time.Date(2025, 3, 10, 11, 0, 1, 0, time.UTC)))

	exam.Status = "postponed"
	assert.Equal(t, "postponed", p.ExamStatusAt(exam, time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)))

	assert.Equal(t, StatusUnknown, p.ExamStatusAt(nil, time.Now()))
}

func TestSummarize(t *testing.T) {
	p := testPolicy()
	exam := testExam()

	records := []Record{
		{CheckInTime: "2025-03-10T09:05"}, // present
		{CheckInTime: "2025-03-10T09:45"}, // late
		{},                                // absent
		{CheckInTime: "2025-03-10T11:30"}, // invalid
		{Status: StatusPresent},           // override
	}
	s := p.Summarize(exam, records)
	assert.Equal(t, Summary{Present: 2, Late: 1, Absent: 1, Invalid: 1}, s)
}
