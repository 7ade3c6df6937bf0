package attendance

import (
	"errors"
	"time"
)

// ErrWindowUndefined is returned when an exam's date or start time is
// missing or malformed; callers must degrade to StatusUnknown.
var ErrWindowUndefined = errors.New("exam window undefined")

// Window is the set of instants a check-in is judged against.
type Window struct {
	Start        time.Time // exam date + start time, local wall-clock
	End          time.Time // Start + duration
	GraceEnd     time.Time // Start + grace period
	EarlyCheckIn time.Time // Start - early lead
}

// ExamWindow derives the exam's timing window from its date, start time and
// duration.
func (p Policy) ExamWindow(exam *Exam) (Window, error) {
	if exam == nil || exam.ExamDate == "" || exam.StartTime == "" {
		return Window{}, ErrWindowUndefined
	}
	start := p.parseClockOnDate(exam.ExamDate, exam.StartTime)
	if start == nil {
		return Window{}, ErrWindowUndefined
	}
	return Window{
		Start:        *start,
		End:          start.Add(time.Duration(exam.Duration * float64(time.Hour))),
		GraceEnd:     start.Add(time.Duration(p.GraceMinutes) * time.Minute),
		EarlyCheckIn: start.Add(-time.Duration(p.EarlyCheckInMinutes) * time.Minute),
	}, nil
}

// EndTimeDisplay returns the exam's stored end time, deriving it from start
// plus duration when not stored.
func (p Policy) EndTimeDisplay(exam *Exam) string {
	if exam == nil {
		return ""
	}
	if exam.EndTime != "" {
		return exam.EndTime
	}
	w, err := p.ExamWindow(exam)
	if err != nil {
		return ""
	}
	return w.End.Format("15:04")
}
