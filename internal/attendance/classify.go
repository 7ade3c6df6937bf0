package attendance

import "time"

// Classify derives the attendance status of a record relative to its exam's
// window. Pure, deterministic and cheap enough to call per row on every
// read. Decision order, first match wins:
//
//  1. no exam: Unknown
//  2. explicit stored status: returned verbatim (admin override)
//  3. no check-in at all: absent
//  4. check-in present but unparseable: Invalid
//  5. undefined exam window: Unknown
//  6. check-in outside [early lead, end]: Invalid
//  7. check-in at or before grace end: present
//  8. otherwise: late
func (p Policy) Classify(exam *Exam, rec *Record) string {
	if exam == nil {
		return StatusUnknown
	}
	if rec.Status != "" {
		return rec.Status
	}
	if !rec.HasCheckIn() {
		return StatusAbsent
	}
	checkIn := p.CheckInInstant(exam, rec)
	if checkIn == nil {
		return StatusInvalid
	}
	w, err := p.ExamWindow(exam)
	if err != nil {
		return StatusUnknown
	}
	if checkIn.Before(w.EarlyCheckIn) || checkIn.After(w.End) {
		return StatusInvalid
	}
	if !checkIn.After(w.GraceEnd) {
		return StatusPresent
	}
	return StatusLate
}

// ExamStatusAt derives the exam's own lifecycle status as of now. An
// explicit stored status always wins.
func (p Policy) ExamStatusAt(exam *Exam, now time.Time) string {
	if exam == nil {
		return StatusUnknown
	}
	if exam.Status != "" {
		return exam.Status
	}
	w, err := p.ExamWindow(exam)
	if err != nil {
		return StatusUnknown
	}
	switch {
	case now.Before(w.Start):
		return ExamAwaiting
	case !now.After(w.End):
		return ExamInProgress
	default:
		return ExamEnded
	}
}

// Summarize tallies derived statuses across an exam's records.
func (p Policy) Summarize(exam *Exam, records []Record) Summary {
	var s Summary
	for i := range records {
		switch p.Classify(exam, &records[i]) {
		case StatusPresent:
			s.Present++
		case StatusLate:
			s.Late++
		case StatusAbsent:
			s.Absent++
		case StatusInvalid:
			s.Invalid++
		}
	}
	return s
}
