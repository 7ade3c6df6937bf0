package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// UpsertDevice ensures a reader record exists.
func (r *Repository) UpsertDevice(ctx context.Context, deviceID, name string) error {
	if deviceID == "" {
		return errors.New("device id required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (device_id, device_name)
		VALUES ($1, NULLIF($2, ''))
		ON CONFLICT (device_id) DO UPDATE SET
			device_name = COALESCE(NULLIF(EXCLUDED.device_name, ''), devices.device_name)
	`, deviceID, name)
	return err
}

// GetDevice returns a registered reader, nil when unknown.
func (r *Repository) GetDevice(ctx context.Context, deviceID string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT device_id, COALESCE(device_name, ''), COALESCE(status, 'active'), created_at
		FROM devices WHERE device_id = $1
	`, deviceID)
	var d Device
	if err := row.Scan(&d.ID, &d.DeviceName, &d.Status, &d.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, deviceID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (device_id, token, expires_at)
		VALUES ($1, $2, $3)
	`, deviceID, token, expiresAt)
	return err
}

// RevokeRefreshToken marks a token revoked.
func (r *Repository) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`, token)
	return err
}

// GetStudent returns a student by document id, nil when missing.
func (r *Repository) GetStudent(ctx context.Context, id string) (*Student, error) {
	return scanStudent(r.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(email, ''), rfid_tag, created_at
		FROM students WHERE id = $1
	`, id))
}

// GetStudentByTag returns a student by unique RFID tag, nil when missing.
func (r *Repository) GetStudentByTag(ctx context.Context, tag string) (*Student, error) {
	return scanStudent(r.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(email, ''), rfid_tag, created_at
		FROM students WHERE rfid_tag = $1
	`, tag))
}

func scanStudent(row *sql.Row) (*Student, error) {
	var s Student
	if err := row.Scan(&s.ID, &s.Name, &s.Email, &s.RFIDTag, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// GetExam returns an exam, nil when missing.
func (r *Repository) GetExam(ctx context.Context, id string) (*Exam, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, course_id, exam_type, exam_date, start_time,
		       COALESCE(end_time, ''), duration, COALESCE(room, ''),
		       COALESCE(status, ''), created_at
		FROM exams WHERE id = $1
	`, id)
	var e Exam
	if err := row.Scan(&e.ID, &e.CourseID, &e.ExamType, &e.ExamDate, &e.StartTime,
		&e.EndTime, &e.Duration, &e.Room, &e.Status, &e.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// ListExams returns exams newest first.
func (r *Repository) ListExams(ctx context.Context, limit, offset int) ([]Exam, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, course_id, exam_type, exam_date, start_time,
		       COALESCE(end_time, ''), duration, COALESCE(room, ''),
		       COALESCE(status, ''), created_at
		FROM exams ORDER BY exam_date DESC, start_time DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Exam
	for rows.Next() {
		var e Exam
		if err := rows.Scan(&e.ID, &e.CourseID, &e.ExamType, &e.ExamDate, &e.StartTime,
			&e.EndTime, &e.Duration, &e.Room, &e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// GetCourse returns a course, nil when missing.
func (r *Repository) GetCourse(ctx context.Context, id string) (*Course, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, course_name, created_at FROM courses WHERE id = $1
	`, id)
	var c Course
	if err := row.Scan(&c.ID, &c.CourseName, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// IsEnrolled reports whether the student is enrolled in the course.
func (r *Repository) IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM course_students WHERE course_id = $1 AND student_id = $2
		)
	`, courseID, studentID).Scan(&exists)
	return exists, err
}

// GetSettings returns the exam-policy singleton, zero values when unset.
func (r *Repository) GetSettings(ctx context.Context) (Settings, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT allow_late_entry, late_entry_grace_period FROM settings WHERE id = 'global'
	`)
	var s Settings
	if err := row.Scan(&s.AllowLateEntry, &s.LateEntryGracePeriod); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Settings{}, nil
		}
		return Settings{}, err
	}
	return s, nil
}

const recordColumns = `
	id, exam_id, student_id, COALESCE(rfid_tag, ''),
	COALESCE(check_in_time, ''), COALESCE(check_in_epoch, 0),
	COALESCE(check_out_time, ''), COALESCE(check_out_epoch, 0),
	COALESCE(status, ''), device_id, COALESCE(device_name, ''),
	COALESCE(exam_room, ''), email_sent, email_sent_at,
	COALESCE(email_error, ''), email_error_at, created_at, updated_at`

func scanRecord(scan func(dest ...any) error) (*Record, error) {
	var rec Record
	err := scan(&rec.ID, &rec.ExamID, &rec.StudentID, &rec.RFIDTag,
		&rec.CheckInTime, &rec.CheckInEpoch, &rec.CheckOutTime, &rec.CheckOutEpoch,
		&rec.Status, &rec.DeviceID, &rec.DeviceName, &rec.ExamRoom,
		&rec.EmailSent, &rec.EmailSentAt, &rec.EmailError, &rec.EmailErrorAt,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetRecord returns a single attendance record by id, nil when missing.
func (r *Repository) GetRecord(ctx context.Context, id string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM attendance WHERE id = $1`, id)
	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// FindRecord returns the record for one student in one exam, nil when none.
func (r *Repository) FindRecord(ctx context.Context, examID, studentID string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM attendance WHERE exam_id = $1 AND student_id = $2
	`, examID, studentID)
	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// ListRecordsByExam returns an exam's ledger, latest check-in first.
func (r *Repository) ListRecordsByExam(ctx context.Context, examID string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM attendance WHERE exam_id = $1
		ORDER BY COALESCE(check_in_epoch, 0) DESC, check_in_time DESC NULLS LAST, created_at DESC
	`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, *rec)
	}
	return res, rows.Err()
}

// InsertRecord writes a new attendance record.
func (r *Repository) InsertRecord(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance (
			id, exam_id, student_id, rfid_tag,
			check_in_time, check_in_epoch, check_out_time, check_out_epoch,
			status, device_id, device_name, exam_room, email_sent
		) VALUES ($1, $2, $3, NULLIF($4, ''),
		          NULLIF($5, ''), NULLIF($6, 0), NULLIF($7, ''), NULLIF($8, 0),
		          NULLIF($9, ''), $10, NULLIF($11, ''), NULLIF($12, ''), $13)
		RETURNING created_at, updated_at
	`, rec.ID, rec.ExamID, rec.StudentID, rec.RFIDTag,
		rec.CheckInTime, rec.CheckInEpoch, rec.CheckOutTime, rec.CheckOutEpoch,
		rec.Status, rec.DeviceID, rec.DeviceName, rec.ExamRoom, rec.EmailSent)
	if err := row.Scan(&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// UpdateManualFields overwrites the business fields a manual edit may touch.
// Email bookkeeping is left alone; the two field sets stay disjoint.
func (r *Repository) UpdateManualFields(ctx context.Context, id string, entry ManualEntry) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE attendance SET
			exam_id = $2, student_id = $3, rfid_tag = NULLIF($4, ''),
			check_in_time = NULLIF($5, ''), check_out_time = NULLIF($6, ''),
			status = NULLIF($7, ''), device_id = $8, device_name = NULLIF($9, ''),
			email_sent = $10, updated_at = NOW()
		WHERE id = $1
	`, id, entry.ExamID, entry.StudentID, entry.RFIDTag, entry.CheckInTime,
		entry.CheckOutTime, entry.Status, entry.DeviceID, entry.DeviceName, entry.EmailSent)
	return err
}

// SetCheckOut records a device checkout and re-arms the email flag.
func (r *Repository) SetCheckOut(ctx context.Context, id, checkOutTime string, checkOutEpoch int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE attendance SET
			check_out_time = NULLIF($2, ''), check_out_epoch = NULLIF($3, 0),
			email_sent = FALSE, updated_at = NOW()
		WHERE id = $1
	`, id, checkOutTime, checkOutEpoch)
	return err
}

// SetEmailResult persists notification bookkeeping only. It never touches
// the checkout fields, so it cannot re-arm the notification trigger.
func (r *Repository) SetEmailResult(ctx context.Context, id string, sent bool, errMsg string, at time.Time) error {
	var err error
	if sent {
		_, err = r.db.ExecContext(ctx, `
			UPDATE attendance SET email_sent = TRUE, email_sent_at = $2,
				email_error = NULL, email_error_at = NULL, updated_at = NOW()
			WHERE id = $1
		`, id, at)
	} else {
		_, err = r.db.ExecContext(ctx, `
			UPDATE attendance SET email_sent = FALSE, email_error = $2,
				email_error_at = $3, updated_at = NOW()
			WHERE id = $1
		`, id, errMsg, at)
	}
	return err
}

// DeleteRecord removes a manual attendance record.
func (r *Repository) DeleteRecord(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM attendance WHERE id = $1`, id)
	return err
}
