package models

import "time"

// StudentResult captures the outcome recorded for a student when an
// academic year closes.
type StudentResult string

const (
	ResultPromoted  StudentResult = "Promoted"
	ResultDetained  StudentResult = "Detained"
	ResultGraduated StudentResult = "Graduated"
	ResultLeft      StudentResult = "Left"
)

// StudentHistory is the immutable per-year snapshot written when a year
// is archived. The (student_id, academic_year_id) pair is unique; the
// record is never mutated afterwards except for final grade backfill by
// a separate reporting process.
type StudentHistory struct {
	ID             string        `db:"id" json:"id"`
	StudentID      string        `db:"student_id" json:"student_id"`
	ClassID        string        `db:"class_id" json:"class_id"`
	AcademicYearID string        `db:"academic_year_id" json:"academic_year_id"`
	Result         StudentResult `db:"result" json:"result"`
	FinalGrade     string        `db:"final_grade" json:"final_grade"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
}

// StudentHistoryEntry is the report view of one history row joined to
// the student and class it references.
type StudentHistoryEntry struct {
	StudentHistory
	StudentName  string  `db:"student_name" json:"student_name"`
	StudentEmail string  `db:"student_email" json:"student_email"`
	ClassName    *string `db:"class_name" json:"class_name,omitempty"`
	ClassSection *string `db:"class_section" json:"class_section,omitempty"`
}
