package models

import "time"

// ExamMarkRow is one student's score in one exam of the reported year.
type ExamMarkRow struct {
	StudentID     string  `db:"student_id" json:"student_id"`
	StudentName   string  `db:"student_name" json:"student_name"`
	ExamID        string  `db:"exam_id" json:"exam_id"`
	ExamName      string  `db:"exam_name" json:"exam_name"`
	Subject       string  `db:"subject" json:"subject"`
	MarksObtained float64 `db:"marks_obtained" json:"marks_obtained"`
	TotalMarks    float64 `db:"total_marks" json:"total_marks"`
}

// StaffLeaveRow is a staff leave request falling inside the year window.
type StaffLeaveRow struct {
	ApplicantID   string    `db:"applicant_id" json:"applicant_id"`
	ApplicantName string    `db:"applicant_name" json:"applicant_name"`
	ApplicantRole UserRole  `db:"applicant_role" json:"applicant_role"`
	StartDate     time.Time `db:"start_date" json:"start_date"`
	EndDate       time.Time `db:"end_date" json:"end_date"`
	Status        string    `db:"status" json:"status"`
	Reason        string    `db:"reason" json:"reason"`
}

// StaffAttendanceSummary counts attendance statuses per staff member
// within the year window.
type StaffAttendanceSummary struct {
	UserID   string `db:"user_id" json:"user_id"`
	UserName string `db:"user_name" json:"user_name"`
	Status   string `db:"status" json:"status"`
	Count    int    `db:"count" json:"count"`
}

// YearReport aggregates everything the administration reviews when a
// year is closed: the archived roster grouped by class label, exam
// marks, and staff leave/attendance summaries.
type YearReport struct {
	AcademicYear      AcademicYear                     `json:"academic_year"`
	ClassWiseStudents map[string][]StudentHistoryEntry `json:"class_wise_students"`
	Marks             []ExamMarkRow                    `json:"marks"`
	StaffLeaves       []StaffLeaveRow                  `json:"staff_leaves"`
	StaffAttendance   []StaffAttendanceSummary         `json:"staff_attendance"`
	GeneratedAt       time.Time                        `json:"generated_at"`
}
