package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vidyarthi-labs/school-admin-api/internal/models"
)

// ReportRepository aggregates the read-only data behind year reports.
// Exams, marks, leaves and attendance are populated by modules outside
// the transition engine; this repository only queries them.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository instantiates a report repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// MarksByYear returns every student's marks for exams held in the year.
func (r *ReportRepository) MarksByYear(ctx context.Context, academicYearID string) ([]models.ExamMarkRow, error) {
	const query = `SELECT m.student_id, u.full_name AS student_name,
        e.id AS exam_id, e.name AS exam_name, e.subject, m.marks_obtained, e.total_marks
        FROM marks m
        JOIN exams e ON e.id = m.exam_id
        JOIN users u ON u.id = m.student_id
        WHERE e.academic_year_id = $1
        ORDER BY e.name, u.full_name`
	var rows []models.ExamMarkRow
	if err := r.db.SelectContext(ctx, &rows, query, academicYearID); err != nil {
		return nil, fmt.Errorf("marks by year: %w", err)
	}
	return rows, nil
}

// StaffLeaves returns staff leave requests starting inside the window.
func (r *ReportRepository) StaffLeaves(ctx context.Context, from, to time.Time) ([]models.StaffLeaveRow, error) {
	const query = `SELECT l.applicant_id, u.full_name AS applicant_name, u.role AS applicant_role,
        l.start_date, l.end_date, l.status, l.reason
        FROM leave_requests l
        JOIN users u ON u.id = l.applicant_id
        WHERE u.role IN ($1, $2) AND l.start_date >= $3 AND l.start_date <= $4
        ORDER BY l.start_date`
	var rows []models.StaffLeaveRow
	if err := r.db.SelectContext(ctx, &rows, query, models.RoleTeacher, models.RoleAdmin, from, to); err != nil {
		return nil, fmt.Errorf("staff leaves: %w", err)
	}
	return rows, nil
}

// StaffAttendanceSummary counts attendance statuses per staff member
// for dates inside the window.
func (r *ReportRepository) StaffAttendanceSummary(ctx context.Context, from, to time.Time) ([]models.StaffAttendanceSummary, error) {
	const query = `SELECT a.user_id, u.full_name AS user_name, a.status, COUNT(*) AS count
        FROM attendance a
        JOIN users u ON u.id = a.user_id
        WHERE u.role IN ($1, $2) AND a.date >= $3 AND a.date <= $4
        GROUP BY a.user_id, u.full_name, a.status
        ORDER BY u.full_name, a.status`
	var rows []models.StaffAttendanceSummary
	if err := r.db.SelectContext(ctx, &rows, query, models.RoleTeacher, models.RoleAdmin, from, to); err != nil {
		return nil, fmt.Errorf("staff attendance summary: %w", err)
	}
	return rows, nil
}
