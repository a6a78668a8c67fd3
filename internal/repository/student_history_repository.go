package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/vidyarthi-labs/school-admin-api/internal/models"
)

// ErrDuplicateHistory signals that an archive run collided with history
// rows that already exist for the same (student, academic year) pair,
// typically left behind by a previous partial run.
var ErrDuplicateHistory = errors.New("student history already archived for academic year")

const uniqueViolation = "23505"

// StudentHistoryRepository persists the immutable per-year snapshots.
type StudentHistoryRepository struct {
	db *sqlx.DB
}

// NewStudentHistoryRepository instantiates a student history repository.
func NewStudentHistoryRepository(db *sqlx.DB) *StudentHistoryRepository {
	return &StudentHistoryRepository{db: db}
}

// BulkInsert writes all history records in a single statement so the
// archive is all-or-nothing. A (student_id, academic_year_id) unique
// constraint collision surfaces as ErrDuplicateHistory and nothing is
// written.
func (r *StudentHistoryRepository) BulkInsert(ctx context.Context, records []models.StudentHistory) error {
	if len(records) == 0 {
		return nil
	}

	now := time.Now().UTC()
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
		if records[i].Result == "" {
			records[i].Result = models.ResultPromoted
		}
		if records[i].CreatedAt.IsZero() {
			records[i].CreatedAt = now
		}
	}

	const query = `INSERT INTO student_histories (id, student_id, class_id, academic_year_id, result, final_grade, created_at) VALUES (:id, :student_id, :class_id, :academic_year_id, :result, :final_grade, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, records); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return fmt.Errorf("bulk insert student histories: %w", ErrDuplicateHistory)
		}
		return fmt.Errorf("bulk insert student histories: %w", err)
	}
	return nil
}

// CountByYear returns the number of history rows archived for a year.
func (r *StudentHistoryRepository) CountByYear(ctx context.Context, academicYearID string) (int, error) {
	const query = `SELECT COUNT(*) FROM student_histories WHERE academic_year_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, academicYearID); err != nil {
		return 0, fmt.Errorf("count student histories: %w", err)
	}
	return count, nil
}

// ListByYear returns the archived roster for a year joined with student
// and class context, ordered by class then student name.
func (r *StudentHistoryRepository) ListByYear(ctx context.Context, academicYearID string) ([]models.StudentHistoryEntry, error) {
	const query = `SELECT h.id, h.student_id, h.class_id, h.academic_year_id, h.result, h.final_grade, h.created_at,
        u.full_name AS student_name, u.email AS student_email,
        c.name AS class_name, c.section AS class_section
        FROM student_histories h
        JOIN users u ON u.id = h.student_id
        LEFT JOIN classes c ON c.id = h.class_id
        WHERE h.academic_year_id = $1
        ORDER BY c.name, c.section, u.full_name`
	var entries []models.StudentHistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, academicYearID); err != nil {
		return nil, fmt.Errorf("list student histories: %w", err)
	}
	return entries, nil
}
