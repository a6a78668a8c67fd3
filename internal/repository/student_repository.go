package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vidyarthi-labs/school-admin-api/internal/models"
)

// StudentRepository reads and mutates the student slice of the users
// table. Enrollment fields (current_class_id, academic_year_id) are
// only ever written through UpdateEnrollment.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository instantiates a student repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students with their current class and year context.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	base := `FROM users u
        LEFT JOIN classes c ON c.id = u.current_class_id
        LEFT JOIN academic_years y ON y.id = u.academic_year_id
        WHERE u.role = $1`
	args := []interface{}{models.RoleStudent}
	var conditions []string

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("u.current_class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.AcademicYearID != "" {
		conditions = append(conditions, fmt.Sprintf("u.academic_year_id = $%d", len(args)+1))
		args = append(args, filter.AcademicYearID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(u.full_name ILIKE $%d OR u.email ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"full_name":  true,
		"email":      true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "full_name"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT u.id, u.email, u.password_hash, u.full_name, u.role, u.active,
        u.current_class_id, u.academic_year_id, u.last_login, u.created_at, u.updated_at,
        c.name AS current_class_name, c.section AS current_section, c.branch AS current_branch, y.name AS academic_year_name
        %s ORDER BY u.%s %s LIMIT %d OFFSET %d`, base, sortBy, order, size, offset)

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}

	return students, total, nil
}

// ListEnrolledWithClass returns every student enrolled in the given
// year that currently has a class assignment. Students without a class
// are excluded on purpose: they have nothing to archive or promote.
func (r *StudentRepository) ListEnrolledWithClass(ctx context.Context, academicYearID string) ([]models.StudentEnrollment, error) {
	const query = `SELECT u.id AS student_id, u.full_name AS student_name,
        c.id AS class_id, c.name AS class_name, c.section AS class_section, c.branch AS class_branch
        FROM users u
        JOIN classes c ON c.id = u.current_class_id
        WHERE u.role = $1 AND u.academic_year_id = $2
        ORDER BY u.created_at, u.id`
	var enrollments []models.StudentEnrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, models.RoleStudent, academicYearID); err != nil {
		return nil, fmt.Errorf("list enrolled students: %w", err)
	}
	return enrollments, nil
}

// UpdateEnrollment moves a student to the given class (nil unassigns)
// and academic year in one write. Each student's update is independent;
// the transition loop relies on that for its best-effort semantics.
func (r *StudentRepository) UpdateEnrollment(ctx context.Context, studentID string, classID *string, academicYearID string) error {
	const query = `UPDATE users SET current_class_id = $2, academic_year_id = $3, updated_at = $4 WHERE id = $1 AND role = $5`
	res, err := r.db.ExecContext(ctx, query, studentID, classID, academicYearID, time.Now().UTC(), models.RoleStudent)
	if err != nil {
		return fmt.Errorf("update student enrollment: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update student enrollment: student %s not found", studentID)
	}
	return nil
}
