package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleTeacher    UserRole = "TEACHER"
	RoleStudent    UserRole = "STUDENT"
)

// User represents an application user stored in the users table.
// Students carry an enrollment context: current_class_id and
// academic_year_id are owned exclusively by the enrollment and
// promotion operations and are NULL for staff accounts.
type User struct {
	ID             string     `db:"id" json:"id"`
	Email          string     `db:"email" json:"email"`
	PasswordHash   string     `db:"password_hash" json:"-"`
	FullName       string     `db:"full_name" json:"full_name"`
	Role           UserRole   `db:"role" json:"role"`
	Active         bool       `db:"active" json:"active"`
	CurrentClassID *string    `db:"current_class_id" json:"current_class_id,omitempty"`
	AcademicYearID *string    `db:"academic_year_id" json:"academic_year_id,omitempty"`
	LastLogin      *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// StudentDetail is a student row joined with its current class and year.
type StudentDetail struct {
	User
	CurrentClassName *string `db:"current_class_name" json:"current_class_name,omitempty"`
	CurrentSection   *string `db:"current_section" json:"current_section,omitempty"`
	CurrentBranch    *Branch `db:"current_branch" json:"current_branch,omitempty"`
	AcademicYearName *string `db:"academic_year_name" json:"academic_year_name,omitempty"`
}

// StudentEnrollment is the slice of student state the transition engine
// works with: one row per student enrolled in the closing year together
// with the class the promotion heuristic starts from.
type StudentEnrollment struct {
	StudentID    string  `db:"student_id"`
	StudentName  string  `db:"student_name"`
	ClassID      string  `db:"class_id"`
	ClassName    string  `db:"class_name"`
	ClassSection *string `db:"class_section"`
	ClassBranch  Branch  `db:"class_branch"`
}

// StudentFilter captures filtering criteria for listing students.
type StudentFilter struct {
	ClassID        string
	AcademicYearID string
	Search         string
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
