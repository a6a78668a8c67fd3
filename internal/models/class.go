package models

import "time"

// Branch identifies the campus a class belongs to. Class names repeat
// across campuses, so (name, section, branch) is the uniqueness key.
type Branch string

const (
	BranchUgar      Branch = "Ugar"
	BranchMangasuli Branch = "Mangasuli"
	BranchMain      Branch = "Main"
)

// ValidBranch reports whether the value is a known campus branch.
func ValidBranch(b Branch) bool {
	switch b {
	case BranchUgar, BranchMangasuli, BranchMain:
		return true
	}
	return false
}

// Class represents a permanent class roster entry. Names are free text
// and may embed the grade numeral ("Class 7", "7th Standard") or not
// ("LKG", "UKG"); the promotion resolver relies on the numeral when present.
type Class struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Section        *string   `db:"section" json:"section,omitempty"`
	Branch         Branch    `db:"branch" json:"branch"`
	ClassTeacherID *string   `db:"class_teacher_id" json:"class_teacher_id,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Label renders the display name used by reports, e.g. "Class 7 A".
func (c Class) Label() string {
	if c.Section == nil || *c.Section == "" {
		return c.Name
	}
	return c.Name + " " + *c.Section
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	Branch    Branch
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
