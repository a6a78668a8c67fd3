package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/vidyarthi-labs/school-admin-api/internal/models"
)

// classGradePattern matches the first run of decimal digits in a class
// name ("Class 7" -> "7").
var classGradePattern = regexp.MustCompile(`\d+`)

type nextClassFinder interface {
	FindByNumberAndBranch(ctx context.Context, number int, branch models.Branch) (*models.Class, error)
}

// PromotionResolver computes the class a student moves into when the
// academic year advances. There is no canonical class-naming scheme, so
// the resolver is a numeric heuristic kept behind this narrow type; an
// explicit next-class link could replace it without touching the
// transition orchestration.
type PromotionResolver struct {
	classes nextClassFinder
}

// NewPromotionResolver constructs a resolver backed by the class roster.
func NewPromotionResolver(classes nextClassFinder) *PromotionResolver {
	return &PromotionResolver{classes: classes}
}

// GradeNumber extracts the grade numeral embedded in a class name.
// Names without digits ("LKG", "UKG") report ok = false.
func GradeNumber(name string) (int, bool) {
	match := classGradePattern.FindString(name)
	if match == "" {
		return 0, false
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ResolveNextClass returns the class whose name contains the current
// grade number plus one, within the same branch. Sections are ignored:
// they may merge or be redistributed across the promotion boundary.
// A nil class with nil error means no successor exists — either the
// name is non-numeric or the student is graduating past the highest
// grade — and the student becomes unassigned.
func (r *PromotionResolver) ResolveNextClass(ctx context.Context, current models.Class) (*models.Class, error) {
	n, ok := GradeNumber(current.Name)
	if !ok {
		return nil, nil
	}

	next, err := r.classes.FindByNumberAndBranch(ctx, n+1, current.Branch)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve next class for %q: %w", current.Name, err)
	}
	return next, nil
}
