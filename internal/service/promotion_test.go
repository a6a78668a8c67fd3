package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidyarthi-labs/school-admin-api/internal/models"
)

type mockClassFinder struct {
	classes map[string]*models.Class
	err     error
}

func finderKey(number int, branch models.Branch) string {
	return fmt.Sprintf("%d|%s", number, branch)
}

func (m *mockClassFinder) FindByNumberAndBranch(ctx context.Context, number int, branch models.Branch) (*models.Class, error) {
	if m.err != nil {
		return nil, m.err
	}
	if class, ok := m.classes[finderKey(number, branch)]; ok {
		cp := *class
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func TestGradeNumber(t *testing.T) {
	cases := []struct {
		name   string
		number int
		ok     bool
	}{
		{"Class 7", 7, true},
		{"7th Standard", 7, true},
		{"Class 10 A", 10, true},
		{"LKG", 0, false},
		{"UKG", 0, false},
		{"", 0, false},
	}

	for _, tc := range cases {
		n, ok := GradeNumber(tc.name)
		assert.Equal(t, tc.ok, ok, tc.name)
		assert.Equal(t, tc.number, n, tc.name)
	}
}

func TestPromotionResolverNumericPromotion(t *testing.T) {
	finder := &mockClassFinder{classes: map[string]*models.Class{
		finderKey(8, models.BranchMain): {ID: "c8", Name: "Class 8", Branch: models.BranchMain},
	}}
	resolver := NewPromotionResolver(finder)

	next, err := resolver.ResolveNextClass(context.Background(), models.Class{ID: "c7", Name: "Class 7", Branch: models.BranchMain})
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "c8", next.ID)
}

func TestPromotionResolverNonNumericName(t *testing.T) {
	finder := &mockClassFinder{classes: map[string]*models.Class{}}
	resolver := NewPromotionResolver(finder)

	next, err := resolver.ResolveNextClass(context.Background(), models.Class{ID: "lkg", Name: "LKG", Branch: models.BranchUgar})
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestPromotionResolverGraduation(t *testing.T) {
	finder := &mockClassFinder{classes: map[string]*models.Class{}}
	resolver := NewPromotionResolver(finder)

	next, err := resolver.ResolveNextClass(context.Background(), models.Class{ID: "c10", Name: "Class 10", Branch: models.BranchMain})
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestPromotionResolverBranchIsolation(t *testing.T) {
	finder := &mockClassFinder{classes: map[string]*models.Class{
		finderKey(8, models.BranchUgar): {ID: "c8-ugar", Name: "Class 8", Branch: models.BranchUgar},
	}}
	resolver := NewPromotionResolver(finder)

	next, err := resolver.ResolveNextClass(context.Background(), models.Class{ID: "c7", Name: "Class 7", Branch: models.BranchMangasuli})
	require.NoError(t, err)
	assert.Nil(t, next, "other branch classes must not match")

	next, err = resolver.ResolveNextClass(context.Background(), models.Class{ID: "c7-ugar", Name: "Class 7", Branch: models.BranchUgar})
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "c8-ugar", next.ID)
}

func TestPromotionResolverLookupError(t *testing.T) {
	finder := &mockClassFinder{err: errors.New("connection reset")}
	resolver := NewPromotionResolver(finder)

	_, err := resolver.ResolveNextClass(context.Background(), models.Class{ID: "c7", Name: "Class 7", Branch: models.BranchMain})
	require.Error(t, err)
}
