package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vidyarthi-labs/school-admin-api/internal/models"
	appErrors "github.com/vidyarthi-labs/school-admin-api/pkg/errors"
)

type mockClassRepo struct {
	items         map[string]*models.Class
	studentCounts map[string]int
	deleted       []string
}

func classKey(name string, section *string, branch models.Branch) string {
	sec := ""
	if section != nil {
		sec = *section
	}
	return fmt.Sprintf("%s|%s|%s", name, sec, branch)
}

func (m *mockClassRepo) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	classes := make([]models.Class, 0, len(m.items))
	for _, c := range m.items {
		classes = append(classes, *c)
	}
	return classes, len(classes), nil
}

func (m *mockClassRepo) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if class, ok := m.items[id]; ok {
		cp := *class
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockClassRepo) ExistsByNameSectionBranch(ctx context.Context, name string, section *string, branch models.Branch) (bool, error) {
	for _, c := range m.items {
		if classKey(c.Name, c.Section, c.Branch) == classKey(name, section, branch) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockClassRepo) Create(ctx context.Context, class *models.Class) error {
	if m.items == nil {
		m.items = make(map[string]*models.Class)
	}
	if class.ID == "" {
		class.ID = "generated"
	}
	cp := *class
	m.items[class.ID] = &cp
	return nil
}

func (m *mockClassRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.items, id)
	return nil
}

func (m *mockClassRepo) CountStudents(ctx context.Context, id string) (int, error) {
	return m.studentCounts[id], nil
}

func TestClassServiceCreate(t *testing.T) {
	repo := &mockClassRepo{}
	svc := NewClassService(repo, nil, zap.NewNop())

	class, err := svc.Create(context.Background(), CreateClassRequest{
		Name:   "Class 7",
		Branch: models.BranchMain,
	})
	require.NoError(t, err)
	assert.Equal(t, "Class 7", class.Name)
	assert.Len(t, repo.items, 1)
}

func TestClassServiceCreateDuplicate(t *testing.T) {
	sec := "A"
	repo := &mockClassRepo{
		items: map[string]*models.Class{
			"c1": {ID: "c1", Name: "Class 7", Section: &sec, Branch: models.BranchMain},
		},
	}
	svc := NewClassService(repo, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), CreateClassRequest{
		Name:    "Class 7",
		Section: &sec,
		Branch:  models.BranchMain,
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
}

func TestClassServiceCreateSameNameDifferentBranch(t *testing.T) {
	repo := &mockClassRepo{
		items: map[string]*models.Class{
			"c1": {ID: "c1", Name: "Class 7", Branch: models.BranchMain},
		},
	}
	svc := NewClassService(repo, nil, zap.NewNop())

	class, err := svc.Create(context.Background(), CreateClassRequest{
		Name:   "Class 7",
		Branch: models.BranchUgar,
	})
	require.NoError(t, err)
	assert.Equal(t, models.BranchUgar, class.Branch)
}

func TestClassServiceCreateUnknownBranch(t *testing.T) {
	repo := &mockClassRepo{}
	svc := NewClassService(repo, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), CreateClassRequest{
		Name:   "Class 7",
		Branch: models.Branch("Downtown"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestClassServiceDeleteBlockedByStudents(t *testing.T) {
	repo := &mockClassRepo{
		items: map[string]*models.Class{
			"c1": {ID: "c1", Name: "Class 7", Branch: models.BranchMain},
		},
		studentCounts: map[string]int{"c1": 12},
	}
	svc := NewClassService(repo, nil, zap.NewNop())

	err := svc.Delete(context.Background(), "c1")
	require.Error(t, err)
	assert.Equal(t, http.StatusPreconditionFailed, appErrors.FromError(err).Status)
	assert.Empty(t, repo.deleted)
}

func TestClassServiceDeleteEmptyClass(t *testing.T) {
	repo := &mockClassRepo{
		items: map[string]*models.Class{
			"c1": {ID: "c1", Name: "Class 7", Branch: models.BranchMain},
		},
	}
	svc := NewClassService(repo, nil, zap.NewNop())

	require.NoError(t, svc.Delete(context.Background(), "c1"))
	assert.Equal(t, []string{"c1"}, repo.deleted)
}
