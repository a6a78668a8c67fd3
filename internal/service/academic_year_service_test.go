package service

import (
	"context"
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vidyarthi-labs/school-admin-api/internal/models"
	appErrors "github.com/vidyarthi-labs/school-admin-api/pkg/errors"
)

type mockAcademicYearRepo struct {
	items        map[string]*models.AcademicYear
	names        map[string]bool
	activeID     string
	setActiveIDs []string
}

func (m *mockAcademicYearRepo) List(ctx context.Context, filter models.AcademicYearFilter) ([]models.AcademicYear, int, error) {
	years := make([]models.AcademicYear, 0, len(m.items))
	for _, y := range m.items {
		years = append(years, *y)
	}
	return years, len(years), nil
}

func (m *mockAcademicYearRepo) FindByID(ctx context.Context, id string) (*models.AcademicYear, error) {
	if year, ok := m.items[id]; ok {
		cp := *year
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAcademicYearRepo) FindActive(ctx context.Context) (*models.AcademicYear, error) {
	if m.activeID == "" {
		return nil, sql.ErrNoRows
	}
	return m.FindByID(ctx, m.activeID)
}

func (m *mockAcademicYearRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	return m.names[name], nil
}

func (m *mockAcademicYearRepo) Create(ctx context.Context, year *models.AcademicYear) error {
	if m.items == nil {
		m.items = make(map[string]*models.AcademicYear)
	}
	if m.names == nil {
		m.names = make(map[string]bool)
	}
	if year.ID == "" {
		year.ID = "generated"
	}
	cp := *year
	m.items[year.ID] = &cp
	m.names[year.Name] = true
	return nil
}

func (m *mockAcademicYearRepo) SetActive(ctx context.Context, id string) error {
	m.setActiveIDs = append(m.setActiveIDs, id)
	for _, y := range m.items {
		y.IsActive = y.ID == id
	}
	m.activeID = id
	return nil
}

func yearWindow() (time.Time, time.Time) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, -2, 0)
}

func TestAcademicYearServiceCreate(t *testing.T) {
	repo := &mockAcademicYearRepo{}
	svc := NewAcademicYearService(repo, nil, zap.NewNop())

	start, end := yearWindow()
	year, err := svc.Create(context.Background(), CreateAcademicYearRequest{
		Name:      "2025-2026",
		StartDate: start,
		EndDate:   end,
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-2026", year.Name)
	assert.False(t, year.IsActive)
	assert.Empty(t, repo.setActiveIDs)
}

func TestAcademicYearServiceCreateActivates(t *testing.T) {
	repo := &mockAcademicYearRepo{
		items: map[string]*models.AcademicYear{
			"y1": {ID: "y1", Name: "2024-2025", IsActive: true},
		},
		names:    map[string]bool{"2024-2025": true},
		activeID: "y1",
	}
	svc := NewAcademicYearService(repo, nil, zap.NewNop())

	start, end := yearWindow()
	year, err := svc.Create(context.Background(), CreateAcademicYearRequest{
		Name:      "2025-2026",
		StartDate: start,
		EndDate:   end,
		IsActive:  true,
	})
	require.NoError(t, err)
	assert.True(t, year.IsActive)

	// only the new year remains active
	assert.Equal(t, year.ID, repo.activeID)
	assert.False(t, repo.items["y1"].IsActive)
}

func TestAcademicYearServiceCreateDuplicateName(t *testing.T) {
	repo := &mockAcademicYearRepo{names: map[string]bool{"2025-2026": true}}
	svc := NewAcademicYearService(repo, nil, zap.NewNop())

	start, end := yearWindow()
	_, err := svc.Create(context.Background(), CreateAcademicYearRequest{
		Name:      "2025-2026",
		StartDate: start,
		EndDate:   end,
	})
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDuplicateName.Code, appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
}

func TestAcademicYearServiceCreateInvalidWindow(t *testing.T) {
	repo := &mockAcademicYearRepo{}
	svc := NewAcademicYearService(repo, nil, zap.NewNop())

	start, _ := yearWindow()
	_, err := svc.Create(context.Background(), CreateAcademicYearRequest{
		Name:      "2025-2026",
		StartDate: start,
		EndDate:   start,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAcademicYearServiceSetActive(t *testing.T) {
	repo := &mockAcademicYearRepo{
		items: map[string]*models.AcademicYear{
			"y1": {ID: "y1", Name: "2024-2025", IsActive: true},
			"y2": {ID: "y2", Name: "2025-2026"},
		},
		activeID: "y1",
	}
	svc := NewAcademicYearService(repo, nil, zap.NewNop())

	year, err := svc.SetActive(context.Background(), SetActiveYearRequest{ID: "y2"})
	require.NoError(t, err)
	assert.True(t, year.IsActive)
	assert.Equal(t, "y2", repo.activeID)
	assert.False(t, repo.items["y1"].IsActive)
}

func TestAcademicYearServiceSetActiveNotFound(t *testing.T) {
	repo := &mockAcademicYearRepo{}
	svc := NewAcademicYearService(repo, nil, zap.NewNop())

	_, err := svc.SetActive(context.Background(), SetActiveYearRequest{ID: "missing"})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestAcademicYearServiceGetActiveNone(t *testing.T) {
	repo := &mockAcademicYearRepo{}
	svc := NewAcademicYearService(repo, nil, zap.NewNop())

	_, err := svc.GetActive(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}
