package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vidyarthi-labs/school-admin-api/internal/models"
	"github.com/vidyarthi-labs/school-admin-api/internal/repository"
	appErrors "github.com/vidyarthi-labs/school-admin-api/pkg/errors"
	"github.com/vidyarthi-labs/school-admin-api/pkg/jobs"
	"github.com/vidyarthi-labs/school-admin-api/pkg/storage"
)

type mockReportYearRepo struct {
	years map[string]*models.AcademicYear
}

func (m *mockReportYearRepo) FindByID(ctx context.Context, id string) (*models.AcademicYear, error) {
	if year, ok := m.years[id]; ok {
		cp := *year
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type mockHistoryRepo struct {
	entries []models.StudentHistoryEntry
	calls   int
}

func (m *mockHistoryRepo) ListByYear(ctx context.Context, academicYearID string) ([]models.StudentHistoryEntry, error) {
	m.calls++
	return m.entries, nil
}

type mockReportDataRepo struct{}

func (m *mockReportDataRepo) MarksByYear(ctx context.Context, academicYearID string) ([]models.ExamMarkRow, error) {
	return []models.ExamMarkRow{{StudentID: "s1", StudentName: "Asha", ExamName: "Finals", Subject: "Maths", MarksObtained: 88, TotalMarks: 100}}, nil
}

func (m *mockReportDataRepo) StaffLeaves(ctx context.Context, from, to time.Time) ([]models.StaffLeaveRow, error) {
	return nil, nil
}

func (m *mockReportDataRepo) StaffAttendanceSummary(ctx context.Context, from, to time.Time) ([]models.StaffAttendanceSummary, error) {
	return nil, nil
}

type mockJobStore struct {
	jobs map[string]*models.ReportJob
}

func (m *mockJobStore) Create(ctx context.Context, job *models.ReportJob) error {
	if m.jobs == nil {
		m.jobs = make(map[string]*models.ReportJob)
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *mockJobStore) FindByID(ctx context.Context, id string) (*models.ReportJob, error) {
	if job, ok := m.jobs[id]; ok {
		cp := *job
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockJobStore) Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error {
	job, ok := m.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultPath != nil {
		job.ResultPath = params.ResultPath
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

type mapCache struct {
	data map[string][]byte
}

func (c *mapCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *mapCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.data == nil {
		c.data = make(map[string][]byte)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	return nil
}

type captureQueue struct {
	jobs []jobs.Job
	err  error
}

func (q *captureQueue) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func newReportFixture(t *testing.T) (*ReportService, *mockJobStore, *captureQueue, *mockHistoryRepo, *mapCache) {
	t.Helper()

	className := "Class 7"
	sectionA := "A"
	ukgName := "UKG"
	entries := []models.StudentHistoryEntry{
		{
			StudentHistory: models.StudentHistory{ID: "h1", StudentID: "s1", AcademicYearID: "y1", Result: models.ResultPromoted},
			StudentName:    "Asha",
			StudentEmail:   "asha@example.com",
			ClassName:      &className,
			ClassSection:   &sectionA,
		},
		{
			StudentHistory: models.StudentHistory{ID: "h2", StudentID: "s2", AcademicYearID: "y1", Result: models.ResultPromoted},
			StudentName:    "Ravi",
			StudentEmail:   "ravi@example.com",
			ClassName:      &className,
			ClassSection:   &sectionA,
		},
		{
			StudentHistory: models.StudentHistory{ID: "h3", StudentID: "s3", AcademicYearID: "y1", Result: models.ResultGraduated},
			StudentName:    "Meena",
			StudentEmail:   "meena@example.com",
		},
		{
			StudentHistory: models.StudentHistory{ID: "h4", StudentID: "s4", AcademicYearID: "y1", Result: models.ResultPromoted},
			StudentName:    "Kiran",
			StudentEmail:   "kiran@example.com",
			ClassName:      &ukgName,
		},
	}

	years := &mockReportYearRepo{years: map[string]*models.AcademicYear{
		"y1": {
			ID:        "y1",
			Name:      "2024-2025",
			StartDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		},
	}}
	histories := &mockHistoryRepo{entries: entries}
	jobStore := &mockJobStore{}
	cache := &mapCache{}
	queue := &captureQueue{}

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)

	svc := NewReportService(years, histories, &mockReportDataRepo{}, jobStore, cache, store, signer, time.Minute, nil, zap.NewNop())
	svc.SetQueue(queue)
	return svc, jobStore, queue, histories, cache
}

func TestReportServiceYearReportGroupsByClass(t *testing.T) {
	svc, _, _, _, _ := newReportFixture(t)

	report, err := svc.YearReport(context.Background(), "y1")
	require.NoError(t, err)

	assert.Equal(t, "2024-2025", report.AcademicYear.Name)
	require.Contains(t, report.ClassWiseStudents, "Class 7 A")
	require.Contains(t, report.ClassWiseStudents, "UKG")
	require.Contains(t, report.ClassWiseStudents, "Unassigned")
	assert.Len(t, report.ClassWiseStudents["Class 7 A"], 2)
	assert.Len(t, report.ClassWiseStudents["UKG"], 1)
	assert.Len(t, report.ClassWiseStudents["Unassigned"], 1)
	assert.Len(t, report.Marks, 1)
}

func TestReportServiceYearReportNotFound(t *testing.T) {
	svc, _, _, _, _ := newReportFixture(t)

	_, err := svc.YearReport(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestReportServiceYearReportServedFromCache(t *testing.T) {
	svc, _, _, histories, _ := newReportFixture(t)

	_, err := svc.YearReport(context.Background(), "y1")
	require.NoError(t, err)
	assert.Equal(t, 1, histories.calls)

	_, err = svc.YearReport(context.Background(), "y1")
	require.NoError(t, err)
	assert.Equal(t, 1, histories.calls, "second call must hit the cache")
}

func TestReportServiceExportEnqueues(t *testing.T) {
	svc, jobStore, queue, _, _ := newReportFixture(t)

	job, err := svc.ExportYearReport(context.Background(), "admin-1", ExportYearReportRequest{
		AcademicYearID: "y1",
		Format:         models.ReportFormatCSV,
	})
	require.NoError(t, err)

	assert.Equal(t, models.ReportStatusQueued, job.Status)
	assert.Equal(t, "admin-1", job.CreatedBy)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, job.ID, queue.jobs[0].ID)
	assert.Contains(t, jobStore.jobs, job.ID)
}

func TestReportServiceExportEnqueueFailureMarksJobFailed(t *testing.T) {
	svc, jobStore, queue, _, _ := newReportFixture(t)
	queue.err = errors.New("queue stopped")

	_, err := svc.ExportYearReport(context.Background(), "admin-1", ExportYearReportRequest{
		AcademicYearID: "y1",
		Format:         models.ReportFormatCSV,
	})
	require.Error(t, err)

	require.Len(t, jobStore.jobs, 1)
	for _, job := range jobStore.jobs {
		assert.Equal(t, models.ReportStatusFailed, job.Status)
		require.NotNil(t, job.ErrorMessage)
	}
}

func TestReportServiceProcessJobRendersCSV(t *testing.T) {
	svc, jobStore, queue, _, _ := newReportFixture(t)

	job, err := svc.ExportYearReport(context.Background(), "admin-1", ExportYearReportRequest{
		AcademicYearID: "y1",
		Format:         models.ReportFormatCSV,
	})
	require.NoError(t, err)

	require.NoError(t, svc.ProcessJob(context.Background(), queue.jobs[0]))

	stored := jobStore.jobs[job.ID]
	assert.Equal(t, models.ReportStatusFinished, stored.Status)
	assert.Equal(t, 100, stored.Progress)
	require.NotNil(t, stored.ResultPath)

	status, err := svc.JobStatus(context.Background(), job.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, status.DownloadURL)
	require.NotNil(t, status.ExpiresAt)

	token := strings.TrimPrefix(status.DownloadURL, "/api/v1/reports/download/")
	file, downloaded, err := svc.Download(context.Background(), token)
	require.NoError(t, err)
	defer file.Close()

	assert.Equal(t, job.ID, downloaded.ID)
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Class,Student,Email,Result,Final Grade")
	assert.Contains(t, string(content), "Asha")
}

func TestReportServiceDownloadInvalidToken(t *testing.T) {
	svc, _, _, _, _ := newReportFixture(t)

	_, _, err := svc.Download(context.Background(), "not-a-token")
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)
}
