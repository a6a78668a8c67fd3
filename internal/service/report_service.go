package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vidyarthi-labs/school-admin-api/internal/models"
	"github.com/vidyarthi-labs/school-admin-api/internal/repository"
	appErrors "github.com/vidyarthi-labs/school-admin-api/pkg/errors"
	"github.com/vidyarthi-labs/school-admin-api/pkg/export"
	"github.com/vidyarthi-labs/school-admin-api/pkg/jobs"
)

const (
	reportJobType      = "year_report_export"
	reportCachePrefix  = "reports:year:"
	unassignedClassKey = "Unassigned"
)

type reportYearRepository interface {
	FindByID(ctx context.Context, id string) (*models.AcademicYear, error)
}

type reportHistoryRepository interface {
	ListByYear(ctx context.Context, academicYearID string) ([]models.StudentHistoryEntry, error)
}

type reportDataRepository interface {
	MarksByYear(ctx context.Context, academicYearID string) ([]models.ExamMarkRow, error)
	StaffLeaves(ctx context.Context, from, to time.Time) ([]models.StaffLeaveRow, error)
	StaffAttendanceSummary(ctx context.Context, from, to time.Time) ([]models.StaffAttendanceSummary, error)
}

type reportJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	FindByID(ctx context.Context, id string) (*models.ReportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error
}

type reportCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type exportQueue interface {
	Enqueue(job jobs.Job) error
}

type exportStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
}

type urlSigner interface {
	Generate(jobID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error)
}

// ExportYearReportRequest asks for an asynchronous file export of a
// year report.
type ExportYearReportRequest struct {
	AcademicYearID string              `json:"academicYearId" validate:"required"`
	Format         models.ReportFormat `json:"format" validate:"required,oneof=csv pdf"`
}

// ReportJobStatus is the polling view of an export job, with a signed
// download URL once the file is ready.
type ReportJobStatus struct {
	Job         *models.ReportJob `json:"job"`
	DownloadURL string            `json:"download_url,omitempty"`
	ExpiresAt   *time.Time        `json:"expires_at,omitempty"`
}

// ReportService assembles year reports, serves them from cache where
// possible, and runs the asynchronous file exports.
type ReportService struct {
	years     reportYearRepository
	histories reportHistoryRepository
	data      reportDataRepository
	jobStore  reportJobStore
	cache     reportCache
	queue     exportQueue
	storage   exportStorage
	signer    urlSigner
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReportService creates a new report service instance. The queue is
// attached later via SetQueue because its handler needs the service.
func NewReportService(
	years reportYearRepository,
	histories reportHistoryRepository,
	data reportDataRepository,
	jobStore reportJobStore,
	cache reportCache,
	storage exportStorage,
	signer urlSigner,
	cacheTTL time.Duration,
	validate *validator.Validate,
	logger *zap.Logger,
) *ReportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &ReportService{
		years:     years,
		histories: histories,
		data:      data,
		jobStore:  jobStore,
		cache:     cache,
		storage:   storage,
		signer:    signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		cacheTTL:  cacheTTL,
		validator: validate,
		logger:    logger,
	}
}

// SetQueue attaches the background export queue.
func (s *ReportService) SetQueue(q exportQueue) {
	s.queue = q
}

// YearReport builds the full report for an academic year. Results are
// cached per year; archived history is immutable so staleness is
// bounded by the marks and attendance sources only.
func (s *ReportService) YearReport(ctx context.Context, academicYearID string) (*models.YearReport, error) {
	year, err := s.years.FindByID(ctx, academicYearID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}

	cacheKey := reportCachePrefix + academicYearID
	if s.cache != nil {
		var cached models.YearReport
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("report cache read failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}

	entries, err := s.histories.ListByYear(ctx, academicYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load archived students")
	}

	classWise := make(map[string][]models.StudentHistoryEntry)
	for _, e := range entries {
		label := unassignedClassKey
		if e.ClassName != nil && *e.ClassName != "" {
			label = models.Class{Name: *e.ClassName, Section: e.ClassSection}.Label()
		}
		classWise[label] = append(classWise[label], e)
	}

	marks, err := s.data.MarksByYear(ctx, academicYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load marks")
	}

	leaves, err := s.data.StaffLeaves(ctx, year.StartDate, year.EndDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff leaves")
	}

	attendance, err := s.data.StaffAttendanceSummary(ctx, year.StartDate, year.EndDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff attendance")
	}

	report := &models.YearReport{
		AcademicYear:      *year,
		ClassWiseStudents: classWise,
		Marks:             marks,
		StaffLeaves:       leaves,
		StaffAttendance:   attendance,
		GeneratedAt:       time.Now().UTC(),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, report, s.cacheTTL); err != nil {
			s.logger.Warn("report cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}

	return report, nil
}

// ExportYearReport creates a background export job and enqueues it.
func (s *ReportService) ExportYearReport(ctx context.Context, userID string, req ExportYearReportRequest) (*models.ReportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "export queue unavailable")
	}

	if _, err := s.years.FindByID(ctx, req.AcademicYearID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}

	job := &models.ReportJob{
		ID: uuid.NewString(),
		Params: models.ReportJobParams{
			AcademicYearID: req.AcademicYearID,
			Format:         req.Format,
		},
		Status:    models.ReportStatusQueued,
		CreatedBy: userID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.jobStore.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: reportJobType, Payload: job.Params}); err != nil {
		s.failJob(ctx, job.ID, fmt.Sprintf("enqueue failed: %v", err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}

	return job, nil
}

// ProcessJob is the queue handler for export jobs.
func (s *ReportService) ProcessJob(ctx context.Context, job jobs.Job) error {
	params, ok := job.Payload.(models.ReportJobParams)
	if !ok {
		s.failJob(ctx, job.ID, "invalid job payload")
		return nil
	}

	processing := models.ReportStatusProcessing
	progress := 10
	if err := s.jobStore.Update(ctx, job.ID, repository.UpdateReportJobParams{Status: &processing, Progress: &progress}); err != nil {
		return fmt.Errorf("mark job processing: %w", err)
	}

	report, err := s.YearReport(ctx, params.AcademicYearID)
	if err != nil {
		s.failJob(ctx, job.ID, err.Error())
		return nil
	}

	dataset := buildRosterDataset(report)

	var payload []byte
	var ext string
	switch params.Format {
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, fmt.Sprintf("Year Report %s", report.AcademicYear.Name))
		ext = "pdf"
	default:
		payload, err = s.csv.Render(dataset)
		ext = "csv"
	}
	if err != nil {
		s.failJob(ctx, job.ID, err.Error())
		return nil
	}

	filename := fmt.Sprintf("year-reports/%s/%s.%s", params.AcademicYearID, job.ID, ext)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		s.failJob(ctx, job.ID, err.Error())
		return nil
	}

	finished := models.ReportStatusFinished
	done := 100
	now := time.Now().UTC()
	if err := s.jobStore.Update(ctx, job.ID, repository.UpdateReportJobParams{
		Status:     &finished,
		Progress:   &done,
		ResultPath: &relPath,
		FinishedAt: &now,
	}); err != nil {
		return fmt.Errorf("mark job finished: %w", err)
	}

	s.logger.Info("year report export finished",
		zap.String("job_id", job.ID),
		zap.String("academic_year_id", params.AcademicYearID),
		zap.String("path", relPath))
	return nil
}

// JobStatus returns the current state of an export job together with a
// signed download URL when the file is ready.
func (s *ReportService) JobStatus(ctx context.Context, jobID string) (*ReportJobStatus, error) {
	job, err := s.jobStore.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}

	status := &ReportJobStatus{Job: job}
	if job.Status == models.ReportStatusFinished && job.ResultPath != nil {
		token, expiresAt, err := s.signer.Generate(job.ID, *job.ResultPath)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
		}
		status.DownloadURL = "/api/v1/reports/download/" + token
		status.ExpiresAt = &expiresAt
	}
	return status, nil
}

// Download validates a signed token and opens the exported file.
func (s *ReportService) Download(ctx context.Context, token string) (*os.File, *models.ReportJob, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid download token")
	}

	job, err := s.jobStore.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.Status != models.ReportStatusFinished || job.ResultPath == nil || *job.ResultPath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "export file not available")
	}

	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return file, job, nil
}

func (s *ReportService) failJob(ctx context.Context, jobID, reason string) {
	failed := models.ReportStatusFailed
	now := time.Now().UTC()
	if err := s.jobStore.Update(ctx, jobID, repository.UpdateReportJobParams{
		Status:       &failed,
		ErrorMessage: &reason,
		FinishedAt:   &now,
	}); err != nil {
		s.logger.Error("failed to mark export job failed", zap.String("job_id", jobID), zap.Error(err))
	}
	s.logger.Warn("year report export failed", zap.String("job_id", jobID), zap.String("reason", reason))
}

func buildRosterDataset(report *models.YearReport) export.Dataset {
	headers := []string{"Class", "Student", "Email", "Result", "Final Grade"}

	labels := make([]string, 0, len(report.ClassWiseStudents))
	for label := range report.ClassWiseStudents {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	rows := make([]map[string]string, 0)
	for _, label := range labels {
		for _, entry := range report.ClassWiseStudents[label] {
			rows = append(rows, map[string]string{
				"Class":       label,
				"Student":     entry.StudentName,
				"Email":       entry.StudentEmail,
				"Result":      string(entry.Result),
				"Final Grade": entry.FinalGrade,
			})
		}
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
