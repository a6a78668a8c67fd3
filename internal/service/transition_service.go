package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/vidyarthi-labs/school-admin-api/internal/models"
	"github.com/vidyarthi-labs/school-admin-api/internal/repository"
	appErrors "github.com/vidyarthi-labs/school-admin-api/pkg/errors"
)

type transitionYearRepository interface {
	FindByID(ctx context.Context, id string) (*models.AcademicYear, error)
	FindActive(ctx context.Context) (*models.AcademicYear, error)
	SetActive(ctx context.Context, id string) error
}

type transitionStudentRepository interface {
	ListEnrolledWithClass(ctx context.Context, academicYearID string) ([]models.StudentEnrollment, error)
	UpdateEnrollment(ctx context.Context, studentID string, classID *string, academicYearID string) error
}

type historyArchiver interface {
	BulkInsert(ctx context.Context, records []models.StudentHistory) error
}

type nextClassResolver interface {
	ResolveNextClass(ctx context.Context, current models.Class) (*models.Class, error)
}

type reportCacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// IncrementYearRequest names the year the school moves into.
type IncrementYearRequest struct {
	NextYearID string `json:"nextYearId" validate:"required"`
}

// TransitionService orchestrates the end-of-year rollover: archive the
// closing year's roster, promote every student one grade, then activate
// the next year. Activation is always the last write so a failure in
// any earlier phase leaves the current year active.
type TransitionService struct {
	years     transitionYearRepository
	students  transitionStudentRepository
	histories historyArchiver
	resolver  nextClassResolver
	cache     reportCacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTransitionService creates a new transition service instance. The
// cache may be nil when report caching is disabled.
func NewTransitionService(
	years transitionYearRepository,
	students transitionStudentRepository,
	histories historyArchiver,
	resolver nextClassResolver,
	cache reportCacheInvalidator,
	validate *validator.Validate,
	logger *zap.Logger,
) *TransitionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransitionService{
		years:     years,
		students:  students,
		histories: histories,
		resolver:  resolver,
		cache:     cache,
		validator: validate,
		logger:    logger,
	}
}

// Increment runs the full year transition. The promotion loop is
// best-effort: an individual student failure is recorded in the result
// and the loop continues, but archive or activation failures abort the
// whole run.
func (s *TransitionService) Increment(ctx context.Context, req IncrementYearRequest) (*models.TransitionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "nextYearId is required")
	}

	log := s.logger.With(zap.String("next_year_id", req.NextYearID))
	log.Info("year transition started", zap.String("step", string(models.TransitionValidating)))

	next, err := s.years.FindByID(ctx, req.NextYearID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "next academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load next academic year")
	}

	current, err := s.years.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.bootstrap(ctx, next, log)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active academic year")
	}

	if current.ID == next.ID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "academic year is already active")
	}

	log = log.With(zap.String("current_year_id", current.ID))

	enrollments, err := s.students.ListEnrolledWithClass(ctx, current.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrolled students")
	}

	log.Info("archiving student history",
		zap.String("step", string(models.TransitionArchiving)),
		zap.Int("students", len(enrollments)))

	records := make([]models.StudentHistory, 0, len(enrollments))
	for _, e := range enrollments {
		records = append(records, models.StudentHistory{
			StudentID:      e.StudentID,
			ClassID:        e.ClassID,
			AcademicYearID: current.ID,
			Result:         models.ResultPromoted,
		})
	}
	if err := s.histories.BulkInsert(ctx, records); err != nil {
		log.Error("archive failed",
			zap.String("step", string(models.TransitionFailed)),
			zap.Error(err))
		if errors.Is(err, repository.ErrDuplicateHistory) {
			return nil, appErrors.Wrap(err, appErrors.ErrArchiveFailed.Code, appErrors.ErrArchiveFailed.Status, "history already archived for this year")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrArchiveFailed.Code, appErrors.ErrArchiveFailed.Status, appErrors.ErrArchiveFailed.Message)
	}

	result := &models.TransitionResult{
		ActiveYearID:   next.ID,
		ActiveYearName: next.Name,
		Archived:       len(records),
	}

	log.Info("promoting students", zap.String("step", string(models.TransitionPromoting)))

	// Cache of current class ID to resolved next class. Every student in
	// the same class promotes to the same destination.
	resolved := map[string]*models.Class{}

	for _, e := range enrollments {
		nextClass, seen := resolved[e.ClassID]
		if !seen {
			nextClass, err = s.resolver.ResolveNextClass(ctx, models.Class{
				ID:      e.ClassID,
				Name:    e.ClassName,
				Section: e.ClassSection,
				Branch:  e.ClassBranch,
			})
			if err != nil {
				result.Failed = append(result.Failed, models.PromotionFailure{
					StudentID:   e.StudentID,
					StudentName: e.StudentName,
					Reason:      err.Error(),
				})
				log.Warn("next class resolution failed",
					zap.String("student_id", e.StudentID),
					zap.String("class_name", e.ClassName),
					zap.Error(err))
				continue
			}
			resolved[e.ClassID] = nextClass
		}

		var nextClassID *string
		if nextClass != nil {
			nextClassID = &nextClass.ID
		}

		if err := s.students.UpdateEnrollment(ctx, e.StudentID, nextClassID, next.ID); err != nil {
			result.Failed = append(result.Failed, models.PromotionFailure{
				StudentID:   e.StudentID,
				StudentName: e.StudentName,
				Reason:      err.Error(),
			})
			log.Warn("student promotion failed",
				zap.String("student_id", e.StudentID),
				zap.Error(err))
			continue
		}

		if nextClassID != nil {
			result.Promoted++
		} else {
			result.Unassigned++
		}
	}

	log.Info("activating next academic year", zap.String("step", string(models.TransitionActivating)))

	if err := s.years.SetActive(ctx, next.ID); err != nil {
		log.Error("activation failed",
			zap.String("step", string(models.TransitionFailed)),
			zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate next academic year")
	}

	// The closing year gained archived history, so any cached report
	// for it is stale until the TTL expires. Invalidation is best effort.
	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, reportCachePrefix+current.ID); err != nil {
			log.Warn("report cache invalidation failed",
				zap.String("year_id", current.ID),
				zap.Error(err))
		}
	}

	result.Message = fmt.Sprintf("Academic year incremented to %s. %d students promoted.", next.Name, result.Promoted)

	log.Info("year transition complete",
		zap.String("step", string(models.TransitionDone)),
		zap.Int("archived", result.Archived),
		zap.Int("promoted", result.Promoted),
		zap.Int("unassigned", result.Unassigned),
		zap.Int("failed", len(result.Failed)))

	return result, nil
}

// bootstrap handles the first transition ever, before any year is
// active. There is nothing to archive or promote; the target year is
// simply activated.
func (s *TransitionService) bootstrap(ctx context.Context, next *models.AcademicYear, log *zap.Logger) (*models.TransitionResult, error) {
	log.Info("no active year, bootstrapping", zap.String("step", string(models.TransitionActivating)))

	if err := s.years.SetActive(ctx, next.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate academic year")
	}

	return &models.TransitionResult{
		Message:        fmt.Sprintf("Academic year activated: %s", next.Name),
		ActiveYearID:   next.ID,
		ActiveYearName: next.Name,
	}, nil
}
