package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vidyarthi-labs/school-admin-api/internal/models"
	"github.com/vidyarthi-labs/school-admin-api/internal/service"
	appErrors "github.com/vidyarthi-labs/school-admin-api/pkg/errors"
	"github.com/vidyarthi-labs/school-admin-api/pkg/response"
)

// AcademicYearHandler exposes year lifecycle and transition endpoints.
type AcademicYearHandler struct {
	years      *service.AcademicYearService
	transition *service.TransitionService
	reports    *service.ReportService
	metrics    *service.MetricsService
}

// NewAcademicYearHandler constructs an academic year handler.
func NewAcademicYearHandler(years *service.AcademicYearService, transition *service.TransitionService, reports *service.ReportService, metrics *service.MetricsService) *AcademicYearHandler {
	return &AcademicYearHandler{years: years, transition: transition, reports: reports, metrics: metrics}
}

// List godoc
// @Summary List academic years
// @Tags AcademicYears
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /academic-years [get]
func (h *AcademicYearHandler) List(c *gin.Context) {
	var filter models.AcademicYearFilter
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	years, pagination, err := h.years.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, years, pagination)
}

// Get godoc
// @Summary Get academic year
// @Tags AcademicYears
// @Produce json
// @Param id path string true "Academic year ID"
// @Success 200 {object} response.Envelope
// @Router /academic-years/{id} [get]
func (h *AcademicYearHandler) Get(c *gin.Context) {
	year, err := h.years.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, year, nil)
}

// GetActive godoc
// @Summary Get the active academic year
// @Tags AcademicYears
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /academic-years/active [get]
func (h *AcademicYearHandler) GetActive(c *gin.Context) {
	year, err := h.years.GetActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, year, nil)
}

// Create godoc
// @Summary Create academic year
// @Tags AcademicYears
// @Accept json
// @Produce json
// @Param payload body service.CreateAcademicYearRequest true "Academic year payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /academic-years [post]
func (h *AcademicYearHandler) Create(c *gin.Context) {
	var req service.CreateAcademicYearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	year, err := h.years.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, year)
}

// SetActive godoc
// @Summary Activate an academic year
// @Tags AcademicYears
// @Produce json
// @Param id path string true "Academic year ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /academic-years/{id}/activate [post]
func (h *AcademicYearHandler) SetActive(c *gin.Context) {
	year, err := h.years.SetActive(c.Request.Context(), service.SetActiveYearRequest{ID: c.Param("id")})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, year, nil)
}

// Increment godoc
// @Summary Run the year transition
// @Description Archive the closing year, promote students, activate the next year
// @Tags AcademicYears
// @Accept json
// @Produce json
// @Param payload body service.IncrementYearRequest true "Transition payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /academic-years/increment [post]
func (h *AcademicYearHandler) Increment(c *gin.Context) {
	var req service.IncrementYearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.transition.Increment(c.Request.Context(), req)
	if err != nil {
		h.metrics.RecordTransition("failure")
		response.Error(c, err)
		return
	}

	h.metrics.RecordTransition("success")
	response.JSON(c, http.StatusOK, result, nil)
}

// Reports godoc
// @Summary Year report
// @Description Class-wise archived students, marks, staff leaves and attendance
// @Tags AcademicYears
// @Produce json
// @Param id path string true "Academic year ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /academic-years/{id}/reports [get]
func (h *AcademicYearHandler) Reports(c *gin.Context) {
	report, err := h.reports.YearReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
