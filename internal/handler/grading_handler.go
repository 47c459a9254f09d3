package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/acadterm/gradebook-api/internal/service"
	appErrors "github.com/acadterm/gradebook-api/pkg/errors"
	"github.com/acadterm/gradebook-api/pkg/response"
)

// GradingHandler exposes marksheet and aggregation endpoints.
type GradingHandler struct {
	grading *service.GradingService
}

// NewGradingHandler constructs handler.
func NewGradingHandler(grading *service.GradingService) *GradingHandler {
	return &GradingHandler{grading: grading}
}

func termYear(c *gin.Context) (string, int, bool) {
	term := c.Query("term")
	year, _ := strconv.Atoi(c.Query("year"))
	if term == "" || year == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "term and year required"))
		return "", 0, false
	}
	return term, year, true
}

// MyMarksheet godoc
// @Summary Current student's marksheet for a term
// @Tags Grading
// @Produce json
// @Param term query string true "Term"
// @Param year query int true "Year"
// @Success 200 {object} response.Envelope
// @Router /student/marksheet [get]
func (h *GradingHandler) MyMarksheet(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	term, year, ok := termYear(c)
	if !ok {
		return
	}
	sheet, err := h.grading.Marksheet(c.Request.Context(), claims.UserID, term, year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet, nil)
}

// StudentMarksheet godoc
// @Summary A student's marksheet for a term
// @Tags Grading
// @Produce json
// @Param id path string true "Student ID"
// @Param term query string true "Term"
// @Param year query int true "Year"
// @Success 200 {object} response.Envelope
// @Router /admin/students/{id}/marksheet [get]
func (h *GradingHandler) StudentMarksheet(c *gin.Context) {
	term, year, ok := termYear(c)
	if !ok {
		return
	}
	sheet, err := h.grading.Marksheet(c.Request.Context(), c.Param("id"), term, year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet, nil)
}

// CohortMarksheet godoc
// @Summary Marksheets for every enrolled student in a term
// @Tags Grading
// @Produce json
// @Param term query string true "Term"
// @Param year query int true "Year"
// @Success 200 {object} response.Envelope
// @Router /admin/marksheets [get]
func (h *GradingHandler) CohortMarksheet(c *gin.Context) {
	term, year, ok := termYear(c)
	if !ok {
		return
	}
	sheets, err := h.grading.CohortMarksheet(c.Request.Context(), term, year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheets, nil)
}

// MissingMarks godoc
// @Summary Enrolled pairs with no recorded mark
// @Tags Grading
// @Produce json
// @Param term query string true "Term"
// @Param year query int true "Year"
// @Param offering_id query string false "Narrow to one offering"
// @Param student_id query string false "Narrow to one student"
// @Success 200 {object} response.Envelope
// @Router /admin/missing-marks [get]
func (h *GradingHandler) MissingMarks(c *gin.Context) {
	term, year, ok := termYear(c)
	if !ok {
		return
	}
	missing, err := h.grading.MissingMarks(c.Request.Context(), term, year, c.Query("offering_id"), c.Query("student_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, missing, nil)
}
