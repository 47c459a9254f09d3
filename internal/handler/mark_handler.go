package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/acadterm/gradebook-api/internal/service"
	appErrors "github.com/acadterm/gradebook-api/pkg/errors"
	"github.com/acadterm/gradebook-api/pkg/response"
)

// MarkHandler exposes batch mark posting endpoints.
type MarkHandler struct {
	marks    *service.MarkService
	exporter *service.ExportService
}

// NewMarkHandler constructs handler.
func NewMarkHandler(marks *service.MarkService, exporter *service.ExportService) *MarkHandler {
	return &MarkHandler{marks: marks, exporter: exporter}
}

// Post godoc
// @Summary Post a batch of marks
// @Description Commits all entries or none. Entries name their own
// @Description offering and may span several; on rejection the
// @Description response lists every offending entry.
// @Tags Marks
// @Accept json
// @Produce json
// @Param payload body service.PostMarksRequest true "Mark batch"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /lecturer/marks [post]
func (h *MarkHandler) Post(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.PostMarksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid marks payload"))
		return
	}
	result, failures, err := h.marks.PostMarks(c.Request.Context(), claims.UserID, req)
	if err != nil {
		if len(failures) > 0 {
			appErr := appErrors.FromError(err)
			c.JSON(appErr.Status, response.Envelope{Error: appErr, Data: gin.H{"failures": failures}})
			return
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List marks recorded for an offering
// @Tags Marks
// @Produce json
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Router /lecturer/offerings/{id}/marks [get]
func (h *MarkHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	marks, err := h.marks.ListForOffering(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, marks, nil)
}

// Gradebook godoc
// @Summary Download the offering gradebook as CSV
// @Tags Marks
// @Produce text/csv
// @Param id path string true "Offering ID"
// @Success 200 {file} file
// @Router /lecturer/offerings/{id}/gradebook [get]
func (h *MarkHandler) Gradebook(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "exports are not enabled"))
		return
	}
	offeringID := c.Param("id")

	// assignment check only; the grid is rebuilt by the exporter
	if _, err := h.marks.ListForOffering(c.Request.Context(), claims.UserID, offeringID); err != nil {
		response.Error(c, err)
		return
	}

	data, filename, err := h.exporter.GradebookCSV(c.Request.Context(), offeringID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", data)
}
