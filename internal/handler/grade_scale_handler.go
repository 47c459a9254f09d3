package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/acadterm/gradebook-api/internal/service"
	appErrors "github.com/acadterm/gradebook-api/pkg/errors"
	"github.com/acadterm/gradebook-api/pkg/response"
)

// GradeScaleHandler exposes grade scale administration endpoints.
type GradeScaleHandler struct {
	scale *service.GradeScaleService
}

// NewGradeScaleHandler constructs handler.
func NewGradeScaleHandler(scale *service.GradeScaleService) *GradeScaleHandler {
	return &GradeScaleHandler{scale: scale}
}

// List godoc
// @Summary Current grade scale, highest band first
// @Tags GradeScale
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /grade-scale [get]
func (h *GradeScaleHandler) List(c *gin.Context) {
	bands, err := h.scale.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bands, nil)
}

// Replace godoc
// @Summary Replace the whole grade scale
// @Tags GradeScale
// @Accept json
// @Produce json
// @Param payload body service.ReplaceGradeScaleRequest true "Grade scale"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /admin/grade-scale [put]
func (h *GradeScaleHandler) Replace(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.ReplaceGradeScaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grade scale payload"))
		return
	}
	bands, err := h.scale.Replace(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bands, nil)
}
