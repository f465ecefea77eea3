package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/talenthub/internal/services"
	"github.com/charlesng35/talenthub/pkg/response"
)

// DashboardHandler serves employer and admin overviews.
type DashboardHandler struct {
	service *services.DashboardService
}

// NewDashboardHandler constructs a dashboard handler.
func NewDashboardHandler(service *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// EmployerJobs lists the caller's jobs with applicant counts.
func (h *DashboardHandler) EmployerJobs(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	items, err := h.service.EmployerJobs(requestContext(c), principal.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, items)
}

// Stats returns platform wide totals.
func (h *DashboardHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, stats)
}
