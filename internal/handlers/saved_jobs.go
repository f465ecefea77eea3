package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/talenthub/internal/services"
	"github.com/charlesng35/talenthub/pkg/response"
)

// SavedJobHandler manages the caller's bookmarked jobs.
type SavedJobHandler struct {
	service *services.SavedJobService
}

// NewSavedJobHandler constructs a saved job handler.
func NewSavedJobHandler(service *services.SavedJobService) *SavedJobHandler {
	return &SavedJobHandler{service: service}
}

type saveJobRequest struct {
	JobID string `json:"jobId" validate:"required,notblank"`
}

// Save bookmarks a job.
func (h *SavedJobHandler) Save(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	var payload saveJobRequest
	if !bindAndValidate(c, &payload) {
		return
	}

	dto, err := h.service.Save(requestContext(c), principal.ID, payload.JobID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, dto)
}

// Remove deletes the bookmark for :jobId.
func (h *SavedJobHandler) Remove(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	if err := h.service.Remove(requestContext(c), principal.ID, strings.TrimSpace(c.Param("jobId"))); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// List returns the caller's bookmarks, newest first.
func (h *SavedJobHandler) List(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	items, err := h.service.List(requestContext(c), principal.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, items)
}
