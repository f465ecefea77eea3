package handlers

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/talenthub/internal/services"
	"github.com/charlesng35/talenthub/internal/storage"
	"github.com/charlesng35/talenthub/pkg/errors"
	"github.com/charlesng35/talenthub/pkg/logger"
	"github.com/charlesng35/talenthub/pkg/response"
)

// ResumeStore persists uploaded resume files and hands back a public URL.
type ResumeStore interface {
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}

// ApplicationHandler exposes the application lifecycle over HTTP.
type ApplicationHandler struct {
	service *services.ApplicationService
	resumes ResumeStore
}

// NewApplicationHandler constructs an application handler. resumes may be nil
// when multipart uploads are not supported.
func NewApplicationHandler(service *services.ApplicationService, resumes ResumeStore) *ApplicationHandler {
	return &ApplicationHandler{service: service, resumes: resumes}
}

type applyRequest struct {
	JobID       string `json:"jobId" form:"jobId" validate:"required,notblank"`
	CoverLetter string `json:"coverLetter" form:"coverLetter" validate:"required,notblank"`
	ResumeURL   string `json:"resumeUrl" form:"resumeUrl" validate:"required,notblank"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,notblank"`
}

// Apply submits an application for the caller. The body is either JSON with a
// resumeUrl or a multipart form carrying a resume file.
func (h *ApplicationHandler) Apply(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	var (
		payload  applyRequest
		uploaded string
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		payload, uploaded, ok = h.bindMultipart(c)
		if !ok {
			return
		}
	} else if !bindAndValidate(c, &payload) {
		return
	}

	dto, err := h.service.Apply(requestContext(c), principal.ID, services.ApplyInput{
		JobID:        payload.JobID,
		CoverLetter:  payload.CoverLetter,
		ResumeURL:    payload.ResumeURL,
		ResumeStored: uploaded != "" && uploaded == payload.ResumeURL,
	})
	if err != nil {
		if uploaded != "" {
			h.discardUpload(c, uploaded)
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, dto)
}

func (h *ApplicationHandler) bindMultipart(c *gin.Context) (applyRequest, string, bool) {
	payload := applyRequest{
		JobID:       c.PostForm("jobId"),
		CoverLetter: c.PostForm("coverLetter"),
		ResumeURL:   c.PostForm("resumeUrl"),
	}

	file, err := c.FormFile("resume")
	if err != nil && !stderrors.Is(err, http.ErrMissingFile) {
		response.Error(c, errors.NewBadRequest("invalid multipart payload"))
		return payload, "", false
	}

	var uploaded string
	if file != nil {
		if h.resumes == nil {
			response.Error(c, errors.NewBadRequest("Resume uploads are not enabled"))
			return payload, "", false
		}
		src, err := file.Open()
		if err != nil {
			response.Error(c, errors.NewBadRequest("invalid resume upload"))
			return payload, "", false
		}
		defer src.Close()

		url, err := h.resumes.Save(requestContext(c), file.Filename, src)
		switch {
		case stderrors.Is(err, storage.ErrUnsupportedFormat):
			response.Error(c, errors.NewValidation("Only PDF and Word documents are allowed"))
			return payload, "", false
		case stderrors.Is(err, storage.ErrTooLarge):
			response.Error(c, errors.NewValidation("Resume file is too large"))
			return payload, "", false
		case err != nil:
			response.Error(c, errors.Wrap(err, "Failed to store resume"))
			return payload, "", false
		}
		payload.ResumeURL = url
		uploaded = url
	}

	if !validatePayload(c, &payload) {
		if uploaded != "" {
			h.discardUpload(c, uploaded)
		}
		return payload, "", false
	}
	return payload, uploaded, true
}

func (h *ApplicationHandler) discardUpload(c *gin.Context, url string) {
	if err := h.resumes.Delete(requestContext(c), url); err != nil {
		logger.WithModule("applications").Warn("discard resume upload failed",
			zap.String("resume_url", url),
			zap.Error(err),
		)
	}
}

// ListForUser returns the applications submitted by :userId.
func (h *ApplicationHandler) ListForUser(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	items, err := h.service.ListForApplicant(requestContext(c), principal, strings.TrimSpace(c.Param("userId")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, items)
}

// ListForJob returns the applicants of :jobId to its owner or an admin.
func (h *ApplicationHandler) ListForJob(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	items, err := h.service.ListForJob(requestContext(c), principal, strings.TrimSpace(c.Param("jobId")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, items)
}

// UpdateStatus moves :id to the requested status.
func (h *ApplicationHandler) UpdateStatus(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	var payload updateStatusRequest
	if !bindAndValidate(c, &payload) {
		return
	}

	dto, err := h.service.UpdateStatus(requestContext(c), principal, strings.TrimSpace(c.Param("id")), payload.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, dto)
}

// Delete removes :id.
func (h *ApplicationHandler) Delete(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	if err := h.service.Delete(requestContext(c), principal, strings.TrimSpace(c.Param("id"))); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Application deleted"})
}
