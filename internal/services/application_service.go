package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/talenthub/internal/auth"
	"github.com/charlesng35/talenthub/internal/models"
	"github.com/charlesng35/talenthub/pkg/logger"
	"github.com/charlesng35/talenthub/pkg/metrics"
)

// ResumeRemover releases externally stored resume assets.
type ResumeRemover interface {
	Delete(ctx context.Context, url string) error
}

// ApplicantSummary is the applicant view shown to job owners.
type ApplicantSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Location string `json:"location,omitempty"`
}

// ApplicationDTO represents the API-friendly application payload.
type ApplicationDTO struct {
	ID          string                   `json:"id"`
	JobID       string                   `json:"jobId"`
	ApplicantID string                   `json:"applicantId"`
	CoverLetter string                   `json:"coverLetter"`
	ResumeURL   string                   `json:"resumeUrl"`
	Status      models.ApplicationStatus `json:"status"`
	CreatedAt   time.Time                `json:"createdAt"`
	UpdatedAt   time.Time                `json:"updatedAt"`
	Job         *JobSummary              `json:"job,omitempty"`
	Applicant   *ApplicantSummary        `json:"applicant,omitempty"`
}

// ApplyInput carries the applicant supplied fields of a new application.
type ApplyInput struct {
	JobID       string
	CoverLetter string
	ResumeURL   string
	// ResumeStored is set when ResumeURL was just issued by the resume store
	// for this submission. Only such resumes are released on delete.
	ResumeStored bool
}

// ApplicationServiceOption customises an ApplicationService.
type ApplicationServiceOption func(*ApplicationService)

// WithTransitionPolicy replaces the default permissive status graph.
func WithTransitionPolicy(policy TransitionPolicy) ApplicationServiceOption {
	return func(s *ApplicationService) {
		if policy != nil {
			s.policy = policy
		}
	}
}

// WithResumeRemover attaches the resume asset store used on delete.
func WithResumeRemover(remover ResumeRemover) ApplicationServiceOption {
	return func(s *ApplicationService) {
		s.resumes = remover
	}
}

// ApplicationService owns the application lifecycle: apply, status
// transitions and deletion, with job-owner/admin authorization.
type ApplicationService struct {
	db         *gorm.DB
	jobs       JobDirectory
	dispatcher Dispatcher
	resumes    ResumeRemover
	policy     TransitionPolicy
	log        *zap.Logger
}

// NewApplicationService constructs an ApplicationService. dispatcher may be nil,
// in which case no notifications are produced.
func NewApplicationService(db *gorm.DB, jobs JobDirectory, dispatcher Dispatcher, opts ...ApplicationServiceOption) (*ApplicationService, error) {
	if db == nil {
		return nil, errors.New("application service: db is required")
	}
	if jobs == nil {
		return nil, errors.New("application service: job directory is required")
	}

	svc := &ApplicationService{
		db:         db,
		jobs:       jobs,
		dispatcher: dispatcher,
		policy:     PermissiveTransitions{},
		log:        logger.WithModule("applications"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Apply creates an application in the applied state. A second application by
// the same applicant to the same job fails with ErrDuplicateApplication; the
// unique index decides, so concurrent attempts yield exactly one success.
func (s *ApplicationService) Apply(ctx context.Context, applicantID string, input ApplyInput) (*ApplicationDTO, error) {
	ctx = ensureContext(ctx)

	applicantID = strings.TrimSpace(applicantID)
	jobID := strings.TrimSpace(input.JobID)
	coverLetter := strings.TrimSpace(input.CoverLetter)
	resumeURL := strings.TrimSpace(input.ResumeURL)

	if applicantID == "" || jobID == "" {
		metrics.ApplicationsSubmitted.WithLabelValues("invalid").Inc()
		return nil, ErrValidation.WithMessage("jobId is required")
	}
	if coverLetter == "" || resumeURL == "" {
		metrics.ApplicationsSubmitted.WithLabelValues("invalid").Inc()
		return nil, ErrValidation.WithMessage("Cover letter and resume are required")
	}

	job, err := s.jobs.Lookup(ctx, jobID)
	if err != nil {
		metrics.ApplicationsSubmitted.WithLabelValues("invalid").Inc()
		return nil, err
	}

	application := models.Application{
		JobID:        job.ID,
		ApplicantID:  applicantID,
		CoverLetter:  coverLetter,
		ResumeURL:    resumeURL,
		ResumeStored: input.ResumeStored,
		Status:       models.StatusApplied,
	}
	if err := s.db.WithContext(ctx).Create(&application).Error; err != nil {
		if isUniqueConstraintError(err) {
			metrics.ApplicationsSubmitted.WithLabelValues("duplicate").Inc()
			return nil, ErrDuplicateApplication
		}
		if isForeignKeyError(err) {
			// The job is the only hard reference; a cached lookup can outlive it.
			invalidateJob(s.jobs, job.ID)
			metrics.ApplicationsSubmitted.WithLabelValues("invalid").Inc()
			return nil, ErrJobNotFound
		}
		metrics.ApplicationsSubmitted.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("application service: create application: %w", err)
	}
	metrics.ApplicationsSubmitted.WithLabelValues("created").Inc()

	s.dispatch(ctx, Notice{
		Recipient:     RecipientByID(job.CreatedBy),
		Template:      NewApplicationTemplate(job.Title),
		JobID:         job.ID,
		JobTitle:      job.Title,
		ApplicationID: application.ID,
		Application: &ApplicationSummary{
			ID:          application.ID,
			ApplicantID: application.ApplicantID,
			Status:      application.Status,
			CreatedAt:   application.CreatedAt,
		},
	})

	dto := mapApplication(application)
	dto.Job = job
	return &dto, nil
}

// ListForApplicant returns the applications submitted by userID. Only that
// user or an admin may read them.
func (s *ApplicationService) ListForApplicant(ctx context.Context, actor auth.Principal, userID string) ([]ApplicationDTO, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if actor.ID != userID && !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	var rows []models.Application
	if err := s.db.WithContext(ctx).
		Preload("Job").
		Where("applicant_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("application service: list applications: %w", err)
	}

	return lo.Map(rows, func(row models.Application, _ int) ApplicationDTO {
		dto := mapApplication(row)
		if row.Job != nil {
			dto.Job = summarizeJob(*row.Job)
		}
		return dto
	}), nil
}

// ListForJob returns the applications received by a job, with applicant
// details. Only the job owner or an admin may read them.
func (s *ApplicationService) ListForJob(ctx context.Context, actor auth.Principal, jobID string) ([]ApplicationDTO, error) {
	ctx = ensureContext(ctx)
	job, err := s.jobs.Lookup(ctx, strings.TrimSpace(jobID))
	if err != nil {
		return nil, err
	}
	if !canManage(actor, job) {
		return nil, ErrForbidden
	}

	var rows []models.Application
	if err := s.db.WithContext(ctx).
		Preload("Applicant").
		Where("job_id = ?", job.ID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("application service: list job applications: %w", err)
	}

	return lo.Map(rows, func(row models.Application, _ int) ApplicationDTO {
		dto := mapApplication(row)
		dto.Job = job
		if row.Applicant != nil {
			dto.Applicant = summarizeApplicant(*row.Applicant)
		}
		return dto
	}), nil
}

// UpdateStatus moves an application to a new status. Checks run in order:
// existence, authorization, enum membership, transition policy. The status is
// committed before exactly one notification is dispatched to the applicant;
// a dispatch failure is logged and does not undo the change.
func (s *ApplicationService) UpdateStatus(ctx context.Context, actor auth.Principal, applicationID, status string) (*ApplicationDTO, error) {
	ctx = ensureContext(ctx)

	application, job, err := s.loadManaged(ctx, actor, applicationID)
	if err != nil {
		return nil, err
	}

	next := models.ApplicationStatus(strings.TrimSpace(status))
	if !next.Valid() {
		return nil, ErrInvalidStatus
	}
	if !s.policy.Allow(application.Status, next) {
		return nil, ErrInvalidTransition.WithMessage(
			fmt.Sprintf("Cannot move application from %s to %s", application.Status, next))
	}

	if err := s.db.WithContext(ctx).
		Model(application).
		Update("status", next).Error; err != nil {
		return nil, fmt.Errorf("application service: update status: %w", err)
	}
	application.Status = next
	metrics.StatusTransitions.WithLabelValues(string(next)).Inc()

	s.dispatch(ctx, Notice{
		Recipient:     RecipientByID(application.ApplicantID),
		Template:      StatusChangeTemplate(next, job.Title),
		JobID:         job.ID,
		JobTitle:      job.Title,
		ApplicationID: application.ID,
		Status:        next,
	})

	dto := mapApplication(*application)
	dto.Job = job
	return &dto, nil
}

// Delete removes an application. A resume the store issued for it is released
// first on a best-effort basis; a storage failure never blocks the deletion.
// Resume URLs supplied by the applicant are never released.
func (s *ApplicationService) Delete(ctx context.Context, actor auth.Principal, applicationID string) error {
	ctx = ensureContext(ctx)

	application, _, err := s.loadManaged(ctx, actor, applicationID)
	if err != nil {
		return err
	}

	if s.resumes != nil && application.ResumeStored && application.ResumeURL != "" {
		if err := s.resumes.Delete(ctx, application.ResumeURL); err != nil {
			s.log.Warn("resume cleanup failed",
				zap.String("application", application.ID),
				zap.String("resume_url", application.ResumeURL),
				zap.Error(err),
			)
		}
	}

	result := s.db.WithContext(ctx).Delete(&models.Application{}, "id = ?", application.ID)
	if result.Error != nil {
		return fmt.Errorf("application service: delete application: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrApplicationNotFound
	}
	return nil
}

func (s *ApplicationService) loadManaged(ctx context.Context, actor auth.Principal, applicationID string) (*models.Application, *JobSummary, error) {
	var application models.Application
	if err := s.db.WithContext(ctx).
		First(&application, "id = ?", strings.TrimSpace(applicationID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrApplicationNotFound
		}
		return nil, nil, fmt.Errorf("application service: load application: %w", err)
	}

	job, err := s.jobs.Lookup(ctx, application.JobID)
	if err != nil {
		return nil, nil, err
	}
	if !canManage(actor, job) {
		return nil, nil, ErrForbidden
	}
	return &application, job, nil
}

func (s *ApplicationService) dispatch(ctx context.Context, notice Notice) {
	if s.dispatcher == nil {
		return
	}
	if _, err := s.dispatcher.Dispatch(ctx, notice); err != nil {
		s.log.Warn("notification side effect failed",
			zap.String("type", string(notice.Template.Type)),
			zap.String("recipient", notice.Recipient.String()),
			zap.String("application", notice.ApplicationID),
			zap.Error(err),
		)
	}
}

// canManage reports whether actor may view or change a job's applications.
func canManage(actor auth.Principal, job *JobSummary) bool {
	if actor.IsAdmin() {
		return true
	}
	return actor.ID != "" && job != nil && actor.ID == job.CreatedBy
}

func mapApplication(row models.Application) ApplicationDTO {
	return ApplicationDTO{
		ID:          row.ID,
		JobID:       row.JobID,
		ApplicantID: row.ApplicantID,
		CoverLetter: row.CoverLetter,
		ResumeURL:   row.ResumeURL,
		Status:      row.Status,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func summarizeJob(job models.Job) *JobSummary {
	return &JobSummary{
		ID:        job.ID,
		Title:     job.Title,
		Company:   job.Company,
		Location:  job.Location,
		CreatedBy: job.CreatedBy,
	}
}

func summarizeApplicant(user models.User) *ApplicantSummary {
	return &ApplicantSummary{
		ID:       user.ID,
		Name:     user.Name,
		Email:    user.Email,
		Phone:    user.Phone,
		Location: user.Location,
	}
}
