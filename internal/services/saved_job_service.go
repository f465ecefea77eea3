package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/charlesng35/talenthub/internal/models"
)

// SavedJobDTO is a bookmarked job.
type SavedJobDTO struct {
	ID      string      `json:"id"`
	JobID   string      `json:"jobId"`
	SavedAt time.Time   `json:"savedAt"`
	Job     *JobSummary `json:"job,omitempty"`
}

// SavedJobService manages an applicant's bookmarked jobs.
type SavedJobService struct {
	db   *gorm.DB
	jobs JobDirectory
}

// NewSavedJobService constructs a SavedJobService.
func NewSavedJobService(db *gorm.DB, jobs JobDirectory) (*SavedJobService, error) {
	if db == nil {
		return nil, errors.New("saved job service: db is required")
	}
	if jobs == nil {
		return nil, errors.New("saved job service: job directory is required")
	}
	return &SavedJobService{db: db, jobs: jobs}, nil
}

// Save bookmarks a job for the applicant. Saving the same job twice fails with
// ErrJobAlreadySaved.
func (s *SavedJobService) Save(ctx context.Context, applicantID, jobID string) (*SavedJobDTO, error) {
	ctx = ensureContext(ctx)
	job, err := s.jobs.Lookup(ctx, strings.TrimSpace(jobID))
	if err != nil {
		return nil, err
	}

	saved := models.SavedJob{JobID: job.ID, ApplicantID: strings.TrimSpace(applicantID)}
	if err := s.db.WithContext(ctx).Create(&saved).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrJobAlreadySaved
		}
		if isForeignKeyError(err) {
			invalidateJob(s.jobs, job.ID)
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("saved job service: save job: %w", err)
	}

	return &SavedJobDTO{ID: saved.ID, JobID: saved.JobID, SavedAt: saved.CreatedAt, Job: job}, nil
}

// Remove deletes the applicant's bookmark for jobID.
func (s *SavedJobService) Remove(ctx context.Context, applicantID, jobID string) error {
	ctx = ensureContext(ctx)
	result := s.db.WithContext(ctx).
		Where("applicant_id = ? AND job_id = ?", strings.TrimSpace(applicantID), strings.TrimSpace(jobID)).
		Delete(&models.SavedJob{})
	if result.Error != nil {
		return fmt.Errorf("saved job service: remove job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSavedJobNotFound
	}
	return nil
}

// List returns the applicant's bookmarks, most recent first.
func (s *SavedJobService) List(ctx context.Context, applicantID string) ([]SavedJobDTO, error) {
	ctx = ensureContext(ctx)
	var rows []models.SavedJob
	if err := s.db.WithContext(ctx).
		Preload("Job").
		Where("applicant_id = ?", strings.TrimSpace(applicantID)).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("saved job service: list saved jobs: %w", err)
	}

	return lo.Map(rows, func(row models.SavedJob, _ int) SavedJobDTO {
		dto := SavedJobDTO{ID: row.ID, JobID: row.JobID, SavedAt: row.CreatedAt}
		if row.Job != nil {
			dto.Job = summarizeJob(*row.Job)
		}
		return dto
	}), nil
}
