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

// EmployerJobOverview is one of an employer's jobs with its applicant funnel.
type EmployerJobOverview struct {
	JobSummary
	CreatedAt      time.Time                          `json:"createdAt"`
	ApplicantCount int64                              `json:"applicantCount"`
	StatusCounts   map[models.ApplicationStatus]int64 `json:"statusCounts"`
}

// JobApplicationCount is the number of applications a job received.
type JobApplicationCount struct {
	JobID string `json:"jobId"`
	Title string `json:"title"`
	Count int64  `gorm:"column:total" json:"count"`
}

// PlatformStats is the admin dashboard summary.
type PlatformStats struct {
	TotalJobs          int64                 `json:"totalJobs"`
	TotalApplicants    int64                 `json:"totalApplicants"`
	TotalEmployers     int64                 `json:"totalEmployers"`
	TotalApplications  int64                 `json:"totalApplications"`
	ApplicationsPerJob []JobApplicationCount `json:"applicationsPerJob"`
}

// DashboardService aggregates application counts for employers and admins.
type DashboardService struct {
	db *gorm.DB
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(db *gorm.DB) (*DashboardService, error) {
	if db == nil {
		return nil, errors.New("dashboard service: db is required")
	}
	return &DashboardService{db: db}, nil
}

type statusCountRow struct {
	JobID  string
	Status models.ApplicationStatus
	Total  int64
}

// EmployerJobs lists the jobs created by employerID, newest first, with
// zero-filled per-status application counts.
func (s *DashboardService) EmployerJobs(ctx context.Context, employerID string) ([]EmployerJobOverview, error) {
	ctx = ensureContext(ctx)
	employerID = strings.TrimSpace(employerID)

	var jobs []models.Job
	if err := s.db.WithContext(ctx).
		Where("created_by = ?", employerID).
		Order("created_at DESC").
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("dashboard service: list jobs: %w", err)
	}
	if len(jobs) == 0 {
		return []EmployerJobOverview{}, nil
	}

	var rows []statusCountRow
	if err := s.db.WithContext(ctx).
		Model(&models.Application{}).
		Select("job_id, status, COUNT(*) AS total").
		Where("job_id IN ?", lo.Map(jobs, func(job models.Job, _ int) string { return job.ID })).
		Group("job_id, status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("dashboard service: count applications: %w", err)
	}
	byJob := lo.GroupBy(rows, func(row statusCountRow) string { return row.JobID })

	return lo.Map(jobs, func(job models.Job, _ int) EmployerJobOverview {
		counts := lo.SliceToMap(models.ApplicationStatuses, func(status models.ApplicationStatus) (models.ApplicationStatus, int64) {
			return status, 0
		})
		var total int64
		for _, row := range byJob[job.ID] {
			counts[row.Status] += row.Total
			total += row.Total
		}
		return EmployerJobOverview{
			JobSummary:     *summarizeJob(job),
			CreatedAt:      job.CreatedAt,
			ApplicantCount: total,
			StatusCounts:   counts,
		}
	}), nil
}

// Stats returns platform wide totals.
func (s *DashboardService) Stats(ctx context.Context) (*PlatformStats, error) {
	ctx = ensureContext(ctx)
	db := s.db.WithContext(ctx)
	stats := &PlatformStats{}

	if err := db.Model(&models.Job{}).Count(&stats.TotalJobs).Error; err != nil {
		return nil, fmt.Errorf("dashboard service: count jobs: %w", err)
	}
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleApplicant).Count(&stats.TotalApplicants).Error; err != nil {
		return nil, fmt.Errorf("dashboard service: count applicants: %w", err)
	}
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleEmployer).Count(&stats.TotalEmployers).Error; err != nil {
		return nil, fmt.Errorf("dashboard service: count employers: %w", err)
	}
	if err := db.Model(&models.Application{}).Count(&stats.TotalApplications).Error; err != nil {
		return nil, fmt.Errorf("dashboard service: count applications: %w", err)
	}

	stats.ApplicationsPerJob = []JobApplicationCount{}
	if err := db.Model(&models.Application{}).
		Select("applications.job_id AS job_id, jobs.title AS title, COUNT(*) AS total").
		Joins("JOIN jobs ON jobs.id = applications.job_id").
		Group("applications.job_id, jobs.title").
		Order("total DESC").
		Scan(&stats.ApplicationsPerJob).Error; err != nil {
		return nil, fmt.Errorf("dashboard service: applications per job: %w", err)
	}

	return stats, nil
}
