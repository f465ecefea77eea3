package models

// SavedJob bookmarks a job for an applicant; unique per (job, applicant).
type SavedJob struct {
	BaseModel

	JobID       string `gorm:"type:varchar(36);not null;uniqueIndex:idx_saved_jobs_job_applicant,priority:1" json:"jobId"`
	ApplicantID string `gorm:"type:varchar(36);not null;uniqueIndex:idx_saved_jobs_job_applicant,priority:2;index" json:"applicantId"`

	Job *Job `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE" json:"job,omitempty"`
}
