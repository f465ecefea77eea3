package models

import "gorm.io/gorm"

// ApplicationStatus is the lifecycle state of an application.
type ApplicationStatus string

// Application statuses.
const (
	StatusApplied     ApplicationStatus = "applied"
	StatusShortlisted ApplicationStatus = "shortlisted"
	StatusRejected    ApplicationStatus = "rejected"
	StatusHired       ApplicationStatus = "hired"
)

// ApplicationStatuses lists every status in lifecycle order.
var ApplicationStatuses = []ApplicationStatus{
	StatusApplied,
	StatusShortlisted,
	StatusRejected,
	StatusHired,
}

// Valid reports whether s is a member of the status enum.
func (s ApplicationStatus) Valid() bool {
	for _, status := range ApplicationStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Application is a single applicant's submission against one job. The composite
// unique index makes a second row for the same (job, applicant) impossible.
type Application struct {
	BaseModel

	JobID       string            `gorm:"type:varchar(36);not null;uniqueIndex:idx_applications_job_applicant,priority:1" json:"jobId"`
	ApplicantID string            `gorm:"type:varchar(36);not null;uniqueIndex:idx_applications_job_applicant,priority:2;index" json:"applicantId"`
	CoverLetter string            `gorm:"type:text;not null" json:"coverLetter"`
	ResumeURL   string            `gorm:"type:text;not null" json:"resumeUrl"`
	Status      ApplicationStatus `gorm:"type:varchar(32);not null;default:'applied';index" json:"status"`
	// ResumeStored marks ResumeURL as issued by the resume store for this
	// application, which makes it safe to release on delete.
	ResumeStored bool `gorm:"not null;default:false" json:"-"`

	Job *Job `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE" json:"job,omitempty"`
	// Applicants are identified by the token subject and may have no local
	// user row, so the join is soft.
	Applicant *User `gorm:"foreignKey:ApplicantID;constraint:-" json:"applicant,omitempty"`
}

// BeforeCreate assigns the id and starts new applications in the applied state.
func (a *Application) BeforeCreate(tx *gorm.DB) error {
	if err := a.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if a.Status == "" {
		a.Status = StatusApplied
	}
	return nil
}
