package services

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/charlesng35/talenthub/internal/models"
)

// TransitionPolicy decides whether an application may move between two statuses.
type TransitionPolicy interface {
	Allow(from, to models.ApplicationStatus) bool
}

// PermissiveTransitions accepts any enum member from any other, including a
// repeat of the current status.
type PermissiveTransitions struct{}

// Allow implements TransitionPolicy.
func (PermissiveTransitions) Allow(from, to models.ApplicationStatus) bool {
	return to.Valid()
}

// StrictTransitions only accepts the edges of the hiring pipeline.
type StrictTransitions struct{}

var strictEdges = map[models.ApplicationStatus][]models.ApplicationStatus{
	models.StatusApplied:     {models.StatusShortlisted, models.StatusRejected},
	models.StatusShortlisted: {models.StatusHired, models.StatusRejected},
	models.StatusRejected:    {models.StatusApplied},
}

// Allow implements TransitionPolicy.
func (StrictTransitions) Allow(from, to models.ApplicationStatus) bool {
	return lo.Contains(strictEdges[from], to)
}

// NewTransitionPolicy returns the strict graph when strict is set and the
// permissive one otherwise.
func NewTransitionPolicy(strict bool) TransitionPolicy {
	if strict {
		return StrictTransitions{}
	}
	return PermissiveTransitions{}
}

// NotificationTemplate is the rendered title and message for one notification.
type NotificationTemplate struct {
	Type    models.NotificationType
	Title   string
	Message string
}

// StatusChangeTemplate renders the applicant notification for a new status.
// Shortlisted, rejected and hired have dedicated types; anything else falls
// back to application_status_change.
func StatusChangeTemplate(status models.ApplicationStatus, jobTitle string) NotificationTemplate {
	switch status {
	case models.StatusShortlisted:
		return NotificationTemplate{
			Type:    models.NotificationShortlisted,
			Title:   "Application Shortlisted!",
			Message: fmt.Sprintf("Congratulations! You've been shortlisted for \"%s\"", jobTitle),
		}
	case models.StatusRejected:
		return NotificationTemplate{
			Type:    models.NotificationRejected,
			Title:   "Application Update",
			Message: fmt.Sprintf("Your application for \"%s\" was not selected", jobTitle),
		}
	case models.StatusHired:
		return NotificationTemplate{
			Type:    models.NotificationHired,
			Title:   "Congratulations! You're Hired!",
			Message: fmt.Sprintf("Congratulations! You've been hired for \"%s\"", jobTitle),
		}
	default:
		return NotificationTemplate{
			Type:    models.NotificationStatusChange,
			Title:   "Application Status Updated",
			Message: fmt.Sprintf("Your application for \"%s\" has been %s", jobTitle, status),
		}
	}
}

// NewApplicationTemplate renders the employer notification for a new application.
func NewApplicationTemplate(jobTitle string) NotificationTemplate {
	return NotificationTemplate{
		Type:    models.NotificationNewApplication,
		Title:   "New Application Received",
		Message: fmt.Sprintf("New application received for your job posting \"%s\"", jobTitle),
	}
}
