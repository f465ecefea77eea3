package models

import "gorm.io/datatypes"

// NotificationType classifies a notification.
type NotificationType string

// Notification types.
const (
	NotificationNewApplication       NotificationType = "new_application"
	NotificationStatusChange         NotificationType = "application_status_change"
	NotificationShortlisted          NotificationType = "shortlisted"
	NotificationRejected             NotificationType = "rejected"
	NotificationHired                NotificationType = "hired"
	NotificationJobPosted            NotificationType = "job_posted"
	NotificationApplicationWithdrawn NotificationType = "application_withdrawn"
)

// NotificationTypes lists every accepted notification type.
var NotificationTypes = []NotificationType{
	NotificationNewApplication,
	NotificationStatusChange,
	NotificationShortlisted,
	NotificationRejected,
	NotificationHired,
	NotificationJobPosted,
	NotificationApplicationWithdrawn,
}

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	for _, known := range NotificationTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Notification is the durable per-recipient record of a domain event. JobID and
// ApplicationID are plain references so that deleting an application keeps its
// notification history.
type Notification struct {
	BaseModel

	RecipientID   string           `gorm:"type:varchar(36);not null;index:idx_notifications_recipient_read,priority:1" json:"recipientId"`
	Type          NotificationType `gorm:"type:varchar(64);not null" json:"type"`
	Title         string           `gorm:"type:varchar(255);not null" json:"title"`
	Message       string           `gorm:"type:text;not null" json:"message"`
	JobID         *string          `gorm:"type:varchar(36);index" json:"jobId,omitempty"`
	ApplicationID *string          `gorm:"type:varchar(36);index" json:"applicationId,omitempty"`
	IsRead        bool             `gorm:"not null;default:false;index:idx_notifications_recipient_read,priority:2" json:"isRead"`
	Metadata      datatypes.JSON   `json:"metadata"`
}
