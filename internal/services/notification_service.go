package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/talenthub/internal/models"
)

// Default paging for notification listings.
const (
	DefaultNotificationLimit = 20
	MaxNotificationLimit     = 100
)

// NotificationDTO represents the API-friendly notification payload.
type NotificationDTO struct {
	ID            string                  `json:"id"`
	RecipientID   string                  `json:"recipientId"`
	Type          models.NotificationType `json:"type"`
	Title         string                  `json:"title"`
	Message       string                  `json:"message"`
	JobID         *string                 `json:"jobId,omitempty"`
	ApplicationID *string                 `json:"applicationId,omitempty"`
	IsRead        bool                    `json:"isRead"`
	Metadata      map[string]any          `json:"metadata,omitempty"`
	CreatedAt     time.Time               `json:"createdAt"`
}

// CreateNotificationInput defines attributes required to persist a notification.
// RecipientID must already be normalised.
type CreateNotificationInput struct {
	RecipientID   string
	Type          models.NotificationType
	Title         string
	Message       string
	JobID         string
	ApplicationID string
	Metadata      map[string]any
}

// ListNotificationsInput defines filters for querying a recipient's notifications.
type ListNotificationsInput struct {
	RecipientID string
	Page        int
	Limit       int
	UnreadOnly  bool
}

// NotificationPage is one page of notifications plus the recipient's unread total.
type NotificationPage struct {
	Items       []NotificationDTO `json:"notifications"`
	Page        int               `json:"page"`
	Limit       int               `json:"limit"`
	Total       int64             `json:"total"`
	UnreadCount int64             `json:"unreadCount"`
}

// NotificationServiceOption customises a NotificationService.
type NotificationServiceOption func(*NotificationService)

// WithNotificationLimits overrides the default and maximum page size.
func WithNotificationLimits(defaultLimit, maxLimit int) NotificationServiceOption {
	return func(s *NotificationService) {
		if defaultLimit > 0 {
			s.defaultLimit = defaultLimit
		}
		if maxLimit > 0 {
			s.maxLimit = maxLimit
		}
	}
}

// NotificationService is the durable notification store. Every operation that
// takes a notification id also filters by recipient.
type NotificationService struct {
	db           *gorm.DB
	defaultLimit int
	maxLimit     int
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(db *gorm.DB, opts ...NotificationServiceOption) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	svc := &NotificationService{
		db:           db,
		defaultLimit: DefaultNotificationLimit,
		maxLimit:     MaxNotificationLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	if svc.defaultLimit > svc.maxLimit {
		svc.defaultLimit = svc.maxLimit
	}
	return svc, nil
}

// Create persists a notification for a recipient.
func (s *NotificationService) Create(ctx context.Context, input CreateNotificationInput) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)
	recipientID := strings.TrimSpace(input.RecipientID)
	if recipientID == "" {
		return nil, errors.New("notification service: recipient id is required")
	}
	if !input.Type.Valid() {
		return nil, fmt.Errorf("notification service: unknown type %q", input.Type)
	}
	title := strings.TrimSpace(input.Title)
	message := strings.TrimSpace(input.Message)
	if title == "" || message == "" {
		return nil, errors.New("notification service: title and message are required")
	}

	notification := models.Notification{
		RecipientID:   recipientID,
		Type:          input.Type,
		Title:         title,
		Message:       message,
		JobID:         stringPtr(input.JobID),
		ApplicationID: stringPtr(input.ApplicationID),
	}

	if input.Metadata != nil {
		data, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("notification service: marshal metadata: %w", err)
		}
		notification.Metadata = datatypes.JSON(data)
	}

	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		return nil, fmt.Errorf("notification service: create notification: %w", err)
	}

	dto := mapNotification(notification)
	return &dto, nil
}

// ListForRecipient returns one page of notifications, newest first.
func (s *NotificationService) ListForRecipient(ctx context.Context, input ListNotificationsInput) (*NotificationPage, error) {
	ctx = ensureContext(ctx)
	recipientID := strings.TrimSpace(input.RecipientID)
	if recipientID == "" {
		return nil, errors.New("notification service: recipient id is required")
	}

	page, limit := clampPage(input.Page, input.Limit, s.defaultLimit, s.maxLimit)

	query := s.db.WithContext(ctx).Model(&models.Notification{}).Where("recipient_id = ?", recipientID)
	if input.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("notification service: count notifications: %w", err)
	}

	var rows []models.Notification
	if err := query.Session(&gorm.Session{}).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list notifications: %w", err)
	}

	unread, err := s.CountUnread(ctx, recipientID)
	if err != nil {
		return nil, err
	}

	return &NotificationPage{
		Items:       lo.Map(rows, func(row models.Notification, _ int) NotificationDTO { return mapNotification(row) }),
		Page:        page,
		Limit:       limit,
		Total:       total,
		UnreadCount: unread,
	}, nil
}

// CountUnread returns the number of unread notifications for a recipient.
func (s *NotificationService) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	ctx = ensureContext(ctx)
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", strings.TrimSpace(recipientID), false).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("notification service: count unread: %w", err)
	}
	return count, nil
}

// MarkRead sets the read flag on one of the recipient's notifications. A
// notification owned by someone else is reported as not found.
func (s *NotificationService) MarkRead(ctx context.Context, recipientID, notificationID string) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)
	notification, err := s.loadOwned(ctx, recipientID, notificationID)
	if err != nil {
		return nil, err
	}

	if !notification.IsRead {
		if err := s.db.WithContext(ctx).
			Model(&models.Notification{}).
			Where("id = ? AND recipient_id = ?", notification.ID, notification.RecipientID).
			Update("is_read", true).Error; err != nil {
			return nil, fmt.Errorf("notification service: mark read: %w", err)
		}
		notification.IsRead = true
	}

	dto := mapNotification(*notification)
	return &dto, nil
}

// MarkAllRead marks every unread notification of the recipient as read and
// returns how many rows changed. Repeating it is a no-op.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	ctx = ensureContext(ctx)
	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", strings.TrimSpace(recipientID), false).
		Update("is_read", true)
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: mark all read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Delete removes a notification owned by the recipient.
func (s *NotificationService) Delete(ctx context.Context, recipientID, notificationID string) error {
	ctx = ensureContext(ctx)
	result := s.db.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", strings.TrimSpace(notificationID), strings.TrimSpace(recipientID)).
		Delete(&models.Notification{})
	if result.Error != nil {
		return fmt.Errorf("notification service: delete notification: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// PurgeReadOlderThan deletes read notifications created before cutoff.
func (s *NotificationService) PurgeReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	result := s.db.WithContext(ctx).
		Where("is_read = ? AND created_at < ?", true, cutoff).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: purge read notifications: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *NotificationService) loadOwned(ctx context.Context, recipientID, notificationID string) (*models.Notification, error) {
	var notification models.Notification
	if err := s.db.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", strings.TrimSpace(notificationID), strings.TrimSpace(recipientID)).
		First(&notification).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("notification service: load notification: %w", err)
	}
	return &notification, nil
}

func mapNotification(row models.Notification) NotificationDTO {
	return NotificationDTO{
		ID:            row.ID,
		RecipientID:   row.RecipientID,
		Type:          row.Type,
		Title:         row.Title,
		Message:       row.Message,
		JobID:         row.JobID,
		ApplicationID: row.ApplicationID,
		IsRead:        row.IsRead,
		Metadata:      decodeJSON(row.Metadata),
		CreatedAt:     row.CreatedAt,
	}
}

func decodeJSON(data datatypes.JSON) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
