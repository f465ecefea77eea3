package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/talenthub/internal/models"
	"github.com/charlesng35/talenthub/pkg/logger"
	"github.com/charlesng35/talenthub/pkg/metrics"
)

// LivePusher delivers fire-and-forget events to a user's live connections and
// reports how many connections accepted the event.
type LivePusher interface {
	EmitToUser(userID, event string, payload any) (int, error)
}

// EventPublisher forwards durable notifications to an external broker.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data any) error
}

// EventNotificationCreated is the broker event type for stored notifications.
const EventNotificationCreated = "notification.created"

// DefaultPublishTimeout bounds how long a dispatch waits on the broker.
const DefaultPublishTimeout = 2 * time.Second

// ApplicationSummary is embedded in new_application live payloads.
type ApplicationSummary struct {
	ID          string                   `json:"id"`
	ApplicantID string                   `json:"applicantId"`
	Status      models.ApplicationStatus `json:"status"`
	CreatedAt   time.Time                `json:"createdAt"`
}

// Notice describes one domain event to turn into a notification.
type Notice struct {
	Recipient     RecipientRef
	Template      NotificationTemplate
	JobID         string
	JobTitle      string
	ApplicationID string
	// Application is only sent live, with new_application notices.
	Application *ApplicationSummary
	// Status is set for status-change notices.
	Status   models.ApplicationStatus
	Metadata map[string]any
}

// LivePayload is the body of every live notification event.
type LivePayload struct {
	Type           models.NotificationType  `json:"type"`
	NotificationID string                   `json:"notificationId,omitempty"`
	JobID          string                   `json:"jobId,omitempty"`
	JobTitle       string                   `json:"jobTitle,omitempty"`
	Status         models.ApplicationStatus `json:"status,omitempty"`
	Title          string                   `json:"title"`
	Message        string                   `json:"message"`
	Timestamp      time.Time                `json:"timestamp"`
	Application    *ApplicationSummary      `json:"application,omitempty"`
}

// DispatchResult reports what a Dispatch call achieved.
type DispatchResult struct {
	Notification *NotificationDTO
	Delivered    int
}

// Dispatcher turns a notice into a stored notification and a live push.
type Dispatcher interface {
	Dispatch(ctx context.Context, notice Notice) (*DispatchResult, error)
}

// DispatcherOption customises a NotificationDispatcher.
type DispatcherOption func(*NotificationDispatcher)

// WithLivePusher attaches the live channel.
func WithLivePusher(pusher LivePusher) DispatcherOption {
	return func(d *NotificationDispatcher) {
		d.live = pusher
	}
}

// WithEventPublisher attaches a broker publisher.
func WithEventPublisher(publisher EventPublisher) DispatcherOption {
	return func(d *NotificationDispatcher) {
		d.events = publisher
	}
}

// WithPublishTimeout bounds each broker publish. Non-positive values keep the default.
func WithPublishTimeout(timeout time.Duration) DispatcherOption {
	return func(d *NotificationDispatcher) {
		if timeout > 0 {
			d.publishTimeout = timeout
		}
	}
}

// WithDispatcherClock overrides the timestamp source.
func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(d *NotificationDispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// NotificationDispatcher writes a notification to the store and then pushes it
// to the recipient's live connections. The push and the broker publish are
// best effort; their failures are logged and never returned.
type NotificationDispatcher struct {
	store          *NotificationService
	live           LivePusher
	events         EventPublisher
	publishTimeout time.Duration
	now            func() time.Time
	log            *zap.Logger
}

// NewNotificationDispatcher constructs a dispatcher around the notification store.
func NewNotificationDispatcher(store *NotificationService, opts ...DispatcherOption) (*NotificationDispatcher, error) {
	if store == nil {
		return nil, errors.New("notification dispatcher: store is required")
	}
	d := &NotificationDispatcher{
		store:          store,
		publishTimeout: DefaultPublishTimeout,
		now:            time.Now,
		log:            logger.WithModule("dispatcher"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d, nil
}

// Dispatch normalises the recipient, stores the notification and pushes it
// live. It returns ErrInvalidRecipient for malformed recipients and the store
// error when the durable write fails; the live push still happens in that case
// so a connected client sees the event.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, notice Notice) (*DispatchResult, error) {
	ctx = ensureContext(ctx)
	kind := string(notice.Template.Type)

	recipientID, err := notice.Recipient.Normalize()
	if err != nil {
		metrics.NotificationsDispatched.WithLabelValues(kind, "invalid_recipient").Inc()
		d.log.Warn("notification dropped",
			zap.String("recipient", notice.Recipient.String()),
			zap.String("type", kind),
			zap.Error(err),
		)
		return nil, err
	}

	metadata := d.metadataFor(notice)
	stored, storeErr := d.store.Create(ctx, CreateNotificationInput{
		RecipientID:   recipientID,
		Type:          notice.Template.Type,
		Title:         notice.Template.Title,
		Message:       notice.Template.Message,
		JobID:         notice.JobID,
		ApplicationID: notice.applicationID(),
		Metadata:      metadata,
	})
	if storeErr != nil {
		metrics.NotificationsDispatched.WithLabelValues(kind, "store_failed").Inc()
		d.log.Error("notification store write failed; event only reaches live connections",
			zap.String("recipient", recipientID),
			zap.String("type", kind),
			zap.Error(storeErr),
		)
	} else {
		metrics.NotificationsDispatched.WithLabelValues(kind, "stored").Inc()
	}

	payload := LivePayload{
		Type:        notice.Template.Type,
		JobID:       notice.JobID,
		JobTitle:    notice.JobTitle,
		Status:      notice.Status,
		Title:       notice.Template.Title,
		Message:     notice.Template.Message,
		Timestamp:   d.now().UTC(),
		Application: notice.Application,
	}
	if stored != nil {
		payload.NotificationID = stored.ID
		payload.Timestamp = stored.CreatedAt.UTC()
	}

	delivered := d.push(recipientID, payload)

	if stored != nil {
		d.publish(ctx, stored)
	}

	if storeErr != nil {
		return &DispatchResult{Delivered: delivered}, storeErr
	}
	return &DispatchResult{Notification: stored, Delivered: delivered}, nil
}

func (d *NotificationDispatcher) push(recipientID string, payload LivePayload) int {
	if d.live == nil {
		return 0
	}
	delivered, err := d.live.EmitToUser(recipientID, string(payload.Type), payload)
	if err != nil {
		d.log.Warn("live push degraded",
			zap.String("recipient", recipientID),
			zap.String("type", string(payload.Type)),
			zap.Int("delivered", delivered),
			zap.Error(fmt.Errorf("%w: %v", ErrDeliveryFailure, err)),
		)
	}
	return delivered
}

func (d *NotificationDispatcher) publish(ctx context.Context, notification *NotificationDTO) {
	if d.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, d.publishTimeout)
	defer cancel()
	if err := d.events.Publish(ctx, EventNotificationCreated, notification); err != nil {
		d.log.Warn("notification event publish failed",
			zap.String("notification", notification.ID),
			zap.Error(err),
		)
	}
}

func (d *NotificationDispatcher) metadataFor(notice Notice) map[string]any {
	metadata := make(map[string]any, len(notice.Metadata)+2)
	for k, v := range notice.Metadata {
		metadata[k] = v
	}
	if notice.JobTitle != "" {
		metadata["jobTitle"] = notice.JobTitle
	}
	if notice.Status != "" {
		metadata["status"] = string(notice.Status)
	}
	if len(metadata) == 0 {
		return nil
	}
	return metadata
}

func (n Notice) applicationID() string {
	if n.ApplicationID != "" || n.Application == nil {
		return n.ApplicationID
	}
	return n.Application.ID
}
