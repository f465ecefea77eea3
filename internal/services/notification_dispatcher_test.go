package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/charlesng35/talenthub/internal/auth"
	"github.com/charlesng35/talenthub/internal/database/testutil"
	"github.com/charlesng35/talenthub/internal/models"
	"github.com/charlesng35/talenthub/pkg/logger"
)

func newTestDispatcher(t *testing.T, opts ...DispatcherOption) (*NotificationDispatcher, *NotificationService) {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store, err := NewNotificationService(db)
	require.NoError(t, err)
	dispatcher, err := NewNotificationDispatcher(store, opts...)
	require.NoError(t, err)
	return dispatcher, store
}

func TestDispatchStoresThenPushes(t *testing.T) {
	recipient := uuid.NewString()
	live := newRecordingPusher(recipient)
	publisher := &recordingPublisher{}
	dispatcher, store := newTestDispatcher(t, WithLivePusher(live), WithEventPublisher(publisher))

	result, err := dispatcher.Dispatch(context.Background(), Notice{
		Recipient:     RecipientByID(recipient),
		Template:      StatusChangeTemplate(models.StatusHired, "Data Engineer"),
		JobID:         "job-1",
		JobTitle:      "Data Engineer",
		ApplicationID: "app-1",
		Status:        models.StatusHired,
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Delivered)
	require.NotNil(t, result.Notification)
	require.Equal(t, "Data Engineer", result.Notification.Metadata["jobTitle"])
	require.Equal(t, "hired", result.Notification.Metadata["status"])

	page, err := store.ListForRecipient(context.Background(), ListNotificationsInput{RecipientID: recipient})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "app-1", *page.Items[0].ApplicationID)

	events := live.eventsFor(recipient)
	require.Len(t, events, 1)
	require.Equal(t, "hired", events[0].Event)
	require.Equal(t, result.Notification.ID, events[0].Payload.NotificationID)
	require.Equal(t, `Congratulations! You've been hired for "Data Engineer"`, events[0].Payload.Message)
	require.False(t, events[0].Payload.Timestamp.IsZero())

	require.Equal(t, []string{EventNotificationCreated}, publisher.events)
}

func TestDispatchAcceptsRecipientObjects(t *testing.T) {
	id := uuid.New()
	live := newRecordingPusher()
	dispatcher, _ := newTestDispatcher(t, WithLivePusher(live))

	principal := auth.Principal{ID: strings.ToUpper(id.String()), Role: models.RoleApplicant}
	result, err := dispatcher.Dispatch(context.Background(), Notice{
		Recipient: RecipientOf(principal),
		Template:  NewApplicationTemplate("QA Lead"),
	})
	require.NoError(t, err)
	require.Equal(t, id.String(), result.Notification.RecipientID)
	require.Zero(t, result.Delivered)

	user := &models.User{BaseModel: models.BaseModel{ID: id.String()}}
	result, err = dispatcher.Dispatch(context.Background(), Notice{
		Recipient: RecipientOf(user),
		Template:  NewApplicationTemplate("QA Lead"),
	})
	require.NoError(t, err)
	require.Equal(t, id.String(), result.Notification.RecipientID)
}

func TestDispatchRejectsMalformedRecipient(t *testing.T) {
	core, recorded := observer.New(zap.WarnLevel)
	t.Cleanup(logger.Replace(zap.New(core)))

	live := newRecordingPusher()
	dispatcher, store := newTestDispatcher(t, WithLivePusher(live))

	for _, ref := range []RecipientRef{
		RecipientByID(""),
		RecipientByID("[object Object]"),
		RecipientOf((*models.User)(nil)),
	} {
		_, err := dispatcher.Dispatch(context.Background(), Notice{
			Recipient: ref,
			Template:  StatusChangeTemplate(models.StatusRejected, "Designer"),
		})
		require.ErrorIs(t, err, ErrInvalidRecipient)
	}

	var count int64
	require.NoError(t, store.db.Model(&models.Notification{}).Count(&count).Error)
	require.Zero(t, count)
	require.Empty(t, live.events)
	require.Equal(t, 3, recorded.FilterMessage("notification dropped").Len())
}

func TestDispatchSwallowsLiveAndBrokerFailures(t *testing.T) {
	core, recorded := observer.New(zap.WarnLevel)
	t.Cleanup(logger.Replace(zap.New(core)))

	recipient := uuid.NewString()
	live := newRecordingPusher(recipient)
	live.err = errors.New("send buffer full")
	publisher := &recordingPublisher{err: errors.New("broker down")}
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	dispatcher, _ := newTestDispatcher(t,
		WithLivePusher(live),
		WithEventPublisher(publisher),
		WithDispatcherClock(func() time.Time { return fixed }),
	)

	result, err := dispatcher.Dispatch(context.Background(), Notice{
		Recipient: RecipientByID(recipient),
		Template:  StatusChangeTemplate(models.StatusShortlisted, "SRE"),
	})
	require.NoError(t, err)
	require.NotNil(t, result.Notification)

	entries := recorded.FilterMessage("live push degraded").All()
	require.Len(t, entries, 1)
	require.Contains(t, entries[0].ContextMap()["error"], ErrDeliveryFailure.Error())
	require.Equal(t, 1, recorded.FilterMessage("notification event publish failed").Len())
}

type stalledPublisher struct {
	hadDeadline bool
}

func (p *stalledPublisher) Publish(ctx context.Context, _ string, _ any) error {
	_, p.hadDeadline = ctx.Deadline()
	<-ctx.Done()
	return ctx.Err()
}

func TestDispatchBoundsSlowBroker(t *testing.T) {
	recipient := uuid.NewString()
	publisher := &stalledPublisher{}
	dispatcher, _ := newTestDispatcher(t,
		WithEventPublisher(publisher),
		WithPublishTimeout(20*time.Millisecond),
	)

	start := time.Now()
	result, err := dispatcher.Dispatch(context.Background(), Notice{
		Recipient: RecipientByID(recipient),
		Template:  StatusChangeTemplate(models.StatusRejected, "QA Lead"),
	})
	require.NoError(t, err)
	require.NotNil(t, result.Notification)
	require.True(t, publisher.hadDeadline)
	require.Less(t, time.Since(start), time.Second)
}

func TestNewNotificationDispatcherRequiresStore(t *testing.T) {
	_, err := NewNotificationDispatcher(nil)
	require.Error(t, err)
}
