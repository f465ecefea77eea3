package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/talenthub/internal/auth"
	"github.com/charlesng35/talenthub/internal/database/testutil"
	"github.com/charlesng35/talenthub/internal/models"
)

type pushedEvent struct {
	UserID  string
	Event   string
	Payload LivePayload
}

type recordingPusher struct {
	mu        sync.Mutex
	connected map[string]bool
	events    []pushedEvent
	err       error
}

func newRecordingPusher(connected ...string) *recordingPusher {
	p := &recordingPusher{connected: map[string]bool{}}
	for _, id := range connected {
		p.connected[id] = true
	}
	return p
}

func (p *recordingPusher) EmitToUser(userID, event string, payload any) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	live, _ := payload.(LivePayload)
	p.events = append(p.events, pushedEvent{UserID: userID, Event: event, Payload: live})
	if p.err != nil {
		return 0, p.err
	}
	if p.connected[userID] {
		return 1, nil
	}
	return 0, nil
}

func (p *recordingPusher) eventsFor(userID string) []pushedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []pushedEvent
	for _, evt := range p.events {
		if evt.UserID == userID {
			out = append(out, evt)
		}
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return p.err
}

type failingDispatcher struct {
	calls int
}

func (d *failingDispatcher) Dispatch(context.Context, Notice) (*DispatchResult, error) {
	d.calls++
	return nil, errors.New("dispatcher offline")
}

type fakeResumeRemover struct {
	urls []string
	err  error
}

func (r *fakeResumeRemover) Delete(_ context.Context, url string) error {
	r.urls = append(r.urls, url)
	return r.err
}

type fixture struct {
	db *gorm.DB

	admin          models.User
	employer       models.User
	otherEmployer  models.User
	applicant      models.User
	otherApplicant models.User
	job            models.Job

	live       *recordingPusher
	publisher  *recordingPublisher
	store      *NotificationService
	dispatcher *NotificationDispatcher
	jobs       *GormJobDirectory
	apps       *ApplicationService
}

func newFixture(t *testing.T, opts ...ApplicationServiceOption) *fixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	f := &fixture{db: db}

	f.admin = mustCreateUser(t, db, "Ada Admin", models.RoleAdmin)
	f.employer = mustCreateUser(t, db, "Erin Employer", models.RoleEmployer)
	f.otherEmployer = mustCreateUser(t, db, "Frank Employer", models.RoleEmployer)
	f.applicant = mustCreateUser(t, db, "Alex Applicant", models.RoleApplicant)
	f.otherApplicant = mustCreateUser(t, db, "Bea Applicant", models.RoleApplicant)
	f.job = mustCreateJob(t, db, f.employer.ID, "Senior Go Engineer")

	f.live = newRecordingPusher(f.applicant.ID, f.employer.ID)
	f.publisher = &recordingPublisher{}

	var err error
	f.store, err = NewNotificationService(db)
	require.NoError(t, err)
	f.dispatcher, err = NewNotificationDispatcher(f.store, WithLivePusher(f.live), WithEventPublisher(f.publisher))
	require.NoError(t, err)
	f.jobs, err = NewGormJobDirectory(db)
	require.NoError(t, err)
	f.apps, err = NewApplicationService(db, f.jobs, f.dispatcher, opts...)
	require.NoError(t, err)

	return f
}

func mustCreateUser(t *testing.T, db *gorm.DB, name, role string) models.User {
	t.Helper()
	user := models.User{
		BaseModel: models.BaseModel{ID: uuid.NewString()},
		Name:      name,
		Email:     strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		Role:      role,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func mustCreateJob(t *testing.T, db *gorm.DB, ownerID, title string) models.Job {
	t.Helper()
	job := models.Job{
		BaseModel: models.BaseModel{ID: uuid.NewString()},
		Title:     title,
		Company:   "Acme Robotics",
		CreatedBy: ownerID,
	}
	require.NoError(t, db.Create(&job).Error)
	return job
}

func principalOf(user models.User) auth.Principal {
	return auth.Principal{ID: user.ID, Role: user.Role}
}

func (f *fixture) mustApply(t *testing.T) *ApplicationDTO {
	t.Helper()
	app, err := f.apps.Apply(context.Background(), f.applicant.ID, ApplyInput{
		JobID:       f.job.ID,
		CoverLetter: "I have built and operated hiring platforms for six years.",
		ResumeURL:   "https://files.example.com/resumes/alex.pdf",
	})
	require.NoError(t, err)
	return app
}

func (f *fixture) notificationsFor(t *testing.T, recipientID string) []models.Notification {
	t.Helper()
	var rows []models.Notification
	require.NoError(t, f.db.Where("recipient_id = ?", recipientID).Order("created_at ASC").Find(&rows).Error)
	return rows
}
