package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/charlesng35/talenthub/internal/models"
	"github.com/charlesng35/talenthub/pkg/logger"
)

func TestApplyCreatesApplicationAndRejectsDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	input := ApplyInput{
		JobID:       f.job.ID,
		CoverLetter: strings.Repeat("I would love to help build reliable hiring software. ", 3),
		ResumeURL:   "https://files.example.com/resumes/alex.pdf",
	}
	require.Greater(t, len(input.CoverLetter), 100)

	app, err := f.apps.Apply(ctx, f.applicant.ID, input)
	require.NoError(t, err)
	require.Equal(t, models.StatusApplied, app.Status)
	require.Equal(t, f.job.ID, app.JobID)
	require.Equal(t, f.applicant.ID, app.ApplicantID)
	require.NotNil(t, app.Job)
	require.Equal(t, "Senior Go Engineer", app.Job.Title)

	_, err = f.apps.Apply(ctx, f.applicant.ID, input)
	require.ErrorIs(t, err, ErrDuplicateApplication)
	require.Equal(t, "You already applied to this job", err.Error())

	var count int64
	require.NoError(t, f.db.Model(&models.Application{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestApplyNotifiesJobOwner(t *testing.T) {
	f := newFixture(t)
	app := f.mustApply(t)

	rows := f.notificationsFor(t, f.employer.ID)
	require.Len(t, rows, 1)
	require.Equal(t, models.NotificationNewApplication, rows[0].Type)
	require.Equal(t, "New Application Received", rows[0].Title)
	require.Equal(t, `New application received for your job posting "Senior Go Engineer"`, rows[0].Message)
	require.NotNil(t, rows[0].ApplicationID)
	require.Equal(t, app.ID, *rows[0].ApplicationID)

	events := f.live.eventsFor(f.employer.ID)
	require.Len(t, events, 1)
	require.Equal(t, "new_application", events[0].Event)
	require.NotNil(t, events[0].Payload.Application)
	require.Equal(t, app.ID, events[0].Payload.Application.ID)
	require.Equal(t, rows[0].ID, events[0].Payload.NotificationID)

	require.Empty(t, f.notificationsFor(t, f.applicant.ID))
}

func TestApplyValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.apps.Apply(ctx, f.applicant.ID, ApplyInput{JobID: f.job.ID, ResumeURL: "https://x.example.com/cv.pdf"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.apps.Apply(ctx, f.applicant.ID, ApplyInput{JobID: f.job.ID, CoverLetter: "hello", ResumeURL: "   "})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.apps.Apply(ctx, f.applicant.ID, ApplyInput{JobID: uuid.NewString(), CoverLetter: "hello", ResumeURL: "https://x.example.com/cv.pdf"})
	require.ErrorIs(t, err, ErrJobNotFound)
}

func TestConcurrentApplyYieldsSingleSuccess(t *testing.T) {
	f := newFixture(t)

	const attempts = 8
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		successes  int
		duplicates int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.apps.Apply(context.Background(), f.applicant.ID, ApplyInput{
				JobID:       f.job.ID,
				CoverLetter: "Racing to apply first.",
				ResumeURL:   "https://files.example.com/resumes/alex.pdf",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrDuplicateApplication):
				duplicates++
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes)
	require.Equal(t, attempts-1, duplicates)
}

func TestUpdateStatusShortlistNotifiesApplicant(t *testing.T) {
	f := newFixture(t)
	app := f.mustApply(t)

	updated, err := f.apps.UpdateStatus(context.Background(), principalOf(f.employer), app.ID, "shortlisted")
	require.NoError(t, err)
	require.Equal(t, models.StatusShortlisted, updated.Status)

	var stored models.Application
	require.NoError(t, f.db.First(&stored, "id = ?", app.ID).Error)
	require.Equal(t, models.StatusShortlisted, stored.Status)

	rows := f.notificationsFor(t, f.applicant.ID)
	require.Len(t, rows, 1)
	require.Equal(t, models.NotificationShortlisted, rows[0].Type)
	require.Equal(t, "Application Shortlisted!", rows[0].Title)
	require.Equal(t, `Congratulations! You've been shortlisted for "Senior Go Engineer"`, rows[0].Message)
	require.False(t, rows[0].IsRead)

	events := f.live.eventsFor(f.applicant.ID)
	require.Len(t, events, 1)
	require.Equal(t, "shortlisted", events[0].Event)
	require.Equal(t, "Senior Go Engineer", events[0].Payload.JobTitle)
	require.Equal(t, f.job.ID, events[0].Payload.JobID)
	require.Equal(t, models.StatusShortlisted, events[0].Payload.Status)
	require.Nil(t, events[0].Payload.Application)
}

func TestUpdateStatusForbiddenForThirdParty(t *testing.T) {
	f := newFixture(t)
	app := f.mustApply(t)

	_, err := f.apps.UpdateStatus(context.Background(), principalOf(f.otherEmployer), app.ID, "hired")
	require.ErrorIs(t, err, ErrForbidden)
	require.Equal(t, "Permission denied", err.Error())

	var stored models.Application
	require.NoError(t, f.db.First(&stored, "id = ?", app.ID).Error)
	require.Equal(t, models.StatusApplied, stored.Status)
	require.Empty(t, f.notificationsFor(t, f.applicant.ID))
}

func TestUpdateStatusAuthorizationMatrix(t *testing.T) {
	f := newFixture(t)
	app := f.mustApply(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		actor   models.User
		allowed bool
	}{
		{name: "job owner", actor: f.employer, allowed: true},
		{name: "admin", actor: f.admin, allowed: true},
		{name: "other employer", actor: f.otherEmployer, allowed: false},
		{name: "the applicant", actor: f.applicant, allowed: false},
		{name: "other applicant", actor: f.otherApplicant, allowed: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.apps.UpdateStatus(ctx, principalOf(tc.actor), app.ID, "rejected")
			if tc.allowed {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrForbidden)
			}
		})
	}
}

func TestUpdateStatusReachesEveryStatusFromEveryStatus(t *testing.T) {
	f := newFixture(t)
	app := f.mustApply(t)
	ctx := context.Background()

	expectedType := map[models.ApplicationStatus]models.NotificationType{
		models.StatusApplied:     models.NotificationStatusChange,
		models.StatusShortlisted: models.NotificationShortlisted,
		models.StatusRejected:    models.NotificationRejected,
		models.StatusHired:       models.NotificationHired,
	}

	produced := 0
	for _, from := range models.ApplicationStatuses {
		for _, to := range models.ApplicationStatuses {
			require.NoError(t, f.db.Model(&models.Application{}).Where("id = ?", app.ID).Update("status", from).Error)

			updated, err := f.apps.UpdateStatus(ctx, principalOf(f.employer), app.ID, string(to))
			require.NoError(t, err, "%s -> %s", from, to)
			require.Equal(t, to, updated.Status)
			produced++

			rows := f.notificationsFor(t, f.applicant.ID)
			require.Len(t, rows, produced, "exactly one notification per transition")

			events := f.live.eventsFor(f.applicant.ID)
			require.Len(t, events, produced)
			require.Equal(t, expectedType[to], events[len(events)-1].Payload.Type)
			require.Equal(t, string(expectedType[to]), events[len(events)-1].Event)
		}
	}
}

func TestUpdateStatusGenericTemplateForReconsideration(t *testing.T) {
	f := newFixture(t)
	app := f.mustApply(t)
	ctx := context.Background()

	_, err := f.apps.UpdateStatus(ctx, principalOf(f.admin), app.ID, "rejected")
	require.NoError(t, err)
	_, err = f.apps.UpdateStatus(ctx, principalOf(f.admin), app.ID, "applied")
	require.NoError(t, err)

	var generic []models.Notification
	require.NoError(t, f.db.Where("recipient_id = ? AND type = ?", f.applicant.ID, models.NotificationStatusChange).Find(&generic).Error)
	require.Len(t, generic, 1)
	require.Equal(t, "Application Status Updated", generic[0].Title)
	require.Equal(t, `Your application for "Senior Go Engineer" has been applied`, generic[0].Message)
	require.Len(t, f.notificationsFor(t, f.applicant.ID), 2)
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	app := f.mustApply(t)
	ctx := context.Background()

	_, err := f.apps.UpdateStatus(ctx, principalOf(f.employer), app.ID, "archived")
	require.ErrorIs(t, err, ErrInvalidStatus)
	require.ErrorIs(t, err, ErrValidation)

	var stored models.Application
	require.NoError(t, f.db.First(&stored, "id = ?", app.ID).Error)
	require.Equal(t, models.StatusApplied, stored.Status)
	require.Empty(t, f.notificationsFor(t, f.applicant.ID))

	_, err = f.apps.UpdateStatus(ctx, principalOf(f.otherEmployer), app.ID, "archived")
	require.ErrorIs(t, err, ErrForbidden, "authorization is checked before the status value")

	_, err = f.apps.UpdateStatus(ctx, principalOf(f.employer), uuid.NewString(), "hired")
	require.ErrorIs(t, err, ErrApplicationNotFound)
}

func TestUpdateStatusStrictTransitions(t *testing.T) {
	f := newFixture(t, WithTransitionPolicy(NewTransitionPolicy(true)))
	app := f.mustApply(t)
	ctx := context.Background()
	employer := principalOf(f.employer)

	_, err := f.apps.UpdateStatus(ctx, employer, app.ID, "hired")
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.apps.UpdateStatus(ctx, employer, app.ID, "shortlisted")
	require.NoError(t, err)
	_, err = f.apps.UpdateStatus(ctx, employer, app.ID, "hired")
	require.NoError(t, err)

	_, err = f.apps.UpdateStatus(ctx, employer, app.ID, "applied")
	require.ErrorIs(t, err, ErrInvalidTransition)

	require.Len(t, f.notificationsFor(t, f.applicant.ID), 2)
}

func TestUpdateStatusSurvivesDispatchFailure(t *testing.T) {
	f := newFixture(t)
	app := f.mustApply(t)

	dispatcher := &failingDispatcher{}
	svc, err := NewApplicationService(f.db, f.jobs, dispatcher)
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(context.Background(), principalOf(f.employer), app.ID, "hired")
	require.NoError(t, err)
	require.Equal(t, models.StatusHired, updated.Status)
	require.Equal(t, 1, dispatcher.calls)

	var stored models.Application
	require.NoError(t, f.db.First(&stored, "id = ?", app.ID).Error)
	require.Equal(t, models.StatusHired, stored.Status)
}

func TestUpdateStatusInvalidRecipientIsLoggedNotReturned(t *testing.T) {
	core, recorded := observer.New(zap.WarnLevel)
	t.Cleanup(logger.Replace(zap.New(core)))

	f := newFixture(t)
	legacy := models.User{BaseModel: models.BaseModel{ID: "legacy-user-7"}, Name: "Legacy", Email: "legacy@example.com", Role: models.RoleApplicant}
	require.NoError(t, f.db.Create(&legacy).Error)

	app, err := f.apps.Apply(context.Background(), legacy.ID, ApplyInput{
		JobID:       f.job.ID,
		CoverLetter: "Imported from the previous platform.",
		ResumeURL:   "https://files.example.com/resumes/legacy.pdf",
	})
	require.NoError(t, err)

	updated, err := f.apps.UpdateStatus(context.Background(), principalOf(f.employer), app.ID, "rejected")
	require.NoError(t, err)
	require.Equal(t, models.StatusRejected, updated.Status)

	require.Empty(t, f.notificationsFor(t, legacy.ID))
	require.Empty(t, f.live.eventsFor(legacy.ID))
	require.Equal(t, 1, recorded.FilterMessage("notification dropped").Len())
	require.Equal(t, 1, recorded.FilterMessage("notification side effect failed").Len())
}

func TestDeleteReleasesResumeBestEffort(t *testing.T) {
	remover := &fakeResumeRemover{err: errors.New("bucket unavailable")}
	f := newFixture(t, WithResumeRemover(remover))
	ctx := context.Background()
	app, err := f.apps.Apply(ctx, f.applicant.ID, ApplyInput{
		JobID:        f.job.ID,
		CoverLetter:  "Resume attached as an upload.",
		ResumeURL:    "/uploads/resumes/resume-5b0f.pdf",
		ResumeStored: true,
	})
	require.NoError(t, err)

	err = f.apps.Delete(ctx, principalOf(f.otherEmployer), app.ID)
	require.ErrorIs(t, err, ErrForbidden)
	require.Empty(t, remover.urls)

	require.NoError(t, f.apps.Delete(ctx, principalOf(f.employer), app.ID))
	require.Equal(t, []string{app.ResumeURL}, remover.urls)

	var count int64
	require.NoError(t, f.db.Model(&models.Application{}).Where("id = ?", app.ID).Count(&count).Error)
	require.Zero(t, count)

	err = f.apps.Delete(ctx, principalOf(f.employer), app.ID)
	require.ErrorIs(t, err, ErrApplicationNotFound)
}

func TestDeleteKeepsApplicantSuppliedResume(t *testing.T) {
	remover := &fakeResumeRemover{}
	f := newFixture(t, WithResumeRemover(remover))
	ctx := context.Background()

	// A JSON submission may point at a file another applicant uploaded.
	app, err := f.apps.Apply(ctx, f.applicant.ID, ApplyInput{
		JobID:       f.job.ID,
		CoverLetter: "See my resume.",
		ResumeURL:   "/uploads/resumes/resume-someone-else.pdf",
	})
	require.NoError(t, err)

	require.NoError(t, f.apps.Delete(ctx, principalOf(f.employer), app.ID))
	require.Empty(t, remover.urls)
}

func TestApplyAcceptsApplicantWithoutLocalUserRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	external := uuid.NewString()

	app, err := f.apps.Apply(ctx, external, ApplyInput{
		JobID:       f.job.ID,
		CoverLetter: "Signed in through the identity provider only.",
		ResumeURL:   "https://files.example.com/resumes/external.pdf",
	})
	require.NoError(t, err)
	require.Equal(t, external, app.ApplicantID)

	listed, err := f.apps.ListForJob(ctx, principalOf(f.employer), f.job.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Nil(t, listed[0].Applicant)

	updated, err := f.apps.UpdateStatus(ctx, principalOf(f.employer), app.ID, "shortlisted")
	require.NoError(t, err)
	require.Equal(t, models.StatusShortlisted, updated.Status)
	require.Len(t, f.notificationsFor(t, external), 1)
}

func TestApplyToJobDeletedBehindCacheIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cached := NewCachedJobDirectory(f.jobs, time.Hour)
	apps, err := NewApplicationService(f.db, cached, f.dispatcher)
	require.NoError(t, err)

	_, err = cached.Lookup(ctx, f.job.ID)
	require.NoError(t, err)
	require.NoError(t, f.db.Delete(&models.Job{}, "id = ?", f.job.ID).Error)

	input := ApplyInput{
		JobID:       f.job.ID,
		CoverLetter: "Applying from a stale listing.",
		ResumeURL:   "https://files.example.com/resumes/alex.pdf",
	}
	_, err = apps.Apply(ctx, f.applicant.ID, input)
	require.ErrorIs(t, err, ErrJobNotFound)

	// The stale entry was dropped, so the directory now answers directly.
	_, err = cached.Lookup(ctx, f.job.ID)
	require.ErrorIs(t, err, ErrJobNotFound)
	_, err = apps.Apply(ctx, f.applicant.ID, input)
	require.ErrorIs(t, err, ErrJobNotFound)
}

func TestListForApplicant(t *testing.T) {
	f := newFixture(t)
	f.mustApply(t)
	ctx := context.Background()

	apps, err := f.apps.ListForApplicant(ctx, principalOf(f.applicant), f.applicant.ID)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	require.NotNil(t, apps[0].Job)
	require.Equal(t, f.job.Title, apps[0].Job.Title)

	_, err = f.apps.ListForApplicant(ctx, principalOf(f.otherApplicant), f.applicant.ID)
	require.ErrorIs(t, err, ErrForbidden)

	apps, err = f.apps.ListForApplicant(ctx, principalOf(f.admin), f.applicant.ID)
	require.NoError(t, err)
	require.Len(t, apps, 1)
}

func TestListForJob(t *testing.T) {
	f := newFixture(t)
	f.mustApply(t)
	ctx := context.Background()

	apps, err := f.apps.ListForJob(ctx, principalOf(f.employer), f.job.ID)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	require.NotNil(t, apps[0].Applicant)
	require.Equal(t, f.applicant.Email, apps[0].Applicant.Email)

	_, err = f.apps.ListForJob(ctx, principalOf(f.otherEmployer), f.job.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.apps.ListForJob(ctx, principalOf(f.admin), uuid.NewString())
	require.ErrorIs(t, err, ErrJobNotFound)
}
