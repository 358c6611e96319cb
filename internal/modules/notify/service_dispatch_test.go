package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delordemm1/routine-notifier/internal/contextx"
	"github.com/delordemm1/routine-notifier/internal/modules/routine"
	"github.com/delordemm1/routine-notifier/internal/notification"
	"github.com/delordemm1/routine-notifier/internal/queue"
)

var fixedNow = time.Date(2025, 3, 10, 10, 50, 0, 0, time.UTC)

type dispatchFixture struct {
	repo      *memRepo
	routines  *memRoutines
	publisher *MockPublisher
	d         *Dispatcher
}

func newDispatchFixture(rts ...routine.Routine) *dispatchFixture {
	f := &dispatchFixture{
		repo:      newMemRepo(),
		routines:  &memRoutines{routines: rts},
		publisher: &MockPublisher{},
	}
	f.d = NewDispatcher(&DispatcherConfig{
		Repo:      f.repo,
		Routines:  f.routines,
		Publisher: f.publisher,
		Logger:    discardLogger(),
		Now:       func() time.Time { return fixedNow },
	})
	return f
}

func (f *dispatchFixture) addPref(t *testing.T, p Preference) Preference {
	t.Helper()
	require.NoError(t, f.repo.UpsertPreference(context.Background(), &p))
	if p.TemplateID != nil {
		tmpl, err := f.repo.FindTemplateByID(context.Background(), *p.TemplateID)
		require.NoError(t, err)
		p.Template = tmpl
	}
	return p
}

func TestDispatchDue_UsesDefaultTemplates(t *testing.T) {
	rt := morningCheckIn()
	f := newDispatchFixture(rt)
	seedDefaults(f.repo)
	prefs := []Preference{
		f.addPref(t, Preference{RoutineID: rt.ID, Type: notification.ChannelEmail, Recipient: "a@b.co", Enabled: true}),
		f.addPref(t, Preference{RoutineID: rt.ID, Type: notification.ChannelSMS, Recipient: "+254700000001", Enabled: true}),
	}

	sent := f.d.DispatchDue(context.Background(), &rt, prefs, 10)
	assert.Equal(t, 2, sent)

	require.Len(t, f.publisher.Published, 2)
	email := f.publisher.Published[0]
	assert.Equal(t, "email", email.Type)
	assert.Equal(t, "a@b.co", email.Recipient)
	assert.Equal(t, "a@b.co", email.Key())
	assert.Equal(t, "Reminder: Morning check-in starting in 10 minutes", email.Title)
	assert.Contains(t, email.Message, "Start time: 11:00")
	assert.Equal(t, fixedNow.UnixMilli(), email.Timestamp)

	sms := f.publisher.Published[1]
	assert.Equal(t, "Default SMS Notification", sms.Title)
	assert.Equal(t, "Morning check-in starts in 10 min. 11:00-11:15", sms.Message)

	logs := f.repo.Logs()
	require.Len(t, logs, 2)
	for _, l := range logs {
		assert.Equal(t, LogStatusSent, l.Status)
		require.NotNil(t, l.SentAt)
		assert.Equal(t, fixedNow, *l.SentAt)
	}
	assert.Equal(t, logs[0].ID, email.Metadata.LogID)
}

func TestDispatchDue_PreferenceTemplateWins(t *testing.T) {
	rt := morningCheckIn()
	f := newDispatchFixture(rt)
	seedDefaults(f.repo)
	custom := &Template{Name: "Short", Type: notification.ChannelSMS, Body: "{{routineName}} in {{minutesBefore}}"}
	require.NoError(t, f.repo.CreateTemplate(context.Background(), custom))
	prefs := []Preference{
		f.addPref(t, Preference{RoutineID: rt.ID, Type: notification.ChannelSMS, Recipient: "+254700000001", TemplateID: &custom.ID, Enabled: true}),
	}

	assert.Equal(t, 1, f.d.DispatchDue(context.Background(), &rt, prefs, 2))
	require.Len(t, f.publisher.Published, 1)
	assert.Equal(t, "Morning check-in in 2", f.publisher.Published[0].Message)
	assert.Equal(t, custom.ID, f.publisher.Published[0].TemplateID)
}

func TestDispatchDue_MismatchedTemplateFallsBackToDefault(t *testing.T) {
	rt := morningCheckIn()
	f := newDispatchFixture(rt)
	emailID, smsID := seedDefaults(f.repo)
	prefs := []Preference{
		// An email template bound to an sms preference is unusable.
		f.addPref(t, Preference{RoutineID: rt.ID, Type: notification.ChannelSMS, Recipient: "+254700000001", TemplateID: &emailID, Enabled: true}),
	}

	assert.Equal(t, 1, f.d.DispatchDue(context.Background(), &rt, prefs, 10))
	assert.Equal(t, smsID, f.publisher.Published[0].TemplateID)
}

func TestDispatchDue_NoTemplateSkipsWithoutLog(t *testing.T) {
	rt := morningCheckIn()
	f := newDispatchFixture(rt)
	prefs := []Preference{
		f.addPref(t, Preference{RoutineID: rt.ID, Type: notification.ChannelEmail, Recipient: "a@b.co", Enabled: true}),
	}

	assert.Equal(t, 0, f.d.DispatchDue(context.Background(), &rt, prefs, 10))
	assert.Empty(t, f.publisher.Published)
	assert.Empty(t, f.repo.Logs())
}

func TestDispatchDue_MissingVariablesSkips(t *testing.T) {
	rt := morningCheckIn()
	f := newDispatchFixture(rt)
	tmpl := &Template{Name: "Needs location", Type: notification.ChannelSMS, Body: "{{routineName}} at {{location}}"}
	require.NoError(t, f.repo.CreateTemplate(context.Background(), tmpl))
	prefs := []Preference{
		f.addPref(t, Preference{RoutineID: rt.ID, Type: notification.ChannelSMS, Recipient: "+254700000001", TemplateID: &tmpl.ID, Enabled: true}),
	}

	assert.Equal(t, 0, f.d.DispatchDue(context.Background(), &rt, prefs, 10))
	assert.Empty(t, f.repo.Logs())
}

func TestDispatchDue_PublishFailureIsIsolated(t *testing.T) {
	rt := morningCheckIn()
	f := newDispatchFixture(rt)
	seedDefaults(f.repo)
	f.publisher.PublishFunc = func(_ context.Context, p queue.Payload) error {
		if p.Type == "email" {
			return errors.New("broker down")
		}
		return nil
	}
	prefs := []Preference{
		f.addPref(t, Preference{RoutineID: rt.ID, Type: notification.ChannelEmail, Recipient: "a@b.co", Enabled: true}),
		f.addPref(t, Preference{RoutineID: rt.ID, Type: notification.ChannelSMS, Recipient: "+254700000001", Enabled: true}),
	}

	assert.Equal(t, 1, f.d.DispatchDue(context.Background(), &rt, prefs, 10))

	logs := f.repo.Logs()
	require.Len(t, logs, 2)
	assert.Equal(t, LogStatusFailed, logs[0].Status)
	require.NotNil(t, logs[0].Error)
	assert.Equal(t, "broker down", *logs[0].Error)
	assert.Nil(t, logs[0].SentAt)
	assert.Equal(t, LogStatusSent, logs[1].Status)
}

func TestDispatchDue_SkipsDisabledPreferences(t *testing.T) {
	rt := morningCheckIn()
	f := newDispatchFixture(rt)
	seedDefaults(f.repo)
	prefs := []Preference{{RoutineID: rt.ID, Type: notification.ChannelEmail, Recipient: "a@b.co", Enabled: false}}

	assert.Equal(t, 0, f.d.DispatchDue(context.Background(), &rt, prefs, 10))
	assert.Empty(t, f.repo.Logs())
}

func TestTrigger_Success(t *testing.T) {
	rt := morningCheckIn()
	f := newDispatchFixture(rt)
	seedDefaults(f.repo)
	f.addPref(t, Preference{RoutineID: rt.ID, Type: notification.ChannelSMS, Recipient: "+254700000001", Enabled: true})

	ctx := contextx.WithCorrelationID(context.Background(), "req-1")
	res, err := f.d.Trigger(ctx, TriggerRequest{RoutineID: rt.ID, Type: notification.ChannelSMS})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, LogStatusSent, res.Status)
	assert.NotZero(t, res.LogID)

	require.Len(t, f.publisher.Published, 1)
	p := f.publisher.Published[0]
	assert.Equal(t, "+254700000001", p.Recipient)
	// The routine's first lead time is used when none is given.
	assert.Equal(t, "Morning check-in starts in 10 min. 11:00-11:15", p.Message)
}

func TestTrigger_ExtraVariablesOverride(t *testing.T) {
	rt := morningCheckIn()
	f := newDispatchFixture(rt)
	tmpl := &Template{Name: "Custom", Type: notification.ChannelEmail, Subject: ptr("{{routineName}}"), Body: "Meet at {{location}} in {{minutesBefore}}"}
	require.NoError(t, f.repo.CreateTemplate(context.Background(), tmpl))
	f.addPref(t, Preference{RoutineID: rt.ID, Type: notification.ChannelEmail, Recipient: "a@b.co", TemplateID: &tmpl.ID, Enabled: true})

	res, err := f.d.Trigger(context.Background(), TriggerRequest{
		RoutineID:     rt.ID,
		Type:          notification.ChannelEmail,
		Recipient:     "other@b.co",
		Variables:     map[string]string{"location": "Court 3", "routineName": "Check-in"},
		MinutesBefore: ptr(5),
	})
	require.NoError(t, err)
	assert.Equal(t, LogStatusSent, res.Status)

	p := f.publisher.Published[0]
	assert.Equal(t, "other@b.co", p.Recipient)
	assert.Equal(t, "Check-in", p.Title)
	assert.Equal(t, "Meet at Court 3 in 5", p.Message)
}

func TestTrigger_Errors(t *testing.T) {
	rt := morningCheckIn()

	t.Run("routine not found", func(t *testing.T) {
		f := newDispatchFixture(rt)
		seedDefaults(f.repo)
		_, err := f.d.Trigger(context.Background(), TriggerRequest{RoutineID: 999, Type: notification.ChannelEmail, Recipient: "a@b.co"})
		assert.ErrorIs(t, err, ErrRoutineNotFound)
	})

	t.Run("invalid type", func(t *testing.T) {
		f := newDispatchFixture(rt)
		_, err := f.d.Trigger(context.Background(), TriggerRequest{RoutineID: rt.ID, Type: "push", Recipient: "a@b.co"})
		assert.ErrorIs(t, err, ErrInvalidChannel)
	})

	t.Run("no recipient", func(t *testing.T) {
		f := newDispatchFixture(rt)
		seedDefaults(f.repo)
		_, err := f.d.Trigger(context.Background(), TriggerRequest{RoutineID: rt.ID, Type: notification.ChannelEmail})
		assert.ErrorIs(t, err, ErrInvalidRecipient)
	})

	t.Run("invalid phone", func(t *testing.T) {
		f := newDispatchFixture(rt)
		seedDefaults(f.repo)
		_, err := f.d.Trigger(context.Background(), TriggerRequest{RoutineID: rt.ID, Type: notification.ChannelSMS, Recipient: "12345"})
		assert.ErrorIs(t, err, ErrInvalidRecipient)
		assert.Empty(t, f.repo.Logs())
	})

	t.Run("missing variables", func(t *testing.T) {
		f := newDispatchFixture(rt)
		tmpl := &Template{Name: "Needs location", Type: notification.ChannelEmail, Body: "{{location}} {{court}}", IsDefault: true}
		require.NoError(t, f.repo.CreateTemplate(context.Background(), tmpl))

		_, err := f.d.Trigger(context.Background(), TriggerRequest{RoutineID: rt.ID, Type: notification.ChannelEmail, Recipient: "a@b.co"})
		require.ErrorIs(t, err, ErrMissingVariables)
		var de *DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "Missing required template variables: location, court", de.ProblemDetail())
		assert.Empty(t, f.repo.Logs())
	})
}

func TestTrigger_NoTemplateIsSkipped(t *testing.T) {
	rt := morningCheckIn()
	f := newDispatchFixture(rt)

	res, err := f.d.Trigger(context.Background(), TriggerRequest{RoutineID: rt.ID, Type: notification.ChannelEmail, Recipient: "a@b.co"})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, f.repo.Logs())
}

func TestTrigger_DisabledPreferenceUsesDefault(t *testing.T) {
	rt := morningCheckIn()
	f := newDispatchFixture(rt)
	emailID, _ := seedDefaults(f.repo)
	custom := &Template{Name: "Custom", Type: notification.ChannelEmail, Body: "custom {{routineName}}"}
	require.NoError(t, f.repo.CreateTemplate(context.Background(), custom))
	f.addPref(t, Preference{RoutineID: rt.ID, Type: notification.ChannelEmail, Recipient: "a@b.co", TemplateID: &custom.ID, Enabled: false})

	_, err := f.d.Trigger(context.Background(), TriggerRequest{RoutineID: rt.ID, Type: notification.ChannelEmail})
	assert.ErrorIs(t, err, ErrInvalidRecipient)

	res, err := f.d.Trigger(context.Background(), TriggerRequest{RoutineID: rt.ID, Type: notification.ChannelEmail, Recipient: "x@b.co"})
	require.NoError(t, err)
	assert.Equal(t, LogStatusSent, res.Status)
	assert.Equal(t, emailID, f.publisher.Published[0].TemplateID)
}

func TestTrigger_PublishFailure(t *testing.T) {
	rt := morningCheckIn()
	f := newDispatchFixture(rt)
	seedDefaults(f.repo)
	f.publisher.PublishFunc = func(context.Context, queue.Payload) error { return queue.ErrNotConnected }

	res, err := f.d.Trigger(context.Background(), TriggerRequest{RoutineID: rt.ID, Type: notification.ChannelEmail, Recipient: "a@b.co"})
	require.ErrorIs(t, err, ErrPublishFailed)
	assert.ErrorIs(t, err, queue.ErrNotConnected)
	require.NotNil(t, res)
	assert.Equal(t, LogStatusFailed, res.Status)

	logs := f.repo.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, LogStatusFailed, logs[0].Status)
	assert.Equal(t, queue.ErrNotConnected.Error(), *logs[0].Error)
}

func TestTriggerAll(t *testing.T) {
	rt := morningCheckIn()
	f := newDispatchFixture(rt)
	seedDefaults(f.repo)
	f.addPref(t, Preference{RoutineID: rt.ID, Type: notification.ChannelEmail, Recipient: "a@b.co", Enabled: true})
	f.addPref(t, Preference{RoutineID: rt.ID, Type: notification.ChannelSMS, Recipient: "+254700000001", Enabled: false})

	results, err := f.d.TriggerAll(context.Background(), rt.ID, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, LogStatusSent, results[0].Status)

	_, err = f.d.TriggerAll(context.Background(), 42, nil)
	assert.ErrorIs(t, err, ErrRoutineNotFound)
}

func TestTrigger_PublishFailureAfterCancelStillMarksFailed(t *testing.T) {
	rt := morningCheckIn()
	f := newDispatchFixture(rt)
	seedDefaults(f.repo)
	f.repo.RejectDoneCtx = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.publisher.PublishFunc = func(pctx context.Context, _ queue.Payload) error {
		cancel()
		return pctx.Err()
	}

	_, err := f.d.Trigger(ctx, TriggerRequest{RoutineID: rt.ID, Type: notification.ChannelEmail, Recipient: "a@b.co"})
	require.ErrorIs(t, err, ErrPublishFailed)

	logs := f.repo.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, LogStatusFailed, logs[0].Status)
	assert.Equal(t, context.Canceled.Error(), *logs[0].Error)
}

func TestDispatchDue_DirectDelivery(t *testing.T) {
	rt := morningCheckIn()
	repo := newMemRepo()
	seedDefaults(repo)
	email := recordingEmail{&recordingSender{}}
	sms := recordingSMS{&recordingSender{err: errors.New("gateway down")}}

	d := NewDispatcher(&DispatcherConfig{
		Repo:      repo,
		Routines:  &memRoutines{routines: []routine.Routine{rt}},
		Publisher: notification.NewDirectPublisher(notification.NewService(discardLogger(), email, sms)),
		Logger:    discardLogger(),
		Now:       func() time.Time { return fixedNow },
	})

	prefs := []Preference{
		{RoutineID: rt.ID, Type: notification.ChannelEmail, Recipient: "me@example.com", Enabled: true},
		{RoutineID: rt.ID, Type: notification.ChannelSMS, Recipient: "+254700000001", Enabled: true},
	}
	assert.Equal(t, 1, d.DispatchDue(context.Background(), &rt, prefs, 10))

	require.Len(t, email.sent, 1)
	assert.Equal(t, "me@example.com", email.sent[0].Recipient)
	assert.Equal(t, "Reminder: Morning check-in starting in 10 minutes", email.sent[0].Subject)
	assert.Contains(t, email.sent[0].Body, "Start time: 11:00")

	logs := repo.Logs()
	require.Len(t, logs, 2)
	assert.Equal(t, LogStatusSent, logs[0].Status)
	assert.Equal(t, LogStatusFailed, logs[1].Status)
	assert.Equal(t, "gateway down", *logs[1].Error)
}
