package notify

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/delordemm1/routine-notifier/internal/modules/routine"
	"github.com/delordemm1/routine-notifier/internal/notification"
	"github.com/delordemm1/routine-notifier/internal/queue"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

// memRepo is an in-memory Repository.
type memRepo struct {
	mu     sync.Mutex
	nextID int64

	templates   map[int64]*Template
	preferences map[int64]*Preference
	logs        []*Log

	// ListPreferencesErr fails ListPreferences when set.
	ListPreferencesErr error
	// CreateLogErr fails CreateLog when set.
	CreateLogErr error
	// RejectDoneCtx fails log writes made on a cancelled context, as pgx does.
	RejectDoneCtx bool
}

func newMemRepo() *memRepo {
	return &memRepo{
		templates:   map[int64]*Template{},
		preferences: map[int64]*Preference{},
	}
}

func (m *memRepo) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memRepo) CreateTemplate(_ context.Context, t *Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.templates {
		if existing.Name == t.Name {
			return ErrTemplateNameTaken
		}
	}
	if t.IsDefault {
		m.unsetDefaults(t.Type, 0)
	}
	t.ID = m.id()
	cp := *t
	m.templates[t.ID] = &cp
	return nil
}

func (m *memRepo) unsetDefaults(typ notification.Channel, except int64) {
	for id, t := range m.templates {
		if t.Type == typ && id != except {
			t.IsDefault = false
		}
	}
}

func (m *memRepo) UpdateTemplate(_ context.Context, t *Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[t.ID]; !ok {
		return ErrTemplateNotFound
	}
	for id, existing := range m.templates {
		if id != t.ID && existing.Name == t.Name {
			return ErrTemplateNameTaken
		}
	}
	if t.IsDefault {
		m.unsetDefaults(t.Type, t.ID)
	}
	cp := *t
	m.templates[t.ID] = &cp
	return nil
}

func (m *memRepo) DeleteTemplate(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.preferences {
		if p.TemplateID != nil && *p.TemplateID == id {
			return ErrTemplateInUse
		}
	}
	if _, ok := m.templates[id]; !ok {
		return ErrTemplateNotFound
	}
	delete(m.templates, id)
	return nil
}

func (m *memRepo) FindTemplateByID(_ context.Context, id int64) (*Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[id]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memRepo) FindTemplateByName(_ context.Context, name string) (*Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.templates {
		if t.Name == name {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrTemplateNotFound
}

func (m *memRepo) FindTemplatesByIDs(_ context.Context, ids []int64) ([]Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Template
	for _, id := range ids {
		if t, ok := m.templates[id]; ok {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memRepo) FindDefaultTemplate(_ context.Context, typ notification.Channel) (*Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.templates {
		if t.Type == typ && t.IsDefault {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrTemplateNotFound
}

func (m *memRepo) ListTemplates(_ context.Context, typ *notification.Channel) ([]Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Template
	for _, t := range m.templates {
		if typ == nil || t.Type == *typ {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memRepo) findPref(routineID int64, typ notification.Channel) *Preference {
	for _, p := range m.preferences {
		if p.RoutineID == routineID && p.Type == typ {
			return p
		}
	}
	return nil
}

func (m *memRepo) UpsertPreference(_ context.Context, p *Preference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.TemplateID != nil {
		if _, ok := m.templates[*p.TemplateID]; !ok {
			return ErrTemplateNotFound
		}
	}
	if existing := m.findPref(p.RoutineID, p.Type); existing != nil {
		p.ID = existing.ID
	} else {
		p.ID = m.id()
	}
	cp := *p
	cp.Template = nil
	m.preferences[p.ID] = &cp
	return nil
}

func (m *memRepo) FindPreference(_ context.Context, routineID int64, typ notification.Channel) (*Preference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p := m.findPref(routineID, typ); p != nil {
		cp := *p
		return &cp, nil
	}
	return nil, ErrPreferenceNotFound
}

func (m *memRepo) ListPreferences(_ context.Context, filter PreferenceFilter) ([]Preference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListPreferencesErr != nil {
		return nil, m.ListPreferencesErr
	}
	var out []Preference
	for _, p := range m.preferences {
		if filter.RoutineID != nil && p.RoutineID != *filter.RoutineID {
			continue
		}
		if filter.EnabledOnly && !p.Enabled {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RoutineID != out[j].RoutineID {
			return out[i].RoutineID < out[j].RoutineID
		}
		return out[i].Type < out[j].Type
	})
	return out, nil
}

func (m *memRepo) TogglePreference(_ context.Context, routineID int64, typ notification.Channel) (*Preference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.findPref(routineID, typ)
	if p == nil {
		return nil, ErrPreferenceNotFound
	}
	p.Enabled = !p.Enabled
	cp := *p
	return &cp, nil
}

func (m *memRepo) DeletePreference(_ context.Context, routineID int64, typ notification.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.findPref(routineID, typ)
	if p == nil {
		return ErrPreferenceNotFound
	}
	delete(m.preferences, p.ID)
	return nil
}

func (m *memRepo) CreateLog(_ context.Context, l *Log) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateLogErr != nil {
		return m.CreateLogErr
	}
	l.ID = m.id()
	l.Status = LogStatusPending
	cp := *l
	m.logs = append(m.logs, &cp)
	return nil
}

func (m *memRepo) finish(ctx context.Context, id int64, fn func(l *Log)) error {
	if m.RejectDoneCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.logs {
		if l.ID == id && l.Status == LogStatusPending {
			fn(l)
		}
	}
	return nil
}

func (m *memRepo) MarkLogSent(ctx context.Context, id int64, at time.Time) error {
	return m.finish(ctx, id, func(l *Log) {
		l.Status = LogStatusSent
		l.SentAt = &at
	})
}

func (m *memRepo) MarkLogFailed(ctx context.Context, id int64, reason string) error {
	return m.finish(ctx, id, func(l *Log) {
		l.Status = LogStatusFailed
		l.Error = &reason
	})
}

func (m *memRepo) ListLogs(_ context.Context, filter LogFilter) ([]Log, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Log
	for i := len(m.logs) - 1; i >= 0; i-- {
		l := m.logs[i]
		if filter.RoutineID != nil && l.RoutineID != *filter.RoutineID {
			continue
		}
		out = append(out, *l)
	}
	return out, nil
}

// Logs returns a snapshot of every stored log in insertion order.
func (m *memRepo) Logs() []Log {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Log, len(m.logs))
	for i, l := range m.logs {
		out[i] = *l
	}
	return out
}

// memRoutines is an in-memory routine.Repository.
type memRoutines struct {
	routines []routine.Routine
}

func (m *memRoutines) List(_ context.Context) ([]routine.Routine, error) {
	return m.routines, nil
}

func (m *memRoutines) FindByID(_ context.Context, id int64) (*routine.Routine, error) {
	for i := range m.routines {
		if m.routines[i].ID == id {
			rt := m.routines[i]
			return &rt, nil
		}
	}
	return nil, routine.ErrNotFound
}

func (m *memRoutines) FindByIDs(_ context.Context, ids []int64) ([]routine.Routine, error) {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []routine.Routine
	for _, rt := range m.routines {
		if want[rt.ID] {
			out = append(out, rt)
		}
	}
	return out, nil
}

// MockPublisher records published payloads. Set PublishFunc to override.
type MockPublisher struct {
	mu          sync.Mutex
	Published   []queue.Payload
	ConnectFunc func(ctx context.Context) error
	PublishFunc func(ctx context.Context, p queue.Payload) error
}

func (m *MockPublisher) Connect(ctx context.Context) error {
	if m.ConnectFunc != nil {
		return m.ConnectFunc(ctx)
	}
	return nil
}

func (m *MockPublisher) Publish(ctx context.Context, p queue.Payload) error {
	if m.PublishFunc != nil {
		if err := m.PublishFunc(ctx, p); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published = append(m.Published, p)
	return nil
}

var (
	emailSubject = "Reminder: {{routineName}} starting in {{minutesBefore}} minutes"
	emailBody    = "Your routine \"{{routineName}}\" is starting in {{minutesBefore}} minutes.\n\nStart time: {{startTime}}\nEnd time: {{endTime}}\n\nBe ready!"
	smsBody      = "{{routineName}} starts in {{minutesBefore}} min. {{startTime}}-{{endTime}}"
)

// seedDefaults stores the two default templates and returns their ids.
func seedDefaults(repo *memRepo) (emailID, smsID int64) {
	ctx := context.Background()
	email := &Template{Name: "Default Email Notification", Type: notification.ChannelEmail, Subject: ptr(emailSubject), Body: emailBody, IsDefault: true}
	sms := &Template{Name: "Default SMS Notification", Type: notification.ChannelSMS, Body: smsBody, IsDefault: true}
	_ = repo.CreateTemplate(ctx, email)
	_ = repo.CreateTemplate(ctx, sms)
	return email.ID, sms.ID
}

func morningCheckIn() routine.Routine {
	return routine.Routine{ID: 4, Name: "Morning check-in", StartTime: "11:00", EndTime: "11:15", Strict: true, NotifyBefore: "10,2"}
}

// recordingSender captures what the channel senders were asked to deliver.
type recordingSender struct {
	mu   sync.Mutex
	sent []notification.Message
	err  error
}

func (r *recordingSender) record(m notification.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, m)
	return nil
}

func (r *recordingSender) Configured() bool { return true }

type recordingEmail struct{ *recordingSender }

func (r recordingEmail) Send(_ context.Context, to, subject, body string) error {
	return r.record(notification.Message{Channel: notification.ChannelEmail, Recipient: to, Subject: subject, Body: body})
}

type recordingSMS struct{ *recordingSender }

func (r recordingSMS) Send(_ context.Context, to, body string) error {
	return r.record(notification.Message{Channel: notification.ChannelSMS, Recipient: to, Body: body})
}
