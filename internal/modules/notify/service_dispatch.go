package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/delordemm1/routine-notifier/internal/contextx"
	"github.com/delordemm1/routine-notifier/internal/metrics"
	"github.com/delordemm1/routine-notifier/internal/modules/routine"
	"github.com/delordemm1/routine-notifier/internal/notification"
	"github.com/delordemm1/routine-notifier/internal/notification/templates"
	"github.com/delordemm1/routine-notifier/internal/queue"
)

// Publisher hands rendered notifications to the delivery queue.
type Publisher interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, p queue.Payload) error
}

// Dispatcher resolves, renders, logs and publishes notifications.
type Dispatcher struct {
	repo      Repository
	routines  routine.Repository
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// DispatcherConfig holds the dependencies for a Dispatcher.
type DispatcherConfig struct {
	Repo      Repository
	Routines  routine.Repository
	Publisher Publisher
	Logger    *slog.Logger
	Now       func() time.Time
}

func NewDispatcher(cfg *DispatcherConfig) *Dispatcher {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		repo:      cfg.Repo,
		routines:  cfg.Routines,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		now:       now,
	}
}

// TriggerRequest asks for one notification outside the schedule. An empty
// Recipient uses the routine's preference recipient. A nil MinutesBefore uses
// the routine's first lead time.
type TriggerRequest struct {
	RoutineID     int64
	Type          notification.Channel
	Recipient     string
	Variables     map[string]string
	MinutesBefore *int
}

// TriggerResult describes the outcome of a direct trigger. Skipped is set
// when no usable template exists, in which case no log row is written.
type TriggerResult struct {
	LogID   int64     `json:"logId"`
	Status  LogStatus `json:"status,omitempty"`
	Skipped bool      `json:"skipped"`
}

// resolveTemplate returns the preference template when usable for c, else the
// default template for c, else nil.
func (d *Dispatcher) resolveTemplate(ctx context.Context, bound *Template, c notification.Channel) (*Template, error) {
	if bound.usableFor(c) {
		return bound, nil
	}
	def, err := d.repo.FindDefaultTemplate(ctx, c)
	if err != nil {
		if errors.Is(err, ErrTemplateNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !def.usableFor(c) {
		return nil, nil
	}
	return def, nil
}

// deliver renders tmpl with vars, writes a pending log, publishes, and moves
// the log to sent or failed. The returned error is the store or publish failure.
func (d *Dispatcher) deliver(ctx context.Context, rt *routine.Routine, c notification.Channel, recipient string, tmpl *Template, vars templates.Vars) (*Log, error) {
	body := templates.Interpolate(tmpl.Body, vars)
	title := tmpl.Name
	if c == notification.ChannelEmail && tmpl.Subject != nil && *tmpl.Subject != "" {
		title = templates.Interpolate(*tmpl.Subject, vars)
	}

	entry := &Log{
		RoutineID: rt.ID,
		Type:      c,
		Recipient: recipient,
		Subject:   &title,
		Body:      body,
	}
	if err := d.repo.CreateLog(ctx, entry); err != nil {
		return nil, err
	}

	now := d.now()
	payload := queue.Payload{
		ID:         uuid.NewString(),
		UserID:     recipient,
		Recipient:  recipient,
		Type:       string(c),
		Title:      title,
		Message:    body,
		TemplateID: tmpl.ID,
		Metadata: queue.Metadata{
			RoutineID:   rt.ID,
			RoutineName: rt.Name,
			Type:        string(c),
			Recipient:   recipient,
			Variables:   vars,
			LogID:       entry.ID,
		},
		Timestamp: now.UnixMilli(),
	}

	err := d.publisher.Publish(ctx, payload)
	// The pending row must settle even when the caller has gone away.
	settle := context.WithoutCancel(ctx)
	if err != nil {
		if markErr := d.repo.MarkLogFailed(settle, entry.ID, err.Error()); markErr != nil {
			d.logger.Error("failed to mark notification log failed", "log_id", entry.ID, "error", markErr)
		}
		reason := err.Error()
		entry.Status, entry.Error = LogStatusFailed, &reason
		metrics.DispatchesTotal.WithLabelValues(string(c), string(LogStatusFailed)).Inc()
		return entry, err
	}

	if err := d.repo.MarkLogSent(settle, entry.ID, now); err != nil {
		d.logger.Error("failed to mark notification log sent", "log_id", entry.ID, "error", err)
	}
	entry.Status, entry.SentAt = LogStatusSent, &now
	metrics.DispatchesTotal.WithLabelValues(string(c), string(LogStatusSent)).Inc()
	return entry, nil
}

func routineVars(rt *routine.Routine, lead int) templates.RoutineVars {
	return templates.RoutineVars{
		RoutineName:   rt.Name,
		StartTime:     rt.StartTime,
		EndTime:       rt.EndTime,
		MinutesBefore: lead,
	}
}

// DispatchDue sends one notification per enabled preference of rt for the
// given lead time and returns how many were published. Failures are logged and
// never stop the remaining preferences.
func (d *Dispatcher) DispatchDue(ctx context.Context, rt *routine.Routine, prefs []Preference, lead int) int {
	vars := routineVars(rt, lead).Vars()
	sent := 0

	for i := range prefs {
		p := &prefs[i]
		if !p.Enabled {
			continue
		}
		log := d.logger.With("routine_id", rt.ID, "type", p.Type, "lead", lead)

		tmpl, err := d.resolveTemplate(ctx, p.Template, p.Type)
		if err != nil {
			log.Error("failed to resolve notification template", "error", err)
			continue
		}
		if tmpl == nil {
			log.Info("no usable template for notification, skipping")
			metrics.DispatchesTotal.WithLabelValues(string(p.Type), "skipped").Inc()
			continue
		}

		if v := templates.Validate(tmpl.Body, subjectFor(tmpl, p.Type), vars); !v.Valid {
			log.Warn("skipping notification, missing template variables", "template_id", tmpl.ID, "missing", strings.Join(v.MissingKeys, ", "))
			metrics.DispatchesTotal.WithLabelValues(string(p.Type), "skipped").Inc()
			continue
		}

		entry, err := d.deliver(ctx, rt, p.Type, p.Recipient, tmpl, vars)
		if err != nil {
			if entry != nil {
				log.Error("failed to publish notification", "log_id", entry.ID, "error", err)
			} else {
				log.Error("failed to record notification", "error", err)
			}
			continue
		}
		sent++
		log.Info("notification sent", "recipient", p.Recipient, "log_id", entry.ID)
	}
	return sent
}

// subjectFor returns the subject that participates in rendering for channel c.
func subjectFor(t *Template, c notification.Channel) *string {
	if c == notification.ChannelEmail {
		return t.Subject
	}
	return nil
}

// Trigger sends one notification immediately. Validation problems are returned
// as errors; a publish failure is recorded on the log row and returned.
func (d *Dispatcher) Trigger(ctx context.Context, req TriggerRequest) (*TriggerResult, error) {
	if !req.Type.Valid() {
		return nil, ErrInvalidChannel
	}
	if contextx.CorrelationID(ctx) == "" {
		ctx = contextx.WithCorrelationID(ctx, uuid.NewString())
	}

	rt, err := d.routines.FindByID(ctx, req.RoutineID)
	if err != nil {
		if errors.Is(err, routine.ErrNotFound) {
			return nil, ErrRoutineNotFound.WithCause(err)
		}
		return nil, err
	}

	pref, err := d.repo.FindPreference(ctx, rt.ID, req.Type)
	switch {
	case errors.Is(err, ErrPreferenceNotFound):
		pref = nil
	case err != nil:
		return nil, err
	}
	// A disabled preference contributes neither template nor recipient.
	if pref != nil && !pref.Enabled {
		pref = nil
	}

	recipient := strings.TrimSpace(req.Recipient)
	if recipient == "" && pref != nil {
		recipient = pref.Recipient
	}
	if recipient == "" {
		return nil, ErrInvalidRecipient.WithDetail("no recipient given and the routine has no enabled preference for this type")
	}
	if err := validateRecipient(req.Type, recipient); err != nil {
		return nil, err
	}

	var bound *Template
	if pref != nil && pref.TemplateID != nil {
		t, err := d.repo.FindTemplateByID(ctx, *pref.TemplateID)
		if err != nil && !errors.Is(err, ErrTemplateNotFound) {
			return nil, err
		}
		bound = t
	}
	tmpl, err := d.resolveTemplate(ctx, bound, req.Type)
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		d.logger.Info("no usable template for triggered notification", "routine_id", rt.ID, "type", req.Type)
		return &TriggerResult{Skipped: true}, nil
	}

	lead := rt.FirstLead()
	if req.MinutesBefore != nil {
		lead = *req.MinutesBefore
	}
	vars := routineVars(rt, lead).Merge(req.Variables)
	if v := templates.Validate(tmpl.Body, subjectFor(tmpl, req.Type), vars); !v.Valid {
		return nil, missingVariables(v.MissingKeys)
	}

	if err := d.publisher.Connect(ctx); err != nil {
		d.logger.Warn("queue producer unavailable", "error", err)
	}

	entry, err := d.deliver(ctx, rt, req.Type, recipient, tmpl, vars)
	if err != nil {
		if entry == nil {
			return nil, err
		}
		return &TriggerResult{LogID: entry.ID, Status: LogStatusFailed}, ErrPublishFailed.WithCause(err).WithContext(map[string]any{"logId": entry.ID})
	}
	d.logger.Info("notification triggered", "routine_id", rt.ID, "type", req.Type, "log_id", entry.ID)
	return &TriggerResult{LogID: entry.ID, Status: LogStatusSent}, nil
}

// TriggerAll triggers every enabled preference of a routine with the same
// variables. It stops at the first error.
func (d *Dispatcher) TriggerAll(ctx context.Context, routineID int64, vars map[string]string) ([]TriggerResult, error) {
	if contextx.CorrelationID(ctx) == "" {
		ctx = contextx.WithCorrelationID(ctx, uuid.NewString())
	}
	if _, err := d.routines.FindByID(ctx, routineID); err != nil {
		if errors.Is(err, routine.ErrNotFound) {
			return nil, ErrRoutineNotFound.WithCause(err)
		}
		return nil, err
	}

	prefs, err := d.repo.ListPreferences(ctx, PreferenceFilter{RoutineID: &routineID, EnabledOnly: true})
	if err != nil {
		return nil, err
	}
	results := make([]TriggerResult, 0, len(prefs))
	for _, p := range prefs {
		res, err := d.Trigger(ctx, TriggerRequest{RoutineID: routineID, Type: p.Type, Recipient: p.Recipient, Variables: vars})
		if err != nil {
			return results, err
		}
		results = append(results, *res)
	}
	return results, nil
}
