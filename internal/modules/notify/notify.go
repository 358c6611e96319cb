package notify

import (
	"time"

	"github.com/delordemm1/routine-notifier/internal/notification"
)

// Template is a reusable message with {{placeholder}} variables. Subject is
// only meaningful for email templates.
type Template struct {
	ID          int64                `db:"id" json:"id"`
	Name        string               `db:"name" json:"name"`
	Description *string              `db:"description" json:"description,omitempty"`
	Type        notification.Channel `db:"type" json:"type"`
	Subject     *string              `db:"subject" json:"subject,omitempty"`
	Body        string               `db:"body" json:"body"`
	Keys        []string             `db:"keys" json:"keys"`
	IsDefault   bool                 `db:"is_default" json:"isDefault"`
	CreatedAt   time.Time            `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time            `db:"updated_at" json:"updatedAt"`
}

// usableFor reports whether t can render a notification on channel c.
func (t *Template) usableFor(c notification.Channel) bool {
	return t != nil && t.Body != "" && t.Type == c
}

// Preference binds one routine and channel to a recipient and, optionally, a template.
type Preference struct {
	ID         int64                `db:"id" json:"id"`
	RoutineID  int64                `db:"routine_id" json:"routineId"`
	Type       notification.Channel `db:"type" json:"type"`
	Recipient  string               `db:"recipient" json:"recipient"`
	TemplateID *int64               `db:"template_id" json:"templateId,omitempty"`
	Enabled    bool                 `db:"enabled" json:"enabled"`
	CreatedAt  time.Time            `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time            `db:"updated_at" json:"updatedAt"`

	Template *Template `db:"-" json:"template,omitempty"`
}

type LogStatus string

const (
	LogStatusPending LogStatus = "pending"
	LogStatusSent    LogStatus = "sent"
	LogStatusFailed  LogStatus = "failed"
)

// Log records one attempted notification. Status moves from pending to
// exactly one of sent or failed.
type Log struct {
	ID        int64                `db:"id" json:"id"`
	RoutineID int64                `db:"routine_id" json:"routineId"`
	Type      notification.Channel `db:"type" json:"type"`
	Recipient string               `db:"recipient" json:"recipient"`
	Subject   *string              `db:"subject" json:"subject,omitempty"`
	Body      string               `db:"body" json:"body"`
	Status    LogStatus            `db:"status" json:"status"`
	Error     *string              `db:"error" json:"error,omitempty"`
	SentAt    *time.Time           `db:"sent_at" json:"sentAt,omitempty"`
	CreatedAt time.Time            `db:"created_at" json:"createdAt"`
}

// PreferenceFilter narrows ListPreferences.
type PreferenceFilter struct {
	RoutineID   *int64
	EnabledOnly bool
}

// LogFilter narrows ListLogs. A zero Limit means DefaultLogLimit.
type LogFilter struct {
	RoutineID *int64
	Status    *LogStatus
	Limit     int
}

const (
	DefaultLogLimit = 50
	MaxLogLimit     = 500
)
