package notify

import (
	"context"
	"errors"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/delordemm1/routine-notifier/internal/database"
	"github.com/delordemm1/routine-notifier/internal/notification"
)

// Repository defines the database operations for templates, preferences and delivery logs.
type Repository interface {
	// Templates
	CreateTemplate(ctx context.Context, t *Template) error
	UpdateTemplate(ctx context.Context, t *Template) error
	DeleteTemplate(ctx context.Context, id int64) error
	FindTemplateByID(ctx context.Context, id int64) (*Template, error)
	FindTemplateByName(ctx context.Context, name string) (*Template, error)
	FindTemplatesByIDs(ctx context.Context, ids []int64) ([]Template, error)
	FindDefaultTemplate(ctx context.Context, typ notification.Channel) (*Template, error)
	ListTemplates(ctx context.Context, typ *notification.Channel) ([]Template, error)

	// Preferences
	UpsertPreference(ctx context.Context, p *Preference) error
	FindPreference(ctx context.Context, routineID int64, typ notification.Channel) (*Preference, error)
	ListPreferences(ctx context.Context, filter PreferenceFilter) ([]Preference, error)
	TogglePreference(ctx context.Context, routineID int64, typ notification.Channel) (*Preference, error)
	DeletePreference(ctx context.Context, routineID int64, typ notification.Channel) error

	// Delivery log
	CreateLog(ctx context.Context, l *Log) error
	MarkLogSent(ctx context.Context, id int64, at time.Time) error
	MarkLogFailed(ctx context.Context, id int64, reason string) error
	ListLogs(ctx context.Context, filter LogFilter) ([]Log, error)
}

// repository implements the Repository interface using pgx and squirrel.
type repository struct {
	db   database.DBTX
	psql squirrel.StatementBuilderType
	now  func() time.Time
}

// NewRepository creates a new notify repository with the given database connection.
func NewRepository(db database.DBTX) Repository {
	return &repository{
		db:   db,
		psql: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now:  time.Now,
	}
}

const (
	tableTemplates   = "notification_templates"
	tablePreferences = "notification_preferences"
	tableLogs        = "notification_logs"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func pgCode(err error) (code, constraint string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}
