package notify

import (
	"context"
	"log/slog"

	"github.com/delordemm1/routine-notifier/internal/modules/routine"
	"github.com/delordemm1/routine-notifier/internal/notification"
	"github.com/delordemm1/routine-notifier/internal/notification/templates"
)

// Service defines template and preference administration.
type Service interface {
	// Templates
	GetTemplate(ctx context.Context, id int64) (*Template, error)
	GetTemplateByName(ctx context.Context, name string) (*Template, error)
	ListTemplates(ctx context.Context, typ *notification.Channel) ([]Template, error)
	GetDefaultTemplate(ctx context.Context, typ notification.Channel) (*Template, error)
	CreateTemplate(ctx context.Context, in TemplateInput) (*Template, error)
	UpdateTemplate(ctx context.Context, id int64, in TemplatePatch) (*Template, error)
	DeleteTemplate(ctx context.Context, id int64) error
	DuplicateTemplate(ctx context.Context, id int64, newName string) (*Template, error)
	TemplateVariables(ctx context.Context, id int64) ([]string, error)
	ValidateVariables(body string, subject *string, vars templates.Vars) templates.Validation

	// Preferences
	GetPreference(ctx context.Context, routineID int64, typ notification.Channel) (*Preference, error)
	ListRoutinePreferences(ctx context.Context, routineID int64) ([]Preference, error)
	ListPreferences(ctx context.Context) ([]Preference, error)
	UpsertPreference(ctx context.Context, routineID int64, typ notification.Channel, in PreferenceInput) (*Preference, error)
	DeletePreference(ctx context.Context, routineID int64, typ notification.Channel) error
	TogglePreference(ctx context.Context, routineID int64, typ notification.Channel) (*Preference, error)

	// Delivery log
	ListLogs(ctx context.Context, filter LogFilter) ([]Log, error)
}

type service struct {
	repo     Repository
	routines routine.Repository
	logger   *slog.Logger
}

// Config holds the dependencies for the notify service.
type Config struct {
	Repo     Repository
	Routines routine.Repository
	Logger   *slog.Logger
}

// NewService creates a new notify service with the given dependencies.
func NewService(cfg *Config) Service {
	return &service{
		repo:     cfg.Repo,
		routines: cfg.Routines,
		logger:   cfg.Logger,
	}
}

func (s *service) ListLogs(ctx context.Context, filter LogFilter) ([]Log, error) {
	return s.repo.ListLogs(ctx, filter)
}
