package notify

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// triggerer is the direct-mode half of the Dispatcher.
type triggerer interface {
	Trigger(ctx context.Context, req TriggerRequest) (*TriggerResult, error)
	TriggerAll(ctx context.Context, routineID int64, vars map[string]string) ([]TriggerResult, error)
}

// scanRunner is the scheduled-mode entry point.
type scanRunner interface {
	Scan(ctx context.Context) (*ScanResult, error)
	Stats(ctx context.Context) (*ScheduleStats, error)
}

// Handler holds the dependencies for the notify module's HTTP handlers.
type Handler struct {
	service    Service
	dispatcher triggerer
	scanner    scanRunner
	cronAuth   func(huma.Context, func(huma.Context))
	logger     *slog.Logger
}

// HandlerConfig holds the dependencies for a Handler. CronAuth guards the
// scan trigger and may be nil.
type HandlerConfig struct {
	Service    Service
	Dispatcher triggerer
	Scanner    scanRunner
	CronAuth   func(huma.Context, func(huma.Context))
	Logger     *slog.Logger
}

// NewHandler creates a new handler for the notify module.
func NewHandler(cfg *HandlerConfig) *Handler {
	return &Handler{
		service:    cfg.Service,
		dispatcher: cfg.Dispatcher,
		scanner:    cfg.Scanner,
		cronAuth:   cfg.CronAuth,
		logger:     cfg.Logger,
	}
}

// RegisterRoutes sets up the routing for the notify module.
func (h *Handler) RegisterRoutes(api huma.API) {
	// --- Scheduling Routes ---
	cron := huma.Operation{
		OperationID: "run-notification-scan",
		Method:      http.MethodPost,
		Path:        "/cron/notifications",
		Summary:     "Fire every routine reminder due now",
	}
	if h.cronAuth != nil {
		cron.Middlewares = huma.Middlewares{h.cronAuth}
		cron.Security = []map[string][]string{{"bearer": {}}}
	}
	huma.Register(api, cron, h.RunScanHandler)

	huma.Register(api, huma.Operation{
		OperationID: "get-schedule-stats",
		Method:      http.MethodGet,
		Path:        "/notifications/schedule/stats",
		Summary:     "Summarise routines that can produce reminders",
	}, h.ScheduleStatsHandler)

	huma.Register(api, huma.Operation{
		OperationID: "trigger-notification",
		Method:      http.MethodPost,
		Path:        "/notifications/trigger",
		Summary:     "Send one routine notification now",
	}, h.TriggerHandler)

	huma.Register(api, huma.Operation{
		OperationID: "trigger-routine-notifications",
		Method:      http.MethodPost,
		Path:        "/routines/{routineId}/notifications/trigger",
		Summary:     "Send every enabled notification of a routine now",
	}, h.TriggerAllHandler)

	huma.Register(api, huma.Operation{
		OperationID: "list-notification-logs",
		Method:      http.MethodGet,
		Path:        "/notification-logs",
		Summary:     "List recent notification deliveries",
	}, h.ListLogsHandler)

	// --- Template Routes ---
	huma.Register(api, huma.Operation{
		OperationID: "list-notification-templates",
		Method:      http.MethodGet,
		Path:        "/notification-templates",
		Summary:     "List notification templates",
	}, h.ListTemplatesHandler)

	huma.Register(api, huma.Operation{
		OperationID:   "create-notification-template",
		Method:        http.MethodPost,
		Path:          "/notification-templates",
		Summary:       "Create a notification template",
		DefaultStatus: http.StatusCreated,
	}, h.CreateTemplateHandler)

	huma.Register(api, huma.Operation{
		OperationID: "validate-notification-template",
		Method:      http.MethodPost,
		Path:        "/notification-templates/validate",
		Summary:     "Check template variables against a body and subject",
	}, h.ValidateTemplateHandler)

	huma.Register(api, huma.Operation{
		OperationID: "get-notification-template-by-name",
		Method:      http.MethodGet,
		Path:        "/notification-templates/by-name/{name}",
		Summary:     "Get a notification template by name",
	}, h.GetTemplateByNameHandler)

	huma.Register(api, huma.Operation{
		OperationID: "get-default-notification-template",
		Method:      http.MethodGet,
		Path:        "/notification-templates/default/{type}",
		Summary:     "Get the default template for a notification type",
	}, h.GetDefaultTemplateHandler)

	huma.Register(api, huma.Operation{
		OperationID: "get-notification-template",
		Method:      http.MethodGet,
		Path:        "/notification-templates/{id}",
		Summary:     "Get a notification template",
	}, h.GetTemplateHandler)

	huma.Register(api, huma.Operation{
		OperationID: "update-notification-template",
		Method:      http.MethodPatch,
		Path:        "/notification-templates/{id}",
		Summary:     "Update a notification template",
	}, h.UpdateTemplateHandler)

	huma.Register(api, huma.Operation{
		OperationID:   "delete-notification-template",
		Method:        http.MethodDelete,
		Path:          "/notification-templates/{id}",
		Summary:       "Delete an unused notification template",
		DefaultStatus: http.StatusNoContent,
	}, h.DeleteTemplateHandler)

	huma.Register(api, huma.Operation{
		OperationID:   "duplicate-notification-template",
		Method:        http.MethodPost,
		Path:          "/notification-templates/{id}/duplicate",
		Summary:       "Copy a notification template under a new name",
		DefaultStatus: http.StatusCreated,
	}, h.DuplicateTemplateHandler)

	huma.Register(api, huma.Operation{
		OperationID: "get-notification-template-variables",
		Method:      http.MethodGet,
		Path:        "/notification-templates/{id}/variables",
		Summary:     "List the variables a template needs",
	}, h.TemplateVariablesHandler)

	// --- Preference Routes ---
	huma.Register(api, huma.Operation{
		OperationID: "list-notification-preferences",
		Method:      http.MethodGet,
		Path:        "/notification-preferences",
		Summary:     "List every notification preference",
	}, h.ListPreferencesHandler)

	huma.Register(api, huma.Operation{
		OperationID: "list-routine-notification-preferences",
		Method:      http.MethodGet,
		Path:        "/routines/{routineId}/notification-preferences",
		Summary:     "List the notification preferences of a routine",
	}, h.ListRoutinePreferencesHandler)

	huma.Register(api, huma.Operation{
		OperationID: "get-notification-preference",
		Method:      http.MethodGet,
		Path:        "/routines/{routineId}/notification-preferences/{type}",
		Summary:     "Get a routine's preference for one notification type",
	}, h.GetPreferenceHandler)

	huma.Register(api, huma.Operation{
		OperationID: "upsert-notification-preference",
		Method:      http.MethodPut,
		Path:        "/routines/{routineId}/notification-preferences/{type}",
		Summary:     "Create or replace a routine's notification preference",
	}, h.UpsertPreferenceHandler)

	huma.Register(api, huma.Operation{
		OperationID:   "delete-notification-preference",
		Method:        http.MethodDelete,
		Path:          "/routines/{routineId}/notification-preferences/{type}",
		Summary:       "Delete a routine's notification preference",
		DefaultStatus: http.StatusNoContent,
	}, h.DeletePreferenceHandler)

	huma.Register(api, huma.Operation{
		OperationID: "toggle-notification-preference",
		Method:      http.MethodPost,
		Path:        "/routines/{routineId}/notification-preferences/{type}/toggle",
		Summary:     "Enable or disable a routine's notification preference",
	}, h.TogglePreferenceHandler)
}
