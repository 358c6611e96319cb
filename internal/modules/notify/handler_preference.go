package notify

import (
	"context"

	"github.com/delordemm1/routine-notifier/internal/httpx"
	"github.com/delordemm1/routine-notifier/internal/notification"
	"github.com/delordemm1/routine-notifier/internal/validation"
)

// --- DTOs ---

type RoutinePath struct {
	RoutineID int64 `path:"routineId"`
}

type PreferencePath struct {
	RoutineID int64  `path:"routineId"`
	Type      string `path:"type" enum:"email,sms"`
}

type PreferenceResponse struct {
	Body *Preference
}

type ListPreferencesResponse struct {
	Body struct {
		Preferences []Preference `json:"preferences"`
	}
}

// UpsertPreferenceRequest replaces a routine's preference for one type.
// Enabled defaults to true.
type UpsertPreferenceRequest struct {
	RoutineID int64  `path:"routineId"`
	Type      string `path:"type" enum:"email,sms"`
	Body      struct {
		Recipient  string `json:"recipient" validate:"required"`
		TemplateID *int64 `json:"templateId,omitempty" validate:"omitempty,gt=0"`
		Enabled    *bool  `json:"enabled,omitempty"`
	}
}

func toPreferenceList(prefs []Preference) *ListPreferencesResponse {
	resp := &ListPreferencesResponse{}
	resp.Body.Preferences = prefs
	if resp.Body.Preferences == nil {
		resp.Body.Preferences = []Preference{}
	}
	return resp
}

// --- Handlers ---

func (h *Handler) ListPreferencesHandler(ctx context.Context, input *struct{}) (*ListPreferencesResponse, error) {
	prefs, err := h.service.ListPreferences(ctx)
	if err != nil {
		h.logger.Error("failed to list notification preferences", "error", err)
		return nil, httpx.ToProblem(ctx, err)
	}
	return toPreferenceList(prefs), nil
}

func (h *Handler) ListRoutinePreferencesHandler(ctx context.Context, input *RoutinePath) (*ListPreferencesResponse, error) {
	prefs, err := h.service.ListRoutinePreferences(ctx, input.RoutineID)
	if err != nil {
		h.logger.Error("failed to list routine preferences", "routine_id", input.RoutineID, "error", err)
		return nil, httpx.ToProblem(ctx, err)
	}
	return toPreferenceList(prefs), nil
}

func (h *Handler) GetPreferenceHandler(ctx context.Context, input *PreferencePath) (*PreferenceResponse, error) {
	p, err := h.service.GetPreference(ctx, input.RoutineID, notification.Channel(input.Type))
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}
	return &PreferenceResponse{Body: p}, nil
}

// UpsertPreferenceHandler validates the recipient against the channel before saving.
func (h *Handler) UpsertPreferenceHandler(ctx context.Context, input *UpsertPreferenceRequest) (*PreferenceResponse, error) {
	if verr := validation.ValidateStruct(&input.Body); verr != nil {
		return nil, httpx.ToProblem(ctx, verr)
	}
	h.logger.Info("handling upsert preference request", "routine_id", input.RoutineID, "type", input.Type)

	p, err := h.service.UpsertPreference(ctx, input.RoutineID, notification.Channel(input.Type), PreferenceInput{
		Recipient:  input.Body.Recipient,
		TemplateID: input.Body.TemplateID,
		Enabled:    input.Body.Enabled,
	})
	if err != nil {
		h.logger.Warn("failed to save notification preference", "routine_id", input.RoutineID, "error", err)
		return nil, httpx.ToProblem(ctx, err)
	}
	return &PreferenceResponse{Body: p}, nil
}

func (h *Handler) DeletePreferenceHandler(ctx context.Context, input *PreferencePath) (*struct{}, error) {
	if err := h.service.DeletePreference(ctx, input.RoutineID, notification.Channel(input.Type)); err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}
	return &struct{}{}, nil
}

func (h *Handler) TogglePreferenceHandler(ctx context.Context, input *PreferencePath) (*PreferenceResponse, error) {
	p, err := h.service.TogglePreference(ctx, input.RoutineID, notification.Channel(input.Type))
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}
	return &PreferenceResponse{Body: p}, nil
}
