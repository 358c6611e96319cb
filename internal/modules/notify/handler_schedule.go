package notify

import (
	"context"

	"github.com/delordemm1/routine-notifier/internal/httpx"
	"github.com/delordemm1/routine-notifier/internal/notification"
	"github.com/delordemm1/routine-notifier/internal/validation"
)

// --- DTOs ---

type RunScanResponse struct {
	Body struct {
		Success        bool   `json:"success"`
		Message        string `json:"message"`
		TriggeredCount int    `json:"triggeredCount"`
		Checked        int    `json:"checked"`
		Due            int    `json:"due"`
		Duplicates     int    `json:"duplicates"`
	}
}

type ScheduleStatsResponse struct {
	Body *ScheduleStats
}

// TriggerRequestDTO asks for one notification outside the schedule.
type TriggerRequestDTO struct {
	Body struct {
		RoutineID     int64             `json:"routineId" validate:"required,gt=0"`
		Type          string            `json:"type" validate:"required,oneof=email sms"`
		Recipient     string            `json:"recipient,omitempty"`
		Variables     map[string]string `json:"variables,omitempty"`
		MinutesBefore *int              `json:"minutesBefore,omitempty" validate:"omitempty,gte=0"`
	}
}

type TriggerResponse struct {
	Body *TriggerResult
}

type TriggerAllRequest struct {
	RoutineID int64 `path:"routineId"`
	Body      struct {
		Variables map[string]string `json:"variables,omitempty"`
	} `required:"false"`
}

type TriggerAllResponse struct {
	Body struct {
		Results []TriggerResult `json:"results"`
	}
}

type ListLogsRequest struct {
	RoutineID int64  `query:"routineId"`
	Status    string `query:"status" enum:"pending,sent,failed"`
	Limit     int    `query:"limit" minimum:"0" maximum:"500"`
}

type ListLogsResponse struct {
	Body struct {
		Logs []Log `json:"logs"`
	}
}

// --- Handlers ---

// RunScanHandler runs one notification scan. Cron services call it every minute.
func (h *Handler) RunScanHandler(ctx context.Context, input *struct{}) (*RunScanResponse, error) {
	res, err := h.scanner.Scan(ctx)
	if err != nil {
		h.logger.Error("notification scan failed", "error", err)
		return nil, httpx.ToProblem(ctx, err)
	}

	resp := &RunScanResponse{}
	resp.Body.Success = true
	resp.Body.Message = "Notification check completed"
	resp.Body.TriggeredCount = res.TriggeredCount
	resp.Body.Checked = res.Checked
	resp.Body.Due = res.Due
	resp.Body.Duplicates = res.Duplicates
	return resp, nil
}

func (h *Handler) ScheduleStatsHandler(ctx context.Context, input *struct{}) (*ScheduleStatsResponse, error) {
	st, err := h.scanner.Stats(ctx)
	if err != nil {
		h.logger.Error("failed to load schedule stats", "error", err)
		return nil, httpx.ToProblem(ctx, err)
	}
	return &ScheduleStatsResponse{Body: st}, nil
}

// TriggerHandler sends one notification immediately. A failed publish is
// reported as a problem that carries the log id.
func (h *Handler) TriggerHandler(ctx context.Context, input *TriggerRequestDTO) (*TriggerResponse, error) {
	if verr := validation.ValidateStruct(&input.Body); verr != nil {
		return nil, httpx.ToProblem(ctx, verr)
	}
	h.logger.Info("handling notification trigger", "routine_id", input.Body.RoutineID, "type", input.Body.Type)

	res, err := h.dispatcher.Trigger(ctx, TriggerRequest{
		RoutineID:     input.Body.RoutineID,
		Type:          notification.Channel(input.Body.Type),
		Recipient:     input.Body.Recipient,
		Variables:     input.Body.Variables,
		MinutesBefore: input.Body.MinutesBefore,
	})
	if err != nil {
		h.logger.Error("notification trigger failed", "routine_id", input.Body.RoutineID, "error", err)
		return nil, httpx.ToProblem(ctx, err)
	}
	return &TriggerResponse{Body: res}, nil
}

func (h *Handler) TriggerAllHandler(ctx context.Context, input *TriggerAllRequest) (*TriggerAllResponse, error) {
	results, err := h.dispatcher.TriggerAll(ctx, input.RoutineID, input.Body.Variables)
	if err != nil {
		h.logger.Error("routine notification trigger failed", "routine_id", input.RoutineID, "error", err)
		return nil, httpx.ToProblem(ctx, err)
	}
	resp := &TriggerAllResponse{}
	resp.Body.Results = results
	if resp.Body.Results == nil {
		resp.Body.Results = []TriggerResult{}
	}
	return resp, nil
}

func (h *Handler) ListLogsHandler(ctx context.Context, input *ListLogsRequest) (*ListLogsResponse, error) {
	var filter LogFilter
	if input.RoutineID > 0 {
		filter.RoutineID = &input.RoutineID
	}
	if input.Status != "" {
		st := LogStatus(input.Status)
		filter.Status = &st
	}
	filter.Limit = input.Limit

	logs, err := h.service.ListLogs(ctx, filter)
	if err != nil {
		h.logger.Error("failed to list notification logs", "error", err)
		return nil, httpx.ToProblem(ctx, err)
	}
	resp := &ListLogsResponse{}
	resp.Body.Logs = logs
	if resp.Body.Logs == nil {
		resp.Body.Logs = []Log{}
	}
	return resp, nil
}
