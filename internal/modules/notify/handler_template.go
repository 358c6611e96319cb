package notify

import (
	"context"

	"github.com/delordemm1/routine-notifier/internal/httpx"
	"github.com/delordemm1/routine-notifier/internal/notification"
	"github.com/delordemm1/routine-notifier/internal/notification/templates"
	"github.com/delordemm1/routine-notifier/internal/validation"
)

// --- DTOs ---

type TemplateIDPath struct {
	ID int64 `path:"id"`
}

type TemplateResponse struct {
	Body *Template
}

type ListTemplatesRequest struct {
	Type string `query:"type" enum:"email,sms"`
}

type ListTemplatesResponse struct {
	Body struct {
		Templates []Template `json:"templates"`
	}
}

type GetTemplateByNameRequest struct {
	Name string `path:"name"`
}

type GetDefaultTemplateRequest struct {
	Type string `path:"type" enum:"email,sms"`
}

// CreateTemplateRequest defines a new template. Keys default to the
// placeholders found in body and subject.
type CreateTemplateRequest struct {
	Body struct {
		Name        string   `json:"name" validate:"required,max=100"`
		Description *string  `json:"description,omitempty"`
		Type        string   `json:"type" validate:"required,oneof=email sms"`
		Subject     *string  `json:"subject,omitempty"`
		Body        string   `json:"body" validate:"required"`
		Keys        []string `json:"keys,omitempty"`
		IsDefault   bool     `json:"isDefault,omitempty"`
	}
}

type UpdateTemplateRequest struct {
	ID   int64 `path:"id"`
	Body struct {
		Name        *string  `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
		Description *string  `json:"description,omitempty"`
		Type        *string  `json:"type,omitempty" validate:"omitempty,oneof=email sms"`
		Subject     *string  `json:"subject,omitempty"`
		Body        *string  `json:"body,omitempty" validate:"omitempty,min=1"`
		Keys        []string `json:"keys,omitempty"`
		IsDefault   *bool    `json:"isDefault,omitempty"`
	}
}

type DuplicateTemplateRequest struct {
	ID   int64 `path:"id"`
	Body struct {
		Name string `json:"name" validate:"required,max=100"`
	}
}

type TemplateVariablesResponse struct {
	Body struct {
		Variables []string `json:"variables"`
	}
}

type ValidateTemplateRequest struct {
	Body struct {
		Body      string            `json:"body" validate:"required"`
		Subject   *string           `json:"subject,omitempty"`
		Variables map[string]string `json:"variables,omitempty"`
	}
}

type ValidateTemplateResponse struct {
	Body templates.Validation
}

// --- Handlers ---

func (h *Handler) ListTemplatesHandler(ctx context.Context, input *ListTemplatesRequest) (*ListTemplatesResponse, error) {
	var typ *notification.Channel
	if input.Type != "" {
		c := notification.Channel(input.Type)
		typ = &c
	}
	list, err := h.service.ListTemplates(ctx, typ)
	if err != nil {
		h.logger.Error("failed to list notification templates", "error", err)
		return nil, httpx.ToProblem(ctx, err)
	}
	resp := &ListTemplatesResponse{}
	resp.Body.Templates = list
	if resp.Body.Templates == nil {
		resp.Body.Templates = []Template{}
	}
	return resp, nil
}

func (h *Handler) GetTemplateHandler(ctx context.Context, input *TemplateIDPath) (*TemplateResponse, error) {
	t, err := h.service.GetTemplate(ctx, input.ID)
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}
	return &TemplateResponse{Body: t}, nil
}

func (h *Handler) GetTemplateByNameHandler(ctx context.Context, input *GetTemplateByNameRequest) (*TemplateResponse, error) {
	t, err := h.service.GetTemplateByName(ctx, input.Name)
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}
	return &TemplateResponse{Body: t}, nil
}

func (h *Handler) GetDefaultTemplateHandler(ctx context.Context, input *GetDefaultTemplateRequest) (*TemplateResponse, error) {
	t, err := h.service.GetDefaultTemplate(ctx, notification.Channel(input.Type))
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}
	return &TemplateResponse{Body: t}, nil
}

// CreateTemplateHandler stores a new template and, when it is marked default,
// demotes the previous default of its type.
func (h *Handler) CreateTemplateHandler(ctx context.Context, input *CreateTemplateRequest) (*TemplateResponse, error) {
	if verr := validation.ValidateStruct(&input.Body); verr != nil {
		return nil, httpx.ToProblem(ctx, verr)
	}
	h.logger.Info("handling create template request", "name", input.Body.Name, "type", input.Body.Type)

	t, err := h.service.CreateTemplate(ctx, TemplateInput{
		Name:        input.Body.Name,
		Description: input.Body.Description,
		Type:        notification.Channel(input.Body.Type),
		Subject:     input.Body.Subject,
		Body:        input.Body.Body,
		Keys:        input.Body.Keys,
		IsDefault:   input.Body.IsDefault,
	})
	if err != nil {
		h.logger.Error("failed to create notification template", "error", err)
		return nil, httpx.ToProblem(ctx, err)
	}
	return &TemplateResponse{Body: t}, nil
}

func (h *Handler) UpdateTemplateHandler(ctx context.Context, input *UpdateTemplateRequest) (*TemplateResponse, error) {
	if verr := validation.ValidateStruct(&input.Body); verr != nil {
		return nil, httpx.ToProblem(ctx, verr)
	}

	patch := TemplatePatch{
		Name:        input.Body.Name,
		Description: input.Body.Description,
		Subject:     input.Body.Subject,
		Body:        input.Body.Body,
		Keys:        input.Body.Keys,
		IsDefault:   input.Body.IsDefault,
	}
	if input.Body.Type != nil {
		c := notification.Channel(*input.Body.Type)
		patch.Type = &c
	}

	t, err := h.service.UpdateTemplate(ctx, input.ID, patch)
	if err != nil {
		h.logger.Error("failed to update notification template", "template_id", input.ID, "error", err)
		return nil, httpx.ToProblem(ctx, err)
	}
	return &TemplateResponse{Body: t}, nil
}

func (h *Handler) DeleteTemplateHandler(ctx context.Context, input *TemplateIDPath) (*struct{}, error) {
	if err := h.service.DeleteTemplate(ctx, input.ID); err != nil {
		h.logger.Warn("failed to delete notification template", "template_id", input.ID, "error", err)
		return nil, httpx.ToProblem(ctx, err)
	}
	return &struct{}{}, nil
}

func (h *Handler) DuplicateTemplateHandler(ctx context.Context, input *DuplicateTemplateRequest) (*TemplateResponse, error) {
	if verr := validation.ValidateStruct(&input.Body); verr != nil {
		return nil, httpx.ToProblem(ctx, verr)
	}
	t, err := h.service.DuplicateTemplate(ctx, input.ID, input.Body.Name)
	if err != nil {
		h.logger.Error("failed to duplicate notification template", "template_id", input.ID, "error", err)
		return nil, httpx.ToProblem(ctx, err)
	}
	return &TemplateResponse{Body: t}, nil
}

func (h *Handler) TemplateVariablesHandler(ctx context.Context, input *TemplateIDPath) (*TemplateVariablesResponse, error) {
	keys, err := h.service.TemplateVariables(ctx, input.ID)
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}
	resp := &TemplateVariablesResponse{}
	resp.Body.Variables = keys
	if resp.Body.Variables == nil {
		resp.Body.Variables = []string{}
	}
	return resp, nil
}

// ValidateTemplateHandler reports which placeholders of a draft template the
// given variables leave unresolved.
func (h *Handler) ValidateTemplateHandler(ctx context.Context, input *ValidateTemplateRequest) (*ValidateTemplateResponse, error) {
	if verr := validation.ValidateStruct(&input.Body); verr != nil {
		return nil, httpx.ToProblem(ctx, verr)
	}
	v := h.service.ValidateVariables(input.Body.Body, input.Body.Subject, input.Body.Variables)
	return &ValidateTemplateResponse{Body: v}, nil
}
