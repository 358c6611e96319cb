package notify

import (
	"context"
	"strings"

	"github.com/delordemm1/routine-notifier/internal/notification"
	"github.com/delordemm1/routine-notifier/internal/notification/templates"
)

// TemplateInput is the full set of fields for a new template.
type TemplateInput struct {
	Name        string
	Description *string
	Type        notification.Channel
	Subject     *string
	Body        string
	Keys        []string
	IsDefault   bool
}

// TemplatePatch changes only the non-nil fields of a template.
type TemplatePatch struct {
	Name        *string
	Description *string
	Type        *notification.Channel
	Subject     *string
	Body        *string
	Keys        []string
	IsDefault   *bool
}

// normalizeTemplate enforces the template invariants before any write.
// Email templates need a subject; sms templates never keep one.
// Keys default to the placeholders found in body and subject.
func normalizeTemplate(t *Template, keysGiven bool) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return ErrInvalidTemplate.WithDetail("name is required")
	}
	if !t.Type.Valid() {
		return ErrInvalidChannel
	}
	if strings.TrimSpace(t.Body) == "" {
		return ErrInvalidTemplate.WithDetail("body is required")
	}
	if t.Type == notification.ChannelSMS || (t.Subject != nil && strings.TrimSpace(*t.Subject) == "") {
		t.Subject = nil
	}
	if t.Type == notification.ChannelEmail && t.Subject == nil {
		return ErrInvalidTemplate.WithDetail("subject is required for email templates")
	}
	if !keysGiven || len(t.Keys) == 0 {
		t.Keys = templates.RequiredKeys(t.Body, t.Subject)
	}
	return nil
}

func (s *service) GetTemplate(ctx context.Context, id int64) (*Template, error) {
	return s.repo.FindTemplateByID(ctx, id)
}

func (s *service) GetTemplateByName(ctx context.Context, name string) (*Template, error) {
	return s.repo.FindTemplateByName(ctx, name)
}

func (s *service) ListTemplates(ctx context.Context, typ *notification.Channel) ([]Template, error) {
	if typ != nil && !typ.Valid() {
		return nil, ErrInvalidChannel
	}
	return s.repo.ListTemplates(ctx, typ)
}

func (s *service) GetDefaultTemplate(ctx context.Context, typ notification.Channel) (*Template, error) {
	if !typ.Valid() {
		return nil, ErrInvalidChannel
	}
	return s.repo.FindDefaultTemplate(ctx, typ)
}

// CreateTemplate stores a new template. Marking it default clears the
// previous default of the same type.
func (s *service) CreateTemplate(ctx context.Context, in TemplateInput) (*Template, error) {
	t := &Template{
		Name:        in.Name,
		Description: in.Description,
		Type:        in.Type,
		Subject:     in.Subject,
		Body:        in.Body,
		Keys:        in.Keys,
		IsDefault:   in.IsDefault,
	}
	if err := normalizeTemplate(t, len(in.Keys) > 0); err != nil {
		return nil, err
	}
	if err := s.repo.CreateTemplate(ctx, t); err != nil {
		return nil, err
	}
	s.logger.Info("notification template created", "template_id", t.ID, "type", t.Type, "is_default", t.IsDefault)
	return t, nil
}

// UpdateTemplate applies a partial update. When body or subject change and no
// keys are supplied, keys are recomputed.
func (s *service) UpdateTemplate(ctx context.Context, id int64, in TemplatePatch) (*Template, error) {
	t, err := s.repo.FindTemplateByID(ctx, id)
	if err != nil {
		return nil, err
	}

	contentChanged := false
	if in.Name != nil {
		t.Name = *in.Name
	}
	if in.Description != nil {
		t.Description = in.Description
	}
	if in.Type != nil {
		t.Type = *in.Type
		contentChanged = true
	}
	if in.Subject != nil {
		t.Subject = in.Subject
		contentChanged = true
	}
	if in.Body != nil {
		t.Body = *in.Body
		contentChanged = true
	}
	if in.IsDefault != nil {
		t.IsDefault = *in.IsDefault
	}

	keysGiven := len(t.Keys) > 0 && !contentChanged
	if in.Keys != nil {
		t.Keys = in.Keys
		keysGiven = true
	}
	if err := normalizeTemplate(t, keysGiven); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateTemplate(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// DeleteTemplate fails with ErrTemplateInUse while any preference references the template.
func (s *service) DeleteTemplate(ctx context.Context, id int64) error {
	if err := s.repo.DeleteTemplate(ctx, id); err != nil {
		return err
	}
	s.logger.Info("notification template deleted", "template_id", id)
	return nil
}

// DuplicateTemplate copies a template under a new name. Copies are never default.
func (s *service) DuplicateTemplate(ctx context.Context, id int64, newName string) (*Template, error) {
	orig, err := s.repo.FindTemplateByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dup := &Template{
		Name:        newName,
		Description: orig.Description,
		Type:        orig.Type,
		Subject:     orig.Subject,
		Body:        orig.Body,
		Keys:        orig.Keys,
		IsDefault:   false,
	}
	if err := normalizeTemplate(dup, len(orig.Keys) > 0); err != nil {
		return nil, err
	}
	if err := s.repo.CreateTemplate(ctx, dup); err != nil {
		return nil, err
	}
	return dup, nil
}

// TemplateVariables lists the placeholders a caller must supply for the template.
func (s *service) TemplateVariables(ctx context.Context, id int64) ([]string, error) {
	t, err := s.repo.FindTemplateByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return templates.RequiredKeys(t.Body, t.Subject), nil
}

func (s *service) ValidateVariables(body string, subject *string, vars templates.Vars) templates.Validation {
	return templates.Validate(body, subject, vars)
}
