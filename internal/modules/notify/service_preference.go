package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/delordemm1/routine-notifier/internal/modules/routine"
	"github.com/delordemm1/routine-notifier/internal/notification"
	"github.com/delordemm1/routine-notifier/internal/validation"
)

// PreferenceInput is the writable part of a preference. A nil Enabled means enabled.
type PreferenceInput struct {
	Recipient  string
	TemplateID *int64
	Enabled    *bool
}

// validateRecipient checks recipient against the address format of typ.
func validateRecipient(typ notification.Channel, recipient string) error {
	switch typ {
	case notification.ChannelEmail:
		if !strings.Contains(recipient, "@") {
			return ErrInvalidRecipient.WithDetail("Invalid email address")
		}
	case notification.ChannelSMS:
		if !validation.IsPhone(recipient) {
			return ErrInvalidRecipient.WithDetail("Invalid phone number")
		}
	default:
		return ErrInvalidChannel
	}
	return nil
}

func (s *service) requireRoutine(ctx context.Context, routineID int64) error {
	if _, err := s.routines.FindByID(ctx, routineID); err != nil {
		if errors.Is(err, routine.ErrNotFound) {
			return ErrRoutineNotFound.WithCause(err)
		}
		return err
	}
	return nil
}

// attachTemplates loads and attaches each preference's bound template.
func attachTemplates(ctx context.Context, repo Repository, prefs []Preference) error {
	var ids []int64
	for _, p := range prefs {
		if p.TemplateID != nil {
			ids = append(ids, *p.TemplateID)
		}
	}
	tmpls, err := repo.FindTemplatesByIDs(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[int64]*Template, len(tmpls))
	for i := range tmpls {
		byID[tmpls[i].ID] = &tmpls[i]
	}
	for i := range prefs {
		if prefs[i].TemplateID != nil {
			prefs[i].Template = byID[*prefs[i].TemplateID]
		}
	}
	return nil
}

func (s *service) GetPreference(ctx context.Context, routineID int64, typ notification.Channel) (*Preference, error) {
	if !typ.Valid() {
		return nil, ErrInvalidChannel
	}
	p, err := s.repo.FindPreference(ctx, routineID, typ)
	if err != nil {
		return nil, err
	}
	one := []Preference{*p}
	if err := attachTemplates(ctx, s.repo, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

func (s *service) ListRoutinePreferences(ctx context.Context, routineID int64) ([]Preference, error) {
	if err := s.requireRoutine(ctx, routineID); err != nil {
		return nil, err
	}
	prefs, err := s.repo.ListPreferences(ctx, PreferenceFilter{RoutineID: &routineID})
	if err != nil {
		return nil, err
	}
	if err := attachTemplates(ctx, s.repo, prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

func (s *service) ListPreferences(ctx context.Context) ([]Preference, error) {
	prefs, err := s.repo.ListPreferences(ctx, PreferenceFilter{})
	if err != nil {
		return nil, err
	}
	if err := attachTemplates(ctx, s.repo, prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

// UpsertPreference creates or replaces the preference for (routineID, typ)
// after validating the recipient format and that the routine and template exist.
func (s *service) UpsertPreference(ctx context.Context, routineID int64, typ notification.Channel, in PreferenceInput) (*Preference, error) {
	if !typ.Valid() {
		return nil, ErrInvalidChannel
	}
	recipient := strings.TrimSpace(in.Recipient)
	if err := validateRecipient(typ, recipient); err != nil {
		return nil, err
	}
	if err := s.requireRoutine(ctx, routineID); err != nil {
		return nil, err
	}

	var tmpl *Template
	if in.TemplateID != nil {
		t, err := s.repo.FindTemplateByID(ctx, *in.TemplateID)
		if err != nil {
			return nil, err
		}
		tmpl = t
	}

	enabled := true
	if in.Enabled != nil {
		enabled = *in.Enabled
	}

	p := &Preference{
		RoutineID:  routineID,
		Type:       typ,
		Recipient:  recipient,
		TemplateID: in.TemplateID,
		Enabled:    enabled,
	}
	if err := s.repo.UpsertPreference(ctx, p); err != nil {
		return nil, err
	}
	p.Template = tmpl
	s.logger.Info("notification preference saved", "routine_id", routineID, "type", typ, "enabled", enabled)
	return p, nil
}

func (s *service) DeletePreference(ctx context.Context, routineID int64, typ notification.Channel) error {
	if !typ.Valid() {
		return ErrInvalidChannel
	}
	return s.repo.DeletePreference(ctx, routineID, typ)
}

func (s *service) TogglePreference(ctx context.Context, routineID int64, typ notification.Channel) (*Preference, error) {
	if !typ.Valid() {
		return nil, ErrInvalidChannel
	}
	p, err := s.repo.TogglePreference(ctx, routineID, typ)
	if err != nil {
		return nil, err
	}
	s.logger.Info("notification preference toggled", "routine_id", routineID, "type", typ, "enabled", p.Enabled)
	return p, nil
}
