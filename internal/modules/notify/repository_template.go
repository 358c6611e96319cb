package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"github.com/delordemm1/routine-notifier/internal/database"
	"github.com/delordemm1/routine-notifier/internal/notification"
)

var templateColumns = []string{"id", "name", "description", "type", "subject", "body", "keys", "is_default", "created_at", "updated_at"}

// unsetDefaults clears the default flag on every other template of typ.
func (r *repository) unsetDefaults(ctx context.Context, tx pgx.Tx, typ notification.Channel, exceptID int64) error {
	q := r.psql.Update(tableTemplates).
		Set("is_default", false).
		Set("updated_at", r.now()).
		Where(squirrel.Eq{"type": string(typ), "is_default": true})
	if exceptID != 0 {
		q = q.Where(squirrel.NotEq{"id": exceptID})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("unset default templates: %w", err)
	}
	return nil
}

func templateWriteError(err error) error {
	if code, _ := pgCode(err); code == pgUniqueViolation {
		return ErrTemplateNameTaken.WithCause(err)
	}
	return err
}

// CreateTemplate inserts t. When t is the default for its type, any previous
// default is cleared in the same transaction.
func (r *repository) CreateTemplate(ctx context.Context, t *Template) error {
	now := r.now()
	t.CreatedAt, t.UpdatedAt = now, now

	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if t.IsDefault {
			if err := r.unsetDefaults(ctx, tx, t.Type, 0); err != nil {
				return err
			}
		}

		query, args, err := r.psql.Insert(tableTemplates).
			Columns("name", "description", "type", "subject", "body", "keys", "is_default", "created_at", "updated_at").
			Values(t.Name, t.Description, string(t.Type), t.Subject, t.Body, t.Keys, t.IsDefault, t.CreatedAt, t.UpdatedAt).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, query, args...).Scan(&t.ID); err != nil {
			return templateWriteError(err)
		}
		return nil
	})
}

// UpdateTemplate overwrites every column of the stored template with t.
func (r *repository) UpdateTemplate(ctx context.Context, t *Template) error {
	t.UpdatedAt = r.now()

	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if t.IsDefault {
			if err := r.unsetDefaults(ctx, tx, t.Type, t.ID); err != nil {
				return err
			}
		}

		query, args, err := r.psql.Update(tableTemplates).
			Set("name", t.Name).
			Set("description", t.Description).
			Set("type", string(t.Type)).
			Set("subject", t.Subject).
			Set("body", t.Body).
			Set("keys", t.Keys).
			Set("is_default", t.IsDefault).
			Set("updated_at", t.UpdatedAt).
			Where(squirrel.Eq{"id": t.ID}).
			ToSql()
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return templateWriteError(err)
		}
		if tag.RowsAffected() == 0 {
			return ErrTemplateNotFound
		}
		return nil
	})
}

// DeleteTemplate removes a template that no preference references.
func (r *repository) DeleteTemplate(ctx context.Context, id int64) error {
	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		query, args, err := r.psql.Select("COUNT(*)").
			From(tablePreferences).
			Where(squirrel.Eq{"template_id": id}).
			ToSql()
		if err != nil {
			return err
		}
		var refs int
		if err := tx.QueryRow(ctx, query, args...).Scan(&refs); err != nil {
			return fmt.Errorf("count template references: %w", err)
		}
		if refs > 0 {
			return ErrTemplateInUse.WithContext(map[string]any{"preferences": refs})
		}

		query, args, err = r.psql.Delete(tableTemplates).Where(squirrel.Eq{"id": id}).ToSql()
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			if code, _ := pgCode(err); code == pgForeignKeyViolation {
				return ErrTemplateInUse.WithCause(err)
			}
			return fmt.Errorf("delete template %d: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return ErrTemplateNotFound
		}
		return nil
	})
}

func (r *repository) getTemplate(ctx context.Context, where squirrel.Sqlizer) (*Template, error) {
	query, args, err := r.psql.Select(templateColumns...).
		From(tableTemplates).
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}

	var t Template
	if err := pgxscan.Get(ctx, r.db, &t, query, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTemplateNotFound.WithCause(err)
		}
		return nil, err
	}
	return &t, nil
}

func (r *repository) FindTemplateByID(ctx context.Context, id int64) (*Template, error) {
	return r.getTemplate(ctx, squirrel.Eq{"id": id})
}

func (r *repository) FindTemplateByName(ctx context.Context, name string) (*Template, error) {
	return r.getTemplate(ctx, squirrel.Eq{"name": name})
}

// FindDefaultTemplate returns ErrTemplateNotFound when typ has no default.
func (r *repository) FindDefaultTemplate(ctx context.Context, typ notification.Channel) (*Template, error) {
	return r.getTemplate(ctx, squirrel.Eq{"type": string(typ), "is_default": true})
}

func (r *repository) FindTemplatesByIDs(ctx context.Context, ids []int64) ([]Template, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := r.psql.Select(templateColumns...).
		From(tableTemplates).
		Where(squirrel.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var out []Template
	if err := pgxscan.Select(ctx, r.db, &out, query, args...); err != nil {
		return nil, fmt.Errorf("find templates: %w", err)
	}
	return out, nil
}

// ListTemplates returns templates ordered by name, optionally restricted to one type.
func (r *repository) ListTemplates(ctx context.Context, typ *notification.Channel) ([]Template, error) {
	q := r.psql.Select(templateColumns...).From(tableTemplates)
	if typ != nil {
		q = q.Where(squirrel.Eq{"type": string(*typ)})
	}
	query, args, err := q.OrderBy("name ASC").ToSql()
	if err != nil {
		return nil, err
	}

	var out []Template
	if err := pgxscan.Select(ctx, r.db, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return out, nil
}
