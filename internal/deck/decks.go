package deck

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	apperrors "github.com/arunsworth/cardbox/internal/errors"
	"github.com/arunsworth/cardbox/internal/logger"
	"github.com/arunsworth/cardbox/internal/models"
)

// Named decks persist a view's definition, not its membership: the filter
// parameters and sort criterion are stored as JSON and replayed on open.
// Relative date predicates therefore stay relative, so a deck filtered on
// due_before=-7 keeps tracking "overdue by a week" as time passes.

// Materialize saves the view's definition under name. The base deck name is
// reserved, and names must be unique.
func (v *View) Materialize(ctx context.Context, name string) error {
	log := logger.FromContext(ctx).WithPrefix("deck")

	if name == "" {
		return apperrors.NewValidationError("name", "must not be empty")
	}
	if name == models.BaseDeck {
		return apperrors.NewValidationError("name", `"cards" names the base collection and cannot be redefined`)
	}

	raw, err := json.Marshal(v.spec)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	_, err = v.eng.db.ExecContext(ctx,
		`INSERT INTO decks (name, params) VALUES (?, ?)`, name, string(raw))
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewValidationError("name", "a deck with this name already exists")
		}
		return apperrors.NewStoreError("save deck", err)
	}
	log.Info("deck saved: name=%s", name)
	return nil
}

// Open returns a view for the named deck by replaying its stored
// definition over the base collection. Opening "cards" returns the base
// view itself.
func (e *Engine) Open(ctx context.Context, name string) (*View, error) {
	if name == models.BaseDeck {
		return e.Base(), nil
	}

	var raw string
	err := e.db.QueryRowContext(ctx,
		`SELECT params FROM decks WHERE name = ?`, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("deck", name)
	}
	if err != nil {
		return nil, apperrors.NewStoreError("open deck", err)
	}

	var spec Spec
	if err := json.Unmarshal([]byte(raw), &spec); err != nil {
		return nil, apperrors.NewStoreError("decode deck definition", err)
	}

	v := e.Base()
	for _, p := range spec.Filters {
		nv, guidance, err := v.Filter(p)
		if err != nil {
			return nil, err
		}
		if guidance != nil {
			// An empty stored filter contributes nothing.
			continue
		}
		v = nv
	}
	if spec.Sort != "" {
		if nv, guidance := v.Sort(spec.Sort, spec.Reverse); guidance == nil {
			v = nv
		}
	}
	v.name = name
	return v, nil
}

// Drop deletes the named deck's definition. Cards are untouched.
func (e *Engine) Drop(ctx context.Context, name string) error {
	log := logger.FromContext(ctx).WithPrefix("deck")

	if name == models.BaseDeck {
		return apperrors.NewValidationError("name", "the base collection cannot be dropped")
	}
	res, err := e.db.ExecContext(ctx, `DELETE FROM decks WHERE name = ?`, name)
	if err != nil {
		return apperrors.NewStoreError("drop deck", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewStoreError("drop deck", err)
	}
	if n == 0 {
		return apperrors.NewNotFoundError("deck", name)
	}
	log.Info("deck dropped: name=%s", name)
	return nil
}

// List returns the saved deck names sorted, always starting with the base
// collection.
func (e *Engine) List(ctx context.Context) ([]string, error) {
	rows, err := e.db.QueryContext(ctx, `SELECT name FROM decks ORDER BY name`)
	if err != nil {
		return nil, apperrors.NewStoreError("list decks", err)
	}
	defer rows.Close()

	names := []string{models.BaseDeck}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, apperrors.NewStoreError("scan deck name", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("list decks", err)
	}
	return names, nil
}

func isUniqueViolation(err error) bool {
	// mattn/go-sqlite3 reports constraint failures in the message; matching
	// on the text avoids importing the driver here.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
