package deck

import (
	"context"

	"github.com/Masterminds/squirrel"

	apperrors "github.com/arunsworth/cardbox/internal/errors"
	"github.com/arunsworth/cardbox/internal/logger"
	"github.com/arunsworth/cardbox/internal/models"
)

// Bulk mutations append one event per affected card with a single
// INSERT ... SELECT statement, so each batch is all-or-nothing. Cards
// already in the target state are skipped: a no-op event would pollute the
// histories that scheduling and auditing replay.

// SetVisibility moves every card in the view to the given visibility state
// and returns how many cards changed.
func (v *View) SetVisibility(ctx context.Context, state string) (int64, error) {
	if !models.ValidVisibility(state) {
		return 0, apperrors.NewValidationError("visibility", "must be visible, deleted or purged")
	}

	sel := v.where(sqlBuilder.Select("id").
		Column(squirrel.Expr("?", state)).
		Column(squirrel.Expr("?", float64(v.eng.now()))).
		From("cards")).
		Where(squirrel.NotEq{"visibility": state})

	return v.bulkInsert(ctx, "INSERT INTO edits (card_id, visibility, date) ", sel, "set visibility")
}

// Postpone shifts every card's due date by days (negative brings cards
// forward). Zero days is a no-op.
func (v *View) Postpone(ctx context.Context, days int) (int64, error) {
	if days == 0 {
		return 0, nil
	}

	sel := v.where(sqlBuilder.Select("id").
		Column(squirrel.Expr("due_date + ?", float64(days))).
		Column(squirrel.Expr("?", float64(v.eng.now()))).
		From("cards"))

	return v.bulkInsert(ctx, "INSERT INTO edits (card_id, due_date, date) ", sel, "postpone")
}

// Tag attaches the tag to every card in the view that does not already
// carry it.
func (v *View) Tag(ctx context.Context, tag string) (int64, error) {
	if tag == "" {
		return 0, apperrors.NewValidationError("tag", "must not be empty")
	}

	sel := v.where(sqlBuilder.Select("id").
		Column(squirrel.Expr("?", tag)).
		Column("1").
		Column(squirrel.Expr("?", float64(v.eng.now()))).
		From("cards")).
		Where(not{cond: tagExists(tag)})

	return v.bulkInsert(ctx, "INSERT INTO tag_edits (card_id, tag, active, date) ", sel, "bulk tag")
}

// RemoveTag detaches the tag from every card in the view that carries it.
func (v *View) RemoveTag(ctx context.Context, tag string) (int64, error) {
	if tag == "" {
		return 0, apperrors.NewValidationError("tag", "must not be empty")
	}

	sel := v.where(sqlBuilder.Select("id").
		Column(squirrel.Expr("?", tag)).
		Column("0").
		Column(squirrel.Expr("?", float64(v.eng.now()))).
		From("cards")).
		Where(tagExists(tag))

	return v.bulkInsert(ctx, "INSERT INTO tag_edits (card_id, tag, active, date) ", sel, "bulk untag")
}

func (v *View) bulkInsert(ctx context.Context, insert string, sel squirrel.SelectBuilder, op string) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("deck")

	query, args, err := sel.ToSql()
	if err != nil {
		return 0, apperrors.NewStoreError("build "+op+" query", err)
	}
	res, err := v.eng.db.ExecContext(ctx, insert+query, args...)
	if err != nil {
		log.Error("%s failed: %v", op, err)
		return 0, apperrors.NewStoreError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.NewStoreError(op, err)
	}
	if n > 0 && v.eng.invalidate != nil {
		v.eng.invalidate()
	}
	log.Info("%s: deck=%s, affected=%d", op, v.name, n)
	return n, nil
}
