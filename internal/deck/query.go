package deck

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"

	apperrors "github.com/arunsworth/cardbox/internal/errors"
)

const defaultIDLimit = 1000

func (v *View) where(q squirrel.SelectBuilder) squirrel.SelectBuilder {
	for _, c := range v.conds {
		q = q.Where(c)
	}
	return q
}

func (v *View) selectIDs() squirrel.SelectBuilder {
	return v.where(sqlBuilder.Select("id").From("cards")).OrderBy(v.order.clause())
}

// Count returns the number of cards in the view.
func (v *View) Count(ctx context.Context) (int, error) {
	query, args, err := v.where(sqlBuilder.Select("COUNT(*)").From("cards")).ToSql()
	if err != nil {
		return 0, apperrors.NewStoreError("build count query", err)
	}
	var n int
	if err := v.eng.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, apperrors.NewStoreError("count cards", err)
	}
	return n, nil
}

// Get returns the id of the nth card in the view's order. Positions start
// at 1.
func (v *View) Get(ctx context.Context, n int) (int64, error) {
	if n < 1 {
		return 0, apperrors.NewValidationError("position", "card positions start at 1")
	}
	query, args, err := v.selectIDs().Limit(1).Offset(uint64(n - 1)).ToSql()
	if err != nil {
		return 0, apperrors.NewStoreError("build get query", err)
	}
	var id int64
	err = v.eng.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperrors.NewNotFoundError("card at position", fmt.Sprintf("%d", n))
	}
	if err != nil {
		return 0, apperrors.NewStoreError("get card", err)
	}
	return id, nil
}

// Slice returns the ids of cards at positions from..to inclusive, 1-based.
// A range starting past the last card is not found, matching Get; a range
// merely ending past it is truncated. An empty view accepts from == 1.
func (v *View) Slice(ctx context.Context, from, to int) ([]int64, error) {
	if from < 1 {
		return nil, apperrors.NewValidationError("from", "card positions start at 1")
	}
	if to < from {
		return nil, apperrors.NewValidationError("to", "must not precede from")
	}
	q := v.selectIDs().Limit(uint64(to - from + 1)).Offset(uint64(from - 1))
	ids, err := v.queryIDs(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 && from > 1 {
		count, err := v.Count(ctx)
		if err != nil {
			return nil, err
		}
		if from > count {
			return nil, apperrors.NewNotFoundError("card at position", fmt.Sprintf("%d", from))
		}
	}
	return ids, nil
}

// IDs returns the view's card ids in order, capped at limit (a non-positive
// limit uses the default cap).
func (v *View) IDs(ctx context.Context, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = defaultIDLimit
	}
	return v.queryIDs(ctx, v.selectIDs().Limit(uint64(limit)))
}

func (v *View) queryIDs(ctx context.Context, q squirrel.SelectBuilder) ([]int64, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, apperrors.NewStoreError("build id query", err)
	}
	rows, err := v.eng.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreError("query card ids", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewStoreError("scan card id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("query card ids", err)
	}
	return ids, nil
}

// Tags returns the distinct tags carried by cards in the view, sorted.
func (v *View) Tags(ctx context.Context) ([]string, error) {
	inner, args, err := v.where(sqlBuilder.Select("id").From("cards")).ToSql()
	if err != nil {
		return nil, apperrors.NewStoreError("build tags query", err)
	}
	query := "SELECT tag FROM tags WHERE card_id IN (" + inner + ") GROUP BY tag ORDER BY tag"

	rows, err := v.eng.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreError("query view tags", err)
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, apperrors.NewStoreError("scan tag", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("query view tags", err)
	}
	return tags, nil
}
