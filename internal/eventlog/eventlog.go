// Package eventlog is the append-only store behind every card. Three
// streams are kept: edits, reviews and tag edits. Records are only ever
// inserted; current values are always resolved by reading the most recent
// matching record, tie-broken by physical append order.
package eventlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/arunsworth/cardbox/internal/daycount"
	"github.com/arunsworth/cardbox/internal/db"
	apperrors "github.com/arunsworth/cardbox/internal/errors"
	"github.com/arunsworth/cardbox/internal/logger"
	"github.com/arunsworth/cardbox/internal/models"
)

var sqlBuilder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

type Store struct {
	db *sql.DB
}

// New creates a Store over an opened database.
func New(sqlDB *sql.DB) *Store {
	return &Store{db: sqlDB}
}

// Edit is one append to the edit stream: any number of attribute values for
// a single card, with an optional timestamp override and seconds-spent
// annotation.
type Edit struct {
	CardID  int64
	Date    daycount.Date // zero means "stamp with now"
	Seconds int
	Fields  map[string]any
}

// NewCard appends a placeholder edit carrying no field changes, allocating
// the next card id and establishing the create date in a single statement.
func (s *Store) NewCard(ctx context.Context, date daycount.Date) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("eventlog")
	if date.IsZero() {
		date = daycount.Now()
	}

	var id int64
	err := db.Tx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO edits (card_id, date)
SELECT COALESCE(MAX(card_id), 0) + 1, ? FROM edits
`, float64(date))
		if err != nil {
			return err
		}
		rowID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, `SELECT card_id FROM edits WHERE id = ?`, rowID).Scan(&id)
	})
	if err != nil {
		log.Error("failed to create card: %v", err)
		return 0, apperrors.NewStoreError("create card", err)
	}
	log.Debug("card created: id=%d", id)
	return id, nil
}

// AppendEdit persists one edit record. The append is a single INSERT, so
// readers never observe a partial edit. Fields must name concrete edit
// columns.
func (s *Store) AppendEdit(ctx context.Context, e Edit) error {
	log := logger.FromContext(ctx).WithPrefix("eventlog")

	row := map[string]interface{}{"card_id": e.CardID}
	if !e.Date.IsZero() {
		row["date"] = float64(e.Date)
	}
	if e.Seconds != 0 {
		row["seconds"] = e.Seconds
	}
	for name, value := range e.Fields {
		if !models.IsEditColumn(name) {
			return apperrors.NewValidationError(name, "not a column of the edit stream")
		}
		if d, ok := value.(daycount.Date); ok {
			value = float64(d)
		}
		row[name] = value
	}

	query, args, err := sqlBuilder.Insert("edits").SetMap(row).ToSql()
	if err != nil {
		return apperrors.NewStoreError("build edit insert", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		log.Error("failed to append edit: card_id=%d: %v", e.CardID, err)
		return apperrors.NewStoreError("append edit", err)
	}
	log.Debug("edit appended: card_id=%d, fields=%d", e.CardID, len(e.Fields))
	return nil
}

// Latest scans the value of the most recent edit touching attr for the given
// card into dest. Records sharing a timestamp are tie-broken by append
// order. Returns false when no edit has ever set the attribute.
func (s *Store) Latest(ctx context.Context, cardID int64, attr string, dest any) (bool, error) {
	if !models.IsEditColumn(attr) {
		return false, apperrors.NewValidationError(attr, "not a column of the edit stream")
	}
	query := fmt.Sprintf(`
SELECT %s FROM edits
WHERE card_id = ? AND %s IS NOT NULL
ORDER BY date DESC, id DESC
LIMIT 1
`, attr, attr)
	err := s.db.QueryRowContext(ctx, query, cardID).Scan(dest)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.NewStoreError("query latest edit", err)
	}
	return true, nil
}

// Exists reports whether the card id has at least one edit event. It is
// visibility-agnostic.
func (s *Store) Exists(ctx context.Context, cardID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM edits WHERE card_id = ?`, cardID).Scan(&n)
	if err != nil {
		return false, apperrors.NewStoreError("check card exists", err)
	}
	return n > 0, nil
}

// FirstEditDate returns the card's create date: the timestamp of its first
// edit.
func (s *Store) FirstEditDate(ctx context.Context, cardID int64) (daycount.Date, bool, error) {
	var d float64
	err := s.db.QueryRowContext(ctx, `
SELECT date FROM edits WHERE card_id = ? ORDER BY date ASC, id ASC LIMIT 1
`, cardID).Scan(&d)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, apperrors.NewStoreError("query create date", err)
	}
	return daycount.Date(d), true, nil
}

// LastEditDate returns the timestamp of the card's most recent edit.
func (s *Store) LastEditDate(ctx context.Context, cardID int64) (daycount.Date, bool, error) {
	return s.maxDate(ctx, "edits", cardID)
}

// LastReviewDate returns the timestamp of the card's most recent review, or
// false when it has never been reviewed.
func (s *Store) LastReviewDate(ctx context.Context, cardID int64) (daycount.Date, bool, error) {
	return s.maxDate(ctx, "reviews", cardID)
}

func (s *Store) maxDate(ctx context.Context, table string, cardID int64) (daycount.Date, bool, error) {
	var d sql.NullFloat64
	query := fmt.Sprintf(`SELECT MAX(date) FROM %s WHERE card_id = ?`, table)
	if err := s.db.QueryRowContext(ctx, query, cardID).Scan(&d); err != nil {
		return 0, false, apperrors.NewStoreError("query max date", err)
	}
	if !d.Valid {
		return 0, false, nil
	}
	return daycount.Date(d.Float64), true, nil
}

// EditSeconds and ReviewSeconds sum the seconds-spent annotations of each
// stream for one card.

func (s *Store) EditSeconds(ctx context.Context, cardID int64) (int64, error) {
	return s.sumSeconds(ctx, "edits", cardID)
}

func (s *Store) ReviewSeconds(ctx context.Context, cardID int64) (int64, error) {
	return s.sumSeconds(ctx, "reviews", cardID)
}

func (s *Store) sumSeconds(ctx context.Context, table string, cardID int64) (int64, error) {
	var n int64
	query := fmt.Sprintf(`SELECT COALESCE(SUM(seconds), 0) FROM %s WHERE card_id = ?`, table)
	if err := s.db.QueryRowContext(ctx, query, cardID).Scan(&n); err != nil {
		return 0, apperrors.NewStoreError("sum seconds", err)
	}
	return n, nil
}

// LogReview appends a review record and the edit persisting its resulting
// due date as one atomic unit.
func (s *Store) LogReview(ctx context.Context, cardID int64, date daycount.Date, grade, seconds int, newDue daycount.Date) error {
	log := logger.FromContext(ctx).WithPrefix("eventlog")
	if date.IsZero() {
		date = daycount.Now()
	}

	err := db.Tx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO reviews (card_id, date, grade, seconds, new_due_date)
VALUES (?, ?, ?, ?, ?)
`, cardID, float64(date), grade, seconds, float64(newDue)); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO edits (card_id, date, due_date)
VALUES (?, ?, ?)
`, cardID, float64(date), float64(newDue))
		return err
	})
	if err != nil {
		log.Error("failed to log review: card_id=%d: %v", cardID, err)
		return apperrors.NewStoreError("log review", err)
	}
	log.Debug("review logged: card_id=%d, grade=%d, new_due=%s", cardID, grade, newDue)
	return nil
}

// Reviews returns the card's review records in physical append order.
func (s *Store) Reviews(ctx context.Context, cardID int64) ([]models.Review, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT date, grade, seconds FROM reviews WHERE card_id = ? ORDER BY id ASC
`, cardID)
	if err != nil {
		return nil, apperrors.NewStoreError("query reviews", err)
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		var r models.Review
		var d float64
		if err := rows.Scan(&d, &r.Grade, &r.Seconds); err != nil {
			return nil, apperrors.NewStoreError("scan review", err)
		}
		r.Date = daycount.Date(d)
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("iterate reviews", err)
	}
	return reviews, nil
}

// AppendTagEdit records a tag becoming present or absent on a card.
func (s *Store) AppendTagEdit(ctx context.Context, cardID int64, tag string, active bool) error {
	log := logger.FromContext(ctx).WithPrefix("eventlog")
	activeInt := 0
	if active {
		activeInt = 1
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO tag_edits (card_id, tag, active) VALUES (?, ?, ?)
`, cardID, tag, activeInt)
	if err != nil {
		log.Error("failed to append tag edit: card_id=%d, tag=%s: %v", cardID, tag, err)
		return apperrors.NewStoreError("append tag edit", err)
	}
	log.Debug("tag edit appended: card_id=%d, tag=%s, active=%v", cardID, tag, active)
	return nil
}

// HasTag reports whether the tag is currently present on the card.
func (s *Store) HasTag(ctx context.Context, cardID int64, tag string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(1) FROM tags WHERE card_id = ? AND tag = ?
`, cardID, tag).Scan(&n)
	if err != nil {
		return false, apperrors.NewStoreError("check tag", err)
	}
	return n > 0, nil
}

// CardTags lists the tags currently present on a card.
func (s *Store) CardTags(ctx context.Context, cardID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT tag FROM tags WHERE card_id = ? ORDER BY tag
`, cardID)
	if err != nil {
		return nil, apperrors.NewStoreError("query tags", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, apperrors.NewStoreError("scan tag", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("iterate tags", err)
	}
	return tags, nil
}
