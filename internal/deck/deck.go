// Package deck builds and executes set-oriented operations over the card
// collection. A View is an immutable value holding an accumulated condition
// list and an ordering clause; filter and sort calls return new Views, so
// every intermediate stays reusable. Nothing executes until a count, slice
// or bulk call translates the conditions into one parameterized query
// against the projected cards view.
package deck

import (
	"database/sql"

	"github.com/Masterminds/squirrel"

	"github.com/arunsworth/cardbox/internal/daycount"
	"github.com/arunsworth/cardbox/internal/models"
)

var sqlBuilder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

// recencyExpr orders by the latest touch of any kind. Cards never reviewed
// fall back to their last edit.
const recencyExpr = "MAX(last_edit_date, COALESCE(last_review_date, 0))"

// Engine executes deck queries. The clock is injectable so relative date
// predicates can be pinned in tests.
type Engine struct {
	db         *sql.DB
	now        func() daycount.Date
	invalidate func()
}

// Option configures an Engine.
type Option func(*Engine)

// WithNow overrides the engine's clock.
func WithNow(now func() daycount.Date) Option {
	return func(e *Engine) { e.now = now }
}

// WithInvalidator registers a hook called after every bulk mutation that
// changed at least one card. Bulk writes append events behind any projection
// caching current values; the hook lets that cache drop them.
func WithInvalidator(fn func()) Option {
	return func(e *Engine) { e.invalidate = fn }
}

func NewEngine(sqlDB *sql.DB, opts ...Option) *Engine {
	e := &Engine{db: sqlDB, now: daycount.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Guidance is the non-error response returned when an interactive call
// supplied nothing actionable: no filter predicates, or an unknown sort
// criterion. It is deliberately not an error.
type Guidance struct {
	Text string
}

// View is a filtered, ordered window over the card collection. Views are
// immutable: Filter and Sort copy, never mutate.
type View struct {
	eng   *Engine
	name  string
	conds []squirrel.Sqlizer
	order orderBy
	spec  Spec
}

type orderBy struct {
	expr string
	desc bool
}

func (o orderBy) clause() string {
	if o.desc {
		return o.expr + " DESC"
	}
	return o.expr + " ASC"
}

// Spec is the serializable definition of a view: the filter parameters and
// sort criterion that produced it. Persisted for materialized decks and
// replayed when a deck is opened.
type Spec struct {
	Filters []Params `json:"filters,omitempty"`
	Sort    string   `json:"sort,omitempty"`
	Reverse bool     `json:"reverse,omitempty"`
}

// Base returns the full collection. Purged cards are excluded from every
// standard view; deleted cards remain visible unless filtered out, so the
// deleted predicate can still select them.
func (e *Engine) Base() *View {
	return &View{
		eng:   e,
		name:  models.BaseDeck,
		conds: []squirrel.Sqlizer{squirrel.NotEq{"visibility": models.VisibilityPurged}},
		order: orderBy{expr: recencyExpr, desc: true},
	}
}

// Name returns the deck name this view was opened from ("cards" for the
// base collection).
func (v *View) Name() string {
	return v.name
}

func (v *View) copy() *View {
	return &View{
		eng:   v.eng,
		name:  v.name,
		conds: append([]squirrel.Sqlizer(nil), v.conds...),
		order: v.order,
		spec: Spec{
			Filters: append([]Params(nil), v.spec.Filters...),
			Sort:    v.spec.Sort,
			Reverse: v.spec.Reverse,
		},
	}
}
