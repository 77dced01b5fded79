// Package card projects a card's current state and review history out of
// the append-only event streams. Nothing here mutates rows: every write is
// an appended event, and every read resolves the latest applicable event.
package card

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/arunsworth/cardbox/internal/daycount"
	apperrors "github.com/arunsworth/cardbox/internal/errors"
	"github.com/arunsworth/cardbox/internal/eventlog"
	"github.com/arunsworth/cardbox/internal/logger"
	"github.com/arunsworth/cardbox/internal/media"
	"github.com/arunsworth/cardbox/internal/models"
	"github.com/arunsworth/cardbox/internal/scheduler"
)

// Projection resolves current attribute values for cards. Resolved values
// are cached for the lifetime of the Projection (one session); any write to
// a card drops that card's cached entries, so a read immediately after a
// write always sees the written value. The cache must not be shared across
// processes.
type Projection struct {
	events   *eventlog.Store
	media    *media.Store
	schedule scheduler.Func
	now      func() daycount.Date

	mu    sync.Mutex
	cache map[cacheKey]any
}

type cacheKey struct {
	cardID int64
	attr   string
}

// Option configures a Projection.
type Option func(*Projection)

// WithNow overrides the projection's clock.
func WithNow(now func() daycount.Date) Option {
	return func(p *Projection) { p.now = now }
}

func NewProjection(events *eventlog.Store, mediaStore *media.Store, schedule scheduler.Func, opts ...Option) *Projection {
	p := &Projection{
		events:   events,
		media:    mediaStore,
		schedule: schedule,
		now:      daycount.Now,
		cache:    make(map[cacheKey]any),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Create appends a placeholder edit establishing a new card id and its
// create date. The new card's due date defaults to its create date.
func (p *Projection) Create(ctx context.Context, opts ...UpdateOption) (int64, error) {
	o := applyOptions(opts)
	id, err := p.events.NewCard(ctx, o.date)
	if err != nil {
		return 0, err
	}
	p.invalidate(id)
	return id, nil
}

// Exists reports whether the card id has ever been created. It ignores
// visibility: deleted and purged cards still exist.
func (p *Projection) Exists(ctx context.Context, id int64) (bool, error) {
	return p.events.Exists(ctx, id)
}

// Text resolves a text-valued attribute. Visibility defaults to "visible";
// other text attributes default to the empty string.
func (p *Projection) Text(ctx context.Context, id int64, attr string) (string, error) {
	if !models.IsTextField(attr) {
		return "", apperrors.NewValidationError(attr, "not a text attribute")
	}
	if v, ok := p.cached(id, attr); ok {
		return v.(string), nil
	}
	if err := p.ensureExists(ctx, id); err != nil {
		return "", err
	}

	var s string
	ok, err := p.events.Latest(ctx, id, attr, &s)
	if err != nil {
		return "", err
	}
	if !ok {
		if attr == "visibility" {
			s = models.VisibilityVisible
		} else {
			s = ""
		}
	}
	p.store(id, attr, s)
	return s, nil
}

// Date resolves a date-valued attribute, always as a daycount.Date. A card
// never reviewed has a zero last_review_date; due_date defaults to the
// create date.
func (p *Projection) Date(ctx context.Context, id int64, attr string) (daycount.Date, error) {
	if !models.IsDateField(attr) {
		return 0, apperrors.NewValidationError(attr, "not a date attribute")
	}
	if v, ok := p.cached(id, attr); ok {
		return v.(daycount.Date), nil
	}
	if err := p.ensureExists(ctx, id); err != nil {
		return 0, err
	}

	var d daycount.Date
	switch attr {
	case "create_date":
		first, _, err := p.events.FirstEditDate(ctx, id)
		if err != nil {
			return 0, err
		}
		d = first
	case "due_date":
		var raw float64
		ok, err := p.events.Latest(ctx, id, "due_date", &raw)
		if err != nil {
			return 0, err
		}
		if ok {
			d = daycount.Date(raw)
		} else {
			first, _, err := p.events.FirstEditDate(ctx, id)
			if err != nil {
				return 0, err
			}
			d = first
		}
	case "last_edit_date":
		last, _, err := p.events.LastEditDate(ctx, id)
		if err != nil {
			return 0, err
		}
		d = last
	case "last_review_date":
		last, ok, err := p.events.LastReviewDate(ctx, id)
		if err != nil {
			return 0, err
		}
		if ok {
			d = last
		}
	}
	p.store(id, attr, d)
	return d, nil
}

// Int resolves an integer-valued attribute: the id itself, a media
// reference (0 when unset), or an accumulated seconds counter.
func (p *Projection) Int(ctx context.Context, id int64, attr string) (int64, error) {
	if attr != "id" && !models.IsMediaRef(attr) && !models.IsTimeField(attr) {
		return 0, apperrors.NewValidationError(attr, "not an integer attribute")
	}
	if v, ok := p.cached(id, attr); ok {
		return v.(int64), nil
	}
	if err := p.ensureExists(ctx, id); err != nil {
		return 0, err
	}

	var n int64
	switch {
	case attr == "id":
		n = id
	case models.IsMediaRef(attr):
		ok, err := p.events.Latest(ctx, id, attr, &n)
		if err != nil {
			return 0, err
		}
		if !ok {
			n = 0
		}
	case attr == "edit_seconds":
		sum, err := p.events.EditSeconds(ctx, id)
		if err != nil {
			return 0, err
		}
		n = sum
	case attr == "review_seconds":
		sum, err := p.events.ReviewSeconds(ctx, id)
		if err != nil {
			return 0, err
		}
		n = sum
	case attr == "total_seconds":
		edits, err := p.events.EditSeconds(ctx, id)
		if err != nil {
			return 0, err
		}
		reviews, err := p.events.ReviewSeconds(ctx, id)
		if err != nil {
			return 0, err
		}
		n = edits + reviews
	}
	p.store(id, attr, n)
	return n, nil
}

// MediaContent resolves a virtual media attribute: the backing "<name>_id"
// reference is read from the edit stream, then the content from the media
// store. An absent reference yields nil content, not an error.
func (p *Projection) MediaContent(ctx context.Context, id int64, attr string) ([]byte, error) {
	if !models.IsVirtualMedia(attr) {
		return nil, apperrors.NewValidationError(attr, "not a virtual media attribute")
	}
	if v, ok := p.cached(id, attr); ok {
		return v.([]byte), nil
	}

	ref, err := p.Int(ctx, id, models.MediaRef(attr))
	if err != nil {
		return nil, err
	}
	if ref == 0 {
		p.store(id, attr, []byte(nil))
		return nil, nil
	}
	content, ok, err := p.media.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewNotFoundError("media", ref)
	}
	p.store(id, attr, content)
	return content, nil
}

// UpdateOption overrides the store's default timestamping or annotates the
// edit with time spent.
type UpdateOption func(*updateOpts)

type updateOpts struct {
	date    daycount.Date
	seconds int
}

// At overrides the edit's timestamp.
func At(d daycount.Date) UpdateOption {
	return func(o *updateOpts) { o.date = d }
}

// TookSeconds annotates the edit with the seconds spent producing it.
func TookSeconds(n int) UpdateOption {
	return func(o *updateOpts) { o.seconds = n }
}

func applyOptions(opts []UpdateOption) updateOpts {
	var o updateOpts
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Update appends one edit event carrying all given field values. Keys must
// be editable attributes; the id can never be changed. Virtual media fields
// are uploaded to the media store first and recorded through their
// reference attribute, never inline.
func (p *Projection) Update(ctx context.Context, id int64, fields map[string]any, opts ...UpdateOption) error {
	log := logger.FromContext(ctx).WithPrefix("card")
	if len(fields) == 0 {
		return nil
	}
	if err := p.ensureExists(ctx, id); err != nil {
		return err
	}

	columns := make(map[string]any, len(fields))
	for name, value := range fields {
		switch {
		case name == "id":
			return apperrors.NewValidationError("id", "card id cannot be changed")
		case models.IsVirtualMedia(name):
			content, err := mediaBytes(name, value)
			if err != nil {
				return err
			}
			mediaID, err := p.media.Put(ctx, content)
			if err != nil {
				return err
			}
			columns[models.MediaRef(name)] = mediaID
		case !models.IsEditable(name):
			return apperrors.NewValidationError(name,
				fmt.Sprintf("not an editable attribute; editable: %s", strings.Join(models.EditableFields(), ", ")))
		case name == "visibility":
			s, ok := value.(string)
			if !ok || !models.ValidVisibility(s) {
				return apperrors.NewValidationError("visibility", `must be one of "visible", "deleted", "purged"`)
			}
			columns[name] = s
		case models.IsDateField(name):
			d, err := p.coerceDate(name, value)
			if err != nil {
				return err
			}
			columns[name] = d
		case models.IsMediaRef(name):
			ref, err := coerceMediaRef(name, value)
			if err != nil {
				return err
			}
			columns[name] = ref
		default:
			s, ok := value.(string)
			if !ok {
				return apperrors.NewValidationError(name, "must be a string")
			}
			columns[name] = s
		}
	}

	o := applyOptions(opts)
	err := p.events.AppendEdit(ctx, eventlog.Edit{
		CardID:  id,
		Date:    o.date,
		Seconds: o.seconds,
		Fields:  columns,
	})
	if err != nil {
		return err
	}
	p.invalidate(id)
	log.Debug("card updated: id=%d, fields=%d", id, len(columns))
	return nil
}

// SetVisibility transitions the card's visibility state, skipping the write
// when the card is already in that state so the edit stream carries no
// no-op events. Returns whether an event was written.
func (p *Projection) SetVisibility(ctx context.Context, id int64, state string, opts ...UpdateOption) (bool, error) {
	if !models.ValidVisibility(state) {
		return false, apperrors.NewValidationError("visibility", `must be one of "visible", "deleted", "purged"`)
	}
	current, err := p.Text(ctx, id, "visibility")
	if err != nil {
		return false, err
	}
	if current == state {
		return false, nil
	}
	if err := p.Update(ctx, id, map[string]any{"visibility": state}, opts...); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Projection) Delete(ctx context.Context, id int64) (bool, error) {
	return p.SetVisibility(ctx, id, models.VisibilityDeleted)
}

func (p *Projection) Restore(ctx context.Context, id int64) (bool, error) {
	return p.SetVisibility(ctx, id, models.VisibilityVisible)
}

func (p *Projection) Purge(ctx context.Context, id int64) (bool, error) {
	return p.SetVisibility(ctx, id, models.VisibilityPurged)
}

// AddTag makes a tag present on the card. Re-adding a present tag writes
// nothing.
func (p *Projection) AddTag(ctx context.Context, id int64, tag string) (bool, error) {
	return p.setTag(ctx, id, tag, true)
}

// RemoveTag makes a tag absent on the card. Removing an absent tag writes
// nothing.
func (p *Projection) RemoveTag(ctx context.Context, id int64, tag string) (bool, error) {
	return p.setTag(ctx, id, tag, false)
}

func (p *Projection) setTag(ctx context.Context, id int64, tag string, active bool) (bool, error) {
	if tag == "" {
		return false, apperrors.NewValidationError("tag", "cannot be empty")
	}
	if err := p.ensureExists(ctx, id); err != nil {
		return false, err
	}
	present, err := p.events.HasTag(ctx, id, tag)
	if err != nil {
		return false, err
	}
	if present == active {
		return false, nil
	}
	if err := p.events.AppendTagEdit(ctx, id, tag, active); err != nil {
		return false, err
	}
	return true, nil
}

// Tags lists the tags currently present on the card.
func (p *Projection) Tags(ctx context.Context, id int64) ([]string, error) {
	if err := p.ensureExists(ctx, id); err != nil {
		return nil, err
	}
	return p.events.CardTags(ctx, id)
}

// coerceDate normalizes a date-valued field to a daycount.Date before it is
// appended. Strings cross the boundary in the external form (ISO date or a
// signed day offset); anything that is not a date or a number is rejected so
// the date column never carries text.
func (p *Projection) coerceDate(attr string, value any) (daycount.Date, error) {
	switch v := value.(type) {
	case daycount.Date:
		return v, nil
	case float64:
		return daycount.Date(v), nil
	case int:
		return daycount.Date(v), nil
	case int64:
		return daycount.Date(v), nil
	case string:
		d, err := daycount.Parse(v, p.now())
		if err != nil {
			return 0, apperrors.NewValidationError(attr, "must be an ISO date, a signed day offset, or a day number")
		}
		return d, nil
	default:
		return 0, apperrors.NewValidationError(attr, "must be an ISO date, a signed day offset, or a day number")
	}
}

// coerceMediaRef normalizes a media reference to its integer id. References
// point at media rows; content goes through the virtual attribute instead.
func coerceMediaRef(attr string, value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, apperrors.NewValidationError(attr, "must be an integer media id")
		}
		return int64(v), nil
	default:
		return 0, apperrors.NewValidationError(attr, "must be an integer media id")
	}
}

func mediaBytes(attr string, value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, apperrors.NewValidationError(attr, "media content must be bytes or a string")
	}
}

func (p *Projection) ensureExists(ctx context.Context, id int64) error {
	if _, ok := p.cached(id, "__exists"); ok {
		return nil
	}
	exists, err := p.events.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return apperrors.NewNotFoundError("card", id)
	}
	// Only a positive result is cached; a missing card may be created later.
	p.store(id, "__exists", true)
	return nil
}

func (p *Projection) cached(id int64, attr string) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.cache[cacheKey{id, attr}]
	return v, ok
}

func (p *Projection) store(id int64, attr string, v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache[cacheKey{id, attr}] = v
}

func (p *Projection) invalidate(id int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k := range p.cache {
		if k.cardID == id && k.attr != "__exists" {
			delete(p.cache, k)
		}
	}
}

// InvalidateAll drops every cached value. Writers that append events without
// going through the projection (the deck engine's bulk mutations) call this
// so later reads re-resolve from the streams.
func (p *Projection) InvalidateAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.cache)
}
