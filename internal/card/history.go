package card

import (
	"context"

	"github.com/arunsworth/cardbox/internal/daycount"
	apperrors "github.com/arunsworth/cardbox/internal/errors"
	"github.com/arunsworth/cardbox/internal/logger"
	"github.com/arunsworth/cardbox/internal/models"
)

// History returns the card's full review record in physical append order
// plus its create date. The order is never re-sorted: the scheduler expects
// the store's append order even when timestamps are skewed.
func (p *Projection) History(ctx context.Context, id int64) (models.History, error) {
	if err := p.ensureExists(ctx, id); err != nil {
		return models.History{}, err
	}
	createDate, _, err := p.events.FirstEditDate(ctx, id)
	if err != nil {
		return models.History{}, err
	}
	reviews, err := p.events.Reviews(ctx, id)
	if err != nil {
		return models.History{}, err
	}
	return models.History{CardID: id, CreateDate: createDate, Reviews: reviews}, nil
}

// IsDue reports whether the card's due date has arrived.
func (p *Projection) IsDue(ctx context.Context, id int64) (bool, error) {
	due, err := p.Date(ctx, id, "due_date")
	if err != nil {
		return false, err
	}
	return due <= p.now(), nil
}

// LogReview records one review: the scheduler computes the next due date
// from the history including this review, and the review record plus the
// due-date edit are appended as one atomic unit. Returns the new due date.
func (p *Projection) LogReview(ctx context.Context, id int64, grade, seconds int, opts ...UpdateOption) (daycount.Date, error) {
	log := logger.FromContext(ctx).WithPrefix("card")
	if grade < 0 || grade > 3 {
		return 0, apperrors.NewValidationError("grade", "must be between 0 and 3")
	}

	h, err := p.History(ctx, id)
	if err != nil {
		return 0, err
	}

	o := applyOptions(opts)
	date := o.date
	if date.IsZero() {
		date = p.now()
	}
	h.Reviews = append(h.Reviews, models.Review{Date: date, Grade: grade, Seconds: seconds})

	newDue := p.schedule(h)
	if err := p.events.LogReview(ctx, id, date, grade, seconds, newDue); err != nil {
		return 0, err
	}
	p.invalidate(id)
	log.Info("review logged: card_id=%d, grade=%d, due=%s", id, grade, newDue)
	return newDue, nil
}

// HypoDueDates answers "what would the due date become for each grade"
// without persisting anything.
func (p *Projection) HypoDueDates(ctx context.Context, id int64) (map[int]daycount.Date, error) {
	h, err := p.History(ctx, id)
	if err != nil {
		return nil, err
	}

	now := p.now()
	out := make(map[int]daycount.Date, 4)
	for grade := 0; grade <= 3; grade++ {
		hypo := h
		hypo.Reviews = append(append([]models.Review(nil), h.Reviews...),
			models.Review{Date: now, Grade: grade})
		out[grade] = p.schedule(hypo)
	}
	return out, nil
}
