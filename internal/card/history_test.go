package card_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/arunsworth/cardbox/internal/card"
	"github.com/arunsworth/cardbox/internal/daycount"
	apperrors "github.com/arunsworth/cardbox/internal/errors"
	"github.com/arunsworth/cardbox/internal/eventlog"
	"github.com/arunsworth/cardbox/internal/media"
	"github.com/arunsworth/cardbox/internal/models"
	"github.com/arunsworth/cardbox/internal/scheduler"
	"github.com/arunsworth/cardbox/internal/testutil"
)

type HistorySuite struct {
	suite.Suite
	db    *sql.DB
	cards *card.Projection
}

func (s *HistorySuite) SetupTest() {
	s.db = testutil.NewTestDB(s.T())
	events := eventlog.New(s.db)
	s.cards = card.NewProjection(events, media.New(s.db), scheduler.SM2)
}

func (s *HistorySuite) TearDownTest() {
	testutil.MustClose(s.T(), s.db)
}

func (s *HistorySuite) TestHistoryKeepsAppendOrder() {
	ctx := context.Background()
	id, err := s.cards.Create(ctx, card.At(daycount.Date(100)))
	s.Require().NoError(err)

	_, err = s.cards.LogReview(ctx, id, 2, 10, card.At(daycount.Date(105)))
	s.Require().NoError(err)
	_, err = s.cards.LogReview(ctx, id, 3, 5, card.At(daycount.Date(101)))
	s.Require().NoError(err)

	h, err := s.cards.History(ctx, id)
	s.Require().NoError(err)
	s.Equal(id, h.CardID)
	s.Equal(daycount.Date(100), h.CreateDate)
	s.Require().Len(h.Reviews, 2)
	s.Equal(models.Review{Date: 105, Grade: 2, Seconds: 10}, h.Reviews[0])
	s.Equal(models.Review{Date: 101, Grade: 3, Seconds: 5}, h.Reviews[1])
}

func (s *HistorySuite) TestLogReviewAdvancesDueDate() {
	ctx := context.Background()
	id, err := s.cards.Create(ctx, card.At(daycount.Date(100)))
	s.Require().NoError(err)

	dueBefore, err := s.cards.Date(ctx, id, "due_date")
	s.Require().NoError(err)

	newDue, err := s.cards.LogReview(ctx, id, 2, 15, card.At(daycount.Date(100)))
	s.Require().NoError(err)
	s.Greater(float64(newDue), float64(dueBefore))

	// The projection sees the new due date immediately.
	due, err := s.cards.Date(ctx, id, "due_date")
	s.Require().NoError(err)
	s.Equal(newDue, due)

	lastReview, err := s.cards.Date(ctx, id, "last_review_date")
	s.Require().NoError(err)
	s.Equal(daycount.Date(100), lastReview)

	reviewSeconds, err := s.cards.Int(ctx, id, "review_seconds")
	s.Require().NoError(err)
	s.Equal(int64(15), reviewSeconds)
}

func (s *HistorySuite) TestLogReviewValidatesGrade() {
	ctx := context.Background()
	id, err := s.cards.Create(ctx)
	s.Require().NoError(err)

	_, err = s.cards.LogReview(ctx, id, -1, 0)
	s.True(apperrors.IsValidation(err))
	_, err = s.cards.LogReview(ctx, id, 4, 0)
	s.True(apperrors.IsValidation(err))
	_, err = s.cards.LogReview(ctx, 999, 2, 0)
	s.True(apperrors.IsNotFound(err))
}

func (s *HistorySuite) TestIsDue() {
	ctx := context.Background()

	overdue, err := s.cards.Create(ctx, card.At(daycount.Date(100)))
	s.Require().NoError(err)
	due, err := s.cards.IsDue(ctx, overdue)
	s.Require().NoError(err)
	s.True(due, "due date in the past means due now")

	future, err := s.cards.Create(ctx)
	s.Require().NoError(err)
	s.Require().NoError(s.cards.Update(ctx, future,
		map[string]any{"due_date": daycount.Now().Add(30)}))
	due, err = s.cards.IsDue(ctx, future)
	s.Require().NoError(err)
	s.False(due)
}

func (s *HistorySuite) TestClockIsInjectable() {
	ctx := context.Background()
	cards := card.NewProjection(eventlog.New(s.db), media.New(s.db), scheduler.SM2,
		card.WithNow(func() daycount.Date { return daycount.Date(200) }))

	id, err := cards.Create(ctx, card.At(daycount.Date(100)))
	s.Require().NoError(err)

	s.Require().NoError(cards.Update(ctx, id, map[string]any{"due_date": daycount.Date(200)}))
	due, err := cards.IsDue(ctx, id)
	s.Require().NoError(err)
	s.True(due, "due on the pinned day means due now")

	s.Require().NoError(cards.Update(ctx, id, map[string]any{"due_date": daycount.Date(201)}))
	due, err = cards.IsDue(ctx, id)
	s.Require().NoError(err)
	s.False(due)

	// Relative date strings resolve against the same clock.
	s.Require().NoError(cards.Update(ctx, id, map[string]any{"due_date": "-7"}))
	got, err := cards.Date(ctx, id, "due_date")
	s.Require().NoError(err)
	s.Equal(daycount.Date(193), got)
}

func (s *HistorySuite) TestHypoDueDatesPersistNothing() {
	ctx := context.Background()
	id, err := s.cards.Create(ctx, card.At(daycount.Date(100)))
	s.Require().NoError(err)

	dates, err := s.cards.HypoDueDates(ctx, id)
	s.Require().NoError(err)
	s.Len(dates, 4)
	s.GreaterOrEqual(float64(dates[scheduler.GradeEasy]), float64(dates[scheduler.GradeAgain]))

	h, err := s.cards.History(ctx, id)
	s.Require().NoError(err)
	s.Empty(h.Reviews, "hypothetical scheduling writes no reviews")

	due, err := s.cards.Date(ctx, id, "due_date")
	s.Require().NoError(err)
	s.Equal(daycount.Date(100), due, "due date untouched")
}

func TestHistorySuite(t *testing.T) {
	suite.Run(t, new(HistorySuite))
}
