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

type ProjectionSuite struct {
	suite.Suite
	db    *sql.DB
	cards *card.Projection
}

func (s *ProjectionSuite) SetupTest() {
	s.db = testutil.NewTestDB(s.T())
	events := eventlog.New(s.db)
	s.cards = card.NewProjection(events, media.New(s.db), scheduler.SM2)
}

func (s *ProjectionSuite) TearDownTest() {
	testutil.MustClose(s.T(), s.db)
}

func (s *ProjectionSuite) newCard(ctx context.Context) int64 {
	id, err := s.cards.Create(ctx, card.At(daycount.Date(100)))
	s.Require().NoError(err)
	return id
}

func (s *ProjectionSuite) TestCreateDefaults() {
	ctx := context.Background()
	id := s.newCard(ctx)

	visibility, err := s.cards.Text(ctx, id, "visibility")
	s.Require().NoError(err)
	s.Equal("visible", visibility)

	front, err := s.cards.Text(ctx, id, "front_text")
	s.Require().NoError(err)
	s.Empty(front)

	createDate, err := s.cards.Date(ctx, id, "create_date")
	s.Require().NoError(err)
	s.Equal(daycount.Date(100), createDate)

	due, err := s.cards.Date(ctx, id, "due_date")
	s.Require().NoError(err)
	s.Equal(createDate, due, "a new card is due on its create date")

	lastReview, err := s.cards.Date(ctx, id, "last_review_date")
	s.Require().NoError(err)
	s.True(lastReview.IsZero())
}

func (s *ProjectionSuite) TestReadAfterWrite() {
	ctx := context.Background()
	id := s.newCard(ctx)

	front, err := s.cards.Text(ctx, id, "front_text")
	s.Require().NoError(err)
	s.Empty(front)

	// The cached value must be dropped by the write.
	s.Require().NoError(s.cards.Update(ctx, id, map[string]any{"front_text": "hola"}))

	front, err = s.cards.Text(ctx, id, "front_text")
	s.Require().NoError(err)
	s.Equal("hola", front)
}

func (s *ProjectionSuite) TestUpdateNeverChangesRows() {
	ctx := context.Background()
	id := s.newCard(ctx)

	s.Require().NoError(s.cards.Update(ctx, id, map[string]any{"front_text": "v1"}))
	s.Require().NoError(s.cards.Update(ctx, id, map[string]any{"front_text": "v2"}))

	var count int
	s.Require().NoError(s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM edits WHERE card_id = ?`, id).Scan(&count))
	s.Equal(3, count, "create plus two edits, nothing overwritten")
}

func (s *ProjectionSuite) TestUpdateValidation() {
	ctx := context.Background()
	id := s.newCard(ctx)

	err := s.cards.Update(ctx, id, map[string]any{"id": int64(9)})
	s.True(apperrors.IsValidation(err), "changing the id must be refused")

	err = s.cards.Update(ctx, id, map[string]any{"edit_seconds": 5})
	s.True(apperrors.IsValidation(err), "derived attributes are not editable")

	err = s.cards.Update(ctx, id, map[string]any{"visibility": "hidden"})
	s.True(apperrors.IsValidation(err))

	err = s.cards.Update(ctx, 999, map[string]any{"front_text": "x"})
	s.True(apperrors.IsNotFound(err))
}

func (s *ProjectionSuite) TestUpdateCoercesDueDateStrings() {
	ctx := context.Background()
	id := s.newCard(ctx)

	s.Require().NoError(s.cards.Update(ctx, id, map[string]any{"due_date": "2030-01-01"}))

	want, err := daycount.Parse("2030-01-01", 0)
	s.Require().NoError(err)
	due, err := s.cards.Date(ctx, id, "due_date")
	s.Require().NoError(err)
	s.Equal(want, due)

	// The column must stay numeric or every later read of the card breaks.
	var raw float64
	s.Require().NoError(s.db.QueryRowContext(ctx,
		`SELECT due_date FROM edits WHERE card_id = ? AND due_date IS NOT NULL`, id).Scan(&raw))
	s.Equal(float64(want), raw)

	// Decoded JSON numbers arrive as float64.
	s.Require().NoError(s.cards.Update(ctx, id, map[string]any{"due_date": float64(250)}))
	due, err = s.cards.Date(ctx, id, "due_date")
	s.Require().NoError(err)
	s.Equal(daycount.Date(250), due)
}

func (s *ProjectionSuite) TestUpdateRejectsMistypedValues() {
	ctx := context.Background()
	id := s.newCard(ctx)

	err := s.cards.Update(ctx, id, map[string]any{"due_date": "someday"})
	s.True(apperrors.IsValidation(err))

	err = s.cards.Update(ctx, id, map[string]any{"due_date": true})
	s.True(apperrors.IsValidation(err))

	err = s.cards.Update(ctx, id, map[string]any{"front_image_id": "7"})
	s.True(apperrors.IsValidation(err), "media references are integer ids")

	err = s.cards.Update(ctx, id, map[string]any{"front_image_id": 2.5})
	s.True(apperrors.IsValidation(err))

	err = s.cards.Update(ctx, id, map[string]any{"front_text": 5})
	s.True(apperrors.IsValidation(err), "text attributes take strings")

	var count int
	s.Require().NoError(s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM edits WHERE card_id = ?`, id).Scan(&count))
	s.Equal(1, count, "a rejected batch appends nothing")
}

func (s *ProjectionSuite) TestMediaRoundTrip() {
	ctx := context.Background()
	id := s.newCard(ctx)

	payload := []byte{0xFF, 0xD8, 0xFF, 0x01, 0x02}
	s.Require().NoError(s.cards.Update(ctx, id, map[string]any{"front_image": payload}))

	content, err := s.cards.MediaContent(ctx, id, "front_image")
	s.Require().NoError(err)
	s.Equal(payload, content)

	ref, err := s.cards.Int(ctx, id, "front_image_id")
	s.Require().NoError(err)
	s.Positive(ref, "media is stored by reference, never inline")

	absent, err := s.cards.MediaContent(ctx, id, "back_image")
	s.Require().NoError(err)
	s.Nil(absent, "a side without media resolves to nil content")
}

func (s *ProjectionSuite) TestVisibilityTransitionsSkipNoOps() {
	ctx := context.Background()
	id := s.newCard(ctx)

	changed, err := s.cards.Delete(ctx, id)
	s.Require().NoError(err)
	s.True(changed)

	visibility, err := s.cards.Text(ctx, id, "visibility")
	s.Require().NoError(err)
	s.Equal(models.VisibilityDeleted, visibility)

	changed, err = s.cards.Delete(ctx, id)
	s.Require().NoError(err)
	s.False(changed, "deleting a deleted card writes nothing")

	var count int
	s.Require().NoError(s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM edits WHERE card_id = ? AND visibility IS NOT NULL`, id).Scan(&count))
	s.Equal(1, count)

	changed, err = s.cards.Restore(ctx, id)
	s.Require().NoError(err)
	s.True(changed)

	changed, err = s.cards.Purge(ctx, id)
	s.Require().NoError(err)
	s.True(changed)

	exists, err := s.cards.Exists(ctx, id)
	s.Require().NoError(err)
	s.True(exists, "purged cards still exist in the store")
}

func (s *ProjectionSuite) TestTagLifecycle() {
	ctx := context.Background()
	id := s.newCard(ctx)

	changed, err := s.cards.AddTag(ctx, id, "geo")
	s.Require().NoError(err)
	s.True(changed)

	changed, err = s.cards.AddTag(ctx, id, "geo")
	s.Require().NoError(err)
	s.False(changed, "re-adding a present tag writes nothing")

	changed, err = s.cards.RemoveTag(ctx, id, "geo")
	s.Require().NoError(err)
	s.True(changed)

	changed, err = s.cards.AddTag(ctx, id, "geo")
	s.Require().NoError(err)
	s.True(changed)

	tags, err := s.cards.Tags(ctx, id)
	s.Require().NoError(err)
	s.Equal([]string{"geo"}, tags)

	var count int
	s.Require().NoError(s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tag_edits WHERE card_id = ?`, id).Scan(&count))
	s.Equal(3, count, "every effective transition is a kept record")

	_, err = s.cards.AddTag(ctx, id, "")
	s.True(apperrors.IsValidation(err))
}

func (s *ProjectionSuite) TestSecondsAccumulate() {
	ctx := context.Background()
	id := s.newCard(ctx)

	s.Require().NoError(s.cards.Update(ctx, id,
		map[string]any{"front_text": "q"}, card.TookSeconds(30)))
	s.Require().NoError(s.cards.Update(ctx, id,
		map[string]any{"back_text": "a"}, card.TookSeconds(12)))

	editSeconds, err := s.cards.Int(ctx, id, "edit_seconds")
	s.Require().NoError(err)
	s.Equal(int64(42), editSeconds)

	total, err := s.cards.Int(ctx, id, "total_seconds")
	s.Require().NoError(err)
	s.Equal(int64(42), total)
}

func TestProjectionSuite(t *testing.T) {
	suite.Run(t, new(ProjectionSuite))
}
