package media_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/arunsworth/cardbox/internal/media"
	"github.com/arunsworth/cardbox/internal/testutil"
)

type MediaSuite struct {
	suite.Suite
	db    *sql.DB
	store *media.Store
}

func (s *MediaSuite) SetupTest() {
	s.db = testutil.NewTestDB(s.T())
	s.store = media.New(s.db)
}

func (s *MediaSuite) TearDownTest() {
	testutil.MustClose(s.T(), s.db)
}

func (s *MediaSuite) TestPutAndGet() {
	ctx := context.Background()

	id, err := s.store.Put(ctx, []byte("image bytes"))
	s.Require().NoError(err)
	s.Positive(id)

	content, ok, err := s.store.Get(ctx, id)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal([]byte("image bytes"), content)
}

func (s *MediaSuite) TestIdenticalContentSharesID() {
	ctx := context.Background()

	first, err := s.store.Put(ctx, []byte("same"))
	s.Require().NoError(err)
	second, err := s.store.Put(ctx, []byte("same"))
	s.Require().NoError(err)
	s.Equal(first, second, "content addressing: identical bytes share one id")

	var count int
	s.Require().NoError(s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM media`).Scan(&count))
	s.Equal(1, count)
}

func (s *MediaSuite) TestDistinctContentGetsDistinctIDs() {
	ctx := context.Background()

	a, err := s.store.Put(ctx, []byte("a"))
	s.Require().NoError(err)
	b, err := s.store.Put(ctx, []byte("b"))
	s.Require().NoError(err)
	s.NotEqual(a, b)
}

func (s *MediaSuite) TestGetAbsent() {
	_, ok, err := s.store.Get(context.Background(), 12345)
	s.Require().NoError(err)
	s.False(ok)
}

func TestMediaSuite(t *testing.T) {
	suite.Run(t, new(MediaSuite))
}
