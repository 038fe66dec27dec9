package postgres

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type IdempotencyPostgresSuite struct {
	suite.Suite

	store *Store
	repo  domain.IdempotencyRepository
	ctx   context.Context
	now   time.Time
}

func TestIdempotencyPostgresSuite(t *testing.T) {
	suite.Run(t, new(IdempotencyPostgresSuite))
}

func (s *IdempotencyPostgresSuite) SetupTest() {
	s.store = openPostgresStoreForIntegrationTest(s.T())
	s.repo = s.store.Idempotency()
	s.ctx = context.Background()
	s.now = time.Now().UTC().Round(time.Second)
}

func (s *IdempotencyPostgresSuite) TestCheckoutResponseIsStored() {
	key := "cust-1:checkout-1"
	ttl := s.now.Add(2 * time.Hour)

	created, err := s.repo.CreateProcessing(s.ctx, key, "hash-1", ttl)
	s.Require().NoError(err)
	s.Equal(domain.IdempotencyStatusProcessing, created.Status)
	s.False(created.Completed())

	s.Require().NoError(s.repo.MarkDone(s.ctx, key, []byte(`{"order_id":"order-1"}`), http.StatusCreated))

	got, err := s.repo.Get(s.ctx, key)
	s.Require().NoError(err)
	s.Equal("hash-1", got.RequestHash)
	s.Equal(domain.IdempotencyStatusDone, got.Status)
	s.Equal(http.StatusCreated, got.HTTPStatus)
	s.JSONEq(`{"order_id":"order-1"}`, string(got.ResponseBody))
	s.True(got.TTLAt.Equal(ttl), "ttl: want %s, got %s", ttl, got.TTLAt)
}

func (s *IdempotencyPostgresSuite) TestServerErrorIsStoredAsFailed() {
	key := "cust-1:checkout-5xx"
	_, err := s.repo.CreateProcessing(s.ctx, key, "hash-1", s.now.Add(time.Hour))
	s.Require().NoError(err)
	s.Require().NoError(s.repo.MarkFailed(s.ctx, key, []byte(`{"error":"internal"}`), http.StatusBadGateway))

	got, err := s.repo.Get(s.ctx, key)
	s.Require().NoError(err)
	s.Equal(domain.IdempotencyStatusFailed, got.Status)
	s.True(got.Completed())

	s.ErrorIs(s.repo.MarkDone(s.ctx, "cust-1:missing", nil, http.StatusOK), domain.ErrIdempotencyKeyNotFound)
}

func (s *IdempotencyPostgresSuite) TestLiveKeyConflicts() {
	key := "cust-1:conflict"
	ttl := s.now.Add(time.Hour)
	_, err := s.repo.CreateProcessing(s.ctx, key, "hash-a", ttl)
	s.Require().NoError(err)

	tests := []struct {
		name string
		hash string
		want error
	}{
		{name: "same request", hash: "hash-a", want: domain.ErrIdempotencyKeyAlreadyExists},
		{name: "different request", hash: "hash-b", want: domain.ErrIdempotencyHashMismatch},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			existing, err := s.repo.CreateProcessing(s.ctx, key, tt.hash, ttl)
			s.ErrorIs(err, tt.want)
			s.Equal("hash-a", existing.RequestHash)
		})
	}
}

func (s *IdempotencyPostgresSuite) TestExpiredKeyIsReclaimed() {
	key := "cust-1:reclaim"
	_, err := s.repo.CreateProcessing(s.ctx, key, "old-hash", s.now.Add(-time.Minute))
	s.Require().NoError(err)
	s.Require().NoError(s.repo.MarkDone(s.ctx, key, []byte(`{}`), http.StatusCreated))

	rec, err := s.repo.CreateProcessing(s.ctx, key, "new-hash", s.now.Add(time.Hour))
	s.Require().NoError(err)
	s.Equal("new-hash", rec.RequestHash)

	got, err := s.repo.Get(s.ctx, key)
	s.Require().NoError(err)
	s.Equal(domain.IdempotencyStatusProcessing, got.Status)
	s.Zero(got.HTTPStatus)
	s.Empty(got.ResponseBody)
}

func (s *IdempotencyPostgresSuite) TestDeleteExpiredOldestFirst() {
	for key, ttl := range map[string]time.Time{
		"k-expired-1": s.now.Add(-5 * time.Minute),
		"k-expired-2": s.now.Add(-4 * time.Minute),
		"k-expired-3": s.now.Add(-3 * time.Minute),
		"k-active":    s.now.Add(time.Hour),
	} {
		_, err := s.repo.CreateProcessing(s.ctx, key, "h-"+key, ttl)
		s.Require().NoError(err)
	}

	removed, err := s.repo.DeleteExpired(s.ctx, s.now, 2)
	s.Require().NoError(err)
	s.Equal(2, removed)

	_, err = s.repo.Get(s.ctx, "k-expired-3")
	s.NoError(err, "newest expired key survives a limited batch")

	removed, err = s.repo.DeleteExpired(s.ctx, s.now, 0)
	s.Require().NoError(err)
	s.Equal(1, removed)

	_, err = s.repo.Get(s.ctx, "k-active")
	s.NoError(err)
}

func (s *IdempotencyPostgresSuite) TestBlankInputRejected() {
	_, err := s.repo.CreateProcessing(s.ctx, "  ", "hash", time.Time{})
	s.ErrorIs(err, domain.ErrIdempotencyKeyRequired)

	_, err = s.repo.Get(s.ctx, "")
	s.ErrorIs(err, domain.ErrIdempotencyKeyRequired)
}
