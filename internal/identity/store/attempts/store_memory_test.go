package attempts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type InMemorySuite struct {
	suite.Suite
	now   time.Time
	store *InMemory
	ctx   context.Context
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.now = time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	s.store = NewInMemory(WithClock(func() time.Time { return s.now }))
	s.ctx = context.Background()
}

func (s *InMemorySuite) TestSlidingWindow() {
	window := 15 * time.Minute

	for want := 1; want <= 3; want++ {
		n, err := s.store.RecordFailure(s.ctx, "admin|10.0.0.1", window)
		s.Require().NoError(err)
		s.Equal(want, n)
		s.now = s.now.Add(5 * time.Minute)
	}

	s.Run("oldest failure leaves the window", func() {
		n, err := s.store.Failures(s.ctx, "admin|10.0.0.1", window)
		s.Require().NoError(err)
		s.Equal(2, n)
	})

	s.Run("keys are independent", func() {
		n, err := s.store.Failures(s.ctx, "admin|10.0.0.2", window)
		s.Require().NoError(err)
		s.Zero(n)
	})

	s.Run("clear resets the key", func() {
		s.Require().NoError(s.store.Clear(s.ctx, "admin|10.0.0.1"))
		n, err := s.store.Failures(s.ctx, "admin|10.0.0.1", window)
		s.Require().NoError(err)
		s.Zero(n)
	})
}
