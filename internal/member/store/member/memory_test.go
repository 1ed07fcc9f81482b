package member

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"policardmed/internal/member/models"
	id "policardmed/pkg/domain"
	"policardmed/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func newTestMember(name, cpf string) *models.Member {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	m, err := models.NewMember(models.NewMemberParams{
		PrimaryMemberName: name,
		CPF:               cpf,
		Plan:              models.PlanDetails{Type: models.PlanConsulta, NumberOfLives: 1},
	}, now)
	if err != nil {
		panic(err)
	}
	return m
}

func (s *InMemoryStoreSuite) TestInsertAndLookups() {
	s.Run("assigns id and finds by id and cpf", func() {
		memberID, err := s.store.Insert(s.ctx, newTestMember("Ana", "111"))
		s.Require().NoError(err)
		s.False(memberID.IsNil())

		found, err := s.store.FindByID(s.ctx, memberID)
		s.Require().NoError(err)
		s.Equal(memberID, found.ID)
		s.Equal("Ana", found.PrimaryMemberName)

		byCPF, err := s.store.FindByCPF(s.ctx, "111")
		s.Require().NoError(err)
		s.Require().Len(byCPF, 1)
		s.Equal(memberID, byCPF[0].ID)
	})

	s.Run("unknown id is not found", func() {
		_, err := s.store.FindByID(s.ctx, id.MemberID("missing"))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("unknown cpf is an empty result", func() {
		out, err := s.store.FindByCPF(s.ctx, "999")
		s.Require().NoError(err)
		s.Empty(out)
	})

	s.Run("duplicate cpf conflicts", func() {
		_, err := s.store.Insert(s.ctx, newTestMember("Outra Ana", "111"))
		s.ErrorIs(err, sentinel.ErrConflict)
	})
}

func (s *InMemoryStoreSuite) TestReturnedMembersAreCopies() {
	m := newTestMember("Ana", "111")
	m.Dependents = []models.Dependent{{Name: "Rui", Relationship: "filho"}}
	memberID, err := s.store.Insert(s.ctx, m)
	s.Require().NoError(err)

	found, err := s.store.FindByID(s.ctx, memberID)
	s.Require().NoError(err)
	found.PrimaryMemberName = "changed"
	found.Dependents[0].Name = "changed"

	again, err := s.store.FindByID(s.ctx, memberID)
	s.Require().NoError(err)
	s.Equal("Ana", again.PrimaryMemberName)
	s.Equal("Rui", again.Dependents[0].Name)
}

func (s *InMemoryStoreSuite) TestPatch() {
	memberID, err := s.store.Insert(s.ctx, newTestMember("Ana", "111"))
	s.Require().NoError(err)

	s.Run("applies present fields", func() {
		status := models.PaymentDelinquent
		err := s.store.Patch(s.ctx, memberID, models.Patch{PaymentStatus: &status})
		s.Require().NoError(err)

		found, err := s.store.FindByID(s.ctx, memberID)
		s.Require().NoError(err)
		s.Equal(models.PaymentDelinquent, found.PaymentStatus)
		s.Equal("111", found.CPF)
	})

	s.Run("unknown id is not found", func() {
		err := s.store.Patch(s.ctx, "missing", models.Patch{})
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestConcurrentInsertSameCPF() {
	const goroutines = 50
	var wg sync.WaitGroup
	var successes atomic.Int32
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.store.Insert(s.ctx, newTestMember("Ana", "222")); err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), successes.Load())
}

func (s *InMemoryStoreSuite) TestSubscribe() {
	s.Run("first snapshot is the current state and writes push new ones", func() {
		_, err := s.store.Insert(s.ctx, newTestMember("Ana", "333"))
		s.Require().NoError(err)

		ctx, cancel := context.WithCancel(s.ctx)
		defer cancel()
		stream, err := s.store.Subscribe(ctx)
		s.Require().NoError(err)

		first := s.next(stream)
		initial := len(first.Members)
		s.GreaterOrEqual(initial, 1)

		_, err = s.store.Insert(s.ctx, newTestMember("Bia", "444"))
		s.Require().NoError(err)

		s.Eventually(func() bool {
			return len(s.next(stream).Members) == initial+1
		}, time.Second, 10*time.Millisecond)
	})

	s.Run("cancelling closes the stream and releases the subscriber", func() {
		ctx, cancel := context.WithCancel(s.ctx)
		stream, err := s.store.Subscribe(ctx)
		s.Require().NoError(err)
		s.next(stream)

		cancel()
		s.Eventually(func() bool {
			_, open := <-stream
			return !open
		}, time.Second, 10*time.Millisecond)
		s.Eventually(func() bool { return s.store.hub.count() == 0 }, time.Second, 10*time.Millisecond)
	})
}

func (s *InMemoryStoreSuite) next(stream <-chan models.Snapshot) models.Snapshot {
	select {
	case snap := <-stream:
		return snap
	case <-time.After(time.Second):
		s.FailNow("timed out waiting for snapshot")
		return models.Snapshot{}
	}
}
