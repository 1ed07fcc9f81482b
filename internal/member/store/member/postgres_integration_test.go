//go:build integration

package member

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"policardmed/internal/member/models"
	"policardmed/pkg/platform/sentinel"
	"policardmed/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.Require().NoError(Migrate(s.postgres.DB))
	s.store = NewPostgres(s.postgres.DB, testAppID, WithNotifications(s.postgres.DSN))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "members"))
}

func (s *PostgresStoreSuite) TestConcurrentInsertSameCPF() {
	ctx := context.Background()
	const writers = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := range writers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.store.Insert(ctx, newTestMember(fmt.Sprintf("Writer %d", i), "123.456.789-00"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, sentinel.ErrConflict):
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	s.Equal(1, successes)
	s.Equal(writers-1, conflicts)

	found, err := s.store.FindByCPF(ctx, "123.456.789-00")
	s.Require().NoError(err)
	s.Len(found, 1)
}

func (s *PostgresStoreSuite) TestAppScoping() {
	ctx := context.Background()
	other := NewPostgres(s.postgres.DB, "another-app")

	_, err := s.store.Insert(ctx, newTestMember("Ana", "111"))
	s.Require().NoError(err)
	_, err = other.Insert(ctx, newTestMember("Ana elsewhere", "111"))
	s.Require().NoError(err, "cpf uniqueness is per app")

	mine, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(mine, 1)
	s.Equal("Ana", mine[0].PrimaryMemberName)
}

func (s *PostgresStoreSuite) TestPatchRoundTrip() {
	ctx := context.Background()
	memberID, err := s.store.Insert(ctx, newTestMember("Ana", "111"))
	s.Require().NoError(err)

	now := time.Now().UTC().Truncate(time.Microsecond)
	deps := []models.Dependent{{Name: "Bia", Relationship: "Filha"}}
	s.Require().NoError(s.store.Patch(ctx, memberID, models.DependentsPatch(deps, now)))
	s.Require().NoError(s.store.Patch(ctx, memberID, models.PaymentStatusPatch(models.PaymentDelinquent, now)))

	got, err := s.store.FindByID(ctx, memberID)
	s.Require().NoError(err)
	s.Equal(deps, got.Dependents)
	s.Equal(models.PaymentDelinquent, got.PaymentStatus)
	s.Equal("111", got.CPF)
}

func (s *PostgresStoreSuite) TestSubscribeReceivesNotifiedWrites() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snapshots, err := s.store.Subscribe(ctx)
	s.Require().NoError(err)

	first := s.next(ctx, snapshots)
	s.Empty(first.Members)

	_, err = s.store.Insert(ctx, newTestMember("Ana", "111"))
	s.Require().NoError(err)

	for {
		snap := s.next(ctx, snapshots)
		s.Require().NoError(snap.Err)
		if len(snap.Members) == 1 {
			s.Equal("Ana", snap.Members[0].PrimaryMemberName)
			break
		}
	}

	cancel()
	for range snapshots {
	}
}

func (s *PostgresStoreSuite) next(ctx context.Context, ch <-chan models.Snapshot) models.Snapshot {
	select {
	case snap, ok := <-ch:
		s.Require().True(ok, "subscription closed early")
		return snap
	case <-ctx.Done():
		s.FailNow("timed out waiting for snapshot")
		return models.Snapshot{}
	}
}
