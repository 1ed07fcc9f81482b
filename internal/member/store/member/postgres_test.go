package member

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policardmed/internal/member/models"
	id "policardmed/pkg/domain"
	"policardmed/pkg/platform/sentinel"
)

const testAppID = "default-policardmed-app"

var errConnRefused = &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgres(db, testAppID), mock
}

var memberRowColumns = []string{
	"id", "primary_member_name", "cpf", "email", "phone", "address", "plan_type",
	"number_of_lives", "dependents", "plan_start_date", "plan_end_date", "payment_status",
	"is_active", "created_at", "updated_at",
}

func TestPostgresStore_Insert(t *testing.T) {
	t.Run("returns the generated id", func(t *testing.T) {
		store, mock := newMockStore(t)
		m := newTestMember("Ana", "111")
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO members")).
			WithArgs(sqlmock.AnyArg(), testAppID, "Ana", "111", "", "", "", "consulta", 1,
				[]byte("[]"), m.PlanStartDate, m.PlanEndDate, "em_dia", true, m.CreatedAt, m.UpdatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		memberID, err := store.Insert(context.Background(), m)
		require.NoError(t, err)
		_, parseErr := uuid.Parse(memberID.String())
		assert.NoError(t, parseErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation is a conflict", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO members")).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "members_app_cpf_key"})

		_, err := store.Insert(context.Background(), newTestMember("Ana", "111"))
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("broken connection is unavailable", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO members")).WillReturnError(errConnRefused)

		_, err := store.Insert(context.Background(), newTestMember("Ana", "111"))
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	})
}

func TestPostgresStore_FindByID(t *testing.T) {
	memberID := uuid.New()
	start := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	t.Run("scans the row including dependents", func(t *testing.T) {
		store, mock := newMockStore(t)
		rows := sqlmock.NewRows(memberRowColumns).AddRow(
			memberID.String(), "Ana", "111", "ana@example.com", "", "", "desconto_completo",
			3, []byte(`[{"name":"Rui","relationship":"filho"}]`), start, start.Add(models.PlanDuration),
			"em_debito", true, start, start,
		)
		mock.ExpectQuery(regexp.QuoteMeta("FROM members WHERE app_id = $1 AND id = $2")).
			WithArgs(testAppID, memberID).
			WillReturnRows(rows)

		m, err := store.FindByID(context.Background(), id.MemberID(memberID.String()))
		require.NoError(t, err)
		assert.Equal(t, models.PlanDescontoCompleto, m.PlanDetails.Type)
		assert.Equal(t, models.PaymentDelinquent, m.PaymentStatus)
		assert.Equal(t, []models.Dependent{{Name: "Rui", Relationship: "filho"}}, m.Dependents)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row is not found", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM members")).WillReturnError(sql.ErrNoRows)

		_, err := store.FindByID(context.Background(), id.MemberID(memberID.String()))
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("malformed id is not found without a query", func(t *testing.T) {
		store, mock := newMockStore(t)
		_, err := store.FindByID(context.Background(), "not-a-uuid")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_Patch(t *testing.T) {
	memberID := uuid.New()
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	t.Run("updates only present columns", func(t *testing.T) {
		store, mock := newMockStore(t)
		status := models.PaymentDelinquent
		mock.ExpectExec(regexp.QuoteMeta(
			"UPDATE members SET payment_status = $1, updated_at = $2 WHERE app_id = $3 AND id = $4")).
			WithArgs("em_debito", now, testAppID, memberID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.Patch(context.Background(), id.MemberID(memberID.String()),
			models.Patch{PaymentStatus: &status, UpdatedAt: now})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no affected rows is not found", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE members SET")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.Patch(context.Background(), id.MemberID(memberID.String()), models.Patch{UpdatedAt: now})
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestPostgresStore_SubscribePolls(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgres(db, testAppID, WithPollPeriod(10*time.Millisecond))

	mock.ExpectQuery(regexp.QuoteMeta("FROM members WHERE app_id = $1 ORDER BY created_at")).
		WithArgs(testAppID).
		WillReturnRows(sqlmock.NewRows(memberRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("FROM members WHERE app_id = $1 ORDER BY created_at")).
		WithArgs(testAppID).
		WillReturnError(errConnRefused)

	stream, err := store.Subscribe(context.Background())
	require.NoError(t, err)

	first := <-stream
	require.NoError(t, first.Err)
	assert.Empty(t, first.Members)

	second := <-stream
	assert.ErrorIs(t, second.Err, sentinel.ErrUnavailable)

	_, open := <-stream
	assert.False(t, open, "stream ends after an error snapshot")
}
