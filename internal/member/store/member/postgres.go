package member

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"policardmed/internal/member/models"
	id "policardmed/pkg/domain"
	"policardmed/pkg/platform/sentinel"
)

// NotifyChannel is the LISTEN/NOTIFY channel the members trigger signals on.
const NotifyChannel = "members_changed"

const (
	uniqueViolation   = "23505"
	defaultPollPeriod = 5 * time.Second
)

const memberColumns = `id, primary_member_name, cpf, email, phone, address, plan_type,
	number_of_lives, dependents, plan_start_date, plan_end_date, payment_status,
	is_active, created_at, updated_at`

// PostgresStore persists members in the members table scoped by app_id.
// Dependents are stored as a JSONB array.
type PostgresStore struct {
	db          *sql.DB
	appID       string
	listenerDSN string
	pollPeriod  time.Duration
}

type PostgresOption func(*PostgresStore)

// WithNotifications makes Subscribe LISTEN on NotifyChannel through a
// dedicated lib/pq connection to dsn. Without it Subscribe polls.
func WithNotifications(dsn string) PostgresOption {
	return func(s *PostgresStore) {
		s.listenerDSN = dsn
	}
}

// WithPollPeriod sets the polling interval used without notifications.
func WithPollPeriod(d time.Duration) PostgresOption {
	return func(s *PostgresStore) {
		if d > 0 {
			s.pollPeriod = d
		}
	}
}

func NewPostgres(db *sql.DB, appID string, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db, appID: appID, pollPeriod: defaultPollPeriod}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PostgresStore) Insert(ctx context.Context, m *models.Member) (id.MemberID, error) {
	if m == nil {
		return "", sentinel.ErrInvalidState
	}
	deps, err := json.Marshal(dependentsOrEmpty(m.Dependents))
	if err != nil {
		return "", fmt.Errorf("marshal dependents: %w", err)
	}
	memberID := uuid.New()
	query := `
		INSERT INTO members (
			id, app_id, primary_member_name, cpf, email, phone, address, plan_type,
			number_of_lives, dependents, plan_start_date, plan_end_date, payment_status,
			is_active, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err = s.db.ExecContext(ctx, query,
		memberID,
		s.appID,
		m.PrimaryMemberName,
		m.CPF,
		m.Email,
		m.Phone,
		m.Address,
		string(m.PlanDetails.Type),
		m.PlanDetails.NumberOfLives,
		deps,
		m.PlanStartDate,
		m.PlanEndDate,
		string(m.PaymentStatus),
		m.IsActive,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert member: %w", postgresError(err))
	}
	return id.MemberID(memberID.String()), nil
}

func (s *PostgresStore) FindByID(ctx context.Context, memberID id.MemberID) (*models.Member, error) {
	uid, err := uuid.Parse(memberID.String())
	if err != nil {
		return nil, sentinel.ErrNotFound
	}
	query := `SELECT ` + memberColumns + ` FROM members WHERE app_id = $1 AND id = $2`
	m, err := scanMember(s.db.QueryRowContext(ctx, query, s.appID, uid))
	if err != nil {
		return nil, fmt.Errorf("find member: %w", postgresError(err))
	}
	return m, nil
}

func (s *PostgresStore) FindByCPF(ctx context.Context, cpf string) ([]*models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE app_id = $1 AND cpf = $2 ORDER BY created_at`
	return s.query(ctx, query, s.appID, cpf)
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE app_id = $1 ORDER BY created_at`
	return s.query(ctx, query, s.appID)
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*models.Member, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", postgresError(err))
	}
	defer rows.Close()

	out := make([]*models.Member, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", postgresError(err))
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", postgresError(err))
	}
	return out, nil
}

func (s *PostgresStore) Patch(ctx context.Context, memberID id.MemberID, patch models.Patch) error {
	uid, err := uuid.Parse(memberID.String())
	if err != nil {
		return sentinel.ErrNotFound
	}
	sets, args, err := patchAssignments(patch)
	if err != nil {
		return err
	}
	args = append(args, s.appID, uid)
	query := fmt.Sprintf(`UPDATE members SET %s WHERE app_id = $%d AND id = $%d`,
		strings.Join(sets, ", "), len(args)-1, len(args))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("patch member: %w", postgresError(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("patch member: %w", postgresError(err))
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// patchAssignments renders the SET list in a fixed column order.
func patchAssignments(p models.Patch) ([]string, []any, error) {
	var (
		sets []string
		args []any
	)
	add := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}
	if p.PrimaryMemberName != nil {
		add("primary_member_name", *p.PrimaryMemberName)
	}
	if p.Email != nil {
		add("email", *p.Email)
	}
	if p.Phone != nil {
		add("phone", *p.Phone)
	}
	if p.Address != nil {
		add("address", *p.Address)
	}
	if p.PlanType != nil {
		add("plan_type", string(*p.PlanType))
	}
	if p.NumberOfLives != nil {
		add("number_of_lives", *p.NumberOfLives)
	}
	if p.Dependents != nil {
		raw, err := json.Marshal(dependentsOrEmpty(*p.Dependents))
		if err != nil {
			return nil, nil, fmt.Errorf("marshal dependents: %w", err)
		}
		add("dependents", raw)
	}
	if p.PaymentStatus != nil {
		add("payment_status", string(*p.PaymentStatus))
	}
	if p.IsActive != nil {
		add("is_active", *p.IsActive)
	}
	add("updated_at", p.UpdatedAt)
	return sets, args, nil
}

// Subscribe emits the current member list, then a fresh list whenever the
// members trigger notifies for this app (or on every poll tick without
// notifications). A failed read ends the stream with an error snapshot.
func (s *PostgresStore) Subscribe(ctx context.Context) (<-chan models.Snapshot, error) {
	var listener *pq.Listener
	if s.listenerDSN != "" {
		listener = pq.NewListener(s.listenerDSN, time.Second, time.Minute, nil)
		if err := listener.Listen(NotifyChannel); err != nil {
			_ = listener.Close()
			return nil, fmt.Errorf("listen %s: %w", NotifyChannel, postgresError(err))
		}
	}

	out := make(chan models.Snapshot)
	go func() {
		defer close(out)
		if listener != nil {
			defer listener.Close()
		}
		if !s.emitSnapshot(ctx, out) {
			return
		}
		if listener == nil {
			s.poll(ctx, out)
			return
		}
		s.listen(ctx, listener, out)
	}()
	return out, nil
}

func (s *PostgresStore) listen(ctx context.Context, listener *pq.Listener, out chan<- models.Snapshot) {
	keepalive := time.NewTicker(90 * time.Second)
	defer keepalive.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-listener.Notify:
			if !ok {
				send(ctx, out, models.Snapshot{Err: fmt.Errorf("%w: notification listener closed", sentinel.ErrUnavailable)})
				return
			}
			// nil notifications follow a reconnect; changes may have been missed.
			if n != nil && n.Extra != s.appID {
				continue
			}
			if !s.emitSnapshot(ctx, out) {
				return
			}
		case <-keepalive.C:
			_ = listener.Ping()
		}
	}
}

func (s *PostgresStore) poll(ctx context.Context, out chan<- models.Snapshot) {
	ticker := time.NewTicker(s.pollPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.emitSnapshot(ctx, out) {
				return
			}
		}
	}
}

func (s *PostgresStore) emitSnapshot(ctx context.Context, out chan<- models.Snapshot) bool {
	members, err := s.List(ctx)
	if err != nil {
		if ctx.Err() == nil {
			send(ctx, out, models.Snapshot{Err: err})
		}
		return false
	}
	return send(ctx, out, models.Snapshot{Members: members})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (*models.Member, error) {
	var (
		m        models.Member
		memberID uuid.UUID
		planType string
		payment  string
		deps     []byte
	)
	err := row.Scan(
		&memberID,
		&m.PrimaryMemberName,
		&m.CPF,
		&m.Email,
		&m.Phone,
		&m.Address,
		&planType,
		&m.PlanDetails.NumberOfLives,
		&deps,
		&m.PlanStartDate,
		&m.PlanEndDate,
		&payment,
		&m.IsActive,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.ID = id.MemberID(memberID.String())
	m.PlanDetails.Type = models.PlanType(planType)
	m.PaymentStatus = models.PaymentStatus(payment)
	m.Dependents = make([]models.Dependent, 0)
	if len(deps) > 0 {
		if err := json.Unmarshal(deps, &m.Dependents); err != nil {
			return nil, fmt.Errorf("decode dependents: %w", err)
		}
	}
	return &m, nil
}

func dependentsOrEmpty(deps []models.Dependent) []models.Dependent {
	if deps == nil {
		return []models.Dependent{}
	}
	return deps
}

// postgresError maps driver errors onto store sentinels. Both pgx (queries)
// and lib/pq (the notification listener) errors are recognised.
func postgresError(err error) error {
	var pgErr *pgconn.PgError
	var pqErr *pq.Error
	var netErr net.Error
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return sentinel.ErrNotFound
	case errors.As(err, &pgErr) && pgErr.Code == uniqueViolation:
		return fmt.Errorf("%w: %s", sentinel.ErrConflict, pgErr.ConstraintName)
	case errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation:
		return fmt.Errorf("%w: %s", sentinel.ErrConflict, pqErr.Constraint)
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone),
		errors.Is(err, context.DeadlineExceeded), pgconn.Timeout(err), errors.As(err, &netErr):
		return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	default:
		var connErr *pgconn.ConnectError
		if errors.As(err, &connErr) {
			return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
		}
		return err
	}
}
