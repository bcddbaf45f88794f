package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/basekeeper/pkg/billing"
	"github.com/platinummonkey/basekeeper/pkg/members"
	"github.com/platinummonkey/basekeeper/pkg/observability"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store implements billing.Store on database/sql. Placeholders are written
// as $1..$n in order of appearance so the same statements run on PostgreSQL
// and SQLite.
type Store struct {
	db      *sql.DB
	reader  func() *sql.DB
	dialect Dialect
	metrics *observability.Metrics
}

// Option configures a Store
type Option func(*Store)

// WithReadReplicas routes listings made outside a transaction to pick().
// Point reads and transactions always use the primary.
func WithReadReplicas(pick func() *sql.DB) Option {
	return func(s *Store) { s.reader = pick }
}

// WithMetrics records transaction durations
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Store) { s.metrics = metrics }
}

// NewStore creates a Store over db. The schema must already be migrated.
func NewStore(db *sql.DB, dialect Dialect, opts ...Option) *Store {
	s := &Store{db: db, dialect: dialect}
	for _, opt := range opts {
		opt(s)
	}
	if s.reader == nil {
		s.reader = func() *sql.DB { return db }
	}
	return s
}

// Subscriptions returns the subscription repository
func (s *Store) Subscriptions() billing.SubscriptionRepository {
	return subscriptionRepo{q: s.db, list: s.reader()}
}

// Payments returns the payment repository
func (s *Store) Payments() billing.PaymentRepository {
	return paymentRepo{q: s.db, list: s.reader()}
}

// Members returns the member repository
func (s *Store) Members() members.Repository {
	return memberRepo{q: s.db}
}

// HealthCheck pings the primary
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InTenantTx runs fn in a database transaction that holds the tenant's lock.
// On PostgreSQL the lock is a transaction-scoped advisory lock keyed by the
// tenant id; on SQLite every transaction begins IMMEDIATE and so holds the
// database write lock.
func (s *Store) InTenantTx(ctx context.Context, tenantID string, fn func(ctx context.Context, repos billing.Repositories) error) error {
	started := time.Now()
	defer s.metrics.ObserveTransaction("tenant_tx", started)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if s.dialect == DialectPostgres {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", tenantID); err != nil {
			return fmt.Errorf("failed to lock tenant %s: %w", tenantID, err)
		}
	}

	if err := fn(ctx, txRepos{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txRepos struct {
	tx *sql.Tx
}

func (r txRepos) Subscriptions() billing.SubscriptionRepository {
	return subscriptionRepo{q: r.tx, list: r.tx}
}
func (r txRepos) Payments() billing.PaymentRepository { return paymentRepo{q: r.tx, list: r.tx} }
func (r txRepos) Members() members.Repository         { return memberRepo{q: r.tx} }

const subscriptionColumns = `tenant_id, plan, status, member_limit, start_date, end_date, amount, created_at, updated_at`

type subscriptionRepo struct {
	q    querier
	list querier
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubscription(row rowScanner) (*billing.Subscription, error) {
	var sub billing.Subscription
	if err := row.Scan(
		&sub.TenantID, &sub.Plan, &sub.Status, &sub.MemberLimit,
		&sub.StartDate, &sub.EndDate, &sub.Amount, &sub.CreatedAt, &sub.UpdatedAt,
	); err != nil {
		return nil, err
	}
	sub.StartDate = sub.StartDate.UTC()
	sub.EndDate = sub.EndDate.UTC()
	sub.CreatedAt = sub.CreatedAt.UTC()
	sub.UpdatedAt = sub.UpdatedAt.UTC()

	if err := sub.Validate(); err != nil {
		return nil, fmt.Errorf("failed to decode subscription for tenant %s: %w", sub.TenantID, err)
	}
	return &sub, nil
}

func (r subscriptionRepo) GetSubscription(ctx context.Context, tenantID string) (*billing.Subscription, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE tenant_id = $1`, tenantID)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, billing.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (r subscriptionRepo) SaveSubscription(ctx context.Context, sub *billing.Subscription) error {
	if err := sub.Validate(); err != nil {
		return err
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tenant_id) DO UPDATE SET
			plan = EXCLUDED.plan,
			status = EXCLUDED.status,
			member_limit = EXCLUDED.member_limit,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			amount = EXCLUDED.amount,
			updated_at = EXCLUDED.updated_at
	`, sub.TenantID, sub.Plan, sub.Status, sub.MemberLimit,
		sub.StartDate.UTC(), sub.EndDate.UTC(), sub.Amount, sub.CreatedAt.UTC(), sub.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

func (r subscriptionRepo) ListSubscriptions(ctx context.Context) ([]*billing.Subscription, error) {
	rows, err := r.list.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions ORDER BY tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	subs := make([]*billing.Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

const paymentColumns = `id, tenant_id, type, status, amount, description, payment_method, metadata, created_at, updated_at, confirmed_at, confirmed_by`

type paymentRepo struct {
	q    querier
	list querier
}

func scanPayment(row rowScanner) (*billing.Payment, error) {
	var (
		p           billing.Payment
		metadata    []byte
		confirmedAt sql.NullTime
	)
	if err := row.Scan(
		&p.ID, &p.TenantID, &p.Type, &p.Status, &p.Amount, &p.Description, &p.PaymentMethod,
		&metadata, &p.CreatedAt, &p.UpdatedAt, &confirmedAt, &p.ConfirmedBy,
	); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	if confirmedAt.Valid {
		t := confirmedAt.Time.UTC()
		p.ConfirmedAt = &t
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode payment %s: %w",
				p.ID, &billing.ValidationError{Record: "payment", Field: "metadata", Reason: err.Error()})
		}
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("failed to decode payment %s: %w", p.ID, err)
	}
	return &p, nil
}

func encodeMetadata(m billing.PaymentMetadata) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode payment metadata: %w", err)
	}
	return string(data), nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func (r paymentRepo) CreatePayment(ctx context.Context, p *billing.Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}
	metadata, err := encodeMetadata(p.Metadata)
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, p.ID, p.TenantID, p.Type, p.Status, p.Amount, p.Description, p.PaymentMethod,
		metadata, p.CreatedAt.UTC(), p.UpdatedAt.UTC(), nullTime(p.ConfirmedAt), p.ConfirmedBy)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (r paymentRepo) GetPayment(ctx context.Context, id string) (*billing.Payment, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, billing.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r paymentRepo) UpdatePayment(ctx context.Context, p *billing.Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}
	metadata, err := encodeMetadata(p.Metadata)
	if err != nil {
		return err
	}

	result, err := r.q.ExecContext(ctx, `
		UPDATE payments
		SET status = $1, amount = $2, description = $3, payment_method = $4, metadata = $5,
			updated_at = $6, confirmed_at = $7, confirmed_by = $8
		WHERE id = $9
	`, p.Status, p.Amount, p.Description, p.PaymentMethod, metadata,
		p.UpdatedAt.UTC(), nullTime(p.ConfirmedAt), p.ConfirmedBy, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	return expectOneRow(result)
}

func (r paymentRepo) DeletePayment(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	return expectOneRow(result)
}

func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return billing.ErrNotFound
	}
	return nil
}

func (r paymentRepo) ListPayments(ctx context.Context, filter billing.PaymentFilter) ([]*billing.Payment, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.TenantID != "" {
		args = append(args, filter.TenantID)
		conditions = append(conditions, fmt.Sprintf("tenant_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + paymentColumns + ` FROM payments`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.list.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	payments := make([]*billing.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

type memberRepo struct {
	q querier
}

func (r memberRepo) CountApprovedMembers(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM members WHERE tenant_id = $1 AND status = $2`,
		tenantID, members.StatusApproved,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return count, nil
}

func (r memberRepo) InsertMember(ctx context.Context, m *members.Member) error {
	if err := m.Validate(); err != nil {
		return err
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO members (id, tenant_id, name, email, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.ID, m.TenantID, m.Name, m.Email, m.Status, m.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert member: %w", err)
	}
	return nil
}

func (r memberRepo) ListMembers(ctx context.Context, tenantID string) ([]*members.Member, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, tenant_id, name, email, status, created_at
		FROM members WHERE tenant_id = $1
		ORDER BY created_at, id
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	out := make([]*members.Member, 0)
	for rows.Next() {
		var m members.Member
		if err := rows.Scan(&m.ID, &m.TenantID, &m.Name, &m.Email, &m.Status, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.CreatedAt = m.CreatedAt.UTC()
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("failed to decode member %s: %w", m.ID, err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

var (
	_ billing.Store        = (*Store)(nil)
	_ billing.Repositories = txRepos{}
)
