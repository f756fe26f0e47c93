// Package postgres is the PostgreSQL implementation of ports.Store on pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"forum/internal/core"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := RunMigrations(dsn); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return translateError("ping postgres", s.pool.Ping(ctx))
}

func translateError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || pgconn.Timeout(err) {
		return fmt.Errorf("%s: %w: %v", op, core.ErrStoreUnavailable, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w: %s", op, core.ErrConflict, pgErr.Message)
		case "23503":
			return fmt.Errorf("%s: %w: %s", op, core.ErrNotFound, pgErr.Message)
		case "23514", "22001", "22003":
			return fmt.Errorf("%s: %w: %s", op, core.ErrValidation, pgErr.Message)
		case "40001", "40P01", "53300", "57P01":
			return fmt.Errorf("%s: %w: %s", op, core.ErrStoreUnavailable, pgErr.Message)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%s: %w: %v", op, core.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

const memberColumns = `id, name, email, phone, joining_date, monthly_savings_cents,
	total_saved_cents, total_due_cents, profit_share_cents, avatar, role`

func scanMember(row pgx.Row) (core.Member, error) {
	var (
		m       core.Member
		joined  time.Time
		role    string
		monthly int64
		saved   int64
		due     int64
		profit  int64
	)
	err := row.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &joined, &monthly, &saved, &due, &profit, &m.Avatar, &role)
	if err != nil {
		return core.Member{}, err
	}
	m.JoiningDate = toDate(joined)
	m.MonthlySavings = core.Money{Cents: monthly}
	m.TotalSaved = core.Money{Cents: saved}
	m.TotalDue = core.Money{Cents: due}
	m.ProfitShare = core.Money{Cents: profit}
	m.Role = core.Role(role)
	return m, nil
}

func toDate(t time.Time) core.Date {
	return core.NewDate(t.Year(), int(t.Month()), t.Day())
}

func (s *Store) GetMember(ctx context.Context, id string) (core.Member, error) {
	m, err := scanMember(s.pool.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1`, id))
	if err != nil {
		return core.Member{}, translateError("get member "+id, err)
	}
	return m, nil
}

func (s *Store) ListMembers(ctx context.Context) ([]core.Member, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+memberColumns+` FROM members ORDER BY id`)
	if err != nil {
		return nil, translateError("list members", err)
	}
	defer rows.Close()
	out := []core.Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, translateError("scan member", err)
		}
		out = append(out, m)
	}
	return out, translateError("list members", rows.Err())
}

func memberArgs(m core.Member) []any {
	return []any{m.ID, m.Name, m.Email, m.Phone, m.JoiningDate.Time, m.MonthlySavings.Cents,
		m.TotalSaved.Cents, m.TotalDue.Cents, m.ProfitShare.Cents, m.Avatar, string(m.Role)}
}

const insertMember = `INSERT INTO members (` + memberColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

func (s *Store) CreateMember(ctx context.Context, m core.Member) error {
	_, err := s.pool.Exec(ctx, insertMember, memberArgs(m)...)
	return translateError("create member "+m.ID, err)
}

const updateMember = `UPDATE members SET
	name = COALESCE($2::text, name),
	email = COALESCE($3::text, email),
	phone = COALESCE($4::text, phone),
	avatar = COALESCE($5::text, avatar),
	role = COALESCE($6::text, role),
	monthly_savings_cents = COALESCE($7::bigint, monthly_savings_cents),
	total_saved_cents = COALESCE($8::bigint, total_saved_cents),
	total_due_cents = COALESCE($9::bigint, total_due_cents),
	profit_share_cents = COALESCE($10::bigint, profit_share_cents),
	updated_at = now()
WHERE id = $1
RETURNING ` + memberColumns

func cents(m *core.Money) *int64 {
	if m == nil {
		return nil
	}
	return &m.Cents
}

func (s *Store) UpdateMember(ctx context.Context, id string, p core.MemberPatch) (core.Member, error) {
	var role *string
	if p.Role != nil {
		r := string(*p.Role)
		role = &r
	}
	m, err := scanMember(s.pool.QueryRow(ctx, updateMember, id,
		p.Name, p.Email, p.Phone, p.Avatar, role,
		cents(p.MonthlySavings), cents(p.TotalSaved), cents(p.TotalDue), cents(p.ProfitShare)))
	if err != nil {
		return core.Member{}, translateError("update member "+id, err)
	}
	return m, nil
}

const upsertMember = `INSERT INTO members (` + memberColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name, email = EXCLUDED.email, phone = EXCLUDED.phone,
	joining_date = EXCLUDED.joining_date, monthly_savings_cents = EXCLUDED.monthly_savings_cents,
	total_saved_cents = EXCLUDED.total_saved_cents, total_due_cents = EXCLUDED.total_due_cents,
	profit_share_cents = EXCLUDED.profit_share_cents, avatar = EXCLUDED.avatar, role = EXCLUDED.role,
	updated_at = now()
RETURNING (xmax = 0)`

func (s *Store) UpsertMember(ctx context.Context, m core.Member) (bool, error) {
	var created bool
	if err := s.pool.QueryRow(ctx, upsertMember, memberArgs(m)...).Scan(&created); err != nil {
		return false, translateError("upsert member "+m.ID, err)
	}
	return created, nil
}

// DeleteMember removes the ledger entries and the member row in one transaction.
func (s *Store) DeleteMember(ctx context.Context, id string) error {
	var removed int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM transactions WHERE member_id = $1`, id)
		if err != nil {
			return err
		}
		removed = tag.RowsAffected()
		tag, err = tx.Exec(ctx, `DELETE FROM members WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return core.ErrNotFound
		}
		return nil
	})
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("delete member %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return translateError("delete member "+id, err)
	}
	slog.InfoContext(ctx, "Member deleted from postgres", "member_id", id, "transactions_removed", removed)
	return nil
}

const transactionColumns = `id, member_id, amount_cents, kind, occurred_on, description, idempotency_key, created_at`

func scanTransaction(row pgx.Row) (core.Transaction, error) {
	var (
		tx     core.Transaction
		amount int64
		kind   string
		on     time.Time
		key    *string
	)
	if err := row.Scan(&tx.ID, &tx.MemberID, &amount, &kind, &on, &tx.Description, &key, &tx.CreatedAt); err != nil {
		return core.Transaction{}, err
	}
	tx.Amount = core.Money{Cents: amount}
	tx.Kind = core.TransactionKind(kind)
	tx.OccurredOn = toDate(on)
	tx.CreatedAt = tx.CreatedAt.UTC()
	if key != nil {
		tx.IdempotencyKey = *key
	}
	return tx, nil
}

// InsertTransaction appends the entry and applies the deposit increment atomically.
func (s *Store) InsertTransaction(ctx context.Context, t core.Transaction) error {
	var key *string
	if t.IdempotencyKey != "" {
		key = &t.IdempotencyKey
	}
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var saved int64
		err := tx.QueryRow(ctx, `SELECT total_saved_cents FROM members WHERE id = $1 FOR UPDATE`, t.MemberID).Scan(&saved)
		if errors.Is(err, pgx.ErrNoRows) {
			return core.ErrNotFound
		}
		if err != nil {
			return err
		}
		if t.Kind == core.KindDeposit {
			if _, err := (core.Money{Cents: saved}).CheckedAdd(t.Amount); err != nil {
				return err
			}
		}
		_, err = tx.Exec(ctx, `INSERT INTO transactions (`+transactionColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			t.ID, t.MemberID, t.Amount.Cents, string(t.Kind), t.OccurredOn.Time, t.Description, key, createdAt)
		if err != nil {
			return err
		}
		if t.Kind == core.KindDeposit {
			_, err = tx.Exec(ctx, `UPDATE members SET total_saved_cents = total_saved_cents + $1, updated_at = now() WHERE id = $2`,
				t.Amount.Cents, t.MemberID)
		}
		return err
	})
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("insert transaction: member %s: %w", t.MemberID, core.ErrNotFound)
	}
	if errors.Is(err, core.ErrValidation) {
		return fmt.Errorf("insert transaction: member %s: %w", t.MemberID, err)
	}
	return translateError("insert transaction "+t.ID, err)
}

func (s *Store) FindTransactionByKey(ctx context.Context, memberID, key string) (core.Transaction, error) {
	tx, err := scanTransaction(s.pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE member_id = $1 AND idempotency_key = $2`, memberID, key))
	if err != nil {
		return core.Transaction{}, translateError("find transaction by key", err)
	}
	return tx, nil
}

func (s *Store) DeleteTransactionsByMember(ctx context.Context, memberID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM transactions WHERE member_id = $1`, memberID)
	if err != nil {
		return 0, translateError("delete transactions of "+memberID, err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) listTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, translateError("list transactions", err)
	}
	defer rows.Close()
	out := []core.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, translateError("scan transaction", err)
		}
		out = append(out, tx)
	}
	return out, translateError("list transactions", rows.Err())
}

func (s *Store) ListTransactionsByMember(ctx context.Context, memberID string) ([]core.Transaction, error) {
	return s.listTransactions(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE member_id = $1 ORDER BY occurred_on DESC, created_at DESC, id DESC`, memberID)
}

func (s *Store) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	return s.listTransactions(ctx, `SELECT `+transactionColumns+` FROM transactions
		ORDER BY occurred_on DESC, created_at DESC, id DESC`)
}

func (s *Store) SumDepositsByMember(ctx context.Context, memberID string) (core.Money, error) {
	var sum int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount_cents), 0)::BIGINT FROM transactions
		WHERE member_id = $1 AND kind = 'deposit'`, memberID).Scan(&sum)
	if err != nil {
		return core.Money{}, translateError("sum deposits of "+memberID, err)
	}
	return core.Money{Cents: sum}, nil
}

const noticeColumns = `id, title, content, date, author, priority`

func scanNotice(row pgx.Row) (core.Notice, error) {
	var (
		n        core.Notice
		d        time.Time
		priority string
	)
	if err := row.Scan(&n.ID, &n.Title, &n.Content, &d, &n.Author, &priority); err != nil {
		return core.Notice{}, err
	}
	n.Date = toDate(d)
	n.Priority = core.Priority(priority)
	return n, nil
}

func (s *Store) CreateNotice(ctx context.Context, n core.Notice) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO notices (`+noticeColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		n.ID, n.Title, n.Content, n.Date.Time, n.Author, string(n.Priority))
	return translateError("create notice", err)
}

func (s *Store) GetNotice(ctx context.Context, id string) (core.Notice, error) {
	n, err := scanNotice(s.pool.QueryRow(ctx, `SELECT `+noticeColumns+` FROM notices WHERE id = $1`, id))
	if err != nil {
		return core.Notice{}, translateError("get notice "+id, err)
	}
	return n, nil
}

func (s *Store) ListNotices(ctx context.Context) ([]core.Notice, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+noticeColumns+` FROM notices ORDER BY date DESC, id DESC`)
	if err != nil {
		return nil, translateError("list notices", err)
	}
	defer rows.Close()
	out := []core.Notice{}
	for rows.Next() {
		n, err := scanNotice(rows)
		if err != nil {
			return nil, translateError("scan notice", err)
		}
		out = append(out, n)
	}
	return out, translateError("list notices", rows.Err())
}

func (s *Store) UpdateNotice(ctx context.Context, n core.Notice) error {
	tag, err := s.pool.Exec(ctx, `UPDATE notices SET title = $2, content = $3, date = $4, author = $5, priority = $6 WHERE id = $1`,
		n.ID, n.Title, n.Content, n.Date.Time, n.Author, string(n.Priority))
	if err != nil {
		return translateError("update notice "+n.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update notice %s: %w", n.ID, core.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteNotice(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notices WHERE id = $1`, id)
	if err != nil {
		return translateError("delete notice "+id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete notice %s: %w", id, core.ErrNotFound)
	}
	return nil
}

const projectColumns = `id, title, description, investment_amount_cents, status, image_url`

func scanProject(row pgx.Row) (core.ProjectUpdate, error) {
	var (
		p      core.ProjectUpdate
		amount int64
		status string
	)
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &amount, &status, &p.ImageURL); err != nil {
		return core.ProjectUpdate{}, err
	}
	p.InvestmentAmount = core.Money{Cents: amount}
	p.Status = core.ProjectStatus(status)
	return p, nil
}

func (s *Store) CreateProject(ctx context.Context, p core.ProjectUpdate) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO projects (`+projectColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Title, p.Description, p.InvestmentAmount.Cents, string(p.Status), p.ImageURL)
	return translateError("create project", err)
}

func (s *Store) GetProject(ctx context.Context, id string) (core.ProjectUpdate, error) {
	p, err := scanProject(s.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if err != nil {
		return core.ProjectUpdate{}, translateError("get project "+id, err)
	}
	return p, nil
}

func (s *Store) ListProjects(ctx context.Context) ([]core.ProjectUpdate, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY id`)
	if err != nil {
		return nil, translateError("list projects", err)
	}
	defer rows.Close()
	out := []core.ProjectUpdate{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, translateError("scan project", err)
		}
		out = append(out, p)
	}
	return out, translateError("list projects", rows.Err())
}

func (s *Store) UpdateProject(ctx context.Context, p core.ProjectUpdate) error {
	tag, err := s.pool.Exec(ctx, `UPDATE projects SET title = $2, description = $3, investment_amount_cents = $4, status = $5, image_url = $6 WHERE id = $1`,
		p.ID, p.Title, p.Description, p.InvestmentAmount.Cents, string(p.Status), p.ImageURL)
	if err != nil {
		return translateError("update project "+p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update project %s: %w", p.ID, core.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return translateError("delete project "+id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete project %s: %w", id, core.ErrNotFound)
	}
	return nil
}
