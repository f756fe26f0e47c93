// Package storage is the SQLite implementation of ports.Store.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"forum/internal/core"

	_ "modernc.org/sqlite"
)

// createdAtLayout is fixed-width so that text ordering matches time ordering.
const createdAtLayout = "2006-01-02T15:04:05.000000Z"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

// DSN enables foreign keys, waits on locks and takes the write lock at BEGIN.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", DSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one writer connection serializes the insert+increment units
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return translateError("ping database", r.db.PingContext(ctx))
}

// inTx runs fn inside a transaction and commits only if fn succeeds.
func (r *SQLiteRepository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r *SQLiteRepository) GetMember(ctx context.Context, id string) (core.Member, error) {
	row, err := r.queries.GetMember(ctx, id)
	if err != nil {
		return core.Member{}, translateError("get member "+id, err)
	}
	return memberFromRow(row)
}

func (r *SQLiteRepository) ListMembers(ctx context.Context) ([]core.Member, error) {
	rows, err := r.queries.ListMembers(ctx)
	if err != nil {
		return nil, translateError("list members", err)
	}
	out := make([]core.Member, 0, len(rows))
	for _, row := range rows {
		m, err := memberFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *SQLiteRepository) CreateMember(ctx context.Context, m core.Member) error {
	err := r.inTx(ctx, func(q *Queries) error {
		exists, err := q.MemberExists(ctx, m.ID)
		if err != nil {
			return err
		}
		if exists {
			return core.ErrConflict
		}
		return q.CreateMember(ctx, memberToRow(m))
	})
	if errors.Is(err, core.ErrConflict) {
		return fmt.Errorf("create member %s: %w", m.ID, core.ErrConflict)
	}
	if err != nil {
		return translateError("create member "+m.ID, err)
	}
	slog.DebugContext(ctx, "Member saved to SQLite", "member_id", m.ID)
	return nil
}

func (r *SQLiteRepository) UpdateMember(ctx context.Context, id string, patch core.MemberPatch) (core.Member, error) {
	row, err := r.queries.PatchMember(ctx, patchToParams(id, patch))
	if err != nil {
		return core.Member{}, translateError("update member "+id, err)
	}
	return memberFromRow(row)
}

func (r *SQLiteRepository) UpsertMember(ctx context.Context, m core.Member) (bool, error) {
	var created bool
	err := r.inTx(ctx, func(q *Queries) error {
		exists, err := q.MemberExists(ctx, m.ID)
		if err != nil {
			return err
		}
		if exists {
			_, err = q.ReplaceMember(ctx, memberToRow(m))
			return err
		}
		created = true
		return q.CreateMember(ctx, memberToRow(m))
	})
	if err != nil {
		return false, translateError("upsert member "+m.ID, err)
	}
	return created, nil
}

// DeleteMember removes the ledger entries and the member row in one transaction.
func (r *SQLiteRepository) DeleteMember(ctx context.Context, id string) error {
	var removed int64
	err := r.inTx(ctx, func(q *Queries) error {
		var err error
		if removed, err = q.DeleteTransactionsByMember(ctx, id); err != nil {
			return err
		}
		n, err := q.DeleteMember(ctx, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return core.ErrNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("delete member %s: %w", id, core.ErrNotFound)
		}
		return translateError("delete member "+id, err)
	}
	slog.InfoContext(ctx, "Member deleted from SQLite", "member_id", id, "transactions_removed", removed)
	return nil
}

// InsertTransaction appends the entry and applies the deposit increment atomically.
func (r *SQLiteRepository) InsertTransaction(ctx context.Context, tx core.Transaction) error {
	err := r.inTx(ctx, func(q *Queries) error {
		saved, err := q.GetTotalSaved(ctx, tx.MemberID)
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrNotFound
		}
		if err != nil {
			return err
		}
		if tx.Kind == core.KindDeposit {
			if _, err := (core.Money{Cents: saved}).CheckedAdd(tx.Amount); err != nil {
				return err
			}
		}
		if tx.IdempotencyKey != "" {
			if _, err := q.GetTransactionByKey(ctx, tx.MemberID, tx.IdempotencyKey); err == nil {
				return core.ErrConflict
			} else if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
		}
		if err := q.InsertTransaction(ctx, transactionToRow(tx)); err != nil {
			return err
		}
		if tx.Kind == core.KindDeposit {
			if _, err := q.IncrementTotalSaved(ctx, tx.MemberID, tx.Amount.Cents); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("insert transaction: member %s: %w", tx.MemberID, core.ErrNotFound)
		}
		if errors.Is(err, core.ErrConflict) {
			return fmt.Errorf("insert transaction: idempotency key %q: %w", tx.IdempotencyKey, core.ErrConflict)
		}
		if errors.Is(err, core.ErrValidation) {
			return fmt.Errorf("insert transaction: member %s: %w", tx.MemberID, err)
		}
		return translateError("insert transaction "+tx.ID, err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"transaction_id", tx.ID,
		"member_id", tx.MemberID,
		"kind", tx.Kind,
		"amount_cents", tx.Amount.Cents)
	return nil
}

func (r *SQLiteRepository) FindTransactionByKey(ctx context.Context, memberID, key string) (core.Transaction, error) {
	row, err := r.queries.GetTransactionByKey(ctx, memberID, key)
	if err != nil {
		return core.Transaction{}, translateError("find transaction by key", err)
	}
	return transactionFromRow(row)
}

func (r *SQLiteRepository) DeleteTransactionsByMember(ctx context.Context, memberID string) (int64, error) {
	n, err := r.queries.DeleteTransactionsByMember(ctx, memberID)
	if err != nil {
		return 0, translateError("delete transactions of "+memberID, err)
	}
	return n, nil
}

func (r *SQLiteRepository) ListTransactionsByMember(ctx context.Context, memberID string) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactionsByMember(ctx, memberID)
	if err != nil {
		return nil, translateError("list transactions of "+memberID, err)
	}
	return transactionsFromRows(rows)
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactions(ctx)
	if err != nil {
		return nil, translateError("list transactions", err)
	}
	return transactionsFromRows(rows)
}

func (r *SQLiteRepository) SumDepositsByMember(ctx context.Context, memberID string) (core.Money, error) {
	sum, err := r.queries.SumDepositsByMember(ctx, memberID)
	if err != nil {
		return core.Money{}, translateError("sum deposits of "+memberID, err)
	}
	return core.Money{Cents: sum}, nil
}

func (r *SQLiteRepository) CreateNotice(ctx context.Context, n core.Notice) error {
	return translateError("create notice", r.queries.CreateNotice(ctx, noticeToRow(n)))
}

func (r *SQLiteRepository) GetNotice(ctx context.Context, id string) (core.Notice, error) {
	row, err := r.queries.GetNotice(ctx, id)
	if err != nil {
		return core.Notice{}, translateError("get notice "+id, err)
	}
	return noticeFromRow(row)
}

func (r *SQLiteRepository) ListNotices(ctx context.Context) ([]core.Notice, error) {
	rows, err := r.queries.ListNotices(ctx)
	if err != nil {
		return nil, translateError("list notices", err)
	}
	out := make([]core.Notice, 0, len(rows))
	for _, row := range rows {
		n, err := noticeFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateNotice(ctx context.Context, n core.Notice) error {
	affected, err := r.queries.UpdateNotice(ctx, noticeToRow(n))
	if err != nil {
		return translateError("update notice "+n.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("update notice %s: %w", n.ID, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) DeleteNotice(ctx context.Context, id string) error {
	affected, err := r.queries.DeleteNotice(ctx, id)
	if err != nil {
		return translateError("delete notice "+id, err)
	}
	if affected == 0 {
		return fmt.Errorf("delete notice %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) CreateProject(ctx context.Context, p core.ProjectUpdate) error {
	return translateError("create project", r.queries.CreateProject(ctx, projectToRow(p)))
}

func (r *SQLiteRepository) GetProject(ctx context.Context, id string) (core.ProjectUpdate, error) {
	row, err := r.queries.GetProject(ctx, id)
	if err != nil {
		return core.ProjectUpdate{}, translateError("get project "+id, err)
	}
	return projectFromRow(row), nil
}

func (r *SQLiteRepository) ListProjects(ctx context.Context) ([]core.ProjectUpdate, error) {
	rows, err := r.queries.ListProjects(ctx)
	if err != nil {
		return nil, translateError("list projects", err)
	}
	out := make([]core.ProjectUpdate, 0, len(rows))
	for _, row := range rows {
		out = append(out, projectFromRow(row))
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateProject(ctx context.Context, p core.ProjectUpdate) error {
	affected, err := r.queries.UpdateProject(ctx, projectToRow(p))
	if err != nil {
		return translateError("update project "+p.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("update project %s: %w", p.ID, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) DeleteProject(ctx context.Context, id string) error {
	affected, err := r.queries.DeleteProject(ctx, id)
	if err != nil {
		return translateError("delete project "+id, err)
	}
	if affected == 0 {
		return fmt.Errorf("delete project %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func memberToRow(m core.Member) MemberRow {
	return MemberRow{
		ID:                  m.ID,
		Name:                m.Name,
		Email:               m.Email,
		Phone:               m.Phone,
		JoiningDate:         m.JoiningDate.String(),
		MonthlySavingsCents: m.MonthlySavings.Cents,
		TotalSavedCents:     m.TotalSaved.Cents,
		TotalDueCents:       m.TotalDue.Cents,
		ProfitShareCents:    m.ProfitShare.Cents,
		Avatar:              m.Avatar,
		Role:                string(m.Role),
	}
}

func memberFromRow(row MemberRow) (core.Member, error) {
	joined, err := core.ParseDate(row.JoiningDate)
	if err != nil {
		return core.Member{}, fmt.Errorf("member %s joining date: %w", row.ID, err)
	}
	return core.Member{
		ID:             row.ID,
		Name:           row.Name,
		Email:          row.Email,
		Phone:          row.Phone,
		JoiningDate:    joined,
		MonthlySavings: core.Money{Cents: row.MonthlySavingsCents},
		TotalSaved:     core.Money{Cents: row.TotalSavedCents},
		TotalDue:       core.Money{Cents: row.TotalDueCents},
		ProfitShare:    core.Money{Cents: row.ProfitShareCents},
		Avatar:         row.Avatar,
		Role:           core.Role(row.Role),
	}, nil
}

func patchToParams(id string, p core.MemberPatch) PatchMemberParams {
	str := func(v *string) sql.NullString {
		if v == nil {
			return sql.NullString{}
		}
		return sql.NullString{String: *v, Valid: true}
	}
	cents := func(v *core.Money) sql.NullInt64 {
		if v == nil {
			return sql.NullInt64{}
		}
		return sql.NullInt64{Int64: v.Cents, Valid: true}
	}
	params := PatchMemberParams{
		ID:                  id,
		Name:                str(p.Name),
		Email:               str(p.Email),
		Phone:               str(p.Phone),
		Avatar:              str(p.Avatar),
		MonthlySavingsCents: cents(p.MonthlySavings),
		TotalSavedCents:     cents(p.TotalSaved),
		TotalDueCents:       cents(p.TotalDue),
		ProfitShareCents:    cents(p.ProfitShare),
	}
	if p.Role != nil {
		params.Role = sql.NullString{String: string(*p.Role), Valid: true}
	}
	return params
}

func transactionToRow(tx core.Transaction) TransactionRow {
	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return TransactionRow{
		ID:             tx.ID,
		MemberID:       tx.MemberID,
		AmountCents:    tx.Amount.Cents,
		Kind:           string(tx.Kind),
		OccurredOn:     tx.OccurredOn.String(),
		Description:    tx.Description,
		IdempotencyKey: sql.NullString{String: tx.IdempotencyKey, Valid: tx.IdempotencyKey != ""},
		CreatedAt:      createdAt.UTC().Format(createdAtLayout),
	}
}

func transactionFromRow(row TransactionRow) (core.Transaction, error) {
	on, err := core.ParseDate(row.OccurredOn)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s date: %w", row.ID, err)
	}
	createdAt, err := time.Parse(createdAtLayout, row.CreatedAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s created_at: %w", row.ID, err)
	}
	return core.Transaction{
		ID:             row.ID,
		MemberID:       row.MemberID,
		Amount:         core.Money{Cents: row.AmountCents},
		Kind:           core.TransactionKind(row.Kind),
		OccurredOn:     on,
		Description:    row.Description,
		IdempotencyKey: row.IdempotencyKey.String,
		CreatedAt:      createdAt,
	}, nil
}

func transactionsFromRows(rows []TransactionRow) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := transactionFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

func noticeToRow(n core.Notice) NoticeRow {
	return NoticeRow{
		ID:       n.ID,
		Title:    n.Title,
		Content:  n.Content,
		Date:     n.Date.String(),
		Author:   n.Author,
		Priority: string(n.Priority),
	}
}

func noticeFromRow(row NoticeRow) (core.Notice, error) {
	d, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Notice{}, fmt.Errorf("notice %s date: %w", row.ID, err)
	}
	return core.Notice{
		ID:       row.ID,
		Title:    row.Title,
		Content:  row.Content,
		Date:     d,
		Author:   row.Author,
		Priority: core.Priority(row.Priority),
	}, nil
}

func projectToRow(p core.ProjectUpdate) ProjectRow {
	return ProjectRow{
		ID:                    p.ID,
		Title:                 p.Title,
		Description:           p.Description,
		InvestmentAmountCents: p.InvestmentAmount.Cents,
		Status:                string(p.Status),
		ImageUrl:              p.ImageURL,
	}
}

func projectFromRow(row ProjectRow) core.ProjectUpdate {
	return core.ProjectUpdate{
		ID:               row.ID,
		Title:            row.Title,
		Description:      row.Description,
		InvestmentAmount: core.Money{Cents: row.InvestmentAmountCents},
		Status:           core.ProjectStatus(row.Status),
		ImageURL:         row.ImageUrl,
	}
}
