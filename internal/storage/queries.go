package storage

import (
	"context"
	"database/sql"
)

const memberColumns = `id, name, email, phone, joining_date, monthly_savings_cents,
	total_saved_cents, total_due_cents, profit_share_cents, avatar, role`

const getMember = `SELECT ` + memberColumns + ` FROM members WHERE id = ?`

func (q *Queries) GetMember(ctx context.Context, id string) (MemberRow, error) {
	row := q.db.QueryRowContext(ctx, getMember, id)
	return scanMember(row)
}

const memberExists = `SELECT EXISTS(SELECT 1 FROM members WHERE id = ?)`

func (q *Queries) MemberExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, memberExists, id).Scan(&exists)
	return exists, err
}

const listMembers = `SELECT ` + memberColumns + ` FROM members ORDER BY id`

func (q *Queries) ListMembers(ctx context.Context) ([]MemberRow, error) {
	rows, err := q.db.QueryContext(ctx, listMembers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MemberRow
	for rows.Next() {
		i, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createMember = `INSERT INTO members (` + memberColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateMember(ctx context.Context, arg MemberRow) error {
	_, err := q.db.ExecContext(ctx, createMember,
		arg.ID, arg.Name, arg.Email, arg.Phone, arg.JoiningDate, arg.MonthlySavingsCents,
		arg.TotalSavedCents, arg.TotalDueCents, arg.ProfitShareCents, arg.Avatar, arg.Role)
	return err
}

const replaceMember = `UPDATE members SET
	name = ?, email = ?, phone = ?, joining_date = ?, monthly_savings_cents = ?,
	total_saved_cents = ?, total_due_cents = ?, profit_share_cents = ?, avatar = ?, role = ?,
	updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
WHERE id = ?`

func (q *Queries) ReplaceMember(ctx context.Context, arg MemberRow) (int64, error) {
	result, err := q.db.ExecContext(ctx, replaceMember,
		arg.Name, arg.Email, arg.Phone, arg.JoiningDate, arg.MonthlySavingsCents,
		arg.TotalSavedCents, arg.TotalDueCents, arg.ProfitShareCents, arg.Avatar, arg.Role,
		arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type PatchMemberParams struct {
	ID                  string
	Name                sql.NullString
	Email               sql.NullString
	Phone               sql.NullString
	Avatar              sql.NullString
	Role                sql.NullString
	MonthlySavingsCents sql.NullInt64
	TotalSavedCents     sql.NullInt64
	TotalDueCents       sql.NullInt64
	ProfitShareCents    sql.NullInt64
}

const patchMember = `UPDATE members SET
	name = COALESCE(?, name),
	email = COALESCE(?, email),
	phone = COALESCE(?, phone),
	avatar = COALESCE(?, avatar),
	role = COALESCE(?, role),
	monthly_savings_cents = COALESCE(?, monthly_savings_cents),
	total_saved_cents = COALESCE(?, total_saved_cents),
	total_due_cents = COALESCE(?, total_due_cents),
	profit_share_cents = COALESCE(?, profit_share_cents),
	updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
WHERE id = ?
RETURNING ` + memberColumns

func (q *Queries) PatchMember(ctx context.Context, arg PatchMemberParams) (MemberRow, error) {
	row := q.db.QueryRowContext(ctx, patchMember,
		arg.Name, arg.Email, arg.Phone, arg.Avatar, arg.Role,
		arg.MonthlySavingsCents, arg.TotalSavedCents, arg.TotalDueCents, arg.ProfitShareCents,
		arg.ID)
	return scanMember(row)
}

const getTotalSaved = `SELECT total_saved_cents FROM members WHERE id = ?`

func (q *Queries) GetTotalSaved(ctx context.Context, id string) (int64, error) {
	var cents int64
	err := q.db.QueryRowContext(ctx, getTotalSaved, id).Scan(&cents)
	return cents, err
}

const incrementTotalSaved = `UPDATE members
SET total_saved_cents = total_saved_cents + ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
WHERE id = ?`

func (q *Queries) IncrementTotalSaved(ctx context.Context, memberID string, cents int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, incrementTotalSaved, cents, memberID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteMember = `DELETE FROM members WHERE id = ?`

func (q *Queries) DeleteMember(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteMember, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const transactionColumns = `id, member_id, amount_cents, kind, occurred_on, description, idempotency_key, created_at`

const insertTransaction = `INSERT INTO transactions (` + transactionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertTransaction(ctx context.Context, arg TransactionRow) error {
	_, err := q.db.ExecContext(ctx, insertTransaction,
		arg.ID, arg.MemberID, arg.AmountCents, arg.Kind, arg.OccurredOn,
		arg.Description, arg.IdempotencyKey, arg.CreatedAt)
	return err
}

const getTransactionByKey = `SELECT ` + transactionColumns + ` FROM transactions
WHERE member_id = ? AND idempotency_key = ?`

func (q *Queries) GetTransactionByKey(ctx context.Context, memberID, key string) (TransactionRow, error) {
	row := q.db.QueryRowContext(ctx, getTransactionByKey, memberID, key)
	return scanTransaction(row)
}

const deleteTransactionsByMember = `DELETE FROM transactions WHERE member_id = ?`

func (q *Queries) DeleteTransactionsByMember(ctx context.Context, memberID string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteTransactionsByMember, memberID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listTransactionsByMember = `SELECT ` + transactionColumns + ` FROM transactions
WHERE member_id = ?
ORDER BY occurred_on DESC, created_at DESC, id DESC`

func (q *Queries) ListTransactionsByMember(ctx context.Context, memberID string) ([]TransactionRow, error) {
	return q.listTransactions(ctx, listTransactionsByMember, memberID)
}

const listTransactions = `SELECT ` + transactionColumns + ` FROM transactions
ORDER BY occurred_on DESC, created_at DESC, id DESC`

func (q *Queries) ListTransactions(ctx context.Context) ([]TransactionRow, error) {
	return q.listTransactions(ctx, listTransactions)
}

func (q *Queries) listTransactions(ctx context.Context, query string, args ...interface{}) ([]TransactionRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TransactionRow
	for rows.Next() {
		i, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const sumDepositsByMember = `SELECT CAST(COALESCE(SUM(amount_cents), 0) AS INTEGER) FROM transactions
WHERE member_id = ? AND kind = 'deposit'`

func (q *Queries) SumDepositsByMember(ctx context.Context, memberID string) (int64, error) {
	var sum int64
	err := q.db.QueryRowContext(ctx, sumDepositsByMember, memberID).Scan(&sum)
	return sum, err
}

const noticeColumns = `id, title, content, date, author, priority`

const createNotice = `INSERT INTO notices (` + noticeColumns + `) VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateNotice(ctx context.Context, arg NoticeRow) error {
	_, err := q.db.ExecContext(ctx, createNotice, arg.ID, arg.Title, arg.Content, arg.Date, arg.Author, arg.Priority)
	return err
}

const getNotice = `SELECT ` + noticeColumns + ` FROM notices WHERE id = ?`

func (q *Queries) GetNotice(ctx context.Context, id string) (NoticeRow, error) {
	var i NoticeRow
	err := q.db.QueryRowContext(ctx, getNotice, id).Scan(&i.ID, &i.Title, &i.Content, &i.Date, &i.Author, &i.Priority)
	return i, err
}

const listNotices = `SELECT ` + noticeColumns + ` FROM notices ORDER BY date DESC, id DESC`

func (q *Queries) ListNotices(ctx context.Context) ([]NoticeRow, error) {
	rows, err := q.db.QueryContext(ctx, listNotices)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []NoticeRow
	for rows.Next() {
		var i NoticeRow
		if err := rows.Scan(&i.ID, &i.Title, &i.Content, &i.Date, &i.Author, &i.Priority); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateNotice = `UPDATE notices SET title = ?, content = ?, date = ?, author = ?, priority = ? WHERE id = ?`

func (q *Queries) UpdateNotice(ctx context.Context, arg NoticeRow) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateNotice, arg.Title, arg.Content, arg.Date, arg.Author, arg.Priority, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteNotice = `DELETE FROM notices WHERE id = ?`

func (q *Queries) DeleteNotice(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteNotice, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const projectColumns = `id, title, description, investment_amount_cents, status, image_url`

const createProject = `INSERT INTO projects (` + projectColumns + `) VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateProject(ctx context.Context, arg ProjectRow) error {
	_, err := q.db.ExecContext(ctx, createProject, arg.ID, arg.Title, arg.Description, arg.InvestmentAmountCents, arg.Status, arg.ImageUrl)
	return err
}

const getProject = `SELECT ` + projectColumns + ` FROM projects WHERE id = ?`

func (q *Queries) GetProject(ctx context.Context, id string) (ProjectRow, error) {
	var i ProjectRow
	err := q.db.QueryRowContext(ctx, getProject, id).Scan(&i.ID, &i.Title, &i.Description, &i.InvestmentAmountCents, &i.Status, &i.ImageUrl)
	return i, err
}

const listProjects = `SELECT ` + projectColumns + ` FROM projects ORDER BY id`

func (q *Queries) ListProjects(ctx context.Context) ([]ProjectRow, error) {
	rows, err := q.db.QueryContext(ctx, listProjects)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ProjectRow
	for rows.Next() {
		var i ProjectRow
		if err := rows.Scan(&i.ID, &i.Title, &i.Description, &i.InvestmentAmountCents, &i.Status, &i.ImageUrl); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateProject = `UPDATE projects SET title = ?, description = ?, investment_amount_cents = ?, status = ?, image_url = ? WHERE id = ?`

func (q *Queries) UpdateProject(ctx context.Context, arg ProjectRow) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateProject, arg.Title, arg.Description, arg.InvestmentAmountCents, arg.Status, arg.ImageUrl, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteProject = `DELETE FROM projects WHERE id = ?`

func (q *Queries) DeleteProject(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteProject, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMember(s scanner) (MemberRow, error) {
	var i MemberRow
	err := s.Scan(&i.ID, &i.Name, &i.Email, &i.Phone, &i.JoiningDate, &i.MonthlySavingsCents,
		&i.TotalSavedCents, &i.TotalDueCents, &i.ProfitShareCents, &i.Avatar, &i.Role)
	return i, err
}

func scanTransaction(s scanner) (TransactionRow, error) {
	var i TransactionRow
	err := s.Scan(&i.ID, &i.MemberID, &i.AmountCents, &i.Kind, &i.OccurredOn,
		&i.Description, &i.IdempotencyKey, &i.CreatedAt)
	return i, err
}

var _ DBTX = (*sql.DB)(nil)
