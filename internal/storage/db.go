package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type MemberRow struct {
	ID                  string
	Name                string
	Email               string
	Phone               string
	JoiningDate         string
	MonthlySavingsCents int64
	TotalSavedCents     int64
	TotalDueCents       int64
	ProfitShareCents    int64
	Avatar              string
	Role                string
}

type TransactionRow struct {
	ID             string
	MemberID       string
	AmountCents    int64
	Kind           string
	OccurredOn     string
	Description    string
	IdempotencyKey sql.NullString
	CreatedAt      string
}

type NoticeRow struct {
	ID       string
	Title    string
	Content  string
	Date     string
	Author   string
	Priority string
}

type ProjectRow struct {
	ID                    string
	Title                 string
	Description           string
	InvestmentAmountCents int64
	Status                string
	ImageUrl              string
}
