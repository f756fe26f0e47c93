// Package ports declares the storage boundary the services depend on.
//
// Every implementation must honor the atomicity rules documented on each
// method. Errors are classified with the sentinels in package core.
package ports

import (
	"context"

	"forum/internal/core"
)

type (
	MemberStore interface {
		// GetMember returns core.ErrNotFound when the id is unknown.
		GetMember(ctx context.Context, id string) (core.Member, error)
		// ListMembers returns every member ordered by id.
		ListMembers(ctx context.Context) ([]core.Member, error)
		// CreateMember returns core.ErrConflict if the id is taken.
		CreateMember(ctx context.Context, m core.Member) error
		// UpdateMember applies the non-nil patch fields in a single statement and
		// returns the updated member. Fields outside the patch keep their stored values,
		// so a concurrent deposit increment is never overwritten.
		UpdateMember(ctx context.Context, id string, patch core.MemberPatch) (core.Member, error)
		// UpsertMember inserts or fully replaces a member and reports whether it was created.
		UpsertMember(ctx context.Context, m core.Member) (created bool, err error)
		// DeleteMember removes the member and all of its transactions in one atomic step.
		DeleteMember(ctx context.Context, id string) error
	}

	LedgerStore interface {
		// InsertTransaction appends tx and, for deposits, increments the owner's
		// total saved by tx.Amount inside the same store transaction.
		// Returns core.ErrNotFound if the member does not exist and
		// core.ErrConflict if (member, idempotency key) was already used.
		InsertTransaction(ctx context.Context, tx core.Transaction) error
		// FindTransactionByKey returns core.ErrNotFound when no entry carries the key.
		FindTransactionByKey(ctx context.Context, memberID, key string) (core.Transaction, error)
		// DeleteTransactionsByMember removes the member's entries without touching aggregates.
		DeleteTransactionsByMember(ctx context.Context, memberID string) (int64, error)
		// ListTransactionsByMember orders by occurrence date then creation time, newest first.
		ListTransactionsByMember(ctx context.Context, memberID string) ([]core.Transaction, error)
		ListTransactions(ctx context.Context) ([]core.Transaction, error)
		SumDepositsByMember(ctx context.Context, memberID string) (core.Money, error)
	}

	NoticeStore interface {
		CreateNotice(ctx context.Context, n core.Notice) error
		GetNotice(ctx context.Context, id string) (core.Notice, error)
		// ListNotices orders by date, newest first.
		ListNotices(ctx context.Context) ([]core.Notice, error)
		UpdateNotice(ctx context.Context, n core.Notice) error
		DeleteNotice(ctx context.Context, id string) error
	}

	ProjectStore interface {
		CreateProject(ctx context.Context, p core.ProjectUpdate) error
		GetProject(ctx context.Context, id string) (core.ProjectUpdate, error)
		ListProjects(ctx context.Context) ([]core.ProjectUpdate, error)
		UpdateProject(ctx context.Context, p core.ProjectUpdate) error
		DeleteProject(ctx context.Context, id string) error
	}

	// Store is the full persistence surface of one backend.
	Store interface {
		MemberStore
		LedgerStore
		NoticeStore
		ProjectStore
		Ping(ctx context.Context) error
		Close() error
	}
)

// EventPublisher receives ledger events after a successful commit.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev core.LedgerEvent) error
}
