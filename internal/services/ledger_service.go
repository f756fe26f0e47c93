package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"forum/internal/core"
	"forum/internal/log"
)

// TransactionRequest is the input of RecordTransaction.
// A nil Amount is rejected but its sign is not: the kind carries the meaning.
// A zero OccurredOn means today.
type TransactionRequest struct {
	MemberID       string
	Amount         *core.Money
	Kind           core.TransactionKind
	Description    string
	OccurredOn     core.Date
	IdempotencyKey string
}

// RecordResult reports the stored transaction id. Replayed is set when the
// idempotency key matched an earlier entry and nothing new was written.
type RecordResult struct {
	ID       string
	Replayed bool
}

// LedgerService is the transaction recorder. It owns every write that
// changes a member's ledger.
type LedgerService struct {
	deps Deps
	sl   *log.StructuredLogger
}

func NewLedgerService(deps Deps) *LedgerService {
	deps = deps.withDefaults()
	deps.Logger = deps.Logger.WithComponent(log.ComponentLedger)
	return &LedgerService{deps: deps, sl: log.NewStructuredLogger(deps.Logger)}
}

func newTransactionID() string {
	return "tx-" + uuid.Must(uuid.NewV7()).String()
}

func (s *LedgerService) build(req TransactionRequest) (core.Transaction, error) {
	if req.Amount == nil {
		return core.Transaction{}, &core.ValidationError{Err: fmt.Errorf("%w: amount is required", core.ErrInvalidAmount)}
	}
	tx := core.Transaction{
		MemberID:       strings.TrimSpace(req.MemberID),
		Amount:         *req.Amount,
		Kind:           req.Kind,
		OccurredOn:     req.OccurredOn,
		Description:    strings.TrimSpace(req.Description),
		IdempotencyKey: strings.TrimSpace(req.IdempotencyKey),
		CreatedAt:      s.deps.Now().UTC(),
	}
	if tx.OccurredOn.IsZero() {
		tx.OccurredOn = core.NewDate(tx.CreatedAt.Year(), int(tx.CreatedAt.Month()), tx.CreatedAt.Day())
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

// RecordTransaction validates req, appends it to the member's ledger and,
// for deposits, raises the member's total saved in the same store
// transaction. An unknown member yields core.ErrNotFound with nothing written.
func (s *LedgerService) RecordTransaction(ctx context.Context, req TransactionRequest) (RecordResult, error) {
	tx, err := s.build(req)
	if err != nil {
		s.observe(req.Kind, err, 0)
		return RecordResult{}, err
	}

	if tx.IdempotencyKey != "" {
		if res, ok, err := s.replay(ctx, tx); err != nil || ok {
			return res, err
		}
	}

	tx.ID = newTransactionID()
	err = withWrite(ctx, s.deps.Timeout, func(ctx context.Context) error {
		return s.deps.Store.InsertTransaction(ctx, tx)
	})
	if errors.Is(err, core.ErrConflict) && tx.IdempotencyKey != "" {
		// Lost a race with a concurrent request carrying the same key.
		if res, ok, rerr := s.replay(ctx, tx); rerr != nil || ok {
			return res, rerr
		}
	}
	if err != nil {
		s.observe(tx.Kind, err, 0)
		s.deps.Logger.WarnContext(ctx, "Transaction rejected",
			log.NewFields().
				WithTransaction("", tx.MemberID, string(tx.Kind), tx.Amount.Cents).
				WithErrorType(ErrorType(err)).
				WithError(err).
				ToSlice()...)
		return RecordResult{}, fmt.Errorf("record transaction: %w", err)
	}

	var deposit int64
	if tx.Kind == core.KindDeposit {
		deposit = tx.Amount.Cents
	}
	s.observe(tx.Kind, nil, deposit)
	invalidateSummary(s.deps.Summary)
	s.sl.LogTransactionRecorded(ctx, tx.ID, tx.MemberID, string(tx.Kind), tx.Amount.Cents, false)

	publish(ctx, s.deps, core.LedgerEvent{
		Type:          core.EventTransactionRecorded,
		MemberID:      tx.MemberID,
		TransactionID: tx.ID,
		Kind:          tx.Kind,
		AmountCents:   tx.Amount.Cents,
		Timestamp:     tx.CreatedAt,
	})

	return RecordResult{ID: tx.ID}, nil
}

// replay looks up an earlier entry with the same key. ok is false when none exists.
func (s *LedgerService) replay(ctx context.Context, tx core.Transaction) (RecordResult, bool, error) {
	prior, err := withReadRetry(ctx, s.deps.Timeout, func(ctx context.Context) (core.Transaction, error) {
		return s.deps.Store.FindTransactionByKey(ctx, tx.MemberID, tx.IdempotencyKey)
	})
	if errors.Is(err, core.ErrNotFound) {
		return RecordResult{}, false, nil
	}
	if err != nil {
		s.observe(tx.Kind, err, 0)
		return RecordResult{}, false, fmt.Errorf("lookup idempotency key: %w", err)
	}
	if !prior.SameIntent(tx) {
		err := fmt.Errorf("%w: idempotency key %q already used for a different transaction", core.ErrConflict, tx.IdempotencyKey)
		s.observe(tx.Kind, err, 0)
		return RecordResult{}, false, err
	}

	s.deps.Metrics.ObserveTransaction(string(tx.Kind), "replayed", 0)
	s.sl.LogTransactionRecorded(ctx, prior.ID, prior.MemberID, string(prior.Kind), prior.Amount.Cents, true)
	return RecordResult{ID: prior.ID, Replayed: true}, true, nil
}

func (s *LedgerService) observe(kind core.TransactionKind, err error, depositCents int64) {
	result := "recorded"
	if err != nil {
		result = ErrorType(err)
	}
	k := string(kind)
	if !kind.Valid() {
		k = "unknown"
	}
	s.deps.Metrics.ObserveTransaction(k, result, depositCents)
}

// DeleteMember removes the member and every transaction it owns atomically.
func (s *LedgerService) DeleteMember(ctx context.Context, memberID string) error {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return core.Invalid("member id is required")
	}
	err := withWrite(ctx, s.deps.Timeout, func(ctx context.Context) error {
		return s.deps.Store.DeleteMember(ctx, memberID)
	})
	if err != nil {
		return fmt.Errorf("delete member %s: %w", memberID, err)
	}

	invalidateSummary(s.deps.Summary)
	s.deps.Logger.InfoContext(ctx, "Member deleted with ledger",
		log.FieldMemberID, memberID,
		log.FieldOperation, log.OpDelete)
	publish(ctx, s.deps, core.LedgerEvent{
		Type:      core.EventMemberDeleted,
		MemberID:  memberID,
		Timestamp: s.deps.Now().UTC(),
	})
	return nil
}

// ListTransactionsByMember returns the member's entries, newest first.
// An unknown member has an empty ledger.
func (s *LedgerService) ListTransactionsByMember(ctx context.Context, memberID string) ([]core.Transaction, error) {
	txs, err := withReadRetry(ctx, s.deps.Timeout, func(ctx context.Context) ([]core.Transaction, error) {
		return s.deps.Store.ListTransactionsByMember(ctx, memberID)
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w", memberID, err)
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	return txs, nil
}

func (s *LedgerService) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	txs, err := withReadRetry(ctx, s.deps.Timeout, s.deps.Store.ListTransactions)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	return txs, nil
}
