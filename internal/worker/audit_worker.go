// Package worker reacts to ledger events published by the API.
package worker

import (
	"context"
	"errors"
	"fmt"

	"forum/internal/amqp"
	"forum/internal/core"
	"forum/internal/log"
)

// MemberAuditor is the part of services.Auditor the worker needs.
type MemberAuditor interface {
	AuditMember(ctx context.Context, id string) (core.DriftReport, error)
}

// TransactionLister reports what is left in a member's ledger.
type TransactionLister interface {
	ListTransactionsByMember(ctx context.Context, memberID string) ([]core.Transaction, error)
}

// AuditWorker re-audits a member whenever its ledger or aggregates change,
// and checks that a deleted member left no transactions behind.
type AuditWorker struct {
	auditor MemberAuditor
	ledger  TransactionLister
	logger  *log.Logger
}

func NewAuditWorker(auditor MemberAuditor, ledger TransactionLister, logger *log.Logger) *AuditWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &AuditWorker{
		auditor: auditor,
		ledger:  ledger,
		logger:  logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEvent processes one ledger message. A returned error requeues the
// message, so only transient failures are reported.
func (w *AuditWorker) HandleEvent(ctx context.Context, msg *amqp.LedgerMessage) error {
	w.logger.DebugContext(ctx, "Processing ledger event",
		"event_type", msg.Type,
		log.FieldMemberID, msg.MemberID,
		log.FieldTransactionID, msg.TransactionID)

	switch msg.Type {
	case core.EventTransactionRecorded, core.EventMemberUpdated:
		return w.audit(ctx, msg)
	case core.EventMemberDeleted:
		return w.checkDeleted(ctx, msg)
	default:
		w.logger.WarnContext(ctx, "Ignoring unknown event", "event_type", msg.Type)
		return nil
	}
}

func (w *AuditWorker) audit(ctx context.Context, msg *amqp.LedgerMessage) error {
	rep, err := w.auditor.AuditMember(ctx, msg.MemberID)
	switch {
	case errors.Is(err, core.ErrNotFound):
		// Deleted after the event was published.
		w.logger.InfoContext(ctx, "Member gone before audit", log.FieldMemberID, msg.MemberID)
		return nil
	case err != nil:
		return fmt.Errorf("audit after %s: %w", msg.Type, err)
	}

	if rep.Consistent() {
		w.logger.DebugContext(ctx, "Member ledger consistent", log.FieldMemberID, msg.MemberID)
		return nil
	}
	w.logger.WarnContext(ctx, "Member ledger drifted",
		"event_type", msg.Type,
		log.FieldMemberID, msg.MemberID,
		log.FieldDriftCents, rep.Drift.Cents)
	return nil
}

func (w *AuditWorker) checkDeleted(ctx context.Context, msg *amqp.LedgerMessage) error {
	if w.ledger == nil {
		return nil
	}
	txs, err := w.ledger.ListTransactionsByMember(ctx, msg.MemberID)
	if err != nil {
		return fmt.Errorf("list transactions of deleted member: %w", err)
	}
	if len(txs) > 0 {
		w.logger.ErrorContext(ctx, "Deleted member still has transactions",
			log.FieldMemberID, msg.MemberID,
			"count", len(txs))
	}
	return nil
}
