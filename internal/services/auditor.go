package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"forum/internal/core"
	"forum/internal/log"
)

// DefaultAuditConcurrency bounds AuditAll when no limit is given.
const DefaultAuditConcurrency = 4

// Auditor compares each member's total saved with the sum of its deposits.
// It only reads.
type Auditor struct {
	deps        Deps
	concurrency int
}

func NewAuditor(deps Deps, concurrency int) *Auditor {
	deps = deps.withDefaults()
	deps.Logger = deps.Logger.WithComponent(log.ComponentAudit)
	if concurrency <= 0 {
		concurrency = DefaultAuditConcurrency
	}
	return &Auditor{deps: deps, concurrency: concurrency}
}

func (a *Auditor) AuditMember(ctx context.Context, id string) (core.DriftReport, error) {
	m, err := withReadRetry(ctx, a.deps.Timeout, func(ctx context.Context) (core.Member, error) {
		return a.deps.Store.GetMember(ctx, id)
	})
	if err != nil {
		return core.DriftReport{}, fmt.Errorf("audit %s: %w", id, err)
	}
	return a.audit(ctx, m)
}

func (a *Auditor) audit(ctx context.Context, m core.Member) (core.DriftReport, error) {
	sum, err := withReadRetry(ctx, a.deps.Timeout, func(ctx context.Context) (core.Money, error) {
		return a.deps.Store.SumDepositsByMember(ctx, m.ID)
	})
	if err != nil {
		return core.DriftReport{}, fmt.Errorf("audit %s: %w", m.ID, err)
	}
	report := core.NewDriftReport(m.ID, m.TotalSaved, sum)
	if !report.Consistent() {
		a.deps.Logger.WarnContext(ctx, "Ledger drift detected",
			log.FieldMemberID, m.ID,
			log.FieldDriftCents, report.Drift.Cents,
			"total_saved", m.TotalSaved.String(),
			"deposit_sum", sum.String())
	}
	return report, nil
}

// AuditAll audits every member with bounded parallelism and returns the
// reports ordered by member id. The drift gauge is updated on success.
func (a *Auditor) AuditAll(ctx context.Context) ([]core.DriftReport, error) {
	members, err := withReadRetry(ctx, a.deps.Timeout, a.deps.Store.ListMembers)
	if err != nil {
		return nil, fmt.Errorf("audit all: %w", err)
	}

	var (
		mu      sync.Mutex
		reports = make([]core.DriftReport, 0, len(members))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for _, m := range members {
		g.Go(func() error {
			r, err := a.audit(gctx, m)
			if err != nil {
				return err
			}
			mu.Lock()
			reports = append(reports, r)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(reports, func(i, j int) bool { return reports[i].MemberID < reports[j].MemberID })

	drifted := 0
	for _, r := range reports {
		if !r.Consistent() {
			drifted++
		}
	}
	a.deps.Metrics.SetDriftMembers(drifted)
	a.deps.Logger.InfoContext(ctx, "Audit completed",
		log.FieldOperation, log.OpAudit,
		"members", len(reports),
		"drifted", drifted)
	return reports, nil
}
