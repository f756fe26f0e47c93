// Package memory is a process-local ports.Store used for development and tests.
// One mutex guards everything, so each method is atomic.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"forum/internal/core"
)

type Store struct {
	mu       sync.Mutex
	members  map[string]core.Member
	txs      []core.Transaction
	notices  map[string]core.Notice
	projects map[string]core.ProjectUpdate
	closed   bool
}

func New() *Store {
	return &Store{
		members:  make(map[string]core.Member),
		notices:  make(map[string]core.Notice),
		projects: make(map[string]core.ProjectUpdate),
	}
}

// lock acquires the store mutex unless the context is already done.
func (s *Store) lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("%w: store closed", core.ErrStoreUnavailable)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) GetMember(ctx context.Context, id string) (core.Member, error) {
	if err := s.lock(ctx); err != nil {
		return core.Member{}, err
	}
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return core.Member{}, fmt.Errorf("%w: member %s", core.ErrNotFound, id)
	}
	return m, nil
}

func (s *Store) ListMembers(ctx context.Context) ([]core.Member, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	out := make([]core.Member, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b core.Member) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Store) CreateMember(ctx context.Context, m core.Member) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if _, ok := s.members[m.ID]; ok {
		return fmt.Errorf("%w: member %s already exists", core.ErrConflict, m.ID)
	}
	s.members[m.ID] = m
	return nil
}

func (s *Store) UpdateMember(ctx context.Context, id string, patch core.MemberPatch) (core.Member, error) {
	if err := s.lock(ctx); err != nil {
		return core.Member{}, err
	}
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return core.Member{}, fmt.Errorf("%w: member %s", core.ErrNotFound, id)
	}
	m = patch.Apply(m)
	s.members[id] = m
	return m, nil
}

func (s *Store) UpsertMember(ctx context.Context, m core.Member) (bool, error) {
	if err := s.lock(ctx); err != nil {
		return false, err
	}
	defer s.mu.Unlock()
	_, exists := s.members[m.ID]
	s.members[m.ID] = m
	return !exists, nil
}

func (s *Store) DeleteMember(ctx context.Context, id string) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if _, ok := s.members[id]; !ok {
		return fmt.Errorf("%w: member %s", core.ErrNotFound, id)
	}
	s.deleteTransactionsLocked(id)
	delete(s.members, id)
	return nil
}

func (s *Store) InsertTransaction(ctx context.Context, tx core.Transaction) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()
	m, ok := s.members[tx.MemberID]
	if !ok {
		return fmt.Errorf("%w: member %s", core.ErrNotFound, tx.MemberID)
	}
	for _, existing := range s.txs {
		if existing.ID == tx.ID {
			return fmt.Errorf("%w: transaction %s already exists", core.ErrConflict, tx.ID)
		}
		if tx.IdempotencyKey != "" && existing.MemberID == tx.MemberID && existing.IdempotencyKey == tx.IdempotencyKey {
			return fmt.Errorf("%w: idempotency key %q already used", core.ErrConflict, tx.IdempotencyKey)
		}
	}
	if tx.Kind == core.KindDeposit {
		total, err := m.TotalSaved.CheckedAdd(tx.Amount)
		if err != nil {
			return fmt.Errorf("member %s: %w", m.ID, err)
		}
		m.TotalSaved = total
		s.members[m.ID] = m
	}
	s.txs = append(s.txs, tx)
	return nil
}

func (s *Store) FindTransactionByKey(ctx context.Context, memberID, key string) (core.Transaction, error) {
	if err := s.lock(ctx); err != nil {
		return core.Transaction{}, err
	}
	defer s.mu.Unlock()
	for _, tx := range s.txs {
		if key != "" && tx.MemberID == memberID && tx.IdempotencyKey == key {
			return tx, nil
		}
	}
	return core.Transaction{}, fmt.Errorf("%w: no transaction for key %q", core.ErrNotFound, key)
}

func (s *Store) DeleteTransactionsByMember(ctx context.Context, memberID string) (int64, error) {
	if err := s.lock(ctx); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()
	return s.deleteTransactionsLocked(memberID), nil
}

func (s *Store) deleteTransactionsLocked(memberID string) int64 {
	before := len(s.txs)
	s.txs = slices.DeleteFunc(s.txs, func(tx core.Transaction) bool { return tx.MemberID == memberID })
	return int64(before - len(s.txs))
}

func (s *Store) ListTransactionsByMember(ctx context.Context, memberID string) ([]core.Transaction, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	out := []core.Transaction{}
	for _, tx := range s.txs {
		if tx.MemberID == memberID {
			out = append(out, tx)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *Store) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	out := slices.Clone(s.txs)
	if out == nil {
		out = []core.Transaction{}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *Store) SumDepositsByMember(ctx context.Context, memberID string) (core.Money, error) {
	if err := s.lock(ctx); err != nil {
		return core.Money{}, err
	}
	defer s.mu.Unlock()
	var sum core.Money
	for _, tx := range s.txs {
		if tx.MemberID == memberID && tx.Kind == core.KindDeposit {
			sum = sum.Add(tx.Amount)
		}
	}
	return sum, nil
}

func sortNewestFirst(txs []core.Transaction) {
	slices.SortStableFunc(txs, func(a, b core.Transaction) int {
		if c := b.OccurredOn.Compare(a.OccurredOn.Time); c != 0 {
			return c
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}

func (s *Store) CreateNotice(ctx context.Context, n core.Notice) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if _, ok := s.notices[n.ID]; ok {
		return fmt.Errorf("%w: notice %s already exists", core.ErrConflict, n.ID)
	}
	s.notices[n.ID] = n
	return nil
}

func (s *Store) GetNotice(ctx context.Context, id string) (core.Notice, error) {
	if err := s.lock(ctx); err != nil {
		return core.Notice{}, err
	}
	defer s.mu.Unlock()
	n, ok := s.notices[id]
	if !ok {
		return core.Notice{}, fmt.Errorf("%w: notice %s", core.ErrNotFound, id)
	}
	return n, nil
}

func (s *Store) ListNotices(ctx context.Context) ([]core.Notice, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	out := make([]core.Notice, 0, len(s.notices))
	for _, n := range s.notices {
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b core.Notice) int {
		if c := b.Date.Compare(a.Date.Time); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (s *Store) UpdateNotice(ctx context.Context, n core.Notice) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if _, ok := s.notices[n.ID]; !ok {
		return fmt.Errorf("%w: notice %s", core.ErrNotFound, n.ID)
	}
	s.notices[n.ID] = n
	return nil
}

func (s *Store) DeleteNotice(ctx context.Context, id string) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if _, ok := s.notices[id]; !ok {
		return fmt.Errorf("%w: notice %s", core.ErrNotFound, id)
	}
	delete(s.notices, id)
	return nil
}

func (s *Store) CreateProject(ctx context.Context, p core.ProjectUpdate) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if _, ok := s.projects[p.ID]; ok {
		return fmt.Errorf("%w: project %s already exists", core.ErrConflict, p.ID)
	}
	s.projects[p.ID] = p
	return nil
}

func (s *Store) GetProject(ctx context.Context, id string) (core.ProjectUpdate, error) {
	if err := s.lock(ctx); err != nil {
		return core.ProjectUpdate{}, err
	}
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return core.ProjectUpdate{}, fmt.Errorf("%w: project %s", core.ErrNotFound, id)
	}
	return p, nil
}

func (s *Store) ListProjects(ctx context.Context) ([]core.ProjectUpdate, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	out := make([]core.ProjectUpdate, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b core.ProjectUpdate) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Store) UpdateProject(ctx context.Context, p core.ProjectUpdate) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if _, ok := s.projects[p.ID]; !ok {
		return fmt.Errorf("%w: project %s", core.ErrNotFound, p.ID)
	}
	s.projects[p.ID] = p
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return fmt.Errorf("%w: project %s", core.ErrNotFound, id)
	}
	delete(s.projects, id)
	return nil
}
