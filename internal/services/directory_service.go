package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"forum/internal/core"
	"forum/internal/log"
)

const (
	DefaultEmailDomain = "al-ittehad.com"
	defaultAvatarURL   = "https://ui-avatars.com/api/?name=%s&background=059669&color=fff"
)

// DefaultMonthlySavings applies when a new member omits it.
var DefaultMonthlySavings = core.NewMoney(2000)

// NewMember is the input of CreateMember. Empty fields take the portal defaults.
type NewMember struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Email          string      `json:"email"`
	Phone          string      `json:"phone"`
	JoiningDate    core.Date   `json:"joiningDate"`
	MonthlySavings *core.Money `json:"monthlySavings"`
	Avatar         string      `json:"avatar"`
	Role           core.Role   `json:"role"`
}

func (n NewMember) member(now core.Date) core.Member {
	m := core.Member{
		ID:          strings.TrimSpace(n.ID),
		Name:        strings.TrimSpace(n.Name),
		Email:       strings.TrimSpace(n.Email),
		Phone:       strings.TrimSpace(n.Phone),
		JoiningDate: n.JoiningDate,
		Avatar:      strings.TrimSpace(n.Avatar),
		Role:        n.Role,
	}
	if m.Email == "" && m.ID != "" {
		m.Email = m.ID + "@" + DefaultEmailDomain
	}
	if m.Avatar == "" {
		m.Avatar = fmt.Sprintf(defaultAvatarURL, url.QueryEscape(m.Name))
	}
	if m.Role == "" {
		m.Role = core.RoleMember
	}
	if m.JoiningDate.IsZero() {
		m.JoiningDate = now
	}
	m.MonthlySavings = DefaultMonthlySavings
	if n.MonthlySavings != nil {
		m.MonthlySavings = *n.MonthlySavings
	}
	return m
}

// DirectoryService manages member profiles and the dashboard summary.
type DirectoryService struct {
	deps   Deps
	ledger *LedgerService
}

func NewDirectoryService(deps Deps, ledger *LedgerService) *DirectoryService {
	deps = deps.withDefaults()
	deps.Logger = deps.Logger.WithComponent(log.ComponentDirectory)
	return &DirectoryService{deps: deps, ledger: ledger}
}

func (s *DirectoryService) today() core.Date {
	now := s.deps.Now()
	return core.NewDate(now.Year(), int(now.Month()), now.Day())
}

// CreateMember registers a member with zero aggregates.
// A taken id yields core.ErrConflict.
func (s *DirectoryService) CreateMember(ctx context.Context, in NewMember) (core.Member, error) {
	m := in.member(s.today())
	if err := m.Validate(); err != nil {
		return core.Member{}, err
	}
	err := withWrite(ctx, s.deps.Timeout, func(ctx context.Context) error {
		return s.deps.Store.CreateMember(ctx, m)
	})
	if err != nil {
		return core.Member{}, fmt.Errorf("create member %s: %w", m.ID, err)
	}

	invalidateSummary(s.deps.Summary)
	s.deps.Logger.InfoContext(ctx, "Member created",
		log.FieldMemberID, m.ID,
		log.FieldOperation, log.OpCreate)
	return m, nil
}

func (s *DirectoryService) GetMember(ctx context.Context, id string) (core.Member, error) {
	m, err := withReadRetry(ctx, s.deps.Timeout, func(ctx context.Context) (core.Member, error) {
		return s.deps.Store.GetMember(ctx, id)
	})
	if err != nil {
		return core.Member{}, fmt.Errorf("get member %s: %w", id, err)
	}
	return m, nil
}

// ListMembers returns every member ordered by id.
func (s *DirectoryService) ListMembers(ctx context.Context) ([]core.Member, error) {
	ms, err := withReadRetry(ctx, s.deps.Timeout, s.deps.Store.ListMembers)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	if ms == nil {
		ms = []core.Member{}
	}
	return ms, nil
}

// UpdateMember applies patch. Aggregate fields in the patch are admin
// overrides: they are stored as given, logged at warn level with the
// previous values, and left for the auditor to reconcile.
func (s *DirectoryService) UpdateMember(ctx context.Context, id string, patch core.MemberPatch) (core.Member, error) {
	if err := patch.Validate(); err != nil {
		return core.Member{}, err
	}

	var before core.Member
	if patch.TouchesAggregates() {
		var err error
		before, err = s.GetMember(ctx, id)
		if err != nil {
			return core.Member{}, err
		}
	}

	var updated core.Member
	err := withWrite(ctx, s.deps.Timeout, func(ctx context.Context) error {
		var err error
		updated, err = s.deps.Store.UpdateMember(ctx, id, patch)
		return err
	})
	if err != nil {
		return core.Member{}, fmt.Errorf("update member %s: %w", id, err)
	}

	invalidateSummary(s.deps.Summary)
	if patch.TouchesAggregates() {
		s.deps.Logger.WarnContext(ctx, "Member aggregates overridden",
			log.FieldMemberID, id,
			"total_saved_before", before.TotalSaved.String(),
			"total_saved_after", updated.TotalSaved.String(),
			"total_due_before", before.TotalDue.String(),
			"total_due_after", updated.TotalDue.String(),
			"profit_share_before", before.ProfitShare.String(),
			"profit_share_after", updated.ProfitShare.String())
		publish(ctx, s.deps, core.LedgerEvent{
			Type:      core.EventMemberUpdated,
			MemberID:  id,
			Timestamp: s.deps.Now().UTC(),
		})
	} else {
		s.deps.Logger.InfoContext(ctx, "Member updated",
			log.FieldMemberID, id,
			log.FieldOperation, log.OpUpdate)
	}
	return updated, nil
}

// DeleteMember removes the member together with its ledger.
func (s *DirectoryService) DeleteMember(ctx context.Context, id string) error {
	return s.ledger.DeleteMember(ctx, id)
}

// Summary returns the dashboard totals, served from cache when fresh.
func (s *DirectoryService) Summary(ctx context.Context) (core.Summary, error) {
	if s.deps.Summary != nil {
		if sum, ok := s.deps.Summary.Get(SummaryKey); ok {
			return sum, nil
		}
	}

	members, err := s.ListMembers(ctx)
	if err != nil {
		return core.Summary{}, err
	}
	projects, err := withReadRetry(ctx, s.deps.Timeout, s.deps.Store.ListProjects)
	if err != nil {
		return core.Summary{}, fmt.Errorf("list projects: %w", err)
	}

	sum := core.Summarize(members, projects)
	if s.deps.Summary != nil {
		s.deps.Summary.Set(SummaryKey, sum)
	}
	return sum, nil
}
