package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"forum/internal/core"
	"forum/internal/log"
)

const (
	DefaultNoticeAuthor = "সভাপতি"
	defaultProjectImage = "https://picsum.photos/seed/%s/800/600"
)

// BoardService runs the notice board and the project registry.
type BoardService struct {
	deps Deps
}

func NewBoardService(deps Deps) *BoardService {
	deps = deps.withDefaults()
	deps.Logger = deps.Logger.WithComponent(log.ComponentBoard)
	return &BoardService{deps: deps}
}

func (s *BoardService) today() core.Date {
	now := s.deps.Now()
	return core.NewDate(now.Year(), int(now.Month()), now.Day())
}

func (s *BoardService) normalizeNotice(n core.Notice) core.Notice {
	n.Title = strings.TrimSpace(n.Title)
	n.Content = strings.TrimSpace(n.Content)
	n.Author = strings.TrimSpace(n.Author)
	if n.Author == "" {
		n.Author = DefaultNoticeAuthor
	}
	if n.Priority == "" {
		n.Priority = core.PriorityMedium
	}
	if n.Date.IsZero() {
		n.Date = s.today()
	}
	return n
}

// CreateNotice assigns a fresh id and stores the notice.
func (s *BoardService) CreateNotice(ctx context.Context, n core.Notice) (core.Notice, error) {
	n = s.normalizeNotice(n)
	n.ID = "n-" + uuid.Must(uuid.NewV7()).String()
	if err := n.Validate(); err != nil {
		return core.Notice{}, err
	}
	err := withWrite(ctx, s.deps.Timeout, func(ctx context.Context) error {
		return s.deps.Store.CreateNotice(ctx, n)
	})
	if err != nil {
		return core.Notice{}, fmt.Errorf("create notice: %w", err)
	}
	s.deps.Logger.InfoContext(ctx, "Notice published", log.FieldNoticeID, n.ID, log.FieldOperation, log.OpCreate)
	return n, nil
}

// ListNotices returns notices, newest first.
func (s *BoardService) ListNotices(ctx context.Context) ([]core.Notice, error) {
	ns, err := withReadRetry(ctx, s.deps.Timeout, s.deps.Store.ListNotices)
	if err != nil {
		return nil, fmt.Errorf("list notices: %w", err)
	}
	if ns == nil {
		ns = []core.Notice{}
	}
	return ns, nil
}

func (s *BoardService) UpdateNotice(ctx context.Context, id string, n core.Notice) (core.Notice, error) {
	n.ID = id
	n = s.normalizeNotice(n)
	if err := n.Validate(); err != nil {
		return core.Notice{}, err
	}
	err := withWrite(ctx, s.deps.Timeout, func(ctx context.Context) error {
		return s.deps.Store.UpdateNotice(ctx, n)
	})
	if err != nil {
		return core.Notice{}, fmt.Errorf("update notice %s: %w", id, err)
	}
	return n, nil
}

func (s *BoardService) DeleteNotice(ctx context.Context, id string) error {
	err := withWrite(ctx, s.deps.Timeout, func(ctx context.Context) error {
		return s.deps.Store.DeleteNotice(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete notice %s: %w", id, err)
	}
	s.deps.Logger.InfoContext(ctx, "Notice removed", log.FieldNoticeID, id, log.FieldOperation, log.OpDelete)
	return nil
}

func normalizeProject(p core.ProjectUpdate) core.ProjectUpdate {
	p.Title = strings.TrimSpace(p.Title)
	p.Description = strings.TrimSpace(p.Description)
	p.ImageURL = strings.TrimSpace(p.ImageURL)
	if p.Status == "" {
		p.Status = core.StatusRunning
	}
	if p.ImageURL == "" {
		p.ImageURL = fmt.Sprintf(defaultProjectImage, p.ID)
	}
	return p
}

func (s *BoardService) CreateProject(ctx context.Context, p core.ProjectUpdate) (core.ProjectUpdate, error) {
	p.ID = "b-" + uuid.Must(uuid.NewV7()).String()
	p = normalizeProject(p)
	if err := p.Validate(); err != nil {
		return core.ProjectUpdate{}, err
	}
	err := withWrite(ctx, s.deps.Timeout, func(ctx context.Context) error {
		return s.deps.Store.CreateProject(ctx, p)
	})
	if err != nil {
		return core.ProjectUpdate{}, fmt.Errorf("create project: %w", err)
	}
	invalidateSummary(s.deps.Summary)
	s.deps.Logger.InfoContext(ctx, "Project registered", log.FieldProjectID, p.ID, log.FieldOperation, log.OpCreate)
	return p, nil
}

// ListProjects returns projects ordered by id.
func (s *BoardService) ListProjects(ctx context.Context) ([]core.ProjectUpdate, error) {
	ps, err := withReadRetry(ctx, s.deps.Timeout, s.deps.Store.ListProjects)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	if ps == nil {
		ps = []core.ProjectUpdate{}
	}
	return ps, nil
}

func (s *BoardService) UpdateProject(ctx context.Context, id string, p core.ProjectUpdate) (core.ProjectUpdate, error) {
	p.ID = id
	p = normalizeProject(p)
	if err := p.Validate(); err != nil {
		return core.ProjectUpdate{}, err
	}
	err := withWrite(ctx, s.deps.Timeout, func(ctx context.Context) error {
		return s.deps.Store.UpdateProject(ctx, p)
	})
	if err != nil {
		return core.ProjectUpdate{}, fmt.Errorf("update project %s: %w", id, err)
	}
	invalidateSummary(s.deps.Summary)
	return p, nil
}

func (s *BoardService) DeleteProject(ctx context.Context, id string) error {
	err := withWrite(ctx, s.deps.Timeout, func(ctx context.Context) error {
		return s.deps.Store.DeleteProject(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	invalidateSummary(s.deps.Summary)
	s.deps.Logger.InfoContext(ctx, "Project removed", log.FieldProjectID, id, log.FieldOperation, log.OpDelete)
	return nil
}
