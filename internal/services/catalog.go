package services

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"timetracker/internal/core"
	applog "timetracker/internal/log"
	"timetracker/internal/store"
)

// CatalogStore is the part of the gateway holding clients, projects and tasks.
type CatalogStore interface {
	store.ClientStore
	store.ProjectStore
	store.TaskStore
}

// Catalog manages clients, projects and tasks. Deletions cascade to entries,
// so they invalidate reports and resync the timer.
type Catalog struct {
	store   CatalogStore
	clock   core.Clock
	ids     core.IDGenerator
	reports Invalidator
	timer   Resyncer
	logger  *applog.Logger
}

type CatalogOption func(*Catalog)

func WithCatalogInvalidator(inv Invalidator) CatalogOption {
	return func(c *Catalog) { c.reports = inv }
}

func WithCatalogTimer(r Resyncer) CatalogOption {
	return func(c *Catalog) { c.timer = r }
}

func WithCatalogLogger(l *applog.Logger) CatalogOption {
	return func(c *Catalog) { c.logger = l.WithComponent(applog.ComponentCatalog) }
}

func NewCatalog(st CatalogStore, clock core.Clock, ids core.IDGenerator, opts ...CatalogOption) *Catalog {
	c := &Catalog{store: st, clock: clock, ids: ids, logger: applog.Discard()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClientProjects groups a client with its projects for the project manager page.
type ClientProjects struct {
	Client   core.Client
	Projects []core.Project
}

func (c *Catalog) Clients(ctx context.Context) ([]core.Client, error) {
	return c.store.ListClients(ctx)
}

func (c *Catalog) CreateClient(ctx context.Context, name string) (core.Client, error) {
	cl, err := c.store.CreateClient(ctx, core.Client{
		ID:        c.ids.New(),
		Name:      strings.TrimSpace(name),
		CreatedAt: c.clock.Now(),
	})
	if err != nil {
		return core.Client{}, fmt.Errorf("create client: %w", err)
	}
	c.logger.InfoContext(ctx, "Client created", applog.FieldClientID, cl.ID, applog.FieldOperation, applog.OpCreate)
	return cl, nil
}

func (c *Catalog) DeleteClient(ctx context.Context, id string) error {
	if err := c.store.DeleteClient(ctx, id); err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	c.logger.InfoContext(ctx, "Client deleted", applog.FieldClientID, id, applog.FieldOperation, applog.OpDelete)
	c.afterCascade(ctx)
	return nil
}

func (c *Catalog) Projects(ctx context.Context, f store.ProjectFilter) ([]core.Project, error) {
	return c.store.ListProjects(ctx, f)
}

// CreateProject adds an active project under clientID.
func (c *Catalog) CreateProject(ctx context.Context, clientID, name string) (core.Project, error) {
	p, err := c.store.CreateProject(ctx, core.Project{
		ID:        c.ids.New(),
		ClientID:  clientID,
		Name:      strings.TrimSpace(name),
		IsActive:  true,
		CreatedAt: c.clock.Now(),
	})
	if err != nil {
		return core.Project{}, fmt.Errorf("create project: %w", err)
	}
	c.logger.InfoContext(ctx, "Project created", applog.FieldProjectID, p.ID, applog.FieldClientID, clientID)
	return p, nil
}

func (c *Catalog) SetProjectActive(ctx context.Context, id string, active bool) error {
	if err := c.store.SetProjectActive(ctx, id, active); err != nil {
		return fmt.Errorf("set project active: %w", err)
	}
	return nil
}

func (c *Catalog) DeleteProject(ctx context.Context, id string) error {
	if err := c.store.DeleteProject(ctx, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	c.logger.InfoContext(ctx, "Project deleted", applog.FieldProjectID, id, applog.FieldOperation, applog.OpDelete)
	c.afterCascade(ctx)
	return nil
}

func (c *Catalog) Tasks(ctx context.Context, projectID string) ([]core.Task, error) {
	return c.store.ListTasks(ctx, projectID)
}

func (c *Catalog) CreateTask(ctx context.Context, projectID, name string) (core.Task, error) {
	t, err := c.store.CreateTask(ctx, core.Task{
		ID:        c.ids.New(),
		ProjectID: projectID,
		Name:      strings.TrimSpace(name),
		CreatedAt: c.clock.Now(),
	})
	if err != nil {
		return core.Task{}, fmt.Errorf("create task: %w", err)
	}
	c.logger.InfoContext(ctx, "Task created", applog.FieldTaskID, t.ID, applog.FieldProjectID, projectID)
	return t, nil
}

// EnsureTask returns the project's task named name (case-insensitive) or creates it.
func (c *Catalog) EnsureTask(ctx context.Context, projectID, name string) (core.Task, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Task{}, core.ErrEmptyName
	}
	tasks, err := c.store.ListTasks(ctx, projectID)
	if err != nil {
		return core.Task{}, fmt.Errorf("list tasks: %w", err)
	}
	for _, t := range tasks {
		if strings.EqualFold(t.Name, name) {
			return t, nil
		}
	}
	return c.CreateTask(ctx, projectID, name)
}

func (c *Catalog) DeleteTask(ctx context.Context, id string) error {
	if err := c.store.DeleteTask(ctx, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	c.logger.InfoContext(ctx, "Task deleted", applog.FieldTaskID, id, applog.FieldOperation, applog.OpDelete)
	c.afterCascade(ctx)
	return nil
}

// Tree lists every client with its projects, both ordered by name.
func (c *Catalog) Tree(ctx context.Context) ([]ClientProjects, error) {
	var (
		clients  []core.Client
		projects []core.Project
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		clients, err = c.store.ListClients(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		projects, err = c.store.ListProjects(gctx, store.ProjectFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	byClient := make(map[string][]core.Project, len(clients))
	for _, p := range projects {
		byClient[p.ClientID] = append(byClient[p.ClientID], p)
	}
	out := make([]ClientProjects, 0, len(clients))
	for _, cl := range clients {
		out = append(out, ClientProjects{Client: cl, Projects: byClient[cl.ID]})
	}
	return out, nil
}

func (c *Catalog) afterCascade(ctx context.Context) {
	if c.reports != nil {
		c.reports.Invalidate()
	}
	if c.timer != nil {
		if err := c.timer.Resync(ctx); err != nil {
			c.logger.WarnContext(ctx, "Timer resync after delete failed", applog.FieldError, err)
		}
	}
}
