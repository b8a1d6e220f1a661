//go:build e2e

package e2e

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"timetracker/internal/core"
	"timetracker/internal/services"
	"timetracker/internal/storage/mysql"
	"timetracker/internal/testutil"
	"timetracker/internal/timer"
)

func startMySQL(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "mysql:8.0",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_DATABASE":      "timetracker",
			"MYSQL_ROOT_PASSWORD": "secret",
			"MYSQL_USER":          "tt",
			"MYSQL_PASSWORD":      "pass",
		},
		// The entrypoint restarts mysqld after initialization; wait for the second start.
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("3306/tcp"),
			wait.ForLog("ready for connections").WithOccurrence(2),
		).WithDeadline(120 * time.Second),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start mysql container: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := c.MappedPort(ctx, "3306/tcp")
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}
	return fmt.Sprintf("tt:pass@tcp(%s:%s)/timetracker", host, port.Port())
}

func TestMySQL_TrackingFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping in short mode")
	}
	ctx := context.Background()
	repo, err := mysql.Open(ctx, startMySQL(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	clock := testutil.NewStubClock(time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC))
	ids := core.UUIDGenerator{}
	reports := services.NewReports(repo, time.UTC)
	engine := timer.NewEngine(repo, clock, ids, timer.WithPublisher(reports))
	catalog := services.NewCatalog(repo, clock, ids,
		services.WithCatalogInvalidator(reports),
		services.WithCatalogTimer(engine))

	client, err := catalog.CreateClient(ctx, "Acme")
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	project, err := catalog.CreateProject(ctx, client.ID, "Website")
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	design, err := catalog.CreateTask(ctx, project.ID, "Design")
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	review, err := catalog.EnsureTask(ctx, project.ID, "review")
	if err != nil {
		t.Fatalf("ensure task: %v", err)
	}

	first, err := engine.Start(ctx, design.ID, "kickoff")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// The gateway refuses a second running entry on its own.
	_, err = repo.InsertEntry(ctx, core.TimeEntry{ID: ids.New(), TaskID: design.ID, Start: clock.Now(), CreatedAt: clock.Now()})
	if !errors.Is(err, core.ErrActiveEntryExists) {
		t.Fatalf("second active insert err = %v, want ErrActiveEntryExists", err)
	}

	clock.Advance(90 * time.Minute)
	if _, err := engine.Start(ctx, review.ID, ""); err != nil {
		t.Fatalf("switch: %v", err)
	}
	clock.Advance(30 * time.Minute)
	if _, ok, err := engine.Stop(ctx); err != nil || !ok {
		t.Fatalf("stop: %v, %v", ok, err)
	}

	stored, err := repo.GetEntry(ctx, first.ID)
	if err != nil || stored.End == nil || !stored.End.Equal(first.Start.Add(90*time.Minute)) {
		t.Fatalf("first entry = %+v, %v", stored, err)
	}

	flat, _, err := reports.Range(ctx, "2025-08-01", "2025-08-01")
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if flat.Hours() != "2.00" || len(flat.Projects) != 1 || len(flat.Projects[0].Tasks) != 2 {
		t.Errorf("report = %+v", flat)
	}
	if flat.Projects[0].Tasks[0].Name != "Design" {
		t.Errorf("tasks not sorted by name: %+v", flat.Projects[0].Tasks)
	}

	if err := catalog.DeleteClient(ctx, client.ID); err != nil {
		t.Fatalf("delete client: %v", err)
	}
	if _, err := repo.GetEntry(ctx, first.ID); !core.IsNotFound(err) {
		t.Errorf("entries should go with their client, got %v", err)
	}
}
