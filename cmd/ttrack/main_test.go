package main

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"filippo.io/age"

	"timetracker/internal/archive"
	"timetracker/internal/config"
)

// run executes one ttrack invocation and returns its stdout.
func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetArgs(args)
	root.SetErr(&out)
	if err := root.Execute(); err != nil {
		t.Fatalf("ttrack %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

var idPattern = regexp.MustCompile(`\(([0-9a-f-]{36})\)`)

func createdID(t *testing.T, out string) string {
	t.Helper()
	m := idPattern.FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("no id in %q", out)
	}
	return m[1]
}

func setupSQLite(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATA_BACKEND", "sqlite")
	t.Setenv("SQLITE_DB_PATH", filepath.Join(dir, "tt.db"))
	t.Setenv(config.ConfigFileEnv, "")
	t.Setenv("AMQP_URL", "")
	t.Setenv("TIMEZONE", "UTC")
	return dir
}

func TestCLI_TrackingSession(t *testing.T) {
	dir := setupSQLite(t)

	if out := run(t, "migrate"); !strings.Contains(out, "schema version") {
		t.Errorf("migrate = %q", out)
	}

	clientID := createdID(t, run(t, "clients", "add", "Acme", "Corp"))
	projectID := createdID(t, run(t, "projects", "add", "--client", clientID, "Website"))
	taskID := createdID(t, run(t, "tasks", "add", "--project", projectID, "Design"))

	if out := run(t, "clients"); !strings.Contains(out, "Acme Corp") {
		t.Errorf("clients = %q", out)
	}
	if out := run(t, "tasks", projectID); !strings.Contains(out, taskID) {
		t.Errorf("tasks = %q", out)
	}

	if out := run(t, "status"); !strings.Contains(out, "Idle") {
		t.Errorf("status before start = %q", out)
	}
	if out := run(t, "start", "--task", taskID, "--notes", "kickoff"); !strings.Contains(out, "Started Design · Website") {
		t.Errorf("start = %q", out)
	}
	if out := run(t, "status"); !strings.Contains(out, "Design · Website") {
		t.Errorf("status while running = %q", out)
	}

	// Switching by name reuses the existing task.
	out := run(t, "start", "--project", projectID, "--task-name", "design")
	if !strings.Contains(out, "Stopped") || !strings.Contains(out, "Started Design") {
		t.Errorf("switch = %q", out)
	}
	if out := run(t, "stop"); !strings.Contains(out, "Stopped after") {
		t.Errorf("stop = %q", out)
	}
	if out := run(t, "stop"); !strings.Contains(out, "No timer was running") {
		t.Errorf("second stop = %q", out)
	}

	if out := run(t, "report"); !strings.Contains(out, "Website (Acme Corp)") || !strings.Contains(out, "Total") {
		t.Errorf("report = %q", out)
	}

	id, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatal(err)
	}
	out = run(t, "export", "--out", dir, "--age-recipient", id.Recipient().String())
	matches, _ := filepath.Glob(filepath.Join(dir, "time_report_*.csv.age"))
	if len(matches) != 1 {
		t.Fatalf("export wrote %v (%q)", matches, out)
	}
	sealed, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	var plain bytes.Buffer
	if err := archive.Decrypt(&plain, bytes.NewReader(sealed), id.String()); err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	lines := strings.Split(plain.String(), "\n")
	if len(lines) != 3 || lines[0] != "Client,Project,Task,Start Time,End Time,Duration (Hours),Notes" {
		t.Errorf("csv = %q", plain.String())
	}
	if !strings.HasSuffix(lines[2], `"kickoff"`) {
		t.Errorf("oldest row should carry the first entry's notes: %q", lines[2])
	}

	run(t, "projects", "archive", projectID)
	if out := run(t, "projects"); strings.Contains(out, "Website") {
		t.Errorf("archived project listed: %q", out)
	}
	if out := run(t, "projects", "--all"); !strings.Contains(out, "Website") {
		t.Errorf("projects --all = %q", out)
	}
}

func TestCLI_StartNeedsATask(t *testing.T) {
	setupSQLite(t)
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"start", "--task-name", "Design"})
	if err := root.Execute(); err == nil {
		t.Fatal("start without --task or --project should fail")
	}
}

func TestCLI_ConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tt.toml")
	if out := run(t, "config", "init", path); !strings.Contains(out, path) {
		t.Errorf("config init = %q", out)
	}
	data, err := os.ReadFile(path)
	if err != nil || !bytes.Contains(data, []byte(`data_backend = "sqlite"`)) {
		t.Errorf("config file = %q, %v", data, err)
	}

	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"config", "init", path})
	if err := root.Execute(); err == nil {
		t.Error("config init must not overwrite an existing file")
	}
}
