package archive

import (
	"bytes"
	"strings"
	"testing"

	"filippo.io/age"
)

func newIdentity(t *testing.T) *age.X25519Identity {
	t.Helper()
	id, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("generating identity: %v", err)
	}
	return id
}

func TestSeal_RoundTrip(t *testing.T) {
	id := newIdentity(t)
	csv := []byte("Client,Project,Task,Start Time,End Time,Duration (Hours),Notes\nAcme,Web,Design,2025-01-15 09:00,2025-01-15 10:30,1.50,\"\"")

	name, sealed, err := Seal("time_report.csv", csv, id.Recipient().String())
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if name != "time_report.csv.age" {
		t.Errorf("name = %q", name)
	}
	if bytes.Contains(sealed, []byte("Acme")) {
		t.Fatal("ciphertext contains plaintext")
	}

	var out bytes.Buffer
	if err := Decrypt(&out, bytes.NewReader(sealed), id.String()); err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(out.Bytes(), csv) {
		t.Errorf("round trip = %q", out.String())
	}
}

func TestSeal_MultipleRecipients(t *testing.T) {
	a, b := newIdentity(t), newIdentity(t)
	spec := a.Recipient().String() + ", " + b.Recipient().String()

	_, sealed, err := Seal("x.csv", []byte("data"), spec)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	for _, id := range []*age.X25519Identity{a, b} {
		var out bytes.Buffer
		if err := Decrypt(&out, bytes.NewReader(sealed), id.String()); err != nil || out.String() != "data" {
			t.Errorf("Decrypt = %q, %v", out.String(), err)
		}
	}

	var out bytes.Buffer
	if err := Decrypt(&out, bytes.NewReader(sealed), newIdentity(t).String()); err == nil {
		t.Error("a foreign identity must not decrypt")
	}
}

func TestSeal_PassThrough(t *testing.T) {
	name, data, err := Seal("x.csv", []byte("plain"), "  ")
	if err != nil || name != "x.csv" || string(data) != "plain" {
		t.Errorf("Seal = %q, %q, %v", name, data, err)
	}
}

func TestParseRecipients_Rejects(t *testing.T) {
	for _, spec := range []string{"not-a-key", "# only a comment"} {
		if _, err := ParseRecipients(spec); err == nil {
			t.Errorf("ParseRecipients(%q) should fail", spec)
		}
	}
}

func TestObjectKey(t *testing.T) {
	tests := []struct{ prefix, name, want string }{
		{"", "a.csv", "a.csv"},
		{"exports", "a.csv", "exports/a.csv"},
		{"/exports/2025/", "a.csv.age", "exports/2025/a.csv.age"},
	}
	for _, tt := range tests {
		if got := ObjectKey(tt.prefix, tt.name); got != tt.want {
			t.Errorf("ObjectKey(%q, %q) = %q, want %q", tt.prefix, tt.name, got, tt.want)
		}
	}
	if !strings.HasPrefix(contentType("a.csv"), "text/csv") || contentType("a.csv.age") != "application/octet-stream" {
		t.Error("unexpected content types")
	}
}
