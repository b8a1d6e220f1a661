package google

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

const installedClientJSON = `{"installed":{"client_id":"cid.apps.googleusercontent.com","client_secret":"shh","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["http://localhost"]}}`

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	want := &oauth2.Token{AccessToken: "at", RefreshToken: "rt", TokenType: "Bearer", Expiry: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}
	if err := SaveToken(path, want); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil || info.Mode().Perm() != 0o600 {
		t.Errorf("token file mode = %v, %v", info.Mode().Perm(), err)
	}
	got, err := LoadToken(path)
	if err != nil {
		t.Fatalf("LoadToken: %v", err)
	}
	if got.AccessToken != "at" || got.RefreshToken != "rt" || !got.Expiry.Equal(want.Expiry) {
		t.Errorf("LoadToken = %+v", got)
	}
}

func TestClientOption_OAuth(t *testing.T) {
	dir := t.TempDir()
	clientFile := filepath.Join(dir, "client.json")
	tokenFile := filepath.Join(dir, "token.json")
	if err := os.WriteFile(clientFile, []byte(installedClientJSON), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := SaveToken(tokenFile, &oauth2.Token{AccessToken: "at", RefreshToken: "rt"}); err != nil {
		t.Fatal(err)
	}

	opt, err := clientOption(context.Background(), Options{OAuthClientFile: clientFile, OAuthTokenFile: tokenFile})
	if err != nil || opt == nil {
		t.Fatalf("clientOption = %v, %v", opt, err)
	}

	if _, err := clientOption(context.Background(), Options{OAuthClientFile: filepath.Join(dir, "missing.json"), OAuthTokenFile: tokenFile}); err == nil {
		t.Error("a missing client file should fail")
	}
}

func TestOAuthConfig(t *testing.T) {
	cfg, err := OAuthConfig([]byte(installedClientJSON))
	if err != nil {
		t.Fatalf("OAuthConfig: %v", err)
	}
	if cfg.ClientID != "cid.apps.googleusercontent.com" || len(cfg.Scopes) != 1 {
		t.Errorf("cfg = %+v", cfg)
	}
	if _, err := OAuthConfig([]byte(`{}`)); err == nil {
		t.Error("empty client JSON should fail")
	}
}
