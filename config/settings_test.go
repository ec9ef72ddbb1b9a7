package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "settings.json")
	m := NewManager(path)

	settings, err := m.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Server.Port != 7575 {
		t.Errorf("default port: got %d", settings.Server.Port)
	}
	if settings.Search.TimeoutSec != 30 {
		t.Errorf("default search timeout: got %d", settings.Search.TimeoutSec)
	}
	if !settings.SaveDownloadHistory {
		t.Error("history should be on by default")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("defaults should be written to disk: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "settings.json"))

	settings := DefaultSettings()
	settings.DefaultClientID = "tr-main"
	settings.Sites = []SiteConfig{{
		Host:    "pt.example.com",
		Name:    "Example",
		BaseURL: "https://pt.example.com/",
		Schema:  "nexusphp",
		Passkey: "s3cret",
		Enabled: true,
	}}
	settings.Clients = []ClientConfig{{
		ID:      "tr-main",
		Type:    "transmission",
		Address: "http://localhost:9091/transmission/rpc",
		Paths:   map[string][]string{"pt.example.com": {"/data/pt"}},
	}}

	if err := m.Save(settings); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.DefaultClientID != "tr-main" {
		t.Errorf("default client: got %q", loaded.DefaultClientID)
	}
	site := loaded.FindSite("PT.EXAMPLE.COM")
	if site == nil {
		t.Fatal("FindSite should match case-insensitively")
	}
	if site.Passkey != "s3cret" {
		t.Errorf("passkey: got %q", site.Passkey)
	}
	client := loaded.FindClient("tr-main")
	if client == nil {
		t.Fatal("FindClient returned nil")
	}
	if got := client.Paths["pt.example.com"]; len(got) != 1 || got[0] != "/data/pt" {
		t.Errorf("paths: got %v", got)
	}
}

func TestLoadMigratesLegacyShapes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	legacy := `{
  "server": {"host": "0.0.0.0", "port": 7575},
  "defaultClient": "old-client",
  "search": {"timeout": 25000, "rows": 50}
}`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatalf("write legacy config: %v", err)
	}

	settings, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if settings.DefaultClientID != "old-client" {
		t.Errorf("defaultClient should migrate to defaultClientId, got %q", settings.DefaultClientID)
	}
	if settings.Search.TimeoutSec != 25 {
		t.Errorf("millisecond timeout should migrate to seconds, got %d", settings.Search.TimeoutSec)
	}
}

func TestLoadClampsBadTimeouts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	raw := `{"search": {"timeoutSec": 0}, "connectTimeoutSec": -1}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	settings, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if settings.Search.TimeoutSec != 30 {
		t.Errorf("zero search timeout should reset to 30, got %d", settings.Search.TimeoutSec)
	}
	if settings.ConnectTimeoutSec != 5 {
		t.Errorf("negative connect timeout should reset to 5, got %d", settings.ConnectTimeoutSec)
	}
}
