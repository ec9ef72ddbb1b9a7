package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server              ServerSettings   `json:"server"`
	Sites               []SiteConfig     `json:"sites"`
	Clients             []ClientConfig   `json:"clients"`
	DefaultClientID     string           `json:"defaultClientId"`
	SaveDownloadHistory bool             `json:"saveDownloadHistory"`
	Search              SearchSettings   `json:"search"`
	ConnectTimeoutSec   int              `json:"connectTimeoutSec"`
	Database            DatabaseSettings `json:"database"`
	Log                 LogConfig        `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// SiteConfig describes one configured tracker site. Host is the unique key.
type SiteConfig struct {
	Host              string            `json:"host"`
	Name              string            `json:"name"`
	BaseURL           string            `json:"baseUrl"`
	Schema            string            `json:"schema"`            // parser id, e.g. "nexusphp"
	SearchURL         string            `json:"searchUrl"`         // template, {key} is the escaped query
	DownloadPath      string            `json:"downloadPath"`      // download endpoint, default "download.php"
	Passkey           string            `json:"passkey,omitempty"` // appended to download URLs when set
	Cookie            string            `json:"cookie,omitempty"`  // session cookie header for fetches
	Charset           string            `json:"charset,omitempty"` // page charset: "", "utf-8", "gbk", "gb18030"
	DefaultClientID   string            `json:"defaultClientId,omitempty"`
	LoginPattern      string            `json:"loginPattern,omitempty"`      // overrides the schema login signature
	NoResultsPatterns []string          `json:"noResultsPatterns,omitempty"` // overrides the schema no-results signatures
	Selectors         map[string]string `json:"selectors,omitempty"`         // per-capability selector overrides
	Enabled           bool              `json:"enabled"`
}

// ClientConfig describes one download client. Paths maps a site host to its
// ordered save paths; the first entry is that site's default.
type ClientConfig struct {
	ID       string              `json:"id"`
	Name     string              `json:"name"`
	Type     string              `json:"type"` // "transmission", "qbittorrent"
	Address  string              `json:"address"`
	Username string              `json:"username,omitempty"`
	Password string              `json:"password,omitempty"`
	Paths    map[string][]string `json:"paths,omitempty"`
}

type SearchSettings struct {
	TimeoutSec int `json:"timeoutSec"`
	Rows       int `json:"rows"`
}

type DatabaseSettings struct {
	Path string `json:"path"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	File       string `json:"file"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// FindSite returns the configured site for a host, or nil.
func (s Settings) FindSite(host string) *SiteConfig {
	for i := range s.Sites {
		if strings.EqualFold(s.Sites[i].Host, host) {
			return &s.Sites[i]
		}
	}
	return nil
}

// FindClient returns the client config for an id, or nil.
func (s Settings) FindClient(id string) *ClientConfig {
	for i := range s.Clients {
		if s.Clients[i].ID == id {
			return &s.Clients[i]
		}
	}
	return nil
}

// DefaultSettings returns the configuration written on first start.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{
			Host: "0.0.0.0",
			Port: 7575,
		},
		Sites:               []SiteConfig{},
		Clients:             []ClientConfig{},
		SaveDownloadHistory: true,
		Search: SearchSettings{
			TimeoutSec: 30,
			Rows:       50,
		},
		ConnectTimeoutSec: 5,
		Database: DatabaseSettings{
			Path: filepath.Join("data", "ptbridge.db"),
		},
		Log: LogConfig{
			File:       "",
			MaxSize:    20,
			MaxAge:     14,
			MaxBackups: 3,
			Compress:   true,
		},
	}
}

// Manager loads and persists settings to a JSON file.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// EnsureDir ensures parent directory exists.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads settings from disk or creates defaults if missing. Older config
// files are migrated in place before decoding.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}
	f, err := os.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	// Decode into a raw map first to migrate old shapes.
	var raw map[string]interface{}
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return Settings{}, err
	}

	// Older configs stored the default client id under "defaultClient".
	if _, has := raw["defaultClientId"]; !has {
		if old, ok := raw["defaultClient"].(string); ok && strings.TrimSpace(old) != "" {
			raw["defaultClientId"] = old
		}
	}
	delete(raw, "defaultClient")

	// Older configs stored search.timeout in milliseconds.
	if searchRaw, ok := raw["search"].(map[string]interface{}); ok {
		if _, has := searchRaw["timeoutSec"]; !has {
			if ms, ok := searchRaw["timeout"].(float64); ok && ms > 0 {
				sec := int(ms / 1000)
				if sec < 1 {
					sec = 1
				}
				searchRaw["timeoutSec"] = sec
			}
		}
		delete(searchRaw, "timeout")
	}

	buf, err := json.Marshal(raw)
	if err != nil {
		return Settings{}, err
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(buf, &settings); err != nil {
		return Settings{}, err
	}
	if settings.Search.TimeoutSec <= 0 {
		settings.Search.TimeoutSec = 30
	}
	if settings.ConnectTimeoutSec <= 0 {
		settings.ConnectTimeoutSec = 5
	}
	return settings, nil
}

// Save writes settings to disk atomically.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}

	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, m.path)
}
