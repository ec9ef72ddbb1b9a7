package download

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"ptbridge/config"
)

// QBittorrentBackend speaks the qBittorrent Web API. Login happens lazily on
// the first call; the SID cookie lives in the client jar and is re-acquired
// whenever the daemon answers 403.
type QBittorrentBackend struct {
	baseURL  string
	username string
	password string
	httpc    *http.Client

	mu       sync.Mutex
	loggedIn bool
}

func NewQBittorrentBackend(client config.ClientConfig, connectTimeout time.Duration) *QBittorrentBackend {
	jar, _ := cookiejar.New(nil)
	return &QBittorrentBackend{
		baseURL:  strings.TrimRight(client.Address, "/"),
		username: client.Username,
		password: client.Password,
		httpc:    &http.Client{Timeout: connectTimeout, Jar: jar},
	}
}

func (q *QBittorrentBackend) Type() string { return ClientTypeQBittorrent }

func (q *QBittorrentBackend) ensureLogin(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.loggedIn {
		return nil
	}

	form := url.Values{}
	form.Set("username", q.username)
	form.Set("password", q.password)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.baseURL+"/api/v2/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := q.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("qbittorrent login failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(string(body), "Ok") {
		return fmt.Errorf("qbittorrent login rejected: status %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	q.loggedIn = true
	return nil
}

// Submit posts the URL to torrents/add. The API answers with a bare "Ok." or
// "Fails." text body, returned as-is inside a msg payload.
func (q *QBittorrentBackend) Submit(ctx context.Context, torrentURL, savePath string, autoStart bool) (json.RawMessage, error) {
	if err := q.ensureLogin(ctx); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("urls", torrentURL)
	if savePath != "" {
		form.Set("savepath", savePath)
	}
	if !autoStart {
		form.Set("paused", "true")
	}

	body, status, err := q.post(ctx, "/api/v2/torrents/add", form)
	if err != nil {
		return nil, err
	}
	if status == http.StatusForbidden {
		// Session expired; log in again and retry once.
		q.mu.Lock()
		q.loggedIn = false
		q.mu.Unlock()
		if err := q.ensureLogin(ctx); err != nil {
			return nil, err
		}
		body, status, err = q.post(ctx, "/api/v2/torrents/add", form)
		if err != nil {
			return nil, err
		}
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("qbittorrent returned status %d: %s", status, strings.TrimSpace(body))
	}
	return json.Marshal(map[string]string{"msg": strings.TrimSpace(body)})
}

// FreeSpace reads the default save path's free space from maindata.
func (q *QBittorrentBackend) FreeSpace(ctx context.Context, path string) (int64, error) {
	if err := q.ensureLogin(ctx); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.baseURL+"/api/v2/sync/maindata", nil)
	if err != nil {
		return 0, err
	}
	resp, err := q.httpc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("qbittorrent request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("qbittorrent returned status %d", resp.StatusCode)
	}
	var parsed struct {
		ServerState struct {
			FreeSpaceOnDisk int64 `json:"free_space_on_disk"`
		} `json:"server_state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decode maindata response: %w", err)
	}
	return parsed.ServerState.FreeSpaceOnDisk, nil
}

func (q *QBittorrentBackend) post(ctx context.Context, path string, form url.Values) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := q.httpc.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("qbittorrent request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	return string(body), resp.StatusCode, nil
}
