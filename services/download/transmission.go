package download

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"ptbridge/config"
)

const transmissionSessionHeader = "X-Transmission-Session-Id"

// TransmissionBackend speaks the Transmission JSON-RPC protocol. The session
// id handshake happens lazily on the first call; a failed handshake is never
// cached, so the next call redials.
type TransmissionBackend struct {
	address  string
	username string
	password string
	httpc    *http.Client

	mu        sync.Mutex
	sessionID string
}

func NewTransmissionBackend(client config.ClientConfig, connectTimeout time.Duration) *TransmissionBackend {
	return &TransmissionBackend{
		address:  client.Address,
		username: client.Username,
		password: client.Password,
		httpc:    &http.Client{Timeout: connectTimeout},
	}
}

func (t *TransmissionBackend) Type() string { return ClientTypeTransmission }

type rpcRequest struct {
	Method    string      `json:"method"`
	Arguments interface{} `json:"arguments,omitempty"`
}

type rpcResponse struct {
	Result    string          `json:"result"`
	Arguments json.RawMessage `json:"arguments"`
}

type torrentInfo struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	HashString string `json:"hashString"`
}

// Submit sends the URL via torrent-add. The returned payload follows the
// daemon's own taxonomy: the added torrent object on success, a
// status/torrent pair on duplicates and a status/msg pair on RPC-level
// failures. Interpretation belongs to the dispatcher.
func (t *TransmissionBackend) Submit(ctx context.Context, url, savePath string, autoStart bool) (json.RawMessage, error) {
	args := map[string]interface{}{
		"filename": url,
		"paused":   !autoStart,
	}
	if savePath != "" {
		args["download-dir"] = savePath
	}

	resp, err := t.call(ctx, rpcRequest{Method: "torrent-add", Arguments: args})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Added     *torrentInfo `json:"torrent-added"`
		Duplicate *torrentInfo `json:"torrent-duplicate"`
	}
	if err := json.Unmarshal(resp.Arguments, &parsed); err != nil {
		return nil, fmt.Errorf("decode torrent-add response: %w", err)
	}

	switch {
	case resp.Result != "success":
		return json.Marshal(map[string]string{"status": "error", "msg": resp.Result})
	case parsed.Duplicate != nil:
		return json.Marshal(map[string]interface{}{"status": "duplicate", "torrent": parsed.Duplicate})
	case parsed.Added != nil:
		return json.Marshal(parsed.Added)
	default:
		return resp.Arguments, nil
	}
}

func (t *TransmissionBackend) FreeSpace(ctx context.Context, path string) (int64, error) {
	resp, err := t.call(ctx, rpcRequest{Method: "free-space", Arguments: map[string]string{"path": path}})
	if err != nil {
		return 0, err
	}
	if resp.Result != "success" {
		return 0, fmt.Errorf("free-space failed: %s", resp.Result)
	}
	var parsed struct {
		SizeBytes int64 `json:"size-bytes"`
	}
	if err := json.Unmarshal(resp.Arguments, &parsed); err != nil {
		return 0, fmt.Errorf("decode free-space response: %w", err)
	}
	return parsed.SizeBytes, nil
}

type sessionConflictError struct {
	sessionID string
}

func (e *sessionConflictError) Error() string { return "transmission session id expired" }

// call performs one RPC round trip. A 409 carries a fresh session id and is
// retried once with the new id.
func (t *TransmissionBackend) call(ctx context.Context, req rpcRequest) (*rpcResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	return retry.DoWithData(
		func() (*rpcResponse, error) {
			return t.doCall(ctx, body)
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(0),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			conflict, ok := err.(*sessionConflictError)
			if ok {
				t.setSessionID(conflict.sessionID)
			}
			return ok
		}),
	)
}

func (t *TransmissionBackend) doCall(ctx context.Context, body []byte) (*rpcResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.address, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if id := t.getSessionID(); id != "" {
		httpReq.Header.Set(transmissionSessionHeader, id)
	}
	if t.username != "" {
		httpReq.SetBasicAuth(t.username, t.password)
	}

	httpResp, err := t.httpc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("transmission request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusConflict {
		return nil, &sessionConflictError{sessionID: httpResp.Header.Get(transmissionSessionHeader)}
	}
	if httpResp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("transmission returned status %d: %s", httpResp.StatusCode, string(payload))
	}

	var resp rpcResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode transmission response: %w", err)
	}
	return &resp, nil
}

func (t *TransmissionBackend) getSessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

func (t *TransmissionBackend) setSessionID(id string) {
	t.mu.Lock()
	t.sessionID = id
	t.mu.Unlock()
}
