package download

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"ptbridge/config"
	"ptbridge/models"
)

// historyRecorder persists dispatched downloads. Failures here never fail
// the dispatch itself.
type historyRecorder interface {
	Record(ctx context.Context, item models.DownloadHistoryItem) error
}

// Service routes download requests to the right backend and normalizes the
// backend's native response into one outcome taxonomy.
type Service struct {
	cfg      *config.Manager
	registry *Registry
	history  historyRecorder
}

func NewService(cfg *config.Manager, registry *Registry, history historyRecorder) *Service {
	if registry == nil {
		registry = NewRegistry(cfg)
	}
	return &Service{cfg: cfg, registry: registry, history: history}
}

// Registry exposes the backend registry for settings reload invalidation.
func (s *Service) Registry() *Registry { return s.registry }

// Dispatch resolves the target client and save path, submits the URL and
// returns a definitive outcome. Client precedence: explicit id in the
// request, then the site's default client, then the global default. Save
// path precedence: explicit, then the first configured path for the
// (client, site host) pair, then empty.
func (s *Service) Dispatch(ctx context.Context, req models.DownloadRequest) models.DownloadOutcome {
	if strings.TrimSpace(req.URL) == "" {
		return errorOutcome(models.ErrorKindInvalidRequest, "download URL is empty")
	}

	settings, err := s.cfg.Load()
	if err != nil {
		return errorOutcome(models.ErrorKindBackendError, fmt.Sprintf("load settings: %v", err))
	}

	host := hostFromURL(req.URL)
	site := settings.FindSite(host)

	var (
		backend   Backend
		clientCfg config.ClientConfig
	)
	if req.ClientID != "" {
		backend, clientCfg, err = s.registry.Resolve(req.ClientID)
	} else {
		backend, clientCfg, err = s.registry.ResolveForSite(site)
	}
	if err != nil {
		return resolveErrorOutcome(err)
	}

	siteDefaultPath := defaultSavePath(clientCfg, host)
	savePath := req.SavePath
	if savePath == "" {
		savePath = siteDefaultPath
	}

	raw, err := backend.Submit(ctx, req.URL, savePath, req.AutoStart)
	if err != nil {
		log.Printf("[download] submit to client %q failed: %v", clientCfg.ID, err)
		return errorOutcome(models.ErrorKindBackendError, fmt.Sprintf("submit failed: %v", err))
	}

	outcome := normalizeResponse(clientCfg.Type, raw, siteDefaultPath)

	if outcome.Success && settings.SaveDownloadHistory && s.history != nil {
		item := models.DownloadHistoryItem{
			URL:      req.URL,
			Title:    req.Title,
			SiteHost: host,
			ClientID: clientCfg.ID,
			SavePath: savePath,
		}
		if err := s.history.Record(ctx, item); err != nil {
			log.Printf("[download] failed to record history: %v", err)
		}
	}

	return outcome
}

// FreeSpace reports the free bytes at a path on the resolved client, using
// the same resolution precedence as Dispatch.
func (s *Service) FreeSpace(ctx context.Context, clientID, path string) (int64, error) {
	var (
		backend Backend
		err     error
	)
	if clientID != "" {
		backend, _, err = s.registry.Resolve(clientID)
	} else {
		backend, _, err = s.registry.ResolveForSite(nil)
	}
	if err != nil {
		return 0, err
	}
	return backend.FreeSpace(ctx, path)
}

// defaultSavePath returns the first configured path for the site host, or "".
func defaultSavePath(client config.ClientConfig, host string) string {
	if host == "" || client.Paths == nil {
		return ""
	}
	for configured, paths := range client.Paths {
		if strings.EqualFold(configured, host) && len(paths) > 0 {
			return paths[0]
		}
	}
	return ""
}

func hostFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// normalizeResponse maps a backend-native payload onto the outcome taxonomy
// by client type. Unrecognized client types pass the payload through as the
// message with success assumed.
func normalizeResponse(clientType string, raw json.RawMessage, siteDefaultPath string) models.DownloadOutcome {
	switch clientType {
	case ClientTypeTransmission:
		return normalizeTransmission(raw, siteDefaultPath)
	default:
		return passthroughOutcome(raw)
	}
}

func normalizeTransmission(raw json.RawMessage, siteDefaultPath string) models.DownloadOutcome {
	var payload struct {
		ID      *int64 `json:"id"`
		Name    string `json:"name"`
		Status  string `json:"status"`
		Msg     string `json:"msg"`
		Torrent *struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"torrent"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return passthroughOutcome(raw)
	}

	switch {
	case payload.ID != nil:
		outcome := models.DownloadOutcome{
			Kind:    models.OutcomeSuccess,
			Success: true,
			Message: fmt.Sprintf("%s sent to Transmission, id %d", payload.Name, *payload.ID),
			Raw:     raw,
		}
		if siteDefaultPath == "" {
			outcome.Kind = models.OutcomeInfo
			outcome.Message += "; no default save path is configured for this site"
		}
		return outcome

	case payload.Status == "duplicate":
		msg := "torrent already exists on the server"
		if payload.Torrent != nil {
			msg = fmt.Sprintf("%s already exists on the server, id %d", payload.Torrent.Name, payload.Torrent.ID)
		}
		return models.DownloadOutcome{
			Kind:    models.OutcomeError,
			Success: false,
			Error:   models.ErrorKindDuplicate,
			Message: msg,
			Raw:     raw,
		}

	case payload.Status == "error":
		return models.DownloadOutcome{
			Kind:    models.OutcomeError,
			Success: false,
			Error:   models.ErrorKindBackendError,
			Message: "failed to send the link, check that the download server is reachable",
			Raw:     raw,
		}

	case payload.Status != "":
		msg := payload.Msg
		if msg == "" {
			msg = payload.Status
		}
		return models.DownloadOutcome{Kind: models.OutcomeSuccess, Success: true, Message: msg, Raw: raw}

	default:
		return passthroughOutcome(raw)
	}
}

// passthroughOutcome surfaces an unrecognized payload as its message with
// success assumed true.
func passthroughOutcome(raw json.RawMessage) models.DownloadOutcome {
	msg := strings.TrimSpace(string(raw))
	var wrapped struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Msg != "" {
		msg = wrapped.Msg
	}
	return models.DownloadOutcome{
		Kind:    models.OutcomeSuccess,
		Success: true,
		Message: msg,
		Raw:     raw,
	}
}

func errorOutcome(kind models.ErrorKind, msg string) models.DownloadOutcome {
	return models.DownloadOutcome{
		Kind:    models.OutcomeError,
		Success: false,
		Error:   kind,
		Message: msg,
	}
}

func resolveErrorOutcome(err error) models.DownloadOutcome {
	switch {
	case errors.Is(err, ErrNoSuchClient):
		return errorOutcome(models.ErrorKindNoSuchClient, err.Error())
	case errors.Is(err, ErrNoDefaultClient):
		return errorOutcome(models.ErrorKindNoDefaultClient, err.Error())
	default:
		return errorOutcome(models.ErrorKindBackendError, err.Error())
	}
}
