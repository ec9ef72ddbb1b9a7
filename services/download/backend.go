package download

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ptbridge/config"
)

var (
	ErrNoSuchClient    = errors.New("download client not found")
	ErrNoDefaultClient = errors.New("no default download client configured")
)

// Known client type tags.
const (
	ClientTypeTransmission = "transmission"
	ClientTypeQBittorrent  = "qbittorrent"
)

// Backend is the uniform contract over one download client's RPC API. A
// backend translates the calls into its own protocol and returns its native
// payload untouched; interpreting that payload is the dispatcher's job.
type Backend interface {
	Type() string
	Submit(ctx context.Context, url, savePath string, autoStart bool) (json.RawMessage, error)
	FreeSpace(ctx context.Context, path string) (int64, error)
}

// buildBackend constructs the backend for a client config. Connections are
// established lazily on first call, not here.
func buildBackend(client config.ClientConfig, settings config.Settings) (Backend, error) {
	connectTimeout := connectTimeout(settings)
	switch client.Type {
	case ClientTypeTransmission:
		return NewTransmissionBackend(client, connectTimeout), nil
	case ClientTypeQBittorrent:
		return NewQBittorrentBackend(client, connectTimeout), nil
	default:
		return nil, fmt.Errorf("unsupported client type %q", client.Type)
	}
}
