package models

import (
	"encoding/json"
	"time"
)

// ErrorKind classifies per-site search failures and download dispatch errors.
// Values are stable strings so they serialize cleanly over the API.
type ErrorKind string

const (
	ErrorKindAuthRequired    ErrorKind = "auth_required"
	ErrorKindNetworkError    ErrorKind = "network_error"
	ErrorKindTimeout         ErrorKind = "timeout"
	ErrorKindParseError      ErrorKind = "parse_error"
	ErrorKindInvalidRequest  ErrorKind = "invalid_request"
	ErrorKindNoSuchClient    ErrorKind = "no_such_client"
	ErrorKindNoDefaultClient ErrorKind = "no_default_client"
	ErrorKindBackendError    ErrorKind = "backend_error"
	ErrorKindDuplicate       ErrorKind = "duplicate"
)

// Record is one normalized torrent listing extracted from a tracker search page.
// Records are created per response and never persisted.
type Record struct {
	Title       string     `json:"title"`
	Subtitle    string     `json:"subtitle,omitempty"`
	DetailLink  string     `json:"detailLink"`
	DownloadURL string     `json:"downloadUrl"`
	SizeBytes   int64      `json:"sizeBytes"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	Seeders     int        `json:"seeders"`
	Leechers    int        `json:"leechers"`
	Completed   int        `json:"completed"`
	Comments    int        `json:"comments"`
	Uploader    string     `json:"uploader,omitempty"`
	SiteHost    string     `json:"siteHost"`
}

// SiteOutcome is the per-site slot in a search response. Exactly one of
// Records or Error carries the result; an empty success has both zero.
type SiteOutcome struct {
	Records   []Record  `json:"records,omitempty"`
	Error     ErrorKind `json:"error,omitempty"`
	Message   string    `json:"message,omitempty"`
	ElapsedMS int64     `json:"elapsedMs"`
}

// Failed reports whether the slot holds an error rather than records.
func (o SiteOutcome) Failed() bool { return o.Error != "" }

// SearchOutcome maps every requested site host to exactly one outcome slot.
type SearchOutcome struct {
	Sites     map[string]SiteOutcome `json:"sites"`
	ElapsedMS int64                  `json:"elapsedMs"`
}

// OutcomeKind is the normalized classification of a dispatch result.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeInfo    OutcomeKind = "info"
	OutcomeError   OutcomeKind = "error"
)

// DownloadRequest asks the dispatcher to send one torrent URL to a client.
type DownloadRequest struct {
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	ClientID  string `json:"clientId,omitempty"`
	SavePath  string `json:"savePath,omitempty"`
	AutoStart bool   `json:"autoStart"`
}

// DownloadOutcome is the uniform dispatch result. Kind OutcomeError implies
// Success=false; OutcomeInfo is a success carrying an advisory message.
type DownloadOutcome struct {
	Kind    OutcomeKind     `json:"kind"`
	Message string          `json:"msg"`
	Success bool            `json:"success"`
	Error   ErrorKind       `json:"error,omitempty"`
	Raw     json.RawMessage `json:"raw,omitempty"`
}

// DownloadHistoryItem is one persisted dispatch record.
type DownloadHistoryItem struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title,omitempty"`
	SiteHost  string    `json:"siteHost"`
	ClientID  string    `json:"clientId"`
	SavePath  string    `json:"savePath,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
