package search

import (
	"errors"
	"strings"

	"ptbridge/config"
	"ptbridge/models"
)

// Page-level parse classifications. Row-level anomalies never surface as
// errors; malformed rows are skipped and the rest of the page is returned.
var (
	ErrAuthRequired = errors.New("site requires login")
	ErrPageParse    = errors.New("unrecognized page markup")
)

// Parser extracts normalized records from a fetched search page. One
// implementation exists per site schema; sites select theirs by name and may
// override detection patterns and selectors through their SiteConfig.
type Parser interface {
	Schema() string
	Parse(page []byte, site config.SiteConfig) ([]models.Record, error)
}

// parserForSchema returns the parser for a schema name. Unknown or empty
// schemas fall back to the NexusPHP parser, by far the most common layout
// among private trackers.
func parserForSchema(schema string) Parser {
	switch strings.ToLower(strings.TrimSpace(schema)) {
	case "", "nexusphp":
		return &NexusParser{}
	default:
		return &NexusParser{}
	}
}

// classifyParseError maps a parse failure onto the outcome taxonomy.
func classifyParseError(err error) models.ErrorKind {
	switch {
	case errors.Is(err, ErrAuthRequired):
		return models.ErrorKindAuthRequired
	case errors.Is(err, ErrPageParse):
		return models.ErrorKindParseError
	default:
		return models.ErrorKindNetworkError
	}
}
