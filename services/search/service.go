package search

import (
	"context"
	"errors"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/sourcegraph/conc"

	"ptbridge/config"
	"ptbridge/models"
)

var ErrNoTargetSites = errors.New("no target sites")

const defaultSearchTemplate = "torrents.php?incldead=1&search={key}"

// SearchOptions describes one aggregate search request.
type SearchOptions struct {
	Query   string
	Sites   []string      // site hosts; empty means every enabled site
	Timeout time.Duration // 0 falls back to the configured search timeout
}

// Service fans a query out to every target site, parses each response with
// the site's parser and assembles one outcome slot per site.
type Service struct {
	cfg     *config.Manager
	fetcher Fetcher
}

func NewService(cfg *config.Manager, fetcher Fetcher) *Service {
	if fetcher == nil {
		fetcher = NewHTTPFetcher(30 * time.Second)
	}
	return &Service{cfg: cfg, fetcher: fetcher}
}

type siteResult struct {
	host    string
	records []models.Record
	err     error
	elapsed time.Duration
}

// Search runs the per-site fetch+parse units concurrently and returns once
// all sites complete or the timeout elapses, whichever comes first. Sites
// still in flight at the deadline get a timeout slot; their eventual
// completions are discarded. The aggregate itself never fails once targets
// are resolved.
func (s *Service) Search(ctx context.Context, opts SearchOptions) (models.SearchOutcome, error) {
	outcome := models.SearchOutcome{Sites: map[string]models.SiteOutcome{}}

	settings, err := s.cfg.Load()
	if err != nil {
		return outcome, err
	}

	sites := targetSites(settings, opts.Sites)
	if len(sites) == 0 {
		return outcome, ErrNoTargetSites
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = time.Duration(settings.Search.TimeoutSec) * time.Second
	}

	start := time.Now()
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Buffered so abandoned units can still complete and be collected by GC
	// instead of blocking forever on send.
	results := make(chan siteResult, len(sites))
	var wg conc.WaitGroup
	for _, site := range sites {
		site := site
		wg.Go(func() {
			unitStart := time.Now()
			records, err := s.searchSite(fetchCtx, site, opts.Query)
			results <- siteResult{
				host:    site.Host,
				records: records,
				err:     err,
				elapsed: time.Since(unitStart),
			}
		})
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	remaining := len(sites)
collect:
	for remaining > 0 {
		select {
		case res := <-results:
			remaining--
			outcome.Sites[res.host] = slotFor(res)
		case <-timer.C:
			break collect
		case <-ctx.Done():
			break collect
		}
	}
	cancel()
	<-done

	// Every requested site gets exactly one slot; the ones that missed the
	// deadline are recorded as timeouts, never dropped.
	for _, site := range sites {
		if _, ok := outcome.Sites[site.Host]; ok {
			continue
		}
		outcome.Sites[site.Host] = models.SiteOutcome{
			Error:     models.ErrorKindTimeout,
			Message:   "site did not respond within the search timeout",
			ElapsedMS: time.Since(start).Milliseconds(),
		}
	}

	outcome.ElapsedMS = time.Since(start).Milliseconds()
	log.Printf("[search] query %q across %d site(s) finished in %s", opts.Query, len(sites), time.Since(start).Round(10*time.Millisecond))
	return outcome, nil
}

func slotFor(res siteResult) models.SiteOutcome {
	slot := models.SiteOutcome{ElapsedMS: res.elapsed.Milliseconds()}
	if res.err != nil {
		slot.Error = classifySiteError(res.err)
		slot.Message = res.err.Error()
		log.Printf("[search] %s failed: %v", res.host, res.err)
		return slot
	}
	slot.Records = res.records
	return slot
}

func classifySiteError(err error) models.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return models.ErrorKindTimeout
	}
	return classifyParseError(err)
}

// searchSite is one fan-out unit: build the site search URL, fetch, parse.
// Parsing is synchronous work on the fetched body; only the fetch suspends.
func (s *Service) searchSite(ctx context.Context, site config.SiteConfig, query string) ([]models.Record, error) {
	searchURL := buildSearchURL(site, query)
	page, err := s.fetcher.FetchSearchPage(ctx, site, searchURL)
	if err != nil {
		return nil, err
	}
	return parserForSchema(site.Schema).Parse(page, site)
}

func buildSearchURL(site config.SiteConfig, query string) string {
	template := site.SearchURL
	if template == "" {
		template = defaultSearchTemplate
	}
	path := strings.ReplaceAll(template, "{key}", url.QueryEscape(query))
	return joinURL(site.BaseURL, path)
}

func targetSites(settings config.Settings, hosts []string) []config.SiteConfig {
	var sites []config.SiteConfig
	if len(hosts) == 0 {
		for _, site := range settings.Sites {
			if site.Enabled {
				sites = append(sites, site)
			}
		}
		return sites
	}
	for _, host := range hosts {
		if site := settings.FindSite(host); site != nil && site.Enabled {
			sites = append(sites, *site)
		}
	}
	return sites
}
