package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"ptbridge/config"
)

const fetchUserAgent = "Mozilla/5.0 (X11; Linux x86_64) ptbridge/1.0"

// Fetcher retrieves a site's search page. Session handling with the tracker
// itself is external; the fetcher only attaches whatever cookie the site
// config carries.
type Fetcher interface {
	FetchSearchPage(ctx context.Context, site config.SiteConfig, searchURL string) ([]byte, error)
}

// HTTPFetcher fetches pages with a shared cookie-jar client and decodes
// legacy charsets used by older Chinese trackers.
type HTTPFetcher struct {
	httpc *http.Client
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &HTTPFetcher{
		httpc: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
	}
}

func (f *HTTPFetcher) FetchSearchPage(ctx context.Context, site config.SiteConfig, searchURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", fetchUserAgent)
	if site.Cookie != "" {
		req.Header.Set("Cookie", site.Cookie)
	}

	resp, err := f.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", site.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s returned status %d", site.Host, resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	switch strings.ToLower(site.Charset) {
	case "gbk", "gb2312":
		reader = transform.NewReader(resp.Body, simplifiedchinese.GBK.NewDecoder())
	case "gb18030":
		reader = transform.NewReader(resp.Body, simplifiedchinese.GB18030.NewDecoder())
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", site.Host, err)
	}
	return body, nil
}
