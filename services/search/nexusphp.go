package search

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ptbridge/config"
	"ptbridge/models"
)

// NexusParser handles the NexusPHP table layout where one logical listing
// spans two consecutive table rows: title and peer stats in the first row,
// date, size and counters in the second.
type NexusParser struct{}

const nexusHeaderRows = 2

// Default selectors; a site may override any key via SiteConfig.Selectors.
const (
	selRows      = "rows"
	selTitle     = "title"
	selSeeders   = "seeders"
	selLeechers  = "leechers"
	selCompleted = "completed"
)

var nexusDefaultSelectors = map[string]string{
	selRows:      ".torrents > tbody > tr",
	selTitle:     "a[href$='hit=1']",
	selSeeders:   "a[href$='#seeders']",
	selLeechers:  "a[href$='#leechers']",
	selCompleted: "a[href^='viewsnatches.php']",
}

var (
	nexusLoginPattern     = regexp.MustCompile(`takelogin\.php`)
	nexusNoResultsPattern = regexp.MustCompile(`没有种子|No [Tt]orrents?|Your search did not match anything|用准确的关键字重试`)

	timestampPattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}\D+?\d{2}:\d{2}:\d{2}`)
	timestampParts   = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})\D+?(\d{2}:\d{2}:\d{2})`)
	// Some sites render the day and hour glued together ("-05 14:" missing
	// its space). Normalized before the timestamp pattern is applied.
	dayHourGlue = regexp.MustCompile(`-(\d{2})\s?(\d{2}):`)

	// Localized relative-time units (minute/hour/day/month/year). When the
	// visible cell text is relative, the precise timestamp lives in a nested
	// title attribute instead.
	relativeTimeUnits = regexp.MustCompile(`[分时天月年]`)

	thousandsSep = strings.NewReplacer(",", "")

	sizePattern = regexp.MustCompile(`(?i)([\d.]+)\s*([KMGTP]?i?B)`)
)

func (p *NexusParser) Schema() string { return "nexusphp" }

// Parse classifies the page (login required, no results) and then extracts
// listings pairwise from the torrent table. A malformed row is skipped, never
// fatal; only the page-level conditions abort.
func (p *NexusParser) Parse(page []byte, site config.SiteConfig) ([]models.Record, error) {
	text := string(page)

	login := nexusLoginPattern
	if site.LoginPattern != "" {
		if re, err := regexp.Compile(site.LoginPattern); err == nil {
			login = re
		}
	}
	if login.MatchString(text) {
		return nil, fmt.Errorf("%s: %w", site.Host, ErrAuthRequired)
	}

	if p.matchesNoResults(text, site) {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", site.Host, ErrPageParse, err)
	}

	rows := doc.Find(selector(site, selRows))
	if rows.Length() <= nexusHeaderRows {
		return nil, fmt.Errorf("%s: %w: torrent table not found", site.Host, ErrPageParse)
	}

	var records []models.Record
	for i := nexusHeaderRows; i+1 < rows.Length(); i += 2 {
		rec, ok := p.parsePair(rows.Eq(i), rows.Eq(i+1), site)
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (p *NexusParser) matchesNoResults(text string, site config.SiteConfig) bool {
	if len(site.NoResultsPatterns) == 0 {
		return nexusNoResultsPattern.MatchString(text)
	}
	for _, pattern := range site.NoResultsPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// parsePair extracts one record from a two-row block. Missing optional
// anchors default to zero values; only a missing title anchor drops the row.
func (p *NexusParser) parsePair(row1, row2 *goquery.Selection, site config.SiteConfig) (models.Record, bool) {
	titleAnchor := row1.Find(selector(site, selTitle)).First()
	if titleAnchor.Length() == 0 {
		return models.Record{}, false
	}

	title := strings.TrimSpace(titleAnchor.AttrOr("title", ""))
	if title == "" {
		title = strings.TrimSpace(titleAnchor.Text())
	}
	href := titleAnchor.AttrOr("href", "")
	detail := joinURL(site.BaseURL, href)

	published, dateCell := resolvePublished(row2)

	var sizeBytes int64
	comments := 0
	if dateCell != nil {
		sizeBytes = parseSizeBytes(dateCell.NextFiltered("td").Text())
		comments = parseCount(dateCell.PrevFiltered("td").Text())
	}

	rec := models.Record{
		Title:       title,
		DetailLink:  detail,
		DownloadURL: buildDownloadURL(site, detail),
		SizeBytes:   sizeBytes,
		PublishedAt: published,
		Seeders:     parseCount(row1.Find(selector(site, selSeeders)).First().Text()),
		Leechers:    parseCount(row1.Find(selector(site, selLeechers)).First().Text()),
		Completed:   parseCount(row1.Find(selector(site, selCompleted)).First().Text()),
		Comments:    comments,
		Uploader:    strings.TrimSpace(row1.Find("td").Last().Text()),
		SiteHost:    site.Host,
	}
	return rec, true
}

// resolvePublished locates the date cell in the stats row. The dom shape
// varies with per-user site settings and promotion banners, so two strategies
// apply in order: a nested span carrying the precise timestamp in its title
// attribute (preferred when the visible text is a relative time), then a
// visible-text scan over the sibling cells.
func resolvePublished(row *goquery.Selection) (*time.Time, *goquery.Selection) {
	spans := row.Find("span").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return timestampPattern.MatchString(s.AttrOr("title", ""))
	})
	if spans.Length() > 0 {
		span := spans.Last()
		cell := span.Closest("td")
		if relativeTimeUnits.MatchString(cell.Text()) {
			return parseTimestamp(span.AttrOr("title", "")), cell
		}
	}

	cells := row.Find("td").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return timestampPattern.MatchString(normalizeDayHour(s.Text()))
	})
	if cells.Length() == 0 {
		return nil, nil
	}
	cell := cells.Last()
	raw := timestampPattern.FindString(normalizeDayHour(cell.Text()))
	return parseTimestamp(raw), cell
}

func normalizeDayHour(text string) string {
	return dayHourGlue.ReplaceAllString(text, "-$1 $2:")
}

// parseTimestamp canonicalizes the separator between date and time to a
// single space before parsing. Returns nil when the value is unparseable.
func parseTimestamp(raw string) *time.Time {
	m := timestampParts.FindStringSubmatch(normalizeDayHour(raw))
	if m == nil {
		return nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04:05", m[1]+" "+m[2], time.Local)
	if err != nil {
		return nil
	}
	return &t
}

// parseCount reads a numeric cell, stripping thousands separators.
// Absent or unparseable values default to 0.
func parseCount(text string) int {
	cleaned := strings.TrimSpace(thousandsSep.Replace(text))
	if cleaned == "" {
		return 0
	}
	n, err := strconv.Atoi(cleaned)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

var sizeUnits = map[string]int64{
	"B":   1,
	"KB":  1 << 10,
	"KIB": 1 << 10,
	"MB":  1 << 20,
	"MIB": 1 << 20,
	"GB":  1 << 30,
	"GIB": 1 << 30,
	"TB":  1 << 40,
	"TIB": 1 << 40,
	"PB":  1 << 50,
	"PIB": 1 << 50,
}

// parseSizeBytes converts a display size like "3.36 GB" to bytes, 0 if unknown.
func parseSizeBytes(text string) int64 {
	m := sizePattern.FindStringSubmatch(thousandsSep.Replace(text))
	if m == nil {
		return 0
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	unit, ok := sizeUnits[strings.ToUpper(m[2])]
	if !ok {
		return 0
	}
	return int64(value * float64(unit))
}

// buildDownloadURL derives the direct download link from the detail link's id
// parameter, appending the site passkey when configured. The result needs no
// further user interaction to resolve.
func buildDownloadURL(site config.SiteConfig, detailLink string) string {
	u, err := url.Parse(detailLink)
	if err != nil {
		return ""
	}
	id := u.Query().Get("id")
	if id == "" {
		return ""
	}
	endpoint := site.DownloadPath
	if endpoint == "" {
		endpoint = "download.php"
	}
	download := joinURL(site.BaseURL, fmt.Sprintf("%s?id=%s", endpoint, id))
	if site.Passkey != "" {
		download += "&passkey=" + url.QueryEscape(site.Passkey)
	}
	return download
}

func selector(site config.SiteConfig, key string) string {
	if site.Selectors != nil {
		if sel, ok := site.Selectors[key]; ok && sel != "" {
			return sel
		}
	}
	return nexusDefaultSelectors[key]
}

func joinURL(base, ref string) string {
	if ref == "" {
		return strings.TrimRight(base, "/")
	}
	if strings.Contains(ref, "://") {
		return ref
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(ref, "/")
}
