package search

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"ptbridge/config"
)

func testSite() config.SiteConfig {
	return config.SiteConfig{
		Host:    "pt.example.com",
		Name:    "Example PT",
		BaseURL: "https://pt.example.com/",
		Schema:  "nexusphp",
		Enabled: true,
	}
}

// torrentPage wraps row markup in the standard NexusPHP torrent table with
// two header rows.
func torrentPage(rows string) []byte {
	return []byte(fmt.Sprintf(`<html><body><table class="torrents"><tbody>
<tr><td>类型</td><td>标题</td></tr>
<tr><td colspan="2">filters</td></tr>
%s
</tbody></table></body></html>`, rows))
}

const fullRowPair = `<tr>
  <td><a href="details.php?id=4211&hit=1" title="Ubuntu 24.04 LTS amd64 ISO">Ubuntu 24.04</a></td>
  <td><a href="torrents.php?sort=9#seeders">1,205</a></td>
  <td><a href="torrents.php?sort=10#leechers">37</a></td>
  <td><a href="viewsnatches.php?id=4211">402</a></td>
  <td>uploader1</td>
</tr>
<tr>
  <td>5</td>
  <td><span title="2024-05-02 08:30:15">3分钟前</span></td>
  <td>3.36 GB</td>
</tr>`

func TestParseFullRowPair(t *testing.T) {
	p := &NexusParser{}
	records, err := p.Parse(torrentPage(fullRowPair), testSite())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	rec := records[0]
	if rec.Title != "Ubuntu 24.04 LTS amd64 ISO" {
		t.Errorf("title: got %q", rec.Title)
	}
	if rec.DetailLink != "https://pt.example.com/details.php?id=4211&hit=1" {
		t.Errorf("detail link: got %q", rec.DetailLink)
	}
	if rec.DownloadURL != "https://pt.example.com/download.php?id=4211" {
		t.Errorf("download url: got %q", rec.DownloadURL)
	}
	if rec.Seeders != 1205 {
		t.Errorf("seeders: expected thousands separator stripped, got %d", rec.Seeders)
	}
	if rec.Leechers != 37 || rec.Completed != 402 || rec.Comments != 5 {
		t.Errorf("counters: got leechers=%d completed=%d comments=%d", rec.Leechers, rec.Completed, rec.Comments)
	}
	if rec.Uploader != "uploader1" {
		t.Errorf("uploader: got %q", rec.Uploader)
	}
	gib := float64(1 << 30)
	if want := int64(3.36 * gib); rec.SizeBytes != want {
		t.Errorf("size: got %d, want %d", rec.SizeBytes, want)
	}
	if rec.PublishedAt == nil {
		t.Fatal("published: expected a timestamp")
	}
	want := time.Date(2024, 5, 2, 8, 30, 15, 0, time.Local)
	if !rec.PublishedAt.Equal(want) {
		t.Errorf("published: got %v, want %v", rec.PublishedAt, want)
	}
	if rec.SiteHost != "pt.example.com" {
		t.Errorf("site host: got %q", rec.SiteHost)
	}
}

func TestParsePasskeyAppended(t *testing.T) {
	site := testSite()
	site.Passkey = "s3cret"

	p := &NexusParser{}
	records, err := p.Parse(torrentPage(fullRowPair), site)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "https://pt.example.com/download.php?id=4211&passkey=s3cret"; records[0].DownloadURL != want {
		t.Errorf("download url: got %q, want %q", records[0].DownloadURL, want)
	}
}

func TestParseRelativeTimePrefersAttribute(t *testing.T) {
	// The visible text is a localized relative time; the precise timestamp
	// in the nested attribute must win.
	rows := `<tr>
  <td><a href="details.php?id=7&hit=1">Some Release</a></td>
  <td>u</td>
</tr>
<tr>
  <td>0</td>
  <td><span title="2021-03-05 14:07:22">2天前</span></td>
  <td>700 MB</td>
</tr>`

	p := &NexusParser{}
	records, err := p.Parse(torrentPage(rows), testSite())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records[0].PublishedAt == nil {
		t.Fatal("expected timestamp from title attribute")
	}
	want := time.Date(2021, 3, 5, 14, 7, 22, 0, time.Local)
	if !records[0].PublishedAt.Equal(want) {
		t.Errorf("published: got %v, want %v", records[0].PublishedAt, want)
	}
}

func TestParseSiblingCellFallbackNormalizesGlue(t *testing.T) {
	// No nested attribute anywhere; the date lives in visible cell text with
	// the day and hour glued together.
	rows := `<tr>
  <td><a href="details.php?id=8&hit=1">Another Release</a></td>
  <td>u</td>
</tr>
<tr>
  <td>2</td>
  <td>2021-03-0514:07:22</td>
  <td>1 GB</td>
</tr>`

	p := &NexusParser{}
	records, err := p.Parse(torrentPage(rows), testSite())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec := records[0]
	if rec.PublishedAt == nil {
		t.Fatal("expected timestamp from sibling cell scan")
	}
	want := time.Date(2021, 3, 5, 14, 7, 22, 0, time.Local)
	if !rec.PublishedAt.Equal(want) {
		t.Errorf("published: got %v, want %v", rec.PublishedAt, want)
	}
	if rec.SizeBytes != 1<<30 {
		t.Errorf("size should come from the cell after the date, got %d", rec.SizeBytes)
	}
	if rec.Comments != 2 {
		t.Errorf("comments should come from the cell before the date, got %d", rec.Comments)
	}
}

func TestParseMissingOptionalAnchorsDefaultToZero(t *testing.T) {
	rows := `<tr>
  <td><a href="details.php?id=9&hit=1">Sparse Row</a></td>
</tr>
<tr>
  <td></td>
</tr>`

	p := &NexusParser{}
	records, err := p.Parse(torrentPage(rows), testSite())
	if err != nil {
		t.Fatalf("parse must not fail on missing anchors: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	rec := records[0]
	if rec.Seeders != 0 || rec.Leechers != 0 || rec.Completed != 0 || rec.Comments != 0 {
		t.Errorf("expected zero counters, got %+v", rec)
	}
	if rec.SizeBytes != 0 {
		t.Errorf("expected zero size, got %d", rec.SizeBytes)
	}
	if rec.PublishedAt != nil {
		t.Errorf("expected nil published, got %v", rec.PublishedAt)
	}
	if rec.DownloadURL != "https://pt.example.com/download.php?id=9" {
		t.Errorf("download url: got %q", rec.DownloadURL)
	}
}

func TestParseMalformedRowSkippedNotFatal(t *testing.T) {
	// First pair lacks a title anchor, second pair is intact.
	rows := `<tr><td>no anchor here</td></tr>
<tr><td>still nothing</td></tr>
` + fullRowPair

	p := &NexusParser{}
	records, err := p.Parse(torrentPage(rows), testSite())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected the intact pair only, got %d records", len(records))
	}
}

func TestParseLoginRequired(t *testing.T) {
	page := []byte(`<html><body><form action="takelogin.php">login</form></body></html>`)

	p := &NexusParser{}
	records, err := p.Parse(page, testSite())
	if !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected zero records, got %d", len(records))
	}
}

func TestParseLoginPatternOverride(t *testing.T) {
	site := testSite()
	site.LoginPattern = `please sign in`
	page := []byte(`<html><body>please sign in</body></html>`)

	p := &NexusParser{}
	if _, err := p.Parse(page, site); !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired via override, got %v", err)
	}
}

func TestParseNoResultsPhrasings(t *testing.T) {
	phrasings := []string{
		"没有种子",
		"No torrents",
		"No Torrent",
		"Your search did not match anything",
		"用准确的关键字重试",
	}

	p := &NexusParser{}
	for _, phrase := range phrasings {
		page := []byte("<html><body>" + phrase + "</body></html>")
		records, err := p.Parse(page, testSite())
		if err != nil {
			t.Errorf("%q: expected empty success, got error %v", phrase, err)
		}
		if len(records) != 0 {
			t.Errorf("%q: expected no records, got %d", phrase, len(records))
		}
	}
}

func TestParseUnrecognizedPage(t *testing.T) {
	page := []byte(`<html><body><p>maintenance</p></body></html>`)

	p := &NexusParser{}
	if _, err := p.Parse(page, testSite()); !errors.Is(err, ErrPageParse) {
		t.Fatalf("expected ErrPageParse, got %v", err)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  *time.Time
	}{
		{"canonical", "2021-03-05 14:07:22", timePtr(2021, 3, 5, 14, 7, 22)},
		{"glued day hour", "2021-03-0514:07:22", timePtr(2021, 3, 5, 14, 7, 22)},
		{"nbsp separator", "2021-03-05 14:07:22", timePtr(2021, 3, 5, 14, 7, 22)},
		{"garbage", "yesterday", nil},
		{"partial", "2021-03-05", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseTimestamp(tt.input)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			if got != nil && !got.Equal(*tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func timePtr(y int, mo time.Month, d, h, mi, s int) *time.Time {
	t := time.Date(y, mo, d, h, mi, s, 0, time.Local)
	return &t
}

func TestParseSizeBytes(t *testing.T) {
	gib := float64(1 << 30)
	tests := []struct {
		input string
		want  int64
	}{
		{"3.36 GB", int64(3.36 * gib)},
		{"700 MB", 700 << 20},
		{"1.5 TiB", int64(1.5 * float64(1<<40))},
		{"512 KB", 512 << 10},
		{"", 0},
		{"unknown", 0},
	}

	for _, tt := range tests {
		if got := parseSizeBytes(tt.input); got != tt.want {
			t.Errorf("parseSizeBytes(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"1,205", 1205},
		{" 37 ", 37},
		{"", 0},
		{"n/a", 0},
		{"-3", 0},
	}

	for _, tt := range tests {
		if got := parseCount(tt.input); got != tt.want {
			t.Errorf("parseCount(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}
