package scrape

import (
	"context"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// browserUA is sent on every fetch; several event platforms serve an empty
// shell to unknown agents.
const browserUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// PageScraper fetches HTML via net/http and reduces it to plaintext context.
type PageScraper struct {
	client       *http.Client
	maxTextChars int
}

// NewPageScraper creates a PageScraper with the given timeout and text budget.
func NewPageScraper(timeout time.Duration, maxTextChars int) *PageScraper {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxTextChars <= 0 {
		maxTextChars = 4000
	}
	return &PageScraper{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: timeout,
				}).DialContext,
				TLSHandshakeTimeout: timeout,
			},
		},
		maxTextChars: maxTextChars,
	}
}

func (p *PageScraper) Name() string { return "page_http" }

// Scrape fetches a URL, rejects non-HTML and blocked responses, strips
// markup, and extracts metadata hints.
func (p *PageScraper) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: create request")
	}
	req.Header.Set("User-Agent", browserUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("scrape: status %d", resp.StatusCode)
	}

	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "text/html") && !strings.Contains(ct, "text/plain") {
		return nil, eris.Errorf("scrape: unsupported content type %s", ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return nil, eris.Wrap(err, "scrape: read body")
	}

	if blocked, kind := detectBlock(resp, body); blocked {
		return nil, eris.Errorf("scrape: blocked (%s)", kind)
	}

	html := string(body)

	result := &Result{
		Title:       firstNonEmpty(metaContent(html, "og:title"), extractTitle(html)),
		Description: firstNonEmpty(metaContent(html, "og:description"), metaContent(html, "description")),
	}

	if ev, ok := ExtractEventJSONLD(html); ok {
		result.EventDate = ev.StartDate
		result.EventEndDate = ev.EndDate
		result.Location = ev.LocationName()
	}

	text := stripHTML(html)
	if len(text) > p.maxTextChars {
		// Cut on a rune boundary so the prompt stays valid UTF-8.
		if r := []rune(text); len(r) > p.maxTextChars {
			text = string(r[:p.maxTextChars])
		}
	}
	result.Text = text

	return result, nil
}

// detectBlock checks a response for anti-bot interstitials; a blocked page
// yields a challenge shell, not event content.
func detectBlock(resp *http.Response, body []byte) (bool, string) {
	if resp.StatusCode == 403 || resp.StatusCode == 503 {
		if resp.Header.Get("cf-ray") != "" || resp.Header.Get("server") == "cloudflare" {
			return true, "cloudflare"
		}
	}

	lower := strings.ToLower(string(body))
	if strings.Contains(lower, "checking your browser") || strings.Contains(lower, "cf-browser-verification") {
		return true, "cloudflare"
	}
	if strings.Contains(lower, "recaptcha") || strings.Contains(lower, "hcaptcha") {
		return true, "captcha"
	}
	return false, ""
}

var titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

func extractTitle(html string) string {
	m := titleRe.FindStringSubmatch(html)
	if len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// metaContent pulls the content attribute of a meta tag identified by its
// property or name attribute. Handles both attribute orders.
func metaContent(html, key string) string {
	q := regexp.QuoteMeta(key)
	patterns := []string{
		`(?is)<meta[^>]+(?:property|name)=["']` + q + `["'][^>]+content=["']([^"']*)["']`,
		`(?is)<meta[^>]+content=["']([^"']*)["'][^>]+(?:property|name)=["']` + q + `["']`,
	}
	for _, p := range patterns {
		re := regexp.MustCompile(p)
		if m := re.FindStringSubmatch(html); len(m) > 1 {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// stripHTML removes script/style/nav/header/footer blocks, strips tags,
// decodes common entities, and collapses whitespace.
func stripHTML(html string) string {
	for _, tag := range []string{"script", "style", "nav", "header", "footer"} {
		re := regexp.MustCompile(`(?is)<` + tag + `[^>]*>.*?</` + tag + `>`)
		html = re.ReplaceAllString(html, "")
	}

	tagRe := regexp.MustCompile(`<[^>]+>`)
	html = tagRe.ReplaceAllString(html, " ")

	r := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	html = r.Replace(html)

	spaceRe := regexp.MustCompile(`[ \t]+`)
	html = spaceRe.ReplaceAllString(html, " ")

	nlRe := regexp.MustCompile(`\s*\n\s*`)
	html = nlRe.ReplaceAllString(html, "\n")

	return strings.TrimSpace(html)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
