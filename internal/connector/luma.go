package connector

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/safetymap/events-cli/internal/config"
	"github.com/safetymap/events-cli/internal/model"
)

// LumaConnector searches a ticketing platform by keyword. The typed
// discover API is preferred; the rendered search page with its Next.js
// state blob and a bare link scan are the fallbacks.
type LumaConnector struct {
	cfg     config.LumaConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewLumaConnector(cfg config.LumaConfig) *LumaConnector {
	return &LumaConnector{
		cfg:    cfg,
		client: &http.Client{Timeout: 8 * time.Second},
		// One keyword query per 500ms keeps us under the platform's
		// anonymous rate limit.
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
	}
}

func (l *LumaConnector) Name() string { return string(model.SourceLuma) }

func (l *LumaConnector) Gather(ctx context.Context) ([]model.Candidate, error) {
	var (
		mu    sync.Mutex
		all   []model.Candidate
		fails int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)

	for _, kw := range l.cfg.Keywords {
		g.Go(func() error {
			if err := l.limiter.Wait(gctx); err != nil {
				return err
			}
			cands, err := l.gatherKeyword(gctx, kw)
			if err != nil {
				zap.L().Warn("luma keyword failed",
					zap.String("keyword", kw),
					zap.Error(err))
				mu.Lock()
				fails++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			all = append(all, cands...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "connector: luma gather")
	}
	if len(all) == 0 && fails == len(l.cfg.Keywords) && fails > 0 {
		return nil, eris.New("connector: every luma keyword query failed")
	}

	zap.L().Info("luma gather complete",
		zap.Int("count", len(all)),
		zap.Int("failed_keywords", fails))
	return dedupeByID(all), nil
}

// gatherKeyword runs the fallback ladder for one search term.
func (l *LumaConnector) gatherKeyword(ctx context.Context, kw string) ([]model.Candidate, error) {
	cands, err := l.searchAPI(ctx, kw)
	if err == nil && len(cands) > 0 {
		return cands, nil
	}
	if err != nil {
		zap.L().Debug("luma api fallback", zap.String("keyword", kw), zap.Error(err))
	}

	html, ferr := l.fetchSearchPage(ctx, kw)
	if ferr != nil {
		if err != nil {
			return nil, err
		}
		return nil, ferr
	}

	if cands := lumaFromNextData(html); len(cands) > 0 {
		return cands, nil
	}
	return lumaFromLinks(html), nil
}

type lumaEvent struct {
	APIID    string `json:"api_id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	StartAt  string `json:"start_at"`
	EndAt    string `json:"end_at"`
	Timezone string `json:"timezone"`
	Location *struct {
		City    string `json:"city"`
		Country string `json:"country"`
		Type    string `json:"type"`
	} `json:"geo_address_info"`
	Calendar *struct {
		Name string `json:"name"`
	} `json:"calendar"`
}

func (e lumaEvent) toCandidate() model.Candidate {
	c := model.Candidate{
		Source:   model.SourceLuma,
		SourceID: e.APIID,
		Title:    e.Name,
		URL:      lumaEventURL(e.URL),
	}
	if e.Location != nil {
		explicit := ""
		if e.Location.City != "" && e.Location.Country != "" {
			explicit = e.Location.City + ", " + e.Location.Country
		}
		c.Location = ResolveLocation(explicit, e.Location.Type == "online", false)
	}
	if e.Calendar != nil {
		c.SourceOrg = e.Calendar.Name
	}
	if e.StartAt != "" {
		date, clock := splitTimestamp(e.StartAt)
		c.EventDate = strPtr(date)
		if clock != "" {
			c.EventTime = strPtr(clock)
		}
	}
	if e.EndAt != "" {
		date, _ := splitTimestamp(e.EndAt)
		c.EventEndDate = strPtr(date)
	}
	return c
}

func lumaEventURL(u string) string {
	if strings.HasPrefix(u, "http") {
		return u
	}
	return "https://lu.ma/" + strings.TrimPrefix(u, "/")
}

func (l *LumaConnector) searchAPI(ctx context.Context, kw string) ([]model.Candidate, error) {
	endpoint := l.cfg.APIBaseURL + "/search/get-results?query=" + url.QueryEscape(kw)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "connector: create luma request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "connector: luma api")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("connector: luma api status %d", resp.StatusCode)
	}

	var parsed struct {
		Events []struct {
			Event lumaEvent `json:"event"`
		} `json:"events"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&parsed); err != nil {
		return nil, eris.Wrap(err, "connector: parse luma response")
	}

	var cands []model.Candidate
	for _, w := range parsed.Events {
		if w.Event.APIID == "" || w.Event.Name == "" {
			continue
		}
		cands = append(cands, w.Event.toCandidate())
	}
	return cands, nil
}

func (l *LumaConnector) fetchSearchPage(ctx context.Context, kw string) (string, error) {
	endpoint := l.cfg.SearchURL + "?q=" + url.QueryEscape(kw)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", eris.Wrap(err, "connector: create luma page request")
	}
	req.Header.Set("User-Agent", browserPageUA)

	resp, err := l.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "connector: fetch luma page")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("connector: luma page status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", eris.Wrap(err, "connector: read luma page")
	}
	return string(body), nil
}

const browserPageUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

var nextDataRe = regexp.MustCompile(`(?s)<script id="__NEXT_DATA__"[^>]*>(.*?)</script>`)

// lumaFromNextData pulls events out of the Next.js page state.
func lumaFromNextData(html string) []model.Candidate {
	m := nextDataRe.FindStringSubmatch(html)
	if len(m) < 2 {
		return nil
	}

	var state struct {
		Props struct {
			PageProps struct {
				InitialData struct {
					Events []struct {
						Event lumaEvent `json:"event"`
					} `json:"events"`
				} `json:"initialData"`
			} `json:"pageProps"`
		} `json:"props"`
	}
	if err := json.Unmarshal([]byte(m[1]), &state); err != nil {
		return nil
	}

	var cands []model.Candidate
	for _, w := range state.Props.PageProps.InitialData.Events {
		if w.Event.APIID == "" || w.Event.Name == "" {
			continue
		}
		cands = append(cands, w.Event.toCandidate())
	}
	return cands
}

var lumaLinkRe = regexp.MustCompile(`https?://lu\.ma/([a-zA-Z0-9][a-zA-Z0-9-]{3,})`)

// lumaFromLinks is the lossy last resort: event slugs found anywhere on the
// page, titles derived from the slug.
func lumaFromLinks(html string) []model.Candidate {
	var cands []model.Candidate
	for _, m := range lumaLinkRe.FindAllStringSubmatch(html, -1) {
		slug := m[1]
		// Platform navigation pages share the slug namespace.
		switch slug {
		case "discover", "signin", "create", "pricing":
			continue
		}
		cands = append(cands, model.Candidate{
			Source:   model.SourceLuma,
			SourceID: slug,
			Title:    titleFromSlug(slug),
			URL:      "https://lu.ma/" + slug,
		})
	}
	return cands
}
