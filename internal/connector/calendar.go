package connector

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/safetymap/events-cli/internal/config"
	"github.com/safetymap/events-cli/internal/model"
	"github.com/safetymap/events-cli/internal/scrape"
)

// CalendarConnector reads a community calendar page. Structured JSON-LD
// Event blocks are the primary layer; a link scan is the fallback.
type CalendarConnector struct {
	cfg    config.CalendarConfig
	client *http.Client
}

func NewCalendarConnector(cfg config.CalendarConfig) *CalendarConnector {
	return &CalendarConnector{
		cfg:    cfg,
		client: &http.Client{Timeout: 8 * time.Second},
	}
}

func (c *CalendarConnector) Name() string { return string(model.SourceCalendar) }

func (c *CalendarConnector) Gather(ctx context.Context) ([]model.Candidate, error) {
	if c.cfg.URL == "" {
		zap.L().Info("calendar connector disabled, no url configured")
		return nil, nil
	}

	html, err := c.fetchPage(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "connector: calendar gather")
	}

	cands := c.fromJSONLD(html)
	if len(cands) == 0 {
		cands = c.fromLinks(html)
		if len(cands) > 0 {
			zap.L().Info("calendar fell back to link scan", zap.Int("count", len(cands)))
		}
	}

	zap.L().Info("calendar gather complete", zap.Int("count", len(cands)))
	return dedupeByID(cands), nil
}

func (c *CalendarConnector) fromJSONLD(html string) []model.Candidate {
	var cands []model.Candidate
	for _, ev := range scrape.ExtractAllEventJSONLD(html) {
		if ev.Name == "" {
			continue
		}
		cand := model.Candidate{
			Source:   model.SourceCalendar,
			SourceID: calendarSourceID(ev.URL, ev.Name),
			Title:    ev.Name,
			URL:      ev.URL,
			Location: ev.LocationName(),
		}
		if ev.StartDate != "" {
			date, clock := splitTimestamp(ev.StartDate)
			cand.EventDate = strPtr(date)
			if clock != "" {
				cand.EventTime = strPtr(clock)
			}
		}
		if ev.EndDate != "" {
			date, _ := splitTimestamp(ev.EndDate)
			cand.EventEndDate = strPtr(date)
		}
		cands = append(cands, cand)
	}
	return cands
}

var calendarLinkRe = regexp.MustCompile(`href="(https?://[^"]+/events?/([a-z0-9-]+))/?"`)

func (c *CalendarConnector) fromLinks(html string) []model.Candidate {
	var cands []model.Candidate
	for _, m := range calendarLinkRe.FindAllStringSubmatch(html, -1) {
		link, slug := m[1], m[2]
		cands = append(cands, model.Candidate{
			Source:   model.SourceCalendar,
			SourceID: slug,
			Title:    titleFromSlug(slug),
			URL:      link,
		})
	}
	return cands
}

// calendarSourceID derives a stable id for a calendar entry. The event's
// own URL path is preferred; entries without a URL fall back to a
// slugified name.
func calendarSourceID(rawURL, name string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" && u.Path != "/" {
		return strings.Trim(u.Path, "/")
	}
	slug := strings.ToLower(name)
	slug = nonSlugRe.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

var nonSlugRe = regexp.MustCompile(`[^a-z0-9]+`)

func (c *CalendarConnector) fetchPage(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return "", eris.Wrap(err, "connector: create calendar request")
	}
	req.Header.Set("User-Agent", browserPageUA)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "connector: fetch calendar")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("connector: calendar status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", eris.Wrap(err, "connector: read calendar page")
	}
	return string(body), nil
}
