package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/safetymap/events-cli/internal/config"
	"github.com/safetymap/events-cli/internal/model"
)

// forumEventsQuery asks a LessWrong-style forum for upcoming community
// events. The posts view is stable; field names drift rarely.
const forumEventsQuery = `{
  posts(input: {terms: {view: "events", limit: 50}}) {
    results {
      _id
      title
      pageUrl
      startTime
      endTime
      location
      onlineEvent
      globalEvent
      group { name }
      contents { plaintextDescription }
    }
  }
}`

// ForumConnector gathers events from a forum's GraphQL API, degrading to
// the rendered events page when the API misbehaves.
type ForumConnector struct {
	cfg    config.ForumConfig
	client *http.Client
}

func NewForumConnector(cfg config.ForumConfig) *ForumConnector {
	return &ForumConnector{
		cfg:    cfg,
		client: &http.Client{Timeout: 8 * time.Second},
	}
}

func (f *ForumConnector) Name() string { return string(model.SourceForum) }

func (f *ForumConnector) Gather(ctx context.Context) ([]model.Candidate, error) {
	strategies := []struct {
		name string
		fn   func(context.Context) ([]model.Candidate, error)
	}{
		{"graphql", f.gatherGraphQL},
		{"embedded_json", f.gatherEmbeddedJSON},
		{"regex", f.gatherRegex},
	}

	var lastErr error
	for _, s := range strategies {
		cands, err := s.fn(ctx)
		if err != nil {
			zap.L().Warn("forum strategy failed",
				zap.String("strategy", s.name),
				zap.Error(err))
			lastErr = err
			continue
		}
		if len(cands) == 0 {
			zap.L().Debug("forum strategy returned nothing", zap.String("strategy", s.name))
			continue
		}
		zap.L().Info("forum gather complete",
			zap.String("strategy", s.name),
			zap.Int("count", len(cands)))
		return dedupeByID(cands), nil
	}

	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "connector: forum gather")
	}
	return nil, nil
}

type forumPost struct {
	ID          string  `json:"_id"`
	Title       string  `json:"title"`
	PageURL     string  `json:"pageUrl"`
	StartTime   *string `json:"startTime"`
	EndTime     *string `json:"endTime"`
	Location    string  `json:"location"`
	OnlineEvent bool    `json:"onlineEvent"`
	GlobalEvent bool    `json:"globalEvent"`
	Group       *struct {
		Name string `json:"name"`
	} `json:"group"`
	Contents *struct {
		PlaintextDescription string `json:"plaintextDescription"`
	} `json:"contents"`
}

func (f *ForumConnector) gatherGraphQL(ctx context.Context) ([]model.Candidate, error) {
	body, err := json.Marshal(map[string]string{"query": forumEventsQuery})
	if err != nil {
		return nil, eris.Wrap(err, "connector: marshal forum query")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.GraphQLURL, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "connector: create forum request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "connector: forum graphql")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("connector: forum graphql status %d", resp.StatusCode)
	}

	var parsed struct {
		Data struct {
			Posts struct {
				Results []forumPost `json:"results"`
			} `json:"posts"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&parsed); err != nil {
		return nil, eris.Wrap(err, "connector: parse forum response")
	}
	if len(parsed.Errors) > 0 {
		return nil, eris.Errorf("connector: forum graphql error: %s", parsed.Errors[0].Message)
	}

	var cands []model.Candidate
	for _, p := range parsed.Data.Posts.Results {
		if p.ID == "" || p.Title == "" {
			continue
		}
		cands = append(cands, f.toCandidate(p))
	}
	return cands, nil
}

func (f *ForumConnector) toCandidate(p forumPost) model.Candidate {
	c := model.Candidate{
		Source:   model.SourceForum,
		SourceID: p.ID,
		Title:    p.Title,
		URL:      p.PageURL,
		Location: ResolveLocation(p.Location, p.OnlineEvent, p.GlobalEvent),
	}
	if p.Group != nil {
		c.SourceOrg = p.Group.Name
	}
	if p.Contents != nil {
		c.Description = p.Contents.PlaintextDescription
	}
	if p.StartTime != nil {
		date, clock := splitTimestamp(*p.StartTime)
		c.EventDate = strPtr(date)
		if clock != "" {
			c.EventTime = strPtr(clock)
		}
	}
	if p.EndTime != nil {
		date, _ := splitTimestamp(*p.EndTime)
		c.EventEndDate = strPtr(date)
	}
	return c
}

// splitTimestamp separates an ISO timestamp into date and clock parts.
// Forum APIs emit full RFC 3339; we store the pieces separately.
func splitTimestamp(ts string) (date, clock string) {
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t.Format("2006-01-02"), t.Format("15:04")
	}
	if len(ts) >= 10 {
		return ts[:10], ""
	}
	return ts, ""
}

// gatherEmbeddedJSON fetches the rendered events page and pulls posts out
// of the server-rendered state blob.
func (f *ForumConnector) gatherEmbeddedJSON(ctx context.Context) ([]model.Candidate, error) {
	html, err := f.fetchPage(ctx)
	if err != nil {
		return nil, err
	}

	blob := extractStateBlob(html)
	if blob == "" {
		return nil, eris.New("connector: no embedded state blob on forum page")
	}

	var state map[string]json.RawMessage
	if err := json.Unmarshal([]byte(blob), &state); err != nil {
		return nil, eris.Wrap(err, "connector: parse forum state blob")
	}

	var cands []model.Candidate
	for key, raw := range state {
		if !strings.HasPrefix(key, "Post:") {
			continue
		}
		var p forumPost
		if err := json.Unmarshal(raw, &p); err != nil {
			continue
		}
		if p.ID == "" || p.Title == "" {
			continue
		}
		cands = append(cands, f.toCandidate(p))
	}
	return cands, nil
}

var stateBlobRe = regexp.MustCompile(`(?s)window\.__APOLLO_STATE__\s*=\s*(\{.*?\});?\s*</script>`)

func extractStateBlob(html string) string {
	if m := stateBlobRe.FindStringSubmatch(html); len(m) > 1 {
		return m[1]
	}
	return ""
}

var forumEventLinkRe = regexp.MustCompile(`href="(/events/([a-zA-Z0-9]+)/([a-z0-9-]+))"`)

// gatherRegex is the last-resort layer: anchor scan for event permalinks,
// titles derived from slugs.
func (f *ForumConnector) gatherRegex(ctx context.Context) ([]model.Candidate, error) {
	html, err := f.fetchPage(ctx)
	if err != nil {
		return nil, err
	}

	base := baseURL(f.cfg.EventsURL)

	var cands []model.Candidate
	for _, m := range forumEventLinkRe.FindAllStringSubmatch(html, -1) {
		path, id, slug := m[1], m[2], m[3]
		cands = append(cands, model.Candidate{
			Source:   model.SourceForum,
			SourceID: id,
			Title:    titleFromSlug(slug),
			URL:      base + path,
		})
	}
	return cands, nil
}

func (f *ForumConnector) fetchPage(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.EventsURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "connector: create forum page request")
	}
	req.Header.Set("User-Agent", "events-cli/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "connector: fetch forum page")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("connector: forum page status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", eris.Wrap(err, "connector: read forum page")
	}
	return string(body), nil
}

func baseURL(raw string) string {
	if i := strings.Index(raw, "://"); i >= 0 {
		if j := strings.Index(raw[i+3:], "/"); j >= 0 {
			return raw[:i+3+j]
		}
	}
	return raw
}

func titleFromSlug(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
