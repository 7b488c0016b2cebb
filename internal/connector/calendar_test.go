package connector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safetymap/events-cli/internal/config"
	"github.com/safetymap/events-cli/internal/model"
)

func TestCalendarJSONLD(t *testing.T) {
	page := `<html><head>
<script type="application/ld+json">
[{"@type":"Event","name":"AI Governance Forum","url":"https://cal.example/events/ai-governance-forum",
  "startDate":"2026-11-03T10:00:00Z","endDate":"2026-11-04","location":{"@type":"Place","name":"Brussels, Belgium"}},
 {"@type":"Event","name":"Interp Reading Circle","url":"https://cal.example/events/interp-circle","location":"Online"}]
</script>
</head><body></body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	c := NewCalendarConnector(config.CalendarConfig{URL: srv.URL})
	cands, err := c.Gather(context.Background())
	require.NoError(t, err)
	require.Len(t, cands, 2)

	first := cands[0]
	assert.Equal(t, model.SourceCalendar, first.Source)
	assert.Equal(t, "events/ai-governance-forum", first.SourceID)
	assert.Equal(t, "AI Governance Forum", first.Title)
	assert.Equal(t, "Brussels, Belgium", first.Location)
	require.NotNil(t, first.EventDate)
	assert.Equal(t, "2026-11-03", *first.EventDate)
	require.NotNil(t, first.EventTime)
	assert.Equal(t, "10:00", *first.EventTime)
	require.NotNil(t, first.EventEndDate)
	assert.Equal(t, "2026-11-04", *first.EventEndDate)

	assert.Equal(t, "Online", cands[1].Location)
}

func TestCalendarLinkFallback(t *testing.T) {
	page := `<html><body>
<a href="https://cal.example/events/safety-unconference">link</a>
<a href="https://cal.example/about">about</a>
</body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	c := NewCalendarConnector(config.CalendarConfig{URL: srv.URL})
	cands, err := c.Gather(context.Background())
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "safety-unconference", cands[0].SourceID)
	assert.Equal(t, "Safety Unconference", cands[0].Title)
}

func TestCalendarDisabledWithoutURL(t *testing.T) {
	c := NewCalendarConnector(config.CalendarConfig{})
	cands, err := c.Gather(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestCalendarSourceID(t *testing.T) {
	assert.Equal(t, "events/x", calendarSourceID("https://a.b/events/x/", ""))
	assert.Equal(t, "ai-safety-camp-2026", calendarSourceID("", "AI Safety Camp 2026!"))
}
