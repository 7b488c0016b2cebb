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

const lumaAPIBody = `{"events":[
{"event":{"api_id":"evt-1","name":"AI Safety Happy Hour","url":"ai-safety-happy-hour",
 "start_at":"2026-09-20T19:00:00Z",
 "geo_address_info":{"city":"San Francisco","country":"USA","type":"physical"},
 "calendar":{"name":"SF Alignment"}}},
{"event":{"api_id":"evt-2","name":"Online Alignment Course Kickoff","url":"https://lu.ma/alignment-course",
 "geo_address_info":{"type":"online"}}}
]}`

func TestLumaSearchAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/get-results", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("query"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(lumaAPIBody))
	}))
	defer srv.Close()

	l := NewLumaConnector(config.LumaConfig{
		APIBaseURL: srv.URL,
		SearchURL:  srv.URL + "/search",
		Keywords:   []string{"ai safety"},
	})
	cands, err := l.Gather(context.Background())
	require.NoError(t, err)
	require.Len(t, cands, 2)

	by := map[string]model.Candidate{}
	for _, c := range cands {
		by[c.SourceID] = c
	}

	c1 := by["evt-1"]
	assert.Equal(t, model.SourceLuma, c1.Source)
	assert.Equal(t, "AI Safety Happy Hour", c1.Title)
	assert.Equal(t, "https://lu.ma/ai-safety-happy-hour", c1.URL)
	assert.Equal(t, "San Francisco, USA", c1.Location)
	assert.Equal(t, "SF Alignment", c1.SourceOrg)
	require.NotNil(t, c1.EventDate)
	assert.Equal(t, "2026-09-20", *c1.EventDate)

	c2 := by["evt-2"]
	assert.Equal(t, "Online", c2.Location)
	assert.Equal(t, "https://lu.ma/alignment-course", c2.URL)
}

func TestLumaNextDataFallback(t *testing.T) {
	page := `<html><body>
<script id="__NEXT_DATA__" type="application/json">
{"props":{"pageProps":{"initialData":{"events":[{"event":{"api_id":"evt-9","name":"Governance Salon","url":"gov-salon"}}]}}}}
</script></body></html>`

	mux := http.NewServeMux()
	mux.HandleFunc("/search/get-results", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	l := NewLumaConnector(config.LumaConfig{
		APIBaseURL: srv.URL,
		SearchURL:  srv.URL + "/search",
		Keywords:   []string{"governance"},
	})
	cands, err := l.Gather(context.Background())
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "evt-9", cands[0].SourceID)
	assert.Equal(t, "Governance Salon", cands[0].Title)
}

func TestLumaLinkFallback(t *testing.T) {
	page := `<html><body>
<a href="https://lu.ma/ai-safety-retreat">retreat</a>
<a href="https://lu.ma/discover">nav</a>
</body></html>`

	mux := http.NewServeMux()
	mux.HandleFunc("/search/get-results", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	l := NewLumaConnector(config.LumaConfig{
		APIBaseURL: srv.URL,
		SearchURL:  srv.URL + "/search",
		Keywords:   []string{"ai safety"},
	})
	cands, err := l.Gather(context.Background())
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "ai-safety-retreat", cands[0].SourceID)
	assert.Equal(t, "Ai Safety Retreat", cands[0].Title)
}

func TestLumaPartialKeywordFailure(t *testing.T) {
	// One keyword errors end to end, the other succeeds; the run keeps
	// the partial result.
	mux := http.NewServeMux()
	mux.HandleFunc("/search/get-results", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("query") == "broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"events":[{"event":{"api_id":"evt-3","name":"Hackathon"}}]}`))
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	l := NewLumaConnector(config.LumaConfig{
		APIBaseURL: srv.URL,
		SearchURL:  srv.URL + "/search",
		Keywords:   []string{"broken", "hackathon"},
	})
	cands, err := l.Gather(context.Background())
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "evt-3", cands[0].SourceID)
}
