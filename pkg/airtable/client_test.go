package airtable

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListRecords(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "/base1/tbl1", r.URL.Path)
		assert.Equal(t, "view1", r.URL.Query().Get("view"))

		if r.URL.Query().Get("offset") == "" {
			fmt.Fprint(w, `{"records":[{"id":"rec1","fields":{"Title":"AI Safety Meetup"}}],"offset":"next1"}`)
			return
		}
		fmt.Fprint(w, `{"records":[{"id":"rec2","fields":{"Title":"Alignment Workshop"}}]}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	records, err := c.ListRecords(context.Background(), "base1", "tbl1", "view1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "rec1", records[0].ID)
	assert.Equal(t, "AI Safety Meetup", records[0].Fields["Title"])
	assert.Equal(t, "rec2", records[1].ID)
	assert.Equal(t, 2, calls)
}

func TestListRecordsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"type":"AUTHENTICATION_REQUIRED"}}`)
	}))
	defer srv.Close()

	c := NewClient("bad-key", WithBaseURL(srv.URL))
	_, err := c.ListRecords(context.Background(), "base1", "tbl1", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestListRecordsMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"records": [`)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.ListRecords(context.Background(), "base1", "tbl1", "")
	assert.Error(t, err)
}
