// Package model defines the core domain types shared across the intake pipeline.
package model

import (
	"time"
)

// Source identifies the upstream a candidate was gathered from.
type Source string

const (
	SourceForum      Source = "forum"
	SourceLuma       Source = "luma"
	SourceCalendar   Source = "calendar"
	SourceAirtable   Source = "airtable"
	SourceSubmission Source = "submission"
	SourceManual     Source = "manual"
)

// AllSources returns every known source tag.
func AllSources() []Source {
	return []Source{
		SourceForum, SourceLuma, SourceCalendar,
		SourceAirtable, SourceSubmission, SourceManual,
	}
}

// Candidate is a staged, unconfirmed event observation awaiting evaluation.
// The natural key is (Source, SourceID); NormalizedURL is the secondary
// dedup key used across sources.
type Candidate struct {
	ID            string `json:"id" db:"id"`
	Source        Source `json:"source" db:"source"`
	SourceID      string `json:"source_id" db:"source_id"`
	Title         string `json:"title" db:"title"`
	Description   string `json:"description,omitempty" db:"description"`
	URL           string `json:"url,omitempty" db:"url"`
	NormalizedURL string `json:"normalized_url,omitempty" db:"normalized_url"`
	SourceOrg     string `json:"source_org,omitempty" db:"source_org"`
	Location      string `json:"location,omitempty" db:"location"`

	// Claimed scheduling fields from the upstream. Nil means the upstream
	// said nothing; an empty string means it was explicitly blank.
	EventDate    *string `json:"event_date,omitempty" db:"event_date"`
	EventEndDate *string `json:"event_end_date,omitempty" db:"event_end_date"`
	EventTime    *string `json:"event_time,omitempty" db:"event_time"`

	SubmittedBy string `json:"submitted_by,omitempty" db:"submitted_by"`

	// ScrapedText is the cached page context. Written once by the first
	// evaluation pass, never re-fetched.
	ScrapedText *string `json:"scraped_text,omitempty" db:"scraped_text"`

	Evaluation *Evaluation `json:"evaluation,omitempty" db:"evaluation"`

	Status             Status     `json:"status" db:"status"`
	PromotedResourceID *string    `json:"promoted_resource_id,omitempty" db:"promoted_resource_id"`
	EvaluatedAt        *time.Time `json:"evaluated_at,omitempty" db:"evaluated_at"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}

// Key returns the (source, source_id) natural key in its canonical
// "source:source_id" string form used by the gateway's dedup sets.
func (c Candidate) Key() string {
	return string(c.Source) + ":" + c.SourceID
}
