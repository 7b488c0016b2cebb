package model

import (
	"time"
)

// CategoryEvents is the resource category the pipeline writes into. Other
// categories in the public listing belong to other parts of the system.
const CategoryEvents = "events"

// ApprovalApproved is the default approval status for an auto-promoted event.
const ApprovalApproved = "approved"

// Resource is a promoted, publicly listed event. Created only by the
// promotion writer, from exactly one Candidate. Source/SourceID carry a
// back-reference used for dedup lookups, not a live link.
type Resource struct {
	ID            string    `json:"id" db:"id"`
	Category      string    `json:"category" db:"category"`
	Title         string    `json:"title" db:"title"`
	Description   string    `json:"description,omitempty" db:"description"`
	URL           string    `json:"url,omitempty" db:"url"`
	NormalizedURL string    `json:"normalized_url,omitempty" db:"normalized_url"`
	Location      string    `json:"location,omitempty" db:"location"`
	EventDate     string    `json:"event_date,omitempty" db:"event_date"`
	EventEndDate  string    `json:"event_end_date,omitempty" db:"event_end_date"`
	EventTime     string    `json:"event_time,omitempty" db:"event_time"`
	EventType     EventType `json:"event_type,omitempty" db:"event_type"`
	Organization  string    `json:"organization,omitempty" db:"organization"`
	IsOnline      bool      `json:"is_online" db:"is_online"`

	// Ranking inputs consumed by the public listing's scoring function.
	EVScore       float64 `json:"ev_score" db:"ev_score"`
	Friction      float64 `json:"friction" db:"friction"`
	ActivityScore float64 `json:"activity_score" db:"activity_score"`

	Enabled        bool   `json:"enabled" db:"enabled"`
	ApprovalStatus string `json:"approval_status" db:"approval_status"`

	Source    Source    `json:"source,omitempty" db:"source"`
	SourceID  string    `json:"source_id,omitempty" db:"source_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// WindowEntry is the projection of an existing event shown to the LLM for
// duplicate comparison.
type WindowEntry struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	EventDate    string `json:"date,omitempty"`
	Location     string `json:"location,omitempty"`
	Organization string `json:"organization,omitempty"`
	URL          string `json:"url,omitempty"`
}
