package model

// EventType classifies a promoted event.
type EventType string

const (
	EventTypeConference  EventType = "conference"
	EventTypeWorkshop    EventType = "workshop"
	EventTypeHackathon   EventType = "hackathon"
	EventTypeMeetup      EventType = "meetup"
	EventTypeCourse      EventType = "course"
	EventTypeFellowship  EventType = "fellowship"
	EventTypeRetreat     EventType = "retreat"
	EventTypeCompetition EventType = "competition"
	EventTypeTalk        EventType = "talk"
	EventTypeSocial      EventType = "social"
	EventTypeOther       EventType = "other"
)

// AllEventTypes returns every known event type.
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeConference, EventTypeWorkshop, EventTypeHackathon,
		EventTypeMeetup, EventTypeCourse, EventTypeFellowship,
		EventTypeRetreat, EventTypeCompetition, EventTypeTalk,
		EventTypeSocial, EventTypeOther,
	}
}

// NormalizeEventType lowercases and validates an event type, falling back
// to "other" for anything outside the closed set.
func NormalizeEventType(raw string) EventType {
	et := EventType(raw)
	for _, t := range AllEventTypes() {
		if t == et {
			return et
		}
	}
	return EventTypeOther
}

// Evaluation is the LLM evaluation block persisted on a Candidate. All
// numeric scores are clamped to [0,1] at parse time; values here are
// trusted to already be in range.
type Evaluation struct {
	IsRealEvent       bool    `json:"is_real_event"`
	IsRelevant        bool    `json:"is_relevant"`
	RelevanceScore    float64 `json:"relevance_score"`
	ImpactScore       float64 `json:"impact_score"`
	SuggestedEV       float64 `json:"suggested_ev"`
	SuggestedFriction float64 `json:"suggested_friction"`

	EventType    EventType `json:"event_type"`
	Organization string    `json:"organization,omitempty"`
	IsOnline     bool      `json:"is_online"`

	// DuplicateOf references an existing Resource or Candidate id when the
	// model identified this candidate as a duplicate.
	DuplicateOf *string `json:"duplicate_of,omitempty"`

	Reasoning string `json:"reasoning,omitempty"`

	// Cleaned/standardized fields. Empty means the model supplied nothing
	// and the candidate's own claimed value stands.
	CleanTitle       string `json:"clean_title,omitempty"`
	CleanDescription string `json:"clean_description,omitempty"`
	EventDate        string `json:"event_date,omitempty"`
	EventEndDate     string `json:"event_end_date,omitempty"`
	EventTime        string `json:"event_time,omitempty"`
	Location         string `json:"location,omitempty"`
}

// Clamp01 clamps a score to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ClampScores clamps every numeric score in place.
func (e *Evaluation) ClampScores() {
	e.RelevanceScore = Clamp01(e.RelevanceScore)
	e.ImpactScore = Clamp01(e.ImpactScore)
	e.SuggestedEV = Clamp01(e.SuggestedEV)
	e.SuggestedFriction = Clamp01(e.SuggestedFriction)
}
