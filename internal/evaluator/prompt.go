package evaluator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/safetymap/events-cli/internal/model"
	"github.com/safetymap/events-cli/internal/scrape"
)

// systemRubric is the fixed scoring instruction block. It is sent as a
// cached system block, so keep it stable across calls within a run.
const systemRubric = `You are vetting candidate listings for a public directory of AI safety events. For each candidate you receive its claimed metadata, scraped page text, and a list of events already in the directory.

Score the candidate and respond with a single JSON object, no prose, no markdown fences:

{
  "is_real_event": bool,        // a concrete event with a date or signup, not a blog post or org homepage
  "is_relevant": bool,          // meaningfully about AI safety, alignment, or AI governance
  "relevance_score": 0.0-1.0,   // how central AI safety is to the event
  "impact_score": 0.0-1.0,      // expected value for someone entering the field
  "suggested_ev": 0.0-1.0,      // overall expected-value ranking input
  "suggested_friction": 0.0-1.0,// cost to attend: 0 = free drop-in, 1 = competitive/expensive
  "event_type": "...",          // one of: conference, workshop, hackathon, meetup, course, fellowship, retreat, competition, talk, social, other
  "organization": "...",        // organizing body, empty string if unknown
  "is_online": bool,
  "duplicate_of": null,         // id from the existing-events list if this is the same event, else null
  "reasoning": "...",           // one or two sentences
  "clean_title": "...",         // cleaned-up title, no emoji or promo noise
  "clean_description": "...",   // 1-3 sentence neutral description
  "event_date": "YYYY-MM-DD",   // empty string if unknown
  "event_end_date": "YYYY-MM-DD",
  "event_time": "HH:MM",
  "location": "..."             // "City, Country", "Online", or "Global"
}

Rules:
- Check the existing-events list carefully. Same event under a different URL or slightly different title is a duplicate.
- Generic tech or startup events that merely mention AI are not relevant.
- Prefer the scraped page text over claimed metadata when they disagree, and standardize dates and locations.
- Scores must be in [0,1].`

// buildUserPrompt assembles the per-candidate message: claimed fields,
// scraped context with metadata hints, and the dedup window.
func buildUserPrompt(c *model.Candidate, scraped string, hints *scrape.Result, window []model.WindowEntry) string {
	var b strings.Builder

	b.WriteString("CANDIDATE\n")
	fmt.Fprintf(&b, "title: %s\n", c.Title)
	fmt.Fprintf(&b, "description: %s\n", c.Description)
	fmt.Fprintf(&b, "url: %s\n", c.URL)
	fmt.Fprintf(&b, "source: %s\n", c.Source)
	fmt.Fprintf(&b, "claimed_organization: %s\n", c.SourceOrg)
	fmt.Fprintf(&b, "claimed_location: %s\n", c.Location)
	fmt.Fprintf(&b, "claimed_date: %s\n", deref(c.EventDate))
	fmt.Fprintf(&b, "claimed_end_date: %s\n", deref(c.EventEndDate))
	fmt.Fprintf(&b, "claimed_time: %s\n", deref(c.EventTime))

	if hints != nil {
		b.WriteString("\nPAGE METADATA HINTS (supplementary, may disagree with claims)\n")
		if hints.Title != "" {
			fmt.Fprintf(&b, "page_title: %s\n", hints.Title)
		}
		if hints.Description != "" {
			fmt.Fprintf(&b, "page_description: %s\n", hints.Description)
		}
		if hints.EventDate != "" {
			fmt.Fprintf(&b, "structured_date: %s\n", hints.EventDate)
		}
		if hints.EventEndDate != "" {
			fmt.Fprintf(&b, "structured_end_date: %s\n", hints.EventEndDate)
		}
		if hints.Location != "" {
			fmt.Fprintf(&b, "structured_location: %s\n", hints.Location)
		}
	}

	b.WriteString("\nSCRAPED PAGE TEXT\n")
	if scraped == "" {
		b.WriteString("(page could not be fetched)\n")
	} else {
		b.WriteString(scraped)
		b.WriteString("\n")
	}

	b.WriteString("\nEXISTING EVENTS (check for duplicates)\n")
	if len(window) == 0 {
		b.WriteString("(none)\n")
	} else {
		enc, _ := json.Marshal(window)
		b.Write(enc)
		b.WriteString("\n")
	}

	return b.String()
}

// cleanJSON strips optional markdown code fences around a JSON payload.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
