package connector

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/safetymap/events-cli/internal/model"
)

// maxDescriptionChars caps candidate descriptions before storage; the
// evaluator re-scrapes full page context anyway.
const maxDescriptionChars = 500

// locationTBD is the terminal fallback when an upstream gave no location
// signal at all.
const locationTBD = "Location TBD"

// Normalizer turns raw per-source candidates into canonical records. Pure
// and total: it never errors, and missing optional fields stay nil rather
// than becoming empty strings.
type Normalizer struct{}

// Apply normalizes a batch in place and returns it.
func (n Normalizer) Apply(cands []model.Candidate) []model.Candidate {
	for i := range cands {
		cands[i] = n.Normalize(cands[i])
	}
	return cands
}

// Normalize canonicalizes one candidate: NFC text, trimmed fields, capped
// description, resolved location, and the normalized URL dedup key.
func (n Normalizer) Normalize(c model.Candidate) model.Candidate {
	c.Title = cleanText(c.Title)
	c.Description = truncate(cleanText(c.Description), maxDescriptionChars)
	c.SourceOrg = cleanText(c.SourceOrg)
	c.Location = cleanText(c.Location)
	c.URL = strings.TrimSpace(c.URL)
	c.NormalizedURL = model.NormalizeURL(c.URL)

	if c.Location == "" {
		c.Location = locationTBD
	}

	if c.EventDate != nil {
		d := strings.TrimSpace(*c.EventDate)
		c.EventDate = &d
	}
	if c.EventEndDate != nil {
		d := strings.TrimSpace(*c.EventEndDate)
		c.EventEndDate = &d
	}
	if c.EventTime != nil {
		t := strings.TrimSpace(*c.EventTime)
		c.EventTime = &t
	}

	return c
}

// ResolveLocation applies the location precedence used by every connector:
// an explicit location wins, then an online flag, then a global flag.
// Returns "" when nothing applies so the Normalizer can fall back to the
// TBD placeholder.
func ResolveLocation(explicit string, online, global bool) string {
	explicit = strings.TrimSpace(explicit)
	switch {
	case explicit != "":
		return explicit
	case online:
		return "Online"
	case global:
		return "Global"
	default:
		return ""
	}
}

func cleanText(s string) string {
	s = norm.NFC.String(s)
	return strings.TrimSpace(s)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
