package scrape

import (
	"encoding/json"
	"regexp"
	"strings"
)

// EventLD holds the fields of a schema.org Event block that matter for
// scheduling and location.
type EventLD struct {
	Type      string          `json:"@type"`
	Name      string          `json:"name"`
	StartDate string          `json:"startDate"`
	EndDate   string          `json:"endDate"`
	URL       string          `json:"url"`
	Location  json.RawMessage `json:"location"`
}

// LocationName resolves the location field, which publishers emit as a
// string, an object, or an array of objects.
func (e EventLD) LocationName() string {
	if len(e.Location) == 0 {
		return ""
	}

	var s string
	if json.Unmarshal(e.Location, &s) == nil {
		return strings.TrimSpace(s)
	}

	type place struct {
		Type    string `json:"@type"`
		Name    string `json:"name"`
		Address json.RawMessage
	}
	var p place
	if json.Unmarshal(e.Location, &p) == nil && p.Name != "" {
		return strings.TrimSpace(p.Name)
	}

	var ps []place
	if json.Unmarshal(e.Location, &ps) == nil {
		for _, pl := range ps {
			if pl.Name != "" {
				return strings.TrimSpace(pl.Name)
			}
		}
	}
	return ""
}

var ldScriptRe = regexp.MustCompile(`(?is)<script[^>]+type=["']application/ld\+json["'][^>]*>(.*?)</script>`)

// ExtractEventJSONLD finds the first schema.org Event in a page's ld+json
// script blocks. Handles top-level objects, arrays, and @graph containers.
func ExtractEventJSONLD(html string) (EventLD, bool) {
	for _, m := range ldScriptRe.FindAllStringSubmatch(html, -1) {
		raw := strings.TrimSpace(m[1])
		if ev, ok := eventFromRaw([]byte(raw)); ok {
			return ev, true
		}
	}
	return EventLD{}, false
}

// ExtractAllEventJSONLD returns every Event block on a page, in document
// order. Calendar pages list many events in one document.
func ExtractAllEventJSONLD(html string) []EventLD {
	var out []EventLD
	for _, m := range ldScriptRe.FindAllStringSubmatch(html, -1) {
		raw := strings.TrimSpace(m[1])
		out = append(out, eventsFromRaw([]byte(raw))...)
	}
	return out
}

func eventFromRaw(raw []byte) (EventLD, bool) {
	evs := eventsFromRaw(raw)
	if len(evs) > 0 {
		return evs[0], true
	}
	return EventLD{}, false
}

func eventsFromRaw(raw []byte) []EventLD {
	var single EventLD
	if json.Unmarshal(raw, &single) == nil && isEventType(single.Type) {
		return []EventLD{single}
	}

	var list []EventLD
	if json.Unmarshal(raw, &list) == nil {
		var out []EventLD
		for _, ev := range list {
			if isEventType(ev.Type) {
				out = append(out, ev)
			}
		}
		if len(out) > 0 {
			return out
		}
	}

	var graph struct {
		Graph []EventLD `json:"@graph"`
	}
	if json.Unmarshal(raw, &graph) == nil {
		var out []EventLD
		for _, ev := range graph.Graph {
			if isEventType(ev.Type) {
				out = append(out, ev)
			}
		}
		return out
	}
	return nil
}

func isEventType(t string) bool {
	return t == "Event" || strings.HasSuffix(t, "Event")
}
