package connector

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/safetymap/events-cli/internal/config"
	"github.com/safetymap/events-cli/internal/model"
	"github.com/safetymap/events-cli/pkg/airtable"
)

// AirtableConnector reads a curated shared view. The REST API is typed, so
// no fallback ladder is needed; missing credentials disable the connector
// rather than failing startup.
type AirtableConnector struct {
	cfg    config.AirtableConfig
	client airtable.Client
}

// NewAirtableConnector returns nil when no API key is configured.
func NewAirtableConnector(cfg config.AirtableConfig) *AirtableConnector {
	if cfg.Key == "" || cfg.BaseID == "" || cfg.TableID == "" {
		zap.L().Info("airtable connector disabled, missing credentials")
		return nil
	}
	return &AirtableConnector{
		cfg:    cfg,
		client: airtable.NewClient(cfg.Key),
	}
}

// NewAirtableConnectorWithClient supports injecting a client in tests.
func NewAirtableConnectorWithClient(cfg config.AirtableConfig, client airtable.Client) *AirtableConnector {
	return &AirtableConnector{cfg: cfg, client: client}
}

func (a *AirtableConnector) Name() string { return string(model.SourceAirtable) }

func (a *AirtableConnector) Gather(ctx context.Context) ([]model.Candidate, error) {
	records, err := a.client.ListRecords(ctx, a.cfg.BaseID, a.cfg.TableID, a.cfg.ViewID)
	if err != nil {
		return nil, eris.Wrap(err, "connector: airtable gather")
	}

	var cands []model.Candidate
	for _, rec := range records {
		c := a.toCandidate(rec)
		if c.Title == "" {
			continue
		}
		cands = append(cands, c)
	}

	zap.L().Info("airtable gather complete", zap.Int("count", len(cands)))
	return dedupeByID(cands), nil
}

func (a *AirtableConnector) toCandidate(rec airtable.Record) model.Candidate {
	c := model.Candidate{
		Source:      model.SourceAirtable,
		SourceID:    rec.ID,
		Title:       fieldString(rec, "Name", "Title", "Event Name"),
		Description: fieldString(rec, "Description", "Notes"),
		URL:         fieldString(rec, "URL", "Link", "Website"),
		SourceOrg:   fieldString(rec, "Organization", "Organizer", "Org"),
	}

	explicit := fieldString(rec, "Location", "City")
	c.Location = ResolveLocation(explicit, fieldBool(rec, "Online", "Is Online"), false)

	if d := fieldString(rec, "Date", "Start Date", "Event Date"); d != "" {
		date, clock := splitTimestamp(d)
		c.EventDate = strPtr(date)
		if clock != "" {
			c.EventTime = strPtr(clock)
		}
	}
	if d := fieldString(rec, "End Date", "Event End Date"); d != "" {
		date, _ := splitTimestamp(d)
		c.EventEndDate = strPtr(date)
	}
	return c
}

// fieldString returns the first present string-typed column among the
// given names. Base owners rename columns freely.
func fieldString(rec airtable.Record, names ...string) string {
	for _, name := range names {
		if v, ok := rec.Fields[name]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func fieldBool(rec airtable.Record, names ...string) bool {
	for _, name := range names {
		if v, ok := rec.Fields[name]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
	}
	return false
}
