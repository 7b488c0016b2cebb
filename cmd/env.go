package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/safetymap/events-cli/internal/connector"
	"github.com/safetymap/events-cli/internal/evaluator"
	"github.com/safetymap/events-cli/internal/gateway"
	"github.com/safetymap/events-cli/internal/pipeline"
	"github.com/safetymap/events-cli/internal/prefilter"
	"github.com/safetymap/events-cli/internal/promote"
	"github.com/safetymap/events-cli/internal/scrape"
	"github.com/safetymap/events-cli/internal/store"
	anthropicpkg "github.com/safetymap/events-cli/pkg/anthropic"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "events.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initFilter() (*prefilter.Filter, error) {
	if cfg.Prefilter.PhrasesFile != "" {
		return prefilter.Load(cfg.Prefilter.PhrasesFile)
	}
	return prefilter.New(), nil
}

func initConnectors() []connector.SourceConnector {
	conns := []connector.SourceConnector{
		connector.NewForumConnector(cfg.Forum),
		connector.NewLumaConnector(cfg.Luma),
		connector.NewCalendarConnector(cfg.Calendar),
	}
	if at := connector.NewAirtableConnector(cfg.Airtable); at != nil {
		conns = append(conns, at)
	}
	return conns
}

func initEvaluator(st store.Store) (*evaluator.Evaluator, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic API key is required (EVENTS_ANTHROPIC_KEY)")
	}

	llm := anthropicpkg.NewClient(cfg.Anthropic.Key)
	scraper := scrape.NewPageScraper(
		time.Duration(cfg.Scrape.TimeoutSecs)*time.Second,
		cfg.Scrape.MaxTextChars,
	)
	return evaluator.New(st, llm, scraper, promote.NewWriter(st), evaluator.Config{
		Model:            cfg.Anthropic.Model,
		MaxTokens:        cfg.Anthropic.MaxTokens,
		WindowSize:       cfg.Pipeline.DedupWindowSize,
		PromoteThreshold: cfg.Pipeline.PromoteThreshold,
		RejectThreshold:  cfg.Pipeline.RejectThreshold,
	}), nil
}

// initPipeline wires the full two-phase run. Callers own closing the
// returned store.
func initPipeline(ctx context.Context) (*pipeline.Pipeline, store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, nil, eris.Wrap(err, "migrate store")
	}

	filter, err := initFilter()
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	ev, err := initEvaluator(st)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	p := pipeline.New(
		initConnectors(),
		filter,
		gateway.New(st),
		ev,
		st,
		cfg.Pipeline.LLMDelayMillis,
		cfg.Pipeline.BatchLimit,
	)

	zap.L().Debug("pipeline initialized",
		zap.String("store", cfg.Store.Driver),
		zap.String("model", cfg.Anthropic.Model))
	return p, st, nil
}
