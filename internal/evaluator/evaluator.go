// Package evaluator runs the LLM evaluation state machine over pending
// candidates: scrape for context, compare against existing events, score,
// then promote, reject, or queue for human review.
package evaluator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/safetymap/events-cli/internal/model"
	"github.com/safetymap/events-cli/internal/promote"
	"github.com/safetymap/events-cli/internal/scrape"
	"github.com/safetymap/events-cli/internal/store"
	"github.com/safetymap/events-cli/pkg/anthropic"
)

// Classification thresholds on relevance_score. Below the reject line the
// candidate is dropped outright; at or above the promote line it goes
// straight to the public listing; between them it waits for human review.
const (
	RejectThreshold  = 0.3
	PromoteThreshold = 0.6
)

// Outcome is the terminal state of one evaluation.
type Outcome string

const (
	OutcomePromoted Outcome = "promoted"
	OutcomeRejected Outcome = "rejected"
	OutcomeReview   Outcome = "review"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeError    Outcome = "error"
)

// Tally counts outcomes across a batch.
type Tally struct {
	Promoted int
	Rejected int
	Review   int
	Skipped  int
	Errors   int
}

func (t *Tally) count(o Outcome) {
	switch o {
	case OutcomePromoted:
		t.Promoted++
	case OutcomeRejected:
		t.Rejected++
	case OutcomeReview:
		t.Review++
	case OutcomeSkipped:
		t.Skipped++
	case OutcomeError:
		t.Errors++
	}
}

// Config holds evaluator tunables. Zero thresholds fall back to the
// package defaults.
type Config struct {
	Model            string
	MaxTokens        int64
	WindowSize       int
	PromoteThreshold float64
	RejectThreshold  float64
}

// Evaluator drives candidates through scrape, LLM scoring, and
// classification. One LLM call per candidate, no retries within a run.
type Evaluator struct {
	store   store.Store
	llm     anthropic.Client
	scraper scrape.Scraper
	writer  *promote.Writer
	cfg     Config
}

func New(s store.Store, llm anthropic.Client, sc scrape.Scraper, w *promote.Writer, cfg Config) *Evaluator {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 300
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.PromoteThreshold <= 0 {
		cfg.PromoteThreshold = PromoteThreshold
	}
	if cfg.RejectThreshold <= 0 {
		cfg.RejectThreshold = RejectThreshold
	}
	return &Evaluator{store: s, llm: llm, scraper: sc, writer: w, cfg: cfg}
}

// EvaluateBatch processes candidates sequentially, pacing LLM calls with
// the optional limiter. The dedup window is loaded once and grown in
// memory as promotions land, so later candidates in the batch compare
// against earlier winners.
func (e *Evaluator) EvaluateBatch(ctx context.Context, cands []model.Candidate, force bool, limiter *rate.Limiter) Tally {
	var tally Tally

	window, err := e.loadWindow(ctx)
	if err != nil {
		zap.L().Warn("dedup window load failed, evaluating without it", zap.Error(err))
	}

	for i := range cands {
		c := &cands[i]

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				zap.L().Warn("evaluation interrupted", zap.Error(err))
				break
			}
		}

		outcome, resource, err := e.EvaluateOne(ctx, c, window, force)
		if err != nil {
			zap.L().Error("evaluation failed",
				zap.String("candidate_id", c.ID),
				zap.String("title", c.Title),
				zap.Error(err))
		}
		tally.count(outcome)

		if resource != nil {
			window = append(window, model.WindowEntry{
				ID:           resource.ID,
				Title:        resource.Title,
				EventDate:    resource.EventDate,
				Location:     resource.Location,
				Organization: resource.Organization,
				URL:          resource.URL,
			})
		}
	}

	zap.L().Info("evaluation batch complete",
		zap.Int("promoted", tally.Promoted),
		zap.Int("rejected", tally.Rejected),
		zap.Int("review", tally.Review),
		zap.Int("skipped", tally.Skipped),
		zap.Int("errors", tally.Errors))
	return tally
}

// EvaluateOne runs the full state machine for a single candidate. The
// returned resource is non-nil only on promotion.
func (e *Evaluator) EvaluateOne(ctx context.Context, c *model.Candidate, window []model.WindowEntry, force bool) (Outcome, *model.Resource, error) {
	if c.Status != model.StatusPending {
		// Force re-admits evaluated and rejected candidates, never
		// promoted ones.
		if !force || c.Status == model.StatusPromoted {
			return OutcomeSkipped, nil, nil
		}
	}

	scraped, hints := e.scrapeContext(ctx, c)

	ev, err := e.score(ctx, c, scraped, hints, window)
	if err != nil {
		return OutcomeError, nil, err
	}

	outcome := e.classify(ev)

	if outcome == OutcomeRejected && ev.DuplicateOf != nil {
		ev.Reasoning = "Duplicate of " + *ev.DuplicateOf + ". " + ev.Reasoning
	}

	// Persist the evaluation and standardized fields before any status
	// transition, so a crash between scoring and classification still
	// leaves usable data for manual triage.
	applyStandardizedFields(c, ev)
	c.Evaluation = ev
	now := time.Now().UTC()
	c.EvaluatedAt = &now
	if err := e.store.SaveEvaluation(ctx, c); err != nil {
		return OutcomeError, nil, eris.Wrap(err, "evaluator: save evaluation")
	}

	switch outcome {
	case OutcomePromoted:
		r, err := e.writer.Promote(ctx, c)
		if err != nil {
			return OutcomeError, nil, eris.Wrap(err, "evaluator: promote")
		}
		return OutcomePromoted, r, nil
	case OutcomeRejected:
		if err := e.store.SetStatus(ctx, c.ID, model.StatusRejected, force); err != nil {
			return OutcomeError, nil, eris.Wrap(err, "evaluator: reject")
		}
		return OutcomeRejected, nil, nil
	default:
		if err := e.store.SetStatus(ctx, c.ID, model.StatusEvaluated, force); err != nil {
			return OutcomeError, nil, eris.Wrap(err, "evaluator: mark evaluated")
		}
		return OutcomeReview, nil, nil
	}
}

// scrapeContext returns cached page text when present; otherwise it
// fetches once and caches. A fetch failure degrades to metadata-only
// evaluation rather than erroring the candidate.
func (e *Evaluator) scrapeContext(ctx context.Context, c *model.Candidate) (string, *scrape.Result) {
	if c.ScrapedText != nil {
		return *c.ScrapedText, nil
	}
	if c.URL == "" {
		return "", nil
	}

	res, err := e.scraper.Scrape(ctx, c.URL)
	if err != nil {
		zap.L().Warn("scrape failed, evaluating on metadata only",
			zap.String("candidate_id", c.ID),
			zap.String("url", c.URL),
			zap.Error(err))
		return "", nil
	}

	if err := e.store.SetScrapedText(ctx, c.ID, res.Text); err != nil {
		zap.L().Warn("caching scraped text failed", zap.String("candidate_id", c.ID), zap.Error(err))
	}
	c.ScrapedText = &res.Text
	return res.Text, res
}

// score makes the single LLM call and parses the response.
func (e *Evaluator) score(ctx context.Context, c *model.Candidate, scraped string, hints *scrape.Result, window []model.WindowEntry) (*model.Evaluation, error) {
	resp, err := e.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.cfg.Model,
		MaxTokens: e.cfg.MaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(systemRubric),
		Messages: []anthropic.Message{
			{Role: "user", Content: buildUserPrompt(c, scraped, hints, window)},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "evaluator: llm call")
	}
	resp.Usage.LogCost(e.cfg.Model, "evaluate")

	if len(resp.Content) == 0 {
		return nil, eris.New("evaluator: empty llm response")
	}
	return parseEvaluation(resp.Content[0].Text, c)
}

// parseEvaluation decodes the model's JSON. Scores are clamped, the event
// type is normalized into the closed set, and missing cleaned strings fall
// back to the candidate's own claims. A decode failure is a hard error
// for this candidate.
func parseEvaluation(raw string, c *model.Candidate) (*model.Evaluation, error) {
	var ev model.Evaluation
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &ev); err != nil {
		return nil, eris.Wrap(err, "evaluator: parse llm response")
	}

	ev.ClampScores()
	ev.EventType = model.NormalizeEventType(string(ev.EventType))

	if ev.CleanTitle == "" {
		ev.CleanTitle = c.Title
	}
	if ev.CleanDescription == "" {
		ev.CleanDescription = c.Description
	}
	if ev.DuplicateOf != nil && *ev.DuplicateOf == "" {
		ev.DuplicateOf = nil
	}

	return &ev, nil
}

// classify applies the decision ladder, first match wins.
func (e *Evaluator) classify(ev *model.Evaluation) Outcome {
	switch {
	case ev.DuplicateOf != nil:
		return OutcomeRejected
	case !ev.IsRealEvent || !ev.IsRelevant || ev.RelevanceScore < e.cfg.RejectThreshold:
		return OutcomeRejected
	case ev.RelevanceScore >= e.cfg.PromoteThreshold:
		return OutcomePromoted
	default:
		return OutcomeReview
	}
}

// applyStandardizedFields overwrites the candidate's scheduling and
// location claims with the model's cleaned values wherever supplied.
func applyStandardizedFields(c *model.Candidate, ev *model.Evaluation) {
	if ev.EventDate != "" {
		c.EventDate = &ev.EventDate
	}
	if ev.EventEndDate != "" {
		c.EventEndDate = &ev.EventEndDate
	}
	if ev.EventTime != "" {
		c.EventTime = &ev.EventTime
	}
	if ev.Location != "" {
		c.Location = ev.Location
	}
}

func (e *Evaluator) loadWindow(ctx context.Context) ([]model.WindowEntry, error) {
	resources, err := e.store.ResourceWindow(ctx, e.cfg.WindowSize)
	if err != nil {
		return nil, eris.Wrap(err, "evaluator: load resource window")
	}
	remaining := e.cfg.WindowSize - len(resources)
	if remaining <= 0 {
		return resources[:e.cfg.WindowSize], nil
	}
	cands, err := e.store.CandidateWindow(ctx, remaining)
	if err != nil {
		return resources, eris.Wrap(err, "evaluator: load candidate window")
	}
	return append(resources, cands...), nil
}
