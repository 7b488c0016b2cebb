// Package pipeline orchestrates the full intake run: gather candidates
// from every connector, then drain the pending queue through the
// evaluator.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/safetymap/events-cli/internal/connector"
	"github.com/safetymap/events-cli/internal/evaluator"
	"github.com/safetymap/events-cli/internal/gateway"
	"github.com/safetymap/events-cli/internal/model"
	"github.com/safetymap/events-cli/internal/prefilter"
	"github.com/safetymap/events-cli/internal/store"
)

// Options control one run.
type Options struct {
	SkipGather   bool
	SkipEvaluate bool
	Force        bool
	// Limit caps how many candidates the evaluate phase drains; zero
	// means the configured batch limit.
	Limit int
}

// Summary reports what a run did.
type Summary struct {
	Gathered    int
	Prefiltered int
	Inserted    int
	Skipped     int
	InsertErrs  int
	Evaluated   evaluator.Tally
}

// Pipeline wires connectors, the pre-filter, the gateway, and the
// evaluator into the two-phase run.
type Pipeline struct {
	connectors []connector.SourceConnector
	normalizer connector.Normalizer
	filter     *prefilter.Filter
	gateway    *gateway.Gateway
	evaluator  *evaluator.Evaluator
	store      store.Store

	batchLimit int
	llmLimiter *rate.Limiter
}

// New assembles a pipeline. llmDelayMillis paces LLM calls in the
// evaluate phase; batchLimit bounds how many pending candidates one run
// drains.
func New(
	conns []connector.SourceConnector,
	filter *prefilter.Filter,
	gw *gateway.Gateway,
	ev *evaluator.Evaluator,
	s store.Store,
	llmDelayMillis, batchLimit int,
) *Pipeline {
	if batchLimit <= 0 {
		batchLimit = 200
	}
	var limiter *rate.Limiter
	if llmDelayMillis > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Duration(llmDelayMillis)*time.Millisecond), 1)
	}
	return &Pipeline{
		connectors: conns,
		filter:     filter,
		gateway:    gw,
		evaluator:  ev,
		store:      s,
		batchLimit: batchLimit,
		llmLimiter: limiter,
	}
}

// Run executes the gather and evaluate phases per the options.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Summary, error) {
	sum := &Summary{}

	if !opts.SkipGather {
		if err := p.gather(ctx, sum); err != nil {
			return sum, err
		}
	}

	if !opts.SkipEvaluate {
		if err := p.evaluate(ctx, opts, sum); err != nil {
			return sum, err
		}
	}

	zap.L().Info("pipeline run complete",
		zap.Int("gathered", sum.Gathered),
		zap.Int("prefiltered", sum.Prefiltered),
		zap.Int("inserted", sum.Inserted),
		zap.Int("promoted", sum.Evaluated.Promoted),
		zap.Int("rejected", sum.Evaluated.Rejected),
		zap.Int("review", sum.Evaluated.Review),
		zap.Int("errors", sum.InsertErrs+sum.Evaluated.Errors))
	return sum, nil
}

// gather runs each connector in turn. One connector failing must not
// abort the others; its error is logged and the run continues.
func (p *Pipeline) gather(ctx context.Context, sum *Summary) error {
	for _, conn := range p.connectors {
		if err := ctx.Err(); err != nil {
			return err
		}

		cands, err := conn.Gather(ctx)
		if err != nil {
			zap.L().Error("connector failed",
				zap.String("connector", conn.Name()),
				zap.Error(err))
			continue
		}
		sum.Gathered += len(cands)

		cands = p.normalizer.Apply(cands)

		kept, rejected := p.filter.Apply(cands)
		sum.Prefiltered += len(rejected)
		for _, r := range rejected {
			zap.L().Debug("prefilter rejected",
				zap.String("connector", conn.Name()),
				zap.String("title", r.Candidate.Title),
				zap.String("reason", r.Reason))
		}

		res, err := p.gateway.Insert(ctx, kept)
		if err != nil {
			zap.L().Error("gateway batch failed",
				zap.String("connector", conn.Name()),
				zap.Error(err))
			continue
		}
		sum.Inserted += res.Inserted
		sum.Skipped += res.Skipped
		sum.InsertErrs += res.Errors
	}
	return nil
}

// evaluate drains the pending queue oldest first, pacing LLM calls with
// the configured delay.
func (p *Pipeline) evaluate(ctx context.Context, opts Options, sum *Summary) error {
	if p.evaluator == nil {
		return eris.New("pipeline: no evaluator configured")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = p.batchLimit
	}

	statuses := []model.Status{model.StatusPending}
	if opts.Force {
		statuses = append(statuses, model.StatusEvaluated, model.StatusRejected)
	}

	var queue []model.Candidate
	for _, st := range statuses {
		if len(queue) >= limit {
			break
		}
		cands, err := p.store.ListCandidates(ctx, store.CandidateFilter{
			Status: st,
			Limit:  limit - len(queue),
		})
		if err != nil {
			zap.L().Error("listing candidates failed",
				zap.String("status", string(st)),
				zap.Error(err))
			continue
		}
		queue = append(queue, cands...)
	}

	if len(queue) == 0 {
		zap.L().Info("nothing to evaluate")
		return nil
	}

	sum.Evaluated = p.evaluator.EvaluateBatch(ctx, queue, opts.Force, p.llmLimiter)
	return nil
}
