// Package gateway is the single write path into the candidate staging
// table. Connectors never touch the store directly; every insert runs
// through the two-key dedup here.
package gateway

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/safetymap/events-cli/internal/model"
	"github.com/safetymap/events-cli/internal/store"
)

// Result tallies one batch insert.
type Result struct {
	Inserted int
	Skipped  int
	Errors   int
}

// Gateway performs idempotent candidate inserts with batch-local dedup.
type Gateway struct {
	store store.Store
}

func New(s store.Store) *Gateway {
	return &Gateway{store: s}
}

// Insert writes new candidates as pending, skipping any whose natural key
// or normalized URL already exists among candidates or promoted event
// resources. Both key sets are loaded once per batch; keys of freshly
// inserted rows are appended so later items in the same batch dedup
// against them. A failed write is counted and does not abort the batch.
func (g *Gateway) Insert(ctx context.Context, cands []model.Candidate) (Result, error) {
	var res Result
	if len(cands) == 0 {
		return res, nil
	}

	candKeys, err := g.store.ListCandidateKeys(ctx)
	if err != nil {
		return res, eris.Wrap(err, "gateway: load candidate keys")
	}
	resKeys, err := g.store.ListEventResourceKeys(ctx)
	if err != nil {
		return res, eris.Wrap(err, "gateway: load resource keys")
	}

	naturalKeys := make(map[string]struct{}, len(candKeys)+len(resKeys))
	urls := make(map[string]struct{}, len(candKeys)+len(resKeys))
	for _, k := range append(candKeys, resKeys...) {
		naturalKeys[string(k.Source)+":"+k.SourceID] = struct{}{}
		if k.NormalizedURL != "" {
			urls[k.NormalizedURL] = struct{}{}
		}
	}

	for i := range cands {
		c := cands[i]

		if _, dup := naturalKeys[c.Key()]; dup {
			res.Skipped++
			continue
		}
		if c.NormalizedURL != "" {
			if _, dup := urls[c.NormalizedURL]; dup {
				res.Skipped++
				continue
			}
		}

		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.Status = model.StatusPending

		if err := g.store.InsertCandidate(ctx, &c); err != nil {
			zap.L().Warn("gateway insert failed",
				zap.String("source", string(c.Source)),
				zap.String("source_id", c.SourceID),
				zap.Error(err))
			res.Errors++
			continue
		}

		naturalKeys[c.Key()] = struct{}{}
		if c.NormalizedURL != "" {
			urls[c.NormalizedURL] = struct{}{}
		}
		res.Inserted++
	}

	zap.L().Info("gateway batch complete",
		zap.Int("inserted", res.Inserted),
		zap.Int("skipped", res.Skipped),
		zap.Int("errors", res.Errors))
	return res, nil
}
