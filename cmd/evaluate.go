package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rotisserie/eris"

	"github.com/safetymap/events-cli/internal/connector"
	"github.com/safetymap/events-cli/internal/gateway"
	"github.com/safetymap/events-cli/internal/model"
	"github.com/safetymap/events-cli/internal/pipeline"
)

var (
	evaluateForce bool
	evaluateLimit int
	evaluateURL   string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate pending candidates with the LLM",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		p, st, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		// Ad-hoc single URL: stage a manual candidate through the
		// normal gateway path so dedup still applies, then drain.
		if evaluateURL != "" {
			norm := connector.Normalizer{}
			cand := norm.Normalize(model.Candidate{
				Source:   model.SourceManual,
				SourceID: model.NormalizeURL(evaluateURL),
				Title:    evaluateURL,
				URL:      evaluateURL,
			})
			res, err := gateway.New(st).Insert(ctx, []model.Candidate{cand})
			if err != nil {
				return eris.Wrap(err, "stage manual candidate")
			}
			if res.Inserted == 0 {
				zap.L().Info("url already known, nothing staged", zap.String("url", evaluateURL))
			}
		}

		sum, err := p.Run(ctx, pipeline.Options{
			SkipGather: true,
			Force:      evaluateForce,
			Limit:      evaluateLimit,
		})
		if err != nil {
			return eris.Wrap(err, "evaluate run")
		}

		zap.L().Info("evaluate finished",
			zap.Int("promoted", sum.Evaluated.Promoted),
			zap.Int("rejected", sum.Evaluated.Rejected),
			zap.Int("review", sum.Evaluated.Review),
			zap.Int("skipped", sum.Evaluated.Skipped),
			zap.Int("errors", sum.Evaluated.Errors))
		return nil
	},
}

func init() {
	evaluateCmd.Flags().BoolVar(&evaluateForce, "force", false, "re-evaluate previously evaluated or rejected candidates")
	evaluateCmd.Flags().IntVar(&evaluateLimit, "limit", 0, "max candidates to evaluate (default from config)")
	evaluateCmd.Flags().StringVar(&evaluateURL, "url", "", "stage and evaluate a single event URL")
	rootCmd.AddCommand(evaluateCmd)
}
