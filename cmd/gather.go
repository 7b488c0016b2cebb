package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/safetymap/events-cli/internal/gateway"
	"github.com/safetymap/events-cli/internal/pipeline"
)

var gatherCmd = &cobra.Command{
	Use:   "gather",
	Short: "Gather candidates from all connectors without evaluating",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		filter, err := initFilter()
		if err != nil {
			return err
		}

		// No evaluator: gather works without LLM credentials.
		p := pipeline.New(initConnectors(), filter, gateway.New(st), nil, st,
			cfg.Pipeline.LLMDelayMillis, cfg.Pipeline.BatchLimit)

		sum, err := p.Run(ctx, pipeline.Options{SkipEvaluate: true})
		if err != nil {
			return eris.Wrap(err, "gather run")
		}

		zap.L().Info("gather finished",
			zap.Int("gathered", sum.Gathered),
			zap.Int("prefiltered", sum.Prefiltered),
			zap.Int("inserted", sum.Inserted),
			zap.Int("skipped", sum.Skipped),
			zap.Int("errors", sum.InsertErrs))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(gatherCmd)
}
