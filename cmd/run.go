package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/safetymap/events-cli/internal/pipeline"
)

var (
	runSkipGather   bool
	runSkipEvaluate bool
	runForce        bool
	runLimit        int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full intake pipeline: gather then evaluate",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		p, st, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		sum, err := p.Run(ctx, pipeline.Options{
			SkipGather:   runSkipGather,
			SkipEvaluate: runSkipEvaluate,
			Force:        runForce,
			Limit:        runLimit,
		})
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("run finished",
			zap.Int("gathered", sum.Gathered),
			zap.Int("inserted", sum.Inserted),
			zap.Int("promoted", sum.Evaluated.Promoted),
			zap.Int("rejected", sum.Evaluated.Rejected),
			zap.Int("review", sum.Evaluated.Review),
			zap.Int("errors", sum.InsertErrs+sum.Evaluated.Errors))
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runSkipGather, "skip-gather", false, "skip the gather phase")
	runCmd.Flags().BoolVar(&runSkipEvaluate, "skip-evaluate", false, "skip the evaluate phase")
	runCmd.Flags().BoolVar(&runForce, "force", false, "re-evaluate previously evaluated or rejected candidates")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "max candidates to evaluate (default from config)")
	rootCmd.AddCommand(runCmd)
}
