package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/safetymap/events-cli/internal/model"
	"github.com/safetymap/events-cli/internal/store"
)

var rejectReason string

var rejectCmd = &cobra.Command{
	Use:   "reject <candidate-id>",
	Short: "Reject a reviewed candidate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		return rejectCandidate(ctx, st, args[0], rejectReason)
	},
}

func rejectCandidate(ctx context.Context, st store.Store, id, reason string) error {
	c, err := st.GetCandidate(ctx, id)
	if err != nil {
		return eris.Wrap(err, "load candidate")
	}
	if c == nil {
		return eris.Errorf("candidate %s not found", id)
	}

	if reason != "" {
		if c.Evaluation == nil {
			c.Evaluation = &model.Evaluation{}
		}
		c.Evaluation.Reasoning = "Manually rejected: " + reason
		if err := st.SaveEvaluation(ctx, c); err != nil {
			return eris.Wrap(err, "record rejection reason")
		}
	}

	if err := st.SetStatus(ctx, id, model.StatusRejected, false); err != nil {
		return eris.Wrap(err, "reject candidate")
	}

	zap.L().Info("candidate rejected",
		zap.String("candidate_id", id),
		zap.String("reason", reason))
	return nil
}

func init() {
	rejectCmd.Flags().StringVar(&rejectReason, "reason", "", "why the candidate is being rejected")
	rootCmd.AddCommand(rejectCmd)
}
