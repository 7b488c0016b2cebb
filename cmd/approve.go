package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/safetymap/events-cli/internal/model"
	"github.com/safetymap/events-cli/internal/promote"
	"github.com/safetymap/events-cli/internal/store"
)

var approveCmd = &cobra.Command{
	Use:   "approve <candidate-id>",
	Short: "Promote a reviewed candidate to the public listing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		return approveCandidate(ctx, st, args[0])
	},
}

func approveCandidate(ctx context.Context, st store.Store, id string) error {
	c, err := st.GetCandidate(ctx, id)
	if err != nil {
		return eris.Wrap(err, "load candidate")
	}
	if c == nil {
		return eris.Errorf("candidate %s not found", id)
	}
	if c.Status == model.StatusPromoted {
		return eris.Errorf("candidate %s is already promoted", id)
	}

	r, err := promote.NewWriter(st).Promote(ctx, c)
	if err != nil {
		return eris.Wrap(err, "promote candidate")
	}

	zap.L().Info("candidate approved",
		zap.String("candidate_id", id),
		zap.String("resource_id", r.ID),
		zap.String("title", r.Title))
	return nil
}

func init() {
	rootCmd.AddCommand(approveCmd)
}
