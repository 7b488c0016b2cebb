package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/safetymap/events-cli/internal/model"
	"github.com/safetymap/events-cli/internal/store"
)

var reviewLimit int

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "List candidates awaiting human review",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		cands, err := st.ListCandidates(ctx, store.CandidateFilter{
			Status: model.StatusEvaluated,
			Limit:  reviewLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list candidates")
		}

		type row struct {
			ID             string  `json:"id"`
			Title          string  `json:"title"`
			URL            string  `json:"url,omitempty"`
			Location       string  `json:"location,omitempty"`
			EventDate      string  `json:"event_date,omitempty"`
			RelevanceScore float64 `json:"relevance_score"`
			ImpactScore    float64 `json:"impact_score"`
			Reasoning      string  `json:"reasoning,omitempty"`
		}

		rows := make([]row, 0, len(cands))
		for _, c := range cands {
			r := row{
				ID:       c.ID,
				Title:    c.Title,
				URL:      c.URL,
				Location: c.Location,
			}
			if c.EventDate != nil {
				r.EventDate = *c.EventDate
			}
			if c.Evaluation != nil {
				r.RelevanceScore = c.Evaluation.RelevanceScore
				r.ImpactScore = c.Evaluation.ImpactScore
				r.Reasoning = c.Evaluation.Reasoning
			}
			rows = append(rows, r)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	},
}

func init() {
	reviewCmd.Flags().IntVar(&reviewLimit, "limit", 50, "max candidates to list")
	rootCmd.AddCommand(reviewCmd)
}
