package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/safetymap/events-cli/internal/connector"
	"github.com/safetymap/events-cli/internal/gateway"
	"github.com/safetymap/events-cli/internal/model"
)

var (
	submitTitle       string
	submitDescription string
	submitURL         string
	submitLocation    string
	submitDate        string
	submitBy          string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Stage a user-submitted event as a pending candidate",
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

		sourceID := model.NormalizeURL(submitURL)
		if sourceID == "" {
			// Submissions without a URL key on the title.
			sourceID = submitTitle
		}

		cand := model.Candidate{
			Source:      model.SourceSubmission,
			SourceID:    sourceID,
			Title:       submitTitle,
			Description: submitDescription,
			URL:         submitURL,
			Location:    submitLocation,
			SubmittedBy: submitBy,
		}
		if submitDate != "" {
			cand.EventDate = &submitDate
		}

		norm := connector.Normalizer{}
		res, err := gateway.New(st).Insert(ctx, []model.Candidate{norm.Normalize(cand)})
		if err != nil {
			return eris.Wrap(err, "submit candidate")
		}

		if res.Inserted == 0 {
			zap.L().Info("submission already known", zap.String("title", submitTitle))
			return nil
		}
		zap.L().Info("submission staged", zap.String("title", submitTitle))
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitTitle, "title", "", "event title (required)")
	submitCmd.Flags().StringVar(&submitDescription, "description", "", "event description")
	submitCmd.Flags().StringVar(&submitURL, "url", "", "event URL")
	submitCmd.Flags().StringVar(&submitLocation, "location", "", "event location")
	submitCmd.Flags().StringVar(&submitDate, "date", "", "event date (YYYY-MM-DD)")
	submitCmd.Flags().StringVar(&submitBy, "by", "", "submitter handle or email")
	_ = submitCmd.MarkFlagRequired("title")
	rootCmd.AddCommand(submitCmd)
}
