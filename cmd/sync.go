package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inamasaru/leadsync/internal/genre"
	"github.com/inamasaru/leadsync/internal/lead"
	"github.com/inamasaru/leadsync/internal/pipeline"
	"github.com/inamasaru/leadsync/pkg/line"
	"github.com/inamasaru/leadsync/pkg/notion"
	"github.com/inamasaru/leadsync/pkg/stripe"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run the scheduled job: KPI report plus any pending registration",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := buildPipeline()
		if err != nil {
			return err
		}

		form := lead.Form{
			ExternalID: cfg.Form.ExternalID,
			Name:       cfg.Form.Name,
			Email:      cfg.Form.Email,
			Phone:      cfg.Form.Phone,
			Product:    cfg.Form.Product,
		}

		p.Run(cmd.Context(), form)
		zap.L().Info("sync complete", zap.Bool("registration", form.ExternalID != ""))
		return nil
	},
}

// buildPipeline constructs the gateways from config and wires the pipeline.
func buildPipeline() (*pipeline.Pipeline, error) {
	genres, err := genre.Load(cfg.Genres.Path)
	if err != nil {
		return nil, eris.Wrap(err, "load genres")
	}

	retry := cfg.Retry.Policy()

	store := notion.NewLeadStore(notion.NewClient(cfg.Notion.Token), cfg.Notion.LeadDB, retry)
	sender := line.NewClient(cfg.Line.Token,
		line.WithBaseURL(cfg.Line.BaseURL),
		line.WithRetry(retry),
	)
	links := stripe.NewLinkCreator(cfg.Stripe.Key,
		stripe.WithBaseURL(cfg.Stripe.BaseURL),
		stripe.WithMode(cfg.Stripe.Mode),
		stripe.WithRedirectURLs(cfg.Stripe.SuccessURL, cfg.Stripe.CancelURL),
		stripe.WithRetry(retry),
	)

	return pipeline.New(store, sender, links, genres, cfg.Line.UserID), nil
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
