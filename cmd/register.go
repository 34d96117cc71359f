package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inamasaru/leadsync/internal/lead"
)

var (
	regExternalID string
	regName       string
	regEmail      string
	regPhone      string
	regProduct    string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register one lead submission",
	RunE: func(cmd *cobra.Command, args []string) error {
		form := lead.Form{
			ExternalID: regExternalID,
			Name:       regName,
			Email:      regEmail,
			Phone:      regPhone,
			Product:    regProduct,
		}
		// Flags take precedence; fall back to the form settings from the
		// environment so the scheduler can drive this command too.
		if form.ExternalID == "" {
			form = lead.Form{
				ExternalID: cfg.Form.ExternalID,
				Name:       cfg.Form.Name,
				Email:      cfg.Form.Email,
				Phone:      cfg.Form.Phone,
				Product:    cfg.Form.Product,
			}
		}
		if form.ExternalID == "" {
			return eris.New("no submission: set --external-id or LEADSYNC_FORM_EXTERNAL_ID")
		}

		p, err := buildPipeline()
		if err != nil {
			return err
		}

		if err := p.RegisterLead(cmd.Context(), form); err != nil {
			return err
		}
		zap.L().Info("registration complete", zap.String("external_id", form.ExternalID))
		return nil
	},
}

func init() {
	registerCmd.Flags().StringVar(&regExternalID, "external-id", "", "submission external ID")
	registerCmd.Flags().StringVar(&regName, "name", "", "lead display name")
	registerCmd.Flags().StringVar(&regEmail, "email", "", "lead email address")
	registerCmd.Flags().StringVar(&regPhone, "phone", "", "lead phone number")
	registerCmd.Flags().StringVar(&regProduct, "product", "", "product name for genre lookup")
	rootCmd.AddCommand(registerCmd)
}
