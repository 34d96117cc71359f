package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inamasaru/leadsync/internal/genre"
	"github.com/inamasaru/leadsync/pkg/stripe"
)

var (
	linksProduct string
	linksOutDir  string
)

var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "Generate durable Stripe payment links for configured genres",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Stripe.Key == "" {
			return eris.New("stripe.key is required for link generation")
		}

		genres, err := genre.Load(cfg.Genres.Path)
		if err != nil {
			return eris.Wrap(err, "load genres")
		}
		if len(genres) == 0 {
			return eris.New("no genres configured, nothing to generate")
		}

		gen := stripe.NewLinkGenerator(cfg.Stripe.Key,
			stripe.WithBaseURL(cfg.Stripe.BaseURL),
			stripe.WithRedirectURLs(cfg.Stripe.SuccessURL, cfg.Stripe.CancelURL),
			stripe.WithRetry(cfg.Retry.Policy()),
		)

		links, err := generateLinks(cmd.Context(), gen, genres, linksProduct)
		if err != nil {
			return err
		}

		for name, url := range links {
			zap.L().Info("payment link ready",
				zap.String("product", name),
				zap.String("url", url),
			)
		}

		path, err := writeLinksFile(linksOutDir, links, time.Now())
		if err != nil {
			return eris.Wrap(err, "save links")
		}
		zap.L().Info("saved payment links", zap.String("path", path), zap.Int("count", len(links)))
		return nil
	},
}

// generateLinks provisions one payment link per genre. When only is
// non-empty, generation is restricted to that product name.
func generateLinks(ctx context.Context, gen stripe.LinkGenerator, genres []genre.Genre, only string) (map[string]string, error) {
	links := make(map[string]string, len(genres))
	for _, g := range genres {
		if only != "" && g.ProductName != only {
			continue
		}
		url, err := gen.GeneratePaymentLink(ctx, g.ProductName, g.Description, g.Price)
		if err != nil {
			return nil, eris.Wrap(err, "generate link for "+g.ProductName)
		}
		links[g.ProductName] = url
	}
	if len(links) == 0 {
		return nil, eris.New("no genre matched product " + only)
	}
	return links, nil
}

// linksFile is the on-disk record of one generation run.
type linksFile struct {
	CreatedAt string            `json:"created_at"`
	Links     map[string]string `json:"links"`
}

// writeLinksFile persists the generated links as a timestamped JSON file
// under dir and returns the written path.
func writeLinksFile(dir string, links map[string]string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrap(err, "create output dir")
	}

	path := filepath.Join(dir, "payment_links_"+now.Format("20060102_150405")+".json")
	data, err := json.MarshalIndent(linksFile{
		CreatedAt: now.Format(time.RFC3339),
		Links:     links,
	}, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "encode links")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrap(err, "write links file")
	}
	return path, nil
}

func init() {
	linksCmd.Flags().StringVar(&linksProduct, "product", "", "generate for this product only")
	linksCmd.Flags().StringVar(&linksOutDir, "out", "output", "directory for the generated links file")
	rootCmd.AddCommand(linksCmd)
}
