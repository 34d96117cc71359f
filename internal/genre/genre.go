// Package genre loads the product/category configuration that maps leads to
// pricing and notification recipients.
package genre

import (
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Genre is one configured product entry.
type Genre struct {
	ProductName   string   `yaml:"product_name"`
	Description   string   `yaml:"description"`
	Price         int64    `yaml:"price"`
	ExpectedCVR   *float64 `yaml:"expected_cvr"`
	NotifyUserIDs []string `yaml:"notify_user_ids"`
}

// file is the on-disk shape of genres.yaml.
type file struct {
	Genre []Genre `yaml:"genre"`
}

// Load reads the genre list from path. A missing file is not an error; the
// job can still report KPIs with only the fallback recipient configured.
func Load(path string) ([]Genre, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			zap.L().Warn("genre config not found, using empty config", zap.String("path", path))
			return nil, nil
		}
		return nil, eris.Wrap(err, "genre: read config")
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "genre: parse config")
	}
	return f.Genre, nil
}

// Match returns the genre whose product name equals product. When no entry
// matches it logs a warning and falls back to the first configured genre, or
// a zero Genre when none are configured.
func Match(genres []Genre, product string) Genre {
	for _, g := range genres {
		if g.ProductName == product {
			return g
		}
	}
	zap.L().Warn("product not found in genre config, using default genre",
		zap.String("product", product))
	if len(genres) > 0 {
		return genres[0]
	}
	return Genre{}
}
