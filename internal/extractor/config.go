package extractor

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/preventia/preventia-core/internal/errs"
)

// SourceExtractorConfig binds one Source's domain to the extractor that
// should handle it. Type selects "generic" (CSS-selector scraping, the
// common case) or "rssfeed". Selectors is only read for "generic".
type SourceExtractorConfig struct {
	Domain    string         `json:"domain"`
	Type      string         `json:"type"`
	Selectors SelectorConfig `json:"selectors,omitempty"`
	Keywords  []string       `json:"keywords,omitempty"`
}

// LoadRegistryConfig reads a JSON array of SourceExtractorConfig from path.
// A missing file yields an empty, valid configuration: a fresh deployment
// with no sources onboarded yet is not a ConfigurationFail.
func LoadRegistryConfig(path string) ([]SourceExtractorConfig, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.KindConfiguration, "read extractors config", err)
	}
	var configs []SourceExtractorConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "parse extractors config", err)
	}
	return configs, nil
}

// BuildRegistry constructs a Registry from per-source extractor
// configuration, matching each Domain to a concrete GenericArticleExtractor
// or RSSFeedExtractor (spec.md §4.4/§9: "static registry of extractors
// implementing a common capability set").
func BuildRegistry(configs []SourceExtractorConfig) (*Registry, error) {
	extractors := make([]Extractor, 0, len(configs))
	for _, c := range configs {
		switch c.Type {
		case "", "generic":
			sel := c.Selectors
			sel.Domain = c.Domain
			extractors = append(extractors, NewGenericArticleExtractor(sel, c.Keywords))
		case "rssfeed":
			extractors = append(extractors, NewRSSFeedExtractor(c.Domain, c.Keywords))
		default:
			return nil, fmt.Errorf("extractor config for domain %q: unknown type %q", c.Domain, c.Type)
		}
	}
	return NewRegistry(extractors...), nil
}
