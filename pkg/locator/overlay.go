package locator

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Overlay is the on-disk shape of a selectors file:
//
//	like_control:
//	  desktop:
//	    - technique: css
//	      expr: "div[aria-label='Me gusta']"
type Overlay map[Intent]map[Variant][]Candidate

// LoadOverlay reads a selectors file and returns base with the file's
// candidates placed ahead of the built-in ones.
func LoadOverlay(base *Catalog, path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read selectors file: %w", err)
	}

	var overlay Overlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("failed to parse selectors file: %w", err)
	}

	return overlay.Apply(base)
}

func (o Overlay) Apply(base *Catalog) (*Catalog, error) {
	out := base
	// Iterate in catalog order so errors are deterministic.
	for _, intent := range Intents() {
		variants, ok := o[intent]
		if !ok {
			continue
		}
		for _, variant := range Variants() {
			candidates, ok := variants[variant]
			if !ok {
				continue
			}
			for i, c := range candidates {
				if err := c.Validate(); err != nil {
					return nil, fmt.Errorf("%s/%s[%d]: %w", intent, variant, i, err)
				}
			}
			out = out.Prepend(intent, variant, candidates...)
		}
	}

	for intent, variants := range o {
		if !intent.Valid() {
			return nil, fmt.Errorf("unknown intent %q", intent)
		}
		for variant := range variants {
			if !variant.Valid() {
				return nil, fmt.Errorf("unknown variant %q for %s", variant, intent)
			}
		}
	}

	return out, nil
}
