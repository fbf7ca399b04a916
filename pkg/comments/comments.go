// Package comments loads comment templates and picks one at random.
package comments

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"
)

const DefaultCategory = "general"

var ErrNoTemplates = errors.New("no comment templates available")

var builtin = map[string][]string{
	DefaultCategory: {
		"¡Excelente publicación!",
		"Muy interesante contenido",
		"Me encanta esto 👍",
		"Gracias por compartir",
		"Impresionante 🔥",
	},
}

type Templates struct {
	mu         sync.Mutex
	categories map[string][]string
	builtin    bool
	rand       *rand.Rand
}

// Defaults returns the built-in template set.
func Defaults() *Templates {
	return newTemplates(builtin, true)
}

func newTemplates(categories map[string][]string, isBuiltin bool) *Templates {
	return &Templates{
		categories: categories,
		builtin:    isBuiltin,
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Load reads a {category: [template...]} file, JSON or YAML by extension.
// An empty path or a missing file yields the built-in set.
func Load(path string) (*Templates, error) {
	if path == "" {
		return Defaults(), nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read comments file: %w", err)
	}

	categories := map[string][]string{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &categories)
	case ".json":
		err = json.Unmarshal(data, &categories)
	default:
		return nil, fmt.Errorf("unsupported comments file format: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse comments file: %w", err)
	}

	return newTemplates(categories, false), nil
}

func (t *Templates) Builtin() bool {
	return t.builtin
}

func (t *Templates) Categories() []string {
	names := make([]string, 0, len(t.categories))
	for name := range t.categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Pick returns a random template from category, falling back to the default
// category when it has none. Built-in templates containing non-ASCII
// characters are never picked.
func (t *Templates) Pick(category string) (string, error) {
	candidates := t.eligible(category)
	if len(candidates) == 0 && category != DefaultCategory {
		candidates = t.eligible(DefaultCategory)
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w for category %q", ErrNoTemplates, category)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return candidates[t.rand.Intn(len(candidates))], nil
}

func (t *Templates) eligible(category string) []string {
	var out []string
	for _, tmpl := range t.categories[category] {
		if strings.TrimSpace(tmpl) == "" {
			continue
		}
		if t.builtin && !isASCII(tmpl) {
			continue
		}
		out = append(out, tmpl)
	}
	return out
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}
