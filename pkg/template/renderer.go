// Package template implements the Template Renderer (C3): loads a job
// script template once at construction, scans it for `{name}` placeholders,
// and refuses to render when the provided variable bundle is missing any of
// them.
package template

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	taxerrors "github.com/eliadvertman/segctl/internal/errors"
)

var placeholderRE = regexp.MustCompile(`\{([^}]+)\}`)

// Renderer loads one template file and renders it against typed Variables
// bundles. Safe for concurrent use; Reload swaps the cached content and
// placeholder set atomically so a fsnotify-triggered hot reload never races
// a concurrent Render.
type Renderer struct {
	path string

	mu           sync.RWMutex
	content      string
	placeholders []string
}

// NewRenderer loads path once. An empty path is a configuration error; a
// missing file is a fatal startup error, per spec §4.3.
func NewRenderer(path string) (*Renderer, error) {
	if path == "" {
		return nil, taxerrors.New(taxerrors.KindClientMalformed, "template path must not be empty")
	}
	r := &Renderer{path: path}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the template file from disk and recomputes its
// placeholder set. Call this from a fsnotify callback to pick up a new
// template without restarting the process.
func (r *Renderer) Reload() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return taxerrors.Wrap(taxerrors.KindInternal, err, fmt.Sprintf("template file not found: %s", r.path))
	}
	content := string(data)
	placeholders := scanPlaceholders(content)

	r.mu.Lock()
	r.content = content
	r.placeholders = placeholders
	r.mu.Unlock()
	return nil
}

func scanPlaceholders(content string) []string {
	matches := placeholderRE.FindAllStringSubmatch(content, -1)
	seen := map[string]bool{}
	var names []string
	for _, m := range matches {
		name := m[1]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// Render validates vars, computes required\provided, and either returns
// TemplateError: missing [...] or the interpolated content.
func (r *Renderer) Render(vars Variables) (string, error) {
	if err := vars.Validate(); err != nil {
		return "", err
	}

	r.mu.RLock()
	content := r.content
	placeholders := r.placeholders
	r.mu.RUnlock()

	provided := vars.ToMap()
	var missing []string
	for _, name := range placeholders {
		if _, ok := provided[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", taxerrors.New(taxerrors.KindClientMalformed,
			fmt.Sprintf("TemplateError: missing %s", formatMissing(missing)))
	}

	result := content
	for name, value := range provided {
		result = strings.ReplaceAll(result, "{"+name+"}", value)
	}
	return result, nil
}
