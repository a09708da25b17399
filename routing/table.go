package routing

import (
	"fmt"
	"os"
	"sort"

	"github.com/upb/llm-gateway/services"
	"gopkg.in/yaml.v3"
)

// Endpoint is the backend a model identifier resolves to
type Endpoint struct {
	BaseURL string `yaml:"base_url"`
}

// Table maps model identifiers to backend endpoints. It is built once at
// startup and read-only afterwards, so concurrent lookups need no locking.
type Table struct {
	entries      map[string]Endpoint
	defaultModel string
}

// fileSchema is the on-disk YAML layout of the routing table
type fileSchema struct {
	DefaultModel string `yaml:"default_model"`
	Backends     []struct {
		Model   string `yaml:"model"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"backends"`
}

// Load reads the routing table from a YAML file. Loading is lenient about the
// default model: a default_model with no backend entry is not a startup
// failure, it surfaces as an unknown-model error on the first request that
// needs the default.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read routing table %q: %w", path, err)
	}

	var schema fileSchema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("failed to parse routing table %q: %w", path, err)
	}

	entries := make(map[string]Endpoint, len(schema.Backends))
	for i, b := range schema.Backends {
		if b.Model == "" {
			return nil, fmt.Errorf("routing table %q: backend %d has an empty model", path, i)
		}
		if b.BaseURL == "" {
			return nil, fmt.Errorf("routing table %q: model %q has an empty base_url", path, b.Model)
		}
		entries[b.Model] = Endpoint{BaseURL: b.BaseURL}
	}

	return New(schema.DefaultModel, entries), nil
}

// New builds a table from already-validated entries
func New(defaultModel string, entries map[string]Endpoint) *Table {
	copied := make(map[string]Endpoint, len(entries))
	for model, ep := range entries {
		copied[model] = ep
	}
	return &Table{entries: copied, defaultModel: defaultModel}
}

// Resolve maps a caller-supplied model identifier to its backend endpoint.
// An absent or empty model substitutes the default model. The returned string
// is the identifier the backend will be asked for. Resolution is a pure
// lookup; it performs no I/O.
func (t *Table) Resolve(model string) (string, Endpoint, error) {
	if model == "" {
		model = t.defaultModel
	}
	ep, ok := t.entries[model]
	if !ok {
		return "", Endpoint{}, services.NewUnknownModelError(model)
	}
	return model, ep, nil
}

// Models returns all routable model identifiers in stable order
func (t *Table) Models() []string {
	models := make([]string, 0, len(t.entries))
	for model := range t.entries {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}

// DefaultModel returns the identifier substituted when the caller omits one
func (t *Table) DefaultModel() string {
	return t.defaultModel
}

// Len returns the number of routable models
func (t *Table) Len() int {
	return len(t.entries)
}
