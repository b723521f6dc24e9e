package hub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Storage names understood by the manifest.
const (
	StorageAI        = "ai"
	StorageAnalytics = "analytics"
	StorageBlob      = "blob"
	StorageBrowser   = "browser"
	StorageCache     = "cache"
	StorageDatabase  = "database"
	StorageKV        = "kv"
	StorageVectorize = "vectorize"
)

// Environment names for two-environment projects.
const (
	EnvProduction = "production"
	EnvPreview    = "preview"
)

// DefaultBranch is assumed when the current branch cannot be read.
const DefaultBranch = "main"

// Metric is a vector index distance metric.
type Metric string

const (
	MetricCosine     Metric = "cosine"
	MetricEuclidean  Metric = "euclidean"
	MetricDotProduct Metric = "dot-product"
)

// Valid reports whether m is one of the supported metrics.
func (m Metric) Valid() bool {
	switch m {
	case MetricCosine, MetricEuclidean, MetricDotProduct:
		return true
	}
	return false
}

// VectorIndex is the shape of one vectorize index.
type VectorIndex struct {
	Metric          Metric            `json:"metric" yaml:"metric" koanf:"metric"`
	Dimensions      int               `json:"dimensions" yaml:"dimensions" koanf:"dimensions"`
	MetadataIndexes map[string]string `json:"metadataIndexes,omitempty" yaml:"metadata_indexes,omitempty" koanf:"metadata_indexes"`
}

// Validate checks metric and dimensions.
func (v VectorIndex) Validate() error {
	if !v.Metric.Valid() {
		return fmt.Errorf("unsupported metric %q (expected cosine, euclidean or dot-product)", v.Metric)
	}
	if v.Dimensions <= 0 {
		return fmt.Errorf("dimensions must be positive, got %d", v.Dimensions)
	}
	return nil
}

// Identity is the set of credentials and control-plane URL a caller supplies.
type Identity struct {
	ProjectKey       string
	ProjectSecretKey string
	UserToken        string
	// URL is the control-plane base URL.
	URL string
}

// Linked reports whether the project is linked by key.
func (id Identity) Linked() bool { return id.ProjectKey != "" }

// BranchContext is the branch read from version control and the environment
// guessed from it.
type BranchContext struct {
	Branch     string
	GuessedEnv string
	// Fallback is true when the branch could not be read and DefaultBranch was used.
	Fallback bool
}

// Environment is a remote deployment target.
type Environment struct {
	Name                string     `json:"name"`
	Description         string     `json:"description,omitempty"`
	URL                 string     `json:"url,omitempty"`
	Branch              string     `json:"branch,omitempty"`
	BranchMatchStrategy string     `json:"branchMatchStrategy"`
	CreatedAt           time.Time  `json:"createdAt"`
	LastDeployedAt      *time.Time `json:"lastDeployedAt,omitempty"`
}

// UnmarshalJSON accepts null for the optional string fields.
func (e *Environment) UnmarshalJSON(b []byte) error {
	var raw struct {
		Name                string     `json:"name"`
		Description         *string    `json:"description"`
		URL                 *string    `json:"url"`
		Branch              *string    `json:"branch"`
		BranchMatchStrategy string     `json:"branchMatchStrategy"`
		CreatedAt           time.Time  `json:"createdAt"`
		LastDeployedAt      *time.Time `json:"lastDeployedAt"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*e = Environment{
		Name:                raw.Name,
		Description:         deref(raw.Description),
		URL:                 deref(raw.URL),
		Branch:              deref(raw.Branch),
		BranchMatchStrategy: raw.BranchMatchStrategy,
		CreatedAt:           raw.CreatedAt,
		LastDeployedAt:      raw.LastDeployedAt,
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Project is the control-plane metadata of a linked project.
type Project struct {
	Type             string `json:"type"`
	Slug             string `json:"slug"`
	TeamSlug         string `json:"teamSlug"`
	ProductionBranch string `json:"productionBranch"`
	URL              string `json:"url"`
	PreviewURL       string `json:"previewUrl"`
	UserProjectToken string `json:"userProjectToken"`
}

// TwoEnvironments reports whether the project only distinguishes production
// from preview. Such projects map branches locally; every other type asks the
// control plane.
func (p *Project) TwoEnvironments() bool {
	return p == nil || p.Type == "pages"
}

// Manifest is a deployment's self-declared storage capabilities.
//
// On the wire vectorize indexes live under storage.vectorize next to the
// boolean flags; they are split out here.
type Manifest struct {
	Version          string                 `yaml:"version"`
	Storage          map[string]bool        `yaml:"storage"`
	VectorizeIndexes map[string]VectorIndex `yaml:"vectorize,omitempty"`
}

type manifestWire struct {
	Version string                     `json:"version"`
	Storage map[string]json.RawMessage `json:"storage"`
}

// UnmarshalJSON decodes the wire format.
func (m *Manifest) UnmarshalJSON(b []byte) error {
	var w manifestWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	out := Manifest{Version: w.Version, Storage: map[string]bool{}}
	for name, raw := range w.Storage {
		if name == StorageVectorize {
			var idx map[string]VectorIndex
			// Anything but an object, e.g. a bare false, declares no indexes.
			if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
				if err := json.Unmarshal(raw, &idx); err != nil {
					return fmt.Errorf("storage.vectorize: %w", err)
				}
			}
			out.VectorizeIndexes = idx
			continue
		}
		var enabled bool
		if err := json.Unmarshal(raw, &enabled); err != nil {
			// Non-boolean flags (e.g. configuration objects) count as enabled.
			enabled = string(raw) != "null"
		}
		out.Storage[name] = enabled
	}
	*m = out
	return nil
}

// MarshalJSON encodes the wire format.
func (m Manifest) MarshalJSON() ([]byte, error) {
	storage := make(map[string]any, len(m.Storage)+1)
	for k, v := range m.Storage {
		storage[k] = v
	}
	if m.VectorizeIndexes != nil {
		storage[StorageVectorize] = m.VectorizeIndexes
	}
	return json.Marshal(struct {
		Version string         `json:"version"`
		Storage map[string]any `json:"storage"`
	}{m.Version, storage})
}

// Available reports whether the deployment exposes storage name.
func (m Manifest) Available(name string) bool {
	if name == StorageVectorize {
		return len(m.VectorizeIndexes) > 0
	}
	return m.Storage[name]
}

// IndexNames returns the remote vectorize index names, sorted.
func (m Manifest) IndexNames() []string {
	return sortedKeys(m.VectorizeIndexes)
}

// LocalFeatures is the caller's view of which storages are enabled.
// The core only reads it.
type LocalFeatures struct {
	Storage   map[string]bool
	Vectorize map[string]VectorIndex
}

// Enabled returns the locally enabled storage names, sorted. Vectorize counts
// as enabled when at least one index is declared.
func (l LocalFeatures) Enabled() []string {
	var out []string
	for name, on := range l.Storage {
		if on && name != StorageVectorize {
			out = append(out, name)
		}
	}
	if len(l.Vectorize) > 0 {
		out = append(out, StorageVectorize)
	}
	sort.Strings(out)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
