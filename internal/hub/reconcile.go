package hub

import (
	"fmt"
	"slices"
	"strings"
)

// IndexMismatch is a vector index whose shape differs between local and remote.
type IndexMismatch struct {
	Name   string
	Local  VectorIndex
	Remote VectorIndex
}

// Reconciliation is the outcome of comparing local features with a manifest.
// All slices are sorted by name.
type Reconciliation struct {
	Usable      []string
	Mismatched  []IndexMismatch
	Unavailable []string
}

// Reconcile compares local against remote. It is pure: the same inputs always
// give the same result, and neither input is modified.
//
// A storage enabled locally but not exposed remotely is reported as
// unavailable. A vector index declared on both sides with a different metric
// or dimension count is reported as mismatched; indexes only declared
// locally are not, since they simply have not been deployed yet. Mismatches
// do not make vectorize unusable.
func Reconcile(local LocalFeatures, remote Manifest) Reconciliation {
	var r Reconciliation
	for _, name := range local.Enabled() {
		if remote.Available(name) {
			r.Usable = append(r.Usable, name)
		} else {
			r.Unavailable = append(r.Unavailable, name)
		}
	}
	for _, name := range sortedKeys(local.Vectorize) {
		rv, ok := remote.VectorizeIndexes[name]
		if !ok {
			continue
		}
		lv := local.Vectorize[name]
		if lv.Dimensions != rv.Dimensions || lv.Metric != rv.Metric {
			r.Mismatched = append(r.Mismatched, IndexMismatch{Name: name, Local: lv, Remote: rv})
		}
	}
	return r
}

// Empty reports whether nothing is usable remotely.
func (r Reconciliation) Empty() bool { return len(r.Usable) == 0 }

// IsUsable reports whether storage name is usable remotely.
func (r Reconciliation) IsUsable(name string) bool {
	return slices.Contains(r.Usable, name)
}

// Warnings returns one MismatchError per unavailable storage and per
// mismatched index.
func (r Reconciliation) Warnings() []*MismatchError {
	var out []*MismatchError
	for _, s := range r.Unavailable {
		out = append(out, &MismatchError{Storage: s})
	}
	for _, m := range r.Mismatched {
		out = append(out, &MismatchError{Index: m.Name, Local: m.Local, Remote: m.Remote})
	}
	return out
}

// Summary enumerates usable storages, vectorize with its remote index names.
func (r Reconciliation) Summary(remote Manifest) string {
	parts := make([]string, 0, len(r.Usable))
	for _, s := range r.Usable {
		if s == StorageVectorize {
			parts = append(parts, fmt.Sprintf("`%s (%s)`", s, strings.Join(remote.IndexNames(), ", ")))
			continue
		}
		parts = append(parts, "`"+s+"`")
	}
	return strings.Join(parts, ", ")
}
