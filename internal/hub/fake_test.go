package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeHub serves both the control plane and one deployment.
type fakeHub struct {
	t *testing.T

	mu       sync.Mutex
	requests map[string]int
	auth     map[string][]string
	headers  map[string]http.Header

	project        *Project
	projectStatus  int
	environment    *Environment
	envStatus      int
	manifest       Manifest
	manifestStatus int

	srv *httptest.Server
}

func newFakeHub(t *testing.T) *fakeHub {
	t.Helper()
	f := &fakeHub{
		t:        t,
		requests: map[string]int{},
		auth:     map[string][]string{},
		headers:  map[string]http.Header{},
		manifest: Manifest{Version: "1.0.0", Storage: map[string]bool{StorageKV: true}},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeHub) URL() string { return f.srv.URL }

func (f *fakeHub) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[path]
}

func (f *fakeHub) authHeaders(path string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.auth[path]...)
}

func (f *fakeHub) lastHeader(path string) http.Header {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.headers[path]
}

func (f *fakeHub) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests[r.URL.Path]++
	f.auth[r.URL.Path] = append(f.auth[r.URL.Path], r.Header.Get("Authorization"))
	f.headers[r.URL.Path] = r.Header.Clone()
	defer f.mu.Unlock()

	switch {
	case r.URL.Path == ManifestPath:
		if f.manifestStatus != 0 {
			http.Error(w, "nope", f.manifestStatus)
			return
		}
		writeJSON(w, f.manifest)
	case strings.HasSuffix(r.URL.Path, "/environments/determine"):
		if f.envStatus != 0 {
			http.Error(w, "nope", f.envStatus)
			return
		}
		if f.environment == nil {
			http.NotFound(w, r)
			return
		}
		env := *f.environment
		if env.Branch == "" {
			env.Branch = r.URL.Query().Get("branch")
		}
		writeJSON(w, env)
	case strings.HasPrefix(r.URL.Path, "/api/projects/"):
		if f.projectStatus != 0 {
			w.WriteHeader(f.projectStatus)
			return
		}
		if f.project == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		writeJSON(w, f.project)
	default:
		http.NotFound(w, r)
	}
}

// configure mutates the fake once it has started serving.
func (f *fakeHub) configure(fn func(f *fakeHub)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func staticBranch(name string) BranchReader {
	return BranchFunc(func(context.Context, string) (string, error) { return name, nil })
}
