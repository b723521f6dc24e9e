package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/kamusis/hubctl/internal/config"
	"github.com/kamusis/hubctl/internal/logging"
	"github.com/stretchr/testify/require"
)

const goodToken = "good-token-0123456789"

// newHubServer serves a control plane knowing project "k1" and a deployment
// with kv enabled that accepts goodToken.
func newHubServer(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+goodToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/projects/k1":
			_ = json.NewEncoder(w).Encode(map[string]string{
				"type": "pages", "slug": "app", "teamSlug": "acme", "url": srv.URL, "previewUrl": srv.URL,
			})
		case "/api/_hub/manifest":
			_, _ = w.Write([]byte(`{"version":"dev","storage":{"kv":true,"blob":false}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// clearHubEnv blanks every supported variable for the test.
func clearHubEnv(t *testing.T) {
	t.Helper()
	for _, k := range config.EnvKeys() {
		t.Setenv(k, "")
	}
}

// newProjectDir writes hub.yaml and .env into a fresh directory.
func newProjectDir(t *testing.T, hubYAML, dotenv string) string {
	t.Helper()
	dir := t.TempDir()
	if hubYAML != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(hubYAML), 0o644))
	}
	if dotenv != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(dotenv), 0o600))
	}
	return dir
}

// useProject points the --dir flag at dir for the test.
func useProject(t *testing.T, dir string) {
	t.Helper()
	old := flagDir
	flagDir = dir
	t.Cleanup(func() { flagDir = old })
}

// loadTestProject loads dir with a silent logger.
func loadTestProject(t *testing.T, dir string) *project {
	t.Helper()
	useProject(t, dir)
	p, err := loadProject()
	require.NoError(t, err)
	p.log = logging.NewNop()
	return p
}

// captureOutput redirects the print helpers for the test.
func captureOutput(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	oldOut, oldErr := stdout, stderr
	stdout, stderr = &out, &errOut
	t.Cleanup(func() { stdout, stderr = oldOut, oldErr })
	return &out, &errOut
}
