package cmd

import (
	"context"
	"os"
	"testing"

	"github.com/kamusis/hubctl/internal/config"
	"github.com/kamusis/hubctl/internal/hub"
	"github.com/kamusis/hubctl/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkProject_WritesKeyOnly(t *testing.T) {
	clearHubEnv(t)
	srv := newHubServer(t)
	dir := newProjectDir(t, "url: "+srv.URL+"\nstorage:\n  kv: true\n", "HUB_USER_TOKEN="+goodToken+"\n")
	p := loadTestProject(t, dir)

	project, err := linkProject(context.Background(), p, "k1", newClient(p.log, nil, 0))
	require.NoError(t, err)
	assert.Equal(t, "app", project.Slug)

	fileCfg, err := config.ReadFile(dir)
	require.NoError(t, err)
	assert.Equal(t, "k1", fileCfg.ProjectKey)
	assert.Equal(t, srv.URL, fileCfg.URL)
	assert.Equal(t, map[string]bool{hub.StorageKV: true}, fileCfg.Storage)

	raw, err := os.ReadFile(config.Path(dir))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), goodToken)
}

func TestLinkAndUnlink_KeepCredentialsInFile(t *testing.T) {
	clearHubEnv(t)
	srv := newHubServer(t)
	dir := newProjectDir(t, "url: "+srv.URL+"\nuser_token: "+goodToken+"\nstorage:\n  kv: true\n", "")
	p := loadTestProject(t, dir)

	_, err := linkProject(context.Background(), p, "k1", newClient(p.log, nil, 0))
	require.NoError(t, err)
	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "k1", cfg.ProjectKey)
	assert.Equal(t, goodToken, cfg.UserToken)

	key, err := unlinkProject(p)
	require.NoError(t, err)
	assert.Equal(t, "k1", key)
	cfg, err = config.Load(dir)
	require.NoError(t, err)
	assert.Empty(t, cfg.ProjectKey)
	assert.Equal(t, goodToken, cfg.UserToken)
}

func TestLinkProject_ClearsSnapshot(t *testing.T) {
	clearHubEnv(t)
	srv := newHubServer(t)
	dir := newProjectDir(t, "url: "+srv.URL+"\n", "HUB_USER_TOKEN="+goodToken+"\n")
	p := loadTestProject(t, dir)

	store := state.NewStore(p.cfg.DataDir(dir))
	require.NoError(t, store.Save(state.Snapshot{ProjectURL: "https://old.example.com"}))

	_, err := linkProject(context.Background(), p, "k1", newClient(p.log, nil, 0))
	require.NoError(t, err)
	_, err = store.Load()
	assert.ErrorIs(t, err, state.ErrNoSnapshot)
}

func TestLinkProject_Failures(t *testing.T) {
	clearHubEnv(t)
	srv := newHubServer(t)

	dir := newProjectDir(t, "url: "+srv.URL+"\n", "")
	p := loadTestProject(t, dir)
	_, err := linkProject(context.Background(), p, "k1", newClient(p.log, nil, 0))
	require.ErrorIs(t, err, hub.ErrMissingCredential)

	dir = newProjectDir(t, "url: "+srv.URL+"\n", "HUB_USER_TOKEN="+goodToken+"\n")
	p = loadTestProject(t, dir)
	_, err = linkProject(context.Background(), p, "unknown", newClient(p.log, nil, 0))
	require.ErrorIs(t, err, hub.ErrLinkFailed)

	dir = newProjectDir(t, "url: "+srv.URL+"\n", "HUB_USER_TOKEN=expired\n")
	p = loadTestProject(t, dir)
	_, err = linkProject(context.Background(), p, "k1", newClient(p.log, nil, 0))
	require.ErrorIs(t, err, hub.ErrUnauthenticated)

	fileCfg, err := config.ReadFile(dir)
	require.NoError(t, err)
	assert.Empty(t, fileCfg.ProjectKey)
}

func TestUnlinkProject(t *testing.T) {
	clearHubEnv(t)
	dir := newProjectDir(t, "project_key: k1\nstorage:\n  blob: true\n", "")
	p := loadTestProject(t, dir)

	key, err := unlinkProject(p)
	require.NoError(t, err)
	assert.Equal(t, "k1", key)

	fileCfg, err := config.ReadFile(dir)
	require.NoError(t, err)
	assert.Empty(t, fileCfg.ProjectKey)
	assert.True(t, fileCfg.Storage[hub.StorageBlob])

	key, err = unlinkProject(p)
	require.NoError(t, err)
	assert.Empty(t, key)
}
