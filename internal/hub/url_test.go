package hub

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectURL_Literal(t *testing.T) {
	u := LiteralURL("https://app.example.com")
	assert.False(t, u.Computed())
	assert.False(t, u.Empty())

	got, err := u.Resolve("preview", "dev")
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com", got.String())

	assert.True(t, ProjectURL{}.Empty())
}

func TestProjectURL_Computed(t *testing.T) {
	var calls []string
	u := ComputedURL(func(env, branch string) (string, error) {
		calls = append(calls, env+"/"+branch)
		return "https://" + env + ".example.com", nil
	})
	assert.True(t, u.Computed())
	assert.False(t, u.Empty())
	assert.Empty(t, u.String())

	got, err := u.Resolve("preview", "dev")
	require.NoError(t, err)
	assert.False(t, got.Computed())
	assert.Equal(t, "https://preview.example.com", got.String())
	assert.Equal(t, []string{"preview/dev"}, calls)
}

func TestProjectURL_ComputeFailure(t *testing.T) {
	u := ComputedURL(func(string, string) (string, error) { return "", errors.New("boom") })
	_, err := u.Resolve("production", "main")
	require.ErrorIs(t, err, ErrMissingProjectURL)
	assert.Contains(t, err.Error(), "boom")
}

func TestTemplateURL(t *testing.T) {
	u, err := TemplateURL(`https://{{ .Branch | replace "/" "-" }}.app.pages.dev`)
	require.NoError(t, err)

	got, err := u.Resolve(EnvPreview, "feature/login")
	require.NoError(t, err)
	assert.Equal(t, "https://feature-login.app.pages.dev", got.String())

	u, err = TemplateURL(`{{ if eq .Env "production" }}https://app.example.com{{ else }}https://{{ .Branch }}.preview.example.com{{ end }}`)
	require.NoError(t, err)
	got, err = u.Resolve(EnvProduction, "main")
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com", got.String())
}

func TestTemplateURL_Errors(t *testing.T) {
	_, err := TemplateURL("{{ .Branch ")
	require.Error(t, err)

	u, err := TemplateURL("{{ .Missing }}")
	require.NoError(t, err)
	_, err = u.Resolve(EnvPreview, "dev")
	require.ErrorIs(t, err, ErrMissingProjectURL)
}
