package hub

import (
	"context"
	"net/http"
	"testing"

	"github.com/kamusis/hubctl/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestIsAutoEnv(t *testing.T) {
	for _, v := range []string{"", "auto", "true"} {
		assert.True(t, IsAutoEnv(v), v)
	}
	for _, v := range []string{"preview", "production", "staging"} {
		assert.False(t, IsAutoEnv(v), v)
	}
}

func TestResolver_TwoEnvironments(t *testing.T) {
	tests := []struct {
		name     string
		project  *Project
		branch   BranchContext
		explicit string
		want     string
	}{
		{name: "unlinked main", branch: BranchContext{Branch: "main"}, want: EnvProduction},
		{name: "unlinked feature", branch: BranchContext{Branch: "feat"}, want: EnvPreview},
		{name: "unlinked explicit", branch: BranchContext{Branch: "main"}, explicit: "preview", want: EnvPreview},
		{name: "auto sentinel", branch: BranchContext{Branch: "feat"}, explicit: "auto", want: EnvPreview},
		{name: "fallback", branch: BranchContext{Branch: "main", Fallback: true}, want: EnvProduction},
		{
			name:    "pages custom production branch",
			project: &Project{Type: "pages", ProductionBranch: "release"},
			branch:  BranchContext{Branch: "release"},
			want:    EnvProduction,
		},
		{
			name:    "pages main is preview when production is elsewhere",
			project: &Project{Type: "pages", ProductionBranch: "release"},
			branch:  BranchContext{Branch: "main"},
			want:    EnvPreview,
		},
		{
			name:     "pages explicit",
			project:  &Project{Type: "pages"},
			branch:   BranchContext{Branch: "main"},
			explicit: "preview",
			want:     EnvPreview,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// No server: two-environment resolution must stay local.
			env, err := NewResolver(NewClient(), nil).Resolve(context.Background(), EnvRequest{
				Credential: Credential{Project: tt.project},
				Branch:     tt.branch,
				Explicit:   tt.explicit,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, env.Name)
			assert.Equal(t, tt.branch.Branch, env.Branch)
		})
	}
}

func TestResolver_AsksControlPlane(t *testing.T) {
	f := newFakeHub(t)
	f.environment = &Environment{Name: "staging", URL: "https://staging.example.com"}
	log := logging.NewTestLogger()

	env, err := NewResolver(NewClient(), log).Resolve(context.Background(), EnvRequest{
		Identity:   Identity{ProjectKey: "k1", URL: f.URL()},
		Credential: Credential{Token: "tok", Project: &Project{Type: "workers"}},
		Branch:     BranchContext{Branch: "feature/a"},
		Explicit:   "preview",
	})
	require.NoError(t, err)
	assert.Equal(t, "staging", env.Name)
	assert.Equal(t, "feature/a", env.Branch)
	assert.Equal(t, []string{"Bearer tok"}, f.authHeaders("/api/projects/k1/environments/determine"))
	log.AssertLogged(t, zapcore.WarnLevel, "explicit environment ignored")
}

func TestResolver_ControlPlaneFailureIsFatal(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError} {
		f := newFakeHub(t)
		f.envStatus = status

		_, err := NewResolver(NewClient(), nil).Resolve(context.Background(), EnvRequest{
			Identity:   Identity{ProjectKey: "k1", URL: f.URL()},
			Credential: Credential{Token: "tok", Project: &Project{Type: "workers"}},
			Branch:     BranchContext{Branch: "feature/a"},
		})
		require.ErrorIs(t, err, ErrEnvironment)
		assert.Contains(t, err.Error(), "`feature/a`")
	}
}

func TestResolver_EmptyEnvironmentName(t *testing.T) {
	f := newFakeHub(t)
	f.environment = &Environment{}

	_, err := NewResolver(NewClient(), nil).Resolve(context.Background(), EnvRequest{
		Identity:   Identity{ProjectKey: "k1", URL: f.URL()},
		Credential: Credential{Token: "tok", Project: &Project{Type: "workers"}},
		Branch:     BranchContext{Branch: "dev"},
	})
	require.ErrorIs(t, err, ErrEnvironment)
}
