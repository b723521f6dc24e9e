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

func TestAuthenticator_Unlinked(t *testing.T) {
	tests := []struct {
		name    string
		id      Identity
		want    string
		wantErr bool
	}{
		{name: "secret key", id: Identity{ProjectSecretKey: "sk"}, want: "sk"},
		{name: "user token", id: Identity{UserToken: "ut"}, want: "ut"},
		{name: "secret key wins", id: Identity{ProjectSecretKey: "sk", UserToken: "ut"}, want: "sk"},
		{name: "nothing", id: Identity{}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, err := NewAuthenticator(NewClient(), nil).Resolve(context.Background(), tt.id)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMissingCredential)
				assert.Contains(t, err.Error(), "HUB_PROJECT_SECRET_KEY")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cred.Token)
			assert.Nil(t, cred.Project)
		})
	}
}

func TestAuthenticator_LinkedUsesProjectToken(t *testing.T) {
	f := newFakeHub(t)
	f.project = &Project{Type: "pages", Slug: "app", TeamSlug: "acme", UserProjectToken: "scoped"}
	log := logging.NewTestLogger()

	cred, err := NewAuthenticator(NewClient(), log).Resolve(context.Background(),
		Identity{ProjectKey: "k1", ProjectSecretKey: "manual", UserToken: "user", URL: f.URL()})
	require.NoError(t, err)

	assert.Equal(t, "scoped", cred.Token)
	require.NotNil(t, cred.Project)
	assert.Equal(t, "app", cred.Project.Slug)
	assert.Equal(t, []string{"Bearer user"}, f.authHeaders("/api/projects/k1"))
	log.AssertLogged(t, zapcore.WarnLevel, "ignoring HUB_PROJECT_SECRET_KEY as HUB_PROJECT_KEY is set")
}

func TestAuthenticator_LinkedKeepsUserToken(t *testing.T) {
	f := newFakeHub(t)
	f.project = &Project{Type: "pages", Slug: "app", TeamSlug: "acme"}
	log := logging.NewTestLogger()

	cred, err := NewAuthenticator(NewClient(), log).Resolve(context.Background(),
		Identity{ProjectKey: "k1", UserToken: "user", URL: f.URL()})
	require.NoError(t, err)
	assert.Equal(t, "user", cred.Token)
	log.AssertNotLogged(t, zapcore.WarnLevel, "ignoring HUB_PROJECT_SECRET_KEY")
}

func TestAuthenticator_LinkedWithoutUserToken(t *testing.T) {
	f := newFakeHub(t)
	_, err := NewAuthenticator(NewClient(), nil).Resolve(context.Background(),
		Identity{ProjectKey: "k1", ProjectSecretKey: "sk", URL: f.URL()})
	require.ErrorIs(t, err, ErrMissingCredential)
	assert.Contains(t, err.Error(), "HUB_USER_TOKEN")
	assert.Zero(t, f.count("/api/projects/k1"))
}

func TestAuthenticator_LinkFailures(t *testing.T) {
	tests := []struct {
		status int
		want   *Error
	}{
		{http.StatusUnauthorized, ErrUnauthenticated},
		{http.StatusNotFound, ErrLinkFailed},
		{http.StatusInternalServerError, ErrLinkFailed},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			f := newFakeHub(t)
			f.projectStatus = tt.status
			_, err := NewAuthenticator(NewClient(), nil).Resolve(context.Background(),
				Identity{ProjectKey: "k1", UserToken: "user", URL: f.URL()})
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, 1, f.count("/api/projects/k1"))
		})
	}
}

func TestAuthenticator_LinkFailedNamesProject(t *testing.T) {
	f := newFakeHub(t)
	_, err := NewAuthenticator(NewClient(), nil).Resolve(context.Background(),
		Identity{ProjectKey: "missing", UserToken: "user", URL: f.URL()})
	require.ErrorIs(t, err, ErrLinkFailed)
	assert.Contains(t, err.Error(), "`missing`")
	assert.Contains(t, err.Error(), "hubctl link")
}

func TestClient_ProbeProject(t *testing.T) {
	f := newFakeHub(t)
	id := Identity{ProjectKey: "k1", UserToken: "user", URL: f.URL()}

	require.ErrorIs(t, NewClient().ProbeProject(context.Background(), id), ErrLinkFailed)

	f.configure(func(f *fakeHub) { f.project = &Project{Slug: "app"} })
	require.NoError(t, NewClient().ProbeProject(context.Background(), id))
}

func TestAdminURL(t *testing.T) {
	assert.Empty(t, AdminURL("https://admin.example.com", nil))
	assert.Equal(t, "https://admin.example.com/acme/app",
		AdminURL("https://admin.example.com/", &Project{TeamSlug: "acme", Slug: "app"}))
}
