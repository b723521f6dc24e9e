package hub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ManifestPath is where every deployment serves its storage manifest.
const ManifestPath = "/api/_hub/manifest"

// Access holds the service-token credentials of a zero-trust access gateway
// in front of the deployment.
type Access struct {
	ClientID     string
	ClientSecret string
}

// Configured reports whether both halves of the service token are set.
func (a Access) Configured() bool {
	return a.ClientID != "" && a.ClientSecret != ""
}

// Headers returns the gateway headers, or nil when not configured.
func (a Access) Headers() http.Header {
	if !a.Configured() {
		return nil
	}
	h := http.Header{}
	h.Set("CF-Access-Client-Id", a.ClientID)
	h.Set("CF-Access-Client-Secret", a.ClientSecret)
	return h
}

// Manifest fetches the storage manifest of the deployment at baseURL.
//
// Failures are classified by status: 5xx is a server error, 401 an
// authorization failure, anything else means the project is not deployed.
func (c *Client) Manifest(ctx context.Context, baseURL, token string, access Access) (Manifest, error) {
	var m Manifest
	err := c.do(ctx, request{
		op:      OpManifest,
		method:  http.MethodGet,
		baseURL: baseURL,
		path:    ManifestPath,
		token:   token,
		header:  access.Headers(),
	}, &m)
	if err != nil {
		var he *Error
		if errors.As(err, &he) && he.Kind == KindUnauthenticated {
			he.AccessConfigured = access.Configured()
		}
		return Manifest{}, err
	}
	if m.Storage == nil {
		m.Storage = map[string]bool{}
	}
	return m, nil
}

// VersionSkew is a non-fatal difference between the local and the remote
// core version.
type VersionSkew struct {
	Local  string
	Remote string
}

// CheckVersion returns a skew when the versions differ, nil otherwise.
// A leading "v" is ignored on both sides.
func CheckVersion(local, remote string) *VersionSkew {
	if normalizeVersion(local) == normalizeVersion(remote) {
		return nil
	}
	return &VersionSkew{Local: local, Remote: remote}
}

// Direction describes which side is behind, when both versions parse as
// semantic versions.
func (s *VersionSkew) Direction() string {
	lv, lerr := semver.NewVersion(s.Local)
	rv, rerr := semver.NewVersion(s.Remote)
	if lerr != nil || rerr != nil {
		return "different"
	}
	switch {
	case rv.LessThan(lv):
		return "remote older"
	case rv.GreaterThan(lv):
		return "remote newer"
	}
	return "different"
}

func (s *VersionSkew) Error() string {
	return fmt.Sprintf("remote is running core %s while the local project is running core %s (%s), use the same version on both sides for a smooth experience",
		orUnknown(s.Remote), orUnknown(s.Local), s.Direction())
}

func normalizeVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
