package hub

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Credential is the token used for every call after resolution, plus the
// linked project's metadata when the identity carried a project key.
type Credential struct {
	Token   string
	Project *Project
}

// Project fetches the metadata of a linked project with the user token.
func (c *Client) Project(ctx context.Context, id Identity) (*Project, error) {
	var p Project
	err := c.do(ctx, projectRequest(OpProjectLookup, http.MethodGet, id), &p)
	if err != nil {
		return nil, linkFailure(err, id.ProjectKey)
	}
	return &p, nil
}

// ProbeProject checks that a linked project is reachable with the user token
// without downloading its metadata.
func (c *Client) ProbeProject(ctx context.Context, id Identity) error {
	if err := c.do(ctx, projectRequest(OpProjectProbe, http.MethodHead, id), nil); err != nil {
		return linkFailure(err, id.ProjectKey)
	}
	return nil
}

func projectRequest(op, method string, id Identity) request {
	return request{
		op:      op,
		method:  method,
		baseURL: id.URL,
		path:    "/api/projects/" + url.PathEscape(id.ProjectKey),
		token:   id.UserToken,
	}
}

// linkFailure folds every status other than 401 into KindLinkFailed.
func linkFailure(err error, key string) error {
	var he *Error
	if errors.As(err, &he) && (he.Kind == KindNotFound || he.Kind == KindServer) {
		return &Error{Kind: KindLinkFailed, Op: he.Op, Status: he.Status, Subject: key, Err: he.Err}
	}
	return err
}

// Authenticator resolves the credential used for remote calls.
type Authenticator struct {
	client *Client
	log    Logger
}

// NewAuthenticator returns an Authenticator. A nil logger discards output.
func NewAuthenticator(client *Client, log Logger) *Authenticator {
	if log == nil {
		log = nopLogger{}
	}
	return &Authenticator{client: client, log: log}
}

// Resolve picks the credential for id.
//
// A linked project is looked up with the user token; a project-scoped token in
// the response replaces the user token, and a manually supplied secret key is
// ignored. Unlinked projects use the secret key, then the user token.
func (a *Authenticator) Resolve(ctx context.Context, id Identity) (Credential, error) {
	if !id.Linked() {
		token := firstNonEmpty(id.ProjectSecretKey, id.UserToken)
		if token == "" {
			return Credential{}, &Error{Kind: KindMissingCredential, Op: OpCredential}
		}
		return Credential{Token: token}, nil
	}

	if id.ProjectSecretKey != "" {
		a.log.Warn(ctx, "ignoring HUB_PROJECT_SECRET_KEY as HUB_PROJECT_KEY is set")
	}
	if id.UserToken == "" {
		return Credential{}, &Error{Kind: KindMissingCredential, Op: OpCredential, Subject: id.ProjectKey}
	}

	project, err := a.client.Project(ctx, id)
	if err != nil {
		return Credential{}, err
	}
	token := id.UserToken
	if project.UserProjectToken != "" {
		a.log.Debug(ctx, "using project-scoped token", zap.String("project_key", id.ProjectKey))
		token = project.UserProjectToken
	}
	return Credential{Token: token, Project: project}, nil
}

// AdminURL is the control-plane page of a linked project.
func AdminURL(controlURL string, p *Project) string {
	if p == nil {
		return ""
	}
	u, err := url.JoinPath(controlURL, p.TeamSlug, p.Slug)
	if err != nil {
		return strings.TrimRight(controlURL, "/") + "/" + p.TeamSlug + "/" + p.Slug
	}
	return u
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
