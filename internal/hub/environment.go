package hub

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

// AutoEnv asks the resolver to pick the environment from the branch.
const AutoEnv = "auto"

// Branch match strategies reported for environments synthesized locally.
const (
	MatchProductionBranch = "production-branch"
	MatchExplicit         = "explicit"
)

// IsAutoEnv reports whether env is the sentinel for branch-based resolution.
func IsAutoEnv(env string) bool {
	return env == "" || env == AutoEnv || env == "true"
}

// DetermineEnvironment asks the control plane which environment branch
// deploys to.
func (c *Client) DetermineEnvironment(ctx context.Context, id Identity, token, branch string) (Environment, error) {
	var env Environment
	err := c.do(ctx, request{
		op:      OpEnvironment,
		method:  http.MethodGet,
		baseURL: id.URL,
		path:    "/api/projects/" + url.PathEscape(id.ProjectKey) + "/environments/determine",
		query:   url.Values{"branch": []string{branch}},
		token:   token,
	}, &env)
	if err != nil {
		var he *Error
		if errors.As(err, &he) && (he.Kind == KindNotFound || he.Kind == KindServer) {
			return Environment{}, &Error{Kind: KindEnvironment, Op: OpEnvironment, Status: he.Status, Subject: branch, Err: he.Err}
		}
		return Environment{}, err
	}
	if env.Name == "" {
		return Environment{}, &Error{Kind: KindEnvironment, Op: OpEnvironment, Subject: branch, Err: errors.New("empty environment name")}
	}
	return env, nil
}

// EnvRequest is the input of Resolver.Resolve.
type EnvRequest struct {
	Identity   Identity
	Credential Credential
	Branch     BranchContext
	// Explicit is a concrete environment name, or "" / AutoEnv.
	Explicit string
}

// Resolver determines the target environment.
type Resolver struct {
	client *Client
	log    Logger
}

// NewResolver returns a Resolver. A nil logger discards output.
func NewResolver(client *Client, log Logger) *Resolver {
	if log == nil {
		log = nopLogger{}
	}
	return &Resolver{client: client, log: log}
}

// Resolve returns the environment for req.
//
// Unlinked projects and two-environment projects map the branch locally
// (production branch → production, anything else → preview) unless an
// explicit name is given. Every other linked project asks the control plane,
// and a failure there is fatal since no safe default exists.
func (r *Resolver) Resolve(ctx context.Context, req EnvRequest) (Environment, error) {
	project := req.Credential.Project
	branch := req.Branch.Branch

	if project.TwoEnvironments() {
		if !IsAutoEnv(req.Explicit) {
			return Environment{Name: req.Explicit, Branch: branch, BranchMatchStrategy: MatchExplicit}, nil
		}
		name := EnvProduction
		if !req.Branch.Fallback {
			prod := DefaultBranch
			if project != nil && project.ProductionBranch != "" {
				prod = project.ProductionBranch
			}
			name = TwoEnvironment(branch, prod)
		}
		return Environment{Name: name, Branch: branch, BranchMatchStrategy: MatchProductionBranch}, nil
	}

	env, err := r.client.DetermineEnvironment(ctx, req.Identity, req.Credential.Token, branch)
	if err != nil {
		return Environment{}, err
	}
	if !IsAutoEnv(req.Explicit) && req.Explicit != env.Name {
		r.log.Warn(ctx, "explicit environment ignored, the control plane decides the environment for this project",
			zap.String("requested", req.Explicit), zap.String("determined", env.Name))
	}
	return env, nil
}
