package hub

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Options is everything the caller knows about the local project.
type Options struct {
	// Dir is the project directory; its repository supplies the branch.
	Dir      string
	Identity Identity
	// Env is a concrete environment name, or "" / AutoEnv to guess it.
	Env          string
	ProjectURL   ProjectURL
	Access       Access
	Features     LocalFeatures
	LocalVersion string
}

// Target is the resolved deployment to talk to.
type Target struct {
	Branch      BranchContext
	Environment Environment
	Credential  Credential
	ProjectURL  string
	// AdminURL is set for linked projects.
	AdminURL string
}

// Remote is a fully validated remote configuration.
type Remote struct {
	Target
	Manifest       Manifest
	Reconciliation Reconciliation
	// Skew is non-nil when the remote core version differs from the local one.
	Skew *VersionSkew
}

// Warnings returns every non-fatal condition found while validating.
func (r *Remote) Warnings() []error {
	var out []error
	if r.Skew != nil {
		out = append(out, r.Skew)
	}
	for _, w := range r.Reconciliation.Warnings() {
		out = append(out, w)
	}
	return out
}

// Orchestrator runs the link-and-validate flow. It keeps no state between
// runs, so one Orchestrator may serve many projects concurrently.
type Orchestrator struct {
	client   *Client
	branches BranchReader
	auth     *Authenticator
	envs     *Resolver
	log      Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithBranchReader replaces the go-git branch reader.
func WithBranchReader(r BranchReader) Option {
	return func(o *Orchestrator) { o.branches = r }
}

// WithLogger sets the logger for the flow.
func WithLogger(l Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// NewOrchestrator returns an Orchestrator using client for all remote calls.
func NewOrchestrator(client *Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{client: client, branches: GitBranchReader{}, log: nopLogger{}}
	for _, opt := range opts {
		opt(o)
	}
	o.auth = NewAuthenticator(client, o.log)
	o.envs = NewResolver(client, o.log)
	return o
}

// ResolveTarget resolves branch, credential, environment and project URL
// without contacting the deployment.
func (o *Orchestrator) ResolveTarget(ctx context.Context, opts Options) (Target, error) {
	t, err := o.resolveTarget(ctx, opts)
	if err != nil {
		return Target{}, o.abort(ctx, err)
	}
	return t, nil
}

// Run resolves the target, fetches its manifest and reconciles it with the
// local features. On failure it logs exactly one error line and returns the
// classified error; no partial result is returned.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Remote, error) {
	remote, err := o.run(ctx, opts)
	if err != nil {
		return nil, o.abort(ctx, err)
	}
	return remote, nil
}

// FetchManifest resolves the target and fetches its manifest without
// reconciling it. Failures are logged like Run's.
func (o *Orchestrator) FetchManifest(ctx context.Context, opts Options) (Target, Manifest, error) {
	target, manifest, err := o.fetch(ctx, opts)
	if err != nil {
		return Target{}, Manifest{}, o.abort(ctx, err)
	}
	return target, manifest, nil
}

func (o *Orchestrator) fetch(ctx context.Context, opts Options) (Target, Manifest, error) {
	target, err := o.resolveTarget(ctx, opts)
	if err != nil {
		return Target{}, Manifest{}, err
	}
	if err := checkContext(ctx, OpManifest); err != nil {
		return Target{}, Manifest{}, err
	}
	o.log.Info(ctx, "using remote storage from `"+target.ProjectURL+"`")
	manifest, err := o.client.Manifest(ctx, target.ProjectURL, target.Credential.Token, opts.Access)
	if err != nil {
		return Target{}, Manifest{}, err
	}
	return target, manifest, nil
}

func (o *Orchestrator) run(ctx context.Context, opts Options) (*Remote, error) {
	target, manifest, err := o.fetch(ctx, opts)
	if err != nil {
		return nil, err
	}

	remote := &Remote{Target: target, Manifest: manifest}
	if skew := CheckVersion(opts.LocalVersion, manifest.Version); skew != nil {
		remote.Skew = skew
		o.log.Warn(ctx, "`"+target.ProjectURL+"`: "+skew.Error())
	}

	rec := Reconcile(opts.Features, manifest)
	remote.Reconciliation = rec
	for _, w := range rec.Warnings() {
		o.log.Warn(ctx, w.Error())
	}
	if len(rec.Mismatched) > 0 {
		o.log.Warn(ctx, "modified vectorize index(es) will be recreated with the new configuration on deployment and existing vector data will not be migrated")
	}
	if rec.Empty() {
		return nil, &Error{Kind: KindNoUsableStorage, Op: OpReconcile}
	}
	o.log.Info(ctx, "remote storage available: "+rec.Summary(manifest))
	return remote, nil
}

func (o *Orchestrator) resolveTarget(ctx context.Context, opts Options) (Target, error) {
	id := opts.Identity
	branch := ReadBranch(ctx, o.branches, opts.Dir, o.log)
	guessed := opts.Env
	if IsAutoEnv(guessed) {
		guessed = branch.GuessedEnv
	}

	projectURL := opts.ProjectURL
	var err error
	if !id.Linked() {
		if projectURL, err = projectURL.Resolve(guessed, branch.Branch); err != nil {
			return Target{}, err
		}
		// Nothing else can supply a URL for an unlinked project.
		if projectURL.Empty() {
			return Target{}, &Error{Kind: KindMissingProjectURL, Op: OpProjectURL}
		}
	}

	if err := checkContext(ctx, OpCredential); err != nil {
		return Target{}, err
	}
	cred, err := o.auth.Resolve(ctx, id)
	if err != nil {
		return Target{}, err
	}

	if err := checkContext(ctx, OpEnvironment); err != nil {
		return Target{}, err
	}
	env, err := o.envs.Resolve(ctx, EnvRequest{Identity: id, Credential: cred, Branch: branch, Explicit: opts.Env})
	if err != nil {
		return Target{}, err
	}

	target := Target{Branch: branch, Environment: env, Credential: cred}
	if id.Linked() {
		if !cred.Project.TwoEnvironments() && env.URL != "" {
			projectURL = LiteralURL(env.URL)
		}
		if projectURL, err = projectURL.Resolve(env.Name, branch.Branch); err != nil {
			return Target{}, err
		}
		target.AdminURL = AdminURL(id.URL, cred.Project)
		o.log.Info(ctx, "linked to `"+target.AdminURL+"`")
		o.log.Info(ctx, "using `"+env.Name+"` environment")
		if projectURL.Empty() {
			if env.Name == EnvProduction {
				projectURL = LiteralURL(cred.Project.URL)
			} else {
				projectURL = LiteralURL(cred.Project.PreviewURL)
			}
		}
		if projectURL.Empty() {
			return Target{}, &Error{Kind: KindNoDeployment, Op: OpProjectURL, Subject: env.Name}
		}
	}
	target.ProjectURL = projectURL.String()
	return target, nil
}

// abort logs the single fatal line of a failed run.
func (o *Orchestrator) abort(ctx context.Context, err error) error {
	var he *Error
	if !errors.As(err, &he) {
		he = &Error{Err: err}
		err = he
	}
	o.log.Error(ctx, he.Error(), zap.String("kind", he.Kind.String()), zap.Int("status", he.Status))
	return err
}

func checkContext(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return &Error{Kind: KindCancelled, Op: op, Err: err}
	}
	return nil
}
