package hub

import (
	"errors"
	"fmt"
)

// Kind classifies a failure of the remote flow. Every kind except
// KindUnknown is fatal for the flow.
type Kind int

const (
	KindUnknown Kind = iota
	KindOffline
	KindUnauthenticated
	KindNotFound
	KindServer
	KindLinkFailed
	KindEnvironment
	KindNoDeployment
	KindNoUsableStorage
	KindMissingCredential
	KindMissingProjectURL
	KindCancelled
)

var kindNames = map[Kind]string{
	KindUnknown:           "unknown",
	KindOffline:           "offline",
	KindUnauthenticated:   "unauthenticated",
	KindNotFound:          "not_found",
	KindServer:            "server_error",
	KindLinkFailed:        "link_failed",
	KindEnvironment:       "environment",
	KindNoDeployment:      "no_deployment",
	KindNoUsableStorage:   "no_usable_storage",
	KindMissingCredential: "missing_credential",
	KindMissingProjectURL: "missing_project_url",
	KindCancelled:         "cancelled",
}

// detailed kinds append the underlying error to Error().
func (k Kind) detailed() bool {
	switch k {
	case KindOffline, KindCancelled, KindUnknown, KindMissingProjectURL, KindServer:
		return true
	}
	return false
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Operations reported in Error.Op.
const (
	OpProjectLookup = "project lookup"
	OpProjectProbe  = "project probe"
	OpEnvironment   = "determine environment"
	OpManifest      = "fetch manifest"
	OpCredential    = "resolve credential"
	OpProjectURL    = "resolve project url"
	OpReconcile     = "reconcile"
)

// Error is a classified failure of one step of the remote flow.
type Error struct {
	Kind Kind
	Op   string
	// Status is the HTTP status when one was received.
	Status int
	// Subject names what the step was about: a project key, a branch or an
	// environment, depending on Kind.
	Subject string
	// AccessConfigured is set on manifest authorization failures when
	// platform-access credentials were sent.
	AccessConfigured bool
	Err              error
}

// Sentinels for errors.Is.
var (
	ErrOffline           = &Error{Kind: KindOffline}
	ErrUnauthenticated   = &Error{Kind: KindUnauthenticated}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrServer            = &Error{Kind: KindServer}
	ErrLinkFailed        = &Error{Kind: KindLinkFailed}
	ErrEnvironment       = &Error{Kind: KindEnvironment}
	ErrNoDeployment      = &Error{Kind: KindNoDeployment}
	ErrNoUsableStorage   = &Error{Kind: KindNoUsableStorage}
	ErrMissingCredential = &Error{Kind: KindMissingCredential}
	ErrMissingProjectURL = &Error{Kind: KindMissingProjectURL}
	ErrCancelled         = &Error{Kind: KindCancelled}
)

func (e *Error) Error() string {
	msg := e.Message()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil && e.Kind.detailed() {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Message is the user-facing description of the failure.
func (e *Error) Message() string {
	switch e.Kind {
	case KindOffline:
		return "it seems that you are offline, check your network connection"
	case KindUnauthenticated:
		if e.Op == OpManifest {
			msg := "authorization failed, make sure to provide a valid HUB_PROJECT_SECRET_KEY or a valid HUB_USER_TOKEN"
			if e.AccessConfigured {
				msg += ", and ensure the provided HUB_CLOUDFLARE_ACCESS_CLIENT_ID and HUB_CLOUDFLARE_ACCESS_CLIENT_SECRET are valid"
			}
			return msg
		}
		return "you are not logged in, make sure HUB_USER_TOKEN is set and still valid"
	case KindNotFound:
		return "project not found, make sure to deploy the project or set HUB_PROJECT_URL to the deployed URL"
	case KindServer:
		return "internal server error"
	case KindLinkFailed:
		return fmt.Sprintf("failed to fetch linked project `%s`, make sure to run `hubctl link` again", e.Subject)
	case KindEnvironment:
		return fmt.Sprintf("failed to determine the environment for branch `%s`", e.Subject)
	case KindNoDeployment:
		return fmt.Sprintf("no deployment found for `%s`, make sure to deploy the project first", e.Subject)
	case KindNoUsableStorage:
		return "no remote storage available: enable at least one storage option in hub.yaml and deploy a new version before using remote storage"
	case KindMissingCredential:
		if e.Subject != "" {
			return fmt.Sprintf("project `%s` is linked but no user token was found, set HUB_USER_TOKEN", e.Subject)
		}
		return "no project secret key found, set HUB_PROJECT_SECRET_KEY"
	case KindMissingProjectURL:
		return "no project URL defined, link the project with `hubctl link` or set HUB_PROJECT_URL to the deployed URL (if self-hosted)"
	case KindCancelled:
		return "cancelled"
	}
	if e.Err != nil {
		return "unexpected error"
	}
	return "unknown error"
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var he *Error
	if errors.As(err, &he) {
		return he.Kind
	}
	return KindUnknown
}

// MismatchError is a non-fatal configuration mismatch between the local
// features and the remote manifest. Either Storage is set (enabled locally,
// absent remotely) or Index is set (vector index shape changed).
type MismatchError struct {
	Storage string
	Index   string
	Local   VectorIndex
	Remote  VectorIndex
}

func (e *MismatchError) Error() string {
	if e.Index != "" {
		return fmt.Sprintf("vectorize index `%s` configuration changed: remote `%d` dimensions - `%s` metric, local `%d` dimensions - `%s` metric",
			e.Index, e.Remote.Dimensions, e.Remote.Metric, e.Local.Dimensions, e.Local.Metric)
	}
	return fmt.Sprintf("remote storage `%s` is enabled locally but it's not enabled in the remote project, deploy a new version with `%s` enabled to use it remotely",
		e.Storage, e.Storage)
}
