package hub

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// URLFunc computes a deployment URL once the environment and branch are known.
type URLFunc func(env, branch string) (string, error)

// ProjectURL is either a literal deployment URL or one computed from the
// environment and branch. A computed URL is resolved once and then behaves
// as a literal.
type ProjectURL struct {
	literal string
	compute URLFunc
}

// LiteralURL returns a fixed project URL.
func LiteralURL(s string) ProjectURL { return ProjectURL{literal: s} }

// ComputedURL returns a project URL computed by fn.
func ComputedURL(fn URLFunc) ProjectURL { return ProjectURL{compute: fn} }

// TemplateURL parses a text/template with sprig functions. The template sees
// .Env and .Branch, e.g. "https://{{ .Branch | replace \"/\" \"-\" }}.app.pages.dev".
func TemplateURL(text string) (ProjectURL, error) {
	t, err := template.New("project_url").Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(text)
	if err != nil {
		return ProjectURL{}, fmt.Errorf("invalid project url template: %w", err)
	}
	return ComputedURL(func(env, branch string) (string, error) {
		var sb strings.Builder
		data := struct{ Env, Branch string }{env, branch}
		if err := t.Execute(&sb, data); err != nil {
			return "", fmt.Errorf("render project url template: %w", err)
		}
		return strings.TrimSpace(sb.String()), nil
	}), nil
}

// Computed reports whether the URL still needs resolving.
func (u ProjectURL) Computed() bool { return u.compute != nil }

// Empty reports whether there is neither a literal nor a function.
func (u ProjectURL) Empty() bool { return u.compute == nil && u.literal == "" }

// String returns the literal value, or "" while still computed.
func (u ProjectURL) String() string { return u.literal }

// Resolve evaluates a computed URL for env and branch and returns it as a
// literal. Literals are returned unchanged.
func (u ProjectURL) Resolve(env, branch string) (ProjectURL, error) {
	if u.compute == nil {
		return u, nil
	}
	s, err := u.compute(env, branch)
	if err != nil {
		return ProjectURL{}, &Error{Kind: KindMissingProjectURL, Op: OpProjectURL, Err: err}
	}
	return LiteralURL(s), nil
}
