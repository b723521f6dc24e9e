package hub

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"go.uber.org/zap"
)

// ErrDetachedHead indicates HEAD does not point at a branch.
var ErrDetachedHead = errors.New("HEAD is not on a branch")

// BranchReader reads the current branch of the project at dir.
type BranchReader interface {
	CurrentBranch(ctx context.Context, dir string) (string, error)
}

// BranchFunc adapts a function to BranchReader.
type BranchFunc func(ctx context.Context, dir string) (string, error)

func (f BranchFunc) CurrentBranch(ctx context.Context, dir string) (string, error) {
	return f(ctx, dir)
}

// GitBranchReader reads HEAD with go-git, so no git binary is required.
// The repository is discovered by walking up from dir.
type GitBranchReader struct{}

func (GitBranchReader) CurrentBranch(ctx context.Context, dir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("open repository at %s: %w", dir, err)
	}
	// Read HEAD without resolving it so unborn branches still report a name.
	head, err := repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", fmt.Errorf("read HEAD: %w", err)
	}
	if head.Type() != plumbing.SymbolicReference || !head.Target().IsBranch() {
		return "", ErrDetachedHead
	}
	return head.Target().Short(), nil
}

// TwoEnvironment maps a branch to production or preview.
func TwoEnvironment(branch, productionBranch string) string {
	if productionBranch == "" {
		productionBranch = DefaultBranch
	}
	if branch == productionBranch {
		return EnvProduction
	}
	return EnvPreview
}

// ReadBranch reads the current branch and guesses the environment from it.
// A failure is never fatal: it logs a warning and falls back to DefaultBranch
// and production.
func ReadBranch(ctx context.Context, r BranchReader, dir string, log Logger) BranchContext {
	if log == nil {
		log = nopLogger{}
	}
	branch, err := r.CurrentBranch(ctx, dir)
	if err != nil || branch == "" {
		fields := []zap.Field{zap.String("dir", dir)}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		log.Warn(ctx, "could not guess the environment from the branch name, using `production` as default", fields...)
		return BranchContext{Branch: DefaultBranch, GuessedEnv: EnvProduction, Fallback: true}
	}
	return BranchContext{Branch: branch, GuessedEnv: TwoEnvironment(branch, DefaultBranch)}
}
