package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kamusis/hubctl/internal/config"
	"github.com/kamusis/hubctl/internal/hub"
	"github.com/kamusis/hubctl/internal/logging"
	"github.com/spf13/cobra"
)

var doctorTimeout time.Duration

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run pre-flight checks",
	Long: `Check that hubctl's configuration, git branch, credentials and control-plane
access are in order. Run this command when something seems wrong, or before
filing a bug report.

Unlike 'hubctl remote', control-plane problems are reported as warnings:
features such as AI bindings in development only need them when used.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().DurationVar(&doctorTimeout, "timeout", 10*time.Second, "timeout of the project probe")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	allOK := true
	failD := func(format string, args ...any) {
		printErr("", fmt.Sprintf(format, args...))
		allOK = false
	}

	printSection("hubctl doctor")
	fmt.Fprintln(stdout)

	dir, err := filepath.Abs(flagDir)
	if err != nil {
		return fmt.Errorf("cannot resolve project dir: %w", err)
	}

	// ── Check 1: hub.yaml ─────────────────────────────────────────────────────
	fmt.Fprintln(stdout, "[ hub.yaml ]")
	if _, err := os.Stat(config.Path(dir)); errors.Is(err, os.ErrNotExist) {
		printWarn("", "hub.yaml not found, using defaults (run 'hubctl init')")
	}
	cfg, err := config.Load(dir)
	if err != nil {
		failD("invalid configuration: %v", err)
		fmt.Fprintln(stdout)
		return fmt.Errorf("doctor found problems")
	}
	features := cfg.LocalFeatures().Enabled()
	if len(features) == 0 {
		printWarn("", "no storage enabled")
	} else {
		printOK("", fmt.Sprintf("storage enabled: %v", features))
	}
	if !cfg.RemoteEnabled() {
		printSkip("", "remote storage disabled (remote: off)")
	}
	fmt.Fprintln(stdout)

	// ── Check 2: git branch ───────────────────────────────────────────────────
	fmt.Fprintln(stdout, "[ git branch ]")
	if branch, err := (hub.GitBranchReader{}).CurrentBranch(cmd.Context(), dir); err != nil {
		printWarn("", fmt.Sprintf("cannot read branch (%v), the production environment will be assumed", err))
	} else {
		printOK("", fmt.Sprintf("%s → %s", branch, hub.TwoEnvironment(branch, hub.DefaultBranch)))
	}
	fmt.Fprintln(stdout)

	// ── Check 3: credentials and project URL ──────────────────────────────────
	fmt.Fprintln(stdout, "[ credentials ]")
	id := cfg.Identity()
	if id.Linked() {
		printOK("", fmt.Sprintf("linked to project %s", id.ProjectKey))
		if id.UserToken == "" {
			failD("HUB_USER_TOKEN is not set, it is required for linked projects")
		} else {
			printOK("", "HUB_USER_TOKEN "+logging.Redact(id.UserToken))
		}
		if id.ProjectSecretKey != "" {
			printWarn("", "HUB_PROJECT_SECRET_KEY is ignored because the project is linked")
		}
	} else {
		switch {
		case id.ProjectSecretKey != "":
			printOK("", "HUB_PROJECT_SECRET_KEY "+logging.Redact(id.ProjectSecretKey))
		case id.UserToken != "":
			printOK("", "HUB_USER_TOKEN "+logging.Redact(id.UserToken))
		default:
			failD("no credential: set HUB_PROJECT_SECRET_KEY or link the project")
		}
		if cfg.ProjectURL == "" && cfg.ProjectURLTemplate == "" {
			failD("no project URL: set HUB_PROJECT_URL or link the project")
		} else {
			printOK("", "project URL configured")
		}
	}
	access := cfg.Access()
	if access.ClientID != "" || access.ClientSecret != "" {
		if access.Configured() {
			printOK("", "access gateway service token configured")
		} else {
			printWarn("", "only one of HUB_CLOUDFLARE_ACCESS_CLIENT_ID / _SECRET is set, the headers will not be sent")
		}
	}
	fmt.Fprintln(stdout)

	// ── Check 4: control plane ────────────────────────────────────────────────
	if id.Linked() && id.UserToken != "" {
		fmt.Fprintln(stdout, "[ control plane ]")
		ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
		defer cancel()
		if msg, ok := probeProject(ctx, newClient(logging.NewNop(), nil, doctorTimeout), id); ok {
			printOK("", msg)
		} else {
			printWarn("", msg)
		}
		fmt.Fprintln(stdout)
	}

	// ── Check 5: hub data dir ─────────────────────────────────────────────────
	fmt.Fprintln(stdout, "[ hub data dir ]")
	dataDir := cfg.DataDir(dir)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		failD("cannot create %s: %v", dataDir, err)
	} else {
		printOK("", dataDir)
	}
	fmt.Fprintln(stdout)

	if !allOK {
		return fmt.Errorf("doctor found problems")
	}
	printOK("", "all checks passed")
	return nil
}

// probeProject checks the linked project. Failures are advisory here.
func probeProject(ctx context.Context, client *hub.Client, id hub.Identity) (string, bool) {
	err := client.ProbeProject(ctx, id)
	switch hub.KindOf(err) {
	case hub.KindUnknown:
		if err == nil {
			return fmt.Sprintf("project %s is reachable", id.ProjectKey), true
		}
		return fmt.Sprintf("project probe failed: %v", err), false
	case hub.KindOffline:
		return "you seem to be offline, remote-only features such as AI will not work in development", false
	case hub.KindUnauthenticated:
		return "you are not logged in (HUB_USER_TOKEN rejected), remote-only features such as AI will not work in development", false
	case hub.KindLinkFailed:
		return fmt.Sprintf("project %s could not be found, run 'hubctl link' again", id.ProjectKey), false
	}
	return fmt.Sprintf("project probe failed: %v", err), false
}
