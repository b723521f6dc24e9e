package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kamusis/hubctl/internal/config"
	"github.com/kamusis/hubctl/internal/hub"
	"github.com/kamusis/hubctl/internal/state"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var linkTimeout time.Duration

var linkCmd = &cobra.Command{
	Use:   "link <project-key>",
	Short: "Link the project to a project of the control plane",
	Long: `Look the project up on the control plane with HUB_USER_TOKEN and store its
key in hub.yaml. Linked projects get their deployment URL and environments
from the control plane.

Examples:
  hubctl link 7d4f2a
  HUB_USER_TOKEN=... hubctl link 7d4f2a`,
	Args: cobra.ExactArgs(1),
	RunE: runLink,
}

func init() {
	linkCmd.Flags().DurationVar(&linkTimeout, "timeout", 30*time.Second, "timeout of the project lookup")
	rootCmd.AddCommand(linkCmd)
}

func runLink(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	defer func() { _ = p.log.Sync() }()

	project, err := linkProject(cmd.Context(), p, args[0], newClient(p.log, nil, linkTimeout))
	if err != nil {
		return err
	}
	printOK("", fmt.Sprintf("Linked to %s", hub.AdminURL(p.cfg.URL, project)))
	if env := os.Getenv("HUB_PROJECT_KEY"); env != "" && env != args[0] {
		printWarn("", fmt.Sprintf("HUB_PROJECT_KEY=%s is set and takes precedence over hub.yaml", env))
	}
	return nil
}

// linkProject verifies key and persists it. Only project_key in hub.yaml is
// rewritten, so values coming from the environment are not saved and the
// rest of the file stays as the user wrote it.
func linkProject(ctx context.Context, p *project, key string, client *hub.Client) (*hub.Project, error) {
	id := p.cfg.Identity()
	id.ProjectKey = key
	if id.UserToken == "" {
		return nil, &hub.Error{Kind: hub.KindMissingCredential, Op: hub.OpCredential, Subject: key}
	}
	project, err := client.Project(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := config.SetProjectKey(p.dir, key); err != nil {
		return nil, err
	}
	// A snapshot of the previous target no longer applies.
	if err := state.NewStore(p.cfg.DataDir(p.dir)).Clear(); err != nil {
		p.log.Warn(ctx, "cannot clear remote snapshot", zap.Error(err))
	}
	return project, nil
}
