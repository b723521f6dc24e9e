package cmd

import (
	"github.com/kamusis/hubctl/internal/hub"
	"github.com/kamusis/hubctl/internal/logging"
	"github.com/spf13/cobra"
)

var envName string

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Show which deployment the remote flow would use",
	Long: `Resolve branch, credential, environment and project URL without fetching
the deployment's manifest.`,
	Args: cobra.NoArgs,
	RunE: runEnv,
}

func init() {
	envCmd.Flags().StringVar(&envName, "env", "", "environment to use instead of the configured one")
	rootCmd.AddCommand(envCmd)
}

func runEnv(cmd *cobra.Command, _ []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	defer func() { _ = p.log.Sync() }()

	opts, err := p.options(envName)
	if err != nil {
		return err
	}
	client := newClient(p.log, nil, 0)
	target, err := hub.NewOrchestrator(client, hub.WithLogger(p.log)).ResolveTarget(cmd.Context(), opts)
	if err != nil {
		return reported(err)
	}
	printTarget(target, p.cfg.Identity())
	return nil
}

func printTarget(t hub.Target, id hub.Identity) {
	printSection("Environment")
	branch := t.Branch.Branch
	if t.Branch.Fallback {
		branch += " (fallback)"
	}
	printField("Branch", branch)
	printField("Environment", t.Environment.Name)
	if t.Environment.BranchMatchStrategy != "" {
		printField("Matched by", t.Environment.BranchMatchStrategy)
	}
	printField("Project URL", t.ProjectURL)
	if t.AdminURL != "" {
		printField("Admin", t.AdminURL)
	}
	printField("Credential", credentialSource(id, t.Credential))
}

// credentialSource names where the token came from, never the token.
func credentialSource(id hub.Identity, cred hub.Credential) string {
	switch {
	case cred.Project != nil && cred.Token != id.UserToken:
		return "project token " + logging.Redact(cred.Token)
	case id.Linked():
		return "HUB_USER_TOKEN " + logging.Redact(cred.Token)
	case id.ProjectSecretKey != "":
		return "HUB_PROJECT_SECRET_KEY " + logging.Redact(cred.Token)
	default:
		return "HUB_USER_TOKEN " + logging.Redact(cred.Token)
	}
}
