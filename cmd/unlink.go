package cmd

import (
	"fmt"

	"github.com/kamusis/hubctl/internal/config"
	"github.com/kamusis/hubctl/internal/state"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var unlinkCmd = &cobra.Command{
	Use:   "unlink",
	Short: "Remove the project key from hub.yaml",
	Long: `Unlink the project. The remote flow then needs HUB_PROJECT_URL (or
project_url in hub.yaml) and HUB_PROJECT_SECRET_KEY.`,
	Args: cobra.NoArgs,
	RunE: runUnlink,
}

func init() {
	rootCmd.AddCommand(unlinkCmd)
}

func runUnlink(cmd *cobra.Command, _ []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	defer func() { _ = p.log.Sync() }()

	key, err := unlinkProject(p)
	if err != nil {
		return err
	}
	if key == "" {
		printSkip("", "Project is not linked in hub.yaml")
		return nil
	}
	if err := state.NewStore(p.cfg.DataDir(p.dir)).Clear(); err != nil {
		p.log.Warn(cmd.Context(), "cannot clear remote snapshot", zap.Error(err))
	}
	printOK("", fmt.Sprintf("Unlinked project %s", key))
	if cfg, err := config.Load(p.dir); err == nil && cfg.ProjectKey != "" {
		printWarn("", fmt.Sprintf("HUB_PROJECT_KEY=%s is still set in the environment or .env", cfg.ProjectKey))
	}
	return nil
}

// unlinkProject clears project_key in hub.yaml and returns the removed key.
func unlinkProject(p *project) (string, error) {
	fileCfg, err := config.ReadFile(p.dir)
	if err != nil {
		return "", err
	}
	key := fileCfg.ProjectKey
	if key == "" {
		return "", nil
	}
	if err := config.SetProjectKey(p.dir, ""); err != nil {
		return "", err
	}
	return key, nil
}
