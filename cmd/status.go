package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kamusis/hubctl/internal/state"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last validated remote configuration",
	Long: `Print the snapshot saved by the last successful 'hubctl remote' run.
No network calls are made.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, _ []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	store := state.NewStore(p.cfg.DataDir(p.dir))
	snap, err := store.Load()
	if errors.Is(err, state.ErrNoSnapshot) {
		printMiss("", err.Error())
		return nil
	}
	if err != nil {
		return err
	}
	printSnapshot(snap, time.Now())
	return nil
}

func printSnapshot(s state.Snapshot, now time.Time) {
	printSection("Remote status")
	printField("Environment", s.Environment)
	branch := s.Branch
	if s.BranchFallback {
		branch += " (fallback)"
	}
	printField("Branch", branch)
	printField("Project URL", s.ProjectURL)
	if s.AdminURL != "" {
		printField("Admin", s.AdminURL)
	}
	if s.ProjectKey != "" {
		printField("Project key", s.ProjectKey)
	}
	printField("Core", fmt.Sprintf("remote %s / local %s", emptyAsNA(s.RemoteVersion), emptyAsNA(s.LocalVersion)))
	printField("Resolved", fmt.Sprintf("%s (%s ago)", s.ResolvedAt.Format(time.RFC3339), now.Sub(s.ResolvedAt).Round(time.Second)))
	if s.NoIndex {
		printField("Indexing", "noindex (preview)")
	}

	printBullet("Storage:")
	for _, u := range s.Usable {
		printOK(u, "available")
	}
	for _, u := range s.Unavailable {
		printMiss(u, "enabled locally, not deployed")
	}
	if len(s.Mismatched) > 0 {
		printWarn("vectorize", "changed indexes: "+strings.Join(s.Mismatched, ", "))
	}

	fmt.Fprintf(stdout, "\n  %d available / %d not deployed / %d changed index(es)\n",
		len(s.Usable), len(s.Unavailable), len(s.Mismatched))
}
