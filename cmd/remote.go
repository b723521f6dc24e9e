package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/kamusis/hubctl/internal/hub"
	"github.com/kamusis/hubctl/internal/state"
	"github.com/kamusis/hubctl/internal/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	remoteEnv         string
	remoteTimeout     time.Duration
	remoteMetricsFile string
)

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Resolve the deployment and validate its remote storage",
	Long: `Resolve the deployment this project should use, fetch its storage manifest
and compare it with the storage enabled in hub.yaml.

The environment is guessed from the git branch unless --env (or remote: <env>
in hub.yaml) names one. Projects deployed with more than two environments
always let the control plane decide.

On success the result is saved to <dir>/remote.json for 'hubctl status'.

Examples:
  hubctl remote
  hubctl remote --env preview
  hubctl remote --metrics-file /var/lib/node_exporter/hubctl.prom`,
	Args: cobra.NoArgs,
	RunE: runRemote,
}

func init() {
	remoteCmd.Flags().StringVar(&remoteEnv, "env", "", "environment to use instead of the configured one (auto guesses from the branch)")
	remoteCmd.Flags().DurationVar(&remoteTimeout, "timeout", 30*time.Second, "timeout of each remote call")
	remoteCmd.Flags().StringVar(&remoteMetricsFile, "metrics-file", "", "write remote-call metrics to this file in Prometheus text format")
	rootCmd.AddCommand(remoteCmd)
}

func runRemote(cmd *cobra.Command, _ []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	defer func() { _ = p.log.Sync() }()

	if !p.cfg.RemoteEnabled() && remoteEnv == "" {
		printSkip("", "remote storage is disabled in hub.yaml (remote: off)")
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	metrics := telemetry.New()
	remote, err := connectRemote(ctx, p, remoteEnv, newClient(p.log, metrics, remoteTimeout))
	if remoteMetricsFile != "" {
		if werr := metrics.WriteTextfile(remoteMetricsFile); werr != nil {
			p.log.Warn(ctx, "cannot write metrics", zap.Error(werr))
		}
	}
	if err != nil {
		return err
	}
	printRemote(remote)
	return nil
}

// connectRemote runs the remote flow for p and saves the snapshot. Flow
// failures come back already reported.
func connectRemote(ctx context.Context, p *project, env string, client *hub.Client) (*hub.Remote, error) {
	opts, err := p.options(env)
	if err != nil {
		return nil, err
	}
	remote, err := hub.NewOrchestrator(client, hub.WithLogger(p.log)).Run(ctx, opts)
	if err != nil {
		return nil, reported(err)
	}

	snap, err := state.FromRemote(remote, p.cfg.ProjectKey, version, time.Now())
	if err != nil {
		return nil, err
	}
	store := state.NewStore(p.cfg.DataDir(p.dir))
	if err := store.Save(snap); err != nil {
		// The remote is usable even when the snapshot cannot be written.
		p.log.Warn(ctx, "cannot save remote snapshot", zap.String("path", store.Path()), zap.Error(err))
	}
	return remote, nil
}

func printRemote(r *hub.Remote) {
	printSection("Remote")
	printField("Environment", r.Environment.Name)
	printField("Branch", r.Branch.Branch)
	printField("Project URL", r.ProjectURL)
	if r.AdminURL != "" {
		printField("Admin", r.AdminURL)
	}
	printField("Core", fmt.Sprintf("remote %s / local %s", emptyAsNA(r.Manifest.Version), version))

	printBullet("Storage:")
	for _, s := range r.Reconciliation.Usable {
		if s == hub.StorageVectorize {
			printOK(s, strings.Join(r.Manifest.IndexNames(), ", "))
			continue
		}
		printOK(s, "available")
	}
	for _, s := range r.Reconciliation.Unavailable {
		printMiss(s, "enabled locally, not deployed")
	}
	for _, m := range r.Reconciliation.Mismatched {
		printWarn(hub.StorageVectorize, fmt.Sprintf("index %s changed (%d → %d dimensions, %s → %s)",
			m.Name, m.Remote.Dimensions, m.Local.Dimensions, m.Remote.Metric, m.Local.Metric))
	}
	if r.Skew != nil {
		printWarn("", "core version differs: "+r.Skew.Direction())
	}
	if r.Environment.Name == hub.EnvPreview {
		printInfo("", "preview deployment: pages are served with noindex")
	}
}
