package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kamusis/hubctl/internal/config"
	"github.com/kamusis/hubctl/internal/hub"
	"github.com/kamusis/hubctl/internal/logging"
	"github.com/kamusis/hubctl/internal/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	fleetParallel    int
	fleetTimeout     time.Duration
	fleetMetricsFile string
)

var fleetCmd = &cobra.Command{
	Use:   "fleet DIR...",
	Short: "Run the remote flow for many projects at once",
	Long: `Resolve and validate the remote storage of every project directory given.

Projects run concurrently (at most --parallel at a time) and share one HTTP
connection pool. A failing project does not stop the others; the command
fails if any project failed.

Examples:
  hubctl fleet apps/*
  hubctl fleet --parallel 8 site docs dashboard`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFleet,
}

func init() {
	fleetCmd.Flags().IntVarP(&fleetParallel, "parallel", "p", 4, "maximum number of projects processed at once")
	fleetCmd.Flags().DurationVar(&fleetTimeout, "timeout", 30*time.Second, "timeout of each remote call")
	fleetCmd.Flags().StringVar(&fleetMetricsFile, "metrics-file", "", "write remote-call metrics to this file in Prometheus text format")
	rootCmd.AddCommand(fleetCmd)
}

// fleetResult is the outcome of one project.
type fleetResult struct {
	Dir    string
	Remote *hub.Remote
	Err    error
}

func runFleet(cmd *cobra.Command, args []string) error {
	logCfg := logging.DefaultConfig()
	if flagLogLevel != "" {
		logCfg.Level = flagLogLevel
	}
	if flagLogFormat != "" {
		logCfg.Format = flagLogFormat
	}
	log, err := logging.New(logCfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	metrics := telemetry.New()
	client := newClient(log, metrics, fleetTimeout)
	results := fleet(ctx, args, fleetParallel, client, log)

	if fleetMetricsFile != "" {
		if err := metrics.WriteTextfile(fleetMetricsFile); err != nil {
			log.Warn(ctx, "cannot write metrics", zap.Error(err))
		}
	}
	return printFleet(results)
}

// fleet runs connectRemote for every dir with at most parallel in flight.
// Results come back in dir order.
func fleet(ctx context.Context, dirs []string, parallel int, client *hub.Client, log *logging.Logger) []fleetResult {
	results := make([]fleetResult, len(dirs))
	var g errgroup.Group
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, dir := range dirs {
		g.Go(func() error {
			results[i] = fleetOne(ctx, dir, client, log)
			// Never fail the group: one project must not cancel the others.
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(results, func(i, j int) bool { return results[i].Dir < results[j].Dir })
	return results
}

func fleetOne(ctx context.Context, dir string, client *hub.Client, log *logging.Logger) fleetResult {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fleetResult{Dir: dir, Err: err}
	}
	ctx = logging.WithProject(ctx, dir)
	cfg, err := config.Load(abs)
	if err != nil {
		log.Error(ctx, "cannot load config", zap.Error(err))
		return fleetResult{Dir: dir, Err: reported(err)}
	}
	if !cfg.RemoteEnabled() {
		return fleetResult{Dir: dir}
	}
	p := &project{dir: abs, cfg: cfg, log: log}
	remote, err := connectRemote(ctx, p, "", client)
	return fleetResult{Dir: dir, Remote: remote, Err: err}
}

func printFleet(results []fleetResult) error {
	printSection("Fleet")
	ok, skipped, failed := 0, 0, 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
			printErr(r.Dir, hubMessage(r.Err))
		case r.Remote == nil:
			skipped++
			printSkip(r.Dir, "remote storage disabled")
		default:
			ok++
			printOK(r.Dir, fmt.Sprintf("%s → %s [%s]", r.Remote.Environment.Name, r.Remote.ProjectURL,
				strings.Join(r.Remote.Reconciliation.Usable, ", ")))
		}
	}
	fmt.Fprintf(stdout, "\n  %d ok / %d skipped / %d failed  (total: %d projects)\n", ok, skipped, failed, len(results))
	if failed > 0 {
		return reported(fmt.Errorf("%d of %d projects failed", failed, len(results)))
	}
	return nil
}

// hubMessage prefers the user-facing message of a classified failure.
func hubMessage(err error) string {
	var he *hub.Error
	if errors.As(err, &he) {
		return he.Message()
	}
	return err.Error()
}
