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

var (
	flagDir       string
	flagLogLevel  string
	flagLogFormat string
)

var rootCmd = &cobra.Command{
	Use:           "hubctl",
	Short:         "Connect a project to its deployed hub storage",
	SilenceUsage:  true, // don't print usage on operational errors
	SilenceErrors: true, // Execute prints, unless the flow already logged it
	Long: `hubctl resolves which deployment of a project to talk to (from the git
branch, the linked project and its environments), checks the deployment's
storage manifest against the storage enabled in hub.yaml, and reports what
can be used remotely.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagDir, "dir", "C", ".", "project directory")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (trace, debug, info, warn, error); overrides HUB_LOG_LEVEL")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "log format (console, json); overrides HUB_LOG_FORMAT")
}

// Execute is called by main.go.
func Execute() {
	ctx := logging.WithRunID(context.Background())
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !alreadyReported(err) {
			printErr("", err.Error())
		}
		os.Exit(1)
	}
}

// reportedError marks a failure the remote flow has already logged.
type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}

func alreadyReported(err error) bool {
	var re *reportedError
	return errors.As(err, &re)
}

// project is the loaded state every command starts from.
type project struct {
	dir string
	cfg *config.Config
	log *logging.Logger
}

// loadProject reads the configuration of the --dir project and builds the
// logger it asks for.
func loadProject() (*project, error) {
	dir, err := filepath.Abs(flagDir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve project dir: %w", err)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot load config: %w\nRun 'hubctl init' first.", err)
	}
	logCfg := cfg.Log
	if flagLogLevel != "" {
		logCfg.Level = flagLogLevel
	}
	if flagLogFormat != "" {
		logCfg.Format = flagLogFormat
	}
	log, err := logging.New(logCfg)
	if err != nil {
		return nil, err
	}
	return &project{dir: dir, cfg: cfg, log: log}, nil
}

// options builds the remote flow input for env ("" keeps the configured one).
func (p *project) options(env string) (hub.Options, error) {
	if env == "" {
		env = p.cfg.RemoteEnv()
	}
	projectURL, err := p.cfg.ResolveProjectURL()
	if err != nil {
		return hub.Options{}, err
	}
	return hub.Options{
		Dir:          p.dir,
		Identity:     p.cfg.Identity(),
		Env:          env,
		ProjectURL:   projectURL,
		Access:       p.cfg.Access(),
		Features:     p.cfg.LocalFeatures(),
		LocalVersion: version,
	}, nil
}

func newClient(log hub.Logger, recorder hub.Recorder, timeout time.Duration) *hub.Client {
	opts := []hub.ClientOption{
		hub.WithUserAgent("hubctl/" + version),
		hub.WithClientLogger(log),
	}
	if recorder != nil {
		opts = append(opts, hub.WithRecorder(recorder))
	}
	if timeout > 0 {
		opts = append(opts, hub.WithTimeout(timeout))
	}
	return hub.NewClient(opts...)
}
