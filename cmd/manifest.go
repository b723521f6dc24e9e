package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kamusis/hubctl/internal/hub"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var manifestOutput string

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Print the storage manifest of the resolved deployment",
	Args:  cobra.NoArgs,
	RunE:  runManifest,
}

func init() {
	manifestCmd.Flags().StringVarP(&manifestOutput, "output", "o", "json", "output format (json, yaml)")
	rootCmd.AddCommand(manifestCmd)
}

func runManifest(cmd *cobra.Command, _ []string) error {
	if manifestOutput != "json" && manifestOutput != "yaml" {
		return fmt.Errorf("unsupported output format %q (want json or yaml)", manifestOutput)
	}
	p, err := loadProject()
	if err != nil {
		return err
	}
	defer func() { _ = p.log.Sync() }()

	opts, err := p.options("")
	if err != nil {
		return err
	}
	_, m, err := fetchManifest(cmd.Context(), p, opts, newClient(p.log, nil, 0))
	if err != nil {
		return err
	}
	out, err := encodeManifest(m, manifestOutput)
	if err != nil {
		return err
	}
	fmt.Fprint(stdout, out)
	return nil
}

// fetchManifest runs the remote flow up to the manifest. A failure has
// already been logged with its kind and status.
func fetchManifest(ctx context.Context, p *project, opts hub.Options, client *hub.Client) (hub.Target, hub.Manifest, error) {
	target, m, err := hub.NewOrchestrator(client, hub.WithLogger(p.log)).FetchManifest(ctx, opts)
	if err != nil {
		return hub.Target{}, hub.Manifest{}, reported(err)
	}
	return target, m, nil
}

func encodeManifest(m hub.Manifest, format string) (string, error) {
	if format == "yaml" {
		b, err := yaml.Marshal(m)
		if err != nil {
			return "", fmt.Errorf("cannot encode manifest: %w", err)
		}
		return string(b), nil
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("cannot encode manifest: %w", err)
	}
	return string(b) + "\n", nil
}
