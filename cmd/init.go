package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kamusis/hubctl/internal/config"
	"github.com/spf13/cobra"
)

// ignoredPaths keep credentials and the local hub data out of git.
var ignoredPaths = []string{".env", ".data"}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create hub.yaml and a .env template in the project",
	Long: `Initialize hubctl in the project directory.

Writes hub.yaml with the default settings and a .env template listing the
credential variables. Existing files are never overwritten. .env and .data
are added to .gitignore.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(_ *cobra.Command, _ []string) error {
	dir, err := filepath.Abs(flagDir)
	if err != nil {
		return fmt.Errorf("cannot resolve project dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}

	printSection("hubctl init")

	// ── 1. hub.yaml ───────────────────────────────────────────────────────────
	cfgPath := config.Path(dir)
	if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
		if err := config.Save(dir, config.Default()); err != nil {
			return err
		}
		printOK("", fmt.Sprintf("Config written: %s", cfgPath))
	} else if err != nil {
		return fmt.Errorf("cannot stat %s: %w", cfgPath, err)
	} else {
		printSkip("", fmt.Sprintf("Config already exists: %s", cfgPath))
	}

	// ── 2. .env template ──────────────────────────────────────────────────────
	created, err := config.EnsureDotEnvTemplate(dir)
	if err != nil {
		return err
	}
	if created {
		printOK("", fmt.Sprintf("Credential template written: %s", config.DotEnvPath(dir)))
	} else {
		printSkip("", fmt.Sprintf("Credential file already exists: %s", config.DotEnvPath(dir)))
	}

	// ── 3. .gitignore ─────────────────────────────────────────────────────────
	added, err := ensureIgnored(filepath.Join(dir, ".gitignore"), ignoredPaths)
	if err != nil {
		return err
	}
	if len(added) > 0 {
		printOK("", fmt.Sprintf("Added to .gitignore: %s", strings.Join(added, ", ")))
	}

	printInfo("", "Fill in .env, then run 'hubctl link <project-key>' or set HUB_PROJECT_URL.")
	return nil
}

// ensureIgnored appends the entries missing from the gitignore file at path.
func ensureIgnored(path string, entries []string) ([]string, error) {
	existing := map[string]bool{}
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		existing[strings.TrimSuffix(strings.TrimPrefix(line, "/"), "/")] = true
	}

	var added []string
	for _, e := range entries {
		if !existing[e] {
			added = append(added, e)
		}
	}
	if len(added) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.Write(data)
	if len(data) > 0 && !strings.HasSuffix(string(data), "\n") {
		sb.WriteString("\n")
	}
	for _, e := range added {
		sb.WriteString(e + "\n")
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return nil, fmt.Errorf("cannot write %s: %w", path, err)
	}
	return added, nil
}
