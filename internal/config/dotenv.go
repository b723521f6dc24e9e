package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DotEnvPath returns the path to the project's dotenv file (dir/.env).
func DotEnvPath(dir string) string {
	return filepath.Join(dir, ".env")
}

// LoadDotEnv reads dir/.env and returns key/value pairs.
//
// Parsing rules:
// - Lines starting with '#' are ignored.
// - Empty lines are ignored.
// - An optional leading "export " is dropped.
// - Lines must be of form KEY=VALUE.
// - Whitespace around KEY is trimmed.
// - VALUE is taken as-is, except one pair of matching surrounding quotes is removed.
func LoadDotEnv(dir string) (map[string]string, error) {
	p := DotEnvPath(dir)

	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("cannot open dotenv file %s: %w", p, err)
	}
	defer f.Close()

	out := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		i := strings.Index(line, "=")
		if i <= 0 {
			continue
		}
		k := strings.TrimSpace(line[:i])
		if k == "" {
			continue
		}
		out[k] = unquote(line[i+1:])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read dotenv file %s: %w", p, err)
	}
	return out, nil
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// EnsureDotEnvTemplate creates dir/.env if it does not already exist.
//
// The template lists the credential keys with empty values so users can fill
// them in; secrets belong here rather than in hub.yaml.
func EnsureDotEnvTemplate(dir string) (bool, error) {
	p := DotEnvPath(dir)

	if _, err := os.Stat(p); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("cannot stat dotenv file %s: %w", p, err)
	}

	body := "" +
		"HUB_PROJECT_SECRET_KEY=\n" +
		"HUB_USER_TOKEN=\n" +
		"HUB_PROJECT_URL=\n" +
		"HUB_CLOUDFLARE_ACCESS_CLIENT_ID=\n" +
		"HUB_CLOUDFLARE_ACCESS_CLIENT_SECRET=\n"

	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		return false, fmt.Errorf("cannot write dotenv template %s: %w", p, err)
	}
	return true, nil
}
