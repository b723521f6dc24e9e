package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kamusis/hubctl/internal/hub"
	"github.com/kamusis/hubctl/internal/logging"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

const (
	// FileName is the project configuration file, relative to the project dir.
	FileName = "hub.yaml"

	DefaultURL = "https://admin.hub.nuxt.com"
	DefaultDir = ".data/hub"

	maxConfigFileSize = 1 << 20
)

// envKeys maps the supported environment variables to config keys. Only
// these are read from the process environment and from .env.
var envKeys = map[string]string{
	"HUB_REMOTE":                          "remote",
	"HUB_URL":                             "url",
	"HUB_PROJECT_URL":                     "project_url",
	"HUB_PROJECT_KEY":                     "project_key",
	"HUB_PROJECT_SECRET_KEY":              "project_secret_key",
	"HUB_USER_TOKEN":                      "user_token",
	"HUB_CLOUDFLARE_ACCESS_CLIENT_ID":     "cloudflare_access.client_id",
	"HUB_CLOUDFLARE_ACCESS_CLIENT_SECRET": "cloudflare_access.client_secret",
	"HUB_DIR":                             "dir",
	"HUB_LOG_LEVEL":                       "log.level",
	"HUB_LOG_FORMAT":                      "log.format",
}

// EnvKeys returns the supported environment variable names, sorted.
func EnvKeys() []string {
	out := make([]string, 0, len(envKeys))
	for k := range envKeys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Access is the service token of an access gateway in front of the deployment.
type Access struct {
	ClientID     string `koanf:"client_id" yaml:"client_id,omitempty"`
	ClientSecret string `koanf:"client_secret" yaml:"client_secret,omitempty"`
}

// Config is the effective configuration of one project: hub.yaml overlaid
// with .env and the process environment. Secrets are never written back.
type Config struct {
	// Remote is "auto" to guess the environment from the branch, a concrete
	// environment name, or "off".
	Remote string `koanf:"remote" yaml:"remote,omitempty"`
	// URL is the control-plane base URL.
	URL                string                     `koanf:"url" yaml:"url,omitempty"`
	ProjectURL         string                     `koanf:"project_url" yaml:"project_url,omitempty"`
	ProjectURLTemplate string                     `koanf:"project_url_template" yaml:"project_url_template,omitempty"`
	ProjectKey         string                     `koanf:"project_key" yaml:"project_key,omitempty"`
	ProjectSecretKey   string                     `koanf:"project_secret_key" yaml:"-"`
	UserToken          string                     `koanf:"user_token" yaml:"-"`
	CloudflareAccess   Access                     `koanf:"cloudflare_access" yaml:"-"`
	Dir                string                     `koanf:"dir" yaml:"dir,omitempty"`
	Storage            map[string]bool            `koanf:"storage" yaml:"storage,omitempty"`
	Vectorize          map[string]hub.VectorIndex `koanf:"vectorize" yaml:"vectorize,omitempty"`
	Log                logging.Config             `koanf:"log" yaml:"log,omitempty"`
}

// RemoteOff disables remote storage.
const RemoteOff = "off"

// Path returns the hub.yaml path for the project at dir.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Load reads the configuration of the project at dir.
//
// Precedence, highest first: process environment, dir/.env, hub.yaml,
// defaults. A missing hub.yaml is not an error.
func Load(dir string) (*Config, error) {
	k := koanf.New(".")

	path := Path(dir)
	content, err := readLimited(path)
	if err != nil {
		return nil, err
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
		}
	}

	dotenv, err := LoadDotEnv(dir)
	if err != nil {
		return nil, err
	}
	for name, value := range dotenv {
		key, ok := envKeys[name]
		if !ok || value == "" {
			continue
		}
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("cannot apply %s from .env: %w", name, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("HUB_", ".", func(name, value string) (string, interface{}) {
		key, ok := envKeys[name]
		if !ok || value == "" {
			return "", nil
		}
		return key, value
	}), nil); err != nil {
		return nil, fmt.Errorf("cannot load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("cannot decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func readLimited(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("cannot stat config %s: %w", path, err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config %s is larger than %d bytes", path, maxConfigFileSize)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}
	return data, nil
}

func applyDefaults(cfg *Config) {
	cfg.Remote = strings.TrimSpace(strings.ToLower(cfg.Remote))
	// A YAML boolean decodes as "1"/"0" through weak typing.
	switch cfg.Remote {
	case "", "1", "true":
		cfg.Remote = hub.AutoEnv
	case "0", "false":
		cfg.Remote = RemoteOff
	}
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Dir == "" {
		cfg.Dir = DefaultDir
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = logging.DefaultConfig().Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = logging.DefaultConfig().Format
	}
}

// Validate checks the control-plane URL, storage names and vector indexes.
func (c *Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("url %q must be an absolute URL", c.URL)
	}
	if c.ProjectURL != "" && c.ProjectURLTemplate != "" {
		return errors.New("project_url and project_url_template are mutually exclusive")
	}
	for name := range c.Storage {
		if !knownStorage(name) {
			return fmt.Errorf("unknown storage %q", name)
		}
	}
	for name, idx := range c.Vectorize {
		if err := idx.Validate(); err != nil {
			return fmt.Errorf("vectorize index %q: %w", name, err)
		}
	}
	return c.Log.Validate()
}

func knownStorage(name string) bool {
	switch name {
	case hub.StorageAI, hub.StorageAnalytics, hub.StorageBlob, hub.StorageBrowser,
		hub.StorageCache, hub.StorageDatabase, hub.StorageKV:
		return true
	}
	return false
}

// RemoteEnabled reports whether remote storage is requested at all.
func (c *Config) RemoteEnabled() bool {
	return c.Remote != RemoteOff
}

// RemoteEnv is the explicit environment, or hub.AutoEnv.
func (c *Config) RemoteEnv() string {
	if !c.RemoteEnabled() {
		return hub.AutoEnv
	}
	return c.Remote
}

// Identity returns the credentials the remote flow resolves from.
func (c *Config) Identity() hub.Identity {
	return hub.Identity{
		ProjectKey:       c.ProjectKey,
		ProjectSecretKey: c.ProjectSecretKey,
		UserToken:        c.UserToken,
		URL:              c.URL,
	}
}

// Access returns the gateway credentials.
func (c *Config) Access() hub.Access {
	return hub.Access{ClientID: c.CloudflareAccess.ClientID, ClientSecret: c.CloudflareAccess.ClientSecret}
}

// LocalFeatures returns the enabled storages. Declaring an index enables
// vectorize.
func (c *Config) LocalFeatures() hub.LocalFeatures {
	storage := make(map[string]bool, len(c.Storage)+1)
	for k, v := range c.Storage {
		storage[k] = v
	}
	if len(c.Vectorize) > 0 {
		storage[hub.StorageVectorize] = true
	}
	return hub.LocalFeatures{Storage: storage, Vectorize: c.Vectorize}
}

// ResolveProjectURL returns the literal or templated deployment URL.
func (c *Config) ResolveProjectURL() (hub.ProjectURL, error) {
	if c.ProjectURLTemplate != "" {
		return hub.TemplateURL(c.ProjectURLTemplate)
	}
	return hub.LiteralURL(c.ProjectURL), nil
}

// DataDir returns the hub data directory, relative paths resolved against
// the project dir.
func (c *Config) DataDir(projectDir string) string {
	if filepath.IsAbs(c.Dir) {
		return c.Dir
	}
	return filepath.Join(projectDir, c.Dir)
}

// Default returns the Config written by hubctl init.
func Default() *Config {
	return &Config{
		Remote:  hub.AutoEnv,
		URL:     DefaultURL,
		Dir:     DefaultDir,
		Storage: map[string]bool{hub.StorageKV: true},
	}
}

// ReadFile parses hub.yaml alone, without defaults or environment. Use it
// before Save so values from the environment are not persisted.
func ReadFile(dir string) (*Config, error) {
	path := Path(dir)
	data, err := readLimited(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if data == nil {
		return &cfg, nil
	}
	if err := yamlv3.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	return &cfg, nil
}

// Save marshals cfg and writes it to dir/hub.yaml.
func Save(dir string, cfg *Config) error {
	path := Path(dir)
	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write config %s: %w", path, err)
	}
	return nil
}

// SetProjectKey rewrites project_key in dir/hub.yaml and leaves every other
// key and comment as written, credentials included. An empty key removes
// the entry.
func SetProjectKey(dir, key string) error {
	path := Path(dir)
	data, err := readLimited(path)
	if err != nil {
		return err
	}

	var doc yamlv3.Node
	if err := yamlv3.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	if doc.Kind == 0 {
		doc.Kind = yamlv3.DocumentNode
	}
	if len(doc.Content) == 0 || doc.Content[0].Tag == "!!null" {
		doc.Content = []*yamlv3.Node{{Kind: yamlv3.MappingNode, Tag: "!!map"}}
	}
	root := doc.Content[0]
	if root.Kind != yamlv3.MappingNode {
		return fmt.Errorf("%s: top level must be a mapping", path)
	}
	setMappingValue(root, "project_key", key)

	var buf bytes.Buffer
	enc := yamlv3.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("cannot write config %s: %w", path, err)
	}
	return nil
}

// setMappingValue sets key to a string value in a mapping node, or removes
// the pair when value is empty.
func setMappingValue(m *yamlv3.Node, key, value string) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value != key {
			continue
		}
		if value == "" {
			m.Content = append(m.Content[:i], m.Content[i+2:]...)
			return
		}
		v := m.Content[i+1]
		v.Kind, v.Tag, v.Style, v.Value = yamlv3.ScalarNode, "!!str", 0, value
		v.Content = nil
		return
	}
	if value == "" {
		return
	}
	m.Content = append(m.Content,
		&yamlv3.Node{Kind: yamlv3.ScalarNode, Tag: "!!str", Value: key},
		&yamlv3.Node{Kind: yamlv3.ScalarNode, Tag: "!!str", Value: value},
	)
}
