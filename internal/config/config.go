package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models modelscout.yml.
type Config struct {
	Discovery struct {
		Regions       []string `yaml:"regions"`
		DefaultRegion string   `yaml:"default_region"`
	} `yaml:"discovery"`
	Catalog struct {
		DocsURL  string `yaml:"docs_url"`
		CacheTTL string `yaml:"cache_ttl"`
	} `yaml:"catalog"`
	Gating struct {
		Patterns []string `yaml:"patterns"`
	} `yaml:"gating"`
	Request struct {
		Justification string `yaml:"justification"`
	} `yaml:"request"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run scout config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if len(c.Discovery.Regions) == 0 {
		return fmt.Errorf("config.discovery.regions is required")
	}
	for _, r := range c.Discovery.Regions {
		if r == "" {
			return fmt.Errorf("config.discovery.regions contains an empty region code")
		}
	}
	if c.Discovery.DefaultRegion == "" {
		return fmt.Errorf("config.discovery.default_region is required")
	}
	found := false
	for _, r := range c.Discovery.Regions {
		if r == c.Discovery.DefaultRegion {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("config.discovery.default_region %s not in regions", c.Discovery.DefaultRegion)
	}
	if c.Catalog.DocsURL == "" {
		return fmt.Errorf("config.catalog.docs_url is required")
	}
	if c.Catalog.CacheTTL != "" {
		if _, err := time.ParseDuration(c.Catalog.CacheTTL); err != nil {
			return fmt.Errorf("config.catalog.cache_ttl: %w", err)
		}
	}
	if len(c.Gating.Patterns) == 0 {
		return fmt.Errorf("config.gating.patterns is required")
	}
	for _, p := range c.Gating.Patterns {
		if p == "" {
			return fmt.Errorf("config.gating.patterns contains an empty marker")
		}
	}
	return nil
}

// CacheTTL returns the parsed snapshot TTL, defaulting to 12h.
func (c *Config) CacheTTL() time.Duration {
	if c.Catalog.CacheTTL == "" {
		return 12 * time.Hour
	}
	d, err := time.ParseDuration(c.Catalog.CacheTTL)
	if err != nil {
		return 12 * time.Hour
	}
	return d
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "modelscout.yml")
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `discovery:
  # Regions queried during fan-out. Different regions enable different
  # model subsets, so keep this list broad.
  regions:
    - us-east-1
    - us-east-2
    - us-west-2
    - eu-central-1
    - eu-west-1
    - ap-northeast-1
    - ap-southeast-2
  default_region: us-west-2

catalog:
  docs_url: https://docs.aws.amazon.com/bedrock/latest/userguide/models-supported.html
  cache_ttl: 12h

gating:
  # Markers for model families whose invocation requires an explicit
  # account-level access request. These are matched case-insensitively
  # against model identifiers and provider names.
  patterns:
    - claude-opus-4
    - claude-sonnet-4
    - claude-haiku-4
    - nova-premier
    - nova-pro

request:
  justification: "Evaluating foundation models for an internal development workflow"
`
