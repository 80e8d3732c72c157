package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models wasteflow.yml.
type Config struct {
	Points struct {
		// Default points awarded when an admin verifies a report without
		// an explicit value, keyed by waste type.
		Defaults map[string]int `yaml:"defaults"`
	} `yaml:"points"`
	RBAC struct {
		Roles map[string]RBACRole `yaml:"roles"`
	} `yaml:"rbac"`
	Server struct {
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type RBACRole struct {
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}

// WebhookConfig describes one outbound notification target fed from the
// audit log.
type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret,omitempty"`
	Events         []string `yaml:"events,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty"`
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "wasteflow.yml")
}

// Load reads and validates config from workspace, falling back to the
// built-in defaults when the file does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
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

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	for wasteType, pts := range c.Points.Defaults {
		if wasteType == "" {
			return fmt.Errorf("config.points.defaults contains empty waste type")
		}
		if pts < 0 {
			return fmt.Errorf("config.points.defaults.%s must be non-negative", wasteType)
		}
	}
	if len(c.RBAC.Roles) > 0 {
		if _, ok := c.RBAC.Roles["admin"]; !ok {
			return fmt.Errorf("config.rbac.roles must include admin")
		}
		for roleID, role := range c.RBAC.Roles {
			if roleID == "" {
				return fmt.Errorf("config.rbac.roles contains empty role id")
			}
			for _, perm := range role.Permissions {
				if perm == "" {
					return fmt.Errorf("role %s has empty permission id", roleID)
				}
			}
		}
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("webhooks[%d].url is required", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("webhooks[%d].timeout_seconds must be non-negative", i)
		}
	}
	return nil
}

// PointsFor returns the default points for a waste type. Unknown types
// fall back to the lowest configured tier.
func (c *Config) PointsFor(wasteType string) int {
	if pts, ok := c.Points.Defaults[wasteType]; ok {
		return pts
	}
	min := -1
	for _, pts := range c.Points.Defaults {
		if min < 0 || pts < min {
			min = pts
		}
	}
	if min < 0 {
		return 0
	}
	return min
}

// Default returns the built-in config.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// GenerateDefault returns the default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `points:
  defaults:
    plastic: 30
    organic: 20
    e_waste: 50
    metal: 40
    glass: 25
    mixed: 15

rbac:
  roles:
    admin:
      description: "Reviews submissions and manages users"
      permissions:
        - report.read
        - report.review
        - job.read
        - job.review
        - job.delete
        - marketplace.read
        - marketplace.review
        - application.read
        - application.review
        - event.read
        - event.manage
        - event.delete
        - user.read
        - user.delete
        - stats.read
    worker:
      description: "Collects waste and fulfils jobs"
      permissions:
        - report.read
        - report.complete
        - job.read
        - job.work
        - event.read
        - event.join
    citizen:
      description: "Reports waste, posts jobs and listings"
      permissions:
        - report.create
        - report.read
        - job.create
        - job.read
        - job.delete
        - marketplace.create
        - marketplace.read
        - marketplace.sell
        - application.create
        - event.read
        - event.join
    champion:
      description: "Organises community cleanup events"
      permissions:
        - report.create
        - report.read
        - event.create
        - event.read
        - event.delete
        - event.join

server:
  cors_origins:
    - http://localhost:3000
`
