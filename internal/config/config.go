// Package config loads the alarm manager's configuration: YAML tables
// describing landing zones, alarm templates, category thresholds and custom
// overrides, plus runtime settings taken from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ResourceType names a monitored AWS resource kind.
type ResourceType string

const (
	ResourceEC2 ResourceType = "EC2"
	ResourceRDS ResourceType = "RDS"
	ResourceALB ResourceType = "ALB"
)

// Category classifies a landing zone's criticality tier.
type Category string

const (
	CategoryA Category = "CAT_A"
	CategoryB Category = "CAT_B"
	CategoryC Category = "CAT_C"
	CategoryD Category = "CAT_D"
)

// ManagedByTagKey marks resources and alarms owned by this tool. Deployed
// alarms carry it and the managed-alarm scan filters on it.
const ManagedByTagKey = "managed_by"

// LandingZone identifies one monitored account/environment pair.
type LandingZone struct {
	Name        string   `yaml:"name" validate:"required"`
	Environment string   `yaml:"environment" validate:"required"`
	AccountID   string   `yaml:"account_id" validate:"required,len=12,numeric"`
	AppID       string   `yaml:"app_id" validate:"required"`
	Category    Category `yaml:"category" validate:"required,oneof=CAT_A CAT_B CAT_C CAT_D"`
}

// Template describes one alarm to maintain for every resource of a type.
type Template struct {
	Metric             string                     `yaml:"metric" validate:"required"`
	Namespace          string                     `yaml:"namespace" validate:"required"`
	Statistic          cwtypes.Statistic          `yaml:"statistic" validate:"required,oneof=Average Sum Minimum Maximum SampleCount"`
	ComparisonOperator cwtypes.ComparisonOperator `yaml:"comparison_operator" validate:"required,oneof=GreaterThanThreshold GreaterThanOrEqualToThreshold LessThanThreshold LessThanOrEqualToThreshold"`
	Unit               cwtypes.StandardUnit       `yaml:"unit"`
	Period             int32                      `yaml:"period" validate:"required,min=10"`
	EvaluationPeriods  int32                      `yaml:"evaluation_periods" validate:"required,min=1"`

	// CapacityPercent marks a threshold expressed as a percentage of the
	// resource's provisioned capacity rather than an absolute value.
	CapacityPercent bool `yaml:"capacity_percent"`
}

// CategoryConfig holds per-category alert thresholds and notification topics.
// Topics are bare SNS topic names; ARNs are assembled per landing zone.
type CategoryConfig struct {
	Topics     []string                            `yaml:"sns_topics" validate:"required,min=1,dive,required"`
	Thresholds map[ResourceType]map[string]float64 `yaml:"thresholds"`
}

// AgentConfig describes the agent-published metric namespace whose dimension
// combinations are discovered at runtime. Metrics maps metric name to the
// dimension key distinguishing fan-out instances ("" when none).
type AgentConfig struct {
	Namespace string            `yaml:"namespace"`
	Metrics   map[string]string `yaml:"metrics"`
}

// TopicOverride replaces the category default topics for one metric alarm.
type TopicOverride struct {
	ResourceType ResourceType `yaml:"resource_type" validate:"required"`
	Metric       string       `yaml:"metric" validate:"required"`
	Categories   []Category   `yaml:"categories" validate:"required,min=1,dive,oneof=CAT_A CAT_B CAT_C CAT_D"`
	Topics       []string     `yaml:"topics" validate:"required,min=1,dive,required"`
}

// CustomSettings carries optional behavior overrides.
type CustomSettings struct {
	Agent          AgentConfig                          `yaml:"agent"`
	TopicOverrides []TopicOverride                      `yaml:"sns_overrides" validate:"dive"`
	DisabledAlarms map[string]map[ResourceType][]string `yaml:"disabled_alarms"`
}

// Config aggregates the YAML tables driving alarm generation.
type Config struct {
	LandingZones []LandingZone               `yaml:"landing_zones" validate:"required,min=1,dive"`
	Templates    map[ResourceType][]Template `yaml:"templates" validate:"required,dive,dive"`
	Categories   map[Category]CategoryConfig `yaml:"categories" validate:"required,dive"`
	Custom       CustomSettings              `yaml:"-"`
}

const (
	landingZonesFile = "landing_zones.yaml"
	templatesFile    = "templates.yaml"
	categoriesFile   = "categories.yaml"
	customFile       = "custom.yaml"
)

var validate = validator.New()

// Load reads and validates all configuration tables from dir. The custom
// settings file is optional; the other three are not.
func Load(dir string) (*Config, error) {
	var cfg Config
	for _, name := range []string{landingZonesFile, templatesFile, categoriesFile} {
		if err := decodeFile(filepath.Join(dir, name), &cfg); err != nil {
			return nil, err
		}
	}

	if err := decodeFile(filepath.Join(dir, customFile), &cfg.Custom); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("cannot parse config file %q: %w", path, err)
	}
	return nil
}

// Validate checks struct tags plus the cross-table rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	seen := make(map[string]struct{}, len(c.LandingZones))
	for _, lz := range c.LandingZones {
		if _, ok := seen[lz.Name]; ok {
			return fmt.Errorf("invalid config: duplicate landing zone %q", lz.Name)
		}
		seen[lz.Name] = struct{}{}

		if _, ok := c.Categories[lz.Category]; !ok {
			return fmt.Errorf("invalid config: landing zone %q references unknown category %q", lz.Name, lz.Category)
		}
	}

	// Agent-namespace templates need a fan-out entry, otherwise generation
	// could not name their alarms deterministically.
	for rt, tpls := range c.Templates {
		switch rt {
		case ResourceEC2, ResourceRDS, ResourceALB:
		default:
			return fmt.Errorf("invalid config: unknown resource type %q in templates", rt)
		}

		for _, tpl := range tpls {
			if c.Custom.Agent.Namespace == "" || tpl.Namespace != c.Custom.Agent.Namespace {
				continue
			}
			if _, ok := c.Custom.Agent.Metrics[tpl.Metric]; !ok {
				return fmt.Errorf("invalid config: %s template %q uses agent namespace %q without an agent metric entry", rt, tpl.Metric, tpl.Namespace)
			}
		}
	}
	return nil
}

// LandingZoneNames lists the configured landing zones in file order.
func (c *Config) LandingZoneNames() []string {
	names := make([]string, 0, len(c.LandingZones))
	for _, lz := range c.LandingZones {
		names = append(names, lz.Name)
	}
	return names
}

// LandingZone returns the landing zone with the given name.
func (c *Config) LandingZone(name string) (LandingZone, bool) {
	for _, lz := range c.LandingZones {
		if lz.Name == name {
			return lz, true
		}
	}
	return LandingZone{}, false
}

// TemplatesFor returns the alarm templates maintained for a resource type.
func (c *Config) TemplatesFor(rt ResourceType) []Template {
	return c.Templates[rt]
}

// ThresholdTable returns category -> resource type -> metric -> threshold.
func (c *Config) ThresholdTable() map[Category]map[ResourceType]map[string]float64 {
	table := make(map[Category]map[ResourceType]map[string]float64, len(c.Categories))
	for cat, cc := range c.Categories {
		table[cat] = cc.Thresholds
	}
	return table
}

// TopicsFor resolves the notification topic names for one alarm, applying
// custom overrides before falling back to the category defaults.
func (c *Config) TopicsFor(cat Category, rt ResourceType, metric string) []string {
	for _, ov := range c.Custom.TopicOverrides {
		if ov.ResourceType != rt || ov.Metric != metric {
			continue
		}
		for _, oc := range ov.Categories {
			if oc == cat {
				return ov.Topics
			}
		}
	}
	return c.Categories[cat].Topics
}

// AlarmDisabled reports whether a metric alarm is switched off for a landing zone.
func (c *Config) AlarmDisabled(lzName string, rt ResourceType, metric string) bool {
	byType, ok := c.Custom.DisabledAlarms[lzName]
	if !ok {
		return false
	}
	for _, m := range byType[rt] {
		if m == metric {
			return true
		}
	}
	return false
}
