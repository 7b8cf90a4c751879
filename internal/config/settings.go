package config

import (
	"fmt"
	"time"

	"github.com/c1oudops/cloudwatch-alarm-manager/internal/env"
)

// ReportTarget selects where run summaries are sent.
type ReportTarget string

const (
	ReportNone        ReportTarget = "none"
	ReportSNS         ReportTarget = "sns"
	ReportEventBridge ReportTarget = "eventbridge"
)

const (
	defaultConfigDir     = "configs"
	defaultDeployWorkers = 5
	maxDeployWorkers     = 10
	defaultRunTimeout    = 10 * time.Minute
	defaultManagedBy     = "alarm-manager"
)

// Settings holds runtime options taken from the environment.
type Settings struct {
	Region        string
	ConfigDir     string
	DeployWorkers int
	RunTimeout    time.Duration

	// ManagedBy is the value stored under ManagedByTagKey on everything
	// this tool deploys and looks for when scanning.
	ManagedBy string

	ReportTarget   ReportTarget
	ReportTopicARN string
	ReportEventBus string
}

// LoadSettings reads runtime settings from the environment.
func LoadSettings() (*Settings, error) {
	region, err := env.GetRequired("AWS_REGION", env.ParseNonEmptyString)
	if err != nil {
		return nil, err
	}

	workers := env.Get("DEPLOY_WORKERS", defaultDeployWorkers, env.ParsePositiveInt)
	if workers > maxDeployWorkers {
		workers = maxDeployWorkers
	}

	s := &Settings{
		Region:        region,
		ConfigDir:     env.Get("CONFIG_DIR", defaultConfigDir, env.ParseNonEmptyString),
		DeployWorkers: workers,
		RunTimeout:    env.Get("RUN_TIMEOUT", defaultRunTimeout, env.ParseDuration),
		ManagedBy:     env.Get("MANAGED_BY", defaultManagedBy, env.ParseNonEmptyString),
		ReportTarget:  ReportTarget(env.Get("REPORT_TARGET", string(ReportNone), env.ParseNonEmptyString)),
	}

	switch s.ReportTarget {
	case ReportNone:
	case ReportSNS:
		s.ReportTopicARN, err = env.GetRequired("REPORT_TOPIC_ARN", env.ParseNonEmptyString)
		if err != nil {
			return nil, err
		}
	case ReportEventBridge:
		s.ReportEventBus, err = env.GetRequired("REPORT_EVENT_BUS", env.ParseNonEmptyString)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("invalid report target: %s", s.ReportTarget)
	}

	return s, nil
}
