// Package run executes one landing-zone pass end to end: snapshot the
// deployed alarms, discover resources, generate alarm definitions, deploy
// them, and report the outcome.
package run

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/c1oudops/cloudwatch-alarm-manager/internal/alarm"
	"github.com/c1oudops/cloudwatch-alarm-manager/internal/config"
	"github.com/c1oudops/cloudwatch-alarm-manager/internal/deploy"
	"github.com/c1oudops/cloudwatch-alarm-manager/internal/discovery"
	"github.com/c1oudops/cloudwatch-alarm-manager/internal/report"
)

var tracer = otel.Tracer("github.com/c1oudops/cloudwatch-alarm-manager/internal/run")

// Action selects what a pass does to a landing zone's alarms.
type Action string

const (
	// ActionCreate generates and deploys the missing alarms.
	ActionCreate Action = "create"

	// ActionScan reports the deployed and discovered state without
	// changing anything.
	ActionScan Action = "scan"

	// ActionDelete removes every managed alarm of the landing zone.
	ActionDelete Action = "delete"
)

// ParseAction validates a user-supplied action name.
func ParseAction(s string) (Action, error) {
	switch action := Action(s); action {
	case ActionCreate, ActionScan, ActionDelete:
		return action, nil
	default:
		return "", fmt.Errorf("unknown action: %q", s)
	}
}

// CloudWatchAPI combines the metric listing used during generation with the
// alarm writes used during deployment.
type CloudWatchAPI interface {
	alarm.MetricsAPI
	deploy.CloudWatchAPI
}

// Params collects the dependencies a Runner needs.
type Params struct {
	Config     *config.Config
	Settings   *config.Settings
	CloudWatch CloudWatchAPI
	EC2        discovery.EC2API
	RDS        discovery.RDSAPI
	ELB        discovery.ELBAPI
	Tagging    discovery.TaggingAPI
	Sender     report.Sender
	Logger     *slog.Logger
}

// Runner executes actions against landing zones. One Runner serves any
// number of sequential Run calls.
type Runner struct {
	cfg        *config.Config
	settings   *config.Settings
	cloudwatch CloudWatchAPI
	ec2        discovery.EC2API
	rds        discovery.RDSAPI
	elb        discovery.ELBAPI
	tagging    discovery.TaggingAPI
	sender     report.Sender
	logger     *slog.Logger
}

func NewRunner(p Params) *Runner {
	return &Runner{
		cfg:        p.Config,
		settings:   p.Settings,
		cloudwatch: p.CloudWatch,
		ec2:        p.EC2,
		rds:        p.RDS,
		elb:        p.ELB,
		tagging:    p.Tagging,
		sender:     p.Sender,
		logger:     p.Logger,
	}
}

// Run executes one action against one landing zone and returns its summary.
// Individual deployment failures do not fail the run; they are counted in
// the summary for the caller to inspect. The summary also goes to the report
// target, and a report failure is only logged.
func (r *Runner) Run(ctx context.Context, lzName string, action Action, dryRun bool) (*report.Summary, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "run.landing_zone")
	defer span.End()
	span.SetAttributes(
		attribute.String("landing_zone.name", lzName),
		attribute.String("run.action", string(action)),
		attribute.Bool("run.dry_run", dryRun),
	)

	lz, ok := r.cfg.LandingZone(lzName)
	if !ok {
		return nil, fmt.Errorf("unknown landing zone: %q", lzName)
	}

	summary := &report.Summary{
		LandingZone: lz.Name,
		AccountID:   lz.AccountID,
		Action:      string(action),
		DryRun:      dryRun,
	}

	// One snapshot per run: every dedup decision below compares against the
	// same picture of the account.
	deployed, err := discovery.ManagedAlarmNames(ctx, r.tagging, r.settings.ManagedBy)
	if err != nil {
		return nil, fmt.Errorf("cannot snapshot deployed alarms: %w", err)
	}
	names := filterPrefix(deployed, lz.Name+"-")
	summary.Existing = len(names)

	switch action {
	case ActionCreate:
		err = r.create(ctx, lz, names, dryRun, summary)
	case ActionScan:
		r.scan(ctx, lz, names, summary)
	case ActionDelete:
		err = r.deleteAlarms(ctx, lz, names, dryRun, summary)
	default:
		err = fmt.Errorf("unknown action: %q", action)
	}
	if err != nil {
		return nil, err
	}

	summary.Duration = time.Since(start)
	summary.Timestamp = time.Now().UTC()

	if err := r.sender.Send(ctx, summary); err != nil {
		r.logger.ErrorContext(
			ctx,
			"cannot send run report",
			slog.String("landingZone", lz.Name),
			slog.String("error", err.Error()),
		)
	}

	return summary, nil
}

func (r *Runner) create(ctx context.Context, lz config.LandingZone, deployedNames []string, dryRun bool, summary *report.Summary) error {
	rdsPlugin := discovery.NewRDSPlugin(r.rds, r.settings.ManagedBy)
	scanner := discovery.NewScanner(
		r.logger,
		discovery.NewEC2Plugin(r.ec2, r.settings.ManagedBy),
		rdsPlugin,
		discovery.NewALBPlugin(r.elb, r.settings.ManagedBy),
	)

	resources := scanner.DiscoverAll(ctx)
	summary.Resources = len(resources)

	fanout, err := r.buildFanout(ctx, resources)
	if err != nil {
		return err
	}

	engine := alarm.NewEngine(alarm.EngineParams{
		Config:      r.cfg,
		LandingZone: lz,
		Region:      r.settings.Region,
		Existing:    alarm.NewExistingAlarms(deployedNames),
		Fanout:      fanout,
		Capacity:    rdsPlugin.AllocatedStorage,
		Logger:      r.logger,
	})

	defs, stats := engine.GenerateAll(ctx, resources)
	summary.Generated = stats.Generated
	summary.Skipped = stats.Skipped()

	if dryRun {
		for _, def := range defs {
			r.logger.InfoContext(
				ctx,
				"would deploy alarm",
				slog.String("alarmName", def.Name),
				slog.Float64("threshold", def.Threshold),
			)
		}
		return nil
	}

	deployer := deploy.NewDeployer(
		r.cloudwatch,
		r.settings.DeployWorkers,
		deploy.BaseTags(lz, r.settings.ManagedBy),
		r.logger,
	)
	results := deployer.Deploy(ctx, defs)

	deployedCount, skipped, failed := deploy.Tally(results)
	summary.Deployed = deployedCount
	summary.Skipped += skipped
	summary.Failed = failed
	summary.FailedAlarms = deploy.FailedNames(results)

	return nil
}

// buildFanout indexes the agent metric combinations published by discovered
// instances. Host-level agent metrics only exist for EC2.
func (r *Runner) buildFanout(ctx context.Context, resources []alarm.Resource) (*alarm.FanoutIndex, error) {
	identityKey, _ := alarm.IdentityDimension(config.ResourceEC2)

	var instanceIDs []string
	for _, res := range resources {
		if res.Type == config.ResourceEC2 {
			instanceIDs = append(instanceIDs, res.ID)
		}
	}

	return alarm.BuildFanoutIndex(ctx, r.cloudwatch, r.cfg.Custom.Agent, identityKey, instanceIDs, r.logger)
}

// scan reports without mutating: what is deployed and what discovery sees.
func (r *Runner) scan(ctx context.Context, lz config.LandingZone, deployedNames []string, summary *report.Summary) {
	scanner := discovery.NewScanner(
		r.logger,
		discovery.NewEC2Plugin(r.ec2, r.settings.ManagedBy),
		discovery.NewRDSPlugin(r.rds, r.settings.ManagedBy),
		discovery.NewALBPlugin(r.elb, r.settings.ManagedBy),
	)

	resources := scanner.DiscoverAll(ctx)
	summary.Resources = len(resources)

	for _, name := range deployedNames {
		r.logger.InfoContext(
			ctx,
			"managed alarm deployed",
			slog.String("landingZone", lz.Name),
			slog.String("alarmName", name),
		)
	}
}

func (r *Runner) deleteAlarms(ctx context.Context, lz config.LandingZone, names []string, dryRun bool, summary *report.Summary) error {
	if len(names) == 0 {
		r.logger.InfoContext(ctx, "no managed alarms to delete", slog.String("landingZone", lz.Name))
		return nil
	}

	if dryRun {
		for _, name := range names {
			r.logger.InfoContext(ctx, "would delete alarm", slog.String("alarmName", name))
		}
		summary.Deleted = len(names)
		return nil
	}

	deployer := deploy.NewDeployer(
		r.cloudwatch,
		r.settings.DeployWorkers,
		deploy.BaseTags(lz, r.settings.ManagedBy),
		r.logger,
	)
	if err := deployer.Delete(ctx, names); err != nil {
		return fmt.Errorf("cannot delete alarms for %q: %w", lz.Name, err)
	}

	summary.Deleted = len(names)
	return nil
}

// filterPrefix keeps the names belonging to one landing zone. Generated
// names always start with the zone name, so co-hosted zones never touch each
// other's alarms.
func filterPrefix(names []string, prefix string) []string {
	filtered := make([]string, 0, len(names))
	for _, name := range names {
		if strings.HasPrefix(name, prefix) {
			filtered = append(filtered, name)
		}
	}
	return filtered
}
