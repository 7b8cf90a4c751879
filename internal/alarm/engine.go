package alarm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/c1oudops/cloudwatch-alarm-manager/internal/config"
)

var tracer = otel.Tracer("github.com/c1oudops/cloudwatch-alarm-manager/internal/alarm")

// CapacityLookup reports a resource's provisioned storage in GiB. Absence
// means the capacity is unknown and capacity-derived alarms are skipped.
type CapacityLookup func(resourceID string) (int32, bool)

// Engine turns monitored resources into deployable alarm definitions for one
// landing zone. All inputs are snapshots taken before generation starts;
// generation itself is sequential and makes no remote calls.
type Engine struct {
	cfg        *config.Config
	lz         config.LandingZone
	region     string
	thresholds *Thresholds
	existing   *ExistingAlarms
	fanout     *FanoutIndex
	capacity   CapacityLookup
	logger     *slog.Logger
}

// EngineParams collects the snapshots an Engine generates from.
type EngineParams struct {
	Config      *config.Config
	LandingZone config.LandingZone
	Region      string
	Existing    *ExistingAlarms
	Fanout      *FanoutIndex
	Capacity    CapacityLookup
	Logger      *slog.Logger
}

// NewEngine creates an Engine. Existing, Fanout and Capacity may be nil when
// a run has no deployed alarms, no agent metrics or no capacity hints.
func NewEngine(p EngineParams) *Engine {
	if p.Existing == nil {
		p.Existing = NewExistingAlarms(nil)
	}
	if p.Fanout == nil {
		p.Fanout = NewFanoutIndex()
	}
	if p.Capacity == nil {
		p.Capacity = func(string) (int32, bool) { return 0, false }
	}

	return &Engine{
		cfg:        p.Config,
		lz:         p.LandingZone,
		region:     p.Region,
		thresholds: NewThresholds(p.Config.ThresholdTable()),
		existing:   p.Existing,
		fanout:     p.Fanout,
		capacity:   p.Capacity,
		logger:     p.Logger,
	}
}

// GenerateAll produces the alarm definitions for a set of resources.
// Resources are processed independently: a failure inside one leaves its
// alarms out and moves on to the next.
func (e *Engine) GenerateAll(ctx context.Context, resources []Resource) ([]Definition, Stats) {
	ctx, span := tracer.Start(ctx, "alarm.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("landing_zone.name", e.lz.Name),
		attribute.Int("resource.count", len(resources)),
	)

	var (
		defs  []Definition
		stats Stats
	)
	for _, res := range resources {
		defs = append(defs, e.generate(ctx, res, &stats)...)
	}
	stats.Generated = len(defs)

	span.SetAttributes(attribute.Int("alarm.generated", stats.Generated))
	e.logger.InfoContext(
		ctx,
		"alarm generation finished",
		slog.String("landingZone", e.lz.Name),
		slog.Int("generated", stats.Generated),
		slog.Int("skipped", stats.Skipped()),
	)

	return defs, stats
}

// generate emits the alarms for one resource. A panic while processing the
// resource is logged and yields nothing, keeping the rest of the batch alive.
func (e *Engine) generate(ctx context.Context, res Resource, stats *Stats) (defs []Definition) {
	defer func() {
		if r := recover(); r != nil {
			stats.Recovered++
			defs = nil
			e.logger.ErrorContext(
				ctx,
				"recovered panic while generating alarms",
				slog.String("resourceName", res.Name),
				slog.String("resourceType", string(res.Type)),
				slog.Any("panic", r),
			)
		}
	}()

	templates := e.cfg.TemplatesFor(res.Type)
	if len(templates) == 0 {
		e.logger.WarnContext(
			ctx,
			"no alarm templates for resource type",
			slog.String("resourceType", string(res.Type)),
			slog.String("resourceName", res.Name),
		)
		return nil
	}

	for _, tpl := range templates {
		if e.cfg.AlarmDisabled(e.lz.Name, res.Type, tpl.Metric) {
			stats.SkippedDisabled++
			e.logger.InfoContext(
				ctx,
				"alarm disabled by override",
				slog.String("resourceName", res.Name),
				slog.String("metricName", tpl.Metric),
			)
			continue
		}

		baseName := BuildName(e.lz.Name, res.Type, res.Name, tpl.Metric, "")
		if e.existing.Contains(baseName) {
			stats.SkippedExisting++
			e.logger.InfoContext(ctx, "alarm already deployed", slog.String("alarmName", baseName))
			continue
		}

		switch {
		case tpl.CapacityPercent:
			defs = append(defs, e.capacityAlarm(ctx, res, tpl, baseName, stats)...)
		case e.isAgentMetric(tpl):
			defs = append(defs, e.agentAlarms(ctx, res, tpl, stats)...)
		default:
			defs = append(defs, e.standardAlarms(ctx, res, tpl, baseName, stats)...)
		}
	}

	return defs
}

func (e *Engine) isAgentMetric(tpl config.Template) bool {
	return e.cfg.Custom.Agent.Namespace != "" && tpl.Namespace == e.cfg.Custom.Agent.Namespace
}

// capacityAlarm converts a percent-of-capacity threshold into bytes. Without
// a configured percentage or a known capacity no alarm is produced: a made-up
// threshold is worse than a missing alarm.
func (e *Engine) capacityAlarm(ctx context.Context, res Resource, tpl config.Template, name string, stats *Stats) []Definition {
	percent, ok := e.resolveThreshold(ctx, res, tpl, stats)
	if !ok {
		return nil
	}

	allocatedGiB, ok := e.capacity(res.ID)
	if !ok || allocatedGiB <= 0 {
		stats.MissingCapacity++
		e.logger.WarnContext(
			ctx,
			"no provisioned capacity known; skipping capacity alarm",
			slog.String("resourceName", res.Name),
			slog.String("metricName", tpl.Metric),
		)
		return nil
	}

	sets := resolveDimensions(res)
	if len(sets) == 0 {
		return nil
	}

	threshold := CapacityThresholdBytes(allocatedGiB, percent)
	return []Definition{e.newDefinition(res, tpl, name, threshold, sets[0].dimensions)}
}

// agentAlarms emits one alarm per indexed dimension combination. Zero
// combinations only means the agent publishes nothing for this resource.
func (e *Engine) agentAlarms(ctx context.Context, res Resource, tpl config.Template, stats *Stats) []Definition {
	records := e.fanout.Lookup(res.ID, tpl.Metric)
	if len(records) == 0 {
		e.logger.InfoContext(
			ctx,
			"no agent metrics discovered for resource",
			slog.String("resourceName", res.Name),
			slog.String("metricName", tpl.Metric),
		)
		return nil
	}

	threshold, ok := e.resolveThreshold(ctx, res, tpl, stats)
	if !ok {
		return nil
	}

	defs := make([]Definition, 0, len(records))
	for _, rec := range records {
		name := BuildName(e.lz.Name, res.Type, res.Name, tpl.Metric, rec.Suffix)
		if e.existing.Contains(name) {
			stats.SkippedExisting++
			e.logger.InfoContext(ctx, "alarm already deployed", slog.String("alarmName", name))
			continue
		}
		defs = append(defs, e.newDefinition(res, tpl, name, threshold, rec.Dimensions))
	}
	return defs
}

func (e *Engine) standardAlarms(ctx context.Context, res Resource, tpl config.Template, baseName string, stats *Stats) []Definition {
	threshold, ok := e.resolveThreshold(ctx, res, tpl, stats)
	if !ok {
		return nil
	}

	sets := resolveDimensions(res)
	if len(sets) == 0 {
		e.logger.WarnContext(
			ctx,
			"no dimensions for resource type",
			slog.String("resourceType", string(res.Type)),
			slog.String("resourceName", res.Name),
		)
		return nil
	}

	defs := make([]Definition, 0, len(sets))
	for _, set := range sets {
		name := baseName
		if set.suffix != "" {
			name = BuildName(e.lz.Name, res.Type, res.Name, tpl.Metric, set.suffix)
			if e.existing.Contains(name) {
				stats.SkippedExisting++
				e.logger.InfoContext(ctx, "alarm already deployed", slog.String("alarmName", name))
				continue
			}
		}
		defs = append(defs, e.newDefinition(res, tpl, name, threshold, set.dimensions))
	}
	return defs
}

func (e *Engine) resolveThreshold(ctx context.Context, res Resource, tpl config.Template, stats *Stats) (float64, bool) {
	threshold, ok := e.thresholds.Resolve(e.lz.Category, res.Type, tpl.Metric)
	if !ok {
		stats.MissingThreshold++
		e.logger.WarnContext(
			ctx,
			"no threshold configured; skipping alarm",
			slog.String("category", string(e.lz.Category)),
			slog.String("resourceType", string(res.Type)),
			slog.String("metricName", tpl.Metric),
		)
	}
	return threshold, ok
}

func (e *Engine) newDefinition(res Resource, tpl config.Template, name string, threshold float64, dims []types.Dimension) Definition {
	return Definition{
		Name:               name,
		Description:        fmt.Sprintf("%s %s alarm for %s", res.Type, tpl.Metric, res.Name),
		MetricName:         tpl.Metric,
		Namespace:          tpl.Namespace,
		Dimensions:         dims,
		Statistic:          tpl.Statistic,
		ComparisonOperator: tpl.ComparisonOperator,
		Unit:               tpl.Unit,
		Period:             tpl.Period,
		EvaluationPeriods:  tpl.EvaluationPeriods,
		Threshold:          threshold,
		AlarmActions:       e.topicARNs(res.Type, tpl.Metric),
	}
}

// topicARNs assembles the notification topic ARNs for one alarm from the
// category's (or override's) bare topic names.
func (e *Engine) topicARNs(rt config.ResourceType, metric string) []string {
	names := e.cfg.TopicsFor(e.lz.Category, rt, metric)
	arns := make([]string, 0, len(names))
	for _, name := range names {
		arns = append(arns, fmt.Sprintf("arn:aws:sns:%s:%s:%s", e.region, e.lz.AccountID, name))
	}
	return arns
}
