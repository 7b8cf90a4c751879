// Package deploy pushes alarm definitions to CloudWatch through a fixed-size
// worker pool and records a per-alarm outcome instead of failing fast: one
// bad alarm must not block the rest of a run.
package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/c1oudops/cloudwatch-alarm-manager/internal/alarm"
	"github.com/c1oudops/cloudwatch-alarm-manager/internal/config"
)

var tracer = otel.Tracer("github.com/c1oudops/cloudwatch-alarm-manager/internal/deploy")

// CloudWatchAPI defines the CloudWatch operations required for deployment.
type CloudWatchAPI interface {
	PutMetricAlarm(
		ctx context.Context,
		input *cloudwatch.PutMetricAlarmInput,
		optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricAlarmOutput, error)

	DeleteAlarms(
		ctx context.Context,
		input *cloudwatch.DeleteAlarmsInput,
		optFns ...func(*cloudwatch.Options)) (*cloudwatch.DeleteAlarmsOutput, error)
}

// Outcome classifies what happened to one alarm definition.
type Outcome string

const (
	OutcomeDeployed Outcome = "deployed"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// Result records the outcome for one alarm definition. Reason is set for
// skipped alarms, Err for failed ones.
type Result struct {
	Name    string
	Outcome Outcome
	Reason  string
	Err     error
}

// Tally sums results by outcome.
func Tally(results []Result) (deployed, skipped, failed int) {
	for _, r := range results {
		switch r.Outcome {
		case OutcomeDeployed:
			deployed++
		case OutcomeSkipped:
			skipped++
		case OutcomeFailed:
			failed++
		}
	}
	return deployed, skipped, failed
}

// FailedNames returns the names of all failed results.
func FailedNames(results []Result) []string {
	var names []string
	for _, r := range results {
		if r.Outcome == OutcomeFailed {
			names = append(names, r.Name)
		}
	}
	return names
}

// Deployer deploys and deletes managed alarms.
type Deployer struct {
	cw      CloudWatchAPI
	workers int
	tags    []types.Tag
	logger  *slog.Logger
}

// NewDeployer creates a Deployer running up to workers concurrent API calls.
// Every deployed alarm is tagged with tags plus its own name.
func NewDeployer(cw CloudWatchAPI, workers int, tags []types.Tag, logger *slog.Logger) *Deployer {
	if workers < 1 {
		workers = 1
	}

	return &Deployer{
		cw:      cw,
		workers: workers,
		tags:    tags,
		logger:  logger,
	}
}

// BaseTags builds the run-level tags every deployed alarm carries. The
// managed-by pair is what the next run's alarm scan matches on.
func BaseTags(lz config.LandingZone, managedBy string) []types.Tag {
	return []types.Tag{
		{Key: aws.String(config.ManagedByTagKey), Value: aws.String(managedBy)},
		{Key: aws.String("AppID"), Value: aws.String(lz.AppID)},
		{Key: aws.String("Environment"), Value: aws.String(lz.Environment)},
		{Key: aws.String("ResourceType"), Value: aws.String("CloudWatchAlarm")},
	}
}

// Deploy pushes every definition and returns one result per definition, in
// input order. It never stops early: failures are recorded and the remaining
// alarms still deploy.
func (d *Deployer) Deploy(ctx context.Context, defs []alarm.Definition) []Result {
	ctx, span := tracer.Start(ctx, "deploy.alarms")
	defer span.End()
	span.SetAttributes(attribute.Int("alarm.count", len(defs)))

	if len(defs) == 0 {
		return nil
	}

	results := make([]Result, len(defs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = d.deployOne(ctx, defs[i])
			}
		}()
	}

	for i := range defs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	deployed, skipped, failed := Tally(results)
	span.SetAttributes(
		attribute.Int("alarm.deployed", deployed),
		attribute.Int("alarm.failed", failed),
	)
	d.logger.InfoContext(
		ctx,
		"alarm deployment finished",
		slog.Int("deployed", deployed),
		slog.Int("skipped", skipped),
		slog.Int("failed", failed),
	)

	return results
}

func (d *Deployer) deployOne(ctx context.Context, def alarm.Definition) Result {
	if def.Name == "" {
		d.logger.WarnContext(
			ctx,
			"alarm definition without a name; skipping",
			slog.String("metricName", def.MetricName),
		)
		return Result{Outcome: OutcomeSkipped, Reason: "empty alarm name"}
	}

	if _, err := d.cw.PutMetricAlarm(ctx, d.putMetricAlarmInput(def)); err != nil {
		d.logger.ErrorContext(
			ctx,
			"cannot deploy alarm",
			slog.String("alarmName", def.Name),
			slog.String("error", err.Error()),
		)
		return Result{
			Name:    def.Name,
			Outcome: OutcomeFailed,
			Err:     fmt.Errorf("cannot deploy alarm %q: %w", def.Name, err),
		}
	}

	d.logger.InfoContext(ctx, "alarm deployed", slog.String("alarmName", def.Name))
	return Result{Name: def.Name, Outcome: OutcomeDeployed}
}

func (d *Deployer) putMetricAlarmInput(def alarm.Definition) *cloudwatch.PutMetricAlarmInput {
	tags := make([]types.Tag, 0, len(d.tags)+1)
	tags = append(tags, types.Tag{Key: aws.String("Name"), Value: aws.String(def.Name)})
	tags = append(tags, d.tags...)

	return &cloudwatch.PutMetricAlarmInput{
		AlarmName:          aws.String(def.Name),
		AlarmDescription:   aws.String(def.Description),
		ActionsEnabled:     aws.Bool(true),
		AlarmActions:       def.AlarmActions,
		MetricName:         aws.String(def.MetricName),
		Namespace:          aws.String(def.Namespace),
		Dimensions:         def.Dimensions,
		Statistic:          def.Statistic,
		ComparisonOperator: def.ComparisonOperator,
		Unit:               def.Unit,
		Period:             aws.Int32(def.Period),
		EvaluationPeriods:  aws.Int32(def.EvaluationPeriods),
		Threshold:          aws.Float64(def.Threshold),
		Tags:               tags,
	}
}

// DeleteAlarms accepts at most 100 names per call.
const deleteBatchSize = 100

// Delete removes alarms by name. A failed batch is logged and skipped; the
// remaining batches are still attempted and the first error is returned.
func (d *Deployer) Delete(ctx context.Context, names []string) error {
	ctx, span := tracer.Start(ctx, "deploy.delete_alarms")
	defer span.End()
	span.SetAttributes(attribute.Int("alarm.count", len(names)))

	if len(names) == 0 {
		return nil
	}

	var firstErr error
	for start := 0; start < len(names); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(names) {
			end = len(names)
		}
		batch := names[start:end]

		if _, err := d.cw.DeleteAlarms(ctx, &cloudwatch.DeleteAlarmsInput{AlarmNames: batch}); err != nil {
			d.logger.ErrorContext(
				ctx,
				"cannot delete alarm batch",
				slog.Int("batchSize", len(batch)),
				slog.String("error", err.Error()),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("cannot delete alarms: %w", err)
			}
			continue
		}

		d.logger.InfoContext(ctx, "alarms deleted", slog.Int("count", len(batch)))
	}

	return firstErr
}
