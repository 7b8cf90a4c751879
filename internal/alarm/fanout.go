package alarm

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/c1oudops/cloudwatch-alarm-manager/internal/config"
)

const maxConcurrentMetricQueries = 4

// MetricsAPI defines the CloudWatch operations required to build the index.
type MetricsAPI interface {
	ListMetrics(
		ctx context.Context,
		input *cloudwatch.ListMetricsInput,
		optFns ...func(*cloudwatch.Options)) (*cloudwatch.ListMetricsOutput, error)
}

// FanoutRecord is one dimension combination discovered for an agent metric
// on a monitored resource.
type FanoutRecord struct {
	ResourceID string

	// Suffix is the value of the metric's distinct dimension ("" when the
	// metric has none configured), used to keep sibling alarm names apart.
	Suffix string

	Dimensions []types.Dimension
}

// FanoutIndex holds the agent metric combinations discovered for monitored
// resources, keyed by resource then metric name. It is built once per run
// before generation starts; lookups afterwards are lock-free.
type FanoutIndex struct {
	records map[string]map[string][]FanoutRecord
}

// NewFanoutIndex returns an empty index.
func NewFanoutIndex() *FanoutIndex {
	return &FanoutIndex{records: make(map[string]map[string][]FanoutRecord)}
}

// Lookup returns the records discovered for one resource and metric name.
// A resource that published nothing yields an empty slice, which is not an
// error: the agent may simply not run there.
func (i *FanoutIndex) Lookup(resourceID, metric string) []FanoutRecord {
	return i.records[resourceID][metric]
}

// Size returns the total number of indexed records.
func (i *FanoutIndex) Size() int {
	total := 0
	for _, byMetric := range i.records {
		for _, recs := range byMetric {
			total += len(recs)
		}
	}
	return total
}

func (i *FanoutIndex) add(metric string, rec FanoutRecord) {
	byMetric, ok := i.records[rec.ResourceID]
	if !ok {
		byMetric = make(map[string][]FanoutRecord)
		i.records[rec.ResourceID] = byMetric
	}
	byMetric[metric] = append(byMetric[metric], rec)
}

// sortRecords fixes the iteration order so a run always generates alarms in
// the same order regardless of page or goroutine scheduling.
func (i *FanoutIndex) sortRecords() {
	for _, byMetric := range i.records {
		for _, recs := range byMetric {
			slices.SortFunc(recs, func(a, b FanoutRecord) int {
				return strings.Compare(a.Suffix, b.Suffix)
			})
		}
	}
}

// BuildFanoutIndex discovers which dimension combinations the monitored
// resources publish for each configured agent metric. Metric names are
// queried concurrently; the call returns only once the index is complete.
// A listing failure for one metric name is logged and skipped so the other
// metrics still index.
func BuildFanoutIndex(
	ctx context.Context,
	api MetricsAPI,
	agent config.AgentConfig,
	identityKey string,
	resourceIDs []string,
	logger *slog.Logger,
) (*FanoutIndex, error) {
	idx := NewFanoutIndex()
	if agent.Namespace == "" || len(agent.Metrics) == 0 || len(resourceIDs) == 0 {
		return idx, nil
	}

	ctx, span := tracer.Start(ctx, "alarm.fanout_index")
	defer span.End()
	span.SetAttributes(
		attribute.String("metric.namespace", agent.Namespace),
		attribute.Int("resource.count", len(resourceIDs)),
	)

	monitored := make(map[string]struct{}, len(resourceIDs))
	for _, id := range resourceIDs {
		monitored[id] = struct{}{}
	}

	var mu sync.Mutex
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentMetricQueries)

	for metric, distinctKey := range agent.Metrics {
		eg.Go(func() error {
			recs, err := listAgentMetric(ctx, api, agent.Namespace, metric, identityKey, distinctKey, monitored)
			if err != nil {
				if ctx.Err() != nil {
					return err
				}
				logger.WarnContext(
					ctx,
					"cannot index agent metric; skipping it",
					slog.String("metricName", metric),
					slog.String("error", err.Error()),
				)
				return nil
			}

			mu.Lock()
			for _, rec := range recs {
				idx.add(metric, rec)
			}
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("cannot build fanout index: %w", err)
	}

	idx.sortRecords()
	span.SetAttributes(attribute.Int("index.records", idx.Size()))
	logger.InfoContext(
		ctx,
		"fanout index built",
		slog.String("namespace", agent.Namespace),
		slog.Int("records", idx.Size()),
	)

	return idx, nil
}

func listAgentMetric(
	ctx context.Context,
	api MetricsAPI,
	namespace, metric, identityKey, distinctKey string,
	monitored map[string]struct{},
) ([]FanoutRecord, error) {
	paginator := cloudwatch.NewListMetricsPaginator(api, &cloudwatch.ListMetricsInput{
		Namespace:  aws.String(namespace),
		MetricName: aws.String(metric),
	})

	var out []FanoutRecord
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("cannot list metrics %s/%s: %w", namespace, metric, err)
		}

		for _, m := range page.Metrics {
			rec, ok := newFanoutRecord(m, identityKey, distinctKey, monitored)
			if !ok {
				continue
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

// newFanoutRecord filters one discovered metric: it must carry the identity
// dimension of a monitored resource and, when the metric has a distinct key
// configured, a value for it. Anything else is discarded.
func newFanoutRecord(m types.Metric, identityKey, distinctKey string, monitored map[string]struct{}) (FanoutRecord, bool) {
	var resourceID, suffix string
	for _, d := range m.Dimensions {
		switch aws.ToString(d.Name) {
		case identityKey:
			resourceID = aws.ToString(d.Value)
		case distinctKey:
			suffix = aws.ToString(d.Value)
		}
	}

	if resourceID == "" {
		return FanoutRecord{}, false
	}
	if _, ok := monitored[resourceID]; !ok {
		return FanoutRecord{}, false
	}
	if distinctKey != "" && suffix == "" {
		return FanoutRecord{}, false
	}

	return FanoutRecord{ResourceID: resourceID, Suffix: suffix, Dimensions: m.Dimensions}, true
}
