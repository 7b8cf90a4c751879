package alarm

import (
	"github.com/c1oudops/cloudwatch-alarm-manager/internal/config"
)

const bytesPerGiB = 1 << 30

// Thresholds resolves alert thresholds by category, resource type and metric.
// A missing entry is reported as absent, never as a zero threshold.
type Thresholds struct {
	table map[config.Category]map[config.ResourceType]map[string]float64
}

// NewThresholds wraps a category -> resource type -> metric threshold table.
func NewThresholds(table map[config.Category]map[config.ResourceType]map[string]float64) *Thresholds {
	return &Thresholds{table: table}
}

// Resolve looks up the threshold for one metric alarm.
func (t *Thresholds) Resolve(cat config.Category, rt config.ResourceType, metric string) (float64, bool) {
	byType, ok := t.table[cat]
	if !ok {
		return 0, false
	}

	byMetric, ok := byType[rt]
	if !ok {
		return 0, false
	}

	value, ok := byMetric[metric]
	return value, ok
}

// CapacityThresholdBytes converts a percent-of-capacity threshold into an
// absolute byte value for a resource with allocatedGiB of provisioned storage.
func CapacityThresholdBytes(allocatedGiB int32, percent float64) float64 {
	return float64(allocatedGiB) * bytesPerGiB * percent / 100
}
