package alarm

import (
	"fmt"
	"strings"

	"github.com/c1oudops/cloudwatch-alarm-manager/internal/config"
)

// Agent metric names can contain spaces and percent signs; both are stripped
// so the same inputs always yield the same deployable name.
var metricSanitizer = strings.NewReplacer(" ", "", "%", "")

// BuildName assembles the deterministic alarm name
// <landing zone>-<resource type>-<resource name>-<metric>[-<suffix>].
// The suffix keeps sibling alarms apart when one resource/metric pair yields
// several alarms (per disk path, per target group).
func BuildName(lzName string, rt config.ResourceType, resourceName, metric, suffix string) string {
	name := fmt.Sprintf("%s-%s-%s-%s", lzName, rt, resourceName, metricSanitizer.Replace(metric))
	if suffix != "" {
		name += "-" + suffix
	}
	return name
}
