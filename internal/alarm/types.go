// Package alarm generates CloudWatch alarm definitions for monitored
// resources: it resolves thresholds and dimensions per landing zone,
// deduplicates against already-deployed alarms and fans agent metrics out
// into one alarm per discovered dimension combination.
package alarm

import (
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/c1oudops/cloudwatch-alarm-manager/internal/config"
)

// Resource is one monitored cloud resource.
type Resource struct {
	Type config.ResourceType

	// Name is the human label used in alarm names; ID is the value of the
	// resource's identifying CloudWatch dimension.
	Name string
	ID   string

	// Related holds dimension values of attached sub-resources, e.g. the
	// target groups behind a load balancer.
	Related []string
}

// Definition is a fully resolved alarm ready to deploy.
type Definition struct {
	Name               string
	Description        string
	MetricName         string
	Namespace          string
	Dimensions         []types.Dimension
	Statistic          types.Statistic
	ComparisonOperator types.ComparisonOperator
	Unit               types.StandardUnit
	Period             int32
	EvaluationPeriods  int32
	Threshold          float64
	AlarmActions       []string
}

// Stats counts generation outcomes for one run.
type Stats struct {
	Generated        int
	SkippedExisting  int
	SkippedDisabled  int
	MissingThreshold int
	MissingCapacity  int
	Recovered        int
}

// Skipped returns the total number of alarms not generated for a known reason.
func (s Stats) Skipped() int {
	return s.SkippedExisting + s.SkippedDisabled + s.MissingThreshold + s.MissingCapacity
}
