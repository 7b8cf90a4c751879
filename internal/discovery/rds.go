package discovery

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"

	"github.com/c1oudops/cloudwatch-alarm-manager/internal/alarm"
	"github.com/c1oudops/cloudwatch-alarm-manager/internal/config"
)

// RDSAPI is the subset of the RDS client used for discovery.
type RDSAPI interface {
	DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
}

// RDSPlugin discovers managed DB instances. DescribeDBInstances cannot filter
// by tag server-side, so the managed-by tag is checked on each instance's
// TagList. The plugin also records each instance's allocated storage for
// capacity-based thresholds.
type RDSPlugin struct {
	api       RDSAPI
	managedBy string
	storage   map[string]int32
}

func NewRDSPlugin(api RDSAPI, managedBy string) *RDSPlugin {
	return &RDSPlugin{
		api:       api,
		managedBy: managedBy,
		storage:   make(map[string]int32),
	}
}

func (p *RDSPlugin) ResourceType() config.ResourceType {
	return config.ResourceRDS
}

func (p *RDSPlugin) Discover(ctx context.Context) ([]alarm.Resource, error) {
	var resources []alarm.Resource
	paginator := rds.NewDescribeDBInstancesPaginator(p.api, &rds.DescribeDBInstancesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("cannot describe db instances: %w", err)
		}

		for _, db := range page.DBInstances {
			if !hasTag(db.TagList, config.ManagedByTagKey, p.managedBy) {
				continue
			}

			id := aws.ToString(db.DBInstanceIdentifier)
			p.storage[id] = aws.ToInt32(db.AllocatedStorage)
			resources = append(resources, alarm.Resource{
				Type: config.ResourceRDS,
				Name: id,
				ID:   id,
			})
		}
	}

	return resources, nil
}

// AllocatedStorage returns the provisioned storage in GiB recorded for a DB
// instance during the last Discover call.
func (p *RDSPlugin) AllocatedStorage(id string) (int32, bool) {
	gib, ok := p.storage[id]
	return gib, ok
}

func hasTag(tags []rdstypes.Tag, key, value string) bool {
	for _, tag := range tags {
		if aws.ToString(tag.Key) == key && aws.ToString(tag.Value) == value {
			return true
		}
	}
	return false
}
