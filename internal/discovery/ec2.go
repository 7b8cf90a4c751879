package discovery

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/c1oudops/cloudwatch-alarm-manager/internal/alarm"
	"github.com/c1oudops/cloudwatch-alarm-manager/internal/config"
)

// EC2API is the subset of the EC2 client used for discovery.
type EC2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

// EC2Plugin discovers running instances carrying the managed-by tag.
type EC2Plugin struct {
	api       EC2API
	managedBy string
}

func NewEC2Plugin(api EC2API, managedBy string) *EC2Plugin {
	return &EC2Plugin{
		api:       api,
		managedBy: managedBy,
	}
}

func (p *EC2Plugin) ResourceType() config.ResourceType {
	return config.ResourceEC2
}

func (p *EC2Plugin) Discover(ctx context.Context) ([]alarm.Resource, error) {
	input := &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{
			{
				Name:   aws.String("tag:" + config.ManagedByTagKey),
				Values: []string{p.managedBy},
			},
			{
				Name:   aws.String("instance-state-name"),
				Values: []string{"running"},
			},
		},
	}

	var resources []alarm.Resource
	paginator := ec2.NewDescribeInstancesPaginator(p.api, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("cannot describe instances: %w", err)
		}

		for _, reservation := range page.Reservations {
			for _, instance := range reservation.Instances {
				resources = append(resources, alarm.Resource{
					Type: config.ResourceEC2,
					Name: instanceName(instance),
					ID:   aws.ToString(instance.InstanceId),
				})
			}
		}
	}

	return resources, nil
}

// instanceName prefers the Name tag and falls back to the instance ID, which
// keeps alarm names unique when instances are left unnamed.
func instanceName(instance ec2types.Instance) string {
	for _, tag := range instance.Tags {
		if aws.ToString(tag.Key) == "Name" && aws.ToString(tag.Value) != "" {
			return aws.ToString(tag.Value)
		}
	}
	return aws.ToString(instance.InstanceId)
}
