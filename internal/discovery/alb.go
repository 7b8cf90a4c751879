package discovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbv2types "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"

	"github.com/c1oudops/cloudwatch-alarm-manager/internal/alarm"
	"github.com/c1oudops/cloudwatch-alarm-manager/internal/config"
)

// describeTagsBatchSize is the ARN limit of one DescribeTags call.
const describeTagsBatchSize = 20

// ELBAPI is the subset of the ELBv2 client used for discovery.
type ELBAPI interface {
	DescribeLoadBalancers(ctx context.Context, params *elbv2.DescribeLoadBalancersInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeLoadBalancersOutput, error)
	DescribeTags(ctx context.Context, params *elbv2.DescribeTagsInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeTagsOutput, error)
	DescribeTargetGroups(ctx context.Context, params *elbv2.DescribeTargetGroupsInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeTargetGroupsOutput, error)
}

// ALBPlugin discovers managed application load balancers and the target
// groups attached to them. The resource ID and related IDs use the ARN
// suffixes CloudWatch expects as dimension values.
type ALBPlugin struct {
	api       ELBAPI
	managedBy string
}

func NewALBPlugin(api ELBAPI, managedBy string) *ALBPlugin {
	return &ALBPlugin{
		api:       api,
		managedBy: managedBy,
	}
}

func (p *ALBPlugin) ResourceType() config.ResourceType {
	return config.ResourceALB
}

func (p *ALBPlugin) Discover(ctx context.Context) ([]alarm.Resource, error) {
	balancers, err := p.listApplicationLoadBalancers(ctx)
	if err != nil {
		return nil, err
	}
	if len(balancers) == 0 {
		return nil, nil
	}

	managed, err := p.filterManaged(ctx, balancers)
	if err != nil {
		return nil, err
	}

	resources := make([]alarm.Resource, 0, len(managed))
	for _, lb := range managed {
		arn := aws.ToString(lb.LoadBalancerArn)
		related, err := p.targetGroupValues(ctx, arn)
		if err != nil {
			return nil, err
		}

		resources = append(resources, alarm.Resource{
			Type:    config.ResourceALB,
			Name:    aws.ToString(lb.LoadBalancerName),
			ID:      loadBalancerValue(arn),
			Related: related,
		})
	}

	return resources, nil
}

func (p *ALBPlugin) listApplicationLoadBalancers(ctx context.Context) ([]elbv2types.LoadBalancer, error) {
	var balancers []elbv2types.LoadBalancer
	paginator := elbv2.NewDescribeLoadBalancersPaginator(p.api, &elbv2.DescribeLoadBalancersInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("cannot describe load balancers: %w", err)
		}

		for _, lb := range page.LoadBalancers {
			if lb.Type != elbv2types.LoadBalancerTypeEnumApplication {
				continue
			}
			balancers = append(balancers, lb)
		}
	}

	return balancers, nil
}

// filterManaged resolves tags in batches and keeps the balancers carrying the
// managed-by tag.
func (p *ALBPlugin) filterManaged(ctx context.Context, balancers []elbv2types.LoadBalancer) ([]elbv2types.LoadBalancer, error) {
	byARN := make(map[string]elbv2types.LoadBalancer, len(balancers))
	arns := make([]string, 0, len(balancers))
	for _, lb := range balancers {
		arn := aws.ToString(lb.LoadBalancerArn)
		byARN[arn] = lb
		arns = append(arns, arn)
	}

	var managed []elbv2types.LoadBalancer
	for start := 0; start < len(arns); start += describeTagsBatchSize {
		end := start + describeTagsBatchSize
		if end > len(arns) {
			end = len(arns)
		}

		output, err := p.api.DescribeTags(ctx, &elbv2.DescribeTagsInput{
			ResourceArns: arns[start:end],
		})
		if err != nil {
			return nil, fmt.Errorf("cannot describe load balancer tags: %w", err)
		}

		for _, desc := range output.TagDescriptions {
			if !hasELBTag(desc.Tags, config.ManagedByTagKey, p.managedBy) {
				continue
			}
			if lb, ok := byARN[aws.ToString(desc.ResourceArn)]; ok {
				managed = append(managed, lb)
			}
		}
	}

	return managed, nil
}

func (p *ALBPlugin) targetGroupValues(ctx context.Context, loadBalancerARN string) ([]string, error) {
	output, err := p.api.DescribeTargetGroups(ctx, &elbv2.DescribeTargetGroupsInput{
		LoadBalancerArn: aws.String(loadBalancerARN),
	})
	if err != nil {
		return nil, fmt.Errorf("cannot describe target groups: %w", err)
	}

	values := make([]string, 0, len(output.TargetGroups))
	for _, tg := range output.TargetGroups {
		values = append(values, targetGroupValue(aws.ToString(tg.TargetGroupArn)))
	}

	return values, nil
}

func hasELBTag(tags []elbv2types.Tag, key, value string) bool {
	for _, tag := range tags {
		if aws.ToString(tag.Key) == key && aws.ToString(tag.Value) == value {
			return true
		}
	}
	return false
}

// loadBalancerValue extracts the "app/<name>/<hash>" dimension value from a
// load balancer ARN.
func loadBalancerValue(arn string) string {
	const marker = ":loadbalancer/"
	if i := strings.Index(arn, marker); i >= 0 {
		return arn[i+len(marker):]
	}
	return arn
}

// targetGroupValue extracts the "targetgroup/<name>/<hash>" dimension value
// from a target group ARN.
func targetGroupValue(arn string) string {
	const marker = ":targetgroup/"
	if i := strings.Index(arn, marker); i >= 0 {
		return arn[i+1:]
	}
	return arn
}
