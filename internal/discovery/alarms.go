package discovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi"
	taggingtypes "github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi/types"

	"github.com/c1oudops/cloudwatch-alarm-manager/internal/config"
)

// TaggingAPI is the subset of the Resource Groups Tagging client used to
// find alarms deployed by earlier runs.
type TaggingAPI interface {
	GetResources(ctx context.Context, params *resourcegroupstaggingapi.GetResourcesInput, optFns ...func(*resourcegroupstaggingapi.Options)) (*resourcegroupstaggingapi.GetResourcesOutput, error)
}

// ManagedAlarmNames lists the names of CloudWatch alarms carrying the
// managed-by tag. Names are parsed from the alarm ARNs, so no CloudWatch
// call is needed.
func ManagedAlarmNames(ctx context.Context, api TaggingAPI, managedBy string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "discovery.managed_alarms")
	defer span.End()

	input := &resourcegroupstaggingapi.GetResourcesInput{
		ResourceTypeFilters: []string{"cloudwatch:alarm"},
		TagFilters: []taggingtypes.TagFilter{
			{
				Key:    aws.String(config.ManagedByTagKey),
				Values: []string{managedBy},
			},
		},
	}

	var names []string
	paginator := resourcegroupstaggingapi.NewGetResourcesPaginator(api, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("cannot list managed alarms: %w", err)
		}

		for _, mapping := range page.ResourceTagMappingList {
			if name, ok := alarmNameFromARN(aws.ToString(mapping.ResourceARN)); ok {
				names = append(names, name)
			}
		}
	}

	return names, nil
}

// alarmNameFromARN parses "arn:aws:cloudwatch:<region>:<account>:alarm:<name>".
// SplitN keeps names containing colons intact.
func alarmNameFromARN(arn string) (string, bool) {
	parts := strings.SplitN(arn, ":", 7)
	if len(parts) != 7 || parts[5] != "alarm" {
		return "", false
	}
	return parts[6], true
}
