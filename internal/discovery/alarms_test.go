package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi"
	taggingtypes "github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/c1oudops/cloudwatch-alarm-manager/internal/config"
)

func managedAlarmsInput(paginationToken *string) *resourcegroupstaggingapi.GetResourcesInput {
	return &resourcegroupstaggingapi.GetResourcesInput{
		ResourceTypeFilters: []string{"cloudwatch:alarm"},
		TagFilters: []taggingtypes.TagFilter{
			{
				Key:    aws.String(config.ManagedByTagKey),
				Values: []string{"alarm-manager"},
			},
		},
		PaginationToken: paginationToken,
	}
}

func alarmMapping(arn string) taggingtypes.ResourceTagMapping {
	return taggingtypes.ResourceTagMapping{ResourceARN: aws.String(arn)}
}

func TestManagedAlarmNames(t *testing.T) {
	apiMock := new(TaggingAPIMock)
	apiMock.On(
		"GetResources",
		mock.Anything,
		managedAlarmsInput(nil),
		mock.AnythingOfType("[]func(*resourcegroupstaggingapi.Options)"),
	).Return(&resourcegroupstaggingapi.GetResourcesOutput{
		ResourceTagMappingList: []taggingtypes.ResourceTagMapping{
			alarmMapping("arn:aws:cloudwatch:eu-west-1:111111111111:alarm:pay-ec2-web-1-CPUUtilization"),
		},
		PaginationToken: aws.String("page-2"),
	}, nil).Once()
	apiMock.On(
		"GetResources",
		mock.Anything,
		managedAlarmsInput(aws.String("page-2")),
		mock.AnythingOfType("[]func(*resourcegroupstaggingapi.Options)"),
	).Return(&resourcegroupstaggingapi.GetResourcesOutput{
		ResourceTagMappingList: []taggingtypes.ResourceTagMapping{
			alarmMapping("arn:aws:cloudwatch:eu-west-1:111111111111:alarm:legacy:alarm:name"),
			alarmMapping("arn:aws:sns:eu-west-1:111111111111:some-topic"),
		},
	}, nil).Once()

	names, err := ManagedAlarmNames(context.Background(), apiMock, "alarm-manager")

	require.NoError(t, err)
	assert.Equal(t, []string{
		"pay-ec2-web-1-CPUUtilization",
		"legacy:alarm:name",
	}, names)
	apiMock.AssertExpectations(t)
}

func TestManagedAlarmNames_Empty(t *testing.T) {
	apiMock := new(TaggingAPIMock)
	apiMock.On("GetResources", mock.Anything, mock.Anything, mock.Anything).
		Return(&resourcegroupstaggingapi.GetResourcesOutput{}, nil)

	names, err := ManagedAlarmNames(context.Background(), apiMock, "alarm-manager")

	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestManagedAlarmNames_Error(t *testing.T) {
	apiMock := new(TaggingAPIMock)
	apiMock.On("GetResources", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("access denied"))

	_, err := ManagedAlarmNames(context.Background(), apiMock, "alarm-manager")

	require.Error(t, err)
	assert.ErrorContains(t, err, "cannot list managed alarms")
}
