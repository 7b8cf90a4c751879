package alarm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/c1oudops/cloudwatch-alarm-manager/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newListMetricsInput(namespace, metric string) *cloudwatch.ListMetricsInput {
	return &cloudwatch.ListMetricsInput{
		Namespace:  aws.String(namespace),
		MetricName: aws.String(metric),
	}
}

func newDimension(name, value string) types.Dimension {
	return types.Dimension{
		Name:  aws.String(name),
		Value: aws.String(value),
	}
}

func newMetric(metricName, namespace string, dimensions []types.Dimension) types.Metric {
	return types.Metric{
		MetricName: aws.String(metricName),
		Namespace:  aws.String(namespace),
		Dimensions: dimensions,
	}
}

func testAgent() config.AgentConfig {
	return config.AgentConfig{
		Namespace: "CWAgent",
		Metrics: map[string]string{
			"disk_used_percent": "path",
			"mem_used_percent":  "",
		},
	}
}

func TestBuildFanoutIndex_FiltersAndIndexes(t *testing.T) {
	mockCW := new(MetricsAPIMock)

	mockCW.On("ListMetrics",
		mock.MatchedBy(func(ctx context.Context) bool { return ctx != nil }),
		newListMetricsInput("CWAgent", "disk_used_percent"),
		mock.AnythingOfType("[]func(*cloudwatch.Options)"),
	).Return(&cloudwatch.ListMetricsOutput{
		Metrics: []types.Metric{
			newMetric("disk_used_percent", "CWAgent", []types.Dimension{
				newDimension("InstanceId", "i-monitored"),
				newDimension("path", "/var"),
			}),
			newMetric("disk_used_percent", "CWAgent", []types.Dimension{
				newDimension("InstanceId", "i-monitored"),
				newDimension("path", "/"),
			}),
			// Foreign instance: not in the monitored set.
			newMetric("disk_used_percent", "CWAgent", []types.Dimension{
				newDimension("InstanceId", "i-foreign"),
				newDimension("path", "/"),
			}),
			// No identity dimension at all.
			newMetric("disk_used_percent", "CWAgent", []types.Dimension{
				newDimension("path", "/"),
			}),
			// Identity present but the configured distinct key missing.
			newMetric("disk_used_percent", "CWAgent", []types.Dimension{
				newDimension("InstanceId", "i-monitored"),
			}),
		},
	}, nil).Once()

	mockCW.On("ListMetrics",
		mock.MatchedBy(func(ctx context.Context) bool { return ctx != nil }),
		newListMetricsInput("CWAgent", "mem_used_percent"),
		mock.AnythingOfType("[]func(*cloudwatch.Options)"),
	).Return(&cloudwatch.ListMetricsOutput{
		Metrics: []types.Metric{
			newMetric("mem_used_percent", "CWAgent", []types.Dimension{
				newDimension("InstanceId", "i-monitored"),
			}),
		},
	}, nil).Once()

	idx, err := BuildFanoutIndex(context.Background(), mockCW, testAgent(), "InstanceId", []string{"i-monitored"}, testLogger())
	require.NoError(t, err)
	require.NotNil(t, idx)
	assert.Equal(t, 3, idx.Size())

	disk := idx.Lookup("i-monitored", "disk_used_percent")
	require.Len(t, disk, 2)
	assert.Equal(t, "/", disk[0].Suffix)
	assert.Equal(t, "/var", disk[1].Suffix)
	require.Len(t, disk[0].Dimensions, 2)

	mem := idx.Lookup("i-monitored", "mem_used_percent")
	require.Len(t, mem, 1)
	assert.Empty(t, mem[0].Suffix)

	assert.Empty(t, idx.Lookup("i-foreign", "disk_used_percent"))

	mockCW.AssertExpectations(t)
}

func TestBuildFanoutIndex_NoAgentConfigured(t *testing.T) {
	mockCW := new(MetricsAPIMock)

	idx, err := BuildFanoutIndex(context.Background(), mockCW, config.AgentConfig{}, "InstanceId", []string{"i-monitored"}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Size())

	mockCW.AssertNotCalled(t, "ListMetrics", mock.Anything, mock.Anything, mock.Anything)
}

func TestBuildFanoutIndex_NoMonitoredResources(t *testing.T) {
	mockCW := new(MetricsAPIMock)

	idx, err := BuildFanoutIndex(context.Background(), mockCW, testAgent(), "InstanceId", nil, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Size())

	mockCW.AssertNotCalled(t, "ListMetrics", mock.Anything, mock.Anything, mock.Anything)
}

func TestBuildFanoutIndex_ListFailureSkipsMetric(t *testing.T) {
	mockCW := new(MetricsAPIMock)

	mockCW.On("ListMetrics",
		mock.MatchedBy(func(ctx context.Context) bool { return ctx != nil }),
		newListMetricsInput("CWAgent", "disk_used_percent"),
		mock.AnythingOfType("[]func(*cloudwatch.Options)"),
	).Return(nil, errors.New("throttled")).Once()

	mockCW.On("ListMetrics",
		mock.MatchedBy(func(ctx context.Context) bool { return ctx != nil }),
		newListMetricsInput("CWAgent", "mem_used_percent"),
		mock.AnythingOfType("[]func(*cloudwatch.Options)"),
	).Return(&cloudwatch.ListMetricsOutput{
		Metrics: []types.Metric{
			newMetric("mem_used_percent", "CWAgent", []types.Dimension{
				newDimension("InstanceId", "i-monitored"),
			}),
		},
	}, nil).Once()

	idx, err := BuildFanoutIndex(context.Background(), mockCW, testAgent(), "InstanceId", []string{"i-monitored"}, testLogger())
	require.NoError(t, err, "one failing metric must not abort the build")
	assert.Equal(t, 1, idx.Size())
	assert.Len(t, idx.Lookup("i-monitored", "mem_used_percent"), 1)

	mockCW.AssertExpectations(t)
}

func TestBuildFanoutIndex_Paginates(t *testing.T) {
	mockCW := new(MetricsAPIMock)
	agent := config.AgentConfig{
		Namespace: "CWAgent",
		Metrics:   map[string]string{"disk_used_percent": "path"},
	}

	firstPage := newListMetricsInput("CWAgent", "disk_used_percent")
	secondPage := newListMetricsInput("CWAgent", "disk_used_percent")
	secondPage.NextToken = aws.String("page-2")

	mockCW.On("ListMetrics",
		mock.MatchedBy(func(ctx context.Context) bool { return ctx != nil }),
		firstPage,
		mock.AnythingOfType("[]func(*cloudwatch.Options)"),
	).Return(&cloudwatch.ListMetricsOutput{
		Metrics: []types.Metric{
			newMetric("disk_used_percent", "CWAgent", []types.Dimension{
				newDimension("InstanceId", "i-monitored"),
				newDimension("path", "/"),
			}),
		},
		NextToken: aws.String("page-2"),
	}, nil).Once()

	mockCW.On("ListMetrics",
		mock.MatchedBy(func(ctx context.Context) bool { return ctx != nil }),
		secondPage,
		mock.AnythingOfType("[]func(*cloudwatch.Options)"),
	).Return(&cloudwatch.ListMetricsOutput{
		Metrics: []types.Metric{
			newMetric("disk_used_percent", "CWAgent", []types.Dimension{
				newDimension("InstanceId", "i-monitored"),
				newDimension("path", "/var"),
			}),
		},
	}, nil).Once()

	idx, err := BuildFanoutIndex(context.Background(), mockCW, agent, "InstanceId", []string{"i-monitored"}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Size())

	mockCW.AssertExpectations(t)
}
