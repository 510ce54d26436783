package junocli

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/aws/aws-sdk-go/service/cloudwatch/cloudwatchiface"
	"github.com/tj/assert"
)

type fakeCloudWatch struct {
	cloudwatchiface.CloudWatchAPI
	inputs []*cloudwatch.PutMetricDataInput
}

func (f *fakeCloudWatch) PutMetricDataWithContext(_ aws.Context, input *cloudwatch.PutMetricDataInput, _ ...request.Option) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, input)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestMetrics(t *testing.T) {
	service := Service{Name: "relay", Version: "abc"}

	t.Run("nil client is a no-op", func(t *testing.T) {
		var m Metrics
		m.Event(context.Background(), RelayFrameMetric)
		m.Timing(context.Background(), CompletionTimeMetric, time.Now())
	})

	t.Run("event carries dimensions", func(t *testing.T) {
		cw := &fakeCloudWatch{}
		m := NewMetrics(service, cw)
		m.Event(context.Background(), RelayFrameMetric, map[DimensionName]string{ActionDimension: "ping", TopicDimension: ""})

		assert.Len(t, cw.inputs, 1)
		datum := cw.inputs[0].MetricData[0]
		assert.Equal(t, string(RelayFrameMetric), aws.StringValue(datum.MetricName))
		assert.Equal(t, cloudwatch.StandardUnitCount, aws.StringValue(datum.Unit))

		names := map[string]string{}
		for _, d := range datum.Dimensions {
			names[aws.StringValue(d.Name)] = aws.StringValue(d.Value)
		}
		assert.Equal(t, map[string]string{"Action": "ping", "Service": "relay", "Version": "abc"}, names)
	})
}

func TestEnvVarMetrics(t *testing.T) {
	assert.Equal(t, "IDLE_TIMEOUT", EnvVar("idle-timeout"))
	assert.Equal(t, "ENV", EnvVar("env"))
}
