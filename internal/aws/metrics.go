package aws

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// maxMetricsPerCall is the PutMetricData limit per request.
const maxMetricsPerCall = 1000

// MetricsPublisher pushes run counters to CloudWatch under one namespace.
type MetricsPublisher struct {
	client    CloudWatchAPI
	namespace string
	nowFunc   func() time.Time
}

// NewMetricsPublisher returns a publisher writing to namespace.
func NewMetricsPublisher(client CloudWatchAPI, namespace string) *MetricsPublisher {
	return &MetricsPublisher{
		client:    client,
		namespace: namespace,
		nowFunc:   time.Now,
	}
}

// PublishCounts writes each counter as a Count metric with the given dimensions.
func (m *MetricsPublisher) PublishCounts(ctx context.Context, counts map[string]int, dimensions map[string]string) error {
	if len(counts) == 0 {
		return nil
	}

	dims := make([]cwtypes.Dimension, 0, len(dimensions))
	for k, v := range dimensions {
		dims = append(dims, cwtypes.Dimension{Name: awsString(k), Value: awsString(v)})
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	now := m.nowFunc()
	data := make([]cwtypes.MetricDatum, 0, len(names))
	for _, name := range names {
		value := float64(counts[name])
		data = append(data, cwtypes.MetricDatum{
			MetricName: awsString(name),
			Value:      &value,
			Unit:       cwtypes.StandardUnitCount,
			Timestamp:  &now,
			Dimensions: dims,
		})
	}

	for start := 0; start < len(data); start += maxMetricsPerCall {
		end := min(start+maxMetricsPerCall, len(data))
		_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  &m.namespace,
			MetricData: data[start:end],
		})
		if err != nil {
			return fmt.Errorf("put metric data: %w", err)
		}
	}
	return nil
}
