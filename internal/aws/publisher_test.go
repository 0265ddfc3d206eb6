package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type mockSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (m *mockSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.inputs = append(m.inputs, in)
	if m.err != nil {
		return nil, m.err
	}
	return &sqs.SendMessageOutput{}, nil
}

func TestPublisher_SendMessage(t *testing.T) {
	mock := &mockSQS{}
	p := NewPublisher(mock, "https://sqs.local/queue")

	err := p.SendMessage(context.Background(), `{"order_id":"A-1"}`, map[string]string{
		"order_id":   "A-1",
		"new_status": "Shipped",
		"empty":      "",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.inputs) != 1 {
		t.Fatalf("expected one send, got %d", len(mock.inputs))
	}
	in := mock.inputs[0]
	if *in.QueueUrl != "https://sqs.local/queue" {
		t.Fatalf("queue url mismatch: %s", *in.QueueUrl)
	}
	if _, ok := in.MessageAttributes["empty"]; ok {
		t.Fatalf("empty attribute should be skipped")
	}
	if v := in.MessageAttributes["order_id"].StringValue; v == nil || *v != "A-1" {
		t.Fatalf("order_id attribute mismatch: %v", v)
	}
	if v := in.MessageAttributes["new_status"].StringValue; v == nil || *v != "Shipped" {
		t.Fatalf("new_status attribute mismatch: %v", v)
	}
}

func TestPublisher_SendMessageError(t *testing.T) {
	mock := &mockSQS{err: errors.New("boom")}
	p := NewPublisher(mock, "q")
	if err := p.SendMessage(context.Background(), "{}", nil); err == nil {
		t.Fatalf("expected error")
	}
}

type mockCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
}

func (m *mockCloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.inputs = append(m.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestMetricsPublisher_PublishCounts(t *testing.T) {
	mock := &mockCloudWatch{}
	mp := NewMetricsPublisher(mock, "OrderSync")

	err := mp.PublishCounts(context.Background(), map[string]int{
		"ItemsUpdated":  3,
		"ItemsIngested": 7,
	}, map[string]string{"Marketplace": "ATVPDKIKX0DER"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.inputs) != 1 {
		t.Fatalf("expected one call, got %d", len(mock.inputs))
	}
	in := mock.inputs[0]
	if *in.Namespace != "OrderSync" {
		t.Fatalf("namespace mismatch: %s", *in.Namespace)
	}
	if len(in.MetricData) != 2 {
		t.Fatalf("expected 2 datums, got %d", len(in.MetricData))
	}
	// names are sorted
	if *in.MetricData[0].MetricName != "ItemsIngested" || *in.MetricData[0].Value != 7 {
		t.Fatalf("unexpected first datum: %s=%v", *in.MetricData[0].MetricName, *in.MetricData[0].Value)
	}
	if len(in.MetricData[1].Dimensions) != 1 {
		t.Fatalf("expected dimension on datum")
	}
}

func TestMetricsPublisher_NoCountsNoCall(t *testing.T) {
	mock := &mockCloudWatch{}
	mp := NewMetricsPublisher(mock, "OrderSync")
	if err := mp.PublishCounts(context.Background(), nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.inputs) != 0 {
		t.Fatalf("expected no calls")
	}
}
