// Package metrics publishes operational counters to CloudWatch. Publishing
// is best-effort: a failed PutMetricData is logged and swallowed so metric
// delivery can never fail a request.
package metrics

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	awsint "github.com/tesoroschoco/marketplace-api/internal/aws"
	"github.com/tesoroschoco/marketplace-api/internal/logging"
)

// Recorder emits one count per named event into a single namespace.
type Recorder struct {
	client    awsint.CloudWatchAPI
	namespace string
	nowFunc   func() time.Time
}

func NewRecorder(client awsint.CloudWatchAPI, namespace string) *Recorder {
	return &Recorder{
		client:    client,
		namespace: namespace,
		nowFunc:   time.Now,
	}
}

// CheckoutOutcome counts one finished checkout under its outcome label.
func (r *Recorder) CheckoutOutcome(ctx context.Context, outcome string) {
	r.count(ctx, "CheckoutOutcome", "outcome", outcome)
}

// Event counts one occurrence of a named application event.
func (r *Recorder) Event(ctx context.Context, name string) {
	r.count(ctx, name, "", "")
}

func (r *Recorder) count(ctx context.Context, metric, dimName, dimValue string) {
	now := r.nowFunc().UTC()
	datum := cwtypes.MetricDatum{
		MetricName: &metric,
		Timestamp:  &now,
		Unit:       cwtypes.StandardUnitCount,
		Value:      float64Ptr(1),
	}
	if dimName != "" {
		datum.Dimensions = []cwtypes.Dimension{
			{Name: &dimName, Value: &dimValue},
		}
	}

	_, err := r.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  &r.namespace,
		MetricData: []cwtypes.MetricDatum{datum},
	})
	if err != nil {
		logging.Log(logging.Fields{
			Service: "metrics",
			Event:   "put_metric_failed",
			Error:   err.Error(),
			Message: metric,
		})
	}
}

func float64Ptr(f float64) *float64 { return &f }
