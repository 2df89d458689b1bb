// Package observability emits operational metrics for the alert pipeline.
package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"floodwatch/internal/types"
)

// Metric names emitted per sweep.
const (
	MetricSweepDuration = "SweepDuration"
	MetricUsersChecked  = "UsersChecked"
	MetricAlertsSent    = "AlertsSent"
	MetricSweepErrors   = "SweepErrors"
)

// SweepMetrics records the outcome of an alert sweep.
type SweepMetrics interface {
	RecordSweep(ctx context.Context, result types.SweepResult, duration time.Duration)
}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

var _ SweepMetrics = (*CloudWatchSweepMetrics)(nil)

// CloudWatchSweepMetrics publishes sweep outcomes to a CloudWatch namespace.
// Emission is best-effort: a metrics failure never fails the sweep.
type CloudWatchSweepMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchSweepMetrics creates a CloudWatchSweepMetrics publishing to the
// given namespace.
func NewCloudWatchSweepMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchSweepMetrics {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchSweepMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordSweep emits the four sweep metrics in a single PutMetricData call.
func (m *CloudWatchSweepMetrics) RecordSweep(ctx context.Context, result types.SweepResult, duration time.Duration) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(MetricSweepDuration),
				Value:      aws.Float64(float64(duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
			},
			{
				MetricName: aws.String(MetricUsersChecked),
				Value:      aws.Float64(float64(result.UsersChecked)),
				Unit:       cwtypes.StandardUnitCount,
			},
			{
				MetricName: aws.String(MetricAlertsSent),
				Value:      aws.Float64(float64(result.AlertsSent)),
				Unit:       cwtypes.StandardUnitCount,
			},
			{
				MetricName: aws.String(MetricSweepErrors),
				Value:      aws.Float64(float64(result.Errors)),
				Unit:       cwtypes.StandardUnitCount,
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, "failed to record sweep metrics",
			"error", err,
			"users_checked", result.UsersChecked,
			"alerts_sent", result.AlertsSent,
			"errors", result.Errors,
		)
	}
}

var _ SweepMetrics = NoopSweepMetrics{}

// NoopSweepMetrics discards all metrics. Used when metrics emission is
// disabled and in tests.
type NoopSweepMetrics struct{}

func (NoopSweepMetrics) RecordSweep(context.Context, types.SweepResult, time.Duration) {}
