package appmetrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/applicationsignals"
	signalstypes "github.com/aws/aws-sdk-go-v2/service/applicationsignals/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	awslib "appsignals/internal/aws"
	"appsignals/internal/mcp"
)

const (
	defaultStatistic         = "Average"
	defaultExtendedStatistic = "p99"
	maxLookbackHours         = 168
	recentDatapointCount     = 10
)

type Service struct {
	ctx              mcp.ToolsetContext
	signalsClient    func(context.Context, string) (awslib.SignalsAPI, string, error)
	cloudwatchClient func(context.Context, string) (awslib.CloudWatchAPI, string, error)
	toolsetID        string
}

func ToolSpecs(ctx mcp.ToolsetContext, toolsetID string, signalsClient func(context.Context, string) (awslib.SignalsAPI, string, error), cloudwatchClient func(context.Context, string) (awslib.CloudWatchAPI, string, error)) []mcp.ToolSpec {
	svc := &Service{ctx: ctx, signalsClient: signalsClient, cloudwatchClient: cloudwatchClient, toolsetID: toolsetID}
	return []mcp.ToolSpec{
		{
			Name:        "appsignals.query_service_metrics",
			Description: "Query CloudWatch metrics for a monitored service with standard and percentile statistics.",
			ToolsetID:   toolsetID,
			InputSchema: schemaQueryServiceMetrics(),
			Safety:      mcp.SafetyReadOnly,
			Handler:     svc.handleQueryServiceMetrics,
		},
	}
}

func (s *Service) handleQueryServiceMetrics(ctx context.Context, req mcp.ToolRequest) (mcp.ToolResult, error) {
	serviceName := strings.TrimSpace(toString(req.Arguments["serviceName"]))
	if serviceName == "" {
		err := errors.New("serviceName is required")
		return errorResult(err), err
	}
	metricName := strings.TrimSpace(toString(req.Arguments["metricName"]))
	statistic := strings.TrimSpace(toString(req.Arguments["statistic"]))
	if statistic == "" {
		statistic = defaultStatistic
	}
	extendedStatistic := strings.TrimSpace(toString(req.Arguments["extendedStatistic"]))
	if extendedStatistic == "" {
		extendedStatistic = defaultExtendedStatistic
	}
	hours := toInt(req.Arguments["hours"], 1)
	if hours <= 0 {
		hours = 1
	}
	if hours > maxLookbackHours {
		err := fmt.Errorf("hours must be between 1 and %d", maxLookbackHours)
		return errorResult(err), err
	}
	region := toString(req.Arguments["region"])
	includeLinked := toBool(req.Arguments["includeLinkedAccounts"], includeLinkedDefault(s.ctx))

	client, usedRegion, err := s.signalsClient(ctx, region)
	if err != nil {
		return errorResult(err), err
	}

	endTime := time.Now().UTC()
	startTime := endTime.Add(-time.Duration(hours) * time.Hour)
	detail, err := getServiceDetail(ctx, client, serviceName, includeLinked, startTime, endTime, maxServices(s.ctx))
	if err != nil {
		return errorResult(err), err
	}
	metricRefs := detail.MetricReferences
	if len(metricRefs) == 0 {
		err := fmt.Errorf("no metrics found for service %q", serviceName)
		return errorResult(err), err
	}

	if metricName == "" {
		available := make([]map[string]any, 0, len(metricRefs))
		for _, ref := range metricRefs {
			available = append(available, map[string]any{
				"metricName": aws.ToString(ref.MetricName),
				"namespace":  aws.ToString(ref.Namespace),
				"metricType": aws.ToString(ref.MetricType),
			})
		}
		data := s.ctx.Redactor.RedactValue(map[string]any{
			"region":           usedRegion,
			"service":          serviceName,
			"availableMetrics": available,
		})
		return mcp.ToolResult{Data: data, Metadata: mcp.ToolMetadata{Resources: []string{serviceName}}}, nil
	}

	var targetMetric *signalstypes.MetricReference
	for i := range metricRefs {
		if aws.ToString(metricRefs[i].MetricName) == metricName {
			targetMetric = &metricRefs[i]
			break
		}
	}
	if targetMetric == nil {
		names := make([]string, 0, len(metricRefs))
		for _, ref := range metricRefs {
			names = append(names, aws.ToString(ref.MetricName))
		}
		err := fmt.Errorf("metric %q not found for service %q, available: %s", metricName, serviceName, strings.Join(names, ", "))
		return errorResult(err), err
	}

	period := periodForHours(hours)
	accountID := aws.ToString(targetMetric.AccountId)
	if accountID == "" {
		accountID = detail.KeyAttributes["AwsAccountId"]
	}

	queries := []cwtypes.MetricDataQuery{
		metricQuery("m1", *targetMetric, period, statistic, accountID),
		metricQuery("m2", *targetMetric, period, extendedStatistic, accountID),
	}
	cwClient, _, err := s.cloudwatchClient(ctx, region)
	if err != nil {
		return errorResult(err), err
	}
	out, err := cwClient.GetMetricData(ctx, &cloudwatch.GetMetricDataInput{
		MetricDataQueries: queries,
		StartTime:         aws.Time(startTime),
		EndTime:           aws.Time(endTime),
	})
	if err != nil {
		return errorResult(err), err
	}

	datapoints := mergeDatapoints(out.MetricDataResults, statistic, extendedStatistic)
	if len(datapoints) == 0 {
		data := map[string]any{
			"region":  usedRegion,
			"service": serviceName,
			"metric":  metricName,
			"hours":   hours,
			"message": fmt.Sprintf("no data points found for metric %q in the last %d hour(s)", metricName, hours),
		}
		return mcp.ToolResult{Data: data, Metadata: mcp.ToolMetadata{Resources: []string{serviceName}}}, nil
	}

	summary := map[string]any{}
	if stats, ok := summarizeValues(datapoints, statistic); ok {
		summary[statistic] = stats
	}
	if stats, ok := summarizeValues(datapoints, extendedStatistic); ok {
		summary[extendedStatistic] = stats
	}

	recent := datapoints
	if len(recent) > recentDatapointCount {
		recent = recent[len(recent)-recentDatapointCount:]
	}
	data := s.ctx.Redactor.RedactValue(map[string]any{
		"region":           usedRegion,
		"service":          serviceName,
		"metric":           metricName,
		"hours":            hours,
		"periodSeconds":    period,
		"summary":          summary,
		"datapointCount":   len(datapoints),
		"recentDatapoints": datapointsToAny(recent),
	})
	return mcp.ToolResult{Data: data, Metadata: mcp.ToolMetadata{Resources: []string{serviceName}}}, nil
}

type datapoint struct {
	timestamp time.Time
	values    map[string]float64
}

func getServiceDetail(ctx context.Context, client awslib.SignalsAPI, serviceName string, includeLinked bool, startTime, endTime time.Time, max int) (*signalstypes.Service, error) {
	summaries, err := awslib.ListServiceSummaries(ctx, client, startTime, endTime, includeLinked, max)
	if err != nil {
		return nil, err
	}

	for _, summary := range summaries {
		if summary.KeyAttributes["Name"] != serviceName {
			continue
		}
		out, err := client.GetService(ctx, &applicationsignals.GetServiceInput{
			StartTime:     aws.Time(startTime),
			EndTime:       aws.Time(endTime),
			KeyAttributes: summary.KeyAttributes,
		})
		if err != nil {
			return nil, err
		}
		if out.Service == nil {
			break
		}
		return out.Service, nil
	}
	return nil, fmt.Errorf("service %q not found in Application Signals", serviceName)
}

// periodForHours picks metric granularity matching the query window.
func periodForHours(hours int) int32 {
	switch {
	case hours <= 3:
		return 60
	case hours <= 24:
		return 300
	default:
		return 3600
	}
}

func metricQuery(id string, ref signalstypes.MetricReference, period int32, stat, accountID string) cwtypes.MetricDataQuery {
	dimensions := make([]cwtypes.Dimension, 0, len(ref.Dimensions))
	for _, dim := range ref.Dimensions {
		dimensions = append(dimensions, cwtypes.Dimension{Name: dim.Name, Value: dim.Value})
	}
	query := cwtypes.MetricDataQuery{
		Id: aws.String(id),
		MetricStat: &cwtypes.MetricStat{
			Metric: &cwtypes.Metric{
				Namespace:  ref.Namespace,
				MetricName: ref.MetricName,
				Dimensions: dimensions,
			},
			Period: aws.Int32(period),
			Stat:   aws.String(stat),
		},
		ReturnData: aws.Bool(true),
	}
	if accountID != "" {
		query.AccountId = aws.String(accountID)
	}
	return query
}

// mergeDatapoints zips the standard and extended statistic series on the
// first series' timestamps.
func mergeDatapoints(results []cwtypes.MetricDataResult, statistic, extendedStatistic string) []datapoint {
	if len(results) == 0 || len(results[0].Timestamps) == 0 {
		return nil
	}
	datapoints := make([]datapoint, 0, len(results[0].Timestamps))
	for i, timestamp := range results[0].Timestamps {
		dp := datapoint{timestamp: timestamp, values: map[string]float64{}}
		if i < len(results[0].Values) {
			dp.values[statistic] = results[0].Values[i]
		}
		if len(results) > 1 && i < len(results[1].Values) {
			dp.values[extendedStatistic] = results[1].Values[i]
		}
		datapoints = append(datapoints, dp)
	}
	sort.Slice(datapoints, func(i, j int) bool {
		return datapoints[i].timestamp.Before(datapoints[j].timestamp)
	})
	return datapoints
}

func summarizeValues(datapoints []datapoint, stat string) (map[string]any, bool) {
	values := []float64{}
	var latest float64
	hasLatest := false
	for _, dp := range datapoints {
		if value, ok := dp.values[stat]; ok {
			values = append(values, value)
			latest = value
			hasLatest = true
		}
	}
	if len(values) == 0 || !hasLatest {
		return nil, false
	}
	sum := 0.0
	max := values[0]
	min := values[0]
	for _, value := range values {
		sum += value
		if value > max {
			max = value
		}
		if value < min {
			min = value
		}
	}
	return map[string]any{
		"latest":  latest,
		"average": sum / float64(len(values)),
		"maximum": max,
		"minimum": min,
	}, true
}

func datapointsToAny(datapoints []datapoint) []any {
	out := make([]any, 0, len(datapoints))
	for _, dp := range datapoints {
		entry := map[string]any{"timestamp": dp.timestamp.UTC().Format(time.RFC3339)}
		for stat, value := range dp.values {
			entry[stat] = value
		}
		out = append(out, entry)
	}
	return out
}

func includeLinkedDefault(ctx mcp.ToolsetContext) bool {
	if ctx.Config != nil {
		return ctx.Config.IncludeLinkedAccounts()
	}
	return true
}

func maxServices(ctx mcp.ToolsetContext) int {
	if ctx.Config != nil && ctx.Config.Limits.MaxServices > 0 {
		return ctx.Config.Limits.MaxServices
	}
	return 100
}

func errorResult(err error) mcp.ToolResult {
	return mcp.ToolResult{Data: map[string]any{"error": err.Error()}}
}

func toString(value any) string {
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}

func toInt(value any, fallback int) int {
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		if parsed, err := v.Int64(); err == nil {
			return int(parsed)
		}
	}
	return fallback
}

func toBool(value any, fallback bool) bool {
	if v, ok := value.(bool); ok {
		return v
	}
	return fallback
}
