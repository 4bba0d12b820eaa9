package appslo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/applicationsignals"
	signalstypes "github.com/aws/aws-sdk-go-v2/service/applicationsignals/types"
	"github.com/aws/aws-sdk-go-v2/service/xray"

	awslib "appsignals/internal/aws"
	"appsignals/internal/mcp"
	"appsignals/internal/sli"
)

const maxReportHours = 24

type Service struct {
	ctx              mcp.ToolsetContext
	signalsClient    func(context.Context, string) (awslib.SignalsAPI, string, error)
	cloudwatchClient func(context.Context, string) (awslib.CloudWatchAPI, string, error)
	xrayClient       func(context.Context, string) (awslib.XRayAPI, string, error)
	toolsetID        string
}

func ToolSpecs(ctx mcp.ToolsetContext, toolsetID string, signalsClient func(context.Context, string) (awslib.SignalsAPI, string, error), cloudwatchClient func(context.Context, string) (awslib.CloudWatchAPI, string, error), xrayClient func(context.Context, string) (awslib.XRayAPI, string, error)) []mcp.ToolSpec {
	svc := &Service{ctx: ctx, signalsClient: signalsClient, cloudwatchClient: cloudwatchClient, xrayClient: xrayClient, toolsetID: toolsetID}
	return []mcp.ToolSpec{
		{
			Name:        "appsignals.list_slos",
			Description: "List Service Level Objectives defined for a monitored service.",
			ToolsetID:   toolsetID,
			InputSchema: schemaListSLOs(),
			Safety:      mcp.SafetyReadOnly,
			Handler:     svc.handleListSLOs,
		},
		{
			Name:        "appsignals.get_slo",
			Description: "Get full configuration of one SLO: goal, SLI metrics, thresholds, burn rates.",
			ToolsetID:   toolsetID,
			InputSchema: schemaGetSLO(),
			Safety:      mcp.SafetyReadOnly,
			Handler:     svc.handleGetSLO,
		},
		{
			Name:        "appsignals.get_sli_status",
			Description: "Report SLI status (OK/BREACHED/INSUFFICIENT_DATA) for every monitored service.",
			ToolsetID:   toolsetID,
			InputSchema: schemaGetSLIStatus(),
			Safety:      mcp.SafetyReadOnly,
			Handler:     svc.handleGetSLIStatus,
		},
	}
}

func (s *Service) handleListSLOs(ctx context.Context, req mcp.ToolRequest) (mcp.ToolResult, error) {
	serviceName := strings.TrimSpace(toString(req.Arguments["serviceName"]))
	if serviceName == "" {
		err := errors.New("serviceName is required")
		return errorResult(err), err
	}
	serviceType := strings.TrimSpace(toString(req.Arguments["serviceType"]))
	if serviceType == "" {
		serviceType = "Service"
	}
	environment := strings.TrimSpace(toString(req.Arguments["environment"]))
	region := toString(req.Arguments["region"])
	includeLinked := toBool(req.Arguments["includeLinkedAccounts"], includeLinkedDefault(s.ctx))

	client, usedRegion, err := s.signalsClient(ctx, region)
	if err != nil {
		return errorResult(err), err
	}

	keyAttributes := map[string]string{"Name": serviceName, "Type": serviceType}
	if environment != "" {
		keyAttributes["Environment"] = environment
	}

	var slos []map[string]any
	var nextToken *string
	for {
		out, err := client.ListServiceLevelObjectives(ctx, &applicationsignals.ListServiceLevelObjectivesInput{
			KeyAttributes:         keyAttributes,
			IncludeLinkedAccounts: includeLinked,
			NextToken:             nextToken,
		})
		if err != nil {
			return errorResult(err), err
		}
		for _, summary := range out.SloSummaries {
			entry := map[string]any{
				"name":          aws.ToString(summary.Name),
				"arn":           aws.ToString(summary.Arn),
				"operationName": aws.ToString(summary.OperationName),
			}
			if summary.CreatedTime != nil {
				entry["createdTime"] = summary.CreatedTime.UTC().Format(time.RFC3339)
			}
			slos = append(slos, entry)
		}
		if out.NextToken == nil || aws.ToString(out.NextToken) == "" {
			break
		}
		nextToken = out.NextToken
	}

	data := s.ctx.Redactor.RedactValue(map[string]any{
		"region":  usedRegion,
		"service": serviceName,
		"count":   len(slos),
		"slos":    slos,
	})
	return mcp.ToolResult{Data: data, Metadata: mcp.ToolMetadata{Resources: []string{serviceName}}}, nil
}

func (s *Service) handleGetSLO(ctx context.Context, req mcp.ToolRequest) (mcp.ToolResult, error) {
	sloID := strings.TrimSpace(toString(req.Arguments["sloId"]))
	if sloID == "" {
		err := errors.New("sloId is required")
		return errorResult(err), err
	}
	region := toString(req.Arguments["region"])
	client, usedRegion, err := s.signalsClient(ctx, region)
	if err != nil {
		return errorResult(err), err
	}
	out, err := client.GetServiceLevelObjective(ctx, &applicationsignals.GetServiceLevelObjectiveInput{Id: aws.String(sloID)})
	if err != nil {
		return errorResult(err), err
	}
	slo := out.Slo
	if slo == nil {
		err := fmt.Errorf("SLO %q not found", sloID)
		return errorResult(err), err
	}

	detail := map[string]any{
		"region":         usedRegion,
		"name":           aws.ToString(slo.Name),
		"arn":            aws.ToString(slo.Arn),
		"evaluationType": string(slo.EvaluationType),
	}
	if aws.ToString(slo.Description) != "" {
		detail["description"] = aws.ToString(slo.Description)
	}
	if slo.CreatedTime != nil {
		detail["createdTime"] = slo.CreatedTime.UTC().Format(time.RFC3339)
	}
	if slo.LastUpdatedTime != nil {
		detail["lastUpdatedTime"] = slo.LastUpdatedTime.UTC().Format(time.RFC3339)
	}
	if slo.Goal != nil {
		detail["goal"] = summarizeGoal(slo.Goal)
	}
	if slo.Sli != nil {
		detail["sli"] = summarizePeriodSLI(slo.Sli)
	}
	if slo.RequestBasedSli != nil {
		detail["requestBasedSli"] = summarizeRequestSLI(slo.RequestBasedSli)
	}
	if len(slo.BurnRateConfigurations) > 0 {
		windows := make([]any, 0, len(slo.BurnRateConfigurations))
		for _, br := range slo.BurnRateConfigurations {
			windows = append(windows, map[string]any{"lookBackWindowMinutes": aws.ToInt32(br.LookBackWindowMinutes)})
		}
		detail["burnRateConfigurations"] = windows
	}

	data := s.ctx.Redactor.RedactValue(detail)
	return mcp.ToolResult{Data: data, Metadata: mcp.ToolMetadata{Resources: []string{aws.ToString(slo.Name)}}}, nil
}

func (s *Service) handleGetSLIStatus(ctx context.Context, req mcp.ToolRequest) (mcp.ToolResult, error) {
	hours := toInt(req.Arguments["hours"], maxReportHours)
	if hours <= 0 {
		hours = maxReportHours
	}
	if hours > maxReportHours {
		hours = maxReportHours
	}
	region := toString(req.Arguments["region"])
	includeLinked := toBool(req.Arguments["includeLinkedAccounts"], includeLinkedDefault(s.ctx))

	client, usedRegion, err := s.signalsClient(ctx, region)
	if err != nil {
		return errorResult(err), err
	}
	cwClient, _, err := s.cloudwatchClient(ctx, region)
	if err != nil {
		return errorResult(err), err
	}

	endTime := time.Now().UTC()
	startTime := endTime.Add(-time.Duration(hours) * time.Hour)
	summaries, err := awslib.ListServiceSummaries(ctx, client, startTime, endTime, includeLinked, maxServices(s.ctx))
	if err != nil {
		return errorResult(err), err
	}
	if len(summaries) == 0 {
		data := map[string]any{"region": usedRegion, "message": "no services found in Application Signals"}
		return mcp.ToolResult{Data: data}, nil
	}

	reports := make([]map[string]any, 0, len(summaries))
	names := make([]string, 0, len(summaries))
	counts := map[string]int{"OK": 0, "BREACHED": 0, "INSUFFICIENT_DATA": 0}
	byStatus := map[string][]string{"OK": {}, "BREACHED": {}, "INSUFFICIENT_DATA": {}}
	for _, summary := range summaries {
		name := summary.KeyAttributes["Name"]
		names = append(names, name)
		report := serviceReport(ctx, client, cwClient, summary, hours, includeLinked)
		status := report["status"].(string)
		counts[status]++
		byStatus[status] = append(byStatus[status], name)
		reports = append(reports, report)
	}

	data := map[string]any{
		"region":    usedRegion,
		"hours":     hours,
		"startTime": startTime.Format(time.RFC3339),
		"endTime":   endTime.Format(time.RFC3339),
		"summary": map[string]any{
			"totalServices":    len(reports),
			"ok":               counts["OK"],
			"breached":         counts["BREACHED"],
			"insufficientData": counts["INSUFFICIENT_DATA"],
		},
		"byStatus": byStatus,
		"reports":  reports,
	}
	if note := transactionSearchNote(ctx, s.xrayClient, region); note != nil {
		data["transactionSearch"] = note
	}
	return mcp.ToolResult{Data: s.ctx.Redactor.RedactValue(data), Metadata: mcp.ToolMetadata{Resources: names}}, nil
}

// serviceReport runs one SLI sweep; failures degrade to INSUFFICIENT_DATA
// so one broken service cannot abort the whole report.
func serviceReport(ctx context.Context, client awslib.SignalsAPI, cwClient awslib.CloudWatchAPI, summary signalstypes.ServiceSummary, hours int, includeLinked bool) map[string]any {
	name := summary.KeyAttributes["Name"]
	environment := summary.KeyAttributes["Environment"]
	reportClient := sli.NewClient(client, cwClient, sli.Config{
		PeriodHours:           hours,
		KeyAttributes:         summary.KeyAttributes,
		IncludeLinkedAccounts: includeLinked,
	})
	report, err := reportClient.Generate(ctx)
	if err != nil {
		return map[string]any{
			"service":          name,
			"environment":      environment,
			"status":           "INSUFFICIENT_DATA",
			"totalSloCount":    0,
			"okSloCount":       0,
			"breachedSloCount": 0,
			"breachedSloNames": []string{},
			"error":            err.Error(),
		}
	}
	status := report.Status
	if status == sli.StatusCritical {
		status = "BREACHED"
	}
	return map[string]any{
		"service":          name,
		"environment":      environment,
		"status":           status,
		"totalSloCount":    report.TotalSLOCount,
		"okSloCount":       report.OKSLOCount,
		"breachedSloCount": report.BreachedSLOCount,
		"breachedSloNames": report.BreachedSLONames,
	}
}

func transactionSearchNote(ctx context.Context, xrayClient func(context.Context, string) (awslib.XRayAPI, string, error), region string) map[string]any {
	if xrayClient == nil {
		return nil
	}
	client, _, err := xrayClient(ctx, region)
	if err != nil {
		return nil
	}
	out, err := client.GetTraceSegmentDestination(ctx, &xray.GetTraceSegmentDestinationInput{})
	if err != nil {
		return map[string]any{"enabled": false, "destination": "Unknown", "status": "Error"}
	}
	destination := string(out.Destination)
	status := string(out.Status)
	enabled := destination == "CloudWatchLogs" && status == "ACTIVE"
	note := map[string]any{"enabled": enabled, "destination": destination, "status": status}
	if !enabled {
		note["recommendation"] = "Enable Transaction Search for full trace visibility instead of 5% sampling."
	}
	return note
}

func summarizeGoal(goal *signalstypes.Goal) map[string]any {
	out := map[string]any{
		"attainmentGoal":   aws.ToFloat64(goal.AttainmentGoal),
		"warningThreshold": aws.ToFloat64(goal.WarningThreshold),
	}
	switch interval := goal.Interval.(type) {
	case *signalstypes.IntervalMemberRollingInterval:
		out["interval"] = map[string]any{
			"type":         "rolling",
			"duration":     aws.ToInt32(interval.Value.Duration),
			"durationUnit": string(interval.Value.DurationUnit),
		}
	case *signalstypes.IntervalMemberCalendarInterval:
		entry := map[string]any{
			"type":         "calendar",
			"duration":     aws.ToInt32(interval.Value.Duration),
			"durationUnit": string(interval.Value.DurationUnit),
		}
		if interval.Value.StartTime != nil {
			entry["startTime"] = interval.Value.StartTime.UTC().Format(time.RFC3339)
		}
		out["interval"] = entry
	}
	return out
}

func summarizePeriodSLI(indicator *signalstypes.ServiceLevelIndicator) map[string]any {
	out := map[string]any{
		"threshold":          aws.ToFloat64(indicator.MetricThreshold),
		"comparisonOperator": string(indicator.ComparisonOperator),
	}
	if indicator.SliMetric != nil {
		out["metric"] = summarizeSLIMetric(indicator.SliMetric.KeyAttributes, aws.ToString(indicator.SliMetric.OperationName), string(indicator.SliMetric.MetricType), indicator.SliMetric.MetricDataQueries, indicator.SliMetric.DependencyConfig)
	}
	return out
}

func summarizeRequestSLI(indicator *signalstypes.RequestBasedServiceLevelIndicator) map[string]any {
	out := map[string]any{
		"threshold":          aws.ToFloat64(indicator.MetricThreshold),
		"comparisonOperator": string(indicator.ComparisonOperator),
	}
	metric := indicator.RequestBasedSliMetric
	if metric == nil {
		return out
	}
	summary := summarizeSLIMetric(metric.KeyAttributes, aws.ToString(metric.OperationName), string(metric.MetricType), nil, metric.DependencyConfig)
	if len(metric.TotalRequestCountMetric) > 0 {
		summary["totalRequestCountMetric"] = summarizeMetricQueries(metric.TotalRequestCountMetric)
	}
	switch monitored := metric.MonitoredRequestCountMetric.(type) {
	case *signalstypes.MonitoredRequestCountMetricDataQueriesMemberGoodCountMetric:
		summary["goodCountMetric"] = summarizeMetricQueries(monitored.Value)
	case *signalstypes.MonitoredRequestCountMetricDataQueriesMemberBadCountMetric:
		summary["badCountMetric"] = summarizeMetricQueries(monitored.Value)
	}
	out["metric"] = summary
	return out
}

func summarizeSLIMetric(keyAttributes map[string]string, operationName, metricType string, queries []signalstypes.MetricDataQuery, dependency *signalstypes.DependencyConfig) map[string]any {
	out := map[string]any{"metricType": metricType}
	if len(keyAttributes) > 0 {
		attrs := map[string]any{}
		for key, value := range keyAttributes {
			attrs[key] = value
		}
		out["keyAttributes"] = attrs
	}
	if operationName != "" {
		out["operationName"] = operationName
		out["traceFilterHint"] = fmt.Sprintf("annotation[aws.local.operation]=%q", operationName)
	}
	if len(queries) > 0 {
		out["metricDataQueries"] = summarizeMetricQueries(queries)
	}
	if dependency != nil {
		dep := map[string]any{}
		if len(dependency.DependencyKeyAttributes) > 0 {
			attrs := map[string]any{}
			for key, value := range dependency.DependencyKeyAttributes {
				attrs[key] = value
			}
			dep["keyAttributes"] = attrs
		}
		if name := aws.ToString(dependency.DependencyOperationName); name != "" {
			dep["operationName"] = name
			dep["traceFilterHint"] = fmt.Sprintf("annotation[aws.remote.operation]=%q", name)
		}
		out["dependencyConfig"] = dep
	}
	return out
}

func summarizeMetricQueries(queries []signalstypes.MetricDataQuery) []any {
	out := make([]any, 0, len(queries))
	for _, query := range queries {
		entry := map[string]any{"id": aws.ToString(query.Id)}
		if query.Expression != nil {
			entry["expression"] = aws.ToString(query.Expression)
		}
		if query.ReturnData != nil {
			entry["returnData"] = aws.ToBool(query.ReturnData)
		}
		if stat := query.MetricStat; stat != nil {
			statEntry := map[string]any{
				"period": aws.ToInt32(stat.Period),
				"stat":   aws.ToString(stat.Stat),
			}
			if stat.Unit != "" {
				statEntry["unit"] = string(stat.Unit)
			}
			if metric := stat.Metric; metric != nil {
				statEntry["namespace"] = aws.ToString(metric.Namespace)
				statEntry["metricName"] = aws.ToString(metric.MetricName)
				dims := make([]any, 0, len(metric.Dimensions))
				for _, dim := range metric.Dimensions {
					dims = append(dims, map[string]any{"name": aws.ToString(dim.Name), "value": aws.ToString(dim.Value)})
				}
				statEntry["dimensions"] = dims
			}
			entry["metricStat"] = statEntry
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
