package apphealth

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
	xraytypes "github.com/aws/aws-sdk-go-v2/service/xray/types"

	awslib "appsignals/internal/aws"
	"appsignals/internal/mcp"
	"appsignals/internal/render"
	"appsignals/internal/sli"
)

const (
	defaultReportHours = 24
	faultTraceWindow   = 3 * time.Hour
	maxFaultTraces     = 10
)

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
			Name:        "appsignals.daily_health_check",
			Description: "Produce an SLO health report for every monitored service.",
			ToolsetID:   toolsetID,
			InputSchema: schemaDailyHealthCheck(),
			Safety:      mcp.SafetyReadOnly,
			Handler:     svc.handleDailyHealthCheck,
		},
		{
			Name:        "appsignals.troubleshoot_service",
			Description: "Investigate one service: SLO breaches, breached SLO configs, and recent fault traces.",
			ToolsetID:   toolsetID,
			InputSchema: schemaTroubleshootService(),
			Safety:      mcp.SafetyReadOnly,
			Handler:     svc.handleTroubleshootService,
		},
	}
}

func (s *Service) handleDailyHealthCheck(ctx context.Context, req mcp.ToolRequest) (mcp.ToolResult, error) {
	hours := toInt(req.Arguments["hours"], defaultReportHours)
	if hours <= 0 || hours > defaultReportHours {
		hours = defaultReportHours
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

	checks := make([]map[string]any, 0, len(summaries))
	names := make([]string, 0, len(summaries))
	healthy, breached, unknown := 0, 0, 0
	for _, summary := range summaries {
		name := summary.KeyAttributes["Name"]
		names = append(names, name)
		entry := map[string]any{
			"service":     name,
			"environment": summary.KeyAttributes["Environment"],
		}
		report, err := sli.NewClient(client, cwClient, sli.Config{
			PeriodHours:           hours,
			KeyAttributes:         summary.KeyAttributes,
			IncludeLinkedAccounts: includeLinked,
		}).Generate(ctx)
		if err != nil {
			unknown++
			entry["status"] = "INSUFFICIENT_DATA"
			entry["error"] = err.Error()
			checks = append(checks, entry)
			continue
		}
		if report.BreachedSLOCount > 0 {
			breached++
			entry["status"] = "BREACHED"
			entry["breachedSloNames"] = report.BreachedSLONames
		} else {
			healthy++
			entry["status"] = "OK"
		}
		entry["totalSloCount"] = report.TotalSLOCount
		entry["okSloCount"] = report.OKSLOCount
		entry["breachedSloCount"] = report.BreachedSLOCount
		checks = append(checks, entry)
	}

	data := map[string]any{
		"region":    usedRegion,
		"hours":     hours,
		"startTime": startTime.Format(time.RFC3339),
		"endTime":   endTime.Format(time.RFC3339),
		"totals": map[string]any{
			"services":         len(checks),
			"healthy":          healthy,
			"breached":         breached,
			"insufficientData": unknown,
		},
		"checks": checks,
	}
	return mcp.ToolResult{Data: s.ctx.Redactor.RedactValue(data), Metadata: mcp.ToolMetadata{Resources: names}}, nil
}

func (s *Service) handleTroubleshootService(ctx context.Context, req mcp.ToolRequest) (mcp.ToolResult, error) {
	serviceName := strings.TrimSpace(toString(req.Arguments["serviceName"]))
	if serviceName == "" {
		err := errors.New("serviceName is required")
		return errorResult(err), err
	}
	hours := toInt(req.Arguments["hours"], defaultReportHours)
	if hours <= 0 || hours > defaultReportHours {
		hours = defaultReportHours
	}
	region := toString(req.Arguments["region"])
	includeLinked := toBool(req.Arguments["includeLinkedAccounts"], includeLinkedDefault(s.ctx))

	client, _, err := s.signalsClient(ctx, region)
	if err != nil {
		return errorResult(err), err
	}

	analysis := render.NewAnalysis(serviceName)
	analysis.AddResource("service/" + serviceName)

	endTime := time.Now().UTC()
	startTime := endTime.Add(-time.Duration(hours) * time.Hour)
	summaries, err := awslib.ListServiceSummaries(ctx, client, startTime, endTime, includeLinked, maxServices(s.ctx))
	if err != nil {
		return errorResult(err), err
	}
	var target *signalstypes.ServiceSummary
	for i := range summaries {
		if summaries[i].KeyAttributes["Name"] == serviceName {
			target = &summaries[i]
			break
		}
	}
	if target == nil {
		err := fmt.Errorf("service %q not found in Application Signals", serviceName)
		return errorResult(err), err
	}

	s.collectServiceEvidence(ctx, client, *target, startTime, endTime, &analysis)
	breachedSLOs := s.collectSLIEvidence(ctx, client, region, *target, hours, includeLinked, &analysis)
	s.collectSLOEvidence(ctx, client, breachedSLOs, &analysis)
	s.collectFaultTraceEvidence(ctx, region, serviceName, &analysis)

	if len(analysis.LikelyRootCauses) == 0 {
		analysis.AddNextCheck("No SLO breaches or fault traces found; widen the time window or check upstream dependencies.")
	}

	var data any
	if s.ctx.Renderer != nil {
		data = s.ctx.Renderer.Render(analysis)
	} else {
		data = analysis
	}
	return mcp.ToolResult{Data: s.ctx.Redactor.RedactValue(data), Metadata: mcp.ToolMetadata{Resources: []string{serviceName}}}, nil
}

func (s *Service) collectServiceEvidence(ctx context.Context, client awslib.SignalsAPI, summary signalstypes.ServiceSummary, startTime, endTime time.Time, analysis *render.Analysis) {
	out, err := client.GetService(ctx, &applicationsignals.GetServiceInput{
		StartTime:     aws.Time(startTime),
		EndTime:       aws.Time(endTime),
		KeyAttributes: summary.KeyAttributes,
	})
	if err != nil {
		analysis.AddEvidence("service detail lookup failed", err.Error())
		return
	}
	if out.Service == nil {
		return
	}
	metrics := make([]string, 0, len(out.Service.MetricReferences))
	for _, ref := range out.Service.MetricReferences {
		metrics = append(metrics, aws.ToString(ref.MetricName))
	}
	logGroups := make([]string, 0, len(out.Service.LogGroupReferences))
	for _, ref := range out.Service.LogGroupReferences {
		if id := ref["Identifier"]; id != "" {
			logGroups = append(logGroups, id)
			analysis.AddResource("logGroup/" + id)
		}
	}
	analysis.AddEvidence("service configuration", map[string]any{
		"keyAttributes": summary.KeyAttributes,
		"metrics":       metrics,
		"logGroups":     logGroups,
	})
	for _, group := range logGroups {
		analysis.AddNextCheck(fmt.Sprintf("Search log group %s for errors in the incident window.", group))
	}
}

func (s *Service) collectSLIEvidence(ctx context.Context, client awslib.SignalsAPI, region string, summary signalstypes.ServiceSummary, hours int, includeLinked bool, analysis *render.Analysis) []string {
	cwClient, _, err := s.cloudwatchClient(ctx, region)
	if err != nil {
		analysis.AddEvidence("cloudwatch client unavailable", err.Error())
		return nil
	}
	report, err := sli.NewClient(client, cwClient, sli.Config{
		PeriodHours:           hours,
		KeyAttributes:         summary.KeyAttributes,
		IncludeLinkedAccounts: includeLinked,
	}).Generate(ctx)
	if err != nil {
		analysis.AddEvidence("SLI report failed", err.Error())
		return nil
	}
	analysis.AddEvidence("SLI report", map[string]any{
		"status":           report.Status,
		"totalSloCount":    report.TotalSLOCount,
		"okSloCount":       report.OKSLOCount,
		"breachedSloCount": report.BreachedSLOCount,
		"breachedSloNames": report.BreachedSLONames,
	})
	for _, name := range report.BreachedSLONames {
		analysis.AddCause(fmt.Sprintf("SLO %q breached in the last %dh", name, hours), "", "high")
		analysis.AddResource("slo/" + name)
	}
	return report.BreachedSLONames
}

func (s *Service) collectSLOEvidence(ctx context.Context, client awslib.SignalsAPI, sloNames []string, analysis *render.Analysis) {
	for _, name := range sloNames {
		out, err := client.GetServiceLevelObjective(ctx, &applicationsignals.GetServiceLevelObjectiveInput{Id: aws.String(name)})
		if err != nil {
			analysis.AddEvidence(fmt.Sprintf("SLO %q detail lookup failed", name), err.Error())
			continue
		}
		slo := out.Slo
		if slo == nil {
			continue
		}
		detail := map[string]any{"name": aws.ToString(slo.Name)}
		if slo.Sli != nil {
			detail["threshold"] = aws.ToFloat64(slo.Sli.MetricThreshold)
			detail["comparisonOperator"] = string(slo.Sli.ComparisonOperator)
			if slo.Sli.SliMetric != nil {
				operation := aws.ToString(slo.Sli.SliMetric.OperationName)
				if operation != "" {
					detail["operationName"] = operation
					analysis.AddNextCheck(fmt.Sprintf("Query traces with annotation[aws.local.operation]=%q to isolate the breached operation.", operation))
				}
			}
		}
		analysis.AddEvidence(fmt.Sprintf("SLO %q configuration", name), detail)
	}
}

func (s *Service) collectFaultTraceEvidence(ctx context.Context, region, serviceName string, analysis *render.Analysis) {
	client, _, err := s.xrayClient(ctx, region)
	if err != nil {
		analysis.AddEvidence("x-ray client unavailable", err.Error())
		return
	}
	endTime := time.Now().UTC()
	startTime := endTime.Add(-faultTraceWindow)
	filter := fmt.Sprintf("service(%q){fault = true}", serviceName)
	out, err := client.GetTraceSummaries(ctx, &xray.GetTraceSummariesInput{
		StartTime:        aws.Time(startTime),
		EndTime:          aws.Time(endTime),
		FilterExpression: aws.String(filter),
		Sampling:         aws.Bool(true),
		TimeRangeType:    xraytypes.TimeRangeTypeService,
	})
	if err != nil {
		analysis.AddEvidence("fault trace query failed", err.Error())
		return
	}
	traces := out.TraceSummaries
	if len(traces) > maxFaultTraces {
		traces = traces[:maxFaultTraces]
	}
	if len(traces) == 0 {
		analysis.AddEvidence("fault traces", "no fault traces in the last 3h (sampled data)")
		return
	}

	ids := make([]string, 0, len(traces))
	exceptionCounts := map[string]int{}
	for _, trace := range traces {
		ids = append(ids, aws.ToString(trace.Id))
		for _, cause := range trace.FaultRootCauses {
			for _, svc := range cause.Services {
				for _, entity := range svc.EntityPath {
					for _, exc := range entity.Exceptions {
						if name := aws.ToString(exc.Name); name != "" {
							exceptionCounts[name]++
						}
					}
				}
			}
		}
	}
	analysis.AddEvidence("fault traces", map[string]any{
		"count":    len(traces),
		"traceIds": ids,
		"filter":   filter,
	})
	for name, count := range exceptionCounts {
		analysis.AddCause(fmt.Sprintf("%s seen in %d fault trace(s)", name, count), "", "medium")
	}
	for _, id := range ids {
		analysis.AddResource("trace/" + id)
	}
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
