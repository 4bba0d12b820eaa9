package appservices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/applicationsignals"
	signalstypes "github.com/aws/aws-sdk-go-v2/service/applicationsignals/types"

	awslib "appsignals/internal/aws"
	"appsignals/internal/mcp"
)

const listWindow = 24 * time.Hour

type Service struct {
	ctx           mcp.ToolsetContext
	signalsClient func(context.Context, string) (awslib.SignalsAPI, string, error)
	toolsetID     string
}

func ToolSpecs(ctx mcp.ToolsetContext, toolsetID string, signalsClient func(context.Context, string) (awslib.SignalsAPI, string, error)) []mcp.ToolSpec {
	svc := &Service{ctx: ctx, signalsClient: signalsClient, toolsetID: toolsetID}
	return []mcp.ToolSpec{
		{
			Name:        "appsignals.list_services",
			Description: "List services monitored by AWS Application Signals over the last 24 hours.",
			ToolsetID:   toolsetID,
			InputSchema: schemaListServices(),
			Safety:      mcp.SafetyReadOnly,
			Handler:     svc.handleListServices,
		},
		{
			Name:        "appsignals.get_service",
			Description: "Get detailed configuration for one monitored service: key attributes, metrics, log groups.",
			ToolsetID:   toolsetID,
			InputSchema: schemaGetService(),
			Safety:      mcp.SafetyReadOnly,
			Handler:     svc.handleGetService,
		},
	}
}

func (s *Service) handleListServices(ctx context.Context, req mcp.ToolRequest) (mcp.ToolResult, error) {
	region := toString(req.Arguments["region"])
	includeLinked := toBool(req.Arguments["includeLinkedAccounts"], includeLinkedDefault(s.ctx))
	client, usedRegion, err := s.signalsClient(ctx, region)
	if err != nil {
		return errorResult(err), err
	}
	endTime := time.Now().UTC()
	startTime := endTime.Add(-listWindow)
	summaries, err := awslib.ListServiceSummaries(ctx, client, startTime, endTime, includeLinked, maxServices(s.ctx))
	if err != nil {
		return errorResult(err), err
	}
	services := make([]map[string]any, 0, len(summaries))
	names := make([]string, 0, len(summaries))
	for _, summary := range summaries {
		name := summary.KeyAttributes["Name"]
		if name != "" {
			names = append(names, name)
		}
		services = append(services, summarizeService(summary))
	}
	data := s.ctx.Redactor.RedactValue(map[string]any{
		"region":   usedRegion,
		"count":    len(services),
		"services": services,
	})
	return mcp.ToolResult{Data: data, Metadata: mcp.ToolMetadata{Resources: names}}, nil
}

func (s *Service) handleGetService(ctx context.Context, req mcp.ToolRequest) (mcp.ToolResult, error) {
	serviceName := strings.TrimSpace(toString(req.Arguments["serviceName"]))
	if serviceName == "" {
		err := errors.New("serviceName is required")
		return errorResult(err), err
	}
	region := toString(req.Arguments["region"])
	includeLinked := toBool(req.Arguments["includeLinkedAccounts"], includeLinkedDefault(s.ctx))
	client, usedRegion, err := s.signalsClient(ctx, region)
	if err != nil {
		return errorResult(err), err
	}
	endTime := time.Now().UTC()
	startTime := endTime.Add(-listWindow)
	summary, err := findServiceSummary(ctx, client, serviceName, startTime, endTime, includeLinked, maxServices(s.ctx))
	if err != nil {
		return errorResult(err), err
	}

	out, err := client.GetService(ctx, &applicationsignals.GetServiceInput{
		StartTime:     aws.Time(startTime),
		EndTime:       aws.Time(endTime),
		KeyAttributes: summary.KeyAttributes,
	})
	if err != nil {
		return errorResult(err), err
	}
	detail := out.Service
	if detail == nil {
		err := fmt.Errorf("service %q not found in Application Signals", serviceName)
		return errorResult(err), err
	}

	metricRefs := make([]map[string]any, 0, len(detail.MetricReferences))
	for _, ref := range detail.MetricReferences {
		metricRefs = append(metricRefs, summarizeMetricReference(ref))
	}
	logGroups := make([]string, 0, len(detail.LogGroupReferences))
	for _, ref := range detail.LogGroupReferences {
		if id := ref["Identifier"]; id != "" {
			logGroups = append(logGroups, id)
		}
	}
	data := s.ctx.Redactor.RedactValue(map[string]any{
		"region":           usedRegion,
		"service":          serviceName,
		"keyAttributes":    stringMapToAny(detail.KeyAttributes),
		"attributeMaps":    attributeMapsToAny(detail.AttributeMaps),
		"metricReferences": metricRefs,
		"logGroups":        logGroups,
	})
	return mcp.ToolResult{Data: data, Metadata: mcp.ToolMetadata{Resources: []string{serviceName}}}, nil
}

func findServiceSummary(ctx context.Context, client awslib.SignalsAPI, serviceName string, startTime, endTime time.Time, includeLinked bool, max int) (signalstypes.ServiceSummary, error) {
	summaries, err := awslib.ListServiceSummaries(ctx, client, startTime, endTime, includeLinked, max)
	if err != nil {
		return signalstypes.ServiceSummary{}, err
	}
	for _, summary := range summaries {
		if summary.KeyAttributes["Name"] == serviceName {
			return summary, nil
		}
	}
	return signalstypes.ServiceSummary{}, fmt.Errorf("service %q not found in Application Signals", serviceName)
}

func summarizeService(summary signalstypes.ServiceSummary) map[string]any {
	return map[string]any{
		"name":          summary.KeyAttributes["Name"],
		"type":          summary.KeyAttributes["Type"],
		"keyAttributes": stringMapToAny(summary.KeyAttributes),
		"attributeMaps": attributeMapsToAny(summary.AttributeMaps),
	}
}

func summarizeMetricReference(ref signalstypes.MetricReference) map[string]any {
	dimensions := make([]map[string]any, 0, len(ref.Dimensions))
	for _, dim := range ref.Dimensions {
		dimensions = append(dimensions, map[string]any{
			"name":  aws.ToString(dim.Name),
			"value": aws.ToString(dim.Value),
		})
	}
	out := map[string]any{
		"namespace":  aws.ToString(ref.Namespace),
		"metricName": aws.ToString(ref.MetricName),
		"metricType": aws.ToString(ref.MetricType),
		"dimensions": dimensions,
	}
	if aws.ToString(ref.AccountId) != "" {
		out["accountId"] = aws.ToString(ref.AccountId)
	}
	return out
}

func stringMapToAny(input map[string]string) map[string]any {
	out := map[string]any{}
	for key, value := range input {
		out[key] = value
	}
	return out
}

func attributeMapsToAny(input []map[string]string) []any {
	out := make([]any, 0, len(input))
	for _, item := range input {
		out = append(out, stringMapToAny(item))
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

func toBool(value any, fallback bool) bool {
	if v, ok := value.(bool); ok {
		return v
	}
	return fallback
}
