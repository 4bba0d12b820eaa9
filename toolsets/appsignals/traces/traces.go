package apptraces

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwltypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/aws-sdk-go-v2/service/xray"
	xraytypes "github.com/aws/aws-sdk-go-v2/service/xray/types"

	awslib "appsignals/internal/aws"
	"appsignals/internal/mcp"
)

const (
	maxTraceWindow     = 6 * time.Hour
	defaultTraceWindow = 3 * time.Hour
	defaultLogGroup    = "aws/spans"
	defaultPollTimeout = 30
	maxRootCauses      = 3
	maxUsers           = 2
)

// pollInterval is a variable so tests can avoid real sleeps.
var pollInterval = time.Second

type Service struct {
	ctx        mcp.ToolsetContext
	xrayClient func(context.Context, string) (awslib.XRayAPI, string, error)
	logsClient func(context.Context, string) (awslib.LogsAPI, string, error)
	toolsetID  string
}

func ToolSpecs(ctx mcp.ToolsetContext, toolsetID string, xrayClient func(context.Context, string) (awslib.XRayAPI, string, error), logsClient func(context.Context, string) (awslib.LogsAPI, string, error)) []mcp.ToolSpec {
	svc := &Service{ctx: ctx, xrayClient: xrayClient, logsClient: logsClient, toolsetID: toolsetID}
	return []mcp.ToolSpec{
		{
			Name:        "appsignals.query_sampled_traces",
			Description: "Query X-Ray sampled trace summaries with an optional filter expression.",
			ToolsetID:   toolsetID,
			InputSchema: schemaQuerySampledTraces(),
			Safety:      mcp.SafetyReadOnly,
			Handler:     svc.handleQuerySampledTraces,
		},
		{
			Name:        "appsignals.search_transaction_spans",
			Description: "Run a CloudWatch Logs Insights query against transaction search span data.",
			ToolsetID:   toolsetID,
			InputSchema: schemaSearchTransactionSpans(),
			Safety:      mcp.SafetyReadOnly,
			Handler:     svc.handleSearchTransactionSpans,
		},
	}
}

func (s *Service) handleQuerySampledTraces(ctx context.Context, req mcp.ToolRequest) (mcp.ToolResult, error) {
	region := toString(req.Arguments["region"])
	filterExpression := strings.TrimSpace(toString(req.Arguments["filterExpression"]))

	endTime, err := parseTimeArg(req.Arguments["endTime"], time.Now().UTC())
	if err != nil {
		return errorResult(err), err
	}
	startTime, err := parseTimeArg(req.Arguments["startTime"], endTime.Add(-defaultTraceWindow))
	if err != nil {
		return errorResult(err), err
	}
	window := endTime.Sub(startTime)
	if window > maxTraceWindow {
		err := fmt.Errorf("invalid time window: %.1f hours requested, maximum is %.0f hours", window.Hours(), maxTraceWindow.Hours())
		return errorResult(err), err
	}
	if window <= 0 {
		err := fmt.Errorf("invalid time window: endTime must be after startTime")
		return errorResult(err), err
	}

	client, usedRegion, err := s.xrayClient(ctx, region)
	if err != nil {
		return errorResult(err), err
	}

	traces, pageErr := traceSummariesPaginated(ctx, client, startTime, endTime, filterExpression, maxTraces(s.ctx))
	if pageErr != nil && len(traces) == 0 {
		return errorResult(pageErr), pageErr
	}

	trimmed := make([]any, 0, len(traces))
	for _, trace := range traces {
		trimmed = append(trimmed, trimTraceSummary(trace))
	}
	data := map[string]any{
		"region":       usedRegion,
		"traceCount":   len(trimmed),
		"traces":       trimmed,
		"samplingNote": "X-Ray sampled data (about 5%); results may not show every error.",
	}
	if pageErr != nil {
		data["partial"] = true
		data["pageError"] = pageErr.Error()
	}
	if note := transactionSearchNote(ctx, client); note != nil {
		data["transactionSearch"] = note
	}
	return mcp.ToolResult{Data: s.ctx.Redactor.RedactValue(data)}, nil
}

func (s *Service) handleSearchTransactionSpans(ctx context.Context, req mcp.ToolRequest) (mcp.ToolResult, error) {
	region := toString(req.Arguments["region"])
	logGroupName := strings.TrimSpace(toString(req.Arguments["logGroupName"]))
	if logGroupName == "" {
		logGroupName = defaultLogGroup
	}
	queryString := toString(req.Arguments["queryString"])
	limit := toInt(req.Arguments["limit"], 0)
	maxTimeout := toInt(req.Arguments["maxTimeoutSeconds"], defaultPollTimeout)
	if maxTimeout <= 0 {
		maxTimeout = defaultPollTimeout
	}

	endTime, err := parseTimeArg(req.Arguments["endTime"], time.Now().UTC())
	if err != nil {
		return errorResult(err), err
	}
	startTime, err := parseTimeArg(req.Arguments["startTime"], endTime.Add(-time.Hour))
	if err != nil {
		return errorResult(err), err
	}

	xrayAPI, usedRegion, err := s.xrayClient(ctx, region)
	if err != nil {
		return errorResult(err), err
	}
	note := transactionSearchNote(ctx, xrayAPI)
	if note == nil || note["enabled"] != true {
		data := map[string]any{
			"region":            usedRegion,
			"status":            "Transaction Search Not Available",
			"transactionSearch": note,
			"message": "Transaction Search is not enabled for this account. It requires sending traces to " +
				"CloudWatch Logs (destination CloudWatchLogs with status ACTIVE). Without it only 5% sampled " +
				"X-Ray data is available; appsignals.query_sampled_traces is the fallback.",
		}
		return mcp.ToolResult{Data: data}, nil
	}

	logsAPI, _, err := s.logsClient(ctx, region)
	if err != nil {
		return errorResult(err), err
	}
	input := &cloudwatchlogs.StartQueryInput{
		StartTime:     aws.Int64(startTime.Unix()),
		EndTime:       aws.Int64(endTime.Unix()),
		QueryString:   aws.String(queryString),
		LogGroupNames: []string{logGroupName},
	}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}
	started, err := logsAPI.StartQuery(ctx, input)
	if err != nil {
		return errorResult(err), err
	}
	queryID := aws.ToString(started.QueryId)

	deadline := time.Now().Add(time.Duration(maxTimeout) * time.Second)
	for {
		out, err := logsAPI.GetQueryResults(ctx, &cloudwatchlogs.GetQueryResultsInput{QueryId: aws.String(queryID)})
		if err != nil {
			return errorResult(err), err
		}
		switch out.Status {
		case cwltypes.QueryStatusComplete, cwltypes.QueryStatusFailed, cwltypes.QueryStatusCancelled:
			data := map[string]any{
				"region":            usedRegion,
				"queryId":           queryID,
				"status":            string(out.Status),
				"results":           flattenQueryResults(out.Results),
				"transactionSearch": note,
			}
			if out.Statistics != nil {
				data["statistics"] = map[string]any{
					"bytesScanned":   out.Statistics.BytesScanned,
					"recordsMatched": out.Statistics.RecordsMatched,
					"recordsScanned": out.Statistics.RecordsScanned,
				}
			}
			return mcp.ToolResult{Data: s.ctx.Redactor.RedactValue(data)}, nil
		}
		if !time.Now().Add(pollInterval).Before(deadline) {
			data := map[string]any{
				"region":  usedRegion,
				"queryId": queryID,
				"status":  "Polling Timeout",
				"message": fmt.Sprintf("query %s did not complete within %d seconds; retry retrieval with this queryId", queryID, maxTimeout),
			}
			return mcp.ToolResult{Data: data}, nil
		}
		select {
		case <-ctx.Done():
			return errorResult(ctx.Err()), ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// traceSummariesPaginated collects summaries up to the cutoff. A failure on
// a later page returns the traces gathered so far along with the error.
func traceSummariesPaginated(ctx context.Context, client awslib.XRayAPI, startTime, endTime time.Time, filterExpression string, max int) ([]xraytypes.TraceSummary, error) {
	var traces []xraytypes.TraceSummary
	var nextToken *string
	for len(traces) < max {
		input := &xray.GetTraceSummariesInput{
			StartTime:     aws.Time(startTime),
			EndTime:       aws.Time(endTime),
			Sampling:      aws.Bool(true),
			TimeRangeType: xraytypes.TimeRangeTypeService,
			NextToken:     nextToken,
		}
		if filterExpression != "" {
			input.FilterExpression = aws.String(filterExpression)
		}
		out, err := client.GetTraceSummaries(ctx, input)
		if err != nil {
			return traces, err
		}
		traces = append(traces, out.TraceSummaries...)
		if len(traces) >= max {
			traces = traces[:max]
			break
		}
		if out.NextToken == nil || aws.ToString(out.NextToken) == "" {
			break
		}
		nextToken = out.NextToken
	}
	return traces, nil
}

func trimTraceSummary(trace xraytypes.TraceSummary) map[string]any {
	out := map[string]any{
		"id":           aws.ToString(trace.Id),
		"duration":     aws.ToFloat64(trace.Duration),
		"responseTime": aws.ToFloat64(trace.ResponseTime),
		"hasError":     aws.ToBool(trace.HasError),
		"hasFault":     aws.ToBool(trace.HasFault),
		"hasThrottle":  aws.ToBool(trace.HasThrottle),
	}
	if trace.Http != nil {
		http := map[string]any{}
		if v := aws.ToString(trace.Http.HttpMethod); v != "" {
			http["method"] = v
		}
		if trace.Http.HttpStatus != nil {
			http["status"] = aws.ToInt32(trace.Http.HttpStatus)
		}
		if v := aws.ToString(trace.Http.HttpURL); v != "" {
			http["url"] = v
		}
		if len(http) > 0 {
			out["http"] = http
		}
	}
	if causes := summarizeErrorRootCauses(trace.ErrorRootCauses); len(causes) > 0 {
		out["errorRootCauses"] = causes
	}
	if causes := summarizeFaultRootCauses(trace.FaultRootCauses); len(causes) > 0 {
		out["faultRootCauses"] = causes
	}
	if causes := summarizeResponseTimeRootCauses(trace.ResponseTimeRootCauses); len(causes) > 0 {
		out["responseTimeRootCauses"] = causes
	}
	if annotations := operationAnnotations(trace.Annotations); len(annotations) > 0 {
		out["annotations"] = annotations
	}
	if users := summarizeUsers(trace.Users); len(users) > 0 {
		out["users"] = users
	}
	return out
}

func summarizeErrorRootCauses(causes []xraytypes.ErrorRootCause) []any {
	if len(causes) > maxRootCauses {
		causes = causes[:maxRootCauses]
	}
	out := make([]any, 0, len(causes))
	for _, cause := range causes {
		services := make([]any, 0, len(cause.Services))
		for _, svc := range cause.Services {
			entry := map[string]any{"name": aws.ToString(svc.Name), "type": aws.ToString(svc.Type)}
			exceptions := []any{}
			for _, entity := range svc.EntityPath {
				for _, exc := range entity.Exceptions {
					exceptions = append(exceptions, map[string]any{
						"name":    aws.ToString(exc.Name),
						"message": aws.ToString(exc.Message),
					})
				}
			}
			if len(exceptions) > 0 {
				entry["exceptions"] = exceptions
			}
			services = append(services, entry)
		}
		out = append(out, map[string]any{"services": services})
	}
	return out
}

func summarizeFaultRootCauses(causes []xraytypes.FaultRootCause) []any {
	if len(causes) > maxRootCauses {
		causes = causes[:maxRootCauses]
	}
	out := make([]any, 0, len(causes))
	for _, cause := range causes {
		services := make([]any, 0, len(cause.Services))
		for _, svc := range cause.Services {
			entry := map[string]any{"name": aws.ToString(svc.Name), "type": aws.ToString(svc.Type)}
			exceptions := []any{}
			for _, entity := range svc.EntityPath {
				for _, exc := range entity.Exceptions {
					exceptions = append(exceptions, map[string]any{
						"name":    aws.ToString(exc.Name),
						"message": aws.ToString(exc.Message),
					})
				}
			}
			if len(exceptions) > 0 {
				entry["exceptions"] = exceptions
			}
			services = append(services, entry)
		}
		out = append(out, map[string]any{"services": services})
	}
	return out
}

func summarizeResponseTimeRootCauses(causes []xraytypes.ResponseTimeRootCause) []any {
	if len(causes) > maxRootCauses {
		causes = causes[:maxRootCauses]
	}
	out := make([]any, 0, len(causes))
	for _, cause := range causes {
		services := make([]any, 0, len(cause.Services))
		for _, svc := range cause.Services {
			entry := map[string]any{"name": aws.ToString(svc.Name), "type": aws.ToString(svc.Type)}
			services = append(services, entry)
		}
		out = append(out, map[string]any{"services": services})
	}
	return out
}

func operationAnnotations(annotations map[string][]xraytypes.ValueWithServiceIds) map[string]any {
	out := map[string]any{}
	for _, key := range []string{"aws.local.operation", "aws.remote.operation"} {
		values, ok := annotations[key]
		if !ok {
			continue
		}
		flattened := []any{}
		for _, value := range values {
			switch v := value.AnnotationValue.(type) {
			case *xraytypes.AnnotationValueMemberStringValue:
				flattened = append(flattened, v.Value)
			case *xraytypes.AnnotationValueMemberNumberValue:
				flattened = append(flattened, v.Value)
			case *xraytypes.AnnotationValueMemberBooleanValue:
				flattened = append(flattened, v.Value)
			}
		}
		if len(flattened) > 0 {
			out[key] = flattened
		}
	}
	return out
}

func summarizeUsers(users []xraytypes.TraceUser) []any {
	if len(users) > maxUsers {
		users = users[:maxUsers]
	}
	out := make([]any, 0, len(users))
	for _, user := range users {
		if name := aws.ToString(user.UserName); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func transactionSearchNote(ctx context.Context, client awslib.XRayAPI) map[string]any {
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

func flattenQueryResults(results [][]cwltypes.ResultField) []any {
	out := make([]any, 0, len(results))
	for _, row := range results {
		entry := map[string]any{}
		for _, field := range row {
			entry[aws.ToString(field.Field)] = aws.ToString(field.Value)
		}
		out = append(out, entry)
	}
	return out
}

func parseTimeArg(value any, fallback time.Time) (time.Time, error) {
	raw := strings.TrimSpace(toString(value))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: expected RFC3339", raw)
	}
	return parsed.UTC(), nil
}

func maxTraces(ctx mcp.ToolsetContext) int {
	if ctx.Config != nil && ctx.Config.Limits.MaxTraces > 0 {
		return ctx.Config.Limits.MaxTraces
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
