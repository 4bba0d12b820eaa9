package appslo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/applicationsignals"
	signalstypes "github.com/aws/aws-sdk-go-v2/service/applicationsignals/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/xray"
	xraytypes "github.com/aws/aws-sdk-go-v2/service/xray/types"

	awslib "appsignals/internal/aws"
	"appsignals/internal/config"
	"appsignals/internal/mcp"
	"appsignals/internal/redact"
)

type fakeSignalsAPI struct {
	listServices               func(ctx context.Context, params *applicationsignals.ListServicesInput) (*applicationsignals.ListServicesOutput, error)
	getService                 func(ctx context.Context, params *applicationsignals.GetServiceInput) (*applicationsignals.GetServiceOutput, error)
	listServiceLevelObjectives func(ctx context.Context, params *applicationsignals.ListServiceLevelObjectivesInput) (*applicationsignals.ListServiceLevelObjectivesOutput, error)
	getServiceLevelObjective   func(ctx context.Context, params *applicationsignals.GetServiceLevelObjectiveInput) (*applicationsignals.GetServiceLevelObjectiveOutput, error)
}

func (f *fakeSignalsAPI) ListServices(ctx context.Context, params *applicationsignals.ListServicesInput, _ ...func(*applicationsignals.Options)) (*applicationsignals.ListServicesOutput, error) {
	return f.listServices(ctx, params)
}

func (f *fakeSignalsAPI) GetService(ctx context.Context, params *applicationsignals.GetServiceInput, _ ...func(*applicationsignals.Options)) (*applicationsignals.GetServiceOutput, error) {
	return f.getService(ctx, params)
}

func (f *fakeSignalsAPI) ListServiceLevelObjectives(ctx context.Context, params *applicationsignals.ListServiceLevelObjectivesInput, _ ...func(*applicationsignals.Options)) (*applicationsignals.ListServiceLevelObjectivesOutput, error) {
	return f.listServiceLevelObjectives(ctx, params)
}

func (f *fakeSignalsAPI) GetServiceLevelObjective(ctx context.Context, params *applicationsignals.GetServiceLevelObjectiveInput, _ ...func(*applicationsignals.Options)) (*applicationsignals.GetServiceLevelObjectiveOutput, error) {
	return f.getServiceLevelObjective(ctx, params)
}

type fakeCloudWatchAPI struct {
	getMetricData func(ctx context.Context, params *cloudwatch.GetMetricDataInput) (*cloudwatch.GetMetricDataOutput, error)
}

func (f *fakeCloudWatchAPI) GetMetricData(ctx context.Context, params *cloudwatch.GetMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricDataOutput, error) {
	return f.getMetricData(ctx, params)
}

type fakeXRayAPI struct {
	getTraceSummaries          func(ctx context.Context, params *xray.GetTraceSummariesInput) (*xray.GetTraceSummariesOutput, error)
	getTraceSegmentDestination func(ctx context.Context, params *xray.GetTraceSegmentDestinationInput) (*xray.GetTraceSegmentDestinationOutput, error)
}

func (f *fakeXRayAPI) GetTraceSummaries(ctx context.Context, params *xray.GetTraceSummariesInput, _ ...func(*xray.Options)) (*xray.GetTraceSummariesOutput, error) {
	return f.getTraceSummaries(ctx, params)
}

func (f *fakeXRayAPI) GetTraceSegmentDestination(ctx context.Context, params *xray.GetTraceSegmentDestinationInput, _ ...func(*xray.Options)) (*xray.GetTraceSegmentDestinationOutput, error) {
	return f.getTraceSegmentDestination(ctx, params)
}

func testContext() mcp.ToolsetContext {
	cfg := config.DefaultConfig()
	return mcp.ToolsetContext{Config: &cfg, Redactor: redact.New()}
}

func sloHandlers(t *testing.T, ctx mcp.ToolsetContext, signals awslib.SignalsAPI, cw awslib.CloudWatchAPI, xr awslib.XRayAPI) map[string]mcp.ToolHandler {
	t.Helper()
	signalsFactory := func(context.Context, string) (awslib.SignalsAPI, string, error) {
		return signals, "us-east-1", nil
	}
	cwFactory := func(context.Context, string) (awslib.CloudWatchAPI, string, error) {
		return cw, "us-east-1", nil
	}
	var xrayFactory func(context.Context, string) (awslib.XRayAPI, string, error)
	if xr != nil {
		xrayFactory = func(context.Context, string) (awslib.XRayAPI, string, error) {
			return xr, "us-east-1", nil
		}
	}
	handlers := map[string]mcp.ToolHandler{}
	for _, spec := range ToolSpecs(ctx, "appsignals", signalsFactory, cwFactory, xrayFactory) {
		handlers[spec.Name] = spec.Handler
	}
	return handlers
}

func TestListSLOsRequiresServiceName(t *testing.T) {
	handlers := sloHandlers(t, testContext(), nil, nil, nil)
	_, err := handlers["appsignals.list_slos"](context.Background(), mcp.ToolRequest{Arguments: map[string]any{}})
	if err == nil || !strings.Contains(err.Error(), "serviceName is required") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestListSLOs(t *testing.T) {
	created := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	signals := &fakeSignalsAPI{
		listServiceLevelObjectives: func(ctx context.Context, params *applicationsignals.ListServiceLevelObjectivesInput) (*applicationsignals.ListServiceLevelObjectivesOutput, error) {
			if params.KeyAttributes["Name"] != "api" || params.KeyAttributes["Type"] != "Service" {
				t.Fatalf("unexpected key attributes: %v", params.KeyAttributes)
			}
			if params.KeyAttributes["Environment"] != "eks:demo" {
				t.Fatalf("environment not forwarded: %v", params.KeyAttributes)
			}
			return &applicationsignals.ListServiceLevelObjectivesOutput{
				SloSummaries: []signalstypes.ServiceLevelObjectiveSummary{
					{
						Name:          aws.String("lat-slo"),
						Arn:           aws.String("arn:aws:application-signals:us-east-1:1:slo/lat-slo"),
						OperationName: aws.String("GET /items"),
						CreatedTime:   aws.Time(created),
					},
				},
			}, nil
		},
	}
	handlers := sloHandlers(t, testContext(), signals, nil, nil)
	result, err := handlers["appsignals.list_slos"](context.Background(), mcp.ToolRequest{Arguments: map[string]any{
		"serviceName": "api",
		"environment": "eks:demo",
	}})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	data := result.Data.(map[string]any)
	if data["count"] != 1 {
		t.Fatalf("unexpected count: %v", data["count"])
	}
	entries := data["slos"].([]map[string]any)
	if entries[0]["name"] != "lat-slo" || entries[0]["operationName"] != "GET /items" {
		t.Fatalf("unexpected entry: %v", entries[0])
	}
	if entries[0]["createdTime"] != "2026-05-01T00:00:00Z" {
		t.Fatalf("unexpected createdTime: %v", entries[0]["createdTime"])
	}
}

func TestGetSLORequiresID(t *testing.T) {
	handlers := sloHandlers(t, testContext(), nil, nil, nil)
	_, err := handlers["appsignals.get_slo"](context.Background(), mcp.ToolRequest{Arguments: map[string]any{}})
	if err == nil || !strings.Contains(err.Error(), "sloId is required") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGetSLODetail(t *testing.T) {
	signals := &fakeSignalsAPI{
		getServiceLevelObjective: func(ctx context.Context, params *applicationsignals.GetServiceLevelObjectiveInput) (*applicationsignals.GetServiceLevelObjectiveOutput, error) {
			if aws.ToString(params.Id) != "lat-slo" {
				t.Fatalf("slo id not forwarded: %v", params.Id)
			}
			return &applicationsignals.GetServiceLevelObjectiveOutput{
				Slo: &signalstypes.ServiceLevelObjective{
					Name: aws.String("lat-slo"),
					Arn:  aws.String("arn:aws:application-signals:us-east-1:1:slo/lat-slo"),
					Goal: &signalstypes.Goal{
						AttainmentGoal:   aws.Float64(99.9),
						WarningThreshold: aws.Float64(80),
						Interval: &signalstypes.IntervalMemberRollingInterval{
							Value: signalstypes.RollingInterval{
								Duration:     aws.Int32(7),
								DurationUnit: signalstypes.DurationUnitDay,
							},
						},
					},
					Sli: &signalstypes.ServiceLevelIndicator{
						MetricThreshold:    aws.Float64(500),
						ComparisonOperator: signalstypes.ServiceLevelIndicatorComparisonOperatorLessThanOrEqualTo,
						SliMetric: &signalstypes.ServiceLevelIndicatorMetric{
							MetricType:    signalstypes.ServiceLevelIndicatorMetricTypeLatency,
							OperationName: aws.String("GET /items"),
						},
					},
					BurnRateConfigurations: []signalstypes.BurnRateConfiguration{
						{LookBackWindowMinutes: aws.Int32(60)},
					},
				},
			}, nil
		},
	}
	handlers := sloHandlers(t, testContext(), signals, nil, nil)
	result, err := handlers["appsignals.get_slo"](context.Background(), mcp.ToolRequest{Arguments: map[string]any{"sloId": "lat-slo"}})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	data := result.Data.(map[string]any)
	goal := data["goal"].(map[string]any)
	if goal["attainmentGoal"] != 99.9 {
		t.Fatalf("unexpected goal: %v", goal)
	}
	interval := goal["interval"].(map[string]any)
	if interval["type"] != "rolling" || interval["durationUnit"] != "DAY" {
		t.Fatalf("unexpected interval: %v", interval)
	}
	sliDetail := data["sli"].(map[string]any)
	metric := sliDetail["metric"].(map[string]any)
	if metric["operationName"] != "GET /items" {
		t.Fatalf("unexpected metric: %v", metric)
	}
	if !strings.Contains(metric["traceFilterHint"].(string), "aws.local.operation") {
		t.Fatalf("missing trace filter hint: %v", metric)
	}
	windows := data["burnRateConfigurations"].([]any)
	if len(windows) != 1 {
		t.Fatalf("unexpected burn rates: %v", windows)
	}
}

func TestGetSLOPropagatesAWSError(t *testing.T) {
	wantErr := errors.New("access denied")
	signals := &fakeSignalsAPI{
		getServiceLevelObjective: func(ctx context.Context, params *applicationsignals.GetServiceLevelObjectiveInput) (*applicationsignals.GetServiceLevelObjectiveOutput, error) {
			return nil, wantErr
		},
	}
	handlers := sloHandlers(t, testContext(), signals, nil, nil)
	_, err := handlers["appsignals.get_slo"](context.Background(), mcp.ToolRequest{Arguments: map[string]any{"sloId": "lat-slo"}})
	if !errors.Is(err, wantErr) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGetSLIStatusDegradesPerService(t *testing.T) {
	signals := &fakeSignalsAPI{
		listServices: func(ctx context.Context, params *applicationsignals.ListServicesInput) (*applicationsignals.ListServicesOutput, error) {
			return &applicationsignals.ListServicesOutput{
				ServiceSummaries: []signalstypes.ServiceSummary{
					{KeyAttributes: map[string]string{"Name": "api", "Type": "Service"}},
					{KeyAttributes: map[string]string{"Name": "web", "Type": "Service"}},
				},
			}, nil
		},
		listServiceLevelObjectives: func(ctx context.Context, params *applicationsignals.ListServiceLevelObjectivesInput) (*applicationsignals.ListServiceLevelObjectivesOutput, error) {
			if params.KeyAttributes["Name"] == "web" {
				return nil, errors.New("throttled")
			}
			return &applicationsignals.ListServiceLevelObjectivesOutput{
				SloSummaries: []signalstypes.ServiceLevelObjectiveSummary{{Name: aws.String("lat-slo")}},
			}, nil
		},
	}
	cw := &fakeCloudWatchAPI{
		getMetricData: func(ctx context.Context, params *cloudwatch.GetMetricDataInput) (*cloudwatch.GetMetricDataOutput, error) {
			return &cloudwatch.GetMetricDataOutput{
				MetricDataResults: []cwtypes.MetricDataResult{
					{Id: aws.String("slo0"), Values: []float64{2}},
				},
			}, nil
		},
	}
	xr := &fakeXRayAPI{
		getTraceSegmentDestination: func(ctx context.Context, params *xray.GetTraceSegmentDestinationInput) (*xray.GetTraceSegmentDestinationOutput, error) {
			return &xray.GetTraceSegmentDestinationOutput{
				Destination: xraytypes.TraceSegmentDestinationCloudWatchLogs,
				Status:      xraytypes.TraceSegmentDestinationStatusActive,
			}, nil
		},
	}
	handlers := sloHandlers(t, testContext(), signals, cw, xr)
	result, err := handlers["appsignals.get_sli_status"](context.Background(), mcp.ToolRequest{Arguments: map[string]any{"hours": float64(48)}})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	data := result.Data.(map[string]any)
	if data["hours"] != 24 {
		t.Fatalf("hours not clamped to 24: %v", data["hours"])
	}
	summary := data["summary"].(map[string]any)
	if summary["breached"] != 1 || summary["insufficientData"] != 1 || summary["ok"] != 0 {
		t.Fatalf("unexpected summary: %v", summary)
	}
	reports := data["reports"].([]map[string]any)
	if reports[0]["status"] != "BREACHED" {
		t.Fatalf("critical status not mapped to BREACHED: %v", reports[0])
	}
	if reports[1]["status"] != "INSUFFICIENT_DATA" || !strings.Contains(reports[1]["error"].(string), "throttled") {
		t.Fatalf("per-service failure not degraded: %v", reports[1])
	}
	byStatus := data["byStatus"].(map[string][]string)
	if len(byStatus["BREACHED"]) != 1 || byStatus["BREACHED"][0] != "api" {
		t.Fatalf("unexpected breached group: %v", byStatus)
	}
	if len(byStatus["INSUFFICIENT_DATA"]) != 1 || byStatus["INSUFFICIENT_DATA"][0] != "web" {
		t.Fatalf("unexpected insufficient group: %v", byStatus)
	}
	note := data["transactionSearch"].(map[string]any)
	if note["enabled"] != true {
		t.Fatalf("transaction search note wrong: %v", note)
	}
}

func TestGetSLIStatusNoServices(t *testing.T) {
	signals := &fakeSignalsAPI{
		listServices: func(ctx context.Context, params *applicationsignals.ListServicesInput) (*applicationsignals.ListServicesOutput, error) {
			return &applicationsignals.ListServicesOutput{}, nil
		},
	}
	handlers := sloHandlers(t, testContext(), signals, &fakeCloudWatchAPI{}, nil)
	result, err := handlers["appsignals.get_sli_status"](context.Background(), mcp.ToolRequest{Arguments: map[string]any{}})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	data := result.Data.(map[string]any)
	if !strings.Contains(data["message"].(string), "no services found") {
		t.Fatalf("unexpected message: %v", data)
	}
}
