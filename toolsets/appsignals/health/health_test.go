package apphealth

import (
	"context"
	"strings"
	"testing"

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
	"appsignals/internal/render"
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
	return mcp.ToolsetContext{Config: &cfg, Redactor: redact.New(), Renderer: render.NewRenderer()}
}

func healthHandlers(t *testing.T, ctx mcp.ToolsetContext, signals awslib.SignalsAPI, cw awslib.CloudWatchAPI, xr awslib.XRayAPI) map[string]mcp.ToolHandler {
	t.Helper()
	signalsFactory := func(context.Context, string) (awslib.SignalsAPI, string, error) {
		return signals, "us-east-1", nil
	}
	cwFactory := func(context.Context, string) (awslib.CloudWatchAPI, string, error) {
		return cw, "us-east-1", nil
	}
	xrayFactory := func(context.Context, string) (awslib.XRayAPI, string, error) {
		return xr, "us-east-1", nil
	}
	handlers := map[string]mcp.ToolHandler{}
	for _, spec := range ToolSpecs(ctx, "appsignals", signalsFactory, cwFactory, xrayFactory) {
		handlers[spec.Name] = spec.Handler
	}
	return handlers
}

func twoServices(ctx context.Context, params *applicationsignals.ListServicesInput) (*applicationsignals.ListServicesOutput, error) {
	return &applicationsignals.ListServicesOutput{
		ServiceSummaries: []signalstypes.ServiceSummary{
			{KeyAttributes: map[string]string{"Name": "api", "Type": "Service", "Environment": "eks:demo"}},
			{KeyAttributes: map[string]string{"Name": "web", "Type": "Service", "Environment": "eks:demo"}},
		},
	}, nil
}

func TestDailyHealthCheck(t *testing.T) {
	signals := &fakeSignalsAPI{
		listServices: twoServices,
		listServiceLevelObjectives: func(ctx context.Context, params *applicationsignals.ListServiceLevelObjectivesInput) (*applicationsignals.ListServiceLevelObjectivesOutput, error) {
			if params.KeyAttributes["Name"] == "api" {
				return &applicationsignals.ListServiceLevelObjectivesOutput{
					SloSummaries: []signalstypes.ServiceLevelObjectiveSummary{{Name: aws.String("lat-slo")}},
				}, nil
			}
			return &applicationsignals.ListServiceLevelObjectivesOutput{}, nil
		},
	}
	cw := &fakeCloudWatchAPI{
		getMetricData: func(ctx context.Context, params *cloudwatch.GetMetricDataInput) (*cloudwatch.GetMetricDataOutput, error) {
			return &cloudwatch.GetMetricDataOutput{
				MetricDataResults: []cwtypes.MetricDataResult{
					{Id: aws.String("slo0"), Values: []float64{1}},
				},
			}, nil
		},
	}
	handlers := healthHandlers(t, testContext(), signals, cw, nil)
	result, err := handlers["appsignals.daily_health_check"](context.Background(), mcp.ToolRequest{Arguments: map[string]any{}})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	data := result.Data.(map[string]any)
	totals := data["totals"].(map[string]any)
	if totals["services"] != 2 || totals["breached"] != 1 || totals["healthy"] != 1 {
		t.Fatalf("unexpected totals: %v", totals)
	}
	checks := data["checks"].([]map[string]any)
	if checks[0]["service"] != "api" || checks[0]["status"] != "BREACHED" {
		t.Fatalf("unexpected first check: %v", checks[0])
	}
	breachedNames := checks[0]["breachedSloNames"].([]string)
	if len(breachedNames) != 1 || breachedNames[0] != "lat-slo" {
		t.Fatalf("unexpected breached names: %v", breachedNames)
	}
	if checks[1]["service"] != "web" || checks[1]["status"] != "OK" {
		t.Fatalf("unexpected second check: %v", checks[1])
	}
	if len(result.Metadata.Resources) != 2 {
		t.Fatalf("unexpected resources: %v", result.Metadata.Resources)
	}
}

func TestDailyHealthCheckDegradesOnFailure(t *testing.T) {
	signals := &fakeSignalsAPI{
		listServices: twoServices,
		listServiceLevelObjectives: func(ctx context.Context, params *applicationsignals.ListServiceLevelObjectivesInput) (*applicationsignals.ListServiceLevelObjectivesOutput, error) {
			return nil, &throttledError{}
		},
	}
	handlers := healthHandlers(t, testContext(), signals, &fakeCloudWatchAPI{}, nil)
	result, err := handlers["appsignals.daily_health_check"](context.Background(), mcp.ToolRequest{Arguments: map[string]any{}})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	data := result.Data.(map[string]any)
	totals := data["totals"].(map[string]any)
	if totals["insufficientData"] != 2 {
		t.Fatalf("failures should degrade, got totals: %v", totals)
	}
}

type throttledError struct{}

func (e *throttledError) Error() string { return "ThrottlingException: rate exceeded" }

func TestTroubleshootRequiresServiceName(t *testing.T) {
	handlers := healthHandlers(t, testContext(), nil, nil, nil)
	_, err := handlers["appsignals.troubleshoot_service"](context.Background(), mcp.ToolRequest{Arguments: map[string]any{}})
	if err == nil || !strings.Contains(err.Error(), "serviceName is required") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTroubleshootServiceNotFound(t *testing.T) {
	signals := &fakeSignalsAPI{listServices: twoServices}
	handlers := healthHandlers(t, testContext(), signals, nil, nil)
	_, err := handlers["appsignals.troubleshoot_service"](context.Background(), mcp.ToolRequest{Arguments: map[string]any{"serviceName": "jobs"}})
	if err == nil || !strings.Contains(err.Error(), "not found in Application Signals") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTroubleshootComposesEvidence(t *testing.T) {
	signals := &fakeSignalsAPI{
		listServices: twoServices,
		getService: func(ctx context.Context, params *applicationsignals.GetServiceInput) (*applicationsignals.GetServiceOutput, error) {
			return &applicationsignals.GetServiceOutput{
				Service: &signalstypes.Service{
					KeyAttributes: params.KeyAttributes,
					MetricReferences: []signalstypes.MetricReference{
						{MetricName: aws.String("Latency")},
					},
					LogGroupReferences: []map[string]string{
						{"Identifier": "/aws/app/api"},
					},
				},
			}, nil
		},
		listServiceLevelObjectives: func(ctx context.Context, params *applicationsignals.ListServiceLevelObjectivesInput) (*applicationsignals.ListServiceLevelObjectivesOutput, error) {
			return &applicationsignals.ListServiceLevelObjectivesOutput{
				SloSummaries: []signalstypes.ServiceLevelObjectiveSummary{{Name: aws.String("lat-slo")}},
			}, nil
		},
		getServiceLevelObjective: func(ctx context.Context, params *applicationsignals.GetServiceLevelObjectiveInput) (*applicationsignals.GetServiceLevelObjectiveOutput, error) {
			return &applicationsignals.GetServiceLevelObjectiveOutput{
				Slo: &signalstypes.ServiceLevelObjective{
					Name: aws.String("lat-slo"),
					Sli: &signalstypes.ServiceLevelIndicator{
						MetricThreshold:    aws.Float64(500),
						ComparisonOperator: signalstypes.ServiceLevelIndicatorComparisonOperatorLessThanOrEqualTo,
						SliMetric: &signalstypes.ServiceLevelIndicatorMetric{
							OperationName: aws.String("GET /items"),
						},
					},
				},
			}, nil
		},
	}
	cw := &fakeCloudWatchAPI{
		getMetricData: func(ctx context.Context, params *cloudwatch.GetMetricDataInput) (*cloudwatch.GetMetricDataOutput, error) {
			return &cloudwatch.GetMetricDataOutput{
				MetricDataResults: []cwtypes.MetricDataResult{
					{Id: aws.String("slo0"), Values: []float64{1}},
				},
			}, nil
		},
	}
	xr := &fakeXRayAPI{
		getTraceSummaries: func(ctx context.Context, params *xray.GetTraceSummariesInput) (*xray.GetTraceSummariesOutput, error) {
			if !strings.Contains(aws.ToString(params.FilterExpression), "fault = true") {
				t.Fatalf("unexpected filter: %v", params.FilterExpression)
			}
			return &xray.GetTraceSummariesOutput{
				TraceSummaries: []xraytypes.TraceSummary{
					{
						Id: aws.String("1-abc"),
						FaultRootCauses: []xraytypes.FaultRootCause{
							{Services: []xraytypes.FaultRootCauseService{{
								EntityPath: []xraytypes.FaultRootCauseEntity{{
									Exceptions: []xraytypes.RootCauseException{{Name: aws.String("Timeout")}},
								}},
							}}},
						},
					},
				},
			}, nil
		},
	}
	handlers := healthHandlers(t, testContext(), signals, cw, xr)
	result, err := handlers["appsignals.troubleshoot_service"](context.Background(), mcp.ToolRequest{Arguments: map[string]any{"serviceName": "api"}})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	data := result.Data.(map[string]any)

	causes := data["likelyRootCauses"].([]render.Cause)
	if len(causes) != 2 {
		t.Fatalf("expected SLO and trace causes, got %v", causes)
	}
	if !strings.Contains(causes[0].Summary, `"lat-slo"`) || causes[0].Severity != "high" {
		t.Fatalf("unexpected first cause: %+v", causes[0])
	}
	if !strings.Contains(causes[1].Summary, "Timeout") || causes[1].Severity != "medium" {
		t.Fatalf("unexpected second cause: %+v", causes[1])
	}

	var nextChecks []string
	nextChecks = append(nextChecks, data["recommendedNextChecks"].([]string)...)
	joined := strings.Join(nextChecks, "\n")
	if !strings.Contains(joined, "/aws/app/api") {
		t.Fatalf("log group next-check missing: %v", nextChecks)
	}
	if !strings.Contains(joined, "aws.local.operation") {
		t.Fatalf("operation annotation next-check missing: %v", nextChecks)
	}

	resources := strings.Join(data["resourcesExamined"].([]string), "\n")
	for _, want := range []string{"service/api", "logGroup//aws/app/api", "slo/lat-slo", "trace/1-abc"} {
		if !strings.Contains(resources, want) {
			t.Fatalf("resource %q missing: %v", want, resources)
		}
	}
}
