package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/applicationsignals"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/xray"
)

// Client surfaces used by the toolset handlers. Concrete SDK clients
// satisfy these; tests substitute fakes through the same factory types.

type SignalsAPI interface {
	ListServices(ctx context.Context, params *applicationsignals.ListServicesInput, optFns ...func(*applicationsignals.Options)) (*applicationsignals.ListServicesOutput, error)
	GetService(ctx context.Context, params *applicationsignals.GetServiceInput, optFns ...func(*applicationsignals.Options)) (*applicationsignals.GetServiceOutput, error)
	ListServiceLevelObjectives(ctx context.Context, params *applicationsignals.ListServiceLevelObjectivesInput, optFns ...func(*applicationsignals.Options)) (*applicationsignals.ListServiceLevelObjectivesOutput, error)
	GetServiceLevelObjective(ctx context.Context, params *applicationsignals.GetServiceLevelObjectiveInput, optFns ...func(*applicationsignals.Options)) (*applicationsignals.GetServiceLevelObjectiveOutput, error)
}

type CloudWatchAPI interface {
	GetMetricData(ctx context.Context, params *cloudwatch.GetMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricDataOutput, error)
}

type LogsAPI interface {
	StartQuery(ctx context.Context, params *cloudwatchlogs.StartQueryInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.StartQueryOutput, error)
	GetQueryResults(ctx context.Context, params *cloudwatchlogs.GetQueryResultsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetQueryResultsOutput, error)
}

type XRayAPI interface {
	GetTraceSummaries(ctx context.Context, params *xray.GetTraceSummariesInput, optFns ...func(*xray.Options)) (*xray.GetTraceSummariesOutput, error)
	GetTraceSegmentDestination(ctx context.Context, params *xray.GetTraceSegmentDestinationInput, optFns ...func(*xray.Options)) (*xray.GetTraceSegmentDestinationOutput, error)
}
