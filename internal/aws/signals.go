package aws

import (
	"context"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/applicationsignals"
	signalstypes "github.com/aws/aws-sdk-go-v2/service/applicationsignals/types"
)

const listServicesPageSize = 100

// ListServiceSummaries pages through ListServices for the given window and
// stops once max summaries are collected or the pages run out.
func ListServiceSummaries(ctx context.Context, client SignalsAPI, startTime, endTime time.Time, includeLinked bool, max int) ([]signalstypes.ServiceSummary, error) {
	var summaries []signalstypes.ServiceSummary
	var nextToken *string
	for {
		out, err := client.ListServices(ctx, &applicationsignals.ListServicesInput{
			StartTime:             sdkaws.Time(startTime),
			EndTime:               sdkaws.Time(endTime),
			MaxResults:            sdkaws.Int32(listServicesPageSize),
			IncludeLinkedAccounts: includeLinked,
			NextToken:             nextToken,
		})
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, out.ServiceSummaries...)
		if len(summaries) >= max {
			return summaries[:max], nil
		}
		if out.NextToken == nil || sdkaws.ToString(out.NextToken) == "" {
			return summaries, nil
		}
		nextToken = out.NextToken
	}
}
