package sli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/applicationsignals"
	signalstypes "github.com/aws/aws-sdk-go-v2/service/applicationsignals/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

const (
	StatusOK       = "OK"
	StatusCritical = "CRITICAL"

	breachedMetricNamespace = "AWS/ApplicationSignals"
	breachedMetricName      = "BreachedCount"
	maxPeriodHours          = 24
)

type SignalsAPI interface {
	ListServiceLevelObjectives(ctx context.Context, params *applicationsignals.ListServiceLevelObjectivesInput, optFns ...func(*applicationsignals.Options)) (*applicationsignals.ListServiceLevelObjectivesOutput, error)
}

type MetricsAPI interface {
	GetMetricData(ctx context.Context, params *cloudwatch.GetMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricDataOutput, error)
}

// Config identifies one service whose SLOs should be evaluated.
type Config struct {
	PeriodHours           int
	KeyAttributes         map[string]string
	IncludeLinkedAccounts bool
}

type Report struct {
	StartTime        time.Time
	EndTime          time.Time
	Status           string
	TotalSLOCount    int
	OKSLOCount       int
	BreachedSLOCount int
	BreachedSLONames []string
}

type Client struct {
	signals SignalsAPI
	metrics MetricsAPI
	cfg     Config
	now     func() time.Time
}

func NewClient(signals SignalsAPI, metrics MetricsAPI, cfg Config) *Client {
	if cfg.PeriodHours <= 0 || cfg.PeriodHours > maxPeriodHours {
		cfg.PeriodHours = maxPeriodHours
	}
	return &Client{signals: signals, metrics: metrics, cfg: cfg, now: time.Now}
}

func (c *Client) Generate(ctx context.Context) (Report, error) {
	if c == nil || c.signals == nil || c.metrics == nil {
		return Report{}, errors.New("sli client not configured")
	}
	endTime := c.now().UTC()
	startTime := endTime.Add(-time.Duration(c.cfg.PeriodHours) * time.Hour)

	summaries, err := c.listSLOs(ctx)
	if err != nil {
		return Report{}, err
	}
	if len(summaries) == 0 {
		return Report{StartTime: startTime, EndTime: endTime, Status: StatusOK, BreachedSLONames: []string{}}, nil
	}

	queries := make([]cwtypes.MetricDataQuery, 0, len(summaries))
	for i, slo := range summaries {
		queries = append(queries, cwtypes.MetricDataQuery{
			Id: aws.String(fmt.Sprintf("slo%d", i)),
			MetricStat: &cwtypes.MetricStat{
				Metric: &cwtypes.Metric{
					Namespace:  aws.String(breachedMetricNamespace),
					MetricName: aws.String(breachedMetricName),
					Dimensions: []cwtypes.Dimension{{Name: aws.String("SloName"), Value: aws.String(aws.ToString(slo.Name))}},
				},
				Period: aws.Int32(int32(c.cfg.PeriodHours) * 3600),
				Stat:   aws.String("Maximum"),
			},
			ReturnData: aws.Bool(true),
		})
	}

	data, err := c.metrics.GetMetricData(ctx, &cloudwatch.GetMetricDataInput{
		MetricDataQueries: queries,
		StartTime:         aws.Time(startTime),
		EndTime:           aws.Time(endTime),
	})
	if err != nil {
		return Report{}, err
	}

	breachedByID := map[string]bool{}
	for _, result := range data.MetricDataResults {
		if len(result.Values) > 0 && result.Values[0] > 0 {
			breachedByID[aws.ToString(result.Id)] = true
		}
	}

	breached := []string{}
	okCount := 0
	for i, slo := range summaries {
		if breachedByID[fmt.Sprintf("slo%d", i)] {
			breached = append(breached, aws.ToString(slo.Name))
		} else {
			okCount++
		}
	}

	status := StatusOK
	if len(breached) > 0 {
		status = StatusCritical
	}
	return Report{
		StartTime:        startTime,
		EndTime:          endTime,
		Status:           status,
		TotalSLOCount:    len(summaries),
		OKSLOCount:       okCount,
		BreachedSLOCount: len(breached),
		BreachedSLONames: breached,
	}, nil
}

func (c *Client) listSLOs(ctx context.Context) ([]signalstypes.ServiceLevelObjectiveSummary, error) {
	var summaries []signalstypes.ServiceLevelObjectiveSummary
	var nextToken *string
	for {
		out, err := c.signals.ListServiceLevelObjectives(ctx, &applicationsignals.ListServiceLevelObjectivesInput{
			KeyAttributes:         c.cfg.KeyAttributes,
			MetricSourceTypes:     []signalstypes.MetricSourceType{signalstypes.MetricSourceTypeServiceOperation},
			IncludeLinkedAccounts: c.cfg.IncludeLinkedAccounts,
			NextToken:             nextToken,
		})
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, out.SloSummaries...)
		if out.NextToken == nil || aws.ToString(out.NextToken) == "" {
			break
		}
		nextToken = out.NextToken
	}
	return summaries, nil
}
