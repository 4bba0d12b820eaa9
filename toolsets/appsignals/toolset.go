package appsignals

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/applicationsignals"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/xray"

	awslib "appsignals/internal/aws"
	"appsignals/internal/mcp"
	apphealth "appsignals/toolsets/appsignals/health"
	appmetrics "appsignals/toolsets/appsignals/metrics"
	appservices "appsignals/toolsets/appsignals/services"
	appslo "appsignals/toolsets/appsignals/slo"
	apptraces "appsignals/toolsets/appsignals/traces"
)

type Toolset struct {
	ctx            mcp.ToolsetContext
	signalsMu      sync.Mutex
	signalsClients map[string]signalsClientEntry
	cwMu           sync.Mutex
	cwClients      map[string]cloudwatchClientEntry
	logsMu         sync.Mutex
	logsClients    map[string]logsClientEntry
	xrayMu         sync.Mutex
	xrayClients    map[string]xrayClientEntry
}

type signalsClientEntry struct {
	client awslib.SignalsAPI
	region string
}

type cloudwatchClientEntry struct {
	client awslib.CloudWatchAPI
	region string
}

type logsClientEntry struct {
	client awslib.LogsAPI
	region string
}

type xrayClientEntry struct {
	client awslib.XRayAPI
	region string
}

func New() *Toolset {
	return &Toolset{}
}

func init() {
	mcp.MustRegisterToolset("appsignals", func() mcp.Toolset {
		return New()
	})
}

func (t *Toolset) ID() string {
	return "appsignals"
}

func (t *Toolset) Version() string {
	return "0.1.0"
}

func (t *Toolset) Init(ctx mcp.ToolsetContext) error {
	t.ctx = ctx
	t.signalsClients = map[string]signalsClientEntry{}
	t.cwClients = map[string]cloudwatchClientEntry{}
	t.logsClients = map[string]logsClientEntry{}
	t.xrayClients = map[string]xrayClientEntry{}
	return nil
}

func (t *Toolset) Register(reg mcp.Registry) error {
	for _, tool := range appservices.ToolSpecs(t.ctx, t.ID(), t.signalsClient) {
		tool = t.wrapListCache(tool)
		if err := reg.Add(tool); err != nil {
			return fmt.Errorf("register %s: %w", tool.Name, err)
		}
	}
	for _, tool := range appmetrics.ToolSpecs(t.ctx, t.ID(), t.signalsClient, t.cloudwatchClient) {
		tool = t.wrapListCache(tool)
		if err := reg.Add(tool); err != nil {
			return fmt.Errorf("register %s: %w", tool.Name, err)
		}
	}
	for _, tool := range appslo.ToolSpecs(t.ctx, t.ID(), t.signalsClient, t.cloudwatchClient, t.xrayClient) {
		tool = t.wrapListCache(tool)
		if err := reg.Add(tool); err != nil {
			return fmt.Errorf("register %s: %w", tool.Name, err)
		}
	}
	for _, tool := range apptraces.ToolSpecs(t.ctx, t.ID(), t.xrayClient, t.logsClient) {
		tool = t.wrapListCache(tool)
		if err := reg.Add(tool); err != nil {
			return fmt.Errorf("register %s: %w", tool.Name, err)
		}
	}
	for _, tool := range apphealth.ToolSpecs(t.ctx, t.ID(), t.signalsClient, t.cloudwatchClient, t.xrayClient) {
		tool = t.wrapListCache(tool)
		if err := reg.Add(tool); err != nil {
			return fmt.Errorf("register %s: %w", tool.Name, err)
		}
	}
	return nil
}

func (t *Toolset) signalsClient(ctx context.Context, region string) (awslib.SignalsAPI, string, error) {
	region = t.regionOrDefault(region)
	cacheKey := t.clientCacheKey(region)
	t.signalsMu.Lock()
	if entry, ok := t.signalsClients[cacheKey]; ok {
		t.signalsMu.Unlock()
		return entry.client, entry.region, nil
	}
	t.signalsMu.Unlock()

	cfg, err := awslib.LoadConfig(ctx, region)
	if err != nil {
		return nil, "", err
	}
	client := applicationsignals.NewFromConfig(cfg)
	usedRegion := strings.TrimSpace(cfg.Region)
	t.debugf("created Application Signals client for region " + usedRegion)
	t.signalsMu.Lock()
	t.signalsClients[cacheKey] = signalsClientEntry{client: client, region: usedRegion}
	t.signalsMu.Unlock()
	return client, usedRegion, nil
}

func (t *Toolset) cloudwatchClient(ctx context.Context, region string) (awslib.CloudWatchAPI, string, error) {
	region = t.regionOrDefault(region)
	cacheKey := t.clientCacheKey(region)
	t.cwMu.Lock()
	if entry, ok := t.cwClients[cacheKey]; ok {
		t.cwMu.Unlock()
		return entry.client, entry.region, nil
	}
	t.cwMu.Unlock()

	cfg, err := awslib.LoadConfig(ctx, region)
	if err != nil {
		return nil, "", err
	}
	client := cloudwatch.NewFromConfig(cfg)
	usedRegion := strings.TrimSpace(cfg.Region)
	t.debugf("created CloudWatch client for region " + usedRegion)
	t.cwMu.Lock()
	t.cwClients[cacheKey] = cloudwatchClientEntry{client: client, region: usedRegion}
	t.cwMu.Unlock()
	return client, usedRegion, nil
}

func (t *Toolset) logsClient(ctx context.Context, region string) (awslib.LogsAPI, string, error) {
	region = t.regionOrDefault(region)
	cacheKey := t.clientCacheKey(region)
	t.logsMu.Lock()
	if entry, ok := t.logsClients[cacheKey]; ok {
		t.logsMu.Unlock()
		return entry.client, entry.region, nil
	}
	t.logsMu.Unlock()

	cfg, err := awslib.LoadConfig(ctx, region)
	if err != nil {
		return nil, "", err
	}
	client := cloudwatchlogs.NewFromConfig(cfg)
	usedRegion := strings.TrimSpace(cfg.Region)
	t.debugf("created CloudWatch Logs client for region " + usedRegion)
	t.logsMu.Lock()
	t.logsClients[cacheKey] = logsClientEntry{client: client, region: usedRegion}
	t.logsMu.Unlock()
	return client, usedRegion, nil
}

func (t *Toolset) xrayClient(ctx context.Context, region string) (awslib.XRayAPI, string, error) {
	region = t.regionOrDefault(region)
	cacheKey := t.clientCacheKey(region)
	t.xrayMu.Lock()
	if entry, ok := t.xrayClients[cacheKey]; ok {
		t.xrayMu.Unlock()
		return entry.client, entry.region, nil
	}
	t.xrayMu.Unlock()

	cfg, err := awslib.LoadConfig(ctx, region)
	if err != nil {
		return nil, "", err
	}
	client := xray.NewFromConfig(cfg)
	usedRegion := strings.TrimSpace(cfg.Region)
	t.debugf("created X-Ray client for region " + usedRegion)
	t.xrayMu.Lock()
	t.xrayClients[cacheKey] = xrayClientEntry{client: client, region: usedRegion}
	t.xrayMu.Unlock()
	return client, usedRegion, nil
}

func (t *Toolset) debugf(message string) {
	if t.ctx.Audit != nil {
		t.ctx.Audit.Debugf(t.ID(), message)
	}
}

func (t *Toolset) regionOrDefault(region string) string {
	if strings.TrimSpace(region) == "" && t.ctx.Config != nil {
		return t.ctx.Config.Region
	}
	return region
}

func (t *Toolset) clientCacheKey(region string) string {
	regionKey := awslib.ResolveRegion(region)
	profile := awslib.ResolveProfile()
	cacheKey := regionKey
	if cacheKey == "" {
		cacheKey = "default"
	}
	if profile != "" {
		cacheKey = strings.TrimSpace(profile) + "|" + cacheKey
	}
	return cacheKey
}
