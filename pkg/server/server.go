package server

import (
	"context"
	"fmt"
	"io"
	"os"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"appsignals/internal/audit"
	"appsignals/internal/cache"
	"appsignals/internal/config"
	asmcp "appsignals/internal/mcp"
	"appsignals/internal/policy"
	"appsignals/internal/redact"
	"appsignals/internal/render"
)

type Options struct {
	ConfigPath string
	Region     string
	Toolsets   []string
	LogLevel   string
	Version    string
	Stderr     io.Writer
}

func Run(ctx context.Context, opts Options) error {
	errOut := opts.Stderr
	if errOut == nil {
		errOut = os.Stderr
	}
	configPath := opts.ConfigPath
	if configPath == "" {
		if env := os.Getenv("APPSIGNALS_CONFIG"); env != "" {
			configPath = env
		}
	}
	overrides := config.Overrides{}
	if opts.Region != "" {
		overrides.Region = &opts.Region
	}
	if len(opts.Toolsets) > 0 {
		overrides.Toolsets = &opts.Toolsets
	}
	if opts.LogLevel != "" {
		overrides.LogLevel = &opts.LogLevel
	}

	cfg, err := config.Load(configPath, "", overrides)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	toolCtx, reg, err := buildRuntime(cfg, errOut)
	if err != nil {
		return fmt.Errorf("init failed: %w", err)
	}
	server := sdkmcp.NewServer(&sdkmcp.Implementation{Name: "appsignals", Version: opts.Version}, nil)
	toolNames, err := asmcp.RegisterSDKTools(server, reg, toolCtx)
	if err != nil {
		return fmt.Errorf("tool registration failed: %w", err)
	}

	reloadCh := make(chan os.Signal, 1)
	notifyReload(reloadCh)
	go func() {
		for range reloadCh {
			cfg, err := config.Load(configPath, "", overrides)
			if err != nil {
				fmt.Fprintf(errOut, "config reload failed: %v\n", err)
				continue
			}
			toolCtx, reg, err := buildRuntime(cfg, errOut)
			if err != nil {
				fmt.Fprintf(errOut, "reload init failed: %v\n", err)
				continue
			}
			if len(toolNames) > 0 {
				server.RemoveTools(toolNames...)
			}
			toolNames, err = asmcp.RegisterSDKTools(server, reg, toolCtx)
			if err != nil {
				fmt.Fprintf(errOut, "tool registration failed: %v\n", err)
				continue
			}
		}
	}()

	if err := server.Run(ctx, &sdkmcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func buildRuntime(cfg config.Config, errOut io.Writer) (asmcp.ToolContext, *asmcp.ToolRegistry, error) {
	authorizer := policy.NewAuthorizer()
	redactor := redact.New()
	renderer := render.NewRenderer()
	auditLogger := audit.NewLogger(errOut, audit.ParseLevel(cfg.LogLevel))
	serviceRegistry := asmcp.NewServiceRegistry()
	store := cache.NewStore()
	reg := asmcp.NewRegistry(&cfg)

	toolCtx := asmcp.ToolContext{
		Config:   &cfg,
		Policy:   authorizer,
		Renderer: renderer,
		Redactor: redactor,
		Audit:    auditLogger,
		Services: serviceRegistry,
		Cache:    store,
		Registry: reg,
	}
	toolCtx.Invoker = asmcp.NewToolInvoker(reg, toolCtx)
	toolsetCtx := asmcp.ToolsetContext(toolCtx)

	for _, id := range cfg.Toolsets {
		factory, ok := asmcp.ToolsetFactoryFor(id)
		if !ok {
			return asmcp.ToolContext{}, nil, fmt.Errorf("unknown toolset: %s", id)
		}
		toolset := factory()
		if err := toolset.Init(toolsetCtx); err != nil {
			return asmcp.ToolContext{}, nil, err
		}
		if err := toolset.Register(reg); err != nil {
			return asmcp.ToolContext{}, nil, err
		}
	}

	return toolCtx, reg, nil
}
