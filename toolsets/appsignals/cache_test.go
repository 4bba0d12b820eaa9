package appsignals

import (
	"context"
	"testing"

	"appsignals/internal/mcp"
)

func countingSpec(name string, calls *int) mcp.ToolSpec {
	return mcp.ToolSpec{
		Name:   name,
		Safety: mcp.SafetyReadOnly,
		Handler: func(ctx context.Context, req mcp.ToolRequest) (mcp.ToolResult, error) {
			*calls++
			return mcp.ToolResult{Data: map[string]any{"calls": *calls}}, nil
		},
	}
}

func TestWrapListCacheServesFromCache(t *testing.T) {
	toolset := New()
	ctx := testToolsetContext()
	ctx.Config.Cache.ListTTLSeconds = 60
	if err := toolset.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	calls := 0
	spec := toolset.wrapListCache(countingSpec("appsignals.list_services", &calls))
	args := map[string]any{"region": "us-east-1"}

	first, err := spec.Handler(context.Background(), mcp.ToolRequest{Arguments: args})
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := spec.Handler(context.Background(), mcp.ToolRequest{Arguments: args})
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if calls != 1 {
		t.Fatalf("second call should be served from cache, handler ran %d times", calls)
	}
	if first.Data.(map[string]any)["calls"] != second.Data.(map[string]any)["calls"] {
		t.Fatalf("cached data differs: %v vs %v", first.Data, second.Data)
	}

	// Different arguments miss the cache.
	if _, err := spec.Handler(context.Background(), mcp.ToolRequest{Arguments: map[string]any{"region": "eu-west-1"}}); err != nil {
		t.Fatalf("third call: %v", err)
	}
	if calls != 2 {
		t.Fatalf("different arguments should bypass cache, handler ran %d times", calls)
	}
}

func TestWrapListCacheSkipsNonListTools(t *testing.T) {
	toolset := New()
	ctx := testToolsetContext()
	ctx.Config.Cache.ListTTLSeconds = 60
	if err := toolset.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	calls := 0
	spec := toolset.wrapListCache(countingSpec("appsignals.get_service", &calls))
	for i := 0; i < 2; i++ {
		if _, err := spec.Handler(context.Background(), mcp.ToolRequest{Arguments: map[string]any{}}); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if calls != 2 {
		t.Fatalf("non-list tool should not be cached, handler ran %d times", calls)
	}
}

func TestWrapListCacheDisabledWithoutTTL(t *testing.T) {
	toolset := New()
	ctx := testToolsetContext()
	ctx.Config.Cache.ListTTLSeconds = 0
	if err := toolset.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	calls := 0
	spec := toolset.wrapListCache(countingSpec("appsignals.list_services", &calls))
	for i := 0; i < 2; i++ {
		if _, err := spec.Handler(context.Background(), mcp.ToolRequest{Arguments: map[string]any{}}); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if calls != 2 {
		t.Fatalf("cache should be disabled without a TTL, handler ran %d times", calls)
	}
}

func TestStableValueCanonicalizes(t *testing.T) {
	a := stableValue(map[string]any{"b": "2", "a": "1"})
	b := stableValue(map[string]any{"a": "1", "b": "2"})
	if a != b {
		t.Fatalf("map key order should not change the cache key: %s vs %s", a, b)
	}
	if a != "{a=1,b=2}" {
		t.Fatalf("unexpected canonical form: %s", a)
	}
	nested := stableValue(map[string]any{"list": []any{"x", "y"}})
	if nested != "{list=[x,y]}" {
		t.Fatalf("unexpected nested form: %s", nested)
	}
}
