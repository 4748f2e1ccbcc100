package observability

import (
	"context"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	s := NoopStageHooks{}
	s.OnStageStart(ctx, "vulnerability", 0)
	s.OnStageComplete(ctx, "vulnerability", "success", 3, time.Second)
	s.OnRunComplete(ctx, "report-id", 3, false, time.Second)

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "osv:")
	c.OnCacheMiss(ctx, "npm:")
	c.OnCacheSet(ctx, "pypi:", 1024)

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "registry.npmjs.org", "/lodash")
	h.OnResponse(ctx, "GET", "registry.npmjs.org", "/lodash", 200, time.Second)
	h.OnError(ctx, "GET", "registry.npmjs.org", "/lodash", nil)
}

type testStageHooks struct {
	NoopStageHooks
	starts int
}

func (h *testStageHooks) OnStageStart(context.Context, string, int) { h.starts++ }

type testCacheHooks struct{ NoopCacheHooks }
type testHTTPHooks struct{ NoopHTTPHooks }

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()

	if _, ok := Stage().(NoopStageHooks); !ok {
		t.Error("Stage() should return NoopStageHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	customStage := &testStageHooks{}
	SetStageHooks(customStage)
	if Stage() != customStage {
		t.Error("SetStageHooks should set custom hooks")
	}
	Stage().OnStageStart(context.Background(), "reputation", 0)
	if customStage.starts != 1 {
		t.Errorf("starts = %d, want 1", customStage.starts)
	}

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	customHTTP := &testHTTPHooks{}
	SetHTTPHooks(customHTTP)
	if HTTP() != customHTTP {
		t.Error("SetHTTPHooks should set custom hooks")
	}

	Reset()
	if _, ok := Stage().(NoopStageHooks); !ok {
		t.Error("Reset() should restore NoopStageHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	custom := &testStageHooks{}
	SetStageHooks(custom)
	SetStageHooks(nil)
	if Stage() != custom {
		t.Error("SetStageHooks(nil) should keep the previous hooks")
	}
}
