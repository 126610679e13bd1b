package server

import (
	"net/http"
	"testing"

	"github.com/warpdl/asyncload/common"
	"github.com/warpdl/asyncload/pkg/loadlib"
)

func TestRPC_Unauthorized(t *testing.T) {
	env := newTestEnv(t)
	h := env.handler()
	for _, token := range []string{"", "wrong"} {
		code, resp := rpcCall(t, h, common.MethodGetVersion, nil, token)
		if code != http.StatusUnauthorized {
			t.Fatalf("token %q: status = %d, want 401", token, code)
		}
		if errorCode(t, resp) != -32600 {
			t.Fatalf("token %q: unexpected body %v", token, resp)
		}
	}
}

func TestRPC_GetVersion(t *testing.T) {
	env := newTestEnv(t)
	_, resp := rpcCall(t, env.handler(), common.MethodGetVersion, nil, testSecret)
	res := resultOf(t, resp)
	if res["version"] != "1.2.3" || res["commit"] != "abc" {
		t.Fatalf("unexpected version result: %v", res)
	}
}

func TestRPC_SubmitInvalidIdentifier(t *testing.T) {
	env := newTestEnv(t)
	_, resp := rpcCall(t, env.handler(), common.MethodSubmit, &common.SubmitParams{Ref: "   "}, testSecret)
	if got := errorCode(t, resp); got != int(codeInvalidIdentifier) {
		t.Fatalf("code = %d, want %d", got, codeInvalidIdentifier)
	}
}

func TestRPC_SubmitAndCache(t *testing.T) {
	env := newTestEnv(t)
	h := env.handler()
	_, resp := rpcCall(t, h, common.MethodSubmit, &common.SubmitParams{
		Ref:       "mem://menu",
		Priority:  2,
		Placement: loadlib.Placement{ZOrder: 4},
	}, testSecret)
	id, _ := resultOf(t, resp)["id"].(string)
	if id == "" {
		t.Fatalf("missing id in %v", resp)
	}
	sched, err := env.host.Scheduler()
	if err != nil {
		t.Fatalf("Scheduler: %v", err)
	}
	waitFor(t, "load completion", func() bool { return sched.Stats().Completed == 1 })
	if top := env.stack.Top(); top.ClassName != "menu" || top.ZOrder != 4 {
		t.Fatalf("unexpected top view %+v", top)
	}

	_, resp = rpcCall(t, h, common.MethodIsCached, &common.RefParams{Ref: "mem://menu"}, testSecret)
	if resultOf(t, resp)["value"] != true {
		t.Fatalf("expected mem://menu cached: %v", resp)
	}
	_, resp = rpcCall(t, h, common.MethodStatus, &common.IDParams{ID: id}, testSecret)
	if res := resultOf(t, resp); res["known"] != false {
		t.Fatalf("completed request should be unknown: %v", res)
	}
	_, resp = rpcCall(t, h, common.MethodStats, nil, testSecret)
	res := resultOf(t, resp)
	if res["total"] != float64(1) || res["completed"] != float64(1) {
		t.Fatalf("unexpected stats %v", res)
	}

	_, resp = rpcCall(t, h, common.MethodPreload, &common.PreloadParams{Ref: "mem://menu"}, testSecret)
	res = resultOf(t, resp)
	if res["cached"] != true {
		t.Fatalf("preload of cached ref = %v", res)
	}
	if _, ok := res["id"]; ok {
		t.Fatalf("preload of cached ref should not return an id: %v", res)
	}

	_, resp = rpcCall(t, h, common.MethodClearCache, nil, testSecret)
	if resultOf(t, resp)["removed"] != float64(1) {
		t.Fatalf("unexpected clear result %v", resp)
	}
	_, resp = rpcCall(t, h, common.MethodCacheStats, nil, testSecret)
	if resultOf(t, resp)["count"] != float64(0) {
		t.Fatalf("cache should be empty: %v", resp)
	}
}

func TestRPC_CancelAndStatus(t *testing.T) {
	env := newTestEnv(t)
	h := env.handler()
	_, resp := rpcCall(t, h, common.MethodSubmit, &common.SubmitParams{Ref: "mem://slow-a"}, testSecret)
	id := resultOf(t, resp)["id"].(string)

	_, resp = rpcCall(t, h, common.MethodStatus, &common.IDParams{ID: id}, testSecret)
	if res := resultOf(t, resp); res["known"] != true || res["active"] != true {
		t.Fatalf("expected active request: %v", res)
	}
	_, resp = rpcCall(t, h, common.MethodIsLoading, &common.RefParams{Ref: "mem://slow-a"}, testSecret)
	if resultOf(t, resp)["value"] != true {
		t.Fatalf("expected isLoading: %v", resp)
	}

	_, resp = rpcCall(t, h, common.MethodCancel, &common.IDParams{ID: id}, testSecret)
	if resultOf(t, resp)["value"] != true {
		t.Fatalf("cancel = %v", resp)
	}
	_, resp = rpcCall(t, h, common.MethodCancel, &common.IDParams{ID: id}, testSecret)
	if resultOf(t, resp)["value"] != false {
		t.Fatalf("second cancel = %v", resp)
	}
	_, resp = rpcCall(t, h, common.MethodStatus, &common.IDParams{ID: id}, testSecret)
	if res := resultOf(t, resp); res["cancelled"] != true || res["active"] == true {
		t.Fatalf("expected cancelled status: %v", res)
	}

	_, resp = rpcCall(t, h, common.MethodStatus, &common.IDParams{ID: "not-a-uuid"}, testSecret)
	if got := errorCode(t, resp); got != int(codeInvalidParams) {
		t.Fatalf("code = %d, want %d", got, codeInvalidParams)
	}
}

func TestRPC_CancelAllAndCounts(t *testing.T) {
	env := newTestEnv(t)
	h := env.handler()
	for _, ref := range []string{"mem://slow-1", "mem://slow-2", "mem://slow-3", "mem://slow-4"} {
		rpcCall(t, h, common.MethodSubmit, &common.SubmitParams{Ref: ref}, testSecret)
	}
	_, resp := rpcCall(t, h, common.MethodCounts, nil, testSecret)
	res := resultOf(t, resp)
	if res["active"] != float64(3) || res["pending"] != float64(1) {
		t.Fatalf("unexpected counts %v", res)
	}
	if res["maxConcurrentLoads"] != float64(3) || res["loadTimeoutSeconds"] != float64(30) {
		t.Fatalf("unexpected limits %v", res)
	}
	_, resp = rpcCall(t, h, common.MethodCancelAll, nil, testSecret)
	res = resultOf(t, resp)
	if res["active"] != float64(0) || res["pending"] != float64(0) || res["cancelledIds"] != float64(4) {
		t.Fatalf("unexpected counts after cancelAll %v", res)
	}
}

func TestRPC_Limits(t *testing.T) {
	env := newTestEnv(t)
	h := env.handler()
	_, resp := rpcCall(t, h, common.MethodSetMaxConcurrentLoads, &common.SetMaxConcurrentLoadsParams{Value: 0}, testSecret)
	if got := errorCode(t, resp); got != int(codeInvalidParams) {
		t.Fatalf("code = %d", got)
	}
	_, resp = rpcCall(t, h, common.MethodSetMaxConcurrentLoads, &common.SetMaxConcurrentLoadsParams{Value: 7}, testSecret)
	if resultOf(t, resp)["maxConcurrentLoads"] != float64(7) {
		t.Fatalf("unexpected result %v", resp)
	}
	_, resp = rpcCall(t, h, common.MethodSetLoadTimeout, &common.SetLoadTimeoutParams{Seconds: -1}, testSecret)
	if got := errorCode(t, resp); got != int(codeInvalidParams) {
		t.Fatalf("code = %d", got)
	}
	// below the minimum clamps to one second
	_, resp = rpcCall(t, h, common.MethodSetLoadTimeout, &common.SetLoadTimeoutParams{Seconds: 0.25}, testSecret)
	if resultOf(t, resp)["loadTimeoutSeconds"] != float64(1) {
		t.Fatalf("unexpected result %v", resp)
	}
}

func TestRPC_DebugDump(t *testing.T) {
	env := newTestEnv(t)
	h := env.handler()
	rpcCall(t, h, common.MethodSubmit, &common.SubmitParams{Ref: "mem://slow-dump"}, testSecret)
	_, resp := rpcCall(t, h, common.MethodDebugDump, nil, testSecret)
	res := resultOf(t, resp)
	active, _ := res["active"].([]any)
	if len(active) != 1 {
		t.Fatalf("expected one active request in dump: %v", res)
	}
}

func TestRPC_ClosedHostReturnsEmptyResults(t *testing.T) {
	env := newTestEnv(t)
	env.host.Close()
	h := env.handler()
	_, resp := rpcCall(t, h, common.MethodCounts, nil, testSecret)
	res := resultOf(t, resp)
	if res["active"] != float64(0) || res["maxConcurrentLoads"] != float64(0) {
		t.Fatalf("expected empty counts: %v", res)
	}
	_, resp = rpcCall(t, h, common.MethodSubmit, &common.SubmitParams{Ref: "mem://menu"}, testSecret)
	if id := resultOf(t, resp)["id"]; id != "" {
		t.Fatalf("expected empty id, got %v", id)
	}
	if !env.log.Contains(loadlib.ErrNoScheduler.Error()) {
		t.Fatal("expected the missing scheduler to be logged")
	}
}

func TestRPC_ObserveCalls(t *testing.T) {
	env := newTestEnv(t)
	seen := map[string]int{}
	rpc := NewRPCServer(&RPCConfig{Secret: testSecret}, env.host, func(method string, err error) {
		if err == nil {
			seen[method]++
		}
	}, nil)
	defer rpc.Close()
	h := NewServer(Options{}, rpc, nil, nil).Handler()
	rpcCall(t, h, common.MethodGetVersion, nil, testSecret)
	rpcCall(t, h, common.MethodGetVersion, nil, testSecret)
	if seen[common.MethodGetVersion] != 2 {
		t.Fatalf("observed %v", seen)
	}
}

func TestRPC_ListAndRemoveViews(t *testing.T) {
	env := newTestEnv(t)
	h := env.handler()
	rpcCall(t, h, common.MethodSubmit, &common.SubmitParams{Ref: "mem://menu"}, testSecret)
	waitFor(t, "view creation", func() bool { return env.stack.Len() == 1 })

	_, resp := rpcCall(t, h, common.MethodListViews, nil, testSecret)
	views, _ := resultOf(t, resp)["views"].([]any)
	if len(views) != 1 {
		t.Fatalf("expected one view, got %v", resp)
	}
	first, _ := views[0].(map[string]any)
	if first["className"] != "menu" {
		t.Fatalf("unexpected view %v", first)
	}
	id := uint64(first["id"].(float64))

	_, resp = rpcCall(t, h, common.MethodRemoveView, &common.ViewIDParams{ID: id}, testSecret)
	if resultOf(t, resp)["value"] != true {
		t.Fatalf("expected removal, got %v", resp)
	}
	if env.stack.Len() != 0 {
		t.Fatalf("stack still holds %d views", env.stack.Len())
	}
	_, resp = rpcCall(t, h, common.MethodRemoveView, &common.ViewIDParams{ID: id}, testSecret)
	if resultOf(t, resp)["value"] != false {
		t.Fatalf("second removal should report false, got %v", resp)
	}
}

func TestRPC_ViewMethodsNeedStack(t *testing.T) {
	env := newTestEnv(t)
	rpc := NewRPCServer(&RPCConfig{Secret: testSecret}, env.host, nil, nil)
	defer rpc.Close()
	h := NewServer(Options{}, rpc, nil, nil).Handler()
	_, resp := rpcCall(t, h, common.MethodListViews, nil, testSecret)
	if got := errorCode(t, resp); got != -32601 {
		t.Fatalf("code = %d, want method not found", got)
	}
}
