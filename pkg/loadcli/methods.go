package loadcli

import (
	"context"

	"github.com/warpdl/asyncload/common"
	"github.com/warpdl/asyncload/pkg/loadlib"
)

func invoke[T any](ctx context.Context, c *Client, method string, params any) (*T, error) {
	var res T
	if err := c.rpc.CallResult(ctx, method, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetVersion returns the daemon build information.
func (c *Client) GetVersion(ctx context.Context) (*common.VersionResult, error) {
	return invoke[common.VersionResult](ctx, c, common.MethodGetVersion, nil)
}

// Submit queues a load of ref and returns its request id.
func (c *Client) Submit(ctx context.Context, ref string, priority int, placement loadlib.Placement) (string, error) {
	res, err := invoke[common.SubmitResult](ctx, c, common.MethodSubmit, &common.SubmitParams{
		Ref:       ref,
		Priority:  priority,
		Placement: placement,
	})
	if err != nil {
		return "", err
	}
	return res.ID, nil
}

// SubmitAndWait submits ref and blocks until it settles. It needs a
// WebSocket client.
func (c *Client) SubmitAndWait(ctx context.Context, ref string, priority int, placement loadlib.Placement) (*Event, error) {
	if !c.push {
		return nil, ErrNoNotifications
	}
	id, err := c.Submit(ctx, ref, priority, placement)
	if err != nil {
		return nil, err
	}
	return c.Wait(ctx, id)
}

// Preload warms the daemon cache with ref.
func (c *Client) Preload(ctx context.Context, ref string, priority int) (*common.PreloadResult, error) {
	return invoke[common.PreloadResult](ctx, c, common.MethodPreload, &common.PreloadParams{Ref: ref, Priority: priority})
}

// Cancel cancels the request id. It reports whether anything was cancelled.
func (c *Client) Cancel(ctx context.Context, id string) (bool, error) {
	res, err := invoke[common.BoolResult](ctx, c, common.MethodCancel, &common.IDParams{ID: id})
	if err != nil {
		return false, err
	}
	return res.Value, nil
}

// CancelAll cancels every live request.
func (c *Client) CancelAll(ctx context.Context) (*common.CountsResult, error) {
	return invoke[common.CountsResult](ctx, c, common.MethodCancelAll, nil)
}

// Status reports where the request id is.
func (c *Client) Status(ctx context.Context, id string) (*common.StatusResult, error) {
	return invoke[common.StatusResult](ctx, c, common.MethodStatus, &common.IDParams{ID: id})
}

// IsLoading reports whether a live request targets ref.
func (c *Client) IsLoading(ctx context.Context, ref string) (bool, error) {
	res, err := invoke[common.BoolResult](ctx, c, common.MethodIsLoading, &common.RefParams{Ref: ref})
	if err != nil {
		return false, err
	}
	return res.Value, nil
}

// Counts returns the queue sizes and limits.
func (c *Client) Counts(ctx context.Context) (*common.CountsResult, error) {
	return invoke[common.CountsResult](ctx, c, common.MethodCounts, nil)
}

// Stats returns the outcome counters.
func (c *Client) Stats(ctx context.Context) (*loadlib.Stats, error) {
	return invoke[loadlib.Stats](ctx, c, common.MethodStats, nil)
}

// SetMaxConcurrentLoads changes the concurrency cap.
func (c *Client) SetMaxConcurrentLoads(ctx context.Context, n int) (*common.CountsResult, error) {
	return invoke[common.CountsResult](ctx, c, common.MethodSetMaxConcurrentLoads, &common.SetMaxConcurrentLoadsParams{Value: n})
}

// SetLoadTimeout changes the per-load timeout.
func (c *Client) SetLoadTimeout(ctx context.Context, seconds float64) (*common.CountsResult, error) {
	return invoke[common.CountsResult](ctx, c, common.MethodSetLoadTimeout, &common.SetLoadTimeoutParams{Seconds: seconds})
}

// IsCached reports whether ref is in the daemon cache.
func (c *Client) IsCached(ctx context.Context, ref string) (bool, error) {
	res, err := invoke[common.BoolResult](ctx, c, common.MethodIsCached, &common.RefParams{Ref: ref})
	if err != nil {
		return false, err
	}
	return res.Value, nil
}

// CacheStats returns the cache entry count and approximate size.
func (c *Client) CacheStats(ctx context.Context) (*loadlib.CacheStats, error) {
	return invoke[loadlib.CacheStats](ctx, c, common.MethodCacheStats, nil)
}

// ClearCache empties the daemon cache and returns the number removed.
func (c *Client) ClearCache(ctx context.Context) (int, error) {
	res, err := invoke[common.ClearCacheResult](ctx, c, common.MethodClearCache, nil)
	if err != nil {
		return 0, err
	}
	return res.Removed, nil
}

// DebugDump returns the scheduler state.
func (c *Client) DebugDump(ctx context.Context) (*loadlib.DebugInfo, error) {
	return invoke[loadlib.DebugInfo](ctx, c, common.MethodDebugDump, nil)
}

// ListViews returns the daemon's view stack from bottom to top.
func (c *Client) ListViews(ctx context.Context) ([]common.ViewInfo, error) {
	res, err := invoke[common.ViewsResult](ctx, c, common.MethodListViews, nil)
	if err != nil {
		return nil, err
	}
	return res.Views, nil
}

// RemoveView takes a view off the daemon's stack. It reports false when
// no view has that id.
func (c *Client) RemoveView(ctx context.Context, id uint64) (bool, error) {
	res, err := invoke[common.BoolResult](ctx, c, common.MethodRemoveView, &common.ViewIDParams{ID: id})
	if err != nil {
		return false, err
	}
	return res.Value, nil
}
