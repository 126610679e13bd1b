package server

import (
	"context"
	"errors"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/google/uuid"
	"github.com/warpdl/asyncload/common"
	"github.com/warpdl/asyncload/internal/view"
	"github.com/warpdl/asyncload/pkg/loadlib"
	"github.com/warpdl/asyncload/pkg/logger"
)

// Custom JSON-RPC error codes for load operations.
const (
	codeInvalidIdentifier = jrpc2.Code(-32001)
	codeSubmitRejected    = jrpc2.Code(-32002)
	codeInvalidParams     = jrpc2.Code(-32602)
)

// RPCConfig holds configuration for the JSON-RPC endpoints.
type RPCConfig struct {
	Secret    string // Auth token; empty rejects every call
	Version   string
	Commit    string
	BuildType string
	// Views backs view.list and view.remove. Nil leaves them unregistered.
	Views *view.Stack
}

// CallObserver is told about every served call.
type CallObserver func(method string, err error)

// RPCServer holds the method table shared by the HTTP bridge and the
// WebSocket servers.
type RPCServer struct {
	bridge    jhttp.Bridge
	methods   handler.Map
	secret    string
	version   string
	commit    string
	buildType string
	host      *loadlib.Host
	views     *view.Stack
	log       logger.Logger
}

// NewRPCServer creates the method table and HTTP bridge over host.
// observe may be nil.
func NewRPCServer(cfg *RPCConfig, host *loadlib.Host, observe CallObserver, l logger.Logger) *RPCServer {
	if l == nil {
		l = logger.NewNopLogger()
	}
	rs := &RPCServer{
		secret:    cfg.Secret,
		version:   cfg.Version,
		commit:    cfg.Commit,
		buildType: cfg.BuildType,
		host:      host,
		views:     cfg.Views,
		log:       l,
	}
	methods := handler.Map{
		common.MethodGetVersion:            handler.New(rs.systemGetVersion),
		common.MethodSubmit:                handler.New(rs.loadSubmit),
		common.MethodPreload:               handler.New(rs.loadPreload),
		common.MethodCancel:                handler.New(rs.loadCancel),
		common.MethodCancelAll:             handler.New(rs.loadCancelAll),
		common.MethodStatus:                handler.New(rs.loadStatus),
		common.MethodIsLoading:             handler.New(rs.loadIsLoading),
		common.MethodCounts:                handler.New(rs.schedulerCounts),
		common.MethodStats:                 handler.New(rs.schedulerStats),
		common.MethodSetMaxConcurrentLoads: handler.New(rs.schedulerSetMaxConcurrentLoads),
		common.MethodSetLoadTimeout:        handler.New(rs.schedulerSetLoadTimeout),
		common.MethodIsCached:              handler.New(rs.cacheIsCached),
		common.MethodCacheStats:            handler.New(rs.cacheStats),
		common.MethodClearCache:            handler.New(rs.cacheClear),
		common.MethodDebugDump:             handler.New(rs.debugDump),
	}
	if rs.views != nil {
		methods[common.MethodListViews] = handler.New(rs.viewList)
		methods[common.MethodRemoveView] = handler.New(rs.viewRemove)
	}
	if observe != nil {
		for name, h := range methods {
			methods[name] = observed(name, h, observe)
		}
	}
	rs.methods = methods
	rs.bridge = jhttp.NewBridge(methods, nil)
	return rs
}

func observed(name string, h jrpc2.Handler, observe CallObserver) jrpc2.Handler {
	return func(ctx context.Context, req *jrpc2.Request) (any, error) {
		v, err := h(ctx, req)
		observe(name, err)
		return v, err
	}
}

// scheduler returns the hosted scheduler. When there is none the failure
// is logged and callers answer with an empty result.
func (rs *RPCServer) scheduler(method string) (*loadlib.Scheduler, bool) {
	s, err := rs.host.Scheduler()
	if err != nil {
		rs.log.Error("%s: %v", method, err)
		return nil, false
	}
	return s, true
}

func parseID(s string) (loadlib.RequestID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, &jrpc2.Error{Code: codeInvalidParams, Message: "invalid request id: " + err.Error()}
	}
	return id, nil
}

func idString(id loadlib.RequestID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

func (rs *RPCServer) systemGetVersion(_ context.Context) (*common.VersionResult, error) {
	return &common.VersionResult{
		Version:   rs.version,
		Commit:    rs.commit,
		BuildType: rs.buildType,
	}, nil
}

// loadSubmit queues a load. The outcome arrives as a load.completed or
// load.failed notification on WebSocket connections.
func (rs *RPCServer) loadSubmit(_ context.Context, p *common.SubmitParams) (*common.SubmitResult, error) {
	s, ok := rs.scheduler(common.MethodSubmit)
	if !ok {
		return &common.SubmitResult{}, nil
	}
	rejected := make(chan error, 1)
	id := s.Submit(loadlib.ClassRef(p.Ref), &loadlib.SubmitOpts{
		Priority:  p.Priority,
		Placement: p.Placement,
		OnFailure: func(err error) {
			select {
			case rejected <- err:
			default:
			}
		},
	})
	if id == uuid.Nil {
		err := <-rejected
		if errors.Is(err, loadlib.ErrInvalidIdentifier) {
			return nil, &jrpc2.Error{Code: codeInvalidIdentifier, Message: err.Error()}
		}
		return nil, &jrpc2.Error{Code: codeSubmitRejected, Message: err.Error()}
	}
	return &common.SubmitResult{ID: id.String()}, nil
}

func (rs *RPCServer) loadPreload(_ context.Context, p *common.PreloadParams) (*common.PreloadResult, error) {
	s, ok := rs.scheduler(common.MethodPreload)
	if !ok {
		return &common.PreloadResult{}, nil
	}
	ref := loadlib.ClassRef(p.Ref)
	id := s.Preload(ref, p.Priority)
	return &common.PreloadResult{
		ID:     idString(id),
		Cached: id == uuid.Nil && s.IsCached(ref),
	}, nil
}

func (rs *RPCServer) loadCancel(_ context.Context, p *common.IDParams) (*common.BoolResult, error) {
	id, err := parseID(p.ID)
	if err != nil {
		return nil, err
	}
	s, ok := rs.scheduler(common.MethodCancel)
	if !ok {
		return &common.BoolResult{}, nil
	}
	return &common.BoolResult{Value: s.Cancel(id)}, nil
}

func (rs *RPCServer) loadCancelAll(_ context.Context) (*common.CountsResult, error) {
	s, ok := rs.scheduler(common.MethodCancelAll)
	if !ok {
		return &common.CountsResult{}, nil
	}
	s.CancelAll()
	return counts(s), nil
}

func (rs *RPCServer) loadStatus(_ context.Context, p *common.IDParams) (*common.StatusResult, error) {
	id, err := parseID(p.ID)
	if err != nil {
		return nil, err
	}
	res := &common.StatusResult{ID: id.String()}
	s, ok := rs.scheduler(common.MethodStatus)
	if !ok {
		return res, nil
	}
	res.RequestStatus, res.Known = s.RequestStatus(id)
	return res, nil
}

func (rs *RPCServer) loadIsLoading(_ context.Context, p *common.RefParams) (*common.BoolResult, error) {
	s, ok := rs.scheduler(common.MethodIsLoading)
	if !ok {
		return &common.BoolResult{}, nil
	}
	return &common.BoolResult{Value: s.IsLoading(loadlib.ClassRef(p.Ref))}, nil
}

func counts(s *loadlib.Scheduler) *common.CountsResult {
	return &common.CountsResult{
		Active:             s.ActiveCount(),
		Pending:            s.PendingCount(),
		CancelledIDs:       s.CancelledCount(),
		MaxConcurrentLoads: s.MaxConcurrentLoads(),
		LoadTimeoutSeconds: s.LoadTimeout().Seconds(),
	}
}

func (rs *RPCServer) schedulerCounts(_ context.Context) (*common.CountsResult, error) {
	s, ok := rs.scheduler(common.MethodCounts)
	if !ok {
		return &common.CountsResult{}, nil
	}
	return counts(s), nil
}

func (rs *RPCServer) schedulerStats(_ context.Context) (*loadlib.Stats, error) {
	s, ok := rs.scheduler(common.MethodStats)
	if !ok {
		return &loadlib.Stats{}, nil
	}
	st := s.Stats()
	return &st, nil
}

func (rs *RPCServer) schedulerSetMaxConcurrentLoads(_ context.Context, p *common.SetMaxConcurrentLoadsParams) (*common.CountsResult, error) {
	if p.Value < 1 {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "value must be at least 1"}
	}
	s, ok := rs.scheduler(common.MethodSetMaxConcurrentLoads)
	if !ok {
		return &common.CountsResult{}, nil
	}
	s.SetMaxConcurrentLoads(p.Value)
	return counts(s), nil
}

func (rs *RPCServer) schedulerSetLoadTimeout(_ context.Context, p *common.SetLoadTimeoutParams) (*common.CountsResult, error) {
	if p.Seconds <= 0 {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "seconds must be positive"}
	}
	s, ok := rs.scheduler(common.MethodSetLoadTimeout)
	if !ok {
		return &common.CountsResult{}, nil
	}
	s.SetLoadTimeout(time.Duration(p.Seconds * float64(time.Second)))
	return counts(s), nil
}

func (rs *RPCServer) cacheIsCached(_ context.Context, p *common.RefParams) (*common.BoolResult, error) {
	s, ok := rs.scheduler(common.MethodIsCached)
	if !ok {
		return &common.BoolResult{}, nil
	}
	return &common.BoolResult{Value: s.IsCached(loadlib.ClassRef(p.Ref))}, nil
}

func (rs *RPCServer) cacheStats(_ context.Context) (*loadlib.CacheStats, error) {
	s, ok := rs.scheduler(common.MethodCacheStats)
	if !ok {
		return &loadlib.CacheStats{}, nil
	}
	cs := s.CacheStats()
	return &cs, nil
}

func (rs *RPCServer) cacheClear(_ context.Context) (*common.ClearCacheResult, error) {
	s, ok := rs.scheduler(common.MethodClearCache)
	if !ok {
		return &common.ClearCacheResult{}, nil
	}
	return &common.ClearCacheResult{Removed: s.ClearCache()}, nil
}

func (rs *RPCServer) debugDump(_ context.Context) (*loadlib.DebugInfo, error) {
	s, ok := rs.scheduler(common.MethodDebugDump)
	if !ok {
		return &loadlib.DebugInfo{}, nil
	}
	info := s.DebugDump()
	return &info, nil
}

func (rs *RPCServer) viewList(_ context.Context) (*common.ViewsResult, error) {
	views := rs.views.Views()
	res := &common.ViewsResult{Views: make([]common.ViewInfo, 0, len(views))}
	for _, v := range views {
		res.Views = append(res.Views, *viewInfo(v))
	}
	return res, nil
}

// viewRemove takes a view off the stack.
func (rs *RPCServer) viewRemove(_ context.Context, p *common.ViewIDParams) (*common.BoolResult, error) {
	ok := rs.views.Remove(p.ID)
	if ok {
		rs.log.Info("view: removed #%d", p.ID)
	}
	return &common.BoolResult{Value: ok}, nil
}

// Close shuts down the jrpc2 bridge.
func (rs *RPCServer) Close() {
	rs.bridge.Close()
}
