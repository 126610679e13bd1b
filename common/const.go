package common

// JSON-RPC method names served by the daemon.
const (
	MethodGetVersion            = "system.getVersion"
	MethodSubmit                = "load.submit"
	MethodPreload               = "load.preload"
	MethodCancel                = "load.cancel"
	MethodCancelAll             = "load.cancelAll"
	MethodStatus                = "load.status"
	MethodIsLoading             = "load.isLoading"
	MethodCounts                = "scheduler.counts"
	MethodStats                 = "scheduler.stats"
	MethodSetMaxConcurrentLoads = "scheduler.setMaxConcurrentLoads"
	MethodSetLoadTimeout        = "scheduler.setLoadTimeout"
	MethodIsCached              = "cache.isCached"
	MethodCacheStats            = "cache.stats"
	MethodClearCache            = "cache.clear"
	MethodDebugDump             = "debug.dump"
	MethodListViews             = "view.list"
	MethodRemoveView            = "view.remove"
)

// Push notification methods sent to WebSocket clients.
const (
	NotifyLoadCompleted = "load.completed"
	NotifyLoadFailed    = "load.failed"
	NotifyLoadCancelled = "load.cancelled"
)

const (
	// DefaultListenAddr is the default daemon address.
	DefaultListenAddr = "127.0.0.1:7490"
	// RPCPath is the HTTP JSON-RPC endpoint.
	RPCPath = "/jsonrpc"
	// WSPath is the WebSocket JSON-RPC endpoint.
	WSPath = "/jsonrpc/ws"
	// MetricsPath serves Prometheus metrics.
	MetricsPath = "/metrics"
)

// PipePrefix is the namespace of Windows named pipes.
const PipePrefix = `\\.\pipe\`
