// Package common provides shared types and constants used across the
// asyncload client-server communication layer.
package common

// Environment variable names for configuration.
const (
	// ConfigPathEnv overrides the configuration file location.
	ConfigPathEnv = "ASYNCLOAD_CONFIG"

	// ListenEnv is the environment variable for the daemon TCP address.
	ListenEnv = "ASYNCLOAD_LISTEN"

	// SocketPathEnv is the environment variable for a unix socket path.
	SocketPathEnv = "ASYNCLOAD_SOCKET_PATH"

	// DaemonURIEnv selects the daemon a CLI command talks to.
	DaemonURIEnv = "ASYNCLOAD_DAEMON_URI"

	// SecretEnv supplies the RPC bearer token directly.
	SecretEnv = "ASYNCLOAD_RPC_SECRET"

	// DebugEnv is the environment variable to enable debug logging.
	DebugEnv = "ASYNCLOAD_DEBUG"
)
