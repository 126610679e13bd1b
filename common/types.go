package common

import "github.com/warpdl/asyncload/pkg/loadlib"

type SubmitParams struct {
	Ref       string            `json:"ref"`
	Priority  int               `json:"priority,omitempty"`
	Placement loadlib.Placement `json:"placement,omitempty"`
}

type SubmitResult struct {
	ID string `json:"id"`
}

type PreloadParams struct {
	Ref      string `json:"ref"`
	Priority int    `json:"priority,omitempty"`
}

type PreloadResult struct {
	// ID is empty when the ref was invalid or already cached.
	ID     string `json:"id,omitempty"`
	Cached bool   `json:"cached"`
}

type IDParams struct {
	ID string `json:"id"`
}

type RefParams struct {
	Ref string `json:"ref"`
}

type BoolResult struct {
	Value bool `json:"value"`
}

type StatusResult struct {
	ID    string `json:"id"`
	Known bool   `json:"known"`
	loadlib.RequestStatus
}

type CountsResult struct {
	Active             int     `json:"active"`
	Pending            int     `json:"pending"`
	CancelledIDs       int     `json:"cancelledIds"`
	MaxConcurrentLoads int     `json:"maxConcurrentLoads"`
	LoadTimeoutSeconds float64 `json:"loadTimeoutSeconds"`
}

type SetMaxConcurrentLoadsParams struct {
	Value int `json:"value"`
}

type SetLoadTimeoutParams struct {
	Seconds float64 `json:"seconds"`
}

type ClearCacheResult struct {
	Removed int `json:"removed"`
}

type VersionResult struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildType string `json:"buildType,omitempty"`
}

// ViewInfo summarizes a constructed view.
type ViewInfo struct {
	ID        uint64            `json:"id"`
	ClassName string            `json:"className"`
	Title     string            `json:"title,omitempty"`
	ZOrder    int               `json:"zOrder"`
	Attrs     map[string]string `json:"attributes,omitempty"`
}

type ViewIDParams struct {
	ID uint64 `json:"id"`
}

type ViewsResult struct {
	Views []ViewInfo `json:"views"`
}

// LoadNotification is the payload of load.* push notifications.
type LoadNotification struct {
	ID    string    `json:"id"`
	Ref   string    `json:"ref"`
	Error string    `json:"error,omitempty"`
	View  *ViewInfo `json:"view,omitempty"`
	// Preload is set on completions that only populated the cache.
	Preload bool `json:"preload,omitempty"`
}
