package common

import "strings"

// PipePath returns the full named pipe path for name. A full path is
// returned unchanged.
func PipePath(name string) string {
	if strings.HasPrefix(name, PipePrefix) {
		return name
	}
	return PipePrefix + name
}

// PipeName strips PipePrefix from path.
func PipeName(path string) string {
	return strings.TrimPrefix(path, PipePrefix)
}
