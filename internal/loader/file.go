package loader

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/dop251/goja_nodejs/require"
	"github.com/spf13/afero"
	"github.com/warpdl/asyncload/internal/view"
	"github.com/warpdl/asyncload/pkg/loadlib"
)

// FileBackend resolves file:// identifiers to YAML or JSON view
// descriptors stored under a root directory.
type FileBackend struct {
	fs      afero.Fs
	modules *require.Registry
}

var _ Backend = (*FileBackend)(nil)

// NewFileBackend serves descriptors from fs. modules resolves require()
// calls of inline scripts and may be nil.
func NewFileBackend(fs afero.Fs, modules *require.Registry) *FileBackend {
	return &FileBackend{fs: fs, modules: modules}
}

// NewOsFileBackend serves descriptors from the root directory on disk.
func NewOsFileBackend(root string) *FileBackend {
	fs := afero.NewBasePathFs(afero.NewOsFs(), root)
	return NewFileBackend(fs, view.NewModuleRegistry(fs))
}

// Resolve reads and compiles the descriptor.
func (b *FileBackend) Resolve(ctx context.Context, ref loadlib.ClassRef) (loadlib.Class, error) {
	p, err := refPath("file", ref)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(b.fs, p)
	if err != nil {
		return nil, classify("file", "read", err)
	}
	return compileDescriptor("file", ref, data, b.modules)
}

// ScriptBackend resolves script:// identifiers to JavaScript classes.
// The script defines create(placement) and may require() sibling modules.
type ScriptBackend struct {
	fs      afero.Fs
	modules *require.Registry
}

var _ Backend = (*ScriptBackend)(nil)

// NewScriptBackend serves scripts from fs.
func NewScriptBackend(fs afero.Fs) *ScriptBackend {
	return &ScriptBackend{fs: fs, modules: view.NewModuleRegistry(fs)}
}

// Resolve reads and compiles the script.
func (b *ScriptBackend) Resolve(ctx context.Context, ref loadlib.ClassRef) (loadlib.Class, error) {
	p, err := refPath("script", ref)
	if err != nil {
		return nil, err
	}
	if path.Ext(p) == "" {
		p += ".js"
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := afero.ReadFile(b.fs, p)
	if err != nil {
		return nil, classify("script", "read", err)
	}
	name := strings.TrimSuffix(path.Base(p), path.Ext(p))
	class, err := view.CompileScript(ref, name, src, b.modules)
	if err != nil {
		return nil, NewPermanentError("script", "compile", err)
	}
	return class, nil
}

// refPath extracts a clean relative path from ref. Paths escaping the
// root are rejected.
func refPath(scheme string, ref loadlib.ClassRef) (string, error) {
	_, rest, ok := SplitRef(ref)
	if !ok {
		return "", NewPermanentError(scheme, "parse", fmt.Errorf("%w: %q", ErrInvalidPath, ref))
	}
	p := path.Clean("/" + rest)
	if p == "/" || strings.Contains(rest, "..") {
		return "", NewPermanentError(scheme, "parse", fmt.Errorf("%w: %q", ErrInvalidPath, ref))
	}
	return strings.TrimPrefix(p, "/"), nil
}

func compileDescriptor(scheme string, ref loadlib.ClassRef, data []byte, modules *require.Registry) (*view.Class, error) {
	d, err := view.ParseDescriptor(data)
	if err != nil {
		return nil, NewPermanentError(scheme, "parse", err)
	}
	class, err := d.Compile(ref, modules)
	if err != nil {
		return nil, NewPermanentError(scheme, "compile", err)
	}
	return class, nil
}
