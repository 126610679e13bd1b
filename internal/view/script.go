package view

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
	"github.com/spf13/afero"
	"github.com/warpdl/asyncload/pkg/loadlib"
)

// ScriptTimeout bounds a single create() call.
var ScriptTimeout = 2 * time.Second

var ErrNoCreateFunc = errors.New("script does not define create()")

// NewModuleRegistry returns a require() registry that reads modules from fs.
func NewModuleRegistry(fs afero.Fs) *require.Registry {
	return require.NewRegistry(require.WithLoader(func(path string) ([]byte, error) {
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, require.ModuleFileDoesNotExistError
			}
			return nil, err
		}
		return data, nil
	}))
}

// scriptResult is what create() may return.
type scriptResult struct {
	Title      string
	Attributes map[string]string
}

// runScript executes the class script in a fresh runtime and calls
// create(placement).
func runScript(c *Class, p loadlib.Placement) (*scriptResult, error) {
	vm := goja.New()
	if c.Modules != nil {
		c.Modules.Enable(vm)
	}
	timer := time.AfterFunc(ScriptTimeout, func() {
		vm.Interrupt("script timeout")
	})
	defer timer.Stop()

	if _, err := vm.RunProgram(c.Script); err != nil {
		return nil, fmt.Errorf("run script for %s: %w", c.Name, err)
	}
	create, ok := goja.AssertFunction(vm.Get("create"))
	if !ok {
		return nil, ErrNoCreateFunc
	}
	arg := vm.ToValue(map[string]interface{}{
		"removeParent":  p.RemoveParent,
		"destroyParent": p.DestroyParent,
		"zOrder":        p.ZOrder,
		"className":     c.Name,
	})
	ret, err := create(goja.Undefined(), arg)
	if err != nil {
		return nil, fmt.Errorf("create() for %s: %w", c.Name, err)
	}
	res := &scriptResult{Attributes: map[string]string{}}
	if ret == nil || goja.IsUndefined(ret) || goja.IsNull(ret) {
		return res, nil
	}
	obj, ok := ret.Export().(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("create() for %s returned %T, expected an object", c.Name, ret.Export())
	}
	if t, ok := obj["title"]; ok && t != nil {
		res.Title = fmt.Sprint(t)
	}
	if attrs, ok := obj["attributes"].(map[string]interface{}); ok {
		for k, v := range attrs {
			res.Attributes[k] = fmt.Sprint(v)
		}
	}
	return res, nil
}
