// Package view implements the instance side of the load pipeline: view
// classes produced by the loaders and a z-ordered view stack that
// constructs instances from them.
package view

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
	"github.com/warpdl/asyncload/pkg/loadlib"
	"gopkg.in/yaml.v3"
)

var (
	ErrNotAViewClass     = errors.New("class is not a view class")
	ErrMissingName       = errors.New("view descriptor has no name")
	ErrInvalidDescriptor = errors.New("invalid view descriptor")
)

// Class is a resolved view class.
type Class struct {
	// Ref is the identifier the class was resolved from.
	Ref loadlib.ClassRef
	// Name is the class name from the descriptor.
	Name string
	// Title is the default title of new views.
	Title string
	// Attributes are copied into every new view.
	Attributes map[string]string
	// Script, if set, defines a create(placement) function run on construction.
	Script *goja.Program
	// Modules resolves require() calls made by Script. May be nil.
	Modules *require.Registry
}

// Descriptor is the serialized form of a view class. YAML and JSON are
// both accepted.
type Descriptor struct {
	Name       string            `yaml:"name" json:"name"`
	Title      string            `yaml:"title,omitempty" json:"title,omitempty"`
	Attributes map[string]string `yaml:"attributes,omitempty" json:"attributes,omitempty"`
	// Script is inline JavaScript defining create(placement).
	Script string `yaml:"script,omitempty" json:"script,omitempty"`
}

// ParseDescriptor decodes a YAML or JSON descriptor.
func ParseDescriptor(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return nil, ErrMissingName
	}
	return &d, nil
}

// Compile turns the descriptor into a Class, compiling the inline script
// if there is one.
func (d *Descriptor) Compile(ref loadlib.ClassRef, modules *require.Registry) (*Class, error) {
	c := &Class{
		Ref:        ref,
		Name:       d.Name,
		Title:      d.Title,
		Attributes: make(map[string]string, len(d.Attributes)),
		Modules:    modules,
	}
	for k, v := range d.Attributes {
		c.Attributes[k] = v
	}
	if d.Script != "" {
		prog, err := goja.Compile(d.Name+".js", d.Script, false)
		if err != nil {
			return nil, fmt.Errorf("compile script for %s: %w", d.Name, err)
		}
		c.Script = prog
	}
	return c, nil
}

// CompileScript builds a script-only Class named name from JavaScript source.
func CompileScript(ref loadlib.ClassRef, name string, src []byte, modules *require.Registry) (*Class, error) {
	prog, err := goja.Compile(name+".js", string(src), false)
	if err != nil {
		return nil, fmt.Errorf("compile script %s: %w", name, err)
	}
	return &Class{
		Ref:        ref,
		Name:       name,
		Attributes: map[string]string{},
		Script:     prog,
		Modules:    modules,
	}, nil
}
