package loader

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/warpdl/asyncload/internal/view"
	"github.com/warpdl/asyncload/pkg/loadlib"
)

func TestFileBackend_Resolve(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "views/menu.yaml", []byte("name: menu\ntitle: Main\nattributes:\n  theme: dark\n"), 0644)
	afero.WriteFile(fs, "views/bad.yaml", []byte("title: missing name\n"), 0644)
	b := NewFileBackend(fs, nil)
	ctx := context.Background()

	class, err := b.Resolve(ctx, "file://views/menu.yaml")
	if err != nil {
		t.Fatal(err)
	}
	c := class.(*view.Class)
	if c.Name != "menu" || c.Title != "Main" || c.Attributes["theme"] != "dark" || c.Ref != "file://views/menu.yaml" {
		t.Fatalf("unexpected class %+v", c)
	}

	_, err = b.Resolve(ctx, "file://views/missing.yaml")
	if !errors.Is(err, ErrNotFound) || IsTransient(err) {
		t.Fatalf("expected permanent ErrNotFound, got %v", err)
	}
	if _, err := b.Resolve(ctx, "file://views/bad.yaml"); !errors.Is(err, view.ErrMissingName) {
		t.Fatalf("expected ErrMissingName, got %v", err)
	}
	for _, ref := range []loadlib.ClassRef{"file://../etc/passwd", "file://"} {
		if _, err := b.Resolve(ctx, ref); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("%s: expected ErrInvalidPath, got %v", ref, err)
		}
	}
}

func TestFileBackend_CancelledContext(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "a.yaml", []byte("name: a\n"), 0644)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewFileBackend(fs, nil).Resolve(ctx, "file://a.yaml"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestScriptBackend_Resolve(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "hud.js", []byte("function create(p) { return {title: 'HUD'}; }"), 0644)
	afero.WriteFile(fs, "broken.js", []byte("function create( {"), 0644)
	b := NewScriptBackend(fs)
	ctx := context.Background()

	// the .js extension is optional
	class, err := b.Resolve(ctx, "script://hud")
	if err != nil {
		t.Fatal(err)
	}
	c := class.(*view.Class)
	if c.Name != "hud" || c.Script == nil {
		t.Fatalf("unexpected class %+v", c)
	}
	inst, err := view.NewStack(nil).Create(c, loadlib.Placement{})
	if err != nil {
		t.Fatal(err)
	}
	if inst.(*view.View).Title != "HUD" {
		t.Fatal("expected script title")
	}

	if _, err := b.Resolve(ctx, "script://broken.js"); err == nil || IsTransient(err) {
		t.Fatalf("expected permanent compile error, got %v", err)
	}
}
