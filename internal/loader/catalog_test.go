package loader

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/warpdl/asyncload/internal/view"
)

func TestCatalog_PutResolveDelete(t *testing.T) {
	cat, err := OpenCatalog(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer cat.Close()
	ctx := context.Background()

	d := &view.Descriptor{Name: "settings", Title: "Settings", Attributes: map[string]string{"tab": "audio"}}
	if err := cat.Put(ctx, d); err != nil {
		t.Fatal(err)
	}
	d.Title = "Options"
	if err := cat.Put(ctx, d); err != nil {
		t.Fatal(err)
	}
	if err := cat.Put(ctx, &view.Descriptor{Name: "about"}); err != nil {
		t.Fatal(err)
	}

	names, err := cat.Names(ctx)
	if err != nil || len(names) != 2 || names[0] != "about" || names[1] != "settings" {
		t.Fatalf("unexpected names %v, %v", names, err)
	}

	class, err := cat.Resolve(ctx, "catalog://settings")
	if err != nil {
		t.Fatal(err)
	}
	c := class.(*view.Class)
	if c.Title != "Options" || c.Attributes["tab"] != "audio" {
		t.Fatalf("unexpected class %+v", c)
	}

	if _, err := cat.Resolve(ctx, "catalog://missing"); !errors.Is(err, ErrNotFound) || IsTransient(err) {
		t.Fatalf("expected permanent ErrNotFound, got %v", err)
	}
	ok, err := cat.Delete(ctx, "settings")
	if err != nil || !ok {
		t.Fatalf("expected delete, got %v, %v", ok, err)
	}
	if ok, _ := cat.Delete(ctx, "settings"); ok {
		t.Fatal("second delete should report false")
	}
}

func TestCatalog_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	cat, err := OpenCatalog(path)
	if err != nil {
		t.Fatal(err)
	}
	cat.Put(context.Background(), &view.Descriptor{Name: "menu"})
	cat.Close()

	cat, err = OpenCatalog(path)
	if err != nil {
		t.Fatal(err)
	}
	defer cat.Close()
	if _, err := cat.Resolve(context.Background(), "catalog://menu"); err != nil {
		t.Fatal(err)
	}
}
