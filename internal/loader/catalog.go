package loader

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/warpdl/asyncload/internal/view"
	"github.com/warpdl/asyncload/pkg/loadlib"
	_ "modernc.org/sqlite"
)

const catalogSchema = `
CREATE TABLE IF NOT EXISTS classes (
	name       TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	attributes TEXT NOT NULL DEFAULT '{}',
	script     TEXT NOT NULL DEFAULT ''
)`

// Catalog resolves catalog://<name> identifiers from a sqlite table of
// view descriptors.
type Catalog struct {
	db *sql.DB
}

var _ Backend = (*Catalog)(nil)

// OpenCatalog opens (and creates if needed) the catalog database at path.
func OpenCatalog(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error: cannot open catalog database: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(catalogSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("error: failed to create catalog schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Put inserts or replaces a descriptor.
func (c *Catalog) Put(ctx context.Context, d *view.Descriptor) error {
	attrs, err := json.Marshal(d.Attributes)
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx, `
        INSERT INTO classes (name, title, attributes, script) VALUES (?, ?, ?, ?)
        ON CONFLICT(name) DO UPDATE SET title = excluded.title,
            attributes = excluded.attributes, script = excluded.script
    `, d.Name, d.Title, string(attrs), d.Script)
	if err != nil {
		return fmt.Errorf("error: failed to store class %s: %w", d.Name, err)
	}
	return nil
}

// Delete removes a descriptor. Returns false if it did not exist.
func (c *Catalog) Delete(ctx context.Context, name string) (bool, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM classes WHERE name = ?`, name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Names lists the stored class names in order.
func (c *Catalog) Names(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT name FROM classes ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Resolve loads the descriptor named by ref.
func (c *Catalog) Resolve(ctx context.Context, ref loadlib.ClassRef) (loadlib.Class, error) {
	_, name, ok := SplitRef(ref)
	if !ok || name == "" {
		return nil, NewPermanentError("catalog", "parse", fmt.Errorf("%w: %q", ErrInvalidPath, ref))
	}
	var (
		d     view.Descriptor
		attrs string
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT name, title, attributes, script FROM classes WHERE name = ?`, name,
	).Scan(&d.Name, &d.Title, &attrs, &d.Script)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewPermanentError("catalog", "query", fmt.Errorf("%w: %s", ErrNotFound, name))
	}
	if err != nil {
		return nil, NewTransientError("catalog", "query", err)
	}
	if err := json.Unmarshal([]byte(attrs), &d.Attributes); err != nil {
		return nil, NewPermanentError("catalog", "parse", err)
	}
	class, err := d.Compile(ref, nil)
	if err != nil {
		return nil, NewPermanentError("catalog", "compile", err)
	}
	return class, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}
