// Package symdb stores symbol images in a SQLite database so tools can
// query global slots and function layouts without decoding images.
package symdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/glint/image"
)

var log = commonlog.GetLogger("glint.symdb")

// ErrNotFound indicates the requested image or symbol doesn't exist.
var ErrNotFound = errors.New("symdb: not found")

const schema = `
CREATE TABLE IF NOT EXISTS images (
	id         TEXT PRIMARY KEY,
	digest     BLOB NOT NULL UNIQUE,
	created_at TEXT NOT NULL,
	data       BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS globals (
	image_id TEXT NOT NULL REFERENCES images(id) ON DELETE CASCADE,
	name     TEXT NOT NULL,
	slot     INTEGER NOT NULL,
	PRIMARY KEY (image_id, name)
);
CREATE TABLE IF NOT EXISTS locals (
	image_id TEXT NOT NULL REFERENCES images(id) ON DELETE CASCADE,
	file     TEXT NOT NULL,
	function TEXT NOT NULL,
	path     TEXT NOT NULL,
	ordinal  INTEGER NOT NULL,
	name     TEXT NOT NULL,
	PRIMARY KEY (image_id, file, path, ordinal)
);
CREATE TABLE IF NOT EXISTS strings (
	image_id TEXT NOT NULL REFERENCES images(id) ON DELETE CASCADE,
	idx      INTEGER NOT NULL,
	text     TEXT NOT NULL,
	PRIMARY KEY (image_id, idx)
);
`

// DB is a symbol database.
type DB struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the database at path.
func Open(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA foreign_keys = ON"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return &DB{db: db, path: path}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// Save stores img. If an image with the same digest is already stored,
// nothing is written and the existing ID is returned with saved == false.
func (d *DB) Save(ctx context.Context, img *image.Image) (id string, saved bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	digest, err := img.Digest()
	if err != nil {
		return "", false, fmt.Errorf("digest: %w", err)
	}
	err = d.db.QueryRowContext(ctx, "SELECT id FROM images WHERE digest = ?", digest[:]).Scan(&id)
	if err == nil {
		log.Debugf("image %s already stored as %s", img.ID, id)
		return id, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", false, fmt.Errorf("querying digest: %w", err)
	}

	data, err := image.Marshal(img)
	if err != nil {
		return "", false, fmt.Errorf("marshal: %w", err)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO images (id, digest, created_at, data) VALUES (?, ?, ?, ?)",
		img.ID, digest[:], time.Now().UTC().Format(time.RFC3339Nano), data,
	); err != nil {
		return "", false, fmt.Errorf("saving image: %w", err)
	}
	for _, g := range img.Globals {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO globals (image_id, name, slot) VALUES (?, ?, ?)",
			img.ID, g.Name, g.Slot,
		); err != nil {
			return "", false, fmt.Errorf("saving global %q: %w", g.Name, err)
		}
	}
	for _, fn := range img.Functions {
		for i, name := range fn.Locals {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO locals (image_id, file, function, path, ordinal, name) VALUES (?, ?, ?, ?, ?, ?)",
				img.ID, fn.File, fn.Name, fn.Path, i+1, name,
			); err != nil {
				return "", false, fmt.Errorf("saving local %q: %w", name, err)
			}
		}
	}
	for i, s := range img.Strings {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO strings (image_id, idx, text) VALUES (?, ?, ?)",
			img.ID, i, s,
		); err != nil {
			return "", false, fmt.Errorf("saving string %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("commit: %w", err)
	}
	log.Infof("saved image %s (%d globals, %d functions)", img.ID, len(img.Globals), len(img.Functions))
	return img.ID, true, nil
}

// Load retrieves an image by ID.
func (d *DB) Load(ctx context.Context, id string) (*image.Image, error) {
	var data []byte
	err := d.db.QueryRowContext(ctx, "SELECT data FROM images WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("image %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying image: %w", err)
	}
	return image.Unmarshal(data)
}

// Latest returns the ID of the most recently saved image.
func (d *DB) Latest(ctx context.Context) (string, error) {
	var id string
	err := d.db.QueryRowContext(ctx,
		"SELECT id FROM images ORDER BY rowid DESC LIMIT 1").Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying latest image: %w", err)
	}
	return id, nil
}

// GlobalSlot returns the slot of a global in an image.
func (d *DB) GlobalSlot(ctx context.Context, imageID, name string) (int, error) {
	var slot int
	err := d.db.QueryRowContext(ctx,
		"SELECT slot FROM globals WHERE image_id = ? AND name = ?", imageID, name).Scan(&slot)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("global %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("querying global: %w", err)
	}
	return slot, nil
}

// Locals returns a function's locals in ordinal order. path is the
// function's qualified path, such as "outer.helper".
func (d *DB) Locals(ctx context.Context, imageID, file, path string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT name FROM locals WHERE image_id = ? AND file = ? AND path = ? ORDER BY ordinal",
		imageID, file, path)
	if err != nil {
		return nil, fmt.Errorf("querying locals: %w", err)
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

// Functions returns the paths of the functions in file named name that
// declare at least one local.
func (d *DB) Functions(ctx context.Context, imageID, file, name string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT DISTINCT path FROM locals WHERE image_id = ? AND file = ? AND function = ? ORDER BY path",
		imageID, file, name)
	if err != nil {
		return nil, fmt.Errorf("querying functions: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, rows.Err()
}

// Delete removes an image and its symbols.
func (d *DB) Delete(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"globals", "locals", "strings"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE image_id = ?", id); err != nil {
			return fmt.Errorf("deleting %s: %w", table, err)
		}
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM images WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("image %s: %w", id, ErrNotFound)
	}
	return tx.Commit()
}
