/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	applog "gocutscene/internal/log"
	"gocutscene/internal/parser"
	"gocutscene/internal/scene"
	"gocutscene/internal/version"

	// Postgres driver for shared team libraries
	_ "github.com/jackc/pgx/v5/stdlib"
	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

// schemaVersion tracks the library schema. Bump it and add a migration step on change.
const schemaVersion = 2

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// ErrSceneNotFound is returned when the library holds no scene with the requested name.
var ErrSceneNotFound = errors.New("scene not found in library")

// Entry is the catalogue record of one stored scene.
type Entry struct {
	Name       string
	Source     string
	CompileID  string
	Dialogue   bool
	Commands   int
	ImportedAt time.Time
}

// Library stores compiled scenes keyed by name in SQLite or Postgres.
type Library struct {
	db     *sql.DB
	driver string
	log    *slog.Logger
}

// OpenLibrary connects to the library database and brings its schema up to date.
// For sqlite the dsn is a file path; for pgx it is a postgres URL.
func OpenLibrary(ctx context.Context, driver, dsn string) (*Library, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "library_open").With(slog.String("driver", driver))
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("library location is required")
	}
	var source string
	switch driver {
	case DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create library dir: %w", err)
		}
		source = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(dsn))
	case DriverPostgres:
		source = dsn
	default:
		return nil, fmt.Errorf("unsupported library driver %q", driver)
	}
	db, err := sql.Open(driver, source)
	if err != nil {
		l.Error("open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	lib := &Library{db: db, driver: driver, log: applog.WithComponent("storage")}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		l.Error("ping failed", slog.Any("err", err))
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}
	if err := lib.ensureMetaAndVersion(ctx); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := lib.runMigrations(ctx); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Info("library ready")
	return lib, nil
}

func (lib *Library) Close() error { return lib.db.Close() }

// rebind rewrites '?' placeholders to '$n' for Postgres.
func (lib *Library) rebind(q string) string {
	if lib.driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (lib *Library) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return lib.db.ExecContext(ctx, lib.rebind(q), args...)
}

func (lib *Library) ensureMetaAndVersion(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		)`,
	}
	for _, q := range ddl {
		if _, err := lib.exec(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	var cur int
	err := lib.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Fresh database: migrations start from 0.
		if _, err := lib.exec(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, 0, ?, ?, ?)`, version.String(), now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := lib.exec(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, version.String(), now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// migrations[i] brings the schema from version i to i+1.
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS scenes (
			name        TEXT PRIMARY KEY,
			source      TEXT NOT NULL,
			compile_id  TEXT NOT NULL,
			dialogue    INTEGER NOT NULL,
			commands    INTEGER NOT NULL,
			payload     TEXT NOT NULL,
			imported_at TEXT NOT NULL
		)`,
	},
	{
		`CREATE INDEX IF NOT EXISTS idx_scenes_source ON scenes(source)`,
		`CREATE INDEX IF NOT EXISTS idx_scenes_compile ON scenes(compile_id)`,
	},
}

// SchemaVersion reports the schema version recorded in the database.
func (lib *Library) SchemaVersion(ctx context.Context) (int, error) {
	var cur int
	if err := lib.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return cur, nil
}

func (lib *Library) runMigrations(ctx context.Context) error {
	cur, err := lib.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if cur > schemaVersion {
		lib.log.Warn("library schema is newer than this build", slog.Int("schema", cur))
		return nil
	}
	for ; cur < schemaVersion; cur++ {
		next := cur + 1
		tx, err := lib.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range migrations[cur] {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, lib.rebind(`UPDATE version SET schema=?, updated_at=? WHERE id=1`), next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
	}
	return nil
}

// Put stores sc, replacing any scene of the same name.
func (lib *Library) Put(ctx context.Context, sc *scene.Scene, source, compileID string) (Entry, error) {
	if sc == nil {
		return Entry{}, errors.New("nil scene")
	}
	payload, err := scene.Marshal(sc)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal scene %q: %w", sc.Name, err)
	}
	e := Entry{
		Name:       sc.Name,
		Source:     source,
		CompileID:  compileID,
		Dialogue:   sc.Dialogue,
		Commands:   sc.Len(),
		ImportedAt: time.Now().UTC().Truncate(time.Second),
	}
	dialogue := 0
	if e.Dialogue {
		dialogue = 1
	}
	_, err = lib.exec(ctx, `INSERT INTO scenes (name, source, compile_id, dialogue, commands, payload, imported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			source=excluded.source, compile_id=excluded.compile_id, dialogue=excluded.dialogue,
			commands=excluded.commands, payload=excluded.payload, imported_at=excluded.imported_at`,
		e.Name, e.Source, e.CompileID, dialogue, e.Commands, string(payload), e.ImportedAt.Format(time.RFC3339))
	if err != nil {
		return Entry{}, fmt.Errorf("store scene %q: %w", sc.Name, err)
	}
	return e, nil
}

// Import compiles the script at path and stores every resulting scene under one compile id.
func (lib *Library) Import(ctx context.Context, path string, opts parser.Options) ([]Entry, []parser.Warning, error) {
	l := applog.WithOperation(lib.log, "import").With(slog.String("path", path))
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read script: %w", err)
	}
	res, err := parser.Compile(string(text), opts)
	if err != nil {
		return nil, nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	id := ulid.Make().String()
	entries := make([]Entry, 0, len(res.Scenes))
	for _, sc := range res.Scenes {
		e, err := lib.Put(ctx, sc, abs, id)
		if err != nil {
			return entries, res.Warnings, err
		}
		entries = append(entries, e)
	}
	l.Info("imported", slog.String("compile_id", id), slog.Int("scenes", len(entries)), slog.Int("warnings", len(res.Warnings)))
	return entries, res.Warnings, nil
}

// Reimport re-reads the recorded source of the named scene and recompiles only that scene.
func (lib *Library) Reimport(ctx context.Context, name string, strict bool) (Entry, error) {
	e, err := lib.Entry(ctx, name)
	if err != nil {
		return Entry{}, err
	}
	entries, _, err := lib.Import(ctx, e.Source, parser.Options{Filter: []string{name}, Strict: strict})
	if err != nil {
		return Entry{}, fmt.Errorf("reimport %q: %w", name, err)
	}
	if len(entries) == 0 {
		return Entry{}, fmt.Errorf("reimport %q: %w in %s", name, ErrSceneNotFound, e.Source)
	}
	return entries[0], nil
}

const entryColumns = `name, source, compile_id, dialogue, commands, imported_at`

func scanEntry(row interface{ Scan(...any) error }, extra ...any) (Entry, error) {
	var e Entry
	var dialogue int
	var imported string
	dest := append([]any{&e.Name, &e.Source, &e.CompileID, &dialogue, &e.Commands, &imported}, extra...)
	if err := row.Scan(dest...); err != nil {
		return Entry{}, err
	}
	e.Dialogue = dialogue != 0
	at, err := time.Parse(time.RFC3339, imported)
	if err != nil {
		return Entry{}, fmt.Errorf("scene %q: bad imported_at %q: %w", e.Name, imported, err)
	}
	e.ImportedAt = at
	return e, nil
}

// Entry returns the catalogue record of the named scene.
func (lib *Library) Entry(ctx context.Context, name string) (Entry, error) {
	row := lib.db.QueryRowContext(ctx, lib.rebind(`SELECT `+entryColumns+` FROM scenes WHERE name=?`), name)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%q: %w", name, ErrSceneNotFound)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("read entry %q: %w", name, err)
	}
	return e, nil
}

// Get loads the named scene, validating the stored payload.
func (lib *Library) Get(ctx context.Context, name string) (*scene.Scene, Entry, error) {
	var payload string
	row := lib.db.QueryRowContext(ctx, lib.rebind(`SELECT `+entryColumns+`, payload FROM scenes WHERE name=?`), name)
	e, err := scanEntry(row, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Entry{}, fmt.Errorf("%q: %w", name, ErrSceneNotFound)
	}
	if err != nil {
		return nil, Entry{}, fmt.Errorf("read scene %q: %w", name, err)
	}
	sc, err := DecodeScene([]byte(payload))
	if err != nil {
		return nil, e, fmt.Errorf("stored scene %q: %w", name, err)
	}
	return sc, e, nil
}

// List returns every stored scene ordered by name.
func (lib *Library) List(ctx context.Context) ([]Entry, error) {
	rows, err := lib.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM scenes ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes the named scene.
func (lib *Library) Delete(ctx context.Context, name string) error {
	res, err := lib.exec(ctx, `DELETE FROM scenes WHERE name=?`, name)
	if err != nil {
		return fmt.Errorf("delete %q: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%q: %w", name, ErrSceneNotFound)
	}
	return nil
}
