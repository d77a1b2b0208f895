// Package registry keeps a SQLite ledger of builds performed by the
// cache.
//
// The ledger records what was built, when, with which toolchain, and
// how often it was reused. It exists for inspection (the CLI's list
// command) and diagnosis; the rebuild-vs-reuse decision is made from
// the workspace on disk and never consults this table, so a lost or
// stale ledger can only misreport history, not corrupt the cache.
package registry

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Record is one ledger row.
type Record struct {
	CrateName        string
	SourceDigest     string
	ArtifactPath     string
	BuildID          string
	ToolchainVersion string
	StdoutBytes      int64
	StderrBytes      int64
	BuiltAt          time.Time
	LastUsedAt       time.Time
	ReuseCount       int64
}

// Registry is a handle on the ledger database.
type Registry struct {
	db *sql.DB
}

// Open creates or opens the ledger at path.
//
// Idempotent: the schema is applied on every open. The connection pool
// is pinned to a single connection since SQLite allows one writer.
func Open(path string) (*Registry, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect ledger: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply ledger schema: %w", err)
	}
	return &Registry{db: db}, nil
}

// Close releases the database handle.
func (r *Registry) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// RecordBuild upserts the ledger row after a successful build. A new
// build of an existing crate name supersedes the previous row and
// resets the reuse counter.
func (r *Registry) RecordBuild(ctx context.Context, rec Record) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO builds (
			crate_name, source_digest, artifact_path, build_id,
			toolchain_version, stdout_bytes, stderr_bytes,
			built_at, last_used_at, reuse_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(crate_name) DO UPDATE SET
			source_digest     = excluded.source_digest,
			artifact_path     = excluded.artifact_path,
			build_id          = excluded.build_id,
			toolchain_version = excluded.toolchain_version,
			stdout_bytes      = excluded.stdout_bytes,
			stderr_bytes      = excluded.stderr_bytes,
			built_at          = excluded.built_at,
			last_used_at      = excluded.last_used_at,
			reuse_count       = 0`,
		rec.CrateName, rec.SourceDigest, rec.ArtifactPath, rec.BuildID,
		rec.ToolchainVersion, rec.StdoutBytes, rec.StderrBytes,
		rec.BuiltAt.UTC().Format(time.RFC3339Nano),
		rec.LastUsedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record build %s: %w", rec.CrateName, err)
	}
	return nil
}

// TouchReuse bumps the reuse counter for a cache hit. A crate missing
// from the ledger (built by an older run, ledger deleted) is ignored.
func (r *Registry) TouchReuse(ctx context.Context, crateName string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE builds
		SET reuse_count = reuse_count + 1, last_used_at = ?
		WHERE crate_name = ?`,
		at.UTC().Format(time.RFC3339Nano), crateName)
	if err != nil {
		return fmt.Errorf("touch %s: %w", crateName, err)
	}
	return nil
}

// Get returns the ledger row for a crate name, or (nil, nil) if absent.
func (r *Registry) Get(ctx context.Context, crateName string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE crate_name = ?`, crateName)
	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", crateName, err)
	}
	return rec, nil
}

// List returns all ledger rows ordered by crate name.
func (r *Registry) List(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY crate_name`)
	if err != nil {
		return nil, fmt.Errorf("list builds: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan build row: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list builds: %w", err)
	}
	return out, nil
}

// Forget removes the ledger row for a crate name. Missing rows are not
// an error (clean must be idempotent).
func (r *Registry) Forget(ctx context.Context, crateName string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM builds WHERE crate_name = ?`, crateName)
	if err != nil {
		return fmt.Errorf("forget %s: %w", crateName, err)
	}
	return nil
}

const selectColumns = `
	SELECT crate_name, source_digest, artifact_path, build_id,
	       toolchain_version, stdout_bytes, stderr_bytes,
	       built_at, last_used_at, reuse_count
	FROM builds`

func scanRecord(scan func(...any) error) (*Record, error) {
	var rec Record
	var builtAt, lastUsed string
	if err := scan(
		&rec.CrateName, &rec.SourceDigest, &rec.ArtifactPath, &rec.BuildID,
		&rec.ToolchainVersion, &rec.StdoutBytes, &rec.StderrBytes,
		&builtAt, &lastUsed, &rec.ReuseCount,
	); err != nil {
		return nil, err
	}
	var err error
	if rec.BuiltAt, err = time.Parse(time.RFC3339Nano, builtAt); err != nil {
		return nil, fmt.Errorf("parse built_at: %w", err)
	}
	if rec.LastUsedAt, err = time.Parse(time.RFC3339Nano, lastUsed); err != nil {
		return nil, fmt.Errorf("parse last_used_at: %w", err)
	}
	return &rec, nil
}
