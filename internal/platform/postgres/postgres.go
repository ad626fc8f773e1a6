// Package postgres opens the shared database handle and bootstraps the
// schema the stores depend on.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open connects via the pgx stdlib driver and verifies the connection.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Schema is the persisted layout. The requirement_edges table carries one row
// per directed edge, so graph symmetry holds structurally: parent_ids and
// child_ids are projections of the same rows, never two separately maintained
// sets.
const Schema = `
CREATE TABLE IF NOT EXISTS projects (
    id          UUID PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    is_active   BOOLEAN NOT NULL DEFAULT FALSE,
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS groups (
    id          UUID PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    project_id  UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    parent_id   UUID REFERENCES groups(id) ON DELETE SET NULL,
    ord         INTEGER NOT NULL DEFAULT 0,
    is_active   BOOLEAN NOT NULL DEFAULT FALSE,
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS chapters (
    id          UUID PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    group_id    UUID NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
    parent_id   UUID REFERENCES chapters(id) ON DELETE SET NULL,
    ord         INTEGER NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS requirements (
    id                   UUID PRIMARY KEY,
    req_id               TEXT NOT NULL,
    title                TEXT NOT NULL,
    body                 TEXT NOT NULL,
    status               TEXT NOT NULL,
    verification_methods TEXT NOT NULL DEFAULT '',
    project_id           UUID NOT NULL,
    group_id             UUID NOT NULL,
    chapter_id           UUID,
    created_at           TIMESTAMPTZ NOT NULL,
    updated_at           TIMESTAMPTZ NOT NULL,
    created_by           TEXT NOT NULL DEFAULT '',
    updated_by           TEXT NOT NULL DEFAULT '',
    UNIQUE (project_id, req_id)
);

CREATE INDEX IF NOT EXISTS idx_requirements_project ON requirements(project_id);
CREATE INDEX IF NOT EXISTS idx_requirements_group   ON requirements(group_id);

CREATE TABLE IF NOT EXISTS requirement_edges (
    parent_id  UUID NOT NULL REFERENCES requirements(id) ON DELETE CASCADE,
    child_id   UUID NOT NULL REFERENCES requirements(id) ON DELETE CASCADE,
    created_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (parent_id, child_id),
    CHECK (parent_id <> child_id)
);

CREATE INDEX IF NOT EXISTS idx_edges_child ON requirement_edges(child_id);

CREATE TABLE IF NOT EXISTS requirement_changes (
    seq            BIGSERIAL,
    id             UUID PRIMARY KEY,
    requirement_id UUID NOT NULL,
    change_type    TEXT NOT NULL,
    field_name     TEXT NOT NULL DEFAULT '',
    old_value      TEXT NOT NULL DEFAULT '',
    new_value      TEXT NOT NULL DEFAULT '',
    description    TEXT NOT NULL,
    changed_by     TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_changes_requirement ON requirement_changes(requirement_id, seq);
`

// EnsureSchema creates missing tables and indexes. Idempotent.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
