package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"reqtrace/internal/catalog/models"
	"reqtrace/pkg/domain"
	"reqtrace/pkg/platform/sentinel"
)

// Postgres persists the catalog in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed catalog store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) CreateProject(ctx context.Context, p *models.Project) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create project: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE projects SET is_active = FALSE`); err != nil {
		return fmt.Errorf("deactivate projects: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects (id, name, description, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.UUID(p.ID), p.Name, p.Description, p.IsActive, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create project: %w", err)
	}
	return nil
}

func (s *Postgres) FindProject(ctx context.Context, id domain.ProjectID) (*models.Project, error) {
	return scanProject(s.db.QueryRowContext(ctx, `
		SELECT id, name, description, is_active, created_at, updated_at
		FROM projects WHERE id = $1`, uuid.UUID(id)))
}

func (s *Postgres) ListProjects(ctx context.Context) ([]*models.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, is_active, created_at, updated_at
		FROM projects ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Postgres) ActiveProject(ctx context.Context) (*models.Project, error) {
	return scanProject(s.db.QueryRowContext(ctx, `
		SELECT id, name, description, is_active, created_at, updated_at
		FROM projects WHERE is_active LIMIT 1`))
}

func (s *Postgres) ActivateProject(ctx context.Context, id domain.ProjectID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activate project: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE projects SET is_active = FALSE`); err != nil {
		return fmt.Errorf("deactivate projects: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE projects SET is_active = TRUE WHERE id = $1`, uuid.UUID(id))
	if err != nil {
		return fmt.Errorf("activate project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("activate project: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit activate project: %w", err)
	}
	return nil
}

func (s *Postgres) DeleteProject(ctx context.Context, id domain.ProjectID) error {
	// groups and chapters go with it via ON DELETE CASCADE
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM projects WHERE id = $1`, uuid.UUID(id)); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

func (s *Postgres) CreateGroup(ctx context.Context, g *models.Group) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create group: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE groups SET is_active = FALSE WHERE project_id = $1`,
		uuid.UUID(g.ProjectID)); err != nil {
		return fmt.Errorf("deactivate groups: %w", err)
	}

	var parentID any
	if g.ParentID != nil {
		parentID = uuid.UUID(*g.ParentID)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO groups (id, name, description, project_id, parent_id, ord, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.UUID(g.ID), g.Name, g.Description, uuid.UUID(g.ProjectID), parentID,
		g.Order, g.IsActive, g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert group: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create group: %w", err)
	}
	return nil
}

func (s *Postgres) FindGroup(ctx context.Context, id domain.GroupID) (*models.Group, error) {
	return scanGroup(s.db.QueryRowContext(ctx, `
		SELECT id, name, description, project_id, parent_id, ord, is_active, created_at, updated_at
		FROM groups WHERE id = $1`, uuid.UUID(id)))
}

func (s *Postgres) ListGroups(ctx context.Context, projectID *domain.ProjectID) ([]*models.Group, error) {
	query := `SELECT id, name, description, project_id, parent_id, ord, is_active, created_at, updated_at FROM groups`
	var args []any
	if projectID != nil {
		query += ` WHERE project_id = $1`
		args = append(args, uuid.UUID(*projectID))
	}
	query += ` ORDER BY ord, created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var out []*models.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Postgres) ActiveGroup(ctx context.Context, projectID domain.ProjectID) (*models.Group, error) {
	return scanGroup(s.db.QueryRowContext(ctx, `
		SELECT id, name, description, project_id, parent_id, ord, is_active, created_at, updated_at
		FROM groups WHERE project_id = $1 AND is_active LIMIT 1`, uuid.UUID(projectID)))
}

func (s *Postgres) ActivateGroup(ctx context.Context, id domain.GroupID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activate group: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var projectID uuid.UUID
	err = tx.QueryRowContext(ctx,
		`SELECT project_id FROM groups WHERE id = $1`, uuid.UUID(id)).Scan(&projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("find group: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE groups SET is_active = FALSE WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("deactivate groups: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE groups SET is_active = TRUE WHERE id = $1`, uuid.UUID(id)); err != nil {
		return fmt.Errorf("activate group: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit activate group: %w", err)
	}
	return nil
}

func (s *Postgres) ReorderGroup(ctx context.Context, id domain.GroupID, order int, parentID *domain.GroupID, now time.Time) error {
	var res sql.Result
	var err error
	if parentID != nil {
		var parent any
		if !parentID.IsNil() {
			parent = uuid.UUID(*parentID)
		}
		res, err = s.db.ExecContext(ctx,
			`UPDATE groups SET ord = $2, parent_id = $3, updated_at = $4 WHERE id = $1`,
			uuid.UUID(id), order, parent, now)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE groups SET ord = $2, updated_at = $3 WHERE id = $1`,
			uuid.UUID(id), order, now)
	}
	if err != nil {
		return fmt.Errorf("reorder group: %w", err)
	}
	return requireRow(res)
}

func (s *Postgres) DeleteGroup(ctx context.Context, id domain.GroupID) error {
	// chapters cascade
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM groups WHERE id = $1`, uuid.UUID(id)); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}

func (s *Postgres) CreateChapter(ctx context.Context, c *models.Chapter) error {
	var parentID any
	if c.ParentID != nil {
		parentID = uuid.UUID(*c.ParentID)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chapters (id, name, description, group_id, parent_id, ord, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(c.ID), c.Name, c.Description, uuid.UUID(c.GroupID), parentID,
		c.Order, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert chapter: %w", err)
	}
	return nil
}

func (s *Postgres) FindChapter(ctx context.Context, id domain.ChapterID) (*models.Chapter, error) {
	return scanChapter(s.db.QueryRowContext(ctx, `
		SELECT id, name, description, group_id, parent_id, ord, created_at, updated_at
		FROM chapters WHERE id = $1`, uuid.UUID(id)))
}

func (s *Postgres) ListChapters(ctx context.Context, groupID *domain.GroupID) ([]*models.Chapter, error) {
	query := `SELECT id, name, description, group_id, parent_id, ord, created_at, updated_at FROM chapters`
	var args []any
	if groupID != nil {
		query += ` WHERE group_id = $1`
		args = append(args, uuid.UUID(*groupID))
	}
	query += ` ORDER BY ord, created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	defer rows.Close()

	var out []*models.Chapter
	for rows.Next() {
		c, err := scanChapter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Postgres) ReorderChapter(ctx context.Context, id domain.ChapterID, order int, parentID *domain.ChapterID, now time.Time) error {
	var res sql.Result
	var err error
	if parentID != nil {
		var parent any
		if !parentID.IsNil() {
			parent = uuid.UUID(*parentID)
		}
		res, err = s.db.ExecContext(ctx,
			`UPDATE chapters SET ord = $2, parent_id = $3, updated_at = $4 WHERE id = $1`,
			uuid.UUID(id), order, parent, now)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE chapters SET ord = $2, updated_at = $3 WHERE id = $1`,
			uuid.UUID(id), order, now)
	}
	if err != nil {
		return fmt.Errorf("reorder chapter: %w", err)
	}
	return requireRow(res)
}

func (s *Postgres) DeleteChapter(ctx context.Context, id domain.ChapterID) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM chapters WHERE id = $1`, uuid.UUID(id)); err != nil {
		return fmt.Errorf("delete chapter: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (*models.Project, error) {
	var p models.Project
	var id uuid.UUID
	err := row.Scan(&id, &p.Name, &p.Description, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan project: %w", err)
	}
	p.ID = domain.ProjectID(id)
	return &p, nil
}

func scanGroup(row scanner) (*models.Group, error) {
	var g models.Group
	var id, projectID uuid.UUID
	var parentID uuid.NullUUID
	err := row.Scan(&id, &g.Name, &g.Description, &projectID, &parentID,
		&g.Order, &g.IsActive, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan group: %w", err)
	}
	g.ID = domain.GroupID(id)
	g.ProjectID = domain.ProjectID(projectID)
	if parentID.Valid {
		pid := domain.GroupID(parentID.UUID)
		g.ParentID = &pid
	}
	return &g, nil
}

func scanChapter(row scanner) (*models.Chapter, error) {
	var c models.Chapter
	var id, groupID uuid.UUID
	var parentID uuid.NullUUID
	err := row.Scan(&id, &c.Name, &c.Description, &groupID, &parentID,
		&c.Order, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan chapter: %w", err)
	}
	c.ID = domain.ChapterID(id)
	c.GroupID = domain.GroupID(groupID)
	if parentID.Valid {
		pid := domain.ChapterID(parentID.UUID)
		c.ParentID = &pid
	}
	return &c, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
