package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"reqtrace/internal/requirement/models"
	"reqtrace/pkg/domain"
	"reqtrace/pkg/platform/sentinel"
)

// Postgres persists requirements in PostgreSQL. Edges live in the
// requirement_edges table, one row per directed edge, so the symmetry
// invariant is structural rather than maintained.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const requirementColumns = `id, req_id, title, body, status, verification_methods,
	project_id, group_id, chapter_id, created_at, updated_at, created_by, updated_by`

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Postgres) Create(ctx context.Context, r *models.Requirement, entry *models.ChangeLogEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var chapterID any
	if r.ChapterID != nil {
		chapterID = uuid.UUID(*r.ChapterID)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO requirements (id, req_id, title, body, status, verification_methods,
			project_id, group_id, chapter_id, created_at, updated_at, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		uuid.UUID(r.ID), r.ReqID, r.Title, r.Text, string(r.Status),
		strings.Join(r.VerificationMethodStrings(), "|"),
		uuid.UUID(r.ProjectID), uuid.UUID(r.GroupID), chapterID,
		r.CreatedAt, r.UpdatedAt, r.CreatedBy, r.UpdatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert requirement: %w", err)
	}
	if entry != nil {
		if err := insertChange(ctx, tx, entry); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.RequirementID) (*models.Requirement, error) {
	r, err := findRequirement(ctx, s.db, id, false)
	if err != nil {
		return nil, err
	}
	if err := loadEdges(ctx, s.db, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Postgres) List(ctx context.Context, f Filter) ([]*models.Requirement, error) {
	query := `SELECT ` + requirementColumns + ` FROM requirements`
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.ProjectID != nil {
		conds = append(conds, "project_id = "+arg(uuid.UUID(*f.ProjectID)))
	}
	if f.GroupID != nil {
		conds = append(conds, "group_id = "+arg(uuid.UUID(*f.GroupID)))
	}
	if f.ChapterID != nil {
		conds = append(conds, "chapter_id = "+arg(uuid.UUID(*f.ChapterID)))
	}
	if f.Status != nil {
		conds = append(conds, "status = "+arg(string(*f.Status)))
	}
	if f.Query != "" {
		pattern := "%" + escapeLike(f.Query) + "%"
		p := arg(pattern)
		conds = append(conds, fmt.Sprintf("(title ILIKE %s OR body ILIKE %s OR req_id ILIKE %s)", p, p, p))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at, req_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requirements: %w", err)
	}
	defer rows.Close()

	var out []*models.Requirement
	for rows.Next() {
		r, err := scanRequirement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list requirements: %w", err)
	}
	for _, r := range out {
		if err := loadEdges(ctx, s.db, r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Postgres) CountByProject(ctx context.Context, projectID domain.ProjectID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM requirements WHERE project_id = $1`, uuid.UUID(projectID),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count requirements: %w", err)
	}
	return count, nil
}

func (s *Postgres) Execute(ctx context.Context, id domain.RequirementID, validate func(*models.Requirement) error, mutate func(*models.Requirement)) (*models.Requirement, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin execute: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	r, err := findRequirement(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	if err := loadEdges(ctx, tx, r); err != nil {
		return nil, err
	}
	if validate != nil {
		if err := validate(r.Clone()); err != nil {
			return nil, err
		}
	}
	if mutate != nil {
		mutate(r)
	}

	var chapterID any
	if r.ChapterID != nil {
		chapterID = uuid.UUID(*r.ChapterID)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE requirements
		SET title = $2, body = $3, status = $4, verification_methods = $5,
			group_id = $6, chapter_id = $7, updated_at = $8, updated_by = $9
		WHERE id = $1`,
		uuid.UUID(r.ID), r.Title, r.Text, string(r.Status),
		strings.Join(r.VerificationMethodStrings(), "|"),
		uuid.UUID(r.GroupID), chapterID, r.UpdatedAt, r.UpdatedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("update requirement: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit execute: %w", err)
	}
	return r, nil
}

func (s *Postgres) Delete(ctx context.Context, id domain.RequirementID) (*models.Requirement, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	r, err := findRequirement(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	if err := loadEdges(ctx, tx, r); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM requirement_edges WHERE parent_id = $1 OR child_id = $1`, uuid.UUID(id),
	); err != nil {
		return nil, fmt.Errorf("delete edges: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM requirements WHERE id = $1`, uuid.UUID(id),
	); err != nil {
		return nil, fmt.Errorf("delete requirement: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete: %w", err)
	}
	return r, nil
}

func (s *Postgres) LinkPair(ctx context.Context, parentID, childID domain.RequirementID, now time.Time, entries []*models.ChangeLogEntry) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin link: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockPair(ctx, tx, parentID, childID); err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO requirement_edges (parent_id, child_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (parent_id, child_id) DO NOTHING`,
		uuid.UUID(parentID), uuid.UUID(childID), now,
	)
	if err != nil {
		return false, fmt.Errorf("insert edge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert edge: %w", err)
	}
	if n == 0 {
		return false, tx.Commit()
	}
	for _, entry := range entries {
		if err := insertChange(ctx, tx, entry); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit link: %w", err)
	}
	return true, nil
}

func (s *Postgres) UnlinkPair(ctx context.Context, parentID, childID domain.RequirementID, entries []*models.ChangeLogEntry) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin unlink: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockPair(ctx, tx, parentID, childID); err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM requirement_edges WHERE parent_id = $1 AND child_id = $2`,
		uuid.UUID(parentID), uuid.UUID(childID),
	)
	if err != nil {
		return false, fmt.Errorf("delete edge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete edge: %w", err)
	}
	if n == 0 {
		return false, tx.Commit()
	}
	for _, entry := range entries {
		if err := insertChange(ctx, tx, entry); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit unlink: %w", err)
	}
	return true, nil
}

func (s *Postgres) AppendChange(ctx context.Context, entry *models.ChangeLogEntry) error {
	return insertChange(ctx, s.db, entry)
}

func (s *Postgres) ListChanges(ctx context.Context, id domain.RequirementID) ([]*models.ChangeLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, requirement_id, change_type, field_name, old_value, new_value,
			description, changed_by, created_at
		FROM requirement_changes WHERE requirement_id = $1 ORDER BY seq`,
		uuid.UUID(id),
	)
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	defer rows.Close()

	var out []*models.ChangeLogEntry
	for rows.Next() {
		var e models.ChangeLogEntry
		var entryID, reqID uuid.UUID
		var changeType string
		if err := rows.Scan(&entryID, &reqID, &changeType, &e.FieldName, &e.OldValue,
			&e.NewValue, &e.Description, &e.ChangedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		e.ID = entryID
		e.RequirementID = domain.RequirementID(reqID)
		e.Type = models.ChangeType(changeType)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	return out, nil
}

// lockPair takes FOR UPDATE locks on both endpoints in id order so two
// concurrent edge mutations on the same pair cannot deadlock. Fails with
// ErrNotFound when either endpoint is missing.
func lockPair(ctx context.Context, q queryer, a, b domain.RequirementID) error {
	rows, err := q.QueryContext(ctx,
		`SELECT id FROM requirements WHERE id = ANY($1) ORDER BY id FOR UPDATE`,
		[]uuid.UUID{uuid.UUID(a), uuid.UUID(b)},
	)
	if err != nil {
		return fmt.Errorf("lock pair: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("lock pair: %w", err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("lock pair: %w", err)
	}
	if count != 2 {
		return sentinel.ErrNotFound
	}
	return nil
}

func findRequirement(ctx context.Context, q queryer, id domain.RequirementID, forUpdate bool) (*models.Requirement, error) {
	query := `SELECT ` + requirementColumns + ` FROM requirements WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}
	row := q.QueryRowContext(ctx, query, uuid.UUID(id))
	r, err := scanRequirement(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequirement(row scanner) (*models.Requirement, error) {
	var r models.Requirement
	var id, projectID, groupID uuid.UUID
	var chapterID uuid.NullUUID
	var status, methods string
	err := row.Scan(&id, &r.ReqID, &r.Title, &r.Text, &status, &methods,
		&projectID, &groupID, &chapterID, &r.CreatedAt, &r.UpdatedAt,
		&r.CreatedBy, &r.UpdatedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan requirement: %w", err)
	}
	r.ID = domain.RequirementID(id)
	r.ProjectID = domain.ProjectID(projectID)
	r.GroupID = domain.GroupID(groupID)
	if chapterID.Valid {
		ch := domain.ChapterID(chapterID.UUID)
		r.ChapterID = &ch
	}
	r.Status = models.Status(status)
	r.VerificationMethods = models.NormalizeVerificationMethods(strings.Split(methods, "|"))
	r.ParentIDs = []domain.RequirementID{}
	r.ChildIDs = []domain.RequirementID{}
	return &r, nil
}

func loadEdges(ctx context.Context, q queryer, r *models.Requirement) error {
	rows, err := q.QueryContext(ctx, `
		SELECT parent_id, child_id FROM requirement_edges
		WHERE parent_id = $1 OR child_id = $1
		ORDER BY created_at`,
		uuid.UUID(r.ID),
	)
	if err != nil {
		return fmt.Errorf("load edges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var parentID, childID uuid.UUID
		if err := rows.Scan(&parentID, &childID); err != nil {
			return fmt.Errorf("scan edge: %w", err)
		}
		if domain.RequirementID(parentID) == r.ID {
			r.ChildIDs = append(r.ChildIDs, domain.RequirementID(childID))
		} else {
			r.ParentIDs = append(r.ParentIDs, domain.RequirementID(parentID))
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load edges: %w", err)
	}
	return nil
}

func insertChange(ctx context.Context, q queryer, e *models.ChangeLogEntry) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO requirement_changes (id, requirement_id, change_type, field_name,
			old_value, new_value, description, changed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, uuid.UUID(e.RequirementID), string(e.Type), e.FieldName,
		e.OldValue, e.NewValue, e.Description, e.ChangedBy, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert change: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
