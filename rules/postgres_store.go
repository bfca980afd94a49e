package rules

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	ierr "github.com/scau009/dwlite-sub002/internal/errors"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// PostgresStore implements Store backed by PostgreSQL. The schema lives in
// migrations/.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed Store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if ierr.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func dbError(err error, msg string) error {
	return ierr.WithError(err).WithMessage(msg).Mark(ierr.ErrDatabase)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

const ruleColumns = `id, code, name, type, category, expression, condition_expression,
	priority, is_active, is_valid, validation_error, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRule(row scanner) (*Rule, error) {
	var r Rule
	var condition, validationError sql.NullString
	if err := row.Scan(&r.ID, &r.Code, &r.Name, &r.Type, &r.Category, &r.Expression, &condition,
		&r.Priority, &r.Active, &r.Valid, &validationError, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.ConditionExpression = condition.String
	r.ValidationError = validationError.String
	return &r, nil
}

func (s *PostgresStore) AddRule(ctx context.Context, r *Rule) error {
	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO rules (code, name, type, category, expression, condition_expression,
			priority, is_active, is_valid, validation_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		RETURNING id, created_at, updated_at
	`, r.Code, r.Name, r.Type, r.Category, r.Expression, nullString(r.ConditionExpression),
		r.Priority, r.Active, r.Valid, nullString(r.ValidationError), now,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if pqCode(err) == pqUniqueViolation {
			return ierr.NewErrorf("rule with code %s already exists", r.Code).Mark(ierr.ErrAlreadyExists)
		}
		return dbError(err, "failed to insert rule")
	}
	return nil
}

func (s *PostgresStore) GetRule(ctx context.Context, code string) (*Rule, error) {
	r, err := scanRule(s.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM rules WHERE code = $1`, code))
	if err == sql.ErrNoRows {
		return nil, ruleNotFound(code)
	}
	if err != nil {
		return nil, dbError(err, "failed to get rule")
	}
	return r, nil
}

func (s *PostgresStore) ListRules(ctx context.Context, filter RuleFilter) ([]*Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+ruleColumns+`
		FROM rules
		WHERE ($1 = '' OR type = $1)
		  AND ($2 = '' OR category = $2)
		  AND (NOT $3 OR is_active)
		ORDER BY created_at ASC, id ASC
	`, string(filter.Type), string(filter.Category), filter.ActiveOnly)
	if err != nil {
		return nil, dbError(err, "failed to list rules")
	}
	defer rows.Close()

	out := make([]*Rule, 0)
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, dbError(err, "failed to scan rule")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "error iterating rules")
	}
	return out, nil
}

func (s *PostgresStore) UpdateRule(ctx context.Context, r *Rule) error {
	err := s.db.QueryRowContext(ctx, `
		UPDATE rules
		SET name = $1, category = $2, expression = $3, condition_expression = $4, priority = $5,
			is_active = $6, is_valid = $7, validation_error = $8, updated_at = $9
		WHERE code = $10
		RETURNING id, created_at, updated_at
	`, r.Name, r.Category, r.Expression, nullString(r.ConditionExpression), r.Priority,
		r.Active, r.Valid, nullString(r.ValidationError), time.Now().UTC(), r.Code,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return ruleNotFound(r.Code)
	}
	if err != nil {
		return dbError(err, "failed to update rule")
	}
	return nil
}

func (s *PostgresStore) DeleteRule(ctx context.Context, code string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE code = $1`, code)
	if err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			return ierr.NewErrorf("rule %s still has assignments", code).
				WithHint("Remove its assignments or deactivate the rule instead").
				Mark(ierr.ErrInvalidOperation)
		}
		return dbError(err, "failed to delete rule")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return dbError(err, "failed to get rows affected")
	}
	if rowsAffected == 0 {
		return ruleNotFound(code)
	}
	return nil
}

const assignmentColumns = `a.id, r.code, a.scope_type, a.scope_id, a.priority_override,
	a.is_active, a.created_at, a.updated_at`

func scanAssignment(row scanner) (*Assignment, error) {
	var a Assignment
	var override sql.NullInt64
	if err := row.Scan(&a.ID, &a.RuleCode, &a.ScopeType, &a.ScopeID, &override,
		&a.Active, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if override.Valid {
		p := int(override.Int64)
		a.PriorityOverride = &p
	}
	return &a, nil
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func (s *PostgresStore) AddAssignment(ctx context.Context, a *Assignment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO rule_assignments (id, rule_id, scope_type, scope_id, priority_override,
			is_active, created_at, updated_at)
		SELECT $1::uuid, r.id, $3::text, $4::text, $5::integer, $6::boolean, $7::timestamptz, $7::timestamptz
		FROM rules r WHERE r.code = $2
	`, a.ID, a.RuleCode, a.ScopeType, a.ScopeID, nullInt(a.PriorityOverride), a.Active, now)
	if err != nil {
		if pqCode(err) == pqUniqueViolation {
			return ierr.NewErrorf("rule %s is already assigned to %s %s", a.RuleCode, a.ScopeType, a.ScopeID).
				Mark(ierr.ErrAlreadyExists)
		}
		return dbError(err, "failed to insert assignment")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return dbError(err, "failed to get rows affected")
	}
	if rowsAffected == 0 {
		return ruleNotFound(a.RuleCode)
	}
	a.CreatedAt = now
	a.UpdatedAt = now
	return nil
}

func (s *PostgresStore) GetAssignment(ctx context.Context, id string) (*Assignment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, assignmentNotFound(id)
	}
	a, err := scanAssignment(s.db.QueryRowContext(ctx, `
		SELECT `+assignmentColumns+`
		FROM rule_assignments a JOIN rules r ON r.id = a.rule_id
		WHERE a.id = $1
	`, id))
	if err == sql.ErrNoRows {
		return nil, assignmentNotFound(id)
	}
	if err != nil {
		return nil, dbError(err, "failed to get assignment")
	}
	return a, nil
}

func (s *PostgresStore) ListAssignments(ctx context.Context, filter AssignmentFilter) ([]*Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+assignmentColumns+`
		FROM rule_assignments a JOIN rules r ON r.id = a.rule_id
		WHERE ($1 = '' OR r.code = $1)
		  AND ($2 = '' OR a.scope_type = $2)
		  AND ($3 = '' OR a.scope_id = $3)
		ORDER BY a.created_at ASC, a.id ASC
	`, filter.RuleCode, string(filter.ScopeType), filter.ScopeID)
	if err != nil {
		return nil, dbError(err, "failed to list assignments")
	}
	defer rows.Close()

	out := make([]*Assignment, 0)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, dbError(err, "failed to scan assignment")
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "error iterating assignments")
	}
	return out, nil
}

func (s *PostgresStore) UpdateAssignment(ctx context.Context, a *Assignment) error {
	if _, err := uuid.Parse(a.ID); err != nil {
		return assignmentNotFound(a.ID)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE rule_assignments
		SET priority_override = $1, is_active = $2, updated_at = $3
		WHERE id = $4
	`, nullInt(a.PriorityOverride), a.Active, time.Now().UTC(), a.ID)
	if err != nil {
		return dbError(err, "failed to update assignment")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return dbError(err, "failed to get rows affected")
	}
	if rowsAffected == 0 {
		return assignmentNotFound(a.ID)
	}
	updated, err := s.GetAssignment(ctx, a.ID)
	if err != nil {
		return err
	}
	*a = *updated
	return nil
}

func (s *PostgresStore) DeleteAssignment(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return assignmentNotFound(id)
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM rule_assignments WHERE id = $1`, id)
	if err != nil {
		return dbError(err, "failed to delete assignment")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return dbError(err, "failed to get rows affected")
	}
	if rowsAffected == 0 {
		return assignmentNotFound(id)
	}
	return nil
}

func (s *PostgresStore) Candidates(ctx context.Context, scopeType ScopeType, scopeID string, ruleType Type) ([]Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.code, r.name, r.type, r.category, r.expression, r.condition_expression,
			r.priority, r.is_active, r.is_valid, r.validation_error, r.created_at, r.updated_at,
			`+assignmentColumns+`
		FROM rule_assignments a JOIN rules r ON r.id = a.rule_id
		WHERE a.scope_type = $1 AND a.scope_id = $2 AND a.is_active
		  AND r.type = $3 AND r.is_active
	`, string(scopeType), scopeID, string(ruleType))
	if err != nil {
		return nil, dbError(err, "failed to load candidates")
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var r Rule
		var a Assignment
		var condition, validationError sql.NullString
		var override sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Code, &r.Name, &r.Type, &r.Category, &r.Expression, &condition,
			&r.Priority, &r.Active, &r.Valid, &validationError, &r.CreatedAt, &r.UpdatedAt,
			&a.ID, &a.RuleCode, &a.ScopeType, &a.ScopeID, &override, &a.Active, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, dbError(err, "failed to scan candidate")
		}
		r.ConditionExpression = condition.String
		r.ValidationError = validationError.String
		if override.Valid {
			p := int(override.Int64)
			a.PriorityOverride = &p
		}
		out = append(out, Candidate{Rule: &r, Assignment: &a})
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "error iterating candidates")
	}
	return out, nil
}
