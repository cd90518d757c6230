package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/groblegark/kconfig/internal/model"
	"github.com/groblegark/kconfig/internal/store"
)

// configColumns is the column list used for SELECT statements on the configs table.
const configColumns = `id, project_id, name, description, version, value, schema,
	overrides, members, created_at, created_by, updated_at`

// variantColumns is the column list used for SELECT statements on the variants table.
const variantColumns = `id, config_id, environment_id, version, value, schema,
	use_base_schema, overrides, created_at, updated_at`

// proposalColumns is the column list used for SELECT statements on the proposals table.
const proposalColumns = `id, scope, config_id, project_id, variant_id, proposer, message,
	base_version, proposed_delete, proposed_description, proposed_members,
	proposed_value, proposed_schema, remove_schema, proposed_overrides,
	created_at, approved_at, rejected_at, reviewer, rejected_in_favor_of, rejection_reason`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func queryCreateConfig(ctx context.Context, db executor, c *model.Config) error {
	overrides, err := overridesJSON(c.Overrides)
	if err != nil {
		return fmt.Errorf("encode overrides: %w", err)
	}
	members, err := membersJSON(c.Members)
	if err != nil {
		return fmt.Errorf("encode members: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO configs (
			id, project_id, name, description, version, value, schema,
			overrides, members, created_at, created_by, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12
		)`,
		c.ID,
		c.ProjectID,
		c.Name,
		c.Description,
		c.Version,
		jsonbBytes(c.Value),
		jsonbBytes(c.Schema),
		overrides,
		members,
		c.CreatedAt,
		c.CreatedBy,
		c.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("config %q in project %q: %w", c.Name, c.ProjectID, store.ErrDuplicateName)
	}
	return err
}

func queryGetConfig(ctx context.Context, db executor, id string) (*model.Config, error) {
	row := db.QueryRowContext(ctx, `SELECT `+configColumns+` FROM configs WHERE id = $1`, id)
	c, err := scanConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("config %s: %w", id, store.ErrNotFound)
	}
	return c, err
}

func queryGetConfigByName(ctx context.Context, db executor, projectID, name string) (*model.Config, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+configColumns+` FROM configs WHERE project_id = $1 AND name = $2`,
		projectID, name,
	)
	c, err := scanConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("config %s/%s: %w", projectID, name, store.ErrNotFound)
	}
	return c, err
}

func queryListConfigs(ctx context.Context, db executor, filter model.ConfigFilter) ([]*model.Config, int, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.ProjectID != "" {
		whereClauses = append(whereClauses, "project_id = "+nextArg())
		args = append(args, filter.ProjectID)
	}
	if filter.Search != "" {
		p := nextArg()
		whereClauses = append(whereClauses,
			fmt.Sprintf("(name ILIKE '%%' || %s || '%%' OR description ILIKE '%%' || %s || '%%')", p, p))
		args = append(args, filter.Search)
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	// Single query with COUNT(*) OVER() to get total and rows atomically.
	dataQuery := "SELECT COUNT(*) OVER() AS total_count, " + configColumns +
		" FROM configs" + whereSQL + " ORDER BY project_id, name"

	if filter.Limit > 0 {
		dataQuery += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		dataQuery += " OFFSET " + nextArg()
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list configs: %w", err)
	}
	defer rows.Close()

	var configs []*model.Config
	var total int
	for rows.Next() {
		c, t, err := scanConfigWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan configs: %w", err)
		}
		total = t
		configs = append(configs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan configs: %w", err)
	}

	return configs, total, nil
}

// queryUpdateConfig applies a compare-and-swap update: the row is written
// and its version incremented only when the stored version still equals
// expectedVersion. Zero rows updated means either the row is gone
// (ErrNotFound) or another writer won the race (ErrVersionConflict).
func queryUpdateConfig(ctx context.Context, db executor, c *model.Config, expectedVersion int64) error {
	overrides, err := overridesJSON(c.Overrides)
	if err != nil {
		return fmt.Errorf("encode overrides: %w", err)
	}
	members, err := membersJSON(c.Members)
	if err != nil {
		return fmt.Errorf("encode members: %w", err)
	}

	err = db.QueryRowContext(ctx, `
		UPDATE configs SET
			description = $3,
			value = $4,
			schema = $5,
			overrides = $6,
			members = $7,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at`,
		c.ID,
		expectedVersion,
		c.Description,
		jsonbBytes(c.Value),
		jsonbBytes(c.Schema),
		overrides,
		members,
	).Scan(&c.Version, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return versionCheckError(ctx, db, "configs", c.ID)
	}
	return err
}

// versionCheckError distinguishes a missing row from a lost
// compare-and-swap after an UPDATE matched zero rows.
func versionCheckError(ctx context.Context, db executor, table, id string) error {
	var exists bool
	probe := db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, table), id)
	if err := probe.Scan(&exists); err != nil {
		return fmt.Errorf("probe %s %s: %w", table, id, err)
	}
	if !exists {
		return fmt.Errorf("%s %s: %w", strings.TrimSuffix(table, "s"), id, store.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", strings.TrimSuffix(table, "s"), id, store.ErrVersionConflict)
}

func queryDeleteConfig(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM configs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("config %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func queryCreateVariant(ctx context.Context, db executor, v *model.Variant) error {
	overrides, err := overridesJSON(v.Overrides)
	if err != nil {
		return fmt.Errorf("encode overrides: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO variants (
			id, config_id, environment_id, version, value, schema,
			use_base_schema, overrides, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10
		)`,
		v.ID,
		v.ConfigID,
		v.EnvironmentID,
		v.Version,
		jsonbBytes(v.Value),
		jsonbBytes(v.Schema),
		v.UseBaseSchema,
		overrides,
		v.CreatedAt,
		v.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("variant for environment %q: %w", v.EnvironmentID, store.ErrDuplicateName)
	}
	return err
}

func queryGetVariant(ctx context.Context, db executor, id string) (*model.Variant, error) {
	row := db.QueryRowContext(ctx, `SELECT `+variantColumns+` FROM variants WHERE id = $1`, id)
	v, err := scanVariant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("variant %s: %w", id, store.ErrNotFound)
	}
	return v, err
}

func queryGetVariantByEnvironment(ctx context.Context, db executor, configID, environmentID string) (*model.Variant, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+variantColumns+` FROM variants WHERE config_id = $1 AND environment_id = $2`,
		configID, environmentID,
	)
	v, err := scanVariant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("variant %s/%s: %w", configID, environmentID, store.ErrNotFound)
	}
	return v, err
}

func queryListVariants(ctx context.Context, db executor, configID string) ([]*model.Variant, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+variantColumns+` FROM variants WHERE config_id = $1 ORDER BY environment_id`,
		configID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanVariants(rows)
}

func queryUpdateVariant(ctx context.Context, db executor, v *model.Variant, expectedVersion int64) error {
	overrides, err := overridesJSON(v.Overrides)
	if err != nil {
		return fmt.Errorf("encode overrides: %w", err)
	}

	err = db.QueryRowContext(ctx, `
		UPDATE variants SET
			value = $3,
			schema = $4,
			use_base_schema = $5,
			overrides = $6,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at`,
		v.ID,
		expectedVersion,
		jsonbBytes(v.Value),
		jsonbBytes(v.Schema),
		v.UseBaseSchema,
		overrides,
	).Scan(&v.Version, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return versionCheckError(ctx, db, "variants", v.ID)
	}
	return err
}

func queryDeleteVariant(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM variants WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("variant %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func queryCreateProposal(ctx context.Context, db executor, p *model.Proposal) error {
	members, err := membersJSON(p.ProposedMembers)
	if err != nil {
		return fmt.Errorf("encode proposed members: %w", err)
	}
	overrides, err := overridesJSON(p.ProposedOverrides)
	if err != nil {
		return fmt.Errorf("encode proposed overrides: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO proposals (
			id, scope, config_id, project_id, variant_id, proposer, message,
			base_version, proposed_delete, proposed_description, proposed_members,
			proposed_value, proposed_schema, remove_schema, proposed_overrides,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11,
			$12, $13, $14, $15,
			$16
		)`,
		p.ID,
		string(p.Scope),
		p.ConfigID,
		p.ProjectID,
		nullString(p.VariantID),
		p.Proposer,
		p.Message,
		p.BaseVersion,
		p.ProposedDelete,
		nullStringPtr(p.ProposedDescription),
		members,
		jsonbBytes(p.ProposedValue),
		jsonbBytes(p.ProposedSchema),
		p.RemoveSchema,
		overrides,
		p.CreatedAt,
	)
	return err
}

func queryGetProposal(ctx context.Context, db executor, id string) (*model.Proposal, error) {
	row := db.QueryRowContext(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id = $1`, id)
	p, err := scanProposal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("proposal %s: %w", id, store.ErrNotFound)
	}
	return p, err
}

func queryListProposals(ctx context.Context, db executor, filter model.ProposalFilter) ([]*model.Proposal, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.ConfigID != "" {
		whereClauses = append(whereClauses, "config_id = "+nextArg())
		args = append(args, filter.ConfigID)
	}
	if filter.ProjectID != "" {
		whereClauses = append(whereClauses, "project_id = "+nextArg())
		args = append(args, filter.ProjectID)
	}
	if filter.VariantID != "" {
		whereClauses = append(whereClauses, "variant_id = "+nextArg())
		args = append(args, filter.VariantID)
	}
	if filter.Scope != "" {
		whereClauses = append(whereClauses, "scope = "+nextArg())
		args = append(args, string(filter.Scope))
	}
	switch filter.Status {
	case model.ProposalPending:
		whereClauses = append(whereClauses, "approved_at IS NULL AND rejected_at IS NULL")
	case model.ProposalApproved:
		whereClauses = append(whereClauses, "approved_at IS NOT NULL")
	case model.ProposalRejected:
		whereClauses = append(whereClauses, "rejected_at IS NOT NULL")
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	query := `SELECT ` + proposalColumns + ` FROM proposals` + whereSQL + ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + nextArg()
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()
	return scanProposals(rows)
}

func queryListPendingProposals(ctx context.Context, db executor, configID string, scope model.ProposalScope, variantID string) ([]*model.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals
		WHERE config_id = $1 AND approved_at IS NULL AND rejected_at IS NULL`
	args := []any{configID}

	if scope != "" {
		args = append(args, string(scope))
		query += fmt.Sprintf(" AND scope = $%d", len(args))
	}
	if variantID != "" {
		args = append(args, variantID)
		query += fmt.Sprintf(" AND variant_id = $%d", len(args))
	} else if scope == model.ScopeVariant {
		query += " AND variant_id IS NULL"
	}
	query += " ORDER BY created_at ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending proposals: %w", err)
	}
	defer rows.Close()
	return scanProposals(rows)
}

// queryResolveProposal writes the terminal fields of a proposal. The
// pending guard in the WHERE clause makes terminal states absorbing even
// under concurrent resolution attempts.
func queryResolveProposal(ctx context.Context, db executor, id string, res model.Resolution) error {
	var (
		result sql.Result
		err    error
	)
	if res.Approved {
		result, err = db.ExecContext(ctx, `
			UPDATE proposals SET
				approved_at = $2,
				reviewer = $3
			WHERE id = $1 AND approved_at IS NULL AND rejected_at IS NULL`,
			id, res.At, res.Reviewer,
		)
	} else {
		result, err = db.ExecContext(ctx, `
			UPDATE proposals SET
				rejected_at = $2,
				reviewer = $3,
				rejection_reason = $4,
				rejected_in_favor_of = $5
			WHERE id = $1 AND approved_at IS NULL AND rejected_at IS NULL`,
			id, res.At, res.Reviewer, string(res.Reason), nullString(res.RejectedInFavorOf),
		)
	}
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return proposalResolveError(ctx, db, id)
	}
	return nil
}

// proposalResolveError distinguishes a missing proposal from an
// already-terminal one after a resolve matched zero rows.
func proposalResolveError(ctx context.Context, db executor, id string) error {
	var exists bool
	probe := db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM proposals WHERE id = $1)`, id)
	if err := probe.Scan(&exists); err != nil {
		return fmt.Errorf("probe proposal %s: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("proposal %s: %w", id, store.ErrNotFound)
	}
	return fmt.Errorf("proposal %s already resolved: %w", id, store.ErrVersionConflict)
}
