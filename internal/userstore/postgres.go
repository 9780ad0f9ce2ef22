package userstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrEthical07/sessionauth/identity"
	"github.com/MrEthical07/sessionauth/permission"
)

const uniqueViolation = "23505"

const userColumns = `id, account_id, branch_id, name, email, password_hash, role, status, created_at, updated_at, deleted_at`

// Postgres is the PostgreSQL-backed Repository.
type Postgres struct {
	db     DB
	logger *slog.Logger
}

// NewPostgres wraps db. A nil logger discards.
func NewPostgres(db DB, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Postgres{
		db:     db,
		logger: logger.With("component", "userstore"),
	}
}

// Ping checks database reachability.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

// Close releases the underlying pool.
func (p *Postgres) Close() {
	p.db.Close()
}

// FindByEmail returns the record for email, soft-deleted or not. When a live
// record and deleted ones share the address, the live record wins.
func (p *Postgres) FindByEmail(ctx context.Context, email string) (*identity.Record, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE email = $1
		ORDER BY deleted_at IS NOT NULL, created_at DESC
		LIMIT 1`

	rec, err := scanRecord(p.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return rec, nil
}

// ExistsByEmail reports whether a live record uses email.
func (p *Postgres) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := p.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND deleted_at IS NULL)`,
		email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

// Create inserts an ACTIVE record.
func (p *Postgres) Create(ctx context.Context, u identity.NewUser) (*identity.Record, error) {
	query := `INSERT INTO users (id, account_id, branch_id, name, email, password_hash, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING ` + userColumns

	rec, err := scanRecord(p.db.QueryRow(ctx, query,
		uuid.New(),
		u.AccountID,
		u.BranchID,
		u.Name,
		u.Email,
		u.PasswordHash,
		u.Role.String(),
		identity.StatusActive.String(),
		nowFunc(),
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	p.logger.Debug("user created", "user_id", rec.ID)
	return rec, nil
}

// GetByID returns the record for id, soft-deleted or not.
func (p *Postgres) GetByID(ctx context.Context, id uuid.UUID) (*identity.Record, error) {
	rec, err := scanRecord(p.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return rec, nil
}

// List returns live records matching f, oldest first.
func (p *Postgres) List(ctx context.Context, f Filter) ([]identity.Record, error) {
	var (
		conds = []string{"deleted_at IS NULL"}
		args  []any
	)
	if f.AccountID != nil {
		args = append(args, *f.AccountID)
		conds = append(conds, "account_id = $"+strconv.Itoa(len(args)))
	}
	if f.BranchID != nil {
		args = append(args, *f.BranchID)
		conds = append(conds, "branch_id = $"+strconv.Itoa(len(args)))
	}
	if f.Role != nil {
		args = append(args, f.Role.String())
		conds = append(conds, "role = $"+strconv.Itoa(len(args)))
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY created_at, id`

	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	out := make([]identity.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}
	return out, nil
}

// Update applies p and returns the updated record. An empty patch returns
// the current record.
func (p *Postgres) Update(ctx context.Context, id uuid.UUID, patch Patch) (*identity.Record, error) {
	if patch.Empty() {
		return p.GetByID(ctx, id)
	}

	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}

	switch {
	case patch.ClearBranch:
		sets = append(sets, "branch_id = NULL")
	case patch.BranchID != nil:
		set("branch_id", *patch.BranchID)
	}
	switch {
	case patch.ClearName:
		sets = append(sets, "name = NULL")
	case patch.Name != nil:
		set("name", *patch.Name)
	}
	if patch.Email != nil {
		set("email", *patch.Email)
	}
	if patch.PasswordHash != nil {
		set("password_hash", *patch.PasswordHash)
	}
	if patch.Role != nil {
		set("role", patch.Role.String())
	}
	if patch.Status != nil {
		set("status", patch.Status.String())
	}
	set("updated_at", nowFunc())

	args = append(args, id)
	query := `UPDATE users SET ` + strings.Join(sets, ", ") +
		` WHERE id = $` + strconv.Itoa(len(args)) + ` RETURNING ` + userColumns

	rec, err := scanRecord(p.db.QueryRow(ctx, query, args...))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, ErrNotFound
		case isUniqueViolation(err):
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return rec, nil
}

// UpdatePasswordHash replaces the stored hash. It is used by the login path
// to upgrade hashes made with weaker parameters.
func (p *Postgres) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return p.execOne(ctx, "update password hash",
		`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		hash, nowFunc(), id)
}

// Delete removes the record permanently.
func (p *Postgres) Delete(ctx context.Context, id uuid.UUID) error {
	return p.execOne(ctx, "delete user", `DELETE FROM users WHERE id = $1`, id)
}

// SoftDelete marks the record deleted and INACTIVE. The original deletion
// time is kept on repeat calls.
func (p *Postgres) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return p.execOne(ctx, "soft delete user",
		`UPDATE users SET deleted_at = COALESCE(deleted_at, $1), status = $2, updated_at = $1 WHERE id = $3`,
		nowFunc(), identity.StatusInactive.String(), id)
}

// Restore clears the deletion marker and reactivates the record. It fails
// with ErrDuplicateEmail when a live record took the address meanwhile.
func (p *Postgres) Restore(ctx context.Context, id uuid.UUID) error {
	return p.execOne(ctx, "restore user",
		`UPDATE users SET deleted_at = NULL, status = $1, updated_at = $2 WHERE id = $3`,
		identity.StatusActive.String(), nowFunc(), id)
}

func (p *Postgres) execOne(ctx context.Context, op, query string, args ...any) error {
	tag, err := p.db.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// scanRecord reads one row in userColumns order. UUID columns are scanned as
// text and parsed here.
func scanRecord(row pgx.Row) (*identity.Record, error) {
	var (
		id, accountID, email, role, status string
		branchID, name, hash               *string
		createdAt, updatedAt               time.Time
		deletedAt                          *time.Time
	)
	if err := row.Scan(&id, &accountID, &branchID, &name, &email, &hash, &role, &status,
		&createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}

	rec := &identity.Record{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
		DeletedAt:    deletedAt,
	}

	var err error
	if rec.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid id %q: %w", id, err)
	}
	if rec.AccountID, err = uuid.Parse(accountID); err != nil {
		return nil, fmt.Errorf("invalid account_id %q: %w", accountID, err)
	}
	if branchID != nil {
		branch, err := uuid.Parse(*branchID)
		if err != nil {
			return nil, fmt.Errorf("invalid branch_id %q: %w", *branchID, err)
		}
		rec.BranchID = &branch
	}
	if rec.Role, err = permission.ParseRole(role); err != nil {
		return nil, err
	}
	if rec.Status, err = identity.ParseStatus(status); err != nil {
		return nil, err
	}
	return rec, nil
}
