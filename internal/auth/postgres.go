package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"konsult.org/internal/ids"
)

var _ Repository = (*PostgresRepository)(nil)

// PostgresRepository implements Repository over the accounts table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository wraps an open database handle.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `id, email, password_hash, first_name, last_name, role, is_active,
	coalesce(current_refresh_token, ''), last_login_at, created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, account *Account) error {
	if account.ID == "" {
		account.ID = ids.New()
	}
	_, err := r.db.ExecContext(ctx,
		`insert into accounts(id, email, password_hash, first_name, last_name, role, is_active)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		account.ID, account.Email, account.PasswordHash,
		account.FirstName, account.LastName, account.Role, account.IsActive,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*Account, error) {
	row := r.db.QueryRowContext(ctx,
		`select `+accountColumns+` from accounts where id=$1`, id)
	return scanAccount(row)
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	row := r.db.QueryRowContext(ctx,
		`select `+accountColumns+` from accounts where email=$1`, email)
	return scanAccount(row)
}

// Save persists the mutable account fields. The refresh token write is a
// blind overwrite; last write wins.
func (r *PostgresRepository) Save(ctx context.Context, account *Account) error {
	res, err := r.db.ExecContext(ctx,
		`update accounts
		 set password_hash=$2, role=$3, is_active=$4,
		     current_refresh_token=nullif($5, ''), last_login_at=$6, updated_at=now()
		 where id=$1`,
		account.ID, account.PasswordHash, account.Role, account.IsActive,
		account.CurrentRefreshToken, account.LastLoginAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAccount(row *sql.Row) (*Account, error) {
	var (
		account   Account
		lastLogin sql.NullTime
	)
	err := row.Scan(
		&account.ID, &account.Email, &account.PasswordHash,
		&account.FirstName, &account.LastName, &account.Role, &account.IsActive,
		&account.CurrentRefreshToken, &lastLogin, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		account.LastLoginAt = &t
	}
	return &account, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
