package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"registrar/internal/accounts/models"
	id "registrar/pkg/domain"
	"registrar/pkg/platform/sentinel"
	txcontext "registrar/pkg/platform/tx"
)

const uniqueViolation = "23505"

// Unique index names from the schema, used to tell which value collided.
const (
	usernameIndex = "accounts_username_lower_idx"
	emailIndex    = "accounts_email_lower_idx"
)

// PostgresStore persists accounts in PostgreSQL. Queries join the
// transaction carried by ctx when there is one.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const accountColumns = `id, username, email, password_hash, is_superuser, is_active, date_joined, updated_at`

func (s *PostgresStore) Create(ctx context.Context, account *models.Account) error {
	query := `INSERT INTO accounts (` + accountColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(account.ID),
		account.Username,
		account.Email,
		account.PasswordHash,
		account.IsSuperuser,
		account.IsActive,
		account.DateJoined,
		account.UpdatedAt,
	)
	if err != nil {
		return translateInsertError(err)
	}
	return nil
}

func translateInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case usernameIndex:
			return models.ErrUsernameTaken
		case emailIndex:
			return models.ErrEmailTaken
		default:
			return sentinel.ErrAlreadyUsed
		}
	}
	return fmt.Errorf("insert account: %w", err)
}

func (s *PostgresStore) Update(ctx context.Context, account *models.Account) error {
	query := `
		UPDATE accounts
		SET password_hash = $2, is_superuser = $3, is_active = $4, updated_at = $5
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(account.ID),
		account.PasswordHash,
		account.IsSuperuser,
		account.IsActive,
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return s.findOne(ctx, query, uuid.UUID(userID))
}

func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(username) = LOWER($1)`
	return s.findOne(ctx, query, username)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, address string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(email) = LOWER($1)`
	return s.findOne(ctx, query, address)
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg any) (*models.Account, error) {
	account, err := scanAccount(s.execer(ctx).QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return account, nil
}

func (s *PostgresStore) CountSuperusers(ctx context.Context) (int, error) {
	var count int
	err := s.execer(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE is_superuser`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count superusers: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY date_joined ASC, username ASC`
	rows, err := s.execer(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		a   models.Account
		uid uuid.UUID
	)
	if err := row.Scan(&uid, &a.Username, &a.Email, &a.PasswordHash,
		&a.IsSuperuser, &a.IsActive, &a.DateJoined, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.ID = id.UserID(uid)
	return &a, nil
}
