package storage

import (
	"context"
	"errors"
	"fmt"
	"skillduels/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// "23505" is the PostgreSQL error code for unique_violation
const uniqueViolation = "23505"

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresRepo(ctx context.Context, connString string) (*PostgresRepo, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	return &PostgresRepo{pool: pool}, nil
}

func (pgr *PostgresRepo) Close() {
	pgr.pool.Close()
}

func (pgr *PostgresRepo) Ping(ctx context.Context) error {
	return pgr.pool.Ping(ctx)
}

const userColumns = `id, username, password_hash, COALESCE(wallet_address, ''), total_matches, wins, losses, total_earned::float8, created_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.PasswordHash,
		&user.WalletAddress,
		&user.TotalMatches,
		&user.Wins,
		&user.Losses,
		&user.TotalEarned,
		&user.CreatedAt,
	)
	return user, err
}

func wrapQueryError(err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.ErrUserNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
}

func (pgr *PostgresRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	row := pgr.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE username = $1", username)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, wrapQueryError(err)
	}
	return user, nil
}

func (pgr *PostgresRepo) GetUserById(ctx context.Context, id string) (domain.User, error) {
	row := pgr.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		// 22P02: invalid_text_representation, a malformed uuid cannot match anyone
		if errors.As(err, &pgErr) && pgErr.Code == "22P02" {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, wrapQueryError(err)
	}
	return user, nil
}

// CreateUser inserts a user and returns its id. An empty walletAddress is
// stored as NULL so that several users may omit it.
func (pgr *PostgresRepo) CreateUser(ctx context.Context, username, passwordHash, walletAddress string) (string, error) {
	var wallet *string
	if walletAddress != "" {
		wallet = &walletAddress
	}

	row := pgr.pool.QueryRow(ctx,
		"INSERT INTO users(username, password_hash, wallet_address) VALUES($1, $2, $3) RETURNING id",
		username, passwordHash, wallet,
	)

	var id string
	err := row.Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if pgErr.ConstraintName == "users_wallet_address_key" {
				return "", domain.ErrDuplicateWallet
			}
			return "", domain.ErrDuplicateUsername
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}

		return "", fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}

	return id, nil
}
