package store

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/ayush/secrets-app/backend/internal/models"
)

// pgxPool is the subset of *pgxpool.Pool the store needs.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore handles credential CRUD against PostgreSQL.
type PostgresStore struct {
	pool pgxPool
}

func NewPostgresStore(pool pgxPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the credentials table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS credentials (
			id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			username      VARCHAR(64)  UNIQUE NOT NULL,
			password_hash VARCHAR(255),
			google_id     VARCHAR(255) UNIQUE,
			secret        TEXT,
			created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			CHECK (password_hash IS NOT NULL OR google_id IS NOT NULL)
		)
	`)
	if err != nil {
		return oops.Code("STORE_MIGRATE_FAILED").With("table", "credentials").Wrap(err)
	}
	return nil
}

const userColumns = `id, username, COALESCE(password_hash, ''), COALESCE(google_id, ''), COALESCE(secret, ''), created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.GoogleID, &u.Secret, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	if !u.Valid() {
		return nil, ErrIncompleteRecord
	}
	created, err := scanUser(s.pool.QueryRow(ctx,
		`INSERT INTO credentials (username, password_hash, google_id)
		 VALUES ($1, $2, $3)
		 RETURNING `+userColumns,
		u.Username, nullIfEmpty(u.PasswordHash), nullIfEmpty(u.GoogleID),
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, oops.Code("STORE_DUPLICATE_USERNAME").
				With("username", u.Username).
				Wrap(ErrUsernameTaken)
		}
		return nil, oops.Code("STORE_INSERT_FAILED").With("operation", "create user").Wrap(err)
	}
	return created, nil
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM credentials WHERE username = $1`, username,
	))
	return u, mapQueryErr(err, "get user by username")
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM credentials WHERE id = $1`, id,
	))
	return u, mapQueryErr(err, "get user by id")
}

// FindOrCreateFederated inserts a federated user or returns the existing
// row for the same google_id in one statement.
func (s *PostgresStore) FindOrCreateFederated(ctx context.Context, googleID, username string) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`INSERT INTO credentials (username, google_id)
		 VALUES ($1, $2)
		 ON CONFLICT (google_id) DO UPDATE SET google_id = EXCLUDED.google_id
		 RETURNING `+userColumns,
		username, googleID,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, oops.Code("STORE_DUPLICATE_USERNAME").
				With("username", username).
				Wrap(ErrUsernameTaken)
		}
		return nil, oops.Code("STORE_UPSERT_FAILED").With("operation", "find or create federated").Wrap(err)
	}
	return u, nil
}

func (s *PostgresStore) SetSecret(ctx context.Context, id, secret string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE credentials SET secret = $2 WHERE id = $1`, id, secret)
	if err != nil {
		if isInvalidText(err) {
			return ErrNotFound
		}
		return oops.Code("STORE_UPDATE_FAILED").With("operation", "set secret").Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListSecrets(ctx context.Context) ([]models.SecretEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT username, secret FROM credentials
		 WHERE secret IS NOT NULL AND secret <> ''
		 ORDER BY created_at`,
	)
	if err != nil {
		return nil, oops.Code("STORE_QUERY_FAILED").With("operation", "list secrets").Wrap(err)
	}
	defer rows.Close()

	out := []models.SecretEntry{}
	for rows.Next() {
		var e models.SecretEntry
		if err := rows.Scan(&e.Username, &e.Secret); err != nil {
			return nil, oops.Code("STORE_QUERY_FAILED").With("operation", "scan secret").Wrap(err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("STORE_QUERY_FAILED").With("operation", "iterate secrets").Wrap(err)
	}
	return out, nil
}

func mapQueryErr(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows), isInvalidText(err):
		return ErrNotFound
	default:
		return oops.Code("STORE_QUERY_FAILED").With("operation", op).Wrap(err)
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// isInvalidText catches malformed uuids, which can never match a row.
func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.InvalidTextRepresentation
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
