package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/couchuser/pkg/observability"
	"github.com/platinummonkey/couchuser/pkg/users"
)

// DBTX is the subset of database/sql used by the user queries.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const userColumns = `id, account, name, email, avatar, scopes, extra, created_at, updated_at`

const (
	selectByAccountQuery = `SELECT ` + userColumns + ` FROM users WHERE account = $1`
	selectByIDQuery      = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	insertUserQuery = `INSERT INTO users (account, name, email, avatar, scopes, extra, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (account) DO NOTHING`

	upsertUserQuery = `INSERT INTO users (account, name, email, avatar, scopes, extra, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (account) DO UPDATE SET
			name = excluded.name, email = excluded.email, avatar = excluded.avatar,
			scopes = excluded.scopes, extra = excluded.extra, updated_at = excluded.updated_at`

	updateUserQuery = `UPDATE users
		SET name = $1, email = $2, avatar = $3, scopes = $4, extra = $5, updated_at = $6
		WHERE id = $7`
)

// queries runs the user statements against a DB or a transaction
type queries struct {
	db      DBTX
	metrics *observability.Metrics
}

// FindByAccount returns the row for account, wrapping users.ErrNotFound on a miss
func (q queries) FindByAccount(ctx context.Context, account string) (user *users.User, err error) {
	defer q.record("find_by_account", time.Now(), &err)

	user, err = scanUser(q.db.QueryRowContext(ctx, selectByAccountQuery, account))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", account, users.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// Insert creates the row for account. A concurrent insert of the same account
// is not an error: the existing row is returned.
func (q queries) Insert(ctx context.Context, account string, profile users.Profile) (user *users.User, err error) {
	defer q.record("insert", time.Now(), &err)
	return q.writeAccount(ctx, insertUserQuery, account, profile)
}

// Upsert creates the row for account, or replaces the profile fields of the
// row that already exists. The id and created_at of an existing row are kept.
func (q queries) Upsert(ctx context.Context, account string, profile users.Profile) (user *users.User, err error) {
	defer q.record("upsert", time.Now(), &err)
	return q.writeAccount(ctx, upsertUserQuery, account, profile)
}

func (q queries) writeAccount(ctx context.Context, query, account string, profile users.Profile) (*users.User, error) {
	scopes, extra, err := encodeProfile(profile)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if _, err := q.db.ExecContext(ctx, query,
		account, profile.Name, profile.Email, profile.Avatar, scopes, extra, now, now); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	user, err := scanUser(q.db.QueryRowContext(ctx, selectByAccountQuery, account))
	if err != nil {
		return nil, fmt.Errorf("db error: reading written user: %w", err)
	}
	return user, nil
}

// UpdateByID replaces the profile fields of row id. The account never changes.
func (q queries) UpdateByID(ctx context.Context, id int64, profile users.Profile) (user *users.User, err error) {
	defer q.record("update_by_id", time.Now(), &err)

	scopes, extra, err := encodeProfile(profile)
	if err != nil {
		return nil, err
	}

	res, err := q.db.ExecContext(ctx, updateUserQuery,
		profile.Name, profile.Email, profile.Avatar, scopes, extra, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("user id %d: %w", id, users.ErrNotFound)
	}

	user, err = scanUser(q.db.QueryRowContext(ctx, selectByIDQuery, id))
	if err != nil {
		return nil, fmt.Errorf("db error: reading updated user: %w", err)
	}
	return user, nil
}

func (q queries) record(operation string, start time.Time, err *error) {
	// a miss is an answer, not a storage failure
	if errors.Is(*err, users.ErrNotFound) {
		q.metrics.RecordStorageOperation(operation, start, nil)
		return
	}
	q.metrics.RecordStorageOperation(operation, start, *err)
}

// UserStore is the durable user store
type UserStore struct {
	queries
	db *sql.DB
}

// NewUserStore creates a user store over db. metrics may be nil.
func NewUserStore(db *sql.DB, metrics *observability.Metrics) *UserStore {
	return &UserStore{
		queries: queries{db: db, metrics: metrics},
		db:      db,
	}
}

// Begin starts a durable transaction
func (s *UserStore) Begin(ctx context.Context) (users.StoreTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("db error: begin: %w", err)
	}
	return &UserTx{
		queries: queries{db: tx, metrics: s.metrics},
		tx:      tx,
	}, nil
}

// UserTx runs user writes inside a durable transaction
type UserTx struct {
	queries
	tx *sql.Tx
}

// Commit commits the transaction
func (t *UserTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("db error: commit: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. Rolling back a finished transaction is a no-op.
func (t *UserTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("db error: rollback: %w", err)
	}
	return nil
}

func scanUser(row *sql.Row) (*users.User, error) {
	var (
		u      users.User
		scopes string
		extra  string
	)
	if err := row.Scan(&u.ID, &u.Account, &u.Name, &u.Email, &u.Avatar, &scopes, &extra, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if err := decodeProfile(scopes, extra, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func encodeProfile(p users.Profile) (string, string, error) {
	scopes := p.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	scopesJSON, err := json.Marshal(scopes)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode scopes: %w", err)
	}

	extra := p.Extra
	if extra == nil {
		extra = map[string]interface{}{}
	}
	extraJSON, err := json.Marshal(extra)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode extra attributes: %w", err)
	}

	return string(scopesJSON), string(extraJSON), nil
}

func decodeProfile(scopes, extra string, u *users.User) error {
	if scopes != "" {
		if err := json.Unmarshal([]byte(scopes), &u.Scopes); err != nil {
			return fmt.Errorf("failed to decode scopes: %w", err)
		}
	}
	if extra != "" && extra != "{}" {
		if err := json.Unmarshal([]byte(extra), &u.Extra); err != nil {
			return fmt.Errorf("failed to decode extra attributes: %w", err)
		}
	}
	return nil
}

var (
	_ users.Store   = (*UserStore)(nil)
	_ users.StoreTx = (*UserTx)(nil)
)
