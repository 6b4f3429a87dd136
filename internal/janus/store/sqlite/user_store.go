package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/BrandonDHaskell/Janus/server/internal/db"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/store"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

type UserStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewUserStore(db *sql.DB, writer *dbpkg.Worker) *UserStore {
	return &UserStore{db: db, writer: writer}
}

const userColumns = `user_id, name, email, password_hash, role, state, pin_hash,
  created_at_ms, updated_at_ms, decided_at_ms`

func (s *UserStore) CreateUser(ctx context.Context, rec store.UserRecord) error {
	createdMs := msOrNow(rec.CreatedAt)
	updatedMs := createdMs
	if !rec.UpdatedAt.IsZero() {
		updatedMs = rec.UpdatedAt.UTC().UnixMilli()
	}
	var decidedMs any
	if rec.DecidedAt != nil {
		decidedMs = rec.DecidedAt.UTC().UnixMilli()
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO users(`+userColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
			rec.ID, rec.Name, strings.ToLower(strings.TrimSpace(rec.Email)), rec.PasswordHash,
			string(rec.Role), string(rec.State), nullString(rec.PINHash),
			createdMs, updatedMs, decidedMs,
		)
		if isUniqueViolation(err) {
			return store.ErrDuplicateEmail
		}
		if err != nil {
			return fmt.Errorf("CreateUser: %w", err)
		}
		return nil
	})
}

func (s *UserStore) GetUser(ctx context.Context, id string) (store.UserRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = ?;`, id)
	return scanUser(row)
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (store.UserRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?;`,
		strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

func (s *UserStore) ListUsers(ctx context.Context, f store.UserFilter) ([]store.UserRecord, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	var args []any
	if f.State != "" {
		query += ` WHERE state = ?`
		args = append(args, string(f.State))
	}
	query += ` ORDER BY created_at_ms ASC, rowid ASC;`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListUsers: %w", err)
	}
	defer rows.Close()

	var out []store.UserRecord
	for rows.Next() {
		rec, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListUsers rows: %w", err)
	}
	return out, nil
}

// TransitionState is a conditional update; the WHERE on the current state
// is what makes two concurrent decisions on one user mutually exclusive.
func (s *UserStore) TransitionState(ctx context.Context, id string, from, to types.AccountState, at time.Time) error {
	ms := msOrNow(at)
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE users
SET state = ?, updated_at_ms = ?, decided_at_ms = ?
WHERE user_id = ? AND state = ?;
`, string(to), ms, ms, id, string(from))
		if err != nil {
			return fmt.Errorf("TransitionState: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return nil
		}
		return missingOrConflict(ctx, tx, id)
	})
}

func (s *UserStore) UpdatePasswordHash(ctx context.Context, id, hash string, at time.Time) error {
	return s.updateColumn(ctx, "password_hash", id, hash, at)
}

func (s *UserStore) UpdatePINHash(ctx context.Context, id, hash string, at time.Time) error {
	return s.updateColumn(ctx, "pin_hash", id, nullString(hash), at)
}

// column is always a literal from this file.
func (s *UserStore) updateColumn(ctx context.Context, column, id string, value any, at time.Time) error {
	ms := msOrNow(at)
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET `+column+` = ?, updated_at_ms = ? WHERE user_id = ?;`,
			value, ms, id)
		if err != nil {
			return fmt.Errorf("update %s: %w", column, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

func missingOrConflict(ctx context.Context, tx *sql.Tx, id string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE user_id = ?;`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("TransitionState lookup: %w", err)
	}
	return store.ErrStateConflict
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(r rowScanner) (store.UserRecord, error) {
	var (
		rec                  store.UserRecord
		role, state          string
		pinHash              sql.NullString
		createdMs, updatedMs int64
		decidedMs            sql.NullInt64
	)
	err := r.Scan(&rec.ID, &rec.Name, &rec.Email, &rec.PasswordHash, &role, &state, &pinHash,
		&createdMs, &updatedMs, &decidedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return store.UserRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.UserRecord{}, fmt.Errorf("scan user: %w", err)
	}
	rec.Role = types.Role(role)
	rec.State = types.AccountState(state)
	rec.PINHash = pinHash.String
	rec.CreatedAt = fromMs(createdMs)
	rec.UpdatedAt = fromMs(updatedMs)
	rec.DecidedAt = fromNullMs(decidedMs)
	return rec, nil
}
