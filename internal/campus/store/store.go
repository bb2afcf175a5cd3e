package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/campus/internal/campus/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrEmailTaken and ErrUsernameTaken identify which unique index rejected
	// an insert. Both match ErrAlreadyExists with errors.Is.
	ErrEmailTaken    = fmt.Errorf("%w: email", ErrAlreadyExists)
	ErrUsernameTaken = fmt.Errorf("%w: username", ErrAlreadyExists)
)

// Store is the root data access interface implemented by the sqlite and
// postgres drivers. Repositories are reached through accessor methods so a
// Tx hands out the same repos bound to the transaction.
type Store interface {
	Users() Users
	Sessions() Sessions

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller MUST Commit or Rollback.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a transactional store. Nested transactions are not supported.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail expects an already normalized email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)

	// CreateUser inserts a user. A unique violation is reported as
	// ErrEmailTaken or ErrUsernameTaken.
	CreateUser(ctx context.Context, u domain.User) error

	// TouchLastLogin sets last_login and updated_at to at.
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error

	// ListByRole returns active users with the role, ordered by name.
	ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error)

	IsEmpty(ctx context.Context) (bool, error)
}

type Sessions interface {
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSessionByTokenHash returns the session whatever its expiry; callers
	// check Expired.
	GetSessionByTokenHash(ctx context.Context, hash string) (domain.Session, error)

	DeleteSession(ctx context.Context, id string) error
	DeleteUserSessions(ctx context.Context, userID string) error

	// DeleteExpiredSessions removes sessions whose expiry is at or before now
	// and reports how many were removed.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}
