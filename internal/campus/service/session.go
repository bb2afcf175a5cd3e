package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/campus/internal/campus/domain"
	"github.com/aussiebroadwan/campus/internal/campus/store"
	"github.com/aussiebroadwan/campus/pkg/cryptox"
	"github.com/aussiebroadwan/campus/pkg/idx"
	"github.com/aussiebroadwan/campus/pkg/slogx"
)

// DefaultSessionTTL is two weeks.
const DefaultSessionTTL = 14 * 24 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoSession          = errors.New("no active session")
)

// IssuedSession carries the raw cookie token alongside the stored record.
// The token is never persisted.
type IssuedSession struct {
	Token   string
	Session domain.Session
}

type SessionService struct {
	Store store.Store
	TTL   time.Duration
	Now   func() time.Time
}

func (s *SessionService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *SessionService) ttl() time.Duration {
	if s.TTL <= 0 {
		return DefaultSessionTTL
	}
	return s.TTL
}

// open mints a token and stores its session through repo, which may be
// bound to a transaction.
func (s *SessionService) open(ctx context.Context, repo store.Sessions, userID string, now time.Time) (IssuedSession, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return IssuedSession{}, fmt.Errorf("generate session token: %w", err)
	}

	sess := domain.Session{
		ID:        idx.NewAt(now).String(),
		TokenHash: cryptox.FingerprintToken(token),
		UserID:    userID,
		ExpiresAt: now.Add(s.ttl()),
		CreatedAt: now,
	}
	if err := repo.CreateSession(ctx, sess); err != nil {
		return IssuedSession{}, fmt.Errorf("create session: %w", err)
	}
	return IssuedSession{Token: token, Session: sess}, nil
}

// Login checks email and password and opens a new session. Any session the
// client already presented is destroyed first. Every failure mode returns
// ErrInvalidCredentials.
func (s *SessionService) Login(ctx context.Context, email, password, presented string) (domain.User, IssuedSession, error) {
	l := slogx.FromContext(ctx)
	email = domain.NormalizeEmail(email)

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		cryptox.BurnVerify(password)
		l.Info("login failed", slog.String("reason", "unknown_email"))
		return domain.User{}, IssuedSession{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, IssuedSession{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			l.Error("stored password hash unusable", slog.String("user_id", user.ID), slog.Any("error", err))
		}
		l.Info("login failed", slog.String("reason", "bad_password"), slog.String("user_id", user.ID))
		return domain.User{}, IssuedSession{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		l.Info("login failed", slog.String("reason", "inactive"), slog.String("user_id", user.ID))
		return domain.User{}, IssuedSession{}, ErrInvalidCredentials
	}

	now := s.now()
	var issued IssuedSession
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if presented != "" {
			if err := deleteByToken(ctx, tx.Sessions(), presented); err != nil {
				return err
			}
		}
		if err := tx.Users().TouchLastLogin(ctx, user.ID, now); err != nil {
			return fmt.Errorf("touch last login: %w", err)
		}
		var openErr error
		issued, openErr = s.open(ctx, tx.Sessions(), user.ID, now)
		return openErr
	})
	if err != nil {
		return domain.User{}, IssuedSession{}, err
	}

	user.LastLogin = &now
	user.UpdatedAt = now
	l.Info("user logged in", slog.String("user_id", user.ID), slog.String("session_id", issued.Session.ID))
	return user, issued, nil
}

// Logout destroys the session identified by token. Unknown tokens are
// ignored.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return deleteByToken(ctx, s.Store.Sessions(), token)
}

func deleteByToken(ctx context.Context, repo store.Sessions, token string) error {
	sess, err := repo.GetSessionByTokenHash(ctx, cryptox.FingerprintToken(token))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup session: %w", err)
	}
	if err := repo.DeleteSession(ctx, sess.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	slogx.FromContext(ctx).Info("session destroyed", slog.String("session_id", sess.ID), slog.String("user_id", sess.UserID))
	return nil
}

// Resolve returns the user behind token when its session is unexpired and
// the user is active. Otherwise it returns ErrNoSession.
func (s *SessionService) Resolve(ctx context.Context, token string) (domain.User, domain.Session, error) {
	if token == "" {
		return domain.User{}, domain.Session{}, ErrNoSession
	}

	sess, err := s.Store.Sessions().GetSessionByTokenHash(ctx, cryptox.FingerprintToken(token))
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, domain.Session{}, ErrNoSession
	}
	if err != nil {
		return domain.User{}, domain.Session{}, fmt.Errorf("lookup session: %w", err)
	}

	if sess.Expired(s.now()) {
		if err := s.Store.Sessions().DeleteSession(ctx, sess.ID); err != nil {
			slogx.FromContext(ctx).Warn("failed to delete expired session", slog.String("session_id", sess.ID), slog.Any("error", err))
		}
		return domain.User{}, domain.Session{}, ErrNoSession
	}

	user, err := s.Store.Users().GetUserByID(ctx, sess.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, domain.Session{}, ErrNoSession
	}
	if err != nil {
		return domain.User{}, domain.Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if !user.IsActive {
		return domain.User{}, domain.Session{}, ErrNoSession
	}
	return user, sess, nil
}
