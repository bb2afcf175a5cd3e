package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/campus/internal/campus/domain"
	"github.com/aussiebroadwan/campus/internal/campus/store"
	"github.com/aussiebroadwan/campus/pkg/cryptox"
	"github.com/aussiebroadwan/campus/pkg/idx"
	"github.com/aussiebroadwan/campus/pkg/slogx"
)

var (
	ErrBootstrapDisabled     = errors.New("bootstrap disabled")
	ErrBootstrapAlready      = errors.New("system already bootstrapped")
	ErrBootstrapUnauthorized = errors.New("unauthorized bootstrap attempt")
)

// BootstrapInput describes the first superuser.
type BootstrapInput struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// BootstrapService creates the first staff superuser while the account
// table is empty.
type BootstrapService struct {
	Store        store.Store
	Token        string
	Registration *RegistrationService
}

func (s *BootstrapService) Enabled() bool { return s.Token != "" }

func (s *BootstrapService) IsBootstrapped(ctx context.Context) (bool, error) {
	empty, err := s.Store.Users().IsEmpty(ctx)
	if err != nil {
		return false, err
	}
	return !empty, nil
}

func (s *BootstrapService) Bootstrap(ctx context.Context, token string, in BootstrapInput) (domain.User, error) {
	l := slogx.FromContext(ctx)

	if !s.Enabled() {
		return domain.User{}, ErrBootstrapDisabled
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.Token)) != 1 {
		l.Warn("unauthorized bootstrap attempt")
		return domain.User{}, ErrBootstrapUnauthorized
	}

	bootstrapped, err := s.IsBootstrapped(ctx)
	if err != nil {
		return domain.User{}, err
	}
	if bootstrapped {
		l.Warn("attempted bootstrap on already-bootstrapped system")
		return domain.User{}, ErrBootstrapAlready
	}

	cand, fe, err := s.Registration.Validate(ctx, SignupInput{
		Username:        in.Username,
		Email:           in.Email,
		Password:        in.Password,
		ConfirmPassword: in.Password,
		FirstName:       in.FirstName,
		LastName:        in.LastName,
	})
	if err != nil {
		return domain.User{}, err
	}
	if !fe.Empty() {
		return domain.User{}, fe
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.Registration.now()
	admin := cand
	admin.ID = idx.NewAt(now).String()
	admin.PasswordHash = hash
	admin.IsStaff = true
	admin.IsSuperuser = true
	admin.CreatedAt = now
	admin.UpdatedAt = now

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		empty, err := tx.Users().IsEmpty(ctx)
		if err != nil {
			return err
		}
		if !empty {
			return ErrBootstrapAlready
		}
		return tx.Users().CreateUser(ctx, admin)
	})
	if err != nil {
		if fe := raceFieldErrors(err); fe != nil {
			return domain.User{}, ErrBootstrapAlready
		}
		return domain.User{}, err
	}

	l.Info("successfully bootstrapped system", slog.String("admin_user_id", admin.ID))
	return admin, nil
}
