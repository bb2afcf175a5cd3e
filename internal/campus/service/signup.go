package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aussiebroadwan/campus/internal/campus/domain"
	"github.com/aussiebroadwan/campus/internal/campus/store"
	"github.com/aussiebroadwan/campus/pkg/cryptox"
	"github.com/aussiebroadwan/campus/pkg/idx"
	"github.com/aussiebroadwan/campus/pkg/passwordx"
	"github.com/aussiebroadwan/campus/pkg/slogx"
)

const (
	UsernameMinLength = 3
	UsernameMaxLength = 30
	NameMaxLength     = 30
	EmailMaxLength    = 254
)

// Validation messages shown next to form fields.
const (
	MsgRequired         = "This field is required."
	MsgUsernameTooShort = "Username must be at least 3 characters long."
	MsgUsernameCharset  = "Username can only contain letters, numbers, and underscores."
	MsgUsernameTaken    = "This username is already taken."
	MsgEmailInvalid     = "Enter a valid email address."
	MsgEmailTaken       = "This email is already registered."
	MsgPasswordMismatch = "Passwords do not match."
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// SignupInput is the raw registration submission.
type SignupInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
	Role            string
	FirstName       string
	LastName        string
}

type RegistrationService struct {
	Store    store.Store
	Policy   passwordx.Policy
	Sessions *SessionService
	Now      func() time.Time
}

func (s *RegistrationService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *RegistrationService) policy() passwordx.Policy {
	if s.Policy == nil {
		return passwordx.Default()
	}
	return s.Policy
}

// Validate checks in against the field rules and the store. It returns the
// normalized candidate user (without a password hash) and every field error
// found. A non-nil error means the store could not be consulted.
func (s *RegistrationService) Validate(ctx context.Context, in SignupInput) (domain.User, domain.FieldErrors, error) {
	fe := domain.FieldErrors{}

	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	firstName := strings.TrimSpace(in.FirstName)
	lastName := strings.TrimSpace(in.LastName)

	cand := domain.User{
		Email:     domain.NormalizeEmail(email),
		Username:  domain.NormalizeUsername(username),
		FirstName: firstName,
		LastName:  lastName,
		IsActive:  true,
	}

	if msg := checkUsernameShape(username); msg != "" {
		fe.Add(domain.FieldUsername, msg)
	} else {
		taken, err := s.Store.Users().UsernameExists(ctx, cand.Username)
		if err != nil {
			return domain.User{}, nil, fmt.Errorf("check username: %w", err)
		}
		if taken {
			fe.Add(domain.FieldUsername, MsgUsernameTaken)
		}
	}

	if msg := checkEmailShape(email); msg != "" {
		fe.Add(domain.FieldEmail, msg)
	} else {
		taken, err := s.Store.Users().EmailExists(ctx, cand.Email)
		if err != nil {
			return domain.User{}, nil, fmt.Errorf("check email: %w", err)
		}
		if taken {
			fe.Add(domain.FieldEmail, MsgEmailTaken)
		}
	}

	if n := utf8.RuneCountInString(firstName); n > NameMaxLength {
		fe.Add(domain.FieldFirstName, maxLengthMessage(NameMaxLength, n))
	}
	if n := utf8.RuneCountInString(lastName); n > NameMaxLength {
		fe.Add(domain.FieldLastName, maxLengthMessage(NameMaxLength, n))
	}

	passwordOK := false
	if in.Password == "" {
		fe.Add(domain.FieldPassword, MsgRequired)
	} else {
		violations := s.policy().Validate(in.Password, passwordx.Attributes{
			Username:  username,
			FirstName: firstName,
			LastName:  lastName,
			Email:     email,
		})
		for _, msg := range passwordx.Messages(violations) {
			fe.Add(domain.FieldPassword, msg)
		}
		passwordOK = len(violations) == 0
	}

	switch {
	case in.ConfirmPassword == "":
		fe.Add(domain.FieldConfirmPassword, MsgRequired)
	case passwordOK && in.Password != in.ConfirmPassword:
		fe.Add(domain.FieldConfirmPassword, MsgPasswordMismatch)
	}

	role, err := domain.ParseRole(in.Role)
	if err != nil {
		fe.Add(domain.FieldRole, fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", strings.TrimSpace(in.Role)))
	}
	cand.Role = role

	return cand, fe, nil
}

func checkUsernameShape(username string) string {
	n := utf8.RuneCountInString(username)
	switch {
	case n == 0:
		return MsgRequired
	case n > UsernameMaxLength:
		return maxLengthMessage(UsernameMaxLength, n)
	case n < UsernameMinLength:
		return MsgUsernameTooShort
	case !usernamePattern.MatchString(username):
		return MsgUsernameCharset
	}
	return ""
}

func checkEmailShape(email string) string {
	n := utf8.RuneCountInString(email)
	switch {
	case n == 0:
		return MsgRequired
	case n > EmailMaxLength:
		return maxLengthMessage(EmailMaxLength, n)
	case !validEmail(email):
		return MsgEmailInvalid
	}
	return ""
}

// validEmail accepts a bare address whose domain has a dot or is localhost.
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return false
	}
	host := email[at+1:]
	if host == "localhost" {
		return true
	}
	return strings.Contains(host, ".") && !strings.HasPrefix(host, ".") && !strings.HasSuffix(host, ".")
}

func maxLengthMessage(limit, got int) string {
	return fmt.Sprintf("Ensure this value has at most %d characters (it has %d).", limit, got)
}

// Register validates in, stores the new user and opens a session for it in a
// single transaction. Validation failures are returned as domain.FieldErrors;
// nothing is written in that case.
func (s *RegistrationService) Register(ctx context.Context, in SignupInput) (domain.User, IssuedSession, error) {
	l := slogx.FromContext(ctx)

	cand, fe, err := s.Validate(ctx, in)
	if err != nil {
		return domain.User{}, IssuedSession{}, err
	}
	if !fe.Empty() {
		return domain.User{}, IssuedSession{}, fe
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, IssuedSession{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := cand
	user.ID = idx.NewAt(now).String()
	user.PasswordHash = hash
	user.LastLogin = &now
	user.CreatedAt = now
	user.UpdatedAt = now

	var issued IssuedSession
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, user); err != nil {
			return err
		}
		var openErr error
		issued, openErr = s.Sessions.open(ctx, tx.Sessions(), user.ID, now)
		return openErr
	})
	if err != nil {
		if fe := raceFieldErrors(err); fe != nil {
			l.Info("signup lost uniqueness race", slog.String("email", user.Email), slog.String("username", user.Username))
			return domain.User{}, IssuedSession{}, fe
		}
		return domain.User{}, IssuedSession{}, fmt.Errorf("create user: %w", err)
	}

	l.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return user, issued, nil
}

// raceFieldErrors maps a unique violation from the insert back to the field
// error the pre-check reports.
func raceFieldErrors(err error) domain.FieldErrors {
	switch {
	case errors.Is(err, store.ErrEmailTaken):
		return domain.FieldErrors{domain.FieldEmail: {MsgEmailTaken}}
	case errors.Is(err, store.ErrUsernameTaken):
		return domain.FieldErrors{domain.FieldUsername: {MsgUsernameTaken}}
	}
	return nil
}
