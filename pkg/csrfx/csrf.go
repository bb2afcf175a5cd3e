// Package csrfx protects HTML form posts with a double-submit scheme: the
// browser holds a random nonce in a cookie and each rendered form carries an
// HS256 token binding that nonce to an expiry.
package csrfx

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aussiebroadwan/campus/pkg/cryptox"
	"github.com/aussiebroadwan/campus/pkg/slogx"
	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultCookieName = "campus_csrf"
	DefaultFieldName  = "csrf_token"
	HeaderName        = "X-CSRF-Token"
)

var (
	ErrMissingToken = errors.New("csrfx: missing token")
	ErrInvalidToken = errors.New("csrfx: invalid token")
)

type claims struct {
	jwt.RegisteredClaims

	Nonce string `json:"nonce"`
}

type Protector struct {
	secret []byte
	ttl    time.Duration

	CookieName string
	FieldName  string
	Secure     bool

	// OnFailure renders the rejection. Defaults to a plain 403.
	OnFailure http.Handler
}

func New(secret []byte, ttl time.Duration) *Protector {
	return &Protector{
		secret:     secret,
		ttl:        ttl,
		CookieName: DefaultCookieName,
		FieldName:  DefaultFieldName,
	}
}

// Issue signs a form token for the given cookie nonce.
func (p *Protector) Issue(nonce string, now time.Time) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
		Nonce: nonce,
	})
	signed, err := tok.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("csrfx: sign: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of token and that it was issued for
// nonce.
func (p *Protector) Verify(token, nonce string) error {
	if token == "" || nonce == "" {
		return ErrMissingToken
	}

	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if subtle.ConstantTimeCompare([]byte(c.Nonce), []byte(nonce)) != 1 {
		return fmt.Errorf("%w: nonce mismatch", ErrInvalidToken)
	}
	return nil
}

// Middleware guarantees a nonce cookie, makes a fresh form token available
// through Token, and rejects unsafe requests whose token does not verify.
func (p *Protector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := slogx.FromContext(r.Context())

		nonce := ""
		if c, err := r.Cookie(p.CookieName); err == nil {
			nonce = c.Value
		}
		hadCookie := nonce != ""

		if !hadCookie {
			nonce = cryptox.MustGenerateToken(cryptox.TokenSize128)
			http.SetCookie(w, &http.Cookie{
				Name:     p.CookieName,
				Value:    nonce,
				Path:     "/",
				MaxAge:   int((365 * 24 * time.Hour).Seconds()),
				HttpOnly: true,
				Secure:   p.Secure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		if !isSafeMethod(r.Method) {
			submitted := r.Header.Get(HeaderName)
			if submitted == "" {
				submitted = r.PostFormValue(p.FieldName)
			}

			err := ErrMissingToken
			if hadCookie {
				err = p.Verify(submitted, nonce)
			}
			if err != nil {
				log.Warn("csrf check failed", "err", err)
				p.fail(w, r)
				return
			}
		}

		token, err := p.Issue(nonce, time.Now())
		if err != nil {
			log.Error("failed to issue csrf token", "err", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, token)))
	})
}

func (p *Protector) fail(w http.ResponseWriter, r *http.Request) {
	if p.OnFailure != nil {
		p.OnFailure.ServeHTTP(w, r)
		return
	}
	http.Error(w, "CSRF verification failed. Request aborted.", http.StatusForbidden)
}

type ctxKey struct{}

// Token returns the form token issued for this request, or "".
func Token(ctx context.Context) string {
	v, _ := ctx.Value(ctxKey{}).(string)
	return v
}

func isSafeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}
