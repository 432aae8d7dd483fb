package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ssfarm/internal/core"
	applog "ssfarm/internal/log"
	"ssfarm/internal/ports"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleAdmin = "admin"
	issuer    = "ssfarm"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Claims carried in the session cookie.
type Claims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

// Session identifies the signed-in admin.
type Session struct {
	Email     string
	Role      string
	ExpiresAt time.Time
}

// Service authenticates admins against the store and issues session tokens.
type Service struct {
	admins ports.AdminStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	logger *applog.Logger
}

func NewService(admins ports.AdminStore, secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Service{
		admins: admins,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
		logger: applog.ForComponent(applog.ComponentAuth),
	}
}

// Login checks the password and returns a signed token. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (string, Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", Session{}, ErrInvalidCredentials
	}
	u, err := s.admins.GetAdminByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			s.logger.WarnContext(ctx, "Login for unknown admin", "email", email)
			return "", Session{}, ErrInvalidCredentials
		}
		return "", Session{}, fmt.Errorf("get admin: %w", err)
	}
	if !CheckPassword(u.PasswordHash, password) {
		s.logger.WarnContext(ctx, "Login with wrong password", "email", email)
		return "", Session{}, ErrInvalidCredentials
	}

	sess := Session{Email: u.Email, Role: RoleAdmin, ExpiresAt: s.now().UTC().Add(s.ttl)}
	token, err := s.sign(sess)
	if err != nil {
		return "", Session{}, fmt.Errorf("sign token: %w", err)
	}
	s.logger.InfoContext(ctx, "Admin signed in", "email", u.Email)
	return token, sess, nil
}

func (s *Service) sign(sess Session) (string, error) {
	now := s.now().UTC()
	claims := Claims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   sess.Email,
			Issuer:    issuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(sess.ExpiresAt),
		},
		Role: sess.Role,
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify parses a session token.
func (s *Service) Verify(token string) (Session, error) {
	claims := &Claims{}
	parsed, err := jwtlib.ParseWithClaims(token, claims, func(*jwtlib.Token) (any, error) {
		return s.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(issuer),
		jwtlib.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return Session{}, ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" || claims.Role != RoleAdmin {
		return Session{}, ErrInvalidToken
	}
	return Session{Email: sub, Role: claims.Role, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// EnsureAdmin creates or updates the configured admin account.
func EnsureAdmin(ctx context.Context, admins ports.AdminStore, email, passwordHash string) error {
	email = normalizeEmail(email)
	if email == "" || passwordHash == "" {
		return nil
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return fmt.Errorf("admin password hash: %w", err)
	}

	u := core.AdminUser{ID: uuid.NewString(), Email: email, PasswordHash: passwordHash, CreatedAt: time.Now().UTC()}
	existing, err := admins.GetAdminByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.PasswordHash == passwordHash {
			return nil
		}
		u.ID, u.CreatedAt = existing.ID, existing.CreatedAt
	case !errors.Is(err, ports.ErrNotFound):
		return fmt.Errorf("get admin: %w", err)
	}
	if err := admins.UpsertAdmin(ctx, u); err != nil {
		return fmt.Errorf("upsert admin: %w", err)
	}
	applog.ForComponent(applog.ComponentAuth).InfoContext(ctx, "Admin account ensured", "email", email)
	return nil
}

func HashPassword(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", errors.New("empty password")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func CheckPassword(hash, password string) bool {
	if hash == "" || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
