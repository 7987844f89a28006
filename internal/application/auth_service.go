package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// UserStore exposes the account operations the auth service needs.
type UserStore interface {
	CreateUser(ctx context.Context, user User, passwordHash string) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	// GetUserWithHash returns the account and its stored password hash.
	GetUserWithHash(ctx context.Context, email string) (User, string, error)
}

// SessionStore persists refresh-token sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) error
}

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// PasswordHasher derives a storable hash from a password.
type PasswordHasher func(password string) (string, error)

// AuthService coordinates registration, login, and refresh-token rotation.
type AuthService struct {
	users          UserStore
	sessions       SessionStore
	tokens         *TokenIssuer
	hashPassword   PasswordHasher
	verifyPassword PasswordVerifier
	idGenerator    func() string
	tokenGenerator func() string
	now            func() time.Time
	sessionTTL     time.Duration
	logger         *slog.Logger
}

// AuthServiceDeps wires the collaborators for NewAuthService.
type AuthServiceDeps struct {
	Users          UserStore
	Sessions       SessionStore
	Tokens         *TokenIssuer
	HashPassword   PasswordHasher
	VerifyPassword PasswordVerifier
	IDGenerator    func() string
	TokenGenerator func() string
	Now            func() time.Time
	SessionTTL     time.Duration
	Logger         *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(deps AuthServiceDeps) *AuthService {
	if deps.HashPassword == nil {
		deps.HashPassword = HashPassword
	}
	if deps.VerifyPassword == nil {
		deps.VerifyPassword = VerifyPassword
	}
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string { return "" }
	}
	if deps.TokenGenerator == nil {
		deps.TokenGenerator = func() string { return "" }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.SessionTTL <= 0 {
		deps.SessionTTL = 7 * 24 * time.Hour
	}
	return &AuthService{
		users:          deps.Users,
		sessions:       deps.Sessions,
		tokens:         deps.Tokens,
		hashPassword:   deps.HashPassword,
		verifyPassword: deps.VerifyPassword,
		idGenerator:    deps.IDGenerator,
		tokenGenerator: deps.TokenGenerator,
		now:            deps.Now,
		sessionTTL:     deps.SessionTTL,
		logger:         defaultLogger(deps.Logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Register creates an account and immediately issues tokens for it.
func (s *AuthService) Register(ctx context.Context, params RegisterParams) (result AuthResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Register", "email", params.Email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "registration failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "user registered")
	}()

	vErr := &ValidationError{}
	email := strings.TrimSpace(strings.ToLower(params.Email))
	if email == "" {
		vErr.add("email", "email is required")
	} else if _, mailErr := mail.ParseAddress(email); mailErr != nil {
		vErr.add("email", "email is invalid")
	}
	if strings.TrimSpace(params.DisplayName) == "" {
		vErr.add("name", "name is required")
	}
	if len(params.Password) < 8 {
		vErr.add("password", "password must be at least 8 characters")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	hash, err := s.hashPassword(params.Password)
	if err != nil {
		return AuthResult{}, err
	}

	createdAt := s.now().UTC()
	user := User{
		ID:          s.idGenerator(),
		Email:       email,
		DisplayName: strings.TrimSpace(params.DisplayName),
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}

	persisted, err := s.users.CreateUser(ctx, user, hash)
	if err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			err = ErrAlreadyExists
		}
		return AuthResult{}, err
	}

	return s.issueTokens(ctx, persisted)
}

// Login validates credentials and issues a fresh token pair.
func (s *AuthService) Login(ctx context.Context, params LoginParams) (result AuthResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Login", "email", params.Email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "login failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "user logged in")
	}()

	email := strings.TrimSpace(strings.ToLower(params.Email))
	if email == "" || params.Password == "" {
		vErr := &ValidationError{}
		if email == "" {
			vErr.add("email", "email is required")
		}
		if params.Password == "" {
			vErr.add("password", "password is required")
		}
		err = vErr
		return
	}

	user, hash, err := s.users.GetUserWithHash(ctx, email)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return AuthResult{}, err
	}

	if err = s.verifyPassword(hash, params.Password); err != nil {
		return AuthResult{}, err
	}

	return s.issueTokens(ctx, user)
}

// Refresh rotates a refresh token and issues a new access token. The old
// refresh token is revoked; reusing it afterwards fails.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (result AuthResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Refresh")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "session refresh failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "session refreshed")
	}()

	session, err := s.validSession(ctx, refreshToken)
	if err != nil {
		return AuthResult{}, err
	}

	user, err := s.users.GetUser(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrUnauthorized
		}
		return AuthResult{}, err
	}

	if err = s.sessions.RevokeSession(ctx, session.Token, s.now().UTC()); err != nil {
		return AuthResult{}, err
	}

	return s.issueTokens(ctx, user)
}

// Logout revokes the refresh session. Revoking an unknown token is treated
// as success; the caller's goal state already holds.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}

	logger := s.loggerWith(ctx, "Logout")
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	if err := s.sessions.RevokeSession(ctx, refreshToken, s.now().UTC()); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil
		}
		logger.ErrorContext(ctx, "logout failed", "error", err)
		return err
	}
	logger.InfoContext(ctx, "session revoked")
	return nil
}

// VerifyAccessToken resolves a bearer token into a principal for middleware.
func (s *AuthService) VerifyAccessToken(ctx context.Context, token string) (Principal, error) {
	if s == nil || s.tokens == nil {
		return Principal{}, ErrUnauthorized
	}
	return s.tokens.Verify(token)
}

func (s *AuthService) validSession(ctx context.Context, token string) (Session, error) {
	if strings.TrimSpace(token) == "" {
		return Session{}, ErrUnauthorized
	}
	session, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Session{}, ErrUnauthorized
		}
		return Session{}, err
	}
	if session.RevokedAt != nil {
		return Session{}, ErrSessionRevoked
	}
	if !s.now().UTC().Before(session.ExpiresAt) {
		return Session{}, ErrSessionExpired
	}
	return session, nil
}

func (s *AuthService) issueTokens(ctx context.Context, user User) (AuthResult, error) {
	accessToken, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return AuthResult{}, err
	}

	now := s.now().UTC()
	session := Session{
		ID:        s.idGenerator(),
		UserID:    user.ID,
		Token:     s.tokenGenerator(),
		ExpiresAt: now.Add(s.sessionTTL),
		CreatedAt: now,
		UpdatedAt: now,
	}
	persisted, err := s.sessions.CreateSession(ctx, session)
	if err != nil {
		return AuthResult{}, err
	}

	return AuthResult{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: persisted.Token,
		ExpiresAt:    expiresAt,
	}, nil
}
