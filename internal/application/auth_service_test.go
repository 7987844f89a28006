package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

type userStoreStub struct {
	users  map[string]User
	hashes map[string]string

	createErr error
}

func newUserStoreStub() *userStoreStub {
	return &userStoreStub{
		users:  make(map[string]User),
		hashes: make(map[string]string),
	}
}

func (s *userStoreStub) CreateUser(ctx context.Context, user User, passwordHash string) (User, error) {
	if s.createErr != nil {
		return User{}, s.createErr
	}
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return User{}, persistence.ErrDuplicate
		}
	}
	s.users[user.ID] = user
	s.hashes[user.Email] = passwordHash
	return user, nil
}

func (s *userStoreStub) GetUser(ctx context.Context, id string) (User, error) {
	user, ok := s.users[id]
	if !ok {
		return User{}, persistence.ErrNotFound
	}
	return user, nil
}

func (s *userStoreStub) GetUserWithHash(ctx context.Context, email string) (User, string, error) {
	for _, user := range s.users {
		if user.Email == email {
			return user, s.hashes[email], nil
		}
	}
	return User{}, "", persistence.ErrNotFound
}

type sessionStoreStub struct {
	sessions map[string]Session
}

func newSessionStoreStub() *sessionStoreStub {
	return &sessionStoreStub{sessions: make(map[string]Session)}
}

func (s *sessionStoreStub) CreateSession(ctx context.Context, session Session) (Session, error) {
	s.sessions[session.Token] = session
	return session, nil
}

func (s *sessionStoreStub) GetSession(ctx context.Context, token string) (Session, error) {
	session, ok := s.sessions[token]
	if !ok {
		return Session{}, persistence.ErrNotFound
	}
	return session, nil
}

func (s *sessionStoreStub) RevokeSession(ctx context.Context, token string, revokedAt time.Time) error {
	session, ok := s.sessions[token]
	if !ok {
		return persistence.ErrNotFound
	}
	session.RevokedAt = &revokedAt
	s.sessions[token] = session
	return nil
}

// Bcrypt is deliberately avoided here; the stubs keep the tests fast and
// the hashing behavior is covered in password_test.go.
func stubHasher(password string) (string, error) {
	return "hashed:" + password, nil
}

func stubVerifier(hash, password string) error {
	if hash != "hashed:"+password {
		return ErrInvalidCredentials
	}
	return nil
}

func newTestAuthService(users *userStoreStub, sessions *sessionStoreStub, clock *time.Time) *AuthService {
	counter := 0
	return NewAuthService(AuthServiceDeps{
		Users:          users,
		Sessions:       sessions,
		Tokens:         NewTokenIssuer("test-secret", 15*time.Minute, func() time.Time { return *clock }),
		HashPassword:   stubHasher,
		VerifyPassword: stubVerifier,
		IDGenerator: func() string {
			counter++
			return fmt.Sprintf("id-%d", counter)
		},
		TokenGenerator: func() string {
			counter++
			return fmt.Sprintf("refresh-%d", counter)
		},
		Now:        func() time.Time { return *clock },
		SessionTTL: 24 * time.Hour,
	})
}

func TestAuthService_Register(t *testing.T) {
	t.Run("creates the account and issues both tokens", func(t *testing.T) {
		clock := testBase
		users := newUserStoreStub()
		sessions := newSessionStoreStub()
		svc := newTestAuthService(users, sessions, &clock)

		result, err := svc.Register(context.Background(), RegisterParams{
			Email:       "Organizer@Example.com",
			DisplayName: "Organizer",
			Password:    "correct horse",
		})
		if err != nil {
			t.Fatalf("Register returned error: %v", err)
		}

		if result.User.Email != "organizer@example.com" {
			t.Fatalf("expected lowercased email, got %q", result.User.Email)
		}
		if result.AccessToken == "" || result.RefreshToken == "" {
			t.Fatalf("expected both tokens, got %+v", result)
		}
		if _, err := sessions.GetSession(context.Background(), result.RefreshToken); err != nil {
			t.Fatalf("expected refresh session to be persisted: %v", err)
		}
	})

	t.Run("rejects weak or missing fields", func(t *testing.T) {
		clock := testBase
		svc := newTestAuthService(newUserStoreStub(), newSessionStoreStub(), &clock)

		_, err := svc.Register(context.Background(), RegisterParams{
			Email:       "not-an-email",
			DisplayName: " ",
			Password:    "short",
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"email", "name", "password"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s error, got %v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("duplicate emails map to ErrAlreadyExists", func(t *testing.T) {
		clock := testBase
		users := newUserStoreStub()
		svc := newTestAuthService(users, newSessionStoreStub(), &clock)

		params := RegisterParams{Email: "organizer@example.com", DisplayName: "Organizer", Password: "correct horse"}
		if _, err := svc.Register(context.Background(), params); err != nil {
			t.Fatalf("first Register returned error: %v", err)
		}
		_, err := svc.Register(context.Background(), params)
		if !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})
}

func TestAuthService_Login(t *testing.T) {
	register := func(t *testing.T, svc *AuthService) {
		t.Helper()
		_, err := svc.Register(context.Background(), RegisterParams{
			Email:       "organizer@example.com",
			DisplayName: "Organizer",
			Password:    "correct horse",
		})
		if err != nil {
			t.Fatalf("Register returned error: %v", err)
		}
	}

	t.Run("valid credentials issue tokens", func(t *testing.T) {
		clock := testBase
		users := newUserStoreStub()
		svc := newTestAuthService(users, newSessionStoreStub(), &clock)
		register(t, svc)

		result, err := svc.Login(context.Background(), LoginParams{
			Email:    "organizer@example.com",
			Password: "correct horse",
		})
		if err != nil {
			t.Fatalf("Login returned error: %v", err)
		}
		if result.AccessToken == "" {
			t.Fatal("expected an access token")
		}

		principal, err := svc.VerifyAccessToken(context.Background(), result.AccessToken)
		if err != nil {
			t.Fatalf("VerifyAccessToken returned error: %v", err)
		}
		if principal.Email != "organizer@example.com" {
			t.Fatalf("unexpected principal: %+v", principal)
		}
	})

	t.Run("wrong password maps to ErrInvalidCredentials", func(t *testing.T) {
		clock := testBase
		svc := newTestAuthService(newUserStoreStub(), newSessionStoreStub(), &clock)
		register(t, svc)

		_, err := svc.Login(context.Background(), LoginParams{
			Email:    "organizer@example.com",
			Password: "wrong horse",
		})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("unknown accounts also map to ErrInvalidCredentials", func(t *testing.T) {
		clock := testBase
		svc := newTestAuthService(newUserStoreStub(), newSessionStoreStub(), &clock)

		_, err := svc.Login(context.Background(), LoginParams{
			Email:    "nobody@example.com",
			Password: "whatever password",
		})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})
}

func TestAuthService_Refresh(t *testing.T) {
	t.Run("rotates the refresh token", func(t *testing.T) {
		clock := testBase
		sessions := newSessionStoreStub()
		svc := newTestAuthService(newUserStoreStub(), sessions, &clock)

		registered, err := svc.Register(context.Background(), RegisterParams{
			Email:       "organizer@example.com",
			DisplayName: "Organizer",
			Password:    "correct horse",
		})
		if err != nil {
			t.Fatalf("Register returned error: %v", err)
		}

		refreshed, err := svc.Refresh(context.Background(), registered.RefreshToken)
		if err != nil {
			t.Fatalf("Refresh returned error: %v", err)
		}
		if refreshed.RefreshToken == registered.RefreshToken {
			t.Fatal("expected a new refresh token")
		}

		// The old token is revoked; a second rotation on it must fail.
		if _, err := svc.Refresh(context.Background(), registered.RefreshToken); !errors.Is(err, ErrSessionRevoked) {
			t.Fatalf("expected ErrSessionRevoked, got %v", err)
		}
	})

	t.Run("expired sessions map to ErrSessionExpired", func(t *testing.T) {
		clock := testBase
		svc := newTestAuthService(newUserStoreStub(), newSessionStoreStub(), &clock)

		registered, err := svc.Register(context.Background(), RegisterParams{
			Email:       "organizer@example.com",
			DisplayName: "Organizer",
			Password:    "correct horse",
		})
		if err != nil {
			t.Fatalf("Register returned error: %v", err)
		}

		clock = clock.Add(25 * time.Hour)
		if _, err := svc.Refresh(context.Background(), registered.RefreshToken); !errors.Is(err, ErrSessionExpired) {
			t.Fatalf("expected ErrSessionExpired, got %v", err)
		}
	})

	t.Run("unknown tokens map to ErrUnauthorized", func(t *testing.T) {
		clock := testBase
		svc := newTestAuthService(newUserStoreStub(), newSessionStoreStub(), &clock)

		if _, err := svc.Refresh(context.Background(), "unknown"); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})
}

func TestAuthService_Logout(t *testing.T) {
	t.Run("revokes the session and treats unknown tokens as success", func(t *testing.T) {
		clock := testBase
		sessions := newSessionStoreStub()
		svc := newTestAuthService(newUserStoreStub(), sessions, &clock)

		registered, err := svc.Register(context.Background(), RegisterParams{
			Email:       "organizer@example.com",
			DisplayName: "Organizer",
			Password:    "correct horse",
		})
		if err != nil {
			t.Fatalf("Register returned error: %v", err)
		}

		if err := svc.Logout(context.Background(), registered.RefreshToken); err != nil {
			t.Fatalf("Logout returned error: %v", err)
		}
		if _, err := svc.Refresh(context.Background(), registered.RefreshToken); !errors.Is(err, ErrSessionRevoked) {
			t.Fatalf("expected ErrSessionRevoked after logout, got %v", err)
		}

		if err := svc.Logout(context.Background(), "never-issued"); err != nil {
			t.Fatalf("expected unknown token logout to succeed, got %v", err)
		}
	})
}

func TestTokenIssuer_Expiry(t *testing.T) {
	clock := testBase
	issuer := NewTokenIssuer("test-secret", 15*time.Minute, func() time.Time { return clock })

	token, expiresAt, err := issuer.Issue(User{ID: "user-1", Email: "organizer@example.com"})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if !expiresAt.Equal(testBase.Add(15 * time.Minute)) {
		t.Fatalf("unexpected expiry: %v", expiresAt)
	}

	clock = testBase.Add(16 * time.Minute)
	if _, err := issuer.Verify(token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}
