package authpw

import (
	"context"
	"errors"
	"testing"
	"time"

	"docuvault/api/internal/store"
)

// mockUserStore is a mock implementation of UserStore for testing
type mockUserStore struct {
	users      map[string]store.User
	emailIndex map[string]string // email -> userID
	resets     map[string]struct {
		userID    string
		expiresAt time.Time
		used      bool
	}
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		users:      make(map[string]store.User),
		emailIndex: make(map[string]string),
		resets: make(map[string]struct {
			userID    string
			expiresAt time.Time
			used      bool
		}),
	}
}

func (m *mockUserStore) addUser(t *testing.T, id, email, password string, active bool) {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	m.users[id] = store.User{ID: id, Email: email, PasswordHash: hash, DisplayName: "Test User", Role: "member", IsActive: active}
	m.emailIndex[email] = id
}

func (m *mockUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if userID, ok := m.emailIndex[email]; ok {
		return m.users[userID], nil
	}
	return store.User{}, errors.New("user not found")
}

func (m *mockUserStore) GetUserByID(ctx context.Context, id string) (store.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return store.User{}, errors.New("user not found")
}

func (m *mockUserStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	if user, ok := m.users[userID]; ok {
		user.PasswordHash = passwordHash
		m.users[userID] = user
		return nil
	}
	return errors.New("user not found")
}

func (m *mockUserStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	m.resets[token] = struct {
		userID    string
		expiresAt time.Time
		used      bool
	}{userID: userID, expiresAt: expiresAt, used: false}
	return nil
}

func (m *mockUserStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	if reset, ok := m.resets[token]; ok && !reset.used && time.Now().Before(reset.expiresAt) {
		return reset.userID, nil
	}
	return "", errors.New("invalid or expired token")
}

func (m *mockUserStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	if reset, ok := m.resets[token]; ok {
		reset.used = true
		m.resets[token] = reset
	}
	return nil
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()
	mockStore := newMockUserStore()
	mockStore.addUser(t, "usr_1", "alice@example.com", "password123", true)
	mockStore.addUser(t, "usr_2", "bob@example.com", "password123", false)
	svc := NewService(mockStore)

	t.Run("successful sign in", func(t *testing.T) {
		user, err := svc.SignIn(ctx, "alice@example.com", "password123")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.ID != "usr_1" {
			t.Errorf("expected usr_1, got %s", user.ID)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.SignIn(ctx, "alice@example.com", "wrongpassword")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("non-existent user", func(t *testing.T) {
		_, err := svc.SignIn(ctx, "nobody@example.com", "password123")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("deactivated account", func(t *testing.T) {
		_, err := svc.SignIn(ctx, "bob@example.com", "password123")
		if !errors.Is(err, ErrInactiveAccount) {
			t.Errorf("expected ErrInactiveAccount, got %v", err)
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := svc.SignIn(ctx, "", "")
		if err == nil {
			t.Error("expected error for missing fields")
		}
	})
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	mockStore := newMockUserStore()
	mockStore.addUser(t, "usr_1", "alice@example.com", "password123", true)
	svc := NewService(mockStore)

	t.Run("wrong current password", func(t *testing.T) {
		err := svc.ChangePassword(ctx, "usr_1", "wrongpassword", "newpassword123")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("short new password", func(t *testing.T) {
		err := svc.ChangePassword(ctx, "usr_1", "password123", "short")
		if !errors.Is(err, ErrWeakPassword) {
			t.Errorf("expected ErrWeakPassword, got %v", err)
		}
	})

	t.Run("successful change", func(t *testing.T) {
		if err := svc.ChangePassword(ctx, "usr_1", "password123", "newpassword123"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := svc.SignIn(ctx, "alice@example.com", "password123"); err == nil {
			t.Error("expected old password to stop working")
		}
		if _, err := svc.SignIn(ctx, "alice@example.com", "newpassword123"); err != nil {
			t.Errorf("expected new password to work: %v", err)
		}
	})
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	mockStore := newMockUserStore()
	mockStore.addUser(t, "usr_1", "alice@example.com", "password123", true)
	svc := NewService(mockStore)

	t.Run("request reset for existing user", func(t *testing.T) {
		token, user, err := svc.RequestPasswordReset(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token == "" {
			t.Error("expected token to be generated")
		}
		if user.ID != "usr_1" {
			t.Errorf("expected usr_1, got %s", user.ID)
		}
	})

	t.Run("request reset for non-existent user - no error, no token", func(t *testing.T) {
		token, _, err := svc.RequestPasswordReset(ctx, "nobody@example.com")
		if err != nil {
			t.Errorf("expected no error for non-existent user, got: %v", err)
		}
		if token != "" {
			t.Error("expected empty token for non-existent user")
		}
	})

	t.Run("reset password with valid token", func(t *testing.T) {
		token, _, _ := svc.RequestPasswordReset(ctx, "alice@example.com")

		if err := svc.ResetPassword(ctx, token, "newpassword123"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := svc.SignIn(ctx, "alice@example.com", "password123"); err == nil {
			t.Error("expected old password to not work")
		}
		if _, err := svc.SignIn(ctx, "alice@example.com", "newpassword123"); err != nil {
			t.Errorf("expected new password to work: %v", err)
		}
	})

	t.Run("token cannot be reused", func(t *testing.T) {
		token, _, _ := svc.RequestPasswordReset(ctx, "alice@example.com")

		if err := svc.ResetPassword(ctx, token, "anotherpassword1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := svc.ResetPassword(ctx, token, "anotherpassword2"); !errors.Is(err, ErrInvalidResetToken) {
			t.Errorf("expected ErrInvalidResetToken on reuse, got %v", err)
		}
	})

	t.Run("reset with invalid token", func(t *testing.T) {
		err := svc.ResetPassword(ctx, "invalid-token", "newpassword123")
		if !errors.Is(err, ErrInvalidResetToken) {
			t.Errorf("expected ErrInvalidResetToken, got %v", err)
		}
	})

	t.Run("reset with short password", func(t *testing.T) {
		err := svc.ResetPassword(ctx, "some-token", "short")
		if !errors.Is(err, ErrWeakPassword) {
			t.Errorf("expected ErrWeakPassword, got %v", err)
		}
	})
}
