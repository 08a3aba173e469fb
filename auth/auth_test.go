package auth

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/pyala/promptbattle/models"
	"github.com/pyala/promptbattle/persistence"
)

// fakeDatabase stubs persistence.Database with a single known user.
type fakeDatabase struct {
	user *models.User
	err  error
}

func (f *fakeDatabase) GetUserByUsername(username string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.user == nil || f.user.Username != username {
		return nil, persistence.ErrRecordNotFound
	}
	return f.user, nil
}

func (f *fakeDatabase) CreateBattleSession(*models.BattleSession) error { return nil }
func (f *fakeDatabase) GetBattleSessionByCode(string) (*models.BattleSession, error) {
	return nil, persistence.ErrRecordNotFound
}
func (f *fakeDatabase) JoinBattleSession(string) (*models.BattleSession, error) {
	return nil, persistence.ErrRecordNotFound
}
func (f *fakeDatabase) CloseBattleSession(string) error               { return nil }
func (f *fakeDatabase) SaveBattlePrompt(*models.BattlePrompt) error   { return nil }
func (f *fakeDatabase) SaveGeneratedImage(*models.GeneratedImage) error { return nil }
func (f *fakeDatabase) UpdateImageStatus(string, string) error        { return nil }
func (f *fakeDatabase) SaveBattleResult(*models.BattleResult) error   { return nil }
func (f *fakeDatabase) GetSessionStats(string) (*models.SessionStats, error) {
	return nil, persistence.ErrRecordNotFound
}
func (f *fakeDatabase) Close() error { return nil }

func newTestUser(t *testing.T, username, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return &models.User{ID: "user-1", Username: username, PasswordHash: string(hash)}
}

func TestAuthenticate(t *testing.T) {
	user := newTestUser(t, "player@example.com", "hunter22")
	svc := NewService(&fakeDatabase{user: user})

	got, err := svc.Authenticate("player@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("expected user %s, got %s", user.ID, got.ID)
	}
}

func TestAuthenticateValidation(t *testing.T) {
	svc := NewService(&fakeDatabase{})

	cases := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"not an email", "notanemail", "hunter22", ErrInvalidUsername},
		{"empty username", "", "hunter22", ErrInvalidUsername},
		{"short password", "player@example.com", "abc", ErrPasswordTooShort},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Authenticate(tc.username, tc.password); !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestAuthenticateWrongPassword(t *testing.T) {
	user := newTestUser(t, "player@example.com", "hunter22")
	svc := NewService(&fakeDatabase{user: user})

	if _, err := svc.Authenticate("player@example.com", "wrongpass"); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticateUnknownUser(t *testing.T) {
	svc := NewService(&fakeDatabase{})

	if _, err := svc.Authenticate("ghost@example.com", "hunter22"); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticateDatabaseErrorIsGeneric(t *testing.T) {
	svc := NewService(&fakeDatabase{err: errors.New("connection refused")})

	if _, err := svc.Authenticate("player@example.com", "hunter22"); err != ErrInvalidCredentials {
		t.Errorf("database errors must surface as ErrInvalidCredentials, got %v", err)
	}
}
