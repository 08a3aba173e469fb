// auth/auth.go
package auth

import (
	"errors"
	"net/mail"

	"golang.org/x/crypto/bcrypt"

	"github.com/pyala/promptbattle/logger"
	"github.com/pyala/promptbattle/models"
	"github.com/pyala/promptbattle/persistence"
)

const minPasswordLength = 6

var (
	// ErrInvalidCredentials covers unknown users and wrong passwords alike;
	// the caller never learns which one it was.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidUsername    = errors.New("username must be a valid email address")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
)

// Service 凭据登录
type Service struct {
	db persistence.Database
}

func NewService(db persistence.Database) *Service {
	return &Service{db: db}
}

// Authenticate validates the credential shape, looks the user up by username
// and compares the bcrypt hash. Database errors are logged and collapsed into
// ErrInvalidCredentials so nothing internal leaks to the sign-in form.
func (s *Service) Authenticate(username, password string) (*models.User, error) {
	if _, err := mail.ParseAddress(username); err != nil {
		return nil, ErrInvalidUsername
	}
	if len(password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}

	user, err := s.db.GetUserByUsername(username)
	if err != nil {
		if !errors.Is(err, persistence.ErrRecordNotFound) {
			logger.Log.Errorf("failed to fetch user %s: %v", username, err)
		}
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}
