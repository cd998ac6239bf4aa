package auth

import (
	"errors"
	"os"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAuthDisabled       = errors.New("authentication is disabled")
)

// Authenticator validates operator credentials for the management API.
// It is configured entirely from the environment: AUTH_ENABLED,
// AUTH_USERNAME, AUTH_PASSWORD (plaintext or a bcrypt hash).
type Authenticator struct {
	enabled      bool
	username     string
	passwordHash []byte
	tokens       *TokenManager
}

// NewAuthenticator builds an authenticator from environment variables.
func NewAuthenticator() *Authenticator {
	enabled := os.Getenv("AUTH_ENABLED") == "true"

	username := os.Getenv("AUTH_USERNAME")
	if username == "" {
		username = "admin"
	}

	password := os.Getenv("AUTH_PASSWORD")
	var passwordHash []byte
	if enabled && password != "" {
		// A 60-byte value starting with '$' is already a bcrypt hash.
		if len(password) == 60 && password[0] == '$' {
			passwordHash = []byte(password)
		} else if hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost); err == nil {
			passwordHash = hash
		}
	}

	return &Authenticator{
		enabled:      enabled,
		username:     username,
		passwordHash: passwordHash,
		tokens:       NewTokenManager(),
	}
}

// IsEnabled reports whether authentication is enforced.
func (a *Authenticator) IsEnabled() bool {
	return a.enabled
}

// Login checks the credentials and issues a signed token. The second
// return value is the token's Unix expiry.
func (a *Authenticator) Login(username, password string) (string, int64, error) {
	if !a.enabled {
		return "", 0, ErrAuthDisabled
	}
	if username != a.username {
		return "", 0, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		return "", 0, ErrInvalidCredentials
	}

	token, expiresAt, err := a.tokens.Generate(username)
	if err != nil {
		return "", 0, err
	}
	return token, expiresAt.Unix(), nil
}

// ValidateToken checks a bearer token and returns its claims.
func (a *Authenticator) ValidateToken(token string) (*Claims, error) {
	return a.tokens.Validate(token)
}

// HashPassword produces a bcrypt hash suitable for AUTH_PASSWORD.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
