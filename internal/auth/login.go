// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package auth

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/echolog/internal/config"
)

// localSubjectPrefix namespaces locally issued identities so they can
// never collide with subjects from an external issuer.
const localSubjectPrefix = "local|"

// LoginManager validates the configured admin credentials and issues
// session tokens. The password is bcrypt-hashed once at startup so every
// login attempt pays only the compare cost.
type LoginManager struct {
	username     string
	passwordHash []byte
	tokens       *JWTManager
}

// NewLoginManager creates the local credential checker for jwt mode.
func NewLoginManager(cfg *config.SecurityConfig, tokens *JWTManager) (*LoginManager, error) {
	if cfg.AdminUsername == "" {
		return nil, fmt.Errorf("admin username is required")
	}
	if len(cfg.AdminPassword) < 8 {
		return nil, fmt.Errorf("admin password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), 12)
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin password: %w", err)
	}

	return &LoginManager{
		username:     cfg.AdminUsername,
		passwordHash: hash,
		tokens:       tokens,
	}, nil
}

// Login checks credentials and returns a signed session token plus the
// authenticated subject. Both username and password comparisons always
// run so response timing does not reveal which one was wrong.
func (m *LoginManager) Login(username, password string) (string, *Subject, error) {
	usernameMatch := subtle.ConstantTimeCompare([]byte(username), []byte(m.username)) == 1
	passwordMatch := bcrypt.CompareHashAndPassword(m.passwordHash, []byte(password)) == nil

	if !usernameMatch || !passwordMatch {
		return "", nil, ErrInvalidCredentials
	}

	subject := &Subject{
		UserID:   localSubjectPrefix + m.username,
		Username: m.username,
		Role:     "admin",
	}

	token, err := m.tokens.GenerateToken(subject.UserID, subject.Username, subject.Role)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return token, subject, nil
}
