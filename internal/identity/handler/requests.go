package handler

import (
	"strings"
	"time"

	"policardmed/internal/identity/models"
	dErrors "policardmed/pkg/domain-errors"
)

// AdminLoginRequest is the body of POST /auth/admin/login.
type AdminLoginRequest struct {
	Username string `json:"username" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

func (r *AdminLoginRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
}

func (r *AdminLoginRequest) Validate() error {
	if r.Username == "" {
		return dErrors.New(dErrors.CodeValidation, "username is required")
	}
	return nil
}

// AssociateLoginRequest is the body of POST /auth/associate/login.
type AssociateLoginRequest struct {
	CPF string `json:"cpf" validate:"required,max=32"`
}

func (r *AssociateLoginRequest) Normalize() {
	r.CPF = strings.TrimSpace(r.CPF)
}

func (r *AssociateLoginRequest) Validate() error {
	if r.CPF == "" {
		return dErrors.New(dErrors.CodeValidation, "cpf is required")
	}
	return nil
}

// SessionResponse is returned by both login endpoints.
type SessionResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresAt   time.Time   `json:"expires_at"`
	Role        models.Role `json:"role"`
	Subject     string      `json:"subject"`
	Name        string      `json:"name,omitempty"`
}

func toSessionResponse(s *models.Session) *SessionResponse {
	return &SessionResponse{
		AccessToken: s.Token,
		TokenType:   "Bearer",
		ExpiresAt:   s.ExpiresAt,
		Role:        s.Role,
		Subject:     s.Subject,
		Name:        s.Name,
	}
}
