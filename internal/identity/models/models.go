// Package models holds the identity gate's value types.
package models

import (
	"time"

	id "policardmed/pkg/domain"
)

// Role is the resolved kind of caller.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleAssociate Role = "associate"
)

func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleAssociate
}

func (r Role) String() string {
	return string(r)
}

// AdminIdentity is an authenticated administrator.
type AdminIdentity struct {
	Username string
}

// MemberIdentity is an associate resolved by cpf. Name is the member's
// primary name at the time of login.
type MemberIdentity struct {
	MemberID id.MemberID
	Name     string
}

// Session is an issued session token and its resolved caller.
type Session struct {
	Token     string
	TokenID   string
	Role      Role
	Subject   string
	Name      string
	ExpiresAt time.Time
}
