package domain

import (
	"slices"
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

var validRoles = []Role{RoleAdmin, RoleMember}

// User is a portal account. Admins resolve every directory entry; members
// only resolve entities their memberships grant.
type User struct {
	ID          string
	DisplayName string
	Role        Role
	CreatedAt   time.Time
	ArchivedAt  *time.Time
}

func NewUser(id, displayName string, role Role, now time.Time) (User, error) {
	id = strings.TrimSpace(id)
	displayName = strings.TrimSpace(displayName)

	if id == "" {
		return User{}, ErrInvalidID
	}
	if displayName == "" {
		return User{}, ErrInvalidName
	}
	if role == "" {
		role = RoleMember
	}
	if !slices.Contains(validRoles, role) {
		return User{}, ErrInvalidRole
	}

	return User{
		ID:          id,
		DisplayName: displayName,
		Role:        role,
		CreatedAt:   now.UTC(),
	}, nil
}

// IsPrivileged reports whether the user bypasses permission scoping.
func (u User) IsPrivileged() bool {
	return u.Role == RoleAdmin
}

// Session is a bearer-token login issued by the portal's auth layer.
type Session struct {
	Token     string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

func NewSession(token, userID string, now time.Time, ttl time.Duration) (Session, error) {
	token = strings.TrimSpace(token)
	userID = strings.TrimSpace(userID)
	if token == "" || userID == "" {
		return Session{}, ErrInvalidID
	}
	return Session{
		Token:     token,
		UserID:    userID,
		CreatedAt: now.UTC(),
		ExpiresAt: now.UTC().Add(ttl),
	}, nil
}
