// Package domain contains core concepts of the blog platform.
// This file defines User entities and role-based authorization rules.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleL1Approver Role = "l1_approver"
)

// Identity is the verified caller handed to the core by the auth layer.
type Identity struct {
	UserID uuid.UUID
	Role   Role
}

type User struct {
	ID           uuid.UUID
	Email        string
	Username     string
	PasswordHash string
	Role         Role
	Active       bool
	CreatedAt    time.Time
}

// CanApprove reports whether the role may decide pending posts.
// All role checks in the codebase go through this single function.
func (r Role) CanApprove() bool {
	return r == RoleAdmin || r == RoleL1Approver
}

func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// Owns reports whether the identity owns the given resource, admins
// passing unconditionally.
func (i Identity) Owns(resourceOwner uuid.UUID) bool {
	return i.UserID == resourceOwner || i.Role.IsAdmin()
}

func ValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleAdmin, RoleL1Approver:
		return true
	}
	return false
}
