package models

import "time"

type UserRole string

const (
	RoleDoctor UserRole = "DOCTOR"
	RoleAdmin  UserRole = "ADMIN"
)

// User is an account that can draft scripts (DOCTOR) or review them (ADMIN).
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}
