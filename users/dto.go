// Package users, as part of the account management module.
// This file, `dto.go`, defines the request and response bodies of the /user routes.
// The `validate` tags are enforced by validation.Request before a handler runs;
// `msg` replaces the default message for that field.
package users

import (
	"time"

	"github.com/user/opinion-manager/store"
)

// RegisterRequest is the sign-up payload.
// @Description Request body for registering an account
type RegisterRequest struct {
	Username  string `json:"username" validate:"required,username_available" msg:"Enter a username" example:"ada"`
	Email     string `json:"email" validate:"required,email,email_available" msg:"This is not a valid email" example:"ada@example.com"`
	Password  string `json:"password" validate:"required,password_policy" msg:"The password is mandatory" example:"Secret123"`
	FirstName string `json:"firstname" validate:"required" msg:"Enter your name" example:"Ada"`
	LastName  string `json:"lastname" validate:"required" msg:"Enter your last name" example:"Lovelace"`
}

// UpdateUserRequest replaces the profile of the caller. Password is optional;
// when present it must satisfy the password policy.
// @Description Request body for updating the authenticated user's profile
type UpdateUserRequest struct {
	Username  string  `json:"username" validate:"required,username_available" msg:"Enter a username" example:"ada"`
	Password  *string `json:"password,omitempty" validate:"omitnil,password_policy" example:"NewSecret123"`
	FirstName string  `json:"firstname" validate:"required" msg:"Enter your name" example:"Ada"`
	LastName  string  `json:"lastname" validate:"required" msg:"Enter your last name" example:"Lovelace"`
}

// UserResponse is the public view of an account. The password hash is never included.
// @Description Public account information
type UserResponse struct {
	ID        string    `json:"id" example:"5f1d7f3e9d1b2c3a4e5f6a7b"`
	Username  string    `json:"username" example:"ada"`
	Email     string    `json:"email" example:"ada@example.com"`
	FirstName string    `json:"firstname" example:"Ada"`
	LastName  string    `json:"lastname" example:"Lovelace"`
	Active    bool      `json:"active" example:"true"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserEnvelope wraps a user together with an optional status message.
type UserEnvelope struct {
	Msg  string       `json:"msg,omitempty" example:"User created"`
	User UserResponse `json:"user"`
}

type MessageResponse struct {
	Msg string `json:"msg" example:"User deactivated"`
}

func toResponse(u *store.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
