package common

import "errors"

var (

	// repository specific errors
	ErrorNotFound = errors.New("not found")

	// service specific errors
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrValidation     = errors.New("validation error")

	// identity and registry errors
	ErrIdentityResolution    = errors.New("identity could not be resolved")
	ErrUnknownPendingPatient = errors.New("unknown pending patient")

	// token errors
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// account and session errors
	ErrAuthentication    = errors.New("invalid credentials")
	ErrInvalidSession    = errors.New("invalid session")
	ErrWeakPassword      = errors.New("password too short")
	ErrEmailInUse        = errors.New("email already in use")
	ErrAlreadyRegistered = errors.New("account already registered")
	ErrNotRegistered     = errors.New("account not registered")
	ErrResetTokenInvalid = errors.New("invalid or expired reset token")

	// sharing errors
	ErrInviteNotFound        = errors.New("invite not found")
	ErrInviteExpired         = errors.New("invite expired")
	ErrInviteAlreadyClaimed  = errors.New("invite already claimed")
	ErrAccessRequestNotFound = errors.New("access request not found")
	ErrRequestAlreadyDecided = errors.New("access request already decided")
)
