package auth

import "errors"

// Expected session outcomes. These are returned as values from
// SessionService and translated into response envelopes at the transport
// boundary; they never surface as 5xx.
var (
	ErrInvalidCredentials  = errors.New("auth: invalid login name or password")
	ErrInvalidToken        = errors.New("auth: invalid token")
	ErrNoActiveSession     = errors.New("auth: no active session for user")
	ErrRefreshTokenExpired = errors.New("auth: refresh token expired")
)

// Repository-level failures.
var (
	ErrNotFound      = errors.New("auth: not found")
	ErrAlreadyExists = errors.New("auth: already exists")
	ErrInvalidInput  = errors.New("auth: invalid input")

	// ErrRotationConflict is reported by UserRepository.SwapRefreshToken
	// when the stored refresh token no longer matches the value the
	// rotation was predicated on (a concurrent rotation won).
	ErrRotationConflict = errors.New("auth: refresh token rotation conflict")
)
