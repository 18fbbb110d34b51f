package errors

import "errors"

var (
	ErrTokenNotFound   = errors.New("admission token not found")
	ErrTokenExpired    = errors.New("admission token expired")
	ErrTokenNotActive  = errors.New("admission token is not active")
	ErrInvalidToken    = errors.New("invalid admission token")
	ErrActivePoolFull  = errors.New("active admission pool is full")
	ErrDuplicateActive = errors.New("user already holds a live admission token")
)
